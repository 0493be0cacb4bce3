package grounding

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/malwarescan/precogs-api-sub001/anchor"
	"github.com/malwarescan/precogs-api-sub001/grounding/internal/store"
	"github.com/malwarescan/precogs-api-sub001/identity"
)

// FailureKind classifies one fact's validation outcome.
type FailureKind string

const (
	Passed               FailureKind = "passed"
	MissingAnchor        FailureKind = "missing_anchor"
	StaleAnchor          FailureKind = "stale_anchor"
	InvalidRange         FailureKind = "invalid_range"
	SliceMismatch        FailureKind = "slice_mismatch"
	FragmentHashMismatch FailureKind = "fragment_hash_mismatch"
)

// FactOutcome is one fact's validation result.
type FactOutcome struct {
	FactID   string      `json:"fact_id"`
	SlotID   string      `json:"slot_id"`
	Revision int         `json:"revision"`
	Kind     FailureKind `json:"kind"`
	Detail   string      `json:"detail,omitempty"`
}

// Report is the outcome of validating all current facts of one page against
// its snapshot. Results enumerates every checked fact — failing facts are
// never silently dropped from the count.
type Report struct {
	Domain             string        `json:"domain"`
	SourceURL          string        `json:"source_url"`
	ExtractionTextHash string        `json:"extraction_text_hash"`
	Validated          int           `json:"validated"`
	Passed             int           `json:"passed"`
	Failed             int           `json:"failed"`
	Skipped            int           `json:"skipped"`
	PassRate           float64       `json:"pass_rate"`
	CitationGrade      bool          `json:"citation_grade"`
	Results            []FactOutcome `json:"results"`
	Failures           []FactOutcome `json:"failures"`
}

// Validate re-checks every current fact of (domain, sourceURL) against the
// current snapshot, reading both at one consistent point, and records the
// run. Per-fact failures go into the report; only structural failures (no
// snapshot, snapshot corruption) abort.
func (s *Service) Validate(ctx context.Context, domain, sourceURL string) (*Report, error) {
	snap, facts, err := s.store.SnapshotWithLatestFacts(ctx, domain, sourceURL)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrSnapshotNotFound, domain, sourceURL)
	}

	report, err := ValidateSnapshot(snap, facts, s.hasher, s.config.Validation)
	if err != nil {
		return nil, err
	}

	if err := s.store.InsertValidationRun(ctx, &ValidationRun{
		ID:            s.newID(),
		Domain:        domain,
		SourceURL:     sourceURL,
		Validated:     report.Validated,
		Passed:        report.Passed,
		Failed:        report.Failed,
		PassRate:      report.PassRate,
		CitationGrade: report.CitationGrade,
		HashAlgorithm: string(s.hasher.Algorithm()),
	}); err != nil {
		return nil, err
	}

	s.logger.Info("validation run",
		"domain", domain, "url", sourceURL,
		"validated", report.Validated, "passed", report.Passed,
		"failed", report.Failed, "pass_rate", report.PassRate,
		"citation_grade", report.CitationGrade)
	return report, nil
}

// ValidateSnapshot is the pure validator: given a snapshot, the facts
// claiming anchors into it, the hash function, and explicit thresholds, it
// recomputes hashes and offsets independently of whoever stored them.
//
// It refuses to produce any result when the snapshot itself is corrupt
// (stored hash disagrees with stored text) — partial reports over corrupt
// ground truth would be worse than no report.
func ValidateSnapshot(snap *Snapshot, facts []*Fact, h identity.Hasher, cfg ValidationConfig) (*Report, error) {
	if h.Sum(snap.CanonicalText) != snap.ExtractionTextHash {
		return nil, fmt.Errorf("%w: %s %s", ErrSnapshotCorrupt, snap.Domain, snap.SourceURL)
	}

	report := &Report{
		Domain:             snap.Domain,
		SourceURL:          snap.SourceURL,
		ExtractionTextHash: snap.ExtractionTextHash,
	}

	for _, f := range facts {
		var outcome FactOutcome
		switch f.EvidenceType {
		case store.EvidenceTextExtraction:
			outcome = checkTextFact(snap, f, h)
		case store.EvidenceStructuredData:
			outcome = checkStructuredFact(f)
		default:
			// Unclassified facts await backfill; they are neither passed
			// nor failed.
			report.Skipped++
			continue
		}

		report.Validated++
		if outcome.Kind == Passed {
			report.Passed++
		} else {
			report.Failed++
			report.Failures = append(report.Failures, outcome)
		}
		report.Results = append(report.Results, outcome)
	}

	if report.Validated > 0 {
		report.PassRate = float64(report.Passed) / float64(report.Validated)
	}
	report.CitationGrade = report.PassRate >= cfg.CitationMinPassRate &&
		report.Passed >= cfg.CitationMinPassed
	return report, nil
}

// checkTextFact runs the four ordered checks for a text-anchored fact,
// stopping at the first failure:
//
//  1. generation: anchor's extraction_text_hash equals the snapshot's
//  2. range: 0 ≤ char_start < char_end ≤ len(canonical_text)
//  3. slice: canonical_text[start:end] equals the stored supporting text,
//     byte-exact, no trimming or normalization
//  4. hash: hash(slice) equals the anchor's fragment_hash
func checkTextFact(snap *Snapshot, f *Fact, h identity.Hasher) FactOutcome {
	out := FactOutcome{FactID: f.FactID, SlotID: f.SlotID, Revision: f.Revision}

	if f.AnchorJSON == "" {
		out.Kind = MissingAnchor
		out.Detail = "text_extraction fact carries no anchor"
		return out
	}
	var a anchor.Anchor
	if err := json.Unmarshal([]byte(f.AnchorJSON), &a); err != nil ||
		a.FragmentHash == "" || a.ExtractionTextHash == "" {
		out.Kind = MissingAnchor
		out.Detail = "stored anchor is unreadable"
		return out
	}

	if a.ExtractionTextHash != snap.ExtractionTextHash {
		out.Kind = StaleAnchor
		out.Detail = fmt.Sprintf("anchor bound to generation %s, snapshot is %s",
			a.ExtractionTextHash, snap.ExtractionTextHash)
		return out
	}

	text := snap.CanonicalText
	if a.CharStart < 0 || a.CharEnd <= a.CharStart || a.CharEnd > len(text) {
		out.Kind = InvalidRange
		out.Detail = fmt.Sprintf("[%d:%d) against %d chars", a.CharStart, a.CharEnd, len(text))
		return out
	}

	slice := text[a.CharStart:a.CharEnd]
	if slice != f.SupportingText {
		out.Kind = SliceMismatch
		out.Detail = "canonical text slice differs from stored supporting text"
		return out
	}

	if h.Sum(slice) != a.FragmentHash {
		out.Kind = FragmentHashMismatch
		out.Detail = "recomputed fragment hash differs from anchor"
		return out
	}

	out.Kind = Passed
	return out
}

// checkStructuredFact validates a structured-data fact: it needs a non-empty
// source path and is exempt from char-offset checks.
func checkStructuredFact(f *Fact) FactOutcome {
	out := FactOutcome{FactID: f.FactID, SlotID: f.SlotID, Revision: f.Revision}
	if f.SourcePath == "" {
		out.Kind = MissingAnchor
		out.Detail = "structured_data fact has empty source_path"
		return out
	}
	out.Kind = Passed
	return out
}

// SweepResult is one URL's line in a revalidation sweep.
type SweepResult struct {
	Domain        string  `json:"domain"`
	SourceURL     string  `json:"source_url"`
	Validated     int     `json:"validated"`
	Passed        int     `json:"passed"`
	Failed        int     `json:"failed"`
	PassRate      float64 `json:"pass_rate"`
	CitationGrade bool    `json:"citation_grade"`
	Error         string  `json:"error,omitempty"`
}

// Sweep revalidates every stored snapshot. Per-URL structural failures
// (e.g. a corrupt snapshot) are reported in that URL's line and do not stop
// the sweep.
func (s *Service) Sweep(ctx context.Context) ([]SweepResult, error) {
	snaps, err := s.store.ListSnapshots(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]SweepResult, 0, len(snaps))
	for _, snap := range snaps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		line := SweepResult{Domain: snap.Domain, SourceURL: snap.SourceURL}
		report, err := s.Validate(ctx, snap.Domain, snap.SourceURL)
		if err != nil {
			line.Error = err.Error()
			s.logger.Warn("sweep: validation failed",
				"domain", snap.Domain, "url", snap.SourceURL, "error", err)
		} else {
			line.Validated = report.Validated
			line.Passed = report.Passed
			line.Failed = report.Failed
			line.PassRate = report.PassRate
			line.CitationGrade = report.CitationGrade
		}
		results = append(results, line)
	}
	return results, nil
}
