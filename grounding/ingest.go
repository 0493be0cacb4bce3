package grounding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/malwarescan/precogs-api-sub001/anchor"
	"github.com/malwarescan/precogs-api-sub001/grounding/internal/store"
	"github.com/malwarescan/precogs-api-sub001/identity"
)

// ingestRetries bounds how often a writer that lost a revision race re-reads
// and recomputes before surfacing ErrRevisionConflict.
const ingestRetries = 3

// FactCandidate is what a fact-production service supplies per observed
// claim. Anchor is the raw wire payload; it is admitted through anchor.Parse
// and nowhere else.
type FactCandidate struct {
	Domain         string          `json:"domain"`
	SourceURL      string          `json:"source_url"`
	EntityID       string          `json:"entity_id"`
	Predicate      string          `json:"predicate"`
	Object         string          `json:"object"`
	EvidenceType   string          `json:"evidence_type,omitempty"`
	SourcePath     string          `json:"source_path,omitempty"`
	Anchor         json.RawMessage `json:"evidence_anchor,omitempty"`
	SupportingText string          `json:"supporting_text,omitempty"`
}

// IngestResult reports the identity and revision outcome of one ingestion.
type IngestResult struct {
	SlotID        string `json:"slot_id"`
	FactID        string `json:"fact_id"`
	Revision      int    `json:"revision"`
	IsNewRevision bool   `json:"is_new_revision"`
	EvidenceType  string `json:"evidence_type"`
	AnchorMissing bool   `json:"anchor_missing"`
}

// IngestFact mints identities for a candidate and applies the revision
// transition for its slot: revision 1 on first sight, no write when the
// value and fragment are unchanged, otherwise a new revision chained to the
// prior fact_id. A malformed anchor payload aborts the operation with
// anchor.ErrMalformed — it is never stored partially parsed.
func (s *Service) IngestFact(ctx context.Context, cand *FactCandidate) (*IngestResult, error) {
	if cand.Domain == "" || cand.SourceURL == "" {
		return nil, fmt.Errorf("%w: domain and source_url are required", ErrInvalidInput)
	}
	if cand.EntityID == "" || cand.Predicate == "" {
		return nil, fmt.Errorf("%w: entity_id and predicate are required", ErrInvalidInput)
	}

	var a *anchor.Anchor
	if len(cand.Anchor) > 0 {
		parsed, err := anchor.Parse(cand.Anchor)
		if err != nil {
			return nil, err
		}
		a = parsed
	}

	evidenceType := cand.EvidenceType
	if evidenceType == "" {
		evidenceType = ClassifyEvidence(a != nil, cand.Object, cand.SupportingText, s.config.Classify.MinSupportingText)
	}
	if evidenceType == EvidenceStructuredData && cand.SourcePath == "" {
		return nil, fmt.Errorf("%w: structured_data facts require a source_path", ErrInvalidInput)
	}

	anchorMissing := evidenceType == EvidenceTextExtraction && a == nil

	loc, snapHash, fragmentHash := locate(evidenceType, a, cand.SourcePath)
	slotID := s.hasher.SlotID(cand.EntityID, cand.Predicate, cand.SourceURL, loc, snapHash)
	factID := s.hasher.FactID(slotID, cand.Object, fragmentHash)

	f := &store.Fact{
		Domain:         cand.Domain,
		SourceURL:      cand.SourceURL,
		EntityID:       cand.EntityID,
		Predicate:      cand.Predicate,
		Object:         cand.Object,
		EvidenceType:   evidenceType,
		SourcePath:     cand.SourcePath,
		SupportingText: cand.SupportingText,
		AnchorMissing:  anchorMissing,
		SlotID:         slotID,
		FactID:         factID,
	}
	if a != nil {
		encoded, err := a.Encode()
		if err != nil {
			return nil, err
		}
		f.AnchorJSON = string(encoded)
	}

	var row *store.Fact
	var isNew bool
	var err error
	for attempt := range ingestRetries {
		f.ID = s.newID()
		row, isNew, err = s.store.AdvanceRevision(ctx, f)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrRevisionConflict) {
			return nil, err
		}
		s.logger.Debug("revision race lost, retrying",
			"slot_id", slotID, "attempt", attempt+1)
	}
	if err != nil {
		return nil, err
	}

	if isNew {
		s.logger.Info("fact revision written",
			"url", cand.SourceURL, "slot_id", slotID,
			"revision", row.Revision, "evidence_type", evidenceType,
			"anchor_missing", anchorMissing)
	}
	return &IngestResult{
		SlotID:        row.SlotID,
		FactID:        row.FactID,
		Revision:      row.Revision,
		IsNewRevision: isNew,
		EvidenceType:  row.EvidenceType,
		AnchorMissing: row.AnchorMissing,
	}, nil
}

// locate selects the identity locator per evidence type: char offsets for
// anchored text facts, the structural path for structured data. Facts with a
// missing anchor derive from the zero span so their identity is still
// deterministic and recomputable.
func locate(evidenceType string, a *anchor.Anchor, sourcePath string) (identity.Locator, string, string) {
	switch {
	case evidenceType == EvidenceStructuredData:
		return identity.Path(sourcePath), "", ""
	case a != nil:
		return identity.Span(a.CharStart, a.CharEnd), a.ExtractionTextHash, a.FragmentHash
	default:
		return identity.Span(0, 0), "", ""
	}
}
