package grounding

import (
	"context"
)

// ClassifyEvidence assigns an evidence type to a fact that lacks one
// (migration/backfill path). A present anchor with supporting text of at
// least minSupport characters is text_extraction; an unanchored non-empty
// triple with short or absent supporting text is structured_data; anything else
// stays unknown. Once assigned, the classification is authoritative metadata
// and is not re-derived on reads.
func ClassifyEvidence(hasAnchor bool, object, supportingText string, minSupport int) string {
	switch {
	case hasAnchor && len(supportingText) >= minSupport:
		return EvidenceTextExtraction
	case !hasAnchor && object != "" && len(supportingText) < minSupport:
		return EvidenceStructuredData
	default:
		return EvidenceUnknown
	}
}

// BackfillResult summarizes one classification backfill pass.
type BackfillResult struct {
	Examined       int `json:"examined"`
	TextExtraction int `json:"text_extraction"`
	StructuredData int `json:"structured_data"`
	StillUnknown   int `json:"still_unknown"`
}

// BackfillEvidenceTypes classifies stored facts whose evidence type is still
// unknown. Identity fields and the revision chain are untouched — only the
// classification metadata (and its derived anchor_missing flag) is written.
func (s *Service) BackfillEvidenceTypes(ctx context.Context) (*BackfillResult, error) {
	facts, err := s.store.UnknownTypeFacts(ctx, s.config.Classify.BackfillBatch)
	if err != nil {
		return nil, err
	}

	res := &BackfillResult{Examined: len(facts)}
	for _, f := range facts {
		et := ClassifyEvidence(f.AnchorJSON != "", f.Object, f.SupportingText, s.config.Classify.MinSupportingText)
		switch et {
		case EvidenceTextExtraction:
			res.TextExtraction++
		case EvidenceStructuredData:
			res.StructuredData++
		default:
			res.StillUnknown++
			continue
		}
		anchorMissing := et == EvidenceTextExtraction && f.AnchorJSON == ""
		if err := s.store.SetEvidenceType(ctx, f.ID, et, anchorMissing); err != nil {
			return nil, err
		}
	}

	s.logger.Info("evidence-type backfill",
		"examined", res.Examined,
		"text_extraction", res.TextExtraction,
		"structured_data", res.StructuredData,
		"still_unknown", res.StillUnknown)
	return res, nil
}
