package grounding

import (
	"encoding/json"
	"fmt"

	"github.com/malwarescan/precogs-api-sub001/anchor"
	"github.com/malwarescan/precogs-api-sub001/identity"
)

// IdentityCheck is the result of re-deriving one stored fact's identities.
type IdentityCheck struct {
	FactRowID      string `json:"fact_row_id"`
	SlotID         string `json:"slot_id"`
	FactID         string `json:"fact_id"`
	RecomputedSlot string `json:"recomputed_slot_id"`
	RecomputedFact string `json:"recomputed_fact_id"`
	SlotMatches    bool   `json:"slot_matches"`
	FactMatches    bool   `json:"fact_matches"`
}

// RecomputeIdentity re-derives slot_id and fact_id for a stored fact from its
// recorded components, exactly as ingestion did. Any independent auditor with
// the fact row and the hash algorithm can reproduce this — that is the point
// of the identity scheme.
func RecomputeIdentity(f *Fact, h identity.Hasher) (*IdentityCheck, error) {
	var a *anchor.Anchor
	if f.AnchorJSON != "" {
		var decoded anchor.Anchor
		if err := json.Unmarshal([]byte(f.AnchorJSON), &decoded); err != nil {
			return nil, fmt.Errorf("decode stored anchor for fact %s: %w", f.ID, err)
		}
		a = &decoded
	}

	loc, snapHash, fragmentHash := locate(f.EvidenceType, a, f.SourcePath)
	slotID := h.SlotID(f.EntityID, f.Predicate, f.SourceURL, loc, snapHash)
	factID := h.FactID(slotID, f.Object, fragmentHash)

	return &IdentityCheck{
		FactRowID:      f.ID,
		SlotID:         f.SlotID,
		FactID:         f.FactID,
		RecomputedSlot: slotID,
		RecomputedFact: factID,
		SlotMatches:    slotID == f.SlotID,
		FactMatches:    factID == f.FactID,
	}, nil
}
