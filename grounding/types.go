// Package grounding is the evidence-anchored fact identity and validation
// engine.
//
// It snapshots a page's canonical extracted text, anchors facts to exact
// character spans of it, derives stable content-addressed identities for a
// fact's position (slot_id) and its value at a point in time (fact_id),
// versions facts across revisions, and independently re-validates that stored
// facts still match their claimed source text byte-for-byte.
package grounding

import (
	"github.com/malwarescan/precogs-api-sub001/grounding/internal/store"
)

// Re-export store types for the public API.
type (
	Snapshot      = store.Snapshot
	Fact          = store.Fact
	ValidationRun = store.ValidationRun
	Stats         = store.Stats
)

// Evidence types.
const (
	EvidenceTextExtraction = store.EvidenceTextExtraction
	EvidenceStructuredData = store.EvidenceStructuredData
	EvidenceUnknown        = store.EvidenceUnknown
)
