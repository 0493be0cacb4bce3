// Package anchor builds and parses evidence anchors.
//
// An anchor pins a fact to an exact character range of a canonical text
// snapshot. It carries its own fragment hash and the hash of the snapshot
// generation it was computed against, so downstream consumers can verify the
// binding byte-for-byte without trusting the producer.
//
// Parse is the single point where untrusted anchor payloads are admitted into
// the system: every required field is checked for presence, type, and shape
// before a typed Anchor is returned.
package anchor

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/malwarescan/precogs-api-sub001/identity"
)

// Anchor pins a fact to a half-open character range [CharStart, CharEnd)
// of one snapshot generation's canonical text.
type Anchor struct {
	CharStart          int    `json:"char_start"`
	CharEnd            int    `json:"char_end"`
	FragmentHash       string `json:"fragment_hash"`
	ExtractionTextHash string `json:"extraction_text_hash"`
	// SourceSelector is a structural locator (CSS/XPath) retained for human
	// debugging only. It is never authoritative.
	SourceSelector string `json:"source_selector,omitempty"`
}

// ErrRange is returned by Build when the requested range is empty, negative,
// or exceeds the text length.
var ErrRange = errors.New("anchor: range out of bounds")

// ErrMalformed is returned by Parse when a payload is missing required
// fields or carries values of the wrong type or shape.
var ErrMalformed = errors.New("anchor: malformed payload")

// Build constructs an anchor over text[charStart:charEnd]. snapshotHash is
// the extraction_text_hash of the snapshot generation text belongs to; it
// binds the anchor to that generation, not just to a URL.
func Build(text string, charStart, charEnd int, snapshotHash string, h identity.Hasher) (*Anchor, error) {
	if charStart < 0 || charEnd <= charStart || charEnd > len(text) {
		return nil, fmt.Errorf("%w: [%d:%d) against %d chars", ErrRange, charStart, charEnd, len(text))
	}
	return &Anchor{
		CharStart:          charStart,
		CharEnd:            charEnd,
		FragmentHash:       h.Sum(text[charStart:charEnd]),
		ExtractionTextHash: snapshotHash,
	}, nil
}

// rawAnchor mirrors the wire shape with optional fields, so Parse can tell
// "absent" apart from "zero value".
type rawAnchor struct {
	CharStart          *int    `json:"char_start"`
	CharEnd            *int    `json:"char_end"`
	FragmentHash       *string `json:"fragment_hash"`
	ExtractionTextHash *string `json:"extraction_text_hash"`
	SourceSelector     string  `json:"source_selector"`
}

// Parse validates an untrusted anchor payload and returns a typed Anchor.
// All four required fields must be present: char_start and char_end as
// non-negative integers with char_end > char_start, fragment_hash and
// extraction_text_hash as non-empty lowercase hex strings.
func Parse(data []byte) (*Anchor, error) {
	var raw rawAnchor
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw.CharStart == nil || raw.CharEnd == nil {
		return nil, fmt.Errorf("%w: char_start and char_end are required", ErrMalformed)
	}
	if raw.FragmentHash == nil || raw.ExtractionTextHash == nil {
		return nil, fmt.Errorf("%w: fragment_hash and extraction_text_hash are required", ErrMalformed)
	}
	if *raw.CharStart < 0 || *raw.CharEnd < 0 {
		return nil, fmt.Errorf("%w: negative offsets", ErrMalformed)
	}
	if *raw.CharEnd <= *raw.CharStart {
		return nil, fmt.Errorf("%w: char_end %d must exceed char_start %d", ErrMalformed, *raw.CharEnd, *raw.CharStart)
	}
	if !isHexHash(*raw.FragmentHash) {
		return nil, fmt.Errorf("%w: fragment_hash is not a hex string", ErrMalformed)
	}
	if !isHexHash(*raw.ExtractionTextHash) {
		return nil, fmt.Errorf("%w: extraction_text_hash is not a hex string", ErrMalformed)
	}
	return &Anchor{
		CharStart:          *raw.CharStart,
		CharEnd:            *raw.CharEnd,
		FragmentHash:       *raw.FragmentHash,
		ExtractionTextHash: *raw.ExtractionTextHash,
		SourceSelector:     raw.SourceSelector,
	}, nil
}

func isHexHash(s string) bool {
	if len(s) == 0 || len(s)%2 != 0 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Encode renders the anchor in its wire shape.
func (a *Anchor) Encode() ([]byte, error) {
	return json.Marshal(a)
}
