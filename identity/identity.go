// Package identity derives content-addressed identifiers for fact slots and
// fact values.
//
// The derivation is a public protocol contract: any independent party holding
// the same inputs and the same hash algorithm must be able to recompute the
// same identifiers without access to internal database keys. Every function
// here is pure — no I/O, no clock, no process state.
//
// Preimage layout (components joined with "|"):
//
//	slot_id = hash(entity_id | predicate | source_url | <locator> | extraction_text_hash)
//	fact_id = hash(slot_id | object_value | fragment_hash)
//
// where <locator> is "char_start|char_end" (decimal) for text-anchored facts
// and the structural source path for structured-data facts.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
)

// Algorithm names a supported content-hash function.
type Algorithm string

const (
	// SHA256 is the default algorithm. Digests are 64 hex characters.
	SHA256 Algorithm = "sha256"
	// BLAKE3 produces 256-bit digests, also 64 hex characters.
	BLAKE3 Algorithm = "blake3"
)

// Hasher computes hex-encoded content hashes with a fixed algorithm.
// The algorithm is explicit configuration, never an implicit global, so a
// reproducibility audit can record exactly what it ran with.
type Hasher struct {
	alg Algorithm
}

// NewHasher returns a Hasher for the given algorithm.
func NewHasher(alg Algorithm) (Hasher, error) {
	switch alg {
	case SHA256, BLAKE3:
		return Hasher{alg: alg}, nil
	case "":
		return Hasher{alg: SHA256}, nil
	}
	return Hasher{}, fmt.Errorf("identity: unknown hash algorithm %q", alg)
}

// MustHasher is NewHasher that panics on an unknown algorithm.
// For use with compile-time constant algorithms only.
func MustHasher(alg Algorithm) Hasher {
	h, err := NewHasher(alg)
	if err != nil {
		panic(err)
	}
	return h
}

// Algorithm reports the configured algorithm.
func (h Hasher) Algorithm() Algorithm {
	if h.alg == "" {
		return SHA256
	}
	return h.alg
}

// Sum returns the lowercase hex digest of s.
func (h Hasher) Sum(s string) string {
	switch h.Algorithm() {
	case BLAKE3:
		d := blake3.Sum256([]byte(s))
		return hex.EncodeToString(d[:])
	default:
		d := sha256.Sum256([]byte(s))
		return hex.EncodeToString(d[:])
	}
}

// Locator is where a claim sits within its source: either a half-open
// character span into a canonical text, or a structural path into a
// non-text source (e.g. a JSON pointer). Exactly one form is set.
type Locator struct {
	start, end int
	path       string
	structural bool
}

// Span returns a character-offset locator for text-anchored facts.
func Span(charStart, charEnd int) Locator {
	return Locator{start: charStart, end: charEnd}
}

// Path returns a structural locator for structured-data facts.
func Path(sourcePath string) Locator {
	return Locator{path: sourcePath, structural: true}
}

// Structural reports whether the locator is a structural path.
func (l Locator) Structural() bool { return l.structural }

// component renders the locator as its preimage component(s).
func (l Locator) component() string {
	if l.structural {
		return l.path
	}
	return strconv.Itoa(l.start) + "|" + strconv.Itoa(l.end)
}

// SlotID derives the stable identity of a claim position. It is unchanged
// across revaluation of the slot's value: only the entity, predicate, source
// URL, locator, and the snapshot generation the locator was computed against
// participate.
func (h Hasher) SlotID(entityID, predicate, sourceURL string, loc Locator, extractionTextHash string) string {
	return h.Sum(strings.Join([]string{
		entityID, predicate, sourceURL, loc.component(), extractionTextHash,
	}, "|"))
}

// FactID derives the identity of a specific value at a specific anchor.
// It changes whenever the object value or its supporting fragment changes.
func (h Hasher) FactID(slotID, objectValue, fragmentHash string) string {
	return h.Sum(strings.Join([]string{slotID, objectValue, fragmentHash}, "|"))
}
