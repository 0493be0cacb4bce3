package anchor

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/malwarescan/precogs-api-sub001/identity"
)

var hasher = identity.MustHasher(identity.SHA256)

func TestBuild(t *testing.T) {
	// WHAT: Build over a valid range computes the fragment hash of the slice.
	text := "Acme Corp offers same-day delivery."
	snapHash := hasher.Sum(text)

	a, err := Build(text, 0, 10, snapHash, hasher)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if a.FragmentHash != hasher.Sum("Acme Corp ") {
		t.Errorf("fragment_hash = %q, want hash of %q", a.FragmentHash, "Acme Corp ")
	}
	if a.ExtractionTextHash != snapHash {
		t.Error("anchor not bound to snapshot hash")
	}
}

func TestBuild_RangeErrors(t *testing.T) {
	text := "Acme Corp offers same-day delivery."
	cases := []struct {
		name       string
		start, end int
	}{
		{"end before start", 20, 10},
		{"empty", 5, 5},
		{"negative start", -1, 10},
		{"end past text", 0, len(text) + 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Build(text, tc.start, tc.end, "", hasher); !errors.Is(err, ErrRange) {
				t.Fatalf("Build(%d, %d) err = %v, want ErrRange", tc.start, tc.end, err)
			}
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	text := "Acme Corp offers same-day delivery."
	a, err := Build(text, 10, 16, hasher.Sum(text), hasher)
	if err != nil {
		t.Fatal(err)
	}
	data, err := a.Encode()
	if err != nil {
		t.Fatal(err)
	}
	got, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if *got != *a {
		t.Fatalf("round trip: got %+v, want %+v", got, a)
	}
}

func TestParse_Malformed(t *testing.T) {
	// WHAT: Parse rejects payloads missing required fields or with wrong types.
	// WHY: Parse is the single admission point for untrusted anchors — a
	// partial anchor must never slip through to the validator.
	valid := map[string]any{
		"char_start":           0,
		"char_end":             10,
		"fragment_hash":        hasher.Sum("Acme Corp "),
		"extraction_text_hash": hasher.Sum("x"),
	}
	mutate := func(drop string, set map[string]any) []byte {
		m := make(map[string]any, len(valid))
		for k, v := range valid {
			m[k] = v
		}
		delete(m, drop)
		for k, v := range set {
			m[k] = v
		}
		data, _ := json.Marshal(m)
		return data
	}

	cases := []struct {
		name string
		data []byte
	}{
		{"not json", []byte("{")},
		{"missing char_start", mutate("char_start", nil)},
		{"missing char_end", mutate("char_end", nil)},
		{"missing fragment_hash", mutate("fragment_hash", nil)},
		{"missing extraction_text_hash", mutate("extraction_text_hash", nil)},
		{"string offsets", mutate("", map[string]any{"char_start": "0"})},
		{"negative start", mutate("", map[string]any{"char_start": -3})},
		{"end not after start", mutate("", map[string]any{"char_end": 0})},
		{"non-hex fragment hash", mutate("", map[string]any{"fragment_hash": "ZZZZ"})},
		{"empty snapshot hash", mutate("", map[string]any{"extraction_text_hash": ""})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.data); !errors.Is(err, ErrMalformed) {
				t.Fatalf("Parse err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestParse_KeepsSelector(t *testing.T) {
	data := []byte(`{"char_start":0,"char_end":4,"fragment_hash":"abcd","extraction_text_hash":"beef","source_selector":"main > p"}`)
	a, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if a.SourceSelector != "main > p" {
		t.Errorf("source_selector = %q", a.SourceSelector)
	}
}
