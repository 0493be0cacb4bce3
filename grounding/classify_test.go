package grounding

import "testing"

func TestClassifyEvidence(t *testing.T) {
	const minSupport = 20
	longText := "Acme Corp offers same-day delivery across the region."

	cases := []struct {
		name       string
		hasAnchor  bool
		object     string
		supporting string
		want       string
	}{
		{"anchored with prose", true, "same-day delivery", longText, EvidenceTextExtraction},
		{"bare triple", false, "+1-555-0100", "", EvidenceStructuredData},
		{"short snippet triple", false, "+1-555-0100", "call us", EvidenceStructuredData},
		{"anchor but trivial support", true, "x", "short", EvidenceUnknown},
		{"no anchor, long prose", false, "x", longText, EvidenceUnknown},
		{"empty everything", false, "", "", EvidenceUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyEvidence(tc.hasAnchor, tc.object, tc.supporting, minSupport)
			if got != tc.want {
				t.Fatalf("ClassifyEvidence = %q, want %q", got, tc.want)
			}
		})
	}
}
