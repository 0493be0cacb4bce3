package grounding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/malwarescan/precogs-api-sub001/anchor"
	"github.com/malwarescan/precogs-api-sub001/identity"
)

func testHasher(t *testing.T) identity.Hasher {
	t.Helper()
	h, err := identity.NewHasher(identity.SHA256)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func makeSnap(h identity.Hasher, text string) *Snapshot {
	return &Snapshot{
		Domain:             testDomain,
		SourceURL:          testURL,
		ExtractionMethod:   "pagetext/md.v2",
		ExtractionTextHash: h.Sum(text),
		CanonicalText:      text,
	}
}

// makeTextFact builds a stored text_extraction fact anchored at
// text[start:end] of the given snapshot.
func makeTextFact(t *testing.T, h identity.Hasher, snap *Snapshot, start, end int) *Fact {
	t.Helper()
	a, err := anchor.Build(snap.CanonicalText, start, end, snap.ExtractionTextHash, h)
	if err != nil {
		t.Fatalf("build anchor: %v", err)
	}
	raw, err := a.Encode()
	if err != nil {
		t.Fatal(err)
	}
	return &Fact{
		Domain:         snap.Domain,
		SourceURL:      snap.SourceURL,
		EntityID:       "acme",
		Predicate:      "offers",
		Object:         "same-day delivery",
		EvidenceType:   EvidenceTextExtraction,
		SupportingText: snap.CanonicalText[start:end],
		AnchorJSON:     string(raw),
		SlotID:         "slot-x",
		FactID:         "fact-x",
		Revision:       1,
	}
}

func validationDefaults() ValidationConfig {
	cfg := &Config{}
	cfg.defaults()
	return cfg.Validation
}

func TestValidateSnapshot_RoundTripPasses(t *testing.T) {
	// WHAT: a fact built against the current snapshot passes all four checks.
	h := testHasher(t)
	snap := makeSnap(h, testText)
	f := makeTextFact(t, h, snap, 0, 9) // "Acme Corp"

	report, err := ValidateSnapshot(snap, []*Fact{f}, h, validationDefaults())
	if err != nil {
		t.Fatal(err)
	}
	if report.Validated != 1 || report.Passed != 1 || report.Failed != 0 {
		t.Fatalf("report = %+v", report)
	}
	if report.Results[0].Kind != Passed {
		t.Fatalf("kind = %s", report.Results[0].Kind)
	}
}

func TestValidateSnapshot_StaleAnchor(t *testing.T) {
	// WHAT: after the page is re-extracted, an anchor bound to the previous
	// generation fails as stale even when its offsets still fit.
	// WHY: offsets are only meaningful within the generation they were minted
	// against.
	h := testHasher(t)
	oldSnap := makeSnap(h, testText)
	f := makeTextFact(t, h, oldSnap, 0, 9)

	newSnap := makeSnap(h, "Acme Corp offers next-day delivery.")
	report, err := ValidateSnapshot(newSnap, []*Fact{f}, h, validationDefaults())
	if err != nil {
		t.Fatal(err)
	}
	if report.Failed != 1 || report.Failures[0].Kind != StaleAnchor {
		t.Fatalf("report = %+v", report)
	}
}

func TestValidateSnapshot_OrderedChecks(t *testing.T) {
	// WHAT: each corrupted field fails at its own check, in order — a stale
	// anchor reports stale even if its range is also bad, a bad range reports
	// before slice comparison, and so on.
	h := testHasher(t)
	snap := makeSnap(h, testText)

	rawAnchor := func(start, end int, gen, frag string) string {
		b, err := json.Marshal(anchor.Anchor{
			CharStart:          start,
			CharEnd:            end,
			FragmentHash:       frag,
			ExtractionTextHash: gen,
		})
		if err != nil {
			t.Fatal(err)
		}
		return string(b)
	}
	gen := snap.ExtractionTextHash
	frag := h.Sum(testText[0:9])

	cases := []struct {
		name       string
		anchorJSON string
		supporting string
		want       FailureKind
	}{
		{"stale wins over bad range", rawAnchor(9, 0, "deadbeef", frag), "Acme Corp", StaleAnchor},
		{"end before start", rawAnchor(9, 0, gen, frag), "Acme Corp", InvalidRange},
		{"end equals start", rawAnchor(4, 4, gen, frag), "", InvalidRange},
		{"negative start", rawAnchor(-1, 9, gen, frag), "Acme Corp", InvalidRange},
		{"end past text", rawAnchor(0, len(testText)+1, gen, frag), "Acme Corp", InvalidRange},
		{"slice mismatch", rawAnchor(0, 9, gen, frag), "ACME CORP", SliceMismatch},
		{"slice not trimmed", rawAnchor(0, 10, gen, h.Sum(testText[0:10])), "Acme Corp", SliceMismatch},
		{"fragment hash mismatch", rawAnchor(0, 9, gen, h.Sum("other")), "Acme Corp", FragmentHashMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := makeTextFact(t, h, snap, 0, 9)
			f.AnchorJSON = tc.anchorJSON
			f.SupportingText = tc.supporting

			report, err := ValidateSnapshot(snap, []*Fact{f}, h, validationDefaults())
			if err != nil {
				t.Fatal(err)
			}
			if report.Failed != 1 {
				t.Fatalf("report = %+v", report)
			}
			if got := report.Failures[0].Kind; got != tc.want {
				t.Fatalf("kind = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestValidateSnapshot_MissingAnchor(t *testing.T) {
	h := testHasher(t)
	snap := makeSnap(h, testText)
	f := makeTextFact(t, h, snap, 0, 9)
	f.AnchorJSON = ""

	report, err := ValidateSnapshot(snap, []*Fact{f}, h, validationDefaults())
	if err != nil {
		t.Fatal(err)
	}
	if report.Failed != 1 || report.Failures[0].Kind != MissingAnchor {
		t.Fatalf("report = %+v", report)
	}
}

func TestValidateSnapshot_StructuredFacts(t *testing.T) {
	h := testHasher(t)
	snap := makeSnap(h, testText)

	ok := &Fact{EvidenceType: EvidenceStructuredData, SourcePath: "/@graph/0/telephone", FactID: "f1"}
	bad := &Fact{EvidenceType: EvidenceStructuredData, FactID: "f2"}

	report, err := ValidateSnapshot(snap, []*Fact{ok, bad}, h, validationDefaults())
	if err != nil {
		t.Fatal(err)
	}
	if report.Passed != 1 || report.Failed != 1 {
		t.Fatalf("report = %+v", report)
	}
	if report.Failures[0].Kind != MissingAnchor {
		t.Fatalf("kind = %s", report.Failures[0].Kind)
	}
}

func TestValidateSnapshot_UnknownTypeSkipped(t *testing.T) {
	// WHAT: unclassified facts count as skipped, not failed — they must not
	// drag down the pass rate before backfill classifies them.
	h := testHasher(t)
	snap := makeSnap(h, testText)
	f := &Fact{EvidenceType: EvidenceUnknown, FactID: "f1"}

	report, err := ValidateSnapshot(snap, []*Fact{f}, h, validationDefaults())
	if err != nil {
		t.Fatal(err)
	}
	if report.Validated != 0 || report.Skipped != 1 || report.Failed != 0 {
		t.Fatalf("report = %+v", report)
	}
}

func TestValidateSnapshot_CorruptSnapshotAborts(t *testing.T) {
	// WHAT: when the stored hash disagrees with the stored text, no report is
	// produced at all.
	h := testHasher(t)
	snap := makeSnap(h, testText)
	snap.CanonicalText = "tampered"

	_, err := ValidateSnapshot(snap, nil, h, validationDefaults())
	if !errors.Is(err, ErrSnapshotCorrupt) {
		t.Fatalf("err = %v, want ErrSnapshotCorrupt", err)
	}
}

func TestValidateSnapshot_CitationGrade(t *testing.T) {
	// WHAT: citation grade needs BOTH pass_rate >= 0.95 AND passed >= 10.
	// 11/12 is a 0.917 pass rate — high, but not citation grade; 9/9 is a
	// perfect rate but too few passes.
	h := testHasher(t)
	snap := makeSnap(h, testText)

	build := func(passing, failing int) []*Fact {
		facts := make([]*Fact, 0, passing+failing)
		for i := 0; i < passing; i++ {
			f := makeTextFact(t, h, snap, 0, 9)
			f.FactID = fmt.Sprintf("pass-%d", i)
			facts = append(facts, f)
		}
		for i := 0; i < failing; i++ {
			f := makeTextFact(t, h, snap, 0, 9)
			f.FactID = fmt.Sprintf("fail-%d", i)
			f.SupportingText = "not the slice"
			facts = append(facts, f)
		}
		return facts
	}

	cases := []struct {
		name              string
		passing, failing  int
		wantRateLow       float64
		wantCitationGrade bool
	}{
		{"all pass, enough volume", 12, 0, 1.0, true},
		{"11 of 12", 11, 1, 0.91, false},
		{"perfect rate, too few", 9, 0, 1.0, false},
		{"19 of 20", 19, 1, 0.95, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			report, err := ValidateSnapshot(snap, build(tc.passing, tc.failing), h, validationDefaults())
			if err != nil {
				t.Fatal(err)
			}
			if report.PassRate < tc.wantRateLow {
				t.Fatalf("pass_rate = %f", report.PassRate)
			}
			if report.CitationGrade != tc.wantCitationGrade {
				t.Fatalf("citation_grade = %v, want %v (passed=%d rate=%f)",
					report.CitationGrade, tc.wantCitationGrade, report.Passed, report.PassRate)
			}
		})
	}
}

func TestValidate_EndToEndRecordsRun(t *testing.T) {
	// WHAT: service-level Validate reads snapshot+facts consistently, returns
	// the report, and persists a validation run row.
	svc := newTestService(t)
	snap := putTestSnapshot(t, svc)
	ctx := context.Background()

	if _, err := svc.IngestFact(ctx, anchoredCandidate(t, svc, snap, "acme", "offers", "same-day delivery", 0, 9)); err != nil {
		t.Fatal(err)
	}

	report, err := svc.Validate(ctx, testDomain, testURL)
	if err != nil {
		t.Fatal(err)
	}
	if report.Validated != 1 || report.Passed != 1 {
		t.Fatalf("report = %+v", report)
	}

	runs, err := svc.ValidationRuns(ctx, testURL, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Passed != 1 {
		t.Fatalf("runs = %+v", runs)
	}
}

func TestValidate_StaleAfterReExtraction(t *testing.T) {
	// WHAT: the end-to-end re-extraction path — ingest against one generation,
	// replace the snapshot, validate: the fact fails stale, the report still
	// counts it.
	svc := newTestService(t)
	snap := putTestSnapshot(t, svc)
	ctx := context.Background()

	if _, err := svc.IngestFact(ctx, anchoredCandidate(t, svc, snap, "acme", "offers", "same-day delivery", 0, 9)); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.PutSnapshot(ctx, testDomain, testURL, "pagetext/md.v2", "Acme Corp offers next-day delivery."); err != nil {
		t.Fatal(err)
	}

	report, err := svc.Validate(ctx, testDomain, testURL)
	if err != nil {
		t.Fatal(err)
	}
	if report.Failed != 1 || report.Failures[0].Kind != StaleAnchor {
		t.Fatalf("report = %+v", report)
	}
}

func TestValidate_NoSnapshot(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Validate(context.Background(), "nope.test", "https://nope.test/")
	if !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("err = %v, want ErrSnapshotNotFound", err)
	}
}

func TestSweep_CoversAllSnapshots(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		url := fmt.Sprintf("https://acme.test/page-%d", i)
		if _, err := svc.PutSnapshot(ctx, testDomain, url, "pagetext/md.v2", testText); err != nil {
			t.Fatal(err)
		}
	}
	results, err := svc.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("sweep lines = %d", len(results))
	}
	for _, r := range results {
		if r.Error != "" {
			t.Fatalf("sweep line error: %s", r.Error)
		}
	}
}
