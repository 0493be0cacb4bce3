package store

// Snapshot is the canonical extracted text of one page generation. All
// character offsets in anchors are relative to CanonicalText; hashes are only
// comparable across snapshots sharing ExtractionMethod.
type Snapshot struct {
	ID                 string `json:"id"`
	Domain             string `json:"domain"`
	SourceURL          string `json:"source_url"`
	ExtractionMethod   string `json:"extraction_method"`
	CanonicalText      string `json:"canonical_text"`
	ExtractionTextHash string `json:"extraction_text_hash"`
	FetchedAt          int64  `json:"fetched_at"`
}

// Evidence types a fact can carry.
const (
	EvidenceTextExtraction = "text_extraction"
	EvidenceStructuredData = "structured_data"
	EvidenceUnknown        = "unknown"
)

// Fact is one revision of a claimed (entity, predicate, object) triple with
// provenance. Rows are append-only: a slot's value change appends a new row
// with revision+1 and previous_fact_id chained; nothing is ever deleted or
// rewritten, only superseded.
type Fact struct {
	ID             string `json:"id"`
	Domain         string `json:"domain"`
	SourceURL      string `json:"source_url"`
	EntityID       string `json:"entity_id"`
	Predicate      string `json:"predicate"`
	Object         string `json:"object"`
	EvidenceType   string `json:"evidence_type"`
	SourcePath     string `json:"source_path,omitempty"`
	AnchorJSON     string `json:"evidence_anchor,omitempty"`
	SupportingText string `json:"supporting_text,omitempty"`
	AnchorMissing  bool   `json:"anchor_missing"`
	SlotID         string `json:"slot_id"`
	FactID         string `json:"fact_id"`
	PreviousFactID string `json:"previous_fact_id,omitempty"`
	Revision       int    `json:"revision"`
	IsLatest       bool   `json:"is_latest"`
	CreatedAt      int64  `json:"created_at"`
}

// ValidationRun records one validation pass over a (domain, source_url).
type ValidationRun struct {
	ID            string  `json:"id"`
	Domain        string  `json:"domain"`
	SourceURL     string  `json:"source_url"`
	Validated     int     `json:"validated"`
	Passed        int     `json:"passed"`
	Failed        int     `json:"failed"`
	PassRate      float64 `json:"pass_rate"`
	CitationGrade bool    `json:"citation_grade"`
	HashAlgorithm string  `json:"hash_algorithm"`
	RanAt         int64   `json:"ran_at"`
}

// Stats holds aggregate counters for the grounding database.
type Stats struct {
	Snapshots      int `json:"snapshots"`
	Facts          int `json:"facts"`
	LatestFacts    int `json:"latest_facts"`
	ValidationRuns int `json:"validation_runs"`
}
