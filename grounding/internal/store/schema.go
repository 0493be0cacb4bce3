package store

import "database/sql"

// Schema is the complete grounding schema.
//
// snapshots: exactly one row per (domain, source_url). Re-extraction replaces
// the row wholesale — canonical_text and extraction_text_hash always change
// together inside one statement, so a reader can never observe a hash without
// its matching text generation.
//
// facts: append-only revision ledger. The UNIQUE(source_url, slot_id,
// revision) index is the optimistic-concurrency arena: of two writers racing
// to insert revision K for one slot, exactly one insert succeeds.
const Schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    id                   TEXT PRIMARY KEY,
    domain               TEXT NOT NULL,
    source_url           TEXT NOT NULL,
    extraction_method    TEXT NOT NULL,
    canonical_text       TEXT NOT NULL,
    extraction_text_hash TEXT NOT NULL,
    fetched_at           INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_snapshots_domain_url ON snapshots(domain, source_url);
CREATE INDEX IF NOT EXISTS idx_snapshots_url ON snapshots(source_url);

CREATE TABLE IF NOT EXISTS facts (
    id               TEXT PRIMARY KEY,
    domain           TEXT NOT NULL,
    source_url       TEXT NOT NULL,
    entity_id        TEXT NOT NULL,
    predicate        TEXT NOT NULL,
    object           TEXT NOT NULL DEFAULT '',
    evidence_type    TEXT NOT NULL DEFAULT 'unknown',
    source_path      TEXT NOT NULL DEFAULT '',
    anchor_json      TEXT NOT NULL DEFAULT '',
    supporting_text  TEXT NOT NULL DEFAULT '',
    anchor_missing   INTEGER NOT NULL DEFAULT 0,
    slot_id          TEXT NOT NULL,
    fact_id          TEXT NOT NULL,
    previous_fact_id TEXT,
    revision         INTEGER NOT NULL,
    is_latest        INTEGER NOT NULL DEFAULT 1,
    created_at       INTEGER NOT NULL,
    UNIQUE (source_url, slot_id, revision)
);
CREATE INDEX IF NOT EXISTS idx_facts_slot ON facts(source_url, slot_id, revision DESC);
CREATE INDEX IF NOT EXISTS idx_facts_latest ON facts(source_url, is_latest);
CREATE INDEX IF NOT EXISTS idx_facts_domain ON facts(domain);

-- Validation run history (observability)
CREATE TABLE IF NOT EXISTS validation_runs (
    id             TEXT PRIMARY KEY,
    domain         TEXT NOT NULL,
    source_url     TEXT NOT NULL,
    validated      INTEGER NOT NULL,
    passed         INTEGER NOT NULL,
    failed         INTEGER NOT NULL,
    pass_rate      REAL NOT NULL,
    citation_grade INTEGER NOT NULL DEFAULT 0,
    hash_algorithm TEXT NOT NULL DEFAULT 'sha256',
    ran_at         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_validation_runs_url ON validation_runs(source_url, ran_at DESC);
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
