// Package obs provides SQLite-native operational telemetry for the grounding
// daemon: domain event logs, buffered timeseries metrics, and worker
// heartbeats. Everything writes to a dedicated telemetry database, separate
// from the grounding store, so telemetry load never contends with fact
// writes.
//
// All persistence is best-effort and non-blocking: a failing telemetry store
// is logged via slog but never propagates into request handling.
package obs

import "database/sql"

// Schema contains the DDL for the telemetry tables.
const Schema = `
CREATE TABLE IF NOT EXISTS worker_heartbeats (
    heartbeat_id TEXT PRIMARY KEY DEFAULT ('hb_' || hex(randomblob(16))),
    worker_name TEXT NOT NULL,
    hostname TEXT NOT NULL,
    worker_pid INTEGER NOT NULL,
    timestamp INTEGER NOT NULL,
    goroutines_count INTEGER,
    memory_alloc_mb REAL,
    gc_count INTEGER,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_heartbeats_worker_time
    ON worker_heartbeats(worker_name, timestamp DESC);

CREATE TABLE IF NOT EXISTS metrics_timeseries (
    metric_id TEXT PRIMARY KEY DEFAULT ('met_' || hex(randomblob(16))),
    metric_name TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    value REAL NOT NULL,
    labels TEXT,
    unit TEXT,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_metrics_name_time
    ON metrics_timeseries(metric_name, timestamp DESC);

CREATE TABLE IF NOT EXISTS grounding_events (
    event_id TEXT PRIMARY KEY,
    event_type TEXT NOT NULL,
    domain TEXT,
    source_url TEXT,
    subject_id TEXT,
    detail TEXT,
    success INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_events_type_time
    ON grounding_events(event_type, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_events_url
    ON grounding_events(source_url, created_at DESC);
`

// Init applies the telemetry schema.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
