package obs

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/malwarescan/precogs-api-sub001/idgen"
)

// Event types recorded by the grounding daemon.
const (
	EventSnapshotStored   = "snapshot_stored"
	EventFactIngested     = "fact_ingested"
	EventRevisionConflict = "revision_conflict"
	EventValidationRun    = "validation_run"
)

// Event is one domain-level occurrence worth keeping an operational trail of.
type Event struct {
	EventType string
	Domain    string
	SourceURL string
	SubjectID string // slot_id, fact_id, or run id, depending on the event
	Detail    string // optional JSON
	Success   bool
}

// EventLog writes grounding events.
type EventLog struct {
	db    *sql.DB
	newID idgen.Generator
}

// NewEventLog creates an event log backed by the telemetry database.
func NewEventLog(db *sql.DB) *EventLog {
	return &EventLog{db: db, newID: idgen.Prefixed("evt_", idgen.Default)}
}

// Record persists one event. Errors are logged, never returned: the event
// trail is advisory and must not fail the operation it describes.
func (l *EventLog) Record(ctx context.Context, e Event) {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO grounding_events (
			event_id, event_type, domain, source_url, subject_id, detail, success, created_at
		) VALUES (?,?,?,?,?,?,?,?)`,
		l.newID(), e.EventType, e.Domain, e.SourceURL, e.SubjectID, e.Detail,
		boolToInt(e.Success), time.Now().Unix())
	if err != nil {
		slog.Error("event log write failed", "error", err, "event_type", e.EventType)
	}
}

// RecentEvents returns the newest events of one type, or all types when
// eventType is empty.
func (l *EventLog) RecentEvents(ctx context.Context, eventType string, limit int) ([]*Event, error) {
	q := `SELECT event_type, domain, source_url, subject_id, detail, success
		FROM grounding_events`
	args := []any{}
	if eventType != "" {
		q += ` WHERE event_type = ?`
		args = append(args, eventType)
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var success int
		if err := rows.Scan(&e.EventType, &e.Domain, &e.SourceURL, &e.SubjectID, &e.Detail, &success); err != nil {
			return nil, err
		}
		e.Success = success != 0
		events = append(events, &e)
	}
	return events, rows.Err()
}

// Cleanup deletes events and heartbeats older than retentionDays.
func Cleanup(ctx context.Context, db *sql.DB, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().Unix() - int64(retentionDays)*86400
	for _, stmt := range []string{
		`DELETE FROM grounding_events WHERE created_at < ?`,
		`DELETE FROM worker_heartbeats WHERE timestamp < ?`,
		`DELETE FROM metrics_timeseries WHERE timestamp < ?`,
	} {
		if _, err := db.ExecContext(ctx, stmt, cutoff); err != nil {
			return err
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
