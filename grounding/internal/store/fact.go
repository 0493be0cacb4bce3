package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/malwarescan/precogs-api-sub001/dbopen"
)

const factColumns = `id, domain, source_url, entity_id, predicate, object,
	evidence_type, source_path, anchor_json, supporting_text, anchor_missing,
	slot_id, fact_id, previous_fact_id, revision, is_latest, created_at`

// AdvanceRevision applies one revision transition for f's slot inside a
// single transaction and returns the resulting current row:
//
//   - no current revision        → insert f as revision 1
//   - current fact_id == f's     → no write (idempotent re-ingestion)
//   - changed value or fragment  → append revision+1, chain previous_fact_id,
//     demote the old row from latest
//
// The second return value reports whether a new row was written. Two writers
// racing to append the same revision collide on the (source_url, slot_id,
// revision) unique index; the loser gets ErrRevisionConflict and must re-read
// and recompute. previous_fact_id and revision are never rewritten after
// insert — the chain is append-only.
func (s *Store) AdvanceRevision(ctx context.Context, f *Fact) (*Fact, bool, error) {
	var out *Fact
	var isNew bool
	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		out, isNew = nil, false
		cur, err := latestFactTx(tx, f.SourceURL, f.SlotID)
		if err != nil {
			return err
		}

		if cur != nil && cur.FactID == f.FactID {
			out = cur
			return nil
		}

		if cur == nil {
			f.Revision = 1
			f.PreviousFactID = ""
		} else {
			f.Revision = cur.Revision + 1
			f.PreviousFactID = cur.FactID
			if _, err := tx.Exec(
				`UPDATE facts SET is_latest = 0 WHERE source_url = ? AND slot_id = ? AND is_latest = 1`,
				f.SourceURL, f.SlotID); err != nil {
				return fmt.Errorf("demote latest: %w", err)
			}
		}

		f.IsLatest = true
		if f.CreatedAt == 0 {
			f.CreatedAt = time.Now().UnixMilli()
		}
		if err := insertFactTx(tx, f); err != nil {
			if isUniqueViolation(err) {
				return ErrRevisionConflict
			}
			return err
		}
		out, isNew = f, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, isNew, nil
}

func insertFactTx(tx *sql.Tx, f *Fact) error {
	_, err := tx.Exec(
		`INSERT INTO facts (`+factColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Domain, f.SourceURL, f.EntityID, f.Predicate, f.Object,
		f.EvidenceType, f.SourcePath, f.AnchorJSON, f.SupportingText, f.AnchorMissing,
		f.SlotID, f.FactID, nullable(f.PreviousFactID), f.Revision, f.IsLatest, f.CreatedAt,
	)
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// LatestFact returns the current revision for (sourceURL, slotID), or nil.
func (s *Store) LatestFact(ctx context.Context, sourceURL, slotID string) (*Fact, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+factColumns+` FROM facts
		WHERE source_url = ? AND slot_id = ? AND is_latest = 1`, sourceURL, slotID)
	return scanFact(row.Scan)
}

func latestFactTx(tx *sql.Tx, sourceURL, slotID string) (*Fact, error) {
	row := tx.QueryRow(
		`SELECT `+factColumns+` FROM facts
		WHERE source_url = ? AND slot_id = ? AND is_latest = 1`, sourceURL, slotID)
	return scanFact(row.Scan)
}

// LatestFacts returns all current-revision facts for a source URL in stable
// insertion order.
func (s *Store) LatestFacts(ctx context.Context, sourceURL string) ([]*Fact, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+factColumns+` FROM facts
		WHERE source_url = ? AND is_latest = 1
		ORDER BY created_at, rowid`, sourceURL)
	if err != nil {
		return nil, err
	}
	return collectFacts(rows)
}

// SnapshotWithLatestFacts reads a snapshot and its current facts at one
// consistent point. A fact anchored to generation N while the snapshot has
// advanced to N+1 must surface as StaleAnchor in validation — it must never
// be masked by reading the two out of step.
func (s *Store) SnapshotWithLatestFacts(ctx context.Context, domain, sourceURL string) (*Snapshot, []*Fact, error) {
	var snap *Snapshot
	var facts []*Fact
	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		var err error
		snap, err = getSnapshotTx(tx, domain, sourceURL)
		if err != nil || snap == nil {
			return err
		}
		rows, err := tx.Query(
			`SELECT `+factColumns+` FROM facts
			WHERE source_url = ? AND is_latest = 1
			ORDER BY created_at, rowid`, sourceURL)
		if err != nil {
			return err
		}
		facts, err = collectFacts(rows)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return snap, facts, nil
}

// FactHistory returns the full revision chain for a slot, oldest first.
// The chain is represented as this index keyed by slot_id and ordered by
// revision, never as traversable live references.
func (s *Store) FactHistory(ctx context.Context, sourceURL, slotID string) ([]*Fact, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+factColumns+` FROM facts
		WHERE source_url = ? AND slot_id = ?
		ORDER BY revision ASC`, sourceURL, slotID)
	if err != nil {
		return nil, err
	}
	return collectFacts(rows)
}

// UnknownTypeFacts returns facts still awaiting evidence-type backfill.
func (s *Store) UnknownTypeFacts(ctx context.Context, limit int) ([]*Fact, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+factColumns+` FROM facts
		WHERE evidence_type = ? ORDER BY created_at LIMIT ?`,
		EvidenceUnknown, limit)
	if err != nil {
		return nil, err
	}
	return collectFacts(rows)
}

// SetEvidenceType records a backfilled classification. Once assigned it is
// authoritative metadata; identity fields are untouched.
func (s *Store) SetEvidenceType(ctx context.Context, id, evidenceType string, anchorMissing bool) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE facts SET evidence_type = ?, anchor_missing = ? WHERE id = ?`,
		evidenceType, anchorMissing, id)
	return err
}

func collectFacts(rows *sql.Rows) ([]*Fact, error) {
	defer rows.Close()
	var facts []*Fact
	for rows.Next() {
		f, err := scanFact(rows.Scan)
		if err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

func scanFact(scan func(...any) error) (*Fact, error) {
	var f Fact
	var anchorMissing, isLatest int
	var prev sql.NullString
	err := scan(
		&f.ID, &f.Domain, &f.SourceURL, &f.EntityID, &f.Predicate, &f.Object,
		&f.EvidenceType, &f.SourcePath, &f.AnchorJSON, &f.SupportingText, &anchorMissing,
		&f.SlotID, &f.FactID, &prev, &f.Revision, &isLatest, &f.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan fact: %w", err)
	}
	f.AnchorMissing = anchorMissing != 0
	f.IsLatest = isLatest != 0
	f.PreviousFactID = prev.String
	return &f, nil
}
