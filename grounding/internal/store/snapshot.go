package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UpsertSnapshot inserts the snapshot or replaces the existing generation for
// its (domain, source_url) wholesale. Text and hash travel in the same
// statement: both are visible together or neither. Anchors minted against the
// prior generation become stale by construction once extraction_text_hash
// changes — the validator flags them, nothing here tries to repair them.
func (s *Store) UpsertSnapshot(ctx context.Context, snap *Snapshot) error {
	if snap.FetchedAt == 0 {
		snap.FetchedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO snapshots (id, domain, source_url, extraction_method, canonical_text, extraction_text_hash, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain, source_url) DO UPDATE SET
			extraction_method    = excluded.extraction_method,
			canonical_text       = excluded.canonical_text,
			extraction_text_hash = excluded.extraction_text_hash,
			fetched_at           = excluded.fetched_at`,
		snap.ID, snap.Domain, snap.SourceURL, snap.ExtractionMethod,
		snap.CanonicalText, snap.ExtractionTextHash, snap.FetchedAt,
	)
	return err
}

// GetSnapshot retrieves the snapshot for (domain, source_url), or nil if none
// exists.
func (s *Store) GetSnapshot(ctx context.Context, domain, sourceURL string) (*Snapshot, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, domain, source_url, extraction_method, canonical_text, extraction_text_hash, fetched_at
		FROM snapshots WHERE domain = ? AND source_url = ?`, domain, sourceURL)
	return scanSnapshot(row.Scan)
}

// getSnapshotTx is GetSnapshot inside an open transaction, so a validation
// run reads the snapshot and its facts at one consistent point.
func getSnapshotTx(tx *sql.Tx, domain, sourceURL string) (*Snapshot, error) {
	row := tx.QueryRow(
		`SELECT id, domain, source_url, extraction_method, canonical_text, extraction_text_hash, fetched_at
		FROM snapshots WHERE domain = ? AND source_url = ?`, domain, sourceURL)
	return scanSnapshot(row.Scan)
}

// ListSnapshots returns all snapshots ordered by domain then URL.
func (s *Store) ListSnapshots(ctx context.Context) ([]*Snapshot, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, domain, source_url, extraction_method, canonical_text, extraction_text_hash, fetched_at
		FROM snapshots ORDER BY domain, source_url`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows.Scan)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func scanSnapshot(scan func(...any) error) (*Snapshot, error) {
	var snap Snapshot
	err := scan(
		&snap.ID, &snap.Domain, &snap.SourceURL, &snap.ExtractionMethod,
		&snap.CanonicalText, &snap.ExtractionTextHash, &snap.FetchedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	return &snap, nil
}
