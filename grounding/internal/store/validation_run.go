package store

import (
	"context"
	"time"
)

// InsertValidationRun records the outcome of one validation pass.
func (s *Store) InsertValidationRun(ctx context.Context, run *ValidationRun) error {
	if run.RanAt == 0 {
		run.RanAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO validation_runs (id, domain, source_url, validated, passed, failed, pass_rate, citation_grade, hash_algorithm, ran_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Domain, run.SourceURL, run.Validated, run.Passed, run.Failed,
		run.PassRate, run.CitationGrade, run.HashAlgorithm, run.RanAt,
	)
	return err
}

// ValidationRuns returns the most recent runs for a source URL, newest first.
func (s *Store) ValidationRuns(ctx context.Context, sourceURL string, limit int) ([]*ValidationRun, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, domain, source_url, validated, passed, failed, pass_rate, citation_grade, hash_algorithm, ran_at
		FROM validation_runs WHERE source_url = ? ORDER BY ran_at DESC LIMIT ?`,
		sourceURL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*ValidationRun
	for rows.Next() {
		var run ValidationRun
		var grade int
		if err := rows.Scan(
			&run.ID, &run.Domain, &run.SourceURL, &run.Validated, &run.Passed,
			&run.Failed, &run.PassRate, &grade, &run.HashAlgorithm, &run.RanAt,
		); err != nil {
			return nil, err
		}
		run.CitationGrade = grade != 0
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// Stats returns aggregate counters.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&st.Snapshots); err != nil {
		return nil, err
	}
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM facts`).Scan(&st.Facts); err != nil {
		return nil, err
	}
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM facts WHERE is_latest = 1`).Scan(&st.LatestFacts); err != nil {
		return nil, err
	}
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM validation_runs`).Scan(&st.ValidationRuns); err != nil {
		return nil, err
	}
	return &st, nil
}
