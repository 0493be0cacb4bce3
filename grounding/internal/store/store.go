// Package store is the data access layer for the grounding service: canonical
// text snapshots, evidence-anchored facts with their revision ledger, and
// validation run records, all in one SQLite database.
package store

import (
	"database/sql"
	"errors"

	"github.com/malwarescan/precogs-api-sub001/dbopen"
)

// ErrRevisionConflict is returned when two writers race to append the same
// revision number for one slot. The loser must re-read the current revision
// and recompute, or surface the conflict.
var ErrRevisionConflict = errors.New("store: concurrent revision advancement on slot")

// Store wraps the grounding database.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll())
	if err != nil {
		return nil, err
	}
	if err := ApplySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{DB: db}, nil
}

// NewStore creates a Store from an already-opened database connection.
// The caller is responsible for having applied the schema.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.DB.Close()
}
