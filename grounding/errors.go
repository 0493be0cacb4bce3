package grounding

import (
	"errors"

	"github.com/malwarescan/precogs-api-sub001/grounding/internal/store"
)

// ErrInvalidInput is returned when a snapshot or fact candidate fails input
// validation.
var ErrInvalidInput = errors.New("grounding: invalid input")

// ErrSnapshotNotFound is returned when no snapshot exists for a
// (domain, source URL).
var ErrSnapshotNotFound = errors.New("grounding: snapshot not found")

// ErrSnapshotCorrupt is returned when a stored extraction_text_hash disagrees
// with the stored canonical text. This is fatal for that snapshot: all
// validation against it is blocked rather than reporting partial results, and
// it is never silently repaired.
var ErrSnapshotCorrupt = errors.New("grounding: stored snapshot hash does not match stored text")

// ErrRevisionConflict is returned when concurrent revision advancement on the
// same slot exhausted its retries. Recoverable: the caller may re-ingest.
var ErrRevisionConflict = store.ErrRevisionConflict
