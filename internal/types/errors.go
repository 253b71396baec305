package types

import (
	"errors"
	"fmt"
)

// Run-level and per-item failures
var (
	// ErrSourceUnavailable is returned when the artist source produced no artists
	ErrSourceUnavailable = errors.New("artist source unavailable or empty")

	// ErrNoTracksResolved is returned when no artist resolved to any track
	ErrNoTracksResolved = errors.New("no tracks resolved")

	// ErrArtistNotFound marks a catalog search with no artist match
	ErrArtistNotFound = errors.New("artist not found")

	// ErrPermissionDenied is returned when the current user cannot modify a playlist
	ErrPermissionDenied = errors.New("permission denied: playlist is neither owned by the current user nor collaborative")

	// ErrPagination is returned when a playlist listing fails mid-traversal
	ErrPagination = errors.New("playlist listing failed")

	// ErrBatchMutation is returned when an add or remove batch fails
	ErrBatchMutation = errors.New("playlist batch mutation failed")

	// ErrNotAuthenticated is returned when no catalog credentials are available
	ErrNotAuthenticated = errors.New("not authenticated to spotify")
)

// BatchError describes the batch that stopped an add or remove operation.
// Batches before the failing one were applied and are not rolled back.
type BatchError struct {
	Op      string
	Batch   int // zero-based index of the failed batch
	Batches int // total batches planned
	Applied int // items landed before the failure
	Err     error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s batch %d/%d failed after %d items applied: %v", e.Op, e.Batch+1, e.Batches, e.Applied, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrBatchMutation
func (e *BatchError) Is(target error) bool {
	return target == ErrBatchMutation
}
