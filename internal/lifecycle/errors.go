package lifecycle

import (
	"errors"

	"smartbin-backend/internal/store"
)

var (
	// ErrNotFound means the source document is absent from the expected
	// collection. A concurrent transition usually already moved it, so
	// callers treat this as benign rather than escalating.
	ErrNotFound = errors.New("bin not found")

	// ErrInvalidTransition means the state guard failed: the bin exists but
	// is not in the state the operation requires (e.g. restoring an
	// already-restored or deleted bin).
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrLastActiveBin is returned when ArchiveOptions.KeepLastActive is set
	// and the target is the only bin left in active service.
	ErrLastActiveBin = errors.New("cannot archive the last active bin")
)

// ErrConflict surfaces the store's optimistic-concurrency failure after its
// internal retries; the operation is safe to retry from the caller.
var ErrConflict = store.ErrConflict

// Skip reasons reported per item by the batch operations.
const (
	SkipReasonNotFound          = "NotFound"
	SkipReasonInvalidTransition = "InvalidTransition"
)

// SkippedBin identifies a batch item excluded by its state guard.
type SkippedBin struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}
