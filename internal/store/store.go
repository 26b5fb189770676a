package store

import (
	"context"
	"errors"
)

// Documents cross the adapter boundary as generic field maps so that
// telemetry fields written by the ingestion service survive lifecycle
// moves without the backend having to know their shape.

var (
	// ErrConflict is returned when a transaction's read set was modified
	// concurrently and the retry budget ran out.
	ErrConflict = errors.New("store: transaction conflict")

	// ErrReadAfterWrite is returned when a transaction issues a read after
	// its first write. Firestore enforces this ordering server-side; the
	// in-memory backend enforces it too so tests catch violations early.
	ErrReadAfterWrite = errors.New("store: all reads must precede writes in a transaction")
)

// Doc is a document returned from a collection query.
type Doc struct {
	ID   string
	Data map[string]interface{}
}

// Tx is the view of the store inside a transaction. All reads must be
// issued before any write; writes are staged and applied atomically when
// the transaction function returns nil.
type Tx interface {
	Get(collection, id string) (map[string]interface{}, bool, error)
	Set(collection, id string, data map[string]interface{}, merge bool)
	Delete(collection, id string)
}

// Batch stages independent writes and commits them in one round trip.
// Unlike a transaction, a batch performs no reads and no conflict checks.
type Batch interface {
	Set(collection, id string, data map[string]interface{}, merge bool)
	Delete(collection, id string)
	Commit(ctx context.Context) error
}

// Store abstracts a transactional document backend. Deleting a document
// that does not exist is not an error on any implementation.
type Store interface {
	Get(ctx context.Context, collection, id string) (map[string]interface{}, bool, error)
	Set(ctx context.Context, collection, id string, data map[string]interface{}, merge bool) error
	Delete(ctx context.Context, collection, id string) error

	// RunTransaction runs fn with snapshot-isolated reads and commits its
	// staged writes atomically. Conflicts are retried internally; after the
	// retry budget the call fails with ErrConflict.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error

	Batch() Batch

	// Where returns the documents of a collection matching a single field
	// filter. Supported ops: "==", "<", "<=", ">", ">=".
	Where(ctx context.Context, collection, field, op string, value interface{}) ([]Doc, error)

	// All returns every document in a collection.
	All(ctx context.Context, collection string) ([]Doc, error)
}

// CopyDoc returns a shallow copy of a document map with nested field maps
// copied one level deep, so callers can stage modified snapshots without
// aliasing the source document.
func CopyDoc(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		if nested, ok := v.(map[string]interface{}); ok {
			inner := make(map[string]interface{}, len(nested))
			for nk, nv := range nested {
				inner[nk] = nv
			}
			out[k] = inner
			continue
		}
		out[k] = v
	}
	return out
}
