package docstore

import (
	"errors"
	"fmt"
)

// ErrEmbeddingUnavailable distinguishes a search that could not embed its
// query from a search that genuinely found nothing. Callers that can degrade
// gracefully (the retrieval step does) treat it as an empty result.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("document store is closed")

// ErrNoPersistence is returned by Save when no snapshot manager is
// configured.
var ErrNoPersistence = errors.New("no persistence configured")

// DuplicateIDError is returned when Add is called with an id that is
// already live. Upserts go through Update, never Add.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("document id already exists: %s", e.ID)
}

// EmbeddingError wraps a provider failure during add or update. The
// operation is aborted and the store is left unchanged; a degenerate
// zero vector is never stored.
type EmbeddingError struct {
	Op  string
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed during %s: %v", e.Op, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// DimensionMismatchError indicates the provider returned a vector whose
// length differs from the store's fixed dimension. This is a contract
// violation, not a recoverable condition.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}
