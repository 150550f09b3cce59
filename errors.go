package researchgo

import (
	"errors"

	"github.com/hupe1980/researchgo/docstore"
	"github.com/hupe1980/researchgo/persistence"
)

// IsDuplicateID reports whether err is a rejected add of an already-live
// document id.
func IsDuplicateID(err error) bool {
	var dup *docstore.DuplicateIDError
	return errors.As(err, &dup)
}

// IsEmbeddingUnavailable reports whether a search failed only because the
// query could not be embedded.
func IsEmbeddingUnavailable(err error) bool {
	return errors.Is(err, docstore.ErrEmbeddingUnavailable)
}

// IsCorruption reports whether a store refused to open because its
// committed snapshot failed an integrity check.
func IsCorruption(err error) bool {
	var corrupt *persistence.CorruptionError
	return errors.As(err, &corrupt)
}
