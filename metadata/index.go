package metadata

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// Index is an inverted index mapping metadata terms to the set of index
// slots whose documents carry that term. It answers equality-filter
// candidate queries without scanning the document ledger.
//
// Index is safe for concurrent use.
type Index struct {
	mu       sync.RWMutex
	postings map[string]*roaring.Bitmap
}

// NewIndex creates an empty metadata index.
func NewIndex() *Index {
	return &Index{
		postings: make(map[string]*roaring.Bitmap),
	}
}

// Add registers all terms of md under the given slot.
func (ix *Index) Add(slot uint32, md Metadata) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for k, v := range md {
		t := term(k, v)
		bm, ok := ix.postings[t]
		if !ok {
			bm = roaring.New()
			ix.postings[t] = bm
		}
		bm.Add(slot)
	}
}

// Remove unregisters all terms of md for the given slot.
func (ix *Index) Remove(slot uint32, md Metadata) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for k, v := range md {
		t := term(k, v)
		bm, ok := ix.postings[t]
		if !ok {
			continue
		}
		bm.Remove(slot)
		if bm.IsEmpty() {
			delete(ix.postings, t)
		}
	}
}

// Candidates returns the slots matching every filter in the set.
// A nil result means "no restriction" (empty filter set); an empty bitmap
// means no slot matches.
func (ix *Index) Candidates(fs FilterSet) *roaring.Bitmap {
	if len(fs) == 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var acc *roaring.Bitmap
	for _, f := range fs {
		bm, ok := ix.postings[term(f.Key, f.Value)]
		if !ok {
			return roaring.New()
		}
		if acc == nil {
			acc = bm.Clone()
		} else {
			acc.And(bm)
		}
	}
	return acc
}
