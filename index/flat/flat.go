// Package flat provides a slot-addressable flat index for exact
// nearest-neighbor search over unit-normalized vectors.
//
// Deleted slots become tombstones and their ids go onto a free list for
// reuse; a Roaring Bitmap tracks the live set so searches never touch a
// tombstone. Reads are lock-free against a copy-on-write state; writes are
// serialized by a mutex, so a reused slot is only ever observed fully
// committed.
package flat

import (
	"container/heap"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
)

// ErrInvalidK is returned when a search is requested with k < 1.
var ErrInvalidK = fmt.Errorf("k must be positive")

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrSlotNotFound indicates an operation on a dead or never-allocated slot.
type ErrSlotNotFound struct {
	Slot uint32
}

func (e *ErrSlotNotFound) Error() string {
	return fmt.Sprintf("slot not found: %d", e.Slot)
}

// Result is a single search match.
type Result struct {
	// Slot is the index position of the match.
	Slot uint32
	// Score is the cosine similarity (inner product of unit vectors).
	Score float32
}

// indexState holds the immutable state of the index for lock-free reads.
type indexState struct {
	vectors  [][]float32     // nil entries are tombstones
	live     *roaring.Bitmap // slots currently holding a vector
	freeList []uint32        // slot ids available for reuse
}

// Flat is an exact-search vector index with stable, reusable slot ids.
// It uses a copy-on-write pattern for lock-free concurrent reads.
type Flat struct {
	state     atomic.Value // holds *indexState
	writeMu   sync.Mutex   // serializes writes only
	dimension int
}

// New creates a flat index for vectors of the given dimension.
func New(dimension int) (*Flat, error) {
	if dimension <= 0 {
		return nil, &ErrInvalidDimension{Dimension: dimension}
	}

	f := &Flat{dimension: dimension}
	f.state.Store(&indexState{live: roaring.New()})
	return f, nil
}

// Dimension returns the fixed vector dimensionality.
func (f *Flat) Dimension() int { return f.dimension }

func (f *Flat) getState() *indexState {
	return f.state.Load().(*indexState)
}

func (f *Flat) cloneState(s *indexState) *indexState {
	clone := &indexState{
		vectors:  make([][]float32, len(s.vectors)),
		live:     s.live.Clone(),
		freeList: make([]uint32, len(s.freeList)),
	}
	copy(clone.vectors, s.vectors)
	copy(clone.freeList, s.freeList)
	return clone
}

func (f *Flat) checkDimension(vector []float32) error {
	if len(vector) != f.dimension {
		return &ErrDimensionMismatch{Expected: f.dimension, Actual: len(vector)}
	}
	return nil
}

// Insert stores a vector and returns its slot id, reusing a free slot when
// one exists. The vector is copied; callers keep ownership of their slice.
func (f *Flat) Insert(vector []float32) (uint32, error) {
	if err := f.checkDimension(vector); err != nil {
		return 0, err
	}

	stored := make([]float32, len(vector))
	copy(stored, vector)

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	newState := f.cloneState(f.getState())

	var slot uint32
	if n := len(newState.freeList); n > 0 {
		slot = newState.freeList[n-1]
		newState.freeList = newState.freeList[:n-1]
		newState.vectors[slot] = stored
	} else {
		slot = uint32(len(newState.vectors))
		newState.vectors = append(newState.vectors, stored)
	}
	newState.live.Add(slot)

	f.state.Store(newState)
	return slot, nil
}

// Update replaces the vector in a live slot.
func (f *Flat) Update(slot uint32, vector []float32) error {
	if err := f.checkDimension(vector); err != nil {
		return err
	}

	stored := make([]float32, len(vector))
	copy(stored, vector)

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	oldState := f.getState()
	if int(slot) >= len(oldState.vectors) || oldState.vectors[slot] == nil {
		return &ErrSlotNotFound{Slot: slot}
	}

	newState := f.cloneState(oldState)
	newState.vectors[slot] = stored
	f.state.Store(newState)
	return nil
}

// Delete tombstones a live slot and recycles its id.
// A deleted slot is never returned by a subsequent search.
func (f *Flat) Delete(slot uint32) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	oldState := f.getState()
	if int(slot) >= len(oldState.vectors) || oldState.vectors[slot] == nil {
		return &ErrSlotNotFound{Slot: slot}
	}

	newState := f.cloneState(oldState)
	newState.vectors[slot] = nil
	newState.live.Remove(slot)
	newState.freeList = append(newState.freeList, slot)
	f.state.Store(newState)
	return nil
}

// Vector returns a copy of the vector in a live slot.
func (f *Flat) Vector(slot uint32) ([]float32, bool) {
	s := f.getState()
	if int(slot) >= len(s.vectors) || s.vectors[slot] == nil {
		return nil, false
	}
	out := make([]float32, len(s.vectors[slot]))
	copy(out, s.vectors[slot])
	return out, true
}

// Len returns the number of live slots.
func (f *Flat) Len() int {
	return int(f.getState().live.GetCardinality())
}

// Search scans all live slots and returns up to k results with
// score >= threshold, ordered by descending score; equal scores order by
// ascending slot. filter, when non-nil, restricts the candidate set.
func (f *Flat) Search(query []float32, k int, threshold float32, filter func(slot uint32) bool) ([]Result, error) {
	return f.SearchRanked(query, k, threshold, filter, nil)
}

// SearchRanked is Search with a caller-supplied tie-break: when two
// candidates have equal scores, the one with the lower rank is kept. Slot
// ids get recycled, so a caller that needs ties ordered by something
// stable (such as insertion order) supplies the ranking here; applying it
// only after selection would let the wrong candidate win at the k
// boundary. A nil rank orders equal scores by ascending slot. Ranks must
// not change for the duration of the call.
func (f *Flat) SearchRanked(query []float32, k int, threshold float32, filter func(slot uint32) bool, rank func(slot uint32) uint64) ([]Result, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	if err := f.checkDimension(query); err != nil {
		return nil, err
	}

	s := f.getState()

	// Min-heap of the best k candidates seen so far.
	h := &candidateHeap{}
	heap.Init(h)

	it := s.live.Iterator()
	for it.HasNext() {
		slot := it.Next()
		if filter != nil && !filter(slot) {
			continue
		}

		score := dot(query, s.vectors[slot])
		if score < threshold {
			continue
		}

		c := candidate{res: Result{Slot: slot, Score: score}, rank: uint64(slot)}
		if rank != nil {
			c.rank = rank(slot)
		}

		if h.Len() < k {
			heap.Push(h, c)
		} else if better(c, (*h)[0]) {
			(*h)[0] = c
			heap.Fix(h, 0)
		}
	}

	// Pop ascending, fill descending.
	out := make([]Result, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(candidate).res
	}
	return out, nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// candidate pairs a result with its tie-break rank during selection.
type candidate struct {
	res  Result
	rank uint64
}

// better reports whether a outranks b: higher score, then lower rank,
// then lower slot.
func better(a, b candidate) bool {
	if a.res.Score != b.res.Score {
		return a.res.Score > b.res.Score
	}
	if a.rank != b.rank {
		return a.rank < b.rank
	}
	return a.res.Slot < b.res.Slot
}

// candidateHeap is a min-heap, so the weakest candidate sits at the root
// and is evicted first.
type candidateHeap []candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) { *h = append(*h, x.(candidate)) }

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
