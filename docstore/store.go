// Package docstore owns the authoritative document ledger and keeps it
// bijectively mapped to vector index slots.
//
// Every live document with an embedding holds exactly one index slot and
// every live slot belongs to exactly one document. All mutation funnels
// through one lock so the mapping is never observed half-updated: add,
// update and delete commit the ledger and the index together or roll back.
//
// The store is safe for concurrent use: reads and searches run under a
// shared lock against a consistent snapshot while writers are exclusive.
package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/researchgo/embedding"
	"github.com/hupe1980/researchgo/index/flat"
	"github.com/hupe1980/researchgo/metadata"
	"github.com/hupe1980/researchgo/model"
	"github.com/hupe1980/researchgo/persistence"
)

// timeNow is swapped out in tests.
var timeNow = time.Now

// Options configures a Store.
type Options struct {
	// Provider embeds document content and queries. When nil the store
	// holds documents without vectors and Search reports
	// ErrEmbeddingUnavailable.
	Provider embedding.Provider

	// Manager enables Save and snapshot loading. Optional.
	Manager *persistence.Manager

	// Logger receives structured operation logs.
	Logger *slog.Logger
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{
		Logger: slog.Default(),
	}
}

// Option is a functional option for configuring a Store.
type Option func(*Options)

// WithProvider sets the embedding provider.
func WithProvider(p embedding.Provider) Option {
	return func(o *Options) { o.Provider = p }
}

// WithManager sets the snapshot manager used by Save and Open.
func WithManager(m *persistence.Manager) Option {
	return func(o *Options) { o.Manager = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// entry is the internal per-document record.
type entry struct {
	doc model.Document

	// slot is the document's index position; valid only when hasSlot.
	slot    uint32
	hasSlot bool

	// seq is the store-lifetime insertion sequence. It survives slot
	// reuse and drives insertion-order tie-breaking in Search.
	seq uint64
}

// Store is the document store.
type Store struct {
	provider embedding.Provider
	manager  *persistence.Manager
	logger   *slog.Logger

	mu      sync.RWMutex
	index   *flat.Flat // nil without a provider
	docs    map[string]*entry
	bySlot  map[uint32]string
	mdIndex *metadata.Index
	nextSeq uint64
	closed  bool
}

// New creates an empty store.
func New(optFns ...Option) (*Store, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Store{
		provider: opts.Provider,
		manager:  opts.Manager,
		logger:   opts.Logger,
		docs:     make(map[string]*entry),
		bySlot:   make(map[uint32]string),
		mdIndex:  metadata.NewIndex(),
	}

	if opts.Provider != nil {
		idx, err := flat.New(opts.Provider.Dimension())
		if err != nil {
			return nil, err
		}
		s.index = idx
	}

	return s, nil
}

// Open creates a store and loads the committed snapshot, if any.
//
// An empty blob store yields a fresh store. A snapshot that fails its
// integrity checks is never partially loaded: Open returns a
// *persistence.CorruptionError and the caller decides what to do.
func Open(ctx context.Context, optFns ...Option) (*Store, error) {
	s, err := New(optFns...)
	if err != nil {
		return nil, err
	}
	if s.manager == nil {
		return nil, ErrNoPersistence
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Close marks the store closed. Further mutations fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Add stores a new document under a fresh, never-reused id and returns it.
func (s *Store) Add(ctx context.Context, content string, md metadata.Metadata) (string, error) {
	id := uuid.NewString()
	if err := s.add(ctx, id, content, md); err != nil {
		return "", err
	}
	return id, nil
}

// AddWithID stores a new document under a caller-chosen id. An id that is
// already live is rejected with *DuplicateIDError; upserts go through
// Update.
func (s *Store) AddWithID(ctx context.Context, id, content string, md metadata.Metadata) error {
	return s.add(ctx, id, content, md)
}

func (s *Store) add(ctx context.Context, id, content string, md metadata.Metadata) error {
	if err := md.Validate(); err != nil {
		return err
	}
	md = md.Normalize()

	// Embed outside the lock; provider calls can be slow.
	vec, err := s.embed(ctx, content, "add")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, ok := s.docs[id]; ok {
		return &DuplicateIDError{ID: id}
	}

	now := timeNow().UTC()
	e := &entry{
		doc: model.Document{
			ID:        id,
			Content:   content,
			Metadata:  md,
			Embedding: vec,
			CreatedAt: now,
			UpdatedAt: now,
		},
		seq: s.nextSeq,
	}

	if vec != nil {
		slot, err := s.index.Insert(vec)
		if err != nil {
			return err
		}
		e.slot = slot
		e.hasSlot = true
		s.bySlot[slot] = id
		s.mdIndex.Add(slot, md)
	}

	s.docs[id] = e
	s.nextSeq++

	s.logger.DebugContext(ctx, "document added", "id", id, "indexed", e.hasSlot)
	return nil
}

// BatchItem is one document in an AddBatch call.
type BatchItem struct {
	Content  string
	Metadata metadata.Metadata
}

// AddBatch adds documents in order and returns their ids. The batch stops
// at the first failure; documents added before the failure remain in the
// store and their ids are returned alongside the error.
func (s *Store) AddBatch(ctx context.Context, items []BatchItem) ([]string, error) {
	ids := make([]string, 0, len(items))
	for i, item := range items {
		id, err := s.Add(ctx, item.Content, item.Metadata)
		if err != nil {
			return ids, fmt.Errorf("batch item %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Get returns a copy of the document, if live.
func (s *Store) Get(id string) (model.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.docs[id]
	if !ok {
		return model.Document{}, false
	}
	return e.doc.Clone(), true
}

// Update describes a partial document update. Nil fields are unchanged;
// a non-nil Metadata replaces the document's metadata wholesale.
type Update struct {
	Content  *string
	Metadata metadata.Metadata
}

// Update applies an update to a live document. A content change re-embeds
// and replaces the index slot; a metadata-only change never touches the
// vector index. Returns false when the id is unknown. On embedding failure
// the document and its slot are left exactly as they were.
func (s *Store) Update(ctx context.Context, id string, upd Update) (bool, error) {
	if upd.Metadata != nil {
		if err := upd.Metadata.Validate(); err != nil {
			return false, err
		}
		upd.Metadata = upd.Metadata.Normalize()
	}

	var vec []float32
	if upd.Content != nil {
		v, err := s.embed(ctx, *upd.Content, "update")
		if err != nil {
			return false, err
		}
		vec = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}
	e, ok := s.docs[id]
	if !ok {
		return false, nil
	}

	if upd.Content != nil {
		if vec != nil {
			if e.hasSlot {
				if err := s.index.Update(e.slot, vec); err != nil {
					return false, err
				}
			} else {
				slot, err := s.index.Insert(vec)
				if err != nil {
					return false, err
				}
				e.slot = slot
				e.hasSlot = true
				s.bySlot[slot] = id
				s.mdIndex.Add(slot, e.doc.Metadata)
			}
		}
		e.doc.Content = *upd.Content
		e.doc.Embedding = vec
	}

	if upd.Metadata != nil {
		if e.hasSlot {
			s.mdIndex.Remove(e.slot, e.doc.Metadata)
			s.mdIndex.Add(e.slot, upd.Metadata)
		}
		e.doc.Metadata = upd.Metadata
	}

	e.doc.UpdatedAt = timeNow().UTC()

	s.logger.DebugContext(ctx, "document updated", "id", id, "content_changed", upd.Content != nil)
	return true, nil
}

// Delete removes a document and its slot together. The slot is recycled
// and will never surface the deleted document in a search. Returns false
// when the id is unknown.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	e, ok := s.docs[id]
	if !ok {
		return false
	}

	if e.hasSlot {
		// The slot is live by invariant; a failure here means the
		// bijection is already broken.
		if err := s.index.Delete(e.slot); err != nil {
			s.logger.Error("slot mapping out of sync", "id", id, "slot", e.slot, "error", err)
		}
		s.mdIndex.Remove(e.slot, e.doc.Metadata)
		delete(s.bySlot, e.slot)
	}
	delete(s.docs, id)

	s.logger.Debug("document deleted", "id", id)
	return true
}

// Search embeds the query and returns up to topK live documents with
// cosine similarity >= threshold, ordered by descending score; ties break
// by insertion order (earlier-added document first). Optional filters
// restrict candidates by exact metadata match.
//
// When the query cannot be embedded the error wraps
// ErrEmbeddingUnavailable and no results are returned; callers that can
// degrade treat it as an empty result.
func (s *Store) Search(ctx context.Context, query string, topK int, threshold float32, filters ...metadata.Filter) ([]model.SearchHit, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("%w: store has no embedding provider", ErrEmbeddingUnavailable)
	}

	vec, err := s.embed(ctx, query, "search")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var filter func(slot uint32) bool
	if len(filters) > 0 {
		candidates := s.mdIndex.Candidates(metadata.FilterSet(filters))
		filter = func(slot uint32) bool {
			return candidates != nil && candidates.Contains(slot)
		}
	}

	// Slots get reused, so slot order says nothing about insertion order.
	// Ranking by sequence during selection keeps the earlier-added document
	// when a tie falls on the top-k boundary.
	rank := func(slot uint32) uint64 {
		id, ok := s.bySlot[slot]
		if !ok {
			return math.MaxUint64
		}
		return s.docs[id].seq
	}

	results, err := s.index.SearchRanked(vec, topK, threshold, filter, rank)
	if err != nil {
		return nil, err
	}

	hits := make([]model.SearchHit, 0, len(results))
	for _, r := range results {
		id, ok := s.bySlot[r.Slot]
		if !ok {
			continue
		}
		e := s.docs[id]
		hits = append(hits, model.SearchHit{Document: e.doc.Clone(), Score: r.Score})
	}

	s.logger.DebugContext(ctx, "search completed", "top_k", topK, "results", len(hits))
	return hits, nil
}

// SearchByMetadata returns all live documents matching every filter,
// newest first. No embedding is involved.
func (s *Store) SearchByMetadata(filters ...metadata.Filter) []model.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fs := metadata.FilterSet(filters)

	type scored struct {
		doc model.Document
		seq uint64
	}
	var matched []scored
	for _, e := range s.docs {
		if fs.Matches(e.doc.Metadata) {
			matched = append(matched, scored{doc: e.doc.Clone(), seq: e.seq})
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq > matched[j].seq })

	out := make([]model.Document, len(matched))
	for i, m := range matched {
		out[i] = m.doc
	}
	return out
}

// All returns every live document in insertion order.
func (s *Store) All() []model.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*entry, 0, len(s.docs))
	for _, e := range s.docs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]model.Document, len(entries))
	for i, e := range entries {
		out[i] = e.doc.Clone()
	}
	return out
}

// Count returns the number of live documents.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Stats returns a snapshot of store state.
func (s *Store) Stats() model.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := model.Stats{
		TotalDocuments: len(s.docs),
		HasProvider:    s.provider != nil,
	}
	if s.index != nil {
		st.IndexedDocuments = s.index.Len()
		st.Dimension = s.index.Dimension()
	}
	return st
}

// embed calls the provider and unit-normalizes the result. A nil provider
// yields a nil vector.
func (s *Store) embed(ctx context.Context, text, op string) ([]float32, error) {
	if s.provider == nil {
		return nil, nil
	}

	vec, err := s.provider.Embed(ctx, text)
	if err != nil {
		return nil, &EmbeddingError{Op: op, Err: err}
	}
	if len(vec) != s.index.Dimension() {
		return nil, &DimensionMismatchError{Expected: s.index.Dimension(), Actual: len(vec)}
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return nil, &EmbeddingError{Op: op, Err: fmt.Errorf("provider returned a zero vector")}
	}

	out := make([]float32, len(vec))
	inv := float32(1 / norm)
	for i, v := range vec {
		out[i] = v * inv
	}
	return out, nil
}
