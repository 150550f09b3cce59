package docstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/researchgo/index/flat"
	"github.com/hupe1980/researchgo/metadata"
	"github.com/hupe1980/researchgo/model"
	"github.com/hupe1980/researchgo/persistence"
)

// ledgerRecord is the persisted form of one document. Timestamps encode as
// RFC 3339 through time.Time's JSON marshaling.
type ledgerRecord struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Metadata  metadata.Metadata `json:"metadata,omitempty"`
	Embedding []float32         `json:"embedding,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`

	// Slot is nil for documents without an embedding.
	Slot *uint32 `json:"slot,omitempty"`
	Seq  uint64  `json:"seq"`
}

// ledgerFile is the persisted document ledger.
type ledgerFile struct {
	Dimension int            `json:"dimension"`
	NextSeq   uint64         `json:"next_seq"`
	Records   []ledgerRecord `json:"records"`
}

// Save writes a snapshot of the store through its persistence manager.
func (s *Store) Save(ctx context.Context) error {
	if s.manager == nil {
		return ErrNoPersistence
	}

	s.mu.RLock()

	ledger := ledgerFile{NextSeq: s.nextSeq}
	if s.index != nil {
		ledger.Dimension = s.index.Dimension()
	}

	for _, e := range s.docs {
		rec := ledgerRecord{
			ID:        e.doc.ID,
			Content:   e.doc.Content,
			Metadata:  e.doc.Metadata,
			Embedding: e.doc.Embedding,
			CreatedAt: e.doc.CreatedAt,
			UpdatedAt: e.doc.UpdatedAt,
			Seq:       e.seq,
		}
		if e.hasSlot {
			slot := e.slot
			rec.Slot = &slot
		}
		ledger.Records = append(ledger.Records, rec)
	}

	var indexBuf bytes.Buffer
	var liveCount int
	if s.index != nil {
		if err := s.index.Save(&indexBuf); err != nil {
			s.mu.RUnlock()
			return fmt.Errorf("serialize index: %w", err)
		}
		liveCount = s.index.Len()
	}
	docCount := len(s.docs)

	s.mu.RUnlock()

	manifest, err := s.manager.Save(ctx, ledger, indexBuf.Bytes(), docCount, liveCount)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "snapshot saved",
		"version", manifest.Version,
		"documents", docCount,
		"indexed", liveCount,
	)
	return nil
}

// load restores store state from the committed snapshot. An empty blob
// store leaves the fresh state in place. Any inconsistency between ledger
// and index fails the load with *persistence.CorruptionError; the store
// never silently resets to empty.
func (s *Store) load(ctx context.Context) error {
	var ledger ledgerFile
	manifest, indexBytes, err := s.manager.Load(ctx, &ledger)
	if errors.Is(err, persistence.ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return err
	}

	if len(ledger.Records) != manifest.DocumentCount {
		return &persistence.CorruptionError{
			Artifact: manifest.LedgerBlob,
			Reason:   fmt.Sprintf("ledger has %d records, manifest says %d", len(ledger.Records), manifest.DocumentCount),
		}
	}

	var idx *flat.Flat
	if len(indexBytes) > 0 {
		idx, err = flat.Load(bytes.NewReader(indexBytes))
		if err != nil {
			return &persistence.CorruptionError{Artifact: manifest.IndexBlob, Reason: "undecodable index", Err: err}
		}
	}

	liveSlots := 0
	for _, rec := range ledger.Records {
		if rec.Slot != nil {
			liveSlots++
		}
	}

	indexLive := 0
	if idx != nil {
		indexLive = idx.Len()
	}
	if liveSlots != indexLive || indexLive != manifest.IndexLiveCount {
		return &persistence.CorruptionError{
			Artifact: manifest.IndexBlob,
			Reason: fmt.Sprintf("ledger references %d slots, index holds %d live, manifest says %d",
				liveSlots, indexLive, manifest.IndexLiveCount),
		}
	}

	if s.provider != nil && idx != nil && idx.Dimension() != s.provider.Dimension() {
		return &DimensionMismatchError{Expected: s.provider.Dimension(), Actual: idx.Dimension()}
	}

	docs := make(map[string]*entry, len(ledger.Records))
	bySlot := make(map[uint32]string, liveSlots)
	mdIndex := metadata.NewIndex()
	nextSeq := ledger.NextSeq

	for _, rec := range ledger.Records {
		if _, ok := docs[rec.ID]; ok {
			return &persistence.CorruptionError{
				Artifact: manifest.LedgerBlob,
				Reason:   fmt.Sprintf("duplicate ledger id %s", rec.ID),
			}
		}

		e := &entry{
			doc: model.Document{
				ID:        rec.ID,
				Content:   rec.Content,
				Metadata:  rec.Metadata.Normalize(),
				Embedding: rec.Embedding,
				CreatedAt: rec.CreatedAt,
				UpdatedAt: rec.UpdatedAt,
			},
			seq: rec.Seq,
		}
		if rec.Seq >= nextSeq {
			nextSeq = rec.Seq + 1
		}

		if rec.Slot != nil {
			slot := *rec.Slot
			if idx == nil {
				return &persistence.CorruptionError{
					Artifact: manifest.LedgerBlob,
					Reason:   fmt.Sprintf("document %s references slot %d but no index was persisted", rec.ID, slot),
				}
			}
			if _, ok := idx.Vector(slot); !ok {
				return &persistence.CorruptionError{
					Artifact: manifest.IndexBlob,
					Reason:   fmt.Sprintf("document %s references dead slot %d", rec.ID, slot),
				}
			}
			if other, ok := bySlot[slot]; ok {
				return &persistence.CorruptionError{
					Artifact: manifest.LedgerBlob,
					Reason:   fmt.Sprintf("slot %d claimed by both %s and %s", slot, other, rec.ID),
				}
			}
			e.slot = slot
			e.hasSlot = true
			bySlot[slot] = rec.ID
			mdIndex.Add(slot, e.doc.Metadata)
		}

		docs[rec.ID] = e
	}

	s.mu.Lock()
	if idx != nil {
		s.index = idx
	}
	s.docs = docs
	s.bySlot = bySlot
	s.mdIndex = mdIndex
	s.nextSeq = nextSeq
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "snapshot loaded",
		"version", manifest.Version,
		"documents", len(docs),
		"indexed", indexLive,
	)
	return nil
}
