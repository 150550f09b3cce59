package docstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/researchgo/blobstore"
	"github.com/hupe1980/researchgo/embedding"
	"github.com/hupe1980/researchgo/metadata"
	"github.com/hupe1980/researchgo/persistence"
)

func newTestStore(t *testing.T, optFns ...Option) *Store {
	t.Helper()
	opts := append([]Option{WithProvider(embedding.NewLocalProvider(64))}, optFns...)
	s, err := New(opts...)
	require.NoError(t, err)
	return s
}

func TestCRUDRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Add(ctx, "hello", metadata.Metadata{"k": "v"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, "hello", doc.Content)
	assert.Equal(t, "v", doc.Metadata["k"])
	assert.Len(t, doc.Embedding, 64)
	assert.False(t, doc.CreatedAt.IsZero())

	t.Run("GetUnknown", func(t *testing.T) {
		_, ok := s.Get("no-such-id")
		assert.False(t, ok)
	})

	t.Run("GetReturnsCopy", func(t *testing.T) {
		d, _ := s.Get(id)
		d.Metadata["k"] = "mutated"
		d.Embedding[0] = 42

		fresh, _ := s.Get(id)
		assert.Equal(t, "v", fresh.Metadata["k"])
		assert.NotEqual(t, float32(42), fresh.Embedding[0])
	})
}

func TestAddDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.AddWithID(ctx, "doc-1", "first", nil))

	err := s.AddWithID(ctx, "doc-1", "second", nil)
	var dup *DuplicateIDError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "doc-1", dup.ID)

	// The original is untouched.
	doc, ok := s.Get("doc-1")
	require.True(t, ok)
	assert.Equal(t, "first", doc.Content)

	t.Run("ReusableAfterDelete", func(t *testing.T) {
		require.True(t, s.Delete("doc-1"))
		require.NoError(t, s.AddWithID(ctx, "doc-1", "third", nil))
	})
}

func TestAddEmbeddingFailure(t *testing.T) {
	ctx := context.Background()

	boom := errors.New("model offline")
	s, err := New(WithProvider(embedding.ProviderFunc{
		Dim: 8,
		Fn: func(context.Context, string) ([]float32, error) {
			return nil, boom
		},
	}))
	require.NoError(t, err)

	_, err = s.Add(ctx, "content", nil)
	var embErr *EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Count())
}

func TestAddZeroVectorRejected(t *testing.T) {
	s, err := New(WithProvider(embedding.ProviderFunc{
		Dim: 4,
		Fn: func(context.Context, string) ([]float32, error) {
			return []float32{0, 0, 0, 0}, nil
		},
	}))
	require.NoError(t, err)

	_, err = s.Add(context.Background(), "content", nil)
	var embErr *EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, 0, s.Count())
}

func TestDimensionMismatch(t *testing.T) {
	s, err := New(WithProvider(embedding.ProviderFunc{
		Dim: 8,
		Fn: func(context.Context, string) ([]float32, error) {
			return []float32{1, 0}, nil // violates its declared dimension
		},
	}))
	require.NoError(t, err)

	_, err = s.Add(context.Background(), "content", nil)
	var mismatch *DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 8, mismatch.Expected)
	assert.Equal(t, 2, mismatch.Actual)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Add(ctx, "original content", metadata.Metadata{"topic": "a"})
	require.NoError(t, err)
	before, _ := s.Get(id)

	t.Run("ContentReembeds", func(t *testing.T) {
		content := "completely different text"
		ok, err := s.Update(ctx, id, Update{Content: &content})
		require.NoError(t, err)
		require.True(t, ok)

		after, _ := s.Get(id)
		assert.Equal(t, content, after.Content)
		assert.NotEqual(t, before.Embedding, after.Embedding)
		assert.Equal(t, "a", after.Metadata["topic"], "metadata untouched")
	})

	t.Run("MetadataOnly", func(t *testing.T) {
		prev, _ := s.Get(id)
		ok, err := s.Update(ctx, id, Update{Metadata: metadata.Metadata{"topic": "b"}})
		require.NoError(t, err)
		require.True(t, ok)

		after, _ := s.Get(id)
		assert.Equal(t, "b", after.Metadata["topic"])
		assert.Equal(t, prev.Embedding, after.Embedding, "index untouched")
	})

	t.Run("UnknownID", func(t *testing.T) {
		ok, err := s.Update(ctx, "missing", Update{Metadata: metadata.Metadata{"x": 1}})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("SearchSeesNewContent", func(t *testing.T) {
		hits, err := s.Search(ctx, "completely different text", 1, 0)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, id, hits[0].Document.ID)
	})
}

func TestSelfSimilarity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Add(ctx, "unrelated filler about cooking pasta", nil)
	require.NoError(t, err)
	id, err := s.Add(ctx, "neural networks learn hierarchical representations", nil)
	require.NoError(t, err)

	hits, err := s.Search(ctx, "neural networks learn hierarchical representations", 1, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, id, hits[0].Document.ID)
	assert.GreaterOrEqual(t, hits[0].Score, float32(0.999))
}

func TestDeleteVisibility(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Add(ctx, "the document to delete", nil)
	require.NoError(t, err)
	keep, err := s.Add(ctx, "the document that stays", nil)
	require.NoError(t, err)

	require.True(t, s.Delete(id))
	assert.False(t, s.Delete(id), "second delete reports unknown id")

	_, ok := s.Get(id)
	assert.False(t, ok)

	hits, err := s.Search(ctx, "the document to delete", 10, 0)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, id, h.Document.ID)
	}

	t.Run("SlotReuseNeverResurrects", func(t *testing.T) {
		// The freed slot goes to the newcomer; searches must see the
		// newcomer's content, never the deleted document's.
		newcomer, err := s.Add(ctx, "a brand new arrival", nil)
		require.NoError(t, err)

		hits, err := s.Search(ctx, "a brand new arrival", 1, 0)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, newcomer, hits[0].Document.ID)
		_ = keep
	})
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Add(ctx, "quantum computing uses qubits", metadata.Metadata{"topic": "physics"})
	require.NoError(t, err)
	_, err = s.Add(ctx, "classical computing uses bits", metadata.Metadata{"topic": "cs"})
	require.NoError(t, err)
	_, err = s.Add(ctx, "pasta recipes from northern italy", metadata.Metadata{"topic": "food"})
	require.NoError(t, err)

	t.Run("OrderedByScore", func(t *testing.T) {
		hits, err := s.Search(ctx, "quantum computing uses qubits", 3, 0)
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		for i := 1; i < len(hits); i++ {
			assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
		}
		assert.Equal(t, "quantum computing uses qubits", hits[0].Document.Content)
	})

	t.Run("Threshold", func(t *testing.T) {
		hits, err := s.Search(ctx, "quantum computing uses qubits", 10, 0.999)
		require.NoError(t, err)
		require.Len(t, hits, 1)
	})

	t.Run("MetadataFilter", func(t *testing.T) {
		hits, err := s.Search(ctx, "computing", 10, -1, metadata.Eq("topic", "cs"))
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "classical computing uses bits", hits[0].Document.Content)
	})

	t.Run("NoFilterMatch", func(t *testing.T) {
		hits, err := s.Search(ctx, "computing", 10, -1, metadata.Eq("topic", "missing"))
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("EmbeddingUnavailable", func(t *testing.T) {
		_, err := s.Search(ctx, "   ", 5, 0)
		require.ErrorIs(t, err, ErrEmbeddingUnavailable)
	})
}

func TestSearchTieBreakSurvivesSlotReuse(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Identical content embeds identically, so every search over these
	// documents is an exact score tie.
	const content = "the exact same sentence stored twice"

	first, err := s.Add(ctx, content, nil)
	require.NoError(t, err)
	second, err := s.Add(ctx, content, nil)
	require.NoError(t, err)

	// Deleting the first document frees its slot; the next add recycles
	// it, giving the latest arrival the lowest slot id.
	require.True(t, s.Delete(first))
	third, err := s.Add(ctx, content, nil)
	require.NoError(t, err)

	t.Run("EarlierAddedWinsAtBoundary", func(t *testing.T) {
		hits, err := s.Search(ctx, content, 1, 0)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, second, hits[0].Document.ID)
	})

	t.Run("FullOrderIsInsertionOrder", func(t *testing.T) {
		hits, err := s.Search(ctx, content, 10, 0)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, second, hits[0].Document.ID)
		assert.Equal(t, third, hits[1].Document.ID)
	})
}

func TestSearchWithoutProvider(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	id, err := s.Add(context.Background(), "stored without vector", nil)
	require.NoError(t, err)

	doc, ok := s.Get(id)
	require.True(t, ok)
	assert.Nil(t, doc.Embedding)

	_, err = s.Search(context.Background(), "anything", 5, 0)
	require.ErrorIs(t, err, ErrEmbeddingUnavailable)

	stats := s.Stats()
	assert.Equal(t, 1, stats.TotalDocuments)
	assert.Equal(t, 0, stats.IndexedDocuments)
	assert.False(t, stats.HasProvider)
}

func TestSearchByMetadata(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Add(ctx, "first", metadata.Metadata{"lang": "en"})
	require.NoError(t, err)
	_, err = s.Add(ctx, "second", metadata.Metadata{"lang": "de"})
	require.NoError(t, err)
	third, err := s.Add(ctx, "third", metadata.Metadata{"lang": "en"})
	require.NoError(t, err)

	docs := s.SearchByMetadata(metadata.Eq("lang", "en"))
	require.Len(t, docs, 2)
	assert.Equal(t, third, docs[0].ID, "newest first")
}

func TestAddBatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ids, err := s.AddBatch(ctx, []BatchItem{
		{Content: "alpha"},
		{Content: "beta", Metadata: metadata.Metadata{"n": 2}},
		{Content: "gamma"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.Equal(t, 3, s.Count())

	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, "alpha", all[0].Content)
	assert.Equal(t, "gamma", all[2].Content)
}

func TestPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	provider := embedding.NewLocalProvider(64)

	s, err := New(
		WithProvider(provider),
		WithManager(persistence.NewManager(blobs, nil)),
	)
	require.NoError(t, err)

	var ids []string
	contents := []string{"first document", "second document", "third document"}
	for _, c := range contents {
		id, err := s.Add(ctx, c, metadata.Metadata{"source": "test"})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.True(t, s.Delete(ids[1]))
	require.NoError(t, s.Save(ctx))

	reloaded, err := Open(ctx,
		WithProvider(provider),
		WithManager(persistence.NewManager(blobs, nil)),
	)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Count())

	for _, i := range []int{0, 2} {
		doc, ok := reloaded.Get(ids[i])
		require.True(t, ok)
		assert.Equal(t, contents[i], doc.Content)
		assert.Equal(t, "test", doc.Metadata["source"])
		assert.Len(t, doc.Embedding, 64)
	}
	_, ok := reloaded.Get(ids[1])
	assert.False(t, ok)

	t.Run("SearchAfterReload", func(t *testing.T) {
		hits, err := reloaded.Search(ctx, "third document", 1, 0)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, ids[2], hits[0].Document.ID)
	})

	t.Run("AddAfterReload", func(t *testing.T) {
		id, err := reloaded.Add(ctx, "post-reload document", nil)
		require.NoError(t, err)
		doc, ok := reloaded.Get(id)
		require.True(t, ok)
		assert.Equal(t, "post-reload document", doc.Content)
	})
}

func TestOpenEmptyStore(t *testing.T) {
	s, err := Open(context.Background(),
		WithProvider(embedding.NewLocalProvider(16)),
		WithManager(persistence.NewManager(blobstore.NewMemoryStore(), nil)),
	)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Count())
}

func TestOpenWithoutManager(t *testing.T) {
	_, err := Open(context.Background(), WithProvider(embedding.NewLocalProvider(16)))
	require.ErrorIs(t, err, ErrNoPersistence)
}

func TestCorruptSnapshotRefused(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	provider := embedding.NewLocalProvider(16)

	s, err := New(
		WithProvider(provider),
		WithManager(persistence.NewManager(blobs, nil)),
	)
	require.NoError(t, err)
	_, err = s.Add(ctx, "document one", nil)
	require.NoError(t, err)
	_, err = s.Add(ctx, "document two", nil)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx))

	t.Run("TamperedLedger", func(t *testing.T) {
		data, err := blobstore.ReadAll(ctx, blobs, persistence.LedgerName(1))
		require.NoError(t, err)
		data[len(data)/2] ^= 0xFF
		require.NoError(t, blobs.Put(ctx, persistence.LedgerName(1), data))

		_, err = Open(ctx,
			WithProvider(provider),
			WithManager(persistence.NewManager(blobs, nil)),
		)
		var corrupt *persistence.CorruptionError
		require.ErrorAs(t, err, &corrupt)

		// Restore for the next subtest.
		data[len(data)/2] ^= 0xFF
		require.NoError(t, blobs.Put(ctx, persistence.LedgerName(1), data))
	})

	t.Run("MissingIndexBlob", func(t *testing.T) {
		saved, err := blobstore.ReadAll(ctx, blobs, persistence.IndexName(1))
		require.NoError(t, err)
		require.NoError(t, blobs.Delete(ctx, persistence.IndexName(1)))

		_, err = Open(ctx,
			WithProvider(provider),
			WithManager(persistence.NewManager(blobs, nil)),
		)
		var corrupt *persistence.CorruptionError
		require.ErrorAs(t, err, &corrupt)

		require.NoError(t, blobs.Put(ctx, persistence.IndexName(1), saved))
	})

	t.Run("IntactSnapshotStillLoads", func(t *testing.T) {
		reloaded, err := Open(ctx,
			WithProvider(provider),
			WithManager(persistence.NewManager(blobs, nil)),
		)
		require.NoError(t, err)
		assert.Equal(t, 2, reloaded.Count())
	})
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Add(ctx, "before close", nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Add(ctx, "after close", nil)
	require.ErrorIs(t, err, ErrClosed)

	// Reads still work.
	_, ok := s.Get(id)
	assert.True(t, ok)
}
