package researchgo

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/researchgo/blobstore"
	"github.com/hupe1980/researchgo/embedding"
	"github.com/hupe1980/researchgo/metadata"
)

func newAssistant(t *testing.T, optFns ...Option) *ResearchGo {
	t.Helper()
	opts := append([]Option{
		WithProvider(embedding.NewLocalProvider(64)),
		WithLogger(NoopLogger()),
	}, optFns...)

	ra, err := New(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { ra.Close() })
	return ra
}

func seed(t *testing.T, ra *ResearchGo) {
	t.Helper()
	ctx := context.Background()
	docs := []string{
		"Artificial intelligence is the simulation of human intelligence by machines.",
		"Machine learning is a subset of artificial intelligence focused on learning from data.",
		"Vector databases enable semantic search over document embeddings.",
	}
	for _, d := range docs {
		_, err := ra.Store().Add(ctx, d, metadata.Metadata{"corpus": "seed"})
		require.NoError(t, err)
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	ra := newAssistant(t)
	seed(t, ra)

	result, err := ra.Run(ctx, "What is artificial intelligence?")
	require.NoError(t, err)

	assert.Equal(t, "What is artificial intelligence?", result.Query)
	assert.NotEmpty(t, result.FinalAnswer)
	assert.Greater(t, result.Confidence, 0.0)
	assert.NotEmpty(t, result.Documents)
	assert.Greater(t, result.Duration.Nanoseconds(), int64(0))

	require.Len(t, result.Steps, 3)
	assert.NotEmpty(t, result.Steps[0].Output)

	t.Run("ComplexQuery", func(t *testing.T) {
		result, err := ra.Run(ctx, "Compare machine learning and vector databases and explain why both matter")
		require.NoError(t, err)
		assert.Len(t, result.Steps, 5)
		assert.NotEmpty(t, result.FinalAnswer)
	})
}

func TestRunWithoutDocuments(t *testing.T) {
	ra := newAssistant(t)

	result, err := ra.Run(context.Background(), "What is out there?")
	require.NoError(t, err)
	assert.Contains(t, result.FinalAnswer, "No relevant information was found")
	assert.Empty(t, result.Documents)
}

func TestPersistenceAcrossInstances(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	provider := embedding.NewLocalProvider(64)

	ra := newAssistant(t, WithProvider(provider), WithBlobStore(blobs))
	seed(t, ra)
	require.NoError(t, ra.Save(ctx))
	require.NoError(t, ra.Close())

	reopened := newAssistant(t, WithProvider(provider), WithBlobStore(blobs))
	assert.Equal(t, 3, reopened.Store().Count())

	result, err := reopened.Run(ctx, "What is machine learning?")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Documents)
}

func TestHistoryRecording(t *testing.T) {
	ctx := context.Background()
	historyPath := filepath.Join(t.TempDir(), "history.db")

	ra := newAssistant(t, WithHistory(historyPath))
	seed(t, ra)

	_, err := ra.Run(ctx, "What is artificial intelligence?")
	require.NoError(t, err)
	_, err = ra.Run(ctx, "Which database enables semantic search?")
	require.NoError(t, err)

	entries, err := ra.History().Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Which database enables semantic search?", entries[0].Query)
	assert.Equal(t, 3, entries[0].StepCount)
}

func TestErrorPredicates(t *testing.T) {
	ctx := context.Background()
	ra := newAssistant(t)

	require.NoError(t, ra.Store().AddWithID(ctx, "dup", "content", nil))
	err := ra.Store().AddWithID(ctx, "dup", "content", nil)
	assert.True(t, IsDuplicateID(err))
	assert.False(t, IsCorruption(err))

	_, err = ra.Store().Search(ctx, "   ", 5, 0)
	assert.True(t, IsEmbeddingUnavailable(err))
}
