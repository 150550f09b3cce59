package persistence

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/researchgo/blobstore"
	"github.com/hupe1980/researchgo/codec"
)

type testLedger struct {
	Entries []string `json:"entries"`
}

func TestManagerSaveLoad(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	m := NewManager(store, nil)

	ledger := testLedger{Entries: []string{"doc-a", "doc-b"}}
	index := []byte("opaque index payload")

	manifest, err := m.Save(ctx, ledger, index, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), manifest.Version)
	assert.Equal(t, 2, manifest.DocumentCount)

	var loaded testLedger
	got, gotIndex, err := m.Load(ctx, &loaded)
	require.NoError(t, err)
	assert.Equal(t, manifest.Version, got.Version)
	assert.Equal(t, ledger, loaded)
	assert.Equal(t, index, gotIndex)

	t.Run("IndexBlobIsFramed", func(t *testing.T) {
		stored, err := blobstore.ReadAll(ctx, store, manifest.IndexBlob)
		require.NoError(t, err)
		assert.NotEqual(t, index, stored)
		assert.Equal(t, Checksum(stored), manifest.IndexChecksum)

		unframed, err := codec.DecompressFrame(stored)
		require.NoError(t, err)
		assert.Equal(t, index, unframed)
	})

	t.Run("VersionsAdvance", func(t *testing.T) {
		m2, err := m.Save(ctx, ledger, index, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), m2.Version)
	})
}

func TestManagerEmptyStore(t *testing.T) {
	m := NewManager(blobstore.NewMemoryStore(), nil)

	var out testLedger
	_, _, err := m.Load(context.Background(), &out)
	require.ErrorIs(t, err, ErrNoSnapshot)
}

func TestManagerCorruption(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Manager, blobstore.BlobStore, *Manifest) {
		store := blobstore.NewMemoryStore()
		m := NewManager(store, nil)
		manifest, err := m.Save(ctx, testLedger{Entries: []string{"doc-a"}}, []byte("index"), 1, 1)
		require.NoError(t, err)
		return m, store, manifest
	}

	t.Run("FlippedLedgerByte", func(t *testing.T) {
		m, store, manifest := setup(t)
		data, err := blobstore.ReadAll(ctx, store, manifest.LedgerBlob)
		require.NoError(t, err)
		data[0] ^= 0xFF
		require.NoError(t, store.Put(ctx, manifest.LedgerBlob, data))

		var out testLedger
		_, _, err = m.Load(ctx, &out)
		var corrupt *CorruptionError
		require.ErrorAs(t, err, &corrupt)
		assert.Equal(t, manifest.LedgerBlob, corrupt.Artifact)

		var mismatch *ChecksumMismatchError
		assert.ErrorAs(t, err, &mismatch)
	})

	t.Run("MissingIndexBlob", func(t *testing.T) {
		m, store, manifest := setup(t)
		require.NoError(t, store.Delete(ctx, manifest.IndexBlob))

		var out testLedger
		_, _, err := m.Load(ctx, &out)
		var corrupt *CorruptionError
		require.ErrorAs(t, err, &corrupt)
		assert.Equal(t, manifest.IndexBlob, corrupt.Artifact)
	})

	t.Run("UndecodableIndexFrame", func(t *testing.T) {
		m, store, manifest := setup(t)

		// Garbage that passes the checksum but is no LZ4 frame: swap the
		// blob and rewrite the manifest's checksum to match.
		garbage := []byte("not an lz4 frame")
		require.NoError(t, store.Put(ctx, manifest.IndexBlob, garbage))
		manifest.IndexChecksum = Checksum(garbage)
		rewritten, err := json.Marshal(manifest)
		require.NoError(t, err)
		require.NoError(t, store.Put(ctx, ManifestName(manifest.Version), rewritten))

		var out testLedger
		_, _, err = m.Load(ctx, &out)
		var corrupt *CorruptionError
		require.ErrorAs(t, err, &corrupt)
		assert.Equal(t, manifest.IndexBlob, corrupt.Artifact)
	})

	t.Run("DanglingCurrent", func(t *testing.T) {
		m, store, _ := setup(t)
		require.NoError(t, store.Put(ctx, CurrentName, []byte("MANIFEST-999999")))

		var out testLedger
		_, _, err := m.Load(ctx, &out)
		var corrupt *CorruptionError
		require.ErrorAs(t, err, &corrupt)
	})

	t.Run("GarbageManifest", func(t *testing.T) {
		m, store, manifest := setup(t)
		require.NoError(t, store.Put(ctx, ManifestName(manifest.Version), []byte("not json")))

		var out testLedger
		_, _, err := m.Load(ctx, &out)
		var corrupt *CorruptionError
		require.ErrorAs(t, err, &corrupt)
	})
}

func TestManagerDestroy(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	m := NewManager(store, nil)

	_, err := m.Save(ctx, testLedger{}, []byte("x"), 0, 0)
	require.NoError(t, err)
	require.NoError(t, m.Destroy(ctx))

	var out testLedger
	_, _, err = m.Load(ctx, &out)
	require.ErrorIs(t, err, ErrNoSnapshot)

	// Destroying an empty store is a no-op.
	require.NoError(t, m.Destroy(ctx))
}
