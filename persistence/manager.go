// Package persistence coordinates snapshotting of the document store.
//
// A snapshot consists of three blobs: a codec-encoded document ledger, an
// opaque index blob, and a JSON manifest binding the two together with CRC32
// checksums. The CURRENT pointer names the committed manifest; it is flipped
// only after every other blob is durably written, so a crash mid-save leaves
// the previous snapshot intact.
//
// Corruption is never repaired silently: a snapshot whose checksums or
// counts do not line up fails the load with a *CorruptionError.
package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/researchgo/blobstore"
	"github.com/hupe1980/researchgo/codec"
)

// timeNow is swapped out in tests.
var timeNow = time.Now

// ErrNoSnapshot is returned by Load when the store holds no committed
// snapshot. Callers treat this as an empty store, not a failure.
var ErrNoSnapshot = errors.New("no committed snapshot")

// CorruptionError indicates that a committed snapshot failed an integrity
// check. The store refuses to load rather than serving partial data.
type CorruptionError struct {
	Artifact string
	Reason   string
	Err      error
}

func (e *CorruptionError) Error() string {
	msg := fmt.Sprintf("snapshot corrupt: %s: %s", e.Artifact, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// Manager saves and loads snapshots against a blob store.
//
// It is safe for concurrent use as long as only one writer calls Save at a
// time; the document store serializes saves behind its own lock.
type Manager struct {
	store blobstore.BlobStore
	codec codec.Codec
}

// NewManager creates a manager over the given blob store. A nil codec
// selects codec.Default.
func NewManager(store blobstore.BlobStore, c codec.Codec) *Manager {
	if c == nil {
		c = codec.Default
	}
	return &Manager{store: store, codec: c}
}

// Codec returns the codec used to encode new ledgers.
func (m *Manager) Codec() codec.Codec { return m.codec }

// Save writes a new snapshot and commits it by flipping CURRENT.
//
// ledger is codec-encoded; index is treated as an opaque blob and stored
// inside an LZ4 frame. docCount and liveCount are recorded in the manifest
// and cross-checked on load.
func (m *Manager) Save(ctx context.Context, ledger any, index []byte, docCount, liveCount int) (*Manifest, error) {
	version := uint64(1)
	if prev, err := m.currentManifest(ctx); err == nil {
		version = prev.Version + 1
	} else if !errors.Is(err, ErrNoSnapshot) {
		return nil, err
	}

	ledgerBytes, err := m.codec.Marshal(ledger)
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}

	indexBytes, err := codec.CompressFrame(index)
	if err != nil {
		return nil, fmt.Errorf("compress index: %w", err)
	}

	manifest := &Manifest{
		SchemaVersion:  ManifestVersion,
		Version:        version,
		CreatedAt:      timeNow(),
		CodecName:      m.codec.Name(),
		LedgerBlob:     LedgerName(version),
		LedgerChecksum: Checksum(ledgerBytes),
		IndexBlob:      IndexName(version),
		IndexChecksum:  Checksum(indexBytes),
		DocumentCount:  docCount,
		IndexLiveCount: liveCount,
	}

	if err := m.store.Put(ctx, manifest.LedgerBlob, ledgerBytes); err != nil {
		return nil, fmt.Errorf("write ledger: %w", err)
	}
	if err := m.store.Put(ctx, manifest.IndexBlob, indexBytes); err != nil {
		return nil, fmt.Errorf("write index: %w", err)
	}

	manifestBytes, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	manifestName := ManifestName(version)
	if err := m.store.Put(ctx, manifestName, manifestBytes); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	// Commit point.
	if err := m.store.Put(ctx, CurrentName, []byte(manifestName)); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}

	return manifest, nil
}

// Load reads the committed snapshot, decodes the ledger into ledgerOut and
// returns the manifest together with the unframed index blob, byte-for-byte
// as it was passed to Save.
//
// Integrity failures surface as *CorruptionError; an empty store returns
// ErrNoSnapshot.
func (m *Manager) Load(ctx context.Context, ledgerOut any) (*Manifest, []byte, error) {
	manifest, err := m.currentManifest(ctx)
	if err != nil {
		return nil, nil, err
	}

	ledgerBytes, err := blobstore.ReadAll(ctx, m.store, manifest.LedgerBlob)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, nil, &CorruptionError{Artifact: manifest.LedgerBlob, Reason: "referenced blob missing", Err: err}
		}
		return nil, nil, fmt.Errorf("read ledger: %w", err)
	}
	if sum := Checksum(ledgerBytes); sum != manifest.LedgerChecksum {
		return nil, nil, &CorruptionError{
			Artifact: manifest.LedgerBlob,
			Reason:   "checksum mismatch",
			Err:      &ChecksumMismatchError{Expected: manifest.LedgerChecksum, Actual: sum},
		}
	}

	indexBytes, err := blobstore.ReadAll(ctx, m.store, manifest.IndexBlob)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, nil, &CorruptionError{Artifact: manifest.IndexBlob, Reason: "referenced blob missing", Err: err}
		}
		return nil, nil, fmt.Errorf("read index: %w", err)
	}
	if sum := Checksum(indexBytes); sum != manifest.IndexChecksum {
		return nil, nil, &CorruptionError{
			Artifact: manifest.IndexBlob,
			Reason:   "checksum mismatch",
			Err:      &ChecksumMismatchError{Expected: manifest.IndexChecksum, Actual: sum},
		}
	}
	index, err := codec.DecompressFrame(indexBytes)
	if err != nil {
		return nil, nil, &CorruptionError{Artifact: manifest.IndexBlob, Reason: "undecodable index frame", Err: err}
	}

	c, ok := codec.ByName(manifest.CodecName)
	if !ok {
		return nil, nil, &CorruptionError{
			Artifact: manifest.LedgerBlob,
			Reason:   fmt.Sprintf("unknown codec %q", manifest.CodecName),
		}
	}
	if err := c.Unmarshal(ledgerBytes, ledgerOut); err != nil {
		return nil, nil, &CorruptionError{Artifact: manifest.LedgerBlob, Reason: "undecodable ledger", Err: err}
	}

	return manifest, index, nil
}

// Destroy removes the committed snapshot and its pointer. Used by tests and
// by callers that want an explicit, audited reset.
func (m *Manager) Destroy(ctx context.Context) error {
	manifest, err := m.currentManifest(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, name := range []string{CurrentName, ManifestName(manifest.Version), manifest.LedgerBlob, manifest.IndexBlob} {
		if err := m.store.Delete(ctx, name); err != nil {
			return fmt.Errorf("delete %s: %w", name, err)
		}
	}
	return nil
}

func (m *Manager) currentManifest(ctx context.Context) (*Manifest, error) {
	current, err := blobstore.ReadAll(ctx, m.store, CurrentName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("read %s: %w", CurrentName, err)
	}

	manifestName := strings.TrimSpace(string(current))
	if manifestName == "" {
		return nil, &CorruptionError{Artifact: CurrentName, Reason: "empty pointer"}
	}

	manifestBytes, err := blobstore.ReadAll(ctx, m.store, manifestName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, &CorruptionError{Artifact: manifestName, Reason: "pointed-to manifest missing", Err: err}
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest Manifest
	dec := json.NewDecoder(bytes.NewReader(manifestBytes))
	if err := dec.Decode(&manifest); err != nil {
		return nil, &CorruptionError{Artifact: manifestName, Reason: "undecodable manifest", Err: err}
	}
	if manifest.SchemaVersion != ManifestVersion {
		return nil, &CorruptionError{
			Artifact: manifestName,
			Reason:   fmt.Sprintf("unsupported schema version %d", manifest.SchemaVersion),
		}
	}
	return &manifest, nil
}
