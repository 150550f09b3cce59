package persistence

import (
	"fmt"
	"time"
)

const (
	// CurrentName is the pointer blob naming the committed manifest.
	// Flipping it is the commit point of a snapshot.
	CurrentName = "CURRENT"

	// ManifestVersion is the current manifest schema version.
	ManifestVersion = 1
)

// Artifact name templates. Every snapshot writes fresh, version-suffixed
// blobs; nothing is overwritten in place, so a crashed save never damages
// the committed snapshot.
const (
	manifestNameFmt = "MANIFEST-%06d"
	ledgerNameFmt   = "ledger-%06d.dat"
	indexNameFmt    = "index-%06d.dat"
)

// ManifestName returns the blob name of the manifest for a snapshot version.
func ManifestName(version uint64) string {
	return fmt.Sprintf(manifestNameFmt, version)
}

// LedgerName returns the blob name of the document ledger for a version.
func LedgerName(version uint64) string {
	return fmt.Sprintf(ledgerNameFmt, version)
}

// IndexName returns the blob name of the vector index for a version.
func IndexName(version uint64) string {
	return fmt.Sprintf(indexNameFmt, version)
}

// Manifest describes one committed snapshot: which blobs belong to it, how
// the ledger is encoded, and the checksums and counts used to detect
// corruption on load.
//
// The manifest itself is always stored as plain JSON so it can be decoded
// before the ledger codec is known.
type Manifest struct {
	SchemaVersion int       `json:"schema_version"`
	Version       uint64    `json:"version"`
	CreatedAt     time.Time `json:"created_at"`

	// CodecName selects the codec for the ledger blob on load.
	CodecName string `json:"codec_name"`

	LedgerBlob     string `json:"ledger_blob"`
	LedgerChecksum uint32 `json:"ledger_checksum"`
	IndexBlob      string `json:"index_blob"`
	IndexChecksum  uint32 `json:"index_checksum"`

	// DocumentCount and IndexLiveCount must agree with the decoded
	// artifacts; a mismatch means the snapshot is corrupt.
	DocumentCount  int `json:"document_count"`
	IndexLiveCount int `json:"index_live_count"`
}
