package model

import (
	"time"

	"github.com/hupe1980/researchgo/metadata"
)

// Slot is a vector index's internal addressable position.
// It is transient and only meaningful while the owning document is live.
type Slot uint32

// Document represents a stored text document.
type Document struct {
	// ID is the stable, store-unique identifier.
	ID string `json:"id"`

	// Content is the raw document text.
	Content string `json:"content"`

	// Metadata holds scalar-valued, string-keyed attributes.
	Metadata metadata.Metadata `json:"metadata"`

	// Embedding is the unit-normalized vector for Content.
	// It is nil when the store was created without an embedding provider.
	Embedding []float32 `json:"embedding"`

	// CreatedAt and UpdatedAt are set by the store.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := d
	if d.Embedding != nil {
		out.Embedding = make([]float32, len(d.Embedding))
		copy(out.Embedding, d.Embedding)
	}
	out.Metadata = d.Metadata.Clone()
	return out
}

// SearchHit pairs a document with its similarity score.
type SearchHit struct {
	Document Document `json:"document"`

	// Score is the cosine similarity between the query and the document,
	// computed as the inner product of unit-normalized vectors.
	Score float32 `json:"score"`
}

// Stats describes the current state of a document store.
type Stats struct {
	TotalDocuments   int  `json:"total_documents"`
	IndexedDocuments int  `json:"indexed_documents"`
	Dimension        int  `json:"dimension"`
	HasProvider      bool `json:"has_provider"`
}
