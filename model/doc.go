// Package model defines the core types shared across researchgo.
//
// # Identity
//
//   - Documents carry a stable string ID that is unique for the lifetime of a
//     store. Generated IDs are never reused, even after deletion.
//   - Slot is the vector index's internal addressable position. A live
//     document with an embedding maps to exactly one slot and vice versa.
//
// # Data Types
//
//   - Document: text content with metadata, optional embedding and timestamps
//   - SearchHit: a document paired with its cosine similarity score
//   - Stats: aggregate counters describing a store
package model
