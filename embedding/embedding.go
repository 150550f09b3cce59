// Package embedding defines the contract for text-to-vector providers and a
// set of provider decorators (caching, rate limiting).
//
// The provider is an external collaborator from the store's point of view:
// researchgo never interprets vector components, it only requires a fixed
// dimension per provider instance and treats any failure as opaque.
package embedding

import (
	"context"
	"errors"
)

// ErrNoFeatures is returned when the input text yields no usable signal
// (empty or whitespace-only input). Stores must treat this as a failed
// embedding; a degenerate zero vector would corrupt cosine ranking.
var ErrNoFeatures = errors.New("embedding: text has no features")

// Provider converts text into a fixed-dimension vector.
//
// Implementations must be safe for concurrent use. Embed is a blocking,
// bounded-latency call; pass a context to bound it further.
type Provider interface {
	// Embed returns a vector of exactly Dimension() components.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the fixed output dimensionality.
	Dimension() int
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc struct {
	Fn  func(ctx context.Context, text string) ([]float32, error)
	Dim int
}

// Embed calls the wrapped function.
func (p ProviderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.Fn(ctx, text)
}

// Dimension returns the declared dimensionality.
func (p ProviderFunc) Dimension() int { return p.Dim }
