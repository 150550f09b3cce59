package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/hupe1980/researchgo/internal/textutil"
)

// DefaultDimension is the output dimensionality of the local provider.
const DefaultDimension = 256

// LocalProvider is a deterministic, dependency-free feature-hashing
// provider. Tokens are hashed into a fixed number of signed buckets and the
// result is L2-normalized.
//
// It is not a semantic model; it exists so that examples and tests can run
// fully offline with stable vectors. Identical texts always produce
// identical vectors, and texts sharing tokens land near each other.
type LocalProvider struct {
	dim int
}

// NewLocalProvider creates a local provider with the given dimension.
// Non-positive dimensions fall back to DefaultDimension.
func NewLocalProvider(dim int) *LocalProvider {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &LocalProvider{dim: dim}
}

// Dimension returns the fixed output dimensionality.
func (p *LocalProvider) Dimension() int { return p.dim }

// Embed hashes the tokens of text into signed buckets and normalizes.
func (p *LocalProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := textutil.Tokenize(text)
	if len(tokens) == 0 {
		return nil, ErrNoFeatures
	}

	vec := make([]float32, p.dim)
	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()

		bucket := int(sum % uint64(p.dim))
		// Highest bit decides the sign so that unrelated tokens cancel
		// rather than accumulate.
		if sum&(1<<63) != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return nil, ErrNoFeatures
	}

	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec, nil
}
