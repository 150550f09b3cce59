package embedding

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// CachingProvider memoizes embeddings by exact text.
//
// Concurrent requests for the same uncached text are collapsed into a single
// provider call via singleflight, which matters when the inner provider is a
// remote model endpoint.
type CachingProvider struct {
	inner Provider

	mu    sync.RWMutex
	cache map[string][]float32
	group singleflight.Group
}

// NewCachingProvider wraps a provider with an unbounded in-memory cache.
func NewCachingProvider(inner Provider) *CachingProvider {
	return &CachingProvider{
		inner: inner,
		cache: make(map[string][]float32),
	}
}

// Dimension returns the inner provider's dimensionality.
func (p *CachingProvider) Dimension() int { return p.inner.Dimension() }

// Embed returns the cached vector or delegates to the inner provider.
func (p *CachingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.RLock()
	vec, ok := p.cache[text]
	p.mu.RUnlock()
	if ok {
		return cloneVector(vec), nil
	}

	v, err, _ := p.group.Do(text, func() (any, error) {
		vec, err := p.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.cache[text] = vec
		p.mu.Unlock()
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneVector(v.([]float32)), nil
}

// Len returns the number of cached entries.
func (p *CachingProvider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.cache)
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
