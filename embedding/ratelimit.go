package embedding

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedProvider throttles embedding calls with a token bucket.
//
// Remote providers meter by request; wrapping them keeps bulk ingestion from
// tripping server-side limits. Embed blocks until a token is available or
// the context is canceled.
type RateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimitedProvider wraps a provider with the given requests-per-second
// budget and burst size.
func NewRateLimitedProvider(inner Provider, rps float64, burst int) *RateLimitedProvider {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Dimension returns the inner provider's dimensionality.
func (p *RateLimitedProvider) Dimension() int { return p.inner.Dimension() }

// Embed waits for the limiter, then delegates.
func (p *RateLimitedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.inner.Embed(ctx, text)
}
