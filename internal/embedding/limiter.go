package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedEmbedder paces calls to a remote embedding service.
type RateLimitedEmbedder struct {
	inner   Embedder
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder allows rps calls per second with the given burst.
func NewRateLimitedEmbedder(inner Embedder, rps float64, burst int) *RateLimitedEmbedder {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedEmbedder{inner: inner, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Embed waits for a token, then delegates.
func (e *RateLimitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding rate limit wait: %w", err)
	}
	return e.inner.Embed(ctx, text)
}

// Dimensions returns the wrapped embedder's dimension.
func (e *RateLimitedEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Close closes the wrapped embedder.
func (e *RateLimitedEmbedder) Close() error {
	return e.inner.Close()
}
