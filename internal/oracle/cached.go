package oracle

import (
	"context"

	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/cache"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/monitoring"
)

// Cached serves repeated (text, country) lookups from a TTL cache. Only
// successful signals are stored, so a failing oracle is retried next time.
type Cached struct {
	inner   Oracle
	cache   *cache.Cache[Signal]
	metrics *monitoring.Metrics
}

// NewCached wraps inner. metrics may be nil.
func NewCached(inner Oracle, c *cache.Cache[Signal], metrics *monitoring.Metrics) *Cached {
	return &Cached{inner: inner, cache: c, metrics: metrics}
}

// Name returns the wrapped oracle's name
func (c *Cached) Name() string {
	return c.inner.Name()
}

// InferSentiment returns a cached signal or asks the wrapped oracle
func (c *Cached) InferSentiment(ctx context.Context, text string, country CountryContext) (Signal, error) {
	key := cache.Key(c.inner.Name(), country.Code, text)

	if signal, ok := c.cache.Get(key); ok {
		c.metrics.IncrementCacheHit()
		return signal, nil
	}
	c.metrics.IncrementCacheMiss()

	signal, err := c.inner.InferSentiment(ctx, text, country)
	if err != nil {
		return Signal{}, err
	}
	c.cache.Set(key, signal)
	return signal, nil
}
