package deployments

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/conductorhq/conductor/pkg/observability"
)

// CachedStore fronts a Store with an in-process LRU keyed by release name.
// Gateway auth checks hit the same handful of releases repeatedly, so even
// a small cache removes most lookups from the hot path. Entries are cached
// by release name only; GetByID and List pass through.
type CachedStore struct {
	inner   Store
	cache   *lru.Cache[string, *Deployment]
	metrics *observability.Metrics
}

// NewCachedStore wraps a store with an LRU cache of the given size.
// metrics may be nil.
func NewCachedStore(inner Store, size int, metrics *observability.Metrics) (*CachedStore, error) {
	cache, err := lru.New[string, *Deployment](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create deployment cache: %w", err)
	}
	return &CachedStore{inner: inner, cache: cache, metrics: metrics}, nil
}

// GetByReleaseName returns the cached deployment or falls through to the
// inner store. Negative results are not cached: a missing deployment may
// be created at any moment and must become visible immediately.
func (c *CachedStore) GetByReleaseName(ctx context.Context, releaseName string) (*Deployment, error) {
	if d, ok := c.cache.Get(releaseName); ok {
		if c.metrics != nil {
			c.metrics.LookupCacheHitsTotal.Inc()
		}
		return d, nil
	}
	if c.metrics != nil {
		c.metrics.LookupCacheMissesTotal.Inc()
	}

	d, err := c.inner.GetByReleaseName(ctx, releaseName)
	if err != nil {
		return nil, err
	}
	c.cache.Add(releaseName, d)
	return d, nil
}

// GetByID passes through to the inner store
func (c *CachedStore) GetByID(ctx context.Context, id string) (*Deployment, error) {
	return c.inner.GetByID(ctx, id)
}

// List passes through to the inner store
func (c *CachedStore) List(ctx context.Context) ([]*Deployment, error) {
	return c.inner.List(ctx)
}

// Invalidate drops a release from the cache. Called by the reconciliation
// worker after applying a configuration change.
func (c *CachedStore) Invalidate(releaseName string) {
	c.cache.Remove(releaseName)
}
