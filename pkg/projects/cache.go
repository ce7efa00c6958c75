package projects

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// CacheConfig bounds the project cache
type CacheConfig struct {
	MaxEntries int
	TTL        time.Duration
}

// DefaultCacheConfig returns the cache bounds used when none are configured
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxEntries: 4096,
		TTL:        30 * time.Second,
	}
}

// CachedStore decorates a Store with a bounded, expiring LRU cache. Entries
// age out on their own, and the write path calls Invalidate so a settings
// change is visible on the next request instead of after TTL expiry.
// Concurrent misses for the same project collapse into a single load.
type CachedStore struct {
	inner Store
	lru   *expirable.LRU[string, *Project]
	group singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedStore wraps inner with an LRU cache using the given bounds
func NewCachedStore(inner Store, cfg CacheConfig) *CachedStore {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultCacheConfig().MaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheConfig().TTL
	}
	return &CachedStore{
		inner: inner,
		lru:   expirable.NewLRU[string, *Project](cfg.MaxEntries, nil, cfg.TTL),
	}
}

// LoadProject returns the cached project when present, otherwise loads it
// through the inner store. Errors are never cached.
func (c *CachedStore) LoadProject(ctx context.Context, id string) (*Project, error) {
	if p, ok := c.lru.Get(id); ok {
		c.hits.Add(1)
		return p, nil
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(id, func() (interface{}, error) {
		p, err := c.inner.LoadProject(ctx, id)
		if err != nil {
			return nil, err
		}
		c.lru.Add(id, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Project), nil
}

// LoadPrimaryProject resolves the primary project, reusing the cache for
// both the project and its parent
func (c *CachedStore) LoadPrimaryProject(ctx context.Context, id string) (*Project, error) {
	project, err := c.LoadProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.ParentID == nil || *project.ParentID == "" || *project.ParentID == project.ID {
		return project, nil
	}
	return c.LoadProject(ctx, *project.ParentID)
}

// Invalidate evicts a project so the next load observes fresh state
func (c *CachedStore) Invalidate(id string) {
	c.lru.Remove(id)
}

// Stats reports cache hit and miss counts
func (c *CachedStore) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// CachedTeamStore decorates a TeamStore with the same bounded, expiring
// cache. Teams change rarely; TTL expiry alone is acceptable here, but
// Invalidate is available to the write path all the same.
type CachedTeamStore struct {
	inner TeamStore
	lru   *expirable.LRU[string, *Team]
	group singleflight.Group
}

// NewCachedTeamStore wraps inner with an LRU cache using the given bounds
func NewCachedTeamStore(inner TeamStore, cfg CacheConfig) *CachedTeamStore {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultCacheConfig().MaxEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheConfig().TTL
	}
	return &CachedTeamStore{
		inner: inner,
		lru:   expirable.NewLRU[string, *Team](cfg.MaxEntries, nil, cfg.TTL),
	}
}

// LoadTeam returns the cached team when present, otherwise loads it through
// the inner store
func (c *CachedTeamStore) LoadTeam(ctx context.Context, id string) (*Team, error) {
	if t, ok := c.lru.Get(id); ok {
		return t, nil
	}

	v, err, _ := c.group.Do(id, func() (interface{}, error) {
		t, err := c.inner.LoadTeam(ctx, id)
		if err != nil {
			return nil, err
		}
		c.lru.Add(id, t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Team), nil
}

// Invalidate evicts a team so the next load observes fresh state
func (c *CachedTeamStore) Invalidate(id string) {
	c.lru.Remove(id)
}
