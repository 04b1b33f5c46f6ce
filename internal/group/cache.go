package group

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/osse101/riddlegroup/internal/domain"
)

// CacheConfig sizes the group snapshot cache
type CacheConfig struct {
	Size int
	TTL  time.Duration
}

// CacheStats reports cache effectiveness
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

// cachedGroupEntry wraps a group with version metadata for cache invalidation
type cachedGroupEntry struct {
	Version  string
	Group    *domain.Group
	CachedAt time.Time
}

// groupCache holds committed group snapshots keyed by ID. Entries are cloned on
// the way in and out so callers never share memory with the cache.
type groupCache struct {
	lru    *expirable.LRU[int64, *cachedGroupEntry]
	hits   atomic.Int64
	misses atomic.Int64
}

func newGroupCache(cfg CacheConfig) *groupCache {
	size := cfg.Size
	if size <= 0 {
		size = DefaultCacheSize
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &groupCache{
		lru: expirable.NewLRU[int64, *cachedGroupEntry](size, nil, ttl),
	}
}

// Get returns (group, true) on a hit with a matching schema version
func (c *groupCache) Get(id int64) (*domain.Group, bool) {
	entry, found := c.lru.Get(id)
	if !found {
		c.misses.Add(1)
		return nil, false
	}
	if entry.Version != CacheSchemaVersion {
		c.lru.Remove(id)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return entry.Group.Clone(), true
}

// Set stores a snapshot with the current schema version
func (c *groupCache) Set(g *domain.Group) {
	c.lru.Add(g.ID, &cachedGroupEntry{
		Version:  CacheSchemaVersion,
		Group:    g.Clone(),
		CachedAt: time.Now(),
	})
}

// Invalidate removes a group after a committed mutation
func (c *groupCache) Invalidate(id int64) {
	c.lru.Remove(id)
}

// Clear removes all entries
func (c *groupCache) Clear() {
	c.lru.Purge()
}

// GetStats returns hit/miss counters and the current entry count
func (c *groupCache) GetStats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.lru.Len(),
	}
}
