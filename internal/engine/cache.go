package engine

import (
	"context"
	"sync"
	"time"
)

// SharedCache is an optional second-level result cache (Redis in the
// daemon). The in-memory tier stays authoritative; the shared tier only
// widens reuse across processes.
type SharedCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

type cacheEntry struct {
	value     string
	createdAt time.Time
}

// resultCache holds recent translations keyed by (preset, text hash).
// Entries expire after ttl: filtered lazily on read and swept
// periodically by the engine's background pass.
type resultCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	shared  SharedCache

	now func() time.Time
}

func newResultCache(ttl time.Duration, shared SharedCache) *resultCache {
	return &resultCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		shared:  shared,
		now:     time.Now,
	}
}

func (c *resultCache) Get(ctx context.Context, key string) (string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		if c.now().Sub(entry.createdAt) < c.ttl {
			return entry.value, true
		}
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
	}

	if c.shared != nil {
		if v, ok := c.shared.Get(ctx, key); ok {
			c.mu.Lock()
			c.entries[key] = cacheEntry{value: v, createdAt: c.now()}
			c.mu.Unlock()
			return v, true
		}
	}
	return "", false
}

func (c *resultCache) Set(ctx context.Context, key, value string) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, createdAt: c.now()}
	c.mu.Unlock()

	if c.shared != nil {
		c.shared.Set(ctx, key, value, c.ttl)
	}
}

// Sweep drops expired entries. Runs on the engine's cleanup ticker.
func (c *resultCache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if now.Sub(entry.createdAt) >= c.ttl {
			delete(c.entries, key)
		}
	}
	return len(c.entries)
}

func (c *resultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
