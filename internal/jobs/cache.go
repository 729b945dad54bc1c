package jobs

import (
	"sync"
	"time"
)

// metricsCache memoizes expensive aggregates per metric name for a short
// TTL. Entries expire purely by time, never by writes, so monitor output
// can be up to one TTL stale. Each monitor instance owns its cache; there
// is no package-level state.
type metricsCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value   any
	expires time.Time
}

func newMetricsCache(ttl time.Duration) *metricsCache {
	return &metricsCache{ttl: ttl, entries: make(map[string]cacheEntry)}
}

func (c *metricsCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

func (c *metricsCache) set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expires: time.Now().Add(c.ttl)}
}
