package upstream

import (
	"context"
	"sync"
	"time"
)

// Layer is an optional shared cache tier behind the in-memory map.
// Implementations must be safe for concurrent use.
type Layer interface {
	Get(ctx context.Context, key string) (body []byte, ttl time.Duration, ok bool, err error)
	Set(ctx context.Context, key string, body []byte, ttl time.Duration) error
}

type entry struct {
	env       Envelope
	body      []byte
	fetchedAt time.Time
	ttl       time.Duration
}

func (e *entry) fresh(now time.Time) bool {
	return now.Sub(e.fetchedAt) < e.ttl
}

// memoryCache is a bounded map. When full, the entry fetched longest ago is
// evicted. Entries are replaced, never mutated, so readers may keep pointers.
type memoryCache struct {
	mu         sync.Mutex
	entries    map[CacheKey]*entry
	maxEntries int
}

func newMemoryCache(maxEntries int) *memoryCache {
	return &memoryCache{
		entries:    make(map[CacheKey]*entry),
		maxEntries: maxEntries,
	}
}

func (c *memoryCache) get(key CacheKey) (*entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok
}

// put stores e and returns how many entries were evicted to make room.
func (c *memoryCache) put(key CacheKey, e *entry) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	if _, exists := c.entries[key]; !exists {
		for c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
			c.evictOldestLocked()
			evicted++
		}
	}
	c.entries[key] = e
	return evicted
}

func (c *memoryCache) evictOldestLocked() {
	var (
		oldestKey CacheKey
		oldestAt  time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.fetchedAt.Before(oldestAt) {
			oldestKey, oldestAt, found = k, e.fetchedAt, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
	}
}

// sweep drops entries that expired more than retention ago.
func (c *memoryCache) sweep(now time.Time, retention time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if now.Sub(e.fetchedAt) >= e.ttl+retention {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *memoryCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
