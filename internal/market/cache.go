package market

import (
	"sync"
	"time"
)

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// Entry is one cached payload with the query it answered
type Entry[T any] struct {
	Value     T
	Query     string
	FetchedAt time.Time
}

// Cache holds one entry per slot (typically a coin). An entry is fresh while
// its age is under the TTL and its query matches the request. Expired entries
// are kept so a failed fetch can reuse the last good value.
type Cache[T any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     Clock
	entries map[string]Entry[T]
}

// NewCache creates a cache with the given TTL and clock
func NewCache[T any](ttl time.Duration, now Clock) *Cache[T] {
	if now == nil {
		now = time.Now
	}
	return &Cache[T]{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]Entry[T]),
	}
}

// Fresh returns the slot's entry if it is within TTL and was fetched for query
func (c *Cache[T]) Fresh(slot, query string) (Entry[T], bool) {
	c.mu.RLock()
	e, ok := c.entries[slot]
	c.mu.RUnlock()

	if !ok || e.Query != query {
		return Entry[T]{}, false
	}
	if c.now().Sub(e.FetchedAt) >= c.ttl {
		return Entry[T]{}, false
	}
	return e, true
}

// Last returns the most recent entry for the slot regardless of age or query
func (c *Cache[T]) Last(slot string) (Entry[T], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[slot]
	return e, ok
}

// Put replaces the slot's entry as a single unit
func (c *Cache[T]) Put(slot, query string, v T) Entry[T] {
	e := Entry[T]{Value: v, Query: query, FetchedAt: c.now()}
	c.mu.Lock()
	c.entries[slot] = e
	c.mu.Unlock()
	return e
}

// TTL returns the validity window of the cache
func (c *Cache[T]) TTL() time.Duration {
	return c.ttl
}
