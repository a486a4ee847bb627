// Package cache provides a small expiring cache.
package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long search results stay fresh.
const DefaultTTL = 5 * time.Minute

// TTL maps keys to values that expire a fixed duration after insertion,
// regardless of how often they are read. Expired entries are swept on every
// Set. There is no size bound: many distinct keys inside one TTL window all
// stay resident until the next sweep after they expire.
type TTL[K comparable, V any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[K]item[V]
}

type item[V any] struct {
	value  V
	stored time.Time
}

func NewTTL[K comparable, V any](ttl time.Duration) *TTL[K, V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TTL[K, V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[K]item[V]),
	}
}

// Get returns the value for key if it was stored less than the TTL ago.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.entries[key]
	if !ok || c.now().Sub(it.stored) >= c.ttl {
		var zero V
		return zero, false
	}
	return it.value, true
}

// Set stores value under key and removes every expired entry.
func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = item[V]{value: value, stored: now}
	c.sweep(now)
}

// Add stores value only if key has no fresh entry and reports whether it did.
// Like Set, a successful Add sweeps expired entries.
func (c *TTL[K, V]) Add(key K, value V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if it, ok := c.entries[key]; ok && now.Sub(it.stored) < c.ttl {
		return false
	}
	c.entries[key] = item[V]{value: value, stored: now}
	c.sweep(now)
	return true
}

// GetOrFetch returns a fresh cached value or calls fetch and caches its
// result. Errors are returned as-is and nothing is cached.
func (c *TTL[K, V]) GetOrFetch(ctx context.Context, key K, fetch func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

// sweep removes expired entries. Caller holds c.mu.
func (c *TTL[K, V]) sweep(now time.Time) {
	for k, it := range c.entries {
		if now.Sub(it.stored) >= c.ttl {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of stored entries, expired or not.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
