package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// FetchFunc produces a fresh value for a cache key.
type FetchFunc[V any] func(ctx context.Context) (V, error)

// entry is a cached value with its expiry instant.
type entry[V any] struct {
	value     V
	fetchedAt time.Time
	expiresAt time.Time
}

// fresh reports whether the entry may still be served as current.
// An entry is stale from the exact TTL boundary onwards.
func (e entry[V]) fresh(now time.Time) bool {
	return now.Before(e.expiresAt)
}

// Cache is a key→value store with per-call TTLs and single-flight fetching.
// The zero value is not usable; create with New.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	group   singleflight.Group

	// now is replaceable in tests to exercise TTL boundaries.
	now func() time.Time
}

// New creates an empty cache.
func New[V any]() *Cache[V] {
	return &Cache[V]{
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
}

// GetOrFetch returns the value for key, invoking fetch only when no fresh
// entry exists.
//
// Guarantees:
//  1. A fresh entry is returned without calling fetch.
//  2. Concurrent callers for the same expired/missing key are collapsed into
//     one fetch; all callers receive the same value or error.
//  3. On fetch error the previous entry is retained (see GetStale).
//  4. A successful fetch replaces the entry and resets its expiry.
//
// The fetch runs on the initiating caller's context. Joining callers that are
// cancelled while waiting receive their own context error; the in-flight
// fetch continues for the remaining waiters.
func (c *Cache[V]) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc[V]) (V, error) {
	if v, ok := c.getFresh(key); ok {
		return v, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// Re-check under the flight: another caller may have completed a
		// fetch between our freshness check and joining the group.
		if v, ok := c.getFresh(key); ok {
			return v, nil
		}

		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		now := c.now()
		c.mu.Lock()
		c.entries[key] = entry[V]{
			value:     v,
			fetchedAt: now,
			expiresAt: now.Add(ttl),
		}
		c.mu.Unlock()

		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// GetStale returns the cached value for key regardless of freshness.
// This is the explicit error-tolerant fallback read: callers use it after a
// failed GetOrFetch to keep serving the last good value.
func (c *Cache[V]) GetStale(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Invalidate removes the entry for key so the next GetOrFetch fetches live.
// Used when an asynchronous notification proves the cached value wrong.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of cached entries, fresh or stale.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// getFresh returns the value for key if a fresh entry exists.
func (c *Cache[V]) getFresh(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !e.fresh(c.now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}
