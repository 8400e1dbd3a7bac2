// Package cache provides a TTL cache with single-flight fetch collapsing.
//
// The cache exists to absorb repeated reads of slow controller queries whose
// results change rarely (device descriptors take hundreds of milliseconds per
// round-trip over the session API). Two guarantees matter to callers:
//
//   - A fresh entry is returned without invoking the fetch function.
//   - Concurrent callers for the same missing/expired key share one
//     underlying fetch (golang.org/x/sync/singleflight); the result or error
//     is propagated to every waiter.
//
// Fetch errors never evict an existing entry, so GetStale can serve the last
// good value as an explicit error-tolerant fallback.
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package cache
