// Package swr implements the stale-while-revalidate coalescing cache (§4.E):
// a keyed async cache that guarantees at most one concurrent computation per
// key, serves stale values while revalidating in the background, and
// tolerates refresh failures by preferring the last good value to an error.
//
// Storage is a bounded-LRU github.com/jellydator/ttlcache/v3 cache (ground:
// malbeclabs-doublezero's provider.go); coalescing is
// golang.org/x/sync/singleflight, keyed identically for both the cold load
// and the background revalidation so the two paths can never race into two
// loader calls for the same key. Expiry is tracked independently of
// ttlcache's own TTL machinery via an injected clockwork.Clock, so tests can
// advance time deterministically instead of sleeping (scenario S5).
package swr

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// Loader computes the value for a key. Errors from a background
// revalidation never propagate to a caller that already has a cached value.
type Loader[V any] func(ctx context.Context) (V, error)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a single bounded key space of SWR slots, one per distinct key
// passed to Get.
type Cache[V any] struct {
	clock clockwork.Clock
	ttl   time.Duration
	store *ttlcache.Cache[string, entry[V]]
	group singleflight.Group

	mu           sync.Mutex
	revalidating map[string]bool
}

// New constructs a cache holding up to capacity keys, each fresh for ttl
// after a successful load.
func New[V any](capacity int, ttl time.Duration, clock clockwork.Clock) *Cache[V] {
	store := ttlcache.New[string, entry[V]](
		ttlcache.WithCapacity[string, entry[V]](uint64(capacity)),
	)
	go store.Start()

	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Cache[V]{
		clock:        clock,
		ttl:          ttl,
		store:        store,
		revalidating: make(map[string]bool),
	}
}

// Close stops the background eviction loop.
func (c *Cache[V]) Close() {
	c.store.Stop()
}

// Get implements the four-state contract of §4.E:
//  1. Uninitialized -> Loading(load); concurrent callers await the same call.
//  2. Fresh and unexpired -> returns immediately, no suspension.
//  3. Fresh but expired (i.e. Stale) -> returns the old value immediately
//     and kicks off exactly one background revalidation.
//  4. Already revalidating -> returns the stale value, does not schedule a
//     second loader call.
func (c *Cache[V]) Get(ctx context.Context, key string, load Loader[V]) (V, error) {
	if item := c.store.Get(key); item != nil {
		e := item.Value()
		now := c.clock.Now()
		if now.Before(e.expiresAt) {
			return e.value, nil // Fresh
		}
		c.triggerRevalidate(key, load) // Stale: non-blocking
		return e.value, nil
	}

	// Uninitialized: every concurrent caller for this key shares one load.
	result, err, _ := c.group.Do(key, func() (any, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.store.Set(key, entry[V]{value: v, expiresAt: c.clock.Now().Add(c.ttl)}, ttlcache.NoTTL)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return result.(V), nil
}

// triggerRevalidate starts a background refresh for key unless one is
// already in flight. The refresh never cancels on caller departure — it is
// detached from ctx and keyed through the same singleflight group so a
// concurrent cold load (if the entry is ever evicted mid-flight) cannot
// double up with it.
func (c *Cache[V]) triggerRevalidate(key string, load Loader[V]) {
	c.mu.Lock()
	if c.revalidating[key] {
		c.mu.Unlock()
		return
	}
	c.revalidating[key] = true
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			delete(c.revalidating, key)
			c.mu.Unlock()
		}()

		_, _, _ = c.group.Do(key, func() (any, error) {
			v, err := load(context.Background())
			if err != nil {
				// Keep serving the stale value; the next Get retries.
				return nil, err
			}
			c.store.Set(key, entry[V]{value: v, expiresAt: c.clock.Now().Add(c.ttl)}, ttlcache.NoTTL)
			return v, nil
		})
	}()
}
