package swr

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// S5: N concurrent Gets against an uninitialized key must invoke the loader
// exactly once, and all callers must observe the same value.
func TestCacheSingleFlightOnColdLoad(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := New[string](16, 100*time.Millisecond, clock)
	defer cache.Close()

	var calls int32
	load := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "v1", nil
	}

	const n = 10
	var wg sync.WaitGroup
	results := make([]string, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			v, err := cache.Get(context.Background(), "K", load)
			if err != nil {
				t.Errorf("get %d: %v", i, err)
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly 1 loader call, got %d", got)
	}
	for i, v := range results {
		if v != "v1" {
			t.Fatalf("result %d = %q, want v1", i, v)
		}
	}
}

// After expiry, Get returns the stale value immediately and triggers exactly
// one background reload.
func TestCacheServesStaleAndRevalidatesOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := New[string](16, 50*time.Millisecond, clock)
	defer cache.Close()

	var calls int32
	load := func(ctx context.Context) (string, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return "v1", nil
		}
		return "v2", nil
	}

	v, err := cache.Get(context.Background(), "K", load)
	if err != nil || v != "v1" {
		t.Fatalf("initial load: v=%q err=%v", v, err)
	}

	clock.Advance(time.Second) // force expiry

	v, err = cache.Get(context.Background(), "K", load)
	if err != nil {
		t.Fatalf("stale get: %v", err)
	}
	if v != "v1" {
		t.Fatalf("expected stale value v1 returned synchronously, got %q", v)
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&calls) < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected exactly 2 loader calls after one revalidation, got %d", got)
	}
}

// If a load once succeeded and every subsequent load fails, Get keeps
// returning the last good value instead of propagating the error.
func TestCacheKeepsStaleValueOnRevalidateFailure(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := New[string](16, 10*time.Millisecond, clock)
	defer cache.Close()

	var calls int32
	load := func(ctx context.Context) (string, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return "good", nil
		}
		return "", errAlwaysFails
	}

	v, err := cache.Get(context.Background(), "K", load)
	if err != nil || v != "good" {
		t.Fatalf("initial load: v=%q err=%v", v, err)
	}

	clock.Advance(time.Second)

	for i := 0; i < 5; i++ {
		v, err := cache.Get(context.Background(), "K", load)
		if err != nil {
			t.Fatalf("get %d should not surface the background error: %v", i, err)
		}
		if v != "good" {
			t.Fatalf("get %d = %q, want last good value", i, v)
		}
	}
}

type cacheTestError struct{ msg string }

func (e cacheTestError) Error() string { return e.msg }

var errAlwaysFails = cacheTestError{"loader always fails"}
