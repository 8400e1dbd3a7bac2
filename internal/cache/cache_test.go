package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetOrFetchCachesValue(t *testing.T) {
	c := New[string]()
	ctx := context.Background()

	var calls int32
	fetch := func(_ context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "descriptors-v1", nil
	}

	for i := 0; i < 5; i++ {
		got, err := c.GetOrFetch(ctx, "descriptors", time.Minute, fetch)
		if err != nil {
			t.Fatalf("GetOrFetch() error = %v", err)
		}
		if got != "descriptors-v1" {
			t.Fatalf("GetOrFetch() = %q, want %q", got, "descriptors-v1")
		}
	}

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("fetch invoked %d times, want 1", n)
	}
}

func TestGetOrFetchSingleFlight(t *testing.T) {
	c := New[int]()
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	fetch := func(_ context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 42, nil
	}

	const concurrency = 20
	var wg sync.WaitGroup
	results := make([]int, concurrency)
	errs := make([]error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrFetch(ctx, "k", time.Minute, fetch)
		}(i)
	}

	// Let all goroutines pile onto the flight before releasing the fetch.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < concurrency; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d error = %v", i, errs[i])
		}
		if results[i] != 42 {
			t.Fatalf("caller %d got %d, want 42", i, results[i])
		}
	}

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("fetch invoked %d times under concurrency, want 1", n)
	}
}

func TestGetOrFetchTTLBoundary(t *testing.T) {
	c := New[string]()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	c.now = func() time.Time { return current }

	var calls int
	fetch := func(_ context.Context) (string, error) {
		calls++
		return "v", nil
	}

	const ttl = 600 * time.Second

	if _, err := c.GetOrFetch(ctx, "k", ttl, fetch); err != nil {
		t.Fatalf("initial fetch error = %v", err)
	}

	// t=599s: still fresh, no new fetch.
	current = base.Add(599 * time.Second)
	if _, err := c.GetOrFetch(ctx, "k", ttl, fetch); err != nil {
		t.Fatalf("fetch at 599s error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("fetch invoked %d times at t=599s, want 1", calls)
	}

	// t=601s: expired, triggers a fresh fetch.
	current = base.Add(601 * time.Second)
	if _, err := c.GetOrFetch(ctx, "k", ttl, fetch); err != nil {
		t.Fatalf("fetch at 601s error = %v", err)
	}
	if calls != 2 {
		t.Fatalf("fetch invoked %d times at t=601s, want 2", calls)
	}
}

func TestFetchErrorRetainsStaleEntry(t *testing.T) {
	c := New[string]()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	c.now = func() time.Time { return current }

	ok := func(_ context.Context) (string, error) { return "good", nil }
	boom := errors.New("controller timeout")
	fail := func(_ context.Context) (string, error) { return "", boom }

	if _, err := c.GetOrFetch(ctx, "k", time.Minute, ok); err != nil {
		t.Fatalf("seed fetch error = %v", err)
	}

	// Expire and fail the refresh.
	current = base.Add(2 * time.Minute)
	if _, err := c.GetOrFetch(ctx, "k", time.Minute, fail); !errors.Is(err, boom) {
		t.Fatalf("GetOrFetch() error = %v, want %v", err, boom)
	}

	// The stale value must survive the failed fetch.
	v, found := c.GetStale("k")
	if !found {
		t.Fatal("GetStale() found = false after failed refresh, want true")
	}
	if v != "good" {
		t.Errorf("GetStale() = %q, want %q", v, "good")
	}
}

func TestFetchErrorPropagatesToAllWaiters(t *testing.T) {
	c := New[int]()
	ctx := context.Background()

	boom := errors.New("connection refused")
	release := make(chan struct{})
	fetch := func(_ context.Context) (int, error) {
		<-release
		return 0, boom
	}

	const concurrency = 8
	var wg sync.WaitGroup
	errs := make([]error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.GetOrFetch(ctx, "k", time.Minute, fetch)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, boom) {
			t.Errorf("waiter %d error = %v, want %v", i, err, boom)
		}
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	c := New[string]()
	ctx := context.Background()

	var calls int
	fetch := func(_ context.Context) (string, error) {
		calls++
		return "v", nil
	}

	if _, err := c.GetOrFetch(ctx, "k", time.Hour, fetch); err != nil {
		t.Fatalf("seed fetch error = %v", err)
	}
	c.Invalidate("k")
	if _, err := c.GetOrFetch(ctx, "k", time.Hour, fetch); err != nil {
		t.Fatalf("refetch error = %v", err)
	}

	if calls != 2 {
		t.Errorf("fetch invoked %d times after Invalidate, want 2", calls)
	}

	if _, found := c.GetStale("missing"); found {
		t.Error("GetStale() on unknown key found = true, want false")
	}
}

func TestWaiterCancellationDoesNotAbortFlight(t *testing.T) {
	c := New[int]()

	release := make(chan struct{})
	fetch := func(_ context.Context) (int, error) {
		<-release
		return 7, nil
	}

	// Initiator with a live context.
	done := make(chan error, 1)
	go func() {
		_, err := c.GetOrFetch(context.Background(), "k", time.Minute, fetch)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)

	// Joiner that gives up while waiting.
	ctx, cancel := context.WithCancel(context.Background())
	joinErr := make(chan error, 1)
	go func() {
		_, err := c.GetOrFetch(ctx, "k", time.Minute, fetch)
		joinErr <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-joinErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled joiner error = %v, want context.Canceled", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("initiator error = %v, want nil", err)
	}

	if v, ok := c.GetStale("k"); !ok || v != 7 {
		t.Errorf("GetStale() = (%d, %v), want (7, true)", v, ok)
	}
}
