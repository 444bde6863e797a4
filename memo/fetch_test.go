package memo

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"
)

// Sequential idempotence: the producer runs at most once across repeated
// exclusive fetches of one key, and both calls return equal values.
func TestFetch_IdempotentHit(t *testing.T) {
	t.Parallel()

	c := New[Key[string, string], int](Options[Key[string, string], int]{})
	t.Cleanup(func() { _ = c.Close() })

	var calls atomic.Int64
	produce := func() (int, error) {
		return int(calls.Add(1)), nil
	}

	k := NewKey("doc", "wordCount")
	v1, err := c.Fetch(k, Exclusive, produce)
	if err != nil {
		t.Fatal(err)
	}
	v2, err := c.Fetch(k, Exclusive, produce)
	if err != nil {
		t.Fatal(err)
	}
	if v1 != v2 {
		t.Fatalf("repeat fetch must return the cached value: %d != %d", v1, v2)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("producer must run exactly once, ran %d times", got)
	}
}

// Exclusive mode: N concurrent fetches of one key run the producer exactly
// once and all return the same value.
func TestFetch_ExclusiveAtMostOneFill(t *testing.T) {
	t.Parallel()

	c := New[Key[string, string], int](Options[Key[string, string], int]{})
	t.Cleanup(func() { _ = c.Close() })

	var counter atomic.Int64
	k := NewKey("subject", "expensive")

	const n = 64
	results := make([]int, n)
	start := make(chan struct{})
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			<-start
			v, err := c.Fetch(k, Exclusive, func() (int, error) {
				return int(counter.Add(1)), nil
			})
			results[i] = v
			return err
		})
	}
	close(start)
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if got := counter.Load(); got != 1 {
		t.Fatalf("exclusive mode must run the producer exactly once, ran %d times", got)
	}
	for i, v := range results {
		if v != results[0] {
			t.Fatalf("call %d returned %d, call 0 returned %d", i, v, results[0])
		}
	}
}

// Relaxed mode: concurrent fetches may each run the producer (1..N runs),
// and every call returns some value the producer could have produced.
func TestFetch_RelaxedAllowsDuplicates(t *testing.T) {
	t.Parallel()

	c := New[Key[string, string], int](Options[Key[string, string], int]{})
	t.Cleanup(func() { _ = c.Close() })

	var counter atomic.Int64
	k := NewKey("subject", "cheap")

	const n = 32
	results := make([]int, n)
	start := make(chan struct{})
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			<-start
			v, err := c.Fetch(k, Relaxed, func() (int, error) {
				return int(counter.Add(1)), nil
			})
			results[i] = v
			return err
		})
	}
	close(start)
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	runs := counter.Load()
	if runs < 1 || runs > n {
		t.Fatalf("producer runs must be in [1,%d], got %d", n, runs)
	}
	for i, v := range results {
		if v < 1 || int64(v) > runs {
			t.Fatalf("call %d returned %d, not a value the producer produced (runs=%d)", i, v, runs)
		}
	}
}

// A failed producer is not cached: attempt 1 fails and leaves no entry,
// attempt 2 succeeds and is served from cache afterwards. No lock-out.
func TestFetch_FailureNotCached(t *testing.T) {
	t.Parallel()

	c := New[Key[string, string], string](Options[Key[string, string], string]{})
	t.Cleanup(func() { _ = c.Close() })

	k := NewKey("host", "lookup")
	errBoom := errors.New("boom")
	attempt := 0
	produce := func() (string, error) {
		attempt++
		if attempt == 1 {
			return "", errBoom
		}
		return "ok", nil
	}

	if _, err := c.Fetch(k, Exclusive, produce); !errors.Is(err, errBoom) {
		t.Fatalf("attempt 1 must propagate the producer error, got %v", err)
	}
	if _, ok := c.Get(k); ok {
		t.Fatal("a failed attempt must not leave an entry")
	}
	if v, err := c.Fetch(k, Exclusive, produce); err != nil || v != "ok" {
		t.Fatalf("attempt 2 must succeed, got %q err=%v", v, err)
	}
	if v, err := c.Fetch(k, Exclusive, produce); err != nil || v != "ok" {
		t.Fatalf("attempt 3 must hit the cache, got %q err=%v", v, err)
	}
	if attempt != 2 {
		t.Fatalf("producer must have run twice, ran %d times", attempt)
	}
}

// A failing exclusive fill must release its waiters, and one of them takes
// over the claim: with one failing and many succeeding producers, every
// caller eventually gets a value.
func TestFetch_FailedFillReleasesWaiters(t *testing.T) {
	t.Parallel()

	c := New[Key[string, string], int](Options[Key[string, string], int]{})
	t.Cleanup(func() { _ = c.Close() })

	k := NewKey("flaky", "load")
	errFirst := errors.New("first caller fails")
	var first atomic.Bool
	first.Store(true)

	const n = 16
	var failures, successes atomic.Int64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			v, err := c.Fetch(k, Exclusive, func() (int, error) {
				if first.CompareAndSwap(true, false) {
					return 0, errFirst
				}
				return 7, nil
			})
			if err != nil {
				failures.Add(1)
				return
			}
			if v != 7 {
				t.Errorf("unexpected value %d", v)
			}
			successes.Add(1)
		}()
	}
	wg.Wait()

	if failures.Load() > 1 {
		t.Fatalf("only the failing producer's caller may see the error, got %d failures", failures.Load())
	}
	if successes.Load() < n-1 {
		t.Fatalf("want at least %d successes, got %d", n-1, successes.Load())
	}
	if v, ok := c.Get(k); !ok || v != 7 {
		t.Fatalf("the successful fill must be cached, got %v ok=%v", v, ok)
	}
}

// Get never observes an in-flight exclusive placeholder as a value.
func TestGet_PlaceholderIsAMiss(t *testing.T) {
	t.Parallel()

	c := New[Key[string, string], int](Options[Key[string, string], int]{})
	t.Cleanup(func() { _ = c.Close() })

	k := NewKey("slow", "load")
	entered := make(chan struct{})
	release := make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Fetch(k, Exclusive, func() (int, error) {
			close(entered)
			<-release
			return 1, nil
		})
	}()

	<-entered
	// The producer is mid-flight: the placeholder exists but must read as
	// a miss through the direct accessor.
	if _, ok := c.Get(k); ok {
		t.Error("Get must miss while the fill is in flight")
	}
	close(release)
	<-done

	if v, ok := c.Get(k); !ok || v != 1 {
		t.Fatalf("after the fill completes Get must hit, got %v ok=%v", v, ok)
	}
}

// A Clear racing an in-flight exclusive fill is undone by that fill: the
// producer's result lands under a fresh entry once it completes.
func TestFetch_ClearDuringFill(t *testing.T) {
	t.Parallel()

	c := New[Key[string, string], int](Options[Key[string, string], int]{})
	t.Cleanup(func() { _ = c.Close() })

	k := NewKey("s", "f")
	entered := make(chan struct{})
	release := make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		v, err := c.Fetch(k, Exclusive, func() (int, error) {
			close(entered)
			<-release
			return 5, nil
		})
		if err != nil || v != 5 {
			t.Errorf("fill must succeed: %v %v", v, err)
		}
	}()

	<-entered
	c.Clear()
	close(release)
	<-done

	if v, ok := c.Get(k); !ok || v != 5 {
		t.Fatalf("completed fill must re-store its result, got %v ok=%v", v, ok)
	}
}

// Fetch rejects a nil producer instead of panicking later.
func TestFetch_NilProducer(t *testing.T) {
	t.Parallel()

	c := New[Key[string, string], int](Options[Key[string, string], int]{})
	t.Cleanup(func() { _ = c.Close() })

	if _, err := c.Fetch(NewKey("s", "f"), Exclusive, nil); !errors.Is(err, ErrNilProducer) {
		t.Fatalf("want ErrNilProducer, got %v", err)
	}
}
