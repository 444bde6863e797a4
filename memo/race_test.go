package memo

import (
	"math/rand"
	"runtime"
	"sync"
	"testing"
	"time"
)

// A mixed workload of concurrent Fetch (both modes), Get, Set, Remove and
// the occasional Clear on a bounded cache. Should pass under `-race`
// without detector reports.
func TestRace_MixedWorkload(t *testing.T) {
	c := New[Key[int, string], int](Options[Key[int, string], int]{
		CountLimit: 4_096,
		Shards:     32,
		Cost:       func(int) int { return 1 },
		CostLimit:  8_192,
	})
	t.Cleanup(func() { _ = c.Close() })

	selectors := []string{"sq", "cube", "neg"}
	workers := 4 * runtime.GOMAXPROCS(0)
	keyspace := 10_000
	deadline := time.Now().Add(2 * time.Second)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)*7919))
			for time.Now().Before(deadline) {
				k := NewKey(r.Intn(keyspace), selectors[r.Intn(len(selectors))])
				switch r.Intn(100) {
				case 0: // rare Clear
					c.Clear()
				case 1, 2, 3: // Remove
					c.Remove(k)
				case 4, 5, 6, 7, 8: // Set
					c.Set(k, k.Subject)
				case 9, 10, 11, 12, 13: // Get
					c.Get(k)
				case 14, 15, 16, 17, 18, 19, 20, 21, 22, 23: // relaxed Fetch
					_, _ = c.Fetch(k, Relaxed, func() (int, error) {
						return k.Subject * k.Subject, nil
					})
				default: // exclusive Fetch
					_, _ = c.Fetch(k, Exclusive, func() (int, error) {
						return k.Subject * k.Subject, nil
					})
				}
			}
		}(w)
	}
	wg.Wait()
}

// Fetch hammering one hot key from many goroutines in exclusive mode: the
// producer runs once per lifetime of the entry, and every caller gets the
// same value. Mixed with concurrent Removes to exercise claim takeover.
func TestRace_ExclusiveHotKey(t *testing.T) {
	c := New[Key[string, string], string](Options[Key[string, string], string]{})
	t.Cleanup(func() { _ = c.Close() })

	k := NewKey("hot", "load")
	deadline := time.Now().Add(1 * time.Second)

	var wg sync.WaitGroup
	workers := 2 * runtime.GOMAXPROCS(0)
	wg.Add(workers + 1)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				v, err := c.Fetch(k, Exclusive, func() (string, error) {
					time.Sleep(100 * time.Microsecond)
					return "v", nil
				})
				if err != nil {
					t.Errorf("Fetch: %v", err)
					return
				}
				if v != "v" {
					t.Errorf("unexpected value %q", v)
					return
				}
			}
		}()
	}
	go func() {
		defer wg.Done()
		for time.Now().Before(deadline) {
			c.Remove(k)
			time.Sleep(time.Millisecond)
		}
	}()
	wg.Wait()
}
