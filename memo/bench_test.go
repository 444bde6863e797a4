package memo

import (
	"math/rand"
	"strconv"
	"sync/atomic"
	"testing"
)

// benchmarkFetchMix exercises Fetch against a warm cache with the given
// mode. RunParallel spawns GOMAXPROCS goroutines; the hot keyspace is a
// power of two for a cheap mask.
func benchmarkFetchMix(b *testing.B, mode Mode) {
	c := New[Key[int, string], string](Options[Key[int, string], string]{
		CountLimit: 100_000,
	})
	b.Cleanup(func() { _ = c.Close() })

	for i := 0; i < 50_000; i++ {
		c.Set(NewKey(i, "v"), "warm")
	}

	b.ReportAllocs()
	b.ResetTimer()

	keyMask := (1 << 16) - 1
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			k := NewKey(i&keyMask, "v")
			_, _ = c.Fetch(k, mode, func() (string, error) {
				return "cold", nil
			})
			i++
		}
	})
}

func BenchmarkFetch_Exclusive(b *testing.B) { benchmarkFetchMix(b, Exclusive) }
func BenchmarkFetch_Relaxed(b *testing.B)   { benchmarkFetchMix(b, Relaxed) }

// benchmarkMix is a read/write mix through the direct accessors, for
// comparing the fetch protocol's overhead against plain Get/Set.
func benchmarkMix(b *testing.B, readsPct int) {
	c := New[Key[int, string], int](Options[Key[int, string], int]{
		CountLimit: 100_000,
	})
	b.Cleanup(func() { _ = c.Close() })

	for i := 0; i < 50_000; i++ {
		c.Set(NewKey(i, "v"), 1)
	}

	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	keyMask := (1 << 16) - 1
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		i := 0
		for pb.Next() {
			k := NewKey(i&keyMask, "v")
			if r.Intn(100) < readsPct {
				c.Get(k)
			} else {
				c.Set(k, 1)
			}
			i++
		}
	})
}

func BenchmarkDirect_90r10w(b *testing.B) { benchmarkMix(b, 90) }
func BenchmarkDirect_50r50w(b *testing.B) { benchmarkMix(b, 50) }

// BenchmarkFetch_ColdKeys measures the miss path with ever-fresh keys on an
// unbounded cache (exclusive mode: claim + fill per key).
func BenchmarkFetch_ColdKeys(b *testing.B) {
	c := New[Key[string, string], int](Options[Key[string, string], int]{})
	b.Cleanup(func() { _ = c.Close() })

	b.ReportAllocs()
	b.ResetTimer()

	var n atomic.Int64
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			k := NewKey("s:"+strconv.FormatInt(n.Add(1), 10), "f")
			_, _ = c.Fetch(k, Exclusive, func() (int, error) { return 1, nil })
		}
	})
}
