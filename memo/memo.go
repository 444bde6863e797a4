package memo

import (
	"sync/atomic"

	"github.com/memocache/memo/internal/util"
	"github.com/memocache/memo/policy/lru"
)

// cache is a sharded memoization store with a pluggable eviction policy.
// All methods are safe for concurrent use by multiple goroutines.
type cache[K comparable, V any] struct {
	shards []*shard[K, V]
	hash   func(K) uint64
	closed atomic.Bool

	// Advisory limits, shared with every shard. Mutable at runtime.
	countLimit atomic.Int64
	costLimit  atomic.Int64
}

// New constructs a cache with the provided Options. The zero Options value
// yields an unbounded LRU-ordered cache with an automatic shard count.
func New[K comparable, V any](opt Options[K, V]) Cache[K, V] {
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Policy == nil {
		opt.Policy = lru.New[K, V]()
	}

	sh := opt.Shards
	if sh <= 0 {
		sh = util.ReasonableShardCount()
	} else {
		sh = int(util.NextPow2(uint64(sh)))
	}

	c := &cache[K, V]{
		shards: make([]*shard[K, V], sh),
		hash:   util.NewHasher[K](),
	}
	c.countLimit.Store(int64(opt.CountLimit))
	c.costLimit.Store(int64(opt.CostLimit))
	for i := range c.shards {
		c.shards[i] = newShard(sh, &c.countLimit, &c.costLimit, opt)
	}
	return c
}

// ---- Cache[K,V] implementation ----

// Fetch returns the value for k, producing it on miss per mode.
// On a closed cache it degrades to calling the producer directly.
func (c *cache[K, V]) Fetch(k K, mode Mode, produce func() (V, error)) (V, error) {
	if produce == nil {
		var zero V
		return zero, ErrNilProducer
	}
	if c.closed.Load() {
		return produce()
	}
	s := c.getShard(k)
	if mode == Relaxed {
		return s.fetchRelaxed(k, produce)
	}
	return s.fetchExclusive(k, produce)
}

// Get returns the value for k and a presence flag; placeholders read as a
// miss. On hit, the entry is promoted according to the active policy.
func (c *cache[K, V]) Get(k K) (V, bool) {
	if c.closed.Load() {
		var zero V
		return zero, false
	}
	return c.getShard(k).get(k)
}

// Set unconditionally replaces any existing entry for k.
func (c *cache[K, V]) Set(k K, v V) {
	if c.closed.Load() {
		return
	}
	c.getShard(k).set(k, v)
}

// Remove deletes k if present and returns true on success.
func (c *cache[K, V]) Remove(k K) bool {
	if c.closed.Load() {
		return false
	}
	return c.getShard(k).remove(k)
}

// Clear removes all entries from every shard.
func (c *cache[K, V]) Clear() {
	if c.closed.Load() {
		return
	}
	for _, s := range c.shards {
		s.clear()
	}
}

// Len returns the total number of resident entries across all shards.
func (c *cache[K, V]) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.entries()
	}
	return total
}

// Cost returns the total resident cost across all shards.
func (c *cache[K, V]) Cost() int64 {
	var total int64
	for _, s := range c.shards {
		total += s.residentCost()
	}
	return total
}

// CountLimit returns the advisory entry-count bound.
func (c *cache[K, V]) CountLimit() int { return int(c.countLimit.Load()) }

// SetCountLimit replaces the entry-count bound. Lowering it trims each
// shard best-effort; the bound stays advisory either way.
func (c *cache[K, V]) SetCountLimit(n int) {
	if n < 0 {
		n = 0
	}
	c.countLimit.Store(int64(n))
	c.trim()
}

// CostLimit returns the advisory total-cost bound.
func (c *cache[K, V]) CostLimit() int64 { return c.costLimit.Load() }

// SetCostLimit replaces the total-cost bound and trims best-effort.
func (c *cache[K, V]) SetCostLimit(n int64) {
	if n < 0 {
		n = 0
	}
	c.costLimit.Store(n)
	c.trim()
}

// Stats aggregates per-shard counters into one snapshot.
func (c *cache[K, V]) Stats() Stats {
	var st Stats
	for _, s := range c.shards {
		st.Hits += s.hits.Load()
		st.Misses += s.misses.Load()
		st.Produces += s.produces.Load()
		st.Evictions += s.evicts.Load()
		st.Entries += s.entries()
		st.Cost += s.residentCost()
	}
	return st
}

// Close marks the cache as closed. Future operations are ignored and Fetch
// runs producers uncached.
func (c *cache[K, V]) Close() error {
	c.closed.Store(true)
	return nil
}

// ---- helpers ----

// getShard picks a shard by hashing the key and masking with len-1.
// len(c.shards) is guaranteed to be a power of two.
func (c *cache[K, V]) getShard(k K) *shard[K, V] {
	h := c.hash(k)
	return c.shards[int(h)&(len(c.shards)-1)]
}

// trim re-runs limit enforcement on every shard (after a limit change).
func (c *cache[K, V]) trim() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.enforceLimitsLocked()
		s.mu.Unlock()
	}
}
