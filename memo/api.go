package memo

// Mode selects the miss-path contract of Fetch when several goroutines race
// on the same missing key.
type Mode int

const (
	// Exclusive guarantees at most one concurrent producer invocation per
	// key: the first goroutine to miss claims the key, everyone else blocks
	// until the claim resolves. Use for expensive producers.
	Exclusive Mode = iota

	// Relaxed uses no per-entry lock: concurrent misses each run the
	// producer and the last result stored wins. Higher throughput under
	// contention, but only correct for pure producers.
	Relaxed
)

// String returns a stable label for the mode ("exclusive" or "relaxed").
func (m Mode) String() string {
	if m == Relaxed {
		return "relaxed"
	}
	return "exclusive"
}

// Cache is a sharded in-memory memoization cache. All methods are safe for
// concurrent use by multiple goroutines; typical operation cost is
// amortized O(1) under a shard lock.
//
// CountLimit and CostLimit are advisory upper bounds: the cache may
// transiently exceed them and trims toward them on insertion. A limit of 0
// means unlimited.
type Cache[K comparable, V any] interface {
	// Fetch returns the value for k, producing it on miss according to
	// mode. A producer error propagates verbatim to this caller only:
	// it is never cached, never retried by the cache, and never blocks
	// later Fetch calls for k.
	Fetch(k K, mode Mode, produce func() (V, error)) (V, error)

	// Get returns the value for k and a presence flag. An empty
	// placeholder (an exclusive fill still in flight) reads as a miss.
	// On hit, the entry is promoted according to the active policy.
	Get(k K) (V, bool)

	// Set unconditionally replaces any existing entry for k with v.
	Set(k K, v V)

	// Remove deletes k if present and returns true on success.
	Remove(k K) bool

	// Clear removes all entries. An exclusive fill already in flight
	// completes and re-stores its result under a fresh entry; that race
	// is accepted (the clear may be immediately "undone" for that key).
	Clear()

	// Len returns the total number of resident entries across all shards,
	// including in-flight placeholders.
	Len() int

	// Cost returns the total resident cost across all shards.
	Cost() int64

	// CountLimit returns the advisory entry-count bound (0 = unlimited).
	CountLimit() int

	// SetCountLimit replaces the entry-count bound and trims best-effort.
	SetCountLimit(n int)

	// CostLimit returns the advisory total-cost bound (0 = unlimited).
	CostLimit() int64

	// SetCostLimit replaces the total-cost bound and trims best-effort.
	SetCostLimit(n int64)

	// Stats returns a point-in-time snapshot of cache counters.
	Stats() Stats

	// Close marks the cache closed: writes become no-ops and Fetch
	// degrades to calling the producer directly. Always returns nil.
	Close() error
}
