package memo

import (
	"errors"

	"github.com/memocache/memo/policy"
)

// ErrNilProducer is returned by Fetch when produce is nil.
var ErrNilProducer = errors.New("memo: nil producer")

// EvictReason explains why an entry was removed.
type EvictReason int

const (
	// EvictPolicy means the active eviction policy proposed the removal
	// (e.g. 2Q's probation-queue overflow).
	EvictPolicy EvictReason = iota
	// EvictCount means the entry was removed to satisfy the count limit.
	EvictCount
	// EvictCost means the entry was removed to satisfy the cost limit.
	EvictCost
)

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	// Produce is called once per producer invocation, in either mode.
	Produce(mode Mode)
	Evict(reason EvictReason)
	Size(entries int, cost int64)
}

// Options configures the cache. The zero value is a safe unbounded cache;
// defaults applied in New():
//   - nil Metrics  => NoopMetrics
//   - nil Policy   => LRU
//   - Shards <= 0  => auto (power-of-two heuristic from GOMAXPROCS)
type Options[K comparable, V any] struct {
	// CountLimit is the advisory entry-count bound (0 = unlimited).
	// Shards split the budget evenly.
	CountLimit int

	// CostLimit is the advisory total-cost bound (0 = unlimited).
	// Has no effect unless Cost is set.
	CostLimit int64

	// Cost computes the per-entry weight of a stored value.
	// nil = all entries weigh 0 (only CountLimit applies).
	Cost func(v V) int

	// Shards sets the number of shards; 0 picks an automatic value
	// (≈ 2×GOMAXPROCS) rounded up to a power of two.
	Shards int

	// Policy is the pluggable eviction order (LRU/2Q/…); nil => LRU.
	Policy policy.Policy[K, V]

	// OnEvict is called for every eviction, under the shard lock.
	// Keep it lightweight. It does not fire for Remove or Clear, nor for
	// in-flight placeholders that never held a value.
	OnEvict func(k K, v V, reason EvictReason)

	// Metrics receives Hit/Miss/Produce/Evict/Size signals.
	Metrics Metrics
}
