// Package memo provides a generic, concurrent memoization cache: results of
// expensive deterministic computations are stored under a composite
// (subject, selector) key and served on repeat lookups, with advisory
// count/cost limits enforced by a pluggable eviction policy.
//
// # Design
//
//   - Keys: a Key combines a Subject (the value being memoized over) with a
//     Selector (which computation is cached for that subject). Two keys are
//     equal iff both components are; equal keys hash identically. Any pair
//     of comparable types works; NewKey does no validation.
//
//   - Concurrency: the cache is split into shards, each protected by an
//     RWMutex guarding map-structural mutations (insert/remove/evict).
//     Value fills in exclusive mode use a finer per-entry lock so that
//     unrelated keys never serialize behind one another. The shard count
//     defaults to a power-of-two heuristic (ReasonableShardCount).
//
//   - Fetch protocol: Fetch(k, mode, produce) is the main operation.
//     The fast path returns a filled entry under the shard read lock only.
//     In Exclusive mode at most one producer runs per key at a time: the
//     first goroutine to miss claims the key with an empty placeholder and
//     everyone else blocks on that entry's fill lock until the value lands.
//     In Relaxed mode concurrent misses each run the producer independently
//     and the last result written wins; this trades the at-most-once
//     guarantee for less lock contention and is correct exactly when the
//     producer is pure.
//
//   - Failures: a producer error propagates verbatim to the caller of
//     Fetch, is never cached, and never blocks later attempts: a failed
//     exclusive fill withdraws its placeholder before releasing waiters.
//
//   - Eviction: CountLimit and CostLimit are advisory upper bounds (0 =
//     unlimited). Shards split the budgets evenly and trim from the LRU
//     tail on insertion past the limit. The eviction order is a pluggable
//     policy (see the policy package); LRU is the default and 2Q is
//     provided for scan-heavy workloads.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Produce/Evict/Size
//     signals; NoopMetrics is the default, and metrics/prom exports them
//     to Prometheus.
//
// # Correctness precondition
//
// The cache assumes producers are referentially transparent: the same key
// must always yield an equivalent value, with no observable side effects.
// Nothing enforces this; a side-effecting producer combined with Relaxed
// mode will run more than once under contention.
//
// A producer that never returns blocks all Exclusive waiters on its key
// indefinitely; there is no built-in timeout.
//
// # Basic usage
//
//	c := memo.New[memo.Key[string, string], int](memo.Options[memo.Key[string, string], int]{
//	    CountLimit: 10_000,
//	})
//	v, err := c.Fetch(memo.NewKey("subject", "wordCount"), memo.Exclusive, func() (int, error) {
//	    return countWords("subject"), nil
//	})
//
// The memoize package layers an ergonomic front-end on top of this core so
// that call sites never construct keys by hand.
package memo
