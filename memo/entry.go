package memo

import (
	"sync"
	"sync/atomic"
)

// entry is a single cache cell and, at the same time, an intrusive doubly
// linked list element owned by a shard (head = MRU, tail = LRU).
//
// An entry starts empty (a provisional claim on a key made by the first
// exclusive Fetch to miss) and transitions to filled at most once. Updates
// never mutate a filled entry in place: Set swaps in a fresh instance, and
// an evicted entry is never re-linked into the map, so any stale pointer
// held across an eviction keeps observing a consistent snapshot.
type entry[K comparable, V any] struct {
	key K
	val V

	// fill guards the empty→filled transition in exclusive mode. Waiters
	// that observe an empty entry block here until the claim owner either
	// publishes a value or withdraws.
	fill   sync.Mutex
	filled atomic.Bool

	// Intrusive list links, guarded by the shard lock.
	prev *entry[K, V]
	next *entry[K, V]

	// Logical weight counted against CostLimit. Stays 0 while empty;
	// written under the shard lock when the fill commits.
	cost int32
}

// newFilled builds an entry that is already filled, for Set and for relaxed
// fills. val must be fully written before the entry becomes reachable.
func newFilled[K comparable, V any](k K, v V, cost int32) *entry[K, V] {
	e := &entry[K, V]{key: k, val: v, cost: cost}
	e.filled.Store(true)
	return e
}

// Key returns the entry key (part of policy.Node).
func (e *entry[K, V]) Key() K { return e.key }

// Value returns a pointer to the stored value (part of policy.Node).
// Only meaningful for filled entries, and only under the shard lock.
func (e *entry[K, V]) Value() *V { return &e.val }
