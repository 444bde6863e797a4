// Package policy defines the pluggable eviction-order contract used by the
// memo cache. A policy decides which resident entries are the best eviction
// candidates; the shard owns the actual map and performs all deletions.
package policy

// Node is the minimal contract a cache entry must satisfy for a policy.
// It provides read-only access to the key and a pointer to the value.
type Node[K comparable, V any] interface {
	Key() K
	Value() *V
}

// Hooks expose O(1) operations on the shard's intrusive MRU/LRU list.
// Implementations are provided by the shard; all calls happen under the
// shard lock. Hooks manage only the list; the shard owns the key→entry map.
type Hooks[K comparable, V any] interface {
	// MoveToFront promotes the node to MRU.
	MoveToFront(Node[K, V])
	// PushFront inserts the node at MRU (used on admission).
	PushFront(Node[K, V])
	// Remove detaches the node from the list (map bookkeeping stays with
	// the shard).
	Remove(Node[K, V])
	// Back returns the current LRU node, or nil if the shard is empty.
	Back() Node[K, V]
	// Len returns the number of resident nodes in the shard.
	Len() int
}

// ShardPolicy is a per-shard eviction policy instance bound to that shard's
// hooks. All methods are invoked under the shard lock.
//
// Semantics:
//   - OnAdd may return an eviction candidate (e.g. the LRU of a probation
//     queue); the shard evicts it and then calls OnRemove for it.
//   - OnGet/OnUpdate typically promote the node.
//   - OnRemove updates policy-internal state (ghost queues and the like);
//     the shard performs the actual deletion.
//   - OnClear drops all policy-internal state; the shard calls it when the
//     whole partition is emptied at once, without per-node OnRemove calls.
type ShardPolicy[K comparable, V any] interface {
	OnAdd(Node[K, V]) (evict Node[K, V])
	OnGet(Node[K, V])
	OnUpdate(Node[K, V])
	OnRemove(Node[K, V])
	OnClear()
}

// Policy is a factory that creates shard-local policy instances bound to a
// particular shard's hooks.
type Policy[K comparable, V any] interface {
	New(Hooks[K, V]) ShardPolicy[K, V]
}
