// Package lru implements the default recency-biased eviction order.
package lru

import "github.com/memocache/memo/policy"

// lru is a classic move-to-front Least-Recently-Used policy. It keeps no
// state of its own: all ordering lives in the shard's intrusive list,
// manipulated through policy.Hooks.
type lru[K comparable, V any] struct {
	h policy.Hooks[K, V]
}

type lruPolicy[K comparable, V any] struct{}

// New returns a Policy factory that constructs per-shard LRU instances.
func New[K comparable, V any]() policy.Policy[K, V] { return lruPolicy[K, V]{} }

func (lruPolicy[K, V]) New(h policy.Hooks[K, V]) policy.ShardPolicy[K, V] {
	return &lru[K, V]{h: h}
}

// OnAdd admits the new entry at MRU. LRU never proposes evictions itself;
// the shard trims from the tail when limits are exceeded.
func (p *lru[K, V]) OnAdd(n policy.Node[K, V]) (evict policy.Node[K, V]) {
	p.h.PushFront(n)
	return nil
}

// OnGet promotes the entry to MRU.
func (p *lru[K, V]) OnGet(n policy.Node[K, V]) { p.h.MoveToFront(n) }

// OnUpdate promotes the entry to MRU (a fill or overwrite counts as use).
func (p *lru[K, V]) OnUpdate(n policy.Node[K, V]) { p.h.MoveToFront(n) }

// OnRemove is a no-op: pure LRU has no state outside the shard list.
func (p *lru[K, V]) OnRemove(policy.Node[K, V]) {}

// OnClear is a no-op for the same reason.
func (p *lru[K, V]) OnClear() {}
