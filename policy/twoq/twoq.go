// Package twoq implements the 2Q eviction order, which resists cache
// pollution from one-shot scans better than plain LRU.
package twoq

import (
	"container/list"

	"github.com/memocache/memo/policy"
)

// twoQ tracks two resident classes plus a ghost history:
//
//   - A1in (probation): first-time keys land here. Overflow of A1in is
//     proposed to the shard for eviction, so a key touched exactly once
//     cannot push long-lived entries out.
//   - Am (protected): keys re-referenced while in A1in, or re-admitted
//     while remembered by the ghosts. Ordering of Am rides on the shard's
//     own MRU/LRU list via hooks.
//   - A1out (ghosts): keys only, remembering recent A1in evictions; a
//     re-admitted ghost skips probation and goes straight to Am.
//
// All methods are called under the shard lock.
type twoQ[K comparable, V any] struct {
	h policy.Hooks[K, V]

	capIn    int // A1in capacity (per shard)
	capGhost int // A1out capacity (per shard)

	// A1in: MRU at Front() → LRU at Back(); element values are policy.Node.
	inList *list.List
	inIdx  map[policy.Node[K, V]]*list.Element

	// A1out: MRU at Front() → LRU at Back(); element values are keys.
	ghostList *list.List
	ghostIdx  map[K]*list.Element
}

// New constructs a 2Q policy factory. Sizes are per shard: capIn around 25%
// of the shard's entry budget and capGhost around 50–100% work well.
func New[K comparable, V any](capIn, capGhost int) policy.Policy[K, V] {
	if capIn < 1 {
		capIn = 1
	}
	if capGhost < 1 {
		capGhost = 1
	}
	return twoQPolicy[K, V]{capIn: capIn, capGhost: capGhost}
}

type twoQPolicy[K comparable, V any] struct {
	capIn    int
	capGhost int
}

func (p twoQPolicy[K, V]) New(h policy.Hooks[K, V]) policy.ShardPolicy[K, V] {
	q := &twoQ[K, V]{h: h, capIn: p.capIn, capGhost: p.capGhost}
	q.reset()
	return q
}

func (q *twoQ[K, V]) reset() {
	q.inList = list.New()
	q.inIdx = make(map[policy.Node[K, V]]*list.Element)
	q.ghostList = list.New()
	q.ghostIdx = make(map[K]*list.Element)
}

// OnAdd admits the node. A remembered ghost bypasses probation and goes
// straight to Am; anyone else enters A1in, and A1in overflow is returned to
// the shard as the eviction candidate.
func (q *twoQ[K, V]) OnAdd(n policy.Node[K, V]) (evict policy.Node[K, V]) {
	k := n.Key()
	if ge, ok := q.ghostIdx[k]; ok {
		q.ghostList.Remove(ge)
		delete(q.ghostIdx, k)
		q.h.PushFront(n)
		return nil
	}

	q.h.PushFront(n)
	q.inIdx[n] = q.inList.PushFront(n)

	if q.inList.Len() > q.capIn {
		if lruEl := q.inList.Back(); lruEl != nil {
			return lruEl.Value.(policy.Node[K, V])
		}
	}
	return nil
}

// OnGet promotes: a node still on probation graduates to Am, and either way
// it moves to MRU in the shard list.
func (q *twoQ[K, V]) OnGet(n policy.Node[K, V]) {
	if el, ok := q.inIdx[n]; ok {
		q.inList.Remove(el)
		delete(q.inIdx, n)
	}
	q.h.MoveToFront(n)
}

// OnUpdate follows OnGet semantics (a fill or overwrite counts as use).
func (q *twoQ[K, V]) OnUpdate(n policy.Node[K, V]) { q.OnGet(n) }

// OnRemove records an A1in departure in the ghost history. Removals from Am
// leave no ghost.
func (q *twoQ[K, V]) OnRemove(n policy.Node[K, V]) {
	el, ok := q.inIdx[n]
	if !ok {
		return
	}
	q.inList.Remove(el)
	delete(q.inIdx, n)

	k := n.Key()
	if old := q.ghostIdx[k]; old != nil {
		q.ghostList.Remove(old)
	}
	q.ghostIdx[k] = q.ghostList.PushFront(k)

	for q.ghostList.Len() > q.capGhost {
		tail := q.ghostList.Back()
		if tail == nil {
			break
		}
		delete(q.ghostIdx, tail.Value.(K))
		q.ghostList.Remove(tail)
	}
}

// OnClear drops probation and ghost state wholesale.
func (q *twoQ[K, V]) OnClear() { q.reset() }
