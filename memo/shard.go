package memo

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/memocache/memo/internal/util"
	"github.com/memocache/memo/policy"
)

// shard is an independent partition of the cache with its own structural
// lock, key→entry map, and an intrusive doubly linked list (head = MRU,
// tail = LRU). The structural lock guards insert/remove/evict of whole
// entries; filling an entry's value in exclusive mode uses the entry's own
// fill lock instead, so unrelated keys never serialize behind one fill.
type shard[K comparable, V any] struct {
	// ---- guarded by mu ----
	mu   sync.RWMutex
	m    map[K]*entry[K, V]
	head *entry[K, V] // MRU
	tail *entry[K, V] // LRU
	len  int          // resident entries, placeholders included
	cost int64        // total resident cost

	// Advisory limits shared with the parent cache; budgets are split
	// evenly across nshards.
	countLimit *atomic.Int64
	costLimit  *atomic.Int64
	nshards    int

	pol policy.ShardPolicy[K, V]
	opt Options[K, V]

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_        util.CacheLinePad
	hits     util.PaddedAtomicInt64
	misses   util.PaddedAtomicInt64
	produces util.PaddedAtomicInt64
	evicts   util.PaddedAtomicUint64
}

func newShard[K comparable, V any](nshards int, countLimit, costLimit *atomic.Int64, opt Options[K, V]) *shard[K, V] {
	s := &shard[K, V]{
		m:          make(map[K]*entry[K, V]),
		countLimit: countLimit,
		costLimit:  costLimit,
		nshards:    nshards,
		opt:        opt,
	}
	s.pol = opt.Policy.New(shardHooks[K, V]{s: s})
	return s
}

// fetchExclusive implements the at-most-one-producer-per-key protocol.
//
// The loop structure: a waiter that blocked on a claim which was withdrawn
// (producer failed) starts over from the top and races to become the new
// claim owner, so a transient failure never locks a key out.
func (s *shard[K, V]) fetchExclusive(k K, produce func() (V, error)) (V, error) {
	for {
		// Fast path: a filled entry is returned under the read lock only.
		s.mu.RLock()
		e, ok := s.m[k]
		s.mu.RUnlock()
		if ok {
			if e.filled.Load() {
				s.hits.Add(1)
				s.opt.Metrics.Hit()
				return e.val, nil
			}
			// Another goroutine owns the claim; block until it resolves.
			e.fill.Lock()
			filled := e.filled.Load()
			e.fill.Unlock()
			if filled {
				s.hits.Add(1)
				s.opt.Metrics.Hit()
				return e.val, nil
			}
			// The owner withdrew; race to take over the claim.
			continue
		}

		// Miss: claim the key with an empty placeholder. The fill lock is
		// taken before the entry becomes visible, so it is uncontended.
		s.mu.Lock()
		if _, ok := s.m[k]; ok {
			// Lost the insert race; re-evaluate from the top.
			s.mu.Unlock()
			continue
		}
		e = &entry[K, V]{key: k}
		e.fill.Lock()
		s.m[k] = e
		if ev := s.pol.OnAdd(e); ev != nil {
			s.evictEntry(ev.(*entry[K, V]), EvictPolicy)
		}
		s.enforceLimitsLocked()
		s.mu.Unlock()

		s.misses.Add(1)
		s.opt.Metrics.Miss()
		return s.fillClaim(e, produce)
	}
}

// fillClaim runs the producer for a claim owned by this goroutine and
// publishes the outcome. The fill lock is released on every exit path,
// including producer panic; an unsuccessful fill withdraws the placeholder
// first so that released waiters retry instead of spinning on a dead claim.
func (s *shard[K, V]) fillClaim(e *entry[K, V], produce func() (V, error)) (V, error) {
	committed := false
	defer func() {
		if !committed {
			s.withdraw(e)
		}
		e.fill.Unlock()
	}()

	s.produces.Add(1)
	s.opt.Metrics.Produce(Exclusive)
	v, err := produce()
	if err != nil {
		var zero V
		return zero, err
	}

	// Publish: value before flag, so any goroutine that observes
	// filled==true also observes val.
	e.val = v
	e.filled.Store(true)

	cost := s.costOf(v)
	s.mu.Lock()
	if cur, ok := s.m[e.key]; ok && cur == e {
		e.cost = cost
		s.cost += int64(cost)
		s.pol.OnUpdate(e)
	} else {
		// The placeholder was evicted or cleared mid-fill. Evicted entries
		// are never re-linked, so store the result under a fresh entry
		// (last write wins for whatever replaced us).
		s.replaceLocked(e.key, newFilled(e.key, v, cost))
	}
	s.enforceLimitsLocked()
	s.mu.Unlock()

	committed = true
	return v, nil
}

// withdraw removes a still-empty claim from the map, if it is still there.
func (s *shard[K, V]) withdraw(e *entry[K, V]) {
	s.mu.Lock()
	if cur, ok := s.m[e.key]; ok && cur == e {
		s.pol.OnRemove(e)
		s.unlink(e)
		delete(s.m, e.key)
	}
	s.mu.Unlock()
}

// fetchRelaxed runs the producer on every concurrent miss and stores the
// result unconditionally: last write wins. Correct only for pure producers.
func (s *shard[K, V]) fetchRelaxed(k K, produce func() (V, error)) (V, error) {
	s.mu.RLock()
	e, ok := s.m[k]
	s.mu.RUnlock()
	if ok && e.filled.Load() {
		s.hits.Add(1)
		s.opt.Metrics.Hit()
		return e.val, nil
	}

	s.misses.Add(1)
	s.opt.Metrics.Miss()
	s.produces.Add(1)
	s.opt.Metrics.Produce(Relaxed)
	v, err := produce()
	if err != nil {
		var zero V
		return zero, err
	}
	s.set(k, v)
	return v, nil
}

// get returns the value for k, treating empty placeholders as misses.
// On hit, the entry is promoted according to the policy.
func (s *shard[K, V]) get(k K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.m[k]
	if !ok || !e.filled.Load() {
		s.misses.Add(1)
		s.opt.Metrics.Miss()
		var zero V
		return zero, false
	}
	s.pol.OnGet(e)
	s.hits.Add(1)
	s.opt.Metrics.Hit()
	return e.val, true
}

// set unconditionally replaces any existing entry for k with a fresh filled
// one. Entries transition empty→filled at most once, so updates swap the
// whole instance instead of mutating in place.
func (s *shard[K, V]) set(k K, v V) {
	e := newFilled(k, v, s.costOf(v))
	s.mu.Lock()
	s.replaceLocked(k, e)
	s.enforceLimitsLocked()
	s.mu.Unlock()
}

// replaceLocked installs e under its key, displacing any previous entry.
func (s *shard[K, V]) replaceLocked(k K, e *entry[K, V]) {
	if old, ok := s.m[k]; ok {
		s.pol.OnRemove(old)
		s.unlink(old)
		delete(s.m, k)
	}
	s.m[k] = e
	if ev := s.pol.OnAdd(e); ev != nil {
		s.evictEntry(ev.(*entry[K, V]), EvictPolicy)
	}
}

// remove deletes an entry by key. Returns true if the entry existed.
// Not counted as an eviction.
func (s *shard[K, V]) remove(k K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.m[k]
	if !ok {
		return false
	}
	s.pol.OnRemove(e)
	s.unlink(e)
	delete(s.m, k)
	return true
}

// clear drops every entry at once. In-flight exclusive fills keep their
// (now orphaned) entry instances and re-store on completion.
func (s *shard[K, V]) clear() {
	s.mu.Lock()
	s.m = make(map[K]*entry[K, V])
	s.head, s.tail = nil, nil
	s.len, s.cost = 0, 0
	s.pol.OnClear()
	s.opt.Metrics.Size(0, 0)
	s.mu.Unlock()
}

func (s *shard[K, V]) entries() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.len
}

func (s *shard[K, V]) residentCost() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cost
}

func (s *shard[K, V]) costOf(v V) int32 {
	if s.opt.Cost == nil {
		return 0
	}
	iv := s.opt.Cost(v)
	if iv < 0 {
		iv = 0
	}
	if iv > math.MaxInt32 {
		iv = math.MaxInt32
	}
	return int32(iv)
}

// -------------------- internals (mu held) --------------------

// insertFront links n at MRU in O(1).
func (s *shard[K, V]) insertFront(n *entry[K, V]) {
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
	s.len++
	s.cost += int64(n.cost)
}

// moveToFront promotes n to MRU in O(1).
func (s *shard[K, V]) moveToFront(n *entry[K, V]) {
	if n == s.head {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
}

// unlink removes n from the list and updates counters in O(1).
func (s *shard[K, V]) unlink(n *entry[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.head == n {
		s.head = n.next
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev, n.next = nil, nil
	s.len--
	s.cost -= int64(n.cost)
	if s.cost < 0 {
		s.cost = 0
	}
}

// evictEntry removes n, updates counters, and notifies OnEvict for entries
// that actually held a value.
func (s *shard[K, V]) evictEntry(n *entry[K, V], reason EvictReason) {
	s.pol.OnRemove(n)
	s.unlink(n)
	delete(s.m, n.key)
	s.evicts.Add(1)
	s.opt.Metrics.Evict(reason)
	if cb := s.opt.OnEvict; cb != nil && n.filled.Load() {
		// Called under the shard lock; keep callbacks lightweight.
		cb(n.key, n.val, reason)
	}
}

// countBudget returns this shard's slice of the count limit (0 = unlimited).
func (s *shard[K, V]) countBudget() int {
	limit := s.countLimit.Load()
	if limit <= 0 {
		return 0
	}
	return int((limit + int64(s.nshards) - 1) / int64(s.nshards))
}

// costBudget returns this shard's slice of the cost limit (0 = unlimited).
func (s *shard[K, V]) costBudget() int64 {
	limit := s.costLimit.Load()
	if limit <= 0 {
		return 0
	}
	return (limit + int64(s.nshards) - 1) / int64(s.nshards)
}

// enforceLimitsLocked evicts from the LRU tail until both budgets hold.
// The limits are advisory: budgets are rounded up per shard, and an entry
// mid-fill can slip back in after eviction, so totals may transiently
// exceed the configured bounds.
func (s *shard[K, V]) enforceLimitsLocked() {
	if budget := s.countBudget(); budget > 0 {
		for s.len > budget && s.tail != nil {
			s.evictEntry(s.tail, EvictCount)
		}
	}
	if budget := s.costBudget(); budget > 0 {
		for s.cost > budget && s.tail != nil {
			s.evictEntry(s.tail, EvictCost)
		}
	}
	s.opt.Metrics.Size(s.len, s.cost)
}

// -------------------- policy hooks --------------------

// shardHooks adapts the shard's list operations to policy.Hooks.
// All hook calls happen under the shard lock.
type shardHooks[K comparable, V any] struct{ s *shard[K, V] }

func (h shardHooks[K, V]) MoveToFront(x policy.Node[K, V]) { h.s.moveToFront(x.(*entry[K, V])) }
func (h shardHooks[K, V]) PushFront(x policy.Node[K, V])   { h.s.insertFront(x.(*entry[K, V])) }
func (h shardHooks[K, V]) Remove(x policy.Node[K, V])      { h.s.unlink(x.(*entry[K, V])) }
func (h shardHooks[K, V]) Back() policy.Node[K, V] {
	if h.s.tail == nil {
		return nil
	}
	return h.s.tail
}
func (h shardHooks[K, V]) Len() int { return h.s.len }
