// Package memoize is the ergonomic front-end to the memo cache: it derives
// stable keys from (subject, computation name) pairs so call sites can say
// "this derived value of this subject, cached" without per-call-site
// bookkeeping.
//
// A Group[S] is a partition memoizing derived values of subjects of type S.
// One group serves many result types by storing values type-erased; the
// read side re-asserts the concrete type and, on the (should-not-happen)
// mismatch, recomputes instead of failing: a caching-layer defect must
// never break a caller that holds a working producer.
//
// Selectors must name the computation explicitly ("wordCount", not a call
// site): two different computations sharing a selector on the same subject
// type will collide, which surfaces as recompute-on-every-call plus a
// logged diagnostic, not as wrong results.
package memoize

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/memocache/memo/memo"
)

// Options configures a Group's underlying cache partition.
type Options[S comparable] = memo.Options[memo.Key[S, string], any]

// Group memoizes derived values of subjects of type S. All methods are safe
// for concurrent use. The zero Group is not usable; construct with NewGroup
// or use the process-wide default via For.
type Group[S comparable] struct {
	c memo.Cache[memo.Key[S, string], any]
}

// NewGroup constructs an independent partition with its own limits.
func NewGroup[S comparable](opt Options[S]) *Group[S] {
	return &Group[S]{c: memo.New(opt)}
}

// Cache exposes the underlying cache, e.g. for limit changes or Stats.
func (g *Group[S]) Cache() memo.Cache[memo.Key[S, string], any] { return g.c }

// Forget drops the cached result of selector over subject, if any.
func (g *Group[S]) Forget(subject S, selector string) bool {
	return g.c.Remove(memo.NewKey(subject, selector))
}

// Clear empties the partition.
func (g *Group[S]) Clear() { g.c.Clear() }

// Do returns the memoized result of the computation named selector over
// subject, running compute on miss according to mode. compute must be
// referentially transparent; its error, if any, propagates verbatim and
// nothing is cached for that attempt.
func Do[S comparable, V any](g *Group[S], subject S, selector string, mode memo.Mode, compute func(S) (V, error)) (V, error) {
	k := memo.NewKey(subject, selector)
	raw, err := g.c.Fetch(k, mode, func() (any, error) {
		return compute(subject)
	})
	if err != nil {
		var zero V
		return zero, err
	}
	v, ok := raw.(V)
	if !ok {
		// The stored value does not have the requested type: either two
		// computations share a selector, or the entry was overwritten via
		// Set with something else. Recompute, overwrite, and leave a
		// diagnostic rather than failing the caller.
		slog.Warn("memoize: cached value has unexpected type, recomputing",
			"selector", selector,
			"want", fmt.Sprintf("%T", v),
			"got", fmt.Sprintf("%T", raw))
		v, err = compute(subject)
		if err != nil {
			var zero V
			return zero, err
		}
		g.c.Set(k, v)
	}
	return v, nil
}

// Cached wraps a pure function once so every call memoizes through g.
//
//	wordCount := memoize.Cached(g, "wordCount", memo.Exclusive, countWords)
//	n, err := wordCount(doc)
func Cached[S comparable, V any](g *Group[S], selector string, mode memo.Mode, fn func(S) (V, error)) func(S) (V, error) {
	return func(subject S) (V, error) {
		return Do(g, subject, selector, mode, fn)
	}
}

// ---- process-wide default groups ----

var (
	defMu     sync.Mutex
	defGroups = make(map[reflect.Type]any) // subject type -> *Group[S]
	defCount  int                          // limits for groups created after SetDefaults
	defCost   int64
)

// For returns the process-wide default group for subject type S, creating
// it on first use. Default groups are unbounded unless SetDefaults was
// called earlier.
func For[S comparable]() *Group[S] {
	t := reflect.TypeFor[S]()
	defMu.Lock()
	defer defMu.Unlock()
	if g, ok := defGroups[t]; ok {
		return g.(*Group[S])
	}
	g := NewGroup[S](Options[S]{CountLimit: defCount, CostLimit: defCost})
	defGroups[t] = g
	return g
}

// SetDefaults sets the limits applied to default groups created afterwards
// (0 = unlimited). Existing default groups keep their limits; call Reset
// first to discard them.
func SetDefaults(countLimit int, costLimit int64) {
	defMu.Lock()
	defer defMu.Unlock()
	defCount, defCost = countLimit, costLimit
}

// Reset clears and discards every default group. Intended for tests that
// need a clean process-wide state.
func Reset() {
	defMu.Lock()
	defer defMu.Unlock()
	for _, g := range defGroups {
		g.(interface{ Clear() }).Clear()
	}
	defGroups = make(map[reflect.Type]any)
}
