package memo

// Key is the composite identity of one memoized result: a Subject (the value
// the computation runs over) plus a Selector (which computation it is).
// Both components must be comparable; the struct itself is then comparable,
// so two keys are equal exactly when both components are equal, and equal
// keys hash identically under the cache's hasher.
//
// Keys are plain values: construct once, never mutate. Do not key by call
// site (file/line): two computations on one line would collide; always use
// an explicit selector naming the computation.
type Key[S, C comparable] struct {
	Subject  S
	Selector C
}

// NewKey builds the composite key for caching the computation identified by
// selector over subject. Calls with equal arguments produce equal keys
// regardless of call site, time, or goroutine.
func NewKey[S, C comparable](subject S, selector C) Key[S, C] {
	return Key[S, C]{Subject: subject, Selector: selector}
}
