// Package util contains internal helpers (hashing, sharding, padding).
package util

import "hash/maphash"

// NewHasher returns a hash function for arbitrary comparable keys, seeded
// per call. Memoization keys are composite structs of caller-chosen types,
// so a type-switch hasher over known key kinds cannot cover them;
// maphash.Comparable hashes any comparable value and guarantees that equal
// keys hash identically under the same seed.
//
// Each cache gets its own seed, which also makes shard placement
// unpredictable across processes (no cross-process hash flooding).
func NewHasher[K comparable]() func(K) uint64 {
	seed := maphash.MakeSeed()
	return func(k K) uint64 {
		return maphash.Comparable(seed, k)
	}
}
