// Package bitset implements a small fixed-size bitmap used by the task pool
// and the object pool to track occupancy and runnability without an
// allocation per slot.
//
// A Set is not safe for concurrent use; every core component that owns one
// is documented as single-thread-owned (see tardy.Runtime).
package bitset

import "math/bits"

// Set is a fixed-capacity bitmap over word-packed uint64s.
type Set struct {
	words []uint64
	n     int
}

// New allocates a Set capable of holding n bits, all initially clear.
func New(n int) *Set {
	return &Set{
		words: make([]uint64, (n+63)/64),
		n:     n,
	}
}

// Len returns the bit capacity of the set.
func (s *Set) Len() int { return s.n }

// Set marks bit i as present.
func (s *Set) Set(i int) {
	s.words[i/64] |= 1 << uint(i%64)
}

// Clear marks bit i as absent.
func (s *Set) Clear(i int) {
	s.words[i/64] &^= 1 << uint(i%64)
}

// Test reports whether bit i is present.
func (s *Set) Test(i int) bool {
	return s.words[i/64]&(1<<uint(i%64)) != 0
}

// Count returns the number of set bits.
func (s *Set) Count() int {
	total := 0
	for _, w := range s.words {
		total += bits.OnesCount64(w)
	}
	return total
}

// ClearAll resets every bit to absent.
func (s *Set) ClearAll() {
	for i := range s.words {
		s.words[i] = 0
	}
}

// FirstClear returns the index of the lowest clear bit, or -1 if the set is
// full. It scans word by word so it stays cheap even for large pools.
func (s *Set) FirstClear() int {
	for wi, w := range s.words {
		if w == ^uint64(0) {
			continue
		}
		bit := bits.TrailingZeros64(^w)
		idx := wi*64 + bit
		if idx < s.n {
			return idx
		}
		return -1
	}
	return -1
}

// Each calls fn for every set bit in ascending order. fn returning false
// stops the iteration early.
func (s *Set) Each(fn func(i int) bool) {
	for wi, w := range s.words {
		base := wi * 64
		for w != 0 {
			bit := bits.TrailingZeros64(w)
			w &= w - 1
			idx := base + bit
			if idx >= s.n {
				return
			}
			if !fn(idx) {
				return
			}
		}
	}
}

// Snapshot returns a copy of the currently set bit indices in ascending
// order. Used by the dispatch phase, which must not observe bits set while
// it is iterating (see tardy.Runtime.Run).
func (s *Set) Snapshot() []int {
	out := make([]int, 0, s.Count())
	s.Each(func(i int) bool {
		out = append(out, i)
		return true
	})
	return out
}
