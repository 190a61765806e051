// Package pool implements the fixed-capacity slab allocator shared by the
// task scheduler and the AsyncIO job table.
//
// It generalizes the manager/borrow/release vocabulary used throughout this
// project's buffer pools to arbitrary item types addressed by a stable
// slot.Index, so that a Task and a Job can live in structurally identical
// pools.
package pool

import (
	"fmt"

	"github.com/Torbatti/tardy/internal/bitset"
	"github.com/Torbatti/tardy/slot"
)

// ErrOutOfSlots is returned by Borrow/BorrowHint when the pool has no free
// capacity left.
var ErrOutOfSlots = fmt.Errorf("pool: out of slots")

// Pool is a fixed-capacity slab of T, indexed by slot.Index. Indices are
// stable for the lifetime of a borrow: Get(i) after Borrow() always returns
// the same item until Release(i) is called.
//
// A Pool is not safe for concurrent use.
type Pool[T any] struct {
	items []T
	dirty *bitset.Set
	cap   int
}

// New allocates a Pool with room for capacity items. init, if non-nil, is
// called once per slot up front (mirroring the optional initializer taken
// by the reference buffer pool's constructor); it may be nil to leave items
// zero-valued until first borrowed.
func New[T any](capacity int, init func(i slot.Index, item *T)) *Pool[T] {
	p := &Pool[T]{
		items: make([]T, capacity),
		dirty: bitset.New(capacity),
		cap:   capacity,
	}
	if init != nil {
		for i := range p.items {
			init(slot.Index(i), &p.items[i])
		}
	}
	return p
}

// Cap returns the fixed capacity of the pool.
func (p *Pool[T]) Cap() int { return p.cap }

// Len returns the number of currently outstanding borrows.
func (p *Pool[T]) Len() int { return p.dirty.Count() }

// Get returns a pointer to the item at i regardless of occupancy. Callers
// must only rely on the contents between a Borrow and the matching Release.
func (p *Pool[T]) Get(i slot.Index) *T {
	return &p.items[i]
}

// IsSet reports whether slot i is currently borrowed.
func (p *Pool[T]) IsSet(i slot.Index) bool {
	return p.dirty.Test(int(i))
}

// Borrow claims any free slot and returns its index and item pointer.
// Returns ErrOutOfSlots if the pool is full.
func (p *Pool[T]) Borrow() (slot.Index, *T, error) {
	i := p.dirty.FirstClear()
	if i < 0 {
		var zero T
		return 0, &zero, ErrOutOfSlots
	}
	p.dirty.Set(i)
	return slot.Index(i), &p.items[i], nil
}

// BorrowHint claims slot i if it is free, else falls back to Borrow. This is
// used to co-locate a Job with the Task index that owns it whenever
// possible, which keeps the common case allocation-pattern-friendly without
// requiring it.
func (p *Pool[T]) BorrowHint(i slot.Index) (slot.Index, *T, error) {
	if int(i) < p.cap && !p.dirty.Test(int(i)) {
		p.dirty.Set(int(i))
		return i, &p.items[i], nil
	}
	return p.Borrow()
}

// BorrowAssumeUnset claims slot i, panicking if it is already borrowed. It
// exists for the one call site (installing the permanent wake job at slot
// 0) where the caller has already proven the slot is free by construction.
func (p *Pool[T]) BorrowAssumeUnset(i slot.Index) *T {
	if p.dirty.Test(int(i)) {
		panic(fmt.Sprintf("pool: BorrowAssumeUnset(%d): slot already borrowed", i))
	}
	p.dirty.Set(int(i))
	return &p.items[i]
}

// Release returns slot i to the free list. The item itself is left as-is;
// callers that need cleanup semantics should do so before calling Release.
func (p *Pool[T]) Release(i slot.Index) {
	p.dirty.Clear(int(i))
}

// Deinit calls fin (if non-nil) on every still-borrowed item, then discards
// the backing storage and replaces the occupancy bitmap with an empty one.
// The pool is not usable afterward.
func (p *Pool[T]) Deinit(fin func(i slot.Index, item *T)) {
	if fin != nil {
		p.dirty.Each(func(i int) bool {
			fin(slot.Index(i), &p.items[i])
			return true
		})
	}
	p.items = nil
	p.dirty = bitset.New(0)
}
