// Package index provides a lock-free allocator of dense slot numbers.
//
// # Overview
//
// An Allocator hands out indices in [0, capacity) from a free list threaded
// through a fixed node array. Allocate and Free may be called from any number
// of goroutines with no locks; the only guarantee is safety: an index is never
// held by two callers at once and no index is ever lost.
//
//	ids := index.New(1024)
//	i := ids.Allocate()
//	if i == index.Invalid {
//	    return errFull
//	}
//	defer ids.Free(i)
//
// # ABA avoidance
//
// The free-list head and a 32-bit operation counter share one 64-bit word that
// is only ever replaced by compare-and-swap. Every successful push or pop bumps
// the counter, so two lists that happen to have the same head index after
// interleaved pops and pushes never compare equal.
//
// Exhaustion is not an error: Allocate returns Invalid immediately.
package index

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Invalid is returned by Allocate when every index is in use.
const Invalid uint32 = math.MaxUint32

// MaxCapacity is the largest supported capacity.
const MaxCapacity = math.MaxUint32 - 1

// Allocator is a lock-free free list over [0, capacity).
type Allocator struct {
	// state packs (counter:32, head:32). head >= capacity means empty.
	state    atomic.Uint64
	next     []atomic.Uint32
	held     []atomic.Bool // set between Allocate and Free
	capacity uint32
}

func pack(counter, head uint32) uint64 {
	return uint64(counter)<<32 | uint64(head)
}

func unpack(v uint64) (counter, head uint32) {
	return uint32(v >> 32), uint32(v)
}

// New returns an Allocator with every index in [0, capacity) free.
// Indices are handed out in ascending order until the first Free.
func New(capacity int) *Allocator {
	if capacity < 0 || uint64(capacity) > MaxCapacity {
		panic(fmt.Sprintf("index: capacity %d out of range", capacity))
	}
	a := &Allocator{
		next:     make([]atomic.Uint32, capacity),
		held:     make([]atomic.Bool, capacity),
		capacity: uint32(capacity),
	}
	for i := range a.next {
		a.next[i].Store(uint32(i + 1))
	}
	a.state.Store(pack(0, 0))
	return a
}

// Capacity returns the number of indices managed.
func (a *Allocator) Capacity() int {
	return int(a.capacity)
}

// Allocate pops a free index, or returns Invalid if none is left.
func (a *Allocator) Allocate() uint32 {
	for {
		old := a.state.Load()
		counter, head := unpack(old)
		if head >= a.capacity {
			return Invalid
		}
		// May be stale if head is popped and pushed concurrently; the counter
		// makes the CAS below fail in that case.
		next := a.next[head].Load()
		if a.state.CompareAndSwap(old, pack(counter+1, next)) {
			a.held[head].Store(true)
			return head
		}
	}
}

// Free pushes i back onto the free list. Freeing Invalid is a no-op.
// Panics if i is out of range or not currently allocated, which catches a
// double free before it can corrupt the list.
func (a *Allocator) Free(i uint32) {
	if i == Invalid {
		return
	}
	if i >= a.capacity {
		panic(fmt.Sprintf("index: free of %d outside capacity %d", i, a.capacity))
	}
	if !a.held[i].CompareAndSwap(true, false) {
		panic(fmt.Sprintf("index: free of %d which is not allocated", i))
	}
	for {
		old := a.state.Load()
		counter, head := unpack(old)
		a.next[i].Store(head)
		if a.state.CompareAndSwap(old, pack(counter+1, i)) {
			return
		}
	}
}
