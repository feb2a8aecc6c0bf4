package pool

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/mem/category"
	"github.com/joshuapare/memkit/mem/handle"
	"github.com/joshuapare/memkit/mem/tracked"
)

var logAlloc = logger.AllocLogging()

// Options configures a Pool.
type Options struct {
	// Allocator that accounts slot storage.
	// Default: tracked.Default
	Allocator *tracked.Allocator

	// Category all slot storage is charged to. Must be registered with the
	// allocator's registry.
	Category category.ID

	// Kind is stamped on every handle the pool issues. The pool itself never
	// inspects it.
	Kind handle.Kind

	// Cold allocates the parallel cold-payload array.
	// Default: false
	Cold bool
}

// Pool is a generational-handle object pool. See the package documentation.
type Pool[Hot, Cold any] struct {
	mu sync.RWMutex

	alloc *tracked.Allocator
	cat   category.ID
	kind  handle.Kind

	capacity  int
	freeCount int
	free      *tracked.Array[uint32]
	hot       *tracked.Array[Hot]
	cold      *tracked.Array[Cold] // nil without Options.Cold
	gens      *tracked.Array[uint8]
	live      *tracked.Array[atomic.Bool]
}

// New returns a pool with room for capacity elements before the first growth.
func New[Hot, Cold any](capacity int, opts Options) *Pool[Hot, Cold] {
	if capacity < 0 || int64(capacity) > handle.MaxIndex {
		panic(fmt.Sprintf("pool: capacity %d out of range", capacity))
	}
	if opts.Allocator == nil {
		opts.Allocator = tracked.Default
	}
	p := &Pool[Hot, Cold]{
		alloc:    opts.Allocator,
		cat:      opts.Category,
		kind:     opts.Kind,
		capacity: capacity,
	}
	p.hot = tracked.NewArray[Hot](p.alloc, p.cat, capacity)
	if opts.Cold {
		p.cold = tracked.NewArray[Cold](p.alloc, p.cat, capacity)
	}
	p.gens = tracked.NewArray[uint8](p.alloc, p.cat, capacity)
	p.live = tracked.NewArray[atomic.Bool](p.alloc, p.cat, capacity)
	p.free = tracked.NewArray[uint32](p.alloc, p.cat, capacity)
	p.pushRange(0, capacity)
	return p
}

// NewHot returns a pool without cold storage.
func NewHot[Hot any](capacity int, opts Options) *Pool[Hot, struct{}] {
	opts.Cold = false
	return New[Hot, struct{}](capacity, opts)
}

// pushRange seeds the free list with [lo, hi) so that lo is popped first.
func (p *Pool[Hot, Cold]) pushRange(lo, hi int) {
	free := p.free.Items()
	for i := hi - 1; i >= lo; i-- {
		free[p.freeCount] = uint32(i)
		p.freeCount++
	}
}

// Store places hot (and cold, if the pool has cold storage) in a free slot,
// growing the pool when none is free, and returns the slot's handle.
func (p *Pool[Hot, Cold]) Store(hot Hot, cold Cold) handle.Handle {
	p.mu.Lock()
	if p.freeCount == 0 {
		p.grow()
	}
	p.freeCount--
	idx := p.free.Items()[p.freeCount]
	gen := p.gens.Items()[idx]
	p.mu.Unlock()

	// The slot is unreachable until the handle is returned, so nobody else
	// touches it. The read lock only keeps growth from moving storage.
	p.mu.RLock()
	p.hot.Items()[idx] = hot
	if p.cold != nil {
		p.cold.Items()[idx] = cold
	}
	p.live.Items()[idx].Store(true)
	p.mu.RUnlock()

	return handle.New(p.kind, idx, gen)
}

// StoreHot is Store with a zero cold payload.
func (p *Pool[Hot, Cold]) StoreHot(hot Hot) handle.Handle {
	var cold Cold
	return p.Store(hot, cold)
}

// grow doubles the capacity. Must be called with p.mu held for writing and an
// empty free list.
func (p *Pool[Hot, Cold]) grow() {
	oldCap := p.capacity
	newCap := max(1, oldCap*2)
	if int64(newCap) > handle.MaxIndex+1 {
		panic(fmt.Sprintf("pool: cannot grow past %d slots", oldCap))
	}

	hot := tracked.NewArray[Hot](p.alloc, p.cat, newCap)
	copy(hot.Items(), p.hot.Items())
	p.hot.Free()
	p.hot = hot

	if p.cold != nil {
		cold := tracked.NewArray[Cold](p.alloc, p.cat, newCap)
		copy(cold.Items(), p.cold.Items())
		p.cold.Free()
		p.cold = cold
	}

	gens := tracked.NewArray[uint8](p.alloc, p.cat, newCap)
	copy(gens.Items(), p.gens.Items())
	p.gens.Free()
	p.gens = gens

	live := tracked.NewArray[atomic.Bool](p.alloc, p.cat, newCap)
	oldLive := p.live.Items()
	for i := range oldLive {
		live.Items()[i].Store(oldLive[i].Load())
	}
	p.live.Free()
	p.live = live

	p.free.Free()
	p.free = tracked.NewArray[uint32](p.alloc, p.cat, newCap)
	p.capacity = newCap
	p.pushRange(oldCap, newCap)

	if logAlloc {
		logger.Debug("pool: grew", "category", p.cat, "from", oldCap, "to", newCap)
	}
}

// valid must be called with p.mu held.
func (p *Pool[Hot, Cold]) valid(h handle.Handle) (uint32, bool) {
	idx := h.Index()
	if int64(idx) >= int64(p.capacity) {
		return 0, false
	}
	if p.gens.Items()[idx] != h.Generation() || !p.live.Items()[idx].Load() {
		return 0, false
	}
	return idx, true
}

// Remove destroys the payload h refers to and invalidates every copy of h.
// It reports false, doing nothing, for a stale or out-of-range handle.
func (p *Pool[Hot, Cold]) Remove(h handle.Handle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.valid(h)
	if !ok {
		return false
	}

	var zeroHot Hot
	p.hot.Items()[idx] = zeroHot
	if p.cold != nil {
		var zeroCold Cold
		p.cold.Items()[idx] = zeroCold
	}
	p.live.Items()[idx].Store(false)
	p.gens.Items()[idx]++ // wraps at 256

	p.free.Items()[p.freeCount] = idx
	p.freeCount++
	return true
}

// GetHot returns a pointer to h's hot payload, or nil if h is stale.
//
// The pointer is only valid until the next Store or Remove on p: a Store that
// grows the pool moves every payload and frees the old storage. Re-resolve the
// handle after any Store, or use LoadHot to keep a copy. Writes through the
// pointer are not synchronised with other goroutines.
func (p *Pool[Hot, Cold]) GetHot(h handle.Handle) *Hot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	idx, ok := p.valid(h)
	if !ok {
		return nil
	}
	return &p.hot.Items()[idx]
}

// GetCold returns a pointer to h's cold payload, or nil if h is stale or the
// pool has no cold storage. The pointer has the same lifetime as one from
// GetHot; use LoadCold to keep a copy.
func (p *Pool[Hot, Cold]) GetCold(h handle.Handle) *Cold {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cold == nil {
		return nil
	}
	idx, ok := p.valid(h)
	if !ok {
		return nil
	}
	return &p.cold.Items()[idx]
}

// LoadHot returns a copy of h's hot payload.
func (p *Pool[Hot, Cold]) LoadHot(h handle.Handle) (Hot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	idx, ok := p.valid(h)
	if !ok {
		var zero Hot
		return zero, false
	}
	return p.hot.Items()[idx], true
}

// LoadCold returns a copy of h's cold payload.
func (p *Pool[Hot, Cold]) LoadCold(h handle.Handle) (Cold, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var zero Cold
	if p.cold == nil {
		return zero, false
	}
	idx, ok := p.valid(h)
	if !ok {
		return zero, false
	}
	return p.cold.Items()[idx], true
}

// Valid reports whether h currently resolves.
func (p *Pool[Hot, Cold]) Valid(h handle.Handle) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.valid(h)
	return ok
}

// Each calls fn with the handle and hot payload of every live slot, in index
// order, until fn returns false. fn runs under the read lock and must not call
// Store or Remove on the same pool.
func (p *Pool[Hot, Cold]) Each(fn func(handle.Handle, *Hot) bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	live := p.live.Items()
	gens := p.gens.Items()
	hot := p.hot.Items()
	for i := range live {
		if !live[i].Load() {
			continue
		}
		if !fn(handle.New(p.kind, uint32(i), gens[i]), &hot[i]) {
			return
		}
	}
}

// Len returns the number of occupied slots, including ones whose Store is
// still in flight.
func (p *Pool[Hot, Cold]) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.capacity - p.freeCount
}

// Capacity returns the current number of slots.
func (p *Pool[Hot, Cold]) Capacity() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.capacity
}

// HasCold reports whether the pool keeps cold payloads.
func (p *Pool[Hot, Cold]) HasCold() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cold != nil
}

// Close frees all slot storage. The pool must not be used afterwards.
func (p *Pool[Hot, Cold]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hot == nil {
		return
	}
	p.hot.Free()
	if p.cold != nil {
		p.cold.Free()
	}
	p.gens.Free()
	p.live.Free()
	p.free.Free()
	p.hot, p.cold, p.gens, p.live, p.free = nil, nil, nil, nil, nil
	p.capacity, p.freeCount = 0, 0
}
