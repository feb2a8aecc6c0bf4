// Package tracked provides general-purpose allocation stamped with a category
// and alignment, feeding per-category statistics.
//
// # Overview
//
// Every allocation is returned as a *Block that carries its own metadata
// (category, requested size, alignment padding), so Free needs nothing but the
// block itself:
//
//	blk, err := tracked.Alloc(catMeshes, 4096, 64)
//	if err != nil {
//	    return err
//	}
//	defer tracked.Free(blk)
//	buf := blk.Bytes() // 4096 bytes, 64-byte aligned
//
// Small and medium blocks come from the Go heap. Blocks of LargeThreshold
// bytes or more are backed by their own vmem reservation, so exhaustion of
// address space is reported as an error instead of crashing the process.
//
// # Thread Safety
//
// Allocator methods may be called from any goroutine. Category counters are
// updated with atomic adds; no lock serialises unrelated allocations.
package tracked

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/joshuapare/memkit/internal/align"
	"github.com/joshuapare/memkit/mem/category"
	"github.com/joshuapare/memkit/mem/vmem"
)

// DefaultLargeThreshold is the block size at which allocations move to vmem.
const DefaultLargeThreshold = 1 << 20

// Options configures an Allocator.
type Options struct {
	// Registry receives the per-category accounting.
	// Default: category.Default
	Registry *category.Registry

	// LargeThreshold is the size in bytes from which blocks are served by a
	// dedicated vmem reservation. Zero or negative disables the large path.
	// Default: 1MB (1048576)
	LargeThreshold int
}

// DefaultOptions returns the options used by Default.
func DefaultOptions() Options {
	return Options{
		Registry:       category.Default,
		LargeThreshold: DefaultLargeThreshold,
	}
}

// Allocator hands out category-tracked blocks.
type Allocator struct {
	reg            *category.Registry
	largeThreshold int
}

// Default allocates against category.Default.
var Default = New(DefaultOptions())

// New returns an Allocator configured by opts.
func New(opts Options) *Allocator {
	if opts.Registry == nil {
		opts.Registry = category.Default
	}
	return &Allocator{
		reg:            opts.Registry,
		largeThreshold: opts.LargeThreshold,
	}
}

// Registry returns the registry this allocator reports to.
func (a *Allocator) Registry() *category.Registry {
	return a.reg
}

// Block is one tracked allocation.
type Block struct {
	cat    category.ID
	size   int
	pad    int          // offset of data within the backing memory
	raw    []byte       // heap backing, nil for large blocks
	region *vmem.Region // large backing, nil for heap blocks
	data   []byte
	freed  atomic.Bool
}

// Bytes returns the usable memory of the block.
func (b *Block) Bytes() []byte { return b.data }

// Len returns the requested size.
func (b *Block) Len() int { return b.size }

// Category returns the category the block is charged to.
func (b *Block) Category() category.ID { return b.cat }

// Padding returns how many bytes were skipped to satisfy the alignment.
func (b *Block) Padding() int { return b.pad }

// Large reports whether the block is backed by its own vmem reservation.
func (b *Block) Large() bool { return b.region != nil }

// Pointer returns the address of the first usable byte, or nil for an empty block.
func (b *Block) Pointer() unsafe.Pointer {
	if len(b.data) == 0 {
		return nil
	}
	return unsafe.Pointer(&b.data[0])
}

// Alloc allocates size bytes aligned to alignment and charges them to cat.
//
// alignment must be a power of two; otherwise ErrBadAlignment is returned.
// Panics if cat is not registered with the allocator's registry.
func (a *Allocator) Alloc(cat category.ID, size, alignment int) (*Block, error) {
	if size < 0 {
		return nil, ErrBadSize
	}
	if !align.IsPow2(alignment) {
		return nil, ErrBadAlignment
	}
	if !a.reg.Valid(cat) {
		panic(fmt.Sprintf("tracked: allocation against unregistered category %d", cat))
	}

	var (
		b   *Block
		err error
	)
	if a.largeThreshold > 0 && size >= a.largeThreshold {
		b, err = allocLarge(size, alignment)
	} else {
		b, err = allocHeap(size, alignment)
	}
	if err != nil {
		return nil, err
	}
	b.cat = cat
	b.size = size
	a.reg.RecordAlloc(cat, size)
	return b, nil
}

func allocHeap(size, alignment int) (*Block, error) {
	total, ok := align.AddOverflowSafe(size, alignment-1)
	if !ok {
		return nil, ErrBadSize
	}
	raw := make([]byte, total)
	if total == 0 {
		return &Block{raw: raw, data: raw}, nil
	}
	// The Go heap does not move objects, so an aligned address stays aligned.
	base := uintptr(unsafe.Pointer(&raw[0]))
	pad := int(align.UpPtr(base, uintptr(alignment)) - base)
	return &Block{
		raw:  raw,
		pad:  pad,
		data: raw[pad : pad+size : pad+size],
	}, nil
}

func allocLarge(size, alignment int) (*Block, error) {
	// Reservations are page aligned; only larger alignments need slack.
	total := size
	if alignment > vmem.PageSize() {
		var ok bool
		if total, ok = align.AddOverflowSafe(size, alignment); !ok {
			return nil, ErrBadSize
		}
	}
	region, err := vmem.Reserve(total)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutOfMemory, err)
	}
	if err := region.Commit(0, region.Len()); err != nil {
		_ = region.Release()
		return nil, fmt.Errorf("%w: %w", ErrOutOfMemory, err)
	}
	base := region.Base()
	pad := int(align.UpPtr(base, uintptr(alignment)) - base)
	return &Block{
		region: region,
		pad:    pad,
		data:   region.Bytes()[pad : pad+size : pad+size],
	}, nil
}

// Free releases b and reverses its accounting. Freeing nil is a no-op.
// Freeing the same block twice panics.
func (a *Allocator) Free(b *Block) {
	if b == nil {
		return
	}
	if b.freed.Swap(true) {
		panic(fmt.Sprintf("tracked: double free of %d-byte block in category %d", b.size, b.cat))
	}
	a.reg.RecordFree(b.cat, b.size)
	if b.region != nil {
		// Freeing has no error channel; the reservation leaks if munmap fails.
		_ = b.region.Release()
		b.region = nil
	}
	b.raw = nil
	b.data = nil
}

// MemoryInfo returns the statistics snapshot for cat.
func (a *Allocator) MemoryInfo(cat category.ID) category.Stats {
	return a.reg.Stats(cat)
}

// Alloc allocates from Default.
func Alloc(cat category.ID, size, alignment int) (*Block, error) {
	return Default.Alloc(cat, size, alignment)
}

// Free returns b to Default.
func Free(b *Block) {
	Default.Free(b)
}

// MemoryInfoForCategory returns Default's statistics snapshot for cat.
func MemoryInfoForCategory(cat category.ID) category.Stats {
	return Default.MemoryInfo(cat)
}
