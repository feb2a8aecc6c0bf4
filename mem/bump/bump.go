// Package bump provides a growable arena over a single reserved virtual address range.
//
// The arena reserves its full capacity up front and commits whole pages lazily
// as the cursor advances. Capacity is a hard ceiling: allocating past it is a
// programmer error and panics. Rewind and Reset only move the cursor; Purge
// hands trailing pages back to the OS without giving up the reservation.
//
// Allocator instances are not thread-safe.
package bump

import (
	"errors"
	"fmt"

	"github.com/joshuapare/memkit/internal/align"
	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/mem/category"
	"github.com/joshuapare/memkit/mem/vmem"
)

var logAlloc = logger.AllocLogging()

// Options configures a bump Allocator.
type Options struct {
	// Registry receives committed-byte accounting.
	// Default: category.Default
	Registry *category.Registry

	// Category that committed pages are charged to. Unregistered IDs
	// (including category.Invalid) disable accounting.
	// Default: category.Invalid
	Category category.ID

	// HugePages asks the kernel to back committed pages with huge pages
	// (Linux madvise hint, ignored elsewhere).
	// Default: false
	HugePages bool

	// Precommit commits the whole reservation up front, for arenas that must
	// never fault on the allocation path.
	// Default: false
	Precommit bool
}

// DefaultOptions returns options with accounting disabled.
func DefaultOptions() Options {
	return Options{
		Registry: category.Default,
		Category: category.Invalid,
	}
}

// Allocator is a bump-pointer arena.
//
// Invariant: 0 <= cursor <= committed <= region.Len().
type Allocator struct {
	region    *vmem.Region
	cursor    int // offset of the next free byte
	committed int // offset one past the last committed byte
	pageSize  int
	opts      Options
}

// New reserves capacity bytes (rounded up to whole pages). Nothing is committed yet.
func New(capacity int, opts Options) (*Allocator, error) {
	if capacity <= 0 {
		return nil, ErrBadCapacity
	}
	if opts.Registry == nil {
		opts.Registry = category.Default
	}
	region, err := vmem.Reserve(capacity)
	if err != nil {
		return nil, fmt.Errorf("bump: %w", err)
	}
	a := &Allocator{
		region:   region,
		pageSize: vmem.PageSize(),
		opts:     opts,
	}
	if a.tracked() {
		a.opts.Registry.RecordAlloc(a.opts.Category, 0)
	}
	if opts.Precommit {
		if err := a.grow(region.Len()); err != nil {
			_ = a.Release()
			return nil, fmt.Errorf("bump: precommit: %w", err)
		}
	}
	return a, nil
}

// Allocate returns size bytes aligned to alignment, committing pages as needed.
// A zero-size request returns nil. If the OS refuses to commit, Allocate
// returns nil and the cursor is unchanged.
//
// Panics if alignment is not a power of two or the request does not fit in
// the reservation.
func (a *Allocator) Allocate(size, alignment int) []byte {
	b, err := a.allocate(size, alignment)
	if errors.Is(err, ErrCapacity) {
		panic(fmt.Sprintf("bump: allocation of %d bytes (align %d) at offset %d exceeds capacity %d",
			size, alignment, a.cursor, a.region.Len()))
	}
	return b
}

// TryAllocate is Allocate for callers that size their arena for the worst
// case but still want to fail softly: a request past the reservation returns
// nil instead of panicking.
func (a *Allocator) TryAllocate(size, alignment int) []byte {
	b, _ := a.allocate(size, alignment)
	return b
}

func (a *Allocator) allocate(size, alignment int) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	if size < 0 {
		panic(fmt.Sprintf("bump: negative allocation size %d", size))
	}
	if !align.IsPow2(alignment) {
		panic(fmt.Sprintf("bump: alignment %d is not a power of two", alignment))
	}
	if a.region.Bytes() == nil {
		panic("bump: allocate after Release")
	}

	base := a.region.Base()
	start := int(align.UpPtr(base+uintptr(a.cursor), uintptr(alignment)) - base)
	end, ok := align.AddOverflowSafe(start, size)
	if !ok || end > a.region.Len() {
		return nil, ErrCapacity
	}

	if end > a.committed {
		if err := a.grow(end); err != nil {
			logger.Warn("bump: commit failed", "need", end, "committed", a.committed, "err", err)
			return nil, err
		}
	}

	a.cursor = end
	return a.region.Bytes()[start:end:end], nil
}

// grow commits whole pages so that at least end bytes are usable.
func (a *Allocator) grow(end int) error {
	target := align.Up(end, a.pageSize)
	n := target - a.committed
	if err := a.region.Commit(a.committed, n); err != nil {
		return err
	}
	if a.opts.HugePages {
		if err := a.region.AdviseHugePages(a.committed, n); err != nil {
			logger.Debug("bump: huge page hint rejected", "err", err)
		}
	}
	if logAlloc {
		logger.Debug("bump: commit", "from", a.committed, "to", target, "pages", n/a.pageSize)
	}
	a.committed = target
	if a.tracked() {
		a.opts.Registry.AddBytes(a.opts.Category, n)
	}
	return nil
}

// Rewind moves the cursor back by exactly size bytes.
// Panics if that would move it before the arena start.
func (a *Allocator) Rewind(size int) {
	if size < 0 || size > a.cursor {
		panic(fmt.Sprintf("bump: rewind of %d bytes underflows cursor %d", size, a.cursor))
	}
	a.cursor -= size
}

// RewindTo moves the cursor back to offset, a value previously returned by Used.
// Panics if offset is negative or ahead of the cursor.
func (a *Allocator) RewindTo(offset int) {
	if offset < 0 {
		panic(fmt.Sprintf("bump: rewind to negative offset %d", offset))
	}
	a.Rewind(a.cursor - offset)
}

// Reset moves the cursor back to the arena start. Committed pages are kept.
func (a *Allocator) Reset() {
	a.cursor = 0
}

// Purge decommits every whole page past the page-aligned cursor.
func (a *Allocator) Purge() error {
	keep := align.Up(a.cursor, a.pageSize)
	if keep >= a.committed {
		return nil
	}
	n := a.committed - keep
	if err := a.region.Decommit(keep, n); err != nil {
		return fmt.Errorf("bump: purge: %w", err)
	}
	if logAlloc {
		logger.Debug("bump: purge", "from", a.committed, "to", keep, "pages", n/a.pageSize)
	}
	a.committed = keep
	if a.tracked() {
		a.opts.Registry.AddBytes(a.opts.Category, -n)
	}
	return nil
}

// Release returns the reservation to the OS. The Allocator is unusable afterwards.
func (a *Allocator) Release() error {
	if a.region.Bytes() == nil {
		return nil
	}
	if a.tracked() {
		a.opts.Registry.AddBytes(a.opts.Category, -a.committed)
		a.opts.Registry.RecordFree(a.opts.Category, 0)
	}
	a.cursor, a.committed = 0, 0
	return a.region.Release()
}

// Used returns the cursor offset: bytes handed out since the last Reset,
// including alignment padding.
func (a *Allocator) Used() int { return a.cursor }

// Committed returns the number of committed bytes (always whole pages).
func (a *Allocator) Committed() int { return a.committed }

// Capacity returns the size of the reservation.
func (a *Allocator) Capacity() int { return a.region.Len() }

// PageSize returns the commit granularity.
func (a *Allocator) PageSize() int { return a.pageSize }

func (a *Allocator) tracked() bool {
	return a.opts.Registry.Valid(a.opts.Category)
}
