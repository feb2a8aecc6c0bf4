package vmem

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/joshuapare/memkit/internal/align"
)

var pageSize = sysPageSize()

// PageSize returns the platform's commit granularity in bytes.
func PageSize() int {
	return pageSize
}

// RoundUp rounds n up to a whole number of pages.
func RoundUp(n int) int {
	return align.Up(n, pageSize)
}

// Process-wide totals across all live regions.
var (
	reservedBytes  atomic.Int64
	committedBytes atomic.Int64
)

// Usage is a snapshot of process-wide reservation and commit totals.
type Usage struct {
	Reserved  int64 `json:"reserved"`
	Committed int64 `json:"committed"`
}

// CurrentUsage returns the bytes currently reserved and committed by all regions.
func CurrentUsage() Usage {
	return Usage{
		Reserved:  reservedBytes.Load(),
		Committed: committedBytes.Load(),
	}
}

// Region is a reserved range of virtual address space.
type Region struct {
	data      []byte
	pages     []uint64 // one bit per page, set while committed
	committed int      // bytes currently committed, for accounting only
}

// Reserve reserves at least size bytes of address space without backing it.
// The size is rounded up to a whole number of pages.
func Reserve(size int) (*Region, error) {
	if size <= 0 {
		return nil, ErrBadSize
	}
	rounded, ok := align.UpChecked(size, pageSize)
	if !ok {
		return nil, ErrBadSize
	}
	data, err := sysReserve(rounded)
	if err != nil {
		return nil, fmt.Errorf("vmem: reserve %d bytes: %w", rounded, err)
	}
	reservedBytes.Add(int64(rounded))
	return &Region{data: data, pages: make([]uint64, (rounded/pageSize+63)/64)}, nil
}

// Bytes returns the whole reserved range. Only committed pages may be touched.
func (r *Region) Bytes() []byte {
	return r.data
}

// Len returns the size of the reservation in bytes.
func (r *Region) Len() int {
	return len(r.data)
}

// Committed returns how many bytes of the region are currently committed.
func (r *Region) Committed() int {
	return r.committed
}

// Base returns the address of the first reserved byte, or 0 after Release.
func (r *Region) Base() uintptr {
	if len(r.data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&r.data[0]))
}

// Commit backs [off, off+n) with zero-filled, read/write pages. Pages that
// are already committed keep their contents and are counted once.
func (r *Region) Commit(off, n int) error {
	if _, err := r.sub(off, n); err != nil || n == 0 {
		return err
	}
	delta, err := r.transition(off, n, true)
	r.committed += delta
	committedBytes.Add(int64(delta))
	if err != nil {
		return fmt.Errorf("vmem: commit [%d,%d): %w", off, off+n, err)
	}
	return nil
}

// Decommit returns the physical pages behind [off, off+n) to the OS.
// The addresses stay reserved and may be committed again. Pages that are
// not committed are skipped.
func (r *Region) Decommit(off, n int) error {
	if _, err := r.sub(off, n); err != nil || n == 0 {
		return err
	}
	delta, err := r.transition(off, n, false)
	r.committed -= delta
	committedBytes.Add(-int64(delta))
	if err != nil {
		return fmt.Errorf("vmem: decommit [%d,%d): %w", off, off+n, err)
	}
	return nil
}

// AdviseHugePages hints that [off, off+n) should be backed by huge pages.
// It is a no-op where the platform has no such hint.
func (r *Region) AdviseHugePages(off, n int) error {
	sub, err := r.sub(off, n)
	if err != nil || n == 0 {
		return err
	}
	return sysHugePages(sub)
}

// Release returns the whole range to the OS. Calling Release twice is a no-op.
func (r *Region) Release() error {
	if r.data == nil {
		return nil
	}
	data := r.data
	r.data = nil
	committedBytes.Add(-int64(r.committed))
	reservedBytes.Add(-int64(len(data)))
	r.committed = 0
	r.pages = nil
	if err := sysRelease(data); err != nil {
		return fmt.Errorf("vmem: release: %w", err)
	}
	return nil
}

func (r *Region) sub(off, n int) ([]byte, error) {
	if r.data == nil {
		return nil, ErrReleased
	}
	if off < 0 || n < 0 {
		return nil, ErrOutOfRange
	}
	if off%pageSize != 0 || n%pageSize != 0 {
		return nil, ErrUnaligned
	}
	end, ok := align.AddOverflowSafe(off, n)
	if !ok || end > len(r.data) {
		return nil, ErrOutOfRange
	}
	return r.data[off:end:end], nil
}

func (r *Region) isCommitted(page int) bool {
	return r.pages[page/64]&(1<<(page%64)) != 0
}

// transition moves every page of [off, off+n) not already in the wanted state
// into it, one contiguous run at a time, and returns the bytes that changed.
func (r *Region) transition(off, n int, commit bool) (int, error) {
	sys := sysDecommit
	if commit {
		sys = sysCommit
	}
	changed := 0
	first, end := off/pageSize, (off+n)/pageSize
	for p := first; p < end; {
		if r.isCommitted(p) == commit {
			p++
			continue
		}
		run := p
		for run < end && r.isCommitted(run) != commit {
			run++
		}
		if err := sys(r.data[p*pageSize : run*pageSize : run*pageSize]); err != nil {
			return changed, err
		}
		for q := p; q < run; q++ {
			r.pages[q/64] ^= 1 << (q % 64)
		}
		changed += (run - p) * pageSize
		p = run
	}
	return changed, nil
}
