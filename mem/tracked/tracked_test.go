package tracked

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/mem/category"
	"github.com/joshuapare/memkit/mem/vmem"
)

func newTestAllocator(t testing.TB) (*Allocator, *category.Registry) {
	t.Helper()
	reg := category.NewRegistry()
	return New(Options{Registry: reg, LargeThreshold: DefaultLargeThreshold}), reg
}

// TestAllocator_AllocFreeSymmetry tests counters return to their pre-call values.
func TestAllocator_AllocFreeSymmetry(t *testing.T) {
	a, reg := newTestAllocator(t)
	cat := reg.Allocate("materials")

	cases := []struct {
		size, alignment int
	}{
		{1, 1}, {7, 8}, {64, 16}, {1000, 64}, {4096, 4096}, {0, 8},
	}
	for _, c := range cases {
		before := a.MemoryInfo(cat)

		b, err := a.Alloc(cat, c.size, c.alignment)
		require.NoError(t, err)
		require.Len(t, b.Bytes(), c.size)

		mid := a.MemoryInfo(cat)
		assert.Equal(t, before.Allocations+1, mid.Allocations)
		assert.Equal(t, before.Bytes+int64(c.size), mid.Bytes)

		a.Free(b)

		after := a.MemoryInfo(cat)
		assert.Equal(t, before.Allocations, after.Allocations, "size=%d", c.size)
		assert.Equal(t, before.Bytes, after.Bytes, "size=%d", c.size)
		assert.Equal(t, before.TotalAllocs+1, after.TotalAllocs)
		assert.Equal(t, before.TotalFrees+1, after.TotalFrees)
	}
}

// TestAllocator_Alignment tests returned memory honours the alignment.
func TestAllocator_Alignment(t *testing.T) {
	a, reg := newTestAllocator(t)
	cat := reg.Allocate("aligned")

	for _, al := range []int{1, 2, 8, 32, 128, 1024} {
		b, err := a.Alloc(cat, 24, al)
		require.NoError(t, err)
		assert.Zero(t, uintptr(b.Pointer())%uintptr(al), "alignment %d", al)
		assert.Less(t, b.Padding(), al)
		assert.Equal(t, cat, b.Category())
		assert.Equal(t, 24, b.Len())
		a.Free(b)
	}
}

// TestAllocator_BadAlignment tests non-power-of-two alignments fail without accounting.
func TestAllocator_BadAlignment(t *testing.T) {
	a, reg := newTestAllocator(t)
	cat := reg.Allocate("bad")

	for _, al := range []int{0, 3, 12, -8} {
		b, err := a.Alloc(cat, 16, al)
		assert.Nil(t, b)
		assert.ErrorIs(t, err, ErrBadAlignment)
	}
	assert.Zero(t, a.MemoryInfo(cat).TotalAllocs)

	_, err := a.Alloc(cat, -1, 8)
	assert.ErrorIs(t, err, ErrBadSize)
}

// TestAllocator_CategoryIsolation tests allocations under A never touch B.
func TestAllocator_CategoryIsolation(t *testing.T) {
	a, reg := newTestAllocator(t)
	catA := reg.Allocate("A")
	catB := reg.Allocate("B")

	bBefore := a.MemoryInfo(catB)
	var blocks []*Block
	for i := range 10 {
		b, err := a.Alloc(catA, 16*(i+1), 8)
		require.NoError(t, err)
		blocks = append(blocks, b)
	}
	assert.Equal(t, bBefore, a.MemoryInfo(catB))
	for _, b := range blocks {
		a.Free(b)
	}
	assert.Equal(t, bBefore, a.MemoryInfo(catB))
}

// TestAllocator_FreeNilIsNoop tests freeing nil.
func TestAllocator_FreeNilIsNoop(t *testing.T) {
	a, _ := newTestAllocator(t)
	assert.NotPanics(t, func() { a.Free(nil) })
}

// TestAllocator_DoubleFreePanics tests the double-free contract check.
func TestAllocator_DoubleFreePanics(t *testing.T) {
	a, reg := newTestAllocator(t)
	cat := reg.Allocate("twice")

	b, err := a.Alloc(cat, 32, 8)
	require.NoError(t, err)
	a.Free(b)
	assert.Panics(t, func() { a.Free(b) })
	assert.Equal(t, uint64(1), a.MemoryInfo(cat).TotalFrees)
}

// TestAllocator_UnregisteredCategoryPanics tests allocation against an unknown ID.
func TestAllocator_UnregisteredCategoryPanics(t *testing.T) {
	a, _ := newTestAllocator(t)
	assert.Panics(t, func() { _, _ = a.Alloc(7, 8, 8) })
}

// TestAllocator_LargeBlocksUseVmem tests the large path and its release.
func TestAllocator_LargeBlocksUseVmem(t *testing.T) {
	reg := category.NewRegistry()
	cat := reg.Allocate("large")
	ps := vmem.PageSize()
	a := New(Options{Registry: reg, LargeThreshold: 2 * ps})

	before := vmem.CurrentUsage()

	small, err := a.Alloc(cat, ps, 8)
	require.NoError(t, err)
	assert.False(t, small.Large())

	big, err := a.Alloc(cat, 3*ps+1, 16)
	require.NoError(t, err)
	require.True(t, big.Large())
	assert.Len(t, big.Bytes(), 3*ps+1)
	assert.Equal(t, before.Committed+int64(4*ps), vmem.CurrentUsage().Committed)

	buf := big.Bytes()
	buf[0], buf[len(buf)-1] = 1, 2
	assert.Equal(t, byte(2), buf[len(buf)-1])

	a.Free(big)
	a.Free(small)
	assert.Equal(t, before, vmem.CurrentUsage())
	assert.Zero(t, a.MemoryInfo(cat).Bytes)
}

// TestAllocator_LargeOverAlignment tests alignments above the page size.
func TestAllocator_LargeOverAlignment(t *testing.T) {
	reg := category.NewRegistry()
	cat := reg.Allocate("huge align")
	ps := vmem.PageSize()
	a := New(Options{Registry: reg, LargeThreshold: ps})

	b, err := a.Alloc(cat, ps, 4*ps)
	require.NoError(t, err)
	defer a.Free(b)
	assert.Zero(t, uintptr(b.Pointer())%uintptr(4*ps))
}

// TestAllocator_Concurrent tests atomic accounting from many goroutines.
func TestAllocator_Concurrent(t *testing.T) {
	a, reg := newTestAllocator(t)
	cat := reg.Allocate("concurrent")

	const workers, iterations = 8, 500
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range iterations {
				b, err := a.Alloc(cat, 8+(w+i)%64, 8)
				if err != nil {
					t.Error(err)
					return
				}
				b.Bytes()[0] = byte(i)
				a.Free(b)
			}
		}()
	}
	wg.Wait()

	s := a.MemoryInfo(cat)
	assert.Zero(t, s.Allocations)
	assert.Zero(t, s.Bytes)
	assert.Equal(t, uint64(workers*iterations), s.TotalAllocs)
	assert.Equal(t, s.TotalAllocs, s.TotalFrees)
}

// TestPackageDefaults tests the package-level helpers on the Default allocator.
func TestPackageDefaults(t *testing.T) {
	cat := category.Allocate("tracked package test")
	before := MemoryInfoForCategory(cat)

	b, err := Alloc(cat, 100, 16)
	require.NoError(t, err)
	assert.Equal(t, before.Bytes+100, MemoryInfoForCategory(cat).Bytes)
	Free(b)
	assert.Equal(t, before.Bytes, MemoryInfoForCategory(cat).Bytes)
}
