package category

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AllocateAssignsSequentialIDs(t *testing.T) {
	r := NewRegistry()

	a := r.Allocate("meshes")
	b := r.Allocate("textures")
	assert.Equal(t, ID(0), a)
	assert.Equal(t, ID(1), b)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, "meshes", r.Name(a))
	assert.Equal(t, "textures", r.Name(b))
}

func TestRegistry_AllocateIsIdempotentPerName(t *testing.T) {
	r := NewRegistry()

	a := r.Allocate("Render Views")
	b := r.Allocate("render views")
	assert.Equal(t, a, b, "case-folded names share an ID")
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, "Render Views", r.Name(a), "first registration keeps its display name")

	id, ok := r.Lookup("RENDER VIEWS")
	require.True(t, ok)
	assert.Equal(t, a, id)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistry_NamesAreNFCNormalised(t *testing.T) {
	r := NewRegistry()

	decomposed := r.Allocate("cafe\u0301")
	composed := r.Allocate("caf\u00e9")
	assert.Equal(t, composed, decomposed)
	assert.Equal(t, "caf\u00e9", r.Name(decomposed), "stored name is the composed form")
}

func TestRegistry_ZeroValueUsable(t *testing.T) {
	var r Registry
	id := r.Allocate("zero")
	assert.Equal(t, ID(0), id)
	assert.Equal(t, "zero", r.Name(id))
}

func TestRegistry_CeilingPanics(t *testing.T) {
	r := NewRegistry()
	for i := range MaxCategories {
		r.Allocate(fmt.Sprintf("cat-%d", i))
	}
	assert.Equal(t, MaxCategories, r.Len())

	// Re-registering an existing name still works at the ceiling.
	assert.NotPanics(t, func() { r.Allocate("cat-7") })
	assert.Panics(t, func() { r.Allocate("one-too-many") })
}

func TestRegistry_AllocFreeSymmetry(t *testing.T) {
	r := NewRegistry()
	id := r.Allocate("geometry")

	before := r.Stats(id)
	r.RecordAlloc(id, 128)
	mid := r.Stats(id)
	assert.Equal(t, before.Allocations+1, mid.Allocations)
	assert.Equal(t, before.Bytes+128, mid.Bytes)

	r.RecordFree(id, 128)
	after := r.Stats(id)
	assert.Equal(t, before.Allocations, after.Allocations)
	assert.Equal(t, before.Bytes, after.Bytes)
	assert.Equal(t, before.TotalAllocs+1, after.TotalAllocs)
	assert.Equal(t, before.TotalFrees+1, after.TotalFrees)
}

func TestRegistry_CategoryIsolation(t *testing.T) {
	r := NewRegistry()
	a := r.Allocate("a")
	b := r.Allocate("b")

	r.RecordAlloc(a, 64)
	r.RecordAlloc(a, 32)
	r.RecordFree(a, 64)

	assert.Equal(t, Stats{Name: "b"}, r.Stats(b))
	assert.Equal(t, int64(1), r.Stats(a).Allocations)
	assert.Equal(t, int64(32), r.Stats(a).Bytes)
}

func TestRegistry_UnknownIDs(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Valid(Invalid))
	assert.Equal(t, Stats{}, r.Stats(3))
	assert.Equal(t, "", r.Name(3))
	assert.Panics(t, func() { r.RecordAlloc(3, 1) })
}

func TestRegistry_ConcurrentCounters(t *testing.T) {
	r := NewRegistry()
	id := r.Allocate("concurrent")

	const workers, iterations = 8, 1000
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range iterations {
				r.RecordAlloc(id, 16)
				r.RecordFree(id, 16)
			}
		}()
	}
	wg.Wait()

	s := r.Stats(id)
	assert.Zero(t, s.Allocations)
	assert.Zero(t, s.Bytes)
	assert.Equal(t, uint64(workers*iterations), s.TotalAllocs)
	assert.Equal(t, uint64(workers*iterations), s.TotalFrees)
}

func TestRegistry_Each(t *testing.T) {
	r := NewRegistry()
	r.Allocate("one")
	r.Allocate("two")
	r.Allocate("three")

	var names []string
	r.Each(func(_ ID, s Stats) bool {
		names = append(names, s.Name)
		return len(names) < 2
	})
	assert.Equal(t, []string{"one", "two"}, names)
}

func TestRegistry_AddBytesLeavesCountsAlone(t *testing.T) {
	r := NewRegistry()
	id := r.Allocate("arena")

	r.AddBytes(id, 8192)
	r.AddBytes(id, -4096)
	s := r.Stats(id)
	assert.Equal(t, int64(4096), s.Bytes)
	assert.Zero(t, s.Allocations)
	assert.Zero(t, s.TotalAllocs)
}
