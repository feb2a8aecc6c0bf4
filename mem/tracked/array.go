package tracked

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/memkit/internal/align"
	"github.com/joshuapare/memkit/mem/category"
)

// Array is typed, category-accounted backing storage. Unlike Block it lives on
// the Go heap unconditionally, so T may contain pointers.
type Array[T any] struct {
	a     *Allocator
	cat   category.ID
	items []T
	bytes int
}

// NewArray allocates n zero-valued elements of T and charges them to cat.
// Panics if n is negative or n*sizeof(T) overflows.
func NewArray[T any](a *Allocator, cat category.ID, n int) *Array[T] {
	var zero T
	bytes, ok := align.MulOverflowSafe(n, int(unsafe.Sizeof(zero)))
	if !ok {
		panic(fmt.Sprintf("tracked: array of %d elements overflows", n))
	}
	if !a.reg.Valid(cat) {
		panic(fmt.Sprintf("tracked: allocation against unregistered category %d", cat))
	}
	a.reg.RecordAlloc(cat, bytes)
	return &Array[T]{
		a:     a,
		cat:   cat,
		items: make([]T, n),
		bytes: bytes,
	}
}

// Items returns the element storage.
func (arr *Array[T]) Items() []T { return arr.items }

// Len returns the number of elements.
func (arr *Array[T]) Len() int { return len(arr.items) }

// Bytes returns the accounted size in bytes.
func (arr *Array[T]) Bytes() int { return arr.bytes }

// Free drops the storage and reverses its accounting. Freeing nil is a no-op;
// freeing twice panics.
func (arr *Array[T]) Free() {
	if arr == nil {
		return
	}
	if arr.items == nil {
		panic(fmt.Sprintf("tracked: double free of %d-byte array in category %d", arr.bytes, arr.cat))
	}
	arr.a.reg.RecordFree(arr.cat, arr.bytes)
	arr.items = nil
}
