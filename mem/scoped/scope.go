package scoped

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"
)

// deleter is one deferred cleanup.
type deleter struct {
	fn func(unsafe.Pointer)
	p  unsafe.Pointer
}

// Scope is a LIFO region of arena memory plus a stack of deferred deleters.
// Close it on every exit path, typically with defer.
type Scope struct {
	arena    *Arena
	parent   *Scope
	start    int
	deleters []deleter
	closed   bool
}

func (s *Scope) checkInnermost(op string) {
	if s.closed {
		panic(fmt.Sprintf("scoped: %s on closed scope", op))
	}
	if s.arena != nil && s.arena.top != s {
		panic(fmt.Sprintf("scoped: %s on scope that is not innermost", op))
	}
}

// Alloc returns size zeroed bytes aligned to alignment, valid until s closes.
// It fails with ErrNoArena when the goroutine has no arena, ErrExhausted when
// the request does not fit, and ErrBadAlignment for a non-power-of-two alignment.
func (s *Scope) Alloc(size, alignment int) ([]byte, error) {
	s.checkInnermost("alloc")
	return s.arena.Alloc(size, alignment)
}

// PushDeleter registers fn to be called with p when s closes. Deleters run in
// reverse registration order. Use it for objects built in scope memory that
// hold resources the arena cannot reclaim by rewinding.
func (s *Scope) PushDeleter(p unsafe.Pointer, fn func(unsafe.Pointer)) {
	if s.closed {
		panic("scoped: push deleter on closed scope")
	}
	s.deleters = append(s.deleters, deleter{fn: fn, p: p})
}

// Defer registers fn to run when s closes, ordered with the other deleters.
func (s *Scope) Defer(fn func()) {
	s.PushDeleter(nil, func(unsafe.Pointer) { fn() })
}

// Close runs every deleter in reverse order and rewinds the arena to the
// offset captured when s opened. Closing twice is a no-op; closing a scope
// while an inner scope is still open panics.
//
// A panicking deleter does not stop the others. Close drains the stack,
// rewinds, then re-panics with the first recovered value.
func (s *Scope) Close() {
	if s.closed {
		return
	}
	a := s.arena
	if a != nil && a.top != s {
		panic("scoped: close of scope that is not innermost")
	}
	s.closed = true

	var (
		panicked bool
		first    any
	)
	for len(s.deleters) > 0 {
		last := len(s.deleters) - 1
		d := s.deleters[last]
		s.deleters = s.deleters[:last]
		if r, ok := runDeleter(d); ok && !panicked {
			panicked, first = true, r
		}
	}

	if a != nil && a.buf != nil {
		a.buf.RewindTo(s.start)
		a.top = s.parent
	}
	if panicked {
		panic(first)
	}
}

// runDeleter calls d and reports whether it panicked, and with what.
func runDeleter(d deleter) (recovered any, ok bool) {
	done := false
	defer func() {
		if !done {
			recovered, ok = recover(), true
		}
	}()
	d.fn(d.p)
	done = true
	return nil, false
}

// Pending returns the number of deleters not yet run.
func (s *Scope) Pending() int {
	return len(s.deleters)
}

// New allocates a zero T in s. T must not contain Go pointers.
// Returns nil if the scope cannot satisfy the request.
func New[T any](s *Scope) *T {
	var zero T
	mustBePointerFree(reflect.TypeOf(&zero).Elem())
	b, err := s.Alloc(int(unsafe.Sizeof(zero)), int(unsafe.Alignof(zero)))
	if err != nil || b == nil {
		return nil
	}
	return (*T)(unsafe.Pointer(&b[0]))
}

// AllocSlice allocates n zero elements of T in s. T must not contain Go pointers.
// Returns nil if the scope cannot satisfy the request.
func AllocSlice[T any](s *Scope, n int) []T {
	var zero T
	mustBePointerFree(reflect.TypeOf(&zero).Elem())
	size := int(unsafe.Sizeof(zero))
	if n < 0 || (size != 0 && n > int(^uint(0)>>1)/size) {
		return nil
	}
	b, err := s.Alloc(n*size, int(unsafe.Alignof(zero)))
	if err != nil || b == nil {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), n)
}

var pointerFree sync.Map // reflect.Type -> bool

func mustBePointerFree(t reflect.Type) {
	if v, ok := pointerFree.Load(t); ok {
		if !v.(bool) {
			panic(fmt.Sprintf("scoped: %v contains Go pointers", t))
		}
		return
	}
	free := !hasPointers(t)
	pointerFree.Store(t, free)
	if !free {
		panic(fmt.Sprintf("scoped: %v contains Go pointers", t))
	}
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return true
	}
}
