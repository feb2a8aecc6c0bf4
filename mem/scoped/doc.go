// Package scoped provides per-goroutine arena memory reclaimed in LIFO scopes,
// with deferred cleanup callbacks.
//
// # Overview
//
// An Arena is a fully committed, fixed-size buffer owned by one goroutine
// (the role a thread-local buffer plays elsewhere). A Scope captures the
// arena offset when it opens; closing it runs every registered deleter in
// reverse order and rewinds the offset, reclaiming everything allocated since:
//
//	arena, err := scoped.NewArena(1<<20, scoped.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer arena.Close()
//
// and then, in any function running on that goroutine:
//
//	s := arena.Scope()
//	defer s.Close()
//
//	tmp, err := s.Alloc(4096, 16)
//	if err != nil {
//	    return err
//	}
//	// tmp is valid until s.Close.
//
// Scopes nest. Only the innermost open scope may allocate or close; violating
// that order is a programmer error and panics.
//
// # Escapes
//
// Memory from a scope must not be retained after the scope closes. Nothing
// detects such a retention; the next scope will hand the same bytes out again.
//
// # Go pointers
//
// Arena memory is outside the Go heap and is not scanned by the garbage
// collector. New and AllocSlice refuse types that contain pointers.
//
// # Thread Safety
//
// An Arena and its scopes belong to a single goroutine. Pass the arena
// explicitly or through a context.Context (WithArena / FromContext); never
// share it between goroutines.
package scoped
