// Package pool provides a concurrent, growable object pool addressed by
// generation-checked handles.
//
// # Overview
//
// A Pool stores one hot payload (touched every frame) and optionally one cold
// payload (touched rarely) per slot, in parallel arrays. Callers keep a
// handle.Handle instead of a pointer:
//
//	views := pool.New[ViewHot, ViewCold](64, pool.Options{
//	    Category: catViews,
//	    Kind:     kindView,
//	    Cold:     true,
//	})
//	h := views.Store(ViewHot{Width: 1920}, ViewCold{Name: "main"})
//	if v := views.GetHot(h); v != nil {
//	    // ...
//	}
//	views.Remove(h)
//
// # Generations
//
// Every slot has an 8-bit generation. Remove bumps it, so every outstanding
// copy of the removed handle stops resolving. After exactly 256 reuses of one
// slot a stale handle would match again; that bound is accepted.
//
// # Locking
//
// Readers (GetHot, GetCold, LoadHot, LoadCold, Valid, Each) share a read lock.
// Store and Remove take the write lock only for index bookkeeping. Store
// writes the payload after dropping the write lock, holding the read lock, so
// construction never blocks readers while growth cannot move storage under it.
// The handle is returned only after the payload is written.
//
// Pointers returned by GetHot and GetCold point into the current storage. A
// later Store that grows the pool migrates storage and leaves such pointers
// looking at the old copy. Resolve the handle again rather than caching them.
//
// # Growth
//
// When no slot is free, Store doubles the capacity. Existing payloads move to
// the new arrays with their indices and generations unchanged.
package pool
