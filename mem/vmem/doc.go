// Package vmem is a thin wrapper over the operating system's paging primitives.
//
// # Overview
//
// A Region is a reserved range of address space. Reserving costs no physical
// memory; pages become usable only after Commit, and can be handed back with
// Decommit while the addresses stay reserved. Release returns the whole range.
//
//	r, err := vmem.Reserve(64 << 20)
//	if err != nil {
//	    return err
//	}
//	defer r.Release()
//
//	if err := r.Commit(0, vmem.PageSize()); err != nil {
//	    return err
//	}
//	page := r.Bytes()[:vmem.PageSize()] // zero-filled, read/write
//
// # Granularity
//
// Offsets and lengths passed to Commit and Decommit must be multiples of
// PageSize. Reserve rounds its size up. Callers round their own requests.
//
// # Backends
//
//   - unix: mmap(PROT_NONE) to reserve, mprotect to commit,
//     madvise(MADV_DONTNEED) + mprotect(PROT_NONE) to decommit, munmap to release
//   - windows: VirtualAlloc(MEM_RESERVE / MEM_COMMIT) and
//     VirtualFree(MEM_DECOMMIT / MEM_RELEASE)
//   - everything else: a heap-backed slice; commit and decommit only zero memory
//
// # Go pointers
//
// Region memory is invisible to the garbage collector. Never store Go pointers
// (slices, strings, maps, interfaces, *T) in it.
//
// # Thread Safety
//
// Region methods are not synchronised. The owner of a Region serialises access.
package vmem
