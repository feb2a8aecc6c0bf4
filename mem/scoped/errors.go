package scoped

import "errors"

var (
	// ErrNoArena indicates allocation on a goroutine that has no arena.
	ErrNoArena = errors.New("scoped: no arena for this goroutine")

	// ErrExhausted indicates the request does not fit in the remaining arena.
	ErrExhausted = errors.New("scoped: arena exhausted")

	// ErrBadAlignment indicates an alignment that is not a power of two.
	ErrBadAlignment = errors.New("scoped: alignment must be a power of two")

	// ErrScopesOpen indicates Close on an arena that still has open scopes.
	ErrScopesOpen = errors.New("scoped: arena closed with open scopes")
)
