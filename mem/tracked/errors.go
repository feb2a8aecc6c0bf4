package tracked

import "errors"

var (
	// ErrBadAlignment indicates an alignment that is not a power of two.
	ErrBadAlignment = errors.New("tracked: alignment must be a power of two")

	// ErrBadSize indicates a negative or overflowing size.
	ErrBadSize = errors.New("tracked: bad allocation size")

	// ErrOutOfMemory indicates the system refused to back a large block.
	ErrOutOfMemory = errors.New("tracked: out of memory")
)
