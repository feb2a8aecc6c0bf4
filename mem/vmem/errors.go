package vmem

import "errors"

var (
	// ErrUnaligned indicates an offset or length that is not a PageSize multiple.
	ErrUnaligned = errors.New("vmem: range not page aligned")

	// ErrOutOfRange indicates a subrange that does not lie inside the region.
	ErrOutOfRange = errors.New("vmem: range outside reservation")

	// ErrReleased indicates use of a region after Release.
	ErrReleased = errors.New("vmem: region released")

	// ErrBadSize indicates a non-positive or overflowing reservation size.
	ErrBadSize = errors.New("vmem: bad reservation size")
)
