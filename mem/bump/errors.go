package bump

import "errors"

// ErrBadCapacity indicates a non-positive arena capacity.
var ErrBadCapacity = errors.New("bump: capacity must be positive")

// ErrCapacity indicates a request that does not fit in the reservation.
var ErrCapacity = errors.New("bump: capacity exceeded")
