// Package handle defines the generation-checked reference used by object pools.
//
// A Handle packs three fields into one uint64:
//
//	bits  0..31  slot index + 1   (0 means "no handle")
//	bits 32..39  generation       (wraps at 256)
//	bits 40..47  kind             (routes a handle to the pool that owns it)
//
// The index is stored biased by one so the zero Handle never aliases slot 0.
// A handle is non-owning; it must be resolved through its pool, which compares
// the generation before every dereference.
package handle

import (
	"fmt"
	"math"
)

const (
	indexBits = 32
	genBits   = 8
	kindBits  = 8

	genShift  = indexBits
	kindShift = indexBits + genBits

	indexMask = 1<<indexBits - 1
	genMask   = 1<<genBits - 1
	kindMask  = 1<<kindBits - 1
)

// MaxIndex is the largest slot index a Handle can carry.
const MaxIndex = math.MaxUint32 - 1

// Kind discriminates handle types so callers can route them to the right pool.
type Kind uint8

// Handle references a pool slot by index and generation.
type Handle uint64

// Nil is the zero Handle. It never resolves.
const Nil Handle = 0

// New packs kind, index and generation into a Handle.
// Panics if index exceeds MaxIndex.
func New(kind Kind, index uint32, gen uint8) Handle {
	if index > MaxIndex {
		panic(fmt.Sprintf("handle: index %d exceeds %d", index, uint32(MaxIndex)))
	}
	return Handle(uint64(index)+1) |
		Handle(gen)<<genShift |
		Handle(kind)<<kindShift
}

// IsNil reports whether h is the zero Handle.
func (h Handle) IsNil() bool {
	return h&indexMask == 0
}

// Index returns the slot index. The Nil handle reports math.MaxUint32, which
// is out of range for every pool.
func (h Handle) Index() uint32 {
	return uint32(h&indexMask) - 1
}

// Generation returns the slot generation captured when the handle was issued.
func (h Handle) Generation() uint8 {
	return uint8(h >> genShift & genMask)
}

// Kind returns the handle's type discriminant.
func (h Handle) Kind() Kind {
	return Kind(h >> kindShift & kindMask)
}

// WithKind returns h re-tagged with kind.
func (h Handle) WithKind(kind Kind) Handle {
	return h&^(kindMask<<kindShift) | Handle(kind)<<kindShift
}

func (h Handle) String() string {
	if h.IsNil() {
		return "handle(nil)"
	}
	return fmt.Sprintf("handle(%d:%d@%d)", h.Kind(), h.Index(), h.Generation())
}
