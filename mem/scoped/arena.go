package scoped

import (
	"context"
	"fmt"

	"github.com/joshuapare/memkit/internal/align"
	"github.com/joshuapare/memkit/mem/bump"
	"github.com/joshuapare/memkit/mem/category"
)

// Options configures an Arena.
type Options struct {
	// Registry receives the arena's committed bytes.
	// Default: category.Default
	Registry *category.Registry

	// Category the backing buffer is charged to. Unregistered IDs
	// (including category.Invalid) disable accounting.
	// Default: category.Invalid
	Category category.ID

	// HugePages asks the kernel to back the buffer with huge pages.
	// Default: false
	HugePages bool
}

// DefaultOptions returns options with accounting disabled.
func DefaultOptions() Options {
	return Options{
		Registry: category.Default,
		Category: category.Invalid,
	}
}

// Arena is the per-goroutine backing buffer for scoped allocation.
// A nil *Arena is valid and fails every allocation with ErrNoArena.
type Arena struct {
	buf *bump.Allocator
	top *Scope // innermost open scope
}

// NewArena reserves and fully commits size bytes (rounded up to whole pages).
func NewArena(size int, opts Options) (*Arena, error) {
	buf, err := bump.New(size, bump.Options{
		Registry:  opts.Registry,
		Category:  opts.Category,
		HugePages: opts.HugePages,
		Precommit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("scoped: %w", err)
	}
	return &Arena{buf: buf}, nil
}

// Close releases the backing buffer. It fails with ErrScopesOpen while any
// scope is still open.
func (a *Arena) Close() error {
	if a == nil || a.buf == nil {
		return nil
	}
	if a.top != nil {
		return ErrScopesOpen
	}
	err := a.buf.Release()
	a.buf = nil
	return err
}

// Offset returns the current allocation offset.
func (a *Arena) Offset() int {
	if a == nil || a.buf == nil {
		return 0
	}
	return a.buf.Used()
}

// Capacity returns the size of the backing buffer.
func (a *Arena) Capacity() int {
	if a == nil || a.buf == nil {
		return 0
	}
	return a.buf.Capacity()
}

// Scope opens a new innermost scope capturing the current offset. On a nil or
// closed arena the scope is detached: Alloc fails with ErrNoArena and Close
// only runs the deleters.
func (a *Arena) Scope() *Scope {
	if a == nil || a.buf == nil {
		return &Scope{}
	}
	s := &Scope{arena: a}
	s.start = a.buf.Used()
	s.parent = a.top
	a.top = s
	return s
}

// Alloc allocates from the arena's current offset. The memory belongs to the
// innermost open scope and is reclaimed when that scope closes; with no scope
// open it lives until the arena is closed.
func (a *Arena) Alloc(size, alignment int) ([]byte, error) {
	if a == nil || a.buf == nil {
		return nil, ErrNoArena
	}
	if !align.IsPow2(alignment) {
		return nil, ErrBadAlignment
	}
	if size == 0 {
		return nil, nil
	}
	if size < 0 {
		return nil, ErrExhausted
	}
	b := a.buf.TryAllocate(size, alignment)
	if b == nil {
		return nil, ErrExhausted
	}
	// Bytes may be left over from a closed scope.
	clear(b)
	return b, nil
}

type arenaKey struct{}

// WithArena returns a context carrying a.
func WithArena(ctx context.Context, a *Arena) context.Context {
	return context.WithValue(ctx, arenaKey{}, a)
}

// FromContext returns the arena carried by ctx, or nil.
func FromContext(ctx context.Context) *Arena {
	a, _ := ctx.Value(arenaKey{}).(*Arena)
	return a
}
