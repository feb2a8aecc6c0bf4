// Package category assigns small integer IDs to named allocation categories and
// keeps live per-category memory statistics.
//
// # Overview
//
// Every subsystem that allocates through memkit registers a category once at
// startup:
//
//	var catMeshes = category.Default.Allocate("meshes")
//
// Allocators then report each allocation and free against that ID. The
// counters are plain atomics, so unrelated allocations never contend on a lock.
//
// # Limits
//
// A Registry holds at most MaxCategories (255) categories. Registering one more
// is a programmer error and panics. IDs are never recycled.
//
// # Names
//
// Display names are NFC-normalised. Lookup is case-insensitive (Unicode case
// folding), so registering "Textures" after "textures" returns the existing ID.
package category

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/joshuapare/memkit/internal/logger"
)

// ID is an opaque small integer naming an allocation category.
type ID uint8

const (
	// MaxCategories is the number of categories a Registry can hold.
	MaxCategories = 255

	// Invalid is never handed out by Allocate.
	Invalid ID = MaxCategories
)

var logAlloc = logger.AllocLogging()

// Stats is a point-in-time view of one category's counters. Fields are read
// individually, so a snapshot taken during concurrent traffic may mix values
// from slightly different instants.
type Stats struct {
	Name        string `json:"name"`
	Allocations int64  `json:"allocations"`
	Bytes       int64  `json:"bytes"`
	TotalAllocs uint64 `json:"total_allocs"`
	TotalFrees  uint64 `json:"total_frees"`
}

// counters are kept on separate cache lines so hot categories don't false-share.
type counters struct {
	allocations atomic.Int64
	bytes       atomic.Int64
	totalAllocs atomic.Uint64
	totalFrees  atomic.Uint64
	_           [32]byte
}

// Registry is a process-wide table of categories. The zero value is ready to use.
type Registry struct {
	mu    sync.Mutex // serialises registration only
	n     atomic.Uint32
	names [MaxCategories]string
	keys  map[string]ID
	fold  *cases.Caser // stateful, guarded by mu
	stats [MaxCategories]counters
}

// Default is the registry used by package-level helpers in memkit.
var Default = NewRegistry()

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{keys: make(map[string]ID)}
}

// normalize must be called with r.mu held.
func (r *Registry) normalize(name string) (display, key string) {
	if r.fold == nil {
		c := cases.Fold()
		r.fold = &c
	}
	display = norm.NFC.String(name)
	key = r.fold.String(display)
	return display, key
}

// Allocate returns the ID for name, registering it if it is new.
// Panics once MaxCategories distinct names have been registered.
func (r *Registry) Allocate(name string) ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	display, key := r.normalize(name)
	if r.keys == nil {
		r.keys = make(map[string]ID)
	}
	if id, ok := r.keys[key]; ok {
		return id
	}

	n := r.n.Load()
	if n >= MaxCategories {
		panic(fmt.Sprintf("category: cannot register %q, all %d categories in use", display, MaxCategories))
	}
	id := ID(n)
	r.names[id] = display
	r.keys[key] = id
	// Publish after the name is written so readers that observe id < n see it.
	r.n.Store(n + 1)

	if logAlloc {
		logger.Debug("category registered", "id", id, "name", display)
	}
	return id
}

// Lookup returns the ID registered for name, if any.
func (r *Registry) Lookup(name string) (ID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, key := r.normalize(name)
	id, ok := r.keys[key]
	return id, ok
}

// Len returns the number of registered categories.
func (r *Registry) Len() int {
	return int(r.n.Load())
}

// Valid reports whether id has been handed out by this registry.
func (r *Registry) Valid(id ID) bool {
	return uint32(id) < r.n.Load()
}

// Name returns the display name of id, or "" if id is not registered.
func (r *Registry) Name(id ID) string {
	if !r.Valid(id) {
		return ""
	}
	return r.names[id]
}

// RecordAlloc accounts one allocation of size bytes against id.
func (r *Registry) RecordAlloc(id ID, size int) {
	c := r.counters(id)
	c.allocations.Add(1)
	c.bytes.Add(int64(size))
	c.totalAllocs.Add(1)
}

// RecordFree reverses a RecordAlloc of the same size.
func (r *Registry) RecordFree(id ID, size int) {
	c := r.counters(id)
	c.allocations.Add(-1)
	c.bytes.Add(-int64(size))
	c.totalFrees.Add(1)
}

// AddBytes adjusts only the byte counter of id. Allocators that grow and shrink
// a single long-lived block (committed arena pages) report through it.
func (r *Registry) AddBytes(id ID, delta int) {
	r.counters(id).bytes.Add(int64(delta))
}

// Stats returns a snapshot of id's counters. Unknown IDs yield a zero Stats.
func (r *Registry) Stats(id ID) Stats {
	if !r.Valid(id) {
		return Stats{}
	}
	c := &r.stats[id]
	return Stats{
		Name:        r.names[id],
		Allocations: c.allocations.Load(),
		Bytes:       c.bytes.Load(),
		TotalAllocs: c.totalAllocs.Load(),
		TotalFrees:  c.totalFrees.Load(),
	}
}

// Each calls fn for every registered category in ID order until fn returns false.
func (r *Registry) Each(fn func(ID, Stats) bool) {
	n := r.n.Load()
	for i := uint32(0); i < n; i++ {
		if !fn(ID(i), r.Stats(ID(i))) {
			return
		}
	}
}

func (r *Registry) counters(id ID) *counters {
	if !r.Valid(id) {
		panic(fmt.Sprintf("category: unregistered category %d", id))
	}
	return &r.stats[id]
}

// Allocate registers name in the Default registry.
func Allocate(name string) ID {
	return Default.Allocate(name)
}

// MemoryInfo returns the Default registry's snapshot for id.
func MemoryInfo(id ID) Stats {
	return Default.Stats(id)
}
