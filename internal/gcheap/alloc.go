package gcheap

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

// DefaultMemoryCeiling matches the original's documented default of 2 GiB
// (original_source/src/platform.hpp), exposed as a constructor parameter
// rather than a hardcoded constant (SPEC_FULL.md §3).
const DefaultMemoryCeiling uint64 = 2 << 30

// ErrMemoryCeiling is returned (wrapped) when an allocation would push the
// tracked byte count past the configured ceiling.
var ErrMemoryCeiling = errors.New("behl: memory ceiling exceeded")

// Allocator is a byte-counting wrapper around Go's own allocator. behl
// layers its own GC bookkeeping (color, debt, pacing) atop Go's memory
// management rather than replacing it; Allocator exists purely so the VM
// can enforce §4.5's memory ceiling and feed the collector's debt counter,
// matching original_source/src/memory.hpp's tracked malloc/realloc/free.
type Allocator struct {
	ceiling uint64
	live    atomic.Uint64 // bytes currently attributed to live objects
	total   atomic.Uint64 // lifetime bytes allocated, monotonic
}

// NewAllocator constructs a tracked allocator with the given ceiling. A
// ceiling of 0 means DefaultMemoryCeiling.
func NewAllocator(ceiling uint64) *Allocator {
	if ceiling == 0 {
		ceiling = DefaultMemoryCeiling
	}
	return &Allocator{ceiling: ceiling}
}

// Reserve accounts for n additional bytes, failing if that would exceed the
// ceiling. Callers reserve before constructing the object so the collector
// can run a cycle first if the debt pushed it over.
func (a *Allocator) Reserve(n uint64) error {
	for {
		cur := a.live.Load()
		next := cur + n
		if next > a.ceiling {
			return errors.Wrapf(ErrMemoryCeiling, "requested %d bytes, live %d, ceiling %d", n, cur, a.ceiling)
		}
		if a.live.CompareAndSwap(cur, next) {
			a.total.Add(n)
			return nil
		}
	}
}

// Release accounts for n bytes being freed, typically during sweep.
func (a *Allocator) Release(n uint64) {
	for {
		cur := a.live.Load()
		next := cur
		if n > cur {
			next = 0
		} else {
			next = cur - n
		}
		if a.live.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Live returns the number of bytes currently attributed to live objects.
func (a *Allocator) Live() uint64 { return a.live.Load() }

// Total returns the lifetime number of bytes ever reserved.
func (a *Allocator) Total() uint64 { return a.total.Load() }

// Ceiling returns the configured memory ceiling.
func (a *Allocator) Ceiling() uint64 { return a.ceiling }

// SetCeiling adjusts the ceiling at runtime (host embedding knob).
func (a *Allocator) SetCeiling(n uint64) { a.ceiling = n }
