package gcheap

// Pool is a type-segregated freelist of swept objects awaiting reuse,
// mirroring gc_state.hpp's gc_table_pool/gc_string_pool/gc_closure_pool plus
// their hit/miss counters. The collector pushes freshly-swept objects of a
// given Kind here instead of discarding them; allocation sites pop from the
// matching pool before asking Go's runtime for a fresh object.
type Pool struct {
	kind    Kind
	limit   int
	free    []Object
	hits    uint64
	misses  uint64
	reclaim uint64
}

// NewPool builds a pool for the given Kind with a maximum number of
// retained free objects (0 means unbounded).
func NewPool(kind Kind, limit int) *Pool {
	return &Pool{kind: kind, limit: limit}
}

// Put returns a swept object to the pool for reuse. Callers must have
// already reset any fields that shouldn't leak across reuse.
func (p *Pool) Put(o Object) {
	if p.limit > 0 && len(p.free) >= p.limit {
		return
	}
	p.free = append(p.free, o)
	p.reclaim++
}

// Get pops a reusable object, or (nil, false) if the pool is empty.
func (p *Pool) Get() (Object, bool) {
	if len(p.free) == 0 {
		p.misses++
		return nil, false
	}
	n := len(p.free) - 1
	o := p.free[n]
	p.free[n] = nil
	p.free = p.free[:n]
	p.hits++
	return o, true
}

// Stats returns (hits, misses, reclaimed) for diagnostics/tests.
func (p *Pool) Stats() (hits, misses, reclaimed uint64) {
	return p.hits, p.misses, p.reclaim
}

// Len reports the number of objects currently held for reuse.
func (p *Pool) Len() int { return len(p.free) }
