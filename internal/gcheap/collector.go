package gcheap

// Phase is the collector's current incremental phase, mirroring gc_phase in
// original_source/src/gc/gc_state.hpp.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseMarking
	PhaseSweeping
)

// RootFunc is supplied by the owning State; it is called at the start of
// every mark phase to seed the gray worklist with everything directly
// reachable from the stack, globals table, upvalue store, pinned-values
// vector, and the per-type metatable registry (spec.md §4.1/§4.5).
type RootFunc func(mark func(Object))

// Collector implements the tri-color incremental mark-and-sweep cycle
// described in gc_state.hpp: a signed debt counter paces how much marking
// and sweeping work Step performs relative to how many bytes the host has
// allocated since the last call, a gray worklist replaces the original's
// gc_gray_list, and the intrusive all-objects list (Header.Prev/Next) is
// walked during sweep exactly as GCList::validate walks it in
// gc_list.hpp.
type Collector struct {
	alloc *Allocator
	roots RootFunc

	head, tail Object // intrusive all-objects list, oldest-first
	cursor     Object // sweep cursor into the all-objects list

	gray []Object

	phase   Phase
	debt    int64 // positive: owed work; grows with allocation, shrinks with Step
	running bool  // reentrancy guard — a Step called while another Step runs returns 0 without doing work

	pools map[Kind]*Pool

	finalizeQueue []Finalizable

	// StepMultiplier bytes of work performed in Step per debt unit;
	// matches the original's "work proportional to allocation" pacing.
	StepMultiplier int64

	cycles int64
}

// NewCollector builds a collector over alloc, calling roots at the start of
// every mark phase.
func NewCollector(alloc *Allocator, roots RootFunc) *Collector {
	return &Collector{
		alloc:          alloc,
		roots:          roots,
		pools:          make(map[Kind]*Pool),
		StepMultiplier: 2,
	}
}

// Pool returns (creating if necessary) the reuse pool for kind.
func (c *Collector) Pool(kind Kind) *Pool {
	p, ok := c.pools[kind]
	if !ok {
		p = NewPool(kind, 256)
		c.pools[kind] = p
	}
	return p
}

// Register links a newly allocated object into the all-objects list and
// accounts for its size against the allocator. Objects created while a
// cycle is actively marking are allocated black (matching Lua's "allocate
// black during collection" rule) so the same cycle's sweep can never
// reclaim them before they have had a chance to be reached.
func (c *Collector) Register(o Object, size uint64) error {
	if err := c.alloc.Reserve(size); err != nil {
		return err
	}
	h := o.Hdr()
	h.Prev = c.tail
	h.Next = nil
	if c.tail != nil {
		c.tail.Hdr().Next = o
	} else {
		c.head = o
	}
	c.tail = o

	if c.phase == PhaseMarking {
		h.Color = Black
	} else {
		h.Color = White
	}

	c.debt += int64(size)
	return nil
}

// unlink removes o from the all-objects list. Used by sweep, and directly
// mirrors GCList::remove in gc_list.hpp.
func (c *Collector) unlink(o Object) {
	h := o.Hdr()
	if h.Prev != nil {
		h.Prev.Hdr().Next = h.Next
	} else {
		c.head = h.Next
	}
	if h.Next != nil {
		h.Next.Hdr().Prev = h.Prev
	} else {
		c.tail = h.Prev
	}
	h.Prev, h.Next = nil, nil
}

// Barrier is the forward write barrier: call it whenever a reference from
// parent to child is installed (table set, upvalue close, closure capture,
// userdata field write). If the collector is mid-mark and parent is already
// black while child is still white, child is grayed immediately so the
// invariant "no black object points at a white one" holds throughout
// marking.
func (c *Collector) Barrier(parent, child Object) {
	if c.phase != PhaseMarking || child == nil {
		return
	}
	ph := parent.Hdr()
	ch := child.Hdr()
	if ph.Color == Black && ch.Color == White {
		ch.Color = Gray
		c.gray = append(c.gray, child)
	}
}

// Debt reports the outstanding work debt.
func (c *Collector) Debt() int64 { return c.debt }

// CurrentPhase reports the current incremental phase.
func (c *Collector) CurrentPhase() Phase { return c.phase }

// Step performs up to StepMultiplier*allocated bytes worth of incremental
// work and returns the number of "work units" performed. Call it after
// every allocation-bearing opcode (the VM calls it from the dispatch loop,
// not from a background goroutine — behl has no concurrent execution,
// matching spec.md's Non-goals).
func (c *Collector) Step(allocatedSinceLast uint64) int {
	if c.running {
		return 0
	}
	c.running = true
	defer func() { c.running = false }()

	c.debt += int64(allocatedSinceLast) * c.StepMultiplier
	if c.debt <= 0 && c.phase == PhaseIdle {
		return 0
	}

	budget := c.debt
	if budget <= 0 {
		budget = 64
	}
	work := 0
	for budget > 0 {
		switch c.phase {
		case PhaseIdle:
			c.startCycle()
		case PhaseMarking:
			if !c.markStep() {
				c.phase = PhaseSweeping
				c.cursor = c.head
			}
		case PhaseSweeping:
			if !c.sweepStep() {
				c.phase = PhaseIdle
				c.debt = 0
				c.cycles++
				return work
			}
		}
		budget--
		work++
	}
	return work
}

// Collect runs a full stop-the-world cycle to completion; used by tests and
// by the Stack API's explicit GC-collect call.
func (c *Collector) Collect() {
	if c.phase == PhaseIdle {
		c.startCycle()
	}
	for c.markStep() {
	}
	c.phase = PhaseSweeping
	c.cursor = c.head
	for c.phase == PhaseSweeping {
		if !c.sweepStep() {
			c.phase = PhaseIdle
		}
	}
	c.debt = 0
	c.cycles++
}

func (c *Collector) startCycle() {
	c.gray = c.gray[:0]
	c.roots(func(o Object) {
		if o == nil {
			return
		}
		h := o.Hdr()
		if h.Color == White {
			h.Color = Gray
			c.gray = append(c.gray, o)
		}
	})
	c.phase = PhaseMarking
}

// markStep scans one gray object, graying its white children. Returns
// false once the gray worklist is empty (marking complete).
func (c *Collector) markStep() bool {
	if len(c.gray) == 0 {
		return false
	}
	n := len(c.gray) - 1
	o := c.gray[n]
	c.gray = c.gray[:n]

	h := o.Hdr()
	if h.Color != Gray {
		return true
	}
	if t, ok := o.(Tracer); ok {
		t.TraceChildren(func(child Object) {
			if child == nil {
				return
			}
			ch := child.Hdr()
			if ch.Color == White {
				ch.Color = Gray
				c.gray = append(c.gray, child)
			}
		})
	}
	h.Color = Black
	return true
}

// sweepStep advances the sweep cursor by one object, reclaiming white
// objects (pooling them by Kind, or queuing them for finalization) and
// resetting survivors to White for the next cycle. Returns false once the
// cursor has passed the end of the all-objects list.
func (c *Collector) sweepStep() bool {
	if c.cursor == nil {
		return false
	}
	o := c.cursor
	h := o.Hdr()
	c.cursor = h.Next

	if h.Color == White {
		if f, ok := o.(Finalizable); ok && f.HasFinalizer() {
			c.finalizeQueue = append(c.finalizeQueue, f)
			h.Color = Black // keep alive through finalization, swept next cycle
			return true
		}
		c.unlink(o)
		c.Pool(h.Kind).Put(o)
		return true
	}

	h.Color = White
	return true
}

// DrainFinalizers pops and returns all objects queued for finalization
// since the last drain. The VM calls __gc metamethods on the returned
// objects outside of the collector's own call stack.
func (c *Collector) DrainFinalizers() []Finalizable {
	if len(c.finalizeQueue) == 0 {
		return nil
	}
	out := c.finalizeQueue
	c.finalizeQueue = nil
	return out
}

// Cycles reports how many full mark/sweep cycles have completed.
func (c *Collector) Cycles() int64 { return c.cycles }
