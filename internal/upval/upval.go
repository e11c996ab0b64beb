// Package upval implements open/closed upvalues and the sorted open-upvalue
// list, following original_source/src/vm/upvalue.hpp (the Upvalue struct)
// and vm/vm_upvalues.hpp (find_or_create_upvalue / close_upvalues).
package upval

import (
	"golang.org/x/exp/slices"

	"github.com/behl-lang/behl-sub001/internal/gcheap"
	"github.com/behl-lang/behl-sub001/internal/rvalue"
)

// Upvalue is either open (aliasing a live slot in the shared value stack)
// or closed (owning its own copy), matching upvalue.hpp exactly.
type Upvalue struct {
	gcheap.Header

	stack    *[]rvalue.Value
	stackIdx int
	closed   rvalue.Value
	open     bool
}

func newOpen(stack *[]rvalue.Value, idx int) *Upvalue {
	return &Upvalue{stack: stack, stackIdx: idx, open: true}
}

// Get returns the upvalue's current value.
func (u *Upvalue) Get() rvalue.Value {
	if u.open {
		return (*u.stack)[u.stackIdx]
	}
	return u.closed
}

// Set overwrites the upvalue's current value.
func (u *Upvalue) Set(v rvalue.Value) {
	if u.open {
		(*u.stack)[u.stackIdx] = v
		return
	}
	u.closed = v
}

// IsOpen reports whether this upvalue still aliases the stack.
func (u *Upvalue) IsOpen() bool { return u.open }

// StackIndex returns the aliased stack index; only meaningful while open.
func (u *Upvalue) StackIndex() int { return u.stackIdx }

// close copies the current stack value in and stops aliasing the stack.
func (u *Upvalue) close() {
	if !u.open {
		return
	}
	u.closed = (*u.stack)[u.stackIdx]
	u.open = false
	u.stack = nil
}

// TraceChildren grays the closed-over value once closed; while open the
// value is reachable through the stack root directly, so there is nothing
// extra to trace.
func (u *Upvalue) TraceChildren(mark func(gcheap.Object)) {
	if u.open {
		return
	}
	if r := u.closed.Ref(); r != nil {
		mark(r)
	}
}

// Store owns the single sorted list of currently-open upvalues for one
// State's value stack, exactly mirroring vm_upvalues.hpp's
// find_or_create_upvalue/close_upvalues pair: the list stays sorted by
// stack index so both operations are O(log n) via binary search
// (golang.org/x/exp/slices.BinarySearchFunc) instead of a linear scan.
type Store struct {
	stack   *[]rvalue.Value
	open    []*Upvalue // sorted ascending by stackIdx
	reg     func(gcheap.Object) error
	barrier func(parent gcheap.Object, v rvalue.Value)
}

// NewStore builds a store over the given shared stack slice pointer. reg is
// called to register each newly created Upvalue with the collector.
func NewStore(stack *[]rvalue.Value, reg func(gcheap.Object) error) *Store {
	return &Store{stack: stack, reg: reg}
}

// SetBarrier installs the collector's forward write barrier, invoked from
// CloseFrom whenever closing an upvalue exposes a new edge from an
// already-marked Upvalue to the value it just copied off the stack.
func (s *Store) SetBarrier(fn func(parent gcheap.Object, v rvalue.Value)) {
	s.barrier = fn
}

func searchFunc(u *Upvalue, idx int) int { return u.stackIdx - idx }

// FindOrCreate returns the open upvalue for stack index idx, creating and
// inserting it in sorted position if none exists yet.
func (s *Store) FindOrCreate(idx int) (*Upvalue, error) {
	i, found := slices.BinarySearchFunc(s.open, idx, searchFunc)
	if found {
		return s.open[i], nil
	}
	uv := newOpen(s.stack, idx)
	if s.reg != nil {
		if err := s.reg(uv); err != nil {
			return nil, err
		}
	}
	s.open = slices.Insert(s.open, i, uv)
	return uv, nil
}

// CloseFrom closes every open upvalue whose stack index is >= idx —
// called when a scope (block, function return, tail call) discards the
// stack slots those upvalues alias.
func (s *Store) CloseFrom(idx int) {
	i, _ := slices.BinarySearchFunc(s.open, idx, searchFunc)
	for _, uv := range s.open[i:] {
		uv.close()
		if s.barrier != nil {
			s.barrier(uv, uv.closed)
		}
	}
	s.open = s.open[:i]
}

// Len reports how many upvalues are currently open (diagnostics/tests).
func (s *Store) Len() int { return len(s.open) }
