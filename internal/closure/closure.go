// Package closure defines the Closure heap object: a Prototype paired with
// its captured upvalues, per spec.md §3 Closure / original_source's
// gco_closure (the concrete layout wasn't retained in the retrieval pack;
// this follows frame.hpp/upvalue.hpp's description of what a closure needs
// at call time).
package closure

import (
	"github.com/behl-lang/behl-sub001/internal/gcheap"
	"github.com/behl-lang/behl-sub001/internal/proto"
	"github.com/behl-lang/behl-sub001/internal/upval"
)

// Closure is a function value: immutable Proto plus one Upvalue pointer per
// entry in Proto.Upvalues, resolved at closure-creation time by
// OP_CLOSURE (vm/upvalues.go).
type Closure struct {
	gcheap.Header

	Proto    *proto.Prototype
	Upvalues []*upval.Upvalue
}

// New builds a closure over proto with one nil upvalue slot per entry in
// p.Upvalues, filled in by the VM's OP_CLOSURE handler immediately after
// construction.
func New(p *proto.Prototype) *Closure {
	return &Closure{Proto: p, Upvalues: make([]*upval.Upvalue, len(p.Upvalues))}
}

// TraceChildren grays the prototype and every non-nil captured Upvalue
// object.
func (c *Closure) TraceChildren(mark func(gcheap.Object)) {
	mark(c.Proto)
	for _, uv := range c.Upvalues {
		if uv == nil {
			continue
		}
		mark(uv)
	}
}
