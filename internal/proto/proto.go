// Package proto defines the Prototype — the immutable, compiled
// description of a function body that the (out-of-scope) compiler would
// produce and the VM consumes, per spec.md §3/§6.
package proto

import (
	"github.com/behl-lang/behl-sub001/internal/gcheap"
	"github.com/behl-lang/behl-sub001/internal/rvalue"
)

// UpvalDesc describes how a closure should capture one upvalue slot when
// instantiated from this Prototype: either lift a register from the
// enclosing frame (FromParentLocal) or copy an already-captured upvalue
// from the enclosing closure (FromParentLocal false), mirroring
// original_source/src/vm/upvalue.hpp's UpvalueIndexVector encoding.
type UpvalDesc struct {
	Name           string
	FromParentLocal bool
	Index          int // register index (if FromParentLocal) or upvalue index (otherwise)
}

// Prototype is the smallest unit a host can load (spec.md §6): constants,
// bytecode, debug line/column tables, nested prototypes for closures
// created within this function, and the upvalue capture list.
type Prototype struct {
	gcheap.Header

	SourceName string
	FuncName   string

	NumParams  int
	IsVararg   bool
	MaxStack   int

	// ModuleMode marks a script compiled under a `module;` directive: bare
	// global assignment raises SemanticError instead of declaring a global
	// (spec.md §6's module protocol).
	ModuleMode bool

	Code    []Instruction
	Lines   []int32
	Columns []int32

	Constants []rvalue.Value
	Protos    []*Prototype

	Upvalues []UpvalDesc
}

// New builds an empty Prototype ready to have Code/Constants/etc. filled
// in by the internal/asm hand-assembler or a host-supplied compile hook.
func New(sourceName, funcName string) *Prototype {
	if sourceName == "" {
		sourceName = "<script>"
	}
	return &Prototype{SourceName: sourceName, FuncName: funcName}
}

// LocationAt returns the (line, column) of the instruction at pc, or
// (0, 0) if pc is out of range — matching api_debug.cpp's
// debug_get_location bounds check.
func (p *Prototype) LocationAt(pc int) (line, column int32) {
	if pc < 0 || pc >= len(p.Lines) {
		return 0, 0
	}
	line = p.Lines[pc]
	if pc < len(p.Columns) {
		column = p.Columns[pc]
	}
	return line, column
}

// TraceChildren grays every constant that's a GC value and every nested
// prototype — closures keep their defining Prototype reachable for as long
// as any instance of them is alive.
func (p *Prototype) TraceChildren(mark func(gcheap.Object)) {
	for _, c := range p.Constants {
		if r := c.Ref(); r != nil {
			mark(r)
		}
	}
	for _, np := range p.Protos {
		mark(np)
	}
}
