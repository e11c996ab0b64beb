// Package asm hand-assembles proto.Prototype values directly, standing in
// for the out-of-scope compiler: tests and cmd/behl build runnable bytecode
// by calling a Builder's opcode-emitting methods rather than parsing source
// text.
package asm

import (
	"math"

	"github.com/behl-lang/behl-sub001/internal/proto"
	"github.com/behl-lang/behl-sub001/internal/rvalue"
)

// Builder accumulates one Prototype's instructions, constants, and nested
// prototypes. Register 0 of the assembled function aliases the call slot
// itself (vm/interp.go's register convention); parameters occupy registers
// 1..NumParams, so callers should request registers starting from
// 1+NumParams via Reserve.
type Builder struct {
	p        *proto.Prototype
	line     int32
	constIdx map[constKey]int32
}

type constKey struct {
	kind byte
	s    string
	i    int64
}

// New starts a Builder for a function with the given parameter count.
func New(sourceName, funcName string, numParams int, vararg bool) *Builder {
	p := proto.New(sourceName, funcName)
	p.NumParams = numParams
	p.IsVararg = vararg
	p.MaxStack = 1 + numParams
	return &Builder{p: p, constIdx: make(map[constKey]int32)}
}

// Module marks the prototype as compiled under module scope (spec.md §6).
func (b *Builder) Module() *Builder { b.p.ModuleMode = true; return b }

// Line sets the source line attributed to subsequently emitted instructions.
func (b *Builder) Line(n int32) *Builder { b.line = n; return b }

// Reserve bumps MaxStack to cover register n if it isn't already large
// enough; callers allocating scratch registers above the parameter window
// should call this before emitting an instruction that addresses them.
func (b *Builder) Reserve(n int) *Builder {
	if n+1 > b.p.MaxStack {
		b.p.MaxStack = n + 1
	}
	return b
}

func (b *Builder) emit(ins proto.Instruction) int32 {
	b.p.Code = append(b.p.Code, ins)
	b.p.Lines = append(b.p.Lines, b.line)
	b.p.Columns = append(b.p.Columns, 0)
	return int32(len(b.p.Code) - 1)
}

// KInt/KFloat/KStr intern a constant and return its pool index,
// reusing an existing slot for an identical value the way a real compiler's
// constant folder would.
func (b *Builder) KInt(v int64) int32 {
	k := constKey{kind: 'i', i: v}
	if idx, ok := b.constIdx[k]; ok {
		return idx
	}
	idx := int32(len(b.p.Constants))
	b.p.Constants = append(b.p.Constants, rvalue.Int(v))
	b.constIdx[k] = idx
	return idx
}

func (b *Builder) KFloat(v float64) int32 {
	// Keys on the raw bit pattern via a dedicated kind byte distinct from
	// KInt's so 1.0 and 1 don't collide.
	k := constKey{kind: 'f', i: int64(math.Float64bits(v))}
	if idx, ok := b.constIdx[k]; ok {
		return idx
	}
	idx := int32(len(b.p.Constants))
	b.p.Constants = append(b.p.Constants, rvalue.Float(v))
	b.constIdx[k] = idx
	return idx
}

func (b *Builder) KStr(s string) int32 {
	k := constKey{kind: 's', s: s}
	if idx, ok := b.constIdx[k]; ok {
		return idx
	}
	idx := int32(len(b.p.Constants))
	b.p.Constants = append(b.p.Constants, rvalue.Str(rvalue.NewRString([]byte(s))))
	b.constIdx[k] = idx
	return idx
}

// AddUpval registers an upvalue capture descriptor and returns its index.
func (b *Builder) AddUpval(name string, fromParentLocal bool, index int) int32 {
	b.p.Upvalues = append(b.p.Upvalues, proto.UpvalDesc{Name: name, FromParentLocal: fromParentLocal, Index: index})
	return int32(len(b.p.Upvalues) - 1)
}

// AddProto registers a nested prototype (built by its own Builder) and
// returns its index, for use as CLOSURE's Bx operand.
func (b *Builder) AddProto(child *Builder) int32 {
	b.p.Protos = append(b.p.Protos, child.Build())
	return int32(len(b.p.Protos) - 1)
}

// Build finalizes and returns the assembled Prototype.
func (b *Builder) Build() *proto.Prototype { return b.p }

// --- opcode-emitting methods, one per proto.Opcode -----------------------

func (b *Builder) Move(a, bReg int32) *Builder {
	b.emit(proto.Instruction{Op: proto.OpMove, A: a, B: bReg})
	return b
}
func (b *Builder) LoadK(a, kidx int32) *Builder {
	b.emit(proto.Instruction{Op: proto.OpLoadK, A: a, Bx: kidx})
	return b
}
func (b *Builder) LoadNil(a, count int32) *Builder {
	b.emit(proto.Instruction{Op: proto.OpLoadNil, A: a, B: count - 1})
	return b
}
func (b *Builder) LoadBool(a int32, v bool, skipNext bool) *Builder {
	c := int32(0)
	if skipNext {
		c = 1
	}
	bb := int32(0)
	if v {
		bb = 1
	}
	b.emit(proto.Instruction{Op: proto.OpLoadBool, A: a, B: bb, C: c})
	return b
}
func (b *Builder) LoadInt(a, v int32) *Builder {
	b.emit(proto.Instruction{Op: proto.OpLoadInt, A: a, Bx: v})
	return b
}
func (b *Builder) GetGlobal(a, kidx int32) *Builder {
	b.emit(proto.Instruction{Op: proto.OpGetGlobal, A: a, Bx: kidx})
	return b
}
func (b *Builder) SetGlobal(a, kidx int32) *Builder {
	b.emit(proto.Instruction{Op: proto.OpSetGlobal, A: a, Bx: kidx})
	return b
}
func (b *Builder) GetUpval(a, idx int32) *Builder {
	b.emit(proto.Instruction{Op: proto.OpGetUpval, A: a, B: idx})
	return b
}
func (b *Builder) SetUpval(a, idx int32) *Builder {
	b.emit(proto.Instruction{Op: proto.OpSetUpval, A: a, B: idx})
	return b
}
func (b *Builder) CloseUpval(a int32) *Builder {
	b.emit(proto.Instruction{Op: proto.OpCloseUpval, A: a})
	return b
}
func (b *Builder) NewTable(a int32) *Builder {
	b.emit(proto.Instruction{Op: proto.OpNewTable, A: a})
	return b
}
func (b *Builder) GetTable(a, t, k int32) *Builder {
	b.emit(proto.Instruction{Op: proto.OpGetTable, A: a, B: t, C: k})
	return b
}
func (b *Builder) SetTable(t, k, v int32) *Builder {
	b.emit(proto.Instruction{Op: proto.OpSetTable, A: t, B: k, C: v})
	return b
}
func (b *Builder) GetField(a, t, kidx int32) *Builder {
	b.emit(proto.Instruction{Op: proto.OpGetField, A: a, B: t, Bx: kidx})
	return b
}
func (b *Builder) SetField(t int32, kidx, v int32) *Builder {
	b.emit(proto.Instruction{Op: proto.OpSetField, A: t, Bx: kidx, B: v})
	return b
}
func (b *Builder) SetList(a, count, offset int32) *Builder {
	b.emit(proto.Instruction{Op: proto.OpSetList, A: a, B: count, C: offset})
	return b
}

func (b *Builder) Add(a, x, y int32) *Builder { b.emit(proto.Instruction{Op: proto.OpAdd, A: a, B: x, C: y}); return b }
func (b *Builder) Sub(a, x, y int32) *Builder { b.emit(proto.Instruction{Op: proto.OpSub, A: a, B: x, C: y}); return b }
func (b *Builder) Mul(a, x, y int32) *Builder { b.emit(proto.Instruction{Op: proto.OpMul, A: a, B: x, C: y}); return b }
func (b *Builder) Div(a, x, y int32) *Builder { b.emit(proto.Instruction{Op: proto.OpDiv, A: a, B: x, C: y}); return b }
func (b *Builder) Mod(a, x, y int32) *Builder { b.emit(proto.Instruction{Op: proto.OpMod, A: a, B: x, C: y}); return b }
func (b *Builder) Pow(a, x, y int32) *Builder { b.emit(proto.Instruction{Op: proto.OpPow, A: a, B: x, C: y}); return b }
func (b *Builder) Unm(a, x int32) *Builder    { b.emit(proto.Instruction{Op: proto.OpUnm, A: a, B: x}); return b }
func (b *Builder) Not(a, x int32) *Builder    { b.emit(proto.Instruction{Op: proto.OpNot, A: a, B: x}); return b }
func (b *Builder) Len(a, x int32) *Builder    { b.emit(proto.Instruction{Op: proto.OpLen, A: a, B: x}); return b }
func (b *Builder) Concat(a, x, y int32) *Builder {
	b.emit(proto.Instruction{Op: proto.OpConcat, A: a, B: x, C: y})
	return b
}

func (b *Builder) BAnd(a, x, y int32) *Builder { b.emit(proto.Instruction{Op: proto.OpBAnd, A: a, B: x, C: y}); return b }
func (b *Builder) BOr(a, x, y int32) *Builder  { b.emit(proto.Instruction{Op: proto.OpBOr, A: a, B: x, C: y}); return b }
func (b *Builder) BXor(a, x, y int32) *Builder { b.emit(proto.Instruction{Op: proto.OpBXor, A: a, B: x, C: y}); return b }
func (b *Builder) BNot(a, x int32) *Builder    { b.emit(proto.Instruction{Op: proto.OpBNot, A: a, B: x}); return b }
func (b *Builder) Shl(a, x, y int32) *Builder  { b.emit(proto.Instruction{Op: proto.OpShl, A: a, B: x, C: y}); return b }
func (b *Builder) Shr(a, x, y int32) *Builder  { b.emit(proto.Instruction{Op: proto.OpShr, A: a, B: x, C: y}); return b }

// IncLocal/DecLocal/IncUpval/DecUpval/IncGlobal/DecGlobal emit INC/DEC
// targeting a local register, an upvalue, or a global name respectively
// (vm/interp.go's opIncDec: B==0 local, B==1 upvalue, else global).
func (b *Builder) IncLocal(a int32) *Builder { b.emit(proto.Instruction{Op: proto.OpInc, A: a, B: 0}); return b }
func (b *Builder) DecLocal(a int32) *Builder { b.emit(proto.Instruction{Op: proto.OpDec, A: a, B: 0}); return b }
func (b *Builder) IncUpval(a int32) *Builder { b.emit(proto.Instruction{Op: proto.OpInc, A: a, B: 1}); return b }
func (b *Builder) DecUpval(a int32) *Builder { b.emit(proto.Instruction{Op: proto.OpDec, A: a, B: 1}); return b }
func (b *Builder) IncGlobal(kidx int32) *Builder {
	b.emit(proto.Instruction{Op: proto.OpInc, B: 2, Bx: kidx})
	return b
}
func (b *Builder) DecGlobal(kidx int32) *Builder {
	b.emit(proto.Instruction{Op: proto.OpDec, B: 2, Bx: kidx})
	return b
}

// Jmp emits an unconditional relative jump and returns its instruction
// index so the caller can patch Bx once the target is known (see Patch).
func (b *Builder) Jmp(offset int32) int32 { return b.emit(proto.Instruction{Op: proto.OpJmp, Bx: offset}) }

// Patch rewrites a previously emitted jump's Bx to `target - (pc+1)`, the
// offset the dispatch loop adds to PC after it has already been
// incremented past the jump instruction itself.
func (b *Builder) Patch(pc int32, target int32) {
	b.p.Code[pc].Bx = target - (pc + 1)
}

// Here returns the index the next emitted instruction will occupy.
func (b *Builder) Here() int32 { return int32(len(b.p.Code)) }

func (b *Builder) Eq(a, x, y int32, negate bool) *Builder {
	bx := int32(0)
	if negate {
		bx = 1
	}
	b.emit(proto.Instruction{Op: proto.OpEq, A: a, B: x, C: y, Bx: bx})
	return b
}
func (b *Builder) Lt(a, x, y int32, negate bool) *Builder {
	bx := int32(0)
	if negate {
		bx = 1
	}
	b.emit(proto.Instruction{Op: proto.OpLt, A: a, B: x, C: y, Bx: bx})
	return b
}
func (b *Builder) Le(a, x, y int32, negate bool) *Builder {
	bx := int32(0)
	if negate {
		bx = 1
	}
	b.emit(proto.Instruction{Op: proto.OpLe, A: a, B: x, C: y, Bx: bx})
	return b
}
func (b *Builder) Test(a int32, want bool) *Builder {
	c := int32(0)
	if want {
		c = 1
	}
	b.emit(proto.Instruction{Op: proto.OpTest, A: a, C: c})
	return b
}
func (b *Builder) TestSet(a, x int32, want bool) *Builder {
	c := int32(0)
	if want {
		c = 1
	}
	b.emit(proto.Instruction{Op: proto.OpTestSet, A: a, B: x, C: c})
	return b
}

// Call emits CALL: A=func register, numArgs may be asm.MultArgs for "all
// values up to frame top", numResults may be asm.MultRet for "all results".
func (b *Builder) Call(a, numArgs, numResults int32) *Builder {
	b.emit(proto.Instruction{Op: proto.OpCall, A: a, B: numArgs, C: numResults})
	return b
}
func (b *Builder) TailCall(a, numArgs int32) *Builder {
	b.emit(proto.Instruction{Op: proto.OpTailCall, A: a, B: numArgs})
	return b
}

// Return emits RETURN: A=start register, count may be MultRet.
func (b *Builder) Return(a, count int32) *Builder {
	b.emit(proto.Instruction{Op: proto.OpReturn, A: a, B: count})
	return b
}

func (b *Builder) Closure(a, protoIdx int32) *Builder {
	b.emit(proto.Instruction{Op: proto.OpClosure, A: a, Bx: protoIdx})
	return b
}

// Vararg emits VARARG: B==0 copies every available vararg (All), else
// exactly B values padded with nil.
func (b *Builder) Vararg(a, count int32) *Builder {
	b.emit(proto.Instruction{Op: proto.OpVararg, A: a, B: count})
	return b
}

// Defer emits DEFER: registers the closure in register a on the enclosing
// frame's defer list, run LIFO when the frame returns (skipped on error
// unwind).
func (b *Builder) Defer(a int32) *Builder {
	b.emit(proto.Instruction{Op: proto.OpDefer, A: a})
	return b
}

// MultArgs/MultRet mirror vm.kMultArgs/vm.kMultRet without importing the vm
// package (which would create an import cycle, since vm's tests import
// asm), per spec.md §4.3's "explicit count or -1 for everything available".
const (
	MultArgs int32 = -1
	MultRet  int32 = -1
	All      int32 = 0
)
