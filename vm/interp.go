package vm

import (
	"github.com/behl-lang/behl-sub001/internal/proto"
	"github.com/behl-lang/behl-sub001/internal/rtable"
	"github.com/behl-lang/behl-sub001/internal/rvalue"
)

// Register convention: the function's own register window reuses the slot
// the function value occupied at call time as register 0 (spec.md §4.3:
// "new frame base = current base + A", i.e. base aliases the call
// position itself); parameters therefore occupy registers 1..NumParams,
// and the vararg tail (if any) immediately follows at
// 1+NumParams..NumParams+NumVarargs. Table field-access opcodes (GetField/
// SetField) take their key from Proto.Constants[Bx]; the register/register
// forms (GetTable/SetTable) take it from a register.

// call is the shared entry point used by Call/PCall/callMethod: resolves
// the callable sitting at s.stack[base], pushes (or runs) its frame, and
// drives dispatch until the call stack returns to the entry depth.
func (s *State) call(base, nargs, nresults int) error {
	entryDepth := len(s.frames)
	callerTop := base + nargs + 1
	if err := s.callFunction(base, callerTop, nargs, int32(nresults)); err != nil {
		return err
	}
	return s.run(entryDepth)
}

// run drives the dispatch loop until the call stack depth returns to (or
// below) entryDepth — the convention §4.3's "Returns" section describes for
// handing control back to the host.
func (s *State) run(entryDepth int) error {
	for {
		fi := len(s.frames) - 1
		if fi < entryDepth {
			return nil
		}
		if s.frames[fi].isNative() {
			// A native call that somehow left its frame on top without
			// popping (should not happen — callNative always pops before
			// returning) is treated as completion rather than a crash.
			return nil
		}
		if err := s.step(entryDepth, fi); err != nil {
			return err
		}
	}
}

// step executes exactly one instruction of frame fi. fi is captured fresh
// by run() on every iteration since s.frames may grow or shrink underneath
// any call/return handler.
func (s *State) step(entryDepth, fi int) error {
	frame := &s.frames[fi]
	if s.debug.enabled {
		s.checkBreak(frame)
	}
	code := frame.Proto.Code
	if frame.PC >= len(code) {
		_, err := s.doReturn(entryDepth, fi, 0, 0)
		return err
	}
	ins := code[frame.PC]
	frame.PC++
	base := frame.Base

	switch ins.Op {
	case proto.OpMove:
		s.stack[base+int(ins.A)] = s.stack[base+int(ins.B)]

	case proto.OpLoadK:
		s.stack[base+int(ins.A)] = frame.Proto.Constants[ins.Bx]

	case proto.OpLoadNil:
		for i := int32(0); i <= ins.B; i++ {
			s.stack[base+int(ins.A)+int(i)] = rvalue.Nil
		}

	case proto.OpLoadBool:
		s.stack[base+int(ins.A)] = rvalue.Bool(ins.B != 0)
		if ins.C != 0 {
			frame.PC++
		}

	case proto.OpLoadInt:
		s.stack[base+int(ins.A)] = rvalue.Int(int64(ins.Bx))

	case proto.OpGetGlobal:
		s.stack[base+int(ins.A)] = s.globals.RawGet(frame.Proto.Constants[ins.Bx])

	case proto.OpSetGlobal:
		if frame.Proto.ModuleMode {
			return s.semanticErrorf("cannot assign to undeclared variable")
		}
		key := frame.Proto.Constants[ins.Bx]
		val := s.stack[base+int(ins.A)]
		s.globals.RawSet(key, val)
		s.barrierVal(s.globals, key)
		s.barrierVal(s.globals, val)

	case proto.OpGetUpval:
		s.opGetUpval(frame, ins.A, ins.B)

	case proto.OpSetUpval:
		s.opSetUpval(frame, ins.A, ins.B)

	case proto.OpCloseUpval:
		s.upvals.CloseFrom(base + int(ins.A))

	case proto.OpNewTable:
		t, err := s.NewTable()
		if err != nil {
			return err
		}
		s.stack[base+int(ins.A)] = rvalue.GCVal(rvalue.TTable, t)

	case proto.OpGetTable:
		v, err := s.index(s.stack[base+int(ins.B)], s.stack[base+int(ins.C)])
		if err != nil {
			return err
		}
		s.stack[base+int(ins.A)] = v

	case proto.OpSetTable:
		if err := s.newindex(s.stack[base+int(ins.A)], s.stack[base+int(ins.B)], s.stack[base+int(ins.C)]); err != nil {
			return err
		}

	case proto.OpGetField:
		v, err := s.index(s.stack[base+int(ins.B)], frame.Proto.Constants[ins.Bx])
		if err != nil {
			return err
		}
		s.stack[base+int(ins.A)] = v

	case proto.OpSetField:
		if err := s.newindex(s.stack[base+int(ins.A)], frame.Proto.Constants[ins.Bx], s.stack[base+int(ins.B)]); err != nil {
			return err
		}

	case proto.OpSetList:
		if err := s.opSetList(base, ins.A, ins.B, ins.C); err != nil {
			return err
		}

	case proto.OpAdd:
		if err := s.binArith(base, arithAdd, ins.A, ins.B, ins.C); err != nil {
			return err
		}
	case proto.OpSub:
		if err := s.binArith(base, arithSub, ins.A, ins.B, ins.C); err != nil {
			return err
		}
	case proto.OpMul:
		if err := s.binArith(base, arithMul, ins.A, ins.B, ins.C); err != nil {
			return err
		}
	case proto.OpDiv:
		if err := s.binArith(base, arithDiv, ins.A, ins.B, ins.C); err != nil {
			return err
		}
	case proto.OpMod:
		if err := s.binArith(base, arithMod, ins.A, ins.B, ins.C); err != nil {
			return err
		}
	case proto.OpPow:
		if err := s.binArith(base, arithPow, ins.A, ins.B, ins.C); err != nil {
			return err
		}
	case proto.OpUnm:
		if err := s.opUnm(base, ins.A, ins.B); err != nil {
			return err
		}
	case proto.OpNot:
		s.opNot(base, ins.A, ins.B)
	case proto.OpLen:
		if err := s.opLen(base, ins.A, ins.B); err != nil {
			return err
		}
	case proto.OpConcat:
		if err := s.opConcat(base, ins.A, ins.B, ins.C); err != nil {
			return err
		}

	case proto.OpBAnd:
		if err := s.binBitwise(base, bitAnd, ins.A, ins.B, ins.C); err != nil {
			return err
		}
	case proto.OpBOr:
		if err := s.binBitwise(base, bitOr, ins.A, ins.B, ins.C); err != nil {
			return err
		}
	case proto.OpBXor:
		if err := s.binBitwise(base, bitXor, ins.A, ins.B, ins.C); err != nil {
			return err
		}
	case proto.OpBNot:
		if err := s.opBNot(base, ins.A, ins.B); err != nil {
			return err
		}
	case proto.OpShl:
		if err := s.binBitwise(base, bitShl, ins.A, ins.B, ins.C); err != nil {
			return err
		}
	case proto.OpShr:
		if err := s.binBitwise(base, bitShr, ins.A, ins.B, ins.C); err != nil {
			return err
		}

	case proto.OpInc:
		if err := s.opIncDec(frame, ins, 1); err != nil {
			return err
		}
	case proto.OpDec:
		if err := s.opIncDec(frame, ins, -1); err != nil {
			return err
		}

	case proto.OpJmp:
		frame.PC += int(ins.Bx)

	case proto.OpEq:
		r, err := s.equal(s.stack[base+int(ins.B)], s.stack[base+int(ins.C)])
		if err != nil {
			return err
		}
		if ins.Bx != 0 {
			r = !r
		}
		s.stack[base+int(ins.A)] = rvalue.Bool(r)

	case proto.OpLt:
		r, err := s.less(s.stack[base+int(ins.B)], s.stack[base+int(ins.C)])
		if err != nil {
			return err
		}
		if ins.Bx != 0 {
			r = !r
		}
		s.stack[base+int(ins.A)] = rvalue.Bool(r)

	case proto.OpLe:
		r, err := s.lessEqual(s.stack[base+int(ins.B)], s.stack[base+int(ins.C)])
		if err != nil {
			return err
		}
		if ins.Bx != 0 {
			r = !r
		}
		s.stack[base+int(ins.A)] = rvalue.Bool(r)

	case proto.OpTest:
		if s.stack[base+int(ins.A)].Truthy() != (ins.C != 0) {
			frame.PC++
		}

	case proto.OpTestSet:
		if s.stack[base+int(ins.B)].Truthy() == (ins.C != 0) {
			s.stack[base+int(ins.A)] = s.stack[base+int(ins.B)]
		} else {
			frame.PC++
		}

	case proto.OpCall:
		if err := s.opCall(frame, ins.A, int(ins.B), ins.C); err != nil {
			return err
		}

	case proto.OpTailCall:
		cont, err := s.opTailCall(entryDepth, fi, int(ins.A), int(ins.B))
		if err != nil {
			return err
		}
		_ = cont // dispatch loop re-checks len(s.frames) against entryDepth next iteration regardless

	case proto.OpReturn:
		if _, err := s.doReturn(entryDepth, fi, int(ins.A), ins.B); err != nil {
			return err
		}

	case proto.OpClosure:
		if err := s.opClosure(frame, ins.A, ins.Bx); err != nil {
			return err
		}

	case proto.OpVararg:
		s.opVararg(frame, ins.A, ins.B)

	case proto.OpDefer:
		frame.Defers = append(frame.Defers, s.stack[base+int(ins.A)])

	default:
		return s.runtimeErrorf("unimplemented opcode %d", ins.Op)
	}
	return nil
}

// opIncDec dispatches INC/DEC to its local/upvalue/global variant based on
// how the compiler addressed the target: B==0 local register A, B==1
// upvalue index A, B==2 global name Constants[Bx].
func (s *State) opIncDec(frame *CallFrame, ins proto.Instruction, delta int64) error {
	switch ins.B {
	case 0:
		return s.incDecLocal(frame.Base, ins.A, delta)
	case 1:
		return s.incDecUpval(frame.Closure, ins.A, delta)
	default:
		return s.incDecGlobal(frame.Proto.Constants[ins.Bx], delta)
	}
}

// opSetList implements SETLIST: R(A)[C+1..C+B] = R(A+1..A+B), the batched
// table-constructor append spec.md §4.3 calls for.
func (s *State) opSetList(base int, a, b, c int32) error {
	tv := s.stack[base+int(a)]
	if tv.Type() != rvalue.TTable {
		return s.typeErrorf("attempt to index a %s value", tv.Type())
	}
	t := tv.AsObject().(*rtable.Table)
	for i := int32(1); i <= b; i++ {
		key := rvalue.Int(int64(c) + int64(i))
		val := s.stack[base+int(a)+int(i)]
		t.RawSet(key, val)
		s.barrierVal(t, val)
	}
	return nil
}

// opVararg implements VARARG: copy the current frame's variadic tail into
// registers starting at A. B == 0 means "all of them" (growing the frame's
// Top accordingly, for a trailing multret context); otherwise exactly B
// values are copied, padded with nil if fewer varargs are available.
func (s *State) opVararg(frame *CallFrame, a, b int32) {
	vstart := frame.Base + 1 + frame.Proto.NumParams
	n := frame.NumVarargs

	want := int(b)
	if b == 0 {
		want = n
		frame.Top = frame.Base + int(a) + want
		s.ensureStack(frame.Top)
	}
	for i := 0; i < want; i++ {
		dst := frame.Base + int(a) + i
		if i < n {
			s.stack[dst] = s.stack[vstart+i]
		} else {
			s.stack[dst] = rvalue.Nil
		}
	}
}
