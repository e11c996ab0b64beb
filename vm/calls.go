package vm

import (
	"github.com/behl-lang/behl-sub001/internal/closure"
	"github.com/behl-lang/behl-sub001/internal/proto"
	"github.com/behl-lang/behl-sub001/internal/rerr"
	"github.com/behl-lang/behl-sub001/internal/rvalue"
)

// ensureStack grows the register stack to at least n slots, nil-filling the
// new region — mirrors vm_controlflow.hpp's prepare_call/move_results calls
// into Vector<Value>::resize.
func (s *State) ensureStack(n int) {
	for len(s.stack) < n {
		s.stack = append(s.stack, rvalue.Nil)
	}
}

// truncateStack shrinks the stack to n slots, nil-ing the discarded region
// first so no stale GC roots linger past a pcall unwind.
func (s *State) truncateStack(n int) {
	if n < len(s.stack) {
		for i := n; i < len(s.stack); i++ {
			s.stack[i] = rvalue.Nil
		}
		s.stack = s.stack[:n]
	}
}

// countActualArgs resolves kMultArgs against the caller's recorded top,
// matching vm_controlflow.hpp's count_actual_args (adapted: behl's numArgs
// already counts arguments only, not "arguments+1" as the C++ operand
// packing does, since Go instruction fields aren't byte-starved).
func countActualArgs(callerTop, funcPos, numArgs int) int {
	if numArgs == kMultArgs {
		if callerTop > funcPos+1 {
			return callerTop - funcPos - 1
		}
		return 0
	}
	return numArgs
}

// setupCallFrame pushes a new CallFrame for a closure invocation, per
// vm_controlflow.hpp's setup_call_frame.
func (s *State) setupCallFrame(cl *closure.Closure, p *proto.Prototype, newBase, actualArgs, callPos int, nresults int32) {
	f := CallFrame{
		Closure: cl, Proto: p,
		Base: newBase, Top: newBase + actualArgs + 1,
		CallPos: callPos, NResults: nresults,
	}
	if p != nil && p.IsVararg && actualArgs > p.NumParams {
		f.NumVarargs = actualArgs - p.NumParams
	}
	s.frames = append(s.frames, f)
}

// prepareCall grows the stack to fit both the argument block and the
// callee's full register window, matching prepare_call.
func (s *State) prepareCall(frameSize, newBase, actualArgs int) {
	itemsCount := newBase + actualArgs + 1
	protoSize := newBase + frameSize
	required := itemsCount
	if protoSize > required {
		required = protoSize
	}
	s.ensureStack(required)
}

// moveResults implements move_results: shift `available` of the `count`
// wanted results from srcBase down to dest, padding the remainder with nil.
func (s *State) moveResults(srcBase, dest, count, available int) {
	finalSize := dest + count
	if count == 0 {
		s.ensureStack(finalSize)
		return
	}
	toMove := count
	if available < toMove {
		toMove = available
	}
	if toMove > 0 {
		s.ensureStack(srcBase + toMove)
		s.ensureStack(dest + toMove)
		copy(s.stack[dest:dest+toMove], s.stack[srcBase:srcBase+toMove])
	}
	s.ensureStack(finalSize)
	for i := toMove; i < count; i++ {
		s.stack[dest+i] = rvalue.Nil
	}
}

func (s *State) badCallError(v rvalue.Value) error {
	return s.typeErrorf("attempt to call a %s value", v.Type())
}

// callFunction resolves the value at absolute stack position funcPos as a
// callable and either pushes a new CallFrame (closure) or runs the call to
// completion immediately (native function, or a __call target once
// resolved to one of the two). Table/userdata __call targets are spliced in
// and the loop continues rather than recursing, per vm_controlflow.hpp's
// call_function (the "avoid native stack growth on repeated __call" rule).
func (s *State) callFunction(funcPos, callerTop, numArgs int, numResults int32) error {
	for {
		fn := s.stack[funcPos]
		switch fn.Type() {
		case rvalue.TClosure:
			if len(s.frames)+1 > s.maxCallDepth {
				return s.runtimeErrorf("stack overflow")
			}
			cl := fn.AsObject().(*closure.Closure)
			actual := countActualArgs(callerTop, funcPos, numArgs)
			s.setupCallFrame(cl, cl.Proto, funcPos, actual, funcPos, numResults)
			s.prepareCall(cl.Proto.MaxStack, funcPos, actual)
			return nil

		case rvalue.TCFunction:
			actual := countActualArgs(callerTop, funcPos, numArgs)
			return s.callNative(fn, funcPos, actual, numResults)

		default:
			if fn.Type().IsTableLike() {
				mm := s.getMethod(fn, MMCall)
				if mm.Type().IsCallable() {
					s.ensureStack(len(s.stack) + 1)
					copy(s.stack[funcPos+1:], s.stack[funcPos:len(s.stack)-1])
					s.stack[funcPos] = mm
					if numArgs != kMultArgs {
						callerTop++
						numArgs++
					}
					continue
				}
			}
			return s.badCallError(fn)
		}
	}
}

// callNative runs a host CFunction to completion: pushes a native
// (Proto-less) frame so Traceback can see it, invokes the callback, then
// moves its pushed results down over the function+argument region and pads
// to match what the caller asked for.
func (s *State) callNative(fn rvalue.Value, funcPos, actualArgs int, numResults int32) error {
	cfn, ok := fn.AsAny().(CFunction)
	if !ok {
		if f, isFunc := fn.AsAny().(func(*State) (int, error)); isFunc {
			cfn = f
		}
	}
	s.ensureStack(funcPos + actualArgs + 1)
	s.frames = append(s.frames, CallFrame{Native: cfn, Base: funcPos, Top: funcPos + actualArgs + 1, CallPos: funcPos, NResults: kMultRet})

	n, err := cfn(s)

	s.frames = s.frames[:len(s.frames)-1]
	if err != nil {
		// A host CFunction may return a plain Go error (not one raised via
		// typeErrorf/runtimeErrorf/etc.); wrap it so it carries a location
		// and stack trace like any other behl error. Wrap passes an already-
		// tagged *rerr.Error through unchanged.
		return rerr.Wrap(err, s.currentLocation())
	}
	if n < 0 {
		n = 0
	}

	stackSize := len(s.stack)
	resultsStart := stackSize - n
	if resultsStart < 0 {
		resultsStart = stackSize
		n = 0
	}

	wanted := n
	if numResults != kMultRet {
		wanted = int(numResults)
	}
	s.moveResults(resultsStart, funcPos, wanted, n)

	if len(s.frames) > 0 {
		caller := &s.frames[len(s.frames)-1]
		caller.Top = funcPos + wanted
		if caller.Proto != nil {
			s.ensureStack(caller.Base + caller.Proto.MaxStack)
		}
	}
	return nil
}

// opCall implements OpCall: runs a GC debt-paced step, resolves the call,
// and (for a closure call) leaves a fresh frame on top for the dispatch
// loop to pick up next iteration.
func (s *State) opCall(frame *CallFrame, a, numArgs int, numResults int32) error {
	if s.gc.Debt() > 0 {
		s.Step(0)
	}
	callPos := frame.Base + a
	if numArgs != kMultArgs {
		frame.Top = callPos + numArgs + 1
	}
	if err := s.callFunction(callPos, frame.Top, numArgs, numResults); err != nil {
		return err
	}
	top := &s.frames[len(s.frames)-1]
	if top.Proto != nil {
		s.ensureStack(top.Base + top.Proto.MaxStack)
	}
	return nil
}

func (s *State) moveTailArgs(funcAbsPos, frameBase, itemsToMove int) {
	if itemsToMove <= 0 || funcAbsPos == frameBase {
		return
	}
	copy(s.stack[frameBase:frameBase+itemsToMove], s.stack[funcAbsPos:funcAbsPos+itemsToMove])
}

func (s *State) clearTailLocals(from int) {
	for i := from; i < len(s.stack); i++ {
		s.stack[i] = rvalue.Nil
	}
}

// opTailCall implements OpTailCall: replaces the current frame in place
// rather than growing the call stack, per spec.md §4.3 "Tail calls" and
// vm_controlflow.hpp's handler_tailcall. Returns (continue-dispatch, err);
// continue is false only when a tail call into a native function also
// unwinds past the entry depth.
func (s *State) opTailCall(entryDepth int, fi int, a, numArgs int) (bool, error) {
	frame := &s.frames[fi]
	funcAbsPos := frame.Base + a
	actual := countActualArgs(frame.Top, funcAbsPos, numArgs)
	itemsToMove := actual + 1

	fn := s.stack[funcAbsPos]

	switch fn.Type() {
	case rvalue.TClosure:
		cl := fn.AsObject().(*closure.Closure)
		if len(frame.Defers) > 0 {
			if err := s.runDefers(fi); err != nil {
				return false, err
			}
			frame = &s.frames[fi]
		}
		s.upvals.CloseFrom(frame.Base)
		s.moveTailArgs(funcAbsPos, frame.Base, itemsToMove)
		s.clearTailLocals(frame.Base + actual + 1)
		frame.Closure = cl
		frame.Proto = cl.Proto
		frame.PC = 0
		frame.Top = frame.Base + actual + 1
		required := frame.Top
		if protoSize := frame.Base + cl.Proto.MaxStack; protoSize > required {
			required = protoSize
		}
		s.ensureStack(required)
		return true, nil

	case rvalue.TCFunction:
		if err := s.callFunction(funcAbsPos, frame.Top, numArgs, kMultRet); err != nil {
			return false, err
		}
		return s.doReturn(entryDepth, fi, a, kMultRet)

	default:
		if fn.Type().IsTableLike() {
			mm := s.getMethod(fn, MMCall)
			switch mm.Type() {
			case rvalue.TCFunction:
				if err := s.callFunction(funcAbsPos, frame.Top, numArgs, kMultRet); err != nil {
					return false, err
				}
				return s.doReturn(entryDepth, fi, a, kMultRet)
			case rvalue.TClosure:
				cl := mm.AsObject().(*closure.Closure)
				if len(frame.Defers) > 0 {
					if err := s.runDefers(fi); err != nil {
						return false, err
					}
					frame = &s.frames[fi]
				}
				s.upvals.CloseFrom(frame.Base)
				srcStart := funcAbsPos
				destStart := frame.Base + 1
				mmItems := actual + 1
				if srcStart != destStart && mmItems > 0 {
					s.ensureStack(destStart + mmItems)
					copy(s.stack[destStart:destStart+mmItems], s.stack[srcStart:srcStart+mmItems])
				}
				s.stack[frame.Base] = mm
				newTop := frame.Base + mmItems + 1
				s.clearTailLocals(newTop)
				frame.Closure = cl
				frame.Proto = cl.Proto
				frame.PC = 0
				frame.Top = newTop
				s.ensureStack(frame.Base + cl.Proto.MaxStack)
				return true, nil
			}
		}
		return false, s.badCallError(fn)
	}
}

// runDefers calls every closure registered on frame fi via OP_DEFER, LIFO,
// with no arguments and its results discarded — vm_controlflow.hpp's
// scope-exit cleanup run, adapted to this VM's function-level (not
// block-level) frames. Deferred closures run in scratch space above the
// live stack so they never disturb the return values the caller is about to
// collect, and while the frame's own registers are still live so a defer
// that captured a local by upvalue observes its final value.
//
// It re-fetches &s.frames[fi] on every iteration rather than holding a
// *CallFrame across the nested s.call: that call can append to s.frames and
// reallocate its backing array, which would silently strand a pointer taken
// beforehand.
func (s *State) runDefers(fi int) error {
	for {
		frame := &s.frames[fi]
		if len(frame.Defers) == 0 {
			return nil
		}
		n := len(frame.Defers) - 1
		d := frame.Defers[n]
		frame.Defers = frame.Defers[:n]

		pos := len(s.stack)
		s.stack = append(s.stack, d)
		err := s.call(pos, 0, 0)
		s.truncateStack(pos)
		if err != nil {
			return err
		}
	}
}

// doReturn implements RETURN: run any deferred closures, gather results,
// close upvalues opened in this frame, move results to the caller's call
// position, pop the frame, and report whether dispatch should resume in the
// (now-current) caller.
func (s *State) doReturn(entryDepth, fi, a int, numResults int32) (bool, error) {
	if len(s.frames[fi].Defers) > 0 {
		if err := s.runDefers(fi); err != nil {
			return false, err
		}
	}
	frame := &s.frames[fi]

	resultBase := frame.Base + a

	available := 0
	if numResults == kMultRet {
		if frame.Top > resultBase {
			available = frame.Top - resultBase
		}
	} else {
		available = int(numResults)
	}

	wanted := available
	if frame.NResults != kMultRet {
		wanted = int(frame.NResults)
	}

	dest := frame.CallPos
	stackSize := len(s.stack)

	s.upvals.CloseFrom(frame.Base)

	avail := available
	if resultBase < stackSize {
		if rem := stackSize - resultBase; rem < avail {
			avail = rem
		}
	} else {
		avail = 0
	}
	s.moveResults(resultBase, dest, wanted, avail)

	s.frames = s.frames[:fi]

	if len(s.frames) <= entryDepth {
		// Returning to the host: drop the callee's register window so the
		// results are exactly the values above dest.
		s.truncateStack(dest + wanted)
		return false, nil
	}

	next := &s.frames[len(s.frames)-1]
	next.Top = dest + wanted
	if next.Proto != nil {
		s.ensureStack(next.Base + next.Proto.MaxStack)
	}
	return true, nil
}
