package vm

import (
	"fmt"
	"strings"

	"github.com/behl-lang/behl-sub001/internal/rerr"
	"github.com/behl-lang/behl-sub001/internal/rvalue"
)

// currentLocation reports the source position of the instruction about to
// raise an error. PC has already been advanced past the faulting
// instruction by the dispatch loop, so it looks back one slot — matching
// vm_detail.hpp's get_current_location's "frame.pc - 1" convention (the
// debugger's own debug_get_location uses the un-adjusted pc instead, since
// it fires before the instruction executes; see debug.go).
func (s *State) currentLocation() rerr.Location {
	for i := len(s.frames) - 1; i >= 0; i-- {
		f := &s.frames[i]
		if f.isNative() {
			continue
		}
		if f.Proto == nil {
			continue
		}
		line, col := f.Proto.LocationAt(f.PC - 1)
		name := f.Proto.SourceName
		if name == "" {
			name = "<script>"
		}
		return rerr.Location{Filename: name, Line: line, Column: col}
	}
	return rerr.Location{Filename: "<native>"}
}

func (s *State) typeErrorf(format string, args ...any) error {
	return rerr.NewTypeError(s.currentLocation(), format, args...)
}

func (s *State) arithErrorf(format string, args ...any) error {
	return rerr.NewArithmeticError(s.currentLocation(), format, args...)
}

func (s *State) referenceErrorf(format string, args ...any) error {
	return rerr.NewReferenceError(s.currentLocation(), format, args...)
}

func (s *State) runtimeErrorf(format string, args ...any) error {
	return rerr.NewRuntimeError(s.currentLocation(), format, args...)
}

func (s *State) semanticErrorf(format string, args ...any) error {
	return rerr.NewSemanticError(s.currentLocation(), format, args...)
}

// Traceback renders one line per live frame, most-recent first — the
// per-State call-stack snapshot SPEC_FULL.md §3 supplements from
// state_debug.hpp. PCall appends it to the message of a caught error; the
// debugger's pause event (DebugEvent) does not carry it.
func (s *State) Traceback() string {
	var b strings.Builder
	for i := len(s.frames) - 1; i >= 0; i-- {
		f := &s.frames[i]
		if f.isNative() {
			name := f.NativeName
			if name == "" {
				name = "?"
			}
			fmt.Fprintf(&b, "\tat %s (<native>)\n", name)
			continue
		}
		if f.Proto == nil {
			continue
		}
		line, col := f.Proto.LocationAt(f.PC - 1)
		loc := rerr.Location{Filename: f.Proto.SourceName, Line: line, Column: col}
		name := f.Proto.FuncName
		if name == "" {
			name = "?"
		}
		fmt.Fprintf(&b, "\tat %s (%s)\n", name, loc.String())
	}
	return b.String()
}

// Call invokes fn(args...) and returns every result it produced. Errors
// propagate to the caller uncaught — use PCall for a protected boundary.
func (s *State) Call(fn rvalue.Value, args ...rvalue.Value) ([]rvalue.Value, error) {
	base := len(s.stack)
	s.stack = append(s.stack, fn)
	s.stack = append(s.stack, args...)
	if err := s.call(base, len(args), kMultRet); err != nil {
		s.truncateStack(base)
		return nil, err
	}
	results := append([]rvalue.Value(nil), s.stack[base:]...)
	s.truncateStack(base)
	return results, nil
}

// PCall establishes a protection boundary (spec.md §4.7): it records the
// current stack/frame depth, invokes fn(args...), and on failure unwinds
// open upvalues and call frames back to the boundary instead of
// propagating — matching the original's try/catch around call_function.
// Open-but-unrun defers are intentionally not re-run here (SPEC_FULL.md §4
// Open Question #1: defers never run on error unwind).
func (s *State) PCall(fn rvalue.Value, args ...rvalue.Value) (ok bool, results []rvalue.Value, msg string) {
	boundaryFrames := len(s.frames)
	boundaryStack := len(s.stack)

	base := len(s.stack)
	s.stack = append(s.stack, fn)
	s.stack = append(s.stack, args...)

	err := s.call(base, len(args), kMultRet)
	if err != nil {
		msg = err.Error()
		if tb := s.Traceback(); tb != "" {
			msg += "\n" + tb
		}
		s.upvals.CloseFrom(boundaryStack)
		s.frames = s.frames[:boundaryFrames]
		s.truncateStack(boundaryStack)
		return false, nil, msg
	}

	results = append([]rvalue.Value(nil), s.stack[base:]...)
	s.truncateStack(boundaryStack)
	return true, results, ""
}
