package vm

import (
	"github.com/behl-lang/behl-sub001/internal/closure"
	"github.com/behl-lang/behl-sub001/internal/proto"
	"github.com/behl-lang/behl-sub001/internal/rvalue"
)

// CallFrame is one activation record, field-for-field matching
// original_source/src/vm/frame.hpp: the executing closure/prototype, the
// program counter, the register window's base/top into the shared value
// stack, where the caller wants results written (CallPos), how many
// results the caller asked for (NResults, kMultRet for "all of them"), and
// how many extra arguments a vararg function received.
type CallFrame struct {
	Closure *closure.Closure
	Proto   *proto.Prototype

	PC   int
	Base int
	Top  int

	CallPos  int
	NResults int32

	NumVarargs int

	// Defers holds closures registered by OP_DEFER in this frame, in
	// registration order; doReturn runs them LIFO before the frame is
	// popped, but an error unwind skips them entirely (spec.md §7).
	Defers []rvalue.Value

	// Native is set instead of Closure/Proto for a frame representing an
	// in-flight CFunction call, kept only so Traceback() can report it.
	Native     CFunction
	NativeName string
}

func (f *CallFrame) isNative() bool { return f.Native != nil }
