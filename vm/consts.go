// Package vm is the root package: State, CallFrame, the interpreter
// dispatch loop, metatable resolution, the embedding Stack API, the
// debugger protocol, and the module loader — the behl runtime proper.
package vm

// kMultRet/kMultArgs are the sentinel result/argument counts meaning
// "as many as the callee produced" / "all remaining stack values",
// matching original_source/include/behl/types.hpp's kMultRet/kMultArgs.
const (
	kMultRet  = -1
	kMultArgs = -1
)

// DefaultMaxCallDepth bounds script call-frame depth as a resource
// ceiling (SPEC_FULL.md §3, "callstack_tests.cpp-implied call-depth
// ceiling") — distinct from the original's native-C-stack guard, since
// behl's CallFrames are slice-resident, not Go-stack-resident; this still
// prevents unbounded frame-slice growth from a runaway non-tail recursion.
const DefaultMaxCallDepth = 4096

// CFunction is a host-implemented callback, invoked with the calling
// State so it can read arguments and push results through the Stack API
// (src/libs/lib_table.cpp's ModuleReg function signature).
type CFunction func(s *State) (int, error)
