package proto

// Opcode enumerates behl's register-machine instruction set. The set
// covers every operation category spec.md §4.3 names: moves/loads,
// globals, upvalues, table ops, arithmetic, bitwise, comparison+jump,
// control flow (call/tailcall/return), closure construction, inc/dec, and
// vararg access.
type Opcode uint8

const (
	OpMove Opcode = iota
	OpLoadK
	OpLoadNil
	OpLoadBool
	OpLoadInt // load small integer immediate (Bx, sign-extended)

	OpGetGlobal
	OpSetGlobal
	OpGetUpval
	OpSetUpval
	OpCloseUpval

	OpNewTable
	OpGetTable
	OpSetTable
	OpGetField // table[const string key] sugar over GetTable
	OpSetField
	OpSetList // R(A)[C+1..C+B] = R(A+1..A+B), batched table-constructor append

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpUnm
	OpNot
	OpLen
	OpConcat

	OpBAnd
	OpBOr
	OpBXor
	OpBNot
	OpShl
	OpShr

	OpInc
	OpDec

	OpJmp
	OpEq
	OpLt
	OpLe
	OpTest
	OpTestSet

	OpCall
	OpTailCall
	OpReturn

	OpClosure
	OpVararg

	// OpDefer registers the closure in R(A) on the current frame's defer
	// list; it runs (LIFO with every other deferred closure in the same
	// frame) when the frame returns normally, and is skipped entirely if
	// the frame instead unwinds due to an error.
	OpDefer
)

// Instruction is one register-machine instruction. Not every field is used
// by every opcode; see each handler in vm/ for the exact layout it expects.
// A, B, C index registers (or small immediates); Bx carries a wider
// constant-pool index or signed jump offset.
type Instruction struct {
	Op Opcode
	A  int32
	B  int32
	C  int32
	Bx int32
}
