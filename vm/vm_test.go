package vm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behl-lang/behl-sub001/internal/asm"
	"github.com/behl-lang/behl-sub001/internal/rvalue"
)

func newTestState() *State { return NewState() }

func runClosure(t *testing.T, s *State, b *asm.Builder, args ...rvalue.Value) []rvalue.Value {
	t.Helper()
	cl, err := s.NewClosure(b.Build())
	require.NoError(t, err)
	results, err := s.Call(rvalue.GCVal(rvalue.TClosure, cl), args...)
	require.NoError(t, err)
	return results
}

// TestClosureCounterIndependentState mirrors spec.md §8's make_counter
// scenario: each closure instance captures its own independent upvalue.
func TestClosureCounterIndependentState(t *testing.T) {
	s := newTestState()

	inc := asm.New("<test>", "increment", 0, false)
	inc.IncUpval(0)
	inc.Reserve(1)
	inc.GetUpval(1, 0)
	inc.Return(1, 1)

	makeCounter := asm.New("<test>", "make_counter", 0, false)
	makeCounter.Reserve(2)
	makeCounter.LoadInt(1, 0)
	incIdx := makeCounter.AddProto(inc)
	makeCounter.AddUpval("count", true, 1)
	makeCounter.Closure(2, incIdx)
	makeCounter.Return(2, 1)

	mcClosure, err := s.NewClosure(makeCounter.Build())
	require.NoError(t, err)
	mcVal := rvalue.GCVal(rvalue.TClosure, mcClosure)

	c1, err := s.Call(mcVal)
	require.NoError(t, err)
	c2, err := s.Call(mcVal)
	require.NoError(t, err)
	require.Len(t, c1, 1)
	require.Len(t, c2, 1)

	call := func(v rvalue.Value) int64 {
		r, err := s.Call(v)
		require.NoError(t, err)
		require.Len(t, r, 1)
		return r[0].AsInt()
	}

	assert.Equal(t, int64(1), call(c1[0]))
	assert.Equal(t, int64(2), call(c1[0]))
	assert.Equal(t, int64(1), call(c2[0]))
	assert.Equal(t, int64(3), call(c1[0]))
	assert.Equal(t, int64(2), call(c2[0]))
}

// TestTailCallDoesNotGrowCallStack exercises spec.md §4.3's tail-call frame
// reuse: a self tail-recursive countdown over many iterations must not
// accumulate one CallFrame per iteration.
func TestTailCallDoesNotGrowCallStack(t *testing.T) {
	s := newTestState()

	countdown := asm.New("<test>", "countdown", 1, false)
	countdown.Reserve(8)
	kName := countdown.KStr("countdown")

	countdown.LoadInt(2, 0)
	countdown.Le(3, 1, 2, false) // reg3 = n <= 0
	countdown.Test(3, false)
	jmpElse := countdown.Jmp(0)
	countdown.Return(1, 1) // base case: return n (0)

	elseLabel := countdown.Here()
	countdown.Patch(jmpElse, elseLabel)
	countdown.LoadInt(5, 1)
	countdown.Sub(6, 1, 5) // reg6 = n - 1
	countdown.GetGlobal(7, kName)
	countdown.Move(8, 6)
	countdown.TailCall(7, 1)

	cl, err := s.NewClosure(countdown.Build())
	require.NoError(t, err)
	fnVal := rvalue.GCVal(rvalue.TClosure, cl)
	require.NoError(t, s.SetGlobal("countdown", fnVal))

	results, err := s.Call(fnVal, rvalue.Int(100000))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(0), results[0].AsInt())
	assert.Empty(t, s.frames, "tail calls must not leave frames on the stack")
}

// TestIntegerArithmeticWraps matches spec.md §8's wraparound expectation:
// integer overflow wraps using Go's native int64 semantics rather than
// promoting to float or erroring.
func TestIntegerArithmeticWraps(t *testing.T) {
	s := newTestState()

	b := asm.New("<test>", "overflow", 0, false)
	b.Reserve(3)
	kMax := b.KInt(math.MaxInt64)
	b.LoadK(1, kMax)
	b.LoadInt(2, 1)
	b.Add(3, 1, 2)
	b.Return(3, 1)

	results := runClosure(t, s, b)
	require.Len(t, results, 1)
	assert.Equal(t, int64(math.MinInt64), results[0].AsInt())
}

// TestPCallCatchesTypeError matches spec.md §8's pcall scenario: arithmetic
// on a non-numeric value raises a TypeError that PCall converts into a
// (false, message) result instead of propagating.
func TestPCallCatchesTypeError(t *testing.T) {
	s := newTestState()

	f := asm.New("<test>", "f", 1, false)
	f.Reserve(3)
	f.LoadInt(2, 1)
	f.Add(3, 1, 2) // x + 1
	f.Return(3, 1)

	cl, err := s.NewClosure(f.Build())
	require.NoError(t, err)
	fnVal := rvalue.GCVal(rvalue.TClosure, cl)

	tbl, err := s.NewTable()
	require.NoError(t, err)
	tblVal := rvalue.GCVal(rvalue.TTable, tbl)

	ok, results, msg := s.PCall(fnVal, tblVal)
	assert.False(t, ok)
	assert.Nil(t, results)
	assert.Contains(t, msg, "arithmetic")

	// The state must remain usable after the caught error.
	again, err := s.Call(fnVal, rvalue.Int(41))
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, int64(42), again[0].AsInt())
}

// TestAddMetamethodDispatch matches spec.md §4.1's arithmetic metamethod
// fallback: table + table consults __add on either operand.
func TestAddMetamethodDispatch(t *testing.T) {
	s := newTestState()

	mt, err := s.NewTable()
	require.NoError(t, err)
	var called bool
	addFn := CFunction(func(s *State) (int, error) {
		called = true
		s.PushInt(100)
		return 1, nil
	})
	mt.RawSet(rvalue.Str(rvalue.NewRString([]byte(string(MMAdd)))), rvalue.CFunc(addFn))

	t1, err := s.NewTable()
	require.NoError(t, err)
	t1.Metatable = rvalue.GCVal(rvalue.TTable, mt)
	t2, err := s.NewTable()
	require.NoError(t, err)

	base := len(s.stack)
	s.stack = append(s.stack, rvalue.Nil, rvalue.GCVal(rvalue.TTable, t1), rvalue.GCVal(rvalue.TTable, t2), rvalue.Nil)

	require.NoError(t, s.binArith(base, arithAdd, 3, 1, 2))
	assert.True(t, called)
	assert.Equal(t, int64(100), s.stack[base+3].AsInt())
}

// buildAddProto returns a one-arg function equivalent to
// `out[idx] = s; idx = idx + 1;` against the globals "out"/"idx" — the
// logging helper original_source/tests/defer_tests.cpp's scenarios use to
// observe execution order.
func buildAddProto() *asm.Builder {
	add := asm.New("<test>", "add", 1, false)
	add.Reserve(6)
	kOut := add.KStr("out")
	kIdx := add.KStr("idx")
	add.GetGlobal(2, kOut)
	add.GetGlobal(3, kIdx)
	add.SetTable(2, 3, 1) // out[idx] = s
	add.LoadInt(4, 1)
	add.Add(5, 3, 4)
	add.SetGlobal(5, kIdx)
	add.Return(0, 0)
	return add
}

// buildCallAddProto returns a zero-arg function that calls the global "add"
// with the fixed string constant s — used both as a deferred closure body
// and as the direct call in the tests below.
func buildCallAddProto(s string) *asm.Builder {
	b := asm.New("<test>", "call_add", 0, false)
	b.Reserve(3)
	kAdd := b.KStr("add")
	kArg := b.KStr(s)
	b.GetGlobal(1, kAdd)
	b.LoadK(2, kArg)
	b.Call(1, 1, 0)
	b.Return(0, 0)
	return b
}

// TestDeferRunsLIFOOnNormalReturn matches
// original_source/tests/defer_tests.cpp's MultipleDeferLIFO: defers
// registered third, second, first (in that program order) run in reverse
// (first, second, third) when the function returns, after whatever ran
// inline before the defers fire.
func TestDeferRunsLIFOOnNormalReturn(t *testing.T) {
	s := newTestState()

	addCl, err := s.NewClosure(buildAddProto().Build())
	require.NoError(t, err)
	require.NoError(t, s.SetGlobal("add", rvalue.GCVal(rvalue.TClosure, addCl)))

	outTbl, err := s.NewTable()
	require.NoError(t, err)
	require.NoError(t, s.SetGlobal("out", rvalue.GCVal(rvalue.TTable, outTbl)))
	require.NoError(t, s.SetGlobal("idx", rvalue.Int(0)))

	test := asm.New("<test>", "test", 0, false)
	test.Reserve(4)
	thirdIdx := test.AddProto(buildCallAddProto("third"))
	test.Closure(1, thirdIdx)
	test.Defer(1)
	secondIdx := test.AddProto(buildCallAddProto("second"))
	test.Closure(1, secondIdx)
	test.Defer(1)
	firstIdx := test.AddProto(buildCallAddProto("first"))
	test.Closure(1, firstIdx)
	test.Defer(1)

	kAdd := test.KStr("add")
	kBody := test.KStr("body")
	test.GetGlobal(2, kAdd)
	test.LoadK(3, kBody)
	test.Call(2, 1, 0)
	test.Return(0, 0)

	testCl, err := s.NewClosure(test.Build())
	require.NoError(t, err)
	_, err = s.Call(rvalue.GCVal(rvalue.TClosure, testCl))
	require.NoError(t, err)

	want := []string{"body", "first", "second", "third"}
	for i, w := range want {
		got := outTbl.RawGet(rvalue.Int(int64(i)))
		require.False(t, got.IsNil(), "out[%d] missing", i)
		assert.Equal(t, w, got.AsString().String())
	}
}

// TestDeferSkippedOnErrorUnwind matches defer_tests.cpp's
// DeferDoesNotExecuteOnException: a defer registered before a call that
// raises must not run once PCall catches the error.
func TestDeferSkippedOnErrorUnwind(t *testing.T) {
	s := newTestState()
	require.NoError(t, s.SetGlobal("ran", rvalue.Bool(false)))

	markRan := asm.New("<test>", "mark_ran", 0, false)
	markRan.Reserve(1)
	kRan := markRan.KStr("ran")
	markRan.LoadBool(1, true, false)
	markRan.SetGlobal(1, kRan)
	markRan.Return(0, 0)

	test := asm.New("<test>", "test", 0, false)
	test.Reserve(3)
	markIdx := test.AddProto(markRan)
	test.Closure(1, markIdx)
	test.Defer(1)

	kError := test.KStr("error")
	kMsg := test.KStr("boom")
	test.GetGlobal(1, kError)
	test.LoadK(2, kMsg)
	test.Call(1, 1, 0)
	test.Return(0, 0)

	testCl, err := s.NewClosure(test.Build())
	require.NoError(t, err)

	ok, results, msg := s.PCall(rvalue.GCVal(rvalue.TClosure, testCl))
	assert.False(t, ok)
	assert.Nil(t, results)
	assert.Contains(t, msg, "boom")

	ranVal := s.GetGlobal("ran")
	assert.False(t, ranVal.AsBool(), "defer must not run when the frame unwinds due to an error")
}
