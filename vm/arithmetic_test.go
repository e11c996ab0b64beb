package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behl-lang/behl-sub001/internal/asm"
	"github.com/behl-lang/behl-sub001/internal/rvalue"
)

// buildAdd assembles a closure computing reg2 = k1 + k2 for two constants,
// returning reg2.
func buildAdd(lhs, rhs rvalue.Value) *asm.Builder {
	b := asm.New("<test>", "add", 0, false)
	b.Reserve(3)
	loadConst(b, 0, lhs)
	loadConst(b, 1, rhs)
	b.Add(2, 0, 1)
	b.Return(2, 1)
	return b
}

func loadConst(b *asm.Builder, reg int32, v rvalue.Value) {
	switch v.Type() {
	case rvalue.TInteger:
		b.LoadInt(reg, int32(v.AsInt()))
	case rvalue.TString:
		b.LoadK(reg, b.KStr(v.AsString().String()))
	default:
		panic("loadConst: unsupported type in test helper")
	}
}

// TestAddStringPlusNumberErrorsOnEitherSide exercises the `+` operator's
// concat branch symmetrically: a string operand on either side with a
// non-string on the other must raise the same TypeError naming the
// non-string operand, not silently fall through to numeric coercion.
func TestAddStringPlusNumberErrorsOnEitherSide(t *testing.T) {
	s := newTestState()

	numRhs := rvalue.Int(5)
	strLhs := rvalue.Str(rvalue.NewRString([]byte("hello")))
	cl, err := s.NewClosure(buildAdd(strLhs, numRhs).Build())
	require.NoError(t, err)
	_, err = s.Call(rvalue.GCVal(rvalue.TClosure, cl))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "integer")

	cl2, err := s.NewClosure(buildAdd(numRhs, strLhs).Build())
	require.NoError(t, err)
	_, err = s.Call(rvalue.GCVal(rvalue.TClosure, cl2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "integer")
}

// TestAddConcatenatesTwoStrings keeps the happy path covered alongside the
// symmetric-error case above.
func TestAddConcatenatesTwoStrings(t *testing.T) {
	s := newTestState()
	lhs := rvalue.Str(rvalue.NewRString([]byte("foo")))
	rhs := rvalue.Str(rvalue.NewRString([]byte("bar")))

	cl, err := s.NewClosure(buildAdd(lhs, rhs).Build())
	require.NoError(t, err)
	results, err := s.Call(rvalue.GCVal(rvalue.TClosure, cl))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "foobar", results[0].AsString().String())
}

// TestConcatOpcodeErrorsOnEitherSide covers the dedicated CONCAT opcode
// alongside ADD's string branch, since opConcat shares concat's symmetric
// check via the same helper.
func TestConcatOpcodeErrorsOnEitherSide(t *testing.T) {
	s := newTestState()

	build := func(lhs, rhs rvalue.Value) *asm.Builder {
		b := asm.New("<test>", "concat", 0, false)
		b.Reserve(3)
		loadConst(b, 0, lhs)
		loadConst(b, 1, rhs)
		b.Concat(2, 0, 1)
		b.Return(2, 1)
		return b
	}

	str := rvalue.Str(rvalue.NewRString([]byte("x")))
	num := rvalue.Int(1)

	cl, err := s.NewClosure(build(num, str).Build())
	require.NoError(t, err)
	_, err = s.Call(rvalue.GCVal(rvalue.TClosure, cl))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "integer")

	cl2, err := s.NewClosure(build(str, num).Build())
	require.NoError(t, err)
	_, err = s.Call(rvalue.GCVal(rvalue.TClosure, cl2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "integer")
}
