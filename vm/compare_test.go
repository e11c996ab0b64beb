package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behl-lang/behl-sub001/internal/rvalue"
)

// TestLessPrefersRawNumericOverMetamethod exercises the raw-first ordering:
// a table carrying an __lt that would answer "true" for anything must never
// be consulted when both operands are plain numbers, since raw comparison
// already applies.
func TestLessPrefersRawNumericOverMetamethod(t *testing.T) {
	s := newTestState()

	called := false
	mt, err := s.NewTable()
	require.NoError(t, err)
	mt.RawSet(rvalue.Str(rvalue.NewRString([]byte("__lt"))), rvalue.CFunc(func(s *State) (int, error) {
		called = true
		s.PushBool(true)
		return 1, nil
	}))

	tbl, err := s.NewTable()
	require.NoError(t, err)
	tbl.Metatable = rvalue.GCVal(rvalue.TTable, mt)

	lt, err := s.less(rvalue.Int(5), rvalue.Int(3))
	require.NoError(t, err)
	assert.False(t, lt)
	assert.False(t, called, "__lt must not fire for a raw-comparable numeric pair")
}

// TestLessFallsBackToMetamethodForTables covers the other side: two
// table-like operands have no raw ordering, so __lt must be consulted.
func TestLessFallsBackToMetamethodForTables(t *testing.T) {
	s := newTestState()

	mt, err := s.NewTable()
	require.NoError(t, err)
	mt.RawSet(rvalue.Str(rvalue.NewRString([]byte("__lt"))), rvalue.CFunc(func(s *State) (int, error) {
		s.PushBool(true)
		return 1, nil
	}))

	a, err := s.NewTable()
	require.NoError(t, err)
	a.Metatable = rvalue.GCVal(rvalue.TTable, mt)
	b, err := s.NewTable()
	require.NoError(t, err)
	b.Metatable = rvalue.GCVal(rvalue.TTable, mt)

	lt, err := s.less(rvalue.GCVal(rvalue.TTable, a), rvalue.GCVal(rvalue.TTable, b))
	require.NoError(t, err)
	assert.True(t, lt)
}

// TestLessEqualPrefersRawStringOverMetamethod mirrors the numeric case for
// strings and lessEqual.
func TestLessEqualPrefersRawStringOverMetamethod(t *testing.T) {
	s := newTestState()
	le, err := s.lessEqual(
		rvalue.Str(rvalue.NewRString([]byte("abc"))),
		rvalue.Str(rvalue.NewRString([]byte("abd"))),
	)
	require.NoError(t, err)
	assert.True(t, le)
}
