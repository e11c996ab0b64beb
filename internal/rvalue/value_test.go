package rvalue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruthiness(t *testing.T) {
	assert.False(t, Nil.Truthy())
	assert.False(t, Bool(false).Truthy())
	assert.True(t, Bool(true).Truthy())
	assert.True(t, Int(0).Truthy(), "0 is truthy, unlike Lua")
	assert.True(t, Str(NewRString(nil)).Truthy(), "the empty string is truthy")
}

func TestRawEqualNumericCrossType(t *testing.T) {
	assert.True(t, RawEqual(Int(3), Float(3.0)))
	assert.False(t, RawEqual(Int(3), Float(3.5)))
	assert.False(t, RawEqual(Int(0), Bool(false)))
}

func TestRawEqualStringsByContent(t *testing.T) {
	a := Str(NewRString([]byte("hi")))
	b := Str(NewRString([]byte("hi")))
	assert.True(t, RawEqual(a, b))
}

func TestRawLessNumericAndString(t *testing.T) {
	lt, ok := RawLess(Int(1), Float(2.0))
	assert.True(t, ok)
	assert.True(t, lt)

	lt, ok = RawLess(Str(NewRString([]byte("a"))), Str(NewRString([]byte("b"))))
	assert.True(t, ok)
	assert.True(t, lt)

	_, ok = RawLess(Int(1), Bool(true))
	assert.False(t, ok)
}

func TestNumericFloatCoercion(t *testing.T) {
	assert.Equal(t, float64(7), Int(7).NumericFloat())
	assert.Equal(t, 2.5, Float(2.5).NumericFloat())
}

func TestRefNilForNonGCValues(t *testing.T) {
	assert.Nil(t, Nil.Ref())
	assert.Nil(t, Int(1).Ref())
	assert.NotNil(t, Str(NewRString([]byte("x"))).Ref())
}
