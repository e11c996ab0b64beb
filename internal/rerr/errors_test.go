package rerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "TypeError", KindType.String())
	assert.Equal(t, "ArithmeticError", KindArithmetic.String())
	assert.Equal(t, "RuntimeError", KindRuntime.String())
}

func TestLocationStringFormats(t *testing.T) {
	assert.Equal(t, "", Location{}.String())
	assert.Equal(t, "main.behl:10", Location{Filename: "main.behl", Line: 10}.String())
	assert.Equal(t, "main.behl:10:4", Location{Filename: "main.behl", Line: 10, Column: 4}.String())
	assert.Equal(t, "<script>:1", Location{Line: 1}.String())
}

func TestNewTypeErrorMessage(t *testing.T) {
	loc := Location{Filename: "f.behl", Line: 3}
	err := NewTypeError(loc, "attempt to call a %s value", "nil")
	assert.Equal(t, KindType, err.Kind)
	assert.Equal(t, "TypeError: attempt to call a nil value (f.behl:3)", err.Error())
}

func TestNewRuntimeErrorNoLocation(t *testing.T) {
	err := NewRuntimeError(Location{}, "boom")
	assert.Equal(t, "RuntimeError: boom", err.Error())
}

func TestWrapPreservesExistingBehlError(t *testing.T) {
	inner := NewArithmeticError(Location{Line: 1}, "divide by zero")
	wrapped := Wrap(inner, Location{Line: 99})
	assert.Same(t, inner, wrapped, "Wrap must not double-wrap an existing *Error")
}

func TestWrapPlainGoError(t *testing.T) {
	plain := errors.New("disk full")
	wrapped := Wrap(plain, Location{Filename: "host.go", Line: 1})
	assert.Equal(t, KindRuntime, wrapped.Kind)
	assert.Equal(t, "disk full", wrapped.Message)
	assert.ErrorIs(t, wrapped.Unwrap(), plain)
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, Location{}))
}
