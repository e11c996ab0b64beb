// Package rerr implements behl's error taxonomy and source location
// bookkeeping, following original_source/include/behl/exceptions.hpp and
// src/exceptions.cpp's per-kind message constructors.
package rerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a behl error, mirroring exceptions.hpp's exception
// hierarchy (ParserError/SyntaxError/SemanticError/TypeError/
// ReferenceError/ArithmeticError/RuntimeError).
type Kind uint8

const (
	KindParser Kind = iota
	KindSyntax
	KindSemantic
	KindType
	KindReference
	KindArithmetic
	KindRuntime
)

func (k Kind) String() string {
	switch k {
	case KindParser:
		return "ParserError"
	case KindSyntax:
		return "SyntaxError"
	case KindSemantic:
		return "SemanticError"
	case KindType:
		return "TypeError"
	case KindReference:
		return "ReferenceError"
	case KindArithmetic:
		return "ArithmeticError"
	case KindRuntime:
		return "RuntimeError"
	default:
		return "Error"
	}
}

// Location is a source position, matching exceptions.hpp's SourceLocation.
// Filename defaults to "<script>" when the originating Prototype carries no
// source name, per api_debug.cpp's debug_get_location.
type Location struct {
	Filename string
	Line     int32
	Column   int32
}

func (l Location) String() string {
	if l.Filename == "" && l.Line == 0 {
		return ""
	}
	name := l.Filename
	if name == "" {
		name = "<script>"
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", name, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", name, l.Line)
}

// Error is behl's uniform script-level error value: a Kind, a message, and
// an optional source Location, wrapped (when it crosses a host boundary)
// with a Go-level stack trace via github.com/pkg/errors so embedders get
// both the script location and the Go call stack that raised it.
type Error struct {
	Kind     Kind
	Message  string
	Location Location
	cause    error
}

func (e *Error) Error() string {
	loc := e.Location.String()
	if loc == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, loc)
}

func (e *Error) Unwrap() error { return e.cause }

func newAt(kind Kind, loc Location, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Location: loc}
}

func NewParserError(loc Location, format string, args ...any) *Error {
	return newAt(KindParser, loc, format, args...)
}
func NewSyntaxError(loc Location, format string, args ...any) *Error {
	return newAt(KindSyntax, loc, format, args...)
}
func NewSemanticError(loc Location, format string, args ...any) *Error {
	return newAt(KindSemantic, loc, format, args...)
}

// NewTypeError matches exceptions.cpp's vocabulary for common type-error
// sites ("attempt to call a %s value", "attempt to index a %s value",
// "can only concatenate string (not %q) to string", ...); callers pass the
// fully formatted message.
func NewTypeError(loc Location, format string, args ...any) *Error {
	return newAt(KindType, loc, format, args...)
}
func NewReferenceError(loc Location, format string, args ...any) *Error {
	return newAt(KindReference, loc, format, args...)
}
func NewArithmeticError(loc Location, format string, args ...any) *Error {
	return newAt(KindArithmetic, loc, format, args...)
}
func NewRuntimeError(loc Location, format string, args ...any) *Error {
	return newAt(KindRuntime, loc, format, args...)
}

// Wrap attaches a Go-level stack trace to err (from a host callback
// returning a plain Go error) and packages it as a RuntimeError at loc.
func Wrap(err error, loc Location) *Error {
	if err == nil {
		return nil
	}
	if be, ok := err.(*Error); ok {
		return be
	}
	wrapped := errors.WithStack(err)
	return &Error{Kind: KindRuntime, Message: err.Error(), Location: loc, cause: wrapped}
}
