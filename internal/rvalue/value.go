package rvalue

import (
	"math"

	"github.com/behl-lang/behl-sub001/internal/gcheap"
)

// Value is behl's tagged union. It intentionally stays a plain comparable-ish
// struct (no interface boxing for the numeric/boolean cases) so passing
// Values through the register stack never allocates — the same design goal
// as original_source/include/behl/types.hpp's Value union, adapted to Go's
// lack of real unions.
type Value struct {
	tag Type
	n   uint64         // integer bits (int64 reinterpreted) / float bits (math.Float64bits) / bool (0 or 1)
	str *RString       // valid when tag == TString
	obj gcheap.Object  // valid when tag.IsGC() && tag != TString (Table/Closure/Userdata)
	any any            // valid when tag == TCFunction: the host's concrete CFunction value
}

// Nil is the zero Value.
var Nil = Value{}

// NullOpt is the internal "absent" sentinel, never observable from script
// code — used by the Stack API to distinguish "no such register" from nil.
var NullOpt = Value{tag: TNullOpt}

func Bool(b bool) Value {
	var n uint64
	if b {
		n = 1
	}
	return Value{tag: TBoolean, n: n}
}

func Int(i int64) Value { return Value{tag: TInteger, n: uint64(i)} }

func Float(f float64) Value { return Value{tag: TNumber, n: math.Float64bits(f)} }

func Str(s *RString) Value { return Value{tag: TString, str: s} }

func GCVal(tag Type, o gcheap.Object) Value { return Value{tag: tag, obj: o} }

func CFunc(fn any) Value { return Value{tag: TCFunction, any: fn} }

func (v Value) Type() Type { return v.tag }
func (v Value) IsNil() bool { return v.tag == TNil }
func (v Value) IsNullOpt() bool { return v.tag == TNullOpt }

func (v Value) AsBool() bool { return v.n != 0 }
func (v Value) AsInt() int64 { return int64(v.n) }
func (v Value) AsFloat() float64 { return math.Float64frombits(v.n) }
func (v Value) AsString() *RString { return v.str }
func (v Value) AsObject() gcheap.Object { return v.obj }
func (v Value) AsAny() any { return v.any }

// Ref returns the heap object this Value points at, or nil for
// non-heap/TNil values. Used by the collector's root-marking and
// TraceChildren callbacks.
func (v Value) Ref() gcheap.Object {
	switch v.tag {
	case TString:
		if v.str == nil {
			return nil
		}
		return v.str
	default:
		if v.tag.IsGC() {
			return v.obj
		}
		return nil
	}
}

// Truthy implements behl's truthiness rule: only nil and false are falsy,
// matching spec.md §3 ("everything else, including 0 and the empty
// string, is truthy").
func (v Value) Truthy() bool {
	switch v.tag {
	case TNil, TNullOpt:
		return false
	case TBoolean:
		return v.n != 0
	default:
		return true
	}
}

// IsNumber reports whether v is an Integer or a Number (float).
func (v Value) IsNumber() bool { return v.tag.IsNumeric() }

// NumericFloat coerces an Integer or Number Value to float64; callers must
// check IsNumber first.
func (v Value) NumericFloat() float64 {
	if v.tag == TInteger {
		return float64(v.AsInt())
	}
	return v.AsFloat()
}
