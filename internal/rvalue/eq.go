package rvalue

import "bytes"

// RawEqual implements equality without consulting __eq — identical to what
// original_source/src/vm/vm_arithmetic.hpp calls before checking for a
// metamethod: numbers compare across Integer/Number by value, strings by
// content, everything else (table/closure/userdata/boolean/nil) by
// identity or tag+payload equality.
func RawEqual(a, b Value) bool {
	switch {
	case a.tag == TInteger && b.tag == TInteger:
		return a.AsInt() == b.AsInt()
	case a.tag.IsNumeric() && b.tag.IsNumeric():
		return a.NumericFloat() == b.NumericFloat()
	case a.tag != b.tag:
		return false
	}

	switch a.tag {
	case TNil, TNullOpt:
		return true
	case TBoolean:
		return a.AsBool() == b.AsBool()
	case TString:
		return a.AsString().Equal(b.AsString())
	case TCFunction:
		return funcIdentity(a.any) == funcIdentity(b.any)
	default:
		return a.Ref() == b.Ref()
	}
}

// funcIdentity maps an opaque CFunction payload to a comparable identity.
// Go func values are not comparable with ==, and rvalue.CFunc stores the
// func itself, so a func or pointer payload is reduced to its code/data
// pointer (the same ptrOf that Hash uses); any other payload is returned as
// is.
func funcIdentity(a any) any {
	if p := ptrOf(a); p != 0 {
		return p
	}
	return a
}

// RawLess implements raw (non-metamethod) ordering for numbers and
// strings; callers (vm/compare.go) try this first and consult a __lt
// metamethod only when it reports ok == false, matching vm_arithmetic.hpp's
// comparison_op_general.
func RawLess(a, b Value) (result, ok bool) {
	switch {
	case a.tag.IsNumeric() && b.tag.IsNumeric():
		if a.tag == TInteger && b.tag == TInteger {
			return a.AsInt() < b.AsInt(), true
		}
		return a.NumericFloat() < b.NumericFloat(), true
	case a.tag == TString && b.tag == TString:
		return bytes.Compare(a.AsString().Bytes, b.AsString().Bytes) < 0, true
	default:
		return false, false
	}
}

func RawLessEqual(a, b Value) (result, ok bool) {
	switch {
	case a.tag.IsNumeric() && b.tag.IsNumeric():
		if a.tag == TInteger && b.tag == TInteger {
			return a.AsInt() <= b.AsInt(), true
		}
		return a.NumericFloat() <= b.NumericFloat(), true
	case a.tag == TString && b.tag == TString:
		return bytes.Compare(a.AsString().Bytes, b.AsString().Bytes) <= 0, true
	default:
		return false, false
	}
}

// Hash computes behl's value hash, used both by rtable's hash part and by
// the next/pairs iteration contract. Must agree with RawEqual: equal
// values hash equal.
func Hash(v Value) uint64 {
	switch {
	case v.tag == TInteger:
		return mixHash(uint64(v.AsInt()))
	case v.tag.IsNumeric():
		f := v.AsFloat()
		if f == float64(int64(f)) {
			return mixHash(uint64(int64(f)))
		}
		return mixHash(v.n)
	case v.tag == TString:
		return v.AsString().Hash()
	case v.tag == TBoolean:
		return mixHash(v.n + 0x9E3779B9)
	case v.tag == TNil, v.tag == TNullOpt:
		return 0
	case v.tag == TCFunction:
		return mixHash(uint64(uintptr(ptrOf(v.any))))
	default:
		return mixHash(uint64(uintptr(ptrOf(v.Ref()))))
	}
}

func mixHash(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}
