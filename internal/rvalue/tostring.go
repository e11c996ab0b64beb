package rvalue

import "strconv"

// RawToString renders v without consulting __tostring — callers in vm/
// (vm_detail.hpp's vm_tostring) try the metamethod first and fall back to
// this for primitive types or when no metamethod exists.
func RawToString(v Value) string {
	switch v.tag {
	case TNil, TNullOpt:
		return "nil"
	case TBoolean:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case TInteger:
		return strconv.FormatInt(v.AsInt(), 10)
	case TNumber:
		return strconv.FormatFloat(v.AsFloat(), 'g', -1, 64)
	case TString:
		return v.AsString().String()
	case TTable:
		return "table: 0x" + strconv.FormatUint(uint64(ptrOf(v.obj)), 16)
	case TClosure:
		return "function: 0x" + strconv.FormatUint(uint64(ptrOf(v.obj)), 16)
	case TUserdata:
		return "userdata: 0x" + strconv.FormatUint(uint64(ptrOf(v.obj)), 16)
	case TCFunction:
		return "function: builtin"
	default:
		return "<?>"
	}
}

// ToNumber coerces v to a numeric Value, matching vm_detail.hpp's
// vm_tonumber: numbers pass through, strings are parsed (integer literal
// first, then float), everything else fails.
func ToNumber(v Value) (Value, bool) {
	switch v.tag {
	case TInteger, TNumber:
		return v, true
	case TString:
		s := v.AsString().String()
		if i, err := strconv.ParseInt(s, 0, 64); err == nil {
			return Int(i), true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Float(f), true
		}
		return Value{}, false
	default:
		return Value{}, false
	}
}
