package vm

import (
	"math"

	"github.com/behl-lang/behl-sub001/internal/closure"
	"github.com/behl-lang/behl-sub001/internal/rtable"
	"github.com/behl-lang/behl-sub001/internal/rvalue"
)

// arithKind identifies which numeric_binop<MM,...> in vm_arithmetic.hpp this
// handler stands in for, used only to pick the metamethod and the op.
type arithKind int

const (
	arithAdd arithKind = iota
	arithSub
	arithMul
	arithDiv
	arithMod
	arithPow
)

func (k arithKind) metamethod() MetaMethod {
	switch k {
	case arithAdd:
		return MMAdd
	case arithSub:
		return MMSub
	case arithMul:
		return MMMul
	case arithDiv:
		return MMDiv
	case arithMod:
		return MMMod
	default:
		return MMPow
	}
}

func (k arithKind) symbol() string {
	switch k {
	case arithAdd:
		return "+"
	case arithSub:
		return "-"
	case arithMul:
		return "*"
	case arithDiv:
		return "/"
	case arithMod:
		return "%"
	default:
		return "**"
	}
}

// numericBinop implements the 2x2 int/float dispatch from spec.md §4.1: int
// op int stays int (wrapping; `/` always promotes to FP), any FP operand
// promotes the whole operation to FP, falling back to metamethod lookup
// (left operand then right) when either side is not numeric.
func (s *State) numericBinop(k arithKind, lhs, rhs rvalue.Value) (rvalue.Value, error) {
	if lhs.IsNumber() && rhs.IsNumber() {
		bothInt := lhs.Type() == rvalue.TInteger && rhs.Type() == rvalue.TInteger && k != arithDiv
		if bothInt {
			a, b := lhs.AsInt(), rhs.AsInt()
			switch k {
			case arithAdd:
				return rvalue.Int(a + b), nil
			case arithSub:
				return rvalue.Int(a - b), nil
			case arithMul:
				return rvalue.Int(a * b), nil
			case arithMod:
				if b == 0 {
					return rvalue.Nil, s.typeErrorf("attempt to perform 'n%%0'")
				}
				return rvalue.Int(a % b), nil
			case arithPow:
				return rvalue.Int(int64(math.Pow(float64(a), float64(b)))), nil
			}
		}
		a, b := lhs.NumericFloat(), rhs.NumericFloat()
		switch k {
		case arithAdd:
			return rvalue.Float(a + b), nil
		case arithSub:
			return rvalue.Float(a - b), nil
		case arithMul:
			return rvalue.Float(a * b), nil
		case arithDiv:
			return rvalue.Float(a / b), nil
		case arithMod:
			return rvalue.Float(math.Mod(a, b)), nil
		case arithPow:
			return rvalue.Float(math.Pow(a, b)), nil
		}
	}

	mm := k.metamethod()
	if fn := s.getMethod(lhs, mm); !fn.IsNil() {
		return s.callMethod(fn, lhs, rhs)
	}
	if fn := s.getMethod(rhs, mm); !fn.IsNil() {
		return s.callMethod(fn, lhs, rhs)
	}
	bad := lhs
	if lhs.IsNumber() {
		bad = rhs
	}
	return rvalue.Nil, s.typeErrorf("attempt to perform arithmetic (%s) on a %s value", k.symbol(), bad.Type())
}

// concat implements the `+` operator's string-concat branch: if either
// operand is a string, both must be (spec.md §4.1's "handled via add opcode
// when both operands are strings") — a string on one side with a
// non-string on the other is a hard TypeError naming the non-string
// operand's type, rather than falling through to metamethods.
func (s *State) concat(lhs, rhs rvalue.Value) (rvalue.Value, bool, error) {
	if lhs.Type() != rvalue.TString && rhs.Type() != rvalue.TString {
		return rvalue.Nil, false, nil
	}
	if lhs.Type() != rvalue.TString {
		return rvalue.Nil, true, s.typeErrorf("can only concatenate string with string, not with %s", lhs.Type())
	}
	if rhs.Type() != rvalue.TString {
		return rvalue.Nil, true, s.typeErrorf("can only concatenate string with string, not with %s", rhs.Type())
	}
	a, b := lhs.AsString().Bytes, rhs.AsString().Bytes
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	str, err := s.NewString(out)
	if err != nil {
		return rvalue.Nil, true, err
	}
	return rvalue.Str(str), true, nil
}

// binArith is the shared ADD/SUB/MUL/DIV/MOD/POW handler: register-register
// form reads both operands from registers; the immediate forms (AddImm
// etc.) are not modeled as separate opcodes here — the compiler may still
// load a constant into a scratch register, since behl has no byte-starved
// operand encoding forcing the split.
func (s *State) binArith(base int, k arithKind, a, b, c int32) error {
	lhs := s.stack[base+int(b)]
	rhs := s.stack[base+int(c)]

	if k == arithAdd && (lhs.Type() == rvalue.TString || rhs.Type() == rvalue.TString) {
		v, handled, err := s.concat(lhs, rhs)
		if err != nil {
			return err
		}
		if handled {
			s.stack[base+int(a)] = v
			return nil
		}
	}

	v, err := s.numericBinop(k, lhs, rhs)
	if err != nil {
		return err
	}
	s.stack[base+int(a)] = v
	return nil
}

// opConcat is a dedicated CONCAT instruction a compiler may emit in place
// of ADD for an explicit concatenation expression; behavior matches ADD's
// string branch exactly, per spec.md §4.3 ("handled via add opcode").
func (s *State) opConcat(base int, a, b, c int32) error {
	lhs := s.stack[base+int(b)]
	rhs := s.stack[base+int(c)]
	v, handled, err := s.concat(lhs, rhs)
	if err != nil {
		return err
	}
	if !handled {
		return s.typeErrorf("can only concatenate string with string, not with %s", lhs.Type())
	}
	s.stack[base+int(a)] = v
	return nil
}

// opUnm implements unary negation: int negates with wraparound, fp negates
// directly, else falls back to __unm.
func (s *State) opUnm(base int, a, b int32) error {
	v := s.stack[base+int(b)]
	switch v.Type() {
	case rvalue.TInteger:
		s.stack[base+int(a)] = rvalue.Int(-v.AsInt())
		return nil
	case rvalue.TNumber:
		s.stack[base+int(a)] = rvalue.Float(-v.AsFloat())
		return nil
	}
	if fn := s.getMethod(v, MMUnm); !fn.IsNil() {
		r, err := s.callMethod(fn, v, v)
		if err != nil {
			return err
		}
		s.stack[base+int(a)] = r
		return nil
	}
	return s.typeErrorf("attempt to perform arithmetic (unary -) on a %s value", v.Type())
}

// opNot implements logical negation: !falsy, following behl's truthiness
// rule (only nil/false are falsy).
func (s *State) opNot(base int, a, b int32) {
	s.stack[base+int(a)] = rvalue.Bool(!s.stack[base+int(b)].Truthy())
}

// opLen implements `#v`: table length by default, __len metamethod
// override for tables/userdata, string byte length, else TypeError.
func (s *State) opLen(base int, a, b int32) error {
	v := s.stack[base+int(b)]
	if fn := s.getMethod(v, MMLen); !fn.IsNil() {
		r, err := s.callMethod(fn, v)
		if err != nil {
			return err
		}
		s.stack[base+int(a)] = r
		return nil
	}
	switch v.Type() {
	case rvalue.TString:
		s.stack[base+int(a)] = rvalue.Int(int64(v.AsString().Len()))
		return nil
	case rvalue.TTable:
		s.stack[base+int(a)] = rvalue.Int(v.AsObject().(*rtable.Table).Len())
		return nil
	}
	return s.typeErrorf("attempt to get length of a %s value", v.Type())
}

// incDecLocal adds delta (+1 for OpInc, -1 for OpDec) to register reg.
func (s *State) incDecLocal(base int, reg int32, delta int64) error {
	v := s.stack[base+int(reg)]
	switch v.Type() {
	case rvalue.TInteger:
		s.stack[base+int(reg)] = rvalue.Int(v.AsInt() + delta)
		return nil
	case rvalue.TNumber:
		s.stack[base+int(reg)] = rvalue.Float(v.AsFloat() + float64(delta))
		return nil
	}
	mm := MMAdd
	if delta < 0 {
		mm = MMSub
	}
	one := rvalue.Int(1)
	if fn := s.getMethod(v, mm); !fn.IsNil() {
		r, err := s.callMethod(fn, v, one)
		if err != nil {
			return err
		}
		s.stack[base+int(reg)] = r
		return nil
	}
	return s.typeErrorf("attempt to perform arithmetic on a %s value", v.Type())
}

func (s *State) incDecUpval(cl *closure.Closure, idx int32, delta int64) error {
	uv := cl.Upvalues[idx]
	v := uv.Get()
	switch v.Type() {
	case rvalue.TInteger:
		uv.Set(rvalue.Int(v.AsInt() + delta))
		return nil
	case rvalue.TNumber:
		uv.Set(rvalue.Float(v.AsFloat() + float64(delta)))
		return nil
	}
	mm := MMAdd
	if delta < 0 {
		mm = MMSub
	}
	if fn := s.getMethod(v, mm); !fn.IsNil() {
		r, err := s.callMethod(fn, v, rvalue.Int(1))
		if err != nil {
			return err
		}
		uv.Set(r)
		s.barrierVal(uv, r)
		return nil
	}
	return s.typeErrorf("attempt to perform arithmetic on a %s value", v.Type())
}

// incDecGlobal implements INC/DEC's global-name variant: looked up and
// written back into the globals table directly, raising TypeError
// ("attempt to perform arithmetic on a nil value") when the name is unset —
// matching vm_arithmetic.hpp's handler_inc_global/handler_dec_global.
func (s *State) incDecGlobal(name rvalue.Value, delta int64) error {
	v := s.globals.RawGet(name)
	switch v.Type() {
	case rvalue.TInteger:
		s.globals.RawSet(name, rvalue.Int(v.AsInt()+delta))
		return nil
	case rvalue.TNumber:
		s.globals.RawSet(name, rvalue.Float(v.AsFloat()+float64(delta)))
		return nil
	case rvalue.TNil:
		return s.typeErrorf("attempt to perform arithmetic on a nil value")
	}
	mm := MMAdd
	if delta < 0 {
		mm = MMSub
	}
	if fn := s.getMethod(v, mm); !fn.IsNil() {
		r, err := s.callMethod(fn, v, rvalue.Int(1))
		if err != nil {
			return err
		}
		s.globals.RawSet(name, r)
		s.barrierVal(s.globals, r)
		return nil
	}
	return s.typeErrorf("attempt to perform arithmetic on a %s value", v.Type())
}
