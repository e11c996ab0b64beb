package vm

import "github.com/behl-lang/behl-sub001/internal/rvalue"

// sameMethod reports whether both values carry the identical __eq function
// (by closure/cfunction identity), the strict condition spec.md §4.1
// requires before __eq is consulted at all.
func (s *State) sameMethod(a, b rvalue.Value, mm MetaMethod) (rvalue.Value, bool) {
	if !a.Type().IsTableLike() || !b.Type().IsTableLike() {
		return rvalue.Nil, false
	}
	ma := s.getMethod(a, mm)
	mb := s.getMethod(b, mm)
	if ma.IsNil() || mb.IsNil() {
		return rvalue.Nil, false
	}
	if !rvalue.RawEqual(ma, mb) {
		return rvalue.Nil, false
	}
	return ma, true
}

// equal implements `==`: __eq only fires when both operands are table-like
// and carry the same __eq function (by identity); otherwise raw equality
// (identity for tables/userdata/closures) applies.
func (s *State) equal(a, b rvalue.Value) (bool, error) {
	if fn, ok := s.sameMethod(a, b, MMEq); ok {
		r, err := s.callMethod(fn, a, b)
		if err != nil {
			return false, err
		}
		return r.Truthy(), nil
	}
	return rvalue.RawEqual(a, b), nil
}

// less implements `<`: raw ordering (number/number or string/string pairs)
// is tried first, per spec.md §3; either side's __lt is consulted only when
// raw comparison doesn't apply, else it's a TypeError.
func (s *State) less(a, b rvalue.Value) (bool, error) {
	if r, ok := rvalue.RawLess(a, b); ok {
		return r, nil
	}
	if fn := s.getMethod(a, MMLt); !fn.IsNil() {
		r, err := s.callMethod(fn, a, b)
		if err != nil {
			return false, err
		}
		return r.Truthy(), nil
	}
	if fn := s.getMethod(b, MMLt); !fn.IsNil() {
		r, err := s.callMethod(fn, a, b)
		if err != nil {
			return false, err
		}
		return r.Truthy(), nil
	}
	return false, s.typeErrorf("attempt to compare %s with %s", a.Type(), b.Type())
}

func (s *State) lessEqual(a, b rvalue.Value) (bool, error) {
	if r, ok := rvalue.RawLessEqual(a, b); ok {
		return r, nil
	}
	if fn := s.getMethod(a, MMLe); !fn.IsNil() {
		r, err := s.callMethod(fn, a, b)
		if err != nil {
			return false, err
		}
		return r.Truthy(), nil
	}
	if fn := s.getMethod(b, MMLe); !fn.IsNil() {
		r, err := s.callMethod(fn, a, b)
		if err != nil {
			return false, err
		}
		return r.Truthy(), nil
	}
	return false, s.typeErrorf("attempt to compare %s with %s", a.Type(), b.Type())
}
