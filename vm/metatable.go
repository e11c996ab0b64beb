package vm

import (
	"github.com/behl-lang/behl-sub001/internal/rtable"
	"github.com/behl-lang/behl-sub001/internal/rvalue"
	"github.com/behl-lang/behl-sub001/internal/userdata"
)

// MetaMethod names one of the operator-overload slots a metatable may fill,
// per spec.md §4.1's list (__add, __sub, ..., __gc).
type MetaMethod string

const (
	MMAdd      MetaMethod = "__add"
	MMSub      MetaMethod = "__sub"
	MMMul      MetaMethod = "__mul"
	MMDiv      MetaMethod = "__div"
	MMMod      MetaMethod = "__mod"
	MMPow      MetaMethod = "__pow"
	MMUnm      MetaMethod = "__unm"
	MMBAnd     MetaMethod = "__band"
	MMBOr      MetaMethod = "__bor"
	MMBXor     MetaMethod = "__bxor"
	MMShl      MetaMethod = "__shl"
	MMShr      MetaMethod = "__shr"
	MMBNot     MetaMethod = "__bnot"
	MMConcat   MetaMethod = "__concat"
	MMEq       MetaMethod = "__eq"
	MMLt       MetaMethod = "__lt"
	MMLe       MetaMethod = "__le"
	MMLen      MetaMethod = "__len"
	MMIndex    MetaMethod = "__index"
	MMNewIndex MetaMethod = "__newindex"
	MMCall     MetaMethod = "__call"
	MMToString MetaMethod = "__tostring"
	MMGC       MetaMethod = "__gc"
)

// maxIndexChainDepth bounds __index/__newindex recursion (spec.md §4.2:
// "recurse (bounded depth; implementations may cap to prevent infinite
// cycles)"), matching the original's metatable chain walk without a
// native-stack recursion limit backing it.
const maxIndexChainDepth = 100

// metatableOf returns v's metatable table, consulting the per-type registry
// for types that can't carry their own (strings, numbers, booleans) and the
// object's own Metatable field for tables/userdata.
func (s *State) metatableOf(v rvalue.Value) *rtable.Table {
	switch v.Type() {
	case rvalue.TTable:
		t := v.AsObject().(*rtable.Table)
		if t.Metatable.IsNil() {
			break
		}
		return t.Metatable.AsObject().(*rtable.Table)
	case rvalue.TUserdata:
		u := v.AsObject().(*userdata.Userdata)
		if u.Metatable.IsNil() {
			break
		}
		return u.Metatable.AsObject().(*rtable.Table)
	}
	if mt, ok := s.typeMetatables[v.Type()]; ok {
		return mt
	}
	return nil
}

// SetTypeMetatable installs a shared metatable for every value of the given
// type — the only way non-GC types (numbers, strings, booleans) and
// userdata types acquire operator overloads in bulk, per spec.md §4.6's
// "metatable get/set ... by name registry".
func (s *State) SetTypeMetatable(t rvalue.Type, mt *rtable.Table) {
	s.typeMetatables[t] = mt
}

// TypeMetatable returns the shared metatable for t, or nil.
func (s *State) TypeMetatable(t rvalue.Type) *rtable.Table {
	return s.typeMetatables[t]
}

// getMethod looks up MetaMethod mm on v's metatable and returns it (or Nil
// if absent), matching vm_metatable.hpp's inferred metatable_get_method<MM>.
func (s *State) getMethod(v rvalue.Value, mm MetaMethod) rvalue.Value {
	mt := s.metatableOf(v)
	if mt == nil {
		return rvalue.Nil
	}
	key := rvalue.Str(rvalue.NewRString([]byte(mm)))
	return mt.RawGet(key)
}

// callMethod invokes fn(args...) and returns its first result (or Nil),
// matching metatable_call_method_result — metamethods are called like any
// other script function, through the same call machinery.
func (s *State) callMethod(fn rvalue.Value, args ...rvalue.Value) (rvalue.Value, error) {
	base := len(s.stack)
	s.stack = append(s.stack, fn)
	s.stack = append(s.stack, args...)
	if err := s.call(base, len(args), 1); err != nil {
		return rvalue.Nil, err
	}
	result := rvalue.Nil
	if len(s.stack) > base {
		result = s.stack[base]
	}
	s.stack = s.stack[:base]
	return result, nil
}

// index implements __index resolution: t[key] when t is table-like and the
// raw lookup missed. Follows a chain of table __index metatables (bounded
// depth) or invokes a callable __index with (t, key).
func (s *State) index(t rvalue.Value, key rvalue.Value) (rvalue.Value, error) {
	cur := t
	for depth := 0; depth < maxIndexChainDepth; depth++ {
		if cur.Type() == rvalue.TTable {
			tbl := cur.AsObject().(*rtable.Table)
			if v := tbl.RawGet(key); !v.IsNil() {
				return v, nil
			}
		} else if cur.Type() == rvalue.TUserdata {
			// userdata carries no raw storage of its own; fall straight to __index.
		} else {
			return rvalue.Nil, s.typeErrorf("attempt to index a %s value", cur.Type())
		}

		mm := s.getMethod(cur, MMIndex)
		if mm.IsNil() {
			if cur.Type() == rvalue.TUserdata {
				return rvalue.Nil, nil
			}
			return rvalue.Nil, nil
		}
		if mm.Type().IsCallable() {
			return s.callMethod(mm, cur, key)
		}
		cur = mm // __index is itself a table: recurse into it
	}
	return rvalue.Nil, s.typeErrorf("'__index' chain too long; possible loop")
}

// newindex implements __newindex resolution for assignment to a missing
// key, symmetric with index.
func (s *State) newindex(t rvalue.Value, key, val rvalue.Value) error {
	cur := t
	for depth := 0; depth < maxIndexChainDepth; depth++ {
		if cur.Type() == rvalue.TTable {
			tbl := cur.AsObject().(*rtable.Table)
			if !tbl.RawGet(key).IsNil() {
				tbl.RawSet(key, val)
				s.barrierVal(tbl, key)
				s.barrierVal(tbl, val)
				return nil
			}
		} else if cur.Type() != rvalue.TUserdata {
			return s.typeErrorf("attempt to index a %s value", cur.Type())
		}

		mm := s.getMethod(cur, MMNewIndex)
		if mm.IsNil() {
			if cur.Type() == rvalue.TTable {
				tbl := cur.AsObject().(*rtable.Table)
				tbl.RawSet(key, val)
				s.barrierVal(tbl, key)
				s.barrierVal(tbl, val)
				return nil
			}
			return s.typeErrorf("attempt to index a %s value", cur.Type())
		}
		if mm.Type().IsCallable() {
			_, err := s.callMethod(mm, cur, key, val)
			return err
		}
		cur = mm
	}
	return s.typeErrorf("'__newindex' chain too long; possible loop")
}
