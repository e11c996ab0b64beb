package vm

import (
	"github.com/behl-lang/behl-sub001/internal/closure"
	"github.com/behl-lang/behl-sub001/internal/rtable"
	"github.com/behl-lang/behl-sub001/internal/rvalue"
	"github.com/behl-lang/behl-sub001/internal/userdata"
)

// currentBase/currentTop report the addressing frame a Stack API call
// resolves indices against: the topmost frame, whether it's a native
// CFunction's frame or (when called directly by the host, outside any
// callback) the whole value stack.
func (s *State) currentBase() int {
	if len(s.frames) == 0 {
		return 0
	}
	return s.frames[len(s.frames)-1].Base
}

func (s *State) currentTop() int {
	if len(s.frames) == 0 {
		return len(s.stack)
	}
	return len(s.stack)
}

// resolve implements spec.md §4.6's dual indexing convention: negative
// indices count back from the top (-1 is the topmost value), non-negative
// indices count forward from the current frame's base.
func (s *State) resolve(idx int) int {
	if idx < 0 {
		return s.currentTop() + idx
	}
	return s.currentBase() + idx
}

// Push* ----------------------------------------------------------------

func (s *State) PushNil()        { s.stack = append(s.stack, rvalue.Nil) }
func (s *State) PushBool(b bool) { s.stack = append(s.stack, rvalue.Bool(b)) }
func (s *State) PushInt(i int64) { s.stack = append(s.stack, rvalue.Int(i)) }
func (s *State) PushFloat(f float64) { s.stack = append(s.stack, rvalue.Float(f)) }

// PushString copies b into a new GC string and pushes it.
func (s *State) PushString(b []byte) error {
	str, err := s.NewString(b)
	if err != nil {
		return err
	}
	s.stack = append(s.stack, rvalue.Str(str))
	return nil
}

func (s *State) PushCFunction(fn CFunction) {
	s.stack = append(s.stack, rvalue.CFunc(fn))
}

func (s *State) PushTable(t *rtable.Table) {
	s.stack = append(s.stack, rvalue.GCVal(rvalue.TTable, t))
}

func (s *State) PushClosure(cl *closure.Closure) {
	s.stack = append(s.stack, rvalue.GCVal(rvalue.TClosure, cl))
}

// PushUserdata allocates a new userdata wrapping payload and pushes it,
// matching spec.md §4.6's "push-userdata (allocate N bytes, return
// pointer)" — behl's GC tracks Go allocations by an estimated byte count
// rather than a raw pointer; NewUserdata charges a fixed estimate, so there
// is no size argument.
func (s *State) PushUserdata(uid uint32, payload any) (*userdata.Userdata, error) {
	ud, err := s.NewUserdata(uid, payload)
	if err != nil {
		return nil, err
	}
	s.stack = append(s.stack, rvalue.GCVal(rvalue.TUserdata, ud))
	return ud, nil
}

func (s *State) PushValue(v rvalue.Value) { s.stack = append(s.stack, v) }

// Pop ----------------------------------------------------------------

// Pop discards the top n values.
func (s *State) Pop(n int) {
	top := len(s.stack) - n
	if top < 0 {
		top = 0
	}
	s.truncateStack(top)
}

// SetTop grows (nil-filling) or truncates the stack to exactly n values
// above the current frame's base.
func (s *State) SetTop(n int) {
	s.truncateStack(s.currentBase())
	s.ensureStack(s.currentBase() + n)
}

// Dup pushes a copy of the value at idx.
func (s *State) Dup(idx int) {
	s.stack = append(s.stack, s.Get(idx))
}

// Get returns the value at idx without removing it. Out-of-range idx
// returns Nil (matching to-X's "no such register" contract rather than
// panicking a host callback).
func (s *State) Get(idx int) rvalue.Value {
	i := s.resolve(idx)
	if i < 0 || i >= len(s.stack) {
		return rvalue.Nil
	}
	return s.stack[i]
}

// Set overwrites the value at idx, growing the stack if needed.
func (s *State) Set(idx int, v rvalue.Value) {
	i := s.resolve(idx)
	s.ensureStack(i + 1)
	s.stack[i] = v
}

// TypeAt reports the Type at idx (TNil if out of range).
func (s *State) TypeAt(idx int) rvalue.Type { return s.Get(idx).Type() }

// To-X ----------------------------------------------------------------

func (s *State) ToBool(idx int) bool { return s.Get(idx).Truthy() }

func (s *State) ToInt(idx int) (int64, bool) {
	v := s.Get(idx)
	switch v.Type() {
	case rvalue.TInteger:
		return v.AsInt(), true
	case rvalue.TNumber:
		return int64(v.AsFloat()), true
	}
	return 0, false
}

func (s *State) ToFloat(idx int) (float64, bool) {
	v := s.Get(idx)
	if v.IsNumber() {
		return v.NumericFloat(), true
	}
	return 0, false
}

func (s *State) ToString(idx int) (string, bool) {
	v := s.Get(idx)
	if v.Type() != rvalue.TString {
		return "", false
	}
	return v.AsString().String(), true
}

func (s *State) ToTable(idx int) (*rtable.Table, bool) {
	v := s.Get(idx)
	if v.Type() != rvalue.TTable {
		return nil, false
	}
	return v.AsObject().(*rtable.Table), true
}

func (s *State) ToUserdata(idx int) (*userdata.Userdata, bool) {
	v := s.Get(idx)
	if v.Type() != rvalue.TUserdata {
		return nil, false
	}
	return v.AsObject().(*userdata.Userdata), true
}

// Check*/Opt* ----------------------------------------------------------

func (s *State) CheckInt(idx int) (int64, error) {
	v, ok := s.ToInt(idx)
	if !ok {
		return 0, s.typeErrorf("bad argument #%d (number expected, got %s)", idx, s.Get(idx).Type())
	}
	return v, nil
}

func (s *State) OptInt(idx int, def int64) int64 {
	if s.Get(idx).IsNil() {
		return def
	}
	v, ok := s.ToInt(idx)
	if !ok {
		return def
	}
	return v
}

func (s *State) CheckFloat(idx int) (float64, error) {
	v, ok := s.ToFloat(idx)
	if !ok {
		return 0, s.typeErrorf("bad argument #%d (number expected, got %s)", idx, s.Get(idx).Type())
	}
	return v, nil
}

func (s *State) OptFloat(idx int, def float64) float64 {
	if s.Get(idx).IsNil() {
		return def
	}
	v, ok := s.ToFloat(idx)
	if !ok {
		return def
	}
	return v
}

func (s *State) CheckString(idx int) (string, error) {
	v, ok := s.ToString(idx)
	if !ok {
		return "", s.typeErrorf("bad argument #%d (string expected, got %s)", idx, s.Get(idx).Type())
	}
	return v, nil
}

func (s *State) OptString(idx int, def string) string {
	if s.Get(idx).IsNil() {
		return def
	}
	v, ok := s.ToString(idx)
	if !ok {
		return def
	}
	return v
}

func (s *State) CheckTable(idx int) (*rtable.Table, error) {
	t, ok := s.ToTable(idx)
	if !ok {
		return nil, s.typeErrorf("bad argument #%d (table expected, got %s)", idx, s.Get(idx).Type())
	}
	return t, nil
}

// Raw table access, iteration, length --------------------------------

func (s *State) RawGet(t *rtable.Table, key rvalue.Value) rvalue.Value { return t.RawGet(key) }
func (s *State) RawSet(t *rtable.Table, key, val rvalue.Value)          { t.RawSet(key, val) }

func (s *State) Next(t *rtable.Table, key rvalue.Value) (rvalue.Value, rvalue.Value, bool) {
	return t.Next(key)
}

// Len implements `len(idx)`: consults __len before falling back to raw
// table/string length.
func (s *State) Len(idx int) (int64, error) {
	v := s.Get(idx)
	if fn := s.getMethod(v, MMLen); !fn.IsNil() {
		r, err := s.callMethod(fn, v)
		if err != nil {
			return 0, err
		}
		if r.Type() == rvalue.TInteger {
			return r.AsInt(), nil
		}
		return 0, s.typeErrorf("'__len' must return an integer")
	}
	switch v.Type() {
	case rvalue.TString:
		return int64(v.AsString().Len()), nil
	case rvalue.TTable:
		return v.AsObject().(*rtable.Table).Len(), nil
	}
	return 0, s.typeErrorf("attempt to get length of a %s value", v.Type())
}

// ToStringMeta implements tostring(v): consults __tostring, else formats
// the primitive directly, matching vm_detail.hpp's vm_tostring.
func (s *State) ToStringMeta(v rvalue.Value) (string, error) {
	if fn := s.getMethod(v, MMToString); !fn.IsNil() {
		r, err := s.callMethod(fn, v)
		if err != nil {
			return "", err
		}
		if r.Type() != rvalue.TString {
			return "", s.typeErrorf("'__tostring' must return a string")
		}
		return r.AsString().String(), nil
	}
	return rvalue.RawToString(v), nil
}

// Globals --------------------------------------------------------------

func (s *State) SetGlobal(name string, v rvalue.Value) error {
	key, err := s.NewString([]byte(name))
	if err != nil {
		return err
	}
	s.globals.RawSet(rvalue.Str(key), v)
	s.barrier(s.globals, key)
	s.barrierVal(s.globals, v)
	return nil
}

func (s *State) GetGlobal(name string) rvalue.Value {
	key := rvalue.NewRString([]byte(name))
	return s.globals.RawGet(rvalue.Str(key))
}

// Metatables -------------------------------------------------------------

func (s *State) SetMetatable(idx int, mt *rtable.Table) error {
	v := s.Get(idx)
	switch v.Type() {
	case rvalue.TTable:
		t := v.AsObject().(*rtable.Table)
		t.Metatable = metatableValue(mt)
		if mt != nil {
			s.barrier(t, mt)
		}
		return nil
	case rvalue.TUserdata:
		u := v.AsObject().(*userdata.Userdata)
		u.Metatable = metatableValue(mt)
		if mt != nil {
			s.barrier(u, mt)
		}
		return nil
	}
	return s.typeErrorf("attempt to set metatable on a %s value", v.Type())
}

func metatableValue(mt *rtable.Table) rvalue.Value {
	if mt == nil {
		return rvalue.Nil
	}
	return rvalue.GCVal(rvalue.TTable, mt)
}

func (s *State) GetMetatable(idx int) *rtable.Table {
	return s.metatableOf(s.Get(idx))
}

// RaiseError implements the Stack API's "raise-error from within a C
// callback" entry: a CFunction returns this error from its signature
// directly; RaiseError exists for callbacks that build the error message
// from stack contents rather than a literal format string.
func (s *State) RaiseError(format string, args ...any) error {
	return s.runtimeErrorf(format, args...)
}

// CallTop implements the Stack API's call(nargs, nresults): the function
// and its nargs arguments must already be the top nargs+1 values on the
// stack; results replace them in place.
func (s *State) CallTop(nargs, nresults int) error {
	base := len(s.stack) - nargs - 1
	if base < 0 {
		return s.runtimeErrorf("call: not enough values on stack")
	}
	return s.call(base, nargs, nresults)
}

// Pin / PinnedPush / Unpin ----------------------------------------------

// Pin pops the top-of-stack value and returns a handle the host can use to
// retain it past the callback's return, recycling freed handle slots
// (api_pin.cpp's pin/unpin).
func (s *State) Pin() int {
	top := len(s.stack) - 1
	v := s.stack[top]
	s.truncateStack(top)

	if n := len(s.pinnedFree); n > 0 {
		h := s.pinnedFree[n-1]
		s.pinnedFree = s.pinnedFree[:n-1]
		s.pinned[h] = v
		return h
	}
	s.pinned = append(s.pinned, v)
	return len(s.pinned) - 1
}

// PinnedPush copies the pinned value for handle back onto the stack.
func (s *State) PinnedPush(handle int) {
	if handle < 0 || handle >= len(s.pinned) {
		s.PushNil()
		return
	}
	s.stack = append(s.stack, s.pinned[handle])
}

// Unpin invalidates handle, recycling its slot once the free-list has
// accumulated enough holes to be worth compacting from the tail, matching
// api_pin.cpp's unpin.
func (s *State) Unpin(handle int) {
	if handle < 0 || handle >= len(s.pinned) {
		return
	}
	if handle == len(s.pinned)-1 {
		s.pinned = s.pinned[:handle]
		for len(s.pinnedFree) > 0 && s.pinnedFree[len(s.pinnedFree)-1] == len(s.pinned)-1 {
			s.pinned = s.pinned[:len(s.pinned)-1]
			s.pinnedFree = s.pinnedFree[:len(s.pinnedFree)-1]
		}
		return
	}
	s.pinned[handle] = rvalue.Nil
	s.pinnedFree = append(s.pinnedFree, handle)
}
