// Package rtable implements behl's hybrid array+hash Table: a dense slice
// for small non-negative integer keys plus a SwissTable-backed hash part
// for everything else, following original_source/src/common/hash_map.hpp's
// control-byte/h2 scheme (delegated to github.com/dolthub/swiss rather than
// hand-rolled — see DESIGN.md) and original_source/src/libs/lib_table.cpp
// for the rawget/rawset/length/iteration contract.
package rtable

import (
	"math"

	"github.com/dolthub/swiss"

	"github.com/behl-lang/behl-sub001/internal/gcheap"
	"github.com/behl-lang/behl-sub001/internal/rvalue"
)

// arrayAdmitExtra is the fixed "+64" constant from spec.md §3's array
// admission heuristic (SPEC_FULL.md §4 Open Question #3: kept literal, not
// made configurable).
const arrayAdmitExtra = 64

// HKey is the canonical, comparable key used by the hash part. Value keys
// are normalized into this form (float/int coercion, string-by-content, GC
// objects by identity) before ever reaching the swiss.Map, so Go's built-in
// == agrees with behl's RawEqual for every key that lands here.
type HKey struct {
	tag rvalue.Type
	i   int64
	s   string
	ptr any
}

func keyOf(v rvalue.Value) (HKey, bool) {
	switch v.Type() {
	case rvalue.TInteger:
		return HKey{tag: rvalue.TInteger, i: v.AsInt()}, true
	case rvalue.TNumber:
		f := v.AsFloat()
		if f != f { // NaN
			return HKey{}, false
		}
		if i := int64(f); float64(i) == f {
			// Open Question #2: 2.0 aliases integer key 2.
			return HKey{tag: rvalue.TInteger, i: i}, true
		}
		return HKey{tag: rvalue.TNumber, i: int64(math.Float64bits(f))}, true
	case rvalue.TString:
		return HKey{tag: rvalue.TString, s: v.AsString().String()}, true
	case rvalue.TBoolean:
		return HKey{tag: rvalue.TBoolean, i: boolInt(v.AsBool())}, true
	case rvalue.TNil, rvalue.TNullOpt:
		return HKey{}, false
	case rvalue.TCFunction:
		return HKey{tag: rvalue.TCFunction, ptr: v.AsAny()}, true
	default:
		return HKey{tag: v.Type(), ptr: v.Ref()}, true
	}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// entry tracks a hash-part slot's liveness for stable-order `next`
// iteration (spec.md §4.2: "stable across non-rehashing inserts").
type entry struct {
	key   HKey
	value rvalue.Value
	live  bool
}

// Table is behl's table value.
type Table struct {
	gcheap.Header

	arr []rvalue.Value // dense array part, 0-based (matches lib_table.cpp's [0, len) convention)

	hash  *swiss.Map[HKey, int] // key -> index into order
	order []entry               // insertion-ordered hash entries, tombstoned in place on delete

	Metatable rvalue.Value
	Name      string
}

// New constructs an empty table.
func New() *Table {
	t := &Table{hash: swiss.NewMap[HKey, int](8)}
	t.Header.Kind = gcheap.KindTable
	return t
}

// admitsArray reports whether integer key i belongs in the array part given
// the array's current length.
func (t *Table) admitsArray(i int64) bool {
	return i >= 0 && i < int64(len(t.arr))+arrayAdmitExtra
}

// RawGet implements table_rawget: no metamethod dispatch.
func (t *Table) RawGet(key rvalue.Value) rvalue.Value {
	if key.Type() == rvalue.TInteger || key.Type() == rvalue.TNumber {
		if k, ok := keyOf(key); ok && k.tag == rvalue.TInteger && t.admitsArray(k.i) {
			if int(k.i) < len(t.arr) {
				return t.arr[k.i]
			}
			return rvalue.Nil
		}
	}
	k, ok := keyOf(key)
	if !ok {
		return rvalue.Nil
	}
	idx, ok := t.hash.Get(k)
	if !ok || !t.order[idx].live {
		return rvalue.Nil
	}
	return t.order[idx].value
}

// RawSet implements table_rawset: nil value deletes the key, matching
// lib_table.cpp/spec.md §4.2.
func (t *Table) RawSet(key, value rvalue.Value) {
	k, ok := keyOf(key)
	if !ok {
		return // nil/NaN keys are silently rejected at this layer; vm/ raises TypeError
	}

	if k.tag == rvalue.TInteger && t.admitsArray(k.i) {
		t.setArray(int(k.i), value)
		return
	}

	if value.IsNil() {
		if idx, ok := t.hash.Get(k); ok {
			t.order[idx].live = false
			t.order[idx].value = rvalue.Nil
			t.hash.Delete(k)
		}
		return
	}

	if idx, ok := t.hash.Get(k); ok {
		t.order[idx].value = value
		t.order[idx].live = true
		return
	}

	idx := len(t.order)
	t.order = append(t.order, entry{key: k, value: value, live: true})
	t.hash.Put(k, idx)
}

func (t *Table) setArray(i int, value rvalue.Value) {
	if i < len(t.arr) {
		t.arr[i] = value
		return
	}
	if value.IsNil() {
		return // setting a nil past the end is a no-op, no growth needed
	}
	for len(t.arr) < i {
		t.arr = append(t.arr, rvalue.Nil)
	}
	t.arr = append(t.arr, value)
	t.absorbFromHash()
}

// absorbFromHash migrates any hash-part integer keys that now fall inside
// the (grown) array admission window, matching the original's behavior of
// re-homing keys as the array part grows.
func (t *Table) absorbFromHash() {
	for {
		next := int64(len(t.arr))
		if !t.admitsArray(next) {
			return
		}
		k := HKey{tag: rvalue.TInteger, i: next}
		idx, ok := t.hash.Get(k)
		if !ok || !t.order[idx].live {
			return
		}
		v := t.order[idx].value
		t.order[idx].live = false
		t.hash.Delete(k)
		t.arr = append(t.arr, v)
	}
}

// Len implements the `#` length operator: a binary search for a border
// (index n where t[n] ~= nil and t[n+1] == nil) across the dense array
// prefix, per spec.md §3's "length-by-binary-search" note. Any border is a
// legal answer when the array part has interior holes (the arrayAdmitExtra
// sparse-admission window can create them), so the search must run even
// when the last slot happens to be non-nil.
func (t *Table) Len() int64 {
	n := len(t.arr)
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		if t.arr[mid].IsNil() {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return int64(lo)
}

// Next implements stateless iteration: given a key (Nil to start), returns
// the following (key, value, ok). Array part is exhausted before the hash
// part, matching SPEC_FULL.md's array-then-hash order.
func (t *Table) Next(key rvalue.Value) (rvalue.Value, rvalue.Value, bool) {
	if key.IsNil() {
		if nk, nv, ok := t.nextArray(-1); ok {
			return nk, nv, true
		}
		return t.nextHash(-1)
	}

	if k, ok := keyOf(key); ok && k.tag == rvalue.TInteger && k.i >= 0 && int(k.i) < len(t.arr) {
		if nk, nv, ok := t.nextArray(int(k.i)); ok {
			return nk, nv, true
		}
		return t.nextHash(-1)
	}

	if k, ok := keyOf(key); ok {
		if idx, ok := t.hash.Get(k); ok {
			return t.nextHash(idx)
		}
	}
	return rvalue.Nil, rvalue.Nil, false
}

func (t *Table) nextArray(after int) (rvalue.Value, rvalue.Value, bool) {
	for i := after + 1; i < len(t.arr); i++ {
		if !t.arr[i].IsNil() {
			return rvalue.Int(int64(i)), t.arr[i], true
		}
	}
	return rvalue.Nil, rvalue.Nil, false
}

func (t *Table) nextHash(after int) (rvalue.Value, rvalue.Value, bool) {
	for i := after + 1; i < len(t.order); i++ {
		if t.order[i].live {
			return keyToValue(t.order[i].key), t.order[i].value, true
		}
	}
	return rvalue.Nil, rvalue.Nil, false
}

func keyToValue(k HKey) rvalue.Value {
	switch k.tag {
	case rvalue.TInteger:
		return rvalue.Int(k.i)
	case rvalue.TNumber:
		return rvalue.Float(math.Float64frombits(uint64(k.i)))
	case rvalue.TString:
		return rvalue.Str(rvalue.NewRString([]byte(k.s)))
	case rvalue.TBoolean:
		return rvalue.Bool(k.i != 0)
	case rvalue.TCFunction:
		return rvalue.CFunc(k.ptr)
	default:
		if o, ok := k.ptr.(gcheap.Object); ok {
			return rvalue.GCVal(k.tag, o)
		}
		return rvalue.Nil
	}
}

// TraceChildren satisfies gcheap.Tracer: every array slot, every live hash
// value and key (for GC-identity keys), and the metatable are reachable
// children.
func (t *Table) TraceChildren(mark func(gcheap.Object)) {
	for _, v := range t.arr {
		if r := v.Ref(); r != nil {
			mark(r)
		}
	}
	for _, e := range t.order {
		if !e.live {
			continue
		}
		if r := e.value.Ref(); r != nil {
			mark(r)
		}
		if e.key.ptr != nil {
			if o, ok := e.key.ptr.(gcheap.Object); ok {
				mark(o)
			}
		}
	}
	if r := t.Metatable.Ref(); r != nil {
		mark(r)
	}
}

// HasFinalizer always reports false, even when the metatable declares __gc:
// only userdata (see internal/userdata) are queued for finalization, though
// sweep checks both through the same gcheap.Finalizable interface.
func (t *Table) HasFinalizer() bool { return false }
