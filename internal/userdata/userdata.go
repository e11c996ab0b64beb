// Package userdata implements Userdata, the host-defined opaque value type,
// following original_source/include/behl/types.hpp's make_uid (FNV-1a over
// the type name, used to tag userdata so hosts can type-check their own
// payloads without behl knowing their Go type).
package userdata

import (
	"hash/fnv"

	"github.com/behl-lang/behl-sub001/internal/gcheap"
	"github.com/behl-lang/behl-sub001/internal/rtable"
	"github.com/behl-lang/behl-sub001/internal/rvalue"
)

// gcMetamethodName mirrors vm.MMGC ("__gc") — duplicated here rather than
// imported to avoid a package cycle (vm already imports userdata).
const gcMetamethodName = "__gc"

// MakeUID hashes a host-chosen type name into a stable 32-bit tag, matching
// types.hpp's make_uid (FNV-1a).
func MakeUID(typeName string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(typeName))
	return h.Sum32()
}

// Userdata wraps an opaque host payload plus an optional finalizer,
// reachable from script code only through its metatable's methods.
type Userdata struct {
	gcheap.Header

	UID       uint32
	Payload   any
	Metatable rvalue.Value

	finalizer func(*Userdata)
	finalized bool
}

// New constructs a userdata tagged with uid wrapping payload.
func New(uid uint32, payload any) *Userdata {
	return &Userdata{UID: uid, Payload: payload}
}

// SetFinalizer installs a __gc callback invoked once by the collector
// after this userdata is found unreachable.
func (u *Userdata) SetFinalizer(fn func(*Userdata)) { u.finalizer = fn }

// HasFinalizer satisfies gcheap.Finalizable: true if either a Go-level
// callback was installed via SetFinalizer, or the userdata's metatable
// carries a __gc method — either kind queues this object for finalization
// during sweep.
func (u *Userdata) HasFinalizer() bool {
	if u.finalized {
		return false
	}
	return u.finalizer != nil || !u.GCMethod().IsNil()
}

// RunFinalizer invokes and clears the Go-level finalizer callback (if any);
// idempotent. The __gc metatable method, if present, is invoked separately
// by the VM (vm/state.go's runFinalizers), since calling a script-level
// method requires the VM's call machinery.
func (u *Userdata) RunFinalizer() {
	if u.finalizer == nil || u.finalized {
		return
	}
	u.finalized = true
	u.finalizer(u)
}

// MarkFinalized records that finalization has run, so HasFinalizer never
// requeues this object — used by the VM after invoking the __gc metatable
// method, the counterpart to RunFinalizer's own finalized bookkeeping.
func (u *Userdata) MarkFinalized() { u.finalized = true }

// GCMethod returns the userdata's metatable __gc entry, or Nil if it has no
// metatable or no such entry.
func (u *Userdata) GCMethod() rvalue.Value {
	if u.Metatable.IsNil() {
		return rvalue.Nil
	}
	mt, ok := u.Metatable.AsObject().(*rtable.Table)
	if !ok {
		return rvalue.Nil
	}
	return mt.RawGet(rvalue.Str(rvalue.NewRString([]byte(gcMetamethodName))))
}

// TraceChildren grays the metatable.
func (u *Userdata) TraceChildren(mark func(gcheap.Object)) {
	if r := u.Metatable.Ref(); r != nil {
		mark(r)
	}
}
