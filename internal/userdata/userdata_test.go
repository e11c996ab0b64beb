package userdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behl-lang/behl-sub001/internal/gcheap"
	"github.com/behl-lang/behl-sub001/internal/rtable"
	"github.com/behl-lang/behl-sub001/internal/rvalue"
)

func TestMakeUIDStableAndDistinct(t *testing.T) {
	a := MakeUID("behl.File")
	b := MakeUID("behl.File")
	c := MakeUID("behl.Socket")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestNewWrapsPayload(t *testing.T) {
	u := New(MakeUID("behl.File"), 42)
	assert.Equal(t, 42, u.Payload)
}

func TestHasFinalizerBeforeAndAfterRun(t *testing.T) {
	u := New(0, nil)
	assert.False(t, u.HasFinalizer())

	var ran bool
	u.SetFinalizer(func(*Userdata) { ran = true })
	assert.True(t, u.HasFinalizer())

	u.RunFinalizer()
	assert.True(t, ran)
	assert.False(t, u.HasFinalizer(), "finalizer must not run twice")
}

func TestRunFinalizerIdempotent(t *testing.T) {
	u := New(0, nil)
	var calls int
	u.SetFinalizer(func(*Userdata) { calls++ })
	u.RunFinalizer()
	u.RunFinalizer()
	assert.Equal(t, 1, calls)
}

func TestHasFinalizerFromGCMetamethod(t *testing.T) {
	u := New(0, nil)
	assert.False(t, u.HasFinalizer())

	mt := rtable.New()
	gcFn := rvalue.CFunc(func() {})
	mt.RawSet(rvalue.Str(rvalue.NewRString([]byte("__gc"))), gcFn)
	u.Metatable = rvalue.GCVal(rvalue.TTable, mt)

	assert.True(t, u.HasFinalizer(), "a __gc metatable entry alone must queue the object for finalization")
	assert.False(t, u.GCMethod().IsNil())

	u.MarkFinalized()
	assert.False(t, u.HasFinalizer(), "MarkFinalized must stop HasFinalizer from requeuing it")
}

func TestTraceChildrenMarksMetatable(t *testing.T) {
	u := New(0, nil)
	mt := rtable.New()
	u.Metatable = rvalue.GCVal(rvalue.TTable, mt)

	var marked []gcheap.Object
	u.TraceChildren(func(o gcheap.Object) { marked = append(marked, o) })

	require.Len(t, marked, 1)
	assert.Same(t, mt, marked[0])
}

func TestTraceChildrenNoMetatable(t *testing.T) {
	u := New(0, nil)
	var marked []gcheap.Object
	u.TraceChildren(func(o gcheap.Object) { marked = append(marked, o) })
	assert.Empty(t, marked)
}
