package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behl-lang/behl-sub001/internal/rvalue"
)

// TestCollectReclaimsTableCycle builds two tables that reference each other
// (t1.peer = t2, t2.peer = t1) entirely through the Stack API/VM heap
// constructors, not synthetic gcheap.Object stand-ins, then drops the only
// external root and checks Collect() reclaims both — a cycle a naive
// refcounting scheme would leak, which is the whole reason spec.md §4.5
// calls for mark/sweep.
func TestCollectReclaimsTableCycle(t *testing.T) {
	s := newTestState()

	t1, err := s.NewTable()
	require.NoError(t, err)
	t2, err := s.NewTable()
	require.NoError(t, err)

	kPeer := rvalue.Str(rvalue.NewRString([]byte("peer")))
	t1.RawSet(kPeer, rvalue.GCVal(rvalue.TTable, t2))
	t2.RawSet(kPeer, rvalue.GCVal(rvalue.TTable, t1))

	require.NoError(t, s.SetGlobal("root", rvalue.GCVal(rvalue.TTable, t1)))
	s.Collect()
	liveWithRoot := s.Allocator().Live()

	require.NoError(t, s.SetGlobal("root", rvalue.Nil))
	s.Collect()
	liveAfterDrop := s.Allocator().Live()

	assert.Less(t, liveAfterDrop, liveWithRoot, "mutually referencing tables must be reclaimed once unreachable from any root")
}

// TestCollectAfterDroppingTableHeldClosure stores a closure (its upvalue
// slots cleared) in a table reachable only through a global, drops that
// global and runs Collect; it then checks that allocating after the sweep
// still succeeds.
func TestCollectAfterDroppingTableHeldClosure(t *testing.T) {
	s := newTestState()

	tbl, err := s.NewTable()
	require.NoError(t, err)
	tblVal := rvalue.GCVal(rvalue.TTable, tbl)
	require.NoError(t, s.SetGlobal("self_holder", tblVal))

	cl, err := s.NewClosure(buildCallAddProto("unused").Build())
	require.NoError(t, err)
	clVal := rvalue.GCVal(rvalue.TClosure, cl)
	tbl.RawSet(rvalue.Str(rvalue.NewRString([]byte("closure"))), clVal)
	cl.Upvalues = nil // no real upvalues needed; the table->closure edge is the only reference under test

	require.NoError(t, s.SetGlobal("self_holder", rvalue.Nil))
	s.Collect()

	// Allocating fresh objects after the sweep must not collide with or
	// resurrect the reclaimed ones; this is mostly a smoke check that the
	// collector's free-list/pool bookkeeping stayed consistent.
	fresh, err := s.NewTable()
	require.NoError(t, err)
	assert.NotNil(t, fresh)
}
