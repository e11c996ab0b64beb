package gcheap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeObj is a minimal heap object for collector tests, optionally pointing
// at one child to exercise TraceChildren/Barrier.
type fakeObj struct {
	Header
	name  string
	child *fakeObj
}

func (f *fakeObj) TraceChildren(mark func(Object)) {
	if f.child != nil {
		mark(f.child)
	}
}

func TestAllocatorReserveRespectsCeiling(t *testing.T) {
	a := NewAllocator(100)
	require.NoError(t, a.Reserve(60))
	require.NoError(t, a.Reserve(40))
	assert.Equal(t, uint64(100), a.Live())

	err := a.Reserve(1)
	assert.ErrorIs(t, err, ErrMemoryCeiling)
}

func TestAllocatorReleaseReducesLive(t *testing.T) {
	a := NewAllocator(0)
	require.NoError(t, a.Reserve(50))
	a.Release(20)
	assert.Equal(t, uint64(30), a.Live())
	assert.Equal(t, uint64(50), a.Total(), "Total is lifetime, not reduced by Release")
}

func TestAllocatorDefaultCeiling(t *testing.T) {
	a := NewAllocator(0)
	assert.Equal(t, DefaultMemoryCeiling, a.Ceiling())
}

func TestPoolPutGetLIFO(t *testing.T) {
	p := NewPool(KindTable, 2)
	a, b := &fakeObj{}, &fakeObj{}
	p.Put(a)
	p.Put(b)

	got, ok := p.Get()
	require.True(t, ok)
	assert.Same(t, b, got)

	hits, misses, reclaimed := p.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(0), misses)
	assert.Equal(t, uint64(2), reclaimed)
}

func TestPoolGetEmptyCountsMiss(t *testing.T) {
	p := NewPool(KindString, 0)
	_, ok := p.Get()
	assert.False(t, ok)
	_, misses, _ := p.Stats()
	assert.Equal(t, uint64(1), misses)
}

func TestPoolRespectsLimit(t *testing.T) {
	p := NewPool(KindTable, 1)
	p.Put(&fakeObj{})
	p.Put(&fakeObj{}) // dropped, pool already at limit
	assert.Equal(t, 1, p.Len())
}

func TestCollectorCollectReclaimsUnreachable(t *testing.T) {
	alloc := NewAllocator(0)
	var root *fakeObj
	c := NewCollector(alloc, func(mark func(Object)) {
		if root != nil {
			mark(root)
		}
	})

	root = &fakeObj{name: "root"}
	root.Kind = KindTable
	require.NoError(t, c.Register(root, 16))

	garbage := &fakeObj{name: "garbage"}
	garbage.Kind = KindTable
	require.NoError(t, c.Register(garbage, 16))

	c.Collect()

	pool := c.Pool(KindTable)
	assert.Equal(t, 1, pool.Len(), "only the unreachable object is pooled")
	assert.Equal(t, White, root.Color, "survivors are reset to white for the next cycle")
}

func TestCollectorBarrierGraysWhiteChildOfBlackParent(t *testing.T) {
	alloc := NewAllocator(0)
	c := NewCollector(alloc, func(mark func(Object)) {})
	c.phase = PhaseMarking

	parent := &fakeObj{}
	parent.Color = Black
	child := &fakeObj{}
	child.Color = White

	c.Barrier(parent, child)
	assert.Equal(t, Gray, child.Color)
}

func TestCollectorBarrierNoopOutsideMarking(t *testing.T) {
	alloc := NewAllocator(0)
	c := NewCollector(alloc, func(mark func(Object)) {})

	parent := &fakeObj{}
	parent.Color = Black
	child := &fakeObj{}
	child.Color = White

	c.Barrier(parent, child)
	assert.Equal(t, White, child.Color, "no barrier work outside the marking phase")
}

func TestCollectorRegisterDuringMarkAllocatesBlack(t *testing.T) {
	alloc := NewAllocator(0)
	c := NewCollector(alloc, func(mark func(Object)) {})
	c.phase = PhaseMarking

	o := &fakeObj{}
	require.NoError(t, c.Register(o, 8))
	assert.Equal(t, Black, o.Color)
}

func TestCollectorTraceChildrenReachableThroughMark(t *testing.T) {
	alloc := NewAllocator(0)
	parent := &fakeObj{name: "parent"}
	parent.Kind = KindTable
	child := &fakeObj{name: "child"}
	child.Kind = KindTable
	parent.child = child

	c := NewCollector(alloc, func(mark func(Object)) {
		mark(parent)
	})
	require.NoError(t, c.Register(parent, 8))
	require.NoError(t, c.Register(child, 8))

	c.Collect()

	assert.Equal(t, White, parent.Color)
	assert.Equal(t, White, child.Color, "child reachable via TraceChildren survives")
	assert.Equal(t, 0, c.Pool(KindTable).Len())
}
