package closure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behl-lang/behl-sub001/internal/gcheap"
	"github.com/behl-lang/behl-sub001/internal/proto"
	"github.com/behl-lang/behl-sub001/internal/rvalue"
	"github.com/behl-lang/behl-sub001/internal/upval"
)

func TestNewAllocatesOneSlotPerUpvalDesc(t *testing.T) {
	p := proto.New("<test>", "f")
	p.Upvalues = []proto.UpvalDesc{{Name: "a", FromParentLocal: true, Index: 0}, {Name: "b"}}

	cl := New(p)
	require.Len(t, cl.Upvalues, 2)
	assert.Nil(t, cl.Upvalues[0], "slots start unfilled until OP_CLOSURE wires them")
	assert.Same(t, p, cl.Proto)
}

func TestTraceChildrenMarksProtoAndUpvalues(t *testing.T) {
	p := proto.New("<test>", "f")
	p.Upvalues = []proto.UpvalDesc{{Name: "a"}}
	cl := New(p)

	stack := []rvalue.Value{rvalue.Int(1)}
	store := upval.NewStore(&stack, nil)
	uv, err := store.FindOrCreate(0)
	require.NoError(t, err)
	cl.Upvalues[0] = uv

	var marked []gcheap.Object
	cl.TraceChildren(func(o gcheap.Object) { marked = append(marked, o) })

	require.Len(t, marked, 2)
	assert.Same(t, p, marked[0])
	assert.Same(t, uv, marked[1])
}

func TestTraceChildrenSkipsNilUpvalueSlots(t *testing.T) {
	p := proto.New("<test>", "f")
	p.Upvalues = []proto.UpvalDesc{{Name: "unfilled"}}
	cl := New(p)

	var marked []gcheap.Object
	cl.TraceChildren(func(o gcheap.Object) { marked = append(marked, o) })

	require.Len(t, marked, 1, "only the proto is marked when the upvalue slot is still nil")
	assert.Same(t, p, marked[0])
}
