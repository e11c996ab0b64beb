package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behl-lang/behl-sub001/internal/asm"
	"github.com/behl-lang/behl-sub001/internal/rvalue"
)

// TestSetListBuildsArrayPart matches spec.md §4.3's SETLIST batching: a
// table constructor with a run of positional fields goes through one
// SETLIST rather than one SetTable per element.
func TestSetListBuildsArrayPart(t *testing.T) {
	s := newTestState()

	b := asm.New("<test>", "build", 0, false)
	b.Reserve(4)
	b.NewTable(1)
	b.LoadInt(2, 10)
	b.LoadInt(3, 20)
	b.LoadInt(4, 30)
	b.SetList(1, 3, 0) // r1[1..3] = r2,r3,r4
	b.Return(1, 1)

	results := runClosure(t, s, b)
	require.Len(t, results, 1)
	tbl := results[0].AsObject().(interface {
		RawGet(rvalue.Value) rvalue.Value
		Len() int64
	})
	assert.Equal(t, int64(3), tbl.Len())
	assert.Equal(t, int64(10), tbl.RawGet(rvalue.Int(1)).AsInt())
	assert.Equal(t, int64(20), tbl.RawGet(rvalue.Int(2)).AsInt())
	assert.Equal(t, int64(30), tbl.RawGet(rvalue.Int(3)).AsInt())
}

// TestGetSetTableCrossesArrayHashBoundary drives the array/hash admission
// boundary (spec.md §3's 64-key window) through the interpreter's own
// SetTable/GetTable opcodes rather than calling into internal/rtable
// directly: a loop assigns keys 0..64, crossing the +64 admission window
// from inside a running closure.
func TestGetSetTableCrossesArrayHashBoundary(t *testing.T) {
	s := newTestState()

	f := asm.New("<test>", "fill", 0, false)
	f.Reserve(7)
	f.NewTable(1)   // r1 = table
	f.LoadInt(2, 0) // r2 = i

	loopStart := f.Here()
	f.LoadInt(3, 65)
	f.Lt(4, 2, 3, false) // r4 = i < 65
	f.Test(4, false)
	jmpEnd := f.Jmp(0)

	f.LoadInt(5, 10)
	f.Mul(6, 2, 5)     // r6 = i*10
	f.SetTable(1, 2, 6) // table[i] = i*10
	f.LoadInt(7, 1)
	f.Add(2, 2, 7) // i = i+1
	backJmp := f.Jmp(0)
	f.Patch(backJmp, loopStart)

	endLabel := f.Here()
	f.Patch(jmpEnd, endLabel)
	f.Return(1, 1)

	results := runClosure(t, s, f)
	require.Len(t, results, 1)
	tbl, ok := results[0].AsObject().(interface {
		RawGet(rvalue.Value) rvalue.Value
		Len() int64
	})
	require.True(t, ok)
	assert.Equal(t, int64(65), tbl.Len())
	assert.Equal(t, int64(0), tbl.RawGet(rvalue.Int(0)).AsInt())
	assert.Equal(t, int64(640), tbl.RawGet(rvalue.Int(64)).AsInt())

	// Read back through GetTable, not RawGet, to exercise the opcode too.
	g := asm.New("<test>", "get", 1, false)
	g.Reserve(3)
	g.LoadInt(2, 64)
	g.GetTable(3, 1, 2)
	g.Return(3, 1)
	got := runClosure(t, s, g, results[0])
	require.Len(t, got, 1)
	assert.Equal(t, int64(640), got[0].AsInt())
}
