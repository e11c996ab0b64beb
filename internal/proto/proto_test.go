package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behl-lang/behl-sub001/internal/gcheap"
	"github.com/behl-lang/behl-sub001/internal/rvalue"
)

func TestNewDefaultsSourceName(t *testing.T) {
	p := New("", "main")
	assert.Equal(t, "<script>", p.SourceName)

	p2 := New("file.behl", "main")
	assert.Equal(t, "file.behl", p2.SourceName)
}

func TestLocationAtBounds(t *testing.T) {
	p := New("f.behl", "main")
	p.Lines = []int32{1, 2, 3}
	p.Columns = []int32{5, 6}

	line, col := p.LocationAt(1)
	assert.Equal(t, int32(2), line)
	assert.Equal(t, int32(6), col)

	line, col = p.LocationAt(2)
	assert.Equal(t, int32(3), line, "line present")
	assert.Equal(t, int32(0), col, "column table shorter than line table")

	line, col = p.LocationAt(-1)
	assert.Zero(t, line)
	assert.Zero(t, col)

	line, col = p.LocationAt(99)
	assert.Zero(t, line)
	assert.Zero(t, col)
}

func TestTraceChildrenMarksGCConstantsAndProtos(t *testing.T) {
	p := New("f.behl", "main")
	nested := New("f.behl", "inner")
	p.Protos = []*Prototype{nested}
	p.Constants = []rvalue.Value{
		rvalue.Int(1),
		rvalue.Str(rvalue.NewRString([]byte("hi"))),
		rvalue.Float(2.5),
	}

	var marked []gcheap.Object
	p.TraceChildren(func(o gcheap.Object) { marked = append(marked, o) })

	require.Len(t, marked, 2, "only the string constant and the nested proto are GC objects")
	assert.Equal(t, nested, marked[1])
}
