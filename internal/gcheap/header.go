// Package gcheap implements the tracked allocator and tri-color incremental
// collector shared by every heap-resident behl value (strings, tables,
// closures, prototypes, userdata).
package gcheap

// Color is the tri-color mark used by the incremental collector.
type Color uint8

const (
	White Color = iota // unreached this cycle, swept if still white at sweep time
	Gray               // reached, children not yet scanned
	Black              // reached, children scanned
)

// Kind tags the concrete heap object type, mirroring the GC-type bit of
// behl's value type tags (original_source/include/behl/types.hpp).
type Kind uint8

const (
	KindString Kind = iota
	KindTable
	KindClosure
	KindPrototype
	KindUserdata
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindTable:
		return "table"
	case KindClosure:
		return "closure"
	case KindPrototype:
		return "prototype"
	case KindUserdata:
		return "userdata"
	default:
		return "unknown"
	}
}

// Header is embedded in every heap object. It carries the mark color and
// the intrusive doubly-linked "all objects" list pointers the collector
// walks during sweep, directly mirroring the C++ original's GCList node
// (original_source/src/gc/gc_list.hpp) — Go's real pointers let the
// intrusive-list design port over unchanged.
type Header struct {
	Color Color
	Kind  Kind
	Prev  Object
	Next  Object
}

// Hdr satisfies Object.
func (h *Header) Hdr() *Header { return h }

// Object is any heap value the collector tracks.
type Object interface {
	Hdr() *Header
}

// Tracer is implemented by objects that hold references to other heap
// objects; the collector calls TraceChildren during the mark phase to gray
// each reachable child.
type Tracer interface {
	Object
	TraceChildren(mark func(Object))
}

// Finalizable is implemented by userdata carrying a __gc metamethod; the
// collector queues these instead of sweeping them immediately.
type Finalizable interface {
	Object
	HasFinalizer() bool
}
