package vm

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/behl-lang/behl-sub001/internal/closure"
	"github.com/behl-lang/behl-sub001/internal/gcheap"
	"github.com/behl-lang/behl-sub001/internal/proto"
	"github.com/behl-lang/behl-sub001/internal/rtable"
	"github.com/behl-lang/behl-sub001/internal/rvalue"
	"github.com/behl-lang/behl-sub001/internal/upval"
	"github.com/behl-lang/behl-sub001/internal/userdata"
)

// State owns everything one behl execution context needs: the shared
// register stack, the call-frame stack, the upvalue store, the pinned-
// values table, the globals table, the module cache, the per-type
// metatable registry, the GC, the debugger state, and the structured
// event log — a direct field-for-field port of original_source/src/state.hpp.
type State struct {
	stack  []rvalue.Value
	frames []CallFrame

	upvals *upval.Store

	pinned     []rvalue.Value
	pinnedFree []int

	globals     *rtable.Table
	moduleCache *rtable.Table
	moduleLoader ModuleLoader

	typeMetatables map[rvalue.Type]*rtable.Table

	alloc *gcheap.Allocator
	gc    *gcheap.Collector

	debug DebugState

	log     zerolog.Logger
	printFn func(string)

	maxCallDepth int
}

// ModuleLoader resolves an import("name") that isn't already in the
// module cache, matching spec.md §6's module protocol.
type ModuleLoader func(s *State, name string) (*rtable.Table, error)

// Option configures a new State.
type Option func(*State)

func WithMemoryCeiling(n uint64) Option {
	return func(s *State) { s.alloc.SetCeiling(n) }
}

func WithMaxCallDepth(n int) Option {
	return func(s *State) { s.maxCallDepth = n }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *State) { s.log = l }
}

func WithPrintFunc(fn func(string)) Option {
	return func(s *State) { s.printFn = fn }
}

func WithModuleLoader(loader ModuleLoader) Option {
	return func(s *State) { s.moduleLoader = loader }
}

// NewState builds a ready-to-use State with empty globals/module cache.
func NewState(opts ...Option) *State {
	s := &State{
		globals:        rtable.New(),
		moduleCache:    rtable.New(),
		typeMetatables: make(map[rvalue.Type]*rtable.Table),
		alloc:          gcheap.NewAllocator(gcheap.DefaultMemoryCeiling),
		maxCallDepth:   DefaultMaxCallDepth,
		log:            zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger(),
		printFn:        func(s string) { os.Stdout.WriteString(s + "\n") },
	}
	s.gc = gcheap.NewCollector(s.alloc, s.gcRoots)
	s.upvals = upval.NewStore(&s.stack, func(o gcheap.Object) error {
		return s.gc.Register(o, 48)
	})
	s.upvals.SetBarrier(func(parent gcheap.Object, v rvalue.Value) {
		s.barrierVal(parent, v)
	})
	for _, opt := range opts {
		opt(s)
	}
	if err := s.gc.Register(s.globals, 64); err != nil {
		panic(err) // fresh allocator, ceiling misconfiguration is a host bug
	}
	if err := s.gc.Register(s.moduleCache, 64); err != nil {
		panic(err)
	}
	if err := s.installStdlib(); err != nil {
		panic(err) // fresh allocator; only fails on ceiling misconfiguration
	}
	return s
}

// gcRoots feeds the collector's mark phase: the live register stack, the
// globals/module-cache tables, pinned values, per-type metatables, and
// every currently executing closure, per spec.md §4.5's root set.
func (s *State) gcRoots(mark func(gcheap.Object)) {
	for _, v := range s.stack {
		if r := v.Ref(); r != nil {
			mark(r)
		}
	}
	mark(s.globals)
	mark(s.moduleCache)
	for _, v := range s.pinned {
		if r := v.Ref(); r != nil {
			mark(r)
		}
	}
	for _, mt := range s.typeMetatables {
		if mt != nil {
			mark(mt)
		}
	}
	for i := range s.frames {
		if s.frames[i].Closure != nil {
			mark(s.frames[i].Closure)
		}
	}
}

// barrier installs an edge from parent to child in the object graph,
// invoking the collector's forward write barrier (spec.md §4.5) so a
// mutation landing mid-mark can never create a black-to-white edge sweep
// would later free out from under a live reference.
func (s *State) barrier(parent, child gcheap.Object) {
	if child == nil {
		return
	}
	s.gc.Barrier(parent, child)
}

// barrierVal is barrier for a rvalue.Value that may or may not point at a
// heap object — the common shape at table/upvalue/global mutation sites.
func (s *State) barrierVal(parent gcheap.Object, v rvalue.Value) {
	s.barrier(parent, v.Ref())
}

// Step lets the host (or the dispatch loop itself) advance the collector
// incrementally; allocatedSinceLast is typically the byte count just
// reserved by the allocation that triggered this call.
func (s *State) Step(allocatedSinceLast uint64) int { return s.gc.Step(allocatedSinceLast) }

// Collect forces a full GC cycle, used by the Stack API's explicit
// collect-garbage entry point and by GC-stress tests.
func (s *State) Collect() {
	before := s.alloc.Live()
	s.gc.Collect()
	s.runFinalizers()
	s.log.Debug().
		Int64("cycle", s.gc.Cycles()).
		Uint64("live_before", before).
		Uint64("live_after", s.alloc.Live()).
		Msg("gc cycle complete")
}

// runFinalizers drains every userdata the sweep just queued and finalizes
// each in isolation: the Go-level SetFinalizer callback first, then the
// metatable's __gc method if one is set (spec.md §4.5). Either can panic or
// return an error without aborting the rest of the GC cycle — both are
// caught and logged instead.
func (s *State) runFinalizers() {
	for _, f := range s.gc.DrainFinalizers() {
		if ud, ok := f.(*userdata.Userdata); ok {
			s.runFinalizer(ud)
		}
	}
}

func (s *State) runFinalizer(ud *userdata.Userdata) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("recovered panic in userdata finalizer")
		}
	}()
	ud.RunFinalizer()

	mm := ud.GCMethod()
	defer ud.MarkFinalized()
	if mm.IsNil() || !mm.Type().IsCallable() {
		return
	}
	if _, err := s.callMethod(mm, rvalue.GCVal(rvalue.TUserdata, ud)); err != nil {
		s.log.Error().Err(err).Msg("error raised by userdata __gc metamethod")
	}
}

// Globals returns the global variables table.
func (s *State) Globals() *rtable.Table { return s.globals }

// Allocator exposes the tracked allocator for diagnostics/tests.
func (s *State) Allocator() *gcheap.Allocator { return s.alloc }

// GC exposes the collector for diagnostics/tests.
func (s *State) GC() *gcheap.Collector { return s.gc }

// --- heap constructors -----------------------------------------------------

func (s *State) NewTable() (*rtable.Table, error) {
	t := rtable.New()
	if err := s.gc.Register(t, 96); err != nil {
		return nil, err
	}
	s.Step(96)
	return t, nil
}

func (s *State) NewString(b []byte) (*rvalue.RString, error) {
	str := rvalue.NewRString(b)
	if err := s.gc.Register(str, uint64(24+len(b))); err != nil {
		return nil, err
	}
	s.Step(uint64(24 + len(b)))
	return str, nil
}

func (s *State) NewClosure(p *proto.Prototype) (*closure.Closure, error) {
	cl := closure.New(p)
	if err := s.gc.Register(cl, uint64(32+8*len(cl.Upvalues))); err != nil {
		return nil, err
	}
	s.Step(uint64(32 + 8*len(cl.Upvalues)))
	return cl, nil
}

func (s *State) NewUserdata(uid uint32, payload any) (*userdata.Userdata, error) {
	ud := userdata.New(uid, payload)
	if err := s.gc.Register(ud, 48); err != nil {
		return nil, err
	}
	s.Step(48)
	return ud, nil
}

// RegisterPrototype links a Prototype (and transitively its nested
// prototypes) into the GC-tracked object graph, used once at load time by
// the Stack API's LoadPrototype.
func (s *State) RegisterPrototype(p *proto.Prototype) error {
	if err := s.gc.Register(p, uint64(64+4*len(p.Code))); err != nil {
		return err
	}
	for _, np := range p.Protos {
		if err := s.RegisterPrototype(np); err != nil {
			return err
		}
	}
	return nil
}
