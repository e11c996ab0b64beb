package vm

import (
	"github.com/behl-lang/behl-sub001/internal/rvalue"
	"github.com/behl-lang/behl-sub001/internal/upval"
)

// opGetUpval implements GETUPVAL: read upvalue B of the current closure
// into register A.
func (s *State) opGetUpval(frame *CallFrame, a, b int32) {
	s.stack[frame.Base+int(a)] = frame.Closure.Upvalues[b].Get()
}

// opSetUpval implements SETUPVAL: write register A into upvalue B of the
// current closure.
func (s *State) opSetUpval(frame *CallFrame, a, b int32) {
	uv := frame.Closure.Upvalues[b]
	v := s.stack[frame.Base+int(a)]
	uv.Set(v)
	s.barrierVal(uv, v)
}

// opClosure implements CLOSURE: instantiate nested prototype Bx, wiring
// each upvalue descriptor from either a parent local (find-or-create an
// open upvalue over the parent's register) or a parent upvalue (shared
// directly), per spec.md §4.4. The freshly allocated closure may already be
// black (objects allocate black while marking is in progress), so every
// upvalue it captures here needs the write barrier, not just the reverse
// direction.
func (s *State) opClosure(frame *CallFrame, a, bx int32) error {
	nested := frame.Proto.Protos[bx]
	cl, err := s.NewClosure(nested)
	if err != nil {
		return err
	}
	for i, desc := range nested.Upvalues {
		var uv *upval.Upvalue
		if desc.FromParentLocal {
			uv, err = s.upvals.FindOrCreate(frame.Base + desc.Index)
			if err != nil {
				return err
			}
		} else {
			uv = frame.Closure.Upvalues[desc.Index]
		}
		cl.Upvalues[i] = uv
		s.barrier(cl, uv)
	}
	s.stack[frame.Base+int(a)] = rvalue.GCVal(rvalue.TClosure, cl)
	return nil
}
