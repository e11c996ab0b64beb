package vm

import (
	"github.com/behl-lang/behl-sub001/internal/rerr"
	"github.com/behl-lang/behl-sub001/internal/rvalue"
)

// ModuleReg describes one native function a host module exposes, matching
// include/behl/types.hpp's ModuleReg.
type ModuleReg struct {
	Name string
	Func CFunction
}

// ModuleConst describes one constant value a host module exposes, matching
// include/behl/types.hpp's ModuleConst.
type ModuleConst struct {
	Name  string
	Value rvalue.Value
}

// ModuleDef bundles a native module's functions and constants into the
// table import() hands back, matching include/behl/types.hpp's ModuleDef.
type ModuleDef struct {
	Funcs  []ModuleReg
	Consts []ModuleConst
}

// RegisterModule builds a table from def and caches it under name, so a
// subsequent import(name) resolves immediately without consulting the
// ModuleLoader. This is how a host embeds native (non-script) modules,
// distinct from ModuleLoader which resolves script-backed modules lazily.
func (s *State) RegisterModule(name string, def ModuleDef) error {
	t, err := s.NewTable()
	if err != nil {
		return err
	}
	for _, reg := range def.Funcs {
		key, err := s.NewString([]byte(reg.Name))
		if err != nil {
			return err
		}
		t.RawSet(rvalue.Str(key), rvalue.CFunc(reg.Func))
	}
	for _, c := range def.Consts {
		key, err := s.NewString([]byte(c.Name))
		if err != nil {
			return err
		}
		t.RawSet(rvalue.Str(key), c.Value)
	}

	cacheKey := rvalue.Str(rvalue.NewRString([]byte(name)))
	s.moduleCache.RawSet(cacheKey, rvalue.GCVal(rvalue.TTable, t))
	return nil
}

// Import implements the `import("name")` protocol of spec.md §6: the
// module cache is consulted first; on a miss the host-installed
// ModuleLoader resolves the name, and the result is cached for the
// lifetime of the State so a module body runs at most once, matching
// module_loader.cpp's single-evaluation guarantee.
func (s *State) Import(name string) (rvalue.Value, error) {
	key := rvalue.Str(rvalue.NewRString([]byte(name)))

	if cached := s.moduleCache.RawGet(key); !cached.IsNil() {
		return cached, nil
	}

	if s.moduleLoader == nil {
		return rvalue.Nil, s.runtimeErrorf("no module loader installed; cannot import %q", name)
	}

	// A cache placeholder guards against a loader that (directly or via a
	// cyclic import chain) re-imports its own name before it finishes.
	s.moduleCache.RawSet(key, rvalue.Bool(false))

	mod, err := s.moduleLoader(s, name)
	if err != nil {
		s.moduleCache.RawSet(key, rvalue.Nil)
		return rvalue.Nil, rerr.Wrap(err, s.currentLocation())
	}

	result := rvalue.GCVal(rvalue.TTable, mod)
	s.moduleCache.RawSet(key, result)
	return result, nil
}

// importBuiltin exposes Import as the `import` global every State installs,
// per SPEC_FULL.md §3's host-callback ergonomics.
func importBuiltin(s *State) (int, error) {
	name, err := s.CheckString(1)
	if err != nil {
		return 0, err
	}
	mod, err := s.Import(name)
	if err != nil {
		return 0, err
	}
	s.PushValue(mod)
	return 1, nil
}

// installStdlib wires the builtins every State exposes regardless of host
// configuration: import(), type(), tostring(), rawequal(), pcall()/error().
// Grounded on original_source/src/stdlib/base.cpp's base library registration.
func (s *State) installStdlib() error {
	builtins := map[string]CFunction{
		"import":   importBuiltin,
		"type":     typeBuiltin,
		"tostring": tostringBuiltin,
		"rawequal": rawequalBuiltin,
		"pcall":    pcallBuiltin,
		"error":    errorBuiltin,
	}
	for name, fn := range builtins {
		if err := s.SetGlobal(name, rvalue.CFunc(fn)); err != nil {
			return err
		}
	}
	return nil
}

func typeBuiltin(s *State) (int, error) {
	s.PushString([]byte(s.Get(1).Type().String()))
	return 1, nil
}

func tostringBuiltin(s *State) (int, error) {
	str, err := s.ToStringMeta(s.Get(1))
	if err != nil {
		return 0, err
	}
	if err := s.PushString([]byte(str)); err != nil {
		return 0, err
	}
	return 1, nil
}

func rawequalBuiltin(s *State) (int, error) {
	s.PushBool(rvalue.RawEqual(s.Get(1), s.Get(2)))
	return 1, nil
}

// pcallBuiltin implements the scripting-level pcall(fn, ...): the callee and
// its arguments are already on the stack above the pcall call itself, so the
// wrapper re-pushes them through s.PCall and returns (ok, results...).
func pcallBuiltin(s *State) (int, error) {
	fn := s.Get(1)
	top := s.currentTop()
	args := make([]rvalue.Value, 0, top-s.resolve(2))
	for i := 2; s.resolve(i) < top; i++ {
		args = append(args, s.Get(i))
	}

	ok, results, msg := s.PCall(fn, args...)
	s.PushBool(ok)
	if ok {
		for _, r := range results {
			s.PushValue(r)
		}
		return 1 + len(results), nil
	}
	if err := s.PushString([]byte(msg)); err != nil {
		return 0, err
	}
	return 2, nil
}

// errorBuiltin implements error(message): raises a RuntimeError carrying the
// script-supplied message, unwound by the nearest PCall boundary.
func errorBuiltin(s *State) (int, error) {
	msg, _ := s.ToString(1)
	return 0, s.runtimeErrorf("%s", msg)
}
