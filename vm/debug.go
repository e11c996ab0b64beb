package vm

// DebugCommand is the action the host requests of a paused interpreter,
// mirroring state_debug.hpp's DebugCommand.
type DebugCommand uint8

const (
	DebugCommandNone DebugCommand = iota
	DebugCommandContinue
	DebugCommandStepInto
	DebugCommandStepOver
	DebugCommandStepOut
)

// StepMode tracks what single-step mode (if any) is currently active,
// mirroring state_debug.hpp's StepMode.
type StepMode uint8

const (
	StepModeNone StepMode = iota
	StepModePause
	StepModeStepInto
	StepModeStepOver
	StepModeStepOut
)

// Breakpoint identifies a source location to pause at.
type Breakpoint struct {
	File string
	Line int32
}

// DebugEvent describes why the interpreter paused, delivered to the host's
// event callback.
type DebugEvent struct {
	File  string
	Line  int32
	Depth int
}

// DebugEventCallback is invoked synchronously from inside the dispatch
// loop whenever a breakpoint or step target is hit; the host typically
// blocks (or spins a nested event loop) until it calls one of Continue/
// StepInto/StepOver/StepOut/Pause.
type DebugEventCallback func(s *State, ev DebugEvent)

// DebugState holds the debugger protocol's mutable state, field-for-field
// following original_source/src/state_debug.hpp.
type DebugState struct {
	enabled     bool
	paused      bool
	breakpoints map[Breakpoint]struct{}
	onEvent     DebugEventCallback

	pendingCommand DebugCommand
	stepMode       StepMode
	stepTargetDepth int
	lastLine       int32
	lastFile       string
}

// DebugEnable turns the debugger protocol on; breakpoint checks and step
// tracking are skipped entirely (zero overhead) until this is called.
func (s *State) DebugEnable(cb DebugEventCallback) {
	s.debug.enabled = true
	s.debug.onEvent = cb
	if s.debug.breakpoints == nil {
		s.debug.breakpoints = make(map[Breakpoint]struct{})
	}
	s.log.Debug().Msg("debugger attached")
}

// DebugDisable turns the debugger protocol off.
func (s *State) DebugDisable() {
	s.debug.enabled = false
	s.debug.paused = false
	s.debug.onEvent = nil
	s.log.Debug().Msg("debugger detached")
}

// DebugIsEnabled reports whether the debugger protocol is active.
func (s *State) DebugIsEnabled() bool { return s.debug.enabled }

func (s *State) DebugSetBreakpoint(file string, line int32) {
	if s.debug.breakpoints == nil {
		s.debug.breakpoints = make(map[Breakpoint]struct{})
	}
	s.debug.breakpoints[Breakpoint{File: file, Line: line}] = struct{}{}
}

func (s *State) DebugRemoveBreakpoint(file string, line int32) {
	delete(s.debug.breakpoints, Breakpoint{File: file, Line: line})
}

func (s *State) DebugClearBreakpoints() {
	s.debug.breakpoints = make(map[Breakpoint]struct{})
}

// DebugContinue, DebugStepInto, DebugStepOver, DebugStepOut, and DebugPause
// set the pending command the dispatch loop consults the next time it
// checks for a debug pause point — matching api_debug.cpp's
// debug_continue/debug_step_into/debug_step_over/debug_step_out/debug_pause.
func (s *State) DebugContinue() {
	s.debug.paused = false
	s.debug.stepMode = StepModeNone
	s.debug.pendingCommand = DebugCommandContinue
}

func (s *State) DebugStepInto() {
	s.debug.paused = false
	s.debug.stepMode = StepModeStepInto
	s.debug.pendingCommand = DebugCommandStepInto
}

func (s *State) DebugStepOver() {
	s.debug.paused = false
	s.debug.stepMode = StepModeStepOver
	s.debug.stepTargetDepth = len(s.frames)
	s.debug.pendingCommand = DebugCommandStepOver
}

func (s *State) DebugStepOut() {
	s.debug.paused = false
	s.debug.stepMode = StepModeStepOut
	s.debug.stepTargetDepth = len(s.frames) - 1
	s.debug.pendingCommand = DebugCommandStepOut
}

// DebugPause requests a break at the very next instruction, regardless of
// breakpoints — done by invalidating lastLine so the next location always
// looks "new", matching api_debug.cpp's debug_pause.
func (s *State) DebugPause() {
	s.debug.stepMode = StepModePause
	s.debug.lastLine = -1
}

// DebugIsPaused reports whether the interpreter is currently blocked at a
// pause point (only meaningful for a host running the interpreter on a
// separate goroutine from the one driving debug commands).
func (s *State) DebugIsPaused() bool { return s.debug.paused }

// checkBreak is called once per instruction from the dispatch loop only
// when debugging is enabled; at a pause point it fires the event callback
// and returns once the callback does — behl has no coroutine/thread model,
// so "blocking" means the embedder's callback itself runs a nested event
// loop and calls a Debug* method before returning.
func (s *State) checkBreak(frame *CallFrame) {
	if !s.debug.enabled || s.debug.onEvent == nil || frame.Proto == nil {
		return
	}
	line, _ := frame.Proto.LocationAt(frame.PC)
	file := frame.Proto.SourceName

	hit := false
	if _, ok := s.debug.breakpoints[Breakpoint{File: file, Line: line}]; ok {
		hit = true
	}
	switch s.debug.stepMode {
	case StepModePause:
		hit = true
	case StepModeStepInto:
		hit = line != s.debug.lastLine || file != s.debug.lastFile
	case StepModeStepOver:
		hit = len(s.frames) <= s.debug.stepTargetDepth && (line != s.debug.lastLine || file != s.debug.lastFile)
	case StepModeStepOut:
		hit = len(s.frames) <= s.debug.stepTargetDepth
	}
	if !hit {
		return
	}

	s.debug.lastLine = line
	s.debug.lastFile = file
	s.debug.paused = true
	s.debug.stepMode = StepModeNone
	s.debug.onEvent(s, DebugEvent{File: file, Line: line, Depth: len(s.frames)})
	s.debug.paused = false
}
