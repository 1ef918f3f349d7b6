package zmachine

// CallStackFrame is one routine activation: its resumption PC, its locals,
// and its own evaluation stack (each routine call gets a fresh one - the
// spec draws no distinction between "the stack" and "a routine's stack",
// they're the same structure per frame).
type CallStackFrame struct {
	pc              uint32
	routineStack    []uint16
	locals          []uint16
	routineType     RoutineType // v3+ only
	numValuesPassed int         // v5+ only
	framePointer    uint32
}

func (f *CallStackFrame) push(i uint16) {
	f.routineStack = append(f.routineStack, i)
}

func (f *CallStackFrame) pop(z *ZMachine) uint16 {
	if len(f.routineStack) == 0 {
		z.warnOnce("stack_underflow_pop", "attempt to pop from empty routine stack (PC = %x)", z.currentInstructionPC)
		return 0
	}
	i := f.routineStack[len(f.routineStack)-1]
	f.routineStack = f.routineStack[:len(f.routineStack)-1]
	return i
}

func (f *CallStackFrame) peek(z *ZMachine) uint16 {
	if len(f.routineStack) == 0 {
		z.warnOnce("stack_underflow_peek", "attempt to peek from empty routine stack (PC = %x)", z.currentInstructionPC)
		return 0
	}
	return f.routineStack[len(f.routineStack)-1]
}

// CallStack is the engine's full chain of routine activations. peek panics
// on an empty stack - that's an engine bug or a malformed Quetzal image,
// never a recoverable condition, and is caught by the execution loop's
// panic recovery (run.go); pop instead reports the empty case to its caller.
type CallStack struct {
	frames []CallStackFrame
}

func (s *CallStack) push(frame CallStackFrame) {
	s.frames = append(s.frames, frame)
}

// pop removes and returns the top frame, reporting whether the stack still
// had one. The caller is responsible for treating "no frame" as either a
// clean program exit (return from the outermost frame) or a fatal error,
// depending on context - see retValue.
func (s *CallStack) pop() (CallStackFrame, bool) {
	if len(s.frames) == 0 {
		return CallStackFrame{}, false
	}
	stackSize := len(s.frames)
	frame := s.frames[stackSize-1]
	s.frames = s.frames[:stackSize-1]
	return frame, true
}

// peek returns the current top frame. Panics if the call stack is empty;
// every instruction executes inside some frame, so an empty call stack at
// decode time is always an engine invariant violation.
func (s *CallStack) peek() *CallStackFrame {
	if len(s.frames) == 0 {
		panic(&GameException{Message: "call stack underflow"})
	}
	return &s.frames[len(s.frames)-1]
}

// copy deep-copies a call stack and all of its frames, used by the
// in-memory undo/save snapshot path.
func (s *CallStack) copy() CallStack {
	callStack := CallStack{
		frames: make([]CallStackFrame, len(s.frames)),
	}

	for fx, frame := range s.frames {
		copiedFrame := CallStackFrame{
			pc:              frame.pc,
			routineType:     frame.routineType,
			numValuesPassed: frame.numValuesPassed,
			framePointer:    frame.framePointer,
			routineStack:    make([]uint16, len(frame.routineStack)),
			locals:          make([]uint16, len(frame.locals)),
		}

		copy(copiedFrame.routineStack, frame.routineStack)
		copy(copiedFrame.locals, frame.locals)

		callStack.frames[fx] = copiedFrame
	}

	return callStack
}
