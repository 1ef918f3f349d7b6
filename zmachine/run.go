package zmachine

// InputRequest reports what kind of input, if any, pump mode is waiting on
// after a run call returns.
type InputRequest int

const (
	NoInputNeeded InputRequest = iota
	NeedsLineInput
	NeedsCharInput
)

// recoverGameException converts a panicking GameException (or any other
// panic) into an error, for the outermost boundary of a run call. Anything
// other than a *GameException is wrapped so a caller never sees a bare
// interface{} from recover().
func (z *ZMachine) recoverGameException(errOut *error) {
	r := recover()
	if r == nil {
		return
	}
	if ge, ok := r.(*GameException); ok {
		*errOut = ge
		return
	}
	*errOut = newGameException(z.currentInstructionPC, 0, "%v", r)
}

// Run executes the story to completion (quit, or a fatal error), resolving
// every read/read_char suspension synchronously against the IOProvider.
// It is the classic execution mode - a thin wrapper around the same
// suspension mechanism pump mode uses (spec.md S4.8).
func (z *ZMachine) Run() (err error) {
	defer z.recoverGameException(&err)

	for {
		if z.suspended != nil {
			z.resolveSuspensionSync()
			continue
		}
		if !z.StepMachine() {
			break
		}
	}

	if z.io != nil {
		z.io.Dispatch(QuitCommand{})
	}
	return nil
}

func (z *ZMachine) resolveSuspensionSync() {
	kind := z.suspended.kind
	resume := z.suspended.resume
	maxLength := z.suspended.maxLength
	z.suspended = nil

	var raw string
	if z.io != nil {
		switch kind {
		case suspendLine:
			if s, ok := z.io.Dispatch(ReadCommand{MaxLength: maxLength}).(string); ok {
				raw = s
			}
		case suspendChar:
			if s, ok := z.io.Dispatch(ReadCharCommand{}).(string); ok {
				raw = s
			}
		}
	}
	resume(raw)
}

// RunUntilInput steps the machine until it halts, errors, or suspends for
// input, returning which (pump mode). The caller resumes with
// SubmitLineInput/SubmitCharInput.
func (z *ZMachine) RunUntilInput() (req InputRequest, err error) {
	defer z.recoverGameException(&err)

	for {
		if z.suspended != nil {
			if z.suspended.kind == suspendLine {
				return NeedsLineInput, nil
			}
			return NeedsCharInput, nil
		}
		if !z.StepMachine() {
			return NoInputNeeded, nil
		}
	}
}

// SubmitLineInput resumes a suspended sread/aread with a full line of text
// and continues execution until the next suspension, halt, or error.
func (z *ZMachine) SubmitLineInput(raw string) (InputRequest, error) {
	if z.suspended == nil || z.suspended.kind != suspendLine {
		return NoInputNeeded, newGameException(z.currentInstructionPC, 0, "no pending line input request")
	}
	return z.resumeAndContinue(raw)
}

// SubmitCharInput resumes a suspended read_char with a single keystroke.
func (z *ZMachine) SubmitCharInput(raw string) (InputRequest, error) {
	if z.suspended == nil || z.suspended.kind != suspendChar {
		return NoInputNeeded, newGameException(z.currentInstructionPC, 0, "no pending character input request")
	}
	return z.resumeAndContinue(raw)
}

func (z *ZMachine) resumeAndContinue(raw string) (req InputRequest, err error) {
	defer z.recoverGameException(&err)

	resume := z.suspended.resume
	z.suspended = nil
	resume(raw)

	return z.RunUntilInput()
}
