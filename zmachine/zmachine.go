// Package zmachine is the execution engine: memory-map-consuming stack
// model, instruction decoder and dispatcher, object/string/dictionary
// integration, I/O dispatch boundary and Quetzal save/restore (spec.md
// S2/S4).
package zmachine

import (
	"math/rand"
	"strings"
	"time"

	"github.com/davetcode/goz/dictionary"
	"github.com/davetcode/goz/zcore"
	"github.com/davetcode/goz/zstring"
)

// RoutineType distinguishes a "function" call (stores its return value,
// call_*s) from a "procedure" call (discards it, call_*n, v5+).
type RoutineType int

const (
	function RoutineType = iota
	procedure
)

// memoryStream is one active output-stream-3 capture target.
type memoryStream struct {
	baseAddress uint32
	ptr         uint32
}

// streams tracks which output streams are selected (spec.md S3 "output
// stream flags").
type streams struct {
	screen        bool
	transcript    bool
	memory        bool
	memoryStreams []memoryStream
	commandScript bool
}

// ZMachine is one loaded story's complete runtime state.
type ZMachine struct {
	Core       zcore.Core
	callStack  CallStack
	dictionary *dictionary.Dictionary
	Alphabets  *zstring.Alphabets
	stringCache *zstring.Cache

	streams     streams
	rng         *rand.Rand
	screen      screenModel
	io          IOProvider
	undoStates  [][]byte
	warnedSites map[string]bool

	originalDynamicMemory []byte
	suspended             *suspension

	quit                 bool
	currentInstructionPC uint32
}

type suspendKind int

const (
	suspendLine suspendKind = iota
	suspendChar
)

type suspension struct {
	kind      suspendKind
	maxLength int
	resume    func(raw string)
}

// LoadRom parses storyBytes and returns a freshly-initialised engine bound
// to the given I/O provider. Header interpreter-identity and screen-geometry
// fields are stamped at this point (spec.md S6).
func LoadRom(storyBytes []uint8, io IOProvider) (*ZMachine, error) {
	core, err := zcore.LoadCore(append([]uint8(nil), storyBytes...))
	if err != nil {
		return nil, err
	}

	z := &ZMachine{
		Core: *core,
		streams: streams{
			screen: true,
		},
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		screen: newScreenModel(),
		io:     io,
	}

	z.originalDynamicMemory = append([]uint8(nil), z.Core.DynamicMemory()...)

	z.Alphabets = zstring.LoadAlphabets(&z.Core)
	z.stringCache = zstring.NewCache(uint32(z.Core.StaticMemoryBase))
	z.dictionary = dictionary.Parse(&z.Core, z.Alphabets)

	cols, rows := 80, 24
	if io != nil {
		cols, rows = io.ScreenSize()
	}
	flags1 := uint8(0)
	if io != nil {
		flags1 = io.Flags1()
	}
	z.Core.WriteHeaderFields(1, 'D', rows, cols, flags1)
	z.Core.SetDefaultColors(uint8(ColorBlack), uint8(ColorWhite))

	z.callStack.push(CallStackFrame{
		pc:           uint32(z.Core.FirstInstruction),
		locals:       make([]uint16, 0),
		routineStack: make([]uint16, 0),
	})

	return z, nil
}

// Version is a convenience accessor used throughout instruction handling.
func (z *ZMachine) Version() uint8 { return z.Core.Version }

// Quit reports whether the engine halted via the `quit` opcode.
func (z *ZMachine) Quit() bool { return z.quit }

// packedAddress unpacks a routine/string packed address per spec.md S3.
func (z *ZMachine) packedAddress(packed uint32, isZString bool) uint32 {
	switch {
	case z.Core.Version < 4:
		return 2 * packed
	case z.Core.Version < 6:
		return 4 * packed
	case z.Core.Version == 7:
		offset := uint32(z.Core.RoutinesOffset)
		if isZString {
			offset = uint32(z.Core.StringOffset)
		}
		return 4*packed + 8*offset
	case z.Core.Version == 8:
		return 8 * packed
	default:
		panic(newGameException(z.currentInstructionPC, 0, "unsupported story version %d", z.Core.Version))
	}
}

func (z *ZMachine) readIncPC(frame *CallStackFrame) uint8 {
	v := z.Core.ReadByte(frame.pc)
	frame.pc++
	return v
}

func (z *ZMachine) readHalfWordIncPC(frame *CallStackFrame) uint16 {
	v := z.Core.ReadWord(frame.pc)
	frame.pc += 2
	return v
}

// readVariable resolves a variable id: 0 = evaluation-stack top (pop unless
// indirect, in which case peek in place), 1-15 = current frame's locals,
// 16-255 = globals (spec.md S4.6).
func (z *ZMachine) readVariable(variable uint8, indirect bool) uint16 {
	frame := z.callStack.peek()

	switch {
	case variable == 0:
		if indirect {
			return frame.peek(z)
		}
		return frame.pop(z)
	case variable < 16:
		idx := variable - 1
		if int(idx) >= len(frame.locals) {
			z.warnOnce("local_oob_read", "read of non-existent local %d at 0x%x", variable, z.currentInstructionPC)
			return 0
		}
		return frame.locals[idx]
	default:
		return z.Core.ReadGlobal(variable)
	}
}

func (z *ZMachine) writeVariable(variable uint8, value uint16, indirect bool) {
	frame := z.callStack.peek()

	switch {
	case variable == 0:
		if indirect {
			_ = frame.pop(z)
		}
		frame.push(value)
	case variable < 16:
		idx := variable - 1
		if int(idx) >= len(frame.locals) {
			z.warnOnce("local_oob_write", "write to non-existent local %d at 0x%x", variable, z.currentInstructionPC)
			return
		}
		frame.locals[idx] = value
	default:
		z.Core.WriteGlobal(variable, value)
	}
}

// call implements call_*s/call_*n: routine address 0 is the documented
// no-op returning false without touching the stack (spec.md S4.7/S8).
func (z *ZMachine) call(opcode *Opcode, routineType RoutineType) {
	routineAddress := z.packedAddress(uint32(opcode.operands[0].Value(z)), false)

	if routineAddress == 0 {
		if routineType == function {
			frame := z.callStack.peek()
			z.writeVariable(z.readIncPC(frame), 0, false)
		}
		return
	}

	localCount := z.Core.ReadByte(routineAddress)
	routineAddress++

	locals := make([]uint16, localCount)
	for i := 0; i < int(localCount); i++ {
		if i+1 < len(opcode.operands) {
			locals[i] = opcode.operands[i+1].Value(z)
		} else if z.Core.Version < 5 {
			locals[i] = z.Core.ReadWord(routineAddress)
		}
		if z.Core.Version < 5 {
			routineAddress += 2
		}
	}

	z.callStack.push(CallStackFrame{
		pc:              routineAddress,
		locals:          locals,
		routineStack:    make([]uint16, 0),
		routineType:     routineType,
		numValuesPassed: len(opcode.operands) - 1,
	})
}

// retValue implements ret/rtrue/rfalse/ret_popped: unwind one frame and
// write the result into the caller's result-store byte, unless the callee
// was a procedure call that discarded its result.
func (z *ZMachine) retValue(val uint16) {
	oldFrame, ok := z.callStack.pop()
	if !ok {
		panic(newGameException(z.currentInstructionPC, 0, "return from outermost frame"))
	}

	if len(z.callStack.frames) == 0 {
		z.quit = true
		return
	}
	newFrame := z.callStack.peek()

	if oldFrame.routineType == function {
		dest := z.readIncPC(newFrame)
		z.writeVariable(dest, val, false)
	}
}

// handleBranch reads the branch operand byte(s) following a branching
// instruction and, if result matches the branch sense, jumps (or returns
// true/false for the 0/1 special-case offsets), per spec.md S4.5.
func (z *ZMachine) handleBranch(frame *CallStackFrame, result bool) {
	branchArg1 := z.readIncPC(frame)
	branchSense := (branchArg1>>7)&1 == 1
	singleByte := (branchArg1>>6)&1 == 1
	offset := int32(branchArg1 & 0b11_1111)

	if !singleByte {
		low := z.readIncPC(frame)
		raw := uint16(branchArg1&0b11_1111)<<8 | uint16(low)
		offset = int32(int16(raw<<2)) >> 2
	}

	if result != branchSense {
		return
	}

	switch offset {
	case 0:
		z.retValue(0)
	case 1:
		z.retValue(1)
	default:
		frame.pc = uint32(int32(frame.pc) + offset - 2)
	}
}

// appendText routes decoded/printed text to whichever output stream is
// active. Stream 3 (memory) is exclusive: while selected, nothing else
// sees the text even though other streams remain "selected" underneath
// (spec.md S4.7).
func (z *ZMachine) appendText(s string) {
	if z.streams.memory {
		active := &z.streams.memoryStreams[len(z.streams.memoryStreams)-1]
		for _, r := range s {
			z.Core.StoreByte(active.ptr, uint8(r))
			active.ptr++
		}
		return
	}

	if z.streams.screen && z.io != nil {
		z.io.Dispatch(PrintCommand{Window: z.currentWindow(), Buffer: s})
		if !z.screen.lowerWindowActive {
			lines := strings.Split(s, "\n")
			z.screen.upperCursorY += len(lines) - 1
			if len(lines) > 1 {
				z.screen.upperCursorX = len(lines[len(lines)-1])
			} else {
				z.screen.upperCursorX += len(lines[0])
			}
		}
	}

	if z.streams.transcript && z.io != nil {
		z.io.Dispatch(PrintCommand{Window: TranscriptWindow, Buffer: s})
	}
}

func (z *ZMachine) currentWindow() int {
	if z.screen.lowerWindowActive {
		return 0
	}
	return 1
}

// newSeededRNG backs the `random` opcode's reseed forms: a negative operand
// reseeds deterministically from its absolute value, zero reseeds from the
// clock (spec.md S4.7).
func newSeededRNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
