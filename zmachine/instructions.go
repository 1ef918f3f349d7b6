package zmachine

import (
	"fmt"

	"github.com/davetcode/goz/dictionary"
	"github.com/davetcode/goz/zobject"
	"github.com/davetcode/goz/zstring"
	"github.com/davetcode/goz/ztable"
)

func signed(v uint16) int16 { return int16(v) }

// storeResult reads the result-store byte following a store-form
// instruction and writes val into it.
func (z *ZMachine) storeResult(frame *CallStackFrame, val uint16) {
	dest := z.readIncPC(frame)
	z.writeVariable(dest, val, false)
}

// StepMachine executes exactly one instruction and reports whether
// execution should continue (false once `quit` has executed). An input
// suspension does not make it return false; callers check z.suspended.
func (z *ZMachine) StepMachine() bool {
	if z.quit {
		return false
	}

	frame := z.callStack.peek()
	z.currentInstructionPC = frame.pc
	opcode := ParseOpcode(z)

	switch opcode.operandCount {
	case OP0:
		z.executeOP0(frame, &opcode)
	case OP1:
		z.executeOP1(frame, &opcode)
	case OP2:
		z.executeOP2(frame, &opcode)
	case VAR:
		if opcode.opcodeForm == extForm {
			z.executeEXT(frame, &opcode)
		} else {
			z.executeVAR(frame, &opcode)
		}
	}

	return !z.quit
}

func (z *ZMachine) executeOP0(frame *CallStackFrame, opcode *Opcode) {
	switch opcode.opcodeNumber {
	case 0: // rtrue
		z.retValue(1)
	case 1: // rfalse
		z.retValue(0)
	case 2: // print
		text, next := z.stringCache.DecodeCached(&z.Core, frame.pc, z.Alphabets)
		frame.pc = next
		z.appendText(text)
	case 3: // print_ret
		text, next := z.stringCache.DecodeCached(&z.Core, frame.pc, z.Alphabets)
		frame.pc = next
		z.appendText(text + "\n")
		z.retValue(1)
	case 4: // nop
	case 5: // save (branch form v1-3, store form v4; v5+ uses EXT:0 instead)
		z.saveOP0(frame)
	case 6: // restore (branch form v1-3, store form v4; v5+ uses EXT:1 instead)
		z.restoreOP0(frame)
	case 7: // restart
		z.restart()
	case 8: // ret_popped
		z.retValue(frame.pop(z))
	case 9: // pop / catch (v5 catch)
		if z.Version() >= 5 {
			z.storeResult(frame, uint16(len(z.callStack.frames)))
		} else {
			frame.pop(z)
		}
	case 10: // quit
		z.quit = true
		if z.io != nil {
			z.io.Dispatch(QuitCommand{})
		}
	case 11: // new_line
		z.appendText("\n")
	case 12: // show_status (v1-3; a no-op in v4+ rather than an illegal opcode)
		if z.Version() <= 3 {
			z.pushStatusBar()
		}
	case 13: // verify
		z.handleBranch(frame, z.verifyChecksum())
	case 15: // piracy
		z.handleBranch(frame, true)
	default:
		panic(newGameException(z.currentInstructionPC, opcode.opcodeByte, "unimplemented 0OP opcode %d", opcode.opcodeNumber))
	}
}

func (z *ZMachine) verifyChecksum() bool {
	var sum uint16
	fileLength := z.Core.FileLength()
	for addr := uint32(0x40); addr < fileLength; addr++ {
		sum += uint16(z.Core.ReadByte(addr))
	}
	return sum == z.Core.FileChecksum
}

func (z *ZMachine) pushStatusBar() {
	if z.io == nil {
		return
	}
	obj := zobject.Get(&z.Core, z.Core.ReadGlobal(0x10))
	z.io.Dispatch(StatusCommand{
		PlaceName:   obj.Name(z.Alphabets),
		Score:       int(signed(z.Core.ReadGlobal(0x11))),
		Moves:       int(z.Core.ReadGlobal(0x12)),
		IsTimeBased: z.Core.StatusBarTimeBased,
	})
}

// saveOP0 implements the 0OP:5 `save` opcode: a branch instruction in v1-3,
// a store instruction in v4. v5+ games use the extended `save` (EXT:0,
// io_instructions.go) instead - this opcode number is reused there for a
// different instruction entirely, so it's never reached above v4.
func (z *ZMachine) saveOP0(frame *CallStackFrame) {
	success := false
	if z.io != nil {
		data := z.SaveQuetzal()
		if r, ok := z.io.Dispatch(SaveCommand{FileData: data}).(bool); ok {
			success = r
		}
	}
	if z.Version() >= 4 {
		result := uint16(0)
		if success {
			result = 1
		}
		z.storeResult(frame, result)
		return
	}
	z.handleBranch(frame, success)
}

// restoreOP0 implements the 0OP:6 `restore` opcode. On success the call
// stack and dynamic memory have just been replaced wholesale, so frame is
// stale and there's no branch/store left to perform against it - the
// engine simply continues from whatever PC the restored state carries.
func (z *ZMachine) restoreOP0(frame *CallStackFrame) {
	var raw []byte
	if z.io != nil {
		if r, ok := z.io.Dispatch(RestoreCommand{}).([]byte); ok {
			raw = r
		}
	}
	if raw != nil && z.RestoreQuetzal(raw) {
		return
	}
	if z.Version() >= 4 {
		z.storeResult(frame, 0)
		return
	}
	z.handleBranch(frame, false)
}

// restart implements 0OP:7 `restart`: dynamic memory and the call stack
// reset to their load-time state, execution resuming at the first
// instruction. Like a successful restore, frame is stale afterwards.
func (z *ZMachine) restart() {
	z.Core.RestoreDynamicMemory(z.originalDynamicMemory)
	z.stringCache.Flush()
	z.streams = streams{screen: true}
	z.screen = newScreenModel()
	z.callStack = CallStack{}
	z.callStack.push(CallStackFrame{
		pc:           uint32(z.Core.FirstInstruction),
		locals:       make([]uint16, 0),
		routineStack: make([]uint16, 0),
	})
}

func (z *ZMachine) executeOP1(frame *CallStackFrame, opcode *Opcode) {
	operand := opcode.operands[0].Value(z)

	switch opcode.opcodeNumber {
	case 0: // jz
		z.handleBranch(frame, operand == 0)
	case 1: // get_sibling
		var sib uint16
		if operand != 0 {
			sib = zobject.Get(&z.Core, operand).Sibling()
		}
		z.storeResult(frame, sib)
		z.handleBranch(frame, sib != 0)
	case 2: // get_child
		var child uint16
		if operand != 0 {
			child = zobject.Get(&z.Core, operand).Child()
		}
		z.storeResult(frame, child)
		z.handleBranch(frame, child != 0)
	case 3: // get_parent
		var parent uint16
		if operand != 0 {
			parent = zobject.Get(&z.Core, operand).Parent()
		}
		z.storeResult(frame, parent)
	case 4: // get_prop_len
		z.storeResult(frame, uint16(zobject.GetPropertyLength(&z.Core, uint32(operand))))
	case 5: // inc
		z.writeVariable(uint8(operand), uint16(signed(z.readVariable(uint8(operand), true))+1), true)
	case 6: // dec
		z.writeVariable(uint8(operand), uint16(signed(z.readVariable(uint8(operand), true))-1), true)
	case 7: // print_addr
		text, _ := z.stringCache.DecodeCached(&z.Core, uint32(operand), z.Alphabets)
		z.appendText(text)
	case 8: // call_1s
		z.call(opcode, function)
	case 9: // remove_obj
		if operand != 0 {
			zobject.Get(&z.Core, operand).RemoveFromTree()
		}
	case 10: // print_obj
		if operand != 0 {
			z.appendText(zobject.Get(&z.Core, operand).Name(z.Alphabets))
		}
	case 11: // ret
		z.retValue(operand)
	case 12: // jump
		frame.pc = uint32(int32(frame.pc) + int32(signed(operand)) - 2)
	case 13: // print_paddr
		text, _ := z.stringCache.DecodeCached(&z.Core, z.packedAddress(uint32(operand), true), z.Alphabets)
		z.appendText(text)
	case 14: // load
		z.storeResult(frame, z.readVariable(uint8(operand), true))
	case 15: // not (v1-4) / call_1n (v5+)
		if z.Version() >= 5 {
			z.call(opcode, procedure)
		} else {
			z.storeResult(frame, ^operand)
		}
	default:
		panic(newGameException(z.currentInstructionPC, opcode.opcodeByte, "unimplemented 1OP opcode %d", opcode.opcodeNumber))
	}
}

func (z *ZMachine) executeOP2(frame *CallStackFrame, opcode *Opcode) {
	op := func(i int) uint16 { return opcode.operands[i].Value(z) }

	switch opcode.opcodeNumber {
	case 1: // je
		a := op(0)
		match := false
		for i := 1; i < len(opcode.operands); i++ {
			if op(i) == a {
				match = true
				break
			}
		}
		z.handleBranch(frame, match)
	case 2: // jl
		z.handleBranch(frame, signed(op(0)) < signed(op(1)))
	case 3: // jg
		z.handleBranch(frame, signed(op(0)) > signed(op(1)))
	case 4: // dec_chk
		v := uint16(signed(z.readVariable(uint8(op(0)), true)) - 1)
		z.writeVariable(uint8(op(0)), v, true)
		z.handleBranch(frame, signed(v) < signed(op(1)))
	case 5: // inc_chk
		v := uint16(signed(z.readVariable(uint8(op(0)), true)) + 1)
		z.writeVariable(uint8(op(0)), v, true)
		z.handleBranch(frame, signed(v) > signed(op(1)))
	case 6: // jin
		var parent uint16
		if op(0) != 0 {
			parent = zobject.Get(&z.Core, op(0)).Parent()
		}
		z.handleBranch(frame, parent == op(1))
	case 7: // test
		bitmap, flags := op(0), op(1)
		z.handleBranch(frame, bitmap&flags == flags)
	case 8: // or
		z.storeResult(frame, op(0)|op(1))
	case 9: // and
		z.storeResult(frame, op(0)&op(1))
	case 10: // test_attr
		z.handleBranch(frame, op(0) != 0 && zobject.Get(&z.Core, op(0)).TestAttribute(op(1)))
	case 11: // set_attr
		if op(0) != 0 {
			zobject.Get(&z.Core, op(0)).SetAttribute(op(1))
		}
	case 12: // clear_attr
		if op(0) != 0 {
			zobject.Get(&z.Core, op(0)).ClearAttribute(op(1))
		}
	case 13: // store
		z.writeVariable(uint8(op(0)), op(1), true)
	case 14: // insert_obj
		if op(0) != 0 {
			zobject.Get(&z.Core, op(0)).InsertTo(op(1))
		}
	case 15: // loadw - index is signed
		z.storeResult(frame, z.Core.ReadWord(uint32(int32(op(0))+2*int32(int16(op(1))))))
	case 16: // loadb - index is signed
		z.storeResult(frame, uint16(z.Core.ReadByte(uint32(int32(op(0))+int32(int16(op(1)))))))
	case 17: // get_prop
		prop := zobject.Get(&z.Core, op(0)).GetProperty(uint8(op(1)))
		switch prop.Length {
		case 1:
			z.storeResult(frame, uint16(z.Core.ReadByte(prop.DataAddress)))
		case 2:
			z.storeResult(frame, z.Core.ReadWord(prop.DataAddress))
		default:
			panic(newGameException(z.currentInstructionPC, opcode.opcodeByte, "get_prop on property with length %d", prop.Length))
		}
	case 18: // get_prop_addr
		z.storeResult(frame, zobject.Get(&z.Core, op(0)).GetPropertyAddr(uint8(op(1))))
	case 19: // get_next_prop
		z.storeResult(frame, uint16(zobject.Get(&z.Core, op(0)).NextProperty(uint8(op(1)))))
	case 20: // add
		z.storeResult(frame, uint16(signed(op(0))+signed(op(1))))
	case 21: // sub
		z.storeResult(frame, uint16(signed(op(0))-signed(op(1))))
	case 22: // mul
		z.storeResult(frame, uint16(signed(op(0))*signed(op(1))))
	case 23: // div
		b := signed(op(1))
		if b == 0 {
			panic(newGameException(z.currentInstructionPC, opcode.opcodeByte, "division by zero"))
		}
		z.storeResult(frame, uint16(divTruncate(signed(op(0)), b)))
	case 24: // mod
		b := signed(op(1))
		if b == 0 {
			panic(newGameException(z.currentInstructionPC, opcode.opcodeByte, "modulo by zero"))
		}
		z.storeResult(frame, uint16(modTruncate(signed(op(0)), b)))
	case 25: // call_2s
		z.call(opcode, function)
	case 26: // call_2n
		z.call(opcode, procedure)
	case 27: // set_colour
		if z.io != nil {
			z.io.Dispatch(SetColourCommand{Foreground: int(op(0)), Background: int(op(1))})
		}
	case 28: // throw
		target := op(1)
		for len(z.callStack.frames) > int(target) {
			z.callStack.pop()
		}
		z.retValue(op(0))
	default:
		panic(newGameException(z.currentInstructionPC, opcode.opcodeByte, "unimplemented 2OP opcode %d", opcode.opcodeNumber))
	}
}

// divTruncate/modTruncate implement the spec's documented decision to
// truncate division toward zero, with MOD taking the sign of the dividend.
// math.MinInt16 / -1 wraps back to math.MinInt16 rather than overflowing,
// matching native int16 wraparound (spec.md S9 open question).
func divTruncate(a, b int16) int16 {
	if a == -32768 && b == -1 {
		return -32768
	}
	return a / b
}

func modTruncate(a, b int16) int16 {
	if a == -32768 && b == -1 {
		return 0
	}
	return a % b
}

func (z *ZMachine) executeVAR(frame *CallStackFrame, opcode *Opcode) {
	op := func(i int) uint16 { return opcode.operands[i].Value(z) }
	nop := len(opcode.operands)

	switch opcode.opcodeNumber {
	case 0: // call / call_vs
		z.call(opcode, function)
	case 1: // storew - index is signed
		z.Core.StoreWord(uint32(int32(op(0))+2*int32(int16(op(1)))), op(2))
	case 2: // storeb - index is signed
		z.Core.StoreByte(uint32(int32(op(0))+int32(int16(op(1)))), uint8(op(2)))
	case 3: // put_prop
		zobject.Get(&z.Core, op(0)).SetProperty(uint8(op(1)), op(2))
	case 4: // sread / aread
		z.read(frame, opcode)
	case 5: // print_char
		z.appendText(string(rune(op(0))))
	case 6: // print_num
		z.appendText(fmt.Sprintf("%d", signed(op(0))))
	case 7: // random
		z.storeResult(frame, z.random(signed(op(0))))
	case 8: // push
		frame.push(op(0))
	case 9: // pull
		if z.Version() == 6 && nop == 0 {
			frame.pop(z)
			return
		}
		z.writeVariable(uint8(op(0)), frame.pop(z), true)
	case 10: // split_window
		z.screen.upperWindowHeight = int(op(0))
		if z.io != nil {
			z.io.Dispatch(SplitWindowCommand{Lines: int(op(0))})
		}
	case 11: // set_window
		z.screen.lowerWindowActive = op(0) == 0
		if z.io != nil {
			z.io.Dispatch(SetWindowCommand{Window: int(op(0))})
		}
	case 12: // call_vs2
		z.call(opcode, function)
	case 13: // erase_window
		if z.io != nil {
			z.io.Dispatch(ClearScreenCommand{WindowId: int(signed(op(0)))})
		}
	case 14: // erase_line
		if z.io != nil {
			z.io.Dispatch(EraseLineCommand{Value: int(op(0))})
		}
	case 15: // set_cursor
		z.screen.upperCursorY = int(op(0))
		z.screen.upperCursorX = int(op(1))
		if z.io != nil {
			z.io.Dispatch(SetCursorCommand{Line: int(op(0)), Column: int(op(1))})
		}
	case 16: // get_cursor
		if z.io != nil {
			if cursor, ok := z.io.Dispatch(GetCursorCommand{}).(Cursor); ok {
				z.Core.StoreWord(uint32(op(0)), uint16(cursor.Row))
				z.Core.StoreWord(uint32(op(0))+2, uint16(cursor.Column))
			}
		}
	case 17: // set_text_style
		if z.io != nil {
			z.io.Dispatch(SetTextStyleCommand{Style: int(op(0))})
		}
	case 18: // buffer_mode
		// Buffering is the host's concern once text reaches the
		// IOProvider; nothing to track on this side.
	case 19: // output_stream
		z.outputStream(signed(op(0)), opcode)
	case 20: // input_stream
		if z.io != nil {
			z.io.Dispatch(InputStreamCommand{Number: int(op(0))})
		}
	case 21: // sound_effect
		if z.io != nil {
			effect, volume := 0, 0
			if nop > 1 {
				effect = int(op(1))
			}
			if nop > 2 {
				volume = int(op(2))
			}
			z.io.Dispatch(SoundEffectCommand{Number: int(op(0)), Effect: effect, Volume: volume})
		}
	case 22: // read_char
		z.readChar(frame, opcode)
	case 23: // scan_table
		form := uint16(0x82)
		if nop > 3 {
			form = op(3)
		}
		result := ztable.ScanTable(&z.Core, op(0), uint32(op(1)), op(2), form)
		z.storeResult(frame, result)
		z.handleBranch(frame, result != 0)
	case 24: // not
		z.storeResult(frame, ^op(0))
	case 25: // call_vn
		z.call(opcode, procedure)
	case 26: // call_vn2
		z.call(opcode, procedure)
	case 27: // tokenise
		z.tokenise(opcode)
	case 28: // encode_text
		zchars := zstring.DictionaryZCharCount(z.Version())
		text := z.readZsciiBytes(uint32(op(0)), uint32(op(2)))
		encoded := zstring.Encode([]rune(text), &z.Core, z.Alphabets, zchars)
		for i, b := range encoded {
			z.Core.StoreByte(uint32(op(3))+uint32(i), b)
		}
	case 29: // copy_table
		ztable.CopyTable(&z.Core, uint32(op(0)), uint32(op(1)), int16(op(2)))
	case 30: // print_table
		width := op(1)
		height, skip := uint16(1), uint16(0)
		if nop > 2 {
			height = op(2)
		}
		if nop > 3 {
			skip = op(3)
		}
		z.appendText(ztable.PrintTable(&z.Core, uint32(op(0)), width, height, skip))
	case 31: // check_arg_count
		z.handleBranch(frame, int(op(0)) <= z.callStack.peek().numValuesPassed)
	default:
		panic(newGameException(z.currentInstructionPC, opcode.opcodeByte, "unimplemented VAR opcode %d", opcode.opcodeNumber))
	}
}

func (z *ZMachine) readZsciiBytes(addr uint32, length uint32) string {
	b := make([]byte, length)
	for i := uint32(0); i < length; i++ {
		b[i] = z.Core.ReadByte(addr + i)
	}
	return string(b)
}

func (z *ZMachine) random(n int16) uint16 {
	switch {
	case n > 0:
		return uint16(z.rng.Intn(int(n)) + 1)
	case n < 0:
		z.rng = newSeededRNG(int64(-n))
		return 0
	default:
		z.rng = newSeededRNG(0)
		return 0
	}
}

func (z *ZMachine) outputStream(n int16, opcode *Opcode) {
	switch n {
	case 1:
		z.streams.screen = true
	case -1:
		z.streams.screen = false
	case 2:
		z.streams.transcript = true
	case -2:
		z.streams.transcript = false
	case 3:
		addr := uint32(opcode.operands[1].Value(z))
		if len(z.streams.memoryStreams) >= 16 {
			// Past 16 nested streams the new one is discarded and the
			// deepest existing stream stays active.
			return
		}
		z.streams.memory = true
		z.streams.memoryStreams = append(z.streams.memoryStreams, memoryStream{baseAddress: addr, ptr: addr + 2})
	case -3:
		if len(z.streams.memoryStreams) > 0 {
			top := z.streams.memoryStreams[len(z.streams.memoryStreams)-1]
			z.streams.memoryStreams = z.streams.memoryStreams[:len(z.streams.memoryStreams)-1]
			z.Core.StoreWord(top.baseAddress, uint16(top.ptr-top.baseAddress-2))
			z.streams.memory = len(z.streams.memoryStreams) > 0
		}
	case 4:
		z.streams.commandScript = true
	case -4:
		z.streams.commandScript = false
	}
}

func (z *ZMachine) tokenise(opcode *Opcode) {
	textBufferAddr := uint32(opcode.operands[0].Value(z))
	parseBufferAddr := uint32(opcode.operands[1].Value(z))

	dict := z.dictionary
	if len(opcode.operands) > 2 && opcode.operands[2].Value(z) != 0 {
		dict = dictionary.ParseAt(&z.Core, uint32(opcode.operands[2].Value(z)), z.Alphabets)
	}

	textOffset := 1
	length := uint32(z.Core.ReadByte(textBufferAddr))
	if z.Version() <= 4 {
		textOffset = 1
	} else {
		textOffset = 2
	}
	text := z.readZsciiBytes(textBufferAddr+uint32(textOffset), length)

	tokens := dict.Tokenise(text)
	dict.WriteParseBuffer(&z.Core, z.Alphabets, parseBufferAddr, tokens, textOffset)
}
