package zmachine

import "strings"

func (z *ZMachine) executeEXT(frame *CallStackFrame, opcode *Opcode) {
	op := func(i int) uint16 { return opcode.operands[i].Value(z) }
	nop := len(opcode.operands)

	switch opcode.opcodeNumber {
	case 0x00: // save
		data := z.SaveQuetzal()
		result := uint16(0)
		if z.io != nil {
			if r, ok := z.io.Dispatch(SaveCommand{FileData: data}).(bool); ok && r {
				result = 1
			}
		}
		z.storeResult(frame, result)
	case 0x01: // restore
		result := uint16(0)
		if z.io != nil {
			if raw, ok := z.io.Dispatch(RestoreCommand{}).([]byte); ok && raw != nil {
				if z.RestoreQuetzal(raw) {
					result = 2
				}
			}
		}
		z.storeResult(frame, result)
	case 0x02: // log_shift
		amount := signed(op(1))
		if amount >= 0 {
			z.storeResult(frame, op(0)<<uint(amount))
		} else {
			z.storeResult(frame, op(0)>>uint(-amount))
		}
	case 0x03: // art_shift
		amount := signed(op(1))
		if amount >= 0 {
			z.storeResult(frame, uint16(signed(op(0))<<uint(amount)))
		} else {
			z.storeResult(frame, uint16(signed(op(0))>>uint(-amount)))
		}
	case 0x04: // set_font
		font := Font(op(0))
		available := font == FontNormal || font == FontFixedPitch
		prev := z.screen.currentFont
		if available {
			z.screen.currentFont = font
			if z.io != nil {
				z.io.Dispatch(SetFontCommand{Font: int(font)})
			}
		}
		if available {
			z.storeResult(frame, uint16(prev))
		} else {
			z.storeResult(frame, 0)
		}
	case 0x09: // save_undo
		z.saveUndo()
		z.storeResult(frame, 1)
	case 0x0a: // restore_undo
		z.storeResult(frame, z.restoreUndo())
	case 0x0b: // print_unicode
		z.appendText(string(rune(op(0))))
	case 0x0c: // check_unicode
		result := uint16(0)
		if op(0) != 0 {
			result = 1
		}
		z.storeResult(frame, result)
	case 0x0d: // set_true_colour
		if z.io != nil {
			background := 0
			if nop > 1 {
				background = int(signed(op(1)))
			}
			z.io.Dispatch(SetTrueColourCommand{Foreground: int(signed(op(0))), Background: background})
		}
	default:
		panic(newGameException(z.currentInstructionPC, opcode.opcodeByte, "unimplemented EXT opcode %d", opcode.opcodeNumber))
	}
}

// read implements sread/aread: pushes the status bar on v<=3, then
// suspends for a full line of input. Classic mode (Run) resolves the
// suspension synchronously; pump mode (RunUntilInput/SubmitLineInput)
// returns control to the caller instead (run.go).
func (z *ZMachine) read(frame *CallStackFrame, opcode *Opcode) {
	if z.Version() <= 3 {
		z.pushStatusBar()
	}

	textBufferAddr := uint32(opcode.operands[0].Value(z))
	var parseBufferAddr uint32
	hasParseBuffer := len(opcode.operands) > 1
	if hasParseBuffer {
		parseBufferAddr = uint32(opcode.operands[1].Value(z))
	}

	maxLength := int(z.Core.ReadByte(textBufferAddr))
	textOffset := uint32(1)
	existing := ""
	if z.Version() >= 5 {
		textOffset = 2
		existingLen := int(z.Core.ReadByte(textBufferAddr + 1))
		existing = z.readZsciiBytes(textBufferAddr+2, uint32(existingLen))
	}

	resultVarPC := frame.pc
	_ = resultVarPC

	z.suspended = &suspension{
		kind:      suspendLine,
		maxLength: maxLength,
		resume: func(raw string) {
			line := strings.ToLower(existing + raw)
			if len(line) > maxLength {
				line = line[:maxLength]
			}
			for i := 0; i < len(line); i++ {
				b := line[i]
				if b < 32 || b > 126 {
					b = ' '
				}
				z.Core.StoreByte(textBufferAddr+textOffset+uint32(i), b)
			}

			if z.Version() >= 5 {
				z.Core.StoreByte(textBufferAddr+1, uint8(len(line)))
			} else {
				z.Core.StoreByte(textBufferAddr+uint32(len(line))+textOffset, 0)
			}

			if hasParseBuffer {
				tokens := z.dictionary.Tokenise(line)
				z.dictionary.WriteParseBuffer(&z.Core, z.Alphabets, parseBufferAddr, tokens, int(textOffset))
			}

			if z.Version() >= 5 {
				z.storeResult(frame, 13)
			}
		},
	}
}

// readChar implements read_char: suspends for a single keystroke.
func (z *ZMachine) readChar(frame *CallStackFrame, opcode *Opcode) {
	z.suspended = &suspension{
		kind: suspendChar,
		resume: func(raw string) {
			var ch uint16 = 13
			if len(raw) > 0 {
				ch = uint16(raw[0])
			}
			z.storeResult(frame, ch)
		},
	}
}
