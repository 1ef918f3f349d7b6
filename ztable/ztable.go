// Package ztable implements the three generic table opcodes - print_table,
// scan_table, and copy_table (spec.md S4.6) - that operate on raw memory
// windows rather than any of the machine's other structured regions.
package ztable

import (
	"strings"

	"github.com/davetcode/goz/zcore"
)

// PrintTable renders a width x height block of ASCII bytes starting at
// baddr, with skip extra bytes of stride added between rows (the
// "print_table" opcode). Callers default height to 1 and skip to 0 when the
// operand is omitted, per the opcode's optional-argument form.
func PrintTable(core *zcore.Core, baddr uint32, width, height, skip uint16) string {
	var s strings.Builder

	for row := uint16(0); row < height; row++ {
		if row > 0 {
			s.WriteByte('\n')
		}
		rowStart := baddr + uint32(row)*(uint32(width)+uint32(skip))
		for col := uint16(0); col < width; col++ {
			s.WriteByte(core.ReadByte(rowStart + uint32(col)))
		}
	}

	return s.String()
}

// ScanTable searches length entries of form&0x7f bytes each starting at
// baddr for test, comparing each entry's first word (bit 7 of form set) or
// first byte (bit 7 clear), and returns the address of the first match or 0
// (the "scan_table" opcode).
func ScanTable(core *zcore.Core, test uint16, baddr uint32, length uint16, form uint16) uint16 {
	fieldSize := form & 0b0111_1111
	checkWord := form&0b1000_0000 != 0
	if fieldSize == 0 {
		return 0
	}

	ptr := baddr
	for i := uint16(0); i < length; i++ {
		var value uint16
		if checkWord {
			value = core.ReadWord(ptr)
		} else {
			value = uint16(core.ReadByte(ptr))
		}
		if value == test {
			return uint16(ptr)
		}
		ptr += uint32(fieldSize)
	}

	return 0
}

// CopyTable copies |size| bytes from first to second. A second of 0 zeroes
// |size| bytes at first instead (its documented special case). Negative size
// permits overlap by copying byte-by-byte in ascending order; non-negative
// size copies via an intermediate buffer so overlapping regions see the
// source's original contents throughout (the "copy_table" opcode).
func CopyTable(core *zcore.Core, first, second uint32, size int16) {
	sizeAbs := uint32(size)
	if size < 0 {
		sizeAbs = uint32(-int32(size))
	}

	switch {
	case second == 0:
		for i := uint32(0); i < sizeAbs; i++ {
			core.StoreByte(first+i, 0)
		}

	case size >= 0:
		tmp := make([]uint8, sizeAbs)
		copy(tmp, core.ReadRange(first, first+sizeAbs))
		for i, v := range tmp {
			core.StoreByte(second+uint32(i), v)
		}

	default:
		for i := uint32(0); i < sizeAbs; i++ {
			core.StoreByte(second+i, core.ReadByte(first+i))
		}
	}
}
