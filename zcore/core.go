// Package zcore owns the Z-machine memory map: the mutable byte image of a
// loaded story file, its header fields, and the access discipline that keeps
// static and high memory read-only at runtime.
package zcore

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrOutOfBounds is the panic value raised when an address falls outside
// [0, len(bytes)).
var ErrOutOfBounds = errors.New("zcore: address out of bounds")

// ErrIllegalWrite is the panic value raised when a store targets static or
// high memory.
var ErrIllegalWrite = errors.New("zcore: illegal write to static or high memory")

// MalformedStoryError is raised at load time for a truncated or invalid
// story image - a version byte that isn't supported, or a file too short to
// contain its own header.
type MalformedStoryError struct {
	Reason string
}

func (e *MalformedStoryError) Error() string {
	return fmt.Sprintf("zcore: malformed story file: %s", e.Reason)
}

// Core is the memory map: a mutable copy of the story bytes plus the header
// fields read out of the fixed 0x00..0x3f region at load time. Every read
// goes straight to the backing slice - there is no caching at this layer;
// the ZSCII decode cache (zstring.Cache) is the only thing allowed to
// memoise memory contents, and only for the static region.
type Core struct {
	bytes []uint8

	Version                          uint8
	Flags1                           uint8
	StatusBarTimeBased               bool
	ReleaseNumber                    uint16
	HighMemoryBase                   uint16
	FirstInstruction                 uint16
	DictionaryBase                   uint16
	ObjectTableBase                  uint16
	GlobalVariableBase               uint16
	StaticMemoryBase                 uint16
	AbbreviationTableBase            uint16
	FileChecksum                     uint16
	InterpreterNumber                uint8
	InterpreterVersion               uint8
	ScreenHeightLines                uint8
	ScreenWidthChars                 uint8
	ScreenWidthUnits                 uint16
	ScreenHeightUnits                uint16
	FontHeight                       uint8
	FontWidth                        uint8
	RoutinesOffset                   uint16
	StringOffset                     uint16
	DefaultBackgroundColorNumber     uint8
	DefaultForegroundColorNumber     uint8
	TerminatingCharTableBase         uint16
	OutputStream3Width               uint16
	StandardRevisionNumber           uint16
	AlphabetTableBase                uint16
	HeaderExtensionBase              uint16
	UnicodeExtensionTableBaseAddress uint16
	Serial                           [6]byte
}

// maxStoryLength is the spec's per-version cap, in bytes.
func maxStoryLength(version uint8) uint32 {
	switch {
	case version <= 3:
		return 128 * 1024
	case version <= 5:
		return 256 * 1024
	case version == 7:
		return 320 * 1024
	default:
		return 512 * 1024
	}
}

// LoadCore parses a story image's header and returns a Core ready to run.
// It takes ownership of the passed slice; callers that need the pristine
// bytes later (Quetzal CMem diffing) must keep their own copy first.
func LoadCore(storyBytes []uint8) (*Core, error) {
	if len(storyBytes) < 0x40 {
		return nil, &MalformedStoryError{Reason: "file shorter than the 64-byte header"}
	}

	version := storyBytes[0x00]
	switch version {
	case 1, 2, 3, 4, 5, 6, 7, 8:
	default:
		return nil, &MalformedStoryError{Reason: fmt.Sprintf("unsupported version byte %d", version)}
	}

	if uint32(len(storyBytes)) > maxStoryLength(version) {
		return nil, &MalformedStoryError{Reason: fmt.Sprintf("file exceeds max length for version %d", version)}
	}

	core := &Core{
		bytes:                    storyBytes,
		Version:                  version,
		Flags1:                   storyBytes[0x01],
		StatusBarTimeBased:       storyBytes[0x01]&0b0000_0010 != 0,
		ReleaseNumber:            binary.BigEndian.Uint16(storyBytes[0x02:0x04]),
		HighMemoryBase:           binary.BigEndian.Uint16(storyBytes[0x04:0x06]),
		FirstInstruction:         binary.BigEndian.Uint16(storyBytes[0x06:0x08]),
		DictionaryBase:           binary.BigEndian.Uint16(storyBytes[0x08:0x0a]),
		ObjectTableBase:          binary.BigEndian.Uint16(storyBytes[0x0a:0x0c]),
		GlobalVariableBase:       binary.BigEndian.Uint16(storyBytes[0x0c:0x0e]),
		StaticMemoryBase:         binary.BigEndian.Uint16(storyBytes[0x0e:0x10]),
		AbbreviationTableBase:    binary.BigEndian.Uint16(storyBytes[0x18:0x1a]),
		FileChecksum:             binary.BigEndian.Uint16(storyBytes[0x1c:0x1e]),
		RoutinesOffset:           binary.BigEndian.Uint16(storyBytes[0x28:0x2a]),
		StringOffset:             binary.BigEndian.Uint16(storyBytes[0x2a:0x2c]),
		TerminatingCharTableBase: binary.BigEndian.Uint16(storyBytes[0x2e:0x30]),
		OutputStream3Width:       binary.BigEndian.Uint16(storyBytes[0x30:0x32]),
		StandardRevisionNumber:   binary.BigEndian.Uint16(storyBytes[0x32:0x34]),
	}
	copy(core.Serial[:], storyBytes[0x12:0x18])

	if version >= 5 {
		core.AlphabetTableBase = binary.BigEndian.Uint16(storyBytes[0x34:0x36])
		core.HeaderExtensionBase = binary.BigEndian.Uint16(storyBytes[0x36:0x38])
		if core.HeaderExtensionBase != 0 {
			words := core.ReadWord(uint32(core.HeaderExtensionBase))
			if words >= 3 {
				core.UnicodeExtensionTableBaseAddress = core.ReadWord(uint32(core.HeaderExtensionBase) + 6)
			}
		}
	}

	return core, nil
}

// WriteHeaderFields stamps interpreter identity and screen geometry into the
// header, per spec S6. Called once at load time by the engine, not by the
// memory map itself, so tests can build a Core without a host around it.
func (c *Core) WriteHeaderFields(interpreterNumber, interpreterVersion uint8, screenRows, screenCols int, flags1 uint8) {
	c.InterpreterNumber = interpreterNumber
	c.InterpreterVersion = interpreterVersion
	c.ScreenHeightLines = uint8(screenRows)
	c.ScreenWidthChars = uint8(screenCols)
	c.ScreenWidthUnits = uint16(screenCols)
	c.ScreenHeightUnits = uint16(screenRows)
	c.FontHeight = 1
	c.FontWidth = 1
	c.Flags1 |= flags1

	c.bytes[0x1e] = interpreterNumber
	c.bytes[0x1f] = interpreterVersion
	c.bytes[0x20] = uint8(screenRows)
	c.bytes[0x21] = uint8(screenCols)
	binary.BigEndian.PutUint16(c.bytes[0x22:0x24], uint16(screenCols))
	binary.BigEndian.PutUint16(c.bytes[0x24:0x26], uint16(screenRows))
	c.bytes[0x26] = 1
	c.bytes[0x27] = 1
	c.bytes[0x32] = 1 // standard revision 1.2
	c.bytes[0x33] = 2
	c.bytes[0x01] |= flags1
}

// SetDefaultColors stamps the default background/foreground color numbers
// (header bytes 0x2c/0x2d, v5+) used by set_colour's COLOR_DEFAULT operand.
func (c *Core) SetDefaultColors(background, foreground uint8) {
	c.DefaultBackgroundColorNumber = background
	c.DefaultForegroundColorNumber = foreground
	if len(c.bytes) > 0x2d {
		c.bytes[0x2c] = background
		c.bytes[0x2d] = foreground
	}
}

// FileLength returns the file length recorded in the header (word 0x1a),
// multiplied by the version-dependent scale factor.
func (c *Core) FileLength() uint32 {
	var divisor uint32
	switch {
	case c.Version <= 3:
		divisor = 2
	case c.Version <= 5:
		divisor = 4
	default:
		divisor = 8
	}
	return uint32(binary.BigEndian.Uint16(c.bytes[0x1a:0x1c])) * divisor
}

// Len returns the length of the in-memory story image.
func (c *Core) Len() uint32 { return uint32(len(c.bytes)) }

func (c *Core) checkBounds(addr, width uint32) {
	if addr+width > uint32(len(c.bytes)) || addr+width < addr {
		panic(ErrOutOfBounds)
	}
}

// ReadByte loads a single byte.
func (c *Core) ReadByte(addr uint32) uint8 {
	c.checkBounds(addr, 1)
	return c.bytes[addr]
}

// ReadWord loads a big-endian 16-bit word.
func (c *Core) ReadWord(addr uint32) uint16 {
	c.checkBounds(addr, 2)
	return binary.BigEndian.Uint16(c.bytes[addr : addr+2])
}

// ReadRange returns a read-only view of [start, end).
func (c *Core) ReadRange(start, end uint32) []uint8 {
	c.checkBounds(start, end-start)
	return c.bytes[start:end]
}

// StoreByte writes a single byte. Stores at or beyond StaticMemoryBase
// panic with ErrIllegalWrite.
func (c *Core) StoreByte(addr uint32, v uint8) {
	if addr >= uint32(c.StaticMemoryBase) {
		panic(ErrIllegalWrite)
	}
	c.checkBounds(addr, 1)
	c.bytes[addr] = v
}

// StoreWord writes a big-endian 16-bit word.
func (c *Core) StoreWord(addr uint32, v uint16) {
	if addr+1 >= uint32(c.StaticMemoryBase) {
		panic(ErrIllegalWrite)
	}
	c.checkBounds(addr, 2)
	binary.BigEndian.PutUint16(c.bytes[addr:addr+2], v)
}

// ReadGlobal reads global variable n (0x10..0xff) from the 480-byte globals
// region at GlobalVariableBase.
func (c *Core) ReadGlobal(n uint8) uint16 {
	return c.ReadWord(uint32(c.GlobalVariableBase) + 2*uint32(n-0x10))
}

// WriteGlobal writes global variable n.
func (c *Core) WriteGlobal(n uint8, v uint16) {
	c.StoreWord(uint32(c.GlobalVariableBase)+2*uint32(n-0x10), v)
}

// DynamicMemory returns the mutable [0, StaticMemoryBase) region, used
// wholesale by Quetzal save/restore.
func (c *Core) DynamicMemory() []uint8 {
	return c.bytes[:c.StaticMemoryBase]
}

// RestoreDynamicMemory overwrites the dynamic region in place.
func (c *Core) RestoreDynamicMemory(data []uint8) {
	copy(c.bytes[:c.StaticMemoryBase], data)
}
