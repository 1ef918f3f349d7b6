package zstring

import "github.com/davetcode/goz/zcore"

// Alphabets holds the three 26-character shift alphabets (A0/A1/A2) used to
// decode Z-characters 6..31. Versions 1-4 always use the built-in defaults;
// v5+ stories may override them via the header's alphabet-table pointer
// (word 0x34), 78 bytes: A0 then A1 then A2.
type Alphabets struct {
	A0 [26]byte
	A1 [26]byte
	A2 [26]byte
}

var defaultA0 = [26]byte{'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h', 'i', 'j', 'k', 'l', 'm', 'n', 'o', 'p', 'q', 'r', 's', 't', 'u', 'v', 'w', 'x', 'y', 'z'}
var defaultA1 = [26]byte{'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K', 'L', 'M', 'N', 'O', 'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W', 'X', 'Y', 'Z'}

// defaultA2 is the v2+ A2 table. Index 0 (z-char 6) is never read directly -
// it begins a 10-bit ZSCII escape - and index 1 (z-char 7) is newline.
var defaultA2 = [26]byte{0, '\n', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '.', ',', '!', '?', '_', '#', '\'', '"', '/', '\\', '-', ':', '(', ')'}

// v1A2 is the A2 table for version 1, which has no newline escape slot (v1
// uses z-char 1 for newline instead) and so starts its digits one slot
// earlier, using the freed slot for an extra '<' just before '-'.
var v1A2 = [26]byte{0, '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '.', ',', '!', '?', '_', '#', '\'', '"', '/', '\\', '<', '-', ':', '(', ')'}

// DefaultAlphabets returns the built-in shift alphabets for the given
// version (only the A2 table varies, and only for v1).
func DefaultAlphabets(version uint8) *Alphabets {
	a := &Alphabets{A0: defaultA0, A1: defaultA1, A2: defaultA2}
	if version == 1 {
		a.A2 = v1A2
	}
	return a
}

// LoadAlphabets returns the alphabets in effect for a loaded story: the
// header override table on v5+ if one is present, otherwise the built-in
// defaults for the story's version.
func LoadAlphabets(core *zcore.Core) *Alphabets {
	a := DefaultAlphabets(core.Version)
	if core.Version >= 5 && core.AlphabetTableBase != 0 {
		base := uint32(core.AlphabetTableBase)
		for i := 0; i < 26; i++ {
			a.A0[i] = core.ReadByte(base + uint32(i))
			a.A1[i] = core.ReadByte(base + 26 + uint32(i))
			a.A2[i] = core.ReadByte(base + 52 + uint32(i))
		}
	}
	return a
}
