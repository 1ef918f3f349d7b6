// Package zstring implements the ZSCII codec: decoding packed Z-strings
// through the shift-alphabet/abbreviation state machine described in
// spec.md S4.2, and encoding player input back into the same packed form
// for dictionary lookups.
package zstring

import (
	"strings"
	"sync"

	"github.com/davetcode/goz/zcore"
)

const padZchar = 5

// shiftTarget returns which of A0/A1/A2 a shift z-char selects.
// v1-2 treat 4/5 as *locking* shifts (baseAlphabet changes until the next
// shift); v3+ treat them as one-time shifts for the following character
// only. The caller is responsible for the locking-vs-one-time distinction;
// this just maps the code to a target alphabet.
func shiftTarget(current int, zchar uint8) int {
	if zchar == 4 {
		return (current + 1) % 3
	}
	return (current + 2) % 3
}

// zcharStream unpacks the 5-bit codes from a run of 16-bit words starting
// at addr, stopping at the first word with its high bit set. Returns the
// codes and the number of bytes consumed (always a multiple of 2).
func zcharStream(core *zcore.Core, addr uint32) ([]uint8, uint32) {
	var codes []uint8
	var consumed uint32
	for {
		word := core.ReadWord(addr + consumed)
		consumed += 2
		codes = append(codes, uint8((word>>10)&0x1f), uint8((word>>5)&0x1f), uint8(word&0x1f))
		if word&0x8000 != 0 {
			break
		}
	}
	return codes, consumed
}

// Decode reads one packed Z-string starting at addr and returns its decoded
// text plus the address immediately following the terminating word.
func Decode(core *zcore.Core, addr uint32, alphabets *Alphabets) (string, uint32) {
	codes, consumed := zcharStream(core, addr)
	text := decodeStream(core, codes, alphabets, false)
	return text, addr + consumed
}

// decodeStream renders a z-char stream to text. inAbbreviation disallows a
// second abbreviation escape, per spec.md S4.2 ("abbreviation recursion is
// disallowed").
func decodeStream(core *zcore.Core, codes []uint8, alphabets *Alphabets, inAbbreviation bool) string {
	var out strings.Builder
	version := core.Version
	base := 0    // locked alphabet (v1-2 only)
	current := 0 // alphabet in effect for the next character

	for i := 0; i < len(codes); i++ {
		zchar := codes[i]
		active := current
		current = base // one-time shifts (v3+) revert after one character

		switch {
		case zchar == 0:
			out.WriteByte(' ')

		case zchar == 1 && version == 1:
			out.WriteByte('\n')

		case zchar == 1 && version >= 2:
			if inAbbreviation {
				panic("zstring: nested abbreviation escape")
			}
			if i+1 < len(codes) {
				out.WriteString(FindAbbreviation(core, alphabets, 1, codes[i+1]))
				i++
			}

		case zchar == 2 && version <= 2:
			current = shiftTarget(base, 4)

		case zchar == 2 && version >= 3:
			if inAbbreviation {
				panic("zstring: nested abbreviation escape")
			}
			if i+1 < len(codes) {
				out.WriteString(FindAbbreviation(core, alphabets, 2, codes[i+1]))
				i++
			}

		case zchar == 3 && version <= 2:
			current = shiftTarget(base, 5)

		case zchar == 3 && version >= 3:
			if inAbbreviation {
				panic("zstring: nested abbreviation escape")
			}
			if i+1 < len(codes) {
				out.WriteString(FindAbbreviation(core, alphabets, 3, codes[i+1]))
				i++
			}

		case zchar == 4:
			if version <= 2 {
				base = shiftTarget(base, 4)
				current = base
			} else {
				current = shiftTarget(base, 4)
			}

		case zchar == 5:
			if version <= 2 {
				base = shiftTarget(base, 5)
				current = base
			} else {
				current = shiftTarget(base, 5)
			}

		case active == 2 && zchar == 6:
			// 10-bit ZSCII escape: consumes the next two z-chars. Bounds are
			// checked explicitly so a truncated escape at the end of a
			// buffer never reads past the stream.
			if i+2 < len(codes) {
				code := uint16(codes[i+1])<<5 | uint16(codes[i+2])
				out.WriteRune(zsciiToRune(core, code))
				i += 2
			}

		case active == 2 && zchar == 7:
			out.WriteByte('\n')

		case zchar >= 6:
			out.WriteByte(alphabetChar(alphabets, active, zchar))

		default:
			// zchar < 6 and not otherwise handled (e.g. version-specific
			// unused slots) - silently produces nothing, matching the
			// permissive stance the format takes toward malformed strings.
		}
	}

	return out.String()
}

func alphabetChar(alphabets *Alphabets, alphabet int, zchar uint8) byte {
	idx := zchar - 6
	switch alphabet {
	case 0:
		return alphabets.A0[idx]
	case 1:
		return alphabets.A1[idx]
	default:
		return alphabets.A2[idx]
	}
}

// zsciiToRune resolves a ZSCII code point to its rune. code is carried as a
// uint16 because the 10-bit escape (S4.2) can exceed 255; ZsciiToUnicode's
// table only covers the 8-bit extended range, so wider codes fall through
// to the raw cast.
func zsciiToRune(core *zcore.Core, code uint16) rune {
	if code >= 155 && code <= 223 {
		if r, ok := ZsciiToUnicode(uint8(code), UnicodeTable(core)); ok {
			return r
		}
	}
	if code >= 32 && code <= 126 {
		return rune(code)
	}
	return rune(code)
}

// FindAbbreviation resolves abbreviation escape (esc, x) to its decoded
// text. abbrIx = 32*(esc-1)+x; the string address is stored as a packed
// (halved) word at AbbreviationTableBase + 2*abbrIx.
func FindAbbreviation(core *zcore.Core, alphabets *Alphabets, esc, x uint8) string {
	abbrIx := uint32(32*(esc-1) + x)
	entryAddr := uint32(core.AbbreviationTableBase) + 2*abbrIx
	strAddr := uint32(core.ReadWord(entryAddr)) * 2

	codes, _ := zcharStream(core, strAddr)
	return decodeStream(core, codes, alphabets, true)
}

// Cache memoises decoded strings whose source address lies in the static
// memory region (immutable for the life of the loaded story). It must be
// flushed on every Load, per spec.md S4.2.
type Cache struct {
	mu        sync.Mutex
	entries   map[uint32]cacheEntry
	staticLow uint32
}

type cacheEntry struct {
	text    string
	nextPtr uint32
}

// NewCache builds a cache that only memoises addresses >= staticMemBase.
func NewCache(staticMemBase uint32) *Cache {
	return &Cache{entries: make(map[uint32]cacheEntry), staticLow: staticMemBase}
}

// Flush discards all memoised entries (called from ZMachine.restart;
// LoadRom builds a fresh cache instead).
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint32]cacheEntry)
}

// DecodeCached behaves like Decode but consults/populates the cache for
// addresses in the static region.
func (c *Cache) DecodeCached(core *zcore.Core, addr uint32, alphabets *Alphabets) (string, uint32) {
	if addr < c.staticLow {
		return Decode(core, addr, alphabets)
	}

	c.mu.Lock()
	if e, ok := c.entries[addr]; ok {
		c.mu.Unlock()
		return e.text, e.nextPtr
	}
	c.mu.Unlock()

	text, next := Decode(core, addr, alphabets)

	c.mu.Lock()
	c.entries[addr] = cacheEntry{text: text, nextPtr: next}
	c.mu.Unlock()

	return text, next
}

// reverseAlphabet finds (alphabetIndex, zchar) for a single lowercase ASCII
// byte, preferring A0 (no shift needed), falling back to A1 then A2.
func reverseAlphabet(alphabets *Alphabets, b byte) (alphabet int, zchar uint8, ok bool) {
	for i, c := range alphabets.A0 {
		if c == b {
			return 0, uint8(i) + 6, true
		}
	}
	for i, c := range alphabets.A1 {
		if c == b {
			return 1, uint8(i) + 6, true
		}
	}
	for i, c := range alphabets.A2 {
		if c == b {
			return 2, uint8(i) + 6, true
		}
	}
	return 0, 0, false
}

// Encode packs runes into a fixed-width Z-string of nZchars Z-characters
// (6 for v1-3 dictionary keys, 9 for v4+, see DictionaryZCharCount; callers doing input encoding for
// read/tokenise also use this with the same width). Input is lower-cased
// first, matching the dictionary's case-insensitive keys. Unencodable runes
// fall back to a 10-bit ZSCII escape in A2.
func Encode(runes []rune, core *zcore.Core, alphabets *Alphabets, nZchars int) []byte {
	var zchars []uint8
	lowered := make([]rune, len(runes))
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			r = r - 'A' + 'a'
		}
		lowered[i] = r
	}

	for _, r := range lowered {
		if len(zchars) >= nZchars {
			break
		}
		if r > 255 {
			continue
		}
		b := byte(r)
		if alphabet, zchar, ok := reverseAlphabet(alphabets, b); ok {
			switch alphabet {
			case 0:
				zchars = append(zchars, zchar)
			case 1:
				zchars = append(zchars, 4, zchar)
			case 2:
				zchars = append(zchars, 5, zchar)
			}
			continue
		}

		// Fall back to a 10-bit ZSCII escape (A2 code 6, then two 5-bit
		// halves of the ZSCII value).
		zchars = append(zchars, 5, 6, b>>5, b&0x1f)
	}

	for len(zchars) < nZchars {
		zchars = append(zchars, padZchar)
	}
	zchars = zchars[:nZchars]

	out := make([]byte, 0, nZchars/3*2+2)
	for i := 0; i < len(zchars); i += 3 {
		var c0, c1, c2 uint8
		c0 = zchars[i]
		if i+1 < len(zchars) {
			c1 = zchars[i+1]
		} else {
			c1 = padZchar
		}
		if i+2 < len(zchars) {
			c2 = zchars[i+2]
		} else {
			c2 = padZchar
		}
		word := uint16(c0&0x1f)<<10 | uint16(c1&0x1f)<<5 | uint16(c2&0x1f)
		if i+3 >= len(zchars) {
			word |= 0x8000
		}
		out = append(out, byte(word>>8), byte(word))
	}
	return out
}

// DictionaryWordWidth returns the BYTE width of an encoded dictionary key as
// stored on disk: 4 bytes (2 words) for v1-3, 6 bytes (3 words) for v4+
// (spec.md S3/S4.3). This is what ParseAt reads off each entry - it is not
// the Z-character count encoded into those bytes; see DictionaryZCharCount
// for that.
func DictionaryWordWidth(version uint8) int {
	if version <= 3 {
		return 4
	}
	return 6
}

// DictionaryZCharCount returns the number of Z-characters packed into a
// dictionary key before truncation: 6 for v1-3 (two 3-Z-char words), 9 for
// v4+ (three 3-Z-char words). This is the nZchars callers must pass to
// Encode when producing a dictionary lookup key or a parse-buffer entry -
// using the byte width here instead truncates every encoded word short and
// breaks dictionary lookups (e.g. "mailbox" would only encode its first 4
// Z-characters instead of all 6).
func DictionaryZCharCount(version uint8) int {
	if version <= 3 {
		return 6
	}
	return 9
}
