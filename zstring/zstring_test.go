package zstring

import (
	"testing"

	"github.com/davetcode/goz/zcore"
)

// buildStory returns a minimal v3 header-only image with an abbreviation
// table and two z-strings for Decode tests.
func buildStory(t *testing.T, abbrBase, string1Addr, string2Addr uint16) []byte {
	t.Helper()
	b := make([]byte, 0x200)
	b[0x00] = 3 // version
	putU16 := func(off int, v uint16) { b[off] = byte(v >> 8); b[off+1] = byte(v) }
	putU16(0x0e, 0x100) // static memory base, keeps everything below "dynamic"
	putU16(0x18, abbrBase)
	return b
}

func core(t *testing.T, b []byte) *zcore.Core {
	t.Helper()
	c, err := zcore.LoadCore(b)
	if err != nil {
		t.Fatalf("LoadCore: %v", err)
	}
	return c
}

func TestDecodeSimpleWord(t *testing.T) {
	b := buildStory(t, 0, 0, 0)
	// "cab" -> zchars 8,6,7 (a=6,b=7,c=8) packed with terminator: 0x8000|(8<<10)|(6<<5)|7 = 0xa0c7
	word := uint16(1)<<15 | uint16(8)<<10 | uint16(6)<<5 | uint16(7)
	b[0x40] = byte(word >> 8)
	b[0x41] = byte(word)
	c := core(t, b)
	alphabets := LoadAlphabets(c)

	text, next := Decode(c, 0x40, alphabets)
	if text != "cab" {
		t.Fatalf("got %q want %q", text, "cab")
	}
	if next != 0x42 {
		t.Fatalf("got next=%d want 0x42", next)
	}
}

func TestDecodeSpaceAndShift(t *testing.T) {
	b := buildStory(t, 0, 0, 0)
	// "A " -> shift to A1 (zchar 4), then 'A' (idx0 -> zchar 6), then space (zchar 0).
	word := uint16(1)<<15 | uint16(4)<<10 | uint16(6)<<5 | uint16(0)
	b[0x40] = byte(word >> 8)
	b[0x41] = byte(word)
	c := core(t, b)
	alphabets := LoadAlphabets(c)

	text, _ := Decode(c, 0x40, alphabets)
	if text != "A " {
		t.Fatalf("got %q want %q", text, "A ")
	}
}

func TestEncodeRoundTripsThroughAlphabetA0(t *testing.T) {
	b := buildStory(t, 0, 0, 0)
	c := core(t, b)
	alphabets := LoadAlphabets(c)

	encoded := Encode([]rune("cab"), c, alphabets, 4)
	if len(encoded) != 4 {
		t.Fatalf("expected 4 bytes (2 words) for 4 zchars, got %d", len(encoded))
	}

	// Write the encoded bytes into memory and decode them back.
	addr := uint32(0x50)
	for i, bb := range encoded {
		b2 := bb
		c.StoreByte(addr+uint32(i), b2)
	}
	text, _ := Decode(c, addr, alphabets)
	if text != "cab" {
		t.Fatalf("round trip got %q want %q (prefix match on pad)", text, "cab")
	}
}

func TestAbbreviationLookup(t *testing.T) {
	b := buildStory(t, 0x60, 0, 0)
	// Abbreviation table at 0x60: one entry (index 0) pointing (as a packed
	// word addr, i.e. halved) at 0x80.
	strAddr := uint16(0x80)
	b[0x60] = byte(strAddr / 2 >> 8)
	b[0x61] = byte(strAddr / 2)

	// String at 0x80: "ab" -> zchars 6,7 terminated.
	word := uint16(1)<<15 | uint16(6)<<10 | uint16(7)<<5 | uint16(5)
	b[0x80] = byte(word >> 8)
	b[0x81] = byte(word)

	// Main string at 0x40: abbreviation escape 1 with index 0, then 'z'.
	word2 := uint16(1)<<15 | uint16(1)<<10 | uint16(0)<<5 | uint16(31)
	b[0x40] = byte(word2 >> 8)
	b[0x41] = byte(word2)

	c := core(t, b)
	alphabets := LoadAlphabets(c)

	text, _ := Decode(c, 0x40, alphabets)
	if text != "abz" {
		t.Fatalf("got %q want %q", text, "abz")
	}
}

func TestCacheFlush(t *testing.T) {
	b := buildStory(t, 0, 0, 0)
	c := core(t, b)
	alphabets := LoadAlphabets(c)
	cache := NewCache(uint32(c.StaticMemoryBase))

	word := uint16(1)<<15 | uint16(8)<<10 | uint16(6)<<5 | uint16(7)
	addr := uint32(c.StaticMemoryBase) + 0x10
	c2 := make([]byte, addr+2)
	copy(c2, b)
	c2[addr] = byte(word >> 8)
	c2[addr+1] = byte(word)
	c3, err := zcore.LoadCore(c2)
	if err != nil {
		t.Fatalf("LoadCore: %v", err)
	}

	text1, _ := cache.DecodeCached(c3, addr, alphabets)
	if text1 != "cab" {
		t.Fatalf("got %q want %q", text1, "cab")
	}

	cache.Flush()
	text2, _ := cache.DecodeCached(c3, addr, alphabets)
	if text2 != text1 {
		t.Fatalf("post-flush decode mismatch: %q vs %q", text2, text1)
	}
}

func TestDictionaryWordWidth(t *testing.T) {
	if DictionaryWordWidth(3) != 4 {
		t.Fatalf("v3 width should be 4")
	}
	if DictionaryWordWidth(5) != 6 {
		t.Fatalf("v5 width should be 6")
	}
}
