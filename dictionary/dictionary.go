// Package dictionary implements the Z-machine's dictionary and tokeniser:
// parsing the on-disk word list, splitting player input into tokens on the
// story's declared separator set, and writing the parse buffer that `sread`/
// `tokenise` hand back to the running story (spec.md S4.3).
package dictionary

import (
	"bytes"
	"sort"

	"github.com/davetcode/goz/zcore"
	"github.com/davetcode/goz/zstring"
)

// Header is the dictionary's fixed preamble: the input-code (word separator)
// table, the encoded-entry width, and the entry count.
type Header struct {
	InputCodes []uint8
	EntryLen   uint8
	Count      int16
}

// Entry is one decoded dictionary word.
type Entry struct {
	Address     uint16
	EncodedWord []uint8
	DecodedWord string
	Data        []uint8
}

// Dictionary is the parsed word list plus enough of the header to tokenise
// input against it.
type Dictionary struct {
	Header  Header
	Entries []Entry
	base    uint32
}

// Parse reads the dictionary at core.DictionaryBase.
func Parse(core *zcore.Core, alphabets *zstring.Alphabets) *Dictionary {
	return ParseAt(core, uint32(core.DictionaryBase), alphabets)
}

// ParseAt reads a dictionary starting at an arbitrary address, used by the
// `tokenise` opcode's optional custom-dictionary operand (spec.md S4.3).
func ParseAt(core *zcore.Core, base uint32, alphabets *zstring.Alphabets) *Dictionary {
	numInputCodes := core.ReadByte(base)

	inputCodes := make([]uint8, numInputCodes)
	for i := uint32(0); i < uint32(numInputCodes); i++ {
		inputCodes[i] = core.ReadByte(base + 1 + i)
	}

	entryLenAddr := base + 1 + uint32(numInputCodes)
	header := Header{
		InputCodes: inputCodes,
		EntryLen:   core.ReadByte(entryLenAddr),
		Count:      int16(core.ReadWord(entryLenAddr + 1)),
	}

	count := int(header.Count)
	unsorted := count < 0
	if unsorted {
		count = -count
	}

	entryPtr := entryLenAddr + 3
	encodedWordLength := zstring.DictionaryWordWidth(core.Version)

	entries := make([]Entry, count)
	for i := 0; i < count; i++ {
		encodedWord := core.ReadRange(entryPtr, entryPtr+uint32(encodedWordLength))
		decodedWord, _ := zstring.Decode(core, entryPtr, alphabets)
		entries[i] = Entry{
			Address:     uint16(entryPtr),
			EncodedWord: append([]uint8(nil), encodedWord...),
			DecodedWord: decodedWord,
			Data:        core.ReadRange(entryPtr+uint32(encodedWordLength), entryPtr+uint32(header.EntryLen)),
		}
		entryPtr += uint32(header.EntryLen)
	}

	if unsorted {
		sort.Slice(entries, func(i, j int) bool { return bytes.Compare(entries[i].EncodedWord, entries[j].EncodedWord) < 0 })
	}

	return &Dictionary{Header: header, Entries: entries, base: base}
}

// Find looks up a pre-encoded word, returning its dictionary address or 0 if
// absent. Entries are kept sorted by encoded bytes (the common case for
// story dictionaries; spec.md S4.3 "lookup via binary search"), so this is a
// binary search regardless of whether the on-disk table was already sorted.
func (d *Dictionary) Find(zstr []uint8) uint16 {
	lo, hi := 0, len(d.Entries)
	for lo < hi {
		mid := (lo + hi) / 2
		cmp := bytes.Compare(d.Entries[mid].EncodedWord, zstr)
		switch {
		case cmp == 0:
			return d.Entries[mid].Address
		case cmp < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return 0
}

// isSeparator reports whether b is one of the dictionary's declared
// word-separator input codes (always includes space implicitly).
func (d *Dictionary) isSeparator(b byte) bool {
	if b == ' ' {
		return true
	}
	for _, c := range d.Header.InputCodes {
		if c == b {
			return true
		}
	}
	return false
}

// Token is one word found by Tokenise: its text, and its byte offset/length
// within the original input buffer.
type Token struct {
	Text   string
	Start  int
	Length int
}

// Tokenise splits text into words on whitespace and the dictionary's
// separator set; separators that aren't whitespace are themselves emitted as
// single-character tokens, per spec.md S4.3 ("punctuation declared as a
// dictionary separator is tokenised as its own word").
func (d *Dictionary) Tokenise(text string) []Token {
	var tokens []Token
	start := -1

	flush := func(end int) {
		if start >= 0 {
			tokens = append(tokens, Token{Text: text[start:end], Start: start, Length: end - start})
			start = -1
		}
	}

	for i := 0; i < len(text); i++ {
		b := text[i]
		switch {
		case b == ' ':
			flush(i)
		case d.isSeparator(b):
			flush(i)
			tokens = append(tokens, Token{Text: string(b), Start: i, Length: 1})
		default:
			if start < 0 {
				start = i
			}
		}
	}
	flush(len(text))

	return tokens
}

// WriteParseBuffer encodes and looks up each token, then writes the
// standard parse-buffer layout at parseBufferAddr: byte 0 = max entries
// (read, not written), byte 1 = actual token count, then 4 bytes per token
// (dictionary address word, length byte, text-position byte). Tokens beyond
// the buffer's declared maximum are silently dropped.
func (d *Dictionary) WriteParseBuffer(core *zcore.Core, alphabets *zstring.Alphabets, parseBufferAddr uint32, tokens []Token, textBufferOffset int) {
	maxEntries := int(core.ReadByte(parseBufferAddr))
	n := len(tokens)
	if n > maxEntries {
		n = maxEntries
	}
	core.StoreByte(parseBufferAddr+1, uint8(n))

	zchars := zstring.DictionaryZCharCount(core.Version)
	for i := 0; i < n; i++ {
		tok := tokens[i]
		encoded := zstring.Encode([]rune(tok.Text), core, alphabets, zchars)
		addr := d.Find(encoded)

		entryAddr := parseBufferAddr + 2 + uint32(i)*4
		core.StoreWord(entryAddr, addr)
		core.StoreByte(entryAddr+2, uint8(tok.Length))
		core.StoreByte(entryAddr+3, uint8(tok.Start+textBufferOffset))
	}
}
