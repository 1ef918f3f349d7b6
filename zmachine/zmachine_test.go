package zmachine

import (
	"strings"
	"testing"
)

// fakeProvider is a minimal IOProvider that records printed text instead of
// driving a real terminal, for asserting on engine output.
type fakeProvider struct {
	out strings.Builder
}

func (f *fakeProvider) Dispatch(cmd Command) any {
	if p, ok := cmd.(PrintCommand); ok && p.Window != TranscriptWindow {
		f.out.WriteString(p.Buffer)
	}
	return nil
}

func (f *fakeProvider) Flags1() uint8          { return 0 }
func (f *fakeProvider) ScreenSize() (int, int) { return 80, 24 }

// storyBuilder assembles a tiny, hand-encoded v3 story image: a two-object
// tree ("box" containing "key"), a one-entry dictionary, and a short
// instruction stream exercising the object tree, globals, and call/return.
type storyBuilder struct {
	buf []byte
}

func (b *storyBuilder) addr() uint32 { return uint32(len(b.buf)) }

func (b *storyBuilder) byte(v uint8) { b.buf = append(b.buf, v) }

func (b *storyBuilder) word(v uint16) { b.buf = append(b.buf, byte(v>>8), byte(v)) }

func (b *storyBuilder) bytes(vs ...uint8) {
	for _, v := range vs {
		b.byte(v)
	}
}

func (b *storyBuilder) padToEven() {
	if len(b.buf)%2 != 0 {
		b.byte(0)
	}
}

// encodeShortName packs a 3-letter lowercase name into a single Z-word
// object short name (terminated immediately, since 3 z-chars fill one word).
func encodeShortName(s string) (lenWords uint8, word uint16) {
	var zchars [3]uint8
	for i := 0; i < 3 && i < len(s); i++ {
		zchars[i] = uint8(s[i]-'a') + 6
	}
	word = uint16(zchars[0])<<10 | uint16(zchars[1])<<5 | uint16(zchars[2]) | 0x8000
	return 1, word
}

// buildTestStory lays out a complete v3 story image by hand, returning the
// bytes plus the addresses a test needs to drive or assert against.
func buildTestStory(t *testing.T) (storyBytes []byte, routinePacked uint16) {
	t.Helper()

	b := &storyBuilder{buf: make([]byte, 0x40)} // header, patched at the end

	propDefaultsAddr := b.addr()
	for i := 0; i < 31; i++ {
		b.word(0)
	}

	object1Addr := b.addr() // "box", parent of "key"
	b.bytes(0, 0, 0, 0)     // attribute flags
	b.bytes(0, 0, 2)        // parent, sibling, child=2
	propTable1Placeholder := b.addr()
	b.word(0) // property pointer, patched below

	object2Addr := b.addr() // "key", child of "box"
	b.bytes(0, 0, 0, 0)     // attribute flags
	b.bytes(1, 0, 0)        // parent=1, sibling, child
	propTable2Placeholder := b.addr()
	b.word(0)

	obj1PropAddr := b.addr()
	nw, word := encodeShortName("box")
	b.byte(nw)
	b.word(word)
	b.byte(0x23) // property 3, length 2 ((2-1)<<5 | 3)
	b.word(5)
	b.byte(0) // terminator

	obj2PropAddr := b.addr()
	nw, word = encodeShortName("key")
	b.byte(nw)
	b.word(word)
	b.byte(0) // terminator, no properties

	binaryPatchWord(b.buf, propTable1Placeholder, uint16(obj1PropAddr))
	binaryPatchWord(b.buf, propTable2Placeholder, uint16(obj2PropAddr))
	_ = object1Addr
	_ = object2Addr

	dictAddr := b.addr()
	b.byte(0)    // no custom separators
	b.byte(4)    // entry length (2 words, no extra data)
	b.word(1)    // one entry, already sorted
	dictWord0, dictWord1 := encodeDictWord("key")
	b.word(dictWord0)
	b.word(dictWord1)

	globalsAddr := b.addr()
	for i := 0; i < 16; i++ {
		b.word(0)
	}

	staticMemoryAddr := b.addr()

	b.padToEven()
	routineAddr := b.addr()
	b.byte(1)    // one local
	b.word(0)    // local 1 default value
	b.bytes(0x56, 1, 2, 1) // mul local1, #2 -> store local1
	b.bytes(0xab, 1)       // ret local1

	mainAddr := b.addr()
	b.bytes(0x9a, 1)             // print_obj #1 ("box")
	b.byte(0xbb)                 // new_line
	b.bytes(0x0e, 2, 1)          // insert_obj #2 -> #1
	b.bytes(0x92, 1, 0x10, 0xc2) // get_child #1 -> G10, branch no-op
	b.bytes(0xaa, 0x10)          // print_obj (G10) -> "key"
	b.byte(0xbb)                 // new_line
	b.bytes(0x99, 2)             // remove_obj #2
	b.bytes(0x92, 1, 0x11, 0xc2) // get_child #1 -> G11 (now 0)
	b.bytes(0xa0, 0x11, 0xc2)    // jz G11, branch no-op
	packed := uint16(routineAddr / 2)
	b.byte(0xe0) // call_vs
	b.byte(0x1f) // operand types: large const, small const, omitted, omitted
	b.word(packed)
	b.byte(5)    // argument
	b.byte(0x12) // store result -> G18
	b.byte(0xe6) // print_num
	b.byte(0xbf) // operand type: variable, rest omitted
	b.byte(0x12)
	b.byte(0xbb) // new_line
	b.byte(0xba) // quit

	b.padToEven()
	totalLen := b.addr()

	// Patch header fields now that every address is known.
	story := b.buf
	story[0x00] = 3 // version
	story[0x01] = 0
	putWord(story, 0x02, 1) // release number
	putWord(story, 0x04, uint16(staticMemoryAddr))
	putWord(story, 0x06, uint16(mainAddr))
	putWord(story, 0x08, uint16(dictAddr))
	putWord(story, 0x0a, uint16(propDefaultsAddr))
	putWord(story, 0x0c, uint16(globalsAddr))
	putWord(story, 0x0e, uint16(staticMemoryAddr))
	copy(story[0x12:0x18], []byte("240101"))
	putWord(story, 0x1a, uint16(totalLen/2))

	var checksum uint16
	for i := uint32(0x40); i < totalLen; i++ {
		checksum += uint16(story[i])
	}
	putWord(story, 0x1c, checksum)

	return story, packed
}

func binaryPatchWord(buf []byte, addr uint32, v uint16) { putWord(buf, addr, v) }

func putWord(buf []byte, addr uint32, v uint16) {
	buf[addr] = byte(v >> 8)
	buf[addr+1] = byte(v)
}

// encodeDictWord packs a lowercase word into the two-word (v1-3) dictionary
// entry format: 4 z-chars, padded with 5, split across two 16-bit words.
func encodeDictWord(s string) (uint16, uint16) {
	var z [4]uint8
	for i := range z {
		z[i] = 5 // pad
	}
	for i := 0; i < len(s) && i < 4; i++ {
		z[i] = uint8(s[i]-'a') + 6
	}
	w0 := uint16(z[0])<<10 | uint16(z[1])<<5 | uint16(z[2])
	w1 := uint16(z[3])<<10 | uint16(5)<<5 | uint16(5) | 0x8000
	return w0, w1
}

func TestEngineDecodeExecuteLoop(t *testing.T) {
	storyBytes, _ := buildTestStory(t)
	io := &fakeProvider{}

	z, err := LoadRom(storyBytes, io)
	if err != nil {
		t.Fatalf("LoadRom: %v", err)
	}

	if err := z.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := io.out.String()
	if !strings.Contains(got, "box") {
		t.Errorf("expected output to mention \"box\", got %q", got)
	}
	if !strings.Contains(got, "key") {
		t.Errorf("expected output to mention \"key\" (child of box), got %q", got)
	}
	if !strings.Contains(got, "10") {
		t.Errorf("expected call_vs/mul result \"10\" in output, got %q", got)
	}

	if v := z.Core.ReadGlobal(0x11); v != 0 {
		t.Errorf("expected G11 (child after remove_obj) == 0, got %d", v)
	}
	if v := z.Core.ReadGlobal(0x12); v != 10 {
		t.Errorf("expected G18 (call_vs result) == 10, got %d", v)
	}
}

func TestQuetzalSaveRestoreRoundTrip(t *testing.T) {
	storyBytes, _ := buildTestStory(t)
	io := &fakeProvider{}

	z, err := LoadRom(storyBytes, io)
	if err != nil {
		t.Fatalf("LoadRom: %v", err)
	}
	if err := z.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := z.Core.ReadGlobal(0x12)
	data := z.SaveQuetzal()

	z.Core.WriteGlobal(0x12, 999)
	if !z.RestoreQuetzal(data) {
		t.Fatalf("RestoreQuetzal reported failure")
	}

	if got := z.Core.ReadGlobal(0x12); got != want {
		t.Errorf("after restore, G18 = %d, want %d", got, want)
	}
}

func TestQuetzalRestoreRejectsMismatchedRelease(t *testing.T) {
	storyBytes, _ := buildTestStory(t)
	io := &fakeProvider{}
	z, err := LoadRom(storyBytes, io)
	if err != nil {
		t.Fatalf("LoadRom: %v", err)
	}

	data := z.SaveQuetzal()

	other, _ := buildTestStory(t)
	putWord(other, 0x02, 99) // different release number
	z2, err := LoadRom(other, io)
	if err != nil {
		t.Fatalf("LoadRom: %v", err)
	}

	if z2.RestoreQuetzal(data) {
		t.Errorf("expected restore to reject a save from a different release")
	}
}
