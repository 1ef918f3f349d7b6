package ztable_test

import (
	"testing"

	"github.com/davetcode/goz/zcore"
	"github.com/davetcode/goz/ztable"
)

func newCore(t *testing.T, size int) *zcore.Core {
	t.Helper()
	b := make([]byte, size)
	b[0x00] = 3
	b[0x0e], b[0x0f] = byte(size>>8), byte(size) // static base = whole file, everything "dynamic"
	c, err := zcore.LoadCore(b)
	if err != nil {
		t.Fatalf("LoadCore: %v", err)
	}
	return c
}

func TestScanTableByteField(t *testing.T) {
	c := newCore(t, 0x100)
	for i, v := range []byte{1, 2, 3, 4} {
		c.StoreByte(uint32(0x40+i), v)
	}

	addr := ztable.ScanTable(c, 3, 0x40, 4, 1)
	if addr != 0x42 {
		t.Fatalf("got %x want 0x42", addr)
	}

	addr = ztable.ScanTable(c, 9, 0x40, 4, 1)
	if addr != 0 {
		t.Fatalf("expected no match, got %x", addr)
	}
}

func TestScanTableWordField(t *testing.T) {
	c := newCore(t, 0x100)
	c.StoreWord(0x40, 0x1234)
	c.StoreWord(0x42, 0x5678)

	addr := ztable.ScanTable(c, 0x5678, 0x40, 2, 0x82)
	if addr != 0x42 {
		t.Fatalf("got %x want 0x42", addr)
	}
}

func TestCopyTableNonOverlapping(t *testing.T) {
	c := newCore(t, 0x100)
	for i := 0; i < 4; i++ {
		c.StoreByte(uint32(0x40+i), byte(i+1))
	}

	ztable.CopyTable(c, 0x40, 0x50, 4)

	got := c.ReadRange(0x50, 0x54)
	want := []byte{1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %d want %d", i, got[i], want[i])
		}
	}
}

func TestCopyTableZeroSecondClears(t *testing.T) {
	c := newCore(t, 0x100)
	for i := 0; i < 4; i++ {
		c.StoreByte(uint32(0x40+i), 0xff)
	}

	ztable.CopyTable(c, 0x40, 0, 4)

	for i := 0; i < 4; i++ {
		if c.ReadByte(uint32(0x40+i)) != 0 {
			t.Fatalf("byte %d not zeroed", i)
		}
	}
}

func TestPrintTable(t *testing.T) {
	c := newCore(t, 0x100)
	copy(c.DynamicMemory()[0x40:], []byte("abcdef"))

	got := ztable.PrintTable(c, 0x40, 3, 2, 0)
	want := "abc\ndef"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
