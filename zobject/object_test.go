package zobject_test

import (
	"testing"

	"github.com/davetcode/goz/zcore"
	"github.com/davetcode/goz/zobject"
	"github.com/davetcode/goz/zstring"
)

// buildV3Story returns a minimal v3 image with a property-defaults table and
// three objects: 1 (root, no parent), 2 and 3 (both children of 1, 3 first).
func buildV3Story(t *testing.T) *zcore.Core {
	t.Helper()
	b := make([]byte, 0x400)
	b[0x00] = 3
	objTableBase := uint16(0x40)
	b[0x0a], b[0x0b] = byte(objTableBase>>8), byte(objTableBase)
	b[0x0e], b[0x0f] = 0x03, 0x00 // static memory base, keeps object table "dynamic"

	objBase := uint32(objTableBase) + 31*2

	// Object 1: attrs=0, parent=0, sibling=0, child=3, propptr=0x300 (namelen 0, property 6, terminator 0)
	writeObj := func(id uint16, attrs uint32, parent, sibling, child uint8, propPtr uint16) {
		base := objBase + uint32(id-1)*9
		b[base+0], b[base+1], b[base+2], b[base+3] = byte(attrs>>24), byte(attrs>>16), byte(attrs>>8), byte(attrs)
		b[base+4] = parent
		b[base+5] = sibling
		b[base+6] = child
		b[base+7], b[base+8] = byte(propPtr>>8), byte(propPtr)
	}

	writeObj(1, 0, 0, 0, 3, 0x300)
	writeObj(2, 0, 1, 0, 0, 0x310)
	writeObj(3, 1<<26, 1, 2, 0, 0x320) // attribute 5 set

	// Property tables: name length 0 (no short name), then one property
	// (id 6, length 1, value 0x85), terminated.
	b[0x300] = 0 // namelen
	b[0x301] = (0 << 5) | 6
	b[0x302] = 0x85
	b[0x303] = 0 // terminator

	b[0x310] = 0
	b[0x311] = 0 // no properties at all

	b[0x320] = 0
	b[0x321] = 0

	core, err := zcore.LoadCore(b)
	if err != nil {
		t.Fatalf("LoadCore: %v", err)
	}
	return core
}

func TestZerothObjectRetrievalPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Retrieving object with id 0 should panic")
		}
	}()

	core := buildV3Story(t)
	zobject.Get(core, 0)
}

func TestObjectTreeRetrieval(t *testing.T) {
	core := buildV3Story(t)

	obj3 := zobject.Get(core, 3)
	if obj3.Parent() != 1 {
		t.Errorf("object 3 parent = %d, want 1", obj3.Parent())
	}
	if obj3.Sibling() != 2 {
		t.Errorf("object 3 sibling = %d, want 2", obj3.Sibling())
	}

	obj1 := zobject.Get(core, 1)
	if obj1.Child() != 3 {
		t.Errorf("object 1 child = %d, want 3 (last inserted)", obj1.Child())
	}
}

func TestPropertyRetrieval(t *testing.T) {
	core := buildV3Story(t)
	alphabets := zstring.LoadAlphabets(core)
	_ = alphabets

	obj1 := zobject.Get(core, 1)

	prop6 := obj1.GetProperty(6)
	if prop6.Length != 1 {
		t.Errorf("property 6 length = %d, want 1", prop6.Length)
	}
	if obj1.PropertyData(prop6)[0] != 0x85 {
		t.Errorf("property 6 data = %x, want 0x85", obj1.PropertyData(prop6)[0])
	}

	obj2 := zobject.Get(core, 2)
	propMissing := obj2.GetProperty(6)
	if propMissing.DataAddress == 0 {
		t.Error("expected a default-table fallback address, got 0")
	}
}

func TestAttributes(t *testing.T) {
	core := buildV3Story(t)
	obj3 := zobject.Get(core, 3)

	if !obj3.TestAttribute(5) {
		t.Error("object 3 should have attribute 5 set")
	}
	if obj3.TestAttribute(10) {
		t.Error("object 3 should not have attribute 10 set")
	}

	obj3.SetAttribute(10)
	if !obj3.TestAttribute(10) {
		t.Error("setting attribute 10 didn't work")
	}

	obj3.ClearAttribute(10)
	if obj3.TestAttribute(10) {
		t.Error("clearing attribute 10 didn't work")
	}
}

func TestInsertAndRemoveFromTree(t *testing.T) {
	core := buildV3Story(t)
	obj2 := zobject.Get(core, 2)
	obj3 := zobject.Get(core, 3)

	obj2.InsertTo(3)
	if obj2.Parent() != 3 {
		t.Errorf("object 2 parent = %d, want 3", obj2.Parent())
	}
	if obj3.Child() != 2 {
		t.Errorf("object 3 child = %d, want 2", obj3.Child())
	}

	obj2.RemoveFromTree()
	if obj2.Parent() != 0 {
		t.Errorf("object 2 parent after removal = %d, want 0", obj2.Parent())
	}
	if obj3.Child() != 0 {
		t.Errorf("object 3 child after removing its only child = %d, want 0", obj3.Child())
	}
}
