// Package zobject implements the object table: parent/sibling/child tree
// manipulation, attribute flags, and the version-dependent object/property
// layouts of spec.md S4.4 (9-byte objects with 32 attribute bits on v1-3,
// 14-byte objects with 48 bits on v4+).
package zobject

import (
	"fmt"

	"github.com/davetcode/goz/zcore"
	"github.com/davetcode/goz/zstring"
)

// Object is a live view onto one object table entry; every accessor reads
// or writes straight through to the backing Core, so there's no state here
// that can go stale across tree edits.
type Object struct {
	core            *zcore.Core
	version         uint8
	BaseAddress     uint32
	Id              uint16
	PropertyPointer uint16
}

func propDefaultsSize(version uint8) uint32 {
	if version >= 4 {
		return 63 * 2
	}
	return 31 * 2
}

func entrySize(version uint8) uint32 {
	if version >= 4 {
		return 14
	}
	return 9
}

func attributeBytes(version uint8) uint32 {
	if version >= 4 {
		return 6
	}
	return 4
}

// objectBase returns the byte address of object id's entry.
func objectBase(core *zcore.Core, id uint16) uint32 {
	base := uint32(core.ObjectTableBase) + propDefaultsSize(core.Version)
	return base + uint32(id-1)*entrySize(core.Version)
}

// Get loads object id from the tree.
func Get(core *zcore.Core, id uint16) *Object {
	if id == 0 {
		panic("zobject: object 0 does not exist")
	}

	base := objectBase(core, id)
	var propPtrOffset uint32 = 7
	if core.Version >= 4 {
		propPtrOffset = 12
	}

	return &Object{
		core:            core,
		version:         core.Version,
		BaseAddress:     base,
		Id:              id,
		PropertyPointer: core.ReadWord(base + propPtrOffset),
	}
}

// Name decodes the object's short name from its property table header.
func (o *Object) Name(alphabets *zstring.Alphabets) string {
	nameLength := o.core.ReadByte(uint32(o.PropertyPointer))
	if nameLength == 0 {
		return ""
	}
	name, _ := zstring.Decode(o.core, uint32(o.PropertyPointer)+1, alphabets)
	return name
}

// TestAttribute reports whether attribute n is set. Attribute 0 is the most
// significant bit of the first attribute byte.
func (o *Object) TestAttribute(n uint16) bool {
	byteOff, bit := uint32(n/8), 7-(n%8)
	b := o.core.ReadByte(o.BaseAddress + byteOff)
	return b&(1<<bit) != 0
}

// SetAttribute sets attribute n.
func (o *Object) SetAttribute(n uint16) {
	byteOff, bit := uint32(n/8), 7-(n%8)
	addr := o.BaseAddress + byteOff
	o.core.StoreByte(addr, o.core.ReadByte(addr)|(1<<bit))
}

// ClearAttribute clears attribute n.
func (o *Object) ClearAttribute(n uint16) {
	byteOff, bit := uint32(n/8), 7-(n%8)
	addr := o.BaseAddress + byteOff
	o.core.StoreByte(addr, o.core.ReadByte(addr)&^(1<<bit))
}

func (o *Object) relativeOffsets() (parent, sibling, child uint32) {
	attrBytes := attributeBytes(o.version)
	if o.version >= 4 {
		return attrBytes, attrBytes + 2, attrBytes + 4
	}
	return attrBytes, attrBytes + 1, attrBytes + 2
}

func (o *Object) readLink(offset uint32) uint16 {
	if o.version >= 4 {
		return o.core.ReadWord(o.BaseAddress + offset)
	}
	return uint16(o.core.ReadByte(o.BaseAddress + offset))
}

func (o *Object) writeLink(offset uint32, v uint16) {
	if o.version >= 4 {
		o.core.StoreWord(o.BaseAddress+offset, v)
	} else {
		o.core.StoreByte(o.BaseAddress+offset, uint8(v))
	}
}

// Parent returns the object id of the current parent (0 = none).
func (o *Object) Parent() uint16 {
	p, _, _ := o.relativeOffsets()
	return o.readLink(p)
}

// Sibling returns the object id of the next sibling (0 = none).
func (o *Object) Sibling() uint16 {
	_, s, _ := o.relativeOffsets()
	return o.readLink(s)
}

// Child returns the object id of the first child (0 = none).
func (o *Object) Child() uint16 {
	_, _, c := o.relativeOffsets()
	return o.readLink(c)
}

func (o *Object) setParent(id uint16) {
	p, _, _ := o.relativeOffsets()
	o.writeLink(p, id)
}

func (o *Object) setSibling(id uint16) {
	_, s, _ := o.relativeOffsets()
	o.writeLink(s, id)
}

func (o *Object) setChild(id uint16) {
	_, _, c := o.relativeOffsets()
	o.writeLink(c, id)
}

// RemoveFromTree detaches o from its current parent's child/sibling chain,
// implementing the "remove_obj" opcode (spec.md S4.4). A no-op if o has no
// parent.
func (o *Object) RemoveFromTree() {
	parentId := o.Parent()
	if parentId == 0 {
		return
	}
	parent := Get(o.core, parentId)

	if parent.Child() == o.Id {
		parent.setChild(o.Sibling())
	} else {
		sib := Get(o.core, parent.Child())
		for sib.Sibling() != o.Id {
			if sib.Sibling() == 0 {
				panic(fmt.Sprintf("zobject: object %d not found in parent %d's child chain", o.Id, parentId))
			}
			sib = Get(o.core, sib.Sibling())
		}
		sib.setSibling(o.Sibling())
	}

	o.setParent(0)
	o.setSibling(0)
}

// InsertTo detaches o from any current parent and makes it the first child
// of newParent, implementing "insert_obj" (spec.md S4.4).
func (o *Object) InsertTo(newParentId uint16) {
	o.RemoveFromTree()

	newParent := Get(o.core, newParentId)
	o.setSibling(newParent.Child())
	o.setParent(newParentId)
	newParent.setChild(o.Id)
}
