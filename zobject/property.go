package zobject

import (
	"fmt"

	"github.com/davetcode/goz/zcore"
)

// Property is a decoded property-table entry (or, when absent on the
// object, the two-byte default value from the property defaults table).
type Property struct {
	Id                   uint8
	Length               uint8
	DataAddress          uint32
	HeaderLength         uint8
	Address              uint32
}

// propertyAt decodes the property whose size byte(s) start at addr.
func (o *Object) propertyAt(addr uint32) Property {
	sizeByte := o.core.ReadByte(addr)

	if o.version <= 3 {
		return Property{
			Id:           sizeByte & 0b1_1111,
			Length:       (sizeByte >> 5) + 1,
			HeaderLength: 1,
			Address:      addr,
			DataAddress:  addr + 1,
		}
	}

	if sizeByte&0b1000_0000 != 0 {
		secondByte := o.core.ReadByte(addr + 1)
		length := secondByte & 0b11_1111
		if length == 0 {
			length = 64 // S12.4.2.1.1: 0 in the second byte means 64.
		}
		return Property{
			Id:           sizeByte & 0b11_1111,
			Length:       length,
			HeaderLength: 2,
			Address:      addr,
			DataAddress:  addr + 2,
		}
	}

	return Property{
		Id:           sizeByte & 0b11_1111,
		Length:       ((sizeByte >> 6) & 1) + 1,
		HeaderLength: 1,
		Address:      addr,
		DataAddress:  addr + 1,
	}
}

func (o *Object) propertyTableStart() uint32 {
	nameLength := o.core.ReadByte(uint32(o.PropertyPointer))
	return uint32(o.PropertyPointer) + 1 + uint32(nameLength)*2
}

// GetProperty returns property propertyId on o, or - if absent - the
// two-byte default from the property defaults table (spec.md S4.4).
// Properties are stored in descending id order and the scan stops as soon
// as it passes propertyId.
func (o *Object) GetProperty(propertyId uint8) Property {
	ptr := o.propertyTableStart()

	for o.core.ReadByte(ptr) != 0 {
		prop := o.propertyAt(ptr)
		if prop.Id == propertyId {
			return prop
		}
		if prop.Id < propertyId {
			break
		}
		ptr = prop.DataAddress + uint32(prop.Length)
	}

	defaultsBase := uint32(o.core.ObjectTableBase) + 2*uint32(propertyId-1)
	return Property{Id: propertyId, Length: 2, DataAddress: defaultsBase}
}

// PropertyData returns the raw bytes backing a Property (reads straight
// through Core so it always reflects the current value).
func (o *Object) PropertyData(p Property) []uint8 {
	return o.core.ReadRange(p.DataAddress, p.DataAddress+uint32(p.Length))
}

// SetProperty stores value into propertyId's data, per spec.md S4.4 ("1 or
// 2 byte properties only; larger properties are a story error"). Panics if
// the object has no such property - callers must check GetProperty's
// DataAddress against the defaults table first if they want to tolerate a
// missing property.
func (o *Object) SetProperty(propertyId uint8, value uint16) {
	ptr := o.propertyTableStart()

	for o.core.ReadByte(ptr) != 0 {
		prop := o.propertyAt(ptr)
		if prop.Id == propertyId {
			switch prop.Length {
			case 1:
				o.core.StoreByte(prop.DataAddress, uint8(value))
			case 2:
				o.core.StoreWord(prop.DataAddress, value)
			default:
				panic(fmt.Sprintf("zobject: property %d has length %d, put_prop requires 1 or 2", propertyId, prop.Length))
			}
			return
		}
		ptr = prop.DataAddress + uint32(prop.Length)
	}

	panic(fmt.Sprintf("zobject: object %d has no property %d", o.Id, propertyId))
}

// GetPropertyAddr returns the byte address of propertyId's data on o, or 0
// if the object has no such property (the "get_prop_addr" opcode).
func (o *Object) GetPropertyAddr(propertyId uint8) uint16 {
	ptr := o.propertyTableStart()

	for o.core.ReadByte(ptr) != 0 {
		prop := o.propertyAt(ptr)
		if prop.Id == propertyId {
			return uint16(prop.DataAddress)
		}
		if prop.Id < propertyId {
			break
		}
		ptr = prop.DataAddress + uint32(prop.Length)
	}
	return 0
}

// GetPropertyLength returns the length of the property whose data starts at
// dataAddr (the "get_prop_len" opcode), working backwards from the size
// byte(s) that precede it. Address 0 is a special case returning 0 - this
// needs no live object (get_prop_len 0 is valid and common; there is no
// object 0 to construct one from).
func GetPropertyLength(core *zcore.Core, dataAddr uint32) uint8 {
	if dataAddr == 0 {
		return 0
	}

	prevByte := core.ReadByte(dataAddr - 1)
	if core.Version <= 3 {
		return (prevByte >> 5) + 1
	}
	if prevByte&0b1000_0000 != 0 {
		length := prevByte & 0b11_1111
		if length == 0 {
			return 64
		}
		return length
	}
	return ((prevByte >> 6) & 1) + 1
}

// NextProperty returns the id of the property following propertyId, or the
// first property if propertyId is 0, or 0 if there is none - including when
// propertyId itself isn't present on o, which spec.md S4.4 permits callers
// to probe for rather than treating as an error (the "get_next_prop"
// opcode).
func (o *Object) NextProperty(propertyId uint8) uint8 {
	ptr := o.propertyTableStart()

	if propertyId == 0 {
		if o.core.ReadByte(ptr) == 0 {
			return 0
		}
		return o.propertyAt(ptr).Id
	}

	for o.core.ReadByte(ptr) != 0 {
		prop := o.propertyAt(ptr)
		if prop.Id == propertyId {
			next := prop.DataAddress + uint32(prop.Length)
			if o.core.ReadByte(next) == 0 {
				return 0
			}
			return o.propertyAt(next).Id
		}
		ptr = prop.DataAddress + uint32(prop.Length)
	}

	return 0
}
