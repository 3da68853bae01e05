package classfile

import (
	"fmt"
	"math"
)

// Constant is one constant pool slot as stored in the class file.
// Utf8 keeps its raw modified UTF-8 bytes in Data. Int and Float keep
// their 32 bits in Bits, Long and Double their 64 bits. MethodHandle keeps
// the reference kind in Bits. Refs holds the pool indexes the entry points
// at, in file order.
type Constant struct {
	Tag  ConstantTag
	Data []byte
	Bits uint64
	Refs []uint16
}

// ConstantPool is indexed directly by slot number. Slot 0 and the slot
// after each Long or Double hold the zero Constant.
type ConstantPool []Constant

func (cp ConstantPool) Get(index uint16) (Constant, bool) {
	if int(index) >= len(cp) || cp[index].Tag == 0 {
		return Constant{}, false
	}
	return cp[index], true
}

// Utf8 returns the raw bytes of a Utf8 entry.
func (cp ConstantPool) Utf8(index uint16) ([]byte, bool) {
	c, ok := cp.Get(index)
	if !ok || c.Tag != ConstantUtf8 {
		return nil, false
	}
	return c.Data, true
}

// GetUtf8 returns the decoded text of a Utf8 entry, or "" if index does not
// name one.
func (cp ConstantPool) GetUtf8(index uint16) string {
	b, ok := cp.Utf8(index)
	if !ok {
		return ""
	}
	return DecodeMUTF8String(b)
}

// ClassName follows a Class entry to its name.
func (cp ConstantPool) ClassName(index uint16) (string, bool) {
	c, ok := cp.Get(index)
	if !ok || c.Tag != ConstantClass {
		return "", false
	}
	b, ok := cp.Utf8(c.Refs[0])
	if !ok {
		return "", false
	}
	return DecodeMUTF8String(b), true
}

func (cp ConstantPool) GetClassName(index uint16) string {
	name, _ := cp.ClassName(index)
	return name
}

func (c Constant) Int() int32 { return int32(uint32(c.Bits)) }

func (c Constant) Float() float32 { return math.Float32frombits(uint32(c.Bits)) }

func (c Constant) Long() int64 { return int64(c.Bits) }

func (c Constant) Double() float64 { return math.Float64frombits(c.Bits) }

// BootstrapMethod is one entry of the BootstrapMethods attribute.
type BootstrapMethod struct {
	MethodRef uint16
	Arguments []uint16
}

func readConstant(r *Reader) (Constant, error) {
	tag := ConstantTag(r.U8())
	c := Constant{Tag: tag}
	switch tag {
	case ConstantUtf8:
		c.Data = r.Raw(int(r.U16()))
	case ConstantInteger, ConstantFloat:
		c.Bits = uint64(r.U32())
	case ConstantLong, ConstantDouble:
		c.Bits = r.U64()
	case ConstantMethodHandle:
		c.Bits = uint64(r.U8())
		c.Refs = []uint16{r.U16()}
	case ConstantClass, ConstantString, ConstantMethodType:
		c.Refs = []uint16{r.U16()}
	case ConstantFieldref, ConstantMethodref, ConstantInterfaceMethodref,
		ConstantNameAndType, ConstantInvokeDynamic:
		c.Refs = []uint16{r.U16(), r.U16()}
	default:
		if r.Err() != nil {
			return c, r.Err()
		}
		return c, fmt.Errorf("unknown constant pool tag: %d", tag)
	}
	return c, r.Err()
}
