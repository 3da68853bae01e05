package classfile

import "fmt"

// AttributeInfo is an attribute as it appears in the file. Length is the
// declared length. For class-level InnerClasses attributes whose declared
// length disagrees with their entry count, Info holds the bytes implied by
// the count and WrongLength is set.
type AttributeInfo struct {
	NameIndex   uint16
	Length      uint32
	Info        []byte
	WrongLength bool
}

// Reader returns a reader over the attribute's body.
func (a *AttributeInfo) Reader() *Reader {
	return NewReader(a.Info)
}

type CodeAttribute struct {
	MaxStack       uint16
	MaxLocals      uint16
	Code           []byte
	ExceptionTable []ExceptionTableEntry
	Attributes     []AttributeInfo
}

type ExceptionTableEntry struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16
}

type InnerClassEntry struct {
	InnerClassInfoIndex   uint16
	OuterClassInfoIndex   uint16
	InnerNameIndex        uint16
	InnerClassAccessFlags AccessFlags
}

// ParseCode decodes the body of a Code attribute. In the short layout
// max_stack and max_locals are one byte each and code_length two bytes.
func ParseCode(info []byte, short bool) (*CodeAttribute, error) {
	r := NewReader(info)
	code := &CodeAttribute{}
	var codeLen int
	if short {
		code.MaxStack = uint16(r.U8())
		code.MaxLocals = uint16(r.U8())
		codeLen = int(r.U16())
	} else {
		code.MaxStack = r.U16()
		code.MaxLocals = r.U16()
		codeLen = int(r.U32())
	}
	code.Code = r.Raw(codeLen)

	count := int(r.U16())
	if r.Err() != nil {
		return nil, fmt.Errorf("failed to read Code attribute: %w", r.Err())
	}
	code.ExceptionTable = make([]ExceptionTableEntry, count)
	for i := range code.ExceptionTable {
		code.ExceptionTable[i] = ExceptionTableEntry{
			StartPC:   r.U16(),
			EndPC:     r.U16(),
			HandlerPC: r.U16(),
			CatchType: r.U16(),
		}
	}

	attrs, err := readAttributes(r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read Code attributes: %w", err)
	}
	code.Attributes = attrs
	if !r.Done() {
		return nil, fmt.Errorf("%d trailing bytes after Code attribute", r.Size())
	}
	return code, nil
}

func ParseBootstrapMethods(info []byte) ([]BootstrapMethod, error) {
	r := NewReader(info)
	count := int(r.U16())
	methods := make([]BootstrapMethod, 0, count)
	for i := 0; i < count && r.Err() == nil; i++ {
		m := BootstrapMethod{MethodRef: r.U16()}
		m.Arguments = make([]uint16, r.U16())
		for j := range m.Arguments {
			m.Arguments[j] = r.U16()
		}
		methods = append(methods, m)
	}
	if r.Err() != nil {
		return nil, fmt.Errorf("failed to read BootstrapMethods: %w", r.Err())
	}
	return methods, nil
}

func ParseInnerClasses(info []byte) ([]InnerClassEntry, error) {
	r := NewReader(info)
	entries := make([]InnerClassEntry, r.U16())
	for i := range entries {
		entries[i] = InnerClassEntry{
			InnerClassInfoIndex:   r.U16(),
			OuterClassInfoIndex:   r.U16(),
			InnerNameIndex:        r.U16(),
			InnerClassAccessFlags: AccessFlags(r.U16()),
		}
	}
	if r.Err() != nil {
		return nil, fmt.Errorf("failed to read InnerClasses: %w", r.Err())
	}
	return entries, nil
}

// readAttributes reads a u2 count followed by that many attributes. cp is
// only passed for class-level attributes, where InnerClasses lengths are
// taken from the entry count instead of the declared length.
func readAttributes(r *Reader, cp ConstantPool) ([]AttributeInfo, error) {
	count := int(r.U16())
	if r.Err() != nil {
		return nil, r.Err()
	}
	attrs := make([]AttributeInfo, count)
	for i := range attrs {
		attr := AttributeInfo{NameIndex: r.U16(), Length: r.U32()}
		actual := int64(attr.Length)
		if cp != nil && cp.GetUtf8(attr.NameIndex) == "InnerClasses" {
			actual = int64(r.Fork().U16())*8 + 2
		}
		attr.Info = r.Raw(int(actual))
		attr.WrongLength = actual != int64(attr.Length)
		if r.Err() != nil {
			return nil, fmt.Errorf("failed to read attribute %d: %w", i, r.Err())
		}
		attrs[i] = attr
	}
	return attrs, nil
}
