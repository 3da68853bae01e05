package classfile

type MethodInfo struct {
	AccessFlags     AccessFlags
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []AttributeInfo
}

func (m *MethodInfo) Name(cp ConstantPool) string {
	return cp.GetUtf8(m.NameIndex)
}

func (m *MethodInfo) Descriptor(cp ConstantPool) string {
	return cp.GetUtf8(m.DescriptorIndex)
}

func (m *MethodInfo) GetAttribute(cp ConstantPool, name string) *AttributeInfo {
	return findAttribute(m.Attributes, cp, name)
}

// Code decodes the method's Code attribute, or returns nil when the method
// has none.
func (m *MethodInfo) Code(cp ConstantPool, short bool) (*CodeAttribute, error) {
	attr := m.GetAttribute(cp, "Code")
	if attr == nil {
		return nil, nil
	}
	return ParseCode(attr.Info, short)
}

func readMethodInfo(r *Reader) (MethodInfo, error) {
	method := MethodInfo{
		AccessFlags:     AccessFlags(r.U16()),
		NameIndex:       r.U16(),
		DescriptorIndex: r.U16(),
	}
	attrs, err := readAttributes(r, nil)
	if err != nil {
		return method, err
	}
	method.Attributes = attrs
	return method, nil
}
