package classfile

type FieldInfo struct {
	AccessFlags     AccessFlags
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []AttributeInfo
}

func (f *FieldInfo) Name(cp ConstantPool) string {
	return cp.GetUtf8(f.NameIndex)
}

func (f *FieldInfo) Descriptor(cp ConstantPool) string {
	return cp.GetUtf8(f.DescriptorIndex)
}

func (f *FieldInfo) GetAttribute(cp ConstantPool, name string) *AttributeInfo {
	return findAttribute(f.Attributes, cp, name)
}

func readFieldInfo(r *Reader) (FieldInfo, error) {
	field := FieldInfo{
		AccessFlags:     AccessFlags(r.U16()),
		NameIndex:       r.U16(),
		DescriptorIndex: r.U16(),
	}
	attrs, err := readAttributes(r, nil)
	if err != nil {
		return field, err
	}
	field.Attributes = attrs
	return field, nil
}
