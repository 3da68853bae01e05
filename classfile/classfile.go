package classfile

type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	ConstantPool ConstantPool
	AccessFlags  AccessFlags
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []FieldInfo
	Methods      []MethodInfo
	Attributes   []AttributeInfo
}

// ClassName returns the name of this class, or false when ThisClass does
// not point at a Class entry with a Utf8 name.
func (cf *ClassFile) ClassName() (string, bool) {
	return cf.ConstantPool.ClassName(cf.ThisClass)
}

func (cf *ClassFile) SuperClassName() string {
	if cf.SuperClass == 0 {
		return ""
	}
	return cf.ConstantPool.GetClassName(cf.SuperClass)
}

// ShortCode reports whether Code attributes of this class use the pre-45.3
// layout with one-byte stack and locals and a two-byte code length.
func (cf *ClassFile) ShortCode() bool {
	return UsesShortCode(cf.MajorVersion, cf.MinorVersion)
}

func UsesShortCode(major, minor uint16) bool {
	return major < 45 || (major == 45 && minor < 3)
}

func (cf *ClassFile) GetMethod(name, descriptor string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name(cf.ConstantPool) == name {
			if descriptor == "" || cf.Methods[i].Descriptor(cf.ConstantPool) == descriptor {
				return &cf.Methods[i]
			}
		}
	}
	return nil
}

func (cf *ClassFile) GetAttribute(name string) *AttributeInfo {
	return findAttribute(cf.Attributes, cf.ConstantPool, name)
}

// BootstrapMethods decodes the class's BootstrapMethods attribute. A class
// without one has no bootstrap methods.
func (cf *ClassFile) BootstrapMethods() ([]BootstrapMethod, error) {
	attr := cf.GetAttribute("BootstrapMethods")
	if attr == nil {
		return nil, nil
	}
	return ParseBootstrapMethods(attr.Info)
}

func findAttribute(attrs []AttributeInfo, cp ConstantPool, name string) *AttributeInfo {
	for i := range attrs {
		if cp.GetUtf8(attrs[i].NameIndex) == name {
			return &attrs[i]
		}
	}
	return nil
}
