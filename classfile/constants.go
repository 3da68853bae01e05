package classfile

const (
	Magic = 0xCAFEBABE
)

type AccessFlags uint16

const (
	AccPublic       AccessFlags = 0x0001
	AccPrivate      AccessFlags = 0x0002
	AccProtected    AccessFlags = 0x0004
	AccStatic       AccessFlags = 0x0008
	AccFinal        AccessFlags = 0x0010
	AccSuper        AccessFlags = 0x0020
	AccSynchronized AccessFlags = 0x0020
	AccVolatile     AccessFlags = 0x0040
	AccBridge       AccessFlags = 0x0040
	AccTransient    AccessFlags = 0x0080
	AccVarargs      AccessFlags = 0x0080
	AccNative       AccessFlags = 0x0100
	AccInterface    AccessFlags = 0x0200
	AccAbstract     AccessFlags = 0x0400
	AccStrict       AccessFlags = 0x0800
	AccSynthetic    AccessFlags = 0x1000
	AccAnnotation   AccessFlags = 0x2000
	AccEnum         AccessFlags = 0x4000
	AccMandated     AccessFlags = 0x8000
)

// flagNames lists every flag keyword in bit order. Bits shared by two
// keywords appear twice, class/field spelling first.
var flagNames = []struct {
	name string
	bit  AccessFlags
}{
	{"public", AccPublic},
	{"private", AccPrivate},
	{"protected", AccProtected},
	{"static", AccStatic},
	{"final", AccFinal},
	{"super", AccSuper},
	{"synchronized", AccSynchronized},
	{"volatile", AccVolatile},
	{"bridge", AccBridge},
	{"transient", AccTransient},
	{"varargs", AccVarargs},
	{"native", AccNative},
	{"interface", AccInterface},
	{"abstract", AccAbstract},
	{"strict", AccStrict},
	{"synthetic", AccSynthetic},
	{"annotation", AccAnnotation},
	{"enum", AccEnum},
	{"mandated", AccMandated},
}

// LookupFlag returns the bit for an access flag keyword. "strictfp" is
// accepted as an alias of "strict".
func LookupFlag(name string) (AccessFlags, bool) {
	if name == "strictfp" {
		return AccStrict, true
	}
	for _, f := range flagNames {
		if f.name == name {
			return f.bit, true
		}
	}
	return 0, false
}

// FlagKeywords lists every access flag keyword, including "strictfp".
func FlagKeywords() []string {
	names := make([]string, 0, len(flagNames)+1)
	for _, f := range flagNames {
		names = append(names, f.name)
	}
	return append(names, "strictfp")
}

// IsFlagName reports whether s is an access flag keyword.
func IsFlagName(s string) bool {
	_, ok := LookupFlag(s)
	return ok
}

// Names returns the keywords for every set bit, lowest bit first. Methods
// use the method spelling of shared bits (synchronized, bridge, varargs);
// classes and fields use super, volatile, transient.
func (f AccessFlags) Names(method bool) []string {
	var names []string
	for bit := 0; bit < 16; bit++ {
		mask := AccessFlags(1) << bit
		if f&mask == 0 {
			continue
		}
		names = append(names, flagName(mask, method))
	}
	return names
}

func flagName(mask AccessFlags, method bool) string {
	name := ""
	for _, f := range flagNames {
		if f.bit != mask {
			continue
		}
		if name == "" || method {
			name = f.name
		}
	}
	return name
}

func (f AccessFlags) IsPublic() bool     { return f&AccPublic != 0 }
func (f AccessFlags) IsPrivate() bool    { return f&AccPrivate != 0 }
func (f AccessFlags) IsStatic() bool     { return f&AccStatic != 0 }
func (f AccessFlags) IsInterface() bool  { return f&AccInterface != 0 }
func (f AccessFlags) IsAbstract() bool   { return f&AccAbstract != 0 }
func (f AccessFlags) IsSynthetic() bool  { return f&AccSynthetic != 0 }
func (f AccessFlags) IsAnnotation() bool { return f&AccAnnotation != 0 }
func (f AccessFlags) IsEnum() bool       { return f&AccEnum != 0 }

type ConstantTag uint8

const (
	ConstantUtf8               ConstantTag = 1
	ConstantInteger            ConstantTag = 3
	ConstantFloat              ConstantTag = 4
	ConstantLong               ConstantTag = 5
	ConstantDouble             ConstantTag = 6
	ConstantClass              ConstantTag = 7
	ConstantString             ConstantTag = 8
	ConstantFieldref           ConstantTag = 9
	ConstantMethodref          ConstantTag = 10
	ConstantInterfaceMethodref ConstantTag = 11
	ConstantNameAndType        ConstantTag = 12
	ConstantMethodHandle       ConstantTag = 15
	ConstantMethodType         ConstantTag = 16
	ConstantInvokeDynamic      ConstantTag = 18
)

// Assembler spellings of the constant tags.
var constantTagNames = map[ConstantTag]string{
	ConstantUtf8:               "Utf8",
	ConstantInteger:            "Int",
	ConstantFloat:              "Float",
	ConstantLong:               "Long",
	ConstantDouble:             "Double",
	ConstantClass:              "Class",
	ConstantString:             "String",
	ConstantFieldref:           "Field",
	ConstantMethodref:          "Method",
	ConstantInterfaceMethodref: "InterfaceMethod",
	ConstantNameAndType:        "NameAndType",
	ConstantMethodHandle:       "MethodHandle",
	ConstantMethodType:         "MethodType",
	ConstantInvokeDynamic:      "InvokeDynamic",
}

func (t ConstantTag) String() string {
	if name, ok := constantTagNames[t]; ok {
		return name
	}
	return "Unknown"
}

// Known reports whether t is a tag this package can read and write.
func (t ConstantTag) Known() bool {
	_, ok := constantTagNames[t]
	return ok
}

// Wide reports whether the entry occupies two constant pool slots.
func (t ConstantTag) Wide() bool {
	return t == ConstantLong || t == ConstantDouble
}

func LookupConstantTag(name string) (ConstantTag, bool) {
	for tag, n := range constantTagNames {
		if n == name {
			return tag, true
		}
	}
	return 0, false
}

type MethodHandleKind uint8

const (
	RefGetField         MethodHandleKind = 1
	RefGetStatic        MethodHandleKind = 2
	RefPutField         MethodHandleKind = 3
	RefPutStatic        MethodHandleKind = 4
	RefInvokeVirtual    MethodHandleKind = 5
	RefInvokeStatic     MethodHandleKind = 6
	RefInvokeSpecial    MethodHandleKind = 7
	RefNewInvokeSpecial MethodHandleKind = 8
	RefInvokeInterface  MethodHandleKind = 9
)
