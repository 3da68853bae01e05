package classfile

var handleKindNames = [...]string{
	RefGetField:         "getField",
	RefGetStatic:        "getStatic",
	RefPutField:         "putField",
	RefPutStatic:        "putStatic",
	RefInvokeVirtual:    "invokeVirtual",
	RefInvokeStatic:     "invokeStatic",
	RefInvokeSpecial:    "invokeSpecial",
	RefNewInvokeSpecial: "newInvokeSpecial",
	RefInvokeInterface:  "invokeInterface",
}

func (k MethodHandleKind) String() string {
	if int(k) < len(handleKindNames) && handleKindNames[k] != "" {
		return handleKindNames[k]
	}
	return ""
}

func LookupHandleKind(name string) (MethodHandleKind, bool) {
	for i, n := range handleKindNames {
		if n != "" && n == name {
			return MethodHandleKind(i), true
		}
	}
	return 0, false
}

// Element types accepted by newarray.
var newArrayTypes = [...]string{
	4:  "boolean",
	5:  "char",
	6:  "float",
	7:  "double",
	8:  "byte",
	9:  "short",
	10: "int",
	11: "long",
}

func NewArrayTypeName(code uint8) (string, bool) {
	if int(code) < len(newArrayTypes) && newArrayTypes[code] != "" {
		return newArrayTypes[code], true
	}
	return "", false
}

func LookupNewArrayType(name string) (uint8, bool) {
	for i, n := range newArrayTypes {
		if n != "" && n == name {
			return uint8(i), true
		}
	}
	return 0, false
}

// Verification type tags used by StackMapTable frames.
const (
	VTTop uint8 = iota
	VTInteger
	VTFloat
	VTDouble
	VTLong
	VTNull
	VTUninitializedThis
	VTObject
	VTUninitialized
)

var verificationTypeNames = [...]string{
	"Top", "Integer", "Float", "Double", "Long", "Null",
	"UninitializedThis", "Object", "Uninitialized",
}

func VerificationTypeName(tag uint8) (string, bool) {
	if int(tag) < len(verificationTypeNames) {
		return verificationTypeNames[tag], true
	}
	return "", false
}

func LookupVerificationType(name string) (uint8, bool) {
	for i, n := range verificationTypeNames {
		if n == name {
			return uint8(i), true
		}
	}
	return 0, false
}

// Annotation element_value tags and their assembler names.
var elementTags = []struct {
	tag  byte
	name string
}{
	{'B', "byte"},
	{'C', "char"},
	{'D', "double"},
	{'F', "float"},
	{'I', "int"},
	{'J', "long"},
	{'S', "short"},
	{'Z', "boolean"},
	{'s', "string"},
	{'e', "enum"},
	{'c', "class"},
	{'@', "annotation"},
	{'[', "array"},
}

func ElementTagName(tag byte) (string, bool) {
	for _, e := range elementTags {
		if e.tag == tag {
			return e.name, true
		}
	}
	return "", false
}

func LookupElementTag(name string) (byte, bool) {
	for _, e := range elementTags {
		if e.name == name {
			return e.tag, true
		}
	}
	return 0, false
}
