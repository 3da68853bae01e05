package asm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dhamidi/krak/classfile"
	parser "github.com/wreulicke/classfile-parser"
)

const helloSource = `.version 49 0
.class public super Hello
.super java/lang/Object

.method public static main : ([Ljava/lang/String;)V
    .code stack 2 locals 1
        getstatic java/lang/System out Ljava/io/PrintStream;
        ldc "Hello, World!"
        invokevirtual java/io/PrintStream println (Ljava/lang/String;)V
        return
    .end code
.end method
.end class
`

const helloLegacySource = `.version 49 0
.class public super Hello
.super java/lang/Object

.method public static main : ([Ljava/lang/String;)V
    .limit stack 2
    .limit locals 1
    getstatic java/lang/System/out Ljava/io/PrintStream;
    ldc "Hello, World!"
    invokevirtual java/io/PrintStream/println(Ljava/lang/String;)V
    return
.end method
`

func assembleOne(t *testing.T, src string) []byte {
	t.Helper()
	results := Assemble(src)
	if len(results) != 1 {
		t.Fatalf("Assemble() returned %d results, want 1", len(results))
	}
	if err := results[0].Err; err != nil {
		t.Fatalf("Assemble() error: %v", err)
	}
	return results[0].Data
}

func assembleErr(t *testing.T, src string) *Error {
	t.Helper()
	results := Assemble(src)
	if len(results) != 1 {
		t.Fatalf("Assemble() returned %d results, want 1", len(results))
	}
	if results[0].Err == nil {
		t.Fatal("Assemble() succeeded, want error")
	}
	return results[0].Err
}

// inMethod wraps body in a class with a single static method m()V.
func inMethod(body string) string {
	return ".class T\n.super java/lang/Object\n.method static m : ()V\n.code stack 4 locals 4\n" +
		body + "\n.end code\n.end method\n.end class\n"
}

func parseClass(t *testing.T, data []byte) *classfile.ClassFile {
	t.Helper()
	cf, err := classfile.Parse(data)
	if err != nil {
		t.Fatalf("classfile.Parse() error: %v", err)
	}
	return cf
}

func methodCode(t *testing.T, data []byte) (*classfile.ClassFile, *classfile.CodeAttribute) {
	t.Helper()
	cf := parseClass(t, data)
	if len(cf.Methods) != 1 {
		t.Fatalf("got %d methods, want 1", len(cf.Methods))
	}
	code, err := cf.Methods[0].Code(cf.ConstantPool, cf.ShortCode())
	if err != nil || code == nil {
		t.Fatalf("Code() = %v, %v", code, err)
	}
	return cf, code
}

func TestAssembleHelloWorld(t *testing.T) {
	data := assembleOne(t, helloSource)

	cf, err := parser.New(bytes.NewReader(data)).Parse()
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	name, err := cf.ThisClassName()
	if err != nil || name != "Hello" {
		t.Errorf("ThisClassName() = %q, %v, want %q", name, err, "Hello")
	}
	if cf.MajorVersion != 49 {
		t.Errorf("MajorVersion = %d, want 49", cf.MajorVersion)
	}
	if len(cf.Methods) != 1 {
		t.Fatalf("got %d methods, want 1", len(cf.Methods))
	}
	m := cf.Methods[0]
	if got, _ := m.Name(cf.ConstantPool); got != "main" {
		t.Errorf("method name = %q, want %q", got, "main")
	}
	if got, _ := m.Descriptor(cf.ConstantPool); got != "([Ljava/lang/String;)V" {
		t.Errorf("method descriptor = %q", got)
	}
	code := m.Code()
	if code == nil {
		t.Fatal("Code() = nil")
	}
	if int(code.MaxStack) != 2 || int(code.MaxLocals) != 1 {
		t.Errorf("limits = %d/%d, want 2/1", code.MaxStack, code.MaxLocals)
	}
	ops := []struct {
		pos int
		op  byte
	}{{0, 0xb2}, {3, 0x12}, {5, 0xb6}, {8, 0xb1}}
	if len(code.Codes) != 9 {
		t.Fatalf("code length = %d, want 9", len(code.Codes))
	}
	for _, o := range ops {
		if code.Codes[o.pos] != o.op {
			t.Errorf("code[%d] = %#x, want %#x", o.pos, code.Codes[o.pos], o.op)
		}
	}
}

func TestAssembleLegacySyntax(t *testing.T) {
	modern := assembleOne(t, helloSource)
	legacy := assembleOne(t, helloLegacySource)
	if !bytes.Equal(modern, legacy) {
		t.Errorf("legacy syntax assembled differently:\n%x\n%x", legacy, modern)
	}
}

func TestAssembleCRLF(t *testing.T) {
	want := assembleOne(t, helloSource)
	got := assembleOne(t, strings.ReplaceAll(helloSource, "\n", " ; eol\r\n"))
	if !bytes.Equal(got, want) {
		t.Errorf("CRLF source assembled differently:\n%x\n%x", got, want)
	}
}

func TestAssembleResultName(t *testing.T) {
	results := Assemble(helloSource)
	if len(results) != 1 || results[0].Name != "Hello" {
		t.Fatalf("Assemble() = %+v", results)
	}
	cf := parseClass(t, results[0].Data)
	if name, ok := cf.ClassName(); !ok || name != "Hello" {
		t.Errorf("ClassName() = %q, %v", name, ok)
	}
	if cf.AccessFlags != classfile.AccPublic|classfile.AccSuper {
		t.Errorf("AccessFlags = %#x", cf.AccessFlags)
	}
}

func TestAssembleEmpty(t *testing.T) {
	for _, src := range []string{"", "\n\n", "; nothing here\n"} {
		if results := Assemble(src); len(results) != 0 {
			t.Errorf("Assemble(%q) returned %d results, want 0", src, len(results))
		}
	}
}

func TestAssembleOptionalEnd(t *testing.T) {
	for _, src := range []string{
		".class A\n.super java/lang/Object\n",
		".class A\n.super java/lang/Object\n.end class",
	} {
		results := Assemble(src)
		if len(results) != 1 || results[0].Err != nil || results[0].Name != "A" {
			t.Errorf("Assemble(%q) = %+v", src, results)
		}
	}
}

func TestAssembleRecovery(t *testing.T) {
	src := strings.Join([]string{
		".class A",
		".super java/lang/Object",
		".end class",
		".class B",
		".super",
		".end class",
		".class C",
		".super java/lang/Object",
		".end class",
		"",
	}, "\n")

	results := Assemble(src)
	if len(results) != 3 {
		t.Fatalf("Assemble() returned %d results, want 3", len(results))
	}
	if results[0].Name != "A" || results[2].Name != "C" {
		t.Errorf("names = %q, %q, want A, C", results[0].Name, results[2].Name)
	}
	err := results[1].Err
	if err == nil {
		t.Fatal("class B assembled, want error")
	}
	if got, want := err.Error(), "5:7: Expected REF, STRING_LITERAL, or WORD."; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAssembleRecoveryAfterLexicalError(t *testing.T) {
	src := ".class A\n.super \"abc\n.end class\n.class B\n.super java/lang/Object\n.end class\n"
	results := Assemble(src)
	if len(results) != 2 {
		t.Fatalf("Assemble() returned %d results, want 2", len(results))
	}
	if results[0].Err == nil || results[0].Err.Primary.Message != "Invalid escape sequence or character in string literal" {
		t.Errorf("first result = %+v", results[0])
	}
	if results[1].Err != nil || results[1].Name != "B" {
		t.Errorf("second result = %+v", results[1])
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"ldc index", inMethod("ldc [300]"), "Ldc index must be <= 255."},
		{"undefined label", inMethod("goto L9"), "Undefined label"},
		{"duplicate label", inMethod("L0:\nL0:\nreturn"), "Duplicate label definition"},
		{"label prefix", inMethod("goto X0"), "Labels must start with L."},
		{"empty tableswitch", inMethod("tableswitch 0\ndefault : L0\nL0: return"), "Table switch must have at least one non-default jump."},
		{"duplicate key", inMethod("lookupswitch\n1 : L0\n1 : L0\ndefault : L0\nL0: return"), "Duplicate lookupswitch key."},
		{"frame offset", inMethod(".stack same\n.stack same\nreturn"), "Stack frame has same offset as previous frame."},
		{"bipush range", inMethod("bipush 200"), "Value must be in range -128 <= x < 128."},
		{"undefined symbol", inMethod("ldc [foo]"), "Undefined symbolic reference"},
		{"unknown instruction", inMethod("frobnicate"), ""},
		{
			"circular symbol",
			".class T\n.super java/lang/Object\n.const [a] = [b]\n.const [b] = [a]\n.field f I = [a]\n.end class\n",
			"Circular symbolic reference",
		},
		{
			"raw alias",
			".class T\n.super java/lang/Object\n.const [1] = [2]\n.end class\n",
			"Raw references cannot be aliased to another reference.",
		},
		{
			"labels outside code",
			".class T\n.super java/lang/Object\n.method m : ()V\n.linenumbertable\nL0 1\n.end linenumbertable\n.end method\n.end class\n",
			"Labels may only be used inside of a Code attribute.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assembleErr(t, tt.src)
			if tt.want == "" {
				if !strings.HasPrefix(err.Primary.Message, "Expected ") {
					t.Errorf("message = %q, want an Expected list", err.Primary.Message)
				}
				return
			}
			if err.Primary.Message != tt.want {
				t.Errorf("message = %q, want %q", err.Primary.Message, tt.want)
			}
		})
	}
}

func TestAssembleDuplicateKeyNote(t *testing.T) {
	src := inMethod("lookupswitch\n1 : L0\n1 : L0\ndefault : L0\nL0: return")
	err := assembleErr(t, src)
	if len(err.Notes) != 1 || err.Notes[0].Message != "Key previously defined here:" {
		t.Fatalf("Notes = %+v", err.Notes)
	}
	if err.Notes[0].Start >= err.Primary.Start {
		t.Errorf("note at %d should precede primary at %d", err.Notes[0].Start, err.Primary.Start)
	}
}

func TestAssembleLookupSwitch(t *testing.T) {
	data := assembleOne(t, inMethod("lookupswitch\n5 : L0\n-1 : L0\ndefault : L0\nL0: return"))
	_, code := methodCode(t, data)

	want := []byte{
		0xab, 0, 0, 0,
		0, 0, 0, 28,
		0, 0, 0, 2,
		0xff, 0xff, 0xff, 0xff, 0, 0, 0, 28,
		0, 0, 0, 5, 0, 0, 0, 28,
		0xb1,
	}
	if !bytes.Equal(code.Code, want) {
		t.Errorf("code = %x, want %x", code.Code, want)
	}
}

func TestAssembleTableSwitch(t *testing.T) {
	data := assembleOne(t, inMethod("nop\ntableswitch -1\nL0\nL1\ndefault : L1\nL0: nop\nL1: return"))
	_, code := methodCode(t, data)

	// tableswitch at 1 pads to 4; L0 is at 24, L1 at 25.
	want := []byte{
		0x00,
		0xaa, 0, 0,
		0, 0, 0, 24,
		0xff, 0xff, 0xff, 0xff,
		0, 0, 0, 0,
		0, 0, 0, 23,
		0, 0, 0, 24,
		0x00,
		0xb1,
	}
	if !bytes.Equal(code.Code, want) {
		t.Errorf("code = %x, want %x", code.Code, want)
	}
}

func TestAssembleStackMapTable(t *testing.T) {
	data := assembleOne(t, inMethod("L0: nop\n.stack same\ngoto L0"))
	cf, code := methodCode(t, data)

	if want := []byte{0x00, 0xa7, 0xff, 0xff}; !bytes.Equal(code.Code, want) {
		t.Errorf("code = %x, want %x", code.Code, want)
	}
	if len(code.Attributes) != 1 {
		t.Fatalf("got %d code attributes, want 1", len(code.Attributes))
	}
	attr := code.Attributes[0]
	if name := cf.ConstantPool.GetUtf8(attr.NameIndex); name != "StackMapTable" {
		t.Errorf("attribute name = %q, want StackMapTable", name)
	}
	if want := []byte{0, 1, 1}; !bytes.Equal(attr.Info, want) {
		t.Errorf("StackMapTable = %x, want %x", attr.Info, want)
	}
}

func TestAssembleConstantSharing(t *testing.T) {
	src := ".class T\n.super java/lang/Object\n.const [s] = String \"x\"\n" +
		".method static m : ()V\n.code stack 4 locals 4\n" +
		"ldc \"x\"\nldc [s]\nldc2_w 5L\nldc_w [20]\nreturn\n" +
		".end code\n.end method\n" +
		".const [20] = Int 7\n.end class\n"
	data := assembleOne(t, src)
	cf, code := methodCode(t, data)
	c := code.Code
	cp := cf.ConstantPool

	if c[1] != c[3] {
		t.Errorf("ldc operands %d and %d differ, want a shared slot", c[1], c[3])
	}
	if s, ok := cp.Get(uint16(c[1])); !ok || s.Tag != classfile.ConstantString || cp.GetUtf8(s.Refs[0]) != "x" {
		t.Errorf("slot %d = %+v, want String x", c[1], s)
	}

	long := uint16(c[5])<<8 | uint16(c[6])
	if l, ok := cp.Get(long); !ok || l.Tag != classfile.ConstantLong || l.Bits != 5 {
		t.Errorf("slot %d = %+v, want Long 5", long, l)
	}
	if _, ok := cp.Get(long + 1); ok {
		t.Errorf("slot %d after a Long is in use", long+1)
	}

	if raw := uint16(c[8])<<8 | uint16(c[9]); raw != 20 {
		t.Errorf("ldc_w operand = %d, want 20", raw)
	}
	if i, ok := cp.Get(20); !ok || i.Tag != classfile.ConstantInteger || i.Bits != 7 {
		t.Errorf("slot 20 = %+v, want Int 7", i)
	}
}

func TestAssembleShortCode(t *testing.T) {
	src := ".version 45 2\n.class T\n.super java/lang/Object\n" +
		".method static m : ()V\n.code stack 3 locals 2\nreturn\n.end code\n.end method\n.end class\n"
	data := assembleOne(t, src)
	cf, code := methodCode(t, data)
	if !cf.ShortCode() {
		t.Fatal("ShortCode() = false for version 45.2")
	}
	if code.MaxStack != 3 || code.MaxLocals != 2 || !bytes.Equal(code.Code, []byte{0xb1}) {
		t.Errorf("code = %+v", code)
	}

	err := assembleErr(t, strings.Replace(src, "stack 3", "stack 300", 1))
	if err.Primary.Message != "Value must be in range 0 <= x < 256." {
		t.Errorf("message = %q", err.Primary.Message)
	}
}

func TestAssembleInvokeInterfaceCount(t *testing.T) {
	data := assembleOne(t, inMethod("invokeinterface java/util/List add (ILjava/lang/Object;)V\nreturn"))
	_, code := methodCode(t, data)
	if code.Code[0] != 0xb9 || code.Code[3] != 3 || code.Code[4] != 0 {
		t.Errorf("invokeinterface = %x, want count 3", code.Code[:5])
	}
}

func TestAssembleAnnotations(t *testing.T) {
	src := ".class T\n.super java/lang/Object\n" +
		".runtime visible annotations\n" +
		".annotation LA;\n" +
		"v = array\n" +
		"int 1\n" +
		"annotation LB;\n" +
		"s = string \"x\"\n" +
		".end annotation\n" +
		".end array\n" +
		".end annotation\n" +
		".end runtime\n" +
		".end class\n"
	data := assembleOne(t, src)
	cf := parseClass(t, data)
	attr := cf.GetAttribute("RuntimeVisibleAnnotations")
	if attr == nil {
		t.Fatal("RuntimeVisibleAnnotations missing")
	}

	info := attr.Info
	// num_annotations, type, num_pairs, name, '[', num_values
	if info[0] != 0 || info[1] != 1 || info[4] != 0 || info[5] != 1 || info[8] != '[' || info[10] != 2 {
		t.Fatalf("annotation header = %x", info)
	}
	// 'I' const, then '@' type num_pairs name 's' const
	if info[11] != 'I' || info[14] != '@' || info[18] != 1 || info[21] != 's' {
		t.Errorf("annotation values = %x", info[11:])
	}
	if len(info) != 24 {
		t.Errorf("length = %d, want 24", len(info))
	}
}
