package disasm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dhamidi/krak/asm"
	"github.com/dhamidi/krak/classfile"
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

const controlFlowSource = `.version 52 0
.class public super T
.super java/lang/Object
.implements java/lang/Runnable
.field private static final K J = 10L
.field public x F = +NaN<0x7fc00001>f
.field y D = -0.0
.field z Ljava/lang/String; = "it's"

.method public run : ()V
    .code stack 4 locals 4
L0:     iconst_0
        tableswitch 0
            L1
            L2
            default : L2
L1:     nop
L2:     iload_1
        lookupswitch
            -5 : L1
            7 : L2
            default : L3
L3:     iinc 1 -1
        wide iinc 300 1000
        bipush -3
        sipush 1000
        ldc2_w +1.5
        ldc 3.25f
        newarray int
        multianewarray [[I 2
        .stack full
            locals Object T Integer
            stack
        .end stack
        invokeinterface java/util/List size ()I 1
        return
        .catch java/lang/Exception from L0 to L3 using L3
        .catch [0] from L1 to L2 using L3
        .linenumbertable
            L0 10
            L3 11
        .end linenumbertable
        .localvariabletable
            0 is this LT; from L0 to L3
        .end localvariabletable
    .end code
    .exceptions java/io/IOException java/lang/RuntimeException
.end method

.method static loop : (I)V
    .code stack 2 locals 2
L0:     iload_0
        ifle L9
        iinc 0 -1
        goto L0
L9:     return
    .end code
.end method
.sourcefile "T.java"
.signature "Ljava/lang/Object;Ljava/lang/Runnable;"
.innerclasses
    T$A T A private static
.end innerclasses
.deprecated
.end class
`

const annotationSource = `.class T
.super java/lang/Object
.method m : (I)V
    .methodparameters
        x final
    .end methodparameters
    .runtime invisible paramannotations
        .paramannotation
            .annotation LP;
            .end annotation
        .end paramannotation
    .end runtime
.end method
.runtime visible annotations
    .annotation LA;
        v = array
            int 1
            annotation LB;
                s = string "x"
            .end annotation
            enum LE; RED
            class LC;
        .end array
        d = double +2.5
    .end annotation
.end runtime
.end class
`

const invokeDynamicSource = `.version 52 0
.class T
.super java/lang/Object
.method static m : ()Ljava/lang/Runnable;
    .code stack 1 locals 0
        invokedynamic InvokeDynamic invokeStatic Method java/lang/invoke/LambdaMetafactory metafactory (Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodHandle;Ljava/lang/invoke/MethodType;)Ljava/lang/invoke/CallSite; MethodType ()V MethodHandle invokeStatic Method T lambda ()V MethodType ()V : run ()Ljava/lang/Runnable;
        areturn
    .end code
.end method
.end class
`

// inMethod wraps body in a class with a single static method m()V.
func inMethod(body string) string {
	return ".class T\n.super java/lang/Object\n.method static m : ()V\n.code stack 4 locals 4\n" +
		body + "\n.end code\n.end method\n.end class\n"
}

func assemble(t *testing.T, src string) []byte {
	t.Helper()
	results := asm.Assemble(src)
	if len(results) != 1 {
		t.Fatalf("Assemble() returned %d results, want 1", len(results))
	}
	if err := results[0].Err; err != nil {
		t.Fatalf("Assemble() error: %v", err)
	}
	return results[0].Data
}

func disassemble(t *testing.T, data []byte, roundtrip bool) string {
	t.Helper()
	text, err := Disassemble(data, roundtrip)
	if err != nil {
		t.Fatalf("Disassemble() error: %v", err)
	}
	return text
}

func TestDisassembleHello(t *testing.T) {
	text := disassemble(t, assemble(t, helloSource), false)
	want := `.version 49 0
.class public super Hello
.super java/lang/Object

.method public static main : ([Ljava/lang/String;)V
    .code stack 2 locals 1
L0:     getstatic Field java/lang/System out Ljava/io/PrintStream;
L3:     ldc 'Hello, World!'
L5:     invokevirtual Method java/io/PrintStream println (Ljava/lang/String;)V
L8:     return
L9:
    .end code
.end method
.end class
`
	if text != want {
		t.Errorf("Disassemble() =\n%s\nwant\n%s", text, want)
	}
}

func TestDisassembleLabels(t *testing.T) {
	text := disassemble(t, assemble(t, inMethod("L0: nop\nnop\ngoto L0")), false)
	want := `.version 49 0
.class T
.super java/lang/Object

.method static m : ()V
    .code stack 4 locals 4
L0:     nop
L1:     nop
L2:     goto L0
L5:
    .end code
.end method
.end class
`
	if text != want {
		t.Errorf("Disassemble() =\n%s\nwant\n%s", text, want)
	}
}

func TestRoundtrip(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"hello", helloSource},
		{"control flow", controlFlowSource},
		{"annotations", annotationSource},
		{"invokedynamic", invokeDynamicSource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := assemble(t, tt.src)
			text := disassemble(t, data, true)
			if got := assemble(t, text); !bytes.Equal(got, data) {
				t.Errorf("reassembled class differs:\n%x\nwant\n%x\nfrom\n%s", got, data, text)
			}
		})
	}
}

func TestReassemble(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"hello", helloSource},
		{"control flow", controlFlowSource},
		{"annotations", annotationSource},
		{"invokedynamic", invokeDynamicSource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := assemble(t, tt.src)
			again := assemble(t, disassemble(t, data, false))

			before, err := classfile.Parse(data)
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			after, err := classfile.Parse(again)
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if len(after.Methods) != len(before.Methods) || len(after.Fields) != len(before.Fields) {
				t.Fatalf("members = %d/%d, want %d/%d", len(after.Fields), len(after.Methods), len(before.Fields), len(before.Methods))
			}
			for i := range before.Methods {
				m1, m2 := &before.Methods[i], &after.Methods[i]
				if m1.Name(before.ConstantPool) != m2.Name(after.ConstantPool) {
					t.Errorf("method %d = %q, want %q", i, m2.Name(after.ConstantPool), m1.Name(before.ConstantPool))
				}
				c1, _ := m1.Code(before.ConstantPool, before.ShortCode())
				c2, _ := m2.Code(after.ConstantPool, after.ShortCode())
				if (c1 == nil) != (c2 == nil) || (c1 != nil && len(c1.Code) != len(c2.Code)) {
					t.Errorf("method %d code differs", i)
				}
			}
		})
	}
}

func TestDisassembleStable(t *testing.T) {
	for _, src := range []string{helloSource, annotationSource} {
		first := disassemble(t, assemble(t, src), false)
		second := disassemble(t, assemble(t, first), false)
		if first != second {
			t.Errorf("second disassembly differs:\n%s\nwant\n%s", second, first)
		}
	}
}

func TestDisassembleReadableConstants(t *testing.T) {
	text := disassemble(t, assemble(t, controlFlowSource), false)
	for _, want := range []string{
		".field private static final K J = 10L\n",
		".field public x F = +NaNf\n",
		".field y D = -0.0\n",
		`.field z Ljava/lang/String; = "it's"` + "\n",
		"L66:    ldc2_w +1.5\n",
		"L69:    ldc +3.25f\n",
		"L55:    wide iinc 300 1000\n",
		"L82:    return\nL83:\n",
		"        .catch java/lang/Exception from L0 to L52 using L52\n",
		"        .catch [0] from L24 to L25 using L52\n",
		"L24:    nop\n",
		"L52:    iinc 1 -1\n",
		"    .exceptions java/io/IOException java/lang/RuntimeException\n",
		".innerclasses\n    T$A T A private static\n.end innerclasses\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output does not contain %q:\n%s", want, text)
		}
	}
}

func TestDisassembleRawFallback(t *testing.T) {
	src := inMethod(`nop
.attribute LineNumberTable b'\x00\x01\x00\x05\x00\x07'`)
	text := disassemble(t, assemble(t, src), false)

	want := `        .attribute LineNumberTable b'\x00\x01\x00\x05\x00\x07'` + "\n"
	if !strings.Contains(text, want) {
		t.Fatalf("output does not contain %q:\n%s", want, text)
	}
	assemble(t, text)
}

func TestDisassembleTrailingBytes(t *testing.T) {
	src := ".class T\n.super java/lang/Object\n.attribute SourceFile b'\\x00\\x01\\x02'\n.end class\n"
	text := disassemble(t, assemble(t, src), false)
	if want := `.attribute SourceFile b'\x00\x01\x02'`; !strings.Contains(text, want) {
		t.Errorf("output does not contain %q:\n%s", want, text)
	}
}

func TestDisassembleForcedRaw(t *testing.T) {
	src := ".class T\n.super java/lang/Object\n" +
		".const [10] = Class T$A\n.const [11] = Class T$A\n" +
		".innerclasses\n[10] [11] A static\n.end innerclasses\n.end class\n"
	text := disassemble(t, assemble(t, src), false)
	for _, want := range []string{
		"    [10] [11] A static\n",
		".const [10] = Class T$A\n",
		".const [11] = Class T$A\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output does not contain %q:\n%s", want, text)
		}
	}
}

func TestDisassembleForcedRawEveryInnerClasses(t *testing.T) {
	src := ".class T\n.super java/lang/Object\n" +
		".const [10] = Class T$A\n.const [11] = Class T$A\n" +
		".const [12] = Class T$B\n.const [13] = Class T$B\n" +
		".innerclasses\n[10] [11] A static\n.end innerclasses\n" +
		".innerclasses\n[12] [13] B static\n.end innerclasses\n.end class\n"
	text := disassemble(t, assemble(t, src), false)
	for _, want := range []string{
		"    [10] [11] A static\n",
		"    [12] [13] B static\n",
		".const [12] = Class T$B\n",
		".const [13] = Class T$B\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output does not contain %q:\n%s", want, text)
		}
	}
}

func TestDisassembleSymbolicRefs(t *testing.T) {
	long := strings.Repeat("a", 60)
	var body strings.Builder
	for i := 0; i < 11; i++ {
		body.WriteString("ldc \"" + long + "\"\n")
	}
	body.WriteString("return")
	text := disassemble(t, assemble(t, inMethod(body.String())), false)

	if n := strings.Count(text, "ldc '"+long+"'"); n != 10 {
		t.Errorf("got %d inline ldc operands, want 10", n)
	}
	if !strings.Contains(text, " ldc [s") {
		t.Errorf("output has no symbolic ldc operand:\n%s", text)
	}
	if !strings.Contains(text, "= Utf8 "+long+"\n") || !strings.Contains(text, ".const [s") {
		t.Errorf("output does not define the symbolic constants:\n%s", text)
	}

	_, code := methodCode(t, assemble(t, text))
	for i := 0; i < 22; i += 2 {
		if code.Code[i] != 0x12 || code.Code[i+1] != code.Code[1] {
			t.Fatalf("code = %x, want eleven ldc of one constant", code.Code)
		}
	}
}

func methodCode(t *testing.T, data []byte) (*classfile.ClassFile, *classfile.CodeAttribute) {
	t.Helper()
	cf, err := classfile.Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	code, err := cf.Methods[0].Code(cf.ConstantPool, cf.ShortCode())
	if err != nil || code == nil {
		t.Fatalf("Code() = %v, %v", code, err)
	}
	return cf, code
}

func TestDisassembleInvalidClass(t *testing.T) {
	if _, err := Disassemble([]byte{0xCA, 0xFE}, false); err == nil {
		t.Error("Disassemble() error = nil for a truncated class")
	}
}
