package classfile

import (
	"bytes"
	"testing"
)

func TestEncodeMUTF8(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []byte
	}{
		{"ascii", "abc", []byte("abc")},
		{"nul", "a\x00", []byte{'a', 0xC0, 0x80}},
		{"two byte", "é", []byte{0xC3, 0xA9}},
		{"three byte", "€", []byte{0xE2, 0x82, 0xAC}},
		{"supplementary", "\U0001F600", []byte{0xED, 0xA0, 0xBD, 0xED, 0xB8, 0x80}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeMUTF8String(tt.in)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeMUTF8String(%q) = % x, want % x", tt.in, got, tt.want)
			}
			if back := DecodeMUTF8String(got); back != tt.in {
				t.Errorf("DecodeMUTF8String() = %q, want %q", back, tt.in)
			}
		})
	}
}

func TestDecodeMUTF8Lenient(t *testing.T) {
	got := DecodeMUTF8([]byte{'a', 0xE2, 0x82})
	want := []uint16{'a', 0x2080}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("DecodeMUTF8() = %x, want %x", got, want)
	}
}

func TestUnpairedSurrogateRoundTrip(t *testing.T) {
	units := []uint16{0xD800, 'x'}
	enc := EncodeMUTF8(units)
	dec := DecodeMUTF8(enc)
	if len(dec) != 2 || dec[0] != 0xD800 || dec[1] != 'x' {
		t.Errorf("DecodeMUTF8(EncodeMUTF8()) = %x, want %x", dec, units)
	}
}

func TestArgumentSlots(t *testing.T) {
	tests := []struct {
		desc string
		want int
	}{
		{"()V", 1},
		{"(I)V", 2},
		{"(JD)V", 5},
		{"([J[[Ljava/lang/String;)V", 3},
		{"(Ljava/lang/Object;IZ)Ljava/lang/Object;", 4},
	}
	for _, tt := range tests {
		if got := ArgumentSlots(tt.desc); got != tt.want {
			t.Errorf("ArgumentSlots(%q) = %d, want %d", tt.desc, got, tt.want)
		}
	}
}

func TestAccessFlagNames(t *testing.T) {
	flags := AccPublic | AccSynchronized | AccVarargs
	got := flags.Names(false)
	want := []string{"public", "super", "transient"}
	if len(got) != len(want) {
		t.Fatalf("Names(false) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names(false) = %v, want %v", got, want)
		}
	}
	got = flags.Names(true)
	want = []string{"public", "synchronized", "varargs"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names(true) = %v, want %v", got, want)
		}
	}
	if f, ok := LookupFlag("strictfp"); !ok || f != AccStrict {
		t.Errorf("LookupFlag(strictfp) = %v, %v", f, ok)
	}
}

func TestOpcodes(t *testing.T) {
	tests := []struct {
		name string
		op   Opcode
		kind OperandKind
	}{
		{"nop", 0, OperandNone},
		{"aload", 25, OperandLocal},
		{"ret", OpRet, OperandLocal},
		{"ifnull", 198, OperandBranch},
		{"goto_w", OpGotoW, OperandBranchWide},
		{"checkcast", 192, OperandClass},
		{"invokestatic", OpInvokestatic, OperandMember},
		{"tableswitch", OpTableswitch, OperandSpecial},
		{"iinc", OpIinc, OperandSpecial},
	}
	for _, tt := range tests {
		op, ok := LookupOpcode(tt.name)
		if !ok || op != tt.op {
			t.Errorf("LookupOpcode(%q) = %d, %v, want %d", tt.name, op, ok, tt.op)
		}
		if op.Kind() != tt.kind {
			t.Errorf("%s.Kind() = %d, want %d", tt.name, op.Kind(), tt.kind)
		}
	}
	if OpGetstatic.MemberTag() != ConstantFieldref || OpInvokevirtual.MemberTag() != ConstantMethodref {
		t.Error("MemberTag() mismatch")
	}
}
