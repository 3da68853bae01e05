package disasm

import (
	"math"
	"testing"
)

func TestExactFloat(t *testing.T) {
	tests := []struct {
		name  string
		bits  uint64
		float bool
		want  string
	}{
		{"one and a half", 0x3FF8000000000000, false, "+0x18000000000000p-52"},
		{"float one", 0x3F800000, true, "+0x800000p-23f"},
		{"negative zero", 0x8000000000000000, false, "-0.0"},
		{"float infinity", 0x7F800000, true, "+Infinity"},
		{"float nan payload", 0x7FC00001, true, "+NaN<0x7FC00001>f"},
		{"negative nan", 0xFFF8000000000000, false, "-NaN<0xFFF8000000000000>"},
		{"subnormal", 1, false, "+0x1p-1074"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			if tt.float {
				got = formatFloat(tt.bits, true)
			} else {
				got = formatDouble(tt.bits, true)
			}
			if got != tt.want {
				t.Errorf("format(%#x) = %q, want %q", tt.bits, got, tt.want)
			}
		})
	}
}

func TestReadableDouble(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{0.1, "+0.1"},
		{100, "+100.0"},
		{1e21, "+1e+21"},
		{1.5e-7, "+1.5e-07"},
		{1e-7, "+1e-07"},
		{0.000001, "+0.000001"},
		{-2.5, "-2.5"},
		{1.2345678901234568e20, "+123456789012345680000.0"},
		{math.Copysign(0, -1), "-0.0"},
		{0, "+0.0"},
		{math.NaN(), "+NaN"},
		{math.Inf(-1), "-Infinity"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatDouble(math.Float64bits(tt.value), false); got != tt.want {
				t.Errorf("formatDouble(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestReadableFloat(t *testing.T) {
	got := formatFloat(uint64(math.Float32bits(0.1)), false)
	if want := "+0.10000000149011612f"; got != want {
		t.Errorf("formatFloat(0.1) = %q, want %q", got, want)
	}
}

func TestIntegers(t *testing.T) {
	if got := formatInt(0xFFFFFFFF); got != "-1" {
		t.Errorf("formatInt(0xFFFFFFFF) = %q, want %q", got, "-1")
	}
	if got := formatLong(0x8000000000000000); got != "-9223372036854775808L" {
		t.Errorf("formatLong(min) = %q", got)
	}
}

func TestQuoteUtf8(t *testing.T) {
	tests := []struct {
		input []byte
		want  string
	}{
		{[]byte("abc"), `'abc'`},
		{[]byte("it's"), `"it's"`},
		{[]byte(`a'b"c`), `'a\'b"c'`},
		{[]byte("\n\t\\"), `'\n\t\\'`},
		{[]byte{0xC3, 0xA9}, `'\xe9'`},
		{[]byte{0xE2, 0x82, 0xAC}, `'\u20ac'`},
		{[]byte{0xC0, 0x80}, `'\x00'`},
		{[]byte{0xFF}, `b'\xff'`},
		{[]byte{0x00}, `b'\x00'`},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := quoteUtf8(tt.input); got != tt.want {
				t.Errorf("quoteUtf8(%x) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestWordOrQuoted(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"java/lang/Object", "java/lang/Object"},
		{"<init>", "<init>"},
		{"public", `'public'`},
		{"has space", `'has space'`},
		{"", `''`},
		{"L0:", `'L0:'`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := wordOrQuoted([]byte(tt.input)); got != tt.want {
				t.Errorf("wordOrQuoted(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
