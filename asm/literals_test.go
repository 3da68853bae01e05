package asm

import (
	"bytes"
	"testing"
)

func TestParseIntBits(t *testing.T) {
	tests := []struct {
		input string
		want  uint32
		err   bool
	}{
		{"0", 0, false},
		{"-1", 0xFFFFFFFF, false},
		{"0x7FFFFFFF", 0x7FFFFFFF, false},
		{"-2147483648", 0x80000000, false},
		{"+12", 12, false},
		{"2147483648", 0, true},
		{"-0x80000001", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseIntBits(tt.input)
			if (err != nil) != tt.err {
				t.Fatalf("parseIntBits(%q) error = %v, want error %v", tt.input, err, tt.err)
			}
			if got != tt.want {
				t.Errorf("parseIntBits(%q) = %#x, want %#x", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseLongBits(t *testing.T) {
	tests := []struct {
		input string
		want  uint64
		err   bool
	}{
		{"1L", 1, false},
		{"-1L", 0xFFFFFFFFFFFFFFFF, false},
		{"-9223372036854775808L", 0x8000000000000000, false},
		{"0x7fffffffffffffffL", 0x7FFFFFFFFFFFFFFF, false},
		{"9223372036854775808L", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseLongBits(tt.input)
			if (err != nil) != tt.err {
				t.Fatalf("parseLongBits(%q) error = %v, want error %v", tt.input, err, tt.err)
			}
			if got != tt.want {
				t.Errorf("parseLongBits(%q) = %#x, want %#x", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFloatBits(t *testing.T) {
	tests := []struct {
		input   string
		isFloat bool
		want    uint64
	}{
		{"1.5", false, 0x3FF8000000000000},
		{"0x1.8p1", false, 0x4008000000000000},
		{"-0.0", false, 0x8000000000000000},
		{"+Infinity", false, 0x7FF0000000000000},
		{"-Infinity", true, 0xFF800000},
		{"+NaN", false, 0x7FF8000000000000},
		{"-NaN", true, 0xFFC00000},
		{"+NaN<0x7fc00001>", true, 0x7FC00001},
		{"0.1", true, 0x3DCCCCCD},
		{"1e400", false, 0x7FF0000000000000},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseFloatBits(tt.input, tt.isFloat); got != tt.want {
				t.Errorf("parseFloatBits(%q, %v) = %#x, want %#x", tt.input, tt.isFloat, got, tt.want)
			}
		})
	}
}

func TestParseStringBytes(t *testing.T) {
	tests := []struct {
		input string
		want  []byte
	}{
		{`"abc"`, []byte("abc")},
		{`'it"s'`, []byte(`it"s`)},
		{`"tab\there"`, []byte("tab\there")},
		{`"\u0000"`, []byte{0xC0, 0x80}},
		{`"\x41\101"`, []byte("AA")},
		{`"\U0001F600"`, []byte{0xED, 0xA0, 0xBD, 0xED, 0xB8, 0x80}},
		{`b'\xff\x00'`, []byte{0xFF, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseStringBytes(tt.input)
			if err != nil {
				t.Fatalf("parseStringBytes(%q) error: %v", tt.input, err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("parseStringBytes(%q) = %x, want %x", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseStringBytesRange(t *testing.T) {
	if _, err := parseStringBytes(`b"Ā"`); err != errByteRange {
		t.Errorf("parseStringBytes() error = %v, want %v", err, errByteRange)
	}
}

func TestParseBounded(t *testing.T) {
	if _, ok := parseBounded("256", 0, 256); ok {
		t.Error("parseBounded(256, 0, 256) ok = true, want false")
	}
	if x, ok := parseBounded("-128", -128, 128); !ok || x != -128 {
		t.Errorf("parseBounded(-128) = %d, %v, want -128, true", x, ok)
	}
	if _, ok := parseBounded("99999999999999999999", 0, 1<<32); ok {
		t.Error("parseBounded() ok = true for an overflowing literal")
	}
}
