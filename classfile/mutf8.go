package classfile

import "unicode/utf16"

// EncodeMUTF8 encodes UTF-16 code units in the JVM's modified UTF-8: NUL is
// two bytes and supplementary characters are encoded as two surrogates.
func EncodeMUTF8(units []uint16) []byte {
	out := make([]byte, 0, len(units))
	for _, c := range units {
		switch {
		case c != 0 && c < 0x80:
			out = append(out, byte(c))
		case c < 0x800:
			out = append(out, byte(0xC0|c>>6), byte(0x80|c&0x3F))
		default:
			out = append(out, byte(0xE0|c>>12), byte(0x80|(c>>6)&0x3F), byte(0x80|c&0x3F))
		}
	}
	return out
}

// DecodeMUTF8 never fails; continuation bytes past the end read as zero.
func DecodeMUTF8(b []byte) []uint16 {
	at := func(i int) uint16 {
		if i < len(b) {
			return uint16(b[i])
		}
		return 0
	}
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := uint16(b[i])
		switch {
		case c >= 0xE0:
			units = append(units, (c&0x0F)<<12|(at(i+1)&0x3F)<<6|at(i+2)&0x3F)
			i += 3
		case c >= 0xC0:
			units = append(units, (c&0x1F)<<6|at(i+1)&0x3F)
			i += 2
		default:
			units = append(units, c)
			i++
		}
	}
	return units
}

func EncodeMUTF8String(s string) []byte {
	return EncodeMUTF8(utf16.Encode([]rune(s)))
}

// DecodeMUTF8String decodes to a Go string. Unpaired surrogates become
// U+FFFD.
func DecodeMUTF8String(b []byte) string {
	return string(utf16.Decode(DecodeMUTF8(b)))
}
