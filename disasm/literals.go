package disasm

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/dhamidi/krak/asm"
	"github.com/dhamidi/krak/classfile"
)

func formatInt(bits uint64) string {
	return strconv.FormatInt(int64(int32(uint32(bits))), 10)
}

func formatLong(bits uint64) string {
	return strconv.FormatInt(int64(bits), 10) + "L"
}

func formatFloat(bits uint64, exact bool) string {
	if exact {
		return exactFloat(bits, 8, 23) + "f"
	}
	return readableFloat(float64(math.Float32frombits(uint32(bits))), bits != 0) + "f"
}

func formatDouble(bits uint64, exact bool) string {
	if exact {
		return exactFloat(bits, 11, 52)
	}
	return readableFloat(math.Float64frombits(bits), bits != 0)
}

// exactFloat spells out the bits of an IEEE value as a signed hexadecimal
// mantissa and binary exponent, keeping NaN payloads.
func exactFloat(bits uint64, ebits, mbits uint) string {
	emask := uint64(1)<<ebits - 1
	sign := bits >> (ebits + mbits) & 1
	exp := bits >> mbits & emask
	mant := bits & (uint64(1)<<mbits - 1)

	var s string
	switch {
	case exp == emask && mant == 0:
		s = "Infinity"
	case exp == emask:
		width := int(ebits+mbits+1) / 4
		s = fmt.Sprintf("NaN<0x%0*X>", width, bits)
	case exp == 0 && mant == 0:
		s = "0.0"
	default:
		e := int(exp) - int(emask>>1) - int(mbits)
		if exp > 0 {
			mant |= uint64(1) << mbits
		} else {
			e++
		}
		s = fmt.Sprintf("0x%Xp%d", mant, e)
	}
	return "+-"[sign:sign+1] + s
}

// readableFloat prints the shortest decimal that reads back as f, always
// signed and always with a fraction or exponent.
func readableFloat(f float64, nonzeroBits bool) string {
	s := shortestDecimal(f)
	if n := len(s); n >= 3 && s[n-3:n-1] == "e-" {
		s = s[:n-1] + "0" + s[n-1:]
	}
	if f == 0 && nonzeroBits {
		s = "-0.0"
	}
	if !math.IsInf(f, 0) && !math.IsNaN(f) && !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	if s[0] != '-' {
		s = "+" + s
	}
	return s
}

// shortestDecimal places the shortest round-tripping digits of f in
// positional notation for exponents from -7 to 20 and in scientific
// notation otherwise.
func shortestDecimal(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	s := strconv.FormatFloat(f, 'e', -1, 64)
	sign := ""
	if s[0] == '-' {
		sign, s = "-", s[1:]
	}
	mant, expStr, _ := strings.Cut(s, "e")
	exp, _ := strconv.Atoi(expStr)
	digits := strings.Replace(mant, ".", "", 1)
	k, n := len(digits), exp+1

	switch {
	case k <= n && n <= 21:
		return sign + digits + strings.Repeat("0", n-k)
	case 0 < n && n <= 21:
		return sign + digits[:n] + "." + digits[n:]
	case -6 < n && n <= 0:
		return sign + "0." + strings.Repeat("0", -n) + digits
	}

	expSign := "+"
	if n-1 < 0 {
		expSign = "-"
	}
	m := digits[:1]
	if k > 1 {
		m += "." + digits[1:]
	}
	return sign + m + "e" + expSign + strconv.Itoa(abs(n-1))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

var escapes = map[uint16]string{
	'\n': `\n`,
	'\t': `\t`,
	'\r': `\r`,
	'\\': `\\`,
}

// quoteUnits quotes UTF-16 code units as a string literal. Double quotes
// are used only when they avoid escaping a single quote.
func quoteUnits(units []uint16) string {
	hasSingle, hasDouble := false, false
	for _, c := range units {
		hasSingle = hasSingle || c == '\''
		hasDouble = hasDouble || c == '"'
	}
	sep := uint16('\'')
	if hasSingle && !hasDouble {
		sep = '"'
	}

	var sb strings.Builder
	sb.WriteByte(byte(sep))
	for _, c := range units {
		switch {
		case c == sep:
			sb.WriteByte('\\')
			sb.WriteByte(byte(c))
		case escapes[c] != "":
			sb.WriteString(escapes[c])
		case c >= ' ' && c < 0x7F:
			sb.WriteByte(byte(c))
		case c < 0x100:
			fmt.Fprintf(&sb, `\x%02x`, c)
		default:
			fmt.Fprintf(&sb, `\u%04x`, c)
		}
	}
	sb.WriteByte(byte(sep))
	return sb.String()
}

// quoteBytes quotes raw bytes as a byte string literal.
func quoteBytes(b []byte) string {
	units := make([]uint16, len(b))
	for i, c := range b {
		units[i] = uint16(c)
	}
	return "b" + quoteUnits(units)
}

// quoteUtf8 quotes modified UTF-8 data as a string literal, falling back
// to a byte string when the data does not decode and re-encode exactly.
func quoteUtf8(b []byte) string {
	units := classfile.DecodeMUTF8(b)
	if !bytes.Equal(classfile.EncodeMUTF8(units), b) {
		return quoteBytes(b)
	}
	return quoteUnits(units)
}

// wordOrQuoted returns data as a bare word when it would lex back as one,
// and as a quoted literal otherwise.
func wordOrQuoted(b []byte) string {
	units := classfile.DecodeMUTF8(b)
	if bytes.Equal(classfile.EncodeMUTF8(units), b) {
		s := string(utf16.Decode(units))
		if isWord(s) {
			return s
		}
	}
	return quoteUtf8(b)
}

func isWord(s string) bool {
	return asm.IsWord(s) && !classfile.IsFlagName(s)
}
