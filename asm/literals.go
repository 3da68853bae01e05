package asm

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/dhamidi/krak/classfile"
)

var (
	errIntRange  = errors.New("Value does not fit into int type.")
	errLongRange = errors.New("Value does not fit into long type.")
	errByteRange = errors.New("Byte string characters must be in range 0 <= x < 256.")
)

// splitInt separates an integer literal into sign, magnitude digits and
// base. Any l/L suffix is dropped.
func splitInt(s string) (neg bool, digits string, base int) {
	s = strings.TrimRight(s, "lL")
	switch {
	case strings.HasPrefix(s, "-"):
		neg, s = true, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return neg, s[2:], 16
	}
	return neg, s, 10
}

// parseBounded parses an integer literal and checks lower <= x < upper.
func parseBounded(s string, lower, upper int64) (int64, bool) {
	neg, digits, base := splitInt(s)
	mag, err := strconv.ParseUint(digits, base, 64)
	if err != nil || mag > 1<<63 {
		return 0, false
	}
	var x int64
	if neg {
		x = -int64(mag)
	} else if mag == 1<<63 {
		return 0, false
	} else {
		x = int64(mag)
	}
	return x, lower <= x && x < upper
}

// parseIntBits returns the two's complement bits of an int literal.
func parseIntBits(s string) (uint32, error) {
	x, ok := parseBounded(s, math.MinInt32, math.MaxInt32+1)
	if !ok {
		return 0, errIntRange
	}
	return uint32(int32(x)), nil
}

func parseLongBits(s string) (uint64, error) {
	neg, digits, base := splitInt(s)
	mag, err := strconv.ParseUint(digits, base, 64)
	if err != nil || mag > 1<<63 || (!neg && mag == 1<<63) {
		return 0, errLongRange
	}
	if neg {
		return -mag, nil
	}
	return mag, nil
}

// parseFloatBits returns the IEEE 754 bits of a float (32 bit) or double
// literal. The f suffix must already be stripped.
func parseFloatBits(s string, isFloat bool) uint64 {
	s = strings.ToLower(s)
	bits := func(f float64) uint64 {
		if isFloat {
			return uint64(math.Float32bits(float32(f)))
		}
		return math.Float64bits(f)
	}

	switch {
	case s == "-nan":
		if isFloat {
			return 0xffc00000
		}
		return 0xfff8000000000000
	case s == "+nan":
		if isFloat {
			return 0x7fc00000
		}
		return 0x7ff8000000000000
	case strings.HasSuffix(s, ">"):
		payload := s[strings.Index(s, "<0x")+3 : len(s)-1]
		v, _ := strconv.ParseUint(strings.TrimLeft(payload, "0"), 16, 64)
		if isFloat {
			return v & 0xFFFFFFFF
		}
		return v
	case strings.HasSuffix(s, "infinity"):
		if s[0] == '-' {
			return bits(math.Inf(-1))
		}
		return bits(math.Inf(1))
	}

	size := 64
	if isFloat {
		size = 32
	}
	// Out of range values come back as the correctly rounded infinity or
	// zero along with ErrRange, which is the result wanted here.
	f, _ := strconv.ParseFloat(s, size)
	if isFloat {
		return uint64(math.Float32bits(float32(f)))
	}
	return math.Float64bits(f)
}

// parseStringUnits decodes the body of a quoted literal (quotes included)
// into UTF-16 code units.
func parseStringUnits(lit string) []uint16 {
	lit = lit[1 : len(lit)-1]
	var units []uint16
	appendRune := func(r rune) {
		if r >= 0x10000 {
			r1, r2 := utf16.EncodeRune(r)
			units = append(units, uint16(r1), uint16(r2))
		} else {
			units = append(units, uint16(r))
		}
	}

	for len(lit) > 0 {
		if lit[0] != '\\' {
			r, n := utf8.DecodeRuneInString(lit)
			appendRune(r)
			lit = lit[n:]
			continue
		}

		next := lit[1]
		switch {
		case next == 'U':
			v, _ := strconv.ParseUint(lit[2:10], 16, 32)
			appendRune(rune(v))
			lit = lit[10:]
		case next == 'u':
			v, _ := strconv.ParseUint(lit[2:6], 16, 16)
			units = append(units, uint16(v))
			lit = lit[6:]
		case next == 'x':
			v, _ := strconv.ParseUint(lit[2:4], 16, 8)
			units = append(units, uint16(v))
			lit = lit[4:]
		case next >= '0' && next <= '7':
			n := 1
			for n < 3 && 1+n < len(lit) && lit[1+n] >= '0' && lit[1+n] <= '7' {
				n++
			}
			v, _ := strconv.ParseUint(lit[1:1+n], 8, 16)
			units = append(units, uint16(v))
			lit = lit[1+n:]
		case strings.IndexByte("btnfr", next) >= 0:
			units = append(units, uint16("\b\t\n\f\r"[strings.IndexByte("btnfr", next)]))
			lit = lit[2:]
		default:
			r, n := utf8.DecodeRuneInString(lit[1:])
			appendRune(r)
			lit = lit[1+n:]
		}
	}
	return units
}

// parseStringBytes converts a STRING_LITERAL token to the bytes it stands
// for: raw bytes with a b prefix, modified UTF-8 otherwise.
func parseStringBytes(lit string) ([]byte, error) {
	if lit[0] == 'b' || lit[0] == 'B' {
		units := parseStringUnits(lit[1:])
		out := make([]byte, len(units))
		for i, u := range units {
			if u >= 256 {
				return nil, errByteRange
			}
			out[i] = byte(u)
		}
		return out, nil
	}
	return classfile.EncodeMUTF8(parseStringUnits(lit)), nil
}
