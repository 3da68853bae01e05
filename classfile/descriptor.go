package classfile

import "strings"

// ArgumentSlots counts the local variable slots taken by the receiver and
// the parameters of a method descriptor, as invokeinterface's count operand
// expects. Long and double parameters take two slots. Malformed
// descriptors are walked leniently and never fail.
func ArgumentSlots(desc string) int {
	if desc != "" {
		desc = desc[1:]
	}
	count := 1
	for desc != "" {
		if desc[0] == 'J' || desc[0] == 'D' {
			count++
		} else {
			desc = strings.TrimLeft(desc, "[")
		}

		switch {
		case strings.HasPrefix(desc, "L"):
			semi := strings.IndexByte(desc, ';')
			if semi < 0 {
				return count + 1
			}
			desc = desc[semi+1:]
		case strings.HasPrefix(desc, ")"):
			return count
		case desc == "":
		default:
			desc = desc[1:]
		}
		count++
	}
	return count
}
