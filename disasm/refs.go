package disasm

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dhamidi/krak/classfile"
)

const (
	// maxInline bounds the printed length of an inlined constant.
	maxInline = 300
	// Utf8 text of at least shortInline bytes is inlined at most
	// maxInlineUses times before a symbolic reference takes over.
	shortInline   = 50
	maxInlineUses = 10
)

var refPrefixes = map[classfile.ConstantTag]string{
	classfile.ConstantUtf8:               "u",
	classfile.ConstantClass:              "c",
	classfile.ConstantString:             "s",
	classfile.ConstantFieldref:           "f",
	classfile.ConstantMethodref:          "m",
	classfile.ConstantInterfaceMethodref: "im",
	classfile.ConstantNameAndType:        "nat",
	classfile.ConstantMethodHandle:       "mh",
	classfile.ConstantMethodType:         "mt",
	classfile.ConstantInvokeDynamic:      "id",
}

var (
	memberTags   = []classfile.ConstantTag{classfile.ConstantFieldref, classfile.ConstantMethodref, classfile.ConstantInterfaceMethodref}
	loadableTags = []classfile.ConstantTag{classfile.ConstantClass, classfile.ConstantMethodHandle, classfile.ConstantMethodType}
)

// refPrinter decides how each constant pool reference is written: inline,
// as a symbolic reference defined at the end of the class, or as a raw
// index. It records which symbolic references need a definition.
type refPrinter struct {
	pool      classfile.ConstantPool
	bootstrap []classfile.BootstrapMethod
	roundtrip bool

	// forcedRaw indexes are always written raw.
	forcedRaw map[uint16]bool
	usedCP    map[uint16]bool
	usedBS    map[uint16]bool
	words     map[uint16]string
	quoted    map[uint16]string
	utfUses   map[uint16]int
}

func newRefPrinter(cf *classfile.ClassFile, roundtrip bool) *refPrinter {
	rp := &refPrinter{
		pool:      cf.ConstantPool,
		roundtrip: roundtrip,
		forcedRaw: map[uint16]bool{0: true},
		usedCP:    map[uint16]bool{},
		usedBS:    map[uint16]bool{},
		words:     map[uint16]string{},
		quoted:    map[uint16]string{},
		utfUses:   map[uint16]int{},
	}
	if bsm, err := cf.BootstrapMethods(); err == nil {
		rp.bootstrap = bsm
	}

	// The JVM rejects an InnerClasses entry whose inner and outer index are
	// equal but accepts two distinct entries naming the same class, so
	// such pairs must not be merged.
	for i := range cf.Attributes {
		if cf.ConstantPool.GetUtf8(cf.Attributes[i].NameIndex) != "InnerClasses" {
			continue
		}
		entries, _ := classfile.ParseInnerClasses(cf.Attributes[i].Info)
		for _, e := range entries {
			inner, outer := e.InnerClassInfoIndex, e.OuterClassInfoIndex
			innerName, innerOK := rp.pool.ClassName(inner)
			outerName, outerOK := rp.pool.ClassName(outer)
			if inner != outer && innerName == outerName && innerOK == outerOK {
				rp.forcedRaw[inner] = true
				rp.forcedRaw[outer] = true
			}
		}
	}
	return rp
}

// slot returns the constant at index or abandons the current item.
func (rp *refPrinter) slot(index uint16) classfile.Constant {
	c, ok := rp.pool.Get(index)
	if !ok {
		fail("invalid constant pool index %d", index)
	}
	return c
}

func (rp *refPrinter) raw(index uint16) bool {
	return rp.roundtrip || rp.forcedRaw[index]
}

func rawRef(index uint16, isBS bool) string {
	if isBS {
		return fmt.Sprintf("[bs:%d]", index)
	}
	return fmt.Sprintf("[%d]", index)
}

func (rp *refPrinter) symRef(index uint16, isBS bool) string {
	if isBS {
		if int(index) >= len(rp.bootstrap) {
			fail("invalid bootstrap method index %d", index)
		}
		rp.usedBS[index] = true
		return fmt.Sprintf("[bs:_%d]", index)
	}
	c := rp.slot(index)
	rp.usedCP[index] = true
	prefix, ok := refPrefixes[c.Tag]
	if !ok {
		prefix = "_"
	}
	return fmt.Sprintf("[%s%d]", prefix, index)
}

// ref is the reference used on the left of a constant definition.
func (rp *refPrinter) ref(index uint16, isBS bool) string {
	if rp.roundtrip || (!isBS && rp.forcedRaw[index]) {
		return rawRef(index, isBS)
	}
	return rp.symRef(index, isBS)
}

func (rp *refPrinter) utf8Text(index uint16, wordOK bool) string {
	if wordOK {
		if s, ok := rp.words[index]; ok {
			return s
		}
	} else if s, ok := rp.quoted[index]; ok {
		return s
	}

	data := rp.slot(index).Data
	quoted := quoteUtf8(data)
	word := wordOrQuoted(data)
	rp.quoted[index] = quoted
	rp.words[index] = word
	if wordOK {
		return word
	}
	return quoted
}

// ident inlines a Utf8 entry unless it is too long or a long string has
// already been inlined often.
func (rp *refPrinter) ident(index uint16, wordOK bool) (string, bool) {
	c, ok := rp.pool.Get(index)
	if !ok || c.Tag != classfile.ConstantUtf8 {
		return "", false
	}
	s := rp.utf8Text(index, wordOK)
	if len(s) >= maxInline {
		return "", false
	}
	if len(s) >= shortInline && rp.utfUses[index] >= maxInlineUses {
		return "", false
	}
	rp.utfUses[index]++
	return s, true
}

func (rp *refPrinter) utfRef(index uint16) string {
	if rp.raw(index) {
		return rawRef(index, false)
	}
	if s, ok := rp.ident(index, true); ok {
		return s
	}
	return rp.symRef(index, false)
}

func (rp *refPrinter) clsRef(index uint16) string {
	if rp.raw(index) {
		return rawRef(index, false)
	}
	if c := rp.slot(index); c.Tag == classfile.ConstantClass {
		if s, ok := rp.ident(c.Refs[0], true); ok {
			return s
		}
	}
	return rp.symRef(index, false)
}

func (rp *refPrinter) natRef(index uint16) string {
	if rp.raw(index) {
		return rawRef(index, false)
	}
	if c := rp.slot(index); c.Tag == classfile.ConstantNameAndType {
		if s, ok := rp.ident(c.Refs[0], true); ok {
			return s + " " + rp.utfRef(c.Refs[1])
		}
	}
	return rp.symRef(index, false)
}

func (rp *refPrinter) memberRef(index uint16) string {
	if rp.raw(index) {
		return rawRef(index, false)
	}
	if c := rp.slot(index); slices.Contains(memberTags, c.Tag) {
		return strings.Join([]string{c.Tag.String(), rp.clsRef(c.Refs[0]), rp.natRef(c.Refs[1])}, " ")
	}
	return rp.symRef(index, false)
}

// handleNotRef writes a MethodHandle's kind and target without the tag.
func (rp *refPrinter) handleNotRef(index uint16) string {
	c := rp.slot(index)
	if c.Tag != classfile.ConstantMethodHandle {
		fail("constant %d is not a MethodHandle", index)
	}
	kind := classfile.MethodHandleKind(c.Bits).String()
	if kind == "" {
		fail("invalid method handle kind %d", c.Bits)
	}
	return kind + " " + rp.taggedRef(c.Refs[0], memberTags)
}

// taggedConst writes a constant's full definition, starting with its tag.
func (rp *refPrinter) taggedConst(index uint16) string {
	c := rp.slot(index)
	parts := []string{c.Tag.String()}
	switch c.Tag {
	case classfile.ConstantUtf8:
		parts = append(parts, rp.utf8Text(index, true))
	case classfile.ConstantInteger:
		parts = append(parts, formatInt(c.Bits))
	case classfile.ConstantFloat:
		parts = append(parts, formatFloat(c.Bits, rp.roundtrip))
	case classfile.ConstantLong:
		parts = append(parts, formatLong(c.Bits))
	case classfile.ConstantDouble:
		parts = append(parts, formatDouble(c.Bits, rp.roundtrip))
	case classfile.ConstantClass, classfile.ConstantString, classfile.ConstantMethodType:
		parts = append(parts, rp.utfRef(c.Refs[0]))
	case classfile.ConstantFieldref, classfile.ConstantMethodref, classfile.ConstantInterfaceMethodref:
		parts = append(parts, rp.clsRef(c.Refs[0]), rp.natRef(c.Refs[1]))
	case classfile.ConstantNameAndType:
		parts = append(parts, rp.utfRef(c.Refs[0]), rp.utfRef(c.Refs[1]))
	case classfile.ConstantMethodHandle:
		parts = append(parts, rp.handleNotRef(index))
	case classfile.ConstantInvokeDynamic:
		parts = append(parts, rp.bsRef(c.Refs[0]), rp.natRef(c.Refs[1]))
	}
	return strings.Join(parts, " ")
}

// taggedRef inlines the constant's definition when its tag is allowed
// (any tag if allowed is nil) and the text is short enough.
func (rp *refPrinter) taggedRef(index uint16, allowed []classfile.ConstantTag) string {
	if rp.raw(index) {
		return rawRef(index, false)
	}
	if allowed == nil || slices.Contains(allowed, rp.slot(index).Tag) {
		if s := rp.taggedConst(index); len(s) < maxInline {
			return s
		}
	}
	return rp.symRef(index, false)
}

// ldcRHS writes a loadable constant, preferring bare literals.
func (rp *refPrinter) ldcRHS(index uint16) string {
	if rp.raw(index) {
		return rawRef(index, false)
	}
	c := rp.slot(index)
	switch c.Tag {
	case classfile.ConstantInteger:
		return formatInt(c.Bits)
	case classfile.ConstantFloat:
		return formatFloat(c.Bits, false)
	case classfile.ConstantLong:
		return formatLong(c.Bits)
	case classfile.ConstantDouble:
		return formatDouble(c.Bits, false)
	case classfile.ConstantString:
		if s, ok := rp.ident(c.Refs[0], false); ok {
			return s
		}
		return rp.symRef(index, false)
	}
	return rp.taggedRef(index, loadableTags)
}

// bsNotRef writes a bootstrap method's handle and arguments, closed by a
// colon. The tagged form is the one used in .bootstrap definitions.
func (rp *refPrinter) bsNotRef(index uint16, tagged bool) string {
	if int(index) >= len(rp.bootstrap) {
		fail("invalid bootstrap method index %d", index)
	}
	bsm := rp.bootstrap[index]

	var parts []string
	if tagged {
		parts = append(parts, "Bootstrap")
	}
	if tagged && rp.roundtrip {
		parts = append(parts, rawRef(bsm.MethodRef, false))
	} else {
		parts = append(parts, rp.handleNotRef(bsm.MethodRef))
	}
	for _, arg := range bsm.Arguments {
		parts = append(parts, rp.taggedRef(arg, nil))
	}
	parts = append(parts, ":")
	return strings.Join(parts, " ")
}

func (rp *refPrinter) bsRef(index uint16) string {
	if rp.roundtrip {
		return rawRef(index, true)
	}
	return rp.bsNotRef(index, false)
}
