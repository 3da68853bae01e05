// Package disasm turns class files back into assembly text that the asm
// package reads.
package disasm

import (
	"encoding/binary"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/dhamidi/krak/classfile"
)

var log = commonlog.GetLogger("krak.disasm")

// bailout abandons the item being written. Attributes recover from it by
// falling back to raw bytes.
type bailout struct {
	msg string
}

func (b bailout) Error() string { return b.msg }

func fail(format string, args ...any) {
	panic(bailout{fmt.Sprintf(format, args...)})
}

// attempt runs f and returns the bailout it raised, if any.
func attempt(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			err = b
		}
	}()
	f()
	return nil
}

type Option func(*Encoder)

// WithRoundtrip selects the output that reassembles to the identical
// class file: raw constant pool references, every pool entry defined and
// floating point values written bit for bit.
func WithRoundtrip(enabled bool) Option {
	return func(e *Encoder) {
		e.roundtrip = enabled
	}
}

type Encoder struct {
	w         io.Writer
	class     *classfile.ClassFile
	roundtrip bool
}

func NewEncoder(w io.Writer, opts ...Option) *Encoder {
	e := &Encoder{w: w}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Encoder) Encode(class *classfile.ClassFile) error {
	e.class = class
	text, err := e.MarshalText()
	if err != nil {
		return err
	}
	_, err = e.w.Write(text)
	return err
}

func (e *Encoder) MarshalText() ([]byte, error) {
	d := &disassembler{
		cf:        e.class,
		roundtrip: e.roundtrip,
		refs:      newRefPrinter(e.class, e.roundtrip),
	}
	if err := attempt(d.class); err != nil {
		return nil, fmt.Errorf("failed to disassemble class: %w", err)
	}
	return d.buf.Bytes(), nil
}

// Disassemble parses a class file and returns its assembly text.
func Disassemble(data []byte, roundtrip bool) (string, error) {
	cf, err := classfile.Parse(data)
	if err != nil {
		return "", fmt.Errorf("failed to parse class file: %w", err)
	}
	var sb strings.Builder
	if err := NewEncoder(&sb, WithRoundtrip(roundtrip)).Encode(cf); err != nil {
		return "", err
	}
	return sb.String(), nil
}

type disassembler struct {
	printer
	cf        *classfile.ClassFile
	refs      *refPrinter
	roundtrip bool

	// code is set while a Code attribute is being written.
	code *codeContext
}

func (d *disassembler) num(x int64) {
	d.val(strconv.FormatInt(x, 10))
}

func (d *disassembler) flags(f classfile.AccessFlags, method bool) {
	d.vals(f.Names(method)...)
}

func (d *disassembler) class() {
	cf := d.cf
	d.val(".version")
	d.num(int64(cf.MajorVersion))
	d.num(int64(cf.MinorVersion))
	d.eol()

	d.val(".class")
	d.flags(cf.AccessFlags, false)
	d.val(d.refs.clsRef(cf.ThisClass))
	d.eol()
	d.vals(".super", d.refs.clsRef(cf.SuperClass))
	d.eol()
	for _, iface := range cf.Interfaces {
		d.vals(".implements", d.refs.clsRef(iface))
		d.eol()
	}

	for i := range cf.Fields {
		d.field(&cf.Fields[i])
	}
	for i := range cf.Methods {
		d.method(&cf.Methods[i])
	}
	for i := range cf.Attributes {
		d.attribute(&cf.Attributes[i], scopeClass)
	}

	d.constDefs()
	d.val(".end class")
	d.eol()
}

func pointers(attrs []classfile.AttributeInfo) []*classfile.AttributeInfo {
	ptrs := make([]*classfile.AttributeInfo, len(attrs))
	for i := range attrs {
		ptrs[i] = &attrs[i]
	}
	return ptrs
}

func (d *disassembler) field(f *classfile.FieldInfo) {
	d.val(".field")
	d.flags(f.AccessFlags, false)
	d.val(d.refs.utfRef(f.NameIndex))
	d.val(d.refs.utfRef(f.DescriptorIndex))

	attrs := pointers(f.Attributes)
	if cv := f.GetAttribute(d.cf.ConstantPool, "ConstantValue"); cv != nil && !d.roundtrip && len(cv.Info) == 2 {
		var rhs string
		if err := attempt(func() { rhs = d.refs.ldcRHS(binary.BigEndian.Uint16(cv.Info)) }); err == nil {
			d.vals("=", rhs)
			attrs = slices.DeleteFunc(attrs, func(a *classfile.AttributeInfo) bool { return a == cv })
		}
	}

	if len(attrs) > 0 {
		d.val(".fieldattributes")
		d.eol()
		d.indent++
		for _, a := range attrs {
			d.attribute(a, scopeField)
		}
		d.indent--
		d.val(".end fieldattributes")
	}
	d.eol()
}

func (d *disassembler) method(m *classfile.MethodInfo) {
	d.eol()
	d.val(".method")
	d.flags(m.AccessFlags, true)
	d.vals(d.refs.utfRef(m.NameIndex), ":", d.refs.utfRef(m.DescriptorIndex))
	d.eol()
	d.indent++
	for i := range m.Attributes {
		d.attribute(&m.Attributes[i], scopeMethod)
	}
	d.indent--
	d.val(".end method")
	d.eol()
}

// constDefs defines every referenced symbolic constant. Definitions can
// reference further constants, so this repeats until nothing new is used.
// The roundtrip form defines every slot under its raw index instead.
func (d *disassembler) constDefs() {
	rp := d.refs
	if d.roundtrip {
		for i := range rp.pool {
			d.constDef(uint16(i), false)
		}
		for i := range rp.bootstrap {
			d.constDef(uint16(i), true)
		}
		return
	}

	forced := make([]uint16, 0, len(rp.forcedRaw))
	for index := range rp.forcedRaw {
		if index != 0 {
			forced = append(forced, index)
		}
	}
	slices.Sort(forced)
	for _, index := range forced {
		d.constDef(index, false)
	}

	doneCP, doneBS := map[uint16]bool{}, map[uint16]bool{}
	for len(doneCP) < len(rp.usedCP) || len(doneBS) < len(rp.usedBS) {
		for _, index := range pending(rp.usedCP, doneCP) {
			d.constDef(index, false)
			doneCP[index] = true
		}
		for _, index := range pending(rp.usedBS, doneBS) {
			d.constDef(index, true)
			doneBS[index] = true
		}
	}
}

// pending lists the used indexes not yet done, in order.
func pending(used, done map[uint16]bool) []uint16 {
	var out []uint16
	for index := range used {
		if !done[index] {
			out = append(out, index)
		}
	}
	slices.Sort(out)
	return out
}

func (d *disassembler) constDef(index uint16, isBS bool) {
	if !isBS {
		if _, ok := d.refs.pool.Get(index); !ok {
			return
		}
	}

	d.sol()
	if isBS {
		d.vals(".bootstrap", d.refs.ref(index, true), "=", d.refs.bsNotRef(index, true))
	} else {
		d.vals(".const", d.refs.ref(index, false), "=", d.refs.taggedConst(index))
	}
	d.eol()
}
