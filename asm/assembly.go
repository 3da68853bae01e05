package asm

import (
	"fmt"

	"github.com/dhamidi/krak/classfile"
)

type tokened interface {
	token() Token
}

func writeU16Count[T tokened](w *Writer, items []T, what string) {
	if len(items) >= 1<<16 {
		raise(fmt.Sprintf("Maximum %s count is 65535, found %d", what, len(items)), items[len(items)-1].token())
	}
	w.U16(uint16(len(items)))
}

type Attribute struct {
	Tok  Token
	Name *Ref
	// Length overrides the data length when set.
	Length *uint64
	Data   *Writer
}

func newAttribute(tok Token, name string) *Attribute {
	return &Attribute{Tok: tok, Name: utfString(tok, name), Data: NewWriter()}
}

func (a *Attribute) token() Token { return a.Tok }

func (a *Attribute) assemble(w *Writer) {
	length := uint64(a.Data.Len())
	if a.Length != nil {
		length = *a.Length
	}
	if length > 0xFFFFFFFF {
		raise(fmt.Sprintf("Maximum attribute data length is 4294967295 bytes, got %d bytes.", length), a.Tok)
	}
	w.Ref(a.Name)
	w.U32(uint32(length))
	w.Append(a.Data)
}

func assembleAttributes(w *Writer, attrs []*Attribute) {
	writeU16Count(w, attrs, "attribute")
	for _, a := range attrs {
		a.assemble(w)
	}
}

// Code is the body of a Code attribute under construction.
type Code struct {
	Tok   Token
	Short bool
	Stack uint16
	Local uint16

	bytecode   *Writer
	exceptions *Writer
	exceptN    int

	stackData     *Writer
	stackCount    int
	stackCountPos int
	lastStackOff  int

	stackMapTable *Attribute
	Attributes    []*Attribute

	labels     map[string]labelDef
	maxCodeLen int64
}

func newCode(tok Token, short bool) *Code {
	c := &Code{
		Tok:          tok,
		Short:        short,
		bytecode:     NewWriter(),
		exceptions:   NewWriter(),
		stackData:    NewWriter(),
		lastStackOff: -1,
		labels:       map[string]labelDef{},
		maxCodeLen:   0xFFFFFFFF,
	}
	if short {
		c.maxCodeLen = 0xFFFF
	}
	c.stackCountPos = c.stackData.Ph16()
	return c
}

func (c *Code) defineLabel(l Label) {
	if prev, ok := c.labels[l.Name]; ok {
		raise("Duplicate label definition", l.Tok, noteAt("Previous definition here:", prev.tok))
	}
	c.labels[l.Name] = labelDef{tok: l.Tok, pos: c.bytecode.Len()}
}

func (c *Code) addCatch(class *Ref, from, to, using Label) {
	c.exceptN++
	c.exceptions.Label(from, 0, LabelU16)
	c.exceptions.Label(to, 0, LabelU16)
	c.exceptions.Label(using, 0, LabelU16)
	c.exceptions.Ref(class)
}

// assemble writes the Code attribute body into w and fills in its labels.
func (c *Code) assemble(w *Writer) {
	if c.Short {
		w.U8(uint8(c.Stack))
		w.U8(uint8(c.Local))
		w.U16(uint16(c.bytecode.Len()))
	} else {
		w.U16(c.Stack)
		w.U16(c.Local)
		w.U32(uint32(c.bytecode.Len()))
	}
	w.Append(c.bytecode)

	w.U16(uint16(c.exceptN))
	w.Append(c.exceptions)

	if c.stackMapTable == nil && c.stackCount > 0 {
		c.stackMapTable = newAttribute(c.Tok, "StackMapTable")
		c.Attributes = append(c.Attributes, c.stackMapTable)
	}
	if c.stackMapTable != nil {
		c.stackData.SetPh16(c.stackCountPos, uint16(c.stackCount))
		c.stackMapTable.Data = c.stackData
	}

	assembleAttributes(w, c.Attributes)
	w.FillLabels(c.labels)
}

// member is a field or method.
type member struct {
	Tok        Token
	Access     classfile.AccessFlags
	Name       *Ref
	Desc       *Ref
	Attributes []*Attribute
}

func (m *member) token() Token { return m.Tok }

func (m *member) assemble(w *Writer) {
	w.U16(uint16(m.Access))
	w.Ref(m.Name)
	w.Ref(m.Desc)
	assembleAttributes(w, m.Attributes)
}

type (
	Field  struct{ member }
	Method struct{ member }
)

type refItem struct{ *Ref }

func (r refItem) token() Token { return r.Tok }

// Class is a class file under construction.
type Class struct {
	Tok          Token
	Major, Minor uint16
	Access       classfile.AccessFlags
	This, Super  *Ref

	Interfaces []*Ref
	Fields     []*Field
	Methods    []*Method
	Attributes []*Attribute

	ShortCode        bool
	bootstrapMethods *Attribute
	Pool             *Pool
}

func newClass() *Class {
	return &Class{Major: 49, Minor: 0, Pool: NewPool()}
}

// Assemble resolves the constant pool and returns the class file bytes
// along with the class name.
func (c *Class) Assemble() (string, []byte) {
	before := NewWriter()
	before.U32(classfile.Magic)
	before.U16(c.Minor)
	before.U16(c.Major)

	after := NewWriter()
	after.U16(uint16(c.Access))
	after.Ref(c.This)
	after.Ref(c.Super)
	ifaces := make([]refItem, len(c.Interfaces))
	for i, r := range c.Interfaces {
		ifaces[i] = refItem{r}
	}
	writeU16Count(after, ifaces, "interface")
	for _, r := range c.Interfaces {
		after.Ref(r)
	}
	writeU16Count(after, c.Fields, "field")
	for _, f := range c.Fields {
		f.assemble(after)
	}
	writeU16Count(after, c.Methods, "method")
	for _, m := range c.Methods {
		m.assemble(after)
	}

	// Attributes following an explicit BootstrapMethods attribute are
	// written after it, once the bootstrap table is known.
	attrCountPos := after.Ph16()
	afterBS := NewWriter()
	dst := after
	for _, a := range c.Attributes {
		if a == c.bootstrapMethods {
			dst = afterBS
			continue
		}
		a.assemble(dst)
	}

	for _, w := range []*Writer{after, afterBS} {
		for _, p := range w.refsU8 {
			if c.Pool.resolve(p.ref) >= 256 {
				raise("Ldc references too many distinct constants in this class. If you don't want to see this message again, use ldc_w instead of ldc everywhere.", p.ref.Tok)
			}
		}
	}

	before.FillRefs(c.Pool)
	after.FillRefs(c.Pool)
	afterBS.FillRefs(c.Pool)

	c.Pool.resolveInvokeDynamic()
	c.Pool.settle()
	if c.bootstrapMethods == nil && len(c.Pool.bs.slots) > 0 {
		c.bootstrapMethods = newAttribute(c.This.Tok, "BootstrapMethods")
		c.Attributes = append(c.Attributes, c.bootstrapMethods)
	}
	if c.bootstrapMethods != nil {
		c.Pool.resolve(c.bootstrapMethods.Name)
	}

	if len(c.Attributes) >= 1<<16 {
		raise(fmt.Sprintf("Maximum class attribute count is 65535, found %d.", len(c.Attributes)), c.Attributes[len(c.Attributes)-1].Tok)
	}
	after.SetPh16(attrCountPos, uint16(len(c.Attributes)))

	cpData, bsData := c.Pool.write()
	out := before
	out.Append(cpData)
	out.Append(after)
	if c.bootstrapMethods != nil {
		c.bootstrapMethods.Data = bsData
		c.bootstrapMethods.assemble(out)
		out.FillRefs(c.Pool)
		out.Append(afterBS)
	}

	name, ok := c.name()
	if !ok {
		raise("Invalid reference for class name.", c.This.Tok)
	}
	return name, out.Bytes()
}

func (c *Class) name() (string, bool) {
	cls, ok := c.Pool.cp.slots[c.This.slot]
	if !ok || cls == nil || cls.Tag != classfile.ConstantClass {
		return "", false
	}
	data, ok := c.Pool.utf8At(cls.Refs[0].slot)
	if !ok {
		return "", false
	}
	return classfile.DecodeMUTF8String(data), true
}
