package disasm

import (
	"strconv"
	"strings"

	"github.com/dhamidi/krak/classfile"
)

type scope int

const (
	scopeClass scope = iota
	scopeField
	scopeMethod
	scopeCode
)

var annotationAttributes = map[string]bool{
	"RuntimeVisibleAnnotations":            true,
	"RuntimeInvisibleAnnotations":          true,
	"RuntimeVisibleParameterAnnotations":   true,
	"RuntimeInvisibleParameterAnnotations": true,
	"RuntimeVisibleTypeAnnotations":        true,
	"RuntimeInvisibleTypeAnnotations":      true,
}

// regenerated reports whether attr is rebuilt by the assembler from other
// directives: the class's bootstrap table and the stack map of the Code
// attribute being written.
func (d *disassembler) regenerated(attr *classfile.AttributeInfo, name string, s scope) bool {
	switch {
	case s == scopeClass && name == "BootstrapMethods":
		return attr == d.cf.GetAttribute("BootstrapMethods")
	case s == scopeCode && name == "StackMapTable":
		return d.code != nil && attr == d.code.stackMap
	}
	return false
}

// attribute writes one attribute line. When the body cannot be written
// faithfully the attribute is written as raw bytes instead.
func (d *disassembler) attribute(attr *classfile.AttributeInfo, s scope) {
	nameData, named := d.cf.ConstantPool.Utf8(attr.NameIndex)
	name := string(nameData)
	if !named {
		name = ""
	}
	if !d.roundtrip && d.regenerated(attr, name, s) {
		return
	}

	saved := d.save()
	err := attempt(func() { d.attributeBody(attr, name, s) })
	if err == nil {
		return
	}

	log.Warningf("writing %s attribute as raw bytes: %s", displayName(name, attr.NameIndex), err)
	d.restore(saved)
	d.sol()
	d.attributeWrapper(attr)
	d.val(quoteBytes(attr.Info))
	d.eol()
}

func displayName(name string, index uint16) string {
	if name == "" {
		return "#" + strconv.Itoa(int(index))
	}
	return name
}

func (d *disassembler) attributeWrapper(attr *classfile.AttributeInfo) {
	name := rawRef(attr.NameIndex, false)
	if err := attempt(func() { name = d.refs.utfRef(attr.NameIndex) }); err != nil {
		name = rawRef(attr.NameIndex, false)
	}
	d.vals(".attribute", name)
	if attr.WrongLength {
		d.val("length")
		d.num(int64(attr.Length))
	}
}

func (d *disassembler) attributeBody(attr *classfile.AttributeInfo, name string, s scope) {
	d.sol()
	wrapped := d.roundtrip || name == ""
	if wrapped {
		d.attributeWrapper(attr)
	}

	r := attr.Reader()
	switch {
	case name == "AnnotationDefault":
		d.val(".annotationdefault")
		d.elementValue(r)
	case name == "BootstrapMethods" && d.regenerated(attr, name, s):
		if d.refs.bootstrap == nil {
			fail("malformed BootstrapMethods")
		}
		d.val(".bootstrapmethods")
		r = nil
	case name == "Code" && s == scopeMethod && d.code == nil:
		d.codeAttribute(attr)
		r = nil
	case name == "ConstantValue":
		d.vals(".constantvalue", d.refs.ldcRHS(r.U16()))
	case name == "Deprecated":
		d.val(".deprecated")
	case name == "EnclosingMethod":
		d.vals(".enclosing", "method", d.refs.clsRef(r.U16()), d.refs.natRef(r.U16()))
	case name == "Exceptions":
		d.val(".exceptions")
		for n := r.U16(); n > 0 && r.Err() == nil; n-- {
			d.val(d.refs.clsRef(r.U16()))
		}
	case name == "InnerClasses":
		d.lineList(r, "innerclasses", true, false, d.innerClass)
	case name == "LineNumberTable":
		d.lineList(r, "linenumbertable", true, false, d.lineNumber)
	case name == "LocalVariableTable":
		d.lineList(r, "localvariabletable", true, false, d.localVariable)
	case name == "LocalVariableTypeTable":
		d.lineList(r, "localvariabletypetable", true, false, d.localVariable)
	case name == "MethodParameters":
		d.lineList(r, "methodparameters", true, true, d.methodParameter)
	case annotationAttributes[name]:
		d.runtimeAnnotations(r, name)
	case name == "StackMapTable" && d.regenerated(attr, name, s):
		d.val(".stackmaptable")
		r = nil
	case name == "Signature":
		d.vals(".signature", d.refs.utfRef(r.U16()))
	case name == "SourceDebugExtension":
		d.vals(".sourcedebugextension", quoteUtf8(attr.Info))
		r = nil
	case name == "SourceFile":
		d.vals(".sourcefile", d.refs.utfRef(r.U16()))
	case name == "Synthetic":
		d.val(".synthetic")
	default:
		if !wrapped {
			d.attributeWrapper(attr)
		}
		d.val(quoteBytes(attr.Info))
		r = nil
	}
	d.eol()

	if r == nil {
		return
	}
	if r.Err() != nil {
		fail("truncated %s attribute", name)
	}
	if !r.Done() {
		fail("%d trailing bytes in %s attribute", r.Size(), name)
	}
}

// lineList writes a counted list with one item per indented line, closed
// by ".end name".
func (d *disassembler) lineList(r *classfile.Reader, name string, open, byteCount bool, item func(*classfile.Reader)) {
	if open {
		d.val("." + name)
		d.eol()
	}
	var count int
	if byteCount {
		count = int(r.U8())
	} else {
		count = int(r.U16())
	}

	d.indent++
	for i := 0; i < count && r.Err() == nil; i++ {
		d.sol()
		item(r)
		d.eol()
	}
	d.indent--
	d.sol()
	d.val(".end " + name)
}

func (d *disassembler) innerClass(r *classfile.Reader) {
	d.vals(d.refs.clsRef(r.U16()), d.refs.clsRef(r.U16()), d.refs.utfRef(r.U16()))
	d.flags(classfile.AccessFlags(r.U16()), false)
}

func (d *disassembler) lineNumber(r *classfile.Reader) {
	d.lbl(int(r.U16()))
	d.num(int64(r.U16()))
}

func (d *disassembler) localVariable(r *classfile.Reader) {
	start, length := int(r.U16()), int(r.U16())
	name, desc, index := r.U16(), r.U16(), r.U16()
	d.num(int64(index))
	d.vals("is", d.refs.utfRef(name), d.refs.utfRef(desc))
	d.codeRange(start, start+length)
}

func (d *disassembler) codeRange(start, end int) {
	d.val("from")
	d.lbl(start)
	d.val("to")
	d.lbl(end)
}

func (d *disassembler) methodParameter(r *classfile.Reader) {
	d.val(d.refs.utfRef(r.U16()))
	d.flags(classfile.AccessFlags(r.U16()), false)
}

func (d *disassembler) runtimeAnnotations(r *classfile.Reader, name string) {
	d.val(".runtime")
	if strings.Contains(name, "Invisible") {
		d.val("invisible")
	} else {
		d.val("visible")
	}

	switch {
	case strings.Contains(name, "Type"):
		d.val("typeannotations")
		d.eol()
		d.lineList(r, "runtime", false, false, d.typeAnnotationLine)
	case strings.Contains(name, "Parameter"):
		d.val("paramannotations")
		d.eol()
		d.lineList(r, "runtime", false, true, d.paramAnnotationLine)
	default:
		d.val("annotations")
		d.eol()
		d.lineList(r, "runtime", false, false, d.annotationLine)
	}
}

func (d *disassembler) annotationLine(r *classfile.Reader) {
	d.val(".annotation")
	d.annotationContents(r)
	d.sol()
	d.vals(".end", "annotation")
}

func (d *disassembler) paramAnnotationLine(r *classfile.Reader) {
	d.lineList(r, "paramannotation", true, false, d.annotationLine)
}

func (d *disassembler) typeAnnotationLine(r *classfile.Reader) {
	d.val(".typeannotation")
	d.indent++
	d.targetInfo(r)
	d.targetPath(r)
	d.sol()
	d.annotationContents(r)
	d.indent--
	d.sol()
	d.vals(".end", "typeannotation")
}

// targetInfo writes the target_type byte and its target_info on the
// .typeannotation line.
func (d *disassembler) targetInfo(r *classfile.Reader) {
	tag := r.U8()
	d.num(int64(tag))
	switch {
	case tag <= 0x01:
		d.val("typeparam")
		d.num(int64(r.U8()))
	case tag <= 0x10:
		d.val("super")
		d.num(int64(r.U16()))
	case tag <= 0x12:
		d.val("typeparambound")
		d.num(int64(r.U8()))
		d.num(int64(r.U8()))
	case tag <= 0x15:
		d.val("empty")
	case tag == 0x16:
		d.val("methodparam")
		d.num(int64(r.U8()))
	case tag == 0x17:
		d.val("throws")
		d.num(int64(r.U16()))
	case tag <= 0x41:
		d.val("localvar")
		d.eol()
		d.lineList(r, "localvar", false, false, d.localVarRange)
	case tag == 0x42:
		d.val("catch")
		d.num(int64(r.U16()))
	case tag <= 0x46:
		d.val("offset")
		d.lbl(int(r.U16()))
	default:
		d.val("typearg")
		d.lbl(int(r.U16()))
		d.num(int64(r.U8()))
	}
	d.eol()
}

func (d *disassembler) localVarRange(r *classfile.Reader) {
	start, length, index := int(r.U16()), int(r.U16()), r.U16()
	if start == 0xFFFF && length == 0xFFFF {
		d.val("nowhere")
	} else {
		d.codeRange(start, start+length)
	}
	d.num(int64(index))
}

func (d *disassembler) targetPath(r *classfile.Reader) {
	d.sol()
	d.lineList(r, "typepath", true, true, func(r *classfile.Reader) {
		d.num(int64(r.U8()))
		d.num(int64(r.U8()))
	})
	d.eol()
}

// Element values nest arbitrarily deep, so they are written with an
// explicit stack of open arrays and annotation bodies.

type elemFrameKind int

const (
	elemArray elemFrameKind = iota
	elemContents
	elemAnnotationEnd
)

type elemFrame struct {
	kind      elemFrameKind
	remaining int
	inItem    bool
}

func (d *disassembler) elementValue(r *classfile.Reader) {
	d.runElements(r, d.startElement(r, nil))
}

func (d *disassembler) annotationContents(r *classfile.Reader) {
	d.runElements(r, d.startContents(r, nil))
}

func (d *disassembler) startElement(r *classfile.Reader, stack []elemFrame) []elemFrame {
	tag := r.U8()
	name, ok := classfile.ElementTagName(tag)
	if !ok {
		fail("invalid element value tag %d", tag)
	}
	d.val(name)

	switch name {
	case "annotation":
		return d.startContents(r, append(stack, elemFrame{kind: elemAnnotationEnd}))
	case "array":
		d.eol()
		d.indent++
		return append(stack, elemFrame{kind: elemArray, remaining: int(r.U16())})
	case "enum":
		d.vals(d.refs.utfRef(r.U16()), d.refs.utfRef(r.U16()))
	case "class", "string":
		d.val(d.refs.utfRef(r.U16()))
	default:
		d.val(d.refs.ldcRHS(r.U16()))
	}
	return stack
}

func (d *disassembler) startContents(r *classfile.Reader, stack []elemFrame) []elemFrame {
	d.val(d.refs.utfRef(r.U16()))
	d.eol()
	d.indent++
	return append(stack, elemFrame{kind: elemContents, remaining: int(r.U16())})
}

func (d *disassembler) runElements(r *classfile.Reader, stack []elemFrame) {
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.kind == elemAnnotationEnd {
			stack = stack[:len(stack)-1]
			d.sol()
			d.vals(".end", "annotation")
			continue
		}

		if top.inItem {
			d.eol()
			top.inItem = false
		}
		if top.remaining == 0 || r.Err() != nil {
			kind := top.kind
			stack = stack[:len(stack)-1]
			d.indent--
			if kind == elemArray {
				d.sol()
				d.vals(".end", "array")
			}
			continue
		}

		top.remaining--
		top.inItem = true
		d.sol()
		if top.kind == elemContents {
			d.vals(d.refs.utfRef(r.U16()), "=")
		}
		stack = d.startElement(r, stack)
	}
}
