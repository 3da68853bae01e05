package asm

import (
	"strings"

	"github.com/dhamidi/krak/classfile"
)

// tryAttribute parses one attribute line and appends it to attrs. The
// generic ".attribute name [length n]" form wraps either raw string data
// or a named attribute whose body is reused under the given name.
func (p *Parser) tryAttribute(attrs *[]*Attribute) bool {
	if p.hasValue(".attribute") {
		a := &Attribute{Tok: p.consume(), Data: NewWriter()}
		a.Name = p.utfRef()
		if p.tryValue("length") {
			n := uint64(p.u32())
			a.Length = &n
		}

		if p.hasKind(TokenString) {
			a.Data.Write(p.str(0xFFFFFFFF))
		} else if named := p.namedAttribute(a); named != nil {
			a.Data = named.Data
		} else {
			p.fail()
		}
		p.eol()
		*attrs = append(*attrs, a)
		return true
	}

	if a := p.namedAttribute(nil); a != nil {
		p.eol()
		*attrs = append(*attrs, a)
		return true
	}
	return false
}

func (p *Parser) namedAttribute(wrapper *Attribute) *Attribute {
	start := p.tok
	var a *Attribute
	create := func(name string) *Writer {
		a = newAttribute(start, name)
		return a.Data
	}
	orWrapper := func() *Attribute {
		if wrapper != nil {
			return wrapper
		}
		return a
	}

	switch {
	case p.tryValue(".annotationdefault"):
		p.elementValue(create("AnnotationDefault"))
	case p.tryValue(".bootstrapmethods"):
		create("BootstrapMethods")
		p.cls.bootstrapMethods = orWrapper()
	case p.code == nil && p.tryValue(".code"):
		c := newCode(start, p.cls.ShortCode)
		p.code = c
		p.expect("stack")
		c.Stack = p.limit()
		p.expect("locals")
		c.Local = p.limit()
		p.eol()
		p.codeBody()
		p.expect(".end")
		p.expect("code")
		p.code = nil
		c.assemble(create("Code"))
	case p.tryValue(".constantvalue"):
		create("ConstantValue").Ref(p.ldcRHS())
	case p.tryValue(".deprecated"):
		create("Deprecated")
	case p.tryValue(".enclosing"):
		w := create("EnclosingMethod")
		p.expect("method")
		w.Ref(p.clsRef())
		w.Ref(p.natRef())
	case p.tryValue(".exceptions"):
		p.list(create("Exceptions"), p.atEOL, func(w *Writer) { w.Ref(p.clsRef()) })
	case p.tryValue(".innerclasses"):
		p.tableBody(create("InnerClasses"), "innerclasses", p.innerClass)
	case p.tryValue(".linenumbertable"):
		p.tableBody(create("LineNumberTable"), "linenumbertable", p.lineNumber)
	case p.tryValue(".localvariabletable"):
		p.tableBody(create("LocalVariableTable"), "localvariabletable", p.localVariable)
	case p.tryValue(".localvariabletypetable"):
		p.tableBody(create("LocalVariableTypeTable"), "localvariabletypetable", p.localVariable)
	case p.tryValue(".methodparameters"):
		w := create("MethodParameters")
		p.eol()
		p.listU8(w, p.atEnd, p.methodParameter)
		p.expect(".end")
		p.expect("methodparameters")
	case p.tryValue(".runtime"):
		p.runtimeAnnotations(create)
	case p.code != nil && p.tryValue(".stackmaptable"):
		create("StackMapTable")
		p.code.stackMapTable = orWrapper()
	case p.tryValue(".signature"):
		create("Signature").Ref(p.utfRef())
	case p.tryValue(".sourcedebugextension"):
		create("SourceDebugExtension").Write(p.str(0xFFFFFFFF))
	case p.tryValue(".sourcefile"):
		create("SourceFile").Ref(p.utfRef())
	case p.tryValue(".synthetic"):
		create("Synthetic")
	default:
		return nil
	}
	return a
}

// tableBody parses a newline separated item list closed by ".end name".
func (p *Parser) tableBody(w *Writer, name string, item func(*Writer)) {
	p.eol()
	p.list(w, p.atEnd, item)
	p.expect(".end")
	p.expect(name)
}

func (p *Parser) runtimeAnnotations(create func(string) *Writer) {
	if !p.hasAny([]string{"visible", "invisible"}) {
		p.fail()
	}
	vis := p.consume().Value
	prefix := "Runtime" + strings.ToUpper(vis[:1]) + vis[1:]

	switch {
	case p.tryValue("annotations"):
		w := create(prefix + "Annotations")
		p.eol()
		p.list(w, p.atEnd, p.annotationLine)
	case p.tryValue("paramannotations"):
		w := create(prefix + "ParameterAnnotations")
		p.eol()
		p.listU8(w, p.atEnd, p.paramAnnotationLine)
	case p.tryValue("typeannotations"):
		w := create(prefix + "TypeAnnotations")
		p.eol()
		p.list(w, p.atEnd, p.typeAnnotationLine)
	default:
		p.fail()
	}
	p.expect(".end")
	p.expect("runtime")
}

func (p *Parser) innerClass(w *Writer) {
	w.Ref(p.clsRef())
	w.Ref(p.clsRef())
	w.Ref(p.utfRef())
	w.U16(uint16(p.flags()))
	p.eol()
}

func (p *Parser) lineNumber(w *Writer) {
	w.Label(p.label(), 0, LabelU16)
	w.U16(p.u16())
	p.eol()
}

func (p *Parser) methodParameter(w *Writer) {
	w.Ref(p.utfRef())
	w.U16(uint16(p.flags()))
	p.eol()
}

// localVariable reads "index is name desc from L to L".
func (p *Parser) localVariable(w *Writer) {
	index := p.u16()
	p.expect("is")
	name := p.utfRef()
	desc := p.utfRef()
	start, end := p.codeRange()
	p.eol()

	w.LabelRange(start, end)
	w.Ref(name)
	w.Ref(desc)
	w.U16(index)
}

func (p *Parser) annotationLine(w *Writer) {
	p.expect(".annotation")
	p.annotationContents(w)
	p.expect(".end")
	p.expect("annotation")
	p.eol()
}

func (p *Parser) paramAnnotationLine(w *Writer) {
	p.expect(".paramannotation")
	p.eol()
	p.list(w, p.atEnd, p.annotationLine)
	p.expect(".end")
	p.expect("paramannotation")
	p.eol()
}

func (p *Parser) typeAnnotationLine(w *Writer) {
	p.expect(".typeannotation")
	p.targetInfo(w)
	p.targetPath(w)
	p.annotationContents(w)
	p.expect(".end")
	p.expect("typeannotation")
	p.eol()
}

func (p *Parser) targetInfo(w *Writer) {
	w.U8(p.u8())
	switch {
	case p.tryValue("typeparam"):
		w.U8(p.u8())
	case p.tryValue("super"):
		w.U16(p.u16())
	case p.tryValue("typeparambound"):
		w.U8(p.u8())
		w.U8(p.u8())
	case p.tryValue("empty"):
	case p.tryValue("methodparam"):
		w.U8(p.u8())
	case p.tryValue("throws"):
		w.U16(p.u16())
	case p.tryValue("localvar"):
		p.eol()
		p.list(w, p.atEnd, p.localVarRange)
		p.expect(".end")
		p.expect("localvar")
	case p.tryValue("catch"):
		w.U16(p.u16())
	case p.tryValue("offset"):
		w.Label(p.label(), 0, LabelU16)
	case p.tryValue("typearg"):
		w.Label(p.label(), 0, LabelU16)
		w.U8(p.u8())
	default:
		p.fail()
	}
	p.eol()
}

func (p *Parser) localVarRange(w *Writer) {
	if p.tryValue("nowhere") {
		w.U16(0xFFFF)
		w.U16(0xFFFF)
	} else {
		w.LabelRange(p.codeRange())
	}
	w.U16(p.u16())
	p.eol()
}

func (p *Parser) targetPath(w *Writer) {
	p.expect(".typepath")
	p.eol()
	p.listU8(w, p.atEnd, func(w *Writer) {
		w.U8(p.u8())
		w.U8(p.u8())
		p.eol()
	})
	p.expect(".end")
	p.expect("typepath")
	p.eol()
}

// Annotations nest arbitrarily deep, so element values are parsed with an
// explicit stack of open arrays and annotation bodies rather than by
// recursion.

type annFrameKind int

const (
	frameArray annFrameKind = iota
	frameContents
	frameAnnotationEnd
)

type annFrame struct {
	kind   annFrameKind
	pos    int
	count  int
	inItem bool
}

func (p *Parser) elementValue(w *Writer) {
	p.runAnnotation(w, p.startElement(w, nil))
}

func (p *Parser) annotationContents(w *Writer) {
	p.runAnnotation(w, p.startContents(w, nil))
}

func (p *Parser) startElement(w *Writer, stack []annFrame) []annFrame {
	if !p.hasAny(elementTags) {
		p.fail()
	}
	name := p.consume().Value
	tag, _ := classfile.LookupElementTag(name)
	w.U8(tag)

	switch name {
	case "annotation":
		return p.startContents(w, append(stack, annFrame{kind: frameAnnotationEnd}))
	case "array":
		p.eol()
		return append(stack, annFrame{kind: frameArray, pos: w.Ph16()})
	case "enum":
		w.Ref(p.utfRef())
		w.Ref(p.utfRef())
	case "class", "string":
		w.Ref(p.utfRef())
	default:
		w.Ref(p.ldcRHS())
	}
	return stack
}

func (p *Parser) startContents(w *Writer, stack []annFrame) []annFrame {
	w.Ref(p.utfRef())
	p.eol()
	return append(stack, annFrame{kind: frameContents, pos: w.Ph16()})
}

func (p *Parser) runAnnotation(w *Writer, stack []annFrame) {
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.kind == frameAnnotationEnd {
			stack = stack[:len(stack)-1]
			p.expect(".end")
			p.expect("annotation")
			continue
		}

		if top.inItem {
			p.eol()
			top.inItem = false
		}
		if p.atEnd() {
			w.SetPh16(top.pos, uint16(top.count))
			kind := top.kind
			stack = stack[:len(stack)-1]
			if kind == frameArray {
				p.expect(".end")
				p.expect("array")
			}
			continue
		}

		if top.count >= 65535 {
			if top.kind == frameArray {
				raise("Maximum 65535 items in annotation array element.", p.tok)
			}
			raise("Maximum 65535 items in annotation.", p.tok)
		}
		top.count++
		top.inItem = true
		if top.kind == frameContents {
			w.Ref(p.utfRef())
			p.expect("=")
		}
		stack = p.startElement(w, stack)
	}
}
