package asm

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/dhamidi/krak/classfile"
)

// Parser reads one class from a token stream. Errors abort the class with
// a panic carrying *Error; Assemble recovers them.
type Parser struct {
	lex *Lexer
	tok Token

	triedValues []string
	triedKinds  []TokenKind

	cls  *Class
	code *Code
}

func newParser(lex *Lexer) *Parser {
	return &Parser{lex: lex, cls: newClass()}
}

type constOpts struct {
	isBS          bool
	methodHandle  bool
	invokeDynamic bool
}

var (
	flagKeywords = classfile.FlagKeywords()
	handleKinds  = collectNames(1, 9, func(i int) (string, bool) {
		s := classfile.MethodHandleKind(i).String()
		return s, s != ""
	})
	newArrayTypes     = collectNames(4, 11, func(i int) (string, bool) { return classfile.NewArrayTypeName(uint8(i)) })
	verificationTypes = collectNames(0, int(classfile.VTUninitialized), func(i int) (string, bool) {
		return classfile.VerificationTypeName(uint8(i))
	})
	elementTags = func() []string {
		var names []string
		for _, c := range []byte("BCDFIJSZsec@[") {
			name, _ := classfile.ElementTagName(c)
			names = append(names, name)
		}
		return names
	}()
)

func collectNames(lo, hi int, name func(int) (string, bool)) []string {
	var names []string
	for i := lo; i <= hi; i++ {
		if s, ok := name(i); ok {
			names = append(names, s)
		}
	}
	return names
}

func (p *Parser) consume() Token {
	tok := p.tok
	p.triedValues = p.triedValues[:0]
	p.triedKinds = p.triedKinds[:0]
	next, err := p.lex.Next()
	if err != nil {
		panic(err)
	}
	p.tok = next
	return tok
}

func (p *Parser) fail() {
	var expected []string
	kinds := make([]string, 0, len(p.triedKinds))
	for _, k := range p.triedKinds {
		kinds = append(kinds, k.String())
	}
	slices.Sort(kinds)
	expected = append(expected, slices.Compact(kinds)...)
	values := slices.Clone(p.triedValues)
	slices.Sort(values)
	expected = append(expected, slices.Compact(values)...)
	raise(fmt.Sprintf("Expected %s.", formatList(expected)), p.tok)
}

func formatList(items []string) string {
	items = slices.Clone(items)
	if len(items) > 1 {
		items[len(items)-1] = "or " + items[len(items)-1]
	}
	sep := " "
	if len(items) > 2 {
		sep = ", "
	}
	return strings.Join(items, sep)
}

func (p *Parser) hasValue(v string) bool {
	p.triedValues = append(p.triedValues, v)
	return p.tok.Value == v
}

func (p *Parser) hasAny(values []string) bool {
	p.triedValues = append(p.triedValues, values...)
	return slices.Contains(values, p.tok.Value)
}

func (p *Parser) hasKind(k TokenKind) bool {
	p.triedKinds = append(p.triedKinds, k)
	return p.tok.Kind == k
}

func (p *Parser) assertKind(k TokenKind) {
	if !p.hasKind(k) {
		p.fail()
	}
}

func (p *Parser) tryValue(v string) bool {
	if p.hasValue(v) {
		p.consume()
		return true
	}
	return false
}

func (p *Parser) expect(v string) {
	if !p.tryValue(v) {
		p.fail()
	}
}

func (p *Parser) atEOL() bool { return p.hasKind(TokenNewlines) }
func (p *Parser) atEnd() bool { return p.hasValue(".end") }

func (p *Parser) eol() {
	p.assertKind(TokenNewlines)
	p.consume()
}

// list writes a u16 item count followed by items until end reports true.
func (p *Parser) list(w *Writer, end func() bool, item func(*Writer)) {
	pos := w.Ph16()
	count := 0
	for !end() {
		if count >= 65535 {
			raise("Maximum 65535 items.", p.tok)
		}
		count++
		item(w)
	}
	w.SetPh16(pos, uint16(count))
}

func (p *Parser) listU8(w *Writer, end func() bool, item func(*Writer)) {
	pos := w.Ph8()
	count := 0
	for !end() {
		if count >= 255 {
			raise("Maximum 255 items.", p.tok)
		}
		count++
		item(w)
	}
	w.SetPh8(pos, uint8(count))
}

func (p *Parser) boundedInt(lower, upper int64) int64 {
	p.assertKind(TokenInt)
	tok := p.consume()
	x, ok := parseBounded(tok.Value, lower, upper)
	if !ok {
		raise(fmt.Sprintf("Value must be in range %d <= x < %d.", lower, upper), tok)
	}
	return x
}

func (p *Parser) u8() uint8 { return uint8(p.boundedInt(0, 1<<8)) }
func (p *Parser) u16() uint16 { return uint16(p.boundedInt(0, 1<<16)) }
func (p *Parser) u32() uint32 { return uint32(p.boundedInt(0, 1<<32)) }
func (p *Parser) s8() int8 { return int8(p.boundedInt(-1<<7, 1<<7)) }
func (p *Parser) s16() int16 { return int16(p.boundedInt(-1<<15, 1<<15)) }
func (p *Parser) s32() int32 { return int32(p.boundedInt(-1<<31, 1<<31)) }

// limit reads a max_stack or max_locals value, one byte wide in the short
// Code layout.
func (p *Parser) limit() uint16 {
	if p.cls.ShortCode {
		return uint16(p.u8())
	}
	return p.u16()
}

func (p *Parser) str(maxLen int64) []byte {
	p.assertKind(TokenString)
	tok := p.consume()
	b, err := parseStringBytes(tok.Value)
	if err != nil {
		raise(err.Error(), tok)
	}
	if int64(len(b)) > maxLen {
		raise(fmt.Sprintf("Maximum string length here is %d bytes (%d found).", maxLen, len(b)), tok)
	}
	return b
}

func (p *Parser) word() []byte {
	p.assertKind(TokenWord)
	tok := p.consume()
	if len(tok.Value) > 65535 {
		raise(fmt.Sprintf("Maximum identifier length is 65535 bytes (%d found).", len(tok.Value)), tok)
	}
	return []byte(tok.Value)
}

func (p *Parser) identifier() []byte {
	switch {
	case p.hasKind(TokenWord):
		return p.word()
	case p.hasKind(TokenString):
		return p.str(65535)
	}
	p.fail()
	return nil
}

func (p *Parser) intLit() uint32 {
	p.assertKind(TokenInt)
	tok := p.consume()
	bits, err := parseIntBits(tok.Value)
	if err != nil {
		raise(err.Error(), tok)
	}
	return bits
}

func (p *Parser) longLit() uint64 {
	p.assertKind(TokenLong)
	tok := p.consume()
	bits, err := parseLongBits(tok.Value)
	if err != nil {
		raise(err.Error(), tok)
	}
	return bits
}

func (p *Parser) floatLit() uint64 {
	p.assertKind(TokenFloat)
	v := p.consume().Value
	return parseFloatBits(v[:len(v)-1], true)
}

func (p *Parser) doubleLit() uint64 {
	p.assertKind(TokenDouble)
	return parseFloatBits(p.consume().Value, false)
}

func (p *Parser) ref(isBS bool) *Ref {
	p.assertKind(TokenRef)
	tok := p.consume()

	content := tok.Value[1 : len(tok.Value)-1]
	bootstrap := strings.HasPrefix(content, "bs:")
	switch {
	case isBS && !bootstrap:
		raise("Expected bootstrap reference, found constant pool reference.", tok)
	case !isBS && bootstrap:
		raise("Expected constant pool reference, found bootstrap reference.", tok)
	}

	val := strings.Replace(content, "bs:", "", 1)
	if val != "" && strings.Trim(val, "0123456789") == "" {
		index, err := strconv.Atoi(val)
		if err != nil || index >= 0xFFFF {
			raise("Reference must be in range 0 <= x < 65535.", tok)
		}
		return rawRef(tok, index, bootstrap)
	}
	return symRef(tok, val, bootstrap)
}

func (p *Parser) utfRef() *Ref {
	if p.hasKind(TokenRef) {
		return p.ref(false)
	}
	tok := p.tok
	return utf(tok, p.identifier())
}

func (p *Parser) clsRef() *Ref {
	if p.hasKind(TokenRef) {
		return p.ref(false)
	}
	tok := p.tok
	return single(classfile.ConstantClass, tok, p.identifier())
}

func (p *Parser) natRef() *Ref {
	if p.hasKind(TokenRef) {
		return p.ref(false)
	}
	name := utf(p.tok, p.identifier())
	return nat(name, p.utfRef())
}

func memberOf(tag classfile.ConstantTag, cls, nat *Ref) *Ref {
	return &Ref{Tok: cls.Tok, Tag: tag, Refs: []*Ref{cls, nat}}
}

// memberRef parses a field or method reference. Besides refs and tagged
// constants it accepts the older "Cls name desc" form and the Jasmin forms
// "Cls/name desc" and "Cls/name(desc)ret".
func (p *Parser) memberRef(guess classfile.ConstantTag) *Ref {
	if p.hasKind(TokenRef) {
		first := p.ref(false)
		if p.hasKind(TokenWord) {
			return memberOf(guess, first, p.natRef())
		}
		return first
	}
	if p.hasAny([]string{"Field", "Method", "InterfaceMethod"}) {
		return p.taggedConst(constOpts{})
	}

	type wordTok struct {
		tok Token
		val []byte
	}
	var words []wordTok
	for len(words) < 3 && p.hasKind(TokenWord) {
		tok := p.tok
		words = append(words, wordTok{tok, p.word()})
	}

	if len(words) >= 1 && len(words) <= 2 && p.hasKind(TokenRef) {
		cls := single(classfile.ConstantClass, words[0].tok, words[0].val)
		if len(words) == 2 {
			name := utf(words[1].tok, words[1].val)
			return memberOf(guess, cls, nat(name, p.utfRef()))
		}
		return memberOf(guess, cls, p.natRef())
	}

	var cls, name, desc *Ref
	switch len(words) {
	case 3:
		cls = single(classfile.ConstantClass, words[0].tok, words[0].val)
		name = utf(words[1].tok, words[1].val)
		desc = utf(words[2].tok, words[2].val)
	case 2:
		tok := words[0].tok
		left, right := rpartition(words[0].val, '/')
		cls = single(classfile.ConstantClass, tok, left)
		name = utf(tok, right)
		desc = utf(words[1].tok, words[1].val)
	case 1:
		tok, val := words[0].tok, words[0].val
		owner := val
		if i := bytes.IndexByte(val, '('); i >= 0 {
			owner = val[:i]
		}
		left, right := rpartition(owner, '/')
		cls = single(classfile.ConstantClass, tok, left)
		name = utf(tok, right)
		desc = utf(tok, val[len(owner):])
	default:
		p.fail()
	}
	return memberOf(guess, cls, nat(name, desc))
}

func rpartition(b []byte, sep byte) ([]byte, []byte) {
	i := bytes.LastIndexByte(b, sep)
	if i < 0 {
		return nil, b
	}
	return b[:i], b[i+1:]
}

func (p *Parser) bootstrapArgs() []*Ref {
	var refs []*Ref
	for !p.hasValue(":") {
		refs = append(refs, p.refOrTaggedConst(constOpts{methodHandle: true}))
	}
	p.expect(":")
	return refs
}

func (p *Parser) bsRef() *Ref {
	tok := p.tok
	if p.hasKind(TokenRef) {
		return p.ref(true)
	}
	refs := []*Ref{p.handleNotRef(p.tok)}
	refs = append(refs, p.bootstrapArgs()...)
	return &Ref{Tok: tok, IsBS: true, Refs: refs}
}

func (p *Parser) handleNotRef(tok Token) *Ref {
	if !p.hasAny(handleKinds) {
		p.fail()
	}
	kind, _ := classfile.LookupHandleKind(p.consume().Value)
	return &Ref{
		Tok:  tok,
		Tag:  classfile.ConstantMethodHandle,
		Bits: uint64(kind),
		Refs: []*Ref{p.refOrTaggedConst(constOpts{})},
	}
}

func (p *Parser) taggedConst(opts constOpts) *Ref {
	tok := p.tok
	tag, _ := classfile.LookupConstantTag(tok.Value)
	switch {
	case p.tryValue("Utf8"):
		return utf(tok, p.identifier())
	case p.tryValue("Int"):
		return primitive(tag, tok, uint64(p.intLit()))
	case p.tryValue("Float"):
		return primitive(tag, tok, p.floatLit())
	case p.tryValue("Long"):
		return primitive(tag, tok, p.longLit())
	case p.tryValue("Double"):
		return primitive(tag, tok, p.doubleLit())
	case p.hasAny([]string{"Class", "String", "MethodType"}):
		p.consume()
		return &Ref{Tok: tok, Tag: tag, Refs: []*Ref{p.utfRef()}}
	case p.hasAny([]string{"Field", "Method", "InterfaceMethod"}):
		p.consume()
		return &Ref{Tok: tok, Tag: tag, Refs: []*Ref{p.clsRef(), p.natRef()}}
	case p.tryValue("NameAndType"):
		return &Ref{Tok: tok, Tag: tag, Refs: []*Ref{p.utfRef(), p.utfRef()}}
	case opts.methodHandle && p.tryValue("MethodHandle"):
		return p.handleNotRef(tok)
	case opts.invokeDynamic && p.tryValue("InvokeDynamic"):
		return &Ref{Tok: tok, Tag: tag, Refs: []*Ref{p.bsRef(), p.natRef()}}
	case p.tryValue("Bootstrap"):
		var first *Ref
		if p.hasKind(TokenRef) {
			first = p.ref(false)
		} else {
			first = p.handleNotRef(p.tok)
		}
		refs := append([]*Ref{first}, p.bootstrapArgs()...)
		return &Ref{Tok: tok, IsBS: true, Refs: refs}
	}
	p.fail()
	return nil
}

func (p *Parser) refOrTaggedConst(opts constOpts) *Ref {
	var r *Ref
	if p.hasKind(TokenRef) {
		r = p.ref(opts.isBS)
	} else {
		r = p.taggedConst(opts)
	}

	switch {
	case opts.isBS && !r.IsBS:
		raise("Expected bootstrap reference, found constant pool reference.", r.Tok)
	case !opts.isBS && r.IsBS:
		raise("Expected constant pool reference, found bootstrap reference.", r.Tok)
	}
	return r
}

// ldcRHS parses an ldc operand or constant value: a bare literal or any
// loadable constant.
func (p *Parser) ldcRHS() *Ref {
	tok := p.tok
	switch {
	case p.hasKind(TokenInt):
		return primitive(classfile.ConstantInteger, tok, uint64(p.intLit()))
	case p.hasKind(TokenFloat):
		return primitive(classfile.ConstantFloat, tok, p.floatLit())
	case p.hasKind(TokenLong):
		return primitive(classfile.ConstantLong, tok, p.longLit())
	case p.hasKind(TokenDouble):
		return primitive(classfile.ConstantDouble, tok, p.doubleLit())
	case p.hasKind(TokenString):
		return single(classfile.ConstantString, tok, p.str(65535))
	}
	return p.refOrTaggedConst(constOpts{methodHandle: true})
}

func (p *Parser) flags() classfile.AccessFlags {
	var flags classfile.AccessFlags
	for p.hasAny(flagKeywords) {
		f, _ := classfile.LookupFlag(p.consume().Value)
		flags |= f
	}
	return flags
}

func (p *Parser) label() Label {
	p.assertKind(TokenWord)
	if !strings.HasPrefix(p.tok.Value, "L") {
		raise("Labels must start with L.", p.tok)
	}
	if p.code == nil {
		raise("Labels may only be used inside of a Code attribute.", p.tok)
	}
	tok := p.consume()
	return Label{Tok: tok, Name: tok.Value}
}

func (p *Parser) parseClass() (string, []byte) {
	p.versionOpt()
	p.classStart()

	// .end class may be omitted at the end of input.
	for !(p.atEnd() || p.hasKind(TokenEOF)) {
		p.classItem()
	}
	if p.tryValue(".end") {
		p.expect("class")
		p.assertKind(TokenNewlines)
	}
	return p.cls.Assemble()
}

func (p *Parser) versionOpt() {
	if p.tryValue(".version") {
		p.cls.Major = p.u16()
		p.cls.Minor = p.u16()
		p.cls.ShortCode = classfile.UsesShortCode(p.cls.Major, p.cls.Minor)
		p.eol()
	}
}

func (p *Parser) classStart() {
	p.expect(".class")
	p.cls.Access = p.flags()
	p.cls.This = p.clsRef()
	p.eol()

	p.expect(".super")
	p.cls.Super = p.clsRef()
	p.eol()

	for p.tryValue(".implements") {
		p.cls.Interfaces = append(p.cls.Interfaces, p.clsRef())
		p.eol()
	}
}

func (p *Parser) classItem() {
	if !(p.tryConstDef() || p.tryField() || p.tryMethod() || p.tryAttribute(&p.cls.Attributes)) {
		p.fail()
	}
}

func (p *Parser) tryConstDef() bool {
	if !p.hasAny([]string{".const", ".bootstrap"}) {
		return false
	}
	isBS := p.consume().Value == ".bootstrap"
	lhs := p.ref(isBS)
	p.expect("=")

	rhs := p.refOrTaggedConst(constOpts{isBS: isBS, methodHandle: true, invokeDynamic: true})
	if lhs.IsRaw() && (rhs.IsRaw() || rhs.IsSymbolic()) {
		raise("Raw references cannot be aliased to another reference.", rhs.Tok)
	}
	p.eol()

	p.cls.Pool.sub(lhs).addDef(lhs, rhs)
	return true
}

func (p *Parser) tryField() bool {
	if !p.hasValue(".field") {
		return false
	}
	f := &Field{member{Tok: p.consume(), Access: p.flags()}}
	f.Name = p.utfRef()
	f.Desc = p.utfRef()

	eq := p.tok
	if p.tryValue("=") {
		a := newAttribute(eq, "ConstantValue")
		a.Data.Ref(p.ldcRHS())
		f.Attributes = append(f.Attributes, a)
	}

	if p.tryValue(".fieldattributes") {
		p.eol()
		for !p.atEnd() {
			if !p.tryAttribute(&f.Attributes) {
				p.fail()
			}
		}
		p.expect(".end")
		p.expect("fieldattributes")
	}

	p.eol()
	p.cls.Fields = append(p.cls.Fields, f)
	return true
}

func (p *Parser) tryMethod() bool {
	if !p.hasValue(".method") {
		return false
	}
	m := &Method{member{Tok: p.consume(), Access: p.flags()}}
	m.Name = p.utfRef()
	p.expect(":")
	m.Desc = p.utfRef()
	p.eol()

	if p.hasValue(".throws") {
		a := newAttribute(p.consume(), "Exceptions")
		m.Attributes = append(m.Attributes, a)
		a.Data.U16(1)
		a.Data.Ref(p.clsRef())
		p.eol()
	}

	if p.hasValue(".limit") {
		p.legacyMethodBody(m)
	} else {
		for !p.atEnd() {
			if !p.tryAttribute(&m.Attributes) {
				p.fail()
			}
		}
	}

	p.expect(".end")
	p.expect("method")
	p.eol()
	p.cls.Methods = append(p.cls.Methods, m)
	return true
}

// legacyMethodBody parses a Jasmin style method body where .limit
// directives and instructions appear directly inside the method.
func (p *Parser) legacyMethodBody(m *Method) {
	c := newCode(p.tok, p.cls.ShortCode)
	p.code = c
	for p.tryValue(".limit") {
		switch {
		case p.tryValue("stack"):
			c.Stack = p.limit()
		case p.tryValue("locals"):
			c.Local = p.limit()
		default:
			p.fail()
		}
		p.eol()
	}
	p.codeBody()
	p.code = nil

	a := newAttribute(c.Tok, "Code")
	c.assemble(a.Data)
	m.Attributes = append(m.Attributes, a)
}
