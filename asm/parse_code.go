package asm

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dhamidi/krak/classfile"
)

var (
	plainOps  = opsOfKind(classfile.OperandNone)
	localOps  = opsOfKind(classfile.OperandLocal)
	classOps  = opsOfKind(classfile.OperandClass)
	memberOps = opsOfKind(classfile.OperandMember)
	branchOps = append(opsOfKind(classfile.OperandBranch), opsOfKind(classfile.OperandBranchWide)...)
	ldcOps    = []string{"ldc", "ldc_w", "ldc2_w"}
)

func opsOfKind(kind classfile.OperandKind) []string {
	var names []string
	for op := classfile.Opcode(0); op <= classfile.MaxOpcode; op++ {
		if op.Kind() == kind {
			names = append(names, op.String())
		}
	}
	return names
}

func (p *Parser) codeBody() {
	for p.tryInstructionLine() || p.tryCodeDirective() {
	}
	for !p.atEnd() {
		if !p.tryAttribute(&p.code.Attributes) {
			p.fail()
		}
	}
}

func (p *Parser) tryInstructionLine() bool {
	hasLabel := p.hasKind(TokenLabelDef)
	if hasLabel {
		tok := p.consume()
		p.code.defineLabel(Label{Tok: tok, Name: strings.TrimSuffix(tok.Value, ":")})
	}

	hasInstr := p.tryInstruction()
	if hasLabel || hasInstr {
		p.eol()
		return true
	}
	return false
}

func (p *Parser) opcode() classfile.Opcode {
	op, _ := classfile.LookupOpcode(p.consume().Value)
	return op
}

func (p *Parser) tryInstruction() bool {
	w := p.code.bytecode
	start := p.tok

	switch {
	case p.hasAny(plainOps):
		w.U8(uint8(p.opcode()))
	case p.hasAny(branchOps):
		pos := w.Len()
		op := p.opcode()
		w.U8(uint8(op))
		width := LabelS16
		if op.Kind() == classfile.OperandBranchWide {
			width = LabelS32
		}
		w.Label(p.label(), pos, width)
	case p.hasAny(localOps):
		w.U8(uint8(p.opcode()))
		w.U8(p.u8())
	case p.hasAny(classOps):
		w.U8(uint8(p.opcode()))
		w.Ref(p.clsRef())
	case p.hasAny(memberOps):
		op := p.opcode()
		w.U8(uint8(op))
		w.Ref(p.memberRef(op.MemberTag()))
	case p.hasValue("invokeinterface"):
		w.U8(uint8(p.opcode()))
		ref := p.memberRef(classfile.ConstantInterfaceMethodref)
		w.Ref(ref)
		if p.hasKind(TokenInt) {
			w.U8(p.u8())
		} else {
			p.assertKind(TokenNewlines)
			w.U8(uint8(inlineArgumentSlots(ref)))
		}
		w.U8(0)
	case p.hasValue("invokedynamic"):
		w.U8(uint8(p.opcode()))
		w.Ref(p.refOrTaggedConst(constOpts{invokeDynamic: true}))
		w.U16(0)
	case p.hasAny(ldcOps):
		op := p.opcode()
		w.U8(uint8(op))
		rhs := p.ldcRHS()
		if op == classfile.OpLdc {
			if rhs.IsRaw() && rhs.index >= 256 {
				raise("Ldc index must be <= 255.", rhs.Tok)
			}
			w.RefU8(rhs)
		} else {
			w.Ref(rhs)
		}
	case p.hasValue("multianewarray"):
		w.U8(uint8(p.opcode()))
		w.Ref(p.clsRef())
		w.U8(p.u8())
	case p.hasValue("bipush"):
		w.U8(uint8(p.opcode()))
		w.S8(p.s8())
	case p.hasValue("sipush"):
		w.U8(uint8(p.opcode()))
		w.S16(p.s16())
	case p.hasValue("iinc"):
		w.U8(uint8(p.opcode()))
		w.U8(p.u8())
		w.S8(p.s8())
	case p.hasValue("wide"):
		w.U8(uint8(p.opcode()))
		switch {
		case p.hasValue("iinc"):
			w.U8(uint8(p.opcode()))
			w.U16(p.u16())
			w.S16(p.s16())
		case p.hasAny(localOps):
			w.U8(uint8(p.opcode()))
			w.U16(p.u16())
		default:
			p.fail()
		}
	case p.hasValue("newarray"):
		w.U8(uint8(p.opcode()))
		if !p.hasAny(newArrayTypes) {
			p.fail()
		}
		code, _ := classfile.LookupNewArrayType(p.consume().Value)
		w.U8(code)
	case p.hasValue("tableswitch"):
		p.tableSwitch(w)
	case p.hasValue("lookupswitch"):
		p.lookupSwitch(w)
	default:
		return false
	}

	if int64(w.Len()) > p.code.maxCodeLen {
		raise(fmt.Sprintf("Maximum bytecode length is %d (current %d).", p.code.maxCodeLen, w.Len()), start)
	}
	return true
}

// inlineArgumentSlots computes invokeinterface's count operand from an
// inline method descriptor.
func inlineArgumentSlots(ref *Ref) int {
	r := ref
	for depth := 0; ; depth++ {
		if r.IsRaw() || r.IsSymbolic() {
			raise("Method descriptor must be specified inline when argument count is omitted.", r.Tok)
		}
		if depth == 2 {
			break
		}
		r = r.Refs[1]
	}
	return classfile.ArgumentSlots(classfile.DecodeMUTF8String(r.Data)) & 0xFF
}

// switchPadding writes the opcode at pos and pads to a four byte boundary.
func (p *Parser) switchPadding(w *Writer) int {
	pos := w.Len()
	w.U8(uint8(p.opcode()))
	w.Write(make([]byte, (3-pos)&3))
	return pos
}

func (p *Parser) tableSwitch(w *Writer) {
	pos := p.switchPadding(w)
	low := p.s32()
	p.eol()

	var jumps []Label
	for !p.hasValue("default") {
		l := p.label()
		p.eol()
		jumps = append(jumps, l)
		if int64(low)+int64(len(jumps))-1 > 0x7FFFFFFF {
			raise("Table switch index must be at most 2147483647.", l.Tok)
		}
	}
	if len(jumps) == 0 {
		raise("Table switch must have at least one non-default jump.", p.tok)
	}

	p.expect("default")
	p.expect(":")
	def := p.label()
	w.Label(def, pos, LabelS32)
	w.S32(low)
	w.S32(low + int32(len(jumps)) - 1)
	for _, l := range jumps {
		w.Label(l, pos, LabelS32)
	}
}

func (p *Parser) lookupSwitch(w *Writer) {
	pos := p.switchPadding(w)
	p.eol()

	jumps := map[int32]Label{}
	keyToks := map[int32]Token{}
	for !p.hasValue("default") {
		keyTok := p.tok
		key := p.s32()
		p.expect(":")
		jump := p.label()
		p.eol()
		if prev, ok := keyToks[key]; ok {
			raise("Duplicate lookupswitch key.", keyTok, noteAt("Key previously defined here:", prev))
		}
		if len(jumps) > 0x7FFFFFFF-1 {
			raise("Lookup switch can have at most 2147483647 jumps.", keyTok)
		}
		jumps[key] = jump
		keyToks[key] = keyTok
	}

	p.expect("default")
	p.expect(":")
	def := p.label()
	w.Label(def, pos, LabelS32)
	w.S32(int32(len(jumps)))
	keys := make([]int32, 0, len(jumps))
	for k := range jumps {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		w.S32(k)
		w.Label(jumps[k], pos, LabelS32)
	}
}

func (p *Parser) tryCodeDirective() bool {
	tok := p.tok
	switch {
	case p.tryValue(".catch"):
		if p.code.exceptN+1 > 0xFFFF {
			raise("Maximum 65535 exception handlers per method.", tok)
		}
		cls := p.clsRef()
		from, to := p.codeRange()
		p.expect("using")
		using := p.label()
		p.eol()
		p.code.addCatch(cls, from, to, using)
		return true
	case p.tryValue(".stack"):
		p.stackFrame(tok)
		return true
	}
	return false
}

func (p *Parser) stackFrame(tok Token) {
	c := p.code
	w := c.stackData
	pos := c.bytecode.Len()
	delta := pos - c.lastStackOff - 1
	frameType := p.tok.Value
	if delta < 0 {
		raise("Stack frame has same offset as previous frame.", tok)
	}
	check := func(max int) {
		if delta > max {
			raise(fmt.Sprintf("Stack frame type %q must appear at most %d bytes after the previous frame (actual offset is %d).", frameType, max+1, delta+1), tok)
		}
	}

	switch {
	case p.tryValue("same"):
		check(63)
		w.U8(uint8(delta))
	case p.tryValue("stack_1"):
		check(63)
		w.U8(uint8(delta + 64))
		p.verificationType(w)
	case p.tryValue("stack_1_extended"):
		check(0xFFFF)
		w.U8(247)
		w.U16(uint16(delta))
		p.verificationType(w)
	case p.tryValue("chop"):
		check(0xFFFF)
		w.U8(uint8(251 - p.boundedInt(1, 4)))
		w.U16(uint16(delta))
	case p.tryValue("same_extended"):
		check(0xFFFF)
		w.U8(251)
		w.U16(uint16(delta))
	case p.tryValue("append"):
		check(0xFFFF)
		tag := uint8(252)
		temp := NewWriter()
		p.verificationType(temp)
		if !p.atEOL() {
			tag++
			p.verificationType(temp)
			if !p.atEOL() {
				tag++
				p.verificationType(temp)
			}
		}
		w.U8(tag)
		w.U16(uint16(delta))
		w.Append(temp)
	case p.tryValue("full"):
		check(0xFFFF)
		w.U8(255)
		w.U16(uint16(delta))
		p.eol()
		p.expect("locals")
		p.list(w, p.atEOL, p.verificationType)
		p.eol()
		p.expect("stack")
		p.list(w, p.atEOL, p.verificationType)
		p.eol()
		p.expect(".end")
		p.expect("stack")
	default:
		p.fail()
	}

	p.eol()
	c.lastStackOff = pos
	c.stackCount++
}

func (p *Parser) codeRange() (Label, Label) {
	p.expect("from")
	start := p.label()
	p.expect("to")
	return start, p.label()
}

func (p *Parser) verificationType(w *Writer) {
	if !p.hasAny(verificationTypes) {
		p.fail()
	}
	name := p.consume().Value
	tag, _ := classfile.LookupVerificationType(name)
	w.U8(tag)
	switch tag {
	case classfile.VTObject:
		w.Ref(p.clsRef())
	case classfile.VTUninitialized:
		w.Label(p.label(), 0, LabelU16)
	}
}
