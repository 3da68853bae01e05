package disasm

import (
	"slices"
	"strconv"

	"github.com/dhamidi/krak/classfile"
)

// codeContext tracks the Code attribute being written.
type codeContext struct {
	starts   map[int]bool
	stackMap *classfile.AttributeInfo
}

func labelName(pos int) string {
	return "L" + strconv.Itoa(pos)
}

func (d *disassembler) lbl(pos int) {
	if d.code == nil {
		fail("label outside of Code attribute")
	}
	if !d.code.starts[pos] {
		fail("invalid bytecode offset %d", pos)
	}
	d.val(labelName(pos))
}

func (d *disassembler) codeAttribute(attr *classfile.AttributeInfo) {
	code, err := classfile.ParseCode(attr.Info, d.cf.ShortCode())
	if err != nil {
		fail("%s", err)
	}
	starts, ok := instructionStarts(code.Code)
	if !ok {
		fail("undecodable bytecode")
	}

	d.val(".code")
	d.val("stack")
	d.num(int64(code.MaxStack))
	d.val("locals")
	d.num(int64(code.MaxLocals))
	d.eol()

	ctx := &codeContext{starts: starts}
	for i := range code.Attributes {
		if d.cf.ConstantPool.GetUtf8(code.Attributes[i].NameIndex) == "StackMapTable" {
			ctx.stackMap = &code.Attributes[i]
			break
		}
	}
	d.code = ctx
	defer func() { d.code = nil }()
	d.indent++

	var frames *frameReader
	if ctx.stackMap != nil {
		frames = newFrameReader(ctx.stackMap.Info)
	} else {
		frames = newFrameReader(nil)
	}
	excepts := slices.Clone(code.ExceptionTable)
	slices.Reverse(excepts)

	r := classfile.NewReader(code.Code)
	for !r.Done() {
		d.instructionStart(r.Offset(), &excepts, frames)
		d.instruction(r)
	}
	d.instructionStart(r.Offset(), &excepts, frames)
	d.eol()

	if len(excepts) > 0 {
		fail("exception handler starts past the end of the code")
	}
	if frames.count > 0 || (frames.r != nil && (frames.r.Err() != nil || !frames.r.Done())) {
		fail("malformed StackMapTable")
	}

	for i := range code.Attributes {
		d.attribute(&code.Attributes[i], scopeCode)
	}
	d.indent--
	d.sol()
	d.val(".end code")
}

// instructionStart writes the handlers and stack frame that belong before
// the instruction at pos, then starts its line with the label.
func (d *disassembler) instructionStart(pos int, excepts *[]classfile.ExceptionTableEntry, frames *frameReader) {
	for len(*excepts) > 0 && int((*excepts)[len(*excepts)-1].StartPC) <= pos {
		e := (*excepts)[len(*excepts)-1]
		*excepts = (*excepts)[:len(*excepts)-1]
		d.sol()
		d.vals(".catch", d.refs.clsRef(e.CatchType))
		d.codeRange(int(e.StartPC), int(e.EndPC))
		d.val("using")
		d.lbl(int(e.HandlerPC))
		d.eol()
	}

	if frames.count > 0 && frames.pos == pos {
		d.stackFrame(frames)
		frames.next()
	}
	d.buf.WriteString(d.padding(labelName(pos) + ":"))
}

// frameReader walks StackMapTable entries in step with the bytecode.
type frameReader struct {
	r     *classfile.Reader
	count int
	tag   uint8
	pos   int
}

func newFrameReader(data []byte) *frameReader {
	fr := &frameReader{pos: -1}
	if data == nil {
		return fr
	}
	fr.r = classfile.NewReader(data)
	fr.count = int(fr.r.U16()) + 1
	fr.next()
	return fr
}

func (fr *frameReader) next() {
	fr.count--
	if fr.count <= 0 || fr.r.Err() != nil {
		return
	}
	fr.tag = fr.r.U8()
	delta := int(fr.tag) % 64
	if fr.tag > 127 {
		delta = int(fr.r.U16())
	}
	fr.pos += delta + 1
}

func (d *disassembler) stackFrame(fr *frameReader) {
	r, tag := fr.r, fr.tag
	d.eol()
	d.sol()
	d.val(".stack")
	switch {
	case tag <= 63:
		d.val("same")
	case tag <= 127:
		d.val("stack_1")
		d.verificationType(r)
	case tag < 247:
		fail("reserved stack map frame type %d", tag)
	case tag == 247:
		d.val("stack_1_extended")
		d.verificationType(r)
	case tag < 251:
		d.val("chop")
		d.num(int64(251 - int(tag)))
	case tag == 251:
		d.val("same_extended")
	case tag < 255:
		d.val("append")
		for i := 251; i < int(tag); i++ {
			d.verificationType(r)
		}
	default:
		d.val("full")
		d.indent++
		d.eol()
		d.sol()
		d.val("locals")
		for n := r.U16(); n > 0 && r.Err() == nil; n-- {
			d.verificationType(r)
		}
		d.eol()
		d.sol()
		d.val("stack")
		for n := r.U16(); n > 0 && r.Err() == nil; n-- {
			d.verificationType(r)
		}
		d.indent--
		d.eol()
		d.sol()
		d.val(".end stack")
	}
	d.eol()
}

func (d *disassembler) verificationType(r *classfile.Reader) {
	tag := r.U8()
	name, ok := classfile.VerificationTypeName(tag)
	if !ok {
		fail("invalid verification type %d", tag)
	}
	d.val(name)
	switch tag {
	case classfile.VTObject:
		d.val(d.refs.clsRef(r.U16()))
	case classfile.VTUninitialized:
		d.lbl(int(r.U16()))
	}
}

func (d *disassembler) instruction(r *classfile.Reader) {
	pos := r.Offset()
	op := classfile.Opcode(r.U8())
	d.val(op.String())

	switch op.Kind() {
	case classfile.OperandNone:
	case classfile.OperandLocal:
		d.num(int64(r.U8()))
	case classfile.OperandBranch:
		d.lbl(pos + int(r.S16()))
	case classfile.OperandBranchWide:
		d.lbl(pos + int(r.S32()))
	case classfile.OperandClass:
		d.val(d.refs.clsRef(r.U16()))
	case classfile.OperandMember:
		d.val(d.refs.memberRef(r.U16()))
	default:
		if op == classfile.OpTableswitch || op == classfile.OpLookupswitch {
			d.switchInstruction(op, pos, r)
			return
		}
		d.specialOperands(op, r)
	}
	d.eol()
}

func (d *disassembler) specialOperands(op classfile.Opcode, r *classfile.Reader) {
	switch op {
	case classfile.OpInvokeinterface:
		d.val(d.refs.memberRef(r.U16()))
		d.num(int64(r.U8()))
		if r.U8() != 0 {
			fail("nonzero invokeinterface padding")
		}
	case classfile.OpInvokedynamic:
		d.val(d.refs.taggedRef(r.U16(), nil))
		if r.U16() != 0 {
			fail("nonzero invokedynamic padding")
		}
	case classfile.OpLdc:
		d.val(d.refs.ldcRHS(uint16(r.U8())))
	case classfile.OpLdcW, classfile.OpLdc2W:
		d.val(d.refs.ldcRHS(r.U16()))
	case classfile.OpMultianewarray:
		d.val(d.refs.clsRef(r.U16()))
		d.num(int64(r.U8()))
	case classfile.OpBipush:
		d.num(int64(r.S8()))
	case classfile.OpSipush:
		d.num(int64(r.S16()))
	case classfile.OpIinc:
		d.num(int64(r.U8()))
		d.num(int64(r.S8()))
	case classfile.OpWide:
		op2 := classfile.Opcode(r.U8())
		if op2 != classfile.OpIinc && op2.Kind() != classfile.OperandLocal {
			fail("invalid wide instruction %d", op2)
		}
		d.val(op2.String())
		d.num(int64(r.U16()))
		if op2 == classfile.OpIinc {
			d.num(int64(r.S16()))
		}
	case classfile.OpNewarray:
		code := r.U8()
		name, ok := classfile.NewArrayTypeName(code)
		if !ok {
			fail("invalid newarray type %d", code)
		}
		d.val(name)
	default:
		fail("invalid opcode %d", op)
	}
}

func (d *disassembler) switchInstruction(op classfile.Opcode, pos int, r *classfile.Reader) {
	for _, b := range r.Raw((3 - pos) & 3) {
		if b != 0 {
			fail("nonzero switch padding")
		}
	}
	def := pos + int(r.S32())

	if op == classfile.OpTableswitch {
		low, high := r.S32(), r.S32()
		d.num(int64(low))
		d.eol()
		d.indent++
		for i := int64(low); i <= int64(high) && r.Err() == nil; i++ {
			d.sol()
			d.lbl(pos + int(r.S32()))
			d.eol()
		}
	} else {
		d.eol()
		d.indent++
		n := r.S32()
		var prev int32
		for i := int32(0); i < n && r.Err() == nil; i++ {
			key := r.S32()
			if i > 0 && key <= prev {
				fail("lookupswitch keys are not sorted")
			}
			prev = key
			d.sol()
			d.num(int64(key))
			d.val(":")
			d.lbl(pos + int(r.S32()))
			d.eol()
		}
	}

	d.sol()
	d.vals("default", ":")
	d.lbl(def)
	d.eol()
	d.indent--
}

// instructionStarts returns the offset of every instruction plus the end
// of the code, or false if the bytecode does not decode.
func instructionStarts(code []byte) (map[int]bool, bool) {
	starts := map[int]bool{}
	for pos := 0; pos < len(code); {
		starts[pos] = true
		n := instructionLength(code, pos)
		if n == 0 || n > len(code)-pos {
			return nil, false
		}
		pos += n
	}
	starts[len(code)] = true
	return starts, true
}

func instructionLength(code []byte, pos int) int {
	op := classfile.Opcode(code[pos])
	if !op.Valid() {
		return 0
	}
	switch op.Kind() {
	case classfile.OperandNone:
		return 1
	case classfile.OperandLocal:
		return 2
	case classfile.OperandBranch, classfile.OperandClass, classfile.OperandMember:
		return 3
	case classfile.OperandBranchWide:
		return 5
	}

	switch op {
	case classfile.OpBipush, classfile.OpLdc, classfile.OpNewarray:
		return 2
	case classfile.OpSipush, classfile.OpLdcW, classfile.OpLdc2W, classfile.OpIinc:
		return 3
	case classfile.OpMultianewarray:
		return 4
	case classfile.OpInvokeinterface, classfile.OpInvokedynamic:
		return 5
	case classfile.OpWide:
		if pos+1 < len(code) && classfile.Opcode(code[pos+1]) == classfile.OpIinc {
			return 6
		}
		return 4
	case classfile.OpTableswitch, classfile.OpLookupswitch:
		header := 1 + (3-pos)&3
		if pos+header > len(code) {
			return 0
		}
		r := classfile.NewReader(code[pos+header:])
		r.S32()
		if op == classfile.OpTableswitch {
			low, high := int64(r.S32()), int64(r.S32())
			if r.Err() != nil || high < low {
				return 0
			}
			return header + 12 + int(high-low+1)*4
		}
		n := int64(r.S32())
		if r.Err() != nil || n < 0 {
			return 0
		}
		return header + 8 + int(n)*8
	}
	return 0
}
