package classfile

type Opcode uint8

const (
	OpBipush          Opcode = 16
	OpSipush          Opcode = 17
	OpLdc             Opcode = 18
	OpLdcW            Opcode = 19
	OpLdc2W           Opcode = 20
	OpIinc            Opcode = 132
	OpGoto            Opcode = 167
	OpJsr             Opcode = 168
	OpRet             Opcode = 169
	OpTableswitch     Opcode = 170
	OpLookupswitch    Opcode = 171
	OpGetstatic       Opcode = 178
	OpInvokevirtual   Opcode = 182
	OpInvokespecial   Opcode = 183
	OpInvokestatic    Opcode = 184
	OpInvokeinterface Opcode = 185
	OpInvokedynamic   Opcode = 186
	OpNew             Opcode = 187
	OpNewarray        Opcode = 188
	OpWide            Opcode = 196
	OpMultianewarray  Opcode = 197
	OpGotoW           Opcode = 200
	OpJsrW            Opcode = 201

	// MaxOpcode is the highest defined opcode.
	MaxOpcode Opcode = 201
)

var opcodeNames = [...]string{
	"nop", "aconst_null", "iconst_m1", "iconst_0", "iconst_1", "iconst_2", "iconst_3", "iconst_4",
	"iconst_5", "lconst_0", "lconst_1", "fconst_0", "fconst_1", "fconst_2", "dconst_0", "dconst_1",
	"bipush", "sipush", "ldc", "ldc_w", "ldc2_w", "iload", "lload", "fload",
	"dload", "aload", "iload_0", "iload_1", "iload_2", "iload_3", "lload_0", "lload_1",
	"lload_2", "lload_3", "fload_0", "fload_1", "fload_2", "fload_3", "dload_0", "dload_1",
	"dload_2", "dload_3", "aload_0", "aload_1", "aload_2", "aload_3", "iaload", "laload",
	"faload", "daload", "aaload", "baload", "caload", "saload", "istore", "lstore",
	"fstore", "dstore", "astore", "istore_0", "istore_1", "istore_2", "istore_3", "lstore_0",
	"lstore_1", "lstore_2", "lstore_3", "fstore_0", "fstore_1", "fstore_2", "fstore_3", "dstore_0",
	"dstore_1", "dstore_2", "dstore_3", "astore_0", "astore_1", "astore_2", "astore_3", "iastore",
	"lastore", "fastore", "dastore", "aastore", "bastore", "castore", "sastore", "pop",
	"pop2", "dup", "dup_x1", "dup_x2", "dup2", "dup2_x1", "dup2_x2", "swap",
	"iadd", "ladd", "fadd", "dadd", "isub", "lsub", "fsub", "dsub",
	"imul", "lmul", "fmul", "dmul", "idiv", "ldiv", "fdiv", "ddiv",
	"irem", "lrem", "frem", "drem", "ineg", "lneg", "fneg", "dneg",
	"ishl", "lshl", "ishr", "lshr", "iushr", "lushr", "iand", "land",
	"ior", "lor", "ixor", "lxor", "iinc", "i2l", "i2f", "i2d",
	"l2i", "l2f", "l2d", "f2i", "f2l", "f2d", "d2i", "d2l",
	"d2f", "i2b", "i2c", "i2s", "lcmp", "fcmpl", "fcmpg", "dcmpl",
	"dcmpg", "ifeq", "ifne", "iflt", "ifge", "ifgt", "ifle", "if_icmpeq",
	"if_icmpne", "if_icmplt", "if_icmpge", "if_icmpgt", "if_icmple", "if_acmpeq", "if_acmpne", "goto",
	"jsr", "ret", "tableswitch", "lookupswitch", "ireturn", "lreturn", "freturn", "dreturn",
	"areturn", "return", "getstatic", "putstatic", "getfield", "putfield", "invokevirtual", "invokespecial",
	"invokestatic", "invokeinterface", "invokedynamic", "new", "newarray", "anewarray", "arraylength", "athrow",
	"checkcast", "instanceof", "monitorenter", "monitorexit", "wide", "multianewarray", "ifnull", "ifnonnull",
	"goto_w", "jsr_w",
}

var opcodesByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for i, name := range opcodeNames {
		m[name] = Opcode(i)
	}
	return m
}()

func (op Opcode) String() string {
	if op <= MaxOpcode {
		return opcodeNames[op]
	}
	return ""
}

func (op Opcode) Valid() bool { return op <= MaxOpcode }

func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodesByName[name]
	return op, ok
}

// OperandKind groups opcodes by the shape of their operands.
type OperandKind int

const (
	OperandNone       OperandKind = iota
	OperandLocal                  // u8 local index, u16 under wide
	OperandBranch                 // s16 label offset
	OperandBranchWide             // s32 label offset
	OperandClass                  // u16 Class reference
	OperandMember                 // u16 Field or Method reference
	OperandSpecial                // instruction-specific layout
)

func (op Opcode) Kind() OperandKind {
	switch {
	case op <= 15, op >= 26 && op <= 53, op >= 59 && op <= 131, op >= 133 && op <= 152,
		op >= 172 && op <= 177, op == 190, op == 191, op == 194, op == 195:
		return OperandNone
	case op >= 21 && op <= 25, op >= 54 && op <= 58, op == OpRet:
		return OperandLocal
	case op >= 153 && op <= OpJsr, op == 198, op == 199:
		return OperandBranch
	case op == OpGotoW, op == OpJsrW:
		return OperandBranchWide
	case op == OpNew, op == 189, op == 192, op == 193:
		return OperandClass
	case op >= OpGetstatic && op <= OpInvokestatic:
		return OperandMember
	}
	return OperandSpecial
}

// MemberTag is the constant type a member instruction refers to by default.
func (op Opcode) MemberTag() ConstantTag {
	if op < OpInvokevirtual {
		return ConstantFieldref
	}
	return ConstantMethodref
}
