package bytecode

import "fmt"

// ---------------------------------------------------------------------------
// Value types
// ---------------------------------------------------------------------------

// Type classifies the static type of a stack value.
type Type uint8

const (
	Void Type = iota // no value
	I32              // 32-bit integer
	I64              // 64-bit integer (wide)
	F32              // 32-bit float
	F64              // 64-bit float (wide)
	Ref              // object reference
)

// Width returns the number of operand-stack slots a value of this type
// occupies.
func (t Type) Width() int {
	if t == I64 || t == F64 {
		return 2
	}
	return 1
}

// String implements the Stringer interface.
func (t Type) String() string {
	switch t {
	case Void:
		return "void"
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case Ref:
		return "ref"
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single instruction operation.
type Opcode byte

// Stack Operations
const (
	OpNOP  Opcode = 0x00 // no operation
	OpPOP  Opcode = 0x01 // discard top value
	OpPOP2 Opcode = 0x02 // discard two slots (one wide or two narrow values)
	OpDUP  Opcode = 0x03 // duplicate top value
	OpDUP2 Opcode = 0x04 // duplicate two slots (one wide or two narrow values)
	OpSWAP Opcode = 0x05 // swap top two values
)

// Push Constants
const (
	OpPushNull Opcode = 0x10 // push null reference
	OpPushI8   Opcode = 0x11 // push small integer constant
	OpPushI32  Opcode = 0x12 // push 32-bit integer constant
	OpPushI64  Opcode = 0x13 // push 64-bit integer constant
	OpPushF32  Opcode = 0x14 // push 32-bit float constant
	OpPushF64  Opcode = 0x15 // push 64-bit float constant
	OpPushStr  Opcode = 0x16 // push string constant
)

// Local Variables
const (
	OpLoadI  Opcode = 0x20 // load i32 local
	OpLoadL  Opcode = 0x21 // load i64 local
	OpLoadF  Opcode = 0x22 // load f32 local
	OpLoadD  Opcode = 0x23 // load f64 local
	OpLoadR  Opcode = 0x24 // load reference local
	OpStoreI Opcode = 0x25 // store i32 local
	OpStoreL Opcode = 0x26 // store i64 local
	OpStoreF Opcode = 0x27 // store f32 local
	OpStoreD Opcode = 0x28 // store f64 local
	OpStoreR Opcode = 0x29 // store reference local
)

// Arithmetic
const (
	OpAddI Opcode = 0x30 // i32 add
	OpSubI Opcode = 0x31 // i32 subtract
	OpMulI Opcode = 0x32 // i32 multiply
	OpDivI Opcode = 0x33 // i32 divide
	OpNegI Opcode = 0x34 // i32 negate
	OpAddL Opcode = 0x35 // i64 add
	OpAddF Opcode = 0x36 // f32 add
	OpAddD Opcode = 0x37 // f64 add
)

// Multi-step comparisons. Each pops two values of the wide or float family
// and pushes a three-way i32 result (-1, 0, 1). The L/G suffix selects the
// result for unordered float operands.
const (
	OpCmpL  Opcode = 0x40 // i64 compare
	OpFCmpL Opcode = 0x41 // f32 compare, unordered -> -1
	OpFCmpG Opcode = 0x42 // f32 compare, unordered -> 1
	OpDCmpL Opcode = 0x43 // f64 compare, unordered -> -1
	OpDCmpG Opcode = 0x44 // f64 compare, unordered -> 1
)

// Objects and Arrays
const (
	OpNew         Opcode = 0x50 // create instance (type name operand)
	OpGetField    Opcode = 0x51 // pop receiver, push field value
	OpNewArray    Opcode = 0x52 // pop length, push new array
	OpArrayLoad   Opcode = 0x53 // pop array + index, push element
	OpArrayStore  Opcode = 0x54 // pop array + index + value
	OpArrayLength Opcode = 0x55 // pop array, push length
)

// Calls
const (
	OpInvoke Opcode = 0x60 // call method (name + argc operands, variable arity)
)

// Compound compare-and-branch: pop one i32, compare against an implicit
// zero, branch if the condition holds. One instruction carrying two logical
// operations (the comparison and the jump).
const (
	OpIfEQ Opcode = 0x90 // branch if == 0
	OpIfNE Opcode = 0x91 // branch if != 0
	OpIfLT Opcode = 0x92 // branch if < 0
	OpIfGE Opcode = 0x93 // branch if >= 0
	OpIfGT Opcode = 0x94 // branch if > 0
	OpIfLE Opcode = 0x95 // branch if <= 0
)

// Simplified compare-and-branch: pop two i32 values, compare them directly,
// branch if the condition holds. Each opcode sits at a fixed offset from its
// compound counterpart above.
const (
	OpIfCmpEQ Opcode = 0xA0 // branch if a == b
	OpIfCmpNE Opcode = 0xA1 // branch if a != b
	OpIfCmpLT Opcode = 0xA2 // branch if a < b
	OpIfCmpGE Opcode = 0xA3 // branch if a >= b
	OpIfCmpGT Opcode = 0xA4 // branch if a > b
	OpIfCmpLE Opcode = 0xA5 // branch if a <= b
)

// Unconditional Control Flow
const (
	OpGoto Opcode = 0xB0 // unconditional branch
)

// Returns
const (
	OpReturn    Opcode = 0xC0 // return void
	OpReturnVal Opcode = 0xC1 // return top of stack
)

// Exceptions
const (
	OpThrow Opcode = 0xD0 // pop and throw
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// PopsVariable marks opcodes whose pop count depends on the instruction's
// operands or the widths of the values on the simulated stack.
const PopsVariable = -1

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name   string // human-readable name
	Pops   int    // values consumed (PopsVariable if polymorphic)
	Pushes int    // values produced
	Result Type   // static result type (Void when none or per-instruction)
}

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	// Stack operations
	OpNOP:  {"NOP", 0, 0, Void},
	OpPOP:  {"POP", 1, 0, Void},
	OpPOP2: {"POP2", PopsVariable, 0, Void},
	OpDUP:  {"DUP", PopsVariable, 0, Void},
	OpDUP2: {"DUP2", PopsVariable, 0, Void},
	OpSWAP: {"SWAP", PopsVariable, 0, Void},

	// Push constants
	OpPushNull: {"PUSH_NULL", 0, 1, Ref},
	OpPushI8:   {"PUSH_I8", 0, 1, I32},
	OpPushI32:  {"PUSH_I32", 0, 1, I32},
	OpPushI64:  {"PUSH_I64", 0, 1, I64},
	OpPushF32:  {"PUSH_F32", 0, 1, F32},
	OpPushF64:  {"PUSH_F64", 0, 1, F64},
	OpPushStr:  {"PUSH_STR", 0, 1, Ref},

	// Locals
	OpLoadI:  {"LOAD_I", 0, 1, I32},
	OpLoadL:  {"LOAD_L", 0, 1, I64},
	OpLoadF:  {"LOAD_F", 0, 1, F32},
	OpLoadD:  {"LOAD_D", 0, 1, F64},
	OpLoadR:  {"LOAD_R", 0, 1, Ref},
	OpStoreI: {"STORE_I", 1, 0, Void},
	OpStoreL: {"STORE_L", 1, 0, Void},
	OpStoreF: {"STORE_F", 1, 0, Void},
	OpStoreD: {"STORE_D", 1, 0, Void},
	OpStoreR: {"STORE_R", 1, 0, Void},

	// Arithmetic
	OpAddI: {"ADD_I", 2, 1, I32},
	OpSubI: {"SUB_I", 2, 1, I32},
	OpMulI: {"MUL_I", 2, 1, I32},
	OpDivI: {"DIV_I", 2, 1, I32},
	OpNegI: {"NEG_I", 1, 1, I32},
	OpAddL: {"ADD_L", 2, 1, I64},
	OpAddF: {"ADD_F", 2, 1, F32},
	OpAddD: {"ADD_D", 2, 1, F64},

	// Multi-step comparisons
	OpCmpL:  {"CMP_L", 2, 1, I32},
	OpFCmpL: {"FCMP_L", 2, 1, I32},
	OpFCmpG: {"FCMP_G", 2, 1, I32},
	OpDCmpL: {"DCMP_L", 2, 1, I32},
	OpDCmpG: {"DCMP_G", 2, 1, I32},

	// Objects and arrays
	OpNew:         {"NEW", 0, 1, Ref},
	OpGetField:    {"GET_FIELD", 1, 1, Void}, // result from Instruction.Ret
	OpNewArray:    {"NEW_ARRAY", 1, 1, Ref},
	OpArrayLoad:   {"ARRAY_LOAD", 2, 1, Void}, // result from Instruction.Ret
	OpArrayStore:  {"ARRAY_STORE", 3, 0, Void},
	OpArrayLength: {"ARRAY_LENGTH", 1, 1, I32},

	// Calls
	OpInvoke: {"INVOKE", PopsVariable, 1, Void}, // arity and result from Instruction

	// Compound compare-and-branch
	OpIfEQ: {"IF_EQ", 1, 0, Void},
	OpIfNE: {"IF_NE", 1, 0, Void},
	OpIfLT: {"IF_LT", 1, 0, Void},
	OpIfGE: {"IF_GE", 1, 0, Void},
	OpIfGT: {"IF_GT", 1, 0, Void},
	OpIfLE: {"IF_LE", 1, 0, Void},

	// Simplified compare-and-branch
	OpIfCmpEQ: {"IF_CMP_EQ", 2, 0, Void},
	OpIfCmpNE: {"IF_CMP_NE", 2, 0, Void},
	OpIfCmpLT: {"IF_CMP_LT", 2, 0, Void},
	OpIfCmpGE: {"IF_CMP_GE", 2, 0, Void},
	OpIfCmpGT: {"IF_CMP_GT", 2, 0, Void},
	OpIfCmpLE: {"IF_CMP_LE", 2, 0, Void},

	// Unconditional control flow
	OpGoto: {"GOTO", 0, 0, Void},

	// Returns
	OpReturn:    {"RETURN", 0, 0, Void},
	OpReturnVal: {"RETURN_VAL", 1, 0, Void},

	// Exceptions
	OpThrow: {"THROW", 1, 0, Void},
}

// opcodeByName is the reverse of opcodeTable, for config and chunk decoding.
var opcodeByName = map[string]Opcode{}

func init() {
	for op, info := range opcodeTable {
		opcodeByName[info.Name] = op
	}
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// Name returns the human-readable name for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}

// OpcodeByName resolves an opcode from its table name.
func OpcodeByName(name string) (Opcode, bool) {
	op, ok := opcodeByName[name]
	return op, ok
}

// ---------------------------------------------------------------------------
// Jump family mapping
// ---------------------------------------------------------------------------

// simplifiedJumpOffset is the fixed numeric distance between the compound
// compare-and-branch family and its simplified two-operand counterparts.
// The mapping tables below are derived from it once; call sites never apply
// the offset themselves.
const simplifiedJumpOffset = 0x10

var (
	compoundToSimplified = map[Opcode]Opcode{}
	simplifiedToCompound = map[Opcode]Opcode{}
)

func init() {
	for op := OpIfEQ; op <= OpIfLE; op++ {
		s := op + simplifiedJumpOffset
		compoundToSimplified[op] = s
		simplifiedToCompound[s] = op
	}
}

// IsCompoundJump reports whether op is an implicit-zero compare-and-branch.
func IsCompoundJump(op Opcode) bool {
	_, ok := compoundToSimplified[op]
	return ok
}

// IsSimplifiedJump reports whether op is a two-operand compare-and-branch.
func IsSimplifiedJump(op Opcode) bool {
	_, ok := simplifiedToCompound[op]
	return ok
}

// IsMultiStepCompare reports whether op is a comparison whose result is
// produced in a separate step from any branch that consumes it.
func IsMultiStepCompare(op Opcode) bool {
	return op >= OpCmpL && op <= OpDCmpG
}

// SimplifiedFor returns the simplified jump opcode for a compound one.
func SimplifiedFor(op Opcode) (Opcode, bool) {
	s, ok := compoundToSimplified[op]
	return s, ok
}

// CompoundFor returns the compound jump opcode for a simplified one.
func CompoundFor(op Opcode) (Opcode, bool) {
	c, ok := simplifiedToCompound[op]
	return c, ok
}

// IsBranch reports whether op transfers control to a target instruction.
func IsBranch(op Opcode) bool {
	return IsCompoundJump(op) || IsSimplifiedJump(op) || op == OpGoto
}

// EndsFlow reports whether execution never falls through past op.
func EndsFlow(op Opcode) bool {
	return op == OpGoto || op == OpReturn || op == OpReturnVal || op == OpThrow
}
