package bytecode

import "fmt"

// ---------------------------------------------------------------------------
// Instruction: one entry of a method's instruction stream
// ---------------------------------------------------------------------------

// Instruction is a single operation in a method body. Instructions are owned
// by their MethodBody and referenced by pointer everywhere else; identity is
// pointer identity, so stream edits never invalidate references held by
// analysis structures.
type Instruction struct {
	Op   Opcode
	Imm  int64   // integer immediate or local index
	Fimm float64 // float immediate
	Sym  string  // member/type name for NEW, GET_FIELD, INVOKE, PUSH_STR

	// Call shape for INVOKE; Ret also carries the element/field type for
	// ARRAY_LOAD and GET_FIELD.
	Argc int
	Ret  Type

	// Target is the branch destination for jump opcodes. Kept as a pointer
	// so inserting or removing unrelated instructions cannot break it.
	Target *Instruction
}

// Insn creates a plain instruction with no operands.
func Insn(op Opcode) *Instruction {
	return &Instruction{Op: op}
}

// PushNull creates a null-reference push.
func PushNull() *Instruction {
	return &Instruction{Op: OpPushNull}
}

// PushI8 creates a small integer constant push.
func PushI8(v int8) *Instruction {
	return &Instruction{Op: OpPushI8, Imm: int64(v)}
}

// PushI32 creates a 32-bit integer constant push.
func PushI32(v int32) *Instruction {
	return &Instruction{Op: OpPushI32, Imm: int64(v)}
}

// PushI64 creates a 64-bit integer constant push.
func PushI64(v int64) *Instruction {
	return &Instruction{Op: OpPushI64, Imm: v}
}

// PushF32 creates a 32-bit float constant push.
func PushF32(v float64) *Instruction {
	return &Instruction{Op: OpPushF32, Fimm: v}
}

// PushF64 creates a 64-bit float constant push.
func PushF64(v float64) *Instruction {
	return &Instruction{Op: OpPushF64, Fimm: v}
}

// Local creates a load or store of the given local slot.
func Local(op Opcode, index int) *Instruction {
	return &Instruction{Op: op, Imm: int64(index)}
}

// Jump creates a branch to target.
func Jump(op Opcode, target *Instruction) *Instruction {
	return &Instruction{Op: op, Target: target}
}

// Invoke creates a call instruction. argc counts all popped arguments,
// receiver included; ret is the static result type (Void for none).
func Invoke(name string, argc int, ret Type) *Instruction {
	return &Instruction{Op: OpInvoke, Sym: name, Argc: argc, Ret: ret}
}

// GetField creates a field read producing a value of type t.
func GetField(name string, t Type) *Instruction {
	return &Instruction{Op: OpGetField, Sym: name, Ret: t}
}

// New creates an instance-creation instruction for the named type.
func New(name string) *Instruction {
	return &Instruction{Op: OpNew, Sym: name}
}

// ResultType returns the static type of the value this instruction pushes,
// or Void when it pushes nothing. This is the type/descriptor oracle for
// the flow builder.
func (i *Instruction) ResultType() Type {
	switch i.Op {
	case OpInvoke, OpGetField, OpArrayLoad:
		return i.Ret
	}
	return i.Op.Info().Result
}

// Pops returns the number of values this instruction consumes, resolving
// call arity. Width-polymorphic stack opcodes (DUP2, POP2, SWAP) still
// report PopsVariable; only the simulated stack can resolve those.
func (i *Instruction) Pops() int {
	info := i.Op.Info()
	if info.Pops != PopsVariable {
		return info.Pops
	}
	if i.Op == OpInvoke {
		return i.Argc
	}
	return PopsVariable
}

// Pushes returns the number of values this instruction produces.
func (i *Instruction) Pushes() int {
	if i.Op == OpInvoke && i.Ret == Void {
		return 0
	}
	return i.Op.Info().Pushes
}

// String implements the Stringer interface.
func (i *Instruction) String() string {
	switch i.Op {
	case OpPushI8, OpPushI32, OpPushI64:
		return fmt.Sprintf("%s %d", i.Op, i.Imm)
	case OpPushF32, OpPushF64:
		return fmt.Sprintf("%s %g", i.Op, i.Fimm)
	case OpPushStr:
		return fmt.Sprintf("%s %q", i.Op, i.Sym)
	case OpLoadI, OpLoadL, OpLoadF, OpLoadD, OpLoadR,
		OpStoreI, OpStoreL, OpStoreF, OpStoreD, OpStoreR:
		return fmt.Sprintf("%s %d", i.Op, i.Imm)
	case OpNew:
		return fmt.Sprintf("%s %s", i.Op, i.Sym)
	case OpGetField:
		return fmt.Sprintf("%s %s:%s", i.Op, i.Sym, i.Ret)
	case OpInvoke:
		return fmt.Sprintf("%s %s argc=%d ret=%s", i.Op, i.Sym, i.Argc, i.Ret)
	}
	return i.Op.Name()
}
