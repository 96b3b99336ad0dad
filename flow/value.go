// Package flow reconstructs the dataflow of one method body: it simulates
// the operand stack across the instruction stream and builds, for every
// instruction, a node whose inputs are the nodes that produced its operands.
// Instruction expanders normalize compound instructions into separate nodes
// during construction so patterns can address each logical operation.
package flow

import (
	"fmt"

	"github.com/chazu/graft/bytecode"
)

// FlowValue represents the value produced by one instruction given its
// operand-producing inputs. Nodes are mutated in place during expansion
// (instruction swapped, inputs rewritten) rather than replaced, so any
// reference taken before expansion observes the post-expansion shape.
type FlowValue struct {
	Decorations

	insn    *bytecode.Instruction
	inputs  []*FlowValue
	typ     bytecode.Type
	complex bool
}

// Insn returns the node's current instruction. For primitive nodes this is
// the real stream instruction; expansion may swap in a synthetic one.
func (v *FlowValue) Insn() *bytecode.Instruction {
	return v.insn
}

// Inputs returns the nodes whose results this instruction consumes, in
// operand order.
func (v *FlowValue) Inputs() []*FlowValue {
	return v.inputs
}

// Type returns the static type of the produced value, Void when none.
func (v *FlowValue) Type() bytecode.Type {
	return v.typ
}

// IsComplex reports whether the node is synthetic and must never be
// materialized into the instruction stream on its own.
func (v *FlowValue) IsComplex() bool {
	return v.complex
}

// MarkComplex flags the node as synthetic/non-materializable. It exists only
// for pattern-matching purposes from then on.
func (v *FlowValue) MarkComplex() {
	v.complex = true
}

// Rewrite swaps the node's instruction and inputs in one step, keeping the
// node's identity. The input count must agree with what the new opcode pops;
// a mismatch is a programming error in the caller, not a recoverable
// condition.
func (v *FlowValue) Rewrite(insn *bytecode.Instruction, inputs []*FlowValue) {
	if pops := insn.Pops(); pops != bytecode.PopsVariable && pops != len(inputs) {
		panic(fmt.Sprintf("flow: rewrite of %s with %d inputs, opcode pops %d",
			insn.Op, len(inputs), pops))
	}
	v.insn = insn
	v.inputs = inputs
}

// String implements the Stringer interface.
func (v *FlowValue) String() string {
	kind := "value"
	if v.complex {
		kind = "synthetic"
	}
	return fmt.Sprintf("%s(%s -> %s, %d inputs)", kind, v.insn, v.typ, len(v.inputs))
}
