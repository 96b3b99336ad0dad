package flow

import (
	"github.com/google/uuid"

	"github.com/chazu/graft/bytecode"
)

// InjectionNode is a real-instruction-stream entry claimed by the injection
// machinery. It is the materialized counterpart of a FlowValue: where the
// flow node tracks analysis-side shape, the injection node tracks what
// currently stands in the live stream for the claimed instruction.
type InjectionNode struct {
	Decorations

	id       uuid.UUID
	target   *bytecode.Instruction
	current  *bytecode.Instruction
	replaced bool
}

// NewInjectionNode claims target for injection.
func NewInjectionNode(target *bytecode.Instruction) *InjectionNode {
	return &InjectionNode{
		id:      uuid.New(),
		target:  target,
		current: target,
	}
}

// ID returns the handle downstream tooling uses to address this node.
func (n *InjectionNode) ID() uuid.UUID {
	return n.id
}

// Target returns the originally claimed instruction.
func (n *InjectionNode) Target() *bytecode.Instruction {
	return n.target
}

// Current returns the instruction currently standing in for the target in
// the live stream.
func (n *InjectionNode) Current() *bytecode.Instruction {
	return n.current
}

// Replaced reports whether an earlier transform already substituted the
// target.
func (n *InjectionNode) Replaced() bool {
	return n.replaced
}

// Replace records that repl now stands in for the target.
func (n *InjectionNode) Replace(repl *bytecode.Instruction) {
	n.current = repl
	n.replaced = true
}

// ComponentSet is a plain ExpansionSink collecting the injection nodes an
// expansion registers, keyed by component tag.
type ComponentSet map[string]*InjectionNode

// Register implements ExpansionSink.
func (s ComponentSet) Register(component string, node *InjectionNode) {
	s[component] = node
}
