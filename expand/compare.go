// Package expand implements instruction expanders: transformers that split a
// compound instruction into separate nodes for its constituent logical
// operations, and the inverse that applies or removes the expansion on the
// real instruction stream around injection.
package expand

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/graft/bytecode"
	"github.com/chazu/graft/flow"
)

// ErrJumpNotFound is the invariant violation raised when an already-replaced
// target is not followed by the simplified jump the expansion shape
// guarantees. It indicates an incompatible earlier transform.
var ErrJumpNotFound = errors.New("could not find jump for expanded operation")

// Component tags the role a piece of an expansion plays relative to its
// originating compound instruction.
type Component string

// Components of the comparison expansion.
const (
	ComponentCST  Component = "CST"  // the synthesized constant push
	ComponentJUMP Component = "JUMP" // the simplified jump
)

// Decoration keys written by the comparison expander.
const (
	// DecorationExpanded marks a node as already processed; not persistent,
	// a rebuilt graph is re-expanded.
	DecorationExpanded = "graft.expanded"

	// DecorationJumpOf sits on a multi-step comparison node and holds the
	// *flow.FlowValue of the jump consuming its result.
	DecorationJumpOf = flow.PersistentPrefix + "jumpOf"

	// DecorationComplexCompare sits on a jump node and holds the
	// *flow.FlowValue of the multi-step comparison feeding it.
	DecorationComplexCompare = flow.PersistentPrefix + "complexCompare"

	// DecorationExpansion sits on an InjectionNode and holds the *Expansion
	// receipt needed to collapse.
	DecorationExpansion = "graft.expansion"
)

// ComponentKey returns the decoration key under which an expansion registers
// the node playing component c.
func ComponentKey(c Component) string {
	return flow.PersistentPrefix + "component." + string(c)
}

// CompareExpander recognizes the compound compare-and-branch family: one
// instruction that both computes a relational result against an implicit
// zero and branches on it.
type CompareExpander struct {
	log commonlog.Logger
}

// NewCompareExpander creates the expander.
func NewCompareExpander() *CompareExpander {
	return &CompareExpander{log: commonlog.GetLogger("graft.expand")}
}

// Opcodes implements flow.Expander.
func (x *CompareExpander) Opcodes() []bytecode.Opcode {
	ops := make([]bytecode.Opcode, 0, 6)
	for op := bytecode.OpIfEQ; op <= bytecode.OpIfLE; op++ {
		ops = append(ops, op)
	}
	return ops
}

// Process implements flow.Expander. For a compound jump fed by a one-step
// value it synthesizes the implicit comparison constant and rewrites the
// node to the simplified two-operand jump. For a jump fed by a multi-step
// comparison it only records the relationship: the pair is matchable but
// never materialized, since no simplified form of it is valid code.
func (x *CompareExpander) Process(node *flow.FlowValue, sink flow.Sink) bool {
	op := node.Insn().Op
	if !bytecode.IsCompoundJump(op) {
		return false
	}
	if node.HasDecoration(DecorationExpanded) {
		return false
	}

	in := node.Inputs()[0]
	if bytecode.IsMultiStepCompare(in.Insn().Op) {
		in.Decorate(DecorationJumpOf, node)
		node.Decorate(DecorationComplexCompare, in)
		node.MarkComplex()
		node.Decorate(DecorationExpanded, true)
		return true
	}

	simplified, _ := bytecode.SimplifiedFor(op)
	cst := sink.AddSynthetic(bytecode.PushI8(0), bytecode.I32)
	cst.Decorate(DecorationExpanded, true)
	node.Rewrite(bytecode.Jump(simplified, node.Insn().Target), []*flow.FlowValue{in, cst})
	node.Decorate(ComponentKey(ComponentJUMP), node)
	node.Decorate(ComponentKey(ComponentCST), cst)
	node.Decorate(DecorationExpanded, true)
	return true
}

// Expansion is the receipt of a materialized expansion, kept on the
// injection node so Collapse can restore the original stream.
type Expansion struct {
	Body  *bytecode.MethodBody
	Jump  *bytecode.Instruction // the rewritten compound instruction
	Const *bytecode.Instruction // the materialized constant push

	original  bytecode.Opcode
	collapsed bool
}

// Expand implements flow.Expander. Recognition is re-derived against the
// live stream, not the analysis-time snapshot, which may be stale if earlier
// transforms already ran.
func (x *CompareExpander) Expand(body *bytecode.MethodBody, inj *flow.InjectionNode, sink flow.ExpansionSink) error {
	target := inj.Current()

	if inj.Replaced() {
		// An earlier transform swapped the compound instruction out. Its
		// replacement must be followed by the simplified jump.
		jump := body.Next(target)
		if jump == nil || !bytecode.IsSimplifiedJump(jump.Op) {
			return fmt.Errorf("%w: %s at %04d", ErrJumpNotFound, body.Name, body.Index(target))
		}
		sink.Register(string(ComponentJUMP), flow.NewInjectionNode(jump))
		return nil
	}

	if !bytecode.IsCompoundJump(target.Op) {
		return fmt.Errorf("expand: %s at %04d: %s is not a compound compare-and-branch",
			body.Name, body.Index(target), target.Op)
	}
	simplified, _ := bytecode.SimplifiedFor(target.Op)

	cst := bytecode.PushI8(0)
	if err := body.InsertBefore(target, cst); err != nil {
		return err
	}
	// Branches into the compound instruction must land on the constant push,
	// or they would reach the two-operand jump one value short.
	body.Retarget(target, cst)

	// Room for the synthesized constant.
	body.MaxStack++
	original := target.Op
	target.Op = simplified

	inj.Decorate(DecorationExpansion, &Expansion{
		Body:     body,
		Jump:     target,
		Const:    cst,
		original: original,
	})
	sink.Register(string(ComponentCST), flow.NewInjectionNode(cst))
	sink.Register(string(ComponentJUMP), flow.NewInjectionNode(target))
	x.log.Debugf("expanded %s at %04d in %s", original, body.Index(cst), body.Name)
	return nil
}

// Collapse removes the materialized expansion recorded on inj and restores
// the compound instruction. MaxStack keeps the extra slot; it never
// decreases below what the original method reported. Callers that replaced
// the compound instruction permanently skip the collapse.
func Collapse(inj *flow.InjectionNode) error {
	v, err := inj.GetDecoration(DecorationExpansion)
	if err != nil {
		return fmt.Errorf("collapse: injection node was never expanded: %w", err)
	}
	r := v.(*Expansion)
	if r.collapsed {
		return fmt.Errorf("collapse: %s: expansion already collapsed", r.Body.Name)
	}
	if err := r.Body.Remove(r.Const); err != nil {
		return err
	}
	r.Jump.Op = r.original
	r.collapsed = true
	return nil
}
