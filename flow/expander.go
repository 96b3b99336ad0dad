package flow

import (
	"errors"
	"fmt"

	"github.com/chazu/graft/bytecode"
)

// ErrOverlappingExpanders is returned when a newly registered expander
// claims an opcode another expander already claims. Dispatch is
// first-registered-wins, so an overlap would silently shadow the later
// expander; it is rejected as a configuration error instead.
var ErrOverlappingExpanders = errors.New("overlapping expander opcode ranges")

// Sink receives synthetic nodes an expander creates during the analysis
// pass. The Graph implements it.
type Sink interface {
	AddSynthetic(insn *bytecode.Instruction, typ bytecode.Type) *FlowValue
}

// ExpansionSink receives the injection nodes an expansion materializes, one
// per component, so the injection machinery can target them individually.
type ExpansionSink interface {
	Register(component string, node *InjectionNode)
}

// Expander recognizes one family of compound instructions. Process runs for
// every node during graph construction and must be cheap when the opcode is
// not its own; Expand applies the same recognition to the live instruction
// stream at code-generation time.
type Expander interface {
	// Opcodes returns the closed set of opcodes this expander claims.
	Opcodes() []bytecode.Opcode

	// Process rewrites a recognized node in place and reports whether it
	// claimed the node.
	Process(node *FlowValue, sink Sink) bool

	// Expand materializes the expansion into body's live stream for the
	// instruction an injection node targets.
	Expand(body *bytecode.MethodBody, inj *InjectionNode, sink ExpansionSink) error
}

// Expanders dispatches nodes to registered expanders. Exactly one expander
// may claim a given opcode; the registry is built once at startup and
// read-only during analysis.
type Expanders struct {
	ordered []Expander
	claimed map[bytecode.Opcode]Expander
}

// NewExpanders creates an empty registry.
func NewExpanders() *Expanders {
	return &Expanders{claimed: make(map[bytecode.Opcode]Expander)}
}

// Register adds an expander. Registration order decides dispatch priority;
// an opcode already claimed by an earlier expander is a hard configuration
// error, never a silent shadow.
func (e *Expanders) Register(x Expander) error {
	for _, op := range x.Opcodes() {
		if _, taken := e.claimed[op]; taken {
			return fmt.Errorf("%w: opcode %s", ErrOverlappingExpanders, op)
		}
	}
	for _, op := range x.Opcodes() {
		e.claimed[op] = x
	}
	e.ordered = append(e.ordered, x)
	return nil
}

// ForOpcode returns the expander claiming op, if any.
func (e *Expanders) ForOpcode(op bytecode.Opcode) (Expander, bool) {
	x, ok := e.claimed[op]
	return x, ok
}

// ProcessAll offers every node of the graph to its claiming expander.
// Synthetic nodes added while processing are not re-offered.
func (e *Expanders) ProcessAll(g *Graph) {
	snapshot := g.Values()
	n := len(snapshot)
	for i := 0; i < n; i++ {
		node := snapshot[i]
		if x, ok := e.claimed[node.Insn().Op]; ok {
			x.Process(node, g)
		}
	}
}
