package flow

import "github.com/chazu/graft/bytecode"

// Graph owns every FlowValue built for one method body: one per real
// instruction plus the synthetics added by expansion. Graphs are rebuilt
// from scratch per method; no node outlives the analysis of its method.
type Graph struct {
	method *bytecode.MethodBody
	values map[*bytecode.Instruction]*FlowValue
	order  []*FlowValue
}

func newGraph(m *bytecode.MethodBody) *Graph {
	return &Graph{
		method: m,
		values: make(map[*bytecode.Instruction]*FlowValue, m.Len()),
	}
}

// Method returns the method body this graph was built from.
func (g *Graph) Method() *bytecode.MethodBody {
	return g.method
}

// ValueFor returns the node built for a real instruction.
func (g *Graph) ValueFor(insn *bytecode.Instruction) (*FlowValue, bool) {
	v, ok := g.values[insn]
	return v, ok
}

// Values returns all nodes in creation order (stream order for primitive
// nodes, synthetics after their trigger).
func (g *Graph) Values() []*FlowValue {
	return g.order
}

// Roots returns the nodes whose result no other node consumes: the
// top-level operations of the method. Stack shuffles (DUP, DUP2, SWAP) are
// bookkeeping: their copies alias the original producer, so the shuffle node
// itself is never consumed and is not reported as a root.
func (g *Graph) Roots() []*FlowValue {
	consumed := make(map[*FlowValue]bool)
	for _, v := range g.order {
		for _, in := range v.inputs {
			consumed[in] = true
		}
	}
	var roots []*FlowValue
	for _, v := range g.order {
		switch v.insn.Op {
		case bytecode.OpDUP, bytecode.OpDUP2, bytecode.OpSWAP:
			continue
		}
		if !consumed[v] {
			roots = append(roots, v)
		}
	}
	return roots
}

// add creates the node for a real instruction.
func (g *Graph) add(insn *bytecode.Instruction, inputs []*FlowValue, typ bytecode.Type) *FlowValue {
	v := &FlowValue{insn: insn, inputs: inputs, typ: typ}
	g.values[insn] = v
	g.order = append(g.order, v)
	return v
}

// AddSynthetic inserts a node for an instruction that exists only on the
// analysis side. Implements Sink for expanders.
func (g *Graph) AddSynthetic(insn *bytecode.Instruction, typ bytecode.Type) *FlowValue {
	v := g.add(insn, nil, typ)
	return v
}

// placeholder creates a synthetic operand node for positions where no
// producer is known (unreachable code, exception-handler entry).
func (g *Graph) placeholder(typ bytecode.Type) *FlowValue {
	v := g.AddSynthetic(bytecode.Insn(bytecode.OpNOP), typ)
	v.MarkComplex()
	return v
}
