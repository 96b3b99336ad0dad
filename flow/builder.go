package flow

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/graft/bytecode"
)

// ErrStackShape is returned when the simulated operand stack disagrees in
// slot count across the incoming edges of a control-flow join.
var ErrStackShape = errors.New("operand stack shape mismatch")

// stackEntry is one simulated value. Wide values occupy one entry with
// width 2; slot arithmetic sums widths.
type stackEntry struct {
	v     *FlowValue
	width int
}

func slots(stack []stackEntry) int {
	n := 0
	for _, e := range stack {
		n += e.width
	}
	return n
}

// Builder runs the abstract interpretation pass that turns an instruction
// stream into a flow graph. It holds no per-method state; one Builder may
// serve many method-analysis tasks.
type Builder struct {
	expanders *Expanders
	log       commonlog.Logger
}

// NewBuilder creates a builder. expanders may be nil for a primitive-only
// graph.
func NewBuilder(expanders *Expanders) *Builder {
	return &Builder{
		expanders: expanders,
		log:       commonlog.GetLogger("graft.flow"),
	}
}

// Build constructs the flow graph for one method body. Either the whole
// graph is valid or an error is returned and no graph is exposed.
func (b *Builder) Build(m *bytecode.MethodBody) (*Graph, error) {
	return b.Rebuild(m, nil)
}

// Rebuild constructs a fresh graph for m, carrying over persistent
// decorations from prev by instruction identity. prev must have been built
// from the same method body.
func (b *Builder) Rebuild(m *bytecode.MethodBody, prev *Graph) (*Graph, error) {
	g := newGraph(m)

	// Branch targets seen so far map to the stack shape arriving there.
	frames := make(map[*bytecode.Instruction][]stackEntry)

	// Exception handler entries start with a single synthetic thrown value.
	for _, h := range m.Handlers {
		if _, ok := frames[h.Catch]; !ok {
			caught := g.placeholder(bytecode.Ref)
			caught.Decorate(DecorationCaughtValue, h)
			frames[h.Catch] = []stackEntry{{v: caught, width: 1}}
		}
	}

	// Slot count at entry of every visited instruction, for checking
	// backward branches into already-visited code.
	entrySlots := make(map[*bytecode.Instruction]int, m.Len())

	var stack []stackEntry
	live := true

	for idx, insn := range m.Instructions() {
		if frame, ok := frames[insn]; ok {
			if live {
				if slots(stack) != slots(frame) {
					return nil, fmt.Errorf("%w: %s at %04d: fall-through carries %d slots, branch carries %d",
						ErrStackShape, m.Name, idx, slots(stack), slots(frame))
				}
			} else {
				stack = append([]stackEntry(nil), frame...)
				live = true
			}
		}
		// Unreachable instructions keep an empty synthetic stack state and
		// are still visited so every instruction gets a node.
		entrySlots[insn] = slots(stack)

		var err error
		stack, err = b.step(g, m, idx, insn, stack, frames, entrySlots)
		if err != nil {
			return nil, err
		}

		if bytecode.EndsFlow(insn.Op) {
			stack = nil
			live = false
		}
	}

	if prev != nil {
		carryPersistent(prev, g)
	}

	if b.expanders != nil {
		b.expanders.ProcessAll(g)
	}

	b.log.Debugf("built flow graph for %s: %d nodes", m.Name, len(g.order))
	return g, nil
}

// step simulates a single instruction, creating its node and returning the
// new stack state.
func (b *Builder) step(g *Graph, m *bytecode.MethodBody, idx int, insn *bytecode.Instruction,
	stack []stackEntry, frames map[*bytecode.Instruction][]stackEntry,
	entrySlots map[*bytecode.Instruction]int) ([]stackEntry, error) {

	pop := func() stackEntry {
		if len(stack) == 0 {
			// Dead code or a handler-shape gap: synthesize an operand so the
			// node is still complete.
			return stackEntry{v: g.placeholder(bytecode.I32), width: 1}
		}
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return e
	}

	switch insn.Op {
	case bytecode.OpDUP:
		top := pop()
		stack = append(stack, top)
		g.add(insn, []*FlowValue{top.v}, top.v.Type())
		// The duplicate refers to the original producer: patterns match the
		// value, not the copy.
		stack = append(stack, top)

	case bytecode.OpDUP2:
		top := pop()
		if top.width == 2 {
			stack = append(stack, top)
			g.add(insn, []*FlowValue{top.v}, top.v.Type())
			stack = append(stack, top)
		} else {
			under := pop()
			stack = append(stack, under, top)
			g.add(insn, []*FlowValue{under.v, top.v}, bytecode.Void)
			stack = append(stack, under, top)
		}

	case bytecode.OpPOP2:
		top := pop()
		if top.width == 2 {
			g.add(insn, []*FlowValue{top.v}, bytecode.Void)
		} else {
			under := pop()
			g.add(insn, []*FlowValue{under.v, top.v}, bytecode.Void)
		}

	case bytecode.OpSWAP:
		top := pop()
		under := pop()
		g.add(insn, []*FlowValue{under.v, top.v}, bytecode.Void)
		stack = append(stack, top, under)

	default:
		pops := insn.Pops()
		if pops == bytecode.PopsVariable {
			return nil, fmt.Errorf("flow: %s at %04d: no pop width for %s", m.Name, idx, insn.Op)
		}
		inputs := make([]*FlowValue, pops)
		for j := pops - 1; j >= 0; j-- {
			inputs[j] = pop().v
		}
		node := g.add(insn, inputs, insn.ResultType())
		if insn.Pushes() > 0 {
			t := insn.ResultType()
			stack = append(stack, stackEntry{v: node, width: t.Width()})
		}
	}

	if insn.Target != nil {
		if frame, ok := frames[insn.Target]; ok {
			if slots(stack) != slots(frame) {
				return nil, fmt.Errorf("%w: %s at %04d: branch to %04d carries %d slots, earlier edge carries %d",
					ErrStackShape, m.Name, idx, m.Index(insn.Target), slots(stack), slots(frame))
			}
		} else if seen, visited := entrySlots[insn.Target]; visited {
			// Backward branch into already-visited code.
			if slots(stack) != seen {
				return nil, fmt.Errorf("%w: %s at %04d: backward branch to %04d carries %d slots, entry had %d",
					ErrStackShape, m.Name, idx, m.Index(insn.Target), slots(stack), seen)
			}
		} else {
			frames[insn.Target] = append([]stackEntry(nil), stack...)
		}
	}

	return stack, nil
}

// carryPersistent copies persistent-prefixed decorations from the previous
// graph's nodes onto the new graph's nodes for the same instructions.
func carryPersistent(prev, next *Graph) {
	for insn, old := range prev.values {
		kept := old.persistent()
		if len(kept) == 0 {
			continue
		}
		if nv, ok := next.values[insn]; ok {
			for k, v := range kept {
				nv.Decorate(k, v)
			}
		}
	}
}

// DecorationCaughtValue marks the synthetic thrown-value node seeded at an
// exception handler entry; the value is the bytecode.Handler.
const DecorationCaughtValue = "graft.caughtValue"
