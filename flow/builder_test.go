package flow

import (
	"errors"
	"testing"

	"github.com/chazu/graft/bytecode"
)

func build(t *testing.T, m *bytecode.MethodBody) *Graph {
	t.Helper()
	g, err := NewBuilder(nil).Build(m)
	if err != nil {
		t.Fatalf("Build(%s): %v", m.Name, err)
	}
	return g
}

func valueFor(t *testing.T, g *Graph, insn *bytecode.Instruction) *FlowValue {
	t.Helper()
	v, ok := g.ValueFor(insn)
	if !ok {
		t.Fatalf("no node for %s", insn)
	}
	return v
}

func TestStraightLineInputs(t *testing.T) {
	m := bytecode.NewMethodBody("add")
	three := m.Append(bytecode.PushI8(3))
	five := m.Append(bytecode.PushI8(5))
	add := m.Append(bytecode.Insn(bytecode.OpAddI))
	ret := m.Append(bytecode.Insn(bytecode.OpReturnVal))

	g := build(t, m)

	addNode := valueFor(t, g, add)
	if len(addNode.Inputs()) != 2 {
		t.Fatalf("ADD_I inputs = %d, want 2", len(addNode.Inputs()))
	}
	if addNode.Inputs()[0] != mustValue(g, three) || addNode.Inputs()[1] != mustValue(g, five) {
		t.Error("ADD_I inputs are not the two pushes in operand order")
	}
	if addNode.Type() != bytecode.I32 {
		t.Errorf("ADD_I result = %s, want i32", addNode.Type())
	}

	retNode := valueFor(t, g, ret)
	if len(retNode.Inputs()) != 1 || retNode.Inputs()[0] != addNode {
		t.Error("RETURN_VAL should consume the ADD_I result")
	}
}

func mustValue(g *Graph, insn *bytecode.Instruction) *FlowValue {
	v, _ := g.ValueFor(insn)
	return v
}

// Every instruction's input count must equal its static pop count.
func TestStackBalance(t *testing.T) {
	m := bytecode.NewMethodBody("balance")
	m.Append(bytecode.PushNull())
	m.Append(bytecode.PushI8(7))
	m.Append(bytecode.Invoke("consume", 2, bytecode.I32))
	m.Append(bytecode.Insn(bytecode.OpReturnVal))

	g := build(t, m)
	for _, insn := range m.Instructions() {
		node := valueFor(t, g, insn)
		want := insn.Pops()
		if want == bytecode.PopsVariable {
			continue
		}
		if len(node.Inputs()) != want {
			t.Errorf("%s: %d inputs, opcode pops %d", insn, len(node.Inputs()), want)
		}
	}
}

func TestInvokeArity(t *testing.T) {
	m := bytecode.NewMethodBody("call")
	recv := m.Append(bytecode.PushNull())
	arg := m.Append(bytecode.PushI8(1))
	call := m.Append(bytecode.Invoke("at", 2, bytecode.Ref))
	m.Append(bytecode.Insn(bytecode.OpReturnVal))

	g := build(t, m)
	node := valueFor(t, g, call)
	if len(node.Inputs()) != 2 {
		t.Fatalf("INVOKE argc=2 inputs = %d", len(node.Inputs()))
	}
	if node.Inputs()[0] != mustValue(g, recv) || node.Inputs()[1] != mustValue(g, arg) {
		t.Error("INVOKE inputs out of operand order")
	}
}

func TestWideValues(t *testing.T) {
	m := bytecode.NewMethodBody("wide")
	a := m.Append(bytecode.PushI64(1))
	b := m.Append(bytecode.PushI64(2))
	add := m.Append(bytecode.Insn(bytecode.OpAddL))
	m.Append(bytecode.Insn(bytecode.OpReturnVal))

	g := build(t, m)
	node := valueFor(t, g, add)
	if len(node.Inputs()) != 2 {
		t.Fatalf("ADD_L inputs = %d", len(node.Inputs()))
	}
	if node.Inputs()[0] != mustValue(g, a) || node.Inputs()[1] != mustValue(g, b) {
		t.Error("ADD_L inputs wrong")
	}
	if node.Type().Width() != 2 {
		t.Error("ADD_L result should be wide")
	}
}

// DUP2 of one wide value duplicates that value; of two narrow values it
// duplicates the pair. Either way the copies refer to the original
// producers.
func TestDup2Polymorphism(t *testing.T) {
	wide := bytecode.NewMethodBody("dup2-wide")
	d := wide.Append(bytecode.PushF64(1.5))
	dup := wide.Append(bytecode.Insn(bytecode.OpDUP2))
	add := wide.Append(bytecode.Insn(bytecode.OpAddD))
	wide.Append(bytecode.Insn(bytecode.OpReturnVal))

	g := build(t, wide)
	if ins := valueFor(t, g, dup).Inputs(); len(ins) != 1 || ins[0] != mustValue(g, d) {
		t.Error("DUP2 on wide should have the single wide input")
	}
	addNode := valueFor(t, g, add)
	if addNode.Inputs()[0] != mustValue(g, d) || addNode.Inputs()[1] != mustValue(g, d) {
		t.Error("ADD_D should see the original producer twice")
	}

	narrow := bytecode.NewMethodBody("dup2-narrow")
	x := narrow.Append(bytecode.PushI8(1))
	y := narrow.Append(bytecode.PushI8(2))
	dup = narrow.Append(bytecode.Insn(bytecode.OpDUP2))
	narrow.Append(bytecode.Insn(bytecode.OpAddI))
	narrow.Append(bytecode.Insn(bytecode.OpAddI))
	narrow.Append(bytecode.Insn(bytecode.OpAddI))
	narrow.Append(bytecode.Insn(bytecode.OpReturnVal))

	g = build(t, narrow)
	ins := valueFor(t, g, dup).Inputs()
	if len(ins) != 2 || ins[0] != mustValue(g, x) || ins[1] != mustValue(g, y) {
		t.Error("DUP2 on narrow pair should have both inputs")
	}
}

func TestPop2AndSwap(t *testing.T) {
	m := bytecode.NewMethodBody("stackops")
	a := m.Append(bytecode.PushI8(1))
	b := m.Append(bytecode.PushI8(2))
	swap := m.Append(bytecode.Insn(bytecode.OpSWAP))
	pop2 := m.Append(bytecode.Insn(bytecode.OpPOP2))
	m.Append(bytecode.Insn(bytecode.OpReturn))

	g := build(t, m)
	if ins := valueFor(t, g, swap).Inputs(); len(ins) != 2 {
		t.Fatalf("SWAP inputs = %d", len(ins))
	}
	// After the swap the pair pops in reversed order.
	ins := valueFor(t, g, pop2).Inputs()
	if len(ins) != 2 || ins[0] != mustValue(g, b) || ins[1] != mustValue(g, a) {
		t.Error("POP2 after SWAP should consume the swapped pair")
	}
}

func TestJoinShapeMismatch(t *testing.T) {
	m := bytecode.NewMethodBody("badjoin")
	ret := bytecode.Insn(bytecode.OpReturn)
	m.Append(bytecode.PushI8(1))
	m.Append(bytecode.Jump(bytecode.OpIfEQ, ret)) // branch edge carries 0 slots
	m.Append(bytecode.PushI8(2))                  // fall-through carries 1 slot
	m.Append(ret)

	_, err := NewBuilder(nil).Build(m)
	if !errors.Is(err, ErrStackShape) {
		t.Fatalf("err = %v, want ErrStackShape", err)
	}
}

func TestUnreachableCodeStillGetsNodes(t *testing.T) {
	m := bytecode.NewMethodBody("dead")
	end := bytecode.Insn(bytecode.OpReturn)
	m.Append(bytecode.Jump(bytecode.OpGoto, end))
	deadPush := m.Append(bytecode.PushI8(1))
	deadPop := m.Append(bytecode.Insn(bytecode.OpPOP))
	m.Append(end)

	g := build(t, m)
	if _, ok := g.ValueFor(deadPush); !ok {
		t.Error("unreachable push has no node")
	}
	popNode := valueFor(t, g, deadPop)
	if len(popNode.Inputs()) != 1 {
		t.Fatalf("unreachable POP inputs = %d", len(popNode.Inputs()))
	}
	if popNode.Inputs()[0] != mustValue(g, deadPush) {
		t.Error("unreachable POP should chain on the unreachable push")
	}
}

func TestDeadPopSynthesizesOperand(t *testing.T) {
	m := bytecode.NewMethodBody("dead-pop")
	end := bytecode.Insn(bytecode.OpReturn)
	m.Append(bytecode.Jump(bytecode.OpGoto, end))
	pop := m.Append(bytecode.Insn(bytecode.OpPOP)) // nothing on the dead stack
	m.Append(end)

	g := build(t, m)
	node := valueFor(t, g, pop)
	if len(node.Inputs()) != 1 || !node.Inputs()[0].IsComplex() {
		t.Error("dead POP should get a synthetic placeholder operand")
	}
}

func TestHandlerEntrySeedsCaughtValue(t *testing.T) {
	m := bytecode.NewMethodBody("handler")
	from := m.Append(bytecode.PushI8(0))
	to := m.Append(bytecode.Insn(bytecode.OpReturnVal))
	catch := m.Append(bytecode.Insn(bytecode.OpThrow))
	m.AddHandler(from, to, catch)

	g := build(t, m)
	node := valueFor(t, g, catch)
	if len(node.Inputs()) != 1 {
		t.Fatalf("handler THROW inputs = %d", len(node.Inputs()))
	}
	caught := node.Inputs()[0]
	if !caught.IsComplex() || !caught.HasDecoration(DecorationCaughtValue) {
		t.Error("handler entry operand should be the synthetic caught value")
	}
}

func TestLoopBackEdge(t *testing.T) {
	m := bytecode.NewMethodBody("loop")
	head := m.Append(bytecode.Local(bytecode.OpLoadI, 0))
	m.Append(bytecode.Jump(bytecode.OpIfEQ, head)) // back edge, balanced
	m.Append(bytecode.Insn(bytecode.OpReturn))

	if _, err := NewBuilder(nil).Build(m); err != nil {
		t.Fatalf("balanced back edge: %v", err)
	}

	bad := bytecode.NewMethodBody("badloop")
	first := bad.Append(bytecode.PushI8(1))
	bad.Append(bytecode.PushI8(2))
	bad.Append(bytecode.Jump(bytecode.OpIfEQ, first)) // back edge carries 1 slot, entry had 0
	bad.Append(bytecode.Insn(bytecode.OpReturn))

	if _, err := NewBuilder(nil).Build(bad); !errors.Is(err, ErrStackShape) {
		t.Fatalf("unbalanced back edge: err = %v, want ErrStackShape", err)
	}
}

func TestRoots(t *testing.T) {
	m := bytecode.NewMethodBody("roots")
	m.Append(bytecode.PushI8(3))
	m.Append(bytecode.PushI8(5))
	m.Append(bytecode.Insn(bytecode.OpAddI))
	m.Append(bytecode.Insn(bytecode.OpReturnVal))

	g := build(t, m)
	roots := g.Roots()
	if len(roots) != 1 || roots[0].Insn().Op != bytecode.OpReturnVal {
		t.Errorf("roots = %v, want only RETURN_VAL", roots)
	}
}

// Stack-shuffle nodes alias their producers and are never consumed as
// inputs; they must not surface as top-level operations.
func TestRootsExcludeStackShuffles(t *testing.T) {
	m := bytecode.NewMethodBody("shuffles")
	m.Append(bytecode.PushI8(3))
	m.Append(bytecode.Insn(bytecode.OpDUP))
	m.Append(bytecode.PushI8(5))
	m.Append(bytecode.Insn(bytecode.OpSWAP))
	m.Append(bytecode.Insn(bytecode.OpAddI))
	m.Append(bytecode.Insn(bytecode.OpMulI))
	m.Append(bytecode.Insn(bytecode.OpReturnVal))

	g := build(t, m)
	for _, r := range g.Roots() {
		switch r.Insn().Op {
		case bytecode.OpDUP, bytecode.OpDUP2, bytecode.OpSWAP:
			t.Errorf("bookkeeping node %s reported as a root", r.Insn().Op)
		}
	}
	if n := len(g.Roots()); n != 1 {
		t.Errorf("roots = %d, want only RETURN_VAL", n)
	}
}

func TestRebuildCarriesPersistentDecorations(t *testing.T) {
	m := bytecode.NewMethodBody("rebuild")
	push := m.Append(bytecode.PushI8(1))
	m.Append(bytecode.Insn(bytecode.OpReturnVal))

	b := NewBuilder(nil)
	first, err := b.Build(m)
	if err != nil {
		t.Fatal(err)
	}
	node := mustValue(first, push)
	node.Decorate(PersistentPrefix+"mark", "kept")
	node.Decorate("graft.transient", "dropped")

	second, err := b.Rebuild(m, first)
	if err != nil {
		t.Fatal(err)
	}
	fresh := mustValue(second, push)
	if fresh == node {
		t.Fatal("rebuild should create fresh nodes")
	}
	v, err := fresh.GetDecoration(PersistentPrefix + "mark")
	if err != nil || v.(string) != "kept" {
		t.Errorf("persistent decoration not carried: (%v, %v)", v, err)
	}
	if fresh.HasDecoration("graft.transient") {
		t.Error("non-persistent decoration should not survive a rebuild")
	}
}
