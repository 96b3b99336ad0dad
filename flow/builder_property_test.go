package flow

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/chazu/graft/bytecode"
)

// genPushChain generates a straight-line body: n constant pushes folded by
// n-1 additions, then a value return. Always stack-verifiable.
func genPushChain() gopter.Gen {
	return gen.SliceOfN(8, gen.Int8Range(-50, 50)).Map(func(vals []int8) *bytecode.MethodBody {
		m := bytecode.NewMethodBody("generated")
		for _, v := range vals {
			m.Append(bytecode.PushI8(v))
		}
		for i := 0; i < len(vals)-1; i++ {
			m.Append(bytecode.Insn(bytecode.OpAddI))
		}
		m.Append(bytecode.Insn(bytecode.OpReturnVal))
		return m
	})
}

// For every instruction of a verifiable method, the number of FlowValue
// inputs equals the static pop count of its opcode.
func TestStackBalanceProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("inputs match static pop counts", prop.ForAll(
		func(m *bytecode.MethodBody) bool {
			g, err := NewBuilder(nil).Build(m)
			if err != nil {
				return false
			}
			for _, insn := range m.Instructions() {
				node, ok := g.ValueFor(insn)
				if !ok {
					return false
				}
				if pops := insn.Pops(); pops != bytecode.PopsVariable && len(node.Inputs()) != pops {
					return false
				}
			}
			return true
		},
		genPushChain(),
	))

	properties.TestingRun(t)
}
