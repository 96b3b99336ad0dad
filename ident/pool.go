// Package ident implements the identifier pool: the registry that resolves
// pattern-language names to concrete type and member matchers.
package ident

import (
	"errors"
	"fmt"

	"github.com/chazu/graft/bytecode"
)

// ErrUndeclaredIdentifier is returned when a lookup names an identifier that
// was never registered. This is a configuration error, distinct from a
// declared identifier that simply does not match.
var ErrUndeclaredIdentifier = errors.New("undeclared identifier")

// TypeDef decides whether a candidate static type satisfies an identifier.
type TypeDef interface {
	MatchesType(t bytecode.Type) bool
}

// MemberDef decides whether a candidate instruction satisfies a member
// identifier.
type MemberDef interface {
	MatchesMember(insn *bytecode.Instruction) bool
}

// ExactType matches exactly one scalar type.
type ExactType bytecode.Type

// MatchesType implements TypeDef.
func (e ExactType) MatchesType(t bytecode.Type) bool {
	return bytecode.Type(e) == t
}

// MemberFunc adapts a predicate to MemberDef.
type MemberFunc func(insn *bytecode.Instruction) bool

// MatchesMember implements MemberDef.
func (f MemberFunc) MatchesMember(insn *bytecode.Instruction) bool {
	return f(insn)
}

// OpcodeMember matches any instruction with the given opcode.
func OpcodeMember(op bytecode.Opcode) MemberDef {
	return MemberFunc(func(insn *bytecode.Instruction) bool {
		return insn.Op == op
	})
}

// NamedInvokeMember matches a call to the named method.
func NamedInvokeMember(name string) MemberDef {
	return MemberFunc(func(insn *bytecode.Instruction) bool {
		return insn.Op == bytecode.OpInvoke && insn.Sym == name
	})
}

// ---------------------------------------------------------------------------
// Pool
// ---------------------------------------------------------------------------

// Pool maps identifiers to their registered definitions. It is built once
// during configuration and read-only afterwards; reads are pure functions of
// the registered state, so concurrent method analyses may share one Pool.
type Pool struct {
	types   map[string][]TypeDef
	members map[string][]MemberDef
}

// NewPool creates a pool seeded with the built-in identifiers: the primitive
// scalar type names and the "length" member for the array-length operation.
func NewPool() *Pool {
	p := &Pool{
		types:   make(map[string][]TypeDef),
		members: make(map[string][]MemberDef),
	}
	p.RegisterType("int", ExactType(bytecode.I32))
	p.RegisterType("long", ExactType(bytecode.I64))
	p.RegisterType("float", ExactType(bytecode.F32))
	p.RegisterType("double", ExactType(bytecode.F64))
	p.RegisterType("ref", ExactType(bytecode.Ref))
	p.RegisterMember("length", OpcodeMember(bytecode.OpArrayLength))
	return p
}

// RegisterType appends a definition for name. Multiple definitions per name
// are legal; matching succeeds if any of them matches.
func (p *Pool) RegisterType(name string, def TypeDef) {
	p.types[name] = append(p.types[name], def)
}

// RegisterMember appends a member definition for name.
func (p *Pool) RegisterMember(name string, def MemberDef) {
	p.members[name] = append(p.members[name], def)
}

// TypeExists reports whether name has at least one type definition. Used by
// the pattern parser to validate names ahead of matching; never fails.
func (p *Pool) TypeExists(name string) bool {
	return len(p.types[name]) > 0
}

// MemberExists reports whether name has at least one member definition.
func (p *Pool) MemberExists(name string) bool {
	return len(p.members[name]) > 0
}

// MatchesType reports whether any definition registered for name matches t.
// Looking up a name that was never registered fails with
// ErrUndeclaredIdentifier naming the identifier.
func (p *Pool) MatchesType(name string, t bytecode.Type) (bool, error) {
	defs, ok := p.types[name]
	if !ok {
		return false, fmt.Errorf("%w: type %q", ErrUndeclaredIdentifier, name)
	}
	for _, def := range defs {
		if def.MatchesType(t) {
			return true, nil
		}
	}
	return false, nil
}

// MatchesMember reports whether any member definition registered for name
// matches the candidate instruction.
func (p *Pool) MatchesMember(name string, insn *bytecode.Instruction) (bool, error) {
	defs, ok := p.members[name]
	if !ok {
		return false, fmt.Errorf("%w: member %q", ErrUndeclaredIdentifier, name)
	}
	for _, def := range defs {
		if def.MatchesMember(insn) {
			return true, nil
		}
	}
	return false, nil
}
