// Package chunk implements the content-addressed exchange format for method
// bodies. Tooling passes methods around as CBOR-encoded chunks carrying a
// hash of their content; the receiver rebuilds the instruction stream and
// verifies the hash matches.
package chunk

import (
	"crypto/sha256"
	"fmt"

	"github.com/chazu/graft/bytecode"
)

// Insn is one flattened instruction. Branch targets become stream indices
// (-1 when absent) since pointers do not serialize.
type Insn struct {
	Op     byte    `cbor:"1,keyasint"`
	Imm    int64   `cbor:"2,keyasint,omitempty"`
	Fimm   float64 `cbor:"3,keyasint,omitempty"`
	Sym    string  `cbor:"4,keyasint,omitempty"`
	Argc   int     `cbor:"5,keyasint,omitempty"`
	Ret    byte    `cbor:"6,keyasint,omitempty"`
	Target int32   `cbor:"7,keyasint"`
}

// Handler is one flattened exception table entry.
type Handler struct {
	From  int32 `cbor:"1,keyasint"`
	To    int32 `cbor:"2,keyasint"`
	Catch int32 `cbor:"3,keyasint"`
}

// MethodChunk is the atomic unit of method exchange.
type MethodChunk struct {
	Hash     [32]byte  `cbor:"1,keyasint"`
	Name     string    `cbor:"2,keyasint"`
	MaxStack int       `cbor:"3,keyasint"`
	Code     []Insn    `cbor:"4,keyasint"`
	Handlers []Handler `cbor:"5,keyasint,omitempty"`
}

// Encode flattens a method body into a chunk and stamps its content hash.
func Encode(m *bytecode.MethodBody) (*MethodChunk, error) {
	c := &MethodChunk{
		Name:     m.Name,
		MaxStack: m.MaxStack,
		Code:     make([]Insn, 0, m.Len()),
	}
	for _, insn := range m.Instructions() {
		flat := Insn{
			Op:     byte(insn.Op),
			Imm:    insn.Imm,
			Fimm:   insn.Fimm,
			Sym:    insn.Sym,
			Argc:   insn.Argc,
			Ret:    byte(insn.Ret),
			Target: -1,
		}
		if insn.Target != nil {
			idx := m.Index(insn.Target)
			if idx < 0 {
				return nil, fmt.Errorf("chunk: %s: branch target not in stream", m.Name)
			}
			flat.Target = int32(idx)
		}
		c.Code = append(c.Code, flat)
	}
	for _, h := range m.Handlers {
		from, to, catch := m.Index(h.From), m.Index(h.To), m.Index(h.Catch)
		if from < 0 || to < 0 || catch < 0 {
			return nil, fmt.Errorf("chunk: %s: handler boundary not in stream", m.Name)
		}
		c.Handlers = append(c.Handlers, Handler{From: int32(from), To: int32(to), Catch: int32(catch)})
	}

	hash, err := contentHash(c)
	if err != nil {
		return nil, err
	}
	c.Hash = hash
	return c, nil
}

// Decode rebuilds a method body from a chunk, verifying the content hash.
func Decode(c *MethodChunk) (*bytecode.MethodBody, error) {
	hash, err := contentHash(c)
	if err != nil {
		return nil, err
	}
	if hash != c.Hash {
		return nil, fmt.Errorf("chunk: %s: content hash mismatch", c.Name)
	}

	m := bytecode.NewMethodBody(c.Name)
	m.MaxStack = c.MaxStack
	insns := make([]*bytecode.Instruction, len(c.Code))
	for i, flat := range c.Code {
		insns[i] = &bytecode.Instruction{
			Op:   bytecode.Opcode(flat.Op),
			Imm:  flat.Imm,
			Fimm: flat.Fimm,
			Sym:  flat.Sym,
			Argc: flat.Argc,
			Ret:  bytecode.Type(flat.Ret),
		}
		m.Append(insns[i])
	}
	at := func(idx int32, what string) (*bytecode.Instruction, error) {
		if idx < 0 || int(idx) >= len(insns) {
			return nil, fmt.Errorf("chunk: %s: %s index %d out of range", c.Name, what, idx)
		}
		return insns[idx], nil
	}
	for i, flat := range c.Code {
		if flat.Target >= 0 {
			target, err := at(flat.Target, "branch target")
			if err != nil {
				return nil, err
			}
			insns[i].Target = target
		}
	}
	for _, h := range c.Handlers {
		from, err := at(h.From, "handler from")
		if err != nil {
			return nil, err
		}
		to, err := at(h.To, "handler to")
		if err != nil {
			return nil, err
		}
		catch, err := at(h.Catch, "handler catch")
		if err != nil {
			return nil, err
		}
		m.AddHandler(from, to, catch)
	}
	return m, nil
}

// contentHash hashes the chunk's canonical encoding with a zeroed hash
// field.
func contentHash(c *MethodChunk) ([32]byte, error) {
	bare := *c
	bare.Hash = [32]byte{}
	data, err := cborEncMode.Marshal(&bare)
	if err != nil {
		return [32]byte{}, fmt.Errorf("chunk: hash encode: %w", err)
	}
	return sha256.Sum256(data), nil
}
