package bytecode

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// MethodBody: mutable instruction stream of one method
// ---------------------------------------------------------------------------

// Handler is one entry of a method's exception table. The protected range is
// [From, To) in stream order; Catch is the handler entry instruction.
type Handler struct {
	From  *Instruction
	To    *Instruction
	Catch *Instruction
}

// MethodBody owns the ordered instruction stream of a single method plus the
// bookkeeping the verifier and the injection machinery read (max operand
// stack depth, exception table).
type MethodBody struct {
	Name     string
	MaxStack int
	Handlers []Handler

	insns []*Instruction
}

// NewMethodBody creates an empty method body.
func NewMethodBody(name string) *MethodBody {
	return &MethodBody{Name: name}
}

// Append adds an instruction at the end of the stream and returns it, so
// bodies can be built inline: b.Append(bytecode.PushI8(3)).
func (m *MethodBody) Append(insn *Instruction) *Instruction {
	m.insns = append(m.insns, insn)
	return insn
}

// Len returns the number of instructions.
func (m *MethodBody) Len() int {
	return len(m.insns)
}

// At returns the instruction at stream position i.
func (m *MethodBody) At(i int) *Instruction {
	return m.insns[i]
}

// Instructions returns the live stream in order. Callers must not mutate
// the returned slice; use the editing operations below.
func (m *MethodBody) Instructions() []*Instruction {
	return m.insns
}

// Index returns the stream position of insn, or -1 if it is not present.
func (m *MethodBody) Index(insn *Instruction) int {
	for i, cur := range m.insns {
		if cur == insn {
			return i
		}
	}
	return -1
}

// Next returns the instruction immediately following insn in the live
// stream, or nil at the end of the stream or if insn is not present.
func (m *MethodBody) Next(insn *Instruction) *Instruction {
	i := m.Index(insn)
	if i < 0 || i+1 >= len(m.insns) {
		return nil
	}
	return m.insns[i+1]
}

// InsertBefore places insn immediately before mark.
func (m *MethodBody) InsertBefore(mark, insn *Instruction) error {
	i := m.Index(mark)
	if i < 0 {
		return fmt.Errorf("bytecode: %s: insert mark not in stream", m.Name)
	}
	m.insns = append(m.insns, nil)
	copy(m.insns[i+1:], m.insns[i:])
	m.insns[i] = insn
	return nil
}

// InsertAfter places insn immediately after mark.
func (m *MethodBody) InsertAfter(mark, insn *Instruction) error {
	i := m.Index(mark)
	if i < 0 {
		return fmt.Errorf("bytecode: %s: insert mark not in stream", m.Name)
	}
	m.insns = append(m.insns, nil)
	copy(m.insns[i+2:], m.insns[i+1:])
	m.insns[i+1] = insn
	return nil
}

// Replace substitutes old with repl in the stream and redirects every jump
// target and handler boundary that pointed at old.
func (m *MethodBody) Replace(old, repl *Instruction) error {
	i := m.Index(old)
	if i < 0 {
		return fmt.Errorf("bytecode: %s: replace target not in stream", m.Name)
	}
	m.insns[i] = repl
	m.Retarget(old, repl)
	return nil
}

// Remove deletes insn from the stream. Jumps and handler boundaries that
// pointed at it are redirected to its successor.
func (m *MethodBody) Remove(insn *Instruction) error {
	i := m.Index(insn)
	if i < 0 {
		return fmt.Errorf("bytecode: %s: remove target not in stream", m.Name)
	}
	var succ *Instruction
	if i+1 < len(m.insns) {
		succ = m.insns[i+1]
	}
	m.insns = append(m.insns[:i], m.insns[i+1:]...)
	m.Retarget(insn, succ)
	return nil
}

// Retarget redirects every jump target and handler boundary pointing at old
// to repl. Callers that insert an instruction in front of a branch target use
// it to keep incoming edges arriving at the inserted instruction.
func (m *MethodBody) Retarget(old, repl *Instruction) {
	for _, cur := range m.insns {
		if cur.Target == old {
			cur.Target = repl
		}
	}
	for h := range m.Handlers {
		if m.Handlers[h].From == old {
			m.Handlers[h].From = repl
		}
		if m.Handlers[h].To == old {
			m.Handlers[h].To = repl
		}
		if m.Handlers[h].Catch == old {
			m.Handlers[h].Catch = repl
		}
	}
}

// AddHandler appends an exception table entry.
func (m *MethodBody) AddHandler(from, to, catch *Instruction) {
	m.Handlers = append(m.Handlers, Handler{From: from, To: to, Catch: catch})
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// Disassemble returns a listing of the method body, one instruction per
// line, with branch targets shown as stream positions.
func (m *MethodBody) Disassemble() string {
	var sb strings.Builder
	for i, insn := range m.insns {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if insn.Target != nil {
			fmt.Fprintf(&sb, "%04d  %s (-> %04d)", i, insn, m.Index(insn.Target))
		} else {
			fmt.Fprintf(&sb, "%04d  %s", i, insn)
		}
	}
	return sb.String()
}
