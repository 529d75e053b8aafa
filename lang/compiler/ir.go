package compiler

import (
	"fmt"
	"math/big"
)

// Kind distinguishes the three instruction shapes of the IR: a bare
// opcode, an integer push, or a byte-string push.
type Kind uint8

const (
	KindOp Kind = iota
	KindPushInt
	KindPushBytes
)

// Instr is one instruction of the flat, jump-free IR (spec.md Section 4.3).
// Control flow is expressed only through the OP_IF/OP_ELSE/OP_ENDIF triad
// that brackets a conditional's branches in place; there is no separate
// jump-target addressing to keep in sync.
type Instr struct {
	Kind  Kind
	Op    Op
	Int   *big.Int
	Bytes []byte

	// Dead marks an instruction as unreachable, set by the lowering pass
	// once a preceding OP_RETURN or markInvalid() has poisoned the rest of
	// the path. Lowering keeps dead instructions in place; optimizer.Run
	// removes them, and Format and Encode skip any that remain.
	Dead bool
}

func PushInt(n *big.Int) Instr   { return Instr{Kind: KindPushInt, Int: n} }
func PushBytes(b []byte) Instr   { return Instr{Kind: KindPushBytes, Bytes: b} }
func OpInstr(op Op) Instr        { return Instr{Kind: KindOp, Op: op} }

func (in Instr) String() string {
	switch in.Kind {
	case KindPushInt:
		return "PUSHINT " + in.Int.String()
	case KindPushBytes:
		return fmt.Sprintf("PUSHBYTES 0x%x", in.Bytes)
	default:
		return in.Op.String()
	}
}

// Effect returns the net stack-depth change of in.
func (in Instr) Effect() int {
	switch in.Kind {
	case KindPushInt, KindPushBytes:
		return 1
	default:
		return in.Op.Effect()
	}
}

// Script is a sequence of instructions: the compiled form of one TxScript
// program.
type Script struct {
	Instrs []Instr
}

func (s *Script) emit(in Instr)   { s.Instrs = append(s.Instrs, in) }
func (s *Script) emitOp(op Op)    { s.emit(OpInstr(op)) }
func (s *Script) pushInt(n *big.Int) { s.emit(PushInt(n)) }
func (s *Script) pushBytes(b []byte) { s.emit(PushBytes(b)) }

// Len returns the number of live (non-Dead) instructions.
func (s *Script) Len() int {
	n := 0
	for _, in := range s.Instrs {
		if !in.Dead {
			n++
		}
	}
	return n
}
