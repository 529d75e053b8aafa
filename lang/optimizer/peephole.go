package optimizer

import "github.com/mna/txsc/lang/compiler"

// peephole applies local instruction-pair/triple rewrites to s, returning
// whether anything changed. It is re-run to a fixpoint by Run because one
// rewrite can expose another (e.g. folding a PICK depth of 0 to OP_DUP can
// then make an adjacent OP_DUP/OP_DROP pair cancel).
func peephole(s *compiler.Script, rl rewriteLog) bool {
	changed := false

	// PUSHINT 0; OP_PICK is just OP_DUP.
	for i := 0; i+1 <= len(s.Instrs)-1; i++ {
		a, b := s.Instrs[i], s.Instrs[i+1]
		if a.Kind == compiler.KindPushInt && a.Int.Sign() == 0 && b.Kind == compiler.KindOp && b.Op == compiler.OP_PICK {
			rl.log("pick0-dup", "PushInt(0) OP_PICK -> OP_DUP")
			s.Instrs[i] = compiler.OpInstr(compiler.OP_DUP)
			s.Instrs = append(s.Instrs[:i+1], s.Instrs[i+2:]...)
			changed = true
			i = -1
		}
	}

	// A pure push immediately dropped is a no-op.
	for i := 0; i <= len(s.Instrs)-2; i++ {
		a, b := s.Instrs[i], s.Instrs[i+1]
		if (a.Kind == compiler.KindPushInt || a.Kind == compiler.KindPushBytes) &&
			b.Kind == compiler.KindOp && b.Op == compiler.OP_DROP {
			rl.log("push-drop", "push immediately dropped, removed")
			s.Instrs = append(s.Instrs[:i], s.Instrs[i+2:]...)
			changed = true
			i = -1
		}
	}

	// DUP immediately DROPped cancels out.
	for i := 0; i <= len(s.Instrs)-2; i++ {
		a, b := s.Instrs[i], s.Instrs[i+1]
		if a.Kind == compiler.KindOp && a.Op == compiler.OP_DUP && b.Kind == compiler.KindOp && b.Op == compiler.OP_DROP {
			rl.log("dup-drop", "OP_DUP OP_DROP -> (removed)")
			s.Instrs = append(s.Instrs[:i], s.Instrs[i+2:]...)
			changed = true
			i = -1
		}
	}

	// Double negation cancels out, for arithmetic, bitwise, and logical NOT.
	for i := 0; i <= len(s.Instrs)-2; i++ {
		a, b := s.Instrs[i], s.Instrs[i+1]
		if a.Kind != compiler.KindOp || b.Kind != compiler.KindOp || a.Op != b.Op {
			continue
		}
		if a.Op == compiler.OP_NEGATE || a.Op == compiler.OP_INVERT || a.Op == compiler.OP_NOT {
			rl.log("double-negate", a.Op.String()+" "+a.Op.String()+" -> (removed)")
			s.Instrs = append(s.Instrs[:i], s.Instrs[i+2:]...)
			changed = true
			i = -1
		}
	}

	// OP_EQUAL followed directly by OP_VERIFY fuses into the dedicated
	// opcode, saving an instruction with identical behavior.
	for i := 0; i <= len(s.Instrs)-2; i++ {
		a, b := s.Instrs[i], s.Instrs[i+1]
		if a.Kind == compiler.KindOp && a.Op == compiler.OP_EQUAL && b.Kind == compiler.KindOp && b.Op == compiler.OP_VERIFY {
			rl.log("equal-verify-fuse", "OP_EQUAL OP_VERIFY -> OP_EQUALVERIFY")
			s.Instrs[i] = compiler.OpInstr(compiler.OP_EQUALVERIFY)
			s.Instrs = append(s.Instrs[:i+1], s.Instrs[i+2:]...)
			changed = true
			i = -1
		}
	}

	return changed
}
