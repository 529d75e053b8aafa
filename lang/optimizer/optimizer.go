// Package optimizer rewrites a lowered Script into a smaller, equivalent
// one (spec.md Section 4.4): constant folding across instructions the
// lowering pass couldn't fold itself (an operand on a named stack
// assumption), peephole simplification of redundant instruction pairs, and
// physical removal of the dead instructions the lowering pass only
// marked. Every rewrite here must preserve the script's observable
// behavior; internal/refmachine is what the test suite uses to check that.
package optimizer

import (
	"fmt"
	"io"
	"math/big"

	"github.com/mna/txsc/internal/compilectx"
	"github.com/mna/txsc/lang/compiler"
)

// rewriteLog writes one line per rewrite site to an io.Writer, as spec.md
// Section 4.4 requires at the default verbosity level; a nil writer (or one
// built from a nil Context) makes it a no-op. Verbosity 0, the Context
// default, already logs one line per site; verbosity 1 and up append the
// before/after instruction detail to that same line.
type rewriteLog struct {
	w         io.Writer
	verbosity int
}

func (l rewriteLog) log(site, detail string) {
	if l.w == nil {
		return
	}
	if l.verbosity >= 1 && detail != "" {
		fmt.Fprintf(l.w, "optimizer: rewrite %s: %s\n", site, detail)
		return
	}
	fmt.Fprintf(l.w, "optimizer: rewrite %s\n", site)
}

// Run applies the optimizer's rewrite passes to s and returns a new,
// independent Script. If cctx.Optimize is false, Run only strips the
// already-dead instructions the lowering pass marked (the pipeline always
// needs a clean script to emit; the rewrite passes are what's optional).
// Every rewrite site is logged to w per cctx.Verbosity (spec.md Section
// 4.4); w may be nil to discard the log entirely.
func Run(s *compiler.Script, cctx *compilectx.Context, w io.Writer) *compiler.Script {
	out := stripDead(s)
	if !cctx.Optimize {
		return out
	}

	rl := rewriteLog{w: w, verbosity: cctx.Verbosity}
	for {
		changed := false
		if foldConstants(out, rl) {
			changed = true
		}
		if peephole(out, rl) {
			changed = true
		}
		if stripDeadInPlace(out) {
			changed = true
		}
		if !changed {
			break
		}
	}
	return out
}

func stripDead(s *compiler.Script) *compiler.Script {
	out := &compiler.Script{}
	for _, in := range s.Instrs {
		if !in.Dead {
			out.Instrs = append(out.Instrs, in)
		}
	}
	return out
}

// stripDeadInPlace removes any instruction still marked Dead. Run has
// already stripped the lowering pass's marks and no rewrite here sets Dead,
// so on the scripts Run builds it finds nothing to remove.
func stripDeadInPlace(s *compiler.Script) bool {
	changed := false
	kept := s.Instrs[:0]
	for _, in := range s.Instrs {
		if in.Dead {
			changed = true
			continue
		}
		kept = append(kept, in)
	}
	s.Instrs = kept
	return changed
}

// foldConstants collapses adjacent int-literal pushes followed by a pure
// arithmetic/bitwise/comparison opcode into a single push of the result,
// a fixpoint over the whole instruction list.
func foldConstants(s *compiler.Script, rl rewriteLog) bool {
	changed := false
	for i := 0; i <= len(s.Instrs)-3; i++ {
		a, b, op := s.Instrs[i], s.Instrs[i+1], s.Instrs[i+2]
		if a.Kind != compiler.KindPushInt || b.Kind != compiler.KindPushInt || op.Kind != compiler.KindOp {
			continue
		}
		folded, ok := foldBinaryOp(op.Op, a.Int, b.Int)
		if !ok {
			continue
		}
		replacement := compiler.PushInt(folded)
		rl.log("const-fold", fmt.Sprintf("%s %s %s -> %s", a.Int, b.Int, op.Op, folded))
		s.Instrs = append(s.Instrs[:i], append([]compiler.Instr{replacement}, s.Instrs[i+3:]...)...)
		changed = true
		i = -1 // restart the scan; the list just shrank
	}
	return changed
}

func foldBinaryOp(op compiler.Op, a, b *big.Int) (*big.Int, bool) {
	switch op {
	case compiler.OP_ADD:
		return new(big.Int).Add(a, b), true
	case compiler.OP_SUB:
		return new(big.Int).Sub(a, b), true
	case compiler.OP_MUL:
		return new(big.Int).Mul(a, b), true
	case compiler.OP_DIV:
		if b.Sign() == 0 {
			return nil, false
		}
		return new(big.Int).Quo(a, b), true
	case compiler.OP_MOD:
		if b.Sign() == 0 {
			return nil, false
		}
		return new(big.Int).Rem(a, b), true
	case compiler.OP_AND:
		return new(big.Int).And(a, b), true
	case compiler.OP_OR:
		return new(big.Int).Or(a, b), true
	case compiler.OP_XOR:
		return new(big.Int).Xor(a, b), true
	case compiler.OP_MIN:
		if a.Cmp(b) <= 0 {
			return a, true
		}
		return b, true
	case compiler.OP_MAX:
		if a.Cmp(b) >= 0 {
			return a, true
		}
		return b, true
	case compiler.OP_LESSTHAN:
		return boolInt(a.Cmp(b) < 0), true
	case compiler.OP_GREATERTHAN:
		return boolInt(a.Cmp(b) > 0), true
	case compiler.OP_LESSTHANOREQUAL:
		return boolInt(a.Cmp(b) <= 0), true
	case compiler.OP_GREATERTHANOREQUAL:
		return boolInt(a.Cmp(b) >= 0), true
	case compiler.OP_EQUAL:
		return boolInt(a.Cmp(b) == 0), true
	case compiler.OP_BOOLAND:
		return boolInt(a.Sign() != 0 && b.Sign() != 0), true
	case compiler.OP_BOOLOR:
		return boolInt(a.Sign() != 0 || b.Sign() != 0), true
	default:
		return nil, false
	}
}

func boolInt(v bool) *big.Int {
	if v {
		return big.NewInt(1)
	}
	return big.NewInt(0)
}
