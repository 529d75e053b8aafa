package optimizer

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"github.com/mna/txsc/internal/compilectx"
	"github.com/mna/txsc/internal/refmachine"
	"github.com/mna/txsc/lang/compiler"
	"github.com/stretchr/testify/require"
)

// runOptimized and runDisabled mirror the two Optimize settings a
// *compilectx.Context can carry, discarding the rewrite log.
func runOptimized(s *compiler.Script) *compiler.Script {
	cctx := compilectx.Default()
	cctx.Optimize = true
	return Run(s, cctx, nil)
}

func runDisabled(s *compiler.Script) *compiler.Script {
	cctx := compilectx.Default()
	cctx.Optimize = false
	return Run(s, cctx, nil)
}

func TestRunStripsDeadInstructionsWhenDisabled(t *testing.T) {
	s := &compiler.Script{}
	s.Instrs = append(s.Instrs, compiler.OpInstr(compiler.OP_RETURN))
	dead := compiler.PushInt(big.NewInt(1))
	dead.Dead = true
	s.Instrs = append(s.Instrs, dead)

	out := runDisabled(s)
	require.Len(t, out.Instrs, 1)
	require.Equal(t, compiler.OP_RETURN, out.Instrs[0].Op)
}

func TestFoldConstantsCollapsesArithmetic(t *testing.T) {
	s := &compiler.Script{}
	s.Instrs = append(s.Instrs,
		compiler.PushInt(big.NewInt(3)),
		compiler.PushInt(big.NewInt(4)),
		compiler.OpInstr(compiler.OP_ADD),
	)
	out := runOptimized(s)
	require.Len(t, out.Instrs, 1)
	require.Equal(t, compiler.KindPushInt, out.Instrs[0].Kind)
	require.Equal(t, int64(7), out.Instrs[0].Int.Int64())
}

func TestFoldConstantsSkipsDivisionByZero(t *testing.T) {
	s := &compiler.Script{}
	s.Instrs = append(s.Instrs,
		compiler.PushInt(big.NewInt(3)),
		compiler.PushInt(big.NewInt(0)),
		compiler.OpInstr(compiler.OP_DIV),
	)
	out := runOptimized(s)
	require.Len(t, out.Instrs, 3)
}

func TestPeepholeZeroPickBecomesDup(t *testing.T) {
	s := &compiler.Script{}
	s.Instrs = append(s.Instrs,
		compiler.PushInt(big.NewInt(0)),
		compiler.OpInstr(compiler.OP_PICK),
	)
	out := runOptimized(s)
	require.Len(t, out.Instrs, 1)
	require.Equal(t, compiler.OP_DUP, out.Instrs[0].Op)
}

func TestPeepholePushThenDropCancels(t *testing.T) {
	s := &compiler.Script{}
	s.Instrs = append(s.Instrs,
		compiler.PushBytes([]byte("x")),
		compiler.OpInstr(compiler.OP_DROP),
	)
	out := runOptimized(s)
	require.Empty(t, out.Instrs)
}

func TestPeepholeDupDropCancels(t *testing.T) {
	s := &compiler.Script{}
	s.Instrs = append(s.Instrs,
		compiler.OpInstr(compiler.OP_DUP),
		compiler.OpInstr(compiler.OP_DROP),
	)
	out := runOptimized(s)
	require.Empty(t, out.Instrs)
}

func TestPeepholeDoubleNegateCancels(t *testing.T) {
	s := &compiler.Script{}
	s.Instrs = append(s.Instrs,
		compiler.OpInstr(compiler.OP_NEGATE),
		compiler.OpInstr(compiler.OP_NEGATE),
	)
	out := runOptimized(s)
	require.Empty(t, out.Instrs)
}

func TestPeepholeDoubleNotCancels(t *testing.T) {
	s := &compiler.Script{}
	s.Instrs = append(s.Instrs,
		compiler.OpInstr(compiler.OP_NOT),
		compiler.OpInstr(compiler.OP_NOT),
	)
	out := runOptimized(s)
	require.Empty(t, out.Instrs)
}

func TestPeepholeEqualVerifyFuses(t *testing.T) {
	s := &compiler.Script{}
	s.Instrs = append(s.Instrs,
		compiler.OpInstr(compiler.OP_EQUAL),
		compiler.OpInstr(compiler.OP_VERIFY),
	)
	out := runOptimized(s)
	require.Len(t, out.Instrs, 1)
	require.Equal(t, compiler.OP_EQUALVERIFY, out.Instrs[0].Op)
}

func TestRunLogsOneLinePerRewriteSite(t *testing.T) {
	s := &compiler.Script{}
	s.Instrs = append(s.Instrs,
		compiler.PushInt(big.NewInt(3)),
		compiler.PushInt(big.NewInt(4)),
		compiler.OpInstr(compiler.OP_ADD),
	)
	var buf bytes.Buffer
	cctx := compilectx.Default()
	out := Run(s, cctx, &buf)
	require.Len(t, out.Instrs, 1)
	require.Contains(t, buf.String(), "rewrite const-fold")
}

func TestRunVerbosityAddsRewriteDetail(t *testing.T) {
	s := &compiler.Script{}
	s.Instrs = append(s.Instrs,
		compiler.OpInstr(compiler.OP_DUP),
		compiler.OpInstr(compiler.OP_DROP),
	)
	var buf bytes.Buffer
	cctx := compilectx.Default()
	cctx.Verbosity = 1
	Run(s, cctx, &buf)
	require.True(t, strings.Contains(buf.String(), "OP_DUP OP_DROP"))
}

func TestRunDisabledOptimizeEmitsNoRewriteLog(t *testing.T) {
	s := &compiler.Script{}
	s.Instrs = append(s.Instrs,
		compiler.PushInt(big.NewInt(3)),
		compiler.PushInt(big.NewInt(4)),
		compiler.OpInstr(compiler.OP_ADD),
	)
	var buf bytes.Buffer
	cctx := compilectx.Default()
	cctx.Optimize = false
	Run(s, cctx, &buf)
	require.Empty(t, buf.String())
}

// TestOptimizerPreservesBehavior checks the optimizer-equivalence property:
// running an unoptimized and an optimized form of the same script against
// the same seed stack must produce the same outcome.
func TestOptimizerPreservesBehavior(t *testing.T) {
	cases := []struct {
		name    string
		script  func() *compiler.Script
		initial []refmachine.Value
	}{
		{
			name: "constant arithmetic chain",
			script: func() *compiler.Script {
				s := &compiler.Script{}
				s.Instrs = append(s.Instrs,
					compiler.PushInt(big.NewInt(2)),
					compiler.PushInt(big.NewInt(3)),
					compiler.OpInstr(compiler.OP_ADD),
					compiler.PushInt(big.NewInt(4)),
					compiler.OpInstr(compiler.OP_MUL),
				)
				return s
			},
		},
		{
			name: "dup drop noise around real work",
			script: func() *compiler.Script {
				s := &compiler.Script{}
				s.Instrs = append(s.Instrs,
					compiler.OpInstr(compiler.OP_DUP),
					compiler.OpInstr(compiler.OP_DROP),
					compiler.PushInt(big.NewInt(1)),
					compiler.OpInstr(compiler.OP_ADD),
				)
				return s
			},
			initial: []refmachine.Value{refmachine.IntValue(41)},
		},
		{
			name: "equal then verify",
			script: func() *compiler.Script {
				s := &compiler.Script{}
				s.Instrs = append(s.Instrs,
					compiler.PushInt(big.NewInt(5)),
					compiler.PushInt(big.NewInt(5)),
					compiler.OpInstr(compiler.OP_EQUAL),
					compiler.OpInstr(compiler.OP_VERIFY),
					compiler.PushInt(big.NewInt(9)),
				)
				return s
			},
		},
		{
			name: "zero pick equals dup",
			script: func() *compiler.Script {
				s := &compiler.Script{}
				s.Instrs = append(s.Instrs,
					compiler.PushInt(big.NewInt(0)),
					compiler.OpInstr(compiler.OP_PICK),
					compiler.OpInstr(compiler.OP_ADD),
				)
				return s
			},
			initial: []refmachine.Value{refmachine.IntValue(17)},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			unoptimized := tc.script()
			optimized := runOptimized(tc.script())

			wantStack, wantErr := refmachine.Run(unoptimized, tc.initial)
			gotStack, gotErr := refmachine.Run(optimized, tc.initial)

			require.Equal(t, wantErr, gotErr)
			require.Equal(t, len(wantStack), len(gotStack))
			for i := range wantStack {
				w, g := wantStack[i], gotStack[i]
				if w.Bytes != nil || g.Bytes != nil {
					require.Equal(t, w.Bytes, g.Bytes)
				} else {
					require.Equal(t, 0, w.Int.Cmp(g.Int))
				}
			}
		})
	}
}
