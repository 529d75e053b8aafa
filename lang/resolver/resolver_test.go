package resolver

import (
	"testing"

	"github.com/mna/txsc/internal/compilectx"
	"github.com/mna/txsc/lang/ast"
	"github.com/mna/txsc/lang/errs"
	"github.com/mna/txsc/lang/parser"
	"github.com/mna/txsc/lang/token"
	"github.com/mna/txsc/lang/types"
	"github.com/stretchr/testify/require"
)

func check(t *testing.T, src string) (*Checker, error) {
	t.Helper()
	fset := token.NewFileSet()
	chunk, err := parser.ParseChunk(fset, "test.txs", []byte(src))
	require.NoError(t, err)
	return Check(fset.File("test.txs"), chunk, nil)
}

func kindOf(t *testing.T, err error) errs.Kind {
	t.Helper()
	ce, ok := err.(*errs.CompileError)
	require.True(t, ok, "expected *errs.CompileError, got %T", err)
	return ce.Kind
}

func TestCheckAssumeDeclaresStackBindingsFromTop(t *testing.T) {
	c, err := check(t, `assume a, b, c; push a; push b; push c;`)
	require.NoError(t, err)
	bc, ok := c.cur.lookup("c")
	require.True(t, ok)
	require.Equal(t, StackBinding, bc.Kind)
	require.Equal(t, 0, bc.Depth)
	ba, ok := c.cur.lookup("a")
	require.True(t, ok)
	require.Equal(t, 2, ba.Depth)
}

func TestCheckAssumeMustBeFirstStatement(t *testing.T) {
	_, err := check(t, `let x = 1; assume a;`)
	require.Error(t, err)
	require.Equal(t, errs.MisplacedAssume, kindOf(t, err))
}

func TestCheckLetDeclConstFolding(t *testing.T) {
	c, err := check(t, `let x = 1 + 2;`)
	require.NoError(t, err)
	b, ok := c.cur.lookup("x")
	require.True(t, ok)
	require.Equal(t, ConstBinding, b.Kind)
	require.Equal(t, int64(3), b.ConstInt.Int64())
}

func TestCheckMutableLetIsNeverConstFolded(t *testing.T) {
	c, err := check(t, `let mutable x = 1 + 2;`)
	require.NoError(t, err)
	b, ok := c.cur.lookup("x")
	require.True(t, ok)
	require.Equal(t, ExprBinding, b.Kind)
}

func TestCheckAssignRequiresMutableBinding(t *testing.T) {
	_, err := check(t, `let x = 1; x = 2;`)
	require.Error(t, err)
	require.Equal(t, errs.ImmutableBinding, kindOf(t, err))
}

func TestCheckAssignTypeMismatch(t *testing.T) {
	_, err := check(t, `let mutable x = 1; x = "a";`)
	require.Error(t, err)
	require.Equal(t, errs.TypeMismatch, kindOf(t, err))
}

func TestCheckUndeclaredName(t *testing.T) {
	_, err := check(t, `push y;`)
	require.Error(t, err)
	require.Equal(t, errs.UnknownName, kindOf(t, err))
}

func TestCheckRedeclaredNameInSameScope(t *testing.T) {
	_, err := check(t, `let x = 1; let x = 2;`)
	require.Error(t, err)
	require.Equal(t, errs.RedeclaredName, kindOf(t, err))
}

func TestCheckShadowingInNestedScopeAllowed(t *testing.T) {
	_, err := check(t, `let x = 1; if x { let x = 2; push x; }`)
	require.NoError(t, err)
}

func TestCheckFuncDeclReturnTypeMismatch(t *testing.T) {
	_, err := check(t, `func bytes f() { return 1; }`)
	require.Error(t, err)
	require.Equal(t, errs.TypeMismatch, kindOf(t, err))
}

func TestCheckFuncCallArityMismatch(t *testing.T) {
	_, err := check(t, `func int f(a, b) { return a + b; } push f(1);`)
	require.Error(t, err)
	require.Equal(t, errs.ArityMismatch, kindOf(t, err))
}

func TestCheckFuncBodyRejectsPushStmt(t *testing.T) {
	_, err := check(t, `func int f(x) { push 99; return x; }`)
	require.Error(t, err)
	require.Equal(t, errs.ParseError, kindOf(t, err))
}

func TestCheckFuncBodyRejectsVerifyStmt(t *testing.T) {
	_, err := check(t, `func int f(x) { verify x; return x; }`)
	require.Error(t, err)
	require.Equal(t, errs.ParseError, kindOf(t, err))
}

func TestCheckFuncBodyRejectsBareExprStmt(t *testing.T) {
	_, err := check(t, `func int f(x) { x; return x; }`)
	require.Error(t, err)
	require.Equal(t, errs.ParseError, kindOf(t, err))
}

func TestCheckFuncBodyAllowsLetDeclStmt(t *testing.T) {
	_, err := check(t, `func int f(x) { let y = x + 1; return y; }`)
	require.NoError(t, err)
}

func TestCheckPushVerifyAllowedAtTopLevel(t *testing.T) {
	_, err := check(t, `push 1; verify 1;`)
	require.NoError(t, err)
}

func checkWithPolicy(t *testing.T, src string, policy compilectx.ImplicitPushPolicy) (*Checker, error) {
	t.Helper()
	fset := token.NewFileSet()
	chunk, err := parser.ParseChunk(fset, "test.txs", []byte(src))
	require.NoError(t, err)
	cctx := compilectx.Default()
	cctx.ImplicitPushes = policy
	return Check(fset.File("test.txs"), chunk, cctx)
}

func TestCheckImplicitPushAllowedUnderAllowPolicy(t *testing.T) {
	c, err := checkWithPolicy(t, `assume x; x;`, compilectx.ImplicitPushAllow)
	require.NoError(t, err)
	require.Empty(t, c.Warnings)
}

func TestCheckImplicitPushWarnsUnderWarnPolicy(t *testing.T) {
	c, err := checkWithPolicy(t, `assume x; x;`, compilectx.ImplicitPushWarn)
	require.NoError(t, err)
	require.Len(t, c.Warnings, 1)
}

func TestCheckImplicitPushDeniedUnderDenyPolicy(t *testing.T) {
	_, err := checkWithPolicy(t, `assume x; x;`, compilectx.ImplicitPushDeny)
	require.Error(t, err)
	require.Equal(t, errs.ValidationFailed, kindOf(t, err))
}

func TestCheckCallingNonFunction(t *testing.T) {
	_, err := check(t, `let x = 1; push x();`)
	require.Error(t, err)
	require.Equal(t, errs.TypeMismatch, kindOf(t, err))
}

func TestCheckBuiltinArgTypeMismatch(t *testing.T) {
	_, err := check(t, `push sha256(1);`)
	require.Error(t, err)
	require.Equal(t, errs.TypeMismatch, kindOf(t, err))
}

func TestCheckBuiltinUnknownName(t *testing.T) {
	_, err := check(t, `push nosuchbuiltin(1);`)
	require.Error(t, err)
	require.Equal(t, errs.UnknownName, kindOf(t, err))
}

func TestCheckIfConditionMustBeInt(t *testing.T) {
	_, err := check(t, `if "x" { push 1; }`)
	require.Error(t, err)
	require.Equal(t, errs.TypeMismatch, kindOf(t, err))
}

func TestCheckAddressToHash160ConstFolding(t *testing.T) {
	c, err := check(t, `push addressToHash160("1BoatSLRHtKNngkdXEeobR76b53LETtpyT");`)
	require.NoError(t, err)
	require.Len(t, c.ConstFolds, 1)
	for _, v := range c.ConstFolds {
		require.Len(t, v, 20)
	}
}

func TestCheckAddressToHash160RejectsNonConstArg(t *testing.T) {
	_, err := check(t, `assume addr; push addressToHash160(addr);`)
	require.Error(t, err)
	require.Equal(t, errs.ValidationFailed, kindOf(t, err))
}

func TestCheckRawCallBypassesBuiltinsTable(t *testing.T) {
	c, err := check(t, `push raw(1, "a", sha256("b"));`)
	require.NoError(t, err)
	require.NoError(t, c.err)
}

func TestCheckUnusedBindingWarning(t *testing.T) {
	c, err := check(t, `let x = 1; push 2;`)
	require.NoError(t, err)
	require.NotEmpty(t, c.Warnings)
	require.Contains(t, c.Warnings[0].Msg, `"x"`)
}

func TestCheckNoWarningWhenBindingUsed(t *testing.T) {
	c, err := check(t, `let x = 1; push x;`)
	require.NoError(t, err)
	require.Empty(t, c.Warnings)
}

func TestCheckMarkInvalidTakesNoArguments(t *testing.T) {
	_, err := check(t, `push markInvalid(1);`)
	require.Error(t, err)
	require.Equal(t, errs.ArityMismatch, kindOf(t, err))
}

func TestCheckExprTypeAnnotation(t *testing.T) {
	fset := token.NewFileSet()
	chunk, err := parser.ParseChunk(fset, "test.txs", []byte(`push 1 + 2;`))
	require.NoError(t, err)
	_, err = Check(fset.File("test.txs"), chunk, nil)
	require.NoError(t, err)

	ps := chunk.Block.Stmts[0].(*ast.PushStmt)
	require.Equal(t, types.Int, ps.Expr.(*ast.BinOpExpr).Typ)
}
