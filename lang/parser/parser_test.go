package parser

import (
	"testing"

	"github.com/mna/txsc/lang/ast"
	"github.com/mna/txsc/lang/token"
	"github.com/mna/txsc/lang/types"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *ast.Chunk {
	t.Helper()
	fset := token.NewFileSet()
	ch, err := ParseChunk(fset, "test.txs", []byte(src))
	require.NoError(t, err)
	require.NotNil(t, ch)
	return ch
}

func TestParseLetDecl(t *testing.T) {
	ch := parse(t, `let x = 1 + 2;`)
	require.Len(t, ch.Block.Stmts, 1)
	let, ok := ch.Block.Stmts[0].(*ast.LetDeclStmt)
	require.True(t, ok)
	require.Equal(t, "x", let.Name)
	require.False(t, let.Mutable)
	bin, ok := let.Expr.(*ast.BinOpExpr)
	require.True(t, ok)
	require.Equal(t, token.PLUS, bin.Op)
}

func TestParseMutableLetDecl(t *testing.T) {
	ch := parse(t, `let mutable y = 0;`)
	let := ch.Block.Stmts[0].(*ast.LetDeclStmt)
	require.True(t, let.Mutable)
	require.Equal(t, "y", let.Name)
}

func TestParseAssumeStmt(t *testing.T) {
	ch := parse(t, `assume a, b, c;`)
	as, ok := ch.Block.Stmts[0].(*ast.AssumeStmt)
	require.True(t, ok)
	require.Equal(t, []string{"a", "b", "c"}, as.Names)
}

func TestParseAssignAndAugmented(t *testing.T) {
	ch := parse(t, "let mutable x = 1; x = 2; x += 3;")
	assign, ok := ch.Block.Stmts[1].(*ast.AssignStmt)
	require.True(t, ok)
	require.Equal(t, "x", assign.Name)

	aug, ok := ch.Block.Stmts[2].(*ast.AssignStmt)
	require.True(t, ok)
	bin, ok := aug.Expr.(*ast.BinOpExpr)
	require.True(t, ok)
	require.Equal(t, token.PLUS, bin.Op)
	name, ok := bin.Left.(*ast.NameExpr)
	require.True(t, ok)
	require.Equal(t, "x", name.Name)
}

func TestParseFuncDecl(t *testing.T) {
	ch := parse(t, `func int double(n) { return n * 2; }`)
	fn, ok := ch.Block.Stmts[0].(*ast.FuncDeclStmt)
	require.True(t, ok)
	require.Equal(t, "double", fn.Name)
	require.Equal(t, types.Int, fn.RetType)
	require.Equal(t, []string{"n"}, fn.Params)
	require.Empty(t, fn.Body)
	require.NotNil(t, fn.ReturnExpr)
}

func TestParseFuncDeclRequiresTrailingReturn(t *testing.T) {
	fset := token.NewFileSet()
	_, err := ParseChunk(fset, "test.txs", []byte(`func int f() { let x = 1; }`))
	require.Error(t, err)
}

func TestParseIfElse(t *testing.T) {
	ch := parse(t, `
	if 1 {
		push 2;
	} else {
		push 3;
	}
	`)
	ifs, ok := ch.Block.Stmts[0].(*ast.IfStmt)
	require.True(t, ok)
	require.Len(t, ifs.Then, 1)
	require.Len(t, ifs.Else, 1)
}

func TestParseCallExpr(t *testing.T) {
	ch := parse(t, `push sha256(concat("a", "b"));`)
	ps, ok := ch.Block.Stmts[0].(*ast.PushStmt)
	require.True(t, ok)
	call, ok := ps.Expr.(*ast.CallExpr)
	require.True(t, ok)
	require.Equal(t, "sha256", call.Fn)
	require.Len(t, call.Args, 1)
	inner, ok := call.Args[0].(*ast.CallExpr)
	require.True(t, ok)
	require.Equal(t, "concat", inner.Fn)
	require.Len(t, inner.Args, 2)
}

func TestParseOperatorPrecedence(t *testing.T) {
	ch := parse(t, `push 1 + 2 * 3;`)
	ps := ch.Block.Stmts[0].(*ast.PushStmt)
	bin, ok := ps.Expr.(*ast.BinOpExpr)
	require.True(t, ok)
	require.Equal(t, token.PLUS, bin.Op)
	rhs, ok := bin.Right.(*ast.BinOpExpr)
	require.True(t, ok)
	require.Equal(t, token.STAR, rhs.Op)
}

func TestParseParenOverridesPrecedence(t *testing.T) {
	ch := parse(t, `push (1 + 2) * 3;`)
	ps := ch.Block.Stmts[0].(*ast.PushStmt)
	bin, ok := ps.Expr.(*ast.BinOpExpr)
	require.True(t, ok)
	require.Equal(t, token.STAR, bin.Op)
	lhs, ok := bin.Left.(*ast.BinOpExpr)
	require.True(t, ok)
	require.Equal(t, token.PLUS, lhs.Op)
}

func TestParseUnaryOps(t *testing.T) {
	ch := parse(t, `push not (1 == 2);`)
	ps := ch.Block.Stmts[0].(*ast.PushStmt)
	u, ok := ps.Expr.(*ast.UnaryOpExpr)
	require.True(t, ok)
	require.Equal(t, token.NOT, u.Op)
}

func TestParseVerifyStmt(t *testing.T) {
	ch := parse(t, `verify 1 == 1;`)
	_, ok := ch.Block.Stmts[0].(*ast.VerifyStmt)
	require.True(t, ok)
}

func TestParseErrorUnexpectedToken(t *testing.T) {
	fset := token.NewFileSet()
	_, err := ParseChunk(fset, "test.txs", []byte(`let = 1;`))
	require.Error(t, err)
}

func TestParseErrorUnterminatedBlock(t *testing.T) {
	fset := token.NewFileSet()
	_, err := ParseChunk(fset, "test.txs", []byte(`if 1 { push 1;`))
	require.Error(t, err)
}
