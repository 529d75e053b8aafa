package compiler

import (
	"math/big"

	"github.com/mna/txsc/lang/ast"
	"github.com/mna/txsc/lang/builtins"
	"github.com/mna/txsc/lang/errs"
	"github.com/mna/txsc/lang/token"
	"github.com/mna/txsc/lang/types"
)

// lowerKind mirrors resolver.Kind but is local to the lowering pass: only
// StackBindings correspond to a real, positioned item on the runtime
// stack. Const and Expr bindings are never materialized — every reference
// re-lowers (or re-substitutes) their bound value in place, exactly as a
// call's parameters are substituted at the call site. This keeps depth
// bookkeeping confined to the one binding kind the spec actually requires
// it for.
type lowerKind uint8

const (
	lowerConst lowerKind = iota
	lowerExpr
	lowerStack
	lowerFunc
)

type lowerBinding struct {
	kind    lowerKind
	mutable bool

	constInt   *big.Int
	constBytes []byte
	constTyp   types.Type

	expr ast.Expr // lowerExpr: the currently-bound expression (reassignable)

	bottomIndex int // lowerStack: fixed position counting up from the stack's bottom

	funcDecl *ast.FuncDeclStmt // lowerFunc
}

type lowerScope struct {
	parent *lowerScope
	names  map[string]*lowerBinding
}

func newLowerScope(parent *lowerScope) *lowerScope {
	return &lowerScope{parent: parent, names: make(map[string]*lowerBinding)}
}

func (s *lowerScope) declare(name string, b *lowerBinding) { s.names[name] = b }

func (s *lowerScope) lookup(name string) (*lowerBinding, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if b, ok := sc.names[name]; ok {
			return b, true
		}
	}
	return nil, false
}

// Lowerer turns a checked Chunk into a flat Script (spec.md Section 4.3).
type Lowerer struct {
	script *Script
	scope  *lowerScope
	folds  map[*ast.CallExpr][]byte

	stackLen    int
	bottomValid bool // false once a branch imbalance has poisoned depth tracking
	dead        bool // true once the current path is unreachable (markInvalid/OP_RETURN)

	file *token.File
	err  *errs.CompileError
}

// Lower runs the lowering pass over chunk, whose positions are attributed
// to file. folds is the Checker's table of compile-time-decoded ConstOnly
// built-in call results (spec.md Section 4.2).
func Lower(file *token.File, chunk *ast.Chunk, folds map[*ast.CallExpr][]byte) (s *Script, err error) {
	l := &Lowerer{
		script:      &Script{},
		scope:       newLowerScope(nil),
		folds:       folds,
		bottomValid: true,
		file:        file,
	}

	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*errs.CompileError); ok {
				err = ce
				return
			}
			panic(r)
		}
	}()

	var stmts []ast.Stmt
	if chunk.Block != nil {
		stmts = chunk.Block.Stmts
	}
	l.lowerStmts(stmts, true)
	return l.script, nil
}

func (l *Lowerer) pos(p token.Pos) token.Position { return l.file.Position(p) }

func (l *Lowerer) fail(kind errs.Kind, pos token.Pos, format string, args ...any) {
	if l.err == nil {
		l.err = errs.New(kind, l.pos(pos), format, args...)
	}
	panic(l.err)
}

func (l *Lowerer) emit(in Instr) {
	in.Dead = l.dead
	l.script.Instrs = append(l.script.Instrs, in)
	l.stackLen += in.Effect()
}

func (l *Lowerer) emitOp(op Op)          { l.emit(OpInstr(op)) }
func (l *Lowerer) pushInt(n *big.Int)    { l.emit(PushInt(n)) }
func (l *Lowerer) pushBytes(b []byte)    { l.emit(PushBytes(b)) }
func (l *Lowerer) pushDepth(depth int)   { l.pushInt(big.NewInt(int64(depth))) }

func (l *Lowerer) lowerStmts(stmts []ast.Stmt, topLevel bool) {
	for i, s := range stmts {
		if a, ok := s.(*ast.AssumeStmt); ok {
			if !topLevel || i != 0 {
				l.fail(errs.MisplacedAssume, a.Pos, "assume must be the first statement of the program")
			}
			l.lowerAssume(a)
			continue
		}
		l.lowerStmt(s)
	}
}

func (l *Lowerer) lowerAssume(a *ast.AssumeStmt) {
	for i, name := range a.Names {
		l.scope.declare(name, &lowerBinding{kind: lowerStack, bottomIndex: i})
	}
	l.stackLen = len(a.Names)
}

func (l *Lowerer) lowerStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.LetDeclStmt:
		l.lowerLetDecl(n)
	case *ast.AssignStmt:
		l.lowerAssign(n)
	case *ast.FuncDeclStmt:
		l.scope.declare(n.Name, &lowerBinding{kind: lowerFunc, funcDecl: n})
	case *ast.VerifyStmt:
		l.lowerExpr(n.Expr)
		l.emitOp(OP_VERIFY)
	case *ast.PushStmt:
		l.lowerExpr(n.Expr)
	case *ast.ExprStmt:
		l.lowerExprStmt(n)
	case *ast.IfStmt:
		l.lowerIf(n)
	default:
		l.fail(errs.InternalInvariant, 0, "unhandled statement type %T", s)
	}
}

func (l *Lowerer) lowerExprStmt(n *ast.ExprStmt) {
	if call, ok := n.Expr.(*ast.CallExpr); ok && call.Fn == "markInvalid" {
		l.emitOp(OP_RETURN)
		l.dead = true
		return
	}
	// Any other bare expression statement is an implicit push: its value is
	// left on the stack. The resolver has already applied the
	// implicit_pushes policy (spec.md Section 6) and failed compilation if
	// it was denied, so by the time a chunk reaches here the statement is
	// always allowed.
	l.lowerExpr(n.Expr)
}

func (l *Lowerer) lowerLetDecl(n *ast.LetDeclStmt) {
	if !n.Mutable {
		if cv, ok := l.tryFoldConst(n.Expr); ok {
			l.scope.declare(n.Name, &lowerBinding{kind: lowerConst, constInt: cv.i, constBytes: cv.b, constTyp: cv.typ})
			return
		}
	}
	l.scope.declare(n.Name, &lowerBinding{kind: lowerExpr, mutable: n.Mutable, expr: n.Expr})
}

func (l *Lowerer) lowerAssign(n *ast.AssignStmt) {
	b, ok := l.scope.lookup(n.Name)
	if !ok || b.kind != lowerExpr || !b.mutable {
		l.fail(errs.ImmutableBinding, n.Pos, "%q is not a mutable binding", n.Name)
	}
	b.expr = n.Expr
}

func (l *Lowerer) lowerIf(n *ast.IfStmt) {
	l.lowerExpr(n.Cond)
	l.emitOp(OP_IF)

	snapLen, snapValid, snapDead := l.stackLen, l.bottomValid, l.dead

	l.lowerStmts(n.Then, false)
	thenLen, thenDead := l.stackLen, l.dead

	l.stackLen, l.bottomValid, l.dead = snapLen, snapValid, snapDead
	if len(n.Else) > 0 {
		l.emitOp(OP_ELSE)
		l.lowerStmts(n.Else, false)
	}
	elseLen, elseDead := l.stackLen, l.dead

	l.emitOp(OP_ENDIF)

	if thenLen != elseLen {
		l.bottomValid = false
	}
	l.stackLen = thenLen
	l.dead = thenDead && elseDead
}

func (l *Lowerer) lowerExpr(e ast.Expr) types.Type {
	switch n := e.(type) {
	case *ast.IntLiteral:
		l.pushInt(n.Val)
		return types.Int

	case *ast.BytesLiteral:
		l.pushBytes(n.Val)
		return types.Bytes

	case *ast.NameExpr:
		return l.lowerName(n)

	case *ast.UnaryOpExpr:
		return l.lowerUnary(n)

	case *ast.BinOpExpr:
		return l.lowerBinOp(n)

	case *ast.CallExpr:
		return l.lowerCall(n)

	default:
		l.fail(errs.InternalInvariant, 0, "unhandled expression type %T", e)
		panic("unreachable")
	}
}

func (l *Lowerer) lowerName(n *ast.NameExpr) types.Type {
	b, ok := l.scope.lookup(n.Name)
	if !ok {
		l.fail(errs.UnknownName, n.Pos, "undeclared name %q", n.Name)
	}
	switch b.kind {
	case lowerConst:
		if b.constTyp == types.Int {
			l.pushInt(b.constInt)
		} else {
			l.pushBytes(b.constBytes)
		}
		return b.constTyp

	case lowerExpr:
		return l.lowerExpr(b.expr)

	case lowerStack:
		if !l.bottomValid {
			l.fail(errs.AssumptionAfterImbalancedBranch, n.Pos,
				"assumption %q is no longer valid after an imbalanced conditional", n.Name)
		}
		depth := l.stackLen - 1 - b.bottomIndex
		if depth < 0 {
			l.fail(errs.StackUnderflow, n.Pos, "assumption %q is no longer on the stack", n.Name)
		}
		l.pushDepth(depth)
		l.emitOp(OP_PICK)
		return types.Expr

	default: // lowerFunc
		l.fail(errs.TypeMismatch, n.Pos, "%q is a function; call it with ()", n.Name)
		panic("unreachable")
	}
}

func (l *Lowerer) lowerUnary(n *ast.UnaryOpExpr) types.Type {
	l.lowerExpr(n.X)
	switch n.Op {
	case token.MINUS:
		l.emitOp(OP_NEGATE)
	case token.TILDE:
		l.emitOp(OP_INVERT)
	case token.NOT:
		l.emitOp(OP_NOT)
	default:
		l.fail(errs.InternalInvariant, n.OpPos, "unhandled unary operator %s", n.Op)
	}
	return types.Int
}

var binOpTable = map[token.Token]Op{
	token.PLUS:       OP_ADD,
	token.MINUS:      OP_SUB,
	token.STAR:       OP_MUL,
	token.SLASH:      OP_DIV,
	token.PERCENT:    OP_MOD,
	token.AMPERSAND:  OP_AND,
	token.PIPE:       OP_OR,
	token.CIRCUMFLEX: OP_XOR,
	token.LTLT:       OP_LSHIFT,
	token.GTGT:       OP_RSHIFT,
	token.LT:         OP_LESSTHAN,
	token.GT:         OP_GREATERTHAN,
	token.LE:         OP_LESSTHANOREQUAL,
	token.GE:         OP_GREATERTHANOREQUAL,
	token.AND:        OP_BOOLAND,
	token.OR:         OP_BOOLOR,
}

func (l *Lowerer) lowerBinOp(n *ast.BinOpExpr) types.Type {
	l.lowerExpr(n.Left)
	l.lowerExpr(n.Right)

	switch n.Op {
	case token.EQL:
		l.emitOp(OP_EQUAL)
	case token.NEQ:
		l.emitOp(OP_EQUAL)
		l.emitOp(OP_NOT)
	default:
		op, ok := binOpTable[n.Op]
		if !ok {
			l.fail(errs.InternalInvariant, n.OpPos, "unhandled binary operator %s", n.Op)
		}
		l.emitOp(op)
	}
	return types.Int
}

func (l *Lowerer) lowerCall(n *ast.CallExpr) types.Type {
	if decoded, ok := l.folds[n]; ok {
		l.pushBytes(decoded)
		return types.Bytes
	}

	if n.Fn == "raw" {
		return l.lowerRaw(n)
	}

	if b, ok := l.scope.lookup(n.Fn); ok && b.kind == lowerFunc {
		return l.lowerFuncCall(b.funcDecl, n.Args)
	}

	return l.lowerBuiltinCall(n)
}

// lowerRaw lowers each argument against a fresh virtual stack into its own
// nested opcode IR, serializes the result, and embeds it as a single
// PushBytes literal in the outer stream (spec.md Section 4.3, "Inner
// scripts"). Lexical bindings from the enclosing scope remain visible;
// only the stack-depth bookkeeping restarts at zero.
func (l *Lowerer) lowerRaw(n *ast.CallExpr) types.Type {
	inner := &Lowerer{
		script:      &Script{},
		scope:       l.scope,
		folds:       l.folds,
		bottomValid: true,
		file:        l.file,
	}
	for _, a := range n.Args {
		inner.lowerExpr(a)
	}
	l.pushBytes(Encode(inner.script))
	return types.Bytes
}

// lowerFuncCall inlines decl's body at the call site. The resolver rejects
// push/verify/bare-expression statements inside a function body (spec.md
// Section 4.2), so decl.Body is guaranteed to have no stack effect of its
// own by the time it reaches here.
func (l *Lowerer) lowerFuncCall(decl *ast.FuncDeclStmt, args []ast.Expr) types.Type {
	inner := newLowerScope(l.scope)
	for i, p := range decl.Params {
		inner.declare(p, &lowerBinding{kind: lowerExpr, expr: args[i]})
	}

	saved := l.scope
	l.scope = inner
	l.lowerStmts(decl.Body, false)
	rt := l.lowerExpr(decl.ReturnExpr)
	l.scope = saved
	return rt
}

func (l *Lowerer) lowerBuiltinCall(n *ast.CallExpr) types.Type {
	sig, ok := builtins.Lookup(n.Fn)
	if !ok {
		l.fail(errs.UnknownName, n.FnPos, "undeclared function %q", n.Fn)
	}

	if n.Fn == "markInvalid" {
		l.emitOp(OP_RETURN)
		l.dead = true
		return types.Unknown
	}

	for _, a := range n.Args {
		l.lowerExpr(a)
	}

	switch n.Fn {
	case "abs":
		l.emitOp(OP_ABS)
	case "size":
		l.emitOp(OP_SIZE)
	case "min":
		l.emitOp(OP_MIN)
	case "max":
		l.emitOp(OP_MAX)
	case "within":
		l.emitOp(OP_WITHIN)
	case "concat":
		l.emitOp(OP_CAT)
	case "left":
		l.emitOp(OP_LEFT)
	case "right":
		l.emitOp(OP_RIGHT)
	case "substr":
		l.emitOp(OP_SUBSTR)
	case "ripemd160":
		l.emitOp(OP_RIPEMD160)
	case "sha1":
		l.emitOp(OP_SHA1)
	case "sha256":
		l.emitOp(OP_SHA256)
	case "hash160":
		l.emitOp(OP_HASH160)
	case "hash256":
		l.emitOp(OP_HASH256)
	case "checkSig":
		l.emitOp(OP_CHECKSIG)
	case "checkMultiSig":
		l.emitOp(OP_CHECKMULTISIG)
	case "checkHash160", "checkPubKey":
		// Pass-through: the checker already validated literal arguments
		// eagerly; non-literal arguments can't be validated here and are
		// left as-is on the stack.
	default:
		l.fail(errs.InternalInvariant, n.FnPos, "unhandled built-in %q", n.Fn)
	}

	return sig.Result
}

// constVal mirrors resolver.constVal; the lowering pass keeps its own copy
// rather than importing the resolver package, since the two const-folders
// serve different purposes (declaration-time propagation here vs the
// checker's type/arity validation) and must not be coupled.
type constVal struct {
	typ types.Type
	i   *big.Int
	b   []byte
}

func (l *Lowerer) tryFoldConst(e ast.Expr) (constVal, bool) {
	switch n := e.(type) {
	case *ast.IntLiteral:
		return constVal{typ: types.Int, i: n.Val}, true
	case *ast.BytesLiteral:
		return constVal{typ: types.Bytes, b: n.Val}, true
	case *ast.NameExpr:
		b, ok := l.scope.lookup(n.Name)
		if !ok || b.kind != lowerConst {
			return constVal{}, false
		}
		return constVal{typ: b.constTyp, i: b.constInt, b: b.constBytes}, true
	case *ast.UnaryOpExpr:
		x, ok := l.tryFoldConst(n.X)
		if !ok || x.typ != types.Int {
			return constVal{}, false
		}
		switch n.Op {
		case token.MINUS:
			return constVal{typ: types.Int, i: new(big.Int).Neg(x.i)}, true
		case token.TILDE:
			return constVal{typ: types.Int, i: new(big.Int).Not(x.i)}, true
		case token.NOT:
			return constVal{typ: types.Int, i: boolInt(x.i.Sign() == 0)}, true
		}
		return constVal{}, false
	case *ast.BinOpExpr:
		lv, ok := l.tryFoldConst(n.Left)
		if !ok {
			return constVal{}, false
		}
		rv, ok := l.tryFoldConst(n.Right)
		if !ok {
			return constVal{}, false
		}
		return foldConstBinOp(n.Op, lv, rv)
	default:
		return constVal{}, false
	}
}

func foldConstBinOp(op token.Token, l, r constVal) (constVal, bool) {
	if op == token.EQL || op == token.NEQ {
		var eq bool
		switch {
		case l.typ == types.Int && r.typ == types.Int:
			eq = l.i.Cmp(r.i) == 0
		case l.typ == types.Bytes && r.typ == types.Bytes:
			eq = string(l.b) == string(r.b)
		default:
			return constVal{}, false
		}
		if op == token.NEQ {
			eq = !eq
		}
		return constVal{typ: types.Int, i: boolInt(eq)}, true
	}
	if l.typ != types.Int || r.typ != types.Int {
		return constVal{}, false
	}
	a, b := l.i, r.i
	switch op {
	case token.PLUS:
		return constVal{typ: types.Int, i: new(big.Int).Add(a, b)}, true
	case token.MINUS:
		return constVal{typ: types.Int, i: new(big.Int).Sub(a, b)}, true
	case token.STAR:
		return constVal{typ: types.Int, i: new(big.Int).Mul(a, b)}, true
	case token.SLASH:
		if b.Sign() == 0 {
			return constVal{}, false
		}
		return constVal{typ: types.Int, i: new(big.Int).Quo(a, b)}, true
	case token.PERCENT:
		if b.Sign() == 0 {
			return constVal{}, false
		}
		return constVal{typ: types.Int, i: new(big.Int).Rem(a, b)}, true
	case token.AMPERSAND:
		return constVal{typ: types.Int, i: new(big.Int).And(a, b)}, true
	case token.PIPE:
		return constVal{typ: types.Int, i: new(big.Int).Or(a, b)}, true
	case token.CIRCUMFLEX:
		return constVal{typ: types.Int, i: new(big.Int).Xor(a, b)}, true
	case token.LTLT:
		if !b.IsUint64() {
			return constVal{}, false
		}
		return constVal{typ: types.Int, i: new(big.Int).Lsh(a, uint(b.Uint64()))}, true
	case token.GTGT:
		if !b.IsUint64() {
			return constVal{}, false
		}
		return constVal{typ: types.Int, i: new(big.Int).Rsh(a, uint(b.Uint64()))}, true
	case token.LT:
		return constVal{typ: types.Int, i: boolInt(a.Cmp(b) < 0)}, true
	case token.GT:
		return constVal{typ: types.Int, i: boolInt(a.Cmp(b) > 0)}, true
	case token.LE:
		return constVal{typ: types.Int, i: boolInt(a.Cmp(b) <= 0)}, true
	case token.GE:
		return constVal{typ: types.Int, i: boolInt(a.Cmp(b) >= 0)}, true
	case token.AND:
		return constVal{typ: types.Int, i: boolInt(a.Sign() != 0 && b.Sign() != 0)}, true
	case token.OR:
		return constVal{typ: types.Int, i: boolInt(a.Sign() != 0 || b.Sign() != 0)}, true
	default:
		return constVal{}, false
	}
}

func boolInt(v bool) *big.Int {
	if v {
		return big.NewInt(1)
	}
	return big.NewInt(0)
}
