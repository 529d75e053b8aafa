// Package resolver implements the symbol table and semantic checker of
// spec.md Sections 4.1 ("Symbol Table") and 4.2 ("Semantic Check"). It
// walks a parsed Chunk, declares and looks up Bindings through a stack of
// lexical scopes, and annotates every Expr node with its static Type.
//
// Stack-effect-sensitive checks — conditional branch balancing and the
// resulting invalidation of in-scope StackBindings — are deferred to the
// lowering pass in lang/compiler, which already tracks the virtual stack
// needed to compute a branch's net effect; duplicating that tracking here
// would only let the two disagree.
package resolver

import (
	"fmt"
	"math/big"

	"github.com/mna/txsc/internal/compilectx"
	"github.com/mna/txsc/lang/ast"
	"github.com/mna/txsc/lang/builtins"
	"github.com/mna/txsc/lang/errs"
	"github.com/mna/txsc/lang/token"
	"github.com/mna/txsc/lang/types"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// Scope is one level of lexical nesting: a flat name-to-Binding table with
// a link to its enclosing scope.
type Scope struct {
	parent *Scope
	names  map[string]*Binding
}

func newScope(parent *Scope) *Scope {
	return &Scope{parent: parent, names: make(map[string]*Binding)}
}

// declare adds b to s, failing if the name already exists in this exact
// scope (shadowing an outer scope's binding is allowed; redeclaring in the
// same scope is not).
func (s *Scope) declare(b *Binding) *errs.CompileError {
	if _, ok := s.names[b.Name]; ok {
		return errs.New(errs.RedeclaredName, token.Position{}, "%q is already declared in this scope", b.Name)
	}
	s.names[b.Name] = b
	return nil
}

// lookup searches s and its ancestors, innermost first.
func (s *Scope) lookup(name string) (*Binding, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if b, ok := sc.names[name]; ok {
			return b, true
		}
	}
	return nil, false
}

// Checker walks a Chunk and produces the annotated, validated AST that the
// compiler's lowering pass consumes.
type Checker struct {
	file *token.File
	cur  *Scope
	cctx *compilectx.Context

	// ConstFolds holds the compile-time-decoded value of every ConstOnly
	// built-in call validated during the check, keyed by the CallExpr node
	// itself, since that value has no AST representation of its own to
	// substitute in place.
	ConstFolds map[*ast.CallExpr][]byte

	Warnings []errs.Warning
	err      *errs.CompileError

	// funcDepth counts enclosing FuncDeclStmt bodies. A function body is
	// inlined verbatim at every call site (spec.md Section 4.3), so any
	// statement that leaves a value on the stack — push, verify, or a bare
	// expression — would leak that value into the caller at every call,
	// not just once; such statements are only meaningful at top level.
	funcDepth int
}

// Check runs the semantic checker over chunk, whose positions are
// attributed to file. cctx governs the implicit_pushes policy (spec.md
// Section 6); a nil cctx checks with compilectx.Default().
func Check(file *token.File, chunk *ast.Chunk, cctx *compilectx.Context) (c *Checker, err error) {
	if cctx == nil {
		cctx = compilectx.Default()
	}
	c = &Checker{file: file, cur: newScope(nil), cctx: cctx, ConstFolds: make(map[*ast.CallExpr][]byte)}

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
	c.checkStmts(stmts, true)
	c.warnUnused(c.cur)
	return c, nil
}

// warnUnused reports every name declared in s but never referenced. Names
// are sorted first so the warning order is deterministic across runs,
// independent of Go's randomized map iteration.
func (c *Checker) warnUnused(s *Scope) {
	names := maps.Keys(s.names)
	slices.Sort(names)
	for _, name := range names {
		b := s.names[name]
		if b.Used == 0 {
			start, _ := b.Decl.Span()
			c.warn(start, "%q is declared but never used", name)
		}
	}
}

func (c *Checker) pos(p token.Pos) token.Position { return c.file.Position(p) }

func (c *Checker) fail(kind errs.Kind, pos token.Pos, format string, args ...any) {
	if c.err == nil {
		c.err = errs.New(kind, c.pos(pos), format, args...)
	}
	panic(c.err)
}

func (c *Checker) warn(pos token.Pos, format string, args ...any) {
	c.Warnings = append(c.Warnings, errs.Warning{Pos: c.pos(pos), Msg: fmt.Sprintf(format, args...)})
}

// checkStmts checks a sequence of statements in the current scope. topLevel
// is true only for the chunk's outermost block, the only place an assume
// statement may legally appear, and only as stmts[0].
func (c *Checker) checkStmts(stmts []ast.Stmt, topLevel bool) {
	for i, s := range stmts {
		if a, ok := s.(*ast.AssumeStmt); ok {
			if !topLevel || i != 0 {
				c.fail(errs.MisplacedAssume, a.Pos, "assume must be the first statement of the program")
			}
			c.checkAssume(a)
			continue
		}
		c.checkStmt(s)
	}
}

func (c *Checker) checkAssume(a *ast.AssumeStmt) {
	n := len(a.Names)
	for i, name := range a.Names {
		depth := n - 1 - i
		b := &Binding{Kind: StackBinding, Name: name, Decl: a, Depth: depth}
		if err := c.cur.declare(b); err != nil {
			err.Pos = c.pos(a.Pos)
			panic(err)
		}
	}
}

func (c *Checker) checkStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.LetDeclStmt:
		c.checkLetDecl(n)
	case *ast.AssignStmt:
		c.checkAssign(n)
	case *ast.FuncDeclStmt:
		c.checkFuncDecl(n)
	case *ast.VerifyStmt:
		c.rejectInFuncBody(n.Pos, "verify")
		c.checkExpr(n.Expr)
	case *ast.PushStmt:
		c.rejectInFuncBody(n.Pos, "push")
		c.checkExpr(n.Expr)
	case *ast.ExprStmt:
		c.checkExprStmt(n)
	case *ast.IfStmt:
		c.checkIf(n)
	case *ast.ReturnStmt:
		c.fail(errs.ParseError, n.Pos, "return is only valid as a function's final statement")
	case *ast.AssumeStmt:
		c.fail(errs.MisplacedAssume, n.Pos, "assume must be the first statement of the program")
	default:
		c.fail(errs.InternalInvariant, 0, "unhandled statement type %T", s)
	}
}

// checkExprStmt checks a bare expression statement. markInvalid() is
// always allowed (it never leaves a value on the stack; it halts the
// script outright); any other bare expression is an implicit push, gated
// by funcDepth (spec.md Section 4.2) and by cctx.ImplicitPushes (spec.md
// Section 6).
func (c *Checker) checkExprStmt(n *ast.ExprStmt) {
	if call, ok := n.Expr.(*ast.CallExpr); ok && call.Fn == "markInvalid" {
		c.checkExpr(n.Expr)
		return
	}

	start, _ := n.Span()
	c.rejectInFuncBody(start, "a bare expression statement")
	c.checkExpr(n.Expr)

	switch c.cctx.ImplicitPushes {
	case compilectx.ImplicitPushDeny:
		c.fail(errs.ValidationFailed, start, "implicit push of a bare expression statement is denied by configuration")
	case compilectx.ImplicitPushWarn:
		c.warn(start, "bare expression statement implicitly pushes a value onto the stack")
	}
}

// rejectInFuncBody fails if what is being checked sits inside a function
// body (spec.md Section 4.2): inlining makes such a statement's stack
// effect visible at every call site, never just once.
func (c *Checker) rejectInFuncBody(pos token.Pos, what string) {
	if c.funcDepth > 0 {
		c.fail(errs.ParseError, pos, "%s is not allowed inside a function body", what)
	}
}

func (c *Checker) checkLetDecl(n *ast.LetDeclStmt) {
	typ := c.checkExpr(n.Expr)
	if !n.Mutable {
		if cv, ok := c.evalConst(n.Expr); ok {
			b := &Binding{
				Kind: ConstBinding, Name: n.Name, Decl: n,
				ConstType: cv.typ, ConstInt: cv.i, ConstBytes: cv.b,
			}
			if err := c.cur.declare(b); err != nil {
				err.Pos = c.pos(n.Pos)
				panic(err)
			}
			return
		}
	}

	b := &Binding{Kind: ExprBinding, Name: n.Name, Mutable: n.Mutable, Decl: n, Expr: n.Expr, Typ: typ}
	if err := c.cur.declare(b); err != nil {
		err.Pos = c.pos(n.Pos)
		panic(err)
	}
}

func (c *Checker) checkAssign(n *ast.AssignStmt) {
	b, ok := c.cur.lookup(n.Name)
	if !ok {
		c.fail(errs.UnknownName, n.Pos, "undeclared name %q", n.Name)
	}
	if b.Kind != ExprBinding || !b.Mutable {
		c.fail(errs.ImmutableBinding, n.Pos, "%q is not a mutable binding", n.Name)
	}
	rt := c.checkExpr(n.Expr)
	unified, ok := types.Unify(b.Typ, rt)
	if !ok {
		c.fail(errs.TypeMismatch, n.Pos, "cannot assign %s to %q of type %s", rt, n.Name, b.Typ)
	}
	b.Expr = n.Expr
	b.Typ = unified
}

func (c *Checker) checkFuncDecl(n *ast.FuncDeclStmt) {
	inner := newScope(c.cur)
	for _, p := range n.Params {
		pb := &Binding{Kind: ExprBinding, Name: p, Decl: n, Typ: types.Expr}
		if err := inner.declare(pb); err != nil {
			err.Pos = c.pos(n.Pos)
			panic(err)
		}
	}

	saved := c.cur
	c.cur = inner
	c.funcDepth++
	c.checkStmts(n.Body, false)
	c.funcDepth--
	retTyp := c.checkExpr(n.ReturnExpr)
	c.warnUnused(c.cur)
	c.cur = saved

	if _, ok := types.Unify(n.RetType, retTyp); !ok {
		c.fail(errs.TypeMismatch, n.Pos, "function %q declares return type %s but returns %s", n.Name, n.RetType, retTyp)
	}

	fb := &Binding{Kind: FuncBinding, Name: n.Name, Decl: n, Func: n}
	if err := c.cur.declare(fb); err != nil {
		err.Pos = c.pos(n.Pos)
		panic(err)
	}
}

func (c *Checker) checkIf(n *ast.IfStmt) {
	ct := c.checkExpr(n.Cond)
	if _, ok := types.Unify(types.Int, ct); !ok {
		c.fail(errs.TypeMismatch, n.Pos, "if condition must be int, found %s", ct)
	}

	saved := c.cur
	c.cur = newScope(saved)
	c.checkStmts(n.Then, false)
	c.warnUnused(c.cur)
	c.cur = saved

	if len(n.Else) > 0 {
		c.cur = newScope(saved)
		c.checkStmts(n.Else, false)
		c.warnUnused(c.cur)
		c.cur = saved
	}
}

func (c *Checker) checkExpr(e ast.Expr) types.Type {
	switch n := e.(type) {
	case *ast.IntLiteral:
		n.Typ = types.Int
		return types.Int

	case *ast.BytesLiteral:
		n.Typ = types.Bytes
		return types.Bytes

	case *ast.NameExpr:
		b, ok := c.cur.lookup(n.Name)
		if !ok {
			c.fail(errs.UnknownName, n.Pos, "undeclared name %q", n.Name)
		}
		if b.Kind == FuncBinding {
			c.fail(errs.TypeMismatch, n.Pos, "%q is a function; call it with ()", n.Name)
		}
		b.Used++
		n.Typ = b.Type()
		return n.Typ

	case *ast.UnaryOpExpr:
		return c.checkUnary(n)

	case *ast.BinOpExpr:
		return c.checkBinOp(n)

	case *ast.CallExpr:
		return c.checkCall(n)

	default:
		c.fail(errs.InternalInvariant, 0, "unhandled expression type %T", e)
		panic("unreachable")
	}
}

func (c *Checker) checkUnary(n *ast.UnaryOpExpr) types.Type {
	xt := c.checkExpr(n.X)
	switch n.Op {
	case token.MINUS, token.TILDE, token.NOT:
		if _, ok := types.Unify(types.Int, xt); !ok {
			c.fail(errs.TypeMismatch, n.OpPos, "operator %s requires int, found %s", n.Op, xt)
		}
	default:
		c.fail(errs.InternalInvariant, n.OpPos, "unhandled unary operator %s", n.Op)
	}
	n.Typ = types.Int
	return types.Int
}

func (c *Checker) checkBinOp(n *ast.BinOpExpr) types.Type {
	lt := c.checkExpr(n.Left)
	rt := c.checkExpr(n.Right)

	switch n.Op {
	case token.EQL, token.NEQ:
		if _, ok := types.Unify(lt, rt); !ok {
			c.fail(errs.TypeMismatch, n.OpPos, "cannot compare %s with %s", lt, rt)
		}
		n.Typ = types.Int
		return types.Int

	case token.AND, token.OR, token.LT, token.GT, token.LE, token.GE,
		token.PLUS, token.MINUS, token.STAR, token.SLASH, token.PERCENT,
		token.AMPERSAND, token.PIPE, token.CIRCUMFLEX, token.LTLT, token.GTGT:
		if _, ok := types.Unify(types.Int, lt); !ok {
			c.fail(errs.TypeMismatch, n.OpPos, "operator %s requires int, found %s", n.Op, lt)
		}
		if _, ok := types.Unify(types.Int, rt); !ok {
			c.fail(errs.TypeMismatch, n.OpPos, "operator %s requires int, found %s", n.Op, rt)
		}
		n.Typ = types.Int
		return types.Int

	default:
		c.fail(errs.InternalInvariant, n.OpPos, "unhandled binary operator %s", n.Op)
		panic("unreachable")
	}
}

func (c *Checker) checkCall(n *ast.CallExpr) types.Type {
	argTypes := make([]types.Type, len(n.Args))
	for i, a := range n.Args {
		argTypes[i] = c.checkExpr(a)
	}

	if n.Fn == "raw" {
		// raw(...) lowers each argument against its own fresh virtual stack
		// and embeds the result as a single bytes literal (spec.md Section
		// 4.3); it takes any number of arguments of any type, so it bypasses
		// the fixed-arity builtins table entirely.
		n.Typ = types.Bytes
		return n.Typ
	}

	if b, ok := c.cur.lookup(n.Fn); ok {
		if b.Kind != FuncBinding {
			c.fail(errs.TypeMismatch, n.FnPos, "%q is not callable", n.Fn)
		}
		if len(b.Func.Params) != len(n.Args) {
			c.fail(errs.ArityMismatch, n.FnPos, "%q expects %d argument(s), got %d", n.Fn, len(b.Func.Params), len(n.Args))
		}
		n.Typ = b.Func.RetType
		return n.Typ
	}

	sig, ok := builtins.Lookup(n.Fn)
	if !ok {
		c.fail(errs.UnknownName, n.FnPos, "undeclared function %q", n.Fn)
	}
	if n.Fn == "markInvalid" {
		if len(n.Args) != 0 {
			c.fail(errs.ArityMismatch, n.FnPos, "markInvalid takes no arguments")
		}
		n.Typ = types.Unknown
		return types.Unknown
	}
	if len(sig.Params) != len(n.Args) {
		c.fail(errs.ArityMismatch, n.FnPos, "%q expects %d argument(s), got %d", n.Fn, len(sig.Params), len(n.Args))
	}
	for i, want := range sig.Params {
		if _, ok := types.Unify(want, argTypes[i]); !ok {
			c.fail(errs.TypeMismatch, n.FnPos, "%q argument %d must be %s, found %s", n.Fn, i+1, want, argTypes[i])
		}
	}

	if sig.ConstOnly {
		c.checkConstOnlyCall(n)
	}
	if n.Fn == "checkHash160" || n.Fn == "checkPubKey" {
		c.checkLiteralShapeIfConst(n)
	}

	n.Typ = sig.Result
	return n.Typ
}

// checkConstOnlyCall decodes and validates a built-in whose argument must
// be known at compile time, stashing the decoded bytes in c.ConstFolds for
// the lowering pass to embed directly as a literal push.
func (c *Checker) checkConstOnlyCall(n *ast.CallExpr) {
	cv, ok := c.evalConst(n.Args[0])
	if !ok || cv.typ != types.Bytes {
		c.fail(errs.ValidationFailed, n.FnPos, "%q requires a compile-time-constant bytes argument", n.Fn)
	}

	switch n.Fn {
	case "addressToHash160":
		decoded, version, err := base58.CheckDecode(string(cv.b))
		if err != nil {
			c.fail(errs.ValidationFailed, n.FnPos, "invalid address literal: %s", err)
		}
		_ = version
		if len(decoded) != ripemd160.Size {
			c.fail(errs.ValidationFailed, n.FnPos, "decoded address is %d bytes, expected %d", len(decoded), ripemd160.Size)
		}
		c.ConstFolds[n] = decoded
	}
}

// checkLiteralShapeIfConst applies a best-effort shape check to a
// checkHash160/checkPubKey argument when it happens to be a literal;
// non-literal arguments are only checkable at runtime and are left alone.
func (c *Checker) checkLiteralShapeIfConst(n *ast.CallExpr) {
	cv, ok := c.evalConst(n.Args[0])
	if !ok {
		return
	}
	switch n.Fn {
	case "checkHash160":
		if len(cv.b) != ripemd160.Size {
			c.fail(errs.ValidationFailed, n.FnPos, "checkHash160 literal must be %d bytes, found %d", ripemd160.Size, len(cv.b))
		}
	case "checkPubKey":
		switch len(cv.b) {
		case 33:
			if cv.b[0] != 0x02 && cv.b[0] != 0x03 {
				c.fail(errs.ValidationFailed, n.FnPos, "checkPubKey literal has invalid compressed prefix 0x%02x", cv.b[0])
			}
		case 65:
			if cv.b[0] != 0x04 {
				c.fail(errs.ValidationFailed, n.FnPos, "checkPubKey literal has invalid uncompressed prefix 0x%02x", cv.b[0])
			}
		default:
			c.fail(errs.ValidationFailed, n.FnPos, "checkPubKey literal must be 33 or 65 bytes, found %d", len(cv.b))
		}
	}
}

// constVal is the result of evalConst: either an Int or a Bytes value.
type constVal struct {
	typ types.Type
	i   *big.Int
	b   []byte
}

// evalConst attempts to fold e to a compile-time constant using only
// previously declared ConstBindings, literals, and arithmetic/bitwise/
// comparison operators. It never evaluates calls. After lowering, the
// optimizer folds adjacent integer pushes followed by an arithmetic,
// bitwise or comparison opcode, which covers what an inlined user function
// leaves behind; calls that lower to other opcodes (hashing, byte
// operations) are not folded anywhere.
func (c *Checker) evalConst(e ast.Expr) (constVal, bool) {
	switch n := e.(type) {
	case *ast.IntLiteral:
		return constVal{typ: types.Int, i: n.Val}, true

	case *ast.BytesLiteral:
		return constVal{typ: types.Bytes, b: n.Val}, true

	case *ast.NameExpr:
		b, ok := c.cur.lookup(n.Name)
		if !ok || b.Kind != ConstBinding {
			return constVal{}, false
		}
		return constVal{typ: b.ConstType, i: b.ConstInt, b: b.ConstBytes}, true

	case *ast.UnaryOpExpr:
		x, ok := c.evalConst(n.X)
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
		default:
			return constVal{}, false
		}

	case *ast.BinOpExpr:
		l, ok := c.evalConst(n.Left)
		if !ok {
			return constVal{}, false
		}
		r, ok := c.evalConst(n.Right)
		if !ok {
			return constVal{}, false
		}
		return c.evalConstBinOp(n.Op, l, r)

	default:
		return constVal{}, false
	}
}

func (c *Checker) evalConstBinOp(op token.Token, l, r constVal) (constVal, bool) {
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
