package ast

import (
	"fmt"

	"github.com/mna/txsc/lang/token"
	"github.com/mna/txsc/lang/types"
)

// LetDeclStmt represents a `let [mutable] name = expr;` declaration.
type LetDeclStmt struct {
	Pos     token.Pos
	Name    string
	Mutable bool
	Expr    Expr
}

func (n *LetDeclStmt) Format(f fmt.State, verb rune) {
	lbl := "let " + n.Name
	if n.Mutable {
		lbl = "let mutable " + n.Name
	}
	format(f, verb, n, lbl, nil)
}
func (n *LetDeclStmt) Span() (start, end token.Pos) {
	_, end = n.Expr.Span()
	return n.Pos, end
}
func (n *LetDeclStmt) Walk(v Visitor) { Walk(v, n.Expr) }
func (n *LetDeclStmt) stmtNode()      {}

// AssignStmt represents a reassignment to a mutable binding, e.g. a = a + 1.
type AssignStmt struct {
	Pos  token.Pos
	Name string
	Expr Expr
}

func (n *AssignStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "assign "+n.Name, nil) }
func (n *AssignStmt) Span() (start, end token.Pos) {
	_, end = n.Expr.Span()
	return n.Pos, end
}
func (n *AssignStmt) Walk(v Visitor) { Walk(v, n.Expr) }
func (n *AssignStmt) stmtNode()      {}

// AssumeStmt represents an `assume a, b, c;` statement, which must be the
// first non-comment statement of a chunk (spec.md Section 4.1).
type AssumeStmt struct {
	Pos   token.Pos
	Names []string
	End   token.Pos
}

func (n *AssumeStmt) Format(f fmt.State, verb rune) {
	format(f, verb, n, "assume", map[string]int{"names": len(n.Names)})
}
func (n *AssumeStmt) Span() (start, end token.Pos) { return n.Pos, n.End }
func (n *AssumeStmt) Walk(_ Visitor)               {}
func (n *AssumeStmt) stmtNode()                    {}

// FuncDeclStmt represents a `func ty name(params) { body return expr; }`
// declaration (spec.md Section 3, "FuncDecl"). Body holds every statement
// preceding the mandatory trailing return; ReturnExpr is that return's
// expression, kept apart to make call-site inlining (spec.md Section 4.3)
// a direct substitution.
type FuncDeclStmt struct {
	Pos        token.Pos
	Name       string
	RetType    types.Type
	Params     []string
	Body       []Stmt
	ReturnExpr Expr
	End        token.Pos
}

func (n *FuncDeclStmt) Format(f fmt.State, verb rune) {
	format(f, verb, n, "func "+n.Name, map[string]int{"params": len(n.Params), "body": len(n.Body)})
}
func (n *FuncDeclStmt) Span() (start, end token.Pos) { return n.Pos, n.End }
func (n *FuncDeclStmt) Walk(v Visitor) {
	for _, s := range n.Body {
		Walk(v, s)
	}
	if n.ReturnExpr != nil {
		Walk(v, n.ReturnExpr)
	}
}
func (n *FuncDeclStmt) stmtNode() {}

// ReturnStmt represents a `return expr;` statement, valid only as the last
// statement of a function body.
type ReturnStmt struct {
	Pos  token.Pos
	Expr Expr
}

func (n *ReturnStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "return", nil) }
func (n *ReturnStmt) Span() (start, end token.Pos) {
	_, end = n.Expr.Span()
	return n.Pos, end
}
func (n *ReturnStmt) Walk(v Visitor) { Walk(v, n.Expr) }
func (n *ReturnStmt) stmtNode()      {}

// VerifyStmt represents a `verify expr;` statement: lower expr, emit
// OP_VERIFY.
type VerifyStmt struct {
	Pos  token.Pos
	Expr Expr
}

func (n *VerifyStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "verify", nil) }
func (n *VerifyStmt) Span() (start, end token.Pos) {
	_, end = n.Expr.Span()
	return n.Pos, end
}
func (n *VerifyStmt) Walk(v Visitor) { Walk(v, n.Expr) }
func (n *VerifyStmt) stmtNode()      {}

// PushStmt represents a `push expr;` statement: lower expr and leave its
// result on the stack.
type PushStmt struct {
	Pos  token.Pos
	Expr Expr
}

func (n *PushStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "push", nil) }
func (n *PushStmt) Span() (start, end token.Pos) {
	_, end = n.Expr.Span()
	return n.Pos, end
}
func (n *PushStmt) Walk(v Visitor) { Walk(v, n.Expr) }
func (n *PushStmt) stmtNode()      {}

// ExprStmt represents a bare expression statement, e.g. `a;` or
// `markInvalid();`. Treated per the implicit_pushes configuration (spec.md
// Section 6).
type ExprStmt struct {
	Expr Expr
}

func (n *ExprStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "exprstmt", nil) }
func (n *ExprStmt) Span() (start, end token.Pos)  { return n.Expr.Span() }
func (n *ExprStmt) Walk(v Visitor)                { Walk(v, n.Expr) }
func (n *ExprStmt) stmtNode()                     {}

// IfStmt represents an `if cond { then } [else { else }]` statement.
type IfStmt struct {
	Pos  token.Pos
	Cond Expr
	Then []Stmt
	Else []Stmt // nil if no else clause
	End  token.Pos
}

func (n *IfStmt) Format(f fmt.State, verb rune) {
	format(f, verb, n, "if", map[string]int{"then": len(n.Then), "else": len(n.Else)})
}
func (n *IfStmt) Span() (start, end token.Pos) { return n.Pos, n.End }
func (n *IfStmt) Walk(v Visitor) {
	Walk(v, n.Cond)
	for _, s := range n.Then {
		Walk(v, s)
	}
	for _, s := range n.Else {
		Walk(v, s)
	}
}
func (n *IfStmt) stmtNode() {}
