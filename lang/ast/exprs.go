package ast

import (
	"fmt"
	"math/big"

	"github.com/mna/txsc/lang/token"
	"github.com/mna/txsc/lang/types"
)

// IntLiteral represents an integer literal, decimal or 0x-prefixed hex,
// with arbitrary precision (spec.md Section 6).
type IntLiteral struct {
	Pos token.Pos
	Val *big.Int
	Typ types.Type // always types.Int once set by the checker
}

func (n *IntLiteral) Format(f fmt.State, verb rune) { format(f, verb, n, "int "+n.Val.String(), nil) }
func (n *IntLiteral) Span() (start, end token.Pos)  { return n.Pos, n.Pos }
func (n *IntLiteral) Walk(_ Visitor)                {}
func (n *IntLiteral) exprNode()                     {}

// BytesLiteral represents a byte-string literal: either a double-quoted
// UTF-8 string or a single-quoted raw hex-byte literal (spec.md Section 6).
type BytesLiteral struct {
	Pos token.Pos
	Val []byte
	Typ types.Type // always types.Bytes once set by the checker
}

func (n *BytesLiteral) Format(f fmt.State, verb rune) {
	format(f, verb, n, fmt.Sprintf("bytes %x", n.Val), nil)
}
func (n *BytesLiteral) Span() (start, end token.Pos) { return n.Pos, n.Pos }
func (n *BytesLiteral) Walk(_ Visitor)               {}
func (n *BytesLiteral) exprNode()                    {}

// NameExpr represents a reference to a bound name: a let-binding, a
// function parameter, a stack assumption, or a function name used (wrongly)
// without a call (spec.md Section 3, "Name(id)").
type NameExpr struct {
	Pos  token.Pos
	Name string
	Typ  types.Type // filled in by the checker once the binding is resolved
}

func (n *NameExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "name "+n.Name, nil) }
func (n *NameExpr) Span() (start, end token.Pos)  { return n.Pos, n.Pos + token.Pos(len(n.Name)) }
func (n *NameExpr) Walk(_ Visitor)                {}
func (n *NameExpr) exprNode()                     {}

// BinOpExpr represents a binary expression, e.g. x + y.
type BinOpExpr struct {
	Left  Expr
	Op    token.Token
	OpPos token.Pos
	Right Expr
	Typ   types.Type
}

func (n *BinOpExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "binop "+n.Op.String(), nil)
}
func (n *BinOpExpr) Span() (start, end token.Pos) {
	start, _ = n.Left.Span()
	_, end = n.Right.Span()
	return start, end
}
func (n *BinOpExpr) Walk(v Visitor) {
	Walk(v, n.Left)
	Walk(v, n.Right)
}
func (n *BinOpExpr) exprNode() {}

// UnaryOpExpr represents a unary expression, e.g. -x, ~x, not x.
type UnaryOpExpr struct {
	Op    token.Token
	OpPos token.Pos
	X     Expr
	Typ   types.Type
}

func (n *UnaryOpExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "unop "+n.Op.String(), nil)
}
func (n *UnaryOpExpr) Span() (start, end token.Pos) {
	_, end = n.X.Span()
	return n.OpPos, end
}
func (n *UnaryOpExpr) Walk(v Visitor) { Walk(v, n.X) }
func (n *UnaryOpExpr) exprNode()      {}

// CallExpr represents a call to a built-in or user-defined function, e.g.
// checkSig(sig, pubkey) or addFive(10). TxScript has no first-class
// functions, so the callee is always a bare name.
type CallExpr struct {
	Fn     string
	FnPos  token.Pos
	Lparen token.Pos
	Args   []Expr
	Rparen token.Pos
	Typ    types.Type
}

func (n *CallExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "call "+n.Fn, map[string]int{"args": len(n.Args)})
}
func (n *CallExpr) Span() (start, end token.Pos) { return n.FnPos, n.Rparen }
func (n *CallExpr) Walk(v Visitor) {
	for _, a := range n.Args {
		Walk(v, a)
	}
}
func (n *CallExpr) exprNode() {}
