package parser

import (
	"math/big"

	"github.com/mna/txsc/lang/ast"
	"github.com/mna/txsc/lang/errs"
	"github.com/mna/txsc/lang/token"
)

// binPrec returns the binary operator precedence of tok, or 0 if tok is not
// a binary operator. Higher binds tighter.
func binPrec(tok token.Token) int {
	switch tok {
	case token.OR:
		return 1
	case token.AND:
		return 2
	case token.EQL, token.NEQ, token.LT, token.GT, token.LE, token.GE:
		return 3
	case token.PIPE:
		return 4
	case token.CIRCUMFLEX:
		return 5
	case token.AMPERSAND:
		return 6
	case token.LTLT, token.GTGT:
		return 7
	case token.PLUS, token.MINUS:
		return 8
	case token.STAR, token.SLASH, token.PERCENT:
		return 9
	default:
		return 0
	}
}

func (p *parser) parseExpr() ast.Expr {
	return p.parseBinExpr(1)
}

func (p *parser) parseBinExpr(minPrec int) ast.Expr {
	left := p.parseUnary()
	for {
		prec := binPrec(p.tok)
		if prec < minPrec {
			return left
		}
		op, opPos := p.tok, p.val.Pos
		p.advance()
		right := p.parseBinExpr(prec + 1)
		left = &ast.BinOpExpr{Left: left, Op: op, OpPos: opPos, Right: right}
	}
}

// continueBinExprFrom resumes precedence-climbing with left as the
// already-parsed leftmost operand, for the case where the statement parser
// had to consume a leading identifier to disambiguate an assignment from a
// bare expression statement.
func (p *parser) continueBinExprFrom(left ast.Expr, minPrec int) ast.Expr {
	for {
		prec := binPrec(p.tok)
		if prec < minPrec {
			return left
		}
		op, opPos := p.tok, p.val.Pos
		p.advance()
		right := p.parseBinExpr(prec + 1)
		left = &ast.BinOpExpr{Left: left, Op: op, OpPos: opPos, Right: right}
	}
}

func (p *parser) parseUnary() ast.Expr {
	switch p.tok {
	case token.MINUS, token.TILDE, token.NOT:
		op, pos := p.tok, p.val.Pos
		p.advance()
		x := p.parseUnary()
		return &ast.UnaryOpExpr{Op: op, OpPos: pos, X: x}
	default:
		return p.parsePrimary()
	}
}

func (p *parser) parsePrimary() ast.Expr {
	switch p.tok {
	case token.INT:
		v, pos := new(big.Int).Set(p.val.Int), p.val.Pos
		p.advance()
		return &ast.IntLiteral{Pos: pos, Val: v}

	case token.STRING, token.HEXBYTES:
		b, pos := p.val.Bytes, p.val.Pos
		p.advance()
		return &ast.BytesLiteral{Pos: pos, Val: b}

	case token.IDENT:
		name, pos := p.expectIdent()
		return p.parseExprContinuation(name, pos)

	case token.LPAREN:
		p.advance()
		e := p.parseExpr()
		p.expect(token.RPAREN)
		return e

	default:
		p.fail(errs.ParseError, "unexpected token %s in expression", p.tok.GoString())
		panic("unreachable")
	}
}

// parseExprContinuation turns an already-consumed identifier into either a
// Call (if followed by '(') or a bare Name reference.
func (p *parser) parseExprContinuation(name string, pos token.Pos) ast.Expr {
	if p.tok != token.LPAREN {
		return &ast.NameExpr{Pos: pos, Name: name}
	}

	lparen := p.expect(token.LPAREN)
	var args []ast.Expr
	for p.tok != token.RPAREN {
		args = append(args, p.parseExpr())
		if p.tok == token.COMMA {
			p.advance()
			continue
		}
		break
	}
	rparen := p.expect(token.RPAREN)
	return &ast.CallExpr{Fn: name, FnPos: pos, Lparen: lparen, Args: args, Rparen: rparen}
}
