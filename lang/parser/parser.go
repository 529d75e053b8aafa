// Package parser implements a small recursive-descent parser that turns
// TxScript source text into the lang/ast representation. Per spec.md
// Section 1, the lexer/parser is a thin external collaborator: it carries
// no design weight of its own, it just has to deliver a well-formed AST
// with source spans to the resolver.
package parser

import (
	"os"

	"github.com/mna/txsc/lang/ast"
	"github.com/mna/txsc/lang/errs"
	"github.com/mna/txsc/lang/scanner"
	"github.com/mna/txsc/lang/token"
	"github.com/mna/txsc/lang/types"
)

// ParseFile reads and parses the named source file.
func ParseFile(fset *token.FileSet, filename string) (*ast.Chunk, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, errs.New(errs.ParseError, token.Position{Filename: filename}, "%s", err)
	}
	return ParseChunk(fset, filename, b)
}

// ParseChunk parses a single chunk of source from src, attributing
// positions to a file named filename registered in fset.
func ParseChunk(fset *token.FileSet, filename string, src []byte) (ch *ast.Chunk, err error) {
	var p parser
	p.file = fset.AddFile(filename)
	p.scanner.Init(p.file, src, p.recordError)
	p.advance()

	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*errs.CompileError); ok {
				err = ce
				return
			}
			panic(r)
		}
	}()

	ch = p.parseChunk()
	ch.Name = filename
	if p.err != nil {
		return nil, p.err
	}
	return ch, nil
}

type parser struct {
	file    *token.File
	scanner scanner.Scanner
	tok     token.Token
	val     token.Value
	err     *errs.CompileError // first error wins (spec.md Section 7)
}

func (p *parser) recordError(pos token.Position, msg string) {
	if p.err == nil {
		p.err = errs.New(errs.ParseError, pos, "%s", msg)
		panic(p.err)
	}
}

func (p *parser) advance() {
	p.tok, p.val = p.scanner.Scan()
}

func (p *parser) pos() token.Position { return p.file.Position(p.val.Pos) }

func (p *parser) fail(kind errs.Kind, format string, args ...any) {
	if p.err == nil {
		p.err = errs.New(kind, p.pos(), format, args...)
	}
	panic(p.err)
}

func (p *parser) expect(tok token.Token) token.Pos {
	if p.tok != tok {
		p.fail(errs.ParseError, "expected %s, found %s", tok.GoString(), p.tok.GoString())
	}
	pos := p.val.Pos
	p.advance()
	return pos
}

func (p *parser) expectIdent() (string, token.Pos) {
	if p.tok != token.IDENT {
		p.fail(errs.ParseError, "expected identifier, found %s", p.tok.GoString())
	}
	name, pos := p.val.Raw, p.val.Pos
	p.advance()
	return name, pos
}

// parseChunk parses the whole file as a top-level block.
func (p *parser) parseChunk() *ast.Chunk {
	start := p.val.Pos
	blk := p.parseStmtsUntil(token.EOF)
	end := p.val.Pos
	return &ast.Chunk{Block: &ast.Block{Start: start, End: end, Stmts: blk}, EOF: end}
}

// parseStmtsUntil parses statements until it sees stop (not consumed).
func (p *parser) parseStmtsUntil(stop token.Token) []ast.Stmt {
	var stmts []ast.Stmt
	for p.tok != stop && p.tok != token.EOF {
		stmts = append(stmts, p.parseStmt())
	}
	return stmts
}

func (p *parser) parseBlock() *ast.Block {
	start := p.expect(token.LBRACE)
	stmts := p.parseStmtsUntil(token.RBRACE)
	end := p.expect(token.RBRACE)
	return &ast.Block{Start: start, End: end, Stmts: stmts}
}

func (p *parser) parseStmt() ast.Stmt {
	switch p.tok {
	case token.ASSUME:
		return p.parseAssume()
	case token.LET:
		return p.parseLetDecl()
	case token.FUNC:
		return p.parseFuncDecl()
	case token.RETURN:
		return p.parseReturn()
	case token.VERIFY:
		return p.parseVerify()
	case token.PUSH:
		return p.parsePush()
	case token.IF:
		return p.parseIf()
	case token.IDENT:
		return p.parseIdentLedStmt()
	default:
		p.fail(errs.ParseError, "unexpected token %s at start of statement", p.tok.GoString())
		panic("unreachable")
	}
}

func (p *parser) parseAssume() ast.Stmt {
	pos := p.expect(token.ASSUME)
	var names []string
	name, _ := p.expectIdent()
	names = append(names, name)
	for p.tok == token.COMMA {
		p.advance()
		name, _ = p.expectIdent()
		names = append(names, name)
	}
	end := p.expect(token.SEMI)
	return &ast.AssumeStmt{Pos: pos, Names: names, End: end}
}

func (p *parser) parseLetDecl() ast.Stmt {
	pos := p.expect(token.LET)
	mutable := false
	if p.tok == token.MUTABLE {
		mutable = true
		p.advance()
	}
	name, _ := p.expectIdent()
	p.expect(token.EQ)
	expr := p.parseExpr()
	p.expect(token.SEMI)
	return &ast.LetDeclStmt{Pos: pos, Name: name, Mutable: mutable, Expr: expr}
}

func (p *parser) parseTypeName() types.Type {
	name, _ := p.expectIdent()
	switch name {
	case "int":
		return types.Int
	case "bytes":
		return types.Bytes
	default:
		p.fail(errs.ParseError, "unknown return type %q", name)
		panic("unreachable")
	}
}

func (p *parser) parseFuncDecl() ast.Stmt {
	pos := p.expect(token.FUNC)
	retTy := p.parseTypeName()
	name, _ := p.expectIdent()
	p.expect(token.LPAREN)
	var params []string
	for p.tok != token.RPAREN {
		pname, _ := p.expectIdent()
		params = append(params, pname)
		if p.tok == token.COMMA {
			p.advance()
		} else {
			break
		}
	}
	p.expect(token.RPAREN)
	body := p.parseBlock()

	if len(body.Stmts) == 0 {
		p.fail(errs.ParseError, "function %q must end with a return statement", name)
	}
	last := body.Stmts[len(body.Stmts)-1]
	ret, ok := last.(*ast.ReturnStmt)
	if !ok {
		p.fail(errs.ParseError, "function %q must end with a return statement", name)
	}
	return &ast.FuncDeclStmt{
		Pos:        pos,
		Name:       name,
		RetType:    retTy,
		Params:     params,
		Body:       body.Stmts[:len(body.Stmts)-1],
		ReturnExpr: ret.Expr,
		End:        body.End,
	}
}

func (p *parser) parseReturn() ast.Stmt {
	pos := p.expect(token.RETURN)
	expr := p.parseExpr()
	p.expect(token.SEMI)
	return &ast.ReturnStmt{Pos: pos, Expr: expr}
}

func (p *parser) parseVerify() ast.Stmt {
	pos := p.expect(token.VERIFY)
	expr := p.parseExpr()
	p.expect(token.SEMI)
	return &ast.VerifyStmt{Pos: pos, Expr: expr}
}

func (p *parser) parsePush() ast.Stmt {
	pos := p.expect(token.PUSH)
	expr := p.parseExpr()
	p.expect(token.SEMI)
	return &ast.PushStmt{Pos: pos, Expr: expr}
}

func (p *parser) parseIf() ast.Stmt {
	pos := p.expect(token.IF)
	cond := p.parseExpr()
	then := p.parseBlock()
	var elseStmts []ast.Stmt
	end := then.End
	if p.tok == token.ELSE {
		p.advance()
		els := p.parseBlock()
		elseStmts = els.Stmts
		end = els.End
	}
	return &ast.IfStmt{Pos: pos, Cond: cond, Then: then.Stmts, Else: elseStmts, End: end}
}

// parseIdentLedStmt disambiguates `name = expr;` (assignment) from a bare
// expression statement (a call, or a name used for its side-effect-free
// value, subject to the implicit_pushes configuration, which the resolver
// applies).
func (p *parser) parseIdentLedStmt() ast.Stmt {
	name, pos := p.expectIdent()
	if p.tok == token.EQ {
		p.advance()
		expr := p.parseExpr()
		p.expect(token.SEMI)
		return &ast.AssignStmt{Pos: pos, Name: name, Expr: expr}
	}
	if aug, ok := p.tok.IsAugmented(); ok {
		opPos := p.val.Pos
		p.advance()
		rhs := p.parseExpr()
		p.expect(token.SEMI)
		expr := &ast.BinOpExpr{
			Left:  &ast.NameExpr{Pos: pos, Name: name},
			Op:    aug,
			OpPos: opPos,
			Right: rhs,
		}
		return &ast.AssignStmt{Pos: pos, Name: name, Expr: expr}
	}

	nameExpr := p.parseExprContinuation(name, pos)
	expr := p.continueBinExprFrom(nameExpr, 1)
	p.expect(token.SEMI)
	return &ast.ExprStmt{Expr: expr}
}
