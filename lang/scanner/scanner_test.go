package scanner

import (
	"testing"

	"github.com/mna/txsc/lang/token"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, src string) ([]token.Token, []token.Value) {
	t.Helper()
	var errs []string
	f := token.NewFile("test.txs")
	var s Scanner
	s.Init(f, []byte(src), func(pos token.Position, msg string) {
		errs = append(errs, msg)
	})

	var toks []token.Token
	var vals []token.Value
	for {
		tok, val := s.Scan()
		toks = append(toks, tok)
		vals = append(vals, val)
		if tok == token.EOF {
			break
		}
	}
	require.Empty(t, errs, "unexpected scan errors: %v", errs)
	return toks, vals
}

func TestScanKeywordsAndIdents(t *testing.T) {
	toks, _ := scanAll(t, "assume let mutable func verify push if else return and or not foo")
	require.Equal(t, []token.Token{
		token.ASSUME, token.LET, token.MUTABLE, token.FUNC, token.VERIFY,
		token.PUSH, token.IF, token.ELSE, token.RETURN, token.AND, token.OR,
		token.NOT, token.IDENT, token.EOF,
	}, toks)
}

func TestScanIntLiterals(t *testing.T) {
	toks, vals := scanAll(t, "123 0xFF 0x1a2b")
	require.Equal(t, []token.Token{token.INT, token.INT, token.INT, token.EOF}, toks)
	require.Equal(t, int64(123), vals[0].Int.Int64())
	require.Equal(t, int64(255), vals[1].Int.Int64())
	require.Equal(t, int64(0x1a2b), vals[2].Int.Int64())
}

func TestScanStringLiteral(t *testing.T) {
	toks, vals := scanAll(t, `"hello\nworld"`)
	require.Equal(t, []token.Token{token.STRING, token.EOF}, toks)
	require.Equal(t, "hello\nworld", string(vals[0].Bytes))
}

func TestScanHexBytesLiteral(t *testing.T) {
	toks, vals := scanAll(t, `'deadbeef'`)
	require.Equal(t, []token.Token{token.HEXBYTES, token.EOF}, toks)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, vals[0].Bytes)
}

func TestScanOperatorsAndAugmented(t *testing.T) {
	toks, _ := scanAll(t, "+ - * / % & | ^ ~ << >> < > <= >= == != = , ; ( ) { } += -= *= /= %= &= |= ^= <<= >>=")
	want := []token.Token{
		token.PLUS, token.MINUS, token.STAR, token.SLASH, token.PERCENT,
		token.AMPERSAND, token.PIPE, token.CIRCUMFLEX, token.TILDE,
		token.LTLT, token.GTGT, token.LT, token.GT, token.LE, token.GE,
		token.EQL, token.NEQ, token.EQ, token.COMMA, token.SEMI,
		token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE,
		token.PLUS_EQ, token.MINUS_EQ, token.STAR_EQ, token.SLASH_EQ,
		token.PERCENT_EQ, token.AMP_EQ, token.PIPE_EQ, token.CIRCUMFLEX_EQ,
		token.LTLT_EQ, token.GTGT_EQ, token.EOF,
	}
	require.Equal(t, want, toks)
}

func TestScanSkipsCommentsAndWhitespace(t *testing.T) {
	toks, _ := scanAll(t, "let x = 1 # a trailing comment\n# a whole-line comment\nlet y = 2")
	require.Equal(t, []token.Token{
		token.LET, token.IDENT, token.EQ, token.INT,
		token.LET, token.IDENT, token.EQ, token.INT,
		token.EOF,
	}, toks)
}

func TestScanIllegalLeadingUnderscore(t *testing.T) {
	f := token.NewFile("test.txs")
	var s Scanner
	var gotErr bool
	s.Init(f, []byte("_foo"), func(pos token.Position, msg string) { gotErr = true })
	tok, _ := s.Scan()
	require.Equal(t, token.ILLEGAL, tok)
	require.True(t, gotErr)
}

func TestScanOddLengthHexBytesErrors(t *testing.T) {
	f := token.NewFile("test.txs")
	var s Scanner
	var gotErr bool
	s.Init(f, []byte(`'abc'`), func(pos token.Position, msg string) { gotErr = true })
	s.Scan()
	require.True(t, gotErr)
}
