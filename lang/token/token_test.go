package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenString(t *testing.T) {
	for tok := Token(0); tok <= maxToken; tok++ {
		if tok.String() == "" {
			t.Errorf("missing string representation of token %d", tok)
		}
	}
}

func TestLookupIdent(t *testing.T) {
	for lit, tok := range keywords {
		require.Equal(t, tok, LookupIdent(lit))
	}
	require.Equal(t, IDENT, LookupIdent("notakeyword"))
	require.Equal(t, IDENT, LookupIdent("pubkey"))
}

func TestIsAugmented(t *testing.T) {
	cases := []struct {
		tok  Token
		want Token
	}{
		{PLUS_EQ, PLUS},
		{MINUS_EQ, MINUS},
		{STAR_EQ, STAR},
		{SLASH_EQ, SLASH},
		{PERCENT_EQ, PERCENT},
		{AMP_EQ, AMPERSAND},
		{PIPE_EQ, PIPE},
		{CIRCUMFLEX_EQ, CIRCUMFLEX},
		{LTLT_EQ, LTLT},
		{GTGT_EQ, GTGT},
	}
	for _, c := range cases {
		got, ok := c.tok.IsAugmented()
		require.True(t, ok)
		require.Equal(t, c.want, got)
	}

	for _, tok := range []Token{PLUS, EQ, IDENT, ASSUME} {
		_, ok := tok.IsAugmented()
		require.False(t, ok, "%v should not be augmented", tok)
	}
}

func TestGoString(t *testing.T) {
	require.Equal(t, "'+'", PLUS.GoString())
	require.Equal(t, "identifier", IDENT.GoString())
}
