package lexer

import (
	"testing"

	"github.com/lychee-technology/objectdb/internal/parser/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allTokens(t *testing.T, input string) []token.Token {
	t.Helper()
	l := New(input)
	var out []token.Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		if tok.Type == token.EOF {
			return out
		}
		out = append(out, tok)
	}
}

func TestLexer_SimpleComparison(t *testing.T) {
	toks := allTokens(t, `age > 26`)
	require.Len(t, toks, 3)
	assert.Equal(t, token.IDENT, toks[0].Type)
	assert.Equal(t, "age", toks[0].Literal)
	assert.Equal(t, token.GT, toks[1].Type)
	assert.Equal(t, token.INT, toks[2].Type)
	assert.Equal(t, "26", toks[2].Literal)
}

func TestLexer_StringLiteralWithEscapes(t *testing.T) {
	toks := allTokens(t, `"a\tb\"c"`)
	require.Len(t, toks, 1)
	assert.Equal(t, token.STRING, toks[0].Type)
	assert.Equal(t, "a\tb\"c", toks[0].Literal)
}

func TestLexer_ParenthesesForIn(t *testing.T) {
	toks := allTokens(t, `a IN ("0", "1", "2")`)
	kinds := make([]token.Type, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Type
	}
	assert.Contains(t, kinds, token.LPAREN)
	assert.Contains(t, kinds, token.RPAREN)
}

func TestLexer_BracesAreIllegal(t *testing.T) {
	l := New(`{`)
	_, err := l.Next()
	assert.Error(t, err, "the grammar has no brace tokens; IN must be written with parentheses")
}

func TestLexer_ArgToken(t *testing.T) {
	toks := allTokens(t, `$0`)
	require.Len(t, toks, 1)
	assert.Equal(t, token.ARG, toks[0].Type)
	assert.Equal(t, "0", toks[0].Literal)
}

func TestLexer_KeywordsCaseInsensitive(t *testing.T) {
	toks := allTokens(t, `a == "x" and b == "y"`)
	var sawAnd bool
	for _, tok := range toks {
		if tok.Type == token.AND {
			sawAnd = true
		}
	}
	assert.True(t, sawAnd)
}

func TestLexer_TwoCharOperators(t *testing.T) {
	cases := map[string]token.Type{
		"==": token.EQ,
		"!=": token.NEQ,
		"<>": token.NEQ,
		"<=": token.LTE,
		">=": token.GTE,
		"&&": token.AND,
		"||": token.OR,
	}
	for lit, want := range cases {
		toks := allTokens(t, lit)
		require.Len(t, toks, 1, lit)
		assert.Equal(t, want, toks[0].Type, lit)
	}
}

func TestLexer_CaseFoldMarker(t *testing.T) {
	toks := allTokens(t, `a ==[c] "X"`)
	var sawCasefold bool
	for _, tok := range toks {
		if tok.Type == token.CASEFOLD {
			sawCasefold = true
		}
	}
	assert.True(t, sawCasefold)
}

func TestLexer_UnterminatedStringErrors(t *testing.T) {
	l := New(`"abc`)
	_, err := l.Next()
	assert.Error(t, err)
}
