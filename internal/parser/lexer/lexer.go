// Package lexer tokenizes the predicate DSL text (§4.5).
package lexer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/lychee-technology/objectdb/internal/parser/token"
)

// Lexer scans a query string into a Token stream, one Next() call at a
// time (mirroring the teacher corpus's lexer/parser split, e.g.
// ha1tch-tsqlparser's lexer.Lexer).
type Lexer struct {
	input string
	pos   int
}

func New(input string) *Lexer { return &Lexer{input: input} }

func (l *Lexer) peekByte() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) peekAt(off int) byte {
	if l.pos+off >= len(l.input) {
		return 0
	}
	return l.input[l.pos+off]
}

func (l *Lexer) skipSpace() {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
}

// Next returns the next token, or an EOF token at end of input.
func (l *Lexer) Next() (token.Token, error) {
	l.skipSpace()
	start := l.pos
	if l.pos >= len(l.input) {
		return token.Token{Type: token.EOF, Pos: start}, nil
	}
	c := l.input[l.pos]

	switch {
	case c == '$':
		return l.lexArg(start)
	case c == '"':
		return l.lexString(start)
	case c == '.':
		l.pos++
		return token.Token{Type: token.DOT, Literal: ".", Pos: start}, nil
	case c == ',':
		l.pos++
		return token.Token{Type: token.COMMA, Literal: ",", Pos: start}, nil
	case c == '(':
		l.pos++
		return token.Token{Type: token.LPAREN, Literal: "(", Pos: start}, nil
	case c == ')':
		l.pos++
		return token.Token{Type: token.RPAREN, Literal: ")", Pos: start}, nil
	case c == '[':
		return l.lexCaseFold(start)
	case isOperatorByte(c):
		return l.lexOperator(start)
	case c == 'T' && isTimestampStart(l.input[l.pos:]):
		return l.lexTimestamp(start)
	case c == 'B' && strings.HasPrefix(l.input[l.pos:], `B64"`):
		return l.lexBinary(start)
	case unicode.IsDigit(rune(c)) || (c == '-' && l.pos+1 < len(l.input) && unicode.IsDigit(rune(l.input[l.pos+1]))):
		return l.lexNumber(start)
	case isIdentStart(c):
		return l.lexIdent(start)
	default:
		l.pos++
		return token.Token{}, newLexError(start, "unexpected character %q", c)
	}
}

func isIdentStart(c byte) bool {
	return unicode.IsLetter(rune(c)) || c == '_' || c == '@'
}

func isIdentPart(c byte) bool {
	return unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c)) || c == '_' || c == '@'
}

func isOperatorByte(c byte) bool {
	switch c {
	case '=', '!', '<', '>', '&', '|':
		return true
	}
	return false
}

func isTimestampStart(s string) bool {
	if len(s) < 2 || s[0] != 'T' {
		return false
	}
	return unicode.IsDigit(rune(s[1])) || s[1] == '-'
}

// lexArg handles both `$N` numeric argument placeholders (§4.5) and
// `$var`-style SUBQUERY-local variable names, which share the `$`
// sigil but not a character class.
func (l *Lexer) lexArg(start int) (token.Token, error) {
	l.pos++ // consume '$'
	bodyStart := l.pos
	for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
		l.pos++
	}
	if l.pos == bodyStart {
		return token.Token{}, newLexError(start, "expected a name or digits after $")
	}
	return token.Token{Type: token.ARG, Literal: l.input[bodyStart:l.pos], Pos: start}, nil
}

func (l *Lexer) lexCaseFold(start int) (token.Token, error) {
	if strings.HasPrefix(l.input[l.pos:], "[c]") {
		l.pos += 3
		return token.Token{Type: token.CASEFOLD, Literal: "[c]", Pos: start}, nil
	}
	return token.Token{}, newLexError(start, "expected [c]")
}

func (l *Lexer) lexOperator(start int) (token.Token, error) {
	two := string(l.input[l.pos]) + string(l.peekAt(1))
	switch two {
	case "==":
		l.pos += 2
		return token.Token{Type: token.EQ, Literal: "==", Pos: start}, nil
	case "!=":
		l.pos += 2
		return token.Token{Type: token.NEQ, Literal: "!=", Pos: start}, nil
	case "<>":
		l.pos += 2
		return token.Token{Type: token.NEQ, Literal: "<>", Pos: start}, nil
	case "<=":
		l.pos += 2
		return token.Token{Type: token.LTE, Literal: "<=", Pos: start}, nil
	case "=<":
		l.pos += 2
		return token.Token{Type: token.LTE, Literal: "=<", Pos: start}, nil
	case ">=":
		l.pos += 2
		return token.Token{Type: token.GTE, Literal: ">=", Pos: start}, nil
	case "=>":
		l.pos += 2
		return token.Token{Type: token.GTE, Literal: "=>", Pos: start}, nil
	case "&&":
		l.pos += 2
		return token.Token{Type: token.AND, Literal: "&&", Pos: start}, nil
	case "||":
		l.pos += 2
		return token.Token{Type: token.OR, Literal: "||", Pos: start}, nil
	}
	switch l.input[l.pos] {
	case '=':
		l.pos++
		return token.Token{Type: token.EQ, Literal: "=", Pos: start}, nil
	case '<':
		l.pos++
		return token.Token{Type: token.LT, Literal: "<", Pos: start}, nil
	case '>':
		l.pos++
		return token.Token{Type: token.GT, Literal: ">", Pos: start}, nil
	case '!':
		l.pos++
		return token.Token{Type: token.NOT, Literal: "!", Pos: start}, nil
	}
	return token.Token{}, newLexError(start, "unsupported operator starting at %q", two)
}

func (l *Lexer) lexTimestamp(start int) (token.Token, error) {
	l.pos++ // consume 'T'
	numStart := l.pos
	for l.pos < len(l.input) && (unicode.IsDigit(rune(l.input[l.pos])) || l.input[l.pos] == '-') {
		l.pos++
	}
	if l.pos < len(l.input) && l.input[l.pos] == ':' {
		l.pos++
		for l.pos < len(l.input) && unicode.IsDigit(rune(l.input[l.pos])) {
			l.pos++
		}
	}
	return token.Token{Type: token.TIMELIT, Literal: "T" + l.input[numStart:l.pos], Pos: start}, nil
}

func (l *Lexer) lexBinary(start int) (token.Token, error) {
	l.pos += 4 // consume 'B64"'
	contentStart := l.pos
	for l.pos < len(l.input) && l.input[l.pos] != '"' {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token.Token{}, newLexError(start, "unterminated B64 literal")
	}
	content := l.input[contentStart:l.pos]
	l.pos++ // consume closing quote
	return token.Token{Type: token.BINARY, Literal: content, Pos: start}, nil
}

func (l *Lexer) lexString(start int) (token.Token, error) {
	l.pos++ // consume opening quote
	var b strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == '"' {
			l.pos++
			return token.Token{Type: token.STRING, Literal: b.String(), Pos: start}, nil
		}
		if c == '\\' {
			l.pos++
			if l.pos >= len(l.input) {
				return token.Token{}, newLexError(start, "unterminated escape sequence")
			}
			esc := l.input[l.pos]
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			case 'u':
				if l.pos+4 >= len(l.input) {
					return token.Token{}, newLexError(start, "truncated \\u escape")
				}
				r, err := decodeHex4(l.input[l.pos+1 : l.pos+5])
				if err != nil {
					return token.Token{}, newLexError(start, "invalid \\u escape: %v", err)
				}
				b.WriteRune(rune(r))
				l.pos += 4
			default:
				b.WriteByte(esc)
			}
			l.pos++
			continue
		}
		b.WriteByte(c)
		l.pos++
	}
	return token.Token{}, newLexError(start, "unterminated string literal")
}

func decodeHex4(s string) (int, error) {
	v := 0
	for _, c := range s {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= int(c - '0')
		case c >= 'a' && c <= 'f':
			v |= int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v |= int(c-'A') + 10
		default:
			return 0, newLexError(0, "invalid hex digit %q", c)
		}
	}
	return v, nil
}

func (l *Lexer) lexNumber(start int) (token.Token, error) {
	if l.input[l.pos] == '-' {
		l.pos++
	}
	if strings.HasPrefix(l.input[l.pos:], "0x") || strings.HasPrefix(l.input[l.pos:], "0X") {
		l.pos += 2
		for l.pos < len(l.input) && isHexDigit(l.input[l.pos]) {
			l.pos++
		}
		return token.Token{Type: token.INT, Literal: l.input[start:l.pos], Pos: start}, nil
	}
	isDouble := false
	for l.pos < len(l.input) && (unicode.IsDigit(rune(l.input[l.pos])) || l.input[l.pos] == '.') {
		if l.input[l.pos] == '.' {
			isDouble = true
		}
		l.pos++
	}
	if isDouble {
		return token.Token{Type: token.DOUBLE, Literal: l.input[start:l.pos], Pos: start}, nil
	}
	return token.Token{Type: token.INT, Literal: l.input[start:l.pos], Pos: start}, nil
}

func isHexDigit(c byte) bool {
	return unicode.IsDigit(rune(c)) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func (l *Lexer) lexIdent(start int) (token.Token, error) {
	for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
		l.pos++
	}
	// '.' is not an identifier character, so a key path lexes as IDENT
	// and DOT tokens; the parser reassembles the segments and validates
	// each one.
	lit := l.input[start:l.pos]
	upper := strings.ToUpper(lit)
	if kw, ok := token.Lookup(upper); ok {
		return token.Token{Type: kw, Literal: lit, Pos: start}, nil
	}
	return token.Token{Type: token.IDENT, Literal: lit, Pos: start}, nil
}

// LexError carries the byte offset a lexical error occurred at, so the
// parser can surface a query fragment in the build error (§7).
type LexError struct {
	Pos     int
	Message string
}

func (e *LexError) Error() string { return e.Message }

func newLexError(pos int, format string, args ...any) *LexError {
	return &LexError{Pos: pos, Message: fmt.Sprintf(format, args...)}
}
