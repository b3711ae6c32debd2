// Package parser implements the predicate DSL parser (C7, §4.5): lexes
// the query text and builds an ast.Query, the input to builder.go's
// lowering into condnode/expr/querytree.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lychee-technology/objectdb/internal/parser/ast"
	"github.com/lychee-technology/objectdb/internal/parser/lexer"
	"github.com/lychee-technology/objectdb/internal/parser/token"
)

// Parser is a recursive-descent parser over a token.Token stream,
// following the same lexer/parser split as the teacher corpus's SQL
// parsers (ha1tch-tsqlparser, freeeve-machparse).
type Parser struct {
	lex  *lexer.Lexer
	cur  token.Token
	peek token.Token
}

// SyntaxError carries the offending fragment's byte offset (§7: build
// errors "name... the offending... query fragment").
type SyntaxError struct {
	Pos     int
	Message string
}

func (e *SyntaxError) Error() string { return e.Message }

func newSyntaxError(pos int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// Parse parses a complete query string into an ast.Query.
func Parse(input string) (*ast.Query, error) {
	p := &Parser{lex: lexer.New(input)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	pred, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	var descriptors []ast.Node
	for p.cur.Type != token.EOF {
		d, err := p.parseDescriptor()
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}
	return &ast.Query{Predicate: pred, Descriptors: descriptors}, nil
}

func (p *Parser) advance() error {
	p.cur = p.peek
	t, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.peek = t
	return nil
}

func (p *Parser) expect(t token.Type, what string) (token.Token, error) {
	if p.cur.Type != t {
		return token.Token{}, newSyntaxError(p.cur.Pos, "expected %s, got %q", what, p.cur.Literal)
	}
	cur := p.cur
	if err := p.advance(); err != nil {
		return token.Token{}, err
	}
	return cur, nil
}

// parseOr := andExpr (OR andExpr)*
func (p *Parser) parseOr() (ast.Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.Type == token.OR {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = ast.Logical{Op: ast.LogicOr, Left: left, Right: right}
	}
	return left, nil
}

// parseAnd := unary (AND unary)*
func (p *Parser) parseAnd() (ast.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.Type == token.AND {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = ast.Logical{Op: ast.LogicAnd, Left: left, Right: right}
	}
	return left, nil
}

// parseUnary := NOT unary | primary
func (p *Parser) parseUnary() (ast.Node, error) {
	if p.cur.Type == token.NOT {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.Not{Inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (ast.Node, error) {
	switch p.cur.Type {
	case token.LPAREN:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN, ")"); err != nil {
			return nil, err
		}
		return inner, nil
	case token.TRUEPREDICATE:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return ast.TruePredicate{}, nil
	case token.FALSEPREDICATE:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return ast.FalsePredicate{}, nil
	case token.SUBQUERY:
		return p.parseSubquery()
	case token.ANY, token.SOME, token.ALL, token.NONE:
		return p.parseQuantified()
	case token.IDENT:
		return p.parseComparisonOrIn()
	default:
		return nil, newSyntaxError(p.cur.Pos, "unexpected token %q", p.cur.Literal)
	}
}

// parseKeyPath consumes a dot-joined identifier chain, e.g. `owner.pets`
// or `@links.Owner.pets`: the lexer tokenizes each segment and the '.'
// separators independently, so the parser reassembles them here.
func (p *Parser) parseKeyPath() (ast.KeyPath, error) {
	if p.cur.Type != token.IDENT {
		return ast.KeyPath{}, newSyntaxError(p.cur.Pos, "expected a key path, got %q", p.cur.Literal)
	}
	segments := []string{p.cur.Literal}
	if err := p.advance(); err != nil {
		return ast.KeyPath{}, err
	}
	for p.cur.Type == token.DOT {
		if err := p.advance(); err != nil {
			return ast.KeyPath{}, err
		}
		if p.cur.Type != token.IDENT {
			return ast.KeyPath{}, newSyntaxError(p.cur.Pos, "expected a property name after '.', got %q", p.cur.Literal)
		}
		segments = append(segments, p.cur.Literal)
		if err := p.advance(); err != nil {
			return ast.KeyPath{}, err
		}
	}
	return ast.KeyPath{Segments: segments}, nil
}

func (p *Parser) parseCompareOp() (ast.CompareOp, bool, error) {
	caseInsensitive := false
	var op ast.CompareOp
	switch p.cur.Type {
	case token.EQ:
		op = ast.OpEq
	case token.NEQ:
		op = ast.OpNeq
	case token.LT:
		op = ast.OpLt
	case token.LTE:
		op = ast.OpLte
	case token.GT:
		op = ast.OpGt
	case token.GTE:
		op = ast.OpGte
	case token.CONTAINS:
		op = ast.OpContains
	case token.BEGINS:
		op = ast.OpBeginsWith
	case token.ENDS:
		op = ast.OpEndsWith
	case token.LIKE:
		op = ast.OpLike
	default:
		return 0, false, newSyntaxError(p.cur.Pos, "expected a comparison operator, got %q", p.cur.Literal)
	}
	if err := p.advance(); err != nil {
		return 0, false, err
	}
	if p.cur.Type == token.CASEFOLD {
		caseInsensitive = true
		if err := p.advance(); err != nil {
			return 0, false, err
		}
	}
	return op, caseInsensitive, nil
}

func (p *Parser) parseComparisonOrIn() (ast.Node, error) {
	path, err := p.parseKeyPath()
	if err != nil {
		return nil, err
	}
	if p.cur.Type == token.IN {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expect(token.LPAREN, "("); err != nil {
			return nil, err
		}
		var items []ast.Node
		for {
			item, err := p.parseRHS()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			if p.cur.Type == token.COMMA {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
		if _, err := p.expect(token.RPAREN, ")"); err != nil {
			return nil, err
		}
		return ast.InList{Left: path, Items: items}, nil
	}
	op, caseInsensitive, err := p.parseCompareOp()
	if err != nil {
		return nil, err
	}
	rhs, err := p.parseRHS()
	if err != nil {
		return nil, err
	}
	return ast.Comparison{Left: path, Op: op, Right: rhs, CaseInsensitive: caseInsensitive}, nil
}

func (p *Parser) parseRHS() (ast.Node, error) {
	switch p.cur.Type {
	case token.ARG:
		idx, err := strconv.Atoi(p.cur.Literal)
		if err != nil {
			return nil, newSyntaxError(p.cur.Pos, "SUBQUERY variables cannot appear outside SUBQUERY")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return ast.ArgRef{Index: idx}, nil
	case token.INT:
		lit := p.cur.Literal
		if err := p.advance(); err != nil {
			return nil, err
		}
		return ast.Literal{Kind: ast.LitInt, Text: lit}, nil
	case token.DOUBLE:
		lit := p.cur.Literal
		if err := p.advance(); err != nil {
			return nil, err
		}
		return ast.Literal{Kind: ast.LitDouble, Text: lit}, nil
	case token.STRING:
		lit := p.cur.Literal
		if err := p.advance(); err != nil {
			return nil, err
		}
		return ast.Literal{Kind: ast.LitString, Text: lit}, nil
	case token.BOOL:
		lit := p.cur.Literal
		if err := p.advance(); err != nil {
			return nil, err
		}
		return ast.Literal{Kind: ast.LitBool, Text: lit}, nil
	case token.NULLLIT:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return ast.Literal{Kind: ast.LitNull}, nil
	case token.TIMELIT, token.ISOTIME:
		lit := p.cur.Literal
		kind := p.cur.Type
		if err := p.advance(); err != nil {
			return nil, err
		}
		_ = kind
		return ast.Literal{Kind: ast.LitTimestamp, Text: lit}, nil
	case token.BINARY:
		lit := p.cur.Literal
		if err := p.advance(); err != nil {
			return nil, err
		}
		return ast.Literal{Kind: ast.LitBinary, Text: lit}, nil
	case token.IDENT:
		path, err := p.parseKeyPath()
		if err != nil {
			return nil, err
		}
		return path, nil
	default:
		return nil, newSyntaxError(p.cur.Pos, "expected a literal, argument, or key path, got %q", p.cur.Literal)
	}
}

func (p *Parser) parseQuantified() (ast.Node, error) {
	var kind ast.QuantifierKind
	switch p.cur.Type {
	case token.ANY, token.SOME:
		kind = ast.QAny
	case token.ALL:
		kind = ast.QAll
	case token.NONE:
		kind = ast.QNone
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	full, err := p.parseKeyPath()
	if err != nil {
		return nil, err
	}
	if len(full.Segments) < 2 {
		return nil, newSyntaxError(p.cur.Pos, "quantifier requires a list path and a property, e.g. ANY list.prop > 0")
	}
	listPath := ast.KeyPath{Segments: full.Segments[:len(full.Segments)-1]}
	elemProp := full.Segments[len(full.Segments)-1]
	op, caseInsensitive, err := p.parseCompareOp()
	if err != nil {
		return nil, err
	}
	rhs, err := p.parseRHS()
	if err != nil {
		return nil, err
	}
	pred := ast.Comparison{Left: ast.KeyPath{Segments: []string{elemProp}}, Op: op, Right: rhs, CaseInsensitive: caseInsensitive}
	return ast.Quantified{Kind: kind, List: listPath, Predicate: pred}, nil
}

func (p *Parser) parseSubquery() (ast.Node, error) {
	if err := p.advance(); err != nil { // consume SUBQUERY
		return nil, err
	}
	if _, err := p.expect(token.LPAREN, "("); err != nil {
		return nil, err
	}
	list, err := p.parseKeyPath()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA, ","); err != nil {
		return nil, err
	}
	if p.cur.Type != token.ARG {
		return nil, newSyntaxError(p.cur.Pos, "expected a $variable name in SUBQUERY")
	}
	varName := p.cur.Literal
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA, ","); err != nil {
		return nil, err
	}
	pred, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN, ")"); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.DOT, "."); err != nil {
		return nil, err
	}
	if p.cur.Type != token.IDENT {
		return nil, newSyntaxError(p.cur.Pos, "expected @count or @size after SUBQUERY(...)")
	}
	suffix := strings.ToLower(p.cur.Literal)
	size := suffix == "@size"
	if !size && suffix != "@count" {
		return nil, newSyntaxError(p.cur.Pos, "expected @count or @size, got %q", p.cur.Literal)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return ast.Subquery{List: list, Var: varName, Predicate: pred, Size: size}, nil
}

func (p *Parser) parseDescriptor() (ast.Node, error) {
	switch p.cur.Type {
	case token.SORT:
		return p.parseSort()
	case token.DISTINCT:
		return p.parseDistinct()
	case token.LIMIT:
		return p.parseLimit()
	case token.INCLUDE:
		return p.parseInclude()
	default:
		return nil, newSyntaxError(p.cur.Pos, "expected a descriptor (SORT/DISTINCT/LIMIT/INCLUDE), got %q", p.cur.Literal)
	}
}

func (p *Parser) parseSort() (ast.Node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN, "("); err != nil {
		return nil, err
	}
	var keys []ast.SortKey
	for {
		path, err := p.parseKeyPath()
		if err != nil {
			return nil, err
		}
		desc := false
		if p.cur.Type == token.DESC {
			desc = true
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else if p.cur.Type == token.ASC {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		keys = append(keys, ast.SortKey{Path: path, Desc: desc})
		if p.cur.Type == token.COMMA {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if _, err := p.expect(token.RPAREN, ")"); err != nil {
		return nil, err
	}
	return ast.SortDescriptor{Keys: keys}, nil
}

func (p *Parser) parseDistinct() (ast.Node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN, "("); err != nil {
		return nil, err
	}
	var keys []ast.KeyPath
	for {
		path, err := p.parseKeyPath()
		if err != nil {
			return nil, err
		}
		keys = append(keys, path)
		if p.cur.Type == token.COMMA {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if _, err := p.expect(token.RPAREN, ")"); err != nil {
		return nil, err
	}
	return ast.DistinctDescriptor{Keys: keys}, nil
}

func (p *Parser) parseLimit() (ast.Node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN, "("); err != nil {
		return nil, err
	}
	if p.cur.Type != token.INT {
		return nil, newSyntaxError(p.cur.Pos, "expected an integer in LIMIT(...)")
	}
	n, err := strconv.Atoi(p.cur.Literal)
	if err != nil {
		return nil, newSyntaxError(p.cur.Pos, "invalid LIMIT value %q", p.cur.Literal)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN, ")"); err != nil {
		return nil, err
	}
	return ast.LimitDescriptor{N: n}, nil
}

func (p *Parser) parseInclude() (ast.Node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN, "("); err != nil {
		return nil, err
	}
	var paths []ast.KeyPath
	for {
		path, err := p.parseKeyPath()
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
		if p.cur.Type == token.COMMA {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if _, err := p.expect(token.RPAREN, ")"); err != nil {
		return nil, err
	}
	return ast.IncludeDescriptor{Paths: paths}, nil
}
