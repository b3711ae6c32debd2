// Package token defines the lexical tokens of the predicate DSL (§4.5).
package token

// Type identifies a lexical token kind.
type Type int

const (
	ILLEGAL Type = iota
	EOF

	// Literals and identifiers.
	IDENT    // one key-path segment: property, @links
	ARG      // $0, $1, ...
	INT      // 123, 0x1F
	DOUBLE   // 1.5
	STRING   // "a\tb"
	BOOL     // true, false
	NULLLIT  // NULL, NIL
	TIMELIT  // T123:456
	ISOTIME  // 2024-01-02@10:00:00
	BINARY   // B64"...=="

	// Operators.
	EQ        // == or =
	NEQ       // != or <>
	LT        // <
	LTE       // <= or =<
	GT        // >
	GTE       // >= or =>
	CONTAINS  // contains
	BEGINS    // beginswith
	ENDS      // endswith
	LIKE      // like
	CASEFOLD  // [c]

	DOT    // .
	COMMA  // ,
	LPAREN // (
	RPAREN // )

	// Keywords.
	AND
	OR
	NOT
	IN
	ANY
	SOME
	ALL
	NONE
	SUBQUERY
	SORT
	DISTINCT
	LIMIT
	INCLUDE
	ASC
	DESC
	TRUEPREDICATE
	FALSEPREDICATE
)

var keywords = map[string]Type{
	"AND":            AND,
	"&&":             AND,
	"OR":             OR,
	"||":             OR,
	"NOT":            NOT,
	"IN":             IN,
	"ANY":            ANY,
	"SOME":           SOME,
	"ALL":            ALL,
	"NONE":           NONE,
	"SUBQUERY":       SUBQUERY,
	"SORT":           SORT,
	"DISTINCT":       DISTINCT,
	"LIMIT":          LIMIT,
	"INCLUDE":        INCLUDE,
	"ASC":            ASC,
	"DESC":           DESC,
	"TRUE":           BOOL,
	"FALSE":          BOOL,
	"NULL":           NULLLIT,
	"NIL":            NULLLIT,
	"CONTAINS":       CONTAINS,
	"BEGINSWITH":     BEGINS,
	"ENDSWITH":       ENDS,
	"LIKE":           LIKE,
	"TRUEPREDICATE":  TRUEPREDICATE,
	"FALSEPREDICATE": FALSEPREDICATE,
}

// Lookup returns the keyword token for an uppercased identifier, or
// (IDENT, false) if ident is not a keyword.
func Lookup(ident string) (Type, bool) {
	t, ok := keywords[ident]
	return t, ok
}

// Token is one lexical unit: its type, literal text, and byte offset
// (used to attach query-fragment context to build errors, §6/§7).
type Token struct {
	Type    Type
	Literal string
	Pos     int
}
