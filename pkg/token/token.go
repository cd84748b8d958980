// Package token defines the lexical tokens of template expressions.
//
// Template text is split into text, output, statement and comment regions by
// the template lexer; the content of output and statement regions is then
// tokenized with the types below.
package token

import "fmt"

// TokenType represents the type of an expression token.
//
//nolint:revive // token.TokenType reads clearly at call sites
type TokenType int32

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Literals
	IDENT  // identifier
	NUMBER // 123, 45.67, 1e10
	STRING // 'hello' or "hello"

	// Operators
	PLUS     // +
	MINUS    // -
	STAR     // *
	SLASH    // /
	PERCENT  // %
	TILDE    // ~
	PIPE     // |
	ASSIGN   // =
	EQ       // ==
	NE       // !=
	LT       // <
	GT       // >
	LE       // <=
	GE       // >=
	DOT      // .
	COMMA    // ,
	COLON2   // ::
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]

	// Keywords (alphabetical)
	AND
	AS
	FALSE
	IN
	IS
	NONE
	NOT
	OR
	TRUE
)

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

var tokenNames = map[TokenType]string{
	EOF:     "EOF",
	ILLEGAL: "ILLEGAL",

	IDENT:  "IDENT",
	NUMBER: "NUMBER",
	STRING: "STRING",

	PLUS:     "+",
	MINUS:    "-",
	STAR:     "*",
	SLASH:    "/",
	PERCENT:  "%",
	TILDE:    "~",
	PIPE:     "|",
	ASSIGN:   "=",
	EQ:       "==",
	NE:       "!=",
	LT:       "<",
	GT:       ">",
	LE:       "<=",
	GE:       ">=",
	DOT:      ".",
	COMMA:    ",",
	COLON2:   "::",
	LPAREN:   "(",
	RPAREN:   ")",
	LBRACKET: "[",
	RBRACKET: "]",

	AND:   "and",
	AS:    "as",
	FALSE: "false",
	IN:    "in",
	IS:    "is",
	NONE:  "none",
	NOT:   "not",
	OR:    "or",
	TRUE:  "true",
}

// keywords maps keyword spellings to their token types. Both the lowercase
// and the capitalized boolean/none spellings are accepted.
var keywords = map[string]TokenType{
	"and":   AND,
	"as":    AS,
	"false": FALSE,
	"False": FALSE,
	"in":    IN,
	"is":    IS,
	"none":  NONE,
	"None":  NONE,
	"null":  NONE,
	"not":   NOT,
	"or":    OR,
	"true":  TRUE,
	"True":  TRUE,
}

// LookupIdent returns the token type for the given identifier.
// If the identifier is a keyword, the keyword token type is returned.
// Otherwise, IDENT is returned.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword returns true if the token type is a keyword.
func IsKeyword(t TokenType) bool {
	return t >= AND && t <= TRUE
}

// IsOperator returns true if the token type is an operator.
func IsOperator(t TokenType) bool {
	return t >= PLUS && t <= RBRACKET
}

// Token represents a lexical token with position information.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}
