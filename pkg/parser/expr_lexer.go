package parser

import (
	"strings"
	"unicode"

	"github.com/leapstack-labs/leaptmpl/pkg/token"
)

// exprLexer tokenizes the content of an output or statement tag.
type exprLexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)
	base    token.Position
}

// newExprLexer creates a lexer for input whose first byte sits at base.
func newExprLexer(input string, base token.Position) *exprLexer {
	l := &exprLexer{
		input: input,
		line:  base.Line,
		col:   base.Column - 1,
		base:  base,
	}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *exprLexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	if l.pos < len(l.input) && l.readPos > 0 && l.input[l.pos] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.pos = l.readPos
	l.readPos++
}

// peekChar returns the next character without advancing.
func (l *exprLexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// currentPos returns the current position.
func (l *exprLexer) currentPos() token.Position {
	return token.Position{
		Line:   l.line,
		Column: l.col,
		Offset: l.base.Offset + l.pos,
	}
}

// NextToken returns the next token.
func (l *exprLexer) NextToken() token.Token {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}

	pos := l.currentPos()
	two := func(tt token.TokenType, lit string) token.Token {
		l.readChar()
		l.readChar()
		return token.Token{Type: tt, Literal: lit, Pos: pos}
	}
	one := func(tt token.TokenType) token.Token {
		lit := string(l.ch)
		l.readChar()
		return token.Token{Type: tt, Literal: lit, Pos: pos}
	}

	switch l.ch {
	case 0:
		if l.pos < len(l.input) {
			return one(token.ILLEGAL)
		}
		return token.Token{Type: token.EOF, Pos: pos}
	case '+':
		return one(token.PLUS)
	case '-':
		return one(token.MINUS)
	case '*':
		return one(token.STAR)
	case '/':
		return one(token.SLASH)
	case '%':
		return one(token.PERCENT)
	case '~':
		return one(token.TILDE)
	case '|':
		return one(token.PIPE)
	case '.':
		return one(token.DOT)
	case ',':
		return one(token.COMMA)
	case '(':
		return one(token.LPAREN)
	case ')':
		return one(token.RPAREN)
	case '[':
		return one(token.LBRACKET)
	case ']':
		return one(token.RBRACKET)
	case '=':
		if l.peekChar() == '=' {
			return two(token.EQ, "==")
		}
		return one(token.ASSIGN)
	case '!':
		if l.peekChar() == '=' {
			return two(token.NE, "!=")
		}
		return one(token.ILLEGAL)
	case '<':
		if l.peekChar() == '=' {
			return two(token.LE, "<=")
		}
		return one(token.LT)
	case '>':
		if l.peekChar() == '=' {
			return two(token.GE, ">=")
		}
		return one(token.GT)
	case ':':
		if l.peekChar() == ':' {
			return two(token.COLON2, "::")
		}
		return one(token.ILLEGAL)
	case '\'', '"':
		lit, ok := l.readString()
		if !ok {
			return token.Token{Type: token.ILLEGAL, Literal: ErrUnterminatedString, Pos: pos}
		}
		return token.Token{Type: token.STRING, Literal: lit, Pos: pos}
	}

	switch {
	case isLetter(l.ch) || l.ch == '_':
		lit := l.readIdentifier()
		return token.Token{Type: token.LookupIdent(lit), Literal: lit, Pos: pos}
	case isDigit(l.ch):
		return token.Token{Type: token.NUMBER, Literal: l.readNumber(), Pos: pos}
	default:
		return one(token.ILLEGAL)
	}
}

// readString reads a quoted string literal with backslash escapes.
// It reports false when the closing quote is missing.
func (l *exprLexer) readString() (string, bool) {
	quote := l.ch
	l.readChar() // skip opening quote

	var result strings.Builder
	for l.ch != 0 || l.pos < len(l.input) {
		switch l.ch {
		case quote:
			l.readChar() // skip closing quote
			return result.String(), true
		case '\\':
			l.readChar()
			switch l.ch {
			case 'n':
				result.WriteByte('\n')
			case 't':
				result.WriteByte('\t')
			case 'r':
				result.WriteByte('\r')
			default:
				result.WriteByte(l.ch)
			}
			l.readChar()
		default:
			result.WriteByte(l.ch)
			l.readChar()
		}
	}
	return result.String(), false
}

// readIdentifier reads an identifier.
func (l *exprLexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal (integer, decimal, or scientific).
func (l *exprLexer) readNumber() string {
	start := l.pos

	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // skip '.'
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	if (l.ch == 'e' || l.ch == 'E') && (isDigit(l.peekChar()) || l.peekChar() == '+' || l.peekChar() == '-') {
		l.readChar() // skip 'e' or 'E'
		if l.ch == '+' || l.ch == '-' {
			l.readChar() // skip sign
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	return l.input[start:l.pos]
}

// isLetter returns true if ch is an ASCII or Latin-1 letter.
func isLetter(ch byte) bool {
	return ch < utf8RuneSelf && unicode.IsLetter(rune(ch))
}

// isDigit returns true if ch is a digit.
func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

const utf8RuneSelf = 0x80
