package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/leapstack-labs/leaptmpl/pkg/core"
	"github.com/leapstack-labs/leaptmpl/pkg/token"
)

// TokenType identifies a region of template source.
type TokenType int

// TokenType constants for template regions.
const (
	TokenText    TokenType = iota // Literal text
	TokenOutput                   // Content between {{ and }}
	TokenTag                      // Content between {% and %}
	TokenRaw                      // Verbatim content of a raw region
	TokenComment                  // Content between {# and #}, dropped after trimming
	TokenEOF                      // End of input
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "TEXT"
	case TokenOutput:
		return "OUTPUT"
	case TokenTag:
		return "TAG"
	case TokenRaw:
		return "RAW"
	case TokenComment:
		return "COMMENT"
	case TokenEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// Token is a region of template source.
type Token struct {
	Type  TokenType
	Value string         // text, or delimiter content with surrounding space removed
	Pos   token.Position // position of the opening delimiter (or first text byte)
	// ContentPos is the position of Value's first byte inside a delimiter.
	ContentPos token.Position
	TrimLeft   bool // "{%-" strips whitespace before the tag
	TrimRight  bool // "-%}" strips whitespace after the tag
}

var delimiters = []struct {
	open, close string
	typ         TokenType
}{
	{"{{", "}}", TokenOutput},
	{"{%", "%}", TokenTag},
	{"{#", "#}", TokenComment},
}

// Lexer splits template source into text and delimited regions.
type Lexer struct {
	input    string
	pos      int // current position in input
	line     int // current line number (1-based)
	col      int // current column number (1-based)
	lastLine int // line at start of current token
	lastCol  int // column at start of current token
	lastOff  int // offset at start of current token
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input: input,
		line:  1,
		col:   1,
	}
}

// Tokenize converts the input into a slice of tokens with whitespace
// control applied and comments removed.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token

	for {
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
		if tok.Type == TokenTag && tok.Value == "raw" {
			raw, end, err := l.scanRaw(tok)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, raw, end)
		}
	}

	return applyWhitespaceControl(tokens), nil
}

// nextToken returns the next token from the input.
func (l *Lexer) nextToken() (Token, error) {
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.position()}, nil
	}

	for _, d := range delimiters {
		if l.matchString(d.open) {
			return l.scanDelimited(d.open, d.close, d.typ)
		}
	}

	return l.scanText()
}

// scanText scans literal text until a delimiter or EOF.
func (l *Lexer) scanText() (Token, error) {
	l.markStart()
	start := l.pos

	for l.pos < len(l.input) {
		if l.atDelimiter() {
			break
		}
		l.advance()
	}

	if l.pos == start {
		return Token{}, core.Errorf(core.SyntaxError, l.position(), "unexpected state in lexer")
	}

	return Token{
		Type:  TokenText,
		Value: l.input[start:l.pos],
		Pos:   l.startPosition(),
	}, nil
}

// scanDelimited scans a region opened by open and closed by closer.
func (l *Lexer) scanDelimited(open, closer string, typ TokenType) (Token, error) {
	l.markStart()
	tok := Token{Type: typ, Pos: l.startPosition()}

	l.advanceN(len(open))
	if l.matchString("-") {
		tok.TrimLeft = true
		l.advance()
	}
	l.skipWhitespace()
	tok.ContentPos = l.position()
	contentStart := l.pos

	var quote rune
	for l.pos < len(l.input) {
		r := l.peek()

		// Delimiters inside string literals do not close the region.
		if typ != TokenComment {
			switch {
			case quote != 0 && r == '\\':
				l.advance()
				l.advance()
				continue
			case quote != 0 && r == quote:
				quote = 0
			case quote == 0 && (r == '\'' || r == '"'):
				quote = r
			}
		}

		if quote == 0 {
			if l.matchString("-" + closer) {
				tok.TrimRight = true
				tok.Value = strings.TrimSpace(l.input[contentStart:l.pos])
				l.advanceN(1 + len(closer))
				return tok, nil
			}
			if l.matchString(closer) {
				tok.Value = strings.TrimSpace(l.input[contentStart:l.pos])
				l.advanceN(len(closer))
				return tok, nil
			}
		}
		l.advance()
	}

	if quote != 0 {
		return Token{}, core.Errorf(core.SyntaxError, tok.Pos, "unterminated string literal inside %q", open)
	}
	return Token{}, core.Errorf(core.SyntaxError, tok.Pos, "unclosed %q: missing %q", open, closer)
}

// scanRaw consumes everything up to the matching {% endraw %} verbatim.
// It returns the raw content token and the endraw tag token.
func (l *Lexer) scanRaw(open Token) (Token, Token, error) {
	l.markStart()
	raw := Token{Type: TokenRaw, Pos: l.startPosition()}
	start := l.pos

	for l.pos < len(l.input) {
		if l.matchString("{%") {
			save := *l
			end, err := l.scanDelimited("{%", "%}", TokenTag)
			if err == nil && end.Value == "endraw" {
				raw.Value = l.input[start:save.pos]
				return raw, end, nil
			}
			*l = save
		}
		l.advance()
	}

	return Token{}, Token{}, core.Errorf(core.SyntaxError, open.Pos, "unclosed 'raw' block (missing 'endraw')")
}

// applyWhitespaceControl trims text adjacent to delimiters carrying "-"
// markers and removes comments and empty text.
func applyWhitespaceControl(tokens []Token) []Token {
	trimmable := func(t TokenType) bool { return t == TokenText || t == TokenRaw }

	for i := range tokens {
		if tokens[i].TrimLeft && i > 0 && trimmable(tokens[i-1].Type) {
			tokens[i-1].Value = strings.TrimRightFunc(tokens[i-1].Value, unicode.IsSpace)
		}
		if tokens[i].TrimRight && i+1 < len(tokens) && trimmable(tokens[i+1].Type) {
			tokens[i+1].Value = strings.TrimLeftFunc(tokens[i+1].Value, unicode.IsSpace)
		}
	}

	out := tokens[:0]
	for _, t := range tokens {
		if t.Type == TokenComment || (t.Type == TokenText && t.Value == "") {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Helper methods

// atDelimiter reports whether an opening delimiter starts at the current position.
func (l *Lexer) atDelimiter() bool {
	for _, d := range delimiters {
		if l.matchString(d.open) {
			return true
		}
	}
	return false
}

// peek returns the current rune without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

// advance moves to the next rune, updating position tracking.
func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size

	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

func (l *Lexer) advanceN(n int) {
	for range n {
		l.advance()
	}
}

// matchString checks if the input at current position matches s.
func (l *Lexer) matchString(s string) bool {
	return strings.HasPrefix(l.input[l.pos:], s)
}

// skipWhitespace skips whitespace characters, including newlines.
func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(l.peek()) {
		l.advance()
	}
}

// markStart records the start position for the current token.
func (l *Lexer) markStart() {
	l.lastLine = l.line
	l.lastCol = l.col
	l.lastOff = l.pos
}

// position returns the current position.
func (l *Lexer) position() token.Position {
	return token.Position{Line: l.line, Column: l.col, Offset: l.pos}
}

// startPosition returns the position where the current token started.
func (l *Lexer) startPosition() token.Position {
	return token.Position{Line: l.lastLine, Column: l.lastCol, Offset: l.lastOff}
}
