package parser

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/leaptmpl/pkg/ast"
	"github.com/leapstack-labs/leaptmpl/pkg/core"
	"github.com/leapstack-labs/leaptmpl/pkg/token"
)

// Expression precedence parsing using a Pratt parser.
//
// Precedence levels:
//
//	precedenceNone       = 0
//	precedenceOr         = 1
//	precedenceAnd        = 2
//	precedenceNot        = 3
//	precedenceComparison = 4  (==, !=, <, >, <=, >=, in, not in, is)
//	precedenceAddition   = 5  (+, -, ~)
//	precedenceMultiply   = 6  (*, /, %)
//	precedenceUnary      = 7  (-, +)
//	precedencePostfix    = 8  (| filter, .attr, [index])
//
// Postfix operators bind to the primary they follow, so "a + b | upper"
// filters only b.
const (
	precedenceNone = iota
	precedenceOr
	precedenceAnd
	precedenceNot
	precedenceComparison
	precedenceAddition
	precedenceMultiply
	precedenceUnary
	precedencePostfix
)

// exprParser parses the content of a single output or statement tag.
type exprParser struct {
	lexer  *exprLexer
	token  token.Token // current token
	peek   token.Token // lookahead token
	errors []error
}

func newExprParser(input string, base token.Position) *exprParser {
	p := &exprParser{lexer: newExprLexer(input, base)}
	// Read two tokens to initialize current and peek
	p.nextToken()
	p.nextToken()
	return p
}

// ---------- Token Helpers ----------

// nextToken advances to the next token.
func (p *exprParser) nextToken() {
	p.token = p.peek
	p.peek = p.lexer.NextToken()
}

// check returns true if the current token is of the given type.
func (p *exprParser) check(t token.TokenType) bool {
	return p.token.Type == t
}

// match consumes the current token if it matches and returns true.
func (p *exprParser) match(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise adds an error.
func (p *exprParser) expect(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.unexpected(t.String())
	return false
}

// expectIdent consumes an identifier and returns its name.
func (p *exprParser) expectIdent() string {
	name := p.token.Literal
	if !p.expect(token.IDENT) {
		return ""
	}
	return name
}

// expectString consumes a string literal and returns its value.
func (p *exprParser) expectString() string {
	s := p.token.Literal
	if !p.expect(token.STRING) {
		return ""
	}
	return s
}

// expectEnd requires that the tag content has been fully consumed.
func (p *exprParser) expectEnd(after string) {
	if !p.check(token.EOF) {
		p.addError(fmt.Sprintf(ErrTrailingTokens, describe(p.token), after))
	}
}

// unexpected reports the current token as unexpected.
func (p *exprParser) unexpected(expected string) {
	if p.token.Type == token.ILLEGAL && p.token.Literal == ErrUnterminatedString {
		p.addError(ErrUnterminatedString)
		return
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), expected))
}

// addError records a syntax error at the current token. Only the first
// error is kept; later ones are usually consequences of it.
func (p *exprParser) addError(msg string) {
	if len(p.errors) > 0 {
		return
	}
	p.errors = append(p.errors, core.Errorf(core.SyntaxError, p.token.Pos, "%s", msg))
}

// err returns the first recorded error.
func (p *exprParser) err() error {
	if len(p.errors) == 0 {
		return nil
	}
	return p.errors[0]
}

func (p *exprParser) failed() bool { return len(p.errors) > 0 }

func describe(t token.Token) string {
	switch t.Type {
	case token.EOF:
		return "end of tag"
	case token.IDENT, token.NUMBER:
		return strconv.Quote(t.Literal)
	case token.STRING:
		return "string " + strconv.Quote(t.Literal)
	case token.ILLEGAL:
		return fmt.Sprintf("character %q", t.Literal)
	default:
		return strconv.Quote(t.Type.String())
	}
}

// ---------- Expressions ----------

// parseExpression parses an expression using precedence climbing.
func (p *exprParser) parseExpression() ast.Expr {
	return p.parseExpressionWithPrecedence(precedenceNone + 1)
}

// parseExpressionWithPrecedence implements Pratt parsing.
func (p *exprParser) parseExpressionWithPrecedence(minPrecedence int) ast.Expr {
	left := p.parsePrefixExpr()
	if left == nil {
		return nil
	}

	for !p.failed() {
		prec := p.infixPrecedence()
		if prec < minPrecedence {
			break
		}
		left = p.parseInfixExpr(left, prec)
		if left == nil {
			return nil
		}
	}

	return left
}

// parsePrefixExpr parses unary operators and primary expressions.
func (p *exprParser) parsePrefixExpr() ast.Expr {
	pos := p.token.Pos
	switch p.token.Type {
	case token.NOT:
		p.nextToken()
		x := p.parseExpressionWithPrecedence(precedenceNot)
		if x == nil {
			return nil
		}
		return at(&ast.Unary{Op: token.NOT, X: x}, pos)

	case token.MINUS, token.PLUS:
		op := p.token.Type
		p.nextToken()
		x := p.parseExpressionWithPrecedence(precedenceUnary)
		if x == nil {
			return nil
		}
		return at(&ast.Unary{Op: op, X: x}, pos)

	default:
		return p.parsePostfix(p.parsePrimary())
	}
}

// infixPrecedence returns the precedence of the current token as an infix
// operator, or precedenceNone.
func (p *exprParser) infixPrecedence() int {
	switch p.token.Type {
	case token.OR:
		return precedenceOr
	case token.AND:
		return precedenceAnd
	case token.EQ, token.NE, token.LT, token.GT, token.LE, token.GE, token.IN, token.IS:
		return precedenceComparison
	case token.NOT:
		// only as "not in"
		if p.peek.Type == token.IN {
			return precedenceComparison
		}
		return precedenceNone
	case token.PLUS, token.MINUS, token.TILDE:
		return precedenceAddition
	case token.STAR, token.SLASH, token.PERCENT:
		return precedenceMultiply
	default:
		return precedenceNone
	}
}

// parseInfixExpr parses an infix expression given the left operand.
func (p *exprParser) parseInfixExpr(left ast.Expr, prec int) ast.Expr {
	pos := p.token.Pos

	switch p.token.Type {
	case token.IS:
		return p.parseTest(left)
	case token.NOT:
		p.nextToken() // not
		p.nextToken() // in
		right := p.parseExpressionWithPrecedence(prec + 1)
		if right == nil {
			return nil
		}
		return at(&ast.Binary{Op: token.IN, Left: left, Right: right, Negate: true}, pos)
	}

	op := p.token.Type
	p.nextToken()
	right := p.parseExpressionWithPrecedence(prec + 1)
	if right == nil {
		if !p.failed() {
			p.unexpected("expression")
		}
		return nil
	}
	return at(&ast.Binary{Op: op, Left: left, Right: right}, pos)
}

// parseTest parses "is [not] name".
func (p *exprParser) parseTest(left ast.Expr) ast.Expr {
	pos := p.token.Pos
	p.nextToken() // is
	negate := p.match(token.NOT)

	var name string
	switch p.token.Type {
	case token.IDENT:
		name = p.token.Literal
	case token.NONE:
		name = "none"
	default:
		p.unexpected("test name")
		return nil
	}
	p.nextToken()
	return at(&ast.Test{X: left, Name: name, Negate: negate}, pos)
}

// parsePrimary parses literals, names, parenthesized expressions, array
// literals and namespaced macro calls.
func (p *exprParser) parsePrimary() ast.Expr {
	pos := p.token.Pos

	switch p.token.Type {
	case token.NUMBER:
		lit := p.token.Literal
		p.nextToken()
		if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
			return at(&ast.Literal{Kind: ast.LitInt, Int: i}, pos)
		}
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			p.addError(fmt.Sprintf(ErrInvalidNumber, lit))
			return nil
		}
		return at(&ast.Literal{Kind: ast.LitFloat, Float: f}, pos)

	case token.STRING:
		s := p.token.Literal
		p.nextToken()
		return at(&ast.Literal{Kind: ast.LitString, Str: s}, pos)

	case token.TRUE, token.FALSE:
		b := p.check(token.TRUE)
		p.nextToken()
		return at(&ast.Literal{Kind: ast.LitBool, Bool: b}, pos)

	case token.NONE:
		p.nextToken()
		return at(&ast.Literal{Kind: ast.LitNone}, pos)

	case token.LPAREN:
		p.nextToken()
		x := p.parseExpression()
		if x == nil || !p.expect(token.RPAREN) {
			return nil
		}
		return x

	case token.LBRACKET:
		p.nextToken()
		arr := at(&ast.ArrayLit{}, pos)
		for !p.check(token.RBRACKET) {
			item := p.parseExpression()
			if item == nil {
				return nil
			}
			arr.Items = append(arr.Items, item)
			if !p.match(token.COMMA) {
				break
			}
		}
		if !p.expect(token.RBRACKET) {
			return nil
		}
		return arr

	case token.IDENT:
		name := p.token.Literal
		p.nextToken()
		switch p.token.Type {
		case token.COLON2:
			return p.parseMacroCall(name, pos)
		case token.LPAREN:
			if name == "super" {
				p.addError(ErrSuperAlone)
			} else {
				p.addError(fmt.Sprintf(ErrNoFunctionCalls, name))
			}
			return nil
		}
		return at(&ast.Name{Name: name}, pos)

	default:
		p.unexpected("expression")
		return nil
	}
}

// parsePostfix applies attribute, index and filter operators to x.
func (p *exprParser) parsePostfix(x ast.Expr) ast.Expr {
	for x != nil && !p.failed() {
		pos := p.token.Pos
		switch p.token.Type {
		case token.DOT:
			p.nextToken()
			var name string
			switch p.token.Type {
			case token.IDENT:
				name = p.token.Literal
			case token.NUMBER:
				// items.0 is the same as items[0]
				name = p.token.Literal
			default:
				if token.IsKeyword(p.token.Type) {
					name = p.token.Literal
					break
				}
				p.unexpected("attribute name")
				return nil
			}
			p.nextToken()
			x = at(&ast.Attr{X: x, Name: name}, pos)

		case token.LBRACKET:
			p.nextToken()
			idx := p.parseExpression()
			if idx == nil || !p.expect(token.RBRACKET) {
				return nil
			}
			x = at(&ast.Index{X: x, Index: idx}, pos)

		case token.PIPE:
			p.nextToken()
			name := p.expectIdent()
			if name == "" {
				return nil
			}
			f := at(&ast.Filter{X: x, Name: name}, pos)
			if p.check(token.LPAREN) {
				args, ok := p.parseArgs()
				if !ok {
					return nil
				}
				f.Args = args
			}
			x = f

		default:
			return x
		}
	}
	return x
}

// parseMacroCall parses ns::name(args); the namespace is already consumed.
func (p *exprParser) parseMacroCall(ns string, pos token.Position) ast.Expr {
	p.nextToken() // ::
	name := p.expectIdent()
	if name == "" {
		return nil
	}
	if !p.check(token.LPAREN) {
		p.unexpected(`"("`)
		return nil
	}
	args, ok := p.parseArgs()
	if !ok {
		return nil
	}
	return at(&ast.MacroCall{Namespace: ns, Name: name, Args: args}, pos)
}

// parseArgs parses a parenthesized argument list. Positional arguments must
// precede named ones.
func (p *exprParser) parseArgs() ([]ast.Arg, bool) {
	p.nextToken() // (
	var args []ast.Arg
	named := false

	for !p.check(token.RPAREN) {
		var arg ast.Arg
		if p.check(token.IDENT) && p.peek.Type == token.ASSIGN {
			arg.Name = p.token.Literal
			p.nextToken()
			p.nextToken()
			named = true
		} else if named {
			p.addError("positional argument follows named argument")
			return nil, false
		}

		arg.Value = p.parseExpression()
		if arg.Value == nil {
			return nil, false
		}
		args = append(args, arg)

		if !p.match(token.COMMA) {
			break
		}
	}

	if !p.expect(token.RPAREN) {
		return nil, false
	}
	return args, true
}
