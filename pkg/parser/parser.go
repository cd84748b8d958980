// Package parser turns template source into an ast.Root.
//
// # Usage
//
//	root, err := parser.ParseFile("page.html", src)
//	if err != nil {
//	    // err is a *core.Error of kind core.SyntaxError
//	}
//
// # Grammar Overview
//
//	template   → (text | output | tag | comment)*
//	output     → "{{" expr "}}" | "{{" "super()" "}}" | "{{" ns "::" name args "}}"
//	tag        → "{%" keyword ... "%}"
//	comment    → "{#" ... "#}"
//
// Tags:
//
//	block name ... endblock [name]
//	extends "file"
//	import "file" as ns
//	macro name(param [= default], ...) ... endmacro [name]
//	if expr ... (elif expr ...)* [else ...] endif
//	for [key ,] value in expr ... [else ...] endfor
//	set name = expr
//	raw ... endraw
//
// Any delimiter may carry a "-" marker ("{%-", "-%}") to strip the adjacent
// whitespace. The parser has no cross-file knowledge: extends and import
// targets are recorded, never loaded.
package parser

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/leaptmpl/pkg/ast"
	"github.com/leapstack-labs/leaptmpl/pkg/core"
	"github.com/leapstack-labs/leaptmpl/pkg/token"
)

// Parser builds a template tree from lexer tokens.
type Parser struct {
	name   string
	tokens []Token
	pos    int
}

// endTag is the tag that terminated a body.
type endTag struct {
	keyword string
	tok     Token
	expr    *exprParser // positioned after the keyword
}

// Parse parses an anonymous template.
func Parse(source string) (*ast.Root, error) {
	return ParseFile("", source)
}

// ParseFile parses source, stamping name onto any error it returns.
func ParseFile(name, source string) (*ast.Root, error) {
	tokens, err := NewLexer(source).Tokenize()
	if err != nil {
		return nil, core.WithTemplate(err, name)
	}

	p := &Parser{name: name, tokens: tokens}
	nodes, _, err := p.parseNodes()
	if err != nil {
		return nil, core.WithTemplate(err, name)
	}

	return ast.NewRoot(token.Position{Line: 1, Column: 1}, nodes), nil
}

type positioned interface{ At(token.Position) }

// at sets the position of a freshly built node and returns it.
func at[T positioned](n T, pos token.Position) T {
	n.At(pos)
	return n
}

func (p *Parser) errorf(pos token.Position, format string, args ...any) error {
	return core.Errorf(core.SyntaxError, pos, format, args...)
}

// next returns the current token and advances.
func (p *Parser) next() Token {
	tok := p.tokens[p.pos]
	if tok.Type != TokenEOF {
		p.pos++
	}
	return tok
}

// parseNodes parses nodes until EOF or a tag whose keyword is in ends.
// The terminating tag is returned; it is nil at EOF.
func (p *Parser) parseNodes(ends ...string) ([]ast.Node, *endTag, error) {
	var nodes []ast.Node

	for {
		tok := p.next()
		switch tok.Type {
		case TokenEOF:
			return nodes, nil, nil

		case TokenText:
			nodes = append(nodes, at(&ast.Text{Value: tok.Value}, tok.Pos))

		case TokenRaw:
			nodes = append(nodes, at(&ast.Raw{Value: tok.Value}, tok.Pos))

		case TokenOutput:
			n, err := p.parseOutput(tok)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, n)

		case TokenTag:
			ep := newExprParser(tok.Value, tok.ContentPos)
			if !ep.check(token.IDENT) {
				return nil, nil, p.errorf(tok.Pos, "expected a tag name, found %s", describe(ep.token))
			}
			keyword := ep.token.Literal
			ep.nextToken()

			if slices.Contains(ends, keyword) {
				return nodes, &endTag{keyword: keyword, tok: tok, expr: ep}, nil
			}

			n, err := p.parseTag(keyword, tok, ep)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, n)
		}
	}
}

// parseOutput parses a {{ }} tag.
func (p *Parser) parseOutput(tok Token) (ast.Node, error) {
	if strings.Join(strings.Fields(tok.Value), "") == "super()" {
		return at(&ast.Super{}, tok.Pos), nil
	}

	ep := newExprParser(tok.Value, tok.ContentPos)
	if ep.check(token.EOF) {
		return nil, p.errorf(tok.Pos, "empty expression")
	}
	expr := ep.parseExpression()
	ep.expectEnd("expression")
	if err := ep.err(); err != nil {
		return nil, err
	}

	if call, ok := expr.(*ast.MacroCall); ok {
		return call, nil
	}
	return at(&ast.Output{Expr: expr}, tok.Pos), nil
}

// parseTag dispatches on the tag keyword.
func (p *Parser) parseTag(keyword string, tok Token, ep *exprParser) (ast.Node, error) {
	switch keyword {
	case "block":
		return p.parseBlock(tok, ep)
	case "extends":
		return p.parseExtends(tok, ep)
	case "import":
		return p.parseImport(tok, ep)
	case "macro":
		return p.parseMacro(tok, ep)
	case "if":
		return p.parseIf(tok, ep)
	case "for":
		return p.parseFor(tok, ep)
	case "set":
		return p.parseSet(tok, ep)
	case "raw":
		return p.parseRaw(tok)
	case "endblock", "endmacro", "endif", "endfor", "endraw", "elif", "else":
		return nil, p.errorf(tok.Pos, ErrUnexpectedTag, keyword)
	default:
		return nil, p.errorf(tok.Pos, ErrUnknownTag, keyword)
	}
}

// parseBody parses nodes up to one of ends, failing at EOF.
func (p *Parser) parseBody(opener Token, openKeyword string, ends ...string) ([]ast.Node, *endTag, error) {
	body, end, err := p.parseNodes(ends...)
	if err != nil {
		return nil, nil, err
	}
	if end == nil {
		return nil, nil, p.errorf(opener.Pos, ErrUnclosedTag, openKeyword, quoteAll(ends))
	}
	return body, end, nil
}

// closeNamed validates "endblock [name]" style terminators.
func (p *Parser) closeNamed(end *endTag, kind, name string) error {
	if end.expr.check(token.IDENT) {
		if got := end.expr.token.Literal; got != name {
			return p.errorf(end.tok.Pos, ErrMismatchedEnd, end.keyword+" "+got, kind, name)
		}
		end.expr.nextToken()
	}
	end.expr.expectEnd(end.keyword)
	return end.expr.err()
}

// parseBlock: {% block name %} ... {% endblock [name] %}
func (p *Parser) parseBlock(tok Token, ep *exprParser) (ast.Node, error) {
	name := ep.expectIdent()
	ep.expectEnd("block " + name)
	if err := ep.err(); err != nil {
		return nil, err
	}

	body, end, err := p.parseBody(tok, "block", "endblock")
	if err != nil {
		return nil, err
	}
	if err := p.closeNamed(end, "block", name); err != nil {
		return nil, err
	}
	return at(&ast.Block{Name: name, Body: body}, tok.Pos), nil
}

// parseExtends: {% extends "file" %}
func (p *Parser) parseExtends(tok Token, ep *exprParser) (ast.Node, error) {
	name := ep.expectString()
	ep.expectEnd("extends")
	if err := ep.err(); err != nil {
		return nil, err
	}
	return at(&ast.Extends{Name: name}, tok.Pos), nil
}

// parseImport: {% import "file" as ns %}
func (p *Parser) parseImport(tok Token, ep *exprParser) (ast.Node, error) {
	file := ep.expectString()
	if !ep.failed() {
		ep.expect(token.AS)
	}
	ns := ""
	if !ep.failed() {
		ns = ep.expectIdent()
	}
	ep.expectEnd("import")
	if err := ep.err(); err != nil {
		return nil, err
	}
	if ns == "self" {
		return nil, p.errorf(tok.Pos, `"self" is reserved and cannot be used as an import namespace`)
	}
	return at(&ast.ImportMacro{File: file, Namespace: ns}, tok.Pos), nil
}

// parseMacro: {% macro name(a, b=default) %} ... {% endmacro [name] %}
func (p *Parser) parseMacro(tok Token, ep *exprParser) (ast.Node, error) {
	name := ep.expectIdent()
	var params []ast.Param

	if !ep.failed() && ep.expect(token.LPAREN) {
		seen := make(map[string]bool)
		for !ep.check(token.RPAREN) && !ep.failed() {
			param := ast.Param{Name: ep.expectIdent()}
			if ep.failed() {
				break
			}
			if seen[param.Name] {
				return nil, p.errorf(tok.Pos, "macro %q declares parameter %q twice", name, param.Name)
			}
			seen[param.Name] = true

			if ep.match(token.ASSIGN) {
				param.Default = ep.parseExpression()
			} else if len(params) > 0 && params[len(params)-1].Default != nil {
				return nil, p.errorf(tok.Pos, "macro %q: required parameter %q follows a parameter with a default", name, param.Name)
			}
			params = append(params, param)

			if !ep.match(token.COMMA) {
				break
			}
		}
		if !ep.failed() {
			ep.expect(token.RPAREN)
		}
	}
	ep.expectEnd("macro " + name)
	if err := ep.err(); err != nil {
		return nil, err
	}

	body, end, err := p.parseBody(tok, "macro", "endmacro")
	if err != nil {
		return nil, err
	}
	if err := p.closeNamed(end, "macro", name); err != nil {
		return nil, err
	}
	return at(&ast.Macro{Name: name, Params: params, Body: body}, tok.Pos), nil
}

// parseIf: {% if c %} ... {% elif c %} ... {% else %} ... {% endif %}
func (p *Parser) parseIf(tok Token, ep *exprParser) (ast.Node, error) {
	node := at(&ast.If{}, tok.Pos)

	cond, err := p.tagExpression(ep, "if")
	if err != nil {
		return nil, err
	}

	for {
		body, end, err := p.parseBody(tok, "if", "elif", "else", "endif")
		if err != nil {
			return nil, err
		}
		node.Branches = append(node.Branches, ast.Branch{Cond: cond, Body: body})

		switch end.keyword {
		case "elif":
			if cond, err = p.tagExpression(end.expr, "elif"); err != nil {
				return nil, err
			}
			continue
		case "else":
			end.expr.expectEnd("else")
			if err := end.expr.err(); err != nil {
				return nil, err
			}
			elseBody, closing, err := p.parseBody(tok, "if", "endif")
			if err != nil {
				return nil, err
			}
			node.Else = elseBody
			end = closing
		}

		end.expr.expectEnd("endif")
		if err := end.expr.err(); err != nil {
			return nil, err
		}
		return node, nil
	}
}

// parseFor: {% for [k,] v in expr %} ... {% else %} ... {% endfor %}
func (p *Parser) parseFor(tok Token, ep *exprParser) (ast.Node, error) {
	node := at(&ast.For{}, tok.Pos)

	node.Value = ep.expectIdent()
	if ep.match(token.COMMA) {
		node.Key = node.Value
		node.Value = ep.expectIdent()
	}
	if !ep.failed() {
		ep.expect(token.IN)
	}
	if err := ep.err(); err != nil {
		return nil, err
	}
	iter, err := p.tagExpression(ep, "for")
	if err != nil {
		return nil, err
	}
	node.Iterable = iter

	body, end, err := p.parseBody(tok, "for", "else", "endfor")
	if err != nil {
		return nil, err
	}
	node.Body = body

	if end.keyword == "else" {
		end.expr.expectEnd("else")
		if err := end.expr.err(); err != nil {
			return nil, err
		}
		if node.Else, end, err = p.parseBody(tok, "for", "endfor"); err != nil {
			return nil, err
		}
	}

	end.expr.expectEnd("endfor")
	if err := end.expr.err(); err != nil {
		return nil, err
	}
	return node, nil
}

// parseSet: {% set name = expr %}
func (p *Parser) parseSet(tok Token, ep *exprParser) (ast.Node, error) {
	name := ep.expectIdent()
	if !ep.failed() {
		ep.expect(token.ASSIGN)
	}
	if err := ep.err(); err != nil {
		return nil, err
	}
	expr, err := p.tagExpression(ep, "set")
	if err != nil {
		return nil, err
	}
	return at(&ast.Set{Name: name, Expr: expr}, tok.Pos), nil
}

// parseRaw consumes the raw content and endraw emitted by the lexer.
func (p *Parser) parseRaw(tok Token) (ast.Node, error) {
	raw := p.next()
	if raw.Type != TokenRaw {
		return nil, p.errorf(tok.Pos, ErrUnclosedTag, "raw", `"endraw"`)
	}
	p.next() // endraw
	return at(&ast.Raw{Value: raw.Value}, tok.Pos), nil
}

// tagExpression parses the rest of a tag as a single expression.
func (p *Parser) tagExpression(ep *exprParser, keyword string) (ast.Expr, error) {
	if ep.check(token.EOF) {
		ep.addError(fmt.Sprintf("%q requires an expression", keyword))
		return nil, ep.err()
	}
	expr := ep.parseExpression()
	ep.expectEnd(keyword)
	if err := ep.err(); err != nil {
		return nil, err
	}
	return expr, nil
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(quoted, " or ")
}
