// Package ast defines the syntax tree produced by the template parser.
//
// Trees are immutable once the parser returns them. Every node carries the
// position of its opening delimiter so later stages can report errors against
// the source.
package ast

import "github.com/leapstack-labs/leaptmpl/pkg/token"

// Node is the interface for all template nodes.
type Node interface {
	// Pos returns the position of the node's opening delimiter.
	Pos() token.Position
	node() // marker method to restrict implementation
}

// nodeBase provides common Position handling for all nodes.
type nodeBase struct {
	pos token.Position
}

func (n *nodeBase) Pos() token.Position { return n.pos }
func (n *nodeBase) node()               {}

// At sets the node position. Used by the parser while building nodes.
func (n *nodeBase) At(pos token.Position) { n.pos = pos }

// Root is the top-level node of a parsed template.
type Root struct {
	nodeBase
	Nodes []Node
}

// Text is literal template text, emitted unchanged.
type Text struct {
	nodeBase
	Value string
}

// Raw is the content of a {% raw %} region, emitted unchanged.
type Raw struct {
	nodeBase
	Value string
}

// Output is a {{ expr }} tag.
type Output struct {
	nodeBase
	Expr Expr
}

// Branch is one condition/body pair of an If.
type Branch struct {
	Cond Expr
	Body []Node
}

// If is an if / elif / else chain. Branches are tried in order; Else renders
// when none matches.
type If struct {
	nodeBase
	Branches []Branch
	Else     []Node
}

// For iterates Iterable binding Value (and Key for two-name loops).
// Else renders when the iterable is empty.
type For struct {
	nodeBase
	Key      string // empty for single-name loops
	Value    string
	Iterable Expr
	Body     []Node
	Else     []Node
}

// Block is a named, overridable region.
type Block struct {
	nodeBase
	Name string
	Body []Node
}

// Extends declares the parent template.
type Extends struct {
	nodeBase
	Name string
}

// Param is a macro parameter. Default is nil for required parameters.
type Param struct {
	Name    string
	Default Expr
}

// Macro is a named, parameterized body callable through a namespace.
type Macro struct {
	nodeBase
	Name   string
	Params []Param
	Body   []Node
}

// ImportMacro binds the macros of File under Namespace.
type ImportMacro struct {
	nodeBase
	File      string
	Namespace string
}

// Super renders the next-outer definition of the enclosing block.
type Super struct {
	nodeBase
}

// Set binds Name in the innermost scope.
type Set struct {
	nodeBase
	Name string
	Expr Expr
}

// NewRoot creates a root node.
func NewRoot(pos token.Position, nodes []Node) *Root {
	r := &Root{Nodes: nodes}
	r.pos = pos
	return r
}
