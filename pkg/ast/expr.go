package ast

import "github.com/leapstack-labs/leaptmpl/pkg/token"

// Expr is the interface for expression nodes.
type Expr interface {
	Pos() token.Position
	exprNode() // marker method to distinguish expressions
}

// exprBase provides common Position handling for expressions.
type exprBase struct {
	pos token.Position
}

func (e *exprBase) Pos() token.Position   { return e.pos }
func (e *exprBase) exprNode()             {}
func (e *exprBase) At(pos token.Position) { e.pos = pos }

// LiteralKind identifies the type of a Literal.
type LiteralKind int

// Literal kinds.
const (
	LitNone LiteralKind = iota
	LitBool
	LitInt
	LitFloat
	LitString
)

// Literal is a constant. Exactly one of the value fields is meaningful,
// selected by Kind.
type Literal struct {
	exprBase
	Kind  LiteralKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
}

// ArrayLit is an array literal: [a, b, c].
type ArrayLit struct {
	exprBase
	Items []Expr
}

// Name is a bare variable reference.
type Name struct {
	exprBase
	Name string
}

// Attr is a dotted access: X.Name.
type Attr struct {
	exprBase
	X    Expr
	Name string
}

// Index is a bracketed access: X[Index].
type Index struct {
	exprBase
	X     Expr
	Index Expr
}

// Unary is a prefix operation (not, -, +).
type Unary struct {
	exprBase
	Op token.TokenType
	X  Expr
}

// Binary is an infix operation. NOT IN is represented with Op == IN and
// Negate set.
type Binary struct {
	exprBase
	Op     token.TokenType
	Left   Expr
	Right  Expr
	Negate bool
}

// Arg is a call argument. Name is empty for positional arguments.
type Arg struct {
	Name  string
	Value Expr
}

// Filter applies the named transform to X: X | Name(Args).
type Filter struct {
	exprBase
	X    Expr
	Name string
	Args []Arg
}

// Test is an "X is [not] Name" check.
type Test struct {
	exprBase
	X      Expr
	Name   string
	Negate bool
}

// MacroCall invokes Namespace::Name(Args). It is both an expression and,
// when it forms a whole {{ }} tag, a template node.
type MacroCall struct {
	exprBase
	Namespace string
	Name      string
	Args      []Arg
}

func (*MacroCall) node() {}
