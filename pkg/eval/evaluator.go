// Package eval evaluates template expressions against a scope chain.
//
// An Evaluator is immutable after construction and safe for concurrent use;
// all per-render state lives in the Env passed to Eval.
package eval

import (
	"errors"
	"fmt"
	"maps"
	"strconv"

	"github.com/leapstack-labs/leaptmpl/pkg/ast"
	"github.com/leapstack-labs/leaptmpl/pkg/core"
	"github.com/leapstack-labs/leaptmpl/pkg/token"
	"github.com/leapstack-labs/leaptmpl/pkg/value"
)

// UndefinedPolicy decides what happens when an undefined value is used.
type UndefinedPolicy int

const (
	// Strict fails with UndefinedVariable whenever an undefined value is
	// output, operated on, iterated or filtered (except by "default").
	// This is the default.
	Strict UndefinedPolicy = iota
	// Lenient renders undefined values as empty text and treats them as
	// false in conditions.
	Lenient
)

func (p UndefinedPolicy) String() string {
	if p == Lenient {
		return "lenient"
	}
	return "strict"
}

// MacroCaller executes namespaced macro calls on behalf of the evaluator.
// The renderer implements it.
type MacroCaller interface {
	CallMacro(env Env, call *ast.MacroCall, args []value.Value, kwargs map[string]value.Value) (value.Value, error)
}

// Env is the per-evaluation environment.
type Env struct {
	Scope  *Scope
	Caller MacroCaller
	// Owner is the name of the template whose code is executing; macro
	// namespaces are resolved against it.
	Owner string
}

// Evaluator evaluates expressions.
type Evaluator struct {
	policy  UndefinedPolicy
	filters Filters
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithPolicy sets the undefined-value policy.
func WithPolicy(p UndefinedPolicy) Option {
	return func(e *Evaluator) { e.policy = p }
}

// WithFilters adds filters, replacing built-ins of the same name.
func WithFilters(f Filters) Option {
	return func(e *Evaluator) { maps.Copy(e.filters, f) }
}

// New creates an Evaluator with the built-in filters.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{policy: Strict, filters: Builtins()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the undefined-value policy.
func (e *Evaluator) Policy() UndefinedPolicy { return e.policy }

// HasFilter reports whether a filter is registered under name.
func (e *Evaluator) HasFilter(name string) bool {
	_, ok := e.filters[name]
	return ok
}

// FilterNames returns the registered filter names, sorted.
func (e *Evaluator) FilterNames() []string { return e.filters.Names() }

// Check enforces the undefined policy on a value about to be used. In
// lenient mode it returns v unchanged.
func (e *Evaluator) Check(v value.Value, pos token.Position) (value.Value, error) {
	if e.policy == Strict && value.IsUndefined(v) {
		return nil, undefinedError(v, pos)
	}
	return v, nil
}

// Truth evaluates expr as a condition.
func (e *Evaluator) Truth(expr ast.Expr, env Env) (bool, error) {
	v, err := e.Eval(expr, env)
	if err != nil {
		return false, err
	}
	if v, err = e.Check(v, expr.Pos()); err != nil {
		return false, err
	}
	return v.Truth(), nil
}

func undefinedError(v value.Value, pos token.Position) error {
	path := "value"
	if u, ok := v.(value.Undefined); ok && u.Path != "" {
		path = u.Path
	}
	return core.Errorf(core.UndefinedVariable, pos, "variable %q is not defined", path)
}

// stamp gives positionless errors the position of the expression.
func stamp(err error, pos token.Position) error {
	var ce *core.Error
	if errors.As(err, &ce) && !ce.Pos.IsValid() {
		ce.Pos = pos
	}
	return err
}

// Eval evaluates expr. Missing paths evaluate to value.Undefined; callers
// apply the policy with Check at the point of use.
func (e *Evaluator) Eval(expr ast.Expr, env Env) (value.Value, error) {
	switch x := expr.(type) {
	case *ast.Literal:
		return literal(x), nil

	case *ast.ArrayLit:
		out := make(value.Array, len(x.Items))
		for i, item := range x.Items {
			v, err := e.operand(item, env)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case *ast.Name:
		if v, ok := env.Scope.Lookup(x.Name); ok {
			return v, nil
		}
		return value.Undefined{Path: x.Name}, nil

	case *ast.Attr:
		base, err := e.Eval(x.X, env)
		if err != nil {
			return nil, err
		}
		return attr(base, x), nil

	case *ast.Index:
		return e.evalIndex(x, env)

	case *ast.Unary:
		return e.evalUnary(x, env)

	case *ast.Binary:
		return e.evalBinary(x, env)

	case *ast.Filter:
		return e.evalFilter(x, env)

	case *ast.Test:
		return e.evalTest(x, env)

	case *ast.MacroCall:
		return e.evalMacroCall(x, env)

	default:
		return nil, core.Errorf(core.SyntaxError, expr.Pos(), "unsupported expression %T", expr)
	}
}

// operand evaluates expr and enforces the undefined policy on the result.
func (e *Evaluator) operand(expr ast.Expr, env Env) (value.Value, error) {
	v, err := e.Eval(expr, env)
	if err != nil {
		return nil, err
	}
	return e.Check(v, expr.Pos())
}

func literal(x *ast.Literal) value.Value {
	switch x.Kind {
	case ast.LitBool:
		return value.Bool(x.Bool)
	case ast.LitInt:
		return value.Int(x.Int)
	case ast.LitFloat:
		return value.Float(x.Float)
	case ast.LitString:
		return value.String(x.Str)
	default:
		return value.None{}
	}
}

// attr resolves base.name. Anything missing is Undefined carrying the path.
func attr(base value.Value, x *ast.Attr) value.Value {
	missing := func() value.Value {
		return value.Undefined{Path: pathOf(base, x.X) + "." + x.Name}
	}

	switch t := base.(type) {
	case value.Object:
		if v, ok := t[x.Name]; ok {
			return v
		}
	case value.Array:
		if i, err := strconv.Atoi(x.Name); err == nil {
			if v, ok := arrayIndex(t, i); ok {
				return v
			}
		}
	}
	return missing()
}

// pathOf names the expression for Undefined messages.
func pathOf(v value.Value, expr ast.Expr) string {
	if u, ok := v.(value.Undefined); ok && u.Path != "" {
		return u.Path
	}
	return ast.FormatExpr(expr)
}

func arrayIndex(a value.Array, i int) (value.Value, bool) {
	if i < 0 {
		i += len(a)
	}
	if i < 0 || i >= len(a) {
		return nil, false
	}
	return a[i], true
}

func (e *Evaluator) evalIndex(x *ast.Index, env Env) (value.Value, error) {
	base, err := e.Eval(x.X, env)
	if err != nil {
		return nil, err
	}
	idx, err := e.operand(x.Index, env)
	if err != nil {
		return nil, err
	}

	missing := value.Undefined{Path: fmt.Sprintf("%s[%s]", pathOf(base, x.X), value.Repr(idx))}

	switch t := base.(type) {
	case value.Undefined:
		return missing, nil
	case value.Object:
		if idx.Kind() != value.KindString {
			return nil, core.Errorf(core.TypeMismatch, x.Index.Pos(), "object index must be a string, not %s", idx.Kind())
		}
		if v, ok := t[idx.String()]; ok {
			return v, nil
		}
		return missing, nil
	case value.Array:
		i, ok := idx.(value.Int)
		if !ok {
			return nil, core.Errorf(core.TypeMismatch, x.Index.Pos(), "array index must be an int, not %s", idx.Kind())
		}
		if v, ok := arrayIndex(t, int(i)); ok {
			return v, nil
		}
		return missing, nil
	case value.String, value.Safe:
		i, ok := idx.(value.Int)
		if !ok {
			return nil, core.Errorf(core.TypeMismatch, x.Index.Pos(), "string index must be an int, not %s", idx.Kind())
		}
		runes := []rune(base.String())
		n := int(i)
		if n < 0 {
			n += len(runes)
		}
		if n < 0 || n >= len(runes) {
			return missing, nil
		}
		return value.String(string(runes[n])), nil
	default:
		return nil, core.Errorf(core.TypeMismatch, x.Pos(), "%s is not indexable", base.Kind())
	}
}

func (e *Evaluator) evalUnary(x *ast.Unary, env Env) (value.Value, error) {
	if x.Op == token.NOT {
		b, err := e.Truth(x.X, env)
		if err != nil {
			return nil, err
		}
		return value.Bool(!b), nil
	}

	v, err := e.operand(x.X, env)
	if err != nil {
		return nil, err
	}
	if x.Op == token.PLUS {
		if !value.IsNumber(v) {
			return nil, core.Errorf(core.TypeMismatch, x.Pos(), "bad operand type for unary +: %s", v.Kind())
		}
		return v, nil
	}
	v, err = value.Negate(v)
	return v, stamp(err, x.Pos())
}

func (e *Evaluator) evalBinary(x *ast.Binary, env Env) (value.Value, error) {
	// Boolean connectives short-circuit.
	switch x.Op {
	case token.AND, token.OR:
		left, err := e.Truth(x.Left, env)
		if err != nil {
			return nil, err
		}
		if (x.Op == token.AND && !left) || (x.Op == token.OR && left) {
			return value.Bool(left), nil
		}
		right, err := e.Truth(x.Right, env)
		if err != nil {
			return nil, err
		}
		return value.Bool(right), nil
	}

	left, err := e.operand(x.Left, env)
	if err != nil {
		return nil, err
	}
	right, err := e.operand(x.Right, env)
	if err != nil {
		return nil, err
	}

	switch x.Op {
	case token.PLUS, token.MINUS, token.STAR, token.SLASH, token.PERCENT:
		v, err := value.Arithmetic(x.Op, left, right)
		return v, stamp(err, x.Pos())

	case token.TILDE:
		return value.Concat(left, right), nil

	case token.EQ:
		return value.Bool(value.Equal(left, right)), nil
	case token.NE:
		return value.Bool(!value.Equal(left, right)), nil

	case token.LT, token.GT, token.LE, token.GE:
		c, err := value.Compare(left, right)
		if err != nil {
			return nil, stamp(err, x.Pos())
		}
		switch x.Op {
		case token.LT:
			return value.Bool(c < 0), nil
		case token.GT:
			return value.Bool(c > 0), nil
		case token.LE:
			return value.Bool(c <= 0), nil
		default:
			return value.Bool(c >= 0), nil
		}

	case token.IN:
		ok, err := value.Contains(right, left)
		if err != nil {
			return nil, stamp(err, x.Pos())
		}
		return value.Bool(ok != x.Negate), nil

	default:
		return nil, core.Errorf(core.SyntaxError, x.Pos(), "unknown operator %s", x.Op)
	}
}

func (e *Evaluator) evalFilter(x *ast.Filter, env Env) (value.Value, error) {
	fn, ok := e.filters[x.Name]
	if !ok {
		return nil, core.Errorf(core.FilterNotFound, x.Pos(), "filter %q not found", x.Name)
	}

	input, err := e.Eval(x.X, env)
	if err != nil {
		return nil, err
	}
	if !acceptsUndefined[x.Name] {
		if input, err = e.Check(input, x.X.Pos()); err != nil {
			return nil, err
		}
	}

	args, kwargs, err := e.evalArgs(x.Args, env)
	if err != nil {
		return nil, err
	}

	out, err := fn(input, args, kwargs)
	if err != nil {
		var ce *core.Error
		if errors.As(err, &ce) {
			return nil, stamp(err, x.Pos())
		}
		return nil, core.Wrap(core.FilterArgumentError, x.Pos(), fmt.Sprintf("filter %q", x.Name), err)
	}
	if out == nil {
		out = value.None{}
	}
	return out, nil
}

// evalArgs evaluates call arguments, enforcing the undefined policy.
func (e *Evaluator) evalArgs(args []ast.Arg, env Env) ([]value.Value, map[string]value.Value, error) {
	var positional []value.Value
	var named map[string]value.Value

	for _, a := range args {
		v, err := e.operand(a.Value, env)
		if err != nil {
			return nil, nil, err
		}
		if a.Name == "" {
			positional = append(positional, v)
			continue
		}
		if named == nil {
			named = make(map[string]value.Value)
		}
		if _, dup := named[a.Name]; dup {
			return nil, nil, core.Errorf(core.SyntaxError, a.Value.Pos(), "argument %q given twice", a.Name)
		}
		named[a.Name] = v
	}
	return positional, named, nil
}

func (e *Evaluator) evalTest(x *ast.Test, env Env) (value.Value, error) {
	v, err := e.Eval(x.X, env)
	if err != nil {
		return nil, err
	}

	test, ok := tests[x.Name]
	if !ok {
		return nil, core.Errorf(core.FilterNotFound, x.Pos(), "test %q not found", x.Name)
	}
	if x.Name != "defined" && x.Name != "undefined" {
		if v, err = e.Check(v, x.X.Pos()); err != nil {
			return nil, err
		}
	}
	return value.Bool(test(v) != x.Negate), nil
}

func (e *Evaluator) evalMacroCall(x *ast.MacroCall, env Env) (value.Value, error) {
	if env.Caller == nil {
		return nil, core.Errorf(core.MacroNotFound, x.Pos(), "macro %s::%s cannot be called here", x.Namespace, x.Name)
	}
	args, kwargs, err := e.evalArgs(x.Args, env)
	if err != nil {
		return nil, err
	}
	return env.Caller.CallMacro(env, x, args, kwargs)
}
