package eval

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/leaptmpl/pkg/ast"
	"github.com/leapstack-labs/leaptmpl/pkg/core"
	"github.com/leapstack-labs/leaptmpl/pkg/parser"
	"github.com/leapstack-labs/leaptmpl/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseExpr(t *testing.T, src string) ast.Expr {
	t.Helper()
	root, err := parser.Parse("{{ " + src + " }}")
	require.NoError(t, err)
	require.Len(t, root.Nodes, 1)
	switch n := root.Nodes[0].(type) {
	case *ast.Output:
		return n.Expr
	case *ast.MacroCall:
		return n
	default:
		t.Fatalf("unexpected node %T", n)
		return nil
	}
}

func testContext() Context {
	ctx, err := NewContext(map[string]any{
		"username": "Bob",
		"product":  map[string]any{"name": "Lamp", "price": 100, "tags": []any{"home", "light"}},
		"items":    []any{3, 1, 2},
		"empty":    []any{},
		"html":     "<b>&</b>",
		"n":        7,
		"pi":       3.14159,
		"flag":     true,
		"nothing":  nil,
	})
	if err != nil {
		panic(err)
	}
	return ctx
}

func evalString(t *testing.T, e *Evaluator, src string) (value.Value, error) {
	t.Helper()
	env := Env{Scope: NewScope(testContext())}
	v, err := e.Eval(parseExpr(t, src), env)
	if err != nil {
		return nil, err
	}
	return e.Check(v, parseExpr(t, src).Pos())
}

func TestEval_Values(t *testing.T) {
	e := New()

	tests := []struct {
		expr string
		want value.Value
	}{
		{"username", value.String("Bob")},
		{"product.name", value.String("Lamp")},
		{"product['price']", value.Int(100)},
		{"product.tags[1]", value.String("light")},
		{"product.tags.0", value.String("home")},
		{"items[-1]", value.Int(2)},
		{"product.price * 1.20", value.Float(120)},
		{"n / 2", value.Float(3.5)},
		{"n % 4", value.Int(3)},
		{"n - -3", value.Int(10)},
		{"'a' ~ n ~ 'b'", value.String("a7b")},
		{"n > 5 and n < 10", value.Bool(true)},
		{"not flag or n == 7", value.Bool(true)},
		{"2 in items", value.Bool(true)},
		{"'x' not in username", value.Bool(true)},
		{"'name' in product", value.Bool(true)},
		{"[1, 2] == [1, 2.0]", value.Bool(true)},
		{"nothing is none", value.Bool(true)},
		{"missing is defined", value.Bool(false)},
		{"missing is not defined", value.Bool(true)},
		{"n is odd", value.Bool(true)},
		{"username | upper", value.String("BOB")},
		{"username | lower | capitalize", value.String("Bob")},
		{"'hello world' | title", value.String("Hello World")},
		{"items | length", value.Int(3)},
		{"items | sort | join(',')", value.String("1,2,3")},
		{"items | sort(reverse=true) | first", value.Int(3)},
		{"items | last", value.Int(2)},
		{"missing | default('anon')", value.String("anon")},
		{"'' | default('x', boolean=true)", value.String("x")},
		{"html | safe", value.Safe("<b>&</b>")},
		{"html | escape", value.Safe("&lt;b&gt;&amp;&lt;/b&gt;")},
		{"html | striptags", value.String("&")},
		{"'a-b-c' | replace('-', to='+')", value.String("a+b+c")},
		{"pi | round(2)", value.Float(3.14)},
		{"pi | round(method='floor')", value.Float(3)},
		{"(-5) | abs", value.Int(5)},
		{"'42' | int", value.Int(42)},
		{"'nope' | int(default=9)", value.Int(9)},
		{"n | float", value.Float(7)},
		{"'abcdef' | truncate(3)", value.String("abc...")},
		{"'one two  three' | wordcount", value.Int(3)},
		{"'abc' | reverse", value.String("cba")},
		{"product.tags | json_encode", value.String(`["home","light"]`)},
		{"n | string", value.String("7")},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := evalString(t, e, tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEval_Errors(t *testing.T) {
	e := New()

	tests := []struct {
		expr string
		kind core.Kind
	}{
		{"missing", core.UndefinedVariable},
		{"product.missing.deeper", core.UndefinedVariable},
		{"missing + 1", core.UndefinedVariable},
		{"missing | upper", core.UndefinedVariable},
		{"username + 1", core.TypeMismatch},
		{"username < 3", core.TypeMismatch},
		{"n / 0", core.DivisionByZero},
		{"items['x']", core.TypeMismatch},
		{"n[0]", core.TypeMismatch},
		{"username | nope", core.FilterNotFound},
		{"username | upper(1)", core.FilterArgumentError},
		{"username | replace('a')", core.FilterArgumentError},
		{"username | truncate(length='x')", core.FilterArgumentError},
		{"n | join", core.TypeMismatch},
		{"n | length", core.TypeMismatch},
		{"m::f()", core.MacroNotFound},
		{"n is prime", core.FilterNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := evalString(t, e, tt.expr)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)

			var ce *core.Error
			require.True(t, errors.As(err, &ce))
			assert.True(t, ce.Pos.IsValid(), "error should carry a position: %v", err)
		})
	}
}

func TestEval_UndefinedMessageNamesPath(t *testing.T) {
	_, err := evalString(t, New(), "product.missing.deeper")
	assert.ErrorContains(t, err, `"product.missing.deeper"`)
}

func TestEval_Lenient(t *testing.T) {
	e := New(WithPolicy(Lenient))

	v, err := evalString(t, e, "missing")
	require.NoError(t, err)
	assert.Equal(t, "", v.String())

	v, err = evalString(t, e, "missing | upper")
	require.NoError(t, err)
	assert.Equal(t, value.String(""), v)

	ok, err := e.Truth(parseExpr(t, "missing.attr"), Env{Scope: NewScope(testContext())})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEval_ShortCircuit(t *testing.T) {
	e := New()
	// The right-hand side would fail in strict mode if evaluated.
	v, err := evalString(t, e, "flag or missing")
	require.NoError(t, err)
	assert.Equal(t, value.Bool(true), v)

	v, err = evalString(t, e, "not flag and missing")
	require.NoError(t, err)
	assert.Equal(t, value.Bool(false), v)
}

func TestEval_CustomFilter(t *testing.T) {
	shout := func(v value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
		return value.String(v.String() + "!"), nil
	}
	e := New(WithFilters(Filters{"shout": shout, "upper": shout}))

	v, err := evalString(t, e, "username | shout | upper")
	require.NoError(t, err)
	assert.Equal(t, value.String("Bob!!"), v)
	assert.True(t, e.HasFilter("shout"))

	// Overriding does not leak into other evaluators.
	v, err = evalString(t, New(), "username | upper")
	require.NoError(t, err)
	assert.Equal(t, value.String("BOB"), v)
}

type fakeCaller struct {
	gotArgs   []value.Value
	gotKwargs map[string]value.Value
}

func (f *fakeCaller) CallMacro(env Env, call *ast.MacroCall, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	f.gotArgs = args
	f.gotKwargs = kwargs
	return value.Safe("<" + call.Namespace + "::" + call.Name + ">"), nil
}

func TestEval_MacroCall(t *testing.T) {
	caller := &fakeCaller{}
	env := Env{Scope: NewScope(testContext()), Caller: caller}

	v, err := New().Eval(parseExpr(t, "m::card(username, size=n + 1)"), env)
	require.NoError(t, err)
	assert.Equal(t, value.Safe("<m::card>"), v)
	assert.Equal(t, []value.Value{value.String("Bob")}, caller.gotArgs)
	assert.Equal(t, map[string]value.Value{"size": value.Int(8)}, caller.gotKwargs)
}

func TestScope_Layering(t *testing.T) {
	ctx := Context{"a": value.Int(1)}
	s := NewScope(ctx)
	s.Set("b", value.Int(2))

	inner := s.Push()
	inner.Set("a", value.Int(10))

	v, _ := inner.Lookup("a")
	assert.Equal(t, value.Int(10), v)
	v, _ = s.Lookup("a")
	assert.Equal(t, value.Int(1), v)
	_, ok := s.Lookup("missing")
	assert.False(t, ok)

	// Context is never written.
	assert.NotContains(t, ctx, "b")
	assert.Equal(t, 3, inner.Depth())
}

func TestContext_Merge(t *testing.T) {
	base := Context{"a": value.Int(1), "b": value.Int(2)}
	merged := base.Merge(Context{"b": value.Int(3)})

	assert.Equal(t, value.Int(3), merged["b"])
	assert.Equal(t, value.Int(2), base["b"])
}

func TestEscapeHTML(t *testing.T) {
	in := `<a href="x">Tom & 'Jerry'</a>`
	once := EscapeHTML(in)
	assert.Equal(t, "&lt;a href=&quot;x&quot;&gt;Tom &amp; &#x27;Jerry&#x27;&lt;/a&gt;", once)
	assert.NotEqual(t, once, EscapeHTML(once), "escaping is not idempotent")
}

func TestEvaluator_FilterNames(t *testing.T) {
	names := New(WithFilters(Filters{"aaa": nil})).FilterNames()
	require.NotEmpty(t, names)
	assert.Equal(t, "aaa", names[0])
	assert.Contains(t, names, "json_encode")
	assert.IsIncreasing(t, names)
}
