package engine

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/leapstack-labs/leaptmpl/pkg/ast"
	"github.com/leapstack-labs/leaptmpl/pkg/core"
	"github.com/leapstack-labs/leaptmpl/pkg/eval"
	"github.com/leapstack-labs/leaptmpl/pkg/template"
	"github.com/leapstack-labs/leaptmpl/pkg/token"
	"github.com/leapstack-labs/leaptmpl/pkg/value"
)

// Render renders the named template with ctx.
func (r *Registry) Render(name string, ctx eval.Context) (string, error) {
	cat := r.current.Load()
	if !cat.resolved {
		return "", core.Errorf(core.RegistryNotResolved, token.Position{},
			"cannot render %q: registry is not resolved", name)
	}
	leaf, ok := cat.templates[name]
	if !ok {
		return "", notFound(name)
	}
	return r.render(cat, leaf, ctx)
}

// RenderTo renders the named template into w. Nothing is written if
// rendering fails.
func (r *Registry) RenderTo(w io.Writer, name string, ctx eval.Context) error {
	out, err := r.Render(name, ctx)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// oneOffName names templates rendered from a string.
const oneOffName = "<string>"

// RenderStr renders source as a one-off template against the registered
// templates, so it may extend them or import their macros. The registry must
// be resolved.
func (r *Registry) RenderStr(source string, ctx eval.Context) (string, error) {
	cat := r.current.Load()
	if !cat.resolved {
		return "", core.Errorf(core.RegistryNotResolved, token.Position{},
			"cannot render string: registry is not resolved")
	}

	t, err := template.New(oneOffName, "", source)
	if err != nil {
		return "", err
	}
	if t, err = resolveOne(t, cat.templates); err != nil {
		return "", err
	}

	templates := maps.Clone(cat.templates)
	templates[t.Name] = t
	return r.render(&catalog{templates: templates, resolved: true}, t, ctx)
}

// RenderStr renders source with a throwaway registry.
func RenderStr(source string, ctx eval.Context, opts ...Option) (string, error) {
	r := New(opts...)
	if err := r.Resolve(); err != nil {
		return "", err
	}
	return r.RenderStr(source, ctx)
}

// EscapeHTML replaces &, <, >, " and ' with HTML entities. It is not
// idempotent: escaping twice escapes the ampersands of the first pass.
func EscapeHTML(s string) string {
	return eval.EscapeHTML(s)
}

func (r *Registry) render(cat *catalog, leaf *template.Template, ctx eval.Context) (string, error) {
	root := cat.templates[leaf.Root()]
	rn := &renderer{
		reg:  r,
		cat:  cat,
		leaf: leaf,
	}

	var b strings.Builder
	if err := rn.nodes(&b, root.AST.Nodes, eval.NewScope(ctx), root.Name, cursor{}); err != nil {
		return "", err
	}
	return b.String(), nil
}

// cursor identifies the block definition being rendered. level indexes the
// leaf's BlocksDefinitions for block; the zero cursor means "not in a block".
type cursor struct {
	block string
	level int
}

// renderer holds the state of a single render.
type renderer struct {
	reg   *Registry
	cat   *catalog
	leaf  *template.Template
	depth int
}

func (rn *renderer) enter(pos token.Position) error {
	rn.depth++
	if rn.depth > rn.reg.opts.maxDepth {
		return core.Errorf(core.RecursionLimitExceeded, pos,
			"recursion limit of %d exceeded", rn.reg.opts.maxDepth)
	}
	return nil
}

func (rn *renderer) leave() { rn.depth-- }

func (rn *renderer) env(scope *eval.Scope, owner string) eval.Env {
	return eval.Env{Scope: scope, Caller: rn, Owner: owner}
}

// nodes renders a node list. owner is the template the nodes belong to.
func (rn *renderer) nodes(w *strings.Builder, nodes []ast.Node, scope *eval.Scope, owner string, cur cursor) error {
	for _, n := range nodes {
		if err := rn.node(w, n, scope, owner, cur); err != nil {
			return core.WithTemplate(err, owner)
		}
	}
	return nil
}

func (rn *renderer) node(w *strings.Builder, n ast.Node, scope *eval.Scope, owner string, cur cursor) error {
	ev := rn.reg.eval

	switch x := n.(type) {
	case *ast.Text:
		w.WriteString(x.Value)

	case *ast.Raw:
		w.WriteString(x.Value)

	case *ast.Output:
		v, err := ev.Eval(x.Expr, rn.env(scope, owner))
		if err != nil {
			return err
		}
		if v, err = ev.Check(v, x.Expr.Pos()); err != nil {
			return err
		}
		rn.write(w, v)

	case *ast.MacroCall:
		v, err := ev.Eval(x, rn.env(scope, owner))
		if err != nil {
			return err
		}
		rn.write(w, v)

	case *ast.Set:
		v, err := ev.Eval(x.Expr, rn.env(scope, owner))
		if err != nil {
			return err
		}
		if v, err = ev.Check(v, x.Expr.Pos()); err != nil {
			return err
		}
		scope.Set(x.Name, v)

	case *ast.If:
		for _, br := range x.Branches {
			ok, err := ev.Truth(br.Cond, rn.env(scope, owner))
			if err != nil {
				return err
			}
			if ok {
				return rn.nodes(w, br.Body, scope, owner, cur)
			}
		}
		return rn.nodes(w, x.Else, scope, owner, cur)

	case *ast.For:
		return rn.forLoop(w, x, scope, owner, cur)

	case *ast.Block:
		defs := rn.leaf.BlocksDefinitions[x.Name]
		if len(defs) == 0 {
			return rn.body(w, x.Pos(), x.Body, scope, owner, cur)
		}
		level := len(defs) - 1
		return rn.definition(w, x.Pos(), defs[level], scope, cursor{block: x.Name, level: level})

	case *ast.Super:
		if cur.block == "" || cur.level == 0 {
			return nil
		}
		def, ok := rn.leaf.Definition(cur.block, cur.level-1)
		if !ok {
			return nil
		}
		return rn.definition(w, x.Pos(), def, scope, cursor{block: cur.block, level: cur.level - 1})

	case *ast.Extends, *ast.Macro, *ast.ImportMacro:
		// Declarations produce no output.

	default:
		return core.Errorf(core.SyntaxError, n.Pos(), "cannot render %T", n)
	}
	return nil
}

func (rn *renderer) write(w *strings.Builder, v value.Value) {
	if rn.reg.opts.autoescape && !value.IsSafe(v) {
		w.WriteString(eval.EscapeHTML(v.String()))
		return
	}
	w.WriteString(v.String())
}

// body renders nodes in a fresh frame, counting toward the depth limit.
func (rn *renderer) body(w *strings.Builder, pos token.Position, nodes []ast.Node, scope *eval.Scope, owner string, cur cursor) error {
	if err := rn.enter(pos); err != nil {
		return err
	}
	defer rn.leave()
	return rn.nodes(w, nodes, scope.Push(), owner, cur)
}

func (rn *renderer) definition(w *strings.Builder, pos token.Position, def template.BlockDefinition, scope *eval.Scope, cur cursor) error {
	return rn.body(w, pos, def.Block.Body, scope, def.Template, cur)
}

func (rn *renderer) forLoop(w *strings.Builder, x *ast.For, scope *eval.Scope, owner string, cur cursor) error {
	ev := rn.reg.eval
	v, err := ev.Eval(x.Iterable, rn.env(scope, owner))
	if err != nil {
		return err
	}
	if v, err = ev.Check(v, x.Iterable.Pos()); err != nil {
		return err
	}
	if value.IsUndefined(v) {
		// Lenient mode: iterate nothing.
		v = value.None{}
	}

	keys, items, err := value.Iterate(v)
	if err != nil {
		return core.WithTemplate(withPos(err, x.Iterable.Pos()), owner)
	}
	if len(items) == 0 {
		return rn.nodes(w, x.Else, scope, owner, cur)
	}

	if err := rn.enter(x.Pos()); err != nil {
		return err
	}
	defer rn.leave()

	n := len(items)
	for i, item := range items {
		frame := scope.Push()
		switch {
		case x.Key != "" && keys != nil:
			frame.Set(x.Key, keys[i])
			frame.Set(x.Value, item)
		case x.Key != "":
			frame.Set(x.Key, value.Int(i))
			frame.Set(x.Value, item)
		case keys != nil:
			frame.Set(x.Value, keys[i])
		default:
			frame.Set(x.Value, item)
		}
		frame.Set("loop", value.Object{
			"index":  value.Int(i + 1),
			"index0": value.Int(i),
			"first":  value.Bool(i == 0),
			"last":   value.Bool(i == n-1),
			"length": value.Int(n),
		})
		if err := rn.nodes(w, x.Body, frame, owner, cur); err != nil {
			return err
		}
	}
	return nil
}

// CallMacro implements eval.MacroCaller.
func (rn *renderer) CallMacro(env eval.Env, call *ast.MacroCall, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	macro, owner, err := rn.lookupMacro(env.Owner, call)
	if err != nil {
		return nil, err
	}

	frame := env.Scope.Push()
	if err := rn.bindParams(frame, env, call, macro, owner, args, kwargs); err != nil {
		return nil, err
	}

	if err := rn.enter(call.Pos()); err != nil {
		return nil, err
	}
	defer rn.leave()

	var b strings.Builder
	if err := rn.nodes(&b, macro.Body, frame, owner, cursor{}); err != nil {
		return nil, err
	}
	return value.Safe(b.String()), nil
}

// lookupMacro finds the macro for call and the template that defines it.
// "self" names the macros of the calling template; other namespaces are
// looked up in the calling template's imports, then the leaf's.
func (rn *renderer) lookupMacro(owner string, call *ast.MacroCall) (*ast.Macro, string, error) {
	caller := rn.cat.templates[owner]
	if caller == nil {
		caller = rn.leaf
	}

	var ns *template.MacroNamespace
	if call.Namespace == "self" {
		ns = &template.MacroNamespace{Template: caller.Name, Macros: caller.Macros}
	} else if ns = caller.Namespaces[call.Namespace]; ns == nil {
		ns = rn.leaf.Namespaces[call.Namespace]
	}
	if ns == nil {
		return nil, "", core.Errorf(core.MacroNotFound, call.Pos(),
			"macro namespace %q is not imported", call.Namespace)
	}

	m, ok := ns.Macros[call.Name]
	if !ok {
		return nil, "", core.Errorf(core.MacroNotFound, call.Pos(),
			"macro %q not found in %q", call.Name, ns.Template)
	}
	return m, ns.Template, nil
}

// bindParams binds call arguments onto the macro's parameters: positional
// first, then by name, then defaults. Defaults are evaluated in the caller's
// environment.
func (rn *renderer) bindParams(frame *eval.Scope, env eval.Env, call *ast.MacroCall, m *ast.Macro, owner string, args []value.Value, kwargs map[string]value.Value) error {
	argErr := func(format string, a ...any) error {
		msg := fmt.Sprintf(format, a...)
		return core.Errorf(core.MacroArgumentError, call.Pos(), "macro %s::%s: %s", call.Namespace, call.Name, msg)
	}

	if len(args) > len(m.Params) {
		return argErr("takes %d argument(s), got %d", len(m.Params), len(args))
	}

	bound := make(map[string]bool, len(m.Params))
	for i, v := range args {
		frame.Set(m.Params[i].Name, v)
		bound[m.Params[i].Name] = true
	}

	for _, name := range slices.Sorted(maps.Keys(kwargs)) {
		if !slices.ContainsFunc(m.Params, func(p ast.Param) bool { return p.Name == name }) {
			return argErr("unexpected argument %q", name)
		}
		if bound[name] {
			return argErr("argument %q given more than once", name)
		}
		frame.Set(name, kwargs[name])
		bound[name] = true
	}

	for _, p := range m.Params {
		if bound[p.Name] {
			continue
		}
		if p.Default == nil {
			return argErr("missing required argument %q", p.Name)
		}
		v, err := rn.reg.eval.Eval(p.Default, env)
		if err == nil {
			v, err = rn.reg.eval.Check(v, p.Default.Pos())
		}
		if err != nil {
			// Defaults are written in the macro's template.
			return core.WithTemplate(err, owner)
		}
		frame.Set(p.Name, v)
	}
	return nil
}

// withPos gives a positionless core error a position.
func withPos(err error, pos token.Position) error {
	var ce *core.Error
	if errors.As(err, &ce) && !ce.Pos.IsValid() {
		ce.Pos = pos
	}
	return err
}
