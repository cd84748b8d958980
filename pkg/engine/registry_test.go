package engine

import (
	"testing"

	"github.com/leapstack-labs/leaptmpl/internal/dag"
	"github.com/leapstack-labs/leaptmpl/internal/testutil"
	"github.com/leapstack-labs/leaptmpl/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T, sources map[string]string, opts ...Option) *Registry {
	t.Helper()
	opts = append([]Option{WithLogger(testutil.NewTestLogger(t))}, opts...)
	r := New(opts...)
	batch := make([]Source, 0, len(sources))
	for name, src := range sources {
		batch = append(batch, Source{Name: name, Content: src})
	}
	require.NoError(t, r.RegisterMany(batch))
	return r
}

func TestRegister_States(t *testing.T) {
	r := New()
	assert.False(t, r.Resolved(), "a new registry is unresolved")
	assert.Nil(t, r.Graph())

	require.NoError(t, r.Register("a", "A"))
	require.NoError(t, r.Resolve())
	assert.True(t, r.Resolved())
	require.NotNil(t, r.Graph())

	require.NoError(t, r.RegisterSource(Source{Name: "b", Path: "templates/b", Content: "B"}))
	assert.False(t, r.Resolved(), "registration invalidates resolution")

	_, err := r.Render("a", nil)
	assert.ErrorIs(t, err, core.RegistryNotResolved)

	require.NoError(t, r.Resolve())
	out, err := r.Render("b", nil)
	require.NoError(t, err)
	assert.Equal(t, "B", out)

	b, err := r.Get("b")
	require.NoError(t, err)
	assert.Equal(t, "templates/b", b.Path)
	assert.Equal(t, []string{"a", "b"}, r.Names())
}

func TestRegister_Errors(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("a", "A"))

	tests := []struct {
		name    string
		sources []Source
		kind    core.Kind
	}{
		{"existing name", []Source{{Name: "a", Content: "again"}}, core.DuplicateTemplate},
		{"repeated in batch", []Source{{Name: "x", Content: "1"}, {Name: "x", Content: "2"}}, core.DuplicateTemplate},
		{"syntax error", []Source{{Name: "y", Content: "{% if %}"}}, core.SyntaxError},
		{"duplicate block", []Source{{Name: "z", Content: "{% block a %}{% block a %}{% endblock %}{% endblock %}"}}, core.DuplicateBlock},
		{"duplicate macro", []Source{{Name: "m", Content: "{% macro f() %}{% endmacro %}{% macro f() %}{% endmacro %}"}}, core.DuplicateMacro},
		{"duplicate extends", []Source{{Name: "e", Content: `{% extends "a" %}{% extends "a" %}`}}, core.DuplicateExtends},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.RegisterMany(tt.sources)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
		})
	}

	assert.Equal(t, []string{"a"}, r.Names(), "failed batches add nothing")
}

func TestRegisterMany_AtomicBatch(t *testing.T) {
	r := New()
	err := r.RegisterMany([]Source{
		{Name: "good", Content: "fine"},
		{Name: "bad", Content: "{{ unclosed"},
	})
	require.ErrorIs(t, err, core.SyntaxError)
	assert.Empty(t, r.Names())

	_, err = r.Get("good")
	assert.ErrorIs(t, err, core.TemplateNotFound)
}

func TestResolve_Chains(t *testing.T) {
	r := newRegistry(t, map[string]string{
		"base":   `{% block head %}{% block title %}{% endblock %}{% endblock %}{% block body %}{% endblock %}`,
		"layout": `{% extends "base" %}{% block body %}L{% endblock %}`,
		"page":   `{% extends "layout" %}{% import "macros" as m %}{% block title %}P{% endblock %}{% block body %}{% endblock %}`,
		"macros": `{% macro card() %}C{% endmacro %}`,
	})
	require.NoError(t, r.Resolve())

	page, err := r.Get("page")
	require.NoError(t, err)
	assert.Equal(t, []string{"layout", "base"}, page.Parents)
	assert.Equal(t, "base", page.Root())

	defs := func(block string) []string {
		var names []string
		for _, d := range page.BlocksDefinitions[block] {
			names = append(names, d.Template)
		}
		return names
	}
	assert.Equal(t, []string{"base", "page"}, defs("title"))
	assert.Equal(t, []string{"base", "layout", "page"}, defs("body"))
	assert.Equal(t, []string{"base"}, defs("head"))

	require.Contains(t, page.Namespaces, "m")
	assert.Equal(t, "macros", page.Namespaces["m"].Template)
	assert.Contains(t, page.Namespaces["m"].Macros, "card")

	// Parentless templates get single-entry definitions.
	base, err := r.Get("base")
	require.NoError(t, err)
	assert.Empty(t, base.Parents)
	assert.Len(t, base.BlocksDefinitions["title"], 1)

	g := r.Graph()
	assert.Equal(t, []string{"layout", "page"}, g.Affected([]string{"layout"}))
	assert.Equal(t, []string{"macros", "page"}, g.Affected([]string{"macros"}))
	assert.Equal(t, 2, g.Level("page"))
	assert.Contains(t, g.Edges(), dag.Edge{From: "macros", To: "page", Kind: dag.Imports})
}

func TestResolve_LaterImportWins(t *testing.T) {
	r := newRegistry(t, map[string]string{
		"one":  `{% macro hi() %}one{% endmacro %}`,
		"two":  `{% macro hi() %}two{% endmacro %}`,
		"page": `{% import "one" as m %}{% import "two" as m %}{{ m::hi() }}`,
	})
	require.NoError(t, r.Resolve())

	out, err := r.Render("page", nil)
	require.NoError(t, err)
	assert.Equal(t, "two", out)
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name    string
		sources map[string]string
		kind    core.Kind
		wantMsg string
	}{
		{
			name:    "two-template cycle",
			sources: map[string]string{"A": `{% extends "B" %}`, "B": `{% extends "A" %}`},
			kind:    core.CircularInheritance,
			wantMsg: "B:1:1: circular inheritance: A -> B -> A",
		},
		{
			name:    "self extends",
			sources: map[string]string{"A": `{% extends "A" %}`},
			kind:    core.CircularInheritance,
		},
		{
			name:    "cycle above the template",
			sources: map[string]string{"leaf": `{% extends "A" %}`, "A": `{% extends "B" %}`, "B": `{% extends "A" %}`},
			kind:    core.CircularInheritance,
		},
		{
			name:    "missing parent",
			sources: map[string]string{"child": "x\n{% extends \"ghost\" %}"},
			kind:    core.MissingParent,
			wantMsg: `child:2:1: parent template "ghost" is not registered`,
		},
		{
			name:    "missing macro file",
			sources: map[string]string{"page": `{% import "nowhere" as n %}`},
			kind:    core.MissingMacroFile,
			wantMsg: `page:1:1: macro file "nowhere" imported as "n" is not registered`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRegistry(t, tt.sources)
			err := r.Resolve()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			if tt.wantMsg != "" {
				assert.EqualError(t, err, tt.wantMsg)
			}
			assert.False(t, r.Resolved())
		})
	}
}

func TestResolve_AllOrNothing(t *testing.T) {
	r := newRegistry(t, map[string]string{
		"a":     `{% block x %}{% endblock %}`,
		"b":     `{% extends "a" %}{% block x %}b{% endblock %}`,
		"zzz":   `{% extends "missing" %}`,
		"macro": `{% import "a" as a %}`,
	})

	require.ErrorIs(t, r.Resolve(), core.MissingParent)
	assert.False(t, r.Resolved())

	for _, name := range r.Names() {
		tmpl, err := r.Get(name)
		require.NoError(t, err)
		assert.Empty(t, tmpl.Parents, name)
		assert.Empty(t, tmpl.BlocksDefinitions, name)
		assert.Empty(t, tmpl.Namespaces, name)
	}
}

func TestReplace(t *testing.T) {
	r := newRegistry(t, map[string]string{"a": "old"})
	require.NoError(t, r.Resolve())

	err := r.Replace([]Source{{Name: "a", Content: `{% extends "nope" %}`}})
	require.ErrorIs(t, err, core.MissingParent)

	out, err := r.Render("a", nil)
	require.NoError(t, err)
	assert.Equal(t, "old", out, "a failed replace keeps the previous set")

	require.NoError(t, r.Replace([]Source{{Name: "a", Content: "new"}, {Name: "b", Content: "B"}}))
	assert.True(t, r.Resolved())
	out, err = r.Render("a", nil)
	require.NoError(t, err)
	assert.Equal(t, "new", out)
	assert.Equal(t, []string{"a", "b"}, r.Names())
}

func TestRegistry_Filters(t *testing.T) {
	r := New(WithFilters(nil))
	assert.Contains(t, r.Filters(), "upper")
}

func TestRegistry_Logging(t *testing.T) {
	logger, logs := testutil.NewBufferLogger()
	r := New(WithLogger(logger))
	require.NoError(t, r.Register("a", "A"))
	require.NoError(t, r.Resolve())

	assert.Contains(t, logs.String(), "registered templates")
	assert.Contains(t, logs.String(), "resolved registry")
}
