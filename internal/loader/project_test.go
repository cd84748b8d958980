package loader

import (
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leaptmpl/internal/testutil"
	"github.com/leapstack-labs/leaptmpl/pkg/core"
	"github.com/leapstack-labs/leaptmpl/pkg/engine"
	"github.com/leapstack-labs/leaptmpl/pkg/eval"
	"github.com/leapstack-labs/leaptmpl/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T) string {
	t.Helper()
	return testutil.WriteTree(t, map[string]string{
		"templates/base.html": "<h1>{{ site }}</h1>{% block body %}{% endblock %}",
		"templates/page.html": "{#---\ndata:\n  title: Default\n  site: Ignored\n---#}\n{% extends \"base.html\" %}{% block body %}{{ title | shout }}{% endblock %}",
		"filters/text.star":   "def shout(s):\n    return s.upper() + \"!\"\n",
		"data.yaml":           "site: Acme\n",
		"templates/README.md": "not a template",
		"templates/plain.txt": "{{ site }}",
	})
}

func TestLoad(t *testing.T) {
	dir := writeProject(t)

	p, err := Load(Options{
		TemplatesDir: filepath.Join(dir, "templates"),
		FiltersDir:   filepath.Join(dir, "filters"),
		DataPath:     filepath.Join(dir, "data.yaml"),
		Logger:       testutil.NewTestLogger(t),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"base.html", "page.html", "plain.txt"}, p.Names())
	assert.Equal(t, []string{"shout"}, p.Filters)
	assert.True(t, p.Registry.Resolved())

	out, err := p.Render("page.html", nil)
	require.NoError(t, err)
	assert.Equal(t, "<h1>Acme</h1>DEFAULT!", out)

	out, err = p.Render("page.html", eval.Context{"title": value.String("Override")})
	require.NoError(t, err)
	assert.Equal(t, "<h1>Acme</h1>OVERRIDE!", out)
}

func TestLoad_EngineOptions(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"t/a.html": "[{{ missing }}]",
	})

	p, err := Load(Options{
		TemplatesDir: filepath.Join(dir, "t"),
		Engine:       []engine.Option{engine.WithLenient()},
	})
	require.NoError(t, err)

	out, err := p.Render("a.html", nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		data    string
		wantErr string
	}{
		{
			name:    "missing parent",
			files:   map[string]string{"templates/a.html": `{% extends "ghost.html" %}`},
			wantErr: `parent template "ghost.html" is not registered`,
		},
		{
			name:    "syntax error",
			files:   map[string]string{"templates/a.html": `{% if %}`},
			wantErr: "a.html:1:",
		},
		{
			name: "bad filter file",
			files: map[string]string{
				"templates/a.html": "x",
				"filters/bad.star": "def (",
			},
			wantErr: "filters/bad.star",
		},
		{
			name:    "bad data file",
			files:   map[string]string{"templates/a.html": "x", "data.json": "{"},
			data:    "data.json",
			wantErr: "data.json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := testutil.WriteTree(t, tt.files)
			opts := Options{
				TemplatesDir: filepath.Join(dir, "templates"),
				FiltersDir:   filepath.Join(dir, "filters"),
			}
			if tt.data != "" {
				opts.DataPath = filepath.Join(dir, tt.data)
			}
			_, err := Load(opts)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestProject_ContextUnknownTemplate(t *testing.T) {
	dir := writeProject(t)
	p, err := Load(Options{TemplatesDir: filepath.Join(dir, "templates"), FiltersDir: filepath.Join(dir, "filters")})
	require.NoError(t, err)

	_, err = p.Render("nope.html", nil)
	assert.ErrorIs(t, err, core.TemplateNotFound)
}
