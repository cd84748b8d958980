// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/leaptmpl/internal/cli/output"
	"github.com/leapstack-labs/leaptmpl/internal/testutil"
)

// ProjectFiles is the template project created by SetupTestProject.
var ProjectFiles = map[string]string{
	"leaptmpl.yaml": `templates_dir: templates
filters_dir: filters
data: data.yaml
state_path: .leaptmpl/history.db
`,
	"data.yaml": `site: Acme
items: [b, a, c]
`,
	"templates/base.html":   `<h1>{{ site }}</h1>{% block body %}{% endblock %}`,
	"templates/macros.html": `{% macro item(x) %}<li>{{ x | shout }}</li>{% endmacro %}`,
	"templates/page.html": `{#---
description: A page
data:
  title: Default
---#}
{% extends "base.html" %}{% import "macros.html" as m %}{% block body %}{{ title }}<ul>{% for x in items | sort %}{{ m::item(x) }}{% endfor %}</ul>{% endblock %}`,
	"templates/notes.txt": `{{ site | lower }} has {{ items | length }} items`,
	"filters/text.star": `
def shout(s):
    return s.upper() + "!"
`,
}

// SetupTestProject creates a temporary project with templates, a filter file
// and a data file, and returns its directory.
func SetupTestProject(t *testing.T) string {
	t.Helper()
	return testutil.WriteTree(t, ProjectFiles)
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	lines := strings.Split(md, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
