package preview

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/leaptmpl/internal/loader"
	"github.com/leapstack-labs/leaptmpl/internal/preview/notifier"
	"github.com/leapstack-labs/leaptmpl/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func siteFiles() map[string]string {
	return map[string]string{
		"templates/base.html":   "<html><body>{% block body %}{% endblock %}</body></html>",
		"templates/page.html":   `{% extends "base.html" %}{% import "macros.html" as m %}{% block body %}{{ m::hello(who=who | default("world")) }}{% endblock %}`,
		"templates/macros.html": `{% macro hello(who) %}Hello {{ who }}{% endmacro %}`,
		"templates/note.txt":    "note: {{ 1 + 1 }}",
		"templates/broken.html": "{{ missing }}",
	}
}

func newTestServer(t *testing.T, files map[string]string) (*Server, string) {
	t.Helper()
	dir := testutil.WriteTree(t, files)
	load := func() (*loader.Project, error) {
		return loader.Load(loader.Options{TemplatesDir: filepath.Join(dir, "templates")})
	}
	s := NewServer(Config{
		Load:      load,
		WatchDirs: []string{filepath.Join(dir, "templates")},
		Logger:    testutil.NewTestLogger(t),
	})
	return s, dir
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServer_Routes(t *testing.T) {
	s, _ := newTestServer(t, siteFiles())
	ev := s.Reload()
	assert.Equal(t, []string{"base.html", "broken.html", "macros.html", "note.txt", "page.html"}, ev.Affected)
	h := s.Handler()

	tests := []struct {
		name        string
		target      string
		wantStatus  int
		wantType    string
		contains    []string
		notContains []string
	}{
		{
			name:       "index lists templates",
			target:     "/",
			wantStatus: http.StatusOK,
			wantType:   "text/html",
			contains:   []string{"<title>Templates - leaptmpl</title>", `href="/render/page.html"`, "<td>base.html</td><td>1</td><td>macros.html</td>"},
		},
		{
			name:       "html render gets reload script",
			target:     "/render/page.html",
			wantStatus: http.StatusOK,
			wantType:   "text/html",
			contains:   []string{"<html><body>Hello world<script>", "</script></body></html>"},
		},
		{
			name:       "query parameters extend the context",
			target:     "/render/page.html?who=%3Cyou%3E",
			wantStatus: http.StatusOK,
			contains:   []string{"Hello &lt;you&gt;"},
		},
		{
			name:        "text render is plain",
			target:      "/render/note.txt",
			wantStatus:  http.StatusOK,
			wantType:    "text/plain",
			contains:    []string{"note: 2"},
			notContains: []string{"<script>"},
		},
		{
			name:       "unknown template",
			target:     "/render/nope.html",
			wantStatus: http.StatusNotFound,
			contains:   []string{"<h1>404 nope.html</h1>", "template &quot;nope.html&quot; not found"},
		},
		{
			name:       "render error",
			target:     "/render/broken.html",
			wantStatus: http.StatusInternalServerError,
			contains:   []string{"broken.html:1:4: variable &quot;missing&quot; is not defined"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantType != "" {
				assert.Contains(t, rec.Header().Get("Content-Type"), tt.wantType)
			}
			for _, want := range tt.contains {
				assert.Contains(t, rec.Body.String(), want)
			}
			for _, unwanted := range tt.notContains {
				assert.NotContains(t, rec.Body.String(), unwanted)
			}
		})
	}
}

func TestServer_LoadError(t *testing.T) {
	calls := 0
	s := NewServer(Config{
		Load: func() (*loader.Project, error) {
			calls++
			return nil, errors.New(`page.html:1:1: parent template "ghost" is not registered`)
		},
		Logger: testutil.NewTestLogger(t),
	})

	ev := s.Reload()
	assert.Equal(t, 1, calls)
	assert.Contains(t, ev.Err, "ghost")

	h := s.Handler()
	rec := get(t, h, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<pre class="error">page.html:1:1: parent template &quot;ghost&quot; is not registered</pre>`)

	rec = get(t, h, "/render/page.html")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_NotLoaded(t *testing.T) {
	s := NewServer(Config{})
	rec := get(t, s.Handler(), "/render/x.html")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "project not loaded")
}

func TestAffected(t *testing.T) {
	s, dir := newTestServer(t, siteFiles())
	s.Reload()
	prev := s.current.Load().project

	testutil.WriteFile(t, filepath.Join(dir, "templates"), "macros.html", `{% macro hello(who) %}Hi {{ who }}{% endmacro %}`)
	ev := s.Reload()
	assert.Equal(t, []string{"macros.html", "page.html"}, ev.Affected)

	require.NoError(t, os.Remove(filepath.Join(dir, "templates", "note.txt")))
	testutil.WriteFile(t, filepath.Join(dir, "templates"), "base.html", "<main>{% block body %}{% endblock %}</main>")
	ev = s.Reload()
	assert.Equal(t, []string{"base.html", "note.txt", "page.html"}, ev.Affected)

	// Nothing changed on disk: everything is considered affected.
	next := s.current.Load().project
	assert.Equal(t, next.Names(), Affected(next, next))
	assert.Equal(t, prev.Names(), Affected(nil, prev))
}

func TestServer_SSE(t *testing.T) {
	s, _ := newTestServer(t, siteFiles())
	s.Reload()

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/__reload", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() string {
		var lines []string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			if line == "" {
				return strings.Join(lines, "\n")
			}
			lines = append(lines, line)
		}
	}

	assert.Equal(t, "event: connected\ndata: {}", readEvent())

	// The subscription is registered before the connected event is written.
	s.notifier.Broadcast(notifier.Event{Affected: []string{"page.html"}})
	assert.Equal(t, "event: reload\ndata: {\"affected\":[\"page.html\"]}", readEvent())
}

func TestServer_Watch(t *testing.T) {
	s, dir := newTestServer(t, siteFiles())
	s.Reload()

	ch := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.watch(ctx) }()

	// Give the watcher time to register the directories.
	time.Sleep(200 * time.Millisecond)
	testutil.WriteFile(t, filepath.Join(dir, "templates"), "note.txt", "changed")

	select {
	case ev := <-ch:
		assert.Contains(t, ev.Affected, "note.txt")
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after file change")
	}

	out, err := s.current.Load().project.Render("note.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "changed", out)

	cancel()
	require.NoError(t, <-done)
}

func TestInjectReload(t *testing.T) {
	assert.True(t, strings.HasPrefix(injectReload("<p>x</p></BODY>"), "<p>x</p><script>"))
	assert.True(t, strings.HasSuffix(injectReload("<p>x</p>"), "</script>"))
}

func TestPages_Render(t *testing.T) {
	out, err := renderPage("error", map[string]any{"status": 500, "name": "", "error": "<boom>"})
	require.NoError(t, err)
	assert.Contains(t, out, "<title>500 - leaptmpl</title>")
	assert.Contains(t, out, "<h1>500</h1>")
	assert.Contains(t, out, "&lt;boom&gt;")
}
