// Package preview serves rendered templates over HTTP with live reload.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"path"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/leaptmpl/internal/loader"
	"github.com/leapstack-labs/leaptmpl/internal/preview/notifier"
	"github.com/leapstack-labs/leaptmpl/pkg/core"
	"github.com/leapstack-labs/leaptmpl/pkg/eval"
	"github.com/leapstack-labs/leaptmpl/pkg/value"
	"golang.org/x/sync/errgroup"
)

// LoadFunc builds a fresh project from disk.
type LoadFunc func() (*loader.Project, error)

// Config holds configuration for the preview server.
type Config struct {
	Load LoadFunc
	// WatchDirs are watched recursively when Watch is set.
	WatchDirs []string
	Watch     bool
	Port      int
	Logger    *slog.Logger
}

// Server renders templates on request. The loaded project is swapped
// atomically on reload, so in-flight requests finish on the old one.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	notifier *notifier.Notifier
	current  atomic.Pointer[snapshot]
}

type snapshot struct {
	project *loader.Project
	err     error
}

// NewServer creates a server. Call Reload or Serve to load the project.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		notifier: notifier.New(),
	}
	s.current.Store(&snapshot{err: errors.New("project not loaded")})
	return s
}

// Reload loads the project again, publishes it and notifies clients of the
// templates whose output may have changed. A failed load is kept and shown
// on every page until the next successful one.
func (s *Server) Reload() notifier.Event {
	prev := s.current.Load().project

	project, err := s.cfg.Load()
	if err != nil {
		s.logger.Error("reload failed", slog.String("error", err.Error()))
		s.current.Store(&snapshot{err: err})
		ev := notifier.Event{Err: err.Error()}
		s.notifier.Broadcast(ev)
		return ev
	}

	s.current.Store(&snapshot{project: project})
	ev := notifier.Event{Affected: Affected(prev, project)}
	s.logger.Info("reloaded templates",
		slog.Int("templates", len(project.Files)),
		slog.Any("affected", ev.Affected))
	s.notifier.Broadcast(ev)
	return ev
}

// Affected returns the templates of next whose output may differ from prev:
// changed or added files and everything that extends or imports them, plus
// removed names. When no template file changed, something shared (filters or
// data) did, and every template is affected.
func Affected(prev, next *loader.Project) []string {
	if prev == nil {
		return next.Names()
	}

	var changed, removed []string
	for name, f := range next.Files {
		if old, ok := prev.Files[name]; !ok || old.Hash != f.Hash {
			changed = append(changed, name)
		}
	}
	for name := range prev.Files {
		if _, ok := next.Files[name]; !ok {
			removed = append(removed, name)
		}
	}
	if len(changed) == 0 && len(removed) == 0 {
		return next.Names()
	}

	affected := next.Registry.Graph().Affected(changed)
	affected = append(affected, removed...)
	slices.Sort(affected)
	return slices.Compact(affected)
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Recoverer,
		s.requestLogger,
		middleware.Compress(5, "text/html", "text/plain"),
	)

	r.Get("/", s.handleIndex)
	r.Get("/render/*", s.handleRender)
	r.Get("/__reload", s.handleSSE)
	return r
}

// Serve loads the project, starts the HTTP server and the watcher, and blocks
// until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.Reload()

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting preview server", slog.String("addr", fmt.Sprintf("http://localhost:%d", s.cfg.Port)))

	if s.cfg.Watch {
		eg.Go(func() error {
			return s.watch(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down preview server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)))
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	snap := s.current.Load()

	data := map[string]any{
		"templates": []any{},
		"filters":   []any{},
		"error":     "",
	}
	if snap.err != nil {
		data["error"] = snap.err.Error()
	} else {
		data["templates"], data["filters"] = describe(snap.project)
	}

	html, err := renderPage("index", data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeHTML(w, http.StatusOK, html)
}

// describe summarises the project for the index page.
func describe(p *loader.Project) ([]any, []any) {
	graph := p.Registry.Graph()

	var templates []any
	for _, name := range p.Names() {
		t, err := p.Registry.Get(name)
		if err != nil {
			continue
		}
		imports := []any{}
		for _, imp := range t.ImportedMacroFiles {
			imports = append(imports, imp.File)
		}
		templates = append(templates, map[string]any{
			"name":    name,
			"parent":  t.Parent,
			"level":   graph.Level(name),
			"imports": imports,
		})
	}

	filters := make([]any, len(p.Filters))
	for i, f := range p.Filters {
		filters[i] = f
	}
	return templates, filters
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	snap := s.current.Load()
	if snap.err != nil {
		s.writeError(w, http.StatusInternalServerError, name, snap.err)
		return
	}

	query := r.URL.Query()
	extra := make(eval.Context, len(query))
	for _, k := range slices.Sorted(maps.Keys(query)) {
		vs := query[k]
		extra[k] = value.String(vs[len(vs)-1])
	}

	out, err := snap.project.Render(name, extra)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.TemplateNotFound) {
			status = http.StatusNotFound
		}
		s.writeError(w, status, name, err)
		return
	}

	if isHTML(name) {
		writeHTML(w, http.StatusOK, injectReload(out))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(out))
}

func (s *Server) writeError(w http.ResponseWriter, status int, name string, cause error) {
	s.logger.Debug("render failed", slog.String("template", name), slog.String("error", cause.Error()))

	html, err := renderPage("error", map[string]any{
		"status": status,
		"name":   name,
		"error":  cause.Error(),
	})
	if err != nil {
		http.Error(w, cause.Error(), status)
		return
	}
	writeHTML(w, status, html)
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	ch := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(ch)

	_, _ = fmt.Fprintf(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			payload, err := json.Marshal(struct {
				Affected []string `json:"affected,omitempty"`
				Error    string   `json:"error,omitempty"`
			}{ev.Affected, ev.Err})
			if err != nil {
				continue
			}
			_, _ = fmt.Fprintf(w, "event: reload\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func isHTML(name string) bool {
	switch path.Ext(name) {
	case ".html", ".htm":
		return true
	}
	return false
}

// injectReload adds the live reload script before </body>, or at the end.
func injectReload(html string) string {
	script := "<script>" + reloadScript + "</script>"
	if i := strings.LastIndex(strings.ToLower(html), "</body>"); i >= 0 {
		return html[:i] + script + html[i:]
	}
	return html + script
}

func writeHTML(w http.ResponseWriter, status int, html string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(html))
}
