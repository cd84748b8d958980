// Package engine holds the template registry: it registers and resolves
// templates and renders them.
//
// A Registry goes through two states. Registering templates leaves it
// Unresolved; a successful Resolve makes it Resolved and renderable. After
// resolution the registry is read-only and any number of goroutines may
// render from it concurrently.
package engine

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/leapstack-labs/leaptmpl/internal/dag"
	"github.com/leapstack-labs/leaptmpl/pkg/core"
	"github.com/leapstack-labs/leaptmpl/pkg/eval"
	"github.com/leapstack-labs/leaptmpl/pkg/template"
	"github.com/leapstack-labs/leaptmpl/pkg/token"
)

// Source is a named template source.
type Source struct {
	Name string
	// Path is informational, usually the file the content was read from.
	Path    string
	Content string
}

// catalog is an immutable set of templates. Writers build a new catalog and
// publish it; readers load the current one without locking.
type catalog struct {
	templates map[string]*template.Template
	graph     *dag.Graph
	resolved  bool
}

// Registry owns a set of templates.
type Registry struct {
	opts   options
	eval   *eval.Evaluator
	logger *slog.Logger

	mu      sync.Mutex // serializes writers
	current atomic.Pointer[catalog]
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{
		opts:   o,
		eval:   eval.New(eval.WithPolicy(o.policy), eval.WithFilters(o.filters)),
		logger: o.logger,
	}
	r.current.Store(&catalog{templates: map[string]*template.Template{}})
	return r
}

// Register parses, analyzes and adds one template.
func (r *Registry) Register(name, source string) error {
	return r.RegisterMany([]Source{{Name: name, Content: source}})
}

// RegisterSource adds one template from a Source.
func (r *Registry) RegisterSource(src Source) error {
	return r.RegisterMany([]Source{src})
}

// RegisterMany adds a batch of templates. The batch is atomic: if any source
// fails to parse or analyze, or any name is already taken, nothing is added.
// A successful registration leaves the registry unresolved.
func (r *Registry) RegisterMany(sources []Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.current.Load()
	added, err := analyzeAll(sources, cur.templates)
	if err != nil {
		return err
	}

	next := maps.Clone(cur.templates)
	maps.Copy(next, added)
	r.current.Store(&catalog{templates: next})

	r.logger.Debug("registered templates", "count", len(added), "total", len(next))
	return nil
}

// analyzeAll builds templates for sources, rejecting names present in
// existing or repeated within the batch.
func analyzeAll(sources []Source, existing map[string]*template.Template) (map[string]*template.Template, error) {
	added := make(map[string]*template.Template, len(sources))
	for _, src := range sources {
		if _, dup := existing[src.Name]; dup {
			return nil, duplicateTemplate(src.Name)
		}
		if _, dup := added[src.Name]; dup {
			return nil, duplicateTemplate(src.Name)
		}
		t, err := template.New(src.Name, src.Path, src.Content)
		if err != nil {
			return nil, err
		}
		added[src.Name] = t
	}
	return added, nil
}

func duplicateTemplate(name string) error {
	return &core.Error{
		Kind:     core.DuplicateTemplate,
		Template: name,
		Msg:      fmt.Sprintf("template %q is already registered", name),
	}
}

// Resolve links every template to its ancestors, block definitions and macro
// imports. It is all-or-nothing: on error no template is modified and the
// registry stays unresolved.
func (r *Registry) Resolve() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.current.Load()
	if cur.resolved {
		return nil
	}

	next, err := resolveAll(cur.templates)
	if err != nil {
		r.logger.Debug("resolve failed", "error", err)
		return err
	}
	r.current.Store(next)

	r.logger.Debug("resolved registry",
		"templates", len(next.templates),
		"edges", next.graph.EdgeCount())
	return nil
}

// resolveAll resolves copies of templates. The input is left untouched.
func resolveAll(templates map[string]*template.Template) (*catalog, error) {
	resolved := make(map[string]*template.Template, len(templates))
	for _, name := range slices.Sorted(maps.Keys(templates)) {
		t, err := resolveOne(templates[name], templates)
		if err != nil {
			return nil, err
		}
		resolved[name] = t
	}

	graph, err := buildGraph(resolved)
	if err != nil {
		return nil, err
	}
	return &catalog{templates: resolved, graph: graph, resolved: true}, nil
}

// resolveOne returns a copy of t with Parents, BlocksDefinitions and
// Namespaces filled in from templates. t itself need not be in templates.
func resolveOne(t *template.Template, templates map[string]*template.Template) (*template.Template, error) {
	parents, err := ancestors(t, templates)
	if err != nil {
		return nil, err
	}

	out := *t
	out.Parents = parents

	// Most distant ancestor first, t last.
	chain := make([]*template.Template, 0, len(parents)+1)
	for i := len(parents) - 1; i >= 0; i-- {
		chain = append(chain, templates[parents[i]])
	}
	chain = append(chain, t)

	out.BlocksDefinitions = make(map[string][]template.BlockDefinition)
	for _, tmpl := range chain {
		for _, name := range slices.Sorted(maps.Keys(tmpl.Blocks)) {
			out.BlocksDefinitions[name] = append(out.BlocksDefinitions[name], template.BlockDefinition{
				Template: tmpl.Name,
				Block:    tmpl.Blocks[name],
			})
		}
	}

	out.Namespaces = make(map[string]*template.MacroNamespace, len(t.ImportedMacroFiles))
	for _, imp := range t.ImportedMacroFiles {
		file, ok := templates[imp.File]
		if !ok && imp.File == t.Name {
			file, ok = t, true
		}
		if !ok {
			return nil, &core.Error{
				Kind:     core.MissingMacroFile,
				Template: t.Name,
				Pos:      imp.Pos,
				Msg:      fmt.Sprintf("macro file %q imported as %q is not registered", imp.File, imp.Namespace),
			}
		}
		// Later imports of the same namespace win.
		out.Namespaces[imp.Namespace] = &template.MacroNamespace{
			Template: file.Name,
			Macros:   file.Macros,
		}
	}

	return &out, nil
}

// ancestors follows Parent links, nearest first.
func ancestors(t *template.Template, templates map[string]*template.Template) ([]string, error) {
	var parents []string
	seen := map[string]bool{t.Name: true}
	chain := []string{t.Name}

	for cur := t; cur.HasParent(); {
		pos := token.Position{}
		if x := cur.Extends(); x != nil {
			pos = x.Pos()
		}

		if seen[cur.Parent] {
			chain = append(chain, cur.Parent)
			return nil, &core.Error{
				Kind:     core.CircularInheritance,
				Template: cur.Name,
				Pos:      pos,
				Msg:      "circular inheritance: " + strings.Join(chain, " -> "),
			}
		}
		parent, ok := templates[cur.Parent]
		if !ok {
			return nil, &core.Error{
				Kind:     core.MissingParent,
				Template: cur.Name,
				Pos:      pos,
				Msg:      fmt.Sprintf("parent template %q is not registered", cur.Parent),
			}
		}

		seen[parent.Name] = true
		chain = append(chain, parent.Name)
		parents = append(parents, parent.Name)
		cur = parent
	}
	return parents, nil
}

// buildGraph links parents to children and macro files to importers.
func buildGraph(templates map[string]*template.Template) (*dag.Graph, error) {
	g := dag.NewGraph()
	for name, t := range templates {
		g.AddNode(name, t)
	}
	for _, name := range slices.Sorted(maps.Keys(templates)) {
		t := templates[name]
		if t.HasParent() {
			if err := g.AddEdge(t.Parent, name, dag.Extends); err != nil {
				return nil, err
			}
		}
		for _, imp := range t.ImportedMacroFiles {
			if imp.File == name {
				continue
			}
			if err := g.AddEdge(imp.File, name, dag.Imports); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// Replace swaps the whole template set for sources. The new set is built and
// resolved on the side; on error the registry is unchanged.
func (r *Registry) Replace(sources []Source) error {
	added, err := analyzeAll(sources, nil)
	if err != nil {
		return err
	}
	next, err := resolveAll(added)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.current.Store(next)
	r.mu.Unlock()

	r.logger.Debug("replaced templates", "count", len(added))
	return nil
}

// Resolved reports whether the registry is ready to render.
func (r *Registry) Resolved() bool {
	return r.current.Load().resolved
}

// Get returns a registered template. Before resolution, Parents,
// BlocksDefinitions and Namespaces are empty.
func (r *Registry) Get(name string) (*template.Template, error) {
	t, ok := r.current.Load().templates[name]
	if !ok {
		return nil, notFound(name)
	}
	return t, nil
}

func notFound(name string) error {
	return core.Errorf(core.TemplateNotFound, token.Position{}, "template %q not found", name)
}

// Names returns the registered template names, sorted.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.current.Load().templates))
}

// Graph returns the inheritance and import graph, or nil if the registry is
// not resolved. The graph must not be modified.
func (r *Registry) Graph() *dag.Graph {
	return r.current.Load().graph
}

// Filters returns the names of the filters available to templates.
func (r *Registry) Filters() []string {
	return r.eval.FilterNames()
}
