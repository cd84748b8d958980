package loader

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/leapstack-labs/leaptmpl/internal/starlark"
	"github.com/leapstack-labs/leaptmpl/pkg/engine"
	"github.com/leapstack-labs/leaptmpl/pkg/eval"
)

// Options locate a template project on disk.
type Options struct {
	TemplatesDir string
	FiltersDir   string
	Extensions   []string
	DataPath     string
	// Engine options are applied before the Starlark filters are added.
	Engine []engine.Option
	Logger *slog.Logger
}

// Project is a loaded and resolved set of templates.
type Project struct {
	Registry *engine.Registry
	Files    map[string]*File
	// Data is the shared render context from the data file.
	Data eval.Context
	// Filters lists the names of user-defined Starlark filters.
	Filters []string
}

// Load discovers templates and filters, registers and resolves everything.
// Any failure leaves nothing half-loaded.
func Load(opts Options) (*Project, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	modules, err := starlark.LoadDir(opts.FiltersDir)
	if err != nil {
		return nil, err
	}
	filters, err := starlark.Filters(modules, starlark.NewThreadPool(0, logger))
	if err != nil {
		return nil, err
	}

	data, err := LoadData(opts.DataPath)
	if err != nil {
		return nil, err
	}

	files, err := Discover(opts.TemplatesDir, opts.Extensions)
	if err != nil {
		return nil, err
	}

	engineOpts := append(slices.Clone(opts.Engine), engine.WithLogger(logger), engine.WithFilters(filters))
	reg := engine.New(engineOpts...)
	if err := reg.RegisterMany(Sources(files)); err != nil {
		return nil, err
	}
	if err := reg.Resolve(); err != nil {
		return nil, err
	}

	byName := make(map[string]*File, len(files))
	for _, f := range files {
		byName[f.Name] = f
	}

	logger.Debug("loaded project",
		slog.String("templates_dir", opts.TemplatesDir),
		slog.Int("templates", len(files)),
		slog.Int("filters", len(filters)))

	return &Project{
		Registry: reg,
		Files:    byName,
		Data:     data,
		Filters:  slices.Sorted(maps.Keys(filters)),
	}, nil
}

// Context returns the render context for a template: its frontmatter
// defaults overlaid with the project data and then extra.
func (p *Project) Context(name string, extra eval.Context) (eval.Context, error) {
	ctx := eval.Context{}
	if f, ok := p.Files[name]; ok {
		defaults, err := f.Defaults()
		if err != nil {
			return nil, err
		}
		ctx = defaults
	}
	return ctx.Merge(p.Data).Merge(extra), nil
}

// Render renders name with its full context.
func (p *Project) Render(name string, extra eval.Context) (string, error) {
	ctx, err := p.Context(name, extra)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return p.Registry.Render(name, ctx)
}

// Names returns the template names in sorted order.
func (p *Project) Names() []string {
	return p.Registry.Names()
}
