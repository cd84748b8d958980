package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leaptmpl/internal/cli/config"
	"github.com/leapstack-labs/leaptmpl/internal/cli/output"
	"github.com/leapstack-labs/leaptmpl/internal/loader"
	"github.com/leapstack-labs/leaptmpl/internal/state"
	"github.com/leapstack-labs/leaptmpl/pkg/engine"
	"github.com/leapstack-labs/leaptmpl/pkg/eval"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	Project  *loader.Project
}

// NewCommandContext creates a CommandContext and loads the template project.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cmdCtx, err := NewCommandContextWithoutProject(cmd)
	if err != nil {
		return nil, err
	}
	if err := cmdCtx.Cfg.ValidateDirectories(); err != nil {
		return nil, err
	}

	project, err := loader.Load(projectOptions(cmdCtx.Cfg, cmdCtx.Logger))
	if err != nil {
		return nil, err
	}
	cmdCtx.Project = project
	return cmdCtx, nil
}

// NewCommandContextWithoutProject creates a CommandContext without loading
// templates. Useful for commands that only read history or write files.
func NewCommandContextWithoutProject(cmd *cobra.Command) (*CommandContext, error) {
	cfg := config.GetConfig(cmd.Context())
	if cfg == nil {
		var err error
		if cfg, err = config.Load("", nil); err != nil {
			return nil, err
		}
	}

	mode, err := output.ParseMode(cfg.OutputFormat)
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
	}, nil
}

// OpenStore opens the render history database.
func (c *CommandContext) OpenStore(ctx context.Context) (*state.Store, error) {
	store, err := state.Open(ctx, c.Cfg.StatePath, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

// engineOptions maps configuration onto registry options.
func engineOptions(cfg *config.Config) []engine.Option {
	opts := []engine.Option{
		engine.WithAutoescape(cfg.Autoescape),
		engine.WithMaxDepth(cfg.MaxDepth),
	}
	if cfg.Strict {
		opts = append(opts, engine.WithStrict())
	} else {
		opts = append(opts, engine.WithLenient())
	}
	return opts
}

func projectOptions(cfg *config.Config, logger *slog.Logger) loader.Options {
	return loader.Options{
		TemplatesDir: cfg.TemplatesDir,
		FiltersDir:   cfg.FiltersDir,
		Extensions:   cfg.Extensions,
		DataPath:     cfg.Data,
		Engine:       engineOptions(cfg),
		Logger:       logger,
	}
}

// parseVars turns key=value pairs into a context. Values are read as YAML,
// so numbers, booleans and lists keep their type.
func parseVars(pairs []string) (eval.Context, error) {
	ctx := eval.Context{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid variable %q: want key=value", pair)
		}

		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("invalid value for %q: %w", key, err)
		}
		if v == nil && raw != "null" && raw != "~" {
			v = raw
		}
		if err := ctx.Set(key, v); err != nil {
			return nil, err
		}
	}
	return ctx, nil
}
