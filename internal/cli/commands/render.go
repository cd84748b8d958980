package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/leapstack-labs/leaptmpl/internal/cli/output"
	"github.com/leapstack-labs/leaptmpl/internal/state"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// RenderOptions holds options for the render command.
type RenderOptions struct {
	All    bool
	OutDir string
	Record bool
	Vars   []string
}

// renderResult is the outcome of rendering one template.
type renderResult struct {
	Name     string        `json:"name"`
	Output   string        `json:"output,omitempty"`
	Path     string        `json:"path,omitempty"`
	Bytes    int           `json:"bytes"`
	Duration time.Duration `json:"duration_ns"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand() *cobra.Command {
	opts := &RenderOptions{}

	cmd := &cobra.Command{
		Use:   "render [name...]",
		Short: "Render templates with the project data",
		Long: `Render one or more templates against the data file, the template's
frontmatter defaults and any --set variables.

With --all every template is rendered concurrently. With --out-dir each
result is written atomically below the directory under its template name;
otherwise results are printed.

Output adapts to environment:
  - Terminal: Rendered text
  - Piped/Scripted: Markdown with a section per template when rendering several`,
		Example: `  # Render one template to stdout
  leaptmpl render pages/index.html

  # Override a context variable
  leaptmpl render pages/index.html --set title=Home --set count=3

  # Render everything into a directory and record it in history
  leaptmpl render --all --out-dir dist --record

  # Render as JSON
  leaptmpl render pages/index.html --output json`,
		ValidArgsFunction: completeTemplateNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.All && len(args) == 0 {
				return errors.New("specify at least one template name or use --all")
			}
			if opts.All && len(args) > 0 {
				return errors.New("--all cannot be combined with template names")
			}
			return runRender(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "Render every template")
	cmd.Flags().StringVar(&opts.OutDir, "out-dir", "", "Write results below this directory")
	cmd.Flags().BoolVar(&opts.Record, "record", false, "Record the run in render history")
	cmd.Flags().StringArrayVar(&opts.Vars, "set", nil, "Set a context variable (key=value, value read as YAML)")

	return cmd
}

func runRender(cmd *cobra.Command, names []string, opts *RenderOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	r := cmdCtx.Renderer
	project := cmdCtx.Project

	vars, err := parseVars(opts.Vars)
	if err != nil {
		return err
	}

	if opts.All {
		names = project.Names()
		if len(names) == 0 {
			r.Warning("No templates found in " + cmdCtx.Cfg.TemplatesDir)
			return nil
		}
	}
	for _, name := range names {
		if _, err := project.Registry.Get(name); err != nil {
			return err
		}
	}

	// out_dir may also come from the project file
	outDir := cmdCtx.Cfg.OutDir
	if opts.OutDir != "" {
		if outDir, err = filepath.Abs(opts.OutDir); err != nil {
			return err
		}
	}

	results := renderAll(ctx, names, func(name string) (string, error) {
		return project.Render(name, vars)
	})

	if outDir != "" {
		for _, res := range results {
			if res.Err != nil {
				continue
			}
			if res.Path, res.Err = writeOutput(outDir, res.Name, res.Output); res.Err != nil {
				res.Error = res.Err.Error()
			}
		}
	}

	if opts.Record {
		if err := recordRun(ctx, cmdCtx, runCommand(names, opts.All), results); err != nil {
			cmdCtx.Logger.Warn("failed to record render history", "error", err)
		}
	}

	if len(results) == 1 && results[0].Err != nil && r.EffectiveMode() != output.ModeJSON {
		return results[0].Err
	}
	if err := printResults(r, results, outDir != ""); err != nil {
		return err
	}

	var failed int
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d templates failed to render", failed, len(results))
	}
	return nil
}

// renderAll renders names concurrently. A failed render never stops the
// others; each result carries its own error.
func renderAll(ctx context.Context, names []string, render func(string) (string, error)) []*renderResult {
	results := make([]*renderResult, len(names))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range names {
		g.Go(func() error {
			start := time.Now()
			out, err := render(name)
			res := &renderResult{
				Name:     name,
				Output:   out,
				Bytes:    len(out),
				Duration: time.Since(start),
				Err:      err,
			}
			if err != nil {
				res.Error = err.Error()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// writeOutput writes one result below dir, replacing any previous file
// atomically.
func writeOutput(dir, name, content string) (string, error) {
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := atomic.WriteFile(path, strings.NewReader(content)); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func recordRun(ctx context.Context, cmdCtx *CommandContext, command string, results []*renderResult) error {
	store, err := cmdCtx.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	run, err := store.CreateRun(ctx, command)
	if err != nil {
		return err
	}

	var failed int
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
		if err := store.RecordRender(ctx, run.ID, state.NewRender(res.Name, res.Output, res.Duration, res.Err)); err != nil {
			return err
		}
	}

	if failed > 0 {
		return store.CompleteRun(ctx, run.ID, state.RunStatusFailed, fmt.Sprintf("%d of %d templates failed", failed, len(results)))
	}
	return store.CompleteRun(ctx, run.ID, state.RunStatusCompleted, "")
}

func printResults(r *output.Renderer, results []*renderResult, written bool) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		if written {
			for _, res := range results {
				res.Output = ""
			}
		}
		return r.JSON(results)
	case output.ModeMarkdown:
		printResultsMarkdown(r, results, written)
	default:
		printResultsText(r, results, written)
	}
	return nil
}

func printResultsText(r *output.Renderer, results []*renderResult, written bool) {
	single := len(results) == 1
	for _, res := range results {
		switch {
		case res.Err != nil:
			r.Error(res.Error)
		case written:
			r.Success(fmt.Sprintf("%s → %s (%d bytes)", res.Name, res.Path, res.Bytes))
		case single:
			r.Printf("%s", res.Output)
		default:
			r.Header(2, res.Name)
			r.Println(res.Output)
		}
	}
}

func printResultsMarkdown(r *output.Renderer, results []*renderResult, written bool) {
	if len(results) == 1 && !written && results[0].Err == nil {
		r.Printf("%s", results[0].Output)
		return
	}

	r.Println(output.FormatHeader(1, fmt.Sprintf("Rendered %d templates", len(results))))
	r.Println("")
	for _, res := range results {
		r.Println(output.FormatHeader(2, res.Name))
		switch {
		case res.Err != nil:
			r.Println(output.FormatKeyValue("Error", res.Error))
		case written:
			r.Println(output.FormatKeyValue("File", res.Path))
			r.Println(output.FormatKeyValue("Bytes", fmt.Sprintf("%d", res.Bytes)))
		default:
			r.Println("```")
			r.Println(strings.TrimRight(res.Output, "\n"))
			r.Println("```")
		}
		r.Println("")
	}
}

// completeTemplateNames completes template names from the configured
// templates directory.
func completeTemplateNames(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return cmdCtx.Project.Names(), cobra.ShellCompDirectiveNoFileComp
}

func runCommand(names []string, all bool) string {
	if all {
		return "render --all"
	}
	return "render " + strings.Join(names, " ")
}
