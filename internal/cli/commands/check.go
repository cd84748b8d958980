package commands

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/leaptmpl/internal/cli/output"
	"github.com/leapstack-labs/leaptmpl/internal/loader"
	"github.com/leapstack-labs/leaptmpl/pkg/core"
	"github.com/leapstack-labs/leaptmpl/pkg/template"
	"github.com/spf13/cobra"
)

// Problem is one error found by check.
type Problem struct {
	Template string `json:"template,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

// CheckOutput is the JSON result of check.
type CheckOutput struct {
	OK        bool      `json:"ok"`
	Templates int       `json:"templates"`
	Filters   []string  `json:"filters"`
	Problems  []Problem `json:"problems"`
}

func newProblem(err error) Problem {
	p := Problem{Kind: core.KindOf(err).String(), Message: err.Error()}
	var ce *core.Error
	if errors.As(err, &ce) {
		p.Template = ce.Template
		p.Line = ce.Pos.Line
		p.Column = ce.Pos.Column
	}
	return p
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	var renderAllFlag bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Parse and resolve every template",
		Long: `Parse every template, then load the Starlark filters and data file and
resolve inheritance and macro imports.

Syntax errors are reported for every file; resolution stops at the first
error. With --render every template is also rendered against the data
file so undefined variables and filter errors surface.`,
		Example: `  # Check the project
  leaptmpl check

  # Also render every template
  leaptmpl check --render

  # Machine-readable result
  leaptmpl check --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, renderAllFlag)
		},
	}

	cmd.Flags().BoolVar(&renderAllFlag, "render", false, "Also render every template")

	return cmd
}

func runCheck(cmd *cobra.Command, render bool) error {
	cmdCtx, err := NewCommandContextWithoutProject(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Cfg
	if err := cfg.ValidateDirectories(); err != nil {
		return err
	}

	result := CheckOutput{Filters: []string{}, Problems: []Problem{}}

	files, err := loader.Discover(cfg.TemplatesDir, cfg.Extensions)
	if err != nil {
		result.Problems = append(result.Problems, newProblem(err))
		return reportCheck(cmdCtx.Renderer, result)
	}
	result.Templates = len(files)

	for _, f := range files {
		if _, err := template.New(f.Name, f.Path, f.Content); err != nil {
			result.Problems = append(result.Problems, newProblem(err))
		}
	}
	if len(result.Problems) > 0 {
		return reportCheck(cmdCtx.Renderer, result)
	}

	project, err := loader.Load(projectOptions(cfg, cmdCtx.Logger))
	if err != nil {
		result.Problems = append(result.Problems, newProblem(err))
		return reportCheck(cmdCtx.Renderer, result)
	}
	result.Filters = nonNil(project.Filters)

	if render {
		for _, res := range renderAll(cmd.Context(), project.Names(), func(name string) (string, error) {
			return project.Render(name, nil)
		}) {
			if res.Err != nil {
				result.Problems = append(result.Problems, newProblem(res.Err))
			}
		}
	}

	return reportCheck(cmdCtx.Renderer, result)
}

func reportCheck(r *output.Renderer, result CheckOutput) error {
	result.OK = len(result.Problems) == 0

	switch r.EffectiveMode() {
	case output.ModeJSON:
		if err := r.JSON(result); err != nil {
			return err
		}
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Check"))
		r.Println("")
		r.Println(output.FormatKeyValue("Templates", fmt.Sprintf("%d", result.Templates)))
		r.Println(output.FormatKeyValue("Filters", fmt.Sprintf("%d", len(result.Filters))))
		r.Println(output.FormatKeyValue("Problems", fmt.Sprintf("%d", len(result.Problems))))
		if len(result.Problems) > 0 {
			r.Println("")
			r.Println(output.FormatHeader(2, "Problems"))
			for _, p := range result.Problems {
				r.Printf("- **%s** %s\n", p.Kind, p.Message)
			}
		}
	default:
		for _, p := range result.Problems {
			r.Error(p.Message)
		}
		if result.OK {
			r.Success(fmt.Sprintf("%d templates OK (%d user filters)", result.Templates, len(result.Filters)))
		}
	}

	if !result.OK {
		return fmt.Errorf("check failed with %d problem(s)", len(result.Problems))
	}
	return nil
}
