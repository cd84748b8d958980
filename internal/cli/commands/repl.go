package commands

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/leaptmpl/internal/loader"
	"github.com/leapstack-labs/leaptmpl/pkg/ast"
	"github.com/leapstack-labs/leaptmpl/pkg/eval"
	"github.com/leapstack-labs/leaptmpl/pkg/parser"
	"github.com/spf13/cobra"
)

const (
	replPrompt     = "leaptmpl> "
	replContPrompt = "     ...> "
)

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Evaluate template snippets interactively",
		Long: `Start an interactive prompt. Each line is rendered as a one-off template
against the project data, so it may use every filter, extend project
templates and import their macros.

End a line with \ to continue it on the next one.`,
		Example: `  leaptmpl repl
  leaptmpl> {{ site.name | upper }}
  leaptmpl> :set user=Ada
  leaptmpl> {% import "macros.html" as m %}{{ m::greet(user) }}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd)
		},
	}
	return cmd
}

func runREPL(cmd *cobra.Command) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	session := &replSession{
		project: cmdCtx.Project,
		vars:    eval.Context{},
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
	}

	// Setup history file (project-local)
	historyFile := filepath.Join(filepath.Dir(cmdCtx.Cfg.StatePath), "repl_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    session.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       ":quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(session.out, "leaptmpl REPL (%d templates, %d filters)\n",
		len(session.project.Names()), len(session.project.Registry.Filters()))
	_, _ = fmt.Fprintln(session.out, "Type :help for commands, :quit to exit")
	_, _ = fmt.Fprintln(session.out)

	var multiLineBuffer strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			multiLineBuffer.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		if rest, ok := strings.CutSuffix(line, `\`); ok {
			multiLineBuffer.WriteString(rest)
			multiLineBuffer.WriteString("\n")
			rl.SetPrompt(replContPrompt)
			continue
		}
		rl.SetPrompt(replPrompt)

		multiLineBuffer.WriteString(line)
		input := multiLineBuffer.String()
		multiLineBuffer.Reset()

		if quit := session.handle(input); quit {
			break
		}
	}

	return nil
}

// replSession holds the state of one REPL: the loaded project and the
// variables set with :set.
type replSession struct {
	project *loader.Project
	vars    eval.Context
	out     io.Writer
	errOut  io.Writer
}

// handle runs one input and reports whether the session should end.
func (s *replSession) handle(input string) bool {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return false
	}

	if !strings.HasPrefix(trimmed, ":") {
		s.report(s.evalSnippet(input))
		return false
	}

	command, arg, _ := strings.Cut(trimmed, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(command) {
	case ":quit", ":exit":
		return true
	case ":help":
		printREPLHelp(s.out)
	case ":templates":
		for _, name := range s.project.Names() {
			_, _ = fmt.Fprintln(s.out, name)
		}
	case ":filters":
		_, _ = fmt.Fprintln(s.out, strings.Join(s.project.Registry.Filters(), ", "))
	case ":vars":
		for _, name := range slices.Sorted(maps.Keys(s.project.Data.Merge(s.vars))) {
			_, _ = fmt.Fprintln(s.out, name)
		}
	case ":set":
		vars, err := parseVars(strings.Fields(arg))
		if err != nil {
			s.report("", err)
			return false
		}
		s.vars = s.vars.Merge(vars)
	case ":ast":
		root, err := parser.Parse(arg)
		if err != nil {
			s.report("", err)
			return false
		}
		_, _ = fmt.Fprint(s.out, ast.Pretty(root))
	case ":render":
		if arg == "" {
			_, _ = fmt.Fprintln(s.errOut, "Usage: :render <template>")
			return false
		}
		s.report(s.project.Render(arg, s.vars))
	default:
		_, _ = fmt.Fprintf(s.errOut, "Unknown command: %s (type :help for commands)\n", command)
	}
	return false
}

func (s *replSession) evalSnippet(src string) (string, error) {
	return s.project.Registry.RenderStr(src, s.project.Data.Merge(s.vars))
}

func (s *replSession) report(out string, err error) {
	if err != nil {
		_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
		return
	}
	_, _ = fmt.Fprint(s.out, out)
	if !strings.HasSuffix(out, "\n") {
		_, _ = fmt.Fprintln(s.out)
	}
}

// completer completes commands and template names.
func (s *replSession) completer() *readline.PrefixCompleter {
	names := make([]readline.PrefixCompleterInterface, 0, len(s.project.Names()))
	for _, name := range s.project.Names() {
		names = append(names, readline.PcItem(name))
	}

	return readline.NewPrefixCompleter(
		readline.PcItem(":help"),
		readline.PcItem(":templates"),
		readline.PcItem(":filters"),
		readline.PcItem(":vars"),
		readline.PcItem(":set"),
		readline.PcItem(":ast"),
		readline.PcItem(":render", names...),
		readline.PcItem(":quit"),
		readline.PcItem(":exit"),
	)
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  :help             Show this help message
  :templates        List template names
  :filters          List available filters
  :vars             List context variables
  :set key=value    Set a variable (value read as YAML)
  :ast <source>     Show the syntax tree of a snippet
  :render <name>    Render a project template
  :quit / :exit     Exit the REPL

Tips:
  - Any other input is rendered as a template
  - End a line with \ to continue on the next line
  - Tab completion works for commands and template names
`
	_, _ = fmt.Fprintln(w, help)
}
