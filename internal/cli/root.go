// Package cli provides the command-line interface for leaptmpl.
package cli

import (
	"fmt"
	"os"

	"github.com/leapstack-labs/leaptmpl/internal/cli/commands"
	"github.com/leapstack-labs/leaptmpl/internal/cli/config"
	"github.com/leapstack-labs/leaptmpl/internal/cli/output"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "leaptmpl",
		Short: "leaptmpl - template engine with inheritance and macros",
		Long: `leaptmpl renders Jinja-style templates with block inheritance, super(),
macro imports, filters and loops.

Templates are discovered under the templates directory. Filters may be
added in Starlark under the filters directory, and a YAML or JSON data
file supplies the render context.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for commands that run outside a project
			switch cmd.Name() {
			case "help", "completion", "version", "init", cobra.ShellCompRequestCmd:
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			mode, _ := output.ParseMode(cfg.OutputFormat)
			logger := config.NewLogger(cmd.ErrOrStderr(), cfg.Verbose, mode == output.ModeJSON)

			ctx := config.WithConfig(cmd.Context(), cfg)
			ctx = config.WithLogger(ctx, logger)
			cmd.SetContext(ctx)

			if cfg.ConfigFile != "" {
				logger.Debug("using config file", "path", cfg.ConfigFile)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: leaptmpl.yaml, searched upward)")
	flags.String("templates-dir", "", "Path to templates directory")
	flags.String("filters-dir", "", "Path to Starlark filters directory")
	flags.String("data", "", "YAML or JSON file with the render context")
	flags.Bool("strict", true, "Fail on undefined variables")
	flags.Bool("autoescape", true, "HTML-escape output tags")
	flags.Int("max-depth", config.DefaultMaxDepth, "Render recursion limit")
	flags.String("state", "", "Path to render history database")
	flags.BoolP("verbose", "v", false, "Verbose output")
	flags.StringP("output", "o", "", "Output format (auto|text|markdown|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return output.Modes, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version, GitCommit, BuildDate))
	rootCmd.AddCommand(commands.NewInitCommand())
	rootCmd.AddCommand(commands.NewRenderCommand())
	rootCmd.AddCommand(commands.NewCheckCommand())
	rootCmd.AddCommand(commands.NewListCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewREPLCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for leaptmpl.

To load completions:

Bash:
  $ source <(leaptmpl completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ leaptmpl completion bash > /etc/bash_completion.d/leaptmpl
  # macOS:
  $ leaptmpl completion bash > $(brew --prefix)/etc/bash_completion.d/leaptmpl

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ leaptmpl completion zsh > "${fpath[1]}/_leaptmpl"

Fish:
  $ leaptmpl completion fish | source

  # To load completions for each session, execute once:
  $ leaptmpl completion fish > ~/.config/fish/completions/leaptmpl.fish

PowerShell:
  PS> leaptmpl completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
