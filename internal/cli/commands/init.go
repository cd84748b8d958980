package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leaptmpl/internal/cli/config"
	"github.com/leapstack-labs/leaptmpl/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new leaptmpl project",
		Long: `Initialize a new leaptmpl project with a default layout and configuration.

This creates:
  - templates/ directory with a starter page
  - leaptmpl.yaml configuration file
  - .gitignore for the history database and rendered output

Use --example to create a full working project with a base layout, pages
that extend it, a macro library, a Starlark filter file and a data file.`,
		Example: `  # Initialize in current directory
  leaptmpl init

  # Initialize with a full working example
  leaptmpl init --example

  # Initialize in a new directory
  leaptmpl init my-site --example

  # Force overwrite existing config
  leaptmpl init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			// The project file may not exist yet, so only an already
			// loaded configuration picks the output mode.
			mode := output.ModeAuto
			if cfg := config.GetConfig(cmd.Context()); cfg != nil {
				mode, _ = output.ParseMode(cfg.OutputFormat)
			}
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

			name := "minimal"
			if example {
				name = "example"
			}
			return runInit(r, name, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&example, "example", false, "Create a full example project")

	return cmd
}

func runInit(r *output.Renderer, name, dir string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, "leaptmpl.yaml")
	if _, err := os.Stat(configPath); err == nil {
		if !force {
			return fmt.Errorf("leaptmpl.yaml already exists. Use --force to overwrite")
		}
		r.Warning("Overwriting existing leaptmpl.yaml")
	}

	if err := copyScaffold(name, dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	files, err := listScaffoldFiles(name)
	if err != nil {
		return err
	}
	groups := groupScaffoldFiles(files)

	for _, group := range []struct{ key, title string }{
		{"config", "Configuration"},
		{"templates", "Templates"},
		{"filters", "Filters"},
	} {
		if len(groups[group.key]) == 0 {
			continue
		}
		r.Header(2, group.title)
		for _, f := range groups[group.key] {
			r.Success(f)
		}
		r.Println("")
	}

	r.Success("leaptmpl project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Add templates to templates/")
	r.Println("  2. Run 'leaptmpl check' to validate them")
	r.Println("  3. Run 'leaptmpl serve' for a live preview")
	r.Println("  4. Run 'leaptmpl render --all' to write dist/")

	return nil
}
