package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/leapstack-labs/leaptmpl/internal/cli/config"
	"github.com/leapstack-labs/leaptmpl/internal/loader"
	"github.com/leapstack-labs/leaptmpl/internal/preview"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Port  int
	Watch bool
	Open  bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the live preview server",
		Long: `Start a local web server that renders templates on request.

  /                 lists every template with its parents and imports
  /render/<name>    renders a template; query parameters become variables
  /__reload         server-sent events announcing reloads

With --watch the templates and filters directories and the data file are
watched. On change the project is reloaded and open pages of the affected
templates refresh themselves.`,
		Example: `  # Start on the default port
  leaptmpl serve

  # Start on a custom port without watching
  leaptmpl serve --port 3000 --watch=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", config.DefaultPort, "Port to serve on")
	cmd.Flags().BoolVar(&opts.Watch, "watch", true, "Watch for file changes")
	cmd.Flags().BoolVar(&opts.Open, "open", false, "Open the index in a browser")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx, err := NewCommandContextWithoutProject(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Cfg
	if err := cfg.ValidateDirectories(); err != nil {
		return err
	}

	watchDirs := []string{cfg.TemplatesDir}
	if info, err := os.Stat(cfg.FiltersDir); err == nil && info.IsDir() {
		watchDirs = append(watchDirs, cfg.FiltersDir)
	}
	if cfg.Data != "" {
		watchDirs = append(watchDirs, filepath.Dir(cfg.Data))
	}

	server := preview.NewServer(preview.Config{
		Load: func() (*loader.Project, error) {
			return loader.Load(projectOptions(cfg, cmdCtx.Logger))
		},
		WatchDirs: watchDirs,
		Watch:     cfg.Serve.Watch,
		Port:      cfg.Serve.Port,
		Logger:    cmdCtx.Logger,
	})

	url := fmt.Sprintf("http://localhost:%d", cfg.Serve.Port)
	if opts.Open {
		go openBrowser(url)
	}

	cmdCtx.Renderer.Printf("Serving templates from %s on %s\n", cfg.TemplatesDir, url)
	cmdCtx.Renderer.Println("Press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Serve(ctx)
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(context.Background(), "open", url)
	case "linux":
		cmd = exec.CommandContext(context.Background(), "xdg-open", url)
	case "windows":
		cmd = exec.CommandContext(context.Background(), "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return
	}

	_ = cmd.Start()
}
