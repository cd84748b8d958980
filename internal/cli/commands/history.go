package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/leapstack-labs/leaptmpl/internal/cli/output"
	"github.com/leapstack-labs/leaptmpl/internal/state"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCase = cases.Title(language.English)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded render runs",
		Long: `Show runs recorded with 'render --record', newest first.

Given a run ID, show every template rendered in that run with its status,
duration, output size and checksum.`,
		Example: `  # Recent runs
  leaptmpl history

  # One run in detail
  leaptmpl history 3f1c2a9e-...

  # As JSON
  leaptmpl history --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runHistoryShow(cmd, args[0])
			}
			return runHistoryList(cmd, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")

	return cmd
}

func openHistory(cmd *cobra.Command) (*CommandContext, *state.Store, error) {
	cmdCtx, err := NewCommandContextWithoutProject(cmd)
	if err != nil {
		return nil, nil, err
	}
	if _, err := os.Stat(cmdCtx.Cfg.StatePath); errors.Is(err, os.ErrNotExist) {
		return cmdCtx, nil, nil
	}
	store, err := cmdCtx.OpenStore(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	return cmdCtx, store, nil
}

func runHistoryList(cmd *cobra.Command, limit int) error {
	cmdCtx, store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer

	runs := []*state.Run{}
	if store != nil {
		defer func() { _ = store.Close() }()
		if runs, err = store.ListRuns(cmd.Context(), limit); err != nil {
			return err
		}
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(runs)
	}

	if len(runs) == 0 {
		r.Muted("No runs recorded. Use 'leaptmpl render --record' to record one.")
		return nil
	}

	r.Header(1, fmt.Sprintf("Runs (%d)", len(runs)))
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			run.Command,
			titleCase.String(string(run.Status)),
			run.StartedAt.Local().Format(time.DateTime),
			runDuration(run),
			run.Error,
		})
	}
	r.Table([]string{"ID", "Command", "Status", "Started", "Duration", "Error"}, rows)
	return nil
}

func runHistoryShow(cmd *cobra.Command, id string) error {
	cmdCtx, store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("run not found: %s", id)
	}
	defer func() { _ = store.Close() }()

	run, err := store.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(run)
	}

	r.Header(1, "Run "+run.ID)
	r.KeyValue("Command", run.Command)
	r.KeyValue("Status", titleCase.String(string(run.Status)))
	r.KeyValue("Started", run.StartedAt.Local().Format(time.DateTime))
	r.KeyValue("Duration", runDuration(run))
	if run.Error != "" {
		r.KeyValue("Error", run.Error)
	}
	r.Println("")

	rows := make([][]string, 0, len(run.Renders))
	for _, rd := range run.Renders {
		sum := rd.SHA256
		if len(sum) > 12 {
			sum = sum[:12]
		}
		rows = append(rows, []string{
			rd.Template,
			titleCase.String(string(rd.Status)),
			rd.Duration.Round(time.Microsecond).String(),
			fmt.Sprintf("%d", rd.Bytes),
			sum,
			rd.Error,
		})
	}
	r.Table([]string{"Template", "Status", "Duration", "Bytes", "SHA-256", "Error"}, rows)
	return nil
}

func runDuration(run *state.Run) string {
	if run.CompletedAt == nil {
		return "-"
	}
	return run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
}
