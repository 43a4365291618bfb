package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"runbook/internal/config"
	"runbook/internal/executor"
	"runbook/internal/history"
)

func newHistoryCommand(root *rootOptions) *cobra.Command {
	var (
		limit    int
		asJSON   bool
		withTask bool
	)

	cmd := &cobra.Command{
		Use:           "history [run-id]",
		Short:         "Show recent runs recorded in the history database",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.NewViper(root.ConfigFile)
			if err != nil {
				return err
			}
			settings := config.ResolveSettings(v)
			if !settings.HistoryEnabled {
				return fmt.Errorf("history recording is disabled in the configuration")
			}

			path := settings.HistoryPath
			if path == "" {
				path, err = history.DefaultPath()
				if err != nil {
					return err
				}
			}
			store, err := history.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			if len(args) == 1 {
				return showRun(ctx, cmd, store, args[0], asJSON)
			}
			return listRuns(ctx, cmd, store, limit, asJSON, withTask)
		},
	}

	fs := cmd.Flags()
	fs.IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	fs.BoolVar(&asJSON, "json", false, "Print runs as JSON")
	fs.BoolVar(&withTask, "tasks", false, "Include per-task results for each run")

	return cmd
}

func listRuns(ctx context.Context, cmd *cobra.Command, store *history.Store, limit int, asJSON, withTasks bool) error {
	runs, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if withTasks {
		for i := range runs {
			tasks, err := store.TaskResults(ctx, runs[i].ID)
			if err != nil {
				return err
			}
			runs[i].Tasks = tasks
		}
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No recorded runs")
		return nil
	}

	table := uitable.New()
	table.MaxColWidth = 50
	table.AddRow("RUN", "WHEN", "TARGETS", "STATUS", "EXIT", "COMMIT")
	for _, run := range runs {
		table.AddRow(
			shortID(run.ID),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			strings.Join(run.Targets, " "),
			colorStatus(run.Status),
			run.ExitCode,
			shortCommit(run.GitCommit, run.GitDirty),
		)
	}
	fmt.Fprintln(out, table.String())

	if withTasks {
		for _, run := range runs {
			fmt.Fprintf(out, "\n%s:\n", shortID(run.ID))
			renderTaskResults(cmd, run.Tasks)
		}
	}
	return nil
}

func showRun(ctx context.Context, cmd *cobra.Command, store *history.Store, runID string, asJSON bool) error {
	runs, err := store.Recent(ctx, 1000)
	if err != nil {
		return err
	}

	var matches []*history.Run
	for i := range runs {
		if runs[i].ID == runID {
			matches = []*history.Run{&runs[i]}
			break
		}
		if strings.HasPrefix(runs[i].ID, runID) {
			matches = append(matches, &runs[i])
		}
	}
	switch len(matches) {
	case 0:
		return fmt.Errorf("no recorded run matches %q", runID)
	case 1:
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = shortID(m.ID)
		}
		return fmt.Errorf("run id %q is ambiguous: matches %s", runID, strings.Join(ids, ", "))
	}
	run := matches[0]

	tasks, err := store.TaskResults(ctx, run.ID)
	if err != nil {
		return err
	}
	run.Tasks = tasks

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	fmt.Fprintf(out, "Run %s\n", run.ID)
	fmt.Fprintf(out, "  started: %s\n", run.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(out, "  file:    %s\n", run.FilePath)
	fmt.Fprintf(out, "  targets: %s\n", strings.Join(run.Targets, " "))
	fmt.Fprintf(out, "  status:  %s (exit %d)\n", colorStatus(run.Status), run.ExitCode)
	if run.GitCommit != "" {
		fmt.Fprintf(out, "  commit:  %s\n", shortCommit(run.GitCommit, run.GitDirty))
	}
	fmt.Fprintln(out)
	renderTaskResults(cmd, run.Tasks)
	return nil
}

func renderTaskResults(cmd *cobra.Command, results []executor.Result) {
	out := cmd.OutOrStdout()
	table := uitable.New()
	table.AddRow("  TASK", "STATUS", "EXIT", "ATTEMPTS", "DURATION")
	for _, res := range results {
		table.AddRow(
			"  "+res.Task,
			string(res.Status),
			res.ExitCode,
			res.Attempts,
			fmt.Sprintf("%dms", res.DurationMS),
		)
	}
	fmt.Fprintln(out, table.String())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func shortCommit(commit string, dirty bool) string {
	if commit == "" {
		return ""
	}
	if len(commit) > 8 {
		commit = commit[:8]
	}
	if dirty {
		commit += "*"
	}
	return commit
}

func colorStatus(status string) string {
	if status == history.StatusOK {
		return color.GreenString(status)
	}
	return color.RedString(status)
}
