package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"runbook/internal/config"
	"runbook/internal/executor"
	"runbook/internal/history"
	"runbook/internal/prompt"
	"runbook/internal/runbook"
	"runbook/internal/watch"
)

type runOptions struct {
	File     string
	Dir      string
	Inputs   []string
	NoPrompt bool
	Jobs     int
	Timeout  string
	DryRun   bool
	JSON     bool
	Watch    bool
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:           "run <task>...",
		Short:         "Run tasks and their dependency chains",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := runWithLoggerAndCleanup(root, func() int {
				return runTasks(cmd, args, root, opts)
			})
			if code == 0 {
				return nil
			}
			return exitError{code: code}
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&opts.File, "file", "f", "", "Task file path (default: nearest runbook.yaml|yml|json)")
	fs.StringVarP(&opts.Dir, "dir", "C", "", "Directory to start the task file search from")
	fs.StringArrayVar(&opts.Inputs, "input", nil, "Input value as ID=value (repeatable)")
	fs.BoolVar(&opts.NoPrompt, "no-prompt", false, "Never prompt; fail when an input has no value")
	fs.IntVar(&opts.Jobs, "jobs", 0, "Max concurrently running parallel deps (0 = unlimited)")
	fs.StringVar(&opts.Timeout, "timeout", "", "Default per-task timeout (e.g. 10m)")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Print resolved commands without executing")
	fs.BoolVar(&opts.JSON, "json", false, "Print the run summary as JSON on stdout")
	fs.BoolVar(&opts.Watch, "watch", false, "Re-run the targets when watched files change")

	return cmd
}

func runWithLoggerAndCleanup(root *rootOptions, fn func() int) (exitCode int) {
	logger, err := NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: failed to initialize logger: %v\n", err)
		return 1
	}
	if root.Verbose {
		logger.EnableConsole(os.Stderr, zerolog.DebugLevel, root.NoColor)
	}
	setLogger(logger)

	defer func() {
		logger := activeLogger()
		if logger != nil {
			logger.Flush()
		}
		if err := closeLogger(); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: failed to close logger: %v\n", err)
		}
		if logger == nil {
			return
		}

		if exitCode != 0 {
			if entries := logger.ExtractRecentErrors(10); len(entries) > 0 {
				fmt.Fprintln(os.Stderr, "\n=== Recent Errors ===")
				for _, entry := range entries {
					fmt.Fprintln(os.Stderr, entry)
				}
			}
			// Keep the log for debugging failed runs.
			fmt.Fprintf(os.Stderr, "Log file: %s\n", logger.Path())
			return
		}
		_ = logger.RemoveLogFile()
	}()

	// Clean up stale logs from previous runs.
	scheduleStartupCleanup()

	return fn()
}

func runTasks(cmd *cobra.Command, targets []string, root *rootOptions, opts *runOptions) int {
	v, err := config.NewViper(root.ConfigFile)
	if err != nil {
		logError(err.Error())
		return 1
	}
	settings := config.ResolveSettings(v)

	file, err := locateFile(opts.File, opts.Dir)
	if err != nil {
		logError(err.Error())
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}
	logInfo(fmt.Sprintf("Loaded %s (%d tasks)", file.Path, len(file.Tasks)))

	plan, err := executor.BuildPlan(file, targets)
	if err != nil {
		logError(err.Error())
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}
	logInfo(fmt.Sprintf("Plan: %s", strings.Join(plan.Order, " -> ")))

	inputs, err := resolveInputs(file, plan, opts)
	if err != nil {
		if prompt.Aborted(err) {
			return executor.ExitInterrupt
		}
		logError(err.Error())
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}

	dotenv, err := loadDotenv(file)
	if err != nil {
		logError(err.Error())
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}

	expander := &runbook.Expander{
		Workspace: file.Workspace(),
		Inputs:    inputs,
		OnMissingEnv: func(name string) {
			logDebug(fmt.Sprintf("Environment variable %s is unset; expanding to empty", name))
		},
	}

	newRunner := func() *executor.Runner {
		return &executor.Runner{
			File:           file,
			Expander:       expander,
			Dotenv:         dotenv,
			Shell:          settings.Shell,
			DefaultTimeout: resolveTimeout(opts.Timeout, settings),
			MaxWorkers:     resolveJobs(cmd.Flags().Changed("jobs"), opts.Jobs, settings),
			Output:         os.Stderr,
		}
	}

	if opts.DryRun {
		if err := newRunner().DryRun(os.Stdout, plan); err != nil {
			logError(err.Error())
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			return 1
		}
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := openHistory(settings)
	defer func() { _ = store.Close() }()

	execute := func() int {
		started := time.Now()
		summary := newRunner().Run(ctx, plan)
		recordRun(ctx, store, file, plan, summary, started)

		if opts.JSON {
			if err := summary.RenderJSON(os.Stdout); err != nil {
				logError("render summary: " + err.Error())
			}
		} else {
			summary.Render(os.Stderr)
		}

		if ctx.Err() != nil {
			return executor.ExitInterrupt
		}
		return summary.ExitCode
	}

	code := execute()

	if opts.Watch && ctx.Err() == nil {
		w, err := watch.New(file, expander, plan.Order)
		if err != nil {
			logError(err.Error())
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Watching %d directories; press Ctrl-C to stop\n", len(w.Dirs()))

		if err := w.Run(ctx, func() {
			fmt.Fprintln(os.Stderr, "Change detected, re-running")
			code = execute()
		}); err != nil && !errors.Is(err, context.Canceled) {
			logError(err.Error())
			return 1
		}
		return executor.ExitInterrupt
	}

	return code
}

// resolveInputs collects values for every input the plan references.
// Each input resolves at most once per invocation, including across
// watch re-runs.
func resolveInputs(file *runbook.File, plan *executor.Plan, opts *runOptions) (map[string]string, error) {
	ids, err := runbook.ReferencedInputs(file, plan.Order)
	if err != nil {
		return nil, err
	}

	flags := make(map[string]string, len(opts.Inputs))
	for _, raw := range opts.Inputs {
		id, value, err := prompt.ParseFlag(raw)
		if err != nil {
			return nil, err
		}
		if file.Input(id) == nil {
			return nil, fmt.Errorf("--input %s: input %q is not declared in %s", raw, id, file.Path)
		}
		flags[id] = value
	}
	if len(ids) == 0 {
		return nil, nil
	}

	return prompt.Resolve(file, ids, prompt.Options{
		Flags:       flags,
		Interactive: isTerminal() && !opts.NoPrompt,
	})
}

func loadDotenv(file *runbook.File) (map[string]string, error) {
	if len(file.Dotenv) == 0 {
		return nil, nil
	}

	merged := make(map[string]string)
	for _, path := range file.Dotenv {
		if !filepath.IsAbs(path) {
			path = filepath.Join(file.Workspace(), path)
		}
		vars, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("load dotenv %s: %w", path, err)
		}
		for k, v := range vars {
			merged[k] = v
		}
	}
	return merged, nil
}

// resolveTimeout picks the default per-task timeout. An explicit zero
// flag disables it even when the config sets one; only an unset flag
// falls through.
func resolveTimeout(flag string, settings config.Settings) time.Duration {
	if flag == "" {
		return settings.Timeout
	}
	d, err := time.ParseDuration(flag)
	if err != nil || d < 0 {
		logWarn(fmt.Sprintf("Ignoring unparseable --timeout %q", flag))
		return settings.Timeout
	}
	return d
}

// resolveJobs picks the worker budget: --jobs beats config beats
// RUNBOOK_MAX_WORKERS. Every source is clamped to the same cap.
func resolveJobs(jobsSet bool, jobs int, settings config.Settings) int {
	if jobsSet {
		return config.CapWorkers(jobs)
	}
	if settings.MaxWorkers > 0 {
		return settings.MaxWorkers
	}
	return config.ResolveMaxWorkers()
}

func openHistory(settings config.Settings) *history.Store {
	if !settings.HistoryEnabled {
		return nil
	}

	path := settings.HistoryPath
	if path == "" {
		var err error
		path, err = history.DefaultPath()
		if err != nil {
			logWarn("History disabled: " + err.Error())
			return nil
		}
	}

	store, err := history.Open(path)
	if err != nil {
		logWarn("History disabled: " + err.Error())
		return nil
	}
	return store
}

// recordRun persists the run outcome. Failures only warn: history must
// never fail a run.
func recordRun(ctx context.Context, store *history.Store, file *runbook.File, plan *executor.Plan, summary *executor.Summary, started time.Time) {
	if store == nil {
		return
	}

	status := history.StatusOK
	if !summary.OK() {
		status = history.StatusFailed
	}
	head := history.CaptureHead(file.Workspace())

	run := &history.Run{
		StartedAt: started,
		Duration:  time.Since(started),
		FilePath:  file.Path,
		Targets:   plan.Targets,
		Status:    status,
		ExitCode:  summary.ExitCode,
		GitCommit: head.Commit,
		GitDirty:  head.Dirty,
		Tasks:     summary.Results,
	}

	// Use a fresh context so an interrupt does not lose the record.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := store.Record(rctx, run); err != nil {
		logWarn("Record run history: " + err.Error())
	}
}
