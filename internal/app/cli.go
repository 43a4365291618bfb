// Package app wires the cobra command tree to the task engine.
package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"runbook/internal/runbook"
)

const appName = "runbook"

const version = "0.4.0"

type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit %d", e.code)
}

type rootOptions struct {
	ConfigFile string
	Verbose    bool
	NoColor    bool
}

var exitFn = os.Exit

// Run is the program entrypoint for cmd/runbook/main.go.
func Run() {
	exitFn(run())
}

func run() int {
	cmd := newRootCommand()
	cmd.SetArgs(os.Args[1:])
	if err := cmd.Execute(); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Sequenced shell-task runner",
		Long:          "runbook loads a task file, resolves dependency chains and declared\ninputs, and invokes external commands, stopping a sequenced chain on\nthe first non-zero exit.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if os.Getenv("NO_COLOR") != "" {
				opts.NoColor = true
			}
			if opts.NoColor {
				color.NoColor = true
			}
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	pf := cmd.PersistentFlags()
	pf.SetNormalizeFunc(func(fs *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	pf.StringVar(&opts.ConfigFile, "config", "", "Config file path (default: $HOME/.runbook/config.*)")
	pf.BoolVar(&opts.Verbose, "verbose", false, "Mirror run log entries to stderr")
	pf.BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(
		newRunCommand(opts),
		newListCommand(opts),
		newInitCommand(),
		newHistoryCommand(opts),
		newCleanupCommand(),
		newVersionCommand(),
	)

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Print version and exit",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, version)
			return nil
		},
	}
}

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:           "init",
		Short:         "Write a starter runbook.yaml",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "runbook.yaml"
			if err := runbook.Init(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func newCleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "cleanup",
		Short:         "Remove run logs left by dead processes",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := cleanupOldLogs()
			fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d log files: %d removed, %d kept, %d errors\n",
				stats.Scanned, stats.Deleted, stats.Kept, stats.Errors)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "ERROR: %v\n", err)
				return exitError{code: 1}
			}
			return nil
		},
	}
}

// locateFile resolves the task file from --file / --dir, falling back
// to walking up from the working directory.
func locateFile(explicit, dir string) (*runbook.File, error) {
	if explicit != "" {
		return runbook.Load(explicit)
	}

	start := dir
	if start == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		start = cwd
	}

	path, err := runbook.Locate(start)
	if err != nil {
		return nil, err
	}
	return runbook.Load(path)
}
