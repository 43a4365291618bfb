// Package launcher turns a task declaration into the argv that is
// handed to the operating system.
package launcher

import (
	"fmt"
	"strings"

	"github.com/google/shlex"

	"runbook/internal/runbook"
)

// Launcher builds the command line for one way of declaring a task.
type Launcher interface {
	Name() string
	// BuildArgv returns the program and its arguments.
	BuildArgv(task *runbook.Task) (name string, args []string, err error)
}

const defaultShell = "sh"

// ShellLauncher wraps the run string in `sh -c` so pipes, globs and
// redirects behave the way the author wrote them.
type ShellLauncher struct {
	// Shell overrides the shell binary; empty means sh.
	Shell string
}

func (l ShellLauncher) Name() string { return "shell" }

func (l ShellLauncher) BuildArgv(task *runbook.Task) (string, []string, error) {
	if strings.TrimSpace(task.Run) == "" {
		return "", nil, fmt.Errorf("shell launcher requires a run command")
	}
	shell := l.Shell
	if shell == "" {
		shell = defaultShell
	}
	return shell, []string{"-c", task.Run}, nil
}

// ProcessLauncher execs the command directly, without a shell. A bare
// command string is shlex-split so quoting works the obvious way.
type ProcessLauncher struct{}

func (ProcessLauncher) Name() string { return "process" }

func (ProcessLauncher) BuildArgv(task *runbook.Task) (string, []string, error) {
	if strings.TrimSpace(task.Command) == "" {
		return "", nil, fmt.Errorf("process launcher requires a command")
	}
	if len(task.Args) > 0 {
		return task.Command, task.Args, nil
	}

	parts, err := shlex.Split(task.Command)
	if err != nil {
		return "", nil, fmt.Errorf("split command %q: %w", task.Command, err)
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("command %q is empty after splitting", task.Command)
	}
	return parts[0], parts[1:], nil
}

// Select returns the launcher for a task based on how it is declared.
func Select(task *runbook.Task, shell string) (Launcher, error) {
	switch {
	case task.Run != "":
		return ShellLauncher{Shell: shell}, nil
	case task.Command != "":
		return ProcessLauncher{}, nil
	default:
		return nil, fmt.Errorf("task declares no command")
	}
}
