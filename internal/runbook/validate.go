package runbook

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ValidateName checks a task or input identifier. The character set
// keeps names safe for output prefixes, env var mapping and file names.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is empty")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return fmt.Errorf("name %q contains invalid character %q", name, r)
		}
	}
	return nil
}

// Validate checks structural rules: task shapes, dep references, input
// declarations and dependency cycles.
func Validate(f *File) error {
	if len(f.Tasks) == 0 {
		return fmt.Errorf("task file declares no tasks")
	}

	names := make([]string, 0, len(f.Tasks))
	for name := range f.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		task := f.Tasks[name]
		if err := ValidateName(name); err != nil {
			return fmt.Errorf("task %q: %w", name, err)
		}
		if task == nil {
			return fmt.Errorf("task %q has no definition", name)
		}
		if err := validateTask(f, name, task); err != nil {
			return err
		}
	}

	if err := validateInputs(f); err != nil {
		return err
	}
	return detectCycles(f, names)
}

func validateTask(f *File, name string, task *Task) error {
	if task.Run != "" && task.Command != "" {
		return fmt.Errorf("task %q: run and command are mutually exclusive", name)
	}
	if len(task.Args) > 0 && task.Command == "" {
		return fmt.Errorf("task %q: args requires command", name)
	}
	if !task.HasCommand() && len(task.Deps) == 0 {
		return fmt.Errorf("task %q: needs run, command or deps", name)
	}
	if task.Order != OrderSequence && task.Order != OrderParallel {
		return fmt.Errorf("task %q: order must be %q or %q, got %q", name, OrderSequence, OrderParallel, task.Order)
	}
	if task.Timeout != "" {
		d, err := time.ParseDuration(task.Timeout)
		if err != nil {
			return fmt.Errorf("task %q: invalid timeout: %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("task %q: timeout must not be negative, got %s", name, task.Timeout)
		}
	}
	if task.Retry != nil {
		if task.Retry.Attempts < 1 {
			return fmt.Errorf("task %q: retry attempts must be >= 1, got %d", name, task.Retry.Attempts)
		}
		if task.Retry.Delay != "" {
			d, err := time.ParseDuration(task.Retry.Delay)
			if err != nil {
				return fmt.Errorf("task %q: invalid retry delay: %w", name, err)
			}
			if d < 0 {
				return fmt.Errorf("task %q: retry delay must not be negative, got %s", name, task.Retry.Delay)
			}
		}
	}

	seen := make(map[string]struct{}, len(task.Deps))
	for _, dep := range task.Deps {
		if _, ok := f.Tasks[dep]; !ok {
			return fmt.Errorf("task %q: unknown dependency %q", name, dep)
		}
		if _, dup := seen[dep]; dup {
			return fmt.Errorf("task %q: duplicate dependency %q", name, dep)
		}
		seen[dep] = struct{}{}
	}
	return nil
}

func validateInputs(f *File) error {
	seen := make(map[string]struct{}, len(f.Inputs))
	for i := range f.Inputs {
		in := &f.Inputs[i]
		if err := ValidateName(in.ID); err != nil {
			return fmt.Errorf("input #%d: %w", i+1, err)
		}
		if _, dup := seen[in.ID]; dup {
			return fmt.Errorf("input %q declared twice", in.ID)
		}
		seen[in.ID] = struct{}{}

		switch in.Type {
		case InputPick:
			if len(in.Options) == 0 {
				return fmt.Errorf("input %q: pick inputs need at least one option", in.ID)
			}
			if in.Default != "" && !in.HasOption(in.Default) {
				return fmt.Errorf("input %q: default %q is not one of the options", in.ID, in.Default)
			}
		case InputText:
			if len(in.Options) > 0 {
				return fmt.Errorf("input %q: text inputs cannot declare options", in.ID)
			}
		default:
			return fmt.Errorf("input %q: type must be %q or %q, got %q", in.ID, InputPick, InputText, in.Type)
		}
	}
	return nil
}

// detectCycles runs a DFS over the dependency graph. The error names
// the cycle so the user can see which edge to break.
func detectCycles(f *File, names []string) error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(f.Tasks))
	var stack []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			// Trim the stack to the cycle start for a readable message.
			start := 0
			for i, n := range stack {
				if n == name {
					start = i
					break
				}
			}
			cycle := append(append([]string{}, stack[start:]...), name)
			return fmt.Errorf("dependency cycle: %s", strings.Join(cycle, " -> "))
		case done:
			return nil
		}

		state[name] = visiting
		stack = append(stack, name)
		for _, dep := range f.Tasks[name].Deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = done
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}
