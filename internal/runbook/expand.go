package runbook

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// Variable references understood by the expander. Anything else that
// looks like shell syntax passes through untouched for the shell.
var varPattern = regexp.MustCompile(`\$\{(input|env):([A-Za-z0-9_.-]+)\}|\$\{workspaceFolder\}`)

// lookupEnvFn is a seam for tests.
var lookupEnvFn = os.LookupEnv

// Expander substitutes ${input:ID}, ${env:NAME} and ${workspaceFolder}
// in task fields. Inputs must be resolved before expansion.
type Expander struct {
	Workspace string
	Inputs    map[string]string

	// OnMissingEnv, when set, is called for each ${env:NAME} reference
	// whose variable is unset. The reference expands to "".
	OnMissingEnv func(name string)
}

// ReferencedInputs returns the sorted input IDs referenced by the given
// tasks across every expandable field.
func ReferencedInputs(f *File, tasks []string) ([]string, error) {
	set := make(map[string]struct{})
	for _, name := range tasks {
		task, ok := f.Tasks[name]
		if !ok {
			return nil, fmt.Errorf("unknown task %q", name)
		}
		for _, s := range expandableFields(task) {
			for _, match := range varPattern.FindAllStringSubmatch(s, -1) {
				if match[1] != "input" {
					continue
				}
				id := match[2]
				if f.Input(id) == nil {
					return nil, fmt.Errorf("task %q references undeclared input %q", name, id)
				}
				set[id] = struct{}{}
			}
		}
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func expandableFields(task *Task) []string {
	fields := []string{task.Run, task.Command, task.Dir}
	fields = append(fields, task.Args...)
	for _, v := range task.Env {
		fields = append(fields, v)
	}
	fields = append(fields, task.Produces...)
	fields = append(fields, task.Consumes...)
	fields = append(fields, task.Watch...)
	return fields
}

// ExpandString substitutes variable references in a single value.
func (e *Expander) ExpandString(s string) (string, error) {
	if !strings.Contains(s, "${") {
		return s, nil
	}

	var expandErr error
	out := varPattern.ReplaceAllStringFunc(s, func(match string) string {
		if match == "${workspaceFolder}" {
			return e.Workspace
		}
		sub := varPattern.FindStringSubmatch(match)
		switch sub[1] {
		case "input":
			val, ok := e.Inputs[sub[2]]
			if !ok {
				expandErr = fmt.Errorf("unresolved input %q", sub[2])
				return match
			}
			return val
		case "env":
			val, ok := lookupEnvFn(sub[2])
			if !ok && e.OnMissingEnv != nil {
				e.OnMissingEnv(sub[2])
			}
			return val
		}
		return match
	})
	return out, expandErr
}

// ExpandTask returns a copy of the task with every expandable field
// substituted. The file's task is never mutated.
func (e *Expander) ExpandTask(task *Task) (*Task, error) {
	out := *task
	var err error

	if out.Run, err = e.ExpandString(task.Run); err != nil {
		return nil, err
	}
	if out.Command, err = e.ExpandString(task.Command); err != nil {
		return nil, err
	}
	if out.Dir, err = e.ExpandString(task.Dir); err != nil {
		return nil, err
	}
	if out.Args, err = e.expandSlice(task.Args); err != nil {
		return nil, err
	}
	if out.Produces, err = e.expandSlice(task.Produces); err != nil {
		return nil, err
	}
	if out.Consumes, err = e.expandSlice(task.Consumes); err != nil {
		return nil, err
	}
	if out.Watch, err = e.expandSlice(task.Watch); err != nil {
		return nil, err
	}

	if len(task.Env) > 0 {
		out.Env = make(map[string]string, len(task.Env))
		for k, v := range task.Env {
			expanded, err := e.ExpandString(v)
			if err != nil {
				return nil, err
			}
			out.Env[k] = expanded
		}
	}
	return &out, nil
}

func (e *Expander) expandSlice(values []string) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		expanded, err := e.ExpandString(v)
		if err != nil {
			return nil, err
		}
		out[i] = expanded
	}
	return out, nil
}
