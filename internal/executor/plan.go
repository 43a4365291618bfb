package executor

import (
	"fmt"

	"runbook/internal/runbook"
)

// Plan is the ordered dependency closure of the requested targets.
// Deps come before their dependents; every task appears once even when
// shared across targets.
type Plan struct {
	Targets []string
	Order   []string
}

// BuildPlan expands targets to execution order. Validation has already
// rejected cycles, so the DFS terminates.
func BuildPlan(file *runbook.File, targets []string) (*Plan, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("no tasks requested")
	}

	plan := &Plan{Targets: targets}
	visited := make(map[string]bool, len(file.Tasks))

	var visit func(name string) error
	visit = func(name string) error {
		if visited[name] {
			return nil
		}
		task, ok := file.Tasks[name]
		if !ok {
			return fmt.Errorf("unknown task %q", name)
		}
		visited[name] = true
		for _, dep := range task.Deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		plan.Order = append(plan.Order, name)
		return nil
	}

	seen := make(map[string]bool, len(targets))
	for _, target := range targets {
		if seen[target] {
			return nil, fmt.Errorf("task %q requested twice", target)
		}
		seen[target] = true
		if _, ok := file.Tasks[target]; !ok {
			return nil, fmt.Errorf("unknown task %q", target)
		}
		if err := visit(target); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// Contains reports whether the plan includes the named task.
func (p *Plan) Contains(name string) bool {
	for _, n := range p.Order {
		if n == name {
			return true
		}
	}
	return false
}
