package executor

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"runbook/internal/launcher"
)

// DryRun prints each task's fully resolved command line in plan order
// without executing anything. Inputs are already resolved, so the
// printed lines show the exact substitution.
func (r *Runner) DryRun(w io.Writer, plan *Plan) error {
	for _, name := range plan.Order {
		task := r.File.Tasks[name]
		if !task.HasCommand() {
			fmt.Fprintf(w, "%s: (deps only: %s)\n", name, strings.Join(task.Deps, ", "))
			continue
		}

		expanded, err := r.Expander.ExpandTask(task)
		if err != nil {
			return fmt.Errorf("task %s: %w", name, err)
		}

		l, err := launcher.Select(expanded, r.Shell)
		if err != nil {
			return fmt.Errorf("task %s: %w", name, err)
		}
		prog, args, err := l.BuildArgv(expanded)
		if err != nil {
			return fmt.Errorf("task %s: %w", name, err)
		}

		fmt.Fprintf(w, "%s: %s", name, shellJoin(prog, args))
		if expanded.Dir != "" {
			fmt.Fprintf(w, "  (dir: %s)", r.resolveDir(expanded.Dir))
		}
		if len(expanded.Env) > 0 {
			keys := make([]string, 0, len(expanded.Env))
			for k := range expanded.Env {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			pairs := make([]string, len(keys))
			for i, k := range keys {
				pairs[i] = k + "=" + expanded.Env[k]
			}
			fmt.Fprintf(w, "  (env: %s)", strings.Join(pairs, " "))
		}
		fmt.Fprintln(w)
	}
	return nil
}

func shellJoin(prog string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	for _, p := range append([]string{prog}, args...) {
		if strings.ContainsAny(p, " \t\"'") {
			p = fmt.Sprintf("%q", p)
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}
