package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"runbook/internal/artifact"
	"runbook/internal/launcher"
	"runbook/internal/runbook"
	"runbook/internal/utils"
)

// Runner executes a plan with fail-stop sequencing: the first task that
// ends badly halts the chain and everything not yet started is skipped.
type Runner struct {
	File     *runbook.File
	Expander *runbook.Expander
	// Dotenv is the merged content of the file's dotenv entries.
	Dotenv map[string]string
	// Shell overrides the launcher shell binary.
	Shell string
	// DefaultTimeout applies to tasks without their own timeout.
	DefaultTimeout time.Duration
	// MaxWorkers bounds concurrently running parallel deps; 0 is
	// unlimited.
	MaxWorkers int
	// Output receives streamed child output, prefixed per task.
	Output io.Writer

	aborted atomic.Bool
	sem     chan struct{}

	mu     sync.Mutex
	states map[string]*taskState
}

type taskState struct {
	once sync.Once
	res  *Result
}

// Run executes the plan and returns results in plan order. The process
// exit code mirrors the first failure.
func (r *Runner) Run(ctx context.Context, plan *Plan) *Summary {
	r.states = make(map[string]*taskState, len(plan.Order))
	for _, name := range plan.Order {
		r.states[name] = &taskState{}
	}
	if r.MaxWorkers > 0 {
		r.sem = make(chan struct{}, r.MaxWorkers)
	}
	if r.Output == nil {
		r.Output = io.Discard
	}

	for _, target := range plan.Targets {
		r.runTask(ctx, target)
	}

	summary := &Summary{Results: make([]Result, 0, len(plan.Order))}
	for _, name := range plan.Order {
		st := r.states[name]
		if st.res == nil {
			summary.Results = append(summary.Results, Result{Task: name, Status: StatusSkipped})
			continue
		}
		summary.Results = append(summary.Results, *st.res)
	}
	if failed := summary.Failed(); failed != nil {
		summary.ExitCode = failed.ExitCode
		if summary.ExitCode == 0 {
			summary.ExitCode = 1
		}
	}
	return summary
}

func (r *Runner) runTask(ctx context.Context, name string) *Result {
	st := r.state(name)
	st.once.Do(func() {
		st.res = r.execute(ctx, name)
	})
	return st.res
}

func (r *Runner) state(name string) *taskState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[name]
	if !ok {
		st = &taskState{}
		r.states[name] = st
	}
	return st
}

func (r *Runner) execute(ctx context.Context, name string) *Result {
	if r.aborted.Load() || ctx.Err() != nil {
		return skippedResult(name)
	}
	task := r.File.Tasks[name]

	if ok := r.runDeps(ctx, task); !ok {
		return skippedResult(name)
	}

	if !task.HasCommand() {
		logInfo(fmt.Sprintf("Task %s: deps complete", name))
		return &Result{Task: name, Status: StatusRun}
	}
	if r.aborted.Load() || ctx.Err() != nil {
		return skippedResult(name)
	}

	res := r.runCommand(ctx, name, task)
	if res.Status != StatusRun {
		r.aborted.Store(true)
	}
	return res
}

// runDeps runs the task's dependencies, sequentially or concurrently
// per its order field. It reports whether all of them completed.
func (r *Runner) runDeps(ctx context.Context, task *runbook.Task) bool {
	if len(task.Deps) == 0 {
		return true
	}

	if task.Order == runbook.OrderParallel {
		var wg sync.WaitGroup
		for _, dep := range task.Deps {
			if r.aborted.Load() || ctx.Err() != nil {
				break
			}
			wg.Add(1)
			go func(dep string) {
				defer wg.Done()
				if r.sem != nil {
					r.sem <- struct{}{}
					defer func() { <-r.sem }()
				}
				r.runTask(ctx, dep)
			}(dep)
		}
		wg.Wait()
	} else {
		for _, dep := range task.Deps {
			res := r.runTask(ctx, dep)
			if res == nil || res.Status != StatusRun {
				return false
			}
		}
	}

	for _, dep := range task.Deps {
		st := r.state(dep)
		if st.res == nil || st.res.Status != StatusRun {
			return false
		}
	}
	return true
}

func (r *Runner) runCommand(ctx context.Context, name string, task *runbook.Task) *Result {
	start := time.Now()

	expanded, err := r.Expander.ExpandTask(task)
	if err != nil {
		return failResult(name, 1, err, start)
	}

	dir := r.resolveDir(expanded.Dir)
	if err := artifact.CheckConsumes(dir, expanded.Consumes); err != nil {
		logError(fmt.Sprintf("Task %s: %v", name, err))
		return failResult(name, 1, err, start)
	}

	// A declared timeout always wins over the default, including an
	// explicit zero that opts the task out of it.
	timeout := r.DefaultTimeout
	if expanded.Timeout != "" {
		if d, err := expanded.TimeoutDuration(); err == nil {
			timeout = d
		}
	}

	attempts := 1
	delay := time.Second
	if task.Retry != nil {
		attempts = task.Retry.Attempts
		if d, err := task.Retry.DelayDuration(); err == nil {
			delay = d
		}
	}

	var res *Result
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(delay))
	_ = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			logWarn(fmt.Sprintf("Task %s: retrying (attempt %d/%d)", name, attempt, attempts))
		}
		res = r.attempt(ctx, name, expanded, dir, timeout)
		if res.Status == StatusRun {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("task %s: %s", name, res.Status)
		}
		return retry.RetryableError(fmt.Errorf("task %s: %s", name, res.Status))
	})

	res.Attempts = attempt
	res.setDuration(time.Since(start))

	if res.Status == StatusRun && len(expanded.Produces) > 0 {
		matches, err := artifact.CheckProduces(dir, expanded.Produces)
		if err != nil {
			logError(fmt.Sprintf("Task %s: %v", name, err))
			failed := failResult(name, 1, err, start)
			failed.Attempts = res.Attempts
			return failed
		}
		for _, m := range matches {
			logInfo(fmt.Sprintf("Task %s: produced %s (%d bytes)", name, m.Path, m.Size))
		}
	}
	return res
}

// attempt runs the task command once and classifies the outcome.
func (r *Runner) attempt(ctx context.Context, name string, task *runbook.Task, dir string, timeout time.Duration) *Result {
	l, err := launcher.Select(task, r.Shell)
	if err != nil {
		return &Result{Task: name, Status: StatusFailed, ExitCode: 1, Error: err.Error()}
	}
	prog, args, err := l.BuildArgv(task)
	if err != nil {
		return &Result{Task: name, Status: StatusFailed, ExitCode: 1, Error: err.Error()}
	}

	actx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		actx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := newCommandRunner(actx, prog, args...)
	cmd.SetDir(dir)
	cmd.SetEnv(r.childEnv(task))

	tail := &tailBuffer{limit: tailLimit}
	lw := newLineWriter(func(line string) {
		fmt.Fprintf(r.Output, "[%s] %s\n", name, line)
		logDebug(fmt.Sprintf("[%s] %s", name, line))
	}, 0)
	out := io.MultiWriter(lw, tail)
	cmd.SetStdout(out)
	cmd.SetStderr(out)

	logInfo(fmt.Sprintf("Task %s: %s %s (%s launcher)", name, prog, strings.Join(args, " "), l.Name()))

	if err := cmd.Start(); err != nil {
		logError(fmt.Sprintf("Task %s: failed to start: %v", name, err))
		return &Result{Task: name, Status: StatusFailed, ExitCode: 1, Error: err.Error()}
	}

	stop := terminateOnCancel(actx, cmd.Pid())
	werr := cmd.Wait()
	stop()
	lw.Flush()

	switch {
	case timeout > 0 && errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		logError(fmt.Sprintf("Task %s: timed out after %s", name, timeout))
		return &Result{
			Task: name, Status: StatusTimeout, ExitCode: ExitTimeout,
			Error: fmt.Sprintf("timed out after %s", timeout),
			Tail:  failureTail(tail),
		}
	case ctx.Err() != nil:
		return &Result{
			Task: name, Status: StatusFailed, ExitCode: ExitInterrupt,
			Error: "interrupted",
			Tail:  failureTail(tail),
		}
	case werr != nil:
		code := exitCodeFromError(werr)
		logError(fmt.Sprintf("Task %s: exit %d", name, code))
		return &Result{
			Task: name, Status: StatusFailed, ExitCode: code,
			Error: werr.Error(),
			Tail:  failureTail(tail),
		}
	}

	logInfo(fmt.Sprintf("Task %s: done", name))
	return &Result{Task: name, Status: StatusRun}
}

func (r *Runner) resolveDir(dir string) string {
	workspace := r.File.Workspace()
	if dir == "" {
		return workspace
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(workspace, dir)
}

// childEnv overlays the parent environment with dotenv, file env and
// task env; later entries win.
func (r *Runner) childEnv(task *runbook.Task) []string {
	env := os.Environ()
	for _, overlay := range []map[string]string{r.Dotenv, r.File.Env, task.Env} {
		if len(overlay) == 0 {
			continue
		}
		keys := make([]string, 0, len(overlay))
		for k := range overlay {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			env = append(env, k+"="+overlay[k])
		}
	}
	return env
}

func failureTail(tail *tailBuffer) string {
	return utils.TrimTrailingNewlines(utils.SanitizeOutput(tail.String()))
}

func skippedResult(name string) *Result {
	return &Result{Task: name, Status: StatusSkipped}
}

func failResult(name string, code int, err error, start time.Time) *Result {
	res := &Result{Task: name, Status: StatusFailed, ExitCode: code, Error: err.Error()}
	res.setDuration(time.Since(start))
	return res
}
