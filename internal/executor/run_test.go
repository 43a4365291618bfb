package executor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"runbook/internal/runbook"
)

func newTestFile(t *testing.T, tasks map[string]*runbook.Task) *runbook.File {
	t.Helper()
	for _, task := range tasks {
		if task.Order == "" {
			task.Order = runbook.OrderSequence
		}
	}
	return &runbook.File{
		Tasks: tasks,
		Path:  filepath.Join(t.TempDir(), "runbook.yaml"),
	}
}

func newTestRunner(file *runbook.File) *Runner {
	return &Runner{
		File:     file,
		Expander: &runbook.Expander{Workspace: file.Workspace()},
		Output:   &bytes.Buffer{},
	}
}

func mustPlan(t *testing.T, file *runbook.File, targets ...string) *Plan {
	t.Helper()
	plan, err := BuildPlan(file, targets)
	if err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	return plan
}

func resultFor(t *testing.T, s *Summary, name string) *Result {
	t.Helper()
	for i := range s.Results {
		if s.Results[i].Task == name {
			return &s.Results[i]
		}
	}
	t.Fatalf("no result for task %q in %+v", name, s.Results)
	return nil
}

func TestRunSequenceSuccess(t *testing.T) {
	file := newTestFile(t, map[string]*runbook.Task{
		"one":   {Run: "touch one.txt"},
		"two":   {Run: "touch two.txt", Deps: []string{"one"}},
		"chain": {Deps: []string{"two"}},
	})

	r := newTestRunner(file)
	summary := r.Run(context.Background(), mustPlan(t, file, "chain"))

	if !summary.OK() {
		t.Fatalf("summary = %+v, want success", summary)
	}
	for _, name := range []string{"one", "two", "chain"} {
		if res := resultFor(t, summary, name); res.Status != StatusRun {
			t.Errorf("task %s status = %s, want run", name, res.Status)
		}
	}
	for _, f := range []string{"one.txt", "two.txt"} {
		if _, err := os.Stat(filepath.Join(file.Workspace(), f)); err != nil {
			t.Errorf("expected %s to exist: %v", f, err)
		}
	}
}

func TestRunFailStopSkipsRest(t *testing.T) {
	file := newTestFile(t, map[string]*runbook.Task{
		"clean":   {Run: "true"},
		"build":   {Run: "exit 3"},
		"upload":  {Run: "touch uploaded.txt"},
		"release": {Deps: []string{"clean", "build", "upload"}},
	})

	r := newTestRunner(file)
	summary := r.Run(context.Background(), mustPlan(t, file, "release"))

	if summary.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3 (propagated from failing task)", summary.ExitCode)
	}
	if res := resultFor(t, summary, "clean"); res.Status != StatusRun {
		t.Errorf("clean status = %s, want run", res.Status)
	}
	if res := resultFor(t, summary, "build"); res.Status != StatusFailed || res.ExitCode != 3 {
		t.Errorf("build result = %+v, want failed exit 3", res)
	}
	for _, name := range []string{"upload", "release"} {
		if res := resultFor(t, summary, name); res.Status != StatusSkipped {
			t.Errorf("%s status = %s, want skipped", name, res.Status)
		}
	}
	if _, err := os.Stat(filepath.Join(file.Workspace(), "uploaded.txt")); !os.IsNotExist(err) {
		t.Error("upload ran despite earlier failure")
	}
}

func TestRunStartFailureExitsOne(t *testing.T) {
	file := newTestFile(t, map[string]*runbook.Task{
		"missing": {Command: "definitely-not-a-real-binary-12345"},
	})

	r := newTestRunner(file)
	summary := r.Run(context.Background(), mustPlan(t, file, "missing"))

	if summary.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1 for start failure", summary.ExitCode)
	}
	if res := resultFor(t, summary, "missing"); res.Status != StatusFailed {
		t.Errorf("status = %s, want failed", res.Status)
	}
}

func TestRunParallelDeps(t *testing.T) {
	file := newTestFile(t, map[string]*runbook.Task{
		"a":   {Run: "touch a.txt"},
		"b":   {Run: "touch b.txt"},
		"all": {Deps: []string{"a", "b"}, Order: runbook.OrderParallel},
	})

	r := newTestRunner(file)
	r.MaxWorkers = 2
	summary := r.Run(context.Background(), mustPlan(t, file, "all"))

	if !summary.OK() {
		t.Fatalf("summary = %+v, want success", summary)
	}
	for _, f := range []string{"a.txt", "b.txt"} {
		if _, err := os.Stat(filepath.Join(file.Workspace(), f)); err != nil {
			t.Errorf("expected %s: %v", f, err)
		}
	}
}

func TestRunParallelGroupFailure(t *testing.T) {
	file := newTestFile(t, map[string]*runbook.Task{
		"ok":   {Run: "true"},
		"bad":  {Run: "exit 7"},
		"both": {Deps: []string{"ok", "bad"}, Order: runbook.OrderParallel},
	})

	r := newTestRunner(file)
	summary := r.Run(context.Background(), mustPlan(t, file, "both"))

	if summary.ExitCode != 7 {
		t.Errorf("exit code = %d, want 7", summary.ExitCode)
	}
	if res := resultFor(t, summary, "both"); res.Status != StatusSkipped {
		t.Errorf("group task status = %s, want skipped", res.Status)
	}
}

func TestRunRetrySucceedsOnSecondAttempt(t *testing.T) {
	file := newTestFile(t, map[string]*runbook.Task{
		"flaky": {
			Run:   "if [ -f marker ]; then exit 0; else touch marker; exit 1; fi",
			Retry: &runbook.RetryPolicy{Attempts: 3, Delay: "1ms"},
		},
	})

	r := newTestRunner(file)
	summary := r.Run(context.Background(), mustPlan(t, file, "flaky"))

	if !summary.OK() {
		t.Fatalf("summary = %+v, want success after retry", summary)
	}
	if res := resultFor(t, summary, "flaky"); res.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", res.Attempts)
	}
}

func TestRunRetryExhausted(t *testing.T) {
	file := newTestFile(t, map[string]*runbook.Task{
		"hopeless": {
			Run:   "exit 5",
			Retry: &runbook.RetryPolicy{Attempts: 2, Delay: "1ms"},
		},
	})

	r := newTestRunner(file)
	summary := r.Run(context.Background(), mustPlan(t, file, "hopeless"))

	if summary.ExitCode != 5 {
		t.Errorf("exit code = %d, want 5", summary.ExitCode)
	}
	if res := resultFor(t, summary, "hopeless"); res.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", res.Attempts)
	}
}

func TestRunTimeout(t *testing.T) {
	restore := SetForceKillDelay(1)
	defer restore()

	file := newTestFile(t, map[string]*runbook.Task{
		"slow": {Run: "sleep 10", Timeout: "100ms"},
	})

	r := newTestRunner(file)
	start := time.Now()
	summary := r.Run(context.Background(), mustPlan(t, file, "slow"))

	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout took %v, group kill did not fire", elapsed)
	}
	if summary.ExitCode != ExitTimeout {
		t.Errorf("exit code = %d, want %d", summary.ExitCode, ExitTimeout)
	}
	if res := resultFor(t, summary, "slow"); res.Status != StatusTimeout {
		t.Errorf("status = %s, want timeout", res.Status)
	}
}

func TestRunDefaultTimeoutApplies(t *testing.T) {
	restore := SetForceKillDelay(1)
	defer restore()

	file := newTestFile(t, map[string]*runbook.Task{
		"slow": {Run: "sleep 10"},
	})

	r := newTestRunner(file)
	r.DefaultTimeout = 100 * time.Millisecond
	summary := r.Run(context.Background(), mustPlan(t, file, "slow"))

	if res := resultFor(t, summary, "slow"); res.Status != StatusTimeout {
		t.Errorf("status = %s, want timeout", res.Status)
	}
}

func TestRunTimeoutZeroDisablesDefault(t *testing.T) {
	file := newTestFile(t, map[string]*runbook.Task{
		"slow": {Run: "sleep 0.3", Timeout: "0s"},
	})

	r := newTestRunner(file)
	r.DefaultTimeout = 100 * time.Millisecond
	summary := r.Run(context.Background(), mustPlan(t, file, "slow"))

	if !summary.OK() {
		t.Fatalf("summary = %+v, want success despite 100ms default", summary)
	}
	if res := resultFor(t, summary, "slow"); res.Status != StatusRun {
		t.Errorf("status = %s, want run", res.Status)
	}
}

func TestRunConsumesMissingFailsFast(t *testing.T) {
	file := newTestFile(t, map[string]*runbook.Task{
		"upload": {Run: "touch uploaded.txt", Consumes: []string{"dist/*"}},
	})

	r := newTestRunner(file)
	summary := r.Run(context.Background(), mustPlan(t, file, "upload"))

	if summary.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1", summary.ExitCode)
	}
	res := resultFor(t, summary, "upload")
	if !strings.Contains(res.Error, "dist/*") {
		t.Errorf("error %q does not name the missing pattern", res.Error)
	}
	if _, err := os.Stat(filepath.Join(file.Workspace(), "uploaded.txt")); !os.IsNotExist(err) {
		t.Error("command ran despite failed consumes check")
	}
}

func TestRunProducesChecked(t *testing.T) {
	file := newTestFile(t, map[string]*runbook.Task{
		"build": {Run: "mkdir -p dist && touch dist/pkg.whl", Produces: []string{"dist/*"}},
		"liar":  {Run: "true", Produces: []string{"dist2/*"}},
	})

	r := newTestRunner(file)
	summary := r.Run(context.Background(), mustPlan(t, file, "build"))
	if !summary.OK() {
		t.Fatalf("build summary = %+v, want success", summary)
	}

	r = newTestRunner(file)
	summary = r.Run(context.Background(), mustPlan(t, file, "liar"))
	if summary.OK() {
		t.Fatal("task with unmatched produces should fail")
	}
}

func TestRunStreamsPrefixedOutput(t *testing.T) {
	file := newTestFile(t, map[string]*runbook.Task{
		"hello": {Run: "echo hi there"},
	})

	var out bytes.Buffer
	r := newTestRunner(file)
	r.Output = &out
	summary := r.Run(context.Background(), mustPlan(t, file, "hello"))

	if !summary.OK() {
		t.Fatalf("summary = %+v", summary)
	}
	if !strings.Contains(out.String(), "[hello] hi there") {
		t.Errorf("output %q missing prefixed line", out.String())
	}
}

func TestRunTaskEnvOverlay(t *testing.T) {
	file := newTestFile(t, map[string]*runbook.Task{
		"show": {Run: "echo val=$OVERLAY_TEST"},
	})
	file.Env = map[string]string{"OVERLAY_TEST": "from-file"}
	file.Tasks["show"].Env = map[string]string{"OVERLAY_TEST": "from-task"}

	var out bytes.Buffer
	r := newTestRunner(file)
	r.Output = &out
	summary := r.Run(context.Background(), mustPlan(t, file, "show"))

	if !summary.OK() {
		t.Fatalf("summary = %+v", summary)
	}
	if !strings.Contains(out.String(), "val=from-task") {
		t.Errorf("output %q: task env should win over file env", out.String())
	}
}

func TestRunInputSubstitution(t *testing.T) {
	file := newTestFile(t, map[string]*runbook.Task{
		"upload": {Run: "echo repo=${input:repository}"},
	})
	file.Inputs = []runbook.Input{
		{ID: "repository", Type: runbook.InputPick, Options: []string{"testpypi", "pypi"}, Default: "testpypi"},
	}

	var out bytes.Buffer
	r := newTestRunner(file)
	r.Expander.Inputs = map[string]string{"repository": "pypi"}
	r.Output = &out

	summary := r.Run(context.Background(), mustPlan(t, file, "upload"))
	if !summary.OK() {
		t.Fatalf("summary = %+v", summary)
	}
	if !strings.Contains(out.String(), "repo=pypi") {
		t.Errorf("output %q missing substituted input", out.String())
	}
}

func TestRunCanceledContextSkipsEverything(t *testing.T) {
	file := newTestFile(t, map[string]*runbook.Task{
		"a": {Run: "touch a.txt"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestRunner(file)
	summary := r.Run(ctx, mustPlan(t, file, "a"))

	if res := resultFor(t, summary, "a"); res.Status != StatusSkipped {
		t.Errorf("status = %s, want skipped for canceled context", res.Status)
	}
}

func TestDryRunPrintsResolvedCommands(t *testing.T) {
	file := newTestFile(t, map[string]*runbook.Task{
		"upload": {
			Run: "twine upload --repository ${input:repository} dist/*",
			Env: map[string]string{"TWINE_NON_INTERACTIVE": "1"},
		},
		"release": {Deps: []string{"upload"}},
	})
	file.Inputs = []runbook.Input{
		{ID: "repository", Type: runbook.InputPick, Options: []string{"testpypi", "pypi"}, Default: "testpypi"},
	}

	r := newTestRunner(file)
	r.Expander.Inputs = map[string]string{"repository": "testpypi"}

	var out bytes.Buffer
	if err := r.DryRun(&out, mustPlan(t, file, "release")); err != nil {
		t.Fatalf("DryRun() error = %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "--repository testpypi") {
		t.Errorf("dry run output missing substituted command:\n%s", text)
	}
	if !strings.Contains(text, "TWINE_NON_INTERACTIVE=1") {
		t.Errorf("dry run output missing env additions:\n%s", text)
	}
	if !strings.Contains(text, "deps only") {
		t.Errorf("dry run output missing aggregate task line:\n%s", text)
	}
}

func TestSummaryFailedAndJSON(t *testing.T) {
	s := &Summary{
		Results: []Result{
			{Task: "clean", Status: StatusRun},
			{Task: "build", Status: StatusFailed, ExitCode: 2, Error: "exit status 2"},
			{Task: "upload", Status: StatusSkipped},
		},
		ExitCode: 2,
	}

	failed := s.Failed()
	if failed == nil || failed.Task != "build" {
		t.Fatalf("Failed() = %+v, want build", failed)
	}

	var buf bytes.Buffer
	if err := s.RenderJSON(&buf); err != nil {
		t.Fatalf("RenderJSON() error = %v", err)
	}
	for _, want := range []string{`"task": "build"`, `"exit_code": 2`, `"status": "skipped"`} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("JSON output missing %q:\n%s", want, buf.String())
		}
	}
}
