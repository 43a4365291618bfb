package executor

import (
	"context"
	"io"
	"os/exec"
	"sync/atomic"
	"time"
)

// forceKillDelay is how long, in seconds, a process group gets between
// SIGTERM and SIGKILL after cancellation.
var forceKillDelay atomic.Int32

func init() {
	forceKillDelay.Store(5)
}

// commandRunner abstracts exec.Cmd so process behavior is injectable in
// tests.
type commandRunner interface {
	Start() error
	Wait() error
	SetDir(dir string)
	SetEnv(env []string)
	SetStdout(w io.Writer)
	SetStderr(w io.Writer)
	Pid() int
}

type realCmd struct {
	cmd *exec.Cmd
}

func (r *realCmd) Start() error          { return r.cmd.Start() }
func (r *realCmd) Wait() error           { return r.cmd.Wait() }
func (r *realCmd) SetDir(dir string)     { r.cmd.Dir = dir }
func (r *realCmd) SetEnv(env []string)   { r.cmd.Env = env }
func (r *realCmd) SetStdout(w io.Writer) { r.cmd.Stdout = w }
func (r *realCmd) SetStderr(w io.Writer) { r.cmd.Stderr = w }

func (r *realCmd) Pid() int {
	if r.cmd.Process == nil {
		return 0
	}
	return r.cmd.Process.Pid
}

// Seams for tests.
var commandContext = exec.CommandContext

var newCommandRunner = defaultNewCommandRunner

func defaultNewCommandRunner(ctx context.Context, name string, args ...string) commandRunner {
	cmd := commandContext(ctx, name, args...)
	// Cancellation is handled by terminateOnCancel so the whole group
	// dies, not just the direct child.
	cmd.Cancel = func() error { return nil }
	setProcessGroup(cmd)
	return &realCmd{cmd: cmd}
}

// terminateOnCancel waits for ctx cancellation and escalates from
// SIGTERM to SIGKILL on the child's process group. The returned stop
// function must be called once the child has been reaped.
func terminateOnCancel(ctx context.Context, pgid int) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-done:
			return
		case <-ctx.Done():
		}

		if err := sendTermSignal(pgid); err != nil {
			logDebug("terminate group: " + err.Error())
		}
		select {
		case <-done:
		case <-time.After(time.Duration(forceKillDelay.Load()) * time.Second):
			if err := sendKillSignal(pgid); err != nil {
				logDebug("kill group: " + err.Error())
			}
		}
	}()
	return func() { close(done) }
}
