//go:build unix || darwin || linux
// +build unix darwin linux

package executor

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the child in its own process group so a later
// signal reaches the whole tree, not just the direct child.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// sendTermSignal asks the child's process group to shut down.
func sendTermSignal(pgid int) error {
	if pgid <= 0 {
		return nil
	}
	return syscall.Kill(-pgid, syscall.SIGTERM)
}

// sendKillSignal forcibly terminates the child's process group.
func sendKillSignal(pgid int) error {
	if pgid <= 0 {
		return nil
	}
	return syscall.Kill(-pgid, syscall.SIGKILL)
}

// exitCodeFromError extracts the child's exit status, including death
// by signal (shell convention: 128+signal).
func exitCodeFromError(err error) int {
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return 1
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return 1
	}
	if status.Signaled() {
		return 128 + int(status.Signal())
	}
	return status.ExitStatus()
}
