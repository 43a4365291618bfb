package logger

import (
	"errors"
	"math"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// isProcessRunning reports whether a process with the given pid is
// alive. Stale-log cleanup deletes files belonging to dead runs, so
// ambiguous answers err on the side of "running": only a positive
// not-found keeps false.
func isProcessRunning(pid int) bool {
	pid32, ok := pidToInt32(pid)
	if !ok {
		return false
	}

	exists, err := process.PidExists(pid32)
	switch {
	case err == nil:
		return exists
	case errors.Is(err, process.ErrorProcessNotRunning):
		return false
	default:
		// Permission or inspection failure: assume alive.
		return true
	}
}

// getProcessStartTime returns when the process started, or the zero
// time when it cannot be determined. The cleanup pass compares this
// against a log file's mtime to detect PID reuse.
func getProcessStartTime(pid int) time.Time {
	pid32, ok := pidToInt32(pid)
	if !ok {
		return time.Time{}
	}

	proc, err := process.NewProcess(pid32)
	if err != nil {
		return time.Time{}
	}

	ms, err := proc.CreateTime()
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func pidToInt32(pid int) (int32, bool) {
	if pid <= 0 || pid > math.MaxInt32 {
		return 0, false
	}
	return int32(pid), true
}

func IsProcessRunning(pid int) bool { return isProcessRunning(pid) }

func GetProcessStartTime(pid int) time.Time { return getProcessStartTime(pid) }
