package logger

import (
	"math"
	"os"
	"os/exec"
	"strconv"
	"testing"
	"time"
)

func TestIsProcessRunning(t *testing.T) {
	t.Run("boundary pids", func(t *testing.T) {
		for _, pid := range []int{0, -1} {
			if isProcessRunning(pid) {
				t.Errorf("pid %d should never be treated as running", pid)
			}
		}
	})

	t.Run("pid out of int32 range", func(t *testing.T) {
		if strconv.IntSize <= 32 {
			t.Skip("int cannot represent values above int32 range")
		}
		pid := int(int64(math.MaxInt32) + 1)
		if isProcessRunning(pid) {
			t.Errorf("pid %d out of int32 range should not be treated as running", pid)
		}
	})

	t.Run("current process", func(t *testing.T) {
		if !isProcessRunning(os.Getpid()) {
			t.Errorf("expected current process (pid=%d) to be running", os.Getpid())
		}
	})

	t.Run("nonexistent pid", func(t *testing.T) {
		if isProcessRunning(1 << 30) {
			t.Errorf("expected pid %d to be reported as not running", 1<<30)
		}
	})

	t.Run("exited child", func(t *testing.T) {
		pid := exitedChildPID(t)
		if isProcessRunning(pid) {
			t.Errorf("expected exited child (pid=%d) to be reported as not running", pid)
		}
	})
}

func exitedChildPID(t *testing.T) int {
	t.Helper()

	cmd := exec.Command("sh", "-c", "exit 0")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start helper process: %v", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Wait(); err != nil {
		t.Fatalf("helper process did not exit cleanly: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	return pid
}

func TestGetProcessStartTime(t *testing.T) {
	start := getProcessStartTime(os.Getpid())
	if start.IsZero() {
		t.Fatal("expected non-zero start time for current process")
	}
	if start.After(time.Now().Add(5 * time.Second)) {
		t.Fatalf("start time is in the future: %v", start)
	}
}

func TestGetProcessStartTimeInvalidPIDs(t *testing.T) {
	for _, pid := range []int{0, -1, 1 << 30} {
		if !getProcessStartTime(pid).IsZero() {
			t.Errorf("expected zero start time for pid %d", pid)
		}
	}
}
