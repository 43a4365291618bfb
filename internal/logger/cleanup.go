package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// logRetention is how long a log whose process start time cannot be
// determined is assumed to still matter.
const logRetention = 7 * 24 * time.Hour

// CleanupStats summarizes one stale-log scan.
type CleanupStats struct {
	Scanned      int
	Deleted      int
	Kept         int
	Errors       int
	DeletedFiles []string
	KeptFiles    []string
}

// Seams for tests; see testhooks.go for the setters.
var (
	processRunningCheck = isProcessRunning
	processStartTimeFn  = getProcessStartTime
	removeLogFileFn     = os.Remove
	globLogFiles        = filepath.Glob
	fileStatFn          = os.Lstat
	evalSymlinksFn      = filepath.EvalSymlinks
)

// CleanupOldLogs removes run logs whose owning process is gone. It is
// conservative: anything it cannot positively classify as stale stays.
func CleanupOldLogs() (CleanupStats, error) {
	return cleanupOldLogs()
}

func cleanupOldLogs() (CleanupStats, error) {
	var stats CleanupStats
	tempDir := os.TempDir()

	files, err := globLogFiles(filepath.Join(tempDir, AppName+"-*.log"))
	if err != nil {
		return stats, fmt.Errorf("scan log directory: %w", err)
	}

	var errs []error
	for _, path := range files {
		stats.Scanned++

		pid, ok := parsePIDFromLog(path)
		if !ok {
			stats.Kept++
			stats.KeptFiles = append(stats.KeptFiles, path)
			continue
		}

		if processRunningCheck(pid) && !isPIDReused(path, pid) {
			stats.Kept++
			stats.KeptFiles = append(stats.KeptFiles, path)
			continue
		}

		if unsafe, reason := isUnsafeFile(path, tempDir); unsafe {
			stats.Errors++
			errs = append(errs, fmt.Errorf("skip %s: %s", path, reason))
			continue
		}

		if err := removeLogFileFn(path); err != nil {
			stats.Errors++
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
			continue
		}
		stats.Deleted++
		stats.DeletedFiles = append(stats.DeletedFiles, path)
	}

	return stats, errors.Join(errs...)
}

// parsePIDFromLog extracts the owning PID from a log file name of the
// form runbook-<pid>[-suffix].log.
func parsePIDFromLog(path string) (int, bool) {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, AppName+"-") || !strings.HasSuffix(base, ".log") {
		return 0, false
	}

	middle := strings.TrimSuffix(strings.TrimPrefix(base, AppName+"-"), ".log")
	pidPart := middle
	if idx := strings.IndexByte(middle, '-'); idx >= 0 {
		pidPart = middle[:idx]
	}
	if pidPart == "" {
		return 0, false
	}

	pid, err := strconv.Atoi(pidPart)
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// isPIDReused guards against a recycled PID keeping a stale log alive:
// if the process started after the log was written, it is not the
// process that wrote it.
func isPIDReused(path string, pid int) bool {
	info, err := fileStatFn(path)
	if err != nil {
		return false
	}

	start := processStartTimeFn(pid)
	if start.IsZero() {
		return time.Since(info.ModTime()) > logRetention
	}
	return start.After(info.ModTime())
}

// isUnsafeFile refuses deletion of symlinks and anything resolving
// outside the temp directory.
func isUnsafeFile(path, tempDir string) (bool, string) {
	info, err := fileStatFn(path)
	if err != nil {
		return true, "cannot stat file"
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return true, "refusing to delete symlink"
	}

	resolved, err := evalSymlinksFn(path)
	if err != nil {
		return true, "cannot resolve path"
	}
	absTemp, err := filepath.Abs(tempDir)
	if err != nil {
		return true, "cannot resolve tempDir"
	}
	rel, err := filepath.Rel(absTemp, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return true, "file is outside tempDir"
	}
	return false, ""
}
