package logger

import (
	"os"
	"path/filepath"
	"time"
)

// Seam setters for tests. Passing nil restores the real implementation;
// the returned func restores whatever was installed before.

func SetProcessRunningCheck(fn func(int) bool) (restore func()) {
	if fn == nil {
		fn = isProcessRunning
	}
	prev := processRunningCheck
	processRunningCheck = fn
	return func() { processRunningCheck = prev }
}

func SetProcessStartTimeFn(fn func(int) time.Time) (restore func()) {
	if fn == nil {
		fn = getProcessStartTime
	}
	prev := processStartTimeFn
	processStartTimeFn = fn
	return func() { processStartTimeFn = prev }
}

func SetRemoveLogFileFn(fn func(string) error) (restore func()) {
	if fn == nil {
		fn = os.Remove
	}
	prev := removeLogFileFn
	removeLogFileFn = fn
	return func() { removeLogFileFn = prev }
}

func SetGlobLogFilesFn(fn func(string) ([]string, error)) (restore func()) {
	if fn == nil {
		fn = filepath.Glob
	}
	prev := globLogFiles
	globLogFiles = fn
	return func() { globLogFiles = prev }
}

func SetFileStatFn(fn func(string) (os.FileInfo, error)) (restore func()) {
	if fn == nil {
		fn = os.Lstat
	}
	prev := fileStatFn
	fileStatFn = fn
	return func() { fileStatFn = prev }
}

func SetEvalSymlinksFn(fn func(string) (string, error)) (restore func()) {
	if fn == nil {
		fn = filepath.EvalSymlinks
	}
	prev := evalSymlinksFn
	evalSymlinksFn = fn
	return func() { evalSymlinksFn = prev }
}
