// Package logger writes the per-run JSON log file and cleans up logs
// left behind by dead processes.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// maxErrorEntries bounds the in-memory warn/error cache used for the
// failure summary printed on exit.
const maxErrorEntries = 100

const maxSuffixLen = 32

// Logger writes structured JSON entries to a per-process log file. The
// zero value is inert; use NewLogger.
type Logger struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	zl     zerolog.Logger
	errs   []string
	closed bool
}

// NewLogger creates the run log file at $TMPDIR/runbook-<pid>.log.
func NewLogger() (*Logger, error) {
	return newLogger("")
}

// NewLoggerWithSuffix creates a log file with an extra name component,
// used when several logical runs share one process.
func NewLoggerWithSuffix(suffix string) (*Logger, error) {
	return newLogger(SanitizeLogSuffix(suffix))
}

func newLogger(suffix string) (*Logger, error) {
	name := fmt.Sprintf("%s-%d.log", AppName, os.Getpid())
	if suffix != "" {
		name = fmt.Sprintf("%s-%d-%s.log", AppName, os.Getpid(), suffix)
	}
	path := filepath.Join(os.TempDir(), name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create log file %s: %w", path, err)
	}

	zl := zerolog.New(file).Level(zerolog.DebugLevel).With().
		Timestamp().
		Int("pid", os.Getpid()).
		Logger()

	return &Logger{path: path, file: file, zl: zl}, nil
}

// EnableConsole mirrors entries at or above level to out, pretty
// printed. Intended for --verbose.
func (l *Logger) EnableConsole(out io.Writer, level zerolog.Level, noColor bool) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	console := minLevelWriter{
		w:     zerolog.ConsoleWriter{Out: out, NoColor: noColor},
		level: level,
	}
	l.zl = zerolog.New(zerolog.MultiLevelWriter(l.file, console)).Level(zerolog.DebugLevel).With().
		Timestamp().
		Int("pid", os.Getpid()).
		Logger()
}

type minLevelWriter struct {
	w     io.Writer
	level zerolog.Level
}

func (w minLevelWriter) Write(p []byte) (int, error) { return w.w.Write(p) }

func (w minLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < w.level {
		return len(p), nil
	}
	return w.w.Write(p)
}

func (l *Logger) Debug(msg string) { l.log(zerolog.DebugLevel, msg) }
func (l *Logger) Info(msg string)  { l.log(zerolog.InfoLevel, msg) }
func (l *Logger) Warn(msg string)  { l.log(zerolog.WarnLevel, msg) }
func (l *Logger) Error(msg string) { l.log(zerolog.ErrorLevel, msg) }

func (l *Logger) log(level zerolog.Level, msg string) {
	if l == nil || l.file == nil {
		return
	}
	l.zl.WithLevel(level).Msg(msg)

	if level >= zerolog.WarnLevel {
		l.mu.Lock()
		l.errs = append(l.errs, msg)
		if overflow := len(l.errs) - maxErrorEntries; overflow > 0 {
			l.errs = append(l.errs[:0], l.errs[overflow:]...)
		}
		l.mu.Unlock()
	}
}

// Event starts a structured entry for callers that attach fields.
func (l *Logger) Event(level zerolog.Level) *zerolog.Event {
	if l == nil || l.file == nil {
		nop := zerolog.Nop()
		return nop.WithLevel(level)
	}
	return l.zl.WithLevel(level)
}

// Flush forces buffered entries to disk.
func (l *Logger) Flush() {
	if l == nil || l.file == nil {
		return
	}
	_ = l.file.Sync()
}

// Close stops writing. The log file stays on disk for debugging; the
// caller decides whether to remove it.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

// Path returns the log file location; empty for the zero value.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// RemoveLogFile deletes the log file from disk.
func (l *Logger) RemoveLogFile() error {
	if l == nil || l.path == "" {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ExtractRecentErrors returns up to maxEntries of the most recent warn
// and error messages, oldest first.
func (l *Logger) ExtractRecentErrors(maxEntries int) []string {
	if l == nil || l.path == "" || maxEntries <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.errs) == 0 {
		return nil
	}
	start := 0
	if len(l.errs) > maxEntries {
		start = len(l.errs) - maxEntries
	}
	out := make([]string, len(l.errs)-start)
	copy(out, l.errs[start:])
	return out
}

// SanitizeLogSuffix maps a raw suffix to something safe in a file name.
// Distinct inputs stay distinct: each unsafe rune becomes exactly one
// underscore.
func SanitizeLogSuffix(raw string) string {
	if raw == "" {
		return "run"
	}
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, raw)
	if len(mapped) > maxSuffixLen {
		mapped = mapped[:maxSuffixLen]
	}
	return mapped
}

func sanitizeLogSuffix(raw string) string { return SanitizeLogSuffix(raw) }
