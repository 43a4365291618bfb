package logger

import "sync/atomic"

// The process-wide active logger. Commands install one at startup and
// the rest of the tree logs through the package-level helpers, which
// are no-ops while no logger is installed.
var loggerPtr atomic.Pointer[Logger]

func setLogger(l *Logger) { loggerPtr.Store(l) }

func activeLogger() *Logger { return loggerPtr.Load() }

// closeLogger detaches and closes the active logger, if any.
func closeLogger() error {
	l := loggerPtr.Swap(nil)
	if l == nil {
		return nil
	}
	return l.Close()
}

func logDebug(msg string) {
	if l := activeLogger(); l != nil {
		l.Debug(msg)
	}
}

func logInfo(msg string) {
	if l := activeLogger(); l != nil {
		l.Info(msg)
	}
}

func logWarn(msg string) {
	if l := activeLogger(); l != nil {
		l.Warn(msg)
	}
}

func logError(msg string) {
	if l := activeLogger(); l != nil {
		l.Error(msg)
	}
}

func SetLogger(l *Logger) { setLogger(l) }

func CloseLogger() error { return closeLogger() }

func ActiveLogger() *Logger { return activeLogger() }

func LogDebug(msg string) { logDebug(msg) }

func LogInfo(msg string) { logInfo(msg) }

func LogWarn(msg string) { logWarn(msg) }

func LogError(msg string) { logError(msg) }
