package app

import ilogger "runbook/internal/logger"

type Logger = ilogger.Logger
type CleanupStats = ilogger.CleanupStats

func NewLogger() (*Logger, error) { return ilogger.NewLogger() }

func setLogger(l *Logger) { ilogger.SetLogger(l) }

func closeLogger() error { return ilogger.CloseLogger() }

func activeLogger() *Logger { return ilogger.ActiveLogger() }

func logDebug(msg string) { ilogger.LogDebug(msg) }

func logInfo(msg string) { ilogger.LogInfo(msg) }

func logWarn(msg string) { ilogger.LogWarn(msg) }

func logError(msg string) { ilogger.LogError(msg) }

func cleanupOldLogs() (CleanupStats, error) { return ilogger.CleanupOldLogs() }

// scheduleStartupCleanup scans for stale logs from previous runs in the
// background so startup latency stays flat.
func scheduleStartupCleanup() {
	go func() {
		if _, err := cleanupOldLogs(); err != nil {
			logWarn("Stale log cleanup: " + err.Error())
		}
	}()
}
