package logger

// AppName is the fixed tool name; it prefixes run log file names.
const AppName = "runbook"

// LogPrefix returns the filename prefix for run log files.
func LogPrefix() string { return AppName }
