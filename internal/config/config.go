// Package config reads tool-level settings: the RUNBOOK_* environment,
// an optional config file, and flag-style boolean parsing.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings holds resolved tool configuration. Values come from, in
// order of precedence, flags (applied by the caller), RUNBOOK_* env
// vars and the config file.
type Settings struct {
	// Shell overrides the binary used for run-string tasks.
	Shell string
	// Timeout is the default per-task timeout; zero means none.
	Timeout time.Duration
	// MaxWorkers bounds parallel dependency groups; zero means unlimited.
	MaxWorkers int
	// HistoryEnabled controls run recording.
	HistoryEnabled bool
	// HistoryPath overrides the run history database location.
	HistoryPath string
}

// ResolveSettings reads tool settings from a configured viper instance.
func ResolveSettings(v *viper.Viper) Settings {
	v.SetDefault("history.enabled", true)

	s := Settings{
		Shell:          strings.TrimSpace(v.GetString("shell")),
		MaxWorkers:     CapWorkers(v.GetInt("max_workers")),
		HistoryEnabled: v.GetBool("history.enabled"),
		HistoryPath:    strings.TrimSpace(v.GetString("history.path")),
	}
	if raw := strings.TrimSpace(v.GetString("timeout")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			s.Timeout = d
		}
	}
	return s
}

// EnvFlagEnabled returns true when the environment variable exists and is not
// explicitly set to a falsey value ("0/false/no/off").
func EnvFlagEnabled(key string) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return false
	}
	val = strings.TrimSpace(strings.ToLower(val))
	switch val {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

func ParseBoolFlag(val string, defaultValue bool) bool {
	val = strings.TrimSpace(strings.ToLower(val))
	switch val {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

// EnvFlagDefaultTrue returns true unless the env var is explicitly set to
// false/0/no/off.
func EnvFlagDefaultTrue(key string) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return true
	}
	return ParseBoolFlag(val, true)
}

const maxWorkersLimit = 100

// CapWorkers clamps a worker count to the supported range: negatives
// become 0 (unlimited) and values above the hard limit are reduced to
// it.
func CapWorkers(value int) int {
	if value < 0 {
		return 0
	}
	if value > maxWorkersLimit {
		return maxWorkersLimit
	}
	return value
}

// ResolveMaxWorkers reads RUNBOOK_MAX_WORKERS. It returns 0 for
// "unlimited".
func ResolveMaxWorkers() int {
	raw := strings.TrimSpace(os.Getenv("RUNBOOK_MAX_WORKERS"))
	if raw == "" {
		return 0
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0
	}
	return CapWorkers(value)
}
