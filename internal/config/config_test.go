package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnvFlagEnabled(t *testing.T) {
	tests := []struct {
		name  string
		value string
		set   bool
		want  bool
	}{
		{"unset", "", false, false},
		{"empty", "", true, false},
		{"zero", "0", true, false},
		{"false", "false", true, false},
		{"no", "no", true, false},
		{"off", "OFF", true, false},
		{"one", "1", true, true},
		{"true", "true", true, true},
		{"arbitrary", "whatever", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const key = "RUNBOOK_TEST_FLAG"
			if tt.set {
				t.Setenv(key, tt.value)
			} else {
				os.Unsetenv(key)
			}
			if got := EnvFlagEnabled(key); got != tt.want {
				t.Errorf("EnvFlagEnabled(%q=%q) = %v, want %v", key, tt.value, got, tt.want)
			}
		})
	}
}

func TestParseBoolFlag(t *testing.T) {
	if !ParseBoolFlag("YES", false) {
		t.Error("ParseBoolFlag(YES) = false")
	}
	if ParseBoolFlag("off", true) {
		t.Error("ParseBoolFlag(off) = true")
	}
	if !ParseBoolFlag("garbage", true) {
		t.Error("ParseBoolFlag(garbage, default true) = false")
	}
}

func TestResolveMaxWorkers(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"", 0},
		{"4", 4},
		{"0", 0},
		{"-3", 0},
		{"junk", 0},
		{"500", 100},
	}

	for _, tt := range tests {
		t.Run("value="+tt.value, func(t *testing.T) {
			t.Setenv("RUNBOOK_MAX_WORKERS", tt.value)
			if got := ResolveMaxWorkers(); got != tt.want {
				t.Errorf("ResolveMaxWorkers() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewViperExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "shell: bash\ntimeout: 5m\nmax_workers: 8\nhistory:\n  enabled: false\n  path: /tmp/h.db\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	v, err := NewViper(path)
	if err != nil {
		t.Fatalf("NewViper() error = %v", err)
	}

	s := ResolveSettings(v)
	if s.Shell != "bash" {
		t.Errorf("shell = %q, want bash", s.Shell)
	}
	if s.Timeout != 5*time.Minute {
		t.Errorf("timeout = %v, want 5m", s.Timeout)
	}
	if s.MaxWorkers != 8 {
		t.Errorf("max workers = %d, want 8", s.MaxWorkers)
	}
	if s.HistoryEnabled {
		t.Error("history should be disabled")
	}
	if s.HistoryPath != "/tmp/h.db" {
		t.Errorf("history path = %q", s.HistoryPath)
	}
}

func TestNewViperMissingExplicitFile(t *testing.T) {
	if _, err := NewViper(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("NewViper() expected error for missing explicit file")
	}
}

func TestNewViperHomeSearchMissingIsFine(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	v, err := NewViper("")
	if err != nil {
		t.Fatalf("NewViper() error = %v", err)
	}

	s := ResolveSettings(v)
	if s.Shell != "" || s.Timeout != 0 || s.MaxWorkers != 0 {
		t.Errorf("defaults = %+v, want zero values", s)
	}
	if !s.HistoryEnabled {
		t.Error("history should default to enabled")
	}
}

func TestResolveSettingsFromEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("RUNBOOK_SHELL", "zsh")
	t.Setenv("RUNBOOK_TIMEOUT", "90s")

	v, err := NewViper("")
	if err != nil {
		t.Fatalf("NewViper() error = %v", err)
	}

	s := ResolveSettings(v)
	if s.Shell != "zsh" {
		t.Errorf("shell = %q, want zsh", s.Shell)
	}
	if s.Timeout != 90*time.Second {
		t.Errorf("timeout = %v, want 90s", s.Timeout)
	}
}

func TestResolveSettingsBadTimeoutIgnored(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("RUNBOOK_TIMEOUT", "soon")

	v, err := NewViper("")
	if err != nil {
		t.Fatalf("NewViper() error = %v", err)
	}
	if s := ResolveSettings(v); s.Timeout != 0 {
		t.Errorf("timeout = %v, want 0 for unparseable value", s.Timeout)
	}
}
