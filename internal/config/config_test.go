package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadLayersOverDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	path := writeConfig(t, `
listen:
  port: 9100
gemini:
  api_key: yaml-key
scheduler:
  interval_ms: 250
data_dir: /var/lib/pulu
log_level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Listen.Addr() != "0.0.0.0:9100" {
		t.Errorf("Addr = %q", cfg.Listen.Addr())
	}
	if cfg.Gemini.APIKey != "yaml-key" {
		t.Errorf("APIKey = %q", cfg.Gemini.APIKey)
	}
	if cfg.Gemini.Model == "" {
		t.Error("default model not applied")
	}
	if cfg.Scheduler.Interval() != 250*time.Millisecond {
		t.Errorf("Interval = %v", cfg.Scheduler.Interval())
	}
	if cfg.UserID != "user_1" {
		t.Errorf("UserID = %q", cfg.UserID)
	}
	if cfg.DatabasePath() != "/var/lib/pulu/pulu.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath())
	}
}

func TestLoadEnvKeyOverridesYaml(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	path := writeConfig(t, "gemini:\n  api_key: yaml-key\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gemini.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env-key", cfg.Gemini.APIKey)
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	path := writeConfig(t, "listen:\n  port: 9100\n")

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "api_key") {
		t.Errorf("Load err = %v, want missing api_key error", err)
	}
}

func TestLoadRequiresBrokerWhenMQTTEnabled(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	path := writeConfig(t, "mqtt:\n  enabled: true\n")

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "mqtt.broker") {
		t.Errorf("Load err = %v, want missing broker error", err)
	}
}

func TestFindConfigExplicitMustExist(t *testing.T) {
	if _, err := FindConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}

	path := writeConfig(t, "gemini:\n  api_key: k\n")
	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig: %v", err)
	}
	if got != path {
		t.Errorf("FindConfig = %q, want %q", got, path)
	}
}

func TestDurationDefaults(t *testing.T) {
	var g GeminiConfig
	if g.ConnectTimeout() != 15*time.Second {
		t.Errorf("ConnectTimeout = %v", g.ConnectTimeout())
	}
	var s SchedulerConfig
	if s.Interval() != time.Second {
		t.Errorf("Interval = %v", s.Interval())
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLogLevel(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseLogLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
