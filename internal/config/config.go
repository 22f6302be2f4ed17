// Package config handles Pulu configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/pulu/config.yaml, /etc/pulu/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "pulu", "config.yaml"))
	}

	paths = append(paths, "/etc/pulu/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Pulu configuration.
type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	DataDir   string          `yaml:"data_dir"`
	UserID    string          `yaml:"user_id"`
	LogLevel  string          `yaml:"log_level"`
}

// ListenConfig defines the HTTP listener.
type ListenConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// Addr returns the address:port string for net/http.
func (l ListenConfig) Addr() string {
	return fmt.Sprintf("%s:%d", l.Address, l.Port)
}

// GeminiConfig defines the Gemini Live endpoint settings.
// The API key may also be supplied via the GEMINI_API_KEY environment
// variable (or a .env file), which takes precedence over the yaml value.
type GeminiConfig struct {
	APIKey            string `yaml:"api_key"`
	Model             string `yaml:"model"`
	Host              string `yaml:"host"`
	ConnectTimeoutSec int    `yaml:"connect_timeout_sec"`
}

// ConnectTimeout returns the handshake timeout as a duration.
func (g GeminiConfig) ConnectTimeout() time.Duration {
	if g.ConnectTimeoutSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(g.ConnectTimeoutSec) * time.Second
}

// SchedulerConfig defines the alarm/timer polling loop.
type SchedulerConfig struct {
	// IntervalMS is the poll interval in milliseconds (default 1000).
	IntervalMS int `yaml:"interval_ms"`
}

// Interval returns the poll interval as a duration.
func (s SchedulerConfig) Interval() time.Duration {
	if s.IntervalMS <= 0 {
		return time.Second
	}
	return time.Duration(s.IntervalMS) * time.Millisecond
}

// MQTTConfig defines the optional notification publisher.
type MQTTConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Broker     string `yaml:"broker"` // e.g. mqtt://host:1883 or mqtts://host:8883
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	DeviceName string `yaml:"device_name"`
}

// Default returns a Config with sensible defaults applied.
func Default() *Config {
	return &Config{
		Listen:  ListenConfig{Address: "0.0.0.0", Port: 8000},
		Gemini:  GeminiConfig{Model: "models/gemini-2.5-flash-native-audio-preview-12-2025"},
		DataDir: ".",
		UserID:  "user_1",
		MQTT:    MQTTConfig{DeviceName: "pulu"},
	}
}

// Load reads and parses the config file at path, layered over defaults.
// The GEMINI_API_KEY environment variable, if set, overrides the yaml key.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Gemini.APIKey = key
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("gemini.api_key is required (or set GEMINI_API_KEY)")
	}
	if c.UserID == "" {
		return fmt.Errorf("user_id must not be empty")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	return nil
}

// DatabasePath returns the SQLite file location under DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "pulu.db")
}
