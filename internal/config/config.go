// Package config loads configuration from an optional YAML file and
// environment variables. The environment wins over the file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the client configuration.
type Config struct {
	// API
	APIURL        string        `yaml:"api_url"`
	Timeout       time.Duration `yaml:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	Token         string        `yaml:"token"`

	// Local state (star overlay, plan, recent searches, token file)
	StateDir string `yaml:"state_dir"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogOutput string `yaml:"log_output"`

	// Metrics endpoint of the interactive shell, empty to disable
	MetricsAddr string `yaml:"metrics_addr"`

	// Listing
	PageLimit   int `yaml:"page_limit"`
	RecentLimit int `yaml:"recent_limit"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		APIURL:        "http://localhost:5050/api/v1",
		Timeout:       30 * time.Second,
		RetryAttempts: 1,
		StateDir:      defaultStateDir(),
		LogLevel:      "warn",
		LogFormat:     "console",
		LogOutput:     "stderr",
		PageLimit:     50,
		RecentLimit:   100,
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// WEBDRIVE_CONFIG (or config.yaml in the state dir, if present), then
// environment variables.
func Load() (*Config, error) {
	cfg := Default()

	path := os.Getenv("WEBDRIVE_CONFIG")
	explicit := path != ""
	if !explicit {
		path = filepath.Join(envOr("WEBDRIVE_STATE_DIR", cfg.StateDir), "config.yaml")
	}
	if err := cfg.LoadFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the keys present in a YAML file onto cfg.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.APIURL = envOr("WEBDRIVE_API_URL", c.APIURL)
	c.Timeout = envDuration("WEBDRIVE_TIMEOUT", c.Timeout)
	c.RetryAttempts = envInt("WEBDRIVE_RETRY_ATTEMPTS", c.RetryAttempts)
	c.Token = envOr("WEBDRIVE_TOKEN", c.Token)
	c.StateDir = envOr("WEBDRIVE_STATE_DIR", c.StateDir)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("LOG_FORMAT", c.LogFormat)
	c.LogOutput = envOr("LOG_OUTPUT", c.LogOutput)
	c.MetricsAddr = envOr("WEBDRIVE_METRICS_ADDR", c.MetricsAddr)
	c.PageLimit = envInt("WEBDRIVE_PAGE_LIMIT", c.PageLimit)
}

// Validate checks the values that would otherwise fail later and obscurely.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api url %q must be an absolute URL", c.APIURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1, got %d", c.RetryAttempts)
	}
	if c.StateDir == "" {
		return fmt.Errorf("state dir is required")
	}
	return nil
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "webdrive")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".webdrive")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// envDuration accepts Go durations ("45s") and bare milliseconds ("30000").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
