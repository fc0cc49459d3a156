// Package config resolves PolicyPulse settings from defaults, an optional
// YAML file and POLICYPULSE_* environment variables. Command-line flags are
// applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfig       = "POLICYPULSE_CONFIG"
	EnvBackend      = "POLICYPULSE_BACKEND"
	EnvPollInterval = "POLICYPULSE_POLL_INTERVAL"
	EnvExportDir    = "POLICYPULSE_EXPORT_DIR"
	EnvLogLevel     = "POLICYPULSE_LOG_LEVEL"
)

// DefaultYAML is written by `policypulse config init`.
const DefaultYAML = `# policypulse configuration
backend:
  url: http://localhost:5050
  # Client side pacing of backend requests.
  requests_per_second: 5
  timeout: 30s

# Delay between a status response and the next poll.
poll_interval: 2s

# Where exported reports are written.
export_dir: .

log:
  level: info
  # Empty selects ~/.policypulse/logs/policypulse-<date>.log
  file: ""
`

// BackendConfig locates the analysis backend.
type BackendConfig struct {
	URL               string        `yaml:"url"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout"`
}

// LogConfig controls the file logger.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// Config is the resolved runtime configuration.
type Config struct {
	Backend      BackendConfig `yaml:"backend"`
	PollInterval time.Duration `yaml:"poll_interval"`
	ExportDir    string        `yaml:"export_dir"`
	Log          LogConfig     `yaml:"log"`

	// Source is the file the config was read from, empty when none was found.
	Source string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backend: BackendConfig{
			URL:               "http://localhost:5050",
			RequestsPerSecond: 5,
			Timeout:           30 * time.Second,
		},
		PollInterval: 2 * time.Second,
		ExportDir:    ".",
		Log:          LogConfig{Level: "info"},
	}
}

// DefaultPath is ~/.config/policypulse/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "policypulse", "config.yaml")
}

// Load resolves configuration. An explicit path must exist; the default
// location is optional.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	required := path != ""
	if !required {
		if env, ok := lookup(EnvConfig); ok && strings.TrimSpace(env) != "" {
			path = strings.TrimSpace(env)
			required = true
		} else {
			path = DefaultPath()
		}
	}
	if path != "" {
		found, err := cfg.readFile(path)
		if err != nil {
			return Config{}, err
		}
		if !found && required {
			return Config{}, fmt.Errorf("config file %s does not exist", path)
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	c.Source = path
	return true, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBackend); ok && v != "" {
		c.Backend.URL = v
	}
	if v, ok := lookup(EnvPollInterval); ok && v != "" {
		d, err := parseInterval(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPollInterval, err)
		}
		c.PollInterval = d
	}
	if v, ok := lookup(EnvExportDir); ok && v != "" {
		c.ExportDir = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	return nil
}

// parseInterval accepts a Go duration or a bare number of seconds.
func parseInterval(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Backend.URL) == "" {
		return errors.New("backend url is empty")
	}
	u, err := url.Parse(c.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend url %q must be an absolute http(s) url", c.Backend.URL)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend timeout must not be negative, got %s", c.Backend.Timeout)
	}
	if c.Backend.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second must not be negative, got %v", c.Backend.RequestsPerSecond)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses the configured log level.
func (c Config) Level() (log.Level, error) {
	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(c.Log.Level)))
	if err != nil {
		return log.InfoLevel, fmt.Errorf("log level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

// WriteDefault creates path with DefaultYAML. An existing file is left alone.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(DefaultYAML), 0o644)
}
