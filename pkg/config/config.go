// Package config handles configuration for webfind.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/webfind/pkg/core"
	"github.com/devicelab-dev/webfind/pkg/element"
)

// Config represents the workspace configuration (config.yaml).
type Config struct {
	// Page selection
	Pages []string `yaml:"pages"` // Glob patterns for page-object files

	Engine    EngineConfig    `yaml:"engine"`
	WebDriver WebDriverConfig `yaml:"webdriver"`

	// Variables available to ${...} expressions in page files
	Env map[string]string `yaml:"env"`
}

// EngineConfig holds the locator engine tunables. Pointer fields
// distinguish "not set" from an explicit zero.
type EngineConfig struct {
	FindTimeoutMs       int   `yaml:"findTimeoutMs"`
	PollIntervalMs      int   `yaml:"pollIntervalMs"`
	TextRetries         *int  `yaml:"textRetries"` // 0 retries until cancelled
	TextRetryIntervalMs int   `yaml:"textRetryIntervalMs"`
	StabilityDelayMs    int   `yaml:"stabilityDelayMs"`
	Caching             *bool `yaml:"caching"`
}

// WebDriverConfig describes the remote endpoint.
type WebDriverConfig struct {
	URL              string                 `yaml:"url"`
	Capabilities     map[string]interface{} `yaml:"capabilities"`
	RequestTimeoutMs int                    `yaml:"requestTimeoutMs"`
	Workers          int                    `yaml:"workers"` // parallel sessions for page runs
}

// Defaults returns the configuration used when no file is present.
func Defaults() *Config {
	d := element.DefaultSettings()
	retries := d.TextRetries
	caching := d.CachingEnabled
	return &Config{
		Engine: EngineConfig{
			FindTimeoutMs:       int(d.FindTimeout.Milliseconds()),
			PollIntervalMs:      int(d.PollInterval.Milliseconds()),
			TextRetries:         &retries,
			TextRetryIntervalMs: int(d.TextRetryInterval.Milliseconds()),
			StabilityDelayMs:    int(d.StabilityDelay.Milliseconds()),
			Caching:             &caching,
		},
		WebDriver: WebDriverConfig{
			URL:              "http://localhost:4444",
			RequestTimeoutMs: 30000,
			Workers:          1,
		},
		Env: map[string]string{},
	}
}

// Load loads configuration from a file. Unset fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read config"), "path", path)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse config"), "path", path)
	}
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, zerr.With(err, "path", path)
	}
	return cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try config.yaml first
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try config.yml
	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return defaults
	return Defaults(), nil
}

// fillDefaults restores defaults a file explicitly nulled out.
func (c *Config) fillDefaults() {
	d := Defaults()
	if c.Engine.TextRetries == nil {
		c.Engine.TextRetries = d.Engine.TextRetries
	}
	if c.Engine.Caching == nil {
		c.Engine.Caching = d.Engine.Caching
	}
	if c.Env == nil {
		c.Env = map[string]string{}
	}
	if c.WebDriver.Workers == 0 {
		c.WebDriver.Workers = 1
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	e := c.Engine
	checks := []struct {
		field string
		value int
		min   int
	}{
		{"engine.findTimeoutMs", e.FindTimeoutMs, 0},
		{"engine.pollIntervalMs", e.PollIntervalMs, 1},
		{"engine.textRetryIntervalMs", e.TextRetryIntervalMs, 0},
		{"engine.stabilityDelayMs", e.StabilityDelayMs, 1},
		{"webdriver.requestTimeoutMs", c.WebDriver.RequestTimeoutMs, 0},
		{"webdriver.workers", c.WebDriver.Workers, 1},
	}
	for _, chk := range checks {
		if chk.value < chk.min {
			return invalid(chk.field, fmt.Sprintf("must be >= %d, got %d", chk.min, chk.value))
		}
	}
	if e.TextRetries != nil && *e.TextRetries < 0 {
		return invalid("engine.textRetries", fmt.Sprintf("must be >= 0, got %d", *e.TextRetries))
	}
	if c.WebDriver.URL == "" {
		return core.ErrMissingRequired.
			WithMessage("webdriver.url is required").
			WithDetails(map[string]interface{}{"field": "webdriver.url"})
	}
	return nil
}

func invalid(field, msg string) error {
	return core.ErrInvalidConfig.
		WithMessage(field + " " + msg).
		WithDetails(map[string]interface{}{"field": field})
}

// Settings converts the engine section to session settings.
func (c *Config) Settings() element.Settings {
	s := element.DefaultSettings()
	e := c.Engine
	s.FindTimeout = ms(e.FindTimeoutMs)
	if e.PollIntervalMs > 0 {
		s.PollInterval = ms(e.PollIntervalMs)
	}
	if e.TextRetries != nil {
		s.TextRetries = *e.TextRetries
	}
	s.TextRetryInterval = ms(e.TextRetryIntervalMs)
	if e.StabilityDelayMs > 0 {
		s.StabilityDelay = ms(e.StabilityDelayMs)
	}
	if e.Caching != nil {
		s.CachingEnabled = *e.Caching
	}
	return s
}

// RequestTimeout returns the per-request WebDriver timeout.
func (c *Config) RequestTimeout() time.Duration {
	return ms(c.WebDriver.RequestTimeoutMs)
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
