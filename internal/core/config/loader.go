package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/relihub/internal/fallback"
	"github.com/vietddude/relihub/internal/monitor"
	"github.com/vietddude/relihub/internal/workitem"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied, for running
// without a config file.
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields.
func (c *AppConfig) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.ProjectID == "" {
		c.ProjectID = "default"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverMemory
	}
	c.Database.Driver = strings.ToLower(c.Database.Driver)

	if c.Updater.ReviewThreshold == 0 {
		c.Updater.ReviewThreshold = workitem.DefaultReviewThreshold
	}
	if c.Updater.CompleteThreshold == 0 {
		c.Updater.CompleteThreshold = workitem.DefaultCompleteThreshold
	}

	if c.Monitor.TimeoutThreshold == 0 {
		c.Monitor.TimeoutThreshold = monitor.DefaultTimeoutThreshold
	}
	if c.Monitor.RegistryTTL == 0 {
		c.Monitor.RegistryTTL = monitor.DefaultRegistryTTL
	}
	if c.Monitor.RegistryMaxEntries == 0 {
		c.Monitor.RegistryMaxEntries = monitor.DefaultRegistryMaxEntries
	}

	if c.Fallback.Queue.Name == "" {
		c.Fallback.Queue.Name = "fallback"
	}
	if c.Fallback.Queue.Timeout == 0 {
		c.Fallback.Queue.Timeout = fallback.DefaultQueueTimeout
	}
	if c.Fallback.API.Timeout == 0 {
		c.Fallback.API.Timeout = fallback.DefaultAPITimeout
	}
	if c.Fallback.Local.Timeout == 0 {
		c.Fallback.Local.Timeout = fallback.DefaultLocalTimeout
	}
	c.Tracing.ApplyDefaults()
}

// Validate rejects configurations that cannot be started.
func (c *AppConfig) Validate() error {
	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	// Thresholds may be raised but never lowered below the defaults.
	if c.Updater.ReviewThreshold < workitem.DefaultReviewThreshold {
		return fmt.Errorf("updater.review_threshold (%d) must be at least %d",
			c.Updater.ReviewThreshold, workitem.DefaultReviewThreshold)
	}
	if c.Updater.CompleteThreshold < workitem.DefaultCompleteThreshold {
		return fmt.Errorf("updater.complete_threshold (%d) must be at least %d",
			c.Updater.CompleteThreshold, workitem.DefaultCompleteThreshold)
	}
	if c.Updater.ReviewThreshold > c.Updater.CompleteThreshold {
		return fmt.Errorf("updater.review_threshold (%d) exceeds complete_threshold (%d)",
			c.Updater.ReviewThreshold, c.Updater.CompleteThreshold)
	}
	if c.Monitor.TimeoutThreshold < 0 {
		return fmt.Errorf("monitor.timeout_threshold must not be negative")
	}
	return c.Tracing.Validate()
}
