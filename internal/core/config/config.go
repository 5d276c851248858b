package config

import (
	"time"

	"github.com/vietddude/relihub/internal/infra/executor"
	"github.com/vietddude/relihub/internal/infra/kafka"
	redisclient "github.com/vietddude/relihub/internal/infra/redis"
	"github.com/vietddude/relihub/internal/infra/tracing"
	"github.com/vietddude/relihub/internal/infra/storage/postgres"
	"github.com/vietddude/relihub/internal/workitem"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	ProjectID string             `yaml:"project_id"`
	Logging   LoggingConfig      `yaml:"logging"`
	Database  DatabaseConfig     `yaml:"database"`
	Redis     redisclient.Config `yaml:"redis"`
	Kafka     kafka.Config       `yaml:"kafka"`
	Tools     ToolsConfig        `yaml:"tools"`
	Updater   workitem.Config    `yaml:"updater"`
	Monitor   MonitorConfig      `yaml:"monitor"`
	Fallback  FallbackConfig     `yaml:"fallback"`
	Tracing   tracing.Config     `yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DatabaseConfig selects the storage backend. For sqlite, URL is a file path.
type DatabaseConfig struct {
	Driver          string `yaml:"driver"`
	postgres.Config `yaml:",inline"`
}

// ToolsConfig lists the tools whose output is inspected.
type ToolsConfig struct {
	Supported []string `yaml:"supported"`
}

// MonitorConfig holds task monitor settings.
type MonitorConfig struct {
	TimeoutThreshold   float64       `yaml:"timeout_threshold"` // seconds
	RegistryTTL        time.Duration `yaml:"registry_ttl"`
	RegistryMaxEntries int           `yaml:"registry_max_entries"`
	SweepInterval      time.Duration `yaml:"sweep_interval"`
}

// FallbackConfig holds the workflow mapping and the three execution tiers.
type FallbackConfig struct {
	Workflows map[string]string   `yaml:"workflows"`
	Queue     QueueConfig         `yaml:"queue"`
	API       executor.HTTPConfig `yaml:"api"`
	Local     executor.GRPCConfig `yaml:"local"`
}

// QueueConfig configures the direct job queue tier.
type QueueConfig struct {
	Name    string        `yaml:"name"`
	Timeout time.Duration `yaml:"timeout"`
}
