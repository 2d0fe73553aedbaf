// Package config defines process configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Validate before any store is opened; report every bad field at once.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
	"runtime"
	"time"
)

// MaxParameters is PostgreSQL's bind-parameter ceiling for one statement.
const MaxParameters = 65535

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// SourcePath is the SQLite database file to migrate from.
	SourcePath string `koanf:"source_path"`

	// Destination connection parameters.
	PGHost     string `koanf:"pg_host"`
	PGPort     int    `koanf:"pg_port"`
	PGDBName   string `koanf:"pg_dbname"`
	PGUser     string `koanf:"pg_user"`
	PGPassword string `koanf:"pg_password"`
	PGSchema   string `koanf:"pg_schema"`
	PGSSLMode  string `koanf:"pg_sslmode"`

	// ConnectTimeoutMS bounds opening either store.
	ConnectTimeoutMS int `koanf:"connect_timeout_ms"`

	// BatchSize is the number of records per bulk insert.
	BatchSize int `koanf:"batch_size"`

	// WorkerCount sets the number of transcoding workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the rows waiting for a worker.
	QueueSize int `koanf:"queue_size"`

	// MetricsAddr serves /metrics and /healthz when set, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`
}

// New creates a Config with defaults. Required fields are left empty.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		PGHost:           "127.0.0.1",
		PGPort:           5432,
		PGSchema:         "content",
		PGSSLMode:        "disable",
		ConnectTimeoutMS: 5000,
		BatchSize:        100,
		WorkerCount:      runtime.NumCPU(),
		QueueSize:        1000,
	}
}

// ConnectTimeout returns ConnectTimeoutMS as a duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMS) * time.Millisecond
}
