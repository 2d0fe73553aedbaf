package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	logLevels  = []string{"debug", "info", "warn", "warning", "error"}
	logFormats = []string{"text", "json"}
	sslModes   = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}
)

// Validate checks every field and reports all problems together, wrapped in
// ErrInvalidConfig. widestTable is the largest column count of any migrated
// table; one batch of it must fit under MaxParameters.
func (c *Config) Validate(widestTable int) error {
	var errs []error
	required := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	oneOf := func(name, v string, allowed []string) {
		for _, a := range allowed {
			if strings.EqualFold(v, a) {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s %q must be one of %s", name, v, strings.Join(allowed, ", ")))
	}

	required("source_path", c.SourcePath)
	required("pg_host", c.PGHost)
	required("pg_dbname", c.PGDBName)
	required("pg_user", c.PGUser)
	required("pg_password", c.PGPassword)
	required("pg_schema", c.PGSchema)

	oneOf("log_level", c.LogLevel, logLevels)
	oneOf("log_format", c.LogFormat, logFormats)
	oneOf("pg_sslmode", c.PGSSLMode, sslModes)

	if c.PGPort < 1 || c.PGPort > 65535 {
		errs = append(errs, fmt.Errorf("pg_port %d out of range", c.PGPort))
	}
	if c.ConnectTimeoutMS < 1 {
		errs = append(errs, fmt.Errorf("connect_timeout_ms %d must be positive", c.ConnectTimeoutMS))
	}
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batch_size %d must be positive", c.BatchSize))
	} else if widestTable > 0 && c.BatchSize*widestTable > MaxParameters {
		errs = append(errs, fmt.Errorf("batch_size %d too large: at most %d for %d columns",
			c.BatchSize, MaxParameters/widestTable, widestTable))
	}
	if c.WorkerCount < 1 {
		errs = append(errs, fmt.Errorf("worker_count %d must be positive", c.WorkerCount))
	}
	if c.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("queue_size %d must be positive", c.QueueSize))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
