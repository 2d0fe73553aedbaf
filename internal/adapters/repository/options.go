package repository

import (
	"time"

	"github.com/okian/filmport/pkg/logger"
)

// Config holds the destination connection parameters.
type Config struct {
	Host           string
	Port           int
	DBName         string
	User           string
	Password       string
	Schema         string
	SSLMode        string
	ConnectTimeout time.Duration
}

// Option applies a configuration option to the PostgresStore.
type Option func(*PostgresStore)

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *PostgresStore) {
		if l != nil {
			s.logger = l
		}
	}
}
