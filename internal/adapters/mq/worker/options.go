package worker

import (
	"github.com/okian/filmport/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithQueueSize sets how many raw rows may wait for a worker.
func WithQueueSize(size int) Option {
	return func(p *Pool) {
		if size > 0 {
			p.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the pool.
func WithLogger(logger logger.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}
