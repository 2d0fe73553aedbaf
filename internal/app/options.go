// Package app runs the migration and consistency verification of the movie
// catalogue from the SQLite store into PostgreSQL.
package app

import (
	"context"
	"iter"
	"runtime"

	"github.com/okian/filmport/internal/adapters/repository"
	"github.com/okian/filmport/internal/domain/batch"
	"github.com/okian/filmport/internal/domain/schema"
	"github.com/okian/filmport/pkg/logger"
)

// SourceStore is the read side of a run.
type SourceStore interface {
	Tables(ctx context.Context) ([]string, error)
	Rows(ctx context.Context, table string) iter.Seq2[map[string]any, error]
	Close() error
}

// SourceOpener opens the source store. Failures are ConnectionFailed.
type SourceOpener func(ctx context.Context) (SourceStore, error)

// DestinationOpener opens the destination store. Failures are ConnectionFailed.
type DestinationOpener func(ctx context.Context) (repository.Store, error)

// settings are shared by the Migrator and the Verifier.
type settings struct {
	registry    *schema.Registry
	openSource  SourceOpener
	openDest    DestinationOpener
	batchSize   int
	workerCount int
	queueSize   int
	logger      logger.Logger
}

func newSettings(registry *schema.Registry, name string, opts []Option) settings {
	s := settings{
		registry:    registry,
		batchSize:   batch.DefaultSize,
		workerCount: runtime.NumCPU(),
		queueSize:   1000,
	}

	// Apply all options
	for _, opt := range opts {
		opt(&s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named(name)
	}
	return s
}

// Option applies a configuration option to a Migrator or Verifier.
type Option func(*settings)

// WithSourceOpener sets how the source store is opened.
func WithSourceOpener(open SourceOpener) Option {
	return func(s *settings) {
		if open != nil {
			s.openSource = open
		}
	}
}

// WithDestinationOpener sets how the destination store is opened.
func WithDestinationOpener(open DestinationOpener) Option {
	return func(s *settings) {
		if open != nil {
			s.openDest = open
		}
	}
}

// WithBatchSize sets the number of records per bulk insert.
func WithBatchSize(size int) Option {
	return func(s *settings) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithWorkerCount sets the number of transcoding goroutines.
func WithWorkerCount(count int) Option {
	return func(s *settings) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets how many raw rows may wait for a transcoding worker.
func WithQueueSize(size int) Option {
	return func(s *settings) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger logger.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}
