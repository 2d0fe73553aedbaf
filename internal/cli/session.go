package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/filmport/internal/adapters/http/api"
	"github.com/okian/filmport/internal/adapters/repository"
	"github.com/okian/filmport/internal/adapters/source"
	"github.com/okian/filmport/internal/app"
	"github.com/okian/filmport/internal/config"
	"github.com/okian/filmport/internal/domain/schema"
	"github.com/okian/filmport/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// session is what every subcommand needs once configuration is settled.
type session struct {
	cfg      *config.Config
	registry *schema.Registry
	logger   logger.Logger
	server   *api.Server
}

// setup loads and validates configuration, initializes logging and starts
// the operational listener when one is configured. Nothing touches either
// store before Validate has passed.
func setup(ctx context.Context, cmd *cobra.Command, opts *RootOptions) (*session, error) {
	cfg, err := config.Load(ctx, opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	registry := schema.Movies()
	if err := cfg.Validate(registry.MaxFieldCount()); err != nil {
		return nil, err
	}

	if err := initLogging(cmd.ErrOrStderr(), cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	rt := &session{
		cfg:      cfg,
		registry: registry,
		logger:   logger.Get().Named(cmd.Name()),
	}

	if cfg.MetricsAddr != "" {
		srv := api.NewServer(cfg.MetricsAddr)
		if err := srv.Start(ctx); err != nil {
			return nil, fmt.Errorf("%w: metrics_addr: %w", config.ErrInvalidConfig, err)
		}
		rt.server = srv
	}
	return rt, nil
}

func initLogging(w io.Writer, cfg *config.Config) error {
	format, err := logger.ParseFormat(cfg.LogFormat)
	if err != nil {
		return err
	}
	if err := logger.InitWith(w, format); err != nil {
		return err
	}
	return logger.SetLevelString(cfg.LogLevel)
}

// phase reports progress on /healthz when the listener runs.
func (rt *session) phase(p string) {
	if rt.server != nil {
		rt.server.Health().SetPhase(p)
	}
}

// close stops the operational listener. The run context may already be
// cancelled, so shutdown gets its own deadline.
func (rt *session) close() {
	if rt.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rt.server.Shutdown(ctx); err != nil {
		rt.logger.Warn(ctx, "operational listener shutdown failed", logger.Error(err))
	}
}

// appOptions wires the configured stores and pipeline sizes into the app.
func (rt *session) appOptions() []app.Option {
	return []app.Option{
		app.WithSourceOpener(rt.openSource),
		app.WithDestinationOpener(rt.openDestination),
		app.WithBatchSize(rt.cfg.BatchSize),
		app.WithWorkerCount(rt.cfg.WorkerCount),
		app.WithQueueSize(rt.cfg.QueueSize),
	}
}

func (rt *session) openSource(ctx context.Context) (app.SourceStore, error) {
	ctx, cancel := context.WithTimeout(ctx, rt.cfg.ConnectTimeout())
	defer cancel()
	r, err := source.Open(ctx, rt.cfg.SourcePath, source.WithLogger(logger.Named("source")))
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (rt *session) openDestination(ctx context.Context) (repository.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, rt.cfg.ConnectTimeout())
	defer cancel()
	s, err := repository.Open(ctx, repository.Config{
		Host:           rt.cfg.PGHost,
		Port:           rt.cfg.PGPort,
		DBName:         rt.cfg.PGDBName,
		User:           rt.cfg.PGUser,
		Password:       rt.cfg.PGPassword,
		Schema:         rt.cfg.PGSchema,
		SSLMode:        rt.cfg.PGSSLMode,
		ConnectTimeout: rt.cfg.ConnectTimeout(),
	}, repository.WithLogger(logger.Named("repository")))
	if err != nil {
		return nil, err
	}
	return s, nil
}
