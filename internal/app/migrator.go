package app

import (
	"context"
	"errors"
	"time"

	"github.com/okian/filmport/internal/adapters/mq/worker"
	"github.com/okian/filmport/internal/adapters/repository"
	"github.com/okian/filmport/internal/domain/batch"
	"github.com/okian/filmport/internal/domain/record"
	"github.com/okian/filmport/internal/domain/schema"
	"github.com/okian/filmport/internal/domain/transcode"
	"github.com/okian/filmport/internal/domain/types"
	"github.com/okian/filmport/pkg/logger"
	"github.com/okian/filmport/pkg/metrics"
)

// TableStatus is the outcome of one table within a run.
type TableStatus string

// Table outcomes.
const (
	StatusMigrated TableStatus = "migrated"
	StatusAborted  TableStatus = "aborted"
	StatusFailed   TableStatus = "failed"
)

// TableReport describes what happened to one table.
type TableReport struct {
	Table    string
	Status   TableStatus
	Records  int64
	Inserted int64
	Skipped  int64
	Batches  int
	Duration time.Duration
	Err      error
}

// Report describes one migration run.
type Report struct {
	Tables    []TableReport
	Committed bool
	Duration  time.Duration
}

// Table returns the report of the named table.
func (r *Report) Table(name string) (TableReport, bool) {
	for _, t := range r.Tables {
		if t.Table == name {
			return t, true
		}
	}
	return TableReport{}, false
}

// Migrator copies every registry table from the source to the destination
// inside one destination transaction.
type Migrator struct {
	settings
	transcoder *transcode.Transcoder
	pool       *worker.Pool
}

// NewMigrator constructs a Migrator over registry.
func NewMigrator(registry *schema.Registry, opts ...Option) *Migrator {
	s := newSettings(registry, "migrator", opts)
	return &Migrator{
		settings:   s,
		transcoder: transcode.New(registry),
		pool: worker.NewPool(s.workerCount,
			worker.WithQueueSize(s.queueSize),
			worker.WithLogger(s.logger.Named("worker-pool")),
		),
	}
}

// Run performs one migration. Tables are processed in registry order, each
// inside its own savepoint, and the destination commits once at the end.
//
// A malformed row or failed source scan aborts only its table: the savepoint
// is rolled back, the error is logged and the run continues. When the run
// commits with aborted tables the returned error matches ErrPartialMigration
// and wraps every table error. Connection, write and transaction failures
// and cancellation are fatal: nothing is committed. Both stores are closed
// on every path.
func (m *Migrator) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{}
	defer func() { report.Duration = time.Since(start) }()

	if m.openSource == nil {
		return report, ErrNoSource
	}
	if m.openDest == nil {
		return report, ErrNoDestination
	}

	m.logger.Info(ctx, "migration started",
		logger.Any("tables", m.registry.Names()),
		logger.Int("workers", m.pool.Workers()),
		logger.Int("batch_size", m.batchSize),
	)

	src, err := m.openSource(ctx)
	if err != nil {
		return report, err
	}
	defer m.closeSource(ctx, src)

	dst, err := m.openDest(ctx)
	if err != nil {
		return report, err
	}
	defer m.closeDestination(ctx, dst)

	listed, err := src.Tables(ctx)
	if err != nil {
		return report, err
	}
	present := make(map[string]bool, len(listed))
	var tableErrs []error
	for _, name := range listed {
		present[name] = true
		if _, err := m.registry.Lookup(name); err != nil {
			m.logger.Warn(ctx, "source table has no registry entry", logger.String("table", name), logger.Error(err))
			report.Tables = append(report.Tables, TableReport{Table: name, Status: StatusFailed, Err: err})
			tableErrs = append(tableErrs, err)
		}
	}

	tx, err := dst.Begin(ctx)
	if err != nil {
		return report, err
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil {
			m.logger.Error(ctx, "rollback failed", logger.Error(err))
		}
	}()

	for _, tbl := range m.registry.Order() {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if !present[tbl.Name] {
			err := &types.SourceQueryFailed{Table: tbl.Name, Cause: ErrTableMissing}
			m.logger.Warn(ctx, "table skipped", logger.String("table", tbl.Name), logger.Error(err))
			report.Tables = append(report.Tables, TableReport{Table: tbl.Name, Status: StatusFailed, Err: err})
			tableErrs = append(tableErrs, err)
			continue
		}

		tr, err := m.migrateTable(ctx, tx, src, tbl)
		report.Tables = append(report.Tables, tr)
		if err == nil {
			continue
		}
		if isFatal(err) {
			m.logger.Error(ctx, "migration aborted", logger.String("table", tbl.Name), logger.Error(err))
			return report, err
		}
		tableErrs = append(tableErrs, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return report, err
	}
	committed = true
	report.Committed = true

	if len(tableErrs) > 0 {
		m.logger.Warn(ctx, "migration committed with failed tables", logger.Int("failed", len(tableErrs)))
		return report, errors.Join(append([]error{ErrPartialMigration}, tableErrs...)...)
	}
	m.logger.Info(ctx, "migration committed",
		logger.Int("tables", len(report.Tables)),
		logger.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

func (m *Migrator) migrateTable(ctx context.Context, tx repository.Tx, src SourceStore, tbl *schema.Table) (TableReport, error) {
	start := time.Now()
	tr := TableReport{Table: tbl.Name}
	m.logger.Info(ctx, "migrating table", logger.String("table", tbl.Name))

	sp, err := tx.Savepoint(ctx)
	if err != nil {
		tr.Status, tr.Err = StatusFailed, err
		return tr, err
	}

	w := batch.New(tbl, sp, m.transcoder,
		batch.WithSize(m.batchSize),
		batch.WithLogger(m.logger.Named("batch")),
	)
	decode := func(raw worker.Row) (record.Record, error) {
		return m.transcoder.Decode(tbl.Name, types.SideSource, raw)
	}
	err = m.pool.Run(ctx, tbl.Name, src.Rows(ctx, tbl.Name), decode, func(rec record.Record) error {
		return w.Add(ctx, rec)
	})
	var stats batch.Stats
	if err == nil {
		stats, err = w.Close(ctx)
	} else {
		stats = w.Stats()
	}

	tr.Records, tr.Inserted, tr.Skipped, tr.Batches = stats.Rows, stats.Inserted, stats.Skipped(), stats.Batches
	tr.Duration = time.Since(start)

	if err != nil {
		// The savepoint is rolled back, so nothing of this table remains.
		tr.Inserted, tr.Skipped = 0, 0
		tr.Err = err
		tr.Status = StatusAborted
		if isFatal(err) {
			tr.Status = StatusFailed
		}
		metrics.RecordTableDuration(tbl.Name, string(tr.Status), tr.Duration.Seconds())
		if rbErr := sp.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			return tr, errors.Join(err, rbErr)
		}
		if !isFatal(err) {
			m.logger.Warn(ctx, "table aborted", logger.String("table", tbl.Name), logger.Error(err))
		}
		return tr, err
	}

	if err := sp.Commit(ctx); err != nil {
		tr.Status, tr.Err = StatusFailed, err
		return tr, err
	}
	tr.Status = StatusMigrated
	metrics.RecordTableDuration(tbl.Name, string(tr.Status), tr.Duration.Seconds())
	m.logger.Info(ctx, "table migrated",
		logger.String("table", tbl.Name),
		logger.Int64("records", tr.Records),
		logger.Int64("inserted", tr.Inserted),
		logger.Int64("skipped", tr.Skipped),
		logger.Int("batches", tr.Batches),
		logger.Duration("elapsed", tr.Duration),
	)
	return tr, nil
}

func (s *settings) closeSource(ctx context.Context, src SourceStore) {
	if err := src.Close(); err != nil {
		s.logger.Warn(ctx, "closing source failed", logger.Error(err))
	}
}

func (s *settings) closeDestination(ctx context.Context, dst repository.Store) {
	if err := dst.Close(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn(ctx, "closing destination failed", logger.Error(err))
	}
}

// isFatal reports whether err must abort the whole run.
func isFatal(err error) bool {
	return types.IsRunFatal(err) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
