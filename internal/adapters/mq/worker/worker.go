// Package worker runs the read-side transcoding of one table on a pool of
// goroutines feeding a single serialized sink.
package worker

import (
	"context"
	"errors"
	"iter"
	"runtime"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/okian/filmport/internal/adapters/mq/queue"
	"github.com/okian/filmport/internal/domain/record"
	"github.com/okian/filmport/internal/domain/types"
	"github.com/okian/filmport/pkg/logger"
	"github.com/okian/filmport/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultQueueSize = 1000
)

// Row is one raw source row.
type Row = map[string]any

// Decoder converts a raw row into a canonical record.
type Decoder func(raw Row) (record.Record, error)

// Sink consumes records in source order. It is never called concurrently.
type Sink func(rec record.Record) error

type result struct {
	seq int64
	rec record.Record
	err error
}

// Pool decodes rows of one table concurrently and hands the records to a
// sink in the order the rows were read.
type Pool struct {
	workers   int
	queueSize int
	logger    logger.Logger
}

// NewPool creates a new worker pool. A count below one uses one worker per CPU.
func NewPool(workerCount int, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers:   workerCount,
		queueSize: defaultQueueSize,
	}

	// Apply all options
	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = logger.Get().Named("worker-pool")
	}

	return p
}

// Workers returns the number of decoding goroutines.
func (p *Pool) Workers() int { return p.workers }

// Run streams rows through decode on the pool and passes each record to sink
// in source order. It stops at the first failure in source order: a decode
// error, a sink error or a source error. Cancelling ctx stops the run and
// returns the context error.
func (p *Pool) Run(ctx context.Context, table string, rows iter.Seq2[Row, error], decode Decoder, sink Sink) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := queue.NewInMemoryQueue(queue.WithCapacity(p.queueSize))
	results := make(chan result, p.queueSize)
	g, gctx := errgroup.WithContext(ctx)

	// Producer: the only writer to the queue, so it owns closing it.
	g.Go(func() error {
		defer q.Close() //nolint:errcheck
		var seq int64
		for row, err := range rows {
			if err != nil {
				return err
			}
			if err := q.Enqueue(gctx, queue.Job{Seq: seq, Row: row}); err != nil {
				return err
			}
			seq++
		}
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		name := "worker-" + strconv.Itoa(i)
		g.Go(func() error {
			defer wg.Done()
			p.work(gctx, name, table, q, decode, results)
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	consumeErr := p.consume(results, sink, cancel)
	runErr := g.Wait()
	metrics.UpdateQueueDepth(0)

	if consumeErr != nil {
		return consumeErr
	}
	if runErr != nil {
		return runErr
	}
	return ctx.Err()
}

func (p *Pool) work(ctx context.Context, name, table string, q queue.Queue, decode Decoder, out chan<- result) {
	metrics.AddWorkersActive(1)
	defer metrics.AddWorkersActive(-1)

	jobs := q.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			metrics.UpdateQueueDepth(q.Len())
			rec, err := decode(job.Row)
			if err != nil {
				metrics.RecordRowRejected(table, rejectReason(err))
				p.logger.Debug(ctx, "row rejected",
					logger.String("worker", name),
					logger.String("table", table),
					logger.Int64("seq", job.Seq),
					logger.Error(err),
				)
			} else {
				metrics.RecordRecordTranscoded(table)
			}
			select {
			case out <- result{seq: job.Seq, rec: rec, err: err}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// consume restores source order and feeds the sink. After the first failure
// it cancels the run and keeps draining so the workers can exit.
func (p *Pool) consume(results <-chan result, sink Sink, cancel context.CancelFunc) error {
	pending := make(map[int64]result)
	var (
		next int64
		err  error
	)
	for res := range results {
		if err != nil {
			continue
		}
		pending[res.seq] = res
		for {
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if r.err != nil {
				err = r.err
			} else {
				err = sink(r.rec)
			}
			if err != nil {
				cancel()
				break
			}
		}
	}
	return err
}

func rejectReason(err error) string {
	var (
		ts  *types.MalformedTimestamp
		en  *types.InvalidEnumValue
		rg  *types.OutOfRangeValue
		mv  *types.MalformedValue
		unk *types.UnknownTableKind
	)
	switch {
	case errors.As(err, &ts):
		return "malformed_timestamp"
	case errors.As(err, &en):
		return "invalid_enum"
	case errors.As(err, &rg):
		return "out_of_range"
	case errors.As(err, &mv):
		return "malformed_value"
	case errors.As(err, &unk):
		return "unknown_table"
	default:
		return "other"
	}
}
