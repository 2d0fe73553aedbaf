// Package batch buffers canonical records of one table and flushes them to a
// destination sink in bounded-size bulk statements.
package batch

import (
	"context"
	"time"

	"github.com/okian/filmport/internal/domain/record"
	"github.com/okian/filmport/internal/domain/schema"
	"github.com/okian/filmport/internal/domain/types"
	"github.com/okian/filmport/pkg/logger"
	"github.com/okian/filmport/pkg/metrics"
)

// DefaultSize is the number of records sent per bulk statement.
const DefaultSize = 100

// Sink receives one bulk statement worth of positional rows for a table.
// It returns the number of rows the destination actually inserted; rows
// skipped under insert-or-ignore are not counted. rows is reused after
// InsertBatch returns.
type Sink interface {
	InsertBatch(ctx context.Context, table *schema.Table, rows [][]any) (int64, error)
}

// Encoder renders a canonical record as positional values in registry field order.
type Encoder interface {
	Encode(rec record.Record) ([]any, error)
}

// Stats summarizes what a Writer sent.
type Stats struct {
	Rows     int64 // records accepted by Add
	Flushed  int64 // rows the destination accepted a statement for
	Inserted int64 // rows the destination reported inserted
	Batches  int   // flushes issued
}

// Skipped is the number of flushed rows ignored as duplicates. Rows still
// buffered are not counted.
func (s Stats) Skipped() int64 { return s.Flushed - s.Inserted }

// Writer accumulates records of one table and flushes them through a Sink.
// A Writer is not safe for concurrent use; one Writer serves one table.
type Writer struct {
	table   *schema.Table
	sink    Sink
	encoder Encoder
	size    int
	logger  logger.Logger

	buf   [][]any
	stats Stats
}

// New returns a Writer for table.
func New(table *schema.Table, sink Sink, encoder Encoder, opts ...Option) *Writer {
	w := &Writer{
		table:   table,
		sink:    sink,
		encoder: encoder,
		size:    DefaultSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named("batch")
	}
	w.buf = make([][]any, 0, w.size)
	return w
}

// Add buffers rec and flushes when the buffer reaches the batch size.
func (w *Writer) Add(ctx context.Context, rec record.Record) error {
	vals, err := w.encoder.Encode(rec)
	if err != nil {
		return &types.MalformedValue{Table: w.table.Name, Field: w.table.Identity, Raw: rec.ID, ID: rec.ID.String(), Cause: err}
	}
	w.buf = append(w.buf, vals)
	w.stats.Rows++
	if len(w.buf) >= w.size {
		return w.Flush(ctx)
	}
	return nil
}

// Flush sends any buffered records as one bulk statement. An empty buffer
// issues nothing. A rejected flush is reported as WriteFailed carrying the
// 1-based row range of the batch and is not retried.
func (w *Writer) Flush(ctx context.Context) error {
	if len(w.buf) == 0 {
		return nil
	}
	rng := types.RowRange{From: w.stats.Flushed + 1, To: w.stats.Flushed + int64(len(w.buf)) + 1}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	inserted, err := w.sink.InsertBatch(ctx, w.table, w.buf)
	if err != nil {
		return &types.WriteFailed{Table: w.table.Name, Range: rng, Cause: err}
	}
	metrics.RecordFlush(w.table.Name, int64(len(w.buf)), inserted, float64(time.Since(start).Milliseconds()))

	w.stats.Batches++
	w.stats.Inserted += inserted
	w.stats.Flushed = rng.To - 1
	w.logger.Debug(ctx, "batch flushed",
		logger.String("table", w.table.Name),
		logger.Int64("from", rng.From),
		logger.Int64("to", rng.To),
		logger.Int64("inserted", inserted),
	)
	w.buf = w.buf[:0]
	return nil
}

// Close flushes the remainder and returns the final statistics.
func (w *Writer) Close(ctx context.Context) (Stats, error) {
	err := w.Flush(ctx)
	return w.stats, err
}

// Stats returns the statistics so far.
func (w *Writer) Stats() Stats { return w.stats }
