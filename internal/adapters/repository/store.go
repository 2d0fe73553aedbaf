// Package repository defines the destination store interface and its
// PostgreSQL implementation.
package repository

import (
	"context"
	"iter"

	"github.com/okian/filmport/internal/domain/schema"
)

// Row is an unordered mapping of destination column name to driver-native value.
type Row = map[string]any

// Store provides transactional write access and read-back of the destination tables.
type Store interface {
	// Begin opens the run transaction.
	Begin(ctx context.Context) (Tx, error)

	// Rows streams every row of table using the destination column names of
	// the registry, in registry field order.
	Rows(ctx context.Context, table *schema.Table) iter.Seq2[Row, error]

	// Close releases the connection. It is safe to call more than once.
	Close(ctx context.Context) error
}

// Tx is a destination transaction or a savepoint nested inside one.
type Tx interface {
	// InsertBatch writes rows with insert-or-ignore semantics and returns how
	// many were inserted. Values are positional in registry field order.
	InsertBatch(ctx context.Context, table *schema.Table, rows [][]any) (int64, error)

	// Savepoint opens a nested transaction that can be rolled back alone.
	Savepoint(ctx context.Context) (Tx, error)

	// Commit commits the transaction or releases the savepoint.
	Commit(ctx context.Context) error

	// Rollback aborts the transaction or rolls back to the savepoint.
	// Rolling back an already finished transaction is a no-op.
	Rollback(ctx context.Context) error
}
