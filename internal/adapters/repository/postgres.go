package repository

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/okian/filmport/internal/domain/schema"
	"github.com/okian/filmport/internal/domain/types"
	"github.com/okian/filmport/pkg/logger"
)

// MaxParameters is PostgreSQL's limit on bind parameters in one statement.
const MaxParameters = 65535

// PostgresStore is a Store over a single pgx connection.
type PostgresStore struct {
	conn   *pgx.Conn
	schema string
	logger logger.Logger
}

// Open connects to the destination and verifies it answers. Any failure is
// reported as ConnectionFailed on the destination side.
func Open(ctx context.Context, cfg Config, opts ...Option) (*PostgresStore, error) {
	s := &PostgresStore{schema: cfg.Schema}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("repository")
	}

	pgCfg, err := pgx.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, &types.ConnectionFailed{Side: types.SideDestination, Cause: err}
	}
	conn, err := pgx.ConnectConfig(ctx, pgCfg)
	if err != nil {
		return nil, &types.ConnectionFailed{Side: types.SideDestination, Cause: err}
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, &types.ConnectionFailed{Side: types.SideDestination, Cause: err}
	}

	s.conn = conn
	s.logger.Debug(ctx, "destination opened",
		logger.String("host", cfg.Host),
		logger.String("dbname", cfg.DBName),
		logger.String("schema", cfg.Schema),
	)
	return s, nil
}

// ConnString renders cfg as a postgres URL. The password is escaped, never logged.
func ConnString(cfg Config) string {
	q := url.Values{}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	if cfg.ConnectTimeout > 0 {
		secs := int((cfg.ConnectTimeout + time.Second - 1) / time.Second)
		q.Set("connect_timeout", strconv.Itoa(secs))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Close releases the connection.
func (s *PostgresStore) Close(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close(ctx)
	s.conn = nil
	return err
}

// Begin opens the run transaction.
func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	if s.conn == nil {
		return nil, &types.TransactionFailed{Op: "begin", Cause: ErrClosed}
	}
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, &types.TransactionFailed{Op: "begin", Cause: err}
	}
	return &pgTx{tx: tx, schema: s.schema, logger: s.logger}, nil
}

// Rows streams table using an explicit destination column list.
func (s *PostgresStore) Rows(ctx context.Context, table *schema.Table) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		if s.conn == nil {
			yield(nil, ErrClosed)
			return
		}
		rows, err := s.conn.Query(ctx, SelectStatement(s.schema, table))
		if err != nil {
			yield(nil, fmt.Errorf("read %s: %w", table.Name, err))
			return
		}
		defer rows.Close()

		fields := rows.FieldDescriptions()
		for rows.Next() {
			vals, err := rows.Values()
			if err != nil {
				yield(nil, fmt.Errorf("read %s: %w", table.Name, err))
				return
			}
			row := make(Row, len(fields))
			for i, fd := range fields {
				row[fd.Name] = vals[i]
			}
			if !yield(row, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("read %s: %w", table.Name, err))
		}
	}
}

type pgTx struct {
	tx     pgx.Tx
	schema string
	depth  int
	logger logger.Logger
}

func (t *pgTx) Savepoint(ctx context.Context) (Tx, error) {
	nested, err := t.tx.Begin(ctx)
	if err != nil {
		return nil, &types.TransactionFailed{Op: "savepoint", Cause: err}
	}
	return &pgTx{tx: nested, schema: t.schema, depth: t.depth + 1, logger: t.logger}, nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		op := "commit"
		if t.depth > 0 {
			op = "release savepoint"
		}
		return &types.TransactionFailed{Op: op, Cause: err}
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err == nil || errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return &types.TransactionFailed{Op: "rollback", Cause: err}
}

func (t *pgTx) InsertBatch(ctx context.Context, table *schema.Table, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	cols := len(table.Fields)
	if len(rows)*cols > MaxParameters {
		return 0, fmt.Errorf("%w: %d rows x %d columns", ErrTooManyParameters, len(rows), cols)
	}
	args := make([]any, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return 0, fmt.Errorf("%w: row %d has %d values, want %d", ErrRowShape, i, len(r), cols)
		}
		args = append(args, r...)
	}

	tag, err := t.tx.Exec(ctx, InsertStatement(t.schema, table, len(rows)), args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			t.logger.Debug(ctx, "bulk insert rejected",
				logger.String("table", table.Name),
				logger.String("sqlstate", pgErr.Code),
				logger.String("constraint", pgErr.ConstraintName),
			)
		}
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InsertStatement builds a multi-row insert of n rows into schemaName.table
// with one positional placeholder per value. Rows violating any uniqueness
// constraint are skipped.
func InsertStatement(schemaName string, table *schema.Table, n int) string {
	cols := table.Columns(types.SideDestination)
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(qualified(schemaName, table.Name))
	b.WriteString(" (")
	writeIdents(&b, cols)
	b.WriteString(") VALUES ")
	p := 1
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range cols {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(p))
			p++
		}
		b.WriteByte(')')
	}
	b.WriteString(" ON CONFLICT DO NOTHING")
	return b.String()
}

// SelectStatement builds the read-back query for table.
func SelectStatement(schemaName string, table *schema.Table) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	writeIdents(&b, table.Columns(types.SideDestination))
	b.WriteString(" FROM ")
	b.WriteString(qualified(schemaName, table.Name))
	return b.String()
}

func qualified(schemaName, table string) string {
	if schemaName == "" {
		return pgx.Identifier{table}.Sanitize()
	}
	return pgx.Identifier{schemaName, table}.Sanitize()
}

func writeIdents(b *strings.Builder, cols []string) {
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgx.Identifier{c}.Sanitize())
	}
}
