// Package source reads raw rows from the SQLite store being migrated.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"net/url"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/okian/filmport/internal/domain/types"
	"github.com/okian/filmport/pkg/logger"
	"github.com/okian/filmport/pkg/metrics"
)

// Row is an unordered mapping of column name to driver-native value.
type Row = map[string]any

// Reader enumerates the tables of a SQLite database and streams their rows.
type Reader struct {
	db     *sql.DB
	path   string
	logger logger.Logger
}

// Open opens the SQLite database at path read-only and verifies it answers.
// Any failure is reported as ConnectionFailed on the source side.
func Open(ctx context.Context, path string, opts ...Option) (*Reader, error) {
	r := &Reader{path: path}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("source")
	}

	// sqlite would happily create an empty database for a missing file.
	if _, err := os.Stat(path); err != nil {
		return nil, &types.ConnectionFailed{Side: types.SideSource, Cause: err}
	}

	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, &types.ConnectionFailed{Side: types.SideSource, Cause: err}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &types.ConnectionFailed{Side: types.SideSource, Cause: err}
	}

	r.db = db
	r.logger.Debug(ctx, "source opened", logger.String("path", path))
	return r, nil
}

// dsn renders path as a read-only SQLite URI. The path is percent-escaped
// because SQLite decodes %XX and stops at '?' or '#' in the URI path.
func dsn(path string) string {
	q := url.Values{}
	q.Set("mode", "ro")
	q.Set("_busy_timeout", "5000")
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?" + q.Encode()
}

// Close releases the underlying connection. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// Tables lists user tables in the order SQLite reports them.
func (r *Reader) Tables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return nil, &types.ConnectionFailed{Side: types.SideSource, Cause: fmt.Errorf("list tables: %w", err)}
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &types.ConnectionFailed{Side: types.SideSource, Cause: fmt.Errorf("list tables: %w", err)}
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.ConnectionFailed{Side: types.SideSource, Cause: fmt.Errorf("list tables: %w", err)}
	}
	return names, nil
}

// Rows returns a lazy sequence over every row of table. The sequence issues
// its query when ranged over, so ranging again re-reads the table. A failing
// scan yields a SourceQueryFailed error and ends the sequence.
func (r *Reader) Rows(ctx context.Context, table string) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		fail := func(err error) {
			metrics.RecordRowRejected(table, "source_query")
			yield(nil, &types.SourceQueryFailed{Table: table, Cause: err})
		}

		rows, err := r.db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table))
		if err != nil {
			fail(err)
			return
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			fail(err)
			return
		}

		for rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				fail(err)
				return
			}
			row := make(Row, len(cols))
			for i, c := range cols {
				row[c] = vals[i]
			}
			metrics.RecordRowRead(table)
			if !yield(row, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			fail(err)
		}
	}
}

// quoteIdent renders name as a double-quoted SQLite identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
