package repository

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/okian/filmport/internal/domain/schema"
	"github.com/okian/filmport/pkg/logger"
)

// integrationConfig reads a throwaway database from FILMPORT_TEST_PG_* and
// skips the test when none is configured.
func integrationConfig(t *testing.T) Config {
	t.Helper()
	db := os.Getenv("FILMPORT_TEST_PG_DBNAME")
	if db == "" {
		t.Skip("FILMPORT_TEST_PG_DBNAME not set")
	}
	port, _ := strconv.Atoi(os.Getenv("FILMPORT_TEST_PG_PORT"))
	if port == 0 {
		port = 5432
	}
	host := os.Getenv("FILMPORT_TEST_PG_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	return Config{
		Host:           host,
		Port:           port,
		DBName:         db,
		User:           os.Getenv("FILMPORT_TEST_PG_USER"),
		Password:       os.Getenv("FILMPORT_TEST_PG_PASSWORD"),
		Schema:         "filmport_it",
		SSLMode:        "disable",
		ConnectTimeout: 5 * time.Second,
	}
}

func TestPostgresStoreIntegration(t *testing.T) {
	cfg := integrationConfig(t)
	_ = logger.Init()
	ctx := context.Background()

	store, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close(ctx)

	for _, stmt := range []string{
		`DROP SCHEMA IF EXISTS filmport_it CASCADE`,
		`CREATE SCHEMA filmport_it`,
		`CREATE TABLE filmport_it.genre (id uuid PRIMARY KEY, name text NOT NULL UNIQUE,
			description text, created timestamptz, modified timestamptz)`,
	} {
		if _, err := store.conn.Exec(ctx, stmt); err != nil {
			t.Fatalf("prepare %q: %v", stmt, err)
		}
	}
	defer store.conn.Exec(ctx, `DROP SCHEMA IF EXISTS filmport_it CASCADE`) //nolint:errcheck

	tbl, _ := schema.Movies().Lookup(schema.TableGenre)
	now := time.Now().UTC().Truncate(time.Microsecond)
	rows := [][]any{
		{uuid.NewString(), "Drama", nil, now, now},
		{uuid.NewString(), "Comedy", "funny", now, now},
	}

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	n, err := tx.InsertBatch(ctx, tbl, rows)
	if err != nil || n != 2 {
		t.Fatalf("first insert: %d, %v", n, err)
	}
	n, err = tx.InsertBatch(ctx, tbl, rows)
	if err != nil || n != 0 {
		t.Fatalf("repeated insert should be ignored: %d, %v", n, err)
	}

	sp, err := tx.Savepoint(ctx)
	if err != nil {
		t.Fatalf("savepoint: %v", err)
	}
	if _, err := sp.InsertBatch(ctx, tbl, [][]any{{uuid.NewString(), "Horror", nil, now, now}}); err != nil {
		t.Fatalf("insert in savepoint: %v", err)
	}
	if err := sp.Rollback(ctx); err != nil {
		t.Fatalf("rollback savepoint: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	count := 0
	for row, err := range store.Rows(ctx, tbl) {
		if err != nil {
			t.Fatalf("read back: %v", err)
		}
		if row["name"] == "Horror" {
			t.Errorf("rolled back row is visible")
		}
		count++
	}
	if count != 2 {
		t.Errorf("expected 2 rows, got %d", count)
	}
}
