package source_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/okian/filmport/internal/adapters/source"
	"github.com/okian/filmport/internal/domain/types"
	"github.com/okian/filmport/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	os.Exit(m.Run())
}

func seed(t *testing.T, stmts ...string) string {
	t.Helper()
	return seedNamed(t, "db.sqlite", stmts...)
}

func seedNamed(t *testing.T, name string, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open seed db: %v", err)
	}
	defer db.Close()
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("seed %q: %v", s, err)
		}
	}
	return path
}

func TestReader(t *testing.T) {
	Convey("Given a SQLite database with two tables", t, func() {
		path := seed(t,
			`CREATE TABLE genre (id TEXT PRIMARY KEY, name TEXT NOT NULL, description TEXT,
				created_at timestamp with time zone, updated_at timestamp with time zone)`,
			`CREATE TABLE person (id TEXT PRIMARY KEY, full_name TEXT NOT NULL,
				created_at timestamp with time zone, updated_at timestamp with time zone)`,
			`INSERT INTO genre VALUES ('120a21cf-9097-479e-904a-13dd7198c1dd', 'Drama', NULL,
				'2021-06-16 20:14:09.221838+00', '2021-06-16 20:14:09.221855+00')`,
			`INSERT INTO genre VALUES ('b92ef010-5e4c-4fd0-99d6-41b6456272cd', 'Comedy', 'funny',
				'2021-06-16 20:14:09.221838+00', '2021-06-16 20:14:09.221855+00')`,
		)
		ctx := context.Background()

		r, err := source.Open(ctx, path)
		So(err, ShouldBeNil)
		defer r.Close()

		Convey("When listing tables", func() {
			names, err := r.Tables(ctx)

			Convey("Then user tables are returned", func() {
				So(err, ShouldBeNil)
				So(names, ShouldContain, "genre")
				So(names, ShouldContain, "person")
				So(len(names), ShouldEqual, 2)
			})
		})

		Convey("When streaming genre rows", func() {
			var rows []source.Row
			for row, err := range r.Rows(ctx, "genre") {
				So(err, ShouldBeNil)
				rows = append(rows, row)
			}

			Convey("Then every row is yielded as a column map", func() {
				So(len(rows), ShouldEqual, 2)
				So(rows[0]["name"], ShouldNotBeNil)
				So(rows[0], ShouldContainKey, "created_at")
				So(rows[0]["description"], ShouldBeNil)
			})

			Convey("And the table can be re-read by ranging again", func() {
				n := 0
				for _, err := range r.Rows(ctx, "genre") {
					So(err, ShouldBeNil)
					n++
				}
				So(n, ShouldEqual, 2)
			})
		})

		Convey("When stopping early", func() {
			n := 0
			for range r.Rows(ctx, "genre") {
				n++
				break
			}
			So(n, ShouldEqual, 1)
		})

		Convey("When scanning a missing table", func() {
			var got error
			for _, err := range r.Rows(ctx, "film_work") {
				got = err
			}

			Convey("Then it yields SourceQueryFailed", func() {
				var sq *types.SourceQueryFailed
				So(errors.As(got, &sq), ShouldBeTrue)
				So(sq.Table, ShouldEqual, "film_work")
			})
		})

		Convey("When the reader is closed twice", func() {
			So(r.Close(), ShouldBeNil)
			So(r.Close(), ShouldBeNil)
		})
	})

	Convey("Given database files whose names carry URI metacharacters", t, func() {
		for _, name := range []string{"a%41.sqlite", "movies #1.sqlite"} {
			path := seedNamed(t, name,
				`CREATE TABLE person (id TEXT PRIMARY KEY, full_name TEXT NOT NULL)`,
				`INSERT INTO person VALUES ('9f8d2b7e-0c1a-4e5f-8a3b-6d4c2e1f0a9b', 'George Lucas')`,
			)

			r, err := source.Open(context.Background(), path)
			So(err, ShouldBeNil)

			n := 0
			for _, err := range r.Rows(context.Background(), "person") {
				So(err, ShouldBeNil)
				n++
			}
			So(n, ShouldEqual, 1)
			So(r.Close(), ShouldBeNil)
		}
	})

	Convey("Given a path with no database", t, func() {
		_, err := source.Open(context.Background(), filepath.Join(t.TempDir(), "missing.sqlite"))

		Convey("Then Open fails with a source ConnectionFailed", func() {
			var cf *types.ConnectionFailed
			So(errors.As(err, &cf), ShouldBeTrue)
			So(cf.Side, ShouldEqual, types.SideSource)
		})
	})
}
