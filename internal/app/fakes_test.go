package app_test

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"

	"github.com/okian/filmport/internal/adapters/repository"
	"github.com/okian/filmport/internal/app"
	"github.com/okian/filmport/internal/domain/schema"
	"github.com/okian/filmport/internal/domain/types"
)

const (
	ts = "2021-06-16 20:14:09.221838+00"

	g1  = "120a21cf-9097-479e-904a-13dd7198c1dd"
	g2  = "b92ef010-5e4c-4fd0-99d6-41b6456272cd"
	f1  = "3d825f60-9fff-4dfe-b294-1a45fa1e115d"
	f2  = "0312ed51-8833-413f-bff5-0e139c11264a"
	p1  = "26e83050-29ef-4163-a99d-b546cac208f8"
	j1  = "5f3c1a8e-2b7d-4c1e-9a0f-6d2e8b4c7a13"
	pf1 = "9b0c1d2e-3f40-4a5b-8c6d-7e8f90a1b2c3"
)

type row = map[string]any

func genreRow(id, name string) row {
	return row{"id": id, "name": name, "description": nil, "created_at": ts, "updated_at": ts}
}

func personRow(id, name string) row {
	return row{"id": id, "full_name": name, "created_at": ts, "updated_at": ts}
}

func filmRow(id, title, kind string, rating any) row {
	return row{
		"id": id, "title": title, "description": nil, "creation_date": nil, "file_path": nil,
		"rating": rating, "type": kind, "created_at": ts, "updated_at": ts,
	}
}

func genreFilmRow(id, film, genre string) row {
	return row{"id": id, "film_work_id": film, "genre_id": genre, "created_at": ts}
}

func personFilmRow(id, film, person, role string) row {
	return row{"id": id, "film_work_id": film, "person_id": person, "role": role, "created_at": ts}
}

// fakeSource is an in-memory SourceStore. A table listed in order but absent
// from tables fails its scan like a dropped table would.
type fakeSource struct {
	order      []string
	tables     map[string][]row
	failTables map[string]error
	closed     int
}

// scenarioSource is one genre, one film and the join row between them, with
// the person tables present but empty.
func scenarioSource() *fakeSource {
	return &fakeSource{
		order: []string{schema.TableGenre, schema.TablePerson, schema.TableFilmwork,
			schema.TableGenreFilmwork, schema.TablePersonFilmwork},
		tables: map[string][]row{
			schema.TableGenre:          {genreRow(g1, "Drama")},
			schema.TablePerson:         {},
			schema.TableFilmwork:       {filmRow(f1, "X", "movie", 7.5)},
			schema.TableGenreFilmwork:  {genreFilmRow(j1, f1, g1)},
			schema.TablePersonFilmwork: {},
		},
	}
}

// fullSource has rows in every table.
func fullSource() *fakeSource {
	src := scenarioSource()
	src.tables[schema.TableGenre] = append(src.tables[schema.TableGenre], genreRow(g2, "Comedy"))
	src.tables[schema.TablePerson] = []row{personRow(p1, "Mark Hamill")}
	src.tables[schema.TablePersonFilmwork] = []row{personFilmRow(pf1, f1, p1, "actor")}
	return src
}

func (s *fakeSource) Tables(context.Context) ([]string, error) {
	return slices.Clone(s.order), nil
}

func (s *fakeSource) Rows(_ context.Context, table string) iter.Seq2[map[string]any, error] {
	return func(yield func(map[string]any, error) bool) {
		rows, ok := s.tables[table]
		if !ok {
			yield(nil, &types.SourceQueryFailed{Table: table, Cause: errors.New("no such table: " + table)})
			return
		}
		for _, r := range rows {
			if !yield(maps.Clone(r), nil) {
				return
			}
		}
		if err := s.failTables[table]; err != nil {
			yield(nil, &types.SourceQueryFailed{Table: table, Cause: err})
		}
	}
}

func (s *fakeSource) Close() error {
	s.closed++
	return nil
}

// fakeDest is an in-memory destination with nested savepoints, a single
// commit, insert-or-ignore on identity and unique keys, and foreign keys.
type fakeDest struct {
	committed  map[string][][]any
	inserts    []string
	batchSizes map[string][]int
	failInsert map[string]error
	commits    int
	closed     int
}

func newFakeDest() *fakeDest {
	return &fakeDest{
		committed:  map[string][][]any{},
		batchSizes: map[string][]int{},
		failInsert: map[string]error{},
	}
}

func (d *fakeDest) Begin(context.Context) (repository.Tx, error) {
	return &fakeTx{dest: d, state: cloneState(d.committed)}, nil
}

func (d *fakeDest) Rows(_ context.Context, table *schema.Table) iter.Seq2[repository.Row, error] {
	return func(yield func(repository.Row, error) bool) {
		cols := table.Columns(types.SideDestination)
		for _, vals := range d.committed[table.Name] {
			r := make(repository.Row, len(cols))
			for i, c := range cols {
				r[c] = vals[i]
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

func (d *fakeDest) Close(context.Context) error {
	d.closed++
	return nil
}

func (d *fakeDest) count(table string) int { return len(d.committed[table]) }

func cloneState(s map[string][][]any) map[string][][]any {
	out := make(map[string][][]any, len(s))
	for k, rows := range s {
		cp := make([][]any, len(rows))
		for i, r := range rows {
			cp[i] = slices.Clone(r)
		}
		out[k] = cp
	}
	return out
}

type fakeTx struct {
	dest   *fakeDest
	parent *fakeTx
	state  map[string][][]any
	done   bool
}

func (t *fakeTx) Savepoint(context.Context) (repository.Tx, error) {
	return &fakeTx{dest: t.dest, parent: t, state: cloneState(t.state)}, nil
}

func (t *fakeTx) Commit(context.Context) error {
	if t.done {
		return &types.TransactionFailed{Op: "commit", Cause: errors.New("transaction already closed")}
	}
	t.done = true
	if t.parent != nil {
		t.parent.state = t.state
		return nil
	}
	t.dest.committed = t.state
	t.dest.commits++
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.done = true
	return nil
}

func (t *fakeTx) InsertBatch(_ context.Context, table *schema.Table, rows [][]any) (int64, error) {
	d := t.dest
	d.inserts = append(d.inserts, table.Name)
	d.batchSizes[table.Name] = append(d.batchSizes[table.Name], len(rows))
	if err := d.failInsert[table.Name]; err != nil {
		return 0, err
	}

	existing := t.state[table.Name]
	var added [][]any
	for _, r := range rows {
		for i, f := range table.Fields {
			if f.References != "" && !t.hasID(f.References, r[i]) {
				return 0, fmt.Errorf("insert on table %q violates foreign key constraint on %s", table.Name, f.Name)
			}
		}
		if conflicts(table, existing, r) || conflicts(table, added, r) {
			continue
		}
		added = append(added, slices.Clone(r))
	}
	t.state[table.Name] = append(slices.Clone(existing), added...)
	return int64(len(added)), nil
}

func (t *fakeTx) hasID(table string, id any) bool {
	for _, r := range t.state[table] {
		if r[0] == id {
			return true
		}
	}
	return false
}

func conflicts(table *schema.Table, rows [][]any, r []any) bool {
	idx := table.FieldIndex(table.Identity)
	for _, have := range rows {
		if have[idx] == r[idx] {
			return true
		}
		for _, key := range table.Unique {
			same := true
			for _, name := range key {
				i := table.FieldIndex(name)
				if have[i] != r[i] {
					same = false
					break
				}
			}
			if same {
				return true
			}
		}
	}
	return false
}

func withStores(src *fakeSource, dst *fakeDest, opts ...app.Option) []app.Option {
	return append([]app.Option{
		app.WithSourceOpener(func(context.Context) (app.SourceStore, error) { return src, nil }),
		app.WithDestinationOpener(func(context.Context) (repository.Store, error) { return dst, nil }),
		app.WithWorkerCount(3),
		app.WithQueueSize(4),
	}, opts...)
}
