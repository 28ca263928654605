package sql

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/flatgraph/compiler/load"
	"github.com/syssam/flatgraph/dialect"
	"github.com/syssam/flatgraph/registry"
	"github.com/syssam/flatgraph/workspace"
)

var discard = slog.New(slog.DiscardHandler)

const energy = `
name: energy
file: idf
types:
  - name: Meter
    fields:
      - {name: Key Name, kind: string, required: true}
      - {name: Reporting Frequency, kind: string}
  - name: BranchList
    fields:
      - {name: Name, kind: string, required: true}
    extensible:
      fields:
        - {name: Branch Name, kind: string}
`

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	s, err := load.Parse([]byte(energy))
	require.NoError(t, err)
	return registry.MustBuild([]*load.Source{s})
}

func sample(t *testing.T, reg *registry.Registry) *workspace.Workspace {
	t.Helper()
	ws := workspace.New(reg, workspace.WithFileType("idf"), workspace.WithLogger(discard))
	ws.AddComment(" meters")
	_, err := ws.AddValues("Meter", []string{"Electricity:Facility", "Hourly"})
	require.NoError(t, err)
	_, err = ws.AddValues("BranchList", []string{"Branches", "Fan", "Coil"})
	require.NoError(t, err)
	_, err = ws.AddValues("Site:Location", []string{"Chicago"})
	require.NoError(t, err)
	return ws
}

func lines(ws *workspace.Workspace) []string {
	var out []string
	for _, r := range ws.Records() {
		out = append(out, r.String())
	}
	return out
}

func TestStore_Migrate(t *testing.T) {
	for _, name := range []string{dialect.SQLite, dialect.Postgres, dialect.MySQL} {
		t.Run(name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			mock.ExpectExec("CREATE TABLE IF NOT EXISTS flatgraph_workspaces").WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectExec("CREATE TABLE IF NOT EXISTS flatgraph_records").WillReturnResult(sqlmock.NewResult(0, 0))
			require.NoError(t, NewStore(OpenDB(name, db), WithStoreLogger(discard)).Migrate(context.Background()))
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	assert.ErrorContains(t, NewStore(OpenDB("oracle", db)).Migrate(context.Background()), "unsupported dialect")
}

func TestStore_SavePostgres(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	store := NewStore(OpenDB(dialect.Postgres, db), WithStoreLogger(discard))
	ws := sample(t, newRegistry(t))

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM flatgraph_records WHERE workspace = $1").WithArgs("office").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM flatgraph_workspaces WHERE name = $1").WithArgs("office").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO flatgraph_workspaces (name, file_type) VALUES ($1, $2)").WithArgs("office", "idf").WillReturnResult(sqlmock.NewResult(0, 1))
	insert := "INSERT INTO flatgraph_records (workspace, seq, type_name, payload, comment, note) VALUES ($1, $2, $3, $4, $5, $6)"
	mock.ExpectExec(insert).WithArgs("office", 0, "CommentOnly", sqlmock.AnyArg(), " meters", true).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insert).WithArgs("office", 1, "Meter", sqlmock.AnyArg(), "", false).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insert).WithArgs("office", 2, "BranchList", sqlmock.AnyArg(), "", false).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insert).WithArgs("office", 3, "Site:Location", sqlmock.AnyArg(), "", false).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Save(context.Background(), "office", ws))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store := NewStore(OpenDB(dialect.Postgres, db), WithStoreLogger(discard))

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM flatgraph_records").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM flatgraph_workspaces").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO flatgraph_workspaces").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err = store.Save(context.Background(), "office", sample(t, newRegistry(t)))
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LoadNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store := NewStore(OpenDB(dialect.MySQL, db), WithStoreLogger(discard))
	mock.ExpectQuery("SELECT file_type FROM flatgraph_workspaces").WithArgs("attic").WillReturnRows(sqlmock.NewRows([]string{"file_type"}))

	_, err = store.Load(context.Background(), "attic", newRegistry(t))
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SQLite(t *testing.T) {
	db, err := sql.Open("sqlite", "file::memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	reg := newRegistry(t)
	store := NewStore(OpenDB(dialect.SQLite, db), WithStoreLogger(discard))
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx), "migrate is idempotent")

	ws := sample(t, reg)
	require.NoError(t, store.Save(ctx, "office", ws))
	require.NoError(t, store.Save(ctx, "annex", workspace.New(reg)))
	require.NoError(t, store.Save(ctx, "office", ws), "save replaces")

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"annex", "office"}, names)

	back, err := store.Load(ctx, "office", reg)
	require.NoError(t, err)
	assert.Equal(t, lines(ws), lines(back))
	assert.Equal(t, ws.FileType(), back.FileType())
	assert.True(t, back.Records()[3].Opaque())

	require.NoError(t, store.Delete(ctx, "office"))
	assert.ErrorIs(t, store.Delete(ctx, "office"), ErrNotFound)
	_, err = store.Load(ctx, "office", reg)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIsUniqueConstraintError(t *testing.T) {
	assert.False(t, IsUniqueConstraintError(nil))
	assert.True(t, IsUniqueConstraintError(&pq.Error{Code: "23505"}))
	assert.False(t, IsUniqueConstraintError(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueConstraintError(sql.ErrNoRows))
	assert.True(t, IsUniqueConstraintError(errors.New("UNIQUE constraint failed: flatgraph_workspaces.name")))
}
