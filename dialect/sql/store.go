package sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/syssam/flatgraph/dialect"
	"github.com/syssam/flatgraph/dialect/binary"
	"github.com/syssam/flatgraph/registry"
	"github.com/syssam/flatgraph/schema"
	"github.com/syssam/flatgraph/workspace"
)

// Table names.
const (
	WorkspacesTable = "flatgraph_workspaces"
	RecordsTable    = "flatgraph_records"
)

// Store persists named workspaces in two tables: one row per workspace and
// one row per record, the record values held as a msgpack payload.
type Store struct {
	drv    dialect.Driver
	logger *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the store logger. The default is slog.Default().
func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore returns a store on top of drv.
func NewStore(drv dialect.Driver, opts ...StoreOption) *Store {
	s := &Store{drv: drv, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates the store tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	stmts, err := ddl(s.drv.Dialect())
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if err := s.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func ddl(name string) ([]string, error) {
	var text, blob string
	switch name {
	case dialect.SQLite:
		text, blob = "TEXT", "BLOB"
	case dialect.Postgres:
		text, blob = "VARCHAR(255)", "BYTEA"
	case dialect.MySQL:
		text, blob = "VARCHAR(255)", "LONGBLOB"
	default:
		return nil, fmt.Errorf("dialect/sql: unsupported dialect %q", name)
	}
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (name %s NOT NULL, file_type %s NOT NULL, PRIMARY KEY (name))",
			WorkspacesTable, text, text),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (workspace %s NOT NULL, seq INTEGER NOT NULL, type_name %s NOT NULL, payload %s, comment TEXT NOT NULL, note BOOLEAN NOT NULL, PRIMARY KEY (workspace, seq))",
			RecordsTable, text, text, blob),
	}, nil
}

// Save stores ws under name in one transaction, replacing what was stored
// under that name before.
func (s *Store) Save(ctx context.Context, name string, ws *workspace.Workspace) (err error) {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()
	if err := tx.Exec(ctx, "DELETE FROM "+RecordsTable+" WHERE workspace = ?", []any{name}, nil); err != nil {
		return err
	}
	if err := tx.Exec(ctx, "DELETE FROM "+WorkspacesTable+" WHERE name = ?", []any{name}, nil); err != nil {
		return err
	}
	err = tx.Exec(ctx, "INSERT INTO "+WorkspacesTable+" (name, file_type) VALUES (?, ?)", []any{name, string(ws.FileType())}, nil)
	if IsUniqueConstraintError(err) {
		return fmt.Errorf("%w: %q", ErrConflict, name)
	}
	if err != nil {
		return err
	}
	for i, r := range ws.Records() {
		var payload []byte
		if !r.IsComment() {
			if payload, err = binary.MarshalPayload(r); err != nil {
				return err
			}
		}
		if err := tx.Exec(ctx,
			"INSERT INTO "+RecordsTable+" (workspace, seq, type_name, payload, comment, note) VALUES (?, ?, ?, ?, ?, ?)",
			[]any{name, i, r.TypeName(), payload, r.Comment, r.IsComment()}, nil,
		); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Debug("workspace saved", "name", name, "records", ws.Len())
	return nil
}

// Load restores the workspace stored under name.
func (s *Store) Load(ctx context.Context, name string, reg *registry.Registry) (*workspace.Workspace, error) {
	var (
		rows  Rows
		ft    string
		found bool
	)
	if err := s.drv.Query(ctx, "SELECT file_type FROM "+WorkspacesTable+" WHERE name = ?", []any{name}, &rows); err != nil {
		return nil, err
	}
	if err := scanAll(&rows, func() error {
		found = true
		return rows.Scan(&ft)
	}); err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	ws := workspace.New(reg, workspace.WithFileType(schema.FileType(ft)), workspace.WithLogger(s.logger))
	if err := s.drv.Query(ctx,
		"SELECT type_name, payload, comment, note FROM "+RecordsTable+" WHERE workspace = ? ORDER BY seq",
		[]any{name}, &rows,
	); err != nil {
		return nil, err
	}
	err := scanAll(&rows, func() error {
		var (
			typeName, comment string
			payload           []byte
			note              bool
		)
		if err := rows.Scan(&typeName, &payload, &comment, &note); err != nil {
			return err
		}
		p, err := binary.UnmarshalPayload(payload)
		if err != nil {
			return err
		}
		_, err = binary.Restore(ws, typeName, p, comment, note)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", name, err)
	}
	return ws, nil
}

// Delete removes the workspace stored under name.
func (s *Store) Delete(ctx context.Context, name string) (err error) {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()
	if err := tx.Exec(ctx, "DELETE FROM "+RecordsTable+" WHERE workspace = ?", []any{name}, nil); err != nil {
		return err
	}
	var res Result
	if err := tx.Exec(ctx, "DELETE FROM "+WorkspacesTable+" WHERE name = ?", []any{name}, &res); err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return tx.Commit()
}

// List returns the names of the stored workspaces, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var rows Rows
	if err := s.drv.Query(ctx, "SELECT name FROM "+WorkspacesTable+" ORDER BY name", []any{}, &rows); err != nil {
		return nil, err
	}
	var names []string
	err := scanAll(&rows, func() error {
		var n string
		if err := rows.Scan(&n); err != nil {
			return err
		}
		names = append(names, n)
		return nil
	})
	return names, err
}
