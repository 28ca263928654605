package sql

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store errors.
var (
	// ErrNotFound is returned when a named workspace is not stored.
	ErrNotFound = errors.New("dialect/sql: workspace not found")
	// ErrConflict is returned when a concurrent save claimed the same name.
	ErrConflict = errors.New("dialect/sql: workspace saved concurrently")
)

// Constraint violation codes.
const (
	pgUniqueViolation   pq.ErrorCode = "23505"
	mysqlDuplicateEntry uint16       = 1062
)

// IsUniqueConstraintError reports if the error resulted from a uniqueness
// or primary key violation.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var (
		pgErr     *pq.Error
		mysqlErr  *mysql.MySQLError
		sqliteErr *sqlite.Error
	)
	switch {
	case errors.As(err, &pgErr):
		return pgErr.Code == pgUniqueViolation
	case errors.As(err, &mysqlErr):
		return mysqlErr.Number == mysqlDuplicateEntry
	case errors.As(err, &sqliteErr):
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	// Drivers wrapped by proxies lose their error types.
	return containsAny(err.Error(),
		"Error 1062",
		"violates unique constraint",
		"UNIQUE constraint failed",
	)
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
