// Package sql persists workspaces in relational databases through
// database/sql.
//
// A Driver wraps a *sql.DB for one dialect. Statements are written with
// "?" placeholders and rebound to "$n" for PostgreSQL:
//
//	drv, err := sql.Open(dialect.SQLite, "file:models.db")
//	if err != nil {
//		return err
//	}
//	store := sql.NewStore(sql.NewStatsDriver(drv))
//	if err := store.Migrate(ctx); err != nil {
//		return err
//	}
//	err = store.Save(ctx, "office", ws)
//
// The pure Go SQLite driver, the PostgreSQL driver and the MySQL driver
// are linked in, so Open accepts "sqlite", "postgres" and "mysql".
package sql
