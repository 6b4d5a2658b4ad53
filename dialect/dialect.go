package dialect

import (
	"context"
	"fmt"
	"strings"
)

// Dialect names.
const (
	SQLServer = "sqlserver"
	Postgres  = "postgres"
	MySQL     = "mysql"
	SQLite    = "sqlite"
)

// ExecQuerier wraps the two database operations used by nested queries.
// args is expected to be a []any and v the destination (a *sql.Rows wrapper
// for Query, a *sql.Result or nil for Exec).
type ExecQuerier interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all necessary operations for executing
// nested queries against a database.
type Driver interface {
	ExecQuerier
	Tx(ctx context.Context) (Tx, error)
	Close() error
	Dialect() string
}

// Tx wraps the Exec and Query operations in transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

// Normalize maps driver names and common aliases to a dialect name.
// "postgresql", "pgx" and "pq" map to Postgres, "mssql" to SQLServer,
// "sqlite3" to SQLite.
func Normalize(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case SQLServer, "mssql":
		return SQLServer, nil
	case Postgres, "postgresql", "pgx", "pq":
		return Postgres, nil
	case MySQL, "mariadb":
		return MySQL, nil
	case SQLite, "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("dialect: unknown dialect %q", name)
	}
}
