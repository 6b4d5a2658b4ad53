// Package dialect names the SQL dialects wherekit renders predicates for and
// defines the execution interfaces that nested queries run through when they
// have to be materialized.
//
// # Supported Dialects
//
//   - SQLServer: Microsoft SQL Server (the default; [Column] quoting, @p0 parameters)
//   - Postgres: PostgreSQL ("Column" quoting, $1 placeholders, array parameters)
//   - MySQL: MySQL/MariaDB (`Column` quoting, ? placeholders)
//   - SQLite: SQLite ("Column" quoting, ? placeholders, explicit LIKE escape)
//
// # Driver Interface
//
// Materialization executes a nested query through the Driver interface:
//
//	type Driver interface {
//	    ExecQuerier
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// The dialect/sql package provides the database/sql backed implementation:
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
package dialect
