// Package sql builds parameterized SQL predicates and resolves nested
// queries against their data sources.
//
// # Builder
//
// A Builder binds the dialect lexicon, the data source, the logger and the
// materializer used by the predicates it starts:
//
//	import "github.com/syssam/wherekit/dialect"
//
//	// SQL Server
//	b := sql.Dialect(dialect.SQLServer)
//	b.Where("Age", sql.OpGT, 18).WhereLessOrEquals("Age", 65)
//	// [Age] > @p0 AND [Age] <= @p1
//
//	// PostgreSQL
//	b = sql.Dialect(dialect.Postgres, sql.WithSource(sql.NewDataSource("main")))
//
// # Predicates
//
// Predicates are immutable values. Clauses join with AND unless Or is called
// right before one, and complex predicates are bracketed when nested or when
// the joining operator changes:
//
//	a := b.P().WhereEquals("Name", "x").Or().WhereEquals("Name", "y")
//	a.WhereEquals("Enabled", true)
//	// ([Name] = @p0 OR [Name] = @p1) AND [Enabled] = @p2
//
//	b.P().WhereNot(a)
//	// NOT ([Name] = @p0 OR [Name] = @p1)
//
// Parameters of nested predicates are renamed when their names collide.
//
// # Empty lists
//
// An empty IN list makes the predicate return no results and an empty NOT IN
// list adds nothing:
//
//	b.P().WhereIn("ID")        // ReturnsNoResults() == true, Clause() == "1 = 0"
//	b.P().WhereNotIn("ID")     // empty
//
// # Nested queries
//
// A nested query from a compatible data source (same root) is embedded as a
// sub-select. Otherwise it is executed and its values are inlined, unless
// the query disallows materialization:
//
//	q := b.Select("CategoryID").From("Categories").Where(b.Where("Enabled", sql.OpEQ, true))
//	p, err := b.P().WhereInQuery(ctx, "CategoryID", q)
//	// [CategoryID] IN (SELECT [CategoryID] FROM [Categories] WHERE [Enabled] = @p0)
//
// Only int32, int64, string and UUID columns can be materialized.
//
// # Execution
//
// Bind converts the canonical @name placeholders into those of the driver,
// and Driver runs nested queries through database/sql:
//
//	drv, err := sql.Open(dialect.Postgres, dsn)
//	q = q.Via(drv)
//	query, args, err := p.Bind()
package sql
