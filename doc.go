// Package wherekit builds parameterized SQL boolean predicates without string
// concatenation.
//
// The engine itself lives in the dialect/sql package; this package holds the
// error types shared by every layer.
//
//	b := sql.Dialect(dialect.SQLServer)
//	p := b.Where("Age", sql.OpGT, 18).And().Where("Age", sql.OpLTE, 65)
//	p.Text()   // [Age] > @p0 AND [Age] <= @p1
//	p.Params() // @p0=18, @p1=65
//
// Errors are typed and can be matched with errors.Is against the sentinels:
//
//	if errors.Is(err, wherekit.ErrUnsupportedType) { ... }
package wherekit
