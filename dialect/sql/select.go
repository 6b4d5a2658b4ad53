package sql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/wherekit"
	"github.com/syssam/wherekit/dialect"
)

// SelectQuery is a single-column query usable as a Nested query:
//
//	q := b.Select("CategoryID").From("Categories").Where(b.Where("Enabled", sql.OpEQ, true))
//	p, err := b.P().WhereInQuery(ctx, "CategoryID", q)
//
// A SelectQuery is configured with chained calls that modify and return the
// receiver; it is not safe to configure concurrently.
type SelectQuery struct {
	b      *Builder
	source *DataSource
	column string
	table  string
	where  Predicate
	typ    ColumnType
	drv    dialect.ExecQuerier
	allow  bool
}

// From sets the table of the query.
func (s *SelectQuery) From(table string) *SelectQuery {
	s.table = table
	return s
}

// Where sets the filter of the query.
func (s *SelectQuery) Where(p Predicate) *SelectQuery {
	s.where = p
	return s
}

// As declares the type of the selected column. Without it, the type is
// inferred from the column type reported by the driver.
func (s *SelectQuery) As(t ColumnType) *SelectQuery {
	s.typ = t
	return s
}

// On sets the data source the query runs against.
func (s *SelectQuery) On(src *DataSource) *SelectQuery {
	s.source = src
	return s
}

// Via sets the driver used when the query is materialized.
func (s *SelectQuery) Via(drv dialect.ExecQuerier) *SelectQuery {
	s.drv = drv
	return s
}

// WithoutMaterialization forbids executing the query eagerly. Using it from
// an incompatible source then fails with MaterializationDisallowedError.
func (s *SelectQuery) WithoutMaterialization() *SelectQuery {
	s.allow = false
	return s
}

// Source implements the Nested interface.
func (s *SelectQuery) Source() *DataSource { return s.source }

// AllowMaterialization implements the Nested interface.
func (s *SelectQuery) AllowMaterialization() bool { return s.allow }

// SubQuery implements the Nested interface. A filter that returns no
// results renders as "WHERE 1 = 0".
func (s *SelectQuery) SubQuery() (string, *ParameterSet, error) {
	if strings.TrimSpace(s.column) == "" {
		return "", nil, wherekit.NewArgumentError("column", "select column must not be empty")
	}
	if strings.TrimSpace(s.table) == "" {
		return "", nil, wherekit.NewArgumentError("table", "must not be empty")
	}
	if err := s.where.Err(); err != nil {
		return "", nil, err
	}
	lex := s.b.lex
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(lex.QuoteIdentifier(s.column))
	b.WriteString(" FROM ")
	b.WriteString(lex.QuoteIdentifier(s.table))
	switch {
	case s.where.ReturnsNoResults():
		b.WriteString(" WHERE 1 = 0")
	case s.where.Text() != "":
		b.WriteString(" WHERE ")
		b.WriteString(s.where.Text())
	}
	return b.String(), s.where.Params(), nil
}

// Query returns the query text and arguments in the placeholder style of
// the builder dialect.
func (s *SelectQuery) Query() (string, []any, error) {
	text, params, err := s.SubQuery()
	if err != nil {
		return "", nil, err
	}
	return Bind(s.b.lex, text, params)
}

// Result implements the Nested interface. A filter that returns no results
// short-circuits without touching the database.
func (s *SelectQuery) Result(ctx context.Context) (*ResultColumn, error) {
	if s.where.ReturnsNoResults() {
		return &ResultColumn{Name: s.column, Type: s.typ}, nil
	}
	if s.drv == nil {
		return nil, errors.New("dialect/sql: select query has no driver")
	}
	query, args, err := s.Query()
	if err != nil {
		return nil, err
	}
	rows := &Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	col := &ResultColumn{Name: s.column, Type: s.typ}
	if col.Type == ColumnUnknown {
		cts, err := rows.ColumnTypes()
		if err != nil {
			return nil, fmt.Errorf("dialect/sql: nested result column types: %w", err)
		}
		if len(cts) != 1 {
			return nil, fmt.Errorf("dialect/sql: nested query returned %d columns, expected 1", len(cts))
		}
		col.DatabaseType = cts[0].DatabaseTypeName()
		col.Type = ColumnTypeOf(col.DatabaseType, cts[0].ScanType())
	}
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("dialect/sql: scan nested result: %w", err)
		}
		col.Values = append(col.Values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dialect/sql: read nested result: %w", err)
	}
	return col, nil
}
