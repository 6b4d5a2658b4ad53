package sql

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"

	"github.com/lib/pq"
)

// Bind converts the canonical @name placeholders of text into the
// placeholders of the lexicon's driver and returns the argument list to
// pass along with the query.
//
//	Bind(sqlServer, "[Age] > @p0", params) // "[Age] > @p0", []any{sql.Named("p0", 18)}
//	Bind(postgres, `"Age" > @p0`, params)  // `"Age" > $1`, []any{18}
//	Bind(mysql, "`Age` > @p0", params)     // "`Age` > ?", []any{18}
func Bind(lex Lexicon, text string, params *ParameterSet) (string, []any, error) {
	var (
		args []any
		err  error
		seen = make(map[string]string)
	)
	query := rewriteParams(text, func(name string) string {
		if err != nil {
			return "@" + name
		}
		v, ok := params.Get(name)
		if !ok {
			err = fmt.Errorf("dialect/sql: bind: missing value for parameter @%s", name)
			return "@" + name
		}
		style := lex.BindStyle()
		if ph, ok := seen[name]; ok && style != BindPositional {
			return ph
		}
		v = bindValue(lex, v)
		if style == BindNamed {
			v = sql.Named(name, v)
		}
		args = append(args, v)
		ph := lex.Placeholder(name, len(args))
		seen[name] = ph
		return ph
	})
	if err != nil {
		return "", nil, err
	}
	return query, args, nil
}

// bindValue wraps slice values in pq.Array for dialects that bind IN lists
// as a single array parameter.
func bindValue(lex Lexicon, v any) any {
	if !lex.ArrayParams() || v == nil {
		return v
	}
	if _, ok := v.(driver.Valuer); ok {
		return v
	}
	if _, ok := v.([]byte); ok {
		return v
	}
	if k := reflect.TypeOf(v).Kind(); k == reflect.Slice || k == reflect.Array {
		return pq.Array(v)
	}
	return v
}
