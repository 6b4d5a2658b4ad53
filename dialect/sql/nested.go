package sql

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/syssam/wherekit"
)

// Nested is a query that can be used inside a predicate, either embedded as
// a sub-select or executed up front and inlined as a list of values.
type Nested interface {
	// Source returns the data source the query runs against.
	Source() *DataSource
	// SubQuery renders the query as a single-column sub-select.
	SubQuery() (string, *ParameterSet, error)
	// AllowMaterialization reports whether the query may be executed eagerly
	// when it cannot be embedded.
	AllowMaterialization() bool
	// Result executes the query and reads its single result column.
	Result(ctx context.Context) (*ResultColumn, error)
}

// ColumnType is the type of a materialized result column.
type ColumnType uint8

// Column types. Only Int32, Int64, String and UUID can be materialized.
const (
	ColumnUnknown ColumnType = iota
	ColumnInt32
	ColumnInt64
	ColumnString
	ColumnUUID
	ColumnBool
	ColumnFloat
	ColumnDecimal
	ColumnTime
	ColumnBytes
)

var columnTypes = [...]string{
	ColumnUnknown: "unknown",
	ColumnInt32:   "int32",
	ColumnInt64:   "int64",
	ColumnString:  "string",
	ColumnUUID:    "uuid",
	ColumnBool:    "bool",
	ColumnFloat:   "float",
	ColumnDecimal: "decimal",
	ColumnTime:    "time",
	ColumnBytes:   "bytes",
}

// String implements the fmt.Stringer interface.
func (t ColumnType) String() string {
	if int(t) < len(columnTypes) {
		return columnTypes[t]
	}
	return fmt.Sprintf("ColumnType(%d)", uint8(t))
}

// ColumnTypeOf infers the column type from the database type name reported
// by the driver, falling back to the scan type.
func ColumnTypeOf(databaseType string, scanType reflect.Type) ColumnType {
	name := strings.ToUpper(strings.TrimSpace(databaseType))
	if i := strings.IndexByte(name, '('); i > 0 {
		name = name[:i]
	}
	switch name {
	case "INT", "INT4", "INT2", "SMALLINT", "TINYINT", "MEDIUMINT", "SERIAL":
		return ColumnInt32
	case "BIGINT", "INT8", "INTEGER", "BIGSERIAL":
		return ColumnInt64
	case "VARCHAR", "NVARCHAR", "CHAR", "NCHAR", "TEXT", "NTEXT", "BPCHAR", "CHARACTER VARYING", "STRING":
		return ColumnString
	case "UUID", "UNIQUEIDENTIFIER":
		return ColumnUUID
	case "BIT", "BOOL", "BOOLEAN":
		return ColumnBool
	case "FLOAT", "FLOAT4", "FLOAT8", "REAL", "DOUBLE", "DOUBLE PRECISION":
		return ColumnFloat
	case "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY":
		return ColumnDecimal
	case "DATE", "DATETIME", "DATETIME2", "TIMESTAMP", "TIMESTAMPTZ", "TIME":
		return ColumnTime
	case "BLOB", "BYTEA", "VARBINARY", "BINARY":
		return ColumnBytes
	}
	if scanType == nil {
		return ColumnUnknown
	}
	switch scanType.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		return ColumnInt32
	case reflect.Int, reflect.Int64, reflect.Uint32:
		return ColumnInt64
	case reflect.String:
		return ColumnString
	case reflect.Bool:
		return ColumnBool
	case reflect.Float32, reflect.Float64:
		return ColumnFloat
	}
	return ColumnUnknown
}

// ResultColumn is the single column read from an executed nested query.
type ResultColumn struct {
	Name         string     `msgpack:"name"`
	Type         ColumnType `msgpack:"type"`
	DatabaseType string     `msgpack:"db_type,omitempty"` // As reported by the driver, if any.
	Values       []any      `msgpack:"values"`
}

// Scalar lists the Go types a result column can be materialized into.
type Scalar interface {
	int32 | int64 | string | uuid.UUID
}

// Materialized is a typed list of values read from a nested query.
type Materialized interface {
	// Len returns the number of values.
	Len() int
	// Type returns the column type of the values.
	Type() ColumnType
	// Fragment renders the IN (or NOT IN) fragment of the values.
	Fragment(lex Lexicon, column string, negate bool) (Fragment, error)
}

// MaterializedList is the Materialized implementation for a scalar type.
type MaterializedList[T Scalar] []T

// Len implements the Materialized interface.
func (l MaterializedList[T]) Len() int { return len(l) }

// Type implements the Materialized interface.
func (l MaterializedList[T]) Type() ColumnType {
	var zero T
	switch any(zero).(type) {
	case int32:
		return ColumnInt32
	case int64:
		return ColumnInt64
	case string:
		return ColumnString
	default:
		return ColumnUUID
	}
}

// Fragment implements the Materialized interface.
func (l MaterializedList[T]) Fragment(lex Lexicon, column string, negate bool) (Fragment, error) {
	return InList(lex, column, []T(l), negate)
}

// emptyList is the materialization of an empty result of unknown type.
type emptyList struct{}

func (emptyList) Len() int         { return 0 }
func (emptyList) Type() ColumnType { return ColumnUnknown }

func (emptyList) Fragment(lex Lexicon, column string, negate bool) (Fragment, error) {
	return InList[any](lex, column, nil, negate)
}

// Materialize converts a result column into a typed list. NULL values are
// dropped since they never match an IN test.
func Materialize(col *ResultColumn) (Materialized, error) {
	if col == nil {
		return nil, wherekit.NewArgumentError("column", "nil result column")
	}
	switch col.Type {
	case ColumnInt32:
		return materialize(col, toInt32)
	case ColumnInt64:
		return materialize(col, toInt64)
	case ColumnString:
		return materialize(col, toString)
	case ColumnUUID:
		return materialize(col, toUUID)
	case ColumnUnknown:
		if len(col.Values) == 0 {
			return emptyList{}, nil
		}
		fallthrough
	default:
		typ := col.Type.String()
		if col.DatabaseType != "" {
			typ = col.DatabaseType
		}
		return nil, wherekit.NewUnsupportedTypeError(col.Name, typ)
	}
}

func materialize[T Scalar](col *ResultColumn, conv func(any) (T, error)) (MaterializedList[T], error) {
	list := make(MaterializedList[T], 0, len(col.Values))
	for i, v := range col.Values {
		if v == nil {
			continue
		}
		x, err := conv(v)
		if err != nil {
			return nil, fmt.Errorf("dialect/sql: row %d of column %q: %w", i, col.Name, err)
		}
		list = append(list, x)
	}
	return list, nil
}

func toInt64(v any) (int64, error) {
	switch v := v.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", v)
		}
		return int64(v), nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", v)
	}
}

func toInt32(v any) (int32, error) {
	n, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("value %d overflows int32", n)
	}
	return int32(n), nil
}

func toString(v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("cannot convert %T to string", v)
	}
}

func toUUID(v any) (uuid.UUID, error) {
	switch v := v.(type) {
	case uuid.UUID:
		return v, nil
	case [16]byte:
		return uuid.UUID(v), nil
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.ParseBytes(v)
	case string:
		return uuid.Parse(v)
	default:
		return uuid.Nil, fmt.Errorf("cannot convert %T to uuid", v)
	}
}

// ListQuery is a Nested query over values held in memory, for example IDs
// returned by another service. It can never be embedded as a sub-select, so
// predicates always materialize it.
type ListQuery struct {
	source *DataSource
	typ    ColumnType
	values []any
	allow  bool
}

// NewListQuery returns a ListQuery of the given column type.
func NewListQuery(source *DataSource, typ ColumnType, values ...any) *ListQuery {
	return &ListQuery{source: source, typ: typ, values: values, allow: true}
}

// WithoutMaterialization returns a copy of q that refuses to materialize.
func (q *ListQuery) WithoutMaterialization() *ListQuery {
	c := *q
	c.allow = false
	return &c
}

// Source implements the Nested interface.
func (q *ListQuery) Source() *DataSource { return q.source }

// AllowMaterialization implements the Nested interface.
func (q *ListQuery) AllowMaterialization() bool { return q.allow }

// Embeddable reports false: in-memory values are always materialized.
func (q *ListQuery) Embeddable() bool { return false }

// SubQuery implements the Nested interface. In-memory values have no SQL
// rendering.
func (q *ListQuery) SubQuery() (string, *ParameterSet, error) {
	return "", nil, fmt.Errorf("dialect/sql: in-memory source %q cannot be rendered as a sub-select", q.source.Name())
}

// Result implements the Nested interface.
func (q *ListQuery) Result(context.Context) (*ResultColumn, error) {
	return &ResultColumn{
		Name:   "value",
		Type:   q.typ,
		Values: append([]any(nil), q.values...),
	}, nil
}

var (
	_ Nested = (*ListQuery)(nil)
	_ Nested = (*SelectQuery)(nil)
)
