package sql

import (
	"github.com/google/uuid"
)

// Clause is a deferred predicate step. Typed fields return clauses so that
// column names and value types are declared once:
//
//	var (
//		Name = sql.StringField("Name")
//		Age  = sql.Int32Field("Age")
//	)
//	p := b.P().Apply(Age.GT(18), Name.HasPrefix("Jo"))
type Clause func(Predicate) Predicate

// Or returns a clause that joins c with OR.
func Or(c Clause) Clause {
	return func(p Predicate) Predicate {
		return c(p.Or())
	}
}

// Not returns a clause that adds the negation of the clauses applied to an
// empty predicate of the same builder.
func Not(cs ...Clause) Clause {
	return func(p Predicate) Predicate {
		return p.WhereNot(p.Reset().Apply(cs...))
	}
}

// Group returns a clause that adds the clauses as one nested predicate.
func Group(cs ...Clause) Clause {
	return func(p Predicate) Predicate {
		return p.WhereNested(p.Reset().Apply(cs...))
	}
}

// Field is a generic column with comparison clauses for values of type T.
type Field[T any] string

// Name returns the column name.
func (f Field[T]) Name() string { return string(f) }

// EQ returns a clause that checks if the column equals v.
func (f Field[T]) EQ(v T) Clause { return compare(string(f), OpEQ, v) }

// NEQ returns a clause that checks if the column does not equal v.
func (f Field[T]) NEQ(v T) Clause { return compare(string(f), OpNEQ, v) }

// GT returns a clause that checks if the column is greater than v.
func (f Field[T]) GT(v T) Clause { return compare(string(f), OpGT, v) }

// GTE returns a clause that checks if the column is greater than or equal to v.
func (f Field[T]) GTE(v T) Clause { return compare(string(f), OpGTE, v) }

// LT returns a clause that checks if the column is less than v.
func (f Field[T]) LT(v T) Clause { return compare(string(f), OpLT, v) }

// LTE returns a clause that checks if the column is less than or equal to v.
func (f Field[T]) LTE(v T) Clause { return compare(string(f), OpLTE, v) }

// In returns a clause that checks if the column value is in vs.
func (f Field[T]) In(vs ...T) Clause {
	return func(p Predicate) Predicate { return inList(p, string(f), vs, false) }
}

// NotIn returns a clause that checks if the column value is not in vs.
func (f Field[T]) NotIn(vs ...T) Clause {
	return func(p Predicate) Predicate { return inList(p, string(f), vs, true) }
}

// IsNull returns a clause that checks if the column is NULL.
func (f Field[T]) IsNull() Clause {
	return func(p Predicate) Predicate { return p.WhereNull(string(f)) }
}

// NotNull returns a clause that checks if the column is not NULL.
func (f Field[T]) NotNull() Clause {
	return func(p Predicate) Predicate { return p.WhereNotNull(string(f)) }
}

// EQOrNull returns a clause that checks if the column equals v or is NULL.
func (f Field[T]) EQOrNull(v T) Clause {
	return func(p Predicate) Predicate { return p.WhereEqualsOrNull(string(f), v) }
}

// Typed columns of the materializable types.
type (
	Int32Field = Field[int32]
	Int64Field = Field[int64]
	UUIDField  = Field[uuid.UUID]
)

// StringField is a string column with LIKE based clauses.
type StringField string

// Name returns the column name.
func (f StringField) Name() string { return string(f) }

func (f StringField) field() Field[string] { return Field[string](f) }

// EQ returns a clause that checks if the column equals v.
func (f StringField) EQ(v string) Clause { return f.field().EQ(v) }

// NEQ returns a clause that checks if the column does not equal v.
func (f StringField) NEQ(v string) Clause { return f.field().NEQ(v) }

// In returns a clause that checks if the column value is in vs.
func (f StringField) In(vs ...string) Clause { return f.field().In(vs...) }

// NotIn returns a clause that checks if the column value is not in vs.
func (f StringField) NotIn(vs ...string) Clause { return f.field().NotIn(vs...) }

// IsNull returns a clause that checks if the column is NULL.
func (f StringField) IsNull() Clause { return f.field().IsNull() }

// NotNull returns a clause that checks if the column is not NULL.
func (f StringField) NotNull() Clause { return f.field().NotNull() }

// Contains returns a clause that checks if the column contains v.
func (f StringField) Contains(v string) Clause {
	return func(p Predicate) Predicate { return p.WhereContains(string(f), v) }
}

// HasPrefix returns a clause that checks if the column starts with v.
func (f StringField) HasPrefix(v string) Clause {
	return func(p Predicate) Predicate { return p.WhereStartsWith(string(f), v) }
}

// HasSuffix returns a clause that checks if the column ends with v.
func (f StringField) HasSuffix(v string) Clause {
	return func(p Predicate) Predicate { return p.WhereEndsWith(string(f), v) }
}

// Empty returns a clause that checks if the column is empty or NULL.
func (f StringField) Empty() Clause {
	return func(p Predicate) Predicate { return p.WhereEmpty(string(f)) }
}

// NotEmpty returns a clause that checks if the column is neither empty nor NULL.
func (f StringField) NotEmpty() Clause {
	return func(p Predicate) Predicate { return p.WhereNotEmpty(string(f)) }
}

// BoolField is a boolean column. False matches NULL too.
type BoolField string

// Name returns the column name.
func (f BoolField) Name() string { return string(f) }

// True returns a clause that checks if the column is true.
func (f BoolField) True() Clause {
	return func(p Predicate) Predicate { return p.WhereTrue(string(f)) }
}

// False returns a clause that checks if the column is false or NULL.
func (f BoolField) False() Clause {
	return func(p Predicate) Predicate { return p.WhereFalse(string(f)) }
}

func compare(column string, op Op, v any) Clause {
	return func(p Predicate) Predicate { return p.Where(column, op, v) }
}
