package sql

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/syssam/wherekit"
)

// Combinator joins two clauses of a predicate.
type Combinator uint8

// Combinators.
const (
	CombineAnd Combinator = iota
	CombineOr
)

// String implements the fmt.Stringer interface.
func (c Combinator) String() string {
	if c == CombineOr {
		return "OR"
	}
	return "AND"
}

// Predicate is an immutable, parameterized SQL boolean expression.
// Every method returns a new Predicate and leaves the receiver untouched,
// so a predicate can be shared between goroutines and used as the base of
// several others:
//
//	adults := b.Where("Age", sql.OpGTE, 18)
//	p1 := adults.WhereEquals("Country", "NZ")
//	p2 := adults.Or().WhereNull("Country")
//
// Clauses are joined with AND unless Or is called right before adding one.
// The zero value is an empty predicate rendered with the SQL Server lexicon.
//
// Argument errors are recorded in the predicate and returned by Err; the
// methods called after a failure return the predicate unchanged.
type Predicate struct {
	b         *Builder
	text      string
	params    *ParameterSet
	complex   bool
	chain     Combinator // operator joining the top-level clauses of a complex predicate
	pending   Combinator // operator used for the next clause
	noResults bool
	err       error
}

// Text returns the predicate text with @name placeholders.
func (p Predicate) Text() string { return p.text }

// Params returns a copy of the predicate parameters.
func (p Predicate) Params() *ParameterSet { return p.params.Clone() }

// IsComplex reports whether the predicate has more than one top-level
// clause and must be bracketed when nested.
func (p Predicate) IsComplex() bool { return p.complex }

// ReturnsNoResults reports whether the predicate is known to match no rows.
func (p Predicate) ReturnsNoResults() bool { return p.noResults }

// IsEmpty reports whether the predicate has no clauses and does not return
// no results.
func (p Predicate) IsEmpty() bool { return p.text == "" && !p.noResults }

// Err returns the first argument error recorded while composing.
func (p Predicate) Err() error { return p.err }

// Builder returns the builder of the predicate.
func (p Predicate) Builder() *Builder { return p.builder() }

// Clause returns the text to place after WHERE: "1 = 0" for a predicate that
// returns no results.
func (p Predicate) Clause() string {
	if p.noResults {
		return "1 = 0"
	}
	return p.text
}

// String implements the fmt.Stringer interface.
func (p Predicate) String() string { return p.Clause() }

// Bind returns the clause and its arguments in the placeholder style of the
// builder dialect.
func (p Predicate) Bind() (string, []any, error) {
	if p.err != nil {
		return "", nil, p.err
	}
	return Bind(p.builder().lex, p.Clause(), p.params)
}

// And makes the next clause join with AND. It is the default.
func (p Predicate) And() Predicate {
	p.pending = CombineAnd
	return p
}

// Or makes the next clause join with OR.
func (p Predicate) Or() Predicate {
	p.pending = CombineOr
	return p
}

// Where adds "column op value". A nil value with OpEQ or OpNEQ is rendered
// as IS NULL or IS NOT NULL.
func (p Predicate) Where(column string, op Op, value any) Predicate {
	if p.err != nil {
		return p
	}
	f, err := Compare(p.lex(), column, op, value)
	return p.foldErr(f, err)
}

// WhereEquals adds "column = value".
func (p Predicate) WhereEquals(column string, value any) Predicate {
	return p.Where(column, OpEQ, value)
}

// WhereNotEquals adds "column <> value".
func (p Predicate) WhereNotEquals(column string, value any) Predicate {
	return p.Where(column, OpNEQ, value)
}

// WhereGreaterThan adds "column > value".
func (p Predicate) WhereGreaterThan(column string, value any) Predicate {
	return p.Where(column, OpGT, value)
}

// WhereGreaterOrEquals adds "column >= value".
func (p Predicate) WhereGreaterOrEquals(column string, value any) Predicate {
	return p.Where(column, OpGTE, value)
}

// WhereLessThan adds "column < value".
func (p Predicate) WhereLessThan(column string, value any) Predicate {
	return p.Where(column, OpLT, value)
}

// WhereLessOrEquals adds "column <= value".
func (p Predicate) WhereLessOrEquals(column string, value any) Predicate {
	return p.Where(column, OpLTE, value)
}

// WhereLike adds "column LIKE pattern". The pattern is used as is.
func (p Predicate) WhereLike(column, pattern string) Predicate {
	return p.Where(column, OpLike, pattern)
}

// WhereNotLike adds "column NOT LIKE pattern".
func (p Predicate) WhereNotLike(column, pattern string) Predicate {
	return p.Where(column, OpNotLike, pattern)
}

// WhereContains matches values containing text. LIKE wildcards in text
// are escaped.
func (p Predicate) WhereContains(column, text string) Predicate {
	return p.like(column, LikeContains, text, OpLike)
}

// WhereNotContains matches values not containing text.
func (p Predicate) WhereNotContains(column, text string) Predicate {
	return p.like(column, LikeContains, text, OpNotLike)
}

// WhereStartsWith matches values starting with text.
func (p Predicate) WhereStartsWith(column, text string) Predicate {
	return p.like(column, LikeStartsWith, text, OpLike)
}

// WhereNotStartsWith matches values not starting with text.
func (p Predicate) WhereNotStartsWith(column, text string) Predicate {
	return p.like(column, LikeStartsWith, text, OpNotLike)
}

// WhereEndsWith matches values ending with text.
func (p Predicate) WhereEndsWith(column, text string) Predicate {
	return p.like(column, LikeEndsWith, text, OpLike)
}

// WhereNotEndsWith matches values not ending with text.
func (p Predicate) WhereNotEndsWith(column, text string) Predicate {
	return p.like(column, LikeEndsWith, text, OpNotLike)
}

func (p Predicate) like(column string, kind LikeKind, text string, op Op) Predicate {
	return p.Where(column, op, LikePattern(p.lex(), kind, text))
}

// WhereNull adds "column IS NULL".
func (p Predicate) WhereNull(column string) Predicate {
	return p.WhereUnary(column, "IS NULL")
}

// WhereNotNull adds "column IS NOT NULL".
func (p Predicate) WhereNotNull(column string) Predicate {
	return p.WhereUnary(column, "IS NOT NULL")
}

// WhereUnary adds "column operator" for a custom unary operator.
func (p Predicate) WhereUnary(column, operator string) Predicate {
	if p.err != nil {
		return p
	}
	f, err := Unary(p.lex(), column, operator)
	return p.foldErr(f, err)
}

// WhereTrue adds "column = true".
func (p Predicate) WhereTrue(column string) Predicate {
	return p.Where(column, OpEQ, true)
}

// WhereFalse adds "(column = false OR column IS NULL)".
func (p Predicate) WhereFalse(column string) Predicate {
	return p.WhereEqualsOrNull(column, false)
}

// WhereEqualsOrNull adds "(column = value OR column IS NULL)".
func (p Predicate) WhereEqualsOrNull(column string, value any) Predicate {
	if p.err != nil {
		return p
	}
	f, err := EqualsOrNull(p.lex(), column, value)
	return p.foldErr(f, err)
}

// WhereEmpty adds "(column = @p OR column IS NULL)" with @p bound to "".
func (p Predicate) WhereEmpty(column string) Predicate {
	if p.err != nil {
		return p
	}
	f, err := EmptyCheck(p.lex(), column, false)
	return p.foldErr(f, err)
}

// WhereNotEmpty adds "(column <> @p AND column IS NOT NULL)" with @p bound
// to "".
func (p Predicate) WhereNotEmpty(column string) Predicate {
	if p.err != nil {
		return p
	}
	f, err := EmptyCheck(p.lex(), column, true)
	return p.foldErr(f, err)
}

// WhereID adds "column = id", or "column IS NULL" for ids lower than 1.
func (p Predicate) WhereID(column string, id int64) Predicate {
	if id <= 0 {
		return p.WhereNull(column)
	}
	return p.WhereEquals(column, id)
}

// WhereExpr adds a raw boolean expression. Every @name placeholder of expr
// must be bound in params; colliding names are renamed.
//
//	p.WhereExpr("DATEDIFF(day, [Created], @now) < 30", sql.Param{Name: "now", Value: now})
func (p Predicate) WhereExpr(expr string, params ...Param) Predicate {
	if p.err != nil {
		return p
	}
	f, err := Expr(expr, NewParameterSet(params...))
	return p.foldErr(f, err)
}

// WhereIn adds "column IN (values...)". An empty list makes the predicate
// return no results.
func (p Predicate) WhereIn(column string, values ...any) Predicate {
	return inList(p, column, values, false)
}

// WhereNotIn adds "column NOT IN (values...)". An empty list adds nothing,
// even after Or: "A OR NOT IN ()" is not widened to true, the clause is
// simply dropped and the next one joins with AND.
func (p Predicate) WhereNotIn(column string, values ...any) Predicate {
	return inList(p, column, values, true)
}

// WhereInInt32 is the int32 version of WhereIn.
func (p Predicate) WhereInInt32(column string, values ...int32) Predicate {
	return inList(p, column, values, false)
}

// WhereNotInInt32 is the int32 version of WhereNotIn.
func (p Predicate) WhereNotInInt32(column string, values ...int32) Predicate {
	return inList(p, column, values, true)
}

// WhereInInt64 is the int64 version of WhereIn.
func (p Predicate) WhereInInt64(column string, values ...int64) Predicate {
	return inList(p, column, values, false)
}

// WhereNotInInt64 is the int64 version of WhereNotIn.
func (p Predicate) WhereNotInInt64(column string, values ...int64) Predicate {
	return inList(p, column, values, true)
}

// WhereInString is the string version of WhereIn.
func (p Predicate) WhereInString(column string, values ...string) Predicate {
	return inList(p, column, values, false)
}

// WhereNotInString is the string version of WhereNotIn.
func (p Predicate) WhereNotInString(column string, values ...string) Predicate {
	return inList(p, column, values, true)
}

// WhereInUUID is the UUID version of WhereIn.
func (p Predicate) WhereInUUID(column string, values ...uuid.UUID) Predicate {
	return inList(p, column, values, false)
}

// WhereNotInUUID is the UUID version of WhereNotIn.
func (p Predicate) WhereNotInUUID(column string, values ...uuid.UUID) Predicate {
	return inList(p, column, values, true)
}

func inList[T any](p Predicate, column string, values []T, negate bool) Predicate {
	if p.err != nil {
		return p
	}
	f, err := InList(p.lex(), column, values, negate)
	return p.foldErr(f, err)
}

// WhereInQuery adds "column IN (sub-select)" when q runs against a source
// compatible with the builder source. Otherwise q is executed and its
// values are inlined as "column IN (@p0, @p1, ...)".
func (p Predicate) WhereInQuery(ctx context.Context, column string, q Nested) (Predicate, error) {
	return p.inQuery(ctx, column, q, false)
}

// WhereNotInQuery is the negated version of WhereInQuery.
func (p Predicate) WhereNotInQuery(ctx context.Context, column string, q Nested) (Predicate, error) {
	return p.inQuery(ctx, column, q, true)
}

func (p Predicate) inQuery(ctx context.Context, column string, q Nested, negate bool) (Predicate, error) {
	if p.err != nil {
		return p, p.err
	}
	if strings.TrimSpace(column) == "" {
		return p, wherekit.NewArgumentError("column", "must not be empty")
	}
	b := p.builder()
	res, err := b.mat.Resolve(ctx, b.source, q)
	if err != nil {
		return p, err
	}
	var f Fragment
	if res.Correlated {
		f, err = InSubquery(b.lex, column, res.Text, res.Params, negate)
	} else {
		f, err = res.List.Fragment(b.lex, column, negate)
	}
	if err != nil {
		return p, err
	}
	return p.fold(f), nil
}

// WhereExists adds "EXISTS (sub-select)". The query is always embedded.
func (p Predicate) WhereExists(q Nested) (Predicate, error) {
	return p.exists(q, false)
}

// WhereNotExists adds "NOT EXISTS (sub-select)".
func (p Predicate) WhereNotExists(q Nested) (Predicate, error) {
	return p.exists(q, true)
}

func (p Predicate) exists(q Nested, negate bool) (Predicate, error) {
	if p.err != nil {
		return p, p.err
	}
	if isNil(q) {
		return p, wherekit.NewArgumentError("query", "nested query is nil")
	}
	text, params, err := q.SubQuery()
	if err != nil {
		return p, err
	}
	return p.fold(ExistsClause(p.lex(), text, params, negate)), nil
}

// WhereNested adds n as a single clause, bracketed if it is complex.
//
// A nested predicate that returns no results makes an AND-joined parent
// return no results too, and is skipped when OR-joined to a non-empty
// parent. An empty nested predicate is skipped.
func (p Predicate) WhereNested(n Predicate) Predicate {
	return p.nested(n, false)
}

// WhereNot adds "NOT (n)". Negating a predicate that returns no results is
// always true, so it is skipped.
func (p Predicate) WhereNot(n Predicate) Predicate {
	return p.nested(n, true)
}

func (p Predicate) nested(n Predicate, negate bool) Predicate {
	if p.err != nil {
		return p
	}
	if n.err != nil {
		return p.fail(n.err)
	}
	switch {
	case n.noResults && negate, n.text == "" && !n.noResults:
		return p.fold(Fragment{Kind: FragmentTrue})
	case n.noResults:
		return p.fold(Fragment{Kind: FragmentFalse})
	}
	lex := p.lex()
	text := n.text
	if n.complex || (negate && strings.HasPrefix(text, "NOT ")) {
		text = lex.Bracket(text)
	}
	if negate {
		text = "NOT " + text
	}
	return p.fold(Fragment{Text: text, Params: n.params})
}

// Apply adds the given clauses in order.
func (p Predicate) Apply(clauses ...Clause) Predicate {
	for _, c := range clauses {
		p = c(p)
	}
	return p
}

// NoResults marks the predicate as matching no rows.
func (p Predicate) NoResults() Predicate {
	p.noResults = true
	return p
}

// NewWhere returns an empty predicate of the same builder. A predicate that
// returns no results keeps doing so; use Reset to start over.
func (p Predicate) NewWhere() Predicate {
	return Predicate{b: p.b, noResults: p.noResults}
}

// Reset returns an empty predicate of the same builder.
func (p Predicate) Reset() Predicate {
	return Predicate{b: p.b}
}

// fold joins f to the predicate with the pending combinator.
func (p Predicate) fold(f Fragment) Predicate {
	op := p.pending
	p.pending = CombineAnd
	if p.noResults {
		p.builder().logger.Warn("composing onto a predicate that returns no results",
			"err", wherekit.ErrInvalidComposition, "predicate", p.text, "clause", f.Text)
	}
	switch f.Kind {
	case FragmentTrue:
		return p
	case FragmentFalse:
		if p.text == "" || op == CombineAnd {
			p.noResults = true
		}
		return p
	}
	lex := p.lex()
	params := p.params.Clone()
	text := RenameParams(f.Text, params.Merge(f.Params))
	if f.Complex {
		text = lex.Bracket(text)
	}
	if p.text == "" {
		p.text = text
	} else {
		cur := p.text
		if p.complex && p.chain != op {
			cur = lex.Bracket(cur)
		}
		p.text = cur + " " + op.String() + " " + text
		p.complex = true
		p.chain = op
	}
	p.params = params
	return p
}

func (p Predicate) foldErr(f Fragment, err error) Predicate {
	if err != nil {
		return p.fail(err)
	}
	return p.fold(f)
}

func (p Predicate) fail(err error) Predicate {
	p.err = err
	p.pending = CombineAnd
	return p
}

func (p Predicate) builder() *Builder {
	if p.b == nil {
		return defaultBuilder
	}
	return p.b
}

func (p Predicate) lex() Lexicon { return p.builder().lex }
