package sql

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/syssam/wherekit"
)

// Op is a binary comparison operator.
type Op uint8

// Comparison operators.
const (
	OpEQ      Op = iota // =
	OpNEQ               // <>
	OpLT                // <
	OpLTE               // <=
	OpGT                // >
	OpGTE               // >=
	OpLike              // LIKE
	OpNotLike           // NOT LIKE
)

var ops = [...]string{
	OpEQ:      "=",
	OpNEQ:     "<>",
	OpLT:      "<",
	OpLTE:     "<=",
	OpGT:      ">",
	OpGTE:     ">=",
	OpLike:    "LIKE",
	OpNotLike: "NOT LIKE",
}

// String implements the fmt.Stringer interface.
func (o Op) String() string {
	if !o.valid() {
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
	return ops[o]
}

func (o Op) valid() bool { return int(o) < len(ops) }

func (o Op) like() bool { return o == OpLike || o == OpNotLike }

// FragmentKind tells the predicate how to fold a fragment.
type FragmentKind uint8

const (
	// FragmentClause is a regular clause with text.
	FragmentClause FragmentKind = iota
	// FragmentTrue is always true; folding it is a no-op.
	FragmentTrue
	// FragmentFalse is always false; folding it sets the no-results sentinel.
	FragmentFalse
)

// Fragment is a single clause produced by one of the fragment functions.
type Fragment struct {
	Text    string
	Params  *ParameterSet
	Complex bool // Complex fragments are bracketed when folded.
	Kind    FragmentKind
}

// Compare renders "left <op> @p". A nil right value compared with OpEQ or
// OpNEQ becomes IS NULL or IS NOT NULL; any other operator fails.
func Compare(lex Lexicon, left string, op Op, right any) (Fragment, error) {
	if strings.TrimSpace(left) == "" {
		return Fragment{}, wherekit.NewArgumentError("column", "must not be empty")
	}
	if !op.valid() {
		return Fragment{}, wherekit.NewArgumentError("operator", fmt.Sprintf("unknown operator %s", op))
	}
	if isNil(right) {
		switch op {
		case OpEQ:
			return Unary(lex, left, "IS NULL")
		case OpNEQ:
			return Unary(lex, left, "IS NOT NULL")
		default:
			return Fragment{}, wherekit.NewArgumentError("value", fmt.Sprintf("NULL cannot be compared with %s", op))
		}
	}
	params := NewParameterSet()
	name := params.Add(right)
	text := lex.QuoteIdentifier(left) + " " + op.String() + " @" + name
	if op.like() {
		text += lex.LikeEscape()
	}
	return Fragment{Text: text, Params: params}, nil
}

// Unary renders "left operator", for example "[Name] IS NULL".
func Unary(lex Lexicon, left, operator string) (Fragment, error) {
	if strings.TrimSpace(left) == "" {
		return Fragment{}, wherekit.NewArgumentError("column", "must not be empty")
	}
	operator = strings.TrimSpace(operator)
	if operator == "" {
		return Fragment{}, wherekit.NewArgumentError("operator", "must not be empty")
	}
	return Fragment{Text: lex.QuoteIdentifier(left) + " " + operator, Params: NewParameterSet()}, nil
}

// InList renders a set-membership test. An empty list is always false, or
// always true when negated. Lexicons with array parameters bind the whole
// list as one value.
func InList[T any](lex Lexicon, column string, values []T, negate bool) (Fragment, error) {
	if strings.TrimSpace(column) == "" {
		return Fragment{}, wherekit.NewArgumentError("column", "must not be empty")
	}
	if len(values) == 0 {
		if negate {
			return Fragment{Kind: FragmentTrue}, nil
		}
		return Fragment{Kind: FragmentFalse}, nil
	}
	for i := range values {
		if isNil(values[i]) {
			return Fragment{}, wherekit.NewArgumentError("values", "IN list cannot contain NULL")
		}
	}
	var (
		b      strings.Builder
		params = NewParameterSet()
	)
	b.WriteString(lex.QuoteIdentifier(column))
	if lex.ArrayParams() {
		name := params.Add(append([]T(nil), values...))
		if negate {
			b.WriteString(" <> ALL(@" + name + ")")
		} else {
			b.WriteString(" = ANY(@" + name + ")")
		}
		return Fragment{Text: b.String(), Params: params}, nil
	}
	if negate {
		b.WriteString(" NOT")
	}
	b.WriteString(" IN (")
	for i, v := range values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("@" + params.Add(v))
	}
	b.WriteByte(')')
	return Fragment{Text: b.String(), Params: params}, nil
}

// InSubquery renders "column [NOT] IN (subquery)".
func InSubquery(lex Lexicon, column, subquery string, params *ParameterSet, negate bool) (Fragment, error) {
	if strings.TrimSpace(column) == "" {
		return Fragment{}, wherekit.NewArgumentError("column", "must not be empty")
	}
	op := " IN "
	if negate {
		op = " NOT IN "
	}
	return Fragment{Text: lex.QuoteIdentifier(column) + op + lex.Bracket(subquery), Params: params.Clone()}, nil
}

// ExistsClause renders "[NOT] EXISTS (subquery)".
func ExistsClause(lex Lexicon, subquery string, params *ParameterSet, negate bool) Fragment {
	text := "EXISTS " + lex.Bracket(subquery)
	if negate {
		text = "NOT " + text
	}
	return Fragment{Text: text, Params: params.Clone()}
}

// EqualsOrNull renders "column = @p OR column IS NULL". A nil value
// renders "column IS NULL" only.
func EqualsOrNull(lex Lexicon, column string, value any) (Fragment, error) {
	if isNil(value) {
		return Unary(lex, column, "IS NULL")
	}
	eq, err := Compare(lex, column, OpEQ, value)
	if err != nil {
		return Fragment{}, err
	}
	eq.Text += " OR " + lex.QuoteIdentifier(column) + " IS NULL"
	eq.Complex = true
	return eq, nil
}

// EmptyCheck renders "column = @p OR column IS NULL" with @p bound to the
// empty string, or its negation "column <> @p AND column IS NOT NULL".
func EmptyCheck(lex Lexicon, column string, negate bool) (Fragment, error) {
	if strings.TrimSpace(column) == "" {
		return Fragment{}, wherekit.NewArgumentError("column", "must not be empty")
	}
	var (
		c      = lex.QuoteIdentifier(column)
		params = NewParameterSet()
		name   = "@" + params.Add("")
	)
	text := c + " = " + name + " OR " + c + " IS NULL"
	if negate {
		text = c + " <> " + name + " AND " + c + " IS NOT NULL"
	}
	return Fragment{Text: text, Params: params, Complex: true}, nil
}

// LikeKind selects where the wildcards of a LIKE pattern go.
type LikeKind uint8

// LIKE pattern kinds.
const (
	LikeContains LikeKind = iota
	LikeStartsWith
	LikeEndsWith
)

// LikePattern escapes text for the lexicon and surrounds it with the
// wildcards of the given kind.
func LikePattern(lex Lexicon, kind LikeKind, text string) string {
	text = lex.EscapeLikePattern(text)
	switch kind {
	case LikeStartsWith:
		return text + "%"
	case LikeEndsWith:
		return "%" + text
	default:
		return "%" + text + "%"
	}
}

// Expr wraps a raw boolean expression and its parameters. Raw expressions
// are always treated as complex.
func Expr(expr string, params *ParameterSet) (Fragment, error) {
	if strings.TrimSpace(expr) == "" {
		return Fragment{}, wherekit.NewArgumentError("expr", "must not be empty")
	}
	for _, name := range ParamNames(expr) {
		if !params.Has(name) {
			return Fragment{}, wherekit.NewArgumentError("params", fmt.Sprintf("missing value for @%s", name))
		}
	}
	return Fragment{Text: expr, Params: params.Clone(), Complex: true}, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
