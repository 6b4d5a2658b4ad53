package sql

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/syssam/wherekit/dialect"
)

// BindStyle describes how a driver expects query arguments.
type BindStyle uint8

// Supported bind styles.
const (
	BindNamed      BindStyle = iota // @name, one sql.Named argument per distinct name
	BindNumbered                    // $1, one argument per distinct name
	BindPositional                  // ?, one argument per occurrence
)

// Lexicon renders the dialect specific parts of a predicate: identifier
// quoting, bracketing, LIKE escaping and argument placeholders.
type Lexicon interface {
	// Dialect returns the dialect name.
	Dialect() string
	// QuoteIdentifier quotes a column or table reference. Text that is not a
	// plain (optionally dotted) identifier is returned unchanged.
	QuoteIdentifier(name string) string
	// Bracket wraps an expression in parentheses.
	Bracket(expr string) string
	// EscapeLikePattern escapes the LIKE wildcards of s.
	EscapeLikePattern(s string) string
	// LikeEscape returns the clause appended after a LIKE operand, if any.
	LikeEscape() string
	// ArrayParams reports whether IN lists are bound as a single array.
	ArrayParams() bool
	// BindStyle returns the placeholder style of the dialect driver.
	BindStyle() BindStyle
	// Placeholder renders the placeholder of the named argument at the
	// given 1-based position.
	Placeholder(name string, pos int) string
}

// lexicon is the Lexicon implementation shared by all supported dialects.
type lexicon struct {
	name       string
	open       string
	close      string
	escaper    *strings.Replacer
	likeEscape string
	array      bool
	style      BindStyle
}

var (
	sqlServerLexicon = &lexicon{
		name:    dialect.SQLServer,
		open:    "[",
		close:   "]",
		escaper: strings.NewReplacer("[", "[[]", "%", "[%]", "_", "[_]"),
		style:   BindNamed,
	}
	postgresLexicon = &lexicon{
		name:    dialect.Postgres,
		open:    `"`,
		close:   `"`,
		escaper: backslashEscaper,
		array:   true,
		style:   BindNumbered,
	}
	mysqlLexicon = &lexicon{
		name:    dialect.MySQL,
		open:    "`",
		close:   "`",
		escaper: backslashEscaper,
		style:   BindPositional,
	}
	sqliteLexicon = &lexicon{
		name:       dialect.SQLite,
		open:       "`",
		close:      "`",
		escaper:    backslashEscaper,
		likeEscape: ` ESCAPE '\'`,
		style:      BindPositional,
	}
	backslashEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
)

// validIdentifierRe matches a single unquoted SQL identifier.
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// NewLexicon returns the Lexicon of the given dialect. Driver aliases such
// as "mssql" or "postgresql" are accepted.
func NewLexicon(name string) (Lexicon, error) {
	d, err := dialect.Normalize(name)
	if err != nil {
		return nil, err
	}
	switch d {
	case dialect.Postgres:
		return postgresLexicon, nil
	case dialect.MySQL:
		return mysqlLexicon, nil
	case dialect.SQLite:
		return sqliteLexicon, nil
	default:
		return sqlServerLexicon, nil
	}
}

func (l *lexicon) Dialect() string { return l.name }

func (l *lexicon) QuoteIdentifier(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || name == "*" || strings.HasPrefix(name, l.open) {
		return name
	}
	parts := strings.Split(name, ".")
	for _, p := range parts {
		if !isValidIdentifier(p) && p != "*" {
			return name
		}
	}
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte('.')
		}
		if p == "*" {
			b.WriteString(p)
			continue
		}
		b.WriteString(l.open)
		b.WriteString(p)
		b.WriteString(l.close)
	}
	return b.String()
}

func (l *lexicon) Bracket(expr string) string { return "(" + expr + ")" }

func (l *lexicon) EscapeLikePattern(s string) string { return l.escaper.Replace(s) }

func (l *lexicon) LikeEscape() string { return l.likeEscape }

func (l *lexicon) ArrayParams() bool { return l.array }

func (l *lexicon) BindStyle() BindStyle { return l.style }

func (l *lexicon) Placeholder(name string, pos int) string {
	switch l.style {
	case BindNumbered:
		return "$" + strconv.Itoa(pos)
	case BindPositional:
		return "?"
	default:
		return "@" + name
	}
}
