package sql

import (
	"log/slog"

	"github.com/syssam/wherekit/dialect"
)

// Builder holds the collaborators shared by every predicate it starts: the
// dialect lexicon, the data source predicates are rendered for, the logger
// and the materializer. A Builder is never modified after construction and
// is safe for concurrent use.
type Builder struct {
	lex    Lexicon
	source *DataSource
	logger *slog.Logger
	mat    *Materializer
}

// Option configures a Builder.
type Option func(*Builder)

// WithSource sets the data source predicates of the builder belong to.
// Nested queries from an incompatible source are materialized.
func WithSource(s *DataSource) Option {
	return func(b *Builder) {
		b.source = s
	}
}

// WithLogger sets the logger used for composition warnings.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// WithMaterializer sets the materializer used to resolve nested queries.
func WithMaterializer(m *Materializer) Option {
	return func(b *Builder) {
		b.mat = m
	}
}

// WithLexicon overrides the lexicon picked from the dialect name.
func WithLexicon(l Lexicon) Option {
	return func(b *Builder) {
		b.lex = l
	}
}

// NewBuilder returns a Builder for the given dialect.
func NewBuilder(name string, opts ...Option) (*Builder, error) {
	lex, err := NewLexicon(name)
	if err != nil {
		return nil, err
	}
	b := &Builder{lex: lex}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.mat == nil {
		b.mat = NewMaterializer(WithMaterializerLogger(b.logger))
	}
	return b, nil
}

// Dialect is like NewBuilder but panics if the dialect is unknown.
//
//	b := sql.Dialect(dialect.Postgres)
//	p := b.Where("age", sql.OpGT, 18)
func Dialect(name string, opts ...Option) *Builder {
	b, err := NewBuilder(name, opts...)
	if err != nil {
		panic(err)
	}
	return b
}

// defaultBuilder backs the zero Predicate and the package level P function.
var defaultBuilder = Dialect(dialect.SQLServer)

// P returns an empty predicate rendered with the SQL Server lexicon.
func P() Predicate { return defaultBuilder.P() }

// P returns an empty predicate bound to the builder.
func (b *Builder) P() Predicate {
	return Predicate{b: b}
}

// Where starts a predicate with a single comparison.
func (b *Builder) Where(column string, op Op, value any) Predicate {
	return b.P().Where(column, op, value)
}

// Lexicon returns the builder lexicon.
func (b *Builder) Lexicon() Lexicon { return b.lex }

// Source returns the builder data source. A nil source is the default one.
func (b *Builder) Source() *DataSource { return b.source }

// Logger returns the builder logger.
func (b *Builder) Logger() *slog.Logger { return b.logger }

// Materializer returns the builder materializer.
func (b *Builder) Materializer() *Materializer { return b.mat }

// Select starts a single-column query that runs against the builder source.
func (b *Builder) Select(column string) *SelectQuery {
	return &SelectQuery{b: b, source: b.source, column: column, where: b.P(), allow: true}
}
