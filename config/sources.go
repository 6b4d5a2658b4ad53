package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/syssam/wherekit/dialect"
	"github.com/syssam/wherekit/dialect/sql"
)

// Sources is the registry of the configured data sources. Sources sharing a
// root and a dialect are compatible: nested queries between them are
// embedded as sub-selects instead of being materialized.
type Sources struct {
	names    []string
	sources  map[string]*sql.DataSource
	configs  map[string]SourceConfig
	dialects map[string]string
}

func newSources(defaultDialect string, cfgs []SourceConfig) (*Sources, error) {
	s := &Sources{
		sources:  make(map[string]*sql.DataSource, len(cfgs)),
		configs:  make(map[string]SourceConfig, len(cfgs)),
		dialects: make(map[string]string, len(cfgs)),
	}
	for _, sc := range cfgs {
		if strings.TrimSpace(sc.Name) == "" {
			return nil, errors.New("source name must not be empty")
		}
		if _, ok := s.configs[sc.Name]; ok {
			return nil, fmt.Errorf("source `%s` is declared twice", sc.Name)
		}
		s.configs[sc.Name] = sc
		s.names = append(s.names, sc.Name)
	}
	for _, name := range s.names {
		if _, err := s.resolve(name, defaultDialect, nil); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// resolve creates the data source of name after its ancestors. A child
// inherits the dialect of its parent unless it declares one.
func (s *Sources) resolve(name, defaultDialect string, visiting []string) (*sql.DataSource, error) {
	if src, ok := s.sources[name]; ok {
		return src, nil
	}
	for _, v := range visiting {
		if v == name {
			return nil, fmt.Errorf("source `%s` has a cyclic parent chain: %s", name, strings.Join(append(visiting, name), " -> "))
		}
	}
	sc, ok := s.configs[name]
	if !ok {
		return nil, fmt.Errorf("source `%s` references unknown parent `%s`", visiting[len(visiting)-1], name)
	}

	var (
		src *sql.DataSource
		d   = defaultDialect
	)
	if sc.Parent == "" {
		src = sql.NewDataSource(name)
	} else {
		parent, err := s.resolve(sc.Parent, defaultDialect, append(visiting, name))
		if err != nil {
			return nil, err
		}
		src = parent.Child(name)
		d = s.dialects[sc.Parent]
	}
	if sc.Dialect != "" {
		var err error
		if d, err = dialect.Normalize(sc.Dialect); err != nil {
			return nil, fmt.Errorf("source `%s`: %w", name, err)
		}
	}
	src = src.WithDialect(d)
	s.sources[name] = src
	s.dialects[name] = d
	return src, nil
}

// Names returns the source names in declaration order.
func (s *Sources) Names() []string {
	return append([]string(nil), s.names...)
}

// Get returns the data source declared under name.
func (s *Sources) Get(name string) (*sql.DataSource, bool) {
	src, ok := s.sources[name]
	return src, ok
}

// Dialect returns the dialect of the named source.
func (s *Sources) Dialect(name string) string {
	return s.dialects[name]
}

// Builder returns a predicate builder for the named source. Options are
// applied after the source and its dialect.
func (s *Sources) Builder(name string, opts ...sql.Option) (*sql.Builder, error) {
	src, ok := s.sources[name]
	if !ok {
		return nil, fmt.Errorf("unknown source `%s`", name)
	}
	return sql.NewBuilder(s.dialects[name], append([]sql.Option{sql.WithSource(src)}, opts...)...)
}

// Open opens a database connection for the named source. The DSN is
// validated for the dialects that support it; no connection is made until
// the driver is used.
func (s *Sources) Open(name string) (*sql.Driver, error) {
	sc, ok := s.configs[name]
	if !ok {
		return nil, fmt.Errorf("unknown source `%s`", name)
	}
	if sc.DSN == "" {
		return nil, fmt.Errorf("source `%s` has no dsn", name)
	}

	var driverName string
	switch d := s.dialects[name]; d {
	case dialect.Postgres:
		if strings.HasPrefix(sc.DSN, "postgres://") || strings.HasPrefix(sc.DSN, "postgresql://") {
			if _, err := pq.ParseURL(sc.DSN); err != nil {
				return nil, fmt.Errorf("invalid postgres dsn for source `%s`: %w", name, err)
			}
		}
		driverName = "postgres"
	case dialect.MySQL:
		if _, err := mysql.ParseDSN(sc.DSN); err != nil {
			return nil, fmt.Errorf("invalid mysql dsn for source `%s`: %w", name, err)
		}
		driverName = "mysql"
	case dialect.SQLite:
		driverName = "sqlite"
	default:
		return nil, fmt.Errorf("no database driver for dialect %s of source `%s`", d, name)
	}

	drv, err := sql.Open(driverName, sc.DSN)
	if err != nil {
		return nil, fmt.Errorf("cannot open source `%s`: %w", name, err)
	}
	return drv, nil
}
