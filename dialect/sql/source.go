package sql

// DataSource identifies where a query runs. Sources form a tree: a child
// source (a read replica, a schema of the same database) can be embedded
// into queries of any source that shares its root and its dialect.
//
// A nil *DataSource is the default source.
type DataSource struct {
	name    string
	dialect string
	parent  *DataSource
}

// NewDataSource returns a root data source.
func NewDataSource(name string) *DataSource {
	return &DataSource{name: name}
}

// Child returns a data source whose parent is s.
func (s *DataSource) Child(name string) *DataSource {
	return &DataSource{name: name, parent: s}
}

// WithDialect returns a copy of s that runs on the named dialect. Sources
// without a dialect inherit the one of their closest ancestor.
func (s *DataSource) WithDialect(name string) *DataSource {
	c := *s
	c.dialect = name
	return &c
}

// Dialect returns the dialect of s, or "" when neither s nor its ancestors
// declare one.
func (s *DataSource) Dialect() string {
	for ; s != nil; s = s.parent {
		if s.dialect != "" {
			return s.dialect
		}
	}
	return ""
}

// Name returns the source name, "default" for the nil source.
func (s *DataSource) Name() string {
	if s == nil {
		return "default"
	}
	return s.name
}

// Parent returns the parent source, or nil for a root.
func (s *DataSource) Parent() *DataSource {
	if s == nil {
		return nil
	}
	return s.parent
}

// Root returns the top-most ancestor of s.
func (s *DataSource) Root() *DataSource {
	for s != nil && s.parent != nil {
		s = s.parent
	}
	return s
}

// Compatible reports whether a query from o can be embedded as a sub-select
// into a query from s. Roots are compared by identity, then by name. Sources
// declaring different dialects are never compatible.
func (s *DataSource) Compatible(o *DataSource) bool {
	if da, db := s.Dialect(), o.Dialect(); da != "" && db != "" && da != db {
		return false
	}
	a, b := s.Root(), o.Root()
	if a == nil || b == nil {
		return a == b
	}
	return a == b || a.name == b.name
}

// String implements the fmt.Stringer interface.
func (s *DataSource) String() string {
	if s.Parent() == nil {
		return s.Name()
	}
	return s.parent.String() + "/" + s.name
}
