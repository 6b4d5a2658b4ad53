package sql

import (
	"fmt"
	"strconv"
	"strings"
)

// Param is a named parameter bound to a predicate. Names are stored without
// the leading '@' used in predicate text.
type Param struct {
	Name  string
	Value any
}

// ParameterSet is an ordered set of named parameters.
//
// A ParameterSet attached to a Predicate is never modified; Predicate.Params
// returns a clone. Merging two sets renames colliding names instead of
// overwriting them.
type ParameterSet struct {
	params []Param
	index  map[string]int
	seq    int // next candidate index for generated names
}

// NewParameterSet returns a set holding the given parameters. A later
// parameter with the same name replaces an earlier one.
func NewParameterSet(params ...Param) *ParameterSet {
	s := &ParameterSet{}
	for _, p := range params {
		s.Set(p.Name, p.Value)
	}
	return s
}

// Len returns the number of parameters.
func (s *ParameterSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.params)
}

// Get returns the value bound to name.
func (s *ParameterSet) Get(name string) (any, bool) {
	if s == nil {
		return nil, false
	}
	i, ok := s.index[trimParam(name)]
	if !ok {
		return nil, false
	}
	return s.params[i].Value, true
}

// Has reports whether name is bound.
func (s *ParameterSet) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Names returns the parameter names in insertion order.
func (s *ParameterSet) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.params))
	for i, p := range s.params {
		names[i] = p.Name
	}
	return names
}

// All returns a copy of the parameters in insertion order.
func (s *ParameterSet) All() []Param {
	if s == nil {
		return nil
	}
	return append([]Param(nil), s.params...)
}

// Clone returns a deep copy of the set structure. Values are shared.
func (s *ParameterSet) Clone() *ParameterSet {
	c := &ParameterSet{}
	if s == nil {
		return c
	}
	c.params = append(make([]Param, 0, len(s.params)), s.params...)
	c.index = make(map[string]int, len(s.index))
	for k, v := range s.index {
		c.index[k] = v
	}
	c.seq = s.seq
	return c
}

// Set binds value to name, replacing any previous value.
func (s *ParameterSet) Set(name string, value any) {
	name = trimParam(name)
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[name]; ok {
		s.params[i].Value = value
		return
	}
	s.index[name] = len(s.params)
	s.params = append(s.params, Param{Name: name, Value: value})
}

// Add binds value to a freshly generated name (p0, p1, ...) and returns it.
func (s *ParameterSet) Add(value any) string {
	name := s.fresh(nil)
	s.Set(name, value)
	return name
}

// Merge adds every parameter of other to s. Names already present in s are
// renamed to fresh names; the returned map holds old → new names and is
// empty when nothing collided. Predicate text coming with other must be
// rewritten with the returned map (see RenameParams).
func (s *ParameterSet) Merge(other *ParameterSet) map[string]string {
	if other.Len() == 0 {
		return nil
	}
	var renames map[string]string
	for _, p := range other.params {
		if !s.Has(p.Name) {
			s.Set(p.Name, p.Value)
			continue
		}
		name := s.fresh(other)
		if renames == nil {
			renames = make(map[string]string)
		}
		renames[p.Name] = name
		s.Set(name, p.Value)
	}
	return renames
}

// String renders the set as "@p0=18, @p1=65".
func (s *ParameterSet) String() string {
	if s.Len() == 0 {
		return ""
	}
	parts := make([]string, len(s.params))
	for i, p := range s.params {
		parts[i] = fmt.Sprintf("@%s=%v", p.Name, p.Value)
	}
	return strings.Join(parts, ", ")
}

// fresh returns the first generated name that is bound neither in s nor in
// the optional incoming set.
func (s *ParameterSet) fresh(incoming *ParameterSet) string {
	for {
		name := "p" + strconv.Itoa(s.seq)
		s.seq++
		if !s.Has(name) && !incoming.Has(name) {
			return name
		}
	}
}

func trimParam(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "@")
}

// RenameParams rewrites @name placeholders in text according to renames.
// Placeholders are replaced in a single pass, so chains such as p0→p1,
// p1→p2 are applied simultaneously.
func RenameParams(text string, renames map[string]string) string {
	if len(renames) == 0 {
		return text
	}
	return rewriteParams(text, func(name string) string {
		if to, ok := renames[name]; ok {
			return "@" + to
		}
		return "@" + name
	})
}

// ParamNames returns the distinct placeholder names referenced by text in
// order of first appearance.
func ParamNames(text string) []string {
	var (
		names []string
		seen  = make(map[string]struct{})
	)
	rewriteParams(text, func(name string) string {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
		return "@" + name
	})
	return names
}

// rewriteParams calls fn for each @name placeholder in text and substitutes
// its result. Quoted strings, quoted identifiers, [bracketed] identifiers,
// line comments and @@system variables are copied verbatim.
func rewriteParams(text string, fn func(name string) string) string {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); {
		switch c := text[i]; {
		case c == '\'' || c == '"' || c == '`':
			j := skipQuoted(text, i, c, c)
			b.WriteString(text[i:j])
			i = j
		case c == '[':
			j := skipQuoted(text, i, '[', ']')
			b.WriteString(text[i:j])
			i = j
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			j := strings.IndexByte(text[i:], '\n')
			if j < 0 {
				j = len(text) - i
			}
			b.WriteString(text[i : i+j])
			i += j
		case c == '@' && i+1 < len(text) && text[i+1] == '@':
			j := i + 2
			for j < len(text) && isIdentChar(text[j]) {
				j++
			}
			b.WriteString(text[i:j])
			i = j
		case c == '@' && i+1 < len(text) && isIdentStart(text[i+1]) && (i == 0 || !isIdentChar(text[i-1])):
			j := i + 1
			for j < len(text) && isIdentChar(text[j]) {
				j++
			}
			b.WriteString(fn(text[i+1 : j]))
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// skipQuoted returns the index just past the quoted section starting at i.
// A doubled closing character is an escaped one.
func skipQuoted(text string, i int, open, close byte) int {
	j := i + 1
	for j < len(text) {
		if text[j] == close {
			if close == open && j+1 < len(text) && text[j+1] == close {
				j += 2
				continue
			}
			return j + 1
		}
		j++
	}
	return len(text)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
