package sql

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/text/cases"
)

// Equal reports whether two predicates are equivalent: same text ignoring
// case and parameter names, same parameter values in order of appearance,
// same no-results state.
//
//	a := b.Where("Age", sql.OpGT, 18)
//	c := b.Where("age", sql.OpGT, 18)
//	sql.Equal(a, c) // true
func Equal(a, b Predicate) bool {
	if a.noResults != b.noResults || a.complex != b.complex {
		return false
	}
	ta, va := canonical(a)
	tb, vb := canonical(b)
	if ta != tb || len(va) != len(vb) {
		return false
	}
	for i := range va {
		if !bytes.Equal(va[i], vb[i]) {
			return false
		}
	}
	return true
}

// Hash returns a hash of the canonical form of p. Equal predicates have
// equal hashes.
func Hash(p Predicate) uint64 {
	text, values := canonical(p)
	d := xxhash.New()
	_, _ = d.WriteString(text)
	for _, v := range values {
		_, _ = d.Write([]byte{0})
		_, _ = d.Write(v)
	}
	_, _ = d.WriteString(strconv.FormatBool(p.noResults))
	_, _ = d.WriteString(strconv.FormatBool(p.complex))
	return d.Sum64()
}

// Key returns the hash of p as a hex string.
func Key(p Predicate) string {
	return fmt.Sprintf("%016x", Hash(p))
}

// canonical returns the case folded text of p with parameters renamed to
// p0, p1, ... in order of first appearance, and the encoded values in the
// same order. Parameters not referenced by the text come last.
func canonical(p Predicate) (string, [][]byte) {
	var (
		names   []string
		renamed = make(map[string]string)
	)
	text := rewriteParams(p.text, func(name string) string {
		to, ok := renamed[name]
		if !ok {
			to = "p" + strconv.Itoa(len(names))
			renamed[name] = to
			names = append(names, name)
		}
		return "@" + to
	})
	for _, name := range p.params.Names() {
		if _, ok := renamed[name]; !ok {
			renamed[name] = "p" + strconv.Itoa(len(names))
			names = append(names, name)
		}
	}
	values := make([][]byte, len(names))
	for i, name := range names {
		v, _ := p.params.Get(name)
		values[i] = encodeValue(v)
	}
	return cases.Fold().String(text), values
}

func encodeValue(v any) []byte {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return []byte(fmt.Sprintf("%T:%v", v, v))
	}
	return b
}
