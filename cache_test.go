package wherekit_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/wherekit"
)

func TestCacheKey(t *testing.T) {
	k := wherekit.CacheKey{Source: "reporting", Query: "SELECT [ID] FROM [T] WHERE [A] > @p0", Params: "@p0=1"}
	key := k.String()
	assert.True(t, strings.HasPrefix(key, "wherekit:reporting:"))
	assert.Equal(t, key, k.String())

	other := k
	other.Params = "@p0=2"
	assert.NotEqual(t, key, other.String())

	// Query and parameters are separated before hashing.
	a := wherekit.CacheKey{Source: "s", Query: "ab", Params: "c"}
	b := wherekit.CacheKey{Source: "s", Query: "a", Params: "bc"}
	assert.NotEqual(t, a.String(), b.String())
}
