// pkg/defaults/defaults_test.go
package defaults

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-language/mopack/pkg/types"
)

func TestLookup(t *testing.T) {
	e, ok := Lookup("zlib")
	require.True(t, ok)
	assert.Equal(t, "zlib", e.Name)
	assert.Contains(t, e.Genera, "linkage")
	assert.Contains(t, e.Genera, "apt")

	_, ok = Lookup("no-such-package")
	assert.False(t, ok)
}

func TestGet(t *testing.T) {
	assert.Equal(t, "zlib1g-dev", Get("zlib", "apt", "remote"))
	assert.Equal(t, []any{"zlib.h"}, Get("zlib", "linkage", "headers"))
	assert.Equal(t, "boost_$submodule", Get("boost", "linkage", "submodule_map"))
	assert.Equal(t, types.Unset, Get("zlib", "apt", "repository"))
	assert.Equal(t, types.Unset, Get("zlib", "conan", "remote"))
	assert.Equal(t, types.Unset, Get("unknown", "apt", "remote"))
}

func TestResolve(t *testing.T) {
	c := Resolve("zlib", "apt", "remote", types.String)

	v, err := c(types.Field{"remote"}, types.Unset)
	require.NoError(t, err)
	assert.Equal(t, "zlib1g-dev", v)

	v, err = c(types.Field{"remote"}, "libz-dev")
	require.NoError(t, err)
	assert.Equal(t, "libz-dev", v)

	_, err = Resolve("unknown", "apt", "remote", types.String)(types.Field{"remote"}, types.Unset)
	assert.Error(t, err)
}
