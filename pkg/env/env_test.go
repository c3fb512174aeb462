// pkg/env/env_test.go
package env

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindLibrary(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/usr/lib/libssl.so.3", nil, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/usr/local/lib/libz.a", nil, 0o644))

	e := New(fs, "linux")

	lib := e.FindLibrary("ssl")
	require.NotNil(t, lib)
	assert.Equal(t, "/usr/lib", lib.Dir)
	assert.Equal(t, ".so", lib.Type)
	assert.False(t, lib.IsStatic)

	lib = e.FindLibrary("z")
	require.NotNil(t, lib)
	assert.True(t, lib.IsStatic)

	assert.False(t, e.HasLibrary("missing"))
}

func TestFindHeaderAndPkgConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/opt/sysroot/usr/include/zlib.h", nil, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/extra/pc/zlib.pc", nil, 0o644))

	e := New(fs, "linux")
	e.Root = "/opt/sysroot"
	e.Extra.PkgConfig = []string{"/extra/pc"}

	dir, ok := e.FindHeader("zlib.h")
	require.True(t, ok)
	assert.Equal(t, "/opt/sysroot/usr/include", dir)

	pc, ok := e.FindPkgConfig("zlib")
	require.True(t, ok)
	assert.Equal(t, "/extra/pc/zlib.pc", pc)

	_, ok = e.FindHeader("missing.h")
	assert.False(t, ok)
}

func TestLayouts(t *testing.T) {
	assert.Empty(t, SystemLayout("windows").Libraries)
	assert.Contains(t, SystemLayout("darwin").Includes, "/opt/homebrew/include")
	assert.Equal(t, []string{".dylib", ".a"}, LibraryExtensions("darwin"))
}
