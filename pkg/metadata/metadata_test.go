// pkg/metadata/metadata_test.go
package metadata

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-language/mopack/pkg/options"
	"github.com/arc-language/mopack/pkg/origins"
	"github.com/arc-language/mopack/pkg/types"
)

func makePackage(t *testing.T, name string, raw map[string]any, resolved bool) origins.Package {
	t.Helper()
	pkg, err := origins.Make(name, raw, origins.Source{
		Options:    options.Default(),
		ConfigFile: "/proj/mopack.yml",
	})
	require.NoError(t, err)
	pkg.SetResolved(resolved)
	return pkg
}

func TestSaveLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	md := New(fs, "/proj/mopack", nil)
	md.SetFiles([]string{"/proj/mopack.yml"}, nil)
	md.AddPackage(makePackage(t, "foo", map[string]any{"origin": "system", "headers": "foo.h"}, true))
	md.AddPackage(makePackage(t, "bar", map[string]any{"origin": "apt"}, false))
	require.NoError(t, md.Save())

	raw, err := afero.ReadFile(fs, "/proj/mopack/mopack.json")
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.EqualValues(t, Version, doc["version"])
	assert.Equal(t, map[string]any{
		"explicit": []any{"/proj/mopack.yml"},
		"implicit": []any{},
	}, doc["config_files"])
	assert.Contains(t, doc["metadata"], "options")
	assert.Contains(t, doc["metadata"], "packages")

	loaded, err := Load(fs, "/proj/mopack")
	require.NoError(t, err)
	assert.Equal(t, "/proj/mopack", loaded.PkgDir())
	assert.Equal(t, []string{"/proj/mopack.yml"}, loaded.Files())
	assert.Empty(t, loaded.ImplicitFiles())

	pkgs := loaded.Packages()
	require.Len(t, pkgs, 2)
	assert.Equal(t, "foo", pkgs[0].Name())
	assert.Equal(t, "bar", pkgs[1].Name())
	assert.True(t, pkgs[0].Resolved())
	assert.False(t, pkgs[1].Resolved())
	assert.Equal(t, "/proj/mopack.yml", pkgs[0].ConfigFile())

	orig, _ := md.Lookup("foo")
	assert.True(t, origins.Equal(orig, pkgs[0]))
}

func TestLoadVersion(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/pkg/mopack.json", []byte(`{"version": 2}`), 0644))

	_, err := Load(fs, "/pkg")
	var verr *VersionError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 2, verr.Saved)
	assert.Equal(t, Version, verr.Expected)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestLoadOlderPackageVersion(t *testing.T) {
	fs := afero.NewMemMapFs()
	md := New(fs, "/pkg", nil)
	require.NoError(t, md.Save())

	raw, err := afero.ReadFile(fs, "/pkg/mopack.json")
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	doc["metadata"].(map[string]any)["packages"] = []any{map[string]any{
		"origin": "system", "name": "foo", "_version": 7, "config_file": nil,
	}}
	raw, err = json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/pkg/mopack.json", raw, 0644))

	_, err = Load(fs, "/pkg")
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestTryLoad(t *testing.T) {
	fs := afero.NewMemMapFs()

	md, err := TryLoad(fs, "/pkg", false)
	require.NoError(t, err)
	assert.Empty(t, md.Packages())
	assert.True(t, md.Options().Finalized())

	_, err = TryLoad(fs, "/pkg", true)
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, afero.WriteFile(fs, "/pkg/mopack.json", []byte("{"), 0644))
	_, err = TryLoad(fs, "/pkg", false)
	assert.Error(t, err)
}

func TestPackage(t *testing.T) {
	md := New(afero.NewMemMapFs(), "/pkg", nil)
	md.AddPackage(makePackage(t, "foo", map[string]any{"origin": "system"}, true))
	md.AddPackage(makePackage(t, "bar", map[string]any{"origin": "apt"}, false))

	pkg, err := md.Package("foo", true)
	require.NoError(t, err)
	assert.Equal(t, "foo", pkg.Name())

	_, err = md.Package("bar", false)
	assert.ErrorIs(t, err, ErrUnresolved)

	_, err = md.Package("zlib", true)
	assert.ErrorIs(t, err, ErrNotFound)

	pkg, err = md.Package("zlib", false)
	require.NoError(t, err)
	assert.Equal(t, "system", pkg.Origin())
	assert.True(t, pkg.Resolved())
	_, ok := md.Lookup("zlib")
	assert.False(t, ok)
}

func TestLinkageStrict(t *testing.T) {
	md := New(afero.NewMemMapFs(), "/pkg", nil)
	md.AddPackage(makePackage(t, "bar", map[string]any{"origin": "apt"}, false))

	_, err := md.Linkage(context.Background(), "bar", nil)
	assert.ErrorIs(t, err, ErrUnresolved)

	md.Options().Common.Strict = true
	_, err = md.Linkage(context.Background(), "zlib", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddPackageReplaces(t *testing.T) {
	md := New(afero.NewMemMapFs(), "/pkg", nil)
	md.AddPackage(makePackage(t, "foo", map[string]any{"origin": "system"}, true))
	md.AddPackage(makePackage(t, "bar", map[string]any{"origin": "system"}, true))
	md.AddPackage(makePackage(t, "foo", map[string]any{"origin": "apt"}, false))

	pkgs := md.Packages()
	require.Len(t, pkgs, 2)
	assert.Equal(t, "foo", pkgs[0].Name())
	assert.Equal(t, "apt", pkgs[0].Origin())
}
