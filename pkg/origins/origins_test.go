// pkg/origins/origins_test.go
package origins

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-language/mopack/pkg/logging"
	"github.com/arc-language/mopack/pkg/options"
	"github.com/arc-language/mopack/pkg/path"
	"github.com/arc-language/mopack/pkg/types"
)

type fakeMetadata struct {
	fs   afero.Fs
	opts *options.Options
}

func (m *fakeMetadata) PkgDir() string             { return "/pkg" }
func (m *fakeMetadata) FS() afero.Fs               { return m.fs }
func (m *fakeMetadata) Options() *options.Options { return m.opts }
func (m *fakeMetadata) Linkage(context.Context, string, []string) (map[string]any, error) {
	return nil, nil
}

func newMetadata(opts *options.Options) *fakeMetadata {
	if opts == nil {
		opts = options.Default()
	}
	for _, v := range []string{"CMAKE", "NINJA", "CONAN", "PATCH", "PKG_CONFIG"} {
		opts.Common.Env[v] = ""
	}
	return &fakeMetadata{fs: afero.NewMemMapFs(), opts: opts}
}

type fakeChild struct {
	export *Export
	names  []string
}

func (c fakeChild) Export() *Export        { return c.export }
func (c fakeChild) PackageNames() []string { return c.names }

type fakeParent struct {
	export *Export
	names  []string
	loaded []string
}

func (f *fakeParent) LoadChild(dir string, _ Package) (ChildConfig, error) {
	f.loaded = append(f.loaded, dir)
	if f.export == nil {
		return nil, nil
	}
	return fakeChild{f.export, f.names}, nil
}

type fakeGit struct {
	fs     afero.Fs
	clones []Rev
	pulls  []string
}

func (g *fakeGit) Clone(_ context.Context, _, dir string, rev Rev, _ io.Writer) error {
	g.clones = append(g.clones, rev)
	return g.fs.MkdirAll(dir, 0755)
}

func (g *fakeGit) Pull(_ context.Context, dir string, _ io.Writer) error {
	g.pulls = append(g.pulls, dir)
	return nil
}

func recordCalls(calls *[][]string, fail bool) context.Context {
	return logging.WithRunner(context.Background(), func(_ context.Context, c logging.Call) error {
		*calls = append(*calls, c.Args)
		if fail {
			return errors.New("exit status 1")
		}
		return nil
	})
}

func source(opts *options.Options) Source {
	return Source{Options: opts, ConfigFile: "/src/mopack.yml"}
}

func tarball(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name, Mode: 0644, Size: int64(len(body)), Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestMakeErrors(t *testing.T) {
	opts := options.Default()
	tests := []struct {
		name string
		raw  map[string]any
		msg  string
	}{
		{"missing origin", map[string]any{}, "missing required field 'origin'"},
		{"unknown origin", map[string]any{"origin": "svn"}, `unknown origin "svn"`},
		{"reserved", map[string]any{"origin": "system", "config_file": "x"}, "config_file is reserved"},
		{"directory path", map[string]any{"origin": "directory"}, "path: field is required"},
		{"tarball source", map[string]any{
			"origin": "tarball", "path": "foo.tar.gz", "url": "https://example.com/foo.tar.gz",
		}, "exactly one of `path` or `url` must be specified"},
		{"git revs", map[string]any{
			"origin": "git", "repository": "https://example.com/foo.git", "tag": "v1", "branch": "dev",
		}, "only one of `tag`, `branch`, or `commit` may be specified"},
		{"system linkage", map[string]any{
			"origin": "system", "headers": "foo.h", "linkage": "pkg_config",
		}, "linkage options cannot be combined with `linkage`"},
		{"unexpected", map[string]any{"origin": "system", "color": "red"}, `unexpected field "color"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Make("foo", tt.raw, source(opts))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestMakeWrapsErrors(t *testing.T) {
	var wrapped []error
	src := source(options.Default())
	src.Wrap = func(err error) error {
		wrapped = append(wrapped, err)
		return err
	}
	_, err := Make("foo", map[string]any{"origin": "apt", "remote": 42}, src)
	require.Error(t, err)
	require.Len(t, wrapped, 1)

	var fe *types.FieldError
	require.ErrorAs(t, err, &fe)
	require.NotEmpty(t, fe.Field)
	assert.Equal(t, "remote", fe.Field[0])
}

func TestSystemPackage(t *testing.T) {
	md := newMetadata(nil)
	pkg, err := Make("foo", map[string]any{
		"origin":     "system",
		"headers":    "foo.h",
		"submodules": []any{"a", "b"},
	}, source(md.opts))
	require.NoError(t, err)

	sys := pkg.(*SystemPackage)
	assert.Equal(t, "system", sys.LinkageConfig().Type())
	require.NotNil(t, sys.Submodules())
	assert.True(t, sys.Submodules().Required)
	assert.False(t, pkg.NeedsDependencies())
	assert.True(t, pkg.ShouldDeploy())

	_, err = pkg.Linkage(context.Background(), md, []string{"c"})
	assert.ErrorContains(t, err, "c")
	_, err = pkg.Linkage(context.Background(), md, nil)
	assert.Error(t, err)

	require.NoError(t, pkg.Resolve(context.Background(), md))
	assert.True(t, pkg.Resolved())
}

func TestRoundTrip(t *testing.T) {
	opts := options.Default()
	configs := []map[string]any{
		{"origin": "system", "headers": "foo.h"},
		{"origin": "apt", "remote": "libfoo-dev", "repository": "ppa:foo/bar"},
		{"origin": "conan", "remote": "foo/1.0", "build": true, "options": map[string]any{"shared": true}},
		{"origin": "tarball", "url": "https://example.com/foo.tar.gz", "build": "cmake"},
		{"origin": "git", "repository": "https://example.com/foo.git", "tag": "v1.0", "build": "none"},
		{"origin": "directory", "path": "foo", "build": "cmake", "deploy": false},
	}
	for _, raw := range configs {
		t.Run(raw["origin"].(string), func(t *testing.T) {
			pkg, err := Make("foo", raw, source(opts))
			require.NoError(t, err)

			data, err := Dehydrate(pkg)
			require.NoError(t, err)
			assert.Equal(t, raw["origin"], data["origin"])

			back, err := Rehydrate(data, opts)
			require.NoError(t, err)
			assert.Equal(t, pkg.Name(), back.Name())
			assert.Equal(t, pkg.ConfigFile(), back.ConfigFile())
			assert.Equal(t, pkg.ShouldDeploy(), back.ShouldDeploy())
			assert.True(t, Equal(pkg, back))
		})
	}
}

func TestEqualIgnoresTransient(t *testing.T) {
	opts := options.Default()
	raw := map[string]any{"origin": "system", "headers": "foo.h"}
	a, err := Make("foo", raw, Source{Options: opts, ConfigFile: "/a/mopack.yml"})
	require.NoError(t, err)
	b, err := Make("foo", raw, Source{Options: opts, ConfigFile: "/b/mopack.yml", Parent: "bar"})
	require.NoError(t, err)
	b.SetResolved(true)
	assert.True(t, Equal(a, b))

	c, err := Make("foo", map[string]any{"origin": "system", "headers": "bar.h"}, source(opts))
	require.NoError(t, err)
	assert.False(t, Equal(a, c))

	d, err := Make("foo", map[string]any{"origin": "apt"}, source(opts))
	require.NoError(t, err)
	assert.False(t, Equal(a, d))
}

func TestDirectoryFetch(t *testing.T) {
	md := newMetadata(nil)
	pkg, err := Make("foo", map[string]any{
		"origin": "directory", "path": "foo", "build": "cmake",
	}, source(md.opts))
	require.NoError(t, err)
	dir := pkg.(*DirectoryPackage)
	assert.False(t, dir.Finalized())

	assert.ErrorContains(t, pkg.Resolve(context.Background(), md), "has not been fetched")

	parent := &fakeParent{}
	_, err = pkg.Fetch(context.Background(), md, parent)
	require.NoError(t, err)
	assert.Equal(t, []string{"/src/foo"}, parent.loaded)
	assert.True(t, dir.Finalized())
	assert.Equal(t, []string{"cmake"}, pkg.BuilderTypes())
	assert.Equal(t, "pkg_config", dir.LinkageConfig().Type())

	values, err := dir.PathValues(md)
	require.NoError(t, err)
	assert.Equal(t, "/src/foo", values[path.SrcDir])
	assert.Equal(t, "/src", values[path.CfgDir])
	assert.Contains(t, values, path.BuildDir)

	data, err := Dehydrate(pkg)
	require.NoError(t, err)
	back, err := Rehydrate(data, md.opts)
	require.NoError(t, err)
	assert.True(t, back.(*DirectoryPackage).Finalized())
	assert.True(t, Equal(pkg, back))
}

func TestSDistEnv(t *testing.T) {
	md := newMetadata(nil)
	md.opts.Common.Env["CFLAGS"] = "-O2"
	pkg, err := Make("foo", map[string]any{
		"origin": "directory",
		"path":   "foo",
		"env":    map[string]any{"CC": "clang", "CFLAGS": "-g"},
		"build": map[string]any{
			"type":           "custom",
			"build_commands": []any{`${{ env["CC"] }} -c foo.c`},
		},
	}, source(md.opts))
	require.NoError(t, err)
	dir := pkg.(*DirectoryPackage)
	assert.Equal(t, "clang", dir.Env()["CC"])
	assert.Equal(t, "-g", dir.Env()["CFLAGS"])

	_, err = pkg.Fetch(context.Background(), md, &fakeParent{})
	require.NoError(t, err)

	var calls []logging.Call
	ctx := logging.WithRunner(context.Background(), func(_ context.Context, c logging.Call) error {
		calls = append(calls, c)
		return nil
	})
	require.NoError(t, pkg.Resolve(ctx, md))
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"clang", "-c", "foo.c"}, calls[0].Args)
	assert.Contains(t, calls[0].Env, "CC=clang")
	assert.Contains(t, calls[0].Env, "CFLAGS=-g")

	data, err := Dehydrate(pkg)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"CC": "clang", "CFLAGS": "-g"}, data["env"])
	back, err := Rehydrate(data, md.opts)
	require.NoError(t, err)
	assert.Equal(t, "clang", back.(*DirectoryPackage).Env()["CC"])
	assert.True(t, Equal(pkg, back))

	_, err = Make("foo", map[string]any{
		"origin": "directory", "path": "foo", "env": map[string]any{"CC": 1},
	}, source(md.opts))
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestSDistDependencies(t *testing.T) {
	md := newMetadata(nil)
	raw := map[string]any{"origin": "directory", "path": "foo"}
	pkg, err := Make("foo", raw, source(md.opts))
	require.NoError(t, err)
	assert.Nil(t, pkg.(*DirectoryPackage).Dependencies())

	parent := &fakeParent{
		export: &Export{Build: "none", Linkage: types.Unset, Submodules: types.Unset},
		names:  []string{"bar", "baz"},
	}
	_, err = pkg.Fetch(context.Background(), md, parent)
	require.NoError(t, err)
	assert.Equal(t, []string{"bar", "baz"}, pkg.(*DirectoryPackage).Dependencies())

	// Filled in from the sources, so not a reason to clean.
	again, err := Make("foo", raw, source(md.opts))
	require.NoError(t, err)
	assert.False(t, pkg.(*DirectoryPackage).needsClean(again))

	data, err := Dehydrate(pkg)
	require.NoError(t, err)
	assert.Equal(t, []any{"bar", "baz"}, data["dependencies"])
	back, err := Rehydrate(data, md.opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"bar", "baz"}, back.(*DirectoryPackage).Dependencies())

	explicit, err := Make("foo", map[string]any{
		"origin": "directory", "path": "foo", "dependencies": []any{"boost[regex]"},
	}, source(md.opts))
	require.NoError(t, err)
	_, err = explicit.Fetch(context.Background(), md, parent)
	require.NoError(t, err)
	assert.Equal(t, []string{"boost[regex]"}, explicit.(*DirectoryPackage).Dependencies())

	_, err = Make("foo", map[string]any{
		"origin": "directory", "path": "foo", "dependencies": []any{"boost[]"},
	}, source(md.opts))
	var ferr *types.FieldError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, types.Field{"dependencies", 0}, ferr.Field)
}

func TestDirectoryFetchExport(t *testing.T) {
	md := newMetadata(nil)
	pkg, err := Make("foo", map[string]any{"origin": "directory", "path": "/opt/foo"}, source(md.opts))
	require.NoError(t, err)

	parent := &fakeParent{export: &Export{
		Build:      "none",
		Linkage:    types.Unset,
		Submodules: []any{"a"},
	}}
	child, err := pkg.Fetch(context.Background(), md, parent)
	require.NoError(t, err)
	require.NotNil(t, child)

	dir := pkg.(*DirectoryPackage)
	assert.Equal(t, []string{"none"}, pkg.BuilderTypes())
	assert.Equal(t, "system", dir.LinkageConfig().Type())
	require.NotNil(t, pkg.Submodules())
	assert.Equal(t, []string{"a"}, pkg.Submodules().Names)
}

func TestDirectoryNotFullyDefined(t *testing.T) {
	md := newMetadata(nil)
	pkg, err := Make("foo", map[string]any{"origin": "directory", "path": "foo"}, source(md.opts))
	require.NoError(t, err)

	_, err = pkg.Fetch(context.Background(), md, &fakeParent{})
	assert.ErrorContains(t, err, `build for package "foo" is not fully defined and package has no exported config`)
}

func TestPathBaseCollision(t *testing.T) {
	md := newMetadata(nil)
	pkg, err := Make("foo", map[string]any{
		"origin": "directory", "path": "foo", "build": []any{"cmake", "bfg9000"},
	}, source(md.opts))
	require.NoError(t, err)

	_, err = pkg.Fetch(context.Background(), md, nil)
	require.Error(t, err)
	var fe *types.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "'builddir' already defined by 'cmake' builder", fe.Msg)
	assert.Equal(t, types.Field{"build", 1}, fe.Field)
}

func TestSDistUpgrade(t *testing.T) {
	md := newMetadata(nil)
	pkg, err := Make("foo", map[string]any{
		"origin": "directory", "path": "foo", "build": "cmake",
	}, source(md.opts))
	require.NoError(t, err)
	_, err = pkg.Fetch(context.Background(), md, nil)
	require.NoError(t, err)

	data, err := Dehydrate(pkg)
	require.NoError(t, err)
	assert.Equal(t, 1, data["_version"])

	// Rewrite into the version 0 layout.
	delete(data, "_version")
	data["builder"] = data["builders"].([]any)[0]
	delete(data, "builders")
	data["usage"] = data["linkage"]
	delete(data, "linkage")

	back, err := Rehydrate(data, md.opts)
	require.NoError(t, err)
	dir := back.(*DirectoryPackage)
	require.True(t, dir.Finalized())
	assert.Equal(t, []string{"cmake"}, dir.BuilderTypes())
	assert.Equal(t, "pkg_config", dir.LinkageConfig().Type())
	assert.True(t, Equal(pkg, back))

	data["_version"] = 2
	_, err = Rehydrate(data, md.opts)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestTarballFetch(t *testing.T) {
	md := newMetadata(nil)
	require.NoError(t, afero.WriteFile(md.fs, "/src/foo.tar.gz", tarball(t, map[string]string{
		"foo-1.0/CMakeLists.txt":  "project(foo)\n",
		"foo-1.0/include/foo.hpp": "#pragma once\n",
	}), 0644))

	raw := map[string]any{"origin": "tarball", "path": "foo.tar.gz", "build": "cmake"}
	pkg, err := Make("foo", raw, source(md.opts))
	require.NoError(t, err)

	parent := &fakeParent{}
	_, err = pkg.Fetch(context.Background(), md, parent)
	require.NoError(t, err)

	tb := pkg.(*TarballPackage)
	assert.Equal(t, "foo-1.0", tb.GuessedSrcdir)
	assert.Equal(t, []string{"/pkg/src/foo/foo-1.0"}, parent.loaded)
	exists, err := afero.Exists(md.fs, "/pkg/src/foo/foo-1.0/include/foo.hpp")
	require.NoError(t, err)
	assert.True(t, exists)

	values, err := tb.PathValues(md)
	require.NoError(t, err)
	assert.Equal(t, "/pkg/src/foo/foo-1.0", values[path.SrcDir])

	// An identical definition reuses the extracted sources.
	again, err := Make("foo", raw, source(md.opts))
	require.NoError(t, err)
	cleaned, err := pkg.CleanPre(context.Background(), md, again, true)
	require.NoError(t, err)
	assert.False(t, cleaned)
	assert.Equal(t, "foo-1.0", again.(*TarballPackage).GuessedSrcdir)

	require.NoError(t, md.fs.Remove("/src/foo.tar.gz"))
	_, err = again.Fetch(context.Background(), md, nil)
	require.NoError(t, err)

	// A different archive removes them.
	other, err := Make("foo", map[string]any{
		"origin": "tarball", "path": "bar.tar.gz", "build": "cmake",
	}, source(md.opts))
	require.NoError(t, err)
	cleaned, err = again.CleanPre(context.Background(), md, other, true)
	require.NoError(t, err)
	assert.True(t, cleaned)
	exists, err = afero.DirExists(md.fs, "/pkg/src/foo")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTarballFiles(t *testing.T) {
	md := newMetadata(nil)
	require.NoError(t, afero.WriteFile(md.fs, "/src/foo.tar.gz", tarball(t, map[string]string{
		"foo-1.0/include/foo.hpp": "#pragma once\n",
		"foo-1.0/src/foo.cpp":     "int x;\n",
	}), 0644))

	pkg, err := Make("foo", map[string]any{
		"origin": "tarball", "path": "foo.tar.gz", "build": "none", "files": "*/include/**",
	}, source(md.opts))
	require.NoError(t, err)
	_, err = pkg.Fetch(context.Background(), md, nil)
	require.NoError(t, err)

	exists, _ := afero.Exists(md.fs, "/pkg/src/foo/foo-1.0/include/foo.hpp")
	assert.True(t, exists)
	exists, _ = afero.Exists(md.fs, "/pkg/src/foo/foo-1.0/src/foo.cpp")
	assert.False(t, exists)
}

func TestTarballPatchFailure(t *testing.T) {
	md := newMetadata(nil)
	require.NoError(t, afero.WriteFile(md.fs, "/src/foo.tar.gz", tarball(t, map[string]string{
		"foo-1.0/CMakeLists.txt": "project(foo)\n",
	}), 0644))
	require.NoError(t, afero.WriteFile(md.fs, "/src/fix.patch", []byte("--- a\n+++ b\n"), 0644))

	pkg, err := Make("foo", map[string]any{
		"origin": "tarball", "path": "foo.tar.gz", "build": "cmake", "patch": "fix.patch",
	}, source(md.opts))
	require.NoError(t, err)

	var calls [][]string
	_, err = pkg.Fetch(recordCalls(&calls, true), md, nil)
	var cerr *logging.CommandError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, [][]string{{"patch", "-p1"}}, calls)
	assert.True(t, pkg.(*TarballPackage).Finalized())
}

func TestTarballPatchAppliedOnce(t *testing.T) {
	md := newMetadata(nil)
	require.NoError(t, afero.WriteFile(md.fs, "/src/foo.tar.gz", tarball(t, map[string]string{
		"foo-1.0/CMakeLists.txt": "project(foo)\n",
	}), 0644))
	require.NoError(t, afero.WriteFile(md.fs, "/src/fix.patch", []byte("--- a\n+++ b\n"), 0644))

	raw := map[string]any{
		"origin": "tarball", "path": "foo.tar.gz", "build": "cmake", "patch": "fix.patch",
	}
	pkg, err := Make("foo", raw, source(md.opts))
	require.NoError(t, err)

	var calls [][]string
	ctx := recordCalls(&calls, false)
	_, err = pkg.Fetch(ctx, md, nil)
	require.NoError(t, err)

	again, err := Make("foo", raw, source(md.opts))
	require.NoError(t, err)
	cleaned, err := pkg.CleanPre(ctx, md, again, true)
	require.NoError(t, err)
	require.False(t, cleaned)

	_, err = again.Fetch(ctx, md, nil)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"patch", "-p1"}}, calls)
	assert.True(t, again.(*TarballPackage).Finalized())
}

func TestGitFetch(t *testing.T) {
	md := newMetadata(nil)
	g := &fakeGit{fs: md.fs}
	ctx := WithGit(context.Background(), g)

	pkg, err := Make("foo", map[string]any{
		"origin": "git", "repository": "git@github.com:x/foo.git", "build": "cmake",
	}, source(md.opts))
	require.NoError(t, err)
	assert.Equal(t, Rev{Kind: "branch", Value: "master"}, pkg.(*GitPackage).Rev)

	parent := &fakeParent{}
	_, err = pkg.Fetch(ctx, md, parent)
	require.NoError(t, err)
	assert.Equal(t, []Rev{{Kind: "branch", Value: "master"}}, g.clones)
	assert.Equal(t, []string{"/pkg/src/foo"}, parent.loaded)
	assert.Empty(t, g.pulls)

	_, err = pkg.Fetch(ctx, md, parent)
	require.NoError(t, err)
	assert.Len(t, g.clones, 1)
	assert.Equal(t, []string{"/pkg/src/foo"}, g.pulls)

	tagged, err := Make("bar", map[string]any{
		"origin": "git", "repository": "https://example.com/bar.git", "tag": "v1.0",
		"srcdir": "sub", "build": "cmake",
	}, source(md.opts))
	require.NoError(t, err)
	_, err = tagged.Fetch(ctx, md, parent)
	require.NoError(t, err)
	_, err = tagged.Fetch(ctx, md, parent)
	require.NoError(t, err)
	assert.Equal(t, Rev{Kind: "tag", Value: "v1.0"}, g.clones[1])
	assert.Len(t, g.pulls, 1)
	assert.Equal(t, "/pkg/src/bar/sub", parent.loaded[len(parent.loaded)-1])
}

func TestGitLocalRepository(t *testing.T) {
	pkg, err := Make("foo", map[string]any{
		"origin": "git", "repository": "../foo", "build": "none",
	}, source(options.Default()))
	require.NoError(t, err)
	assert.Equal(t, "/foo", pkg.(*GitPackage).Repository)
}

func TestAptBatch(t *testing.T) {
	md := newMetadata(nil)
	foo, err := Make("foo", map[string]any{"origin": "apt"}, source(md.opts))
	require.NoError(t, err)
	zlib, err := Make("zlib", map[string]any{"origin": "apt", "repository": "ppa:x/y"}, source(md.opts))
	require.NoError(t, err)
	assert.Equal(t, []string{"libfoo-dev"}, foo.(*AptPackage).Remote)
	assert.Equal(t, []string{"zlib1g-dev"}, zlib.(*AptPackage).Remote)

	assert.ErrorContains(t, foo.Resolve(context.Background(), md), "must be resolved in a batch")

	batch, ok := BatchFor("apt")
	require.True(t, ok)
	var calls [][]string
	require.NoError(t, batch.ResolveAll(recordCalls(&calls, false), md, []Package{foo, zlib}))
	assert.Equal(t, [][]string{
		{"sudo", "add-apt-repository", "-y", "ppa:x/y"},
		{"sudo", "apt-get", "update"},
		{"sudo", "apt-get", "install", "-y", "libfoo-dev", "zlib1g-dev"},
	}, calls)
	assert.True(t, foo.Resolved())
	assert.True(t, zlib.Resolved())

	_, ok = BatchFor("system")
	assert.False(t, ok)
}

func TestAptBatchFailure(t *testing.T) {
	md := newMetadata(nil)
	foo, err := Make("foo", map[string]any{"origin": "apt"}, source(md.opts))
	require.NoError(t, err)

	batch, _ := BatchFor("apt")
	var calls [][]string
	err = batch.ResolveAll(recordCalls(&calls, true), md, []Package{foo})
	var cerr *logging.CommandError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "/pkg/logs/apt.log", cerr.LogPath)
	assert.False(t, foo.Resolved())
}

func TestConanBatch(t *testing.T) {
	opts := options.New()
	require.NoError(t, opts.Accumulate(options.Fragment{
		Genus: options.GenusOrigins,
		Kind:  "conan",
		Data:  map[string]any{"build": "missing", "extra_args": "-s build_type=Release"},
	}))
	require.NoError(t, opts.Finalize([]string{"conan"}, nil))
	md := newMetadata(opts)

	foo, err := Make("foo", map[string]any{
		"origin": "conan", "remote": "foo/1.0", "options": map[string]any{"shared": true},
	}, source(opts))
	require.NoError(t, err)
	bar, err := Make("bar", map[string]any{
		"origin": "conan", "remote": "bar/2.0", "build": true,
	}, source(opts))
	require.NoError(t, err)

	batch, ok := BatchFor("conan")
	require.True(t, ok)
	var calls [][]string
	require.NoError(t, batch.ResolveAll(recordCalls(&calls, false), md, []Package{foo, bar}))
	assert.Equal(t, [][]string{{
		"conan", "install", "--build=missing", "--build=bar",
		"-s", "build_type=Release", "--", "/pkg/conan",
	}}, calls)
	assert.True(t, foo.Resolved())

	conanfile, err := afero.ReadFile(md.fs, "/pkg/conan/conanfile.txt")
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"[requires]",
		"foo/1.0",
		"bar/2.0",
		"",
		"[options]",
		"foo*:shared=True",
		"",
		"[generators]",
		"PkgConfigDeps",
		"",
	}, "\n"), string(conanfile))

	linkage, err := foo.Linkage(context.Background(), md, nil)
	require.NoError(t, err)
	assert.Equal(t, "pkg_config", linkage["type"])
	assert.Equal(t, []any{"foo"}, linkage["pcnames"])
	assert.Equal(t, []any{"/pkg/conan"}, linkage["pkg_config_path"])

	require.NoError(t, afero.WriteFile(md.fs, "/pkg/conan/foo.pc", nil, 0644))
	cleaned, err := foo.CleanPost(context.Background(), md, bar, true)
	require.NoError(t, err)
	assert.False(t, cleaned)
	cleaned, err = foo.CleanPost(context.Background(), md, nil, true)
	require.NoError(t, err)
	assert.True(t, cleaned)
	exists, _ := afero.Exists(md.fs, "/pkg/conan/foo.pc")
	assert.False(t, exists)
}

func TestFallbackSystemPackage(t *testing.T) {
	pkg, err := FallbackSystemPackage("foo", options.Default())
	require.NoError(t, err)
	assert.Equal(t, "system", pkg.Origin())
	assert.Equal(t, "", pkg.ConfigFile())
	assert.True(t, pkg.Resolved())
	assert.Equal(t, "system", pkg.(*SystemPackage).LinkageConfig().Type())
}

func TestCleanAll(t *testing.T) {
	md := newMetadata(nil)
	pkg, err := Make("foo", map[string]any{"origin": "system"}, source(md.opts))
	require.NoError(t, err)
	pre, post, err := CleanAll(context.Background(), md, pkg, nil, true)
	require.NoError(t, err)
	assert.False(t, pre)
	assert.False(t, post)
}
