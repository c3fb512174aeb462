// mopack_test.go
package mopack

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-language/mopack/pkg/core"
	"github.com/arc-language/mopack/pkg/freezedry"
	"github.com/arc-language/mopack/pkg/logging"
	"github.com/arc-language/mopack/pkg/metadata"
	"github.com/arc-language/mopack/pkg/origins"
	"github.com/arc-language/mopack/pkg/types"
)

const pkgdir = "/proj/build/mopack"

type runner struct {
	calls   [][]string
	failing string
}

// context returns a context whose subprocesses are recorded. pkg-config
// never finds anything, and commands starting with failing exit non-zero.
func (r *runner) context() context.Context {
	return logging.WithRunner(context.Background(), func(_ context.Context, c logging.Call) error {
		r.calls = append(r.calls, c.Args)
		if slices.Contains(c.Args, "--exists") || slices.Contains(c.Args, "--modversion") {
			return errors.New("exit status 1")
		}
		if r.failing != "" && strings.HasPrefix(strings.Join(c.Args, " "), r.failing) {
			return errors.New("exit status 1")
		}
		return nil
	})
}

// cleanedPost records every package a flaky package's CleanPost ran for.
var cleanedPost []string

// flakyPackage resolves successfully unless configured with `fail: true`.
type flakyPackage struct {
	*origins.BasePackage
	fail bool
}

func init() {
	origins.Register("flaky", origins.Kind{
		Versioned: freezedry.Versioned{Version: 1},
		New: func(b *origins.BasePackage, tc *types.TypeCheck) (origins.Package, error) {
			p := &flakyPackage{BasePackage: b}
			types.Check(tc, "fail", types.Maybe(types.Boolean, false), &p.fail)
			return p, tc.Err()
		},
		Rehydrate: func(b *origins.BasePackage, r *freezedry.Reader) (origins.Package, error) {
			return &flakyPackage{BasePackage: b, fail: r.Bool("fail")}, nil
		},
	})
}

func (p *flakyPackage) Fetch(context.Context, core.Metadata, origins.ParentConfig) (origins.ChildConfig, error) {
	return nil, nil
}

func (p *flakyPackage) Resolve(context.Context, core.Metadata) error {
	if p.fail {
		return errors.New("build failed")
	}
	p.SetResolved(true)
	return nil
}

func (p *flakyPackage) CleanPost(context.Context, core.Metadata, origins.Package, bool) (bool, error) {
	cleanedPost = append(cleanedPost, p.Name())
	return true, nil
}

func (p *flakyPackage) Version(context.Context, core.Metadata) (string, error) { return "", nil }

func (p *flakyPackage) Linkage(context.Context, core.Metadata, []string) (map[string]any, error) {
	return map[string]any{"name": p.Name(), "type": "flaky"}, nil
}

func (p *flakyPackage) Dehydrate() (map[string]any, error) {
	var configFile, parent any
	if p.ConfigFile() != "" {
		configFile = p.ConfigFile()
	}
	if p.Parent() != "" {
		parent = p.Parent()
	}
	return map[string]any{
		"name":        p.Name(),
		"config_file": configFile,
		"parent":      parent,
		"resolved":    p.Resolved(),
		"deploy":      p.ShouldDeploy(),
		"fail":        p.fail,
	}, nil
}

func setup(t *testing.T, files map[string]string) (*Manager, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, body := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(body), 0644))
	}
	m, err := NewManager(fs, pkgdir)
	require.NoError(t, err)
	return m, fs
}

func load(t *testing.T, m *Manager) *Config {
	t.Helper()
	cfg, err := m.LoadConfig([]string{"/proj"})
	require.NoError(t, err)
	return cfg
}

func writeConfig(t *testing.T, fs afero.Fs, body string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, "/proj/mopack.yml", []byte(body), 0644))
}

func tarGz(t *testing.T, files map[string]string) []byte {
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

const basicConfig = `packages:
  foo:
    origin: system
    version: "1.0"
  bar:
    origin: apt
  baz:
    origin: directory
    path: baz
    build: none
`

func TestPackageDir(t *testing.T) {
	assert.Equal(t, "/proj/build/mopack", PackageDir("/proj/build"))
}

func TestResolve(t *testing.T) {
	m, fs := setup(t, map[string]string{"/proj/mopack.yml": basicConfig})
	r := &runner{}
	ctx := r.context()

	require.NoError(t, m.Resolve(ctx, load(t, m)))
	assert.Contains(t, r.calls, []string{"sudo", "apt-get", "install", "-y", "libbar-dev"})

	md, err := metadata.Load(fs, pkgdir)
	require.NoError(t, err)
	var names []string
	for _, pkg := range md.Packages() {
		names = append(names, pkg.Name())
		assert.True(t, pkg.Resolved(), pkg.Name())
	}
	assert.Equal(t, []string{"foo", "bar", "baz"}, names)

	files, err := m.ListFiles(false)
	require.NoError(t, err)
	assert.Equal(t, []string{"/proj/mopack.yml"}, files)

	flat, err := m.ListPackages(ctx, true)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(flat), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "foo 1.0 (system)", lines[0])
	assert.Equal(t, "bar (apt)", lines[1])
	assert.Equal(t, "baz (directory)", lines[2])

	tree, err := m.ListPackages(ctx, false)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tree, pkgdir))
	assert.Contains(t, tree, "foo 1.0 (system)")

	require.NoError(t, m.Deploy(ctx))

	linkage, err := m.Linkage(ctx, "foo", nil, true)
	require.NoError(t, err)
	assert.Equal(t, "foo", linkage["name"])

	require.NoError(t, m.Clean(ctx))
	exists, err := afero.DirExists(fs, pkgdir)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLinkageFallback(t *testing.T) {
	m, _ := setup(t, nil)
	ctx := (&runner{}).context()

	linkage, err := m.Linkage(ctx, "zlib", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "zlib", linkage["name"])

	_, err = m.Linkage(ctx, "zlib", nil, true)
	assert.Error(t, err)

	m2, _ := setup(t, map[string]string{"/proj/mopack.yml": basicConfig})
	require.NoError(t, m2.Resolve(ctx, load(t, m2)))
	_, err = m2.Linkage(ctx, "zlib", nil, true)
	assert.ErrorIs(t, err, ErrPackageNotFound)
	var merr *Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "linkage", merr.Op)
	assert.Equal(t, "zlib", merr.Package)
}

func TestDeployBeforeResolve(t *testing.T) {
	m, _ := setup(t, nil)
	err := m.Deploy(context.Background())
	assert.ErrorIs(t, err, ErrNotResolved)
	assert.False(t, IsConfigurationError(err))
}

func TestResolveBatchFailure(t *testing.T) {
	m, fs := setup(t, map[string]string{"/proj/mopack.yml": basicConfig})
	r := &runner{failing: "sudo apt-get install"}
	ctx := r.context()

	err := m.Resolve(ctx, load(t, m))
	var merr *Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "resolve", merr.Op)
	assert.Equal(t, "apt packages", merr.Package)
	var cerr *logging.CommandError
	assert.ErrorAs(t, err, &cerr)

	md, err := metadata.Load(fs, pkgdir)
	require.NoError(t, err)
	bar, ok := md.Lookup("bar")
	require.True(t, ok)
	assert.False(t, bar.Resolved())

	assert.ErrorIs(t, m.Deploy(ctx), ErrNotResolved)
}

func TestResolvePackageFailure(t *testing.T) {
	m, fs := setup(t, map[string]string{"/proj/mopack.yml": `packages:
  foo:
    origin: flaky
  bar:
    origin: flaky
    fail: true
`})
	cleanedPost = nil
	t.Cleanup(func() { cleanedPost = nil })

	err := m.Resolve(context.Background(), load(t, m))
	var merr *Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "resolve", merr.Op)
	assert.Equal(t, "bar", merr.Package)
	assert.False(t, IsConfigurationError(err))
	assert.Equal(t, []string{"bar"}, cleanedPost)

	md, err := metadata.Load(fs, pkgdir)
	require.NoError(t, err)
	pkgs := md.Packages()
	require.Len(t, pkgs, 2)
	assert.Equal(t, "foo", pkgs[0].Name())
	assert.True(t, pkgs[0].Resolved())
	assert.Equal(t, "bar", pkgs[1].Name())
	assert.False(t, pkgs[1].Resolved())
}

func TestResolveBuildFailure(t *testing.T) {
	m, fs := setup(t, map[string]string{"/proj/mopack.yml": `packages:
  foo:
    origin: directory
    path: foo
    build:
      type: custom
      build_commands: [make]
  bar:
    origin: directory
    path: bar
    build:
      type: custom
      build_commands: [failing-build]
`})
	r := &runner{failing: "failing-build"}

	err := m.Resolve(r.context(), load(t, m))
	var merr *Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "bar", merr.Package)
	var cerr *logging.CommandError
	assert.ErrorAs(t, err, &cerr)
	assert.Equal(t, [][]string{{"make"}, {"failing-build"}}, r.calls)

	// The failed build's directory is cleaned up; the finished one is kept.
	exists, _ := afero.DirExists(fs, pkgdir+"/build/foo")
	assert.True(t, exists)
	exists, _ = afero.DirExists(fs, pkgdir+"/build/bar")
	assert.False(t, exists)

	md, err := metadata.Load(fs, pkgdir)
	require.NoError(t, err)
	foo, ok := md.Lookup("foo")
	require.True(t, ok)
	assert.True(t, foo.Resolved())
	bar, ok := md.Lookup("bar")
	require.True(t, ok)
	assert.False(t, bar.Resolved())
}

func TestFetchFailureSavesProgress(t *testing.T) {
	m, fs := setup(t, map[string]string{"/proj/mopack.yml": `packages:
  old:
    origin: system
`})
	ctx := (&runner{}).context()
	require.NoError(t, m.Resolve(ctx, load(t, m)))

	writeConfig(t, fs, `packages:
  foo:
    origin: system
  bar:
    origin: tarball
    path: missing.tar.gz
    build: none
`)
	err := m.Resolve(ctx, load(t, m))
	var merr *Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "fetch", merr.Op)
	assert.Equal(t, "bar", merr.Package)
	assert.False(t, IsConfigurationError(err))

	md, err := metadata.Load(fs, pkgdir)
	require.NoError(t, err)
	var names []string
	for _, pkg := range md.Packages() {
		names = append(names, pkg.Name())
	}
	assert.Equal(t, []string{"foo", "old"}, names)
}

func TestConfigurationErrorSkipsSave(t *testing.T) {
	m, fs := setup(t, map[string]string{"/proj/mopack.yml": `packages:
  foo:
    origin: directory
    path: foo
`})
	err := m.Resolve((&runner{}).context(), load(t, m))
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))

	exists, _ := afero.Exists(fs, metadata.Path(pkgdir))
	assert.False(t, exists)
}

func TestLoadConfigError(t *testing.T) {
	m, _ := setup(t, map[string]string{"/proj/mopack.yml": "packages:\n  foo: [\n"})
	_, err := m.LoadConfig([]string{"/proj"})
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}

func TestResolveCleansRemovedPackages(t *testing.T) {
	m, fs := setup(t, map[string]string{
		"/proj/mopack.yml": `packages:
  foo:
    origin: tarball
    path: foo.tar.gz
    build: none
`,
		"/proj/foo.tar.gz": string(tarGz(t, map[string]string{"foo-1.0/include/foo.h": "\n"})),
	})
	ctx := (&runner{}).context()
	require.NoError(t, m.Resolve(ctx, load(t, m)))
	exists, _ := afero.Exists(fs, pkgdir+"/src/foo/foo-1.0/include/foo.h")
	require.True(t, exists)

	// Resolving the same config again keeps the sources.
	require.NoError(t, m.Resolve(ctx, load(t, m)))
	exists, _ = afero.DirExists(fs, pkgdir+"/src/foo")
	assert.True(t, exists)

	writeConfig(t, fs, "packages:\n  bar:\n    origin: system\n")
	require.NoError(t, m.Resolve(ctx, load(t, m)))
	exists, _ = afero.DirExists(fs, pkgdir+"/src/foo")
	assert.False(t, exists)

	md, err := metadata.Load(fs, pkgdir)
	require.NoError(t, err)
	_, ok := md.Lookup("foo")
	assert.False(t, ok)
}

func TestChildConfigPackages(t *testing.T) {
	m, fs := setup(t, map[string]string{
		"/proj/mopack.yml": `packages:
  foo:
    origin: directory
    path: foo
`,
		"/proj/foo/mopack.yml": `export:
  build: none
packages:
  dep:
    origin: system
`,
	})
	ctx := (&runner{}).context()
	require.NoError(t, m.Resolve(ctx, load(t, m)))

	files, err := m.ListFiles(true)
	require.NoError(t, err)
	assert.Equal(t, []string{"/proj/mopack.yml", "/proj/foo/mopack.yml"}, files)

	md, err := metadata.Load(fs, pkgdir)
	require.NoError(t, err)
	var names []string
	for _, pkg := range md.Packages() {
		names = append(names, pkg.Name())
	}
	assert.Equal(t, []string{"dep", "foo"}, names)

	tree, err := m.ListPackages(ctx, false)
	require.NoError(t, err)
	assert.Contains(t, tree, "foo (directory)")
	assert.Contains(t, tree, "dep (system)")
	assert.Less(t, strings.Index(tree, "foo (directory)"), strings.Index(tree, "dep (system)"))
}
