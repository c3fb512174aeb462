// pkg/metadata/metadata.go
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/arc-language/mopack/pkg/freezedry"
	"github.com/arc-language/mopack/pkg/options"
	"github.com/arc-language/mopack/pkg/origins"
	"github.com/arc-language/mopack/pkg/types"
)

const (
	// FileName is the metadata file inside the package directory
	FileName = "mopack.json"

	// Version is the current metadata format
	Version = 1
)

var (
	// ErrNotFound is returned for a package missing from strict lookups
	ErrNotFound = errors.New("package not found")

	// ErrUnresolved is returned for a package that failed to resolve
	ErrUnresolved = errors.New("package not resolved")
)

// VersionError is returned when the metadata file is newer than this code
type VersionError struct {
	Saved    int
	Expected int
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("saved version %d exceeds expected version %d", e.Saved, e.Expected)
}

// Is matches types.ErrConfiguration.
func (e *VersionError) Is(target error) bool {
	return target == types.ErrConfiguration
}

// Metadata is the persisted state of the last resolution
type Metadata struct {
	fs     afero.Fs
	pkgdir string

	files    []string
	implicit []string
	opts     *options.Options

	order    []string
	packages map[string]origins.Package
}

// New returns empty metadata for pkgdir
func New(fs afero.Fs, pkgdir string, opts *options.Options) *Metadata {
	if opts == nil {
		opts = options.Default()
	}
	return &Metadata{
		fs:       fs,
		pkgdir:   pkgdir,
		opts:     opts,
		packages: map[string]origins.Package{},
	}
}

// Path returns the location of the metadata file for pkgdir
func Path(pkgdir string) string {
	return filepath.Join(pkgdir, FileName)
}

type fileData struct {
	Version     int `json:"version"`
	ConfigFiles struct {
		Explicit []string `json:"explicit"`
		Implicit []string `json:"implicit"`
	} `json:"config_files"`
	Metadata struct {
		Options  map[string]any `json:"options"`
		Packages []any          `json:"packages"`
	} `json:"metadata"`
}

// Load reads the metadata saved in pkgdir
func Load(fs afero.Fs, pkgdir string) (*Metadata, error) {
	data, err := afero.ReadFile(fs, Path(pkgdir))
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}

	var version struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &version); err != nil {
		return nil, fmt.Errorf("parsing metadata: %w", err)
	}
	if version.Version > Version {
		return nil, &VersionError{Saved: version.Version, Expected: Version}
	}

	var fd fileData
	if err := json.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("parsing metadata: %w", err)
	}

	opts, err := options.Rehydrate(fd.Metadata.Options)
	if err != nil {
		return nil, fmt.Errorf("loading options: %w", err)
	}

	var list any
	if fd.Metadata.Packages != nil {
		list = fd.Metadata.Packages
	}
	order, packages, err := freezedry.ListToDict(list, "name",
		func(m map[string]any) (origins.Package, error) {
			return origins.Rehydrate(m, opts)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}

	return &Metadata{
		fs:       fs,
		pkgdir:   pkgdir,
		files:    fd.ConfigFiles.Explicit,
		implicit: fd.ConfigFiles.Implicit,
		opts:     opts,
		order:    order,
		packages: packages,
	}, nil
}

// TryLoad is like Load, but returns empty metadata when none was saved
// unless strict is set
func TryLoad(fs afero.Fs, pkgdir string, strict bool) (*Metadata, error) {
	md, err := Load(fs, pkgdir)
	if err != nil && !strict && errors.Is(err, os.ErrNotExist) {
		return New(fs, pkgdir, nil), nil
	}
	return md, err
}

// Save writes the metadata to pkgdir
func (m *Metadata) Save() error {
	opts, err := m.opts.Dehydrate()
	if err != nil {
		return fmt.Errorf("saving options: %w", err)
	}
	pkgs, err := freezedry.DictToList(m.order, m.packages, origins.Dehydrate)
	if err != nil {
		return fmt.Errorf("saving packages: %w", err)
	}

	var fd fileData
	fd.Version = Version
	fd.ConfigFiles.Explicit = nonNil(m.files)
	fd.ConfigFiles.Implicit = nonNil(m.implicit)
	fd.Metadata.Options = opts
	fd.Metadata.Packages = pkgs

	data, err := json.MarshalIndent(fd, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := m.fs.MkdirAll(m.pkgdir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", m.pkgdir, err)
	}
	if err := afero.WriteFile(m.fs, Path(m.pkgdir), data, 0644); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (m *Metadata) PkgDir() string { return m.pkgdir }
func (m *Metadata) FS() afero.Fs { return m.fs }
func (m *Metadata) Options() *options.Options { return m.opts }
func (m *Metadata) Files() []string { return m.files }
func (m *Metadata) ImplicitFiles() []string { return m.implicit }
func (m *Metadata) SetOptions(o *options.Options) { m.opts = o }

// SetFiles records the config files the metadata came from
func (m *Metadata) SetFiles(explicit, implicit []string) {
	m.files, m.implicit = explicit, implicit
}

// AddPackage adds or replaces a package, keeping its position when
// replacing
func (m *Metadata) AddPackage(pkg origins.Package) {
	if _, ok := m.packages[pkg.Name()]; !ok {
		m.order = append(m.order, pkg.Name())
	}
	m.packages[pkg.Name()] = pkg
}

// Packages returns every stored package in resolution order
func (m *Metadata) Packages() []origins.Package {
	result := make([]origins.Package, len(m.order))
	for i, name := range m.order {
		result[i] = m.packages[name]
	}
	return result
}

// Lookup returns the stored package, whether or not it is resolved
func (m *Metadata) Lookup(name string) (origins.Package, bool) {
	pkg, ok := m.packages[name]
	return pkg, ok
}

// Package returns a resolved package. Without strict, a name with no stored
// package is treated as a library installed on the system.
func (m *Metadata) Package(name string, strict bool) (origins.Package, error) {
	pkg, ok := m.packages[name]
	if !ok {
		if strict {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return origins.FallbackSystemPackage(name, m.opts)
	}
	if !pkg.Resolved() {
		return nil, fmt.Errorf("%w: package %q has not been resolved successfully", ErrUnresolved, name)
	}
	return pkg, nil
}

// Linkage returns how to link against a resolved package, falling back to
// a system package unless the options are strict
func (m *Metadata) Linkage(ctx context.Context, name string, submodules []string) (map[string]any, error) {
	pkg, err := m.Package(name, m.opts.Common.Strict)
	if err != nil {
		return nil, err
	}
	return pkg.Linkage(ctx, m, submodules)
}
