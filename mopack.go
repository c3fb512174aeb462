// mopack.go
package mopack

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/xlab/treeprint"

	"github.com/arc-language/mopack/pkg/config"
	"github.com/arc-language/mopack/pkg/logging"
	"github.com/arc-language/mopack/pkg/metadata"
	"github.com/arc-language/mopack/pkg/options"
	"github.com/arc-language/mopack/pkg/origins"
)

// DirName is the package directory created inside the build directory
const DirName = "mopack"

// Re-export the types callers need to drive a resolution
type (
	Config   = config.Config
	Fragment = options.Fragment
	Metadata = metadata.Metadata
	Package  = origins.Package
)

// PackageDir returns the package directory for a build directory
func PackageDir(builddir string) string {
	return filepath.Join(builddir, DirName)
}

// Manager fetches, builds and deploys the packages for one package
// directory
type Manager struct {
	fs     afero.Fs
	pkgdir string
}

// NewManager creates a manager for pkgdir. A nil fs uses the OS filesystem.
func NewManager(fs afero.Fs, pkgdir string) (*Manager, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	abs, err := filepath.Abs(pkgdir)
	if err != nil {
		return nil, fmt.Errorf("resolving package directory: %w", err)
	}
	return &Manager{fs: fs, pkgdir: abs}, nil
}

// PkgDir returns the package directory
func (m *Manager) PkgDir() string { return m.pkgdir }

// LoadConfig reads config files. Fragments win over anything in the files.
func (m *Manager) LoadConfig(files []string, fragments ...Fragment) (*Config, error) {
	return config.Load(m.fs, files, fragments...)
}

// Fetch retrieves every package in cfg, along with the packages defined by
// configs found in their sources. Packages from the previous resolution are
// cleaned when their definitions changed or they are no longer used.
func (m *Manager) Fetch(ctx context.Context, cfg *Config) (*Metadata, error) {
	old, err := metadata.TryLoad(m.fs, m.pkgdir, false)
	if err != nil {
		return nil, &Error{Op: "fetch", Err: err}
	}
	if err := m.fs.MkdirAll(m.pkgdir, 0755); err != nil {
		return nil, &Error{Op: "fetch", Err: err}
	}

	f := &fetcher{
		md:      metadata.New(m.fs, m.pkgdir, cfg.Options()),
		old:     map[string]origins.Package{},
		fetched: map[string]origins.Package{},
	}
	for _, pkg := range old.Packages() {
		f.old[pkg.Name()] = pkg
	}

	if err := f.fetch(ctx, cfg); err != nil {
		if !IsConfigurationError(err) {
			f.savePartial(cfg, old)
		}
		return nil, err
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}

	md := metadata.New(m.fs, m.pkgdir, cfg.Options())
	md.SetFiles(cfg.Files(), cfg.ImplicitFiles())
	for _, pkg := range cfg.Packages() {
		md.AddPackage(pkg)
	}

	for _, pkg := range old.Packages() {
		next, ok := cfg.Package(pkg.Name())
		if ok && next != config.PlaceholderPackage {
			_, err = pkg.CleanPost(ctx, md, next, false)
		} else {
			_, _, err = origins.CleanAll(ctx, md, pkg, nil, false)
		}
		if err != nil {
			saveErr := md.Save()
			return nil, &Error{Op: "clean", Package: pkg.Name(), Err: errors.Join(err, saveErr)}
		}
	}
	return md, nil
}

type fetcher struct {
	md      *metadata.Metadata
	old     map[string]origins.Package
	fetched map[string]origins.Package
	order   []string
}

func (f *fetcher) fetch(ctx context.Context, cfg *config.Config) error {
	var children []*config.ChildConfig
	for _, name := range cfg.Names() {
		pkg, _ := cfg.Package(name)
		if pkg == config.PlaceholderPackage {
			continue
		}

		if old, ok := f.old[name]; ok {
			if _, err := old.CleanPre(ctx, f.md, pkg, false); err != nil {
				return &Error{Op: "clean", Package: name, Err: err}
			}
		}

		child, err := pkg.Fetch(ctx, f.md, cfg)
		if err != nil {
			_, _ = pkg.CleanPre(ctx, f.md, nil, true)
			return &Error{Op: "fetch", Package: name, Err: err}
		}
		if _, ok := f.fetched[name]; !ok {
			f.order = append(f.order, name)
		}
		f.fetched[name] = pkg

		if cc, ok := child.(*config.ChildConfig); ok && cc != nil {
			if err := f.fetch(ctx, cc.Config); err != nil {
				return err
			}
			children = append(children, cc)
		}
	}
	return cfg.AddChildren(children)
}

// savePartial records what was fetched before a failure, followed by the
// previous packages that were never reached, so the next run can clean up
func (f *fetcher) savePartial(cfg *config.Config, old *metadata.Metadata) {
	md := metadata.New(f.md.FS(), f.md.PkgDir(), cfg.Options())
	md.SetFiles(cfg.Files(), cfg.ImplicitFiles())
	for _, name := range f.order {
		md.AddPackage(f.fetched[name])
	}
	for _, pkg := range old.Packages() {
		if _, ok := f.fetched[pkg.Name()]; !ok {
			md.AddPackage(pkg)
		}
	}
	_ = md.Save()
}

// grouped splits packages into those resolved by a batch, grouped by
// origin in order of first appearance, and the rest
func grouped(pkgs []origins.Package) ([]string, map[string][]origins.Package, []origins.Package) {
	var kinds []string
	batches := map[string][]origins.Package{}
	var singular []origins.Package
	for _, pkg := range pkgs {
		if _, ok := origins.BatchFor(pkg.Origin()); !ok {
			singular = append(singular, pkg)
			continue
		}
		if _, ok := batches[pkg.Origin()]; !ok {
			kinds = append(kinds, pkg.Origin())
		}
		batches[pkg.Origin()] = append(batches[pkg.Origin()], pkg)
	}
	return kinds, batches, singular
}

// Resolve fetches and builds every package in cfg. The metadata is saved
// whenever a failure leaves packages partially resolved.
func (m *Manager) Resolve(ctx context.Context, cfg *Config) error {
	md, err := m.Fetch(ctx, cfg)
	if err != nil {
		return err
	}

	fail := func(op, name string, pkgs []origins.Package, err error) error {
		for _, pkg := range pkgs {
			_, _ = pkg.CleanPost(ctx, md, nil, true)
		}
		if saveErr := md.Save(); saveErr != nil {
			logging.Warn(ctx, "unable to save metadata", "err", saveErr)
		}
		return &Error{Op: op, Package: name, Err: err}
	}

	kinds, batches, singular := grouped(md.Packages())
	for _, kind := range kinds {
		batch, _ := origins.BatchFor(kind)
		if err := batch.ResolveAll(ctx, md, batches[kind]); err != nil {
			return fail("resolve", kind+" packages", batches[kind], err)
		}
	}

	for _, pkg := range singular {
		if pkg.NeedsDependencies() {
			if err := md.Save(); err != nil {
				return &Error{Op: "resolve", Package: pkg.Name(), Err: err}
			}
		}
		if err := pkg.Resolve(ctx, md); err != nil {
			return fail("resolve", pkg.Name(), []origins.Package{pkg}, err)
		}
	}

	if err := md.Save(); err != nil {
		return &Error{Op: "resolve", Err: err}
	}
	return nil
}

// Deploy installs every resolved package
func (m *Manager) Deploy(ctx context.Context) error {
	md, err := metadata.Load(m.fs, m.pkgdir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Error{Op: "deploy", Err: ErrNotResolved}
		}
		return &Error{Op: "deploy", Err: err}
	}

	pkgs := md.Packages()
	for _, pkg := range pkgs {
		if !pkg.Resolved() {
			return &Error{Op: "deploy", Package: pkg.Name(), Err: ErrNotResolved}
		}
	}

	kinds, batches, singular := grouped(pkgs)
	for _, kind := range kinds {
		batch, _ := origins.BatchFor(kind)
		if err := batch.DeployAll(ctx, md, batches[kind]); err != nil {
			return &Error{Op: "deploy", Package: kind + " packages", Err: err}
		}
	}
	for _, pkg := range singular {
		if err := pkg.Deploy(ctx, md); err != nil {
			return &Error{Op: "deploy", Package: pkg.Name(), Err: err}
		}
	}
	return nil
}

// Linkage returns how to link against a package and some of its
// submodules. Without strict, a package that was never resolved is looked
// for on the system.
func (m *Manager) Linkage(ctx context.Context, name string, submodules []string, strict bool) (map[string]any, error) {
	md, err := metadata.TryLoad(m.fs, m.pkgdir, strict)
	if err != nil {
		return nil, &Error{Op: "linkage", Package: name, Err: err}
	}
	pkg, err := md.Package(name, strict)
	if err != nil {
		return nil, &Error{Op: "linkage", Package: name, Err: err}
	}
	result, err := pkg.Linkage(ctx, md, submodules)
	if err != nil {
		return nil, &Error{Op: "linkage", Package: name, Err: err}
	}
	result["name"] = name
	return result, nil
}

// ListFiles returns the config files used by the last resolution. With
// implicit set, the configs found inside fetched sources are included.
func (m *Manager) ListFiles(implicit bool) ([]string, error) {
	md, err := metadata.TryLoad(m.fs, m.pkgdir, false)
	if err != nil {
		return nil, &Error{Op: "list files", Err: err}
	}
	files := append([]string(nil), md.Files()...)
	if implicit {
		files = append(files, md.ImplicitFiles()...)
	}
	return files, nil
}

// ListPackages describes the resolved packages, one per line when flat or
// as a tree following the configs that defined them otherwise
func (m *Manager) ListPackages(ctx context.Context, flat bool) (string, error) {
	md, err := metadata.TryLoad(m.fs, m.pkgdir, false)
	if err != nil {
		return "", &Error{Op: "list packages", Err: err}
	}
	pkgs := md.Packages()

	if flat {
		var b strings.Builder
		for _, pkg := range pkgs {
			b.WriteString(describe(ctx, md, pkg) + "\n")
		}
		return b.String(), nil
	}

	children := map[string][]origins.Package{}
	var roots []origins.Package
	for _, pkg := range pkgs {
		if _, ok := md.Lookup(pkg.Parent()); pkg.Parent() == "" || !ok {
			roots = append(roots, pkg)
			continue
		}
		children[pkg.Parent()] = append(children[pkg.Parent()], pkg)
	}

	var add func(tree treeprint.Tree, pkg origins.Package)
	add = func(tree treeprint.Tree, pkg origins.Package) {
		label := describe(ctx, md, pkg)
		if len(children[pkg.Name()]) == 0 {
			tree.AddNode(label)
			return
		}
		branch := tree.AddBranch(label)
		for _, child := range children[pkg.Name()] {
			add(branch, child)
		}
	}

	tree := treeprint.NewWithRoot(m.pkgdir)
	for _, pkg := range roots {
		add(tree, pkg)
	}
	return tree.String(), nil
}

func describe(ctx context.Context, md *Metadata, pkg origins.Package) string {
	label := pkg.Name()
	if pkg.Resolved() {
		if v, err := pkg.Version(ctx, md); err == nil && v != "" {
			label += " " + v
		}
	} else {
		label += " [unresolved]"
	}
	return fmt.Sprintf("%s (%s)", label, pkg.Origin())
}

// Clean removes every package and then the package directory
func (m *Manager) Clean(ctx context.Context) error {
	md, err := metadata.TryLoad(m.fs, m.pkgdir, false)
	if err != nil {
		return &Error{Op: "clean", Err: err}
	}
	for _, pkg := range md.Packages() {
		if _, _, err := origins.CleanAll(ctx, md, pkg, nil, false); err != nil {
			return &Error{Op: "clean", Package: pkg.Name(), Err: err}
		}
	}
	if err := m.fs.RemoveAll(m.pkgdir); err != nil {
		return &Error{Op: "clean", Err: err}
	}
	return nil
}
