// pkg/config/config.go
package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/arc-language/mopack/pkg/options"
	"github.com/arc-language/mopack/pkg/origins"
	"github.com/arc-language/mopack/pkg/types"
	"github.com/arc-language/mopack/pkg/yamltools"
)

const (
	// FileName is the config file read from a directory
	FileName = "mopack.yml"

	// LocalFileName overrides FileName for local development
	LocalFileName = "mopack-local.yml"
)

type placeholderPackage struct{ origins.Package }

// PlaceholderPackage stands in for a package an ancestor config defines.
// It must not be used as a package.
var PlaceholderPackage origins.Package = placeholderPackage{}

// candidate is one entry in a package's list of definitions
type candidate struct {
	data map[string]any
	src  yamltools.Source
}

type pending struct {
	file       string
	src        yamltools.Source
	candidates []candidate
}

// Config is the merged set of packages and options from one or more files.
// A Config with a parent is a child config found inside fetched sources.
type Config struct {
	fs       afero.Fs
	files    []string
	implicit []string
	parent   *Config
	owner    string
	opts     *options.Options
	child    *ChildConfig

	// fragments holds a child's option fragments until they are merged into
	// the root
	fragments []options.Fragment

	order    []string
	packages map[string]origins.Package
	sources  map[string]yamltools.Source
	pending  map[string]pending

	finalized bool
}

func newConfig(fs afero.Fs, parent *Config, owner string, opts *options.Options) *Config {
	return &Config{
		fs:       fs,
		parent:   parent,
		owner:    owner,
		opts:     opts,
		packages: map[string]origins.Package{},
		sources:  map[string]yamltools.Source{},
		pending:  map[string]pending{},
	}
}

// Load reads the config files, later files taking priority over earlier
// ones. A directory stands for the mopack.yml and mopack-local.yml inside it.
// The fragments are applied before any file, so they win outright.
func Load(fs afero.Fs, files []string, fragments ...options.Fragment) (*Config, error) {
	c := newConfig(fs, nil, "", options.New())
	for _, f := range fragments {
		if err := c.opts.Accumulate(f); err != nil {
			return nil, err
		}
	}

	expanded, err := expand(fs, files)
	if err != nil {
		return nil, err
	}
	c.files = expanded
	for i := len(expanded) - 1; i >= 0; i-- {
		doc, err := yamltools.Load(fs, expanded[i])
		if err != nil {
			return nil, err
		}
		if err := c.accumulate(doc); err != nil {
			return nil, err
		}
	}

	c.opts.FinalizeCommon()
	if err := c.finalizePackages(); err != nil {
		return nil, err
	}
	return c, nil
}

func expand(fs afero.Fs, files []string) ([]string, error) {
	var result []string
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", f, err)
		}
		isDir, err := afero.IsDir(fs, abs)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		if !isDir {
			result = append(result, abs)
			continue
		}
		for _, name := range []string{FileName, LocalFileName} {
			p := filepath.Join(abs, name)
			if ok, _ := afero.Exists(fs, p); ok {
				result = append(result, p)
			}
		}
	}
	return result, nil
}

// accumulate reads one file. Files are read from highest priority to
// lowest, so the first definition of each package wins.
func (c *Config) accumulate(doc *yamltools.Document) error {
	root := doc.Root()
	if doc.Data == nil {
		return nil
	}
	data, ok := doc.Data.(map[string]any)
	if !ok {
		return root.Wrap(types.NewFieldValueError("expected a dictionary"))
	}

	tc := types.NewTypeCheck(data, nil)
	if c.parent != nil {
		if err := c.readExport(tc.Raw("export"), root.Child("export")); err != nil {
			return err
		}
	} else {
		tc.Ignore("export")
	}
	if err := c.readOptions(doc, tc.Raw("options"), root.Child("options")); err != nil {
		return err
	}
	if err := c.readPackages(doc.File, tc.Raw("packages"), root.Child("packages")); err != nil {
		return err
	}
	return root.Wrap(tc.Finish())
}

func (c *Config) readOptions(doc *yamltools.Document, raw any, src yamltools.Source) error {
	if raw == types.Unset || raw == nil {
		return nil
	}
	blocks, ok := raw.(map[string]any)
	if !ok {
		return src.Wrap(types.NewFieldValueError("expected a dictionary"))
	}

	cfgdir := filepath.Dir(doc.File)
	var frags []options.Fragment
	for _, genus := range []options.Genus{options.GenusCommon, options.GenusOrigins, options.GenusBuilders} {
		block, ok := blocks[string(genus)]
		if !ok || block == nil {
			continue
		}
		m, ok := block.(map[string]any)
		if !ok {
			return src.Wrap(types.NewFieldValueError("expected a dictionary", string(genus)))
		}
		if genus == options.GenusCommon {
			frags = append(frags, options.Fragment{
				Genus: genus, Data: m, ConfigDir: cfgdir, Child: c.parent != nil, Wrap: src.Wrap,
			})
			continue
		}
		for _, kind := range sortedKeys(m) {
			data, ok := m[kind].(map[string]any)
			if !ok && m[kind] != nil {
				return src.Wrap(types.NewFieldValueError("expected a dictionary", string(genus), kind))
			}
			frags = append(frags, options.Fragment{
				Genus: genus, Kind: kind, Data: data, ConfigDir: cfgdir, Child: c.parent != nil, Wrap: src.Wrap,
			})
		}
	}
	for k := range blocks {
		switch options.Genus(k) {
		case options.GenusCommon, options.GenusOrigins, options.GenusBuilders:
		default:
			return src.Wrap(types.NewFieldKeyError(fmt.Sprintf("unexpected field %q", k), k))
		}
	}

	for _, f := range frags {
		if err := c.addFragment(f); err != nil {
			return err
		}
	}
	return nil
}

// addFragment applies f at the root, or holds it until this child is merged
func (c *Config) addFragment(f options.Fragment) error {
	if c.parent == nil {
		return c.opts.Accumulate(f)
	}
	if f.Genus == options.GenusCommon {
		return f.Wrap(types.NewFieldKeyError("common options cannot be set in child configs", "common"))
	}
	c.fragments = append(c.fragments, f)
	return nil
}

func (c *Config) readPackages(file string, raw any, src yamltools.Source) error {
	if raw == types.Unset || raw == nil {
		return nil
	}
	pkgs, ok := raw.(map[string]any)
	if !ok {
		return src.Wrap(types.NewFieldValueError("expected a dictionary"))
	}

	for _, name := range orderedKeys(pkgs, src) {
		if _, ok := c.packages[name]; ok {
			continue
		}
		if _, ok := c.pending[name]; ok {
			continue
		}
		pkgSrc := src.Child(name)
		c.order = append(c.order, name)
		c.sources[name] = pkgSrc

		if c.inParent(name) {
			c.packages[name] = PlaceholderPackage
			continue
		}

		p := pending{file: file, src: pkgSrc}
		switch v := pkgs[name].(type) {
		case map[string]any:
			p.candidates = []candidate{{data: v, src: pkgSrc}}
		case []any:
			for i, item := range v {
				m, ok := item.(map[string]any)
				if !ok {
					return src.Wrap(types.NewFieldValueError("expected a package definition", name, i))
				}
				p.candidates = append(p.candidates, candidate{data: m, src: pkgSrc.Child(i)})
			}
		default:
			return src.Wrap(types.NewFieldValueError("expected a package definition", name))
		}
		c.pending[name] = p
	}
	return nil
}

func (c *Config) inParent(name string) bool {
	for p := c.parent; p != nil; p = p.parent {
		if _, ok := p.packages[name]; ok {
			return true
		}
	}
	return false
}

// finalizePackages picks the first definition of each package whose `if`
// holds and constructs it
func (c *Config) finalizePackages() error {
	symbols := c.opts.Symbols()
	var order []string
	for _, name := range c.order {
		p, ok := c.pending[name]
		if !ok {
			order = append(order, name)
			continue
		}
		delete(c.pending, name)

		for i, cand := range p.candidates {
			if i < len(p.candidates)-1 {
				if _, ok := cand.data["if"]; !ok {
					return cand.src.Wrap(types.NewFieldValueError(
						"package config has no `if` field, but is not last entry of list"))
				}
			}
		}

		var pkg origins.Package
		for _, cand := range p.candidates {
			selected, err := types.EvaluateIf(symbols, types.Field{"if"}, ifValue(cand.data))
			if err != nil {
				return cand.src.Wrap(err)
			}
			if !selected {
				continue
			}

			data := make(map[string]any, len(cand.data))
			for k, v := range cand.data {
				if k != "if" {
					data[k] = v
				}
			}
			pkg, err = origins.Make(name, data, origins.Source{
				Options:    c.opts,
				ConfigFile: p.file,
				Parent:     c.owner,
				Wrap:       cand.src.Wrap,
			})
			if err != nil {
				return err
			}
			c.sources[name] = cand.src
			break
		}

		if pkg == nil {
			delete(c.sources, name)
			continue
		}
		c.packages[name] = pkg
		order = append(order, name)
	}
	c.order = order
	return nil
}

func ifValue(data map[string]any) any {
	if v, ok := data["if"]; ok {
		return v
	}
	return true
}

// Files returns the config files given explicitly, in priority order
func (c *Config) Files() []string { return c.files }

// ImplicitFiles returns the child config files merged into this one
func (c *Config) ImplicitFiles() []string { return c.implicit }

// Options returns the options for this resolution
func (c *Config) Options() *options.Options { return c.opts }

// Names returns every package name in resolution order, placeholders
// included
func (c *Config) Names() []string { return c.order }

// Package returns the named package. Placeholders are returned as
// PlaceholderPackage.
func (c *Config) Package(name string) (origins.Package, bool) {
	pkg, ok := c.packages[name]
	return pkg, ok
}

// Packages returns the packages defined here in resolution order, skipping
// placeholders
func (c *Config) Packages() []origins.Package {
	result := make([]origins.Package, 0, len(c.order))
	for _, name := range c.order {
		if pkg := c.packages[name]; pkg != PlaceholderPackage {
			result = append(result, pkg)
		}
	}
	return result
}

// Finalize applies the pending origin and builder options and hands the
// finished options to every package. It is called once every package has
// been fetched.
func (c *Config) Finalize() error {
	if c.parent != nil {
		return fmt.Errorf("child configs cannot be finalized")
	}
	if c.finalized {
		return nil
	}

	var originKinds, builderKinds []string
	seen := map[string]bool{}
	for _, pkg := range c.Packages() {
		if !seen["o/"+pkg.Origin()] {
			seen["o/"+pkg.Origin()] = true
			originKinds = append(originKinds, pkg.Origin())
		}
		for _, b := range pkg.BuilderTypes() {
			if !seen["b/"+b] {
				seen["b/"+b] = true
				builderKinds = append(builderKinds, b)
			}
		}
	}
	if err := c.opts.Finalize(originKinds, builderKinds); err != nil {
		return err
	}
	for _, pkg := range c.Packages() {
		pkg.SetOptions(c.opts)
	}
	c.finalized = true
	return nil
}
