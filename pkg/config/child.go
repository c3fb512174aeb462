// pkg/config/child.go
package config

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/arc-language/mopack/pkg/origins"
	"github.com/arc-language/mopack/pkg/types"
	"github.com/arc-language/mopack/pkg/yamltools"
)

// ChildConfig is a config found in a package's fetched sources
type ChildConfig struct {
	*Config
	export *origins.Export
}

// Export returns the export block, or nil if the config has none
func (c *ChildConfig) Export() *origins.Export { return c.export }

// PackageNames returns the names the child config mentions
func (c *ChildConfig) PackageNames() []string { return c.order }

// LoadChild reads the config in dir, if any, as a child of c on behalf of
// pkg. Packages an ancestor already defines become placeholders.
func (c *Config) LoadChild(dir string, pkg origins.Package) (origins.ChildConfig, error) {
	file := filepath.Join(dir, FileName)
	if ok, err := afero.Exists(c.fs, file); err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	} else if !ok {
		return nil, nil
	}

	doc, err := yamltools.Load(c.fs, file)
	if err != nil {
		return nil, err
	}

	child := &ChildConfig{Config: newConfig(c.fs, c, pkg.Name(), c.opts)}
	child.Config.files = []string{file}
	child.Config.child = child
	if err := child.accumulate(doc); err != nil {
		return nil, err
	}
	if err := child.finalizePackages(); err != nil {
		return nil, err
	}
	return child, nil
}

func (c *Config) readExport(raw any, src yamltools.Source) error {
	if raw == types.Unset || raw == nil {
		return nil
	}
	data, ok := raw.(map[string]any)
	if !ok {
		return src.Wrap(types.NewFieldValueError("expected a dictionary"))
	}

	tc := types.NewTypeCheck(data, nil)
	export := &origins.Export{
		Build:      tc.Raw("build"),
		Submodules: tc.Raw("submodules"),
		Wrap:       src.Wrap,
	}
	if tc.Has("linkage") || !tc.Has("usage") {
		export.Linkage = tc.Raw("linkage")
		tc.Ignore("usage")
	} else {
		export.Linkage = tc.Raw("usage")
	}
	if err := tc.Finish(); err != nil {
		return src.Wrap(err)
	}
	c.child.export = export
	return nil
}

// AddChildren merges child configs into c. Sibling children must agree on
// every package they both define. A definition in c wins over a child's, and
// packages coming from children are ordered before c's own.
func (c *Config) AddChildren(children []*ChildConfig) error {
	first := map[string]origins.Package{}
	for _, child := range children {
		for _, name := range child.order {
			pkg := child.packages[name]
			if pkg == PlaceholderPackage {
				continue
			}
			if prev, ok := first[name]; ok {
				if !origins.Equal(prev, pkg) {
					return child.sources[name].Wrap(types.NewFieldValueError(
						fmt.Sprintf("conflicting definitions for package %q", name)))
				}
				continue
			}
			first[name] = pkg
		}
	}

	var order []string
	packages := map[string]origins.Package{}
	sources := map[string]yamltools.Source{}
	for _, child := range children {
		for _, name := range child.order {
			if _, ok := packages[name]; ok {
				continue
			}
			if pkg, ok := c.packages[name]; ok {
				packages[name], sources[name] = pkg, c.sources[name]
			} else if pkg := first[name]; pkg != nil {
				packages[name], sources[name] = pkg, child.sources[name]
			} else {
				packages[name], sources[name] = child.packages[name], child.sources[name]
			}
			order = append(order, name)
		}

		for _, f := range child.fragments {
			if err := c.addFragment(f); err != nil {
				return err
			}
		}
		c.implicit = append(c.implicit, child.files...)
		c.implicit = append(c.implicit, child.implicit...)
	}

	for _, name := range c.order {
		if _, ok := packages[name]; ok {
			continue
		}
		packages[name], sources[name] = c.packages[name], c.sources[name]
		order = append(order, name)
	}
	c.order, c.packages, c.sources = order, packages, sources
	return nil
}

// orderedKeys returns the keys of m in the order they appear in the file
func orderedKeys(m map[string]any, src yamltools.Source) []string {
	keys := sortedKeys(m)
	if src.Marks == nil {
		return keys
	}
	sort.SliceStable(keys, func(i, j int) bool {
		a, b := src.Marks.Keys[keys[i]], src.Marks.Keys[keys[j]]
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return keys
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
