// pkg/origins/sdist.go
package origins

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/spf13/afero"

	"github.com/arc-language/mopack/pkg/builders"
	"github.com/arc-language/mopack/pkg/core"
	"github.com/arc-language/mopack/pkg/defaults"
	"github.com/arc-language/mopack/pkg/expr"
	"github.com/arc-language/mopack/pkg/freezedry"
	"github.com/arc-language/mopack/pkg/linkages"
	"github.com/arc-language/mopack/pkg/logging"
	"github.com/arc-language/mopack/pkg/path"
	"github.com/arc-language/mopack/pkg/types"
)

// sdistVersion is shared by every source origin. Version 0 stored a single
// `builder` and called the linkage `usage`.
var sdistVersion = freezedry.Versioned{
	Version: 1,
	Upgrade: func(data map[string]any, version int) (map[string]any, error) {
		if version < 1 {
			if b, ok := data["builder"]; ok {
				delete(data, "builder")
				if b == nil {
					data["builders"] = []any{}
				} else {
					data["builders"] = []any{b}
				}
			}
			if u, ok := data["usage"]; ok {
				delete(data, "usage")
				data["linkage"] = u
			}
		}
		return data, nil
	},
}

// sourceDirer is implemented by each source origin
type sourceDirer interface {
	// sourceDir returns the fetched source directory, if known yet
	sourceDir(md core.Metadata) (string, bool)
}

// SDistPackage is a package built from source. Its builders and linkage may
// come from the config exported by the sources themselves, so they are only
// constructed once the sources have been fetched.
type SDistPackage struct {
	*BasePackage
	submodules    *core.Submodules
	submodulesSet bool

	env             map[string]string
	dependencies    []string
	dependenciesSet bool
	builders      []builders.Builder
	linkage       linkages.Linkage

	pendingBuilders any
	pendingLinkage  any

	self sourceDirer
}

func newSDist(b *BasePackage, tc *types.TypeCheck, self sourceDirer) *SDistPackage {
	s := &SDistPackage{BasePackage: b, self: self}
	types.Check(tc, "env", types.Maybe(types.DictOf(types.String), map[string]string{}), &s.env)
	s.augmentEnv()
	tc.SetSymbols(s.symbols)

	if tc.Has("dependencies") {
		s.dependenciesSet = types.Check(tc, "dependencies",
			types.ListOf(core.DependencyChecker, true), &s.dependencies)
	}
	if tc.Has("submodules") {
		types.Check(tc, "submodules", core.SubmodulesChecker, &s.submodules)
		s.submodulesSet = true
	}
	s.pendingBuilders = tc.Raw("build")
	s.pendingLinkage, _ = linkageField(tc)
	return s
}

// augmentEnv exposes the package's environment to its expressions, layered
// over the common options' environment.
func (s *SDistPackage) augmentEnv() {
	if len(s.env) == 0 {
		return
	}
	s.symbols = s.symbols.Augment(map[string]any{"env": expr.NewEnv(s.Env())})
}

// Env returns the environment the package is built with: the common
// environment with the package's own `env` on top.
func (s *SDistPackage) Env() map[string]string {
	result := map[string]string{}
	if s.opts != nil {
		maps.Copy(result, s.opts.Common.Env)
	}
	maps.Copy(result, s.env)
	return result
}

// Dependencies returns the packages this one depends on. Unless set
// explicitly, these are the packages its exported config defines.
func (s *SDistPackage) Dependencies() []string { return s.dependencies }

// Finalized reports whether the builders and linkage have been constructed
func (s *SDistPackage) Finalized() bool { return s.linkage != nil }

func (s *SDistPackage) Submodules() *core.Submodules { return s.submodules }

// Builders returns the package's builders in build order
func (s *SDistPackage) Builders() []builders.Builder { return s.builders }

// LinkageConfig returns the package's linkage, or nil before fetching
func (s *SDistPackage) LinkageConfig() linkages.Linkage { return s.linkage }

func (s *SDistPackage) NeedsDependencies() bool { return true }

func (s *SDistPackage) BuilderTypes() []string {
	result := make([]string, len(s.builders))
	for i, b := range s.builders {
		result[i] = b.Type()
	}
	return result
}

func (s *SDistPackage) builderSymbols() *expr.Symbols {
	symbols, err := s.symbols.AugmentPathBases(path.SrcDir)
	if err != nil {
		return s.symbols
	}
	return symbols
}

func (s *SDistPackage) linkageSymbols() *expr.Symbols {
	symbols := s.builderSymbols()
	for _, b := range s.builders {
		if next, err := symbols.AugmentPathBases(b.PathBases()...); err == nil {
			symbols = next
		}
	}
	return symbols
}

// basePathValues returns the directories known without consulting builders
func (s *SDistPackage) basePathValues(md core.Metadata) map[string]string {
	result, _ := s.BasePackage.PathValues(md)
	if dir, ok := s.self.sourceDir(md); ok {
		result[path.SrcDir] = dir
	}
	return result
}

func (s *SDistPackage) PathValues(md core.Metadata) (map[string]string, error) {
	result := s.basePathValues(md)
	for _, b := range s.builders {
		maps.Copy(result, b.PathValues(md, maps.Clone(result)))
	}
	return result, nil
}

func (s *SDistPackage) makeBuilders(raw any, field types.Field) ([]builders.Builder, error) {
	var items []any
	var fields []types.Field
	switch v := raw.(type) {
	case []any:
		for i, item := range v {
			items = append(items, item)
			fields = append(fields, field.Append(i))
		}
	default:
		if raw == types.Unset {
			raw = nil
		}
		items, fields = []any{raw}, []types.Field{field}
	}

	symbols := s.builderSymbols()
	owners := map[string]string{}
	result := make([]builders.Builder, 0, len(items))
	for i, item := range items {
		b, err := builders.Make(s.name, item, symbols, fields[i])
		var dup *expr.DuplicateSymbolError
		if errors.As(err, &dup) {
			msg := fmt.Sprintf("'%s' already defined", dup.Name)
			if owner, ok := owners[dup.Name]; ok {
				msg += fmt.Sprintf(" by '%s' builder", owner)
			}
			return nil, types.NewFieldValueError(msg, fields[i]...)
		} else if err != nil {
			return nil, err
		}

		bases := b.PathBases()
		if symbols, err = symbols.AugmentPathBases(bases...); err != nil {
			return nil, err
		}
		for _, base := range bases {
			owners[base] = b.Type()
		}
		result = append(result, b)
	}
	return result, nil
}

func (s *SDistPackage) makeLinkage(raw any, field types.Field) (linkages.Linkage, error) {
	for _, b := range s.builders {
		raw = b.FilterLinkage(raw)
	}
	if raw == nil || raw == types.Unset {
		raw, field = "pkg_config", nil
	}
	return linkages.Make(s.name, raw, s.linkageSymbols(), field)
}

func notFullyDefined(name string) error {
	return types.NewFieldValueError(fmt.Sprintf(
		"build for package %q is not fully defined and package has no exported config", name))
}

// findMopack reads the config shipped in srcdir and uses it to finish
// constructing the package. Fields set in the parent's definition win over
// those exported by the sources.
func (s *SDistPackage) findMopack(parent ParentConfig, srcdir string) (ChildConfig, error) {
	var child ChildConfig
	if parent != nil {
		var err error
		if child, err = parent.LoadChild(srcdir, s.self.(Package)); err != nil {
			return nil, err
		}
	}

	var export *Export
	if child != nil {
		export = child.Export()
	}
	if export == nil {
		if s.pendingBuilders == types.Unset {
			return nil, s.wrapErr(notFullyDefined(s.name))
		}
		export = &Export{Build: types.Unset, Linkage: types.Unset, Submodules: types.Unset}
	}

	if !s.submodulesSet {
		checker := defaults.Resolve(s.name, "origin", "submodules", core.SubmodulesChecker)
		subs, err := checker(types.Field{"submodules"}, export.Submodules)
		if err != nil {
			return nil, export.wrap(err)
		}
		s.submodules = subs
		s.submodulesSet = true
	}

	if !s.dependenciesSet {
		s.dependencies = []string{}
		if child != nil {
			s.dependencies = append(s.dependencies, child.PackageNames()...)
		}
		s.dependenciesSet = true
	}

	var err error
	switch {
	case s.pendingBuilders != types.Unset:
		s.builders, err = s.makeBuilders(s.pendingBuilders, types.Field{"build"})
		err = s.wrapErr(err)
	case export.Build != types.Unset && export.Build != nil:
		s.builders, err = s.makeBuilders(export.Build, types.Field{"build"})
		err = export.wrap(err)
	default:
		err = s.wrapErr(notFullyDefined(s.name))
	}
	if err != nil {
		return nil, err
	}

	if s.pendingLinkage == types.Unset && export.Linkage != types.Unset {
		s.linkage, err = s.makeLinkage(export.Linkage, types.Field{"linkage"})
		err = export.wrap(err)
	} else {
		s.linkage, err = s.makeLinkage(s.pendingLinkage, types.Field{"linkage"})
		err = s.wrapErr(err)
	}
	if err != nil {
		return nil, err
	}

	s.pendingBuilders, s.pendingLinkage = nil, nil
	return child, nil
}

// needsClean reports whether newPkg's sources differ from ours. Fields the
// new package fills in from its sources are not real differences.
func (s *SDistPackage) needsClean(newPkg Package) bool {
	if newPkg == nil {
		return true
	}
	return !Equal(s.self.(Package), newPkg,
		freezedry.Optional("dependencies", "builders", "linkage", "submodules"))
}

func (s *SDistPackage) CleanPost(ctx context.Context, md core.Metadata, newPkg Package, quiet bool) (bool, error) {
	if newPkg != nil && Equal(s.self.(Package), newPkg) {
		return false, nil
	}
	if !quiet {
		logging.Clean(ctx, s.name, "")
	}
	for _, b := range s.builders {
		if err := b.Clean(ctx, md, s); err != nil {
			return true, err
		}
	}
	return true, nil
}

// removeSources deletes a fetched source tree
func (s *SDistPackage) removeSources(ctx context.Context, md core.Metadata, dir string, quiet bool) error {
	if !quiet {
		logging.Clean(ctx, s.name, "sources")
	}
	if exists, _ := afero.DirExists(md.FS(), dir); !exists {
		return nil
	}
	return md.FS().RemoveAll(dir)
}

func (s *SDistPackage) Resolve(ctx context.Context, md core.Metadata) error {
	if !s.Finalized() {
		return fmt.Errorf("package %q has not been fetched", s.name)
	}
	logging.Resolve(ctx, s.name, "")
	for _, b := range s.builders {
		if err := b.Build(ctx, md, s); err != nil {
			return err
		}
	}
	s.resolved = true
	return nil
}

func (s *SDistPackage) Deploy(ctx context.Context, md core.Metadata) error {
	if !s.deploy || len(s.builders) == 0 {
		return nil
	}
	logging.Deploy(ctx, s.name, "")
	return s.builders[len(s.builders)-1].Deploy(ctx, md, s)
}

func (s *SDistPackage) Version(ctx context.Context, md core.Metadata) (string, error) {
	if s.linkage == nil {
		return "", fmt.Errorf("package %q has not been fetched", s.name)
	}
	return s.linkage.Version(ctx, md, s)
}

func (s *SDistPackage) Linkage(ctx context.Context, md core.Metadata, submodules []string) (map[string]any, error) {
	return checkedLinkage(ctx, md, s, s.linkage, submodules)
}

func (s *SDistPackage) dehydrate() (map[string]any, error) {
	data := s.BasePackage.dehydrate()
	data["submodules"] = s.submodules.Dehydrate()

	env := make(map[string]any, len(s.env))
	for k, v := range s.env {
		env[k] = v
	}
	data["env"] = env

	var deps any
	if s.dependenciesSet {
		list := make([]any, len(s.dependencies))
		for i, d := range s.dependencies {
			list[i] = d
		}
		deps = list
	}
	data["dependencies"] = deps

	var bs, l any
	if s.Finalized() {
		list := make([]any, len(s.builders))
		for i, b := range s.builders {
			d, err := builders.Dehydrate(b)
			if err != nil {
				return nil, err
			}
			list[i] = d
		}
		bs = list

		d, err := linkages.Dehydrate(s.linkage)
		if err != nil {
			return nil, err
		}
		l = d
	}
	data["builders"] = bs
	data["linkage"] = l
	return data, nil
}

func rehydrateSDist(b *BasePackage, r *freezedry.Reader, self sourceDirer) (*SDistPackage, error) {
	s := &SDistPackage{BasePackage: b, self: self, pendingBuilders: types.Unset, pendingLinkage: types.Unset}

	subs, err := core.RehydrateSubmodules(r.Raw("submodules"))
	if err != nil {
		return nil, err
	}
	s.submodules, s.submodulesSet = subs, true

	s.env = map[string]string{}
	r.Decode("env", &s.env)
	s.augmentEnv()
	if r.Raw("dependencies") != nil {
		r.Decode("dependencies", &s.dependencies)
		s.dependenciesSet = true
	}

	if r.Raw("linkage") == nil {
		return s, nil
	}

	list, _ := r.Raw("builders").([]any)
	symbols := s.builderSymbols()
	for i, item := range list {
		bld, err := builders.Rehydrate(item, b.name, symbols)
		if err != nil {
			return nil, types.WrapField(err, "builders", i)
		}
		if symbols, err = symbols.AugmentPathBases(bld.PathBases()...); err != nil {
			return nil, err
		}
		s.builders = append(s.builders, bld)
	}

	l, err := linkages.Rehydrate(r.Raw("linkage"), b.name, s.linkageSymbols())
	if err != nil {
		return nil, types.WrapField(err, "linkage")
	}
	s.linkage = l
	s.pendingBuilders, s.pendingLinkage = nil, nil
	return s, nil
}
