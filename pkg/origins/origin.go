// pkg/origins/origin.go
package origins

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"

	"github.com/arc-language/mopack/pkg/core"
	"github.com/arc-language/mopack/pkg/expr"
	"github.com/arc-language/mopack/pkg/freezedry"
	"github.com/arc-language/mopack/pkg/options"
	"github.com/arc-language/mopack/pkg/path"
	"github.com/arc-language/mopack/pkg/types"
)

// Package is a dependency together with where it comes from and how it is
// built and consumed
type Package interface {
	core.Package
	freezedry.Dehydrater

	// ConfigFile returns the file the package was defined in, or ""
	ConfigFile() string

	// Parent returns the name of the package whose config defined this one
	Parent() string

	Resolved() bool
	SetResolved(resolved bool)

	// ShouldDeploy reports whether deploy should install the package
	ShouldDeploy() bool

	// SetOptions hands the finalized options to the package
	SetOptions(opts *options.Options)

	// NeedsDependencies reports whether resolving the package may consult
	// the linkage of packages resolved before it
	NeedsDependencies() bool

	// BuilderTypes returns the builder tags the package uses
	BuilderTypes() []string

	// Fetch retrieves the package's sources, returning the nested config
	// found in them, if any
	Fetch(ctx context.Context, md core.Metadata, parent ParentConfig) (ChildConfig, error)

	Resolve(ctx context.Context, md core.Metadata) error
	Deploy(ctx context.Context, md core.Metadata) error

	// CleanPre removes stale sources before newPkg (nil when the package
	// is going away) is fetched
	CleanPre(ctx context.Context, md core.Metadata, newPkg Package, quiet bool) (bool, error)

	// CleanPost removes stale build artifacts once newPkg has been fetched
	CleanPost(ctx context.Context, md core.Metadata, newPkg Package, quiet bool) (bool, error)

	Version(ctx context.Context, md core.Metadata) (string, error)

	// Linkage describes how to link against the requested submodules
	Linkage(ctx context.Context, md core.Metadata, submodules []string) (map[string]any, error)
}

// Batch is implemented by origins that resolve all their packages with one
// external command
type Batch interface {
	ResolveAll(ctx context.Context, md core.Metadata, pkgs []Package) error
	DeployAll(ctx context.Context, md core.Metadata, pkgs []Package) error
}

// Source describes where a package definition came from
type Source struct {
	Options    *options.Options
	ConfigFile string
	Parent     string

	// Wrap attaches file locations to errors raised while building the
	// package, when available
	Wrap func(error) error
}

// BasePackage holds the fields every origin shares
type BasePackage struct {
	name       string
	origin     string
	configFile string
	parent     string
	resolved   bool
	deploy     bool

	opts    *options.Options
	symbols *expr.Symbols
	wrap    func(error) error
}

func newBase(name, origin string, src Source) (*BasePackage, error) {
	b := &BasePackage{
		name:       name,
		origin:     origin,
		configFile: src.ConfigFile,
		parent:     src.Parent,
		deploy:     true,
		opts:       src.Options,
		wrap:       src.Wrap,
	}
	if err := b.deriveSymbols(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *BasePackage) deriveSymbols() error {
	symbols := expr.NewSymbols(nil)
	if b.opts != nil {
		symbols = b.opts.Symbols()
	}
	if b.configFile != "" {
		var err error
		if symbols, err = symbols.AugmentPathBases(path.CfgDir); err != nil {
			return err
		}
	}
	b.symbols = symbols
	return nil
}

func (b *BasePackage) Name() string       { return b.name }
func (b *BasePackage) Origin() string     { return b.origin }
func (b *BasePackage) ConfigFile() string { return b.configFile }
func (b *BasePackage) Parent() string     { return b.parent }
func (b *BasePackage) Resolved() bool     { return b.resolved }
func (b *BasePackage) ShouldDeploy() bool { return b.deploy }

func (b *BasePackage) SetResolved(resolved bool) { b.resolved = resolved }

// ConfigDir returns the directory of the defining config file
func (b *BasePackage) ConfigDir() string {
	if b.configFile == "" {
		return ""
	}
	return filepath.Dir(b.configFile)
}

func (b *BasePackage) SetOptions(opts *options.Options) { b.opts = opts }

// Symbols returns the expression symbols the package's fields see
func (b *BasePackage) Symbols() *expr.Symbols { return b.symbols }

func (b *BasePackage) NeedsDependencies() bool { return false }
func (b *BasePackage) BuilderTypes() []string  { return nil }
func (b *BasePackage) Submodules() *core.Submodules {
	return nil
}

func (b *BasePackage) PathValues(core.Metadata) (map[string]string, error) {
	if b.configFile == "" {
		return map[string]string{}, nil
	}
	return map[string]string{path.CfgDir: b.ConfigDir()}, nil
}

func (b *BasePackage) CleanPre(context.Context, core.Metadata, Package, bool) (bool, error) {
	return false, nil
}

func (b *BasePackage) CleanPost(context.Context, core.Metadata, Package, bool) (bool, error) {
	return false, nil
}

func (b *BasePackage) Deploy(context.Context, core.Metadata) error { return nil }

func (b *BasePackage) wrapErr(err error) error {
	if err == nil || b.wrap == nil {
		return err
	}
	return b.wrap(err)
}

func (b *BasePackage) dehydrate() map[string]any {
	var configFile, parent any
	if b.configFile != "" {
		configFile = b.configFile
	}
	if b.parent != "" {
		parent = b.parent
	}
	return map[string]any{
		"name":        b.name,
		"config_file": configFile,
		"parent":      parent,
		"resolved":    b.resolved,
		"deploy":      b.deploy,
	}
}

// Kind describes how to construct one origin
type Kind struct {
	Versioned freezedry.Versioned
	New       func(b *BasePackage, tc *types.TypeCheck) (Package, error)
	Rehydrate func(b *BasePackage, r *freezedry.Reader) (Package, error)

	// Batch is set for origins resolved all at once
	Batch Batch

	// Skip names fields that never make two definitions differ
	Skip []string
}

// Context carries what rehydration needs
type Context struct {
	Options *options.Options
}

var (
	registry = freezedry.NewRegistry[Package, Context]("origin", "origin")
	kinds    = map[string]Kind{}
)

// Register adds an origin
func Register(tag string, kind Kind) {
	registry.Register(tag, kind.Versioned, func(data map[string]any, ctx Context) (Package, error) {
		r := freezedry.NewReader(data)
		b := &BasePackage{
			name:       r.String("name"),
			origin:     tag,
			configFile: r.OptString("config_file"),
			parent:     r.OptString("parent"),
			resolved:   r.Bool("resolved"),
			deploy:     !r.Has("deploy") || r.Bool("deploy"),
			opts:       ctx.Options,
		}
		if err := r.Err(); err != nil {
			return nil, err
		}
		if err := b.deriveSymbols(); err != nil {
			return nil, err
		}
		pkg, err := kind.Rehydrate(b, r)
		if err != nil {
			return nil, fmt.Errorf("rehydrating package %q: %w", b.name, err)
		}
		return pkg, r.Err()
	})
	kinds[tag] = kind
}

// Types returns the registered origin tags
func Types() []string { return registry.Tags() }

// BatchFor returns the batch implementation of an origin, if it has one
func BatchFor(origin string) (Batch, bool) {
	b := kinds[origin].Batch
	return b, b != nil
}

// Make constructs a package from its configuration. The `origin` key picks
// the origin; the rest are origin fields.
func Make(name string, raw map[string]any, src Source) (Package, error) {
	wrap := func(err error) error {
		if src.Wrap != nil {
			return src.Wrap(err)
		}
		return err
	}

	if _, ok := raw["config_file"]; ok {
		return nil, wrap(types.NewFieldKeyError("config_file is reserved", "config_file"))
	}
	tag, ok := raw["origin"].(string)
	if !ok {
		if _, present := raw["origin"]; present {
			return nil, wrap(types.NewFieldValueError("expected a string", "origin"))
		}
		return nil, wrap(types.NewFieldKeyError("missing required field 'origin'"))
	}
	kind, ok := kinds[tag]
	if !ok {
		return nil, wrap(registry.UnknownTag(tag, "origin"))
	}

	data := maps.Clone(raw)
	delete(data, "origin")

	b, err := newBase(name, tag, src)
	if err != nil {
		return nil, err
	}
	tc := types.NewTypeCheck(data, b.symbols)
	types.Check(tc, "deploy", types.Maybe(types.Boolean, true), &b.deploy)
	if err := tc.Err(); err != nil {
		return nil, wrap(err)
	}

	pkg, err := kind.New(b, tc)
	if err != nil {
		return nil, wrap(err)
	}
	if err := tc.Finish(); err != nil {
		return nil, wrap(err)
	}
	return pkg, nil
}

// Rehydrate restores a package from its persisted form
func Rehydrate(data any, opts *options.Options) (Package, error) {
	return registry.Rehydrate(data, Context{Options: opts})
}

// Dehydrate returns the persisted form of pkg, including its origin
func Dehydrate(pkg Package) (map[string]any, error) {
	return registry.Dehydrate(pkg.Origin(), pkg)
}

var transient = []string{"config_file", "resolved", "parent"}

// Equal reports whether two packages have the same definition, ignoring
// where they were defined and whether they have been resolved
func Equal(a, b Package, opts ...freezedry.EqualOption) bool {
	if a.Origin() != b.Origin() {
		return false
	}
	skip := append(append([]string(nil), transient...), kinds[a.Origin()].Skip...)
	return freezedry.Equal(a, b, append(opts, freezedry.Skip(skip...))...)
}

// CleanAll runs both cleanup steps for a package being replaced by newPkg,
// or removed entirely when newPkg is nil
func CleanAll(ctx context.Context, md core.Metadata, pkg, newPkg Package, quiet bool) (bool, bool, error) {
	pre, err := pkg.CleanPre(ctx, md, newPkg, quiet)
	if err != nil {
		return pre, false, err
	}
	post, err := pkg.CleanPost(ctx, md, newPkg, quiet)
	return pre, post, err
}

// FallbackSystemPackage stands in for a package with no definition, treating
// it as a library installed on the system
func FallbackSystemPackage(name string, opts *options.Options) (Package, error) {
	pkg, err := Make(name, map[string]any{"origin": "system"}, Source{Options: opts})
	if err != nil {
		return nil, err
	}
	pkg.SetResolved(true)
	return pkg, nil
}

// checkedLinkage validates the requested submodules and asks the linkage
// for its description
func checkedLinkage(ctx context.Context, md core.Metadata, pkg core.Package, l linkageGetter, wanted []string) (map[string]any, error) {
	if l == nil {
		return nil, fmt.Errorf("package %q has not been fully defined", pkg.Name())
	}
	subs, err := core.Check(pkg.Name(), pkg.Submodules(), wanted)
	if err != nil {
		return nil, err
	}
	return l.Linkage(ctx, md, pkg, subs)
}

type linkageGetter interface {
	Linkage(ctx context.Context, md core.Metadata, pkg core.Package, submodules []string) (map[string]any, error)
}

func environment(md core.Metadata) expr.Env {
	if md.Options() == nil {
		return expr.NewEnv(nil)
	}
	return md.Options().Common.Environment()
}
