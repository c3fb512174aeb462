// pkg/builders/builder.go
package builders

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/arc-language/mopack/pkg/core"
	"github.com/arc-language/mopack/pkg/expr"
	"github.com/arc-language/mopack/pkg/freezedry"
	"github.com/arc-language/mopack/pkg/options"
	"github.com/arc-language/mopack/pkg/types"
)

// Builder turns fetched sources into build artifacts by delegating to a
// build tool
type Builder interface {
	freezedry.Dehydrater

	// Type returns the builder tag (e.g., "cmake")
	Type() string

	// PathBases returns the path bases this builder contributes
	PathBases() []string

	// PathValues returns concrete directories for PathBases, given the
	// values known so far
	PathValues(md core.Metadata, values map[string]string) map[string]string

	// FilterLinkage may replace the linkage requested for the package
	FilterLinkage(linkage any) any

	// Build runs the build
	Build(ctx context.Context, md core.Metadata, pkg core.Package) error

	// Deploy installs the build artifacts
	Deploy(ctx context.Context, md core.Metadata, pkg core.Package) error

	// Clean removes the build artifacts
	Clean(ctx context.Context, md core.Metadata, pkg core.Package) error
}

// Base holds what every builder knows about itself
type Base struct {
	Name    string // Name of the owning package
	Kind    string
	Symbols *expr.Symbols
}

// Type returns the builder tag
func (b *Base) Type() string { return b.Kind }

// FilterLinkage keeps the requested linkage
func (b *Base) FilterLinkage(linkage any) any { return linkage }

// BuildDir returns the directory the package is built in
func (b *Base) BuildDir(md core.Metadata) string {
	return filepath.Join(md.PkgDir(), "build", b.Name)
}

// Kind describes how to construct one type of builder
type Kind struct {
	Versioned freezedry.Versioned
	PathBases []string
	New       func(b Base, tc *types.TypeCheck) (Builder, error)
	Rehydrate func(b Base, r *freezedry.Reader) (Builder, error)
}

// Context carries what rehydration needs
type Context struct {
	Name    string
	Symbols *expr.Symbols
}

var (
	registry = freezedry.NewRegistry[Builder, Context]("builder", "type")
	kinds    = map[string]Kind{}
)

// Register adds a builder type
func Register(tag string, kind Kind) {
	registry.Register(tag, kind.Versioned, func(data map[string]any, ctx Context) (Builder, error) {
		base, err := newBase(ctx.Name, tag, ctx.Symbols)
		if err != nil {
			return nil, err
		}
		r := freezedry.NewReader(data)
		b, err := kind.Rehydrate(base, r)
		if err != nil {
			return nil, err
		}
		return b, r.Err()
	})
	kinds[tag] = kind
}

// Types returns the registered builder tags
func Types() []string { return registry.Tags() }

func newBase(name, tag string, symbols *expr.Symbols) (Base, error) {
	augmented, err := symbols.AugmentPathBases(kinds[tag].PathBases...)
	if err != nil {
		return Base{}, err
	}
	return Base{Name: name, Kind: tag, Symbols: augmented}, nil
}

// Make constructs a builder from configuration. The configuration is either
// a builder tag or a mapping with a `type` key. Each builder's own path
// bases are visible while its fields are evaluated; a base that is already
// defined yields an *expr.DuplicateSymbolError.
func Make(name string, raw any, symbols *expr.Symbols, field types.Field) (Builder, error) {
	var (
		tag       string
		data      map[string]any
		typeField = field
	)
	switch v := raw.(type) {
	case string:
		tag = v
	case map[string]any:
		data = make(map[string]any, len(v))
		for k, x := range v {
			data[k] = x
		}
		t, ok := data["type"].(string)
		if !ok {
			return nil, types.NewFieldKeyError("missing required field 'type'", field...)
		}
		tag = t
		typeField = field.Append("type")
		delete(data, "type")
	case nil:
		return nil, types.NewFieldValueError("builder not specified", field...)
	default:
		return nil, types.NewFieldValueError("expected a builder", field...)
	}

	kind, ok := kinds[tag]
	if !ok {
		return nil, registry.UnknownTag(tag, typeField...)
	}

	base, err := newBase(name, tag, symbols)
	if err != nil {
		return nil, err
	}
	tc := types.NewTypeCheck(data, base.Symbols, field...)
	b, err := kind.New(base, tc)
	if err != nil {
		return nil, err
	}
	if err := tc.Finish(); err != nil {
		return nil, err
	}
	return b, nil
}

// Rehydrate restores a builder from its persisted form
func Rehydrate(data any, name string, symbols *expr.Symbols) (Builder, error) {
	return registry.Rehydrate(data, Context{Name: name, Symbols: symbols})
}

// Dehydrate returns the persisted form of b, including its type
func Dehydrate(b Builder) (map[string]any, error) {
	return registry.Dehydrate(b.Type(), b)
}

// Equal reports whether two builders have the same configuration
func Equal(a, b Builder) bool {
	if a.Type() != b.Type() {
		return false
	}
	return freezedry.Equal(a, b)
}

// PathBasesOf returns the path bases a builder type contributes
func PathBasesOf(tag string) []string {
	return kinds[tag].PathBases
}

// Options returns the accumulated options for a builder type, if any
func Options(md core.Metadata, tag string) options.KindOptions {
	if md.Options() == nil {
		return nil
	}
	return md.Options().Builder(tag)
}

func requireSrcdir(values map[string]string, name string) (string, error) {
	srcdir, ok := values["srcdir"]
	if !ok {
		return "", fmt.Errorf("package %q has no source directory", name)
	}
	return srcdir, nil
}
