// pkg/linkages/linkage.go
package linkages

import (
	"context"
	"maps"

	"github.com/arc-language/mopack/pkg/core"
	"github.com/arc-language/mopack/pkg/expr"
	"github.com/arc-language/mopack/pkg/freezedry"
	"github.com/arc-language/mopack/pkg/path"
	"github.com/arc-language/mopack/pkg/types"
)

// Linkage describes how consumers link against a resolved package
type Linkage interface {
	freezedry.Dehydrater

	// Type returns the linkage tag (e.g., "pkg_config")
	Type() string

	// Version returns the package version, or "" if unknown
	Version(ctx context.Context, md core.Metadata, pkg core.Package) (string, error)

	// Linkage returns the consumer-facing description for the requested
	// submodules, which have already been validated
	Linkage(ctx context.Context, md core.Metadata, pkg core.Package, submodules []string) (map[string]any, error)
}

// Base holds what every linkage knows about itself
type Base struct {
	Name    string // Name of the owning package
	Kind    string
	Symbols *expr.Symbols
}

// Type returns the linkage tag
func (b *Base) Type() string { return b.Kind }

// result starts a linkage description
func (b *Base) result(submodules []string, fields map[string]any) map[string]any {
	result := map[string]any{
		"name": core.DependencyString(b.Name, submodules),
		"type": b.Kind,
	}
	maps.Copy(result, fields)
	return result
}

// Kind describes how to construct one type of linkage
type Kind struct {
	Versioned freezedry.Versioned
	New       func(b Base, tc *types.TypeCheck) (Linkage, error)
	Rehydrate func(b Base, r *freezedry.Reader) (Linkage, error)
}

// Context carries what rehydration needs
type Context struct {
	Name    string
	Symbols *expr.Symbols
}

var (
	registry = freezedry.NewRegistry[Linkage, Context]("linkage", "type")
	kinds    = map[string]Kind{}
)

// Register adds a linkage type
func Register(tag string, kind Kind) {
	registry.Register(tag, kind.Versioned, func(data map[string]any, ctx Context) (Linkage, error) {
		r := freezedry.NewReader(data)
		l, err := kind.Rehydrate(Base{Name: ctx.Name, Kind: tag, Symbols: ctx.Symbols}, r)
		if err != nil {
			return nil, err
		}
		return l, r.Err()
	})
	kinds[tag] = kind
}

// Types returns the registered linkage tags
func Types() []string { return registry.Tags() }

// Make constructs a linkage from configuration: either a linkage tag or a
// mapping with a `type` key.
func Make(name string, raw any, symbols *expr.Symbols, field types.Field) (Linkage, error) {
	var (
		tag       string
		data      map[string]any
		typeField = field
	)
	switch v := raw.(type) {
	case string:
		tag = v
	case map[string]any:
		data = maps.Clone(v)
		t, ok := data["type"].(string)
		if !ok {
			return nil, types.NewFieldKeyError("missing required field 'type'", field...)
		}
		tag = t
		typeField = field.Append("type")
		delete(data, "type")
	case nil:
		return nil, types.NewFieldValueError("linkage not specified", field...)
	default:
		if raw == types.Unset {
			return nil, types.NewFieldKeyError("linkage not specified", field...)
		}
		return nil, types.NewFieldValueError("expected a linkage", field...)
	}

	kind, ok := kinds[tag]
	if !ok {
		return nil, registry.UnknownTag(tag, typeField...)
	}

	tc := types.NewTypeCheck(data, symbols, field...)
	l, err := kind.New(Base{Name: name, Kind: tag, Symbols: symbols}, tc)
	if err != nil {
		return nil, err
	}
	if err := tc.Finish(); err != nil {
		return nil, err
	}
	return l, nil
}

// Rehydrate restores a linkage from its persisted form
func Rehydrate(data any, name string, symbols *expr.Symbols) (Linkage, error) {
	return registry.Rehydrate(data, Context{Name: name, Symbols: symbols})
}

// Dehydrate returns the persisted form of l, including its type
func Dehydrate(l Linkage) (map[string]any, error) {
	return registry.Dehydrate(l.Type(), l)
}

// Equal reports whether two linkages have the same configuration
func Equal(a, b Linkage) bool {
	if a.Type() != b.Type() {
		return false
	}
	return freezedry.Equal(a, b)
}

// preferredBase picks the path base relative paths should use: preferred
// if it is defined, otherwise the first defined base, otherwise absolute.
func preferredBase(preferred string, symbols *expr.Symbols) string {
	if symbols.HasPathBase(preferred) {
		return preferred
	}
	if bases := symbols.PathBases(); len(bases) > 0 {
		return bases[0]
	}
	return path.Absolute
}
