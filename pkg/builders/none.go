// pkg/builders/none.go
package builders

import (
	"context"

	"github.com/arc-language/mopack/pkg/core"
	"github.com/arc-language/mopack/pkg/freezedry"
	"github.com/arc-language/mopack/pkg/types"
)

// NoneBuilder is for packages that need no build step, such as header-only
// libraries
type NoneBuilder struct {
	Base
}

func init() {
	Register("none", Kind{
		Versioned: freezedry.Versioned{Version: 1},
		New: func(b Base, tc *types.TypeCheck) (Builder, error) {
			return &NoneBuilder{Base: b}, nil
		},
		Rehydrate: func(b Base, r *freezedry.Reader) (Builder, error) {
			return &NoneBuilder{Base: b}, nil
		},
	})
}

func (b *NoneBuilder) PathBases() []string { return nil }

func (b *NoneBuilder) PathValues(core.Metadata, map[string]string) map[string]string {
	return nil
}

// FilterLinkage uses system linkage when none was requested, since nothing
// was built to generate pkg-config files.
func (b *NoneBuilder) FilterLinkage(linkage any) any {
	if linkage == nil || linkage == types.Unset {
		return "system"
	}
	return linkage
}

func (b *NoneBuilder) Build(context.Context, core.Metadata, core.Package) error  { return nil }
func (b *NoneBuilder) Deploy(context.Context, core.Metadata, core.Package) error { return nil }
func (b *NoneBuilder) Clean(context.Context, core.Metadata, core.Package) error  { return nil }

func (b *NoneBuilder) Dehydrate() (map[string]any, error) {
	return map[string]any{}, nil
}
