// pkg/origins/system.go
package origins

import (
	"github.com/arc-language/mopack/pkg/freezedry"
	"github.com/arc-language/mopack/pkg/types"
)

// linkageKeys may be given directly on system-like packages and are passed
// to their system linkage
var linkageKeys = []string{
	"auto_link", "version", "pcname", "include_path", "library_path", "headers",
	"libraries", "compile_flags", "link_flags", "submodule_map",
}

// SystemPackage is a library already installed on the system
type SystemPackage struct {
	*BinaryPackage
}

func init() {
	Register("system", Kind{
		Versioned: freezedry.Versioned{Version: 1},
		New: func(b *BasePackage, tc *types.TypeCheck) (Package, error) {
			bp, err := newBinary(b, tc, b.symbols, systemLinkage(tc))
			if err != nil {
				return nil, err
			}
			return &SystemPackage{BinaryPackage: bp}, nil
		},
		Rehydrate: func(b *BasePackage, r *freezedry.Reader) (Package, error) {
			bp, err := rehydrateBinary(b, r, b.symbols)
			if err != nil {
				return nil, err
			}
			return &SystemPackage{BinaryPackage: bp}, nil
		},
	})
}

// systemLinkage collects the linkage fields given directly on the package.
// They may not be mixed with an explicit `linkage`.
func systemLinkage(tc *types.TypeCheck) any {
	result := map[string]any{"type": "system"}
	for _, k := range linkageKeys {
		if !tc.Has(k) {
			continue
		}
		if tc.Has("linkage") || tc.Has("usage") {
			tc.Fail(types.NewFieldKeyError("linkage options cannot be combined with `linkage`", k))
			return result
		}
		result[k] = tc.Raw(k)
	}
	return result
}

func (p *SystemPackage) Dehydrate() (map[string]any, error) {
	return p.BinaryPackage.dehydrate()
}
