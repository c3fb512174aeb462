// pkg/origins/binary.go
package origins

import (
	"context"

	"github.com/arc-language/mopack/pkg/core"
	"github.com/arc-language/mopack/pkg/defaults"
	"github.com/arc-language/mopack/pkg/expr"
	"github.com/arc-language/mopack/pkg/freezedry"
	"github.com/arc-language/mopack/pkg/linkages"
	"github.com/arc-language/mopack/pkg/logging"
	"github.com/arc-language/mopack/pkg/types"
)

// BinaryPackage is a package installed prebuilt: it has submodules and a
// linkage but nothing for mopack to build
type BinaryPackage struct {
	*BasePackage
	submodules *core.Submodules
	linkage    linkages.Linkage
}

// newBinary reads the submodules and linkage. The linkage comes from the
// `linkage` field (or legacy `usage`), falling back to defaultLinkage.
func newBinary(b *BasePackage, tc *types.TypeCheck, symbols *expr.Symbols, defaultLinkage any) (*BinaryPackage, error) {
	p := &BinaryPackage{BasePackage: b}
	types.Check(tc, "submodules",
		defaults.Resolve(b.name, "origin", "submodules", core.SubmodulesChecker), &p.submodules)
	if tc.Err() != nil {
		return nil, tc.Err()
	}

	raw, field := linkageField(tc)
	if raw == types.Unset {
		raw, field = defaultLinkage, nil
	}
	l, err := linkages.Make(b.name, raw, symbols, field)
	if err != nil {
		return nil, err
	}
	p.linkage = l
	return p, nil
}

// linkageField returns the raw `linkage` value, accepting `usage` as an
// older spelling
func linkageField(tc *types.TypeCheck) (any, types.Field) {
	if tc.Has("linkage") || !tc.Has("usage") {
		tc.Ignore("usage")
		return tc.Raw("linkage"), types.Field{"linkage"}
	}
	tc.Ignore("linkage")
	return tc.Raw("usage"), types.Field{"usage"}
}

func rehydrateBinary(b *BasePackage, r *freezedry.Reader, symbols *expr.Symbols) (*BinaryPackage, error) {
	subs, err := core.RehydrateSubmodules(r.Raw("submodules"))
	if err != nil {
		return nil, err
	}
	l, err := linkages.Rehydrate(r.Raw("linkage"), b.name, symbols)
	if err != nil {
		return nil, err
	}
	return &BinaryPackage{BasePackage: b, submodules: subs, linkage: l}, nil
}

func (p *BinaryPackage) Submodules() *core.Submodules { return p.submodules }

// LinkageConfig returns the package's linkage
func (p *BinaryPackage) LinkageConfig() linkages.Linkage { return p.linkage }

func (p *BinaryPackage) Version(ctx context.Context, md core.Metadata) (string, error) {
	return p.linkage.Version(ctx, md, p)
}

func (p *BinaryPackage) Linkage(ctx context.Context, md core.Metadata, submodules []string) (map[string]any, error) {
	return checkedLinkage(ctx, md, p, p.linkage, submodules)
}

func (p *BinaryPackage) Fetch(context.Context, core.Metadata, ParentConfig) (ChildConfig, error) {
	return nil, nil
}

func (p *BinaryPackage) Resolve(ctx context.Context, _ core.Metadata) error {
	logging.Resolve(ctx, p.name, "from "+p.origin)
	p.resolved = true
	return nil
}

func (p *BinaryPackage) dehydrate() (map[string]any, error) {
	data := p.BasePackage.dehydrate()
	data["submodules"] = p.submodules.Dehydrate()
	l, err := linkages.Dehydrate(p.linkage)
	if err != nil {
		return nil, err
	}
	data["linkage"] = l
	return data, nil
}
