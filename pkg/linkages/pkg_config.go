// pkg/linkages/pkg_config.go
package linkages

import (
	"context"

	"github.com/arc-language/mopack/pkg/core"
	"github.com/arc-language/mopack/pkg/freezedry"
	"github.com/arc-language/mopack/pkg/path"
	"github.com/arc-language/mopack/pkg/types"
)

// PkgConfigLinkage points consumers at .pc files produced by the build
type PkgConfigLinkage struct {
	Base
	PCName        string
	PkgConfigPath []path.Path
	SubmoduleMap  any
}

func init() {
	Register("pkg_config", Kind{
		Versioned: freezedry.Versioned{Version: 1},
		New:       newPkgConfig,
		Rehydrate: func(b Base, r *freezedry.Reader) (Linkage, error) {
			l := &PkgConfigLinkage{Base: b, PCName: r.String("pcname"), SubmoduleMap: r.Raw("submodule_map")}
			paths, err := rehydratePaths(r.Raw("pkg_config_path"))
			if err != nil {
				return nil, err
			}
			l.PkgConfigPath = paths
			return l, nil
		},
	})
}

func newPkgConfig(b Base, tc *types.TypeCheck) (Linkage, error) {
	l := &PkgConfigLinkage{Base: b}
	types.Check(tc, "pcname", types.Maybe(types.String, b.Name), &l.PCName)

	var defaultPath []path.Path
	if b.Symbols.HasPathBase(path.BuildDir) {
		defaultPath = []path.Path{path.Root(path.BuildDir).Join("pkgconfig")}
	}
	base := preferredBase(path.BuildDir, b.Symbols)
	types.Check(tc, "pkg_config_path",
		types.Default(types.ListOf(types.AnyPath(base), true), defaultPath), &l.PkgConfigPath)
	if tc.Err() != nil {
		return nil, tc.Err()
	}

	subs, err := checkSubmoduleMap(tc, b.Symbols, "pcname")
	if err != nil {
		return nil, err
	}
	l.SubmoduleMap = subs
	return l, nil
}

func (l *PkgConfigLinkage) paths(md core.Metadata, pkg core.Package) ([]string, error) {
	values, err := pkg.PathValues(md)
	if err != nil {
		return nil, err
	}
	return pathStrings(l.PkgConfigPath, values)
}

func (l *PkgConfigLinkage) submodulePCName(submodule string) (string, error) {
	tmpl, entry, ok, err := submoduleEntry(l.SubmoduleMap, l.Symbols, submodule)
	switch {
	case err != nil:
		return "", err
	case !ok:
		return l.PCName + "_" + submodule, nil
	case entry != nil:
		var pcname string
		tc := types.NewTypeCheck(entry, nil, "submodule_map", submodule)
		types.Check(tc, "pcname", types.String, &pcname)
		return pcname, tc.Finish()
	}
	return tmpl, nil
}

func (l *PkgConfigLinkage) Version(ctx context.Context, md core.Metadata, pkg core.Package) (string, error) {
	paths, err := l.paths(md, pkg)
	if err != nil {
		return "", err
	}
	return pkgConfig(ctx, md, paths, "--modversion", l.PCName)
}

func (l *PkgConfigLinkage) Linkage(_ context.Context, md core.Metadata, pkg core.Package, submodules []string) (map[string]any, error) {
	paths, err := l.paths(md, pkg)
	if err != nil {
		return nil, err
	}

	var pcnames []any
	subs := pkg.Submodules()
	if len(submodules) == 0 || subs == nil || !subs.Required {
		pcnames = append(pcnames, l.PCName)
	}
	for _, sub := range submodules {
		pcname, err := l.submodulePCName(sub)
		if err != nil {
			return nil, err
		}
		pcnames = append(pcnames, pcname)
	}

	return l.result(submodules, map[string]any{
		"pcnames":         pcnames,
		"pkg_config_path": toAnyList(paths),
	}), nil
}

func (l *PkgConfigLinkage) Dehydrate() (map[string]any, error) {
	return map[string]any{
		"pcname":          l.PCName,
		"pkg_config_path": dehydratePaths(l.PkgConfigPath),
		"submodule_map":   l.SubmoduleMap,
	}, nil
}

func pathStrings(paths []path.Path, values map[string]string) ([]string, error) {
	result := make([]string, 0, len(paths))
	for _, p := range paths {
		s, err := p.String(values)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, nil
}

func dehydratePaths(paths []path.Path) []any {
	result := make([]any, len(paths))
	for i, p := range paths {
		result[i] = p.Dehydrate()
	}
	return result
}

func rehydratePaths(data any) ([]path.Path, error) {
	items, _ := data.([]any)
	result := make([]path.Path, 0, len(items))
	for _, item := range items {
		p, err := path.Rehydrate(item)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

func toAnyList(s []string) []any {
	result := make([]any, len(s))
	for i, v := range s {
		result[i] = v
	}
	return result
}
