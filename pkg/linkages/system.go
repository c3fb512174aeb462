// pkg/linkages/system.go
package linkages

import (
	"context"
	"slices"

	"github.com/arc-language/mopack/pkg/core"
	"github.com/arc-language/mopack/pkg/env"
	"github.com/arc-language/mopack/pkg/freezedry"
	"github.com/arc-language/mopack/pkg/path"
	"github.com/arc-language/mopack/pkg/platform"
	"github.com/arc-language/mopack/pkg/types"
)

// SystemLinkage finds an installed package through pkg-config, falling back
// to searching the system's include and library directories
type SystemLinkage struct {
	PathLinkage
	PCName string
}

func init() {
	Register("system", Kind{
		Versioned: freezedry.Versioned{Version: 1},
		New: func(b Base, tc *types.TypeCheck) (Linkage, error) {
			l := &SystemLinkage{}
			types.Check(tc, "pcname", types.Maybe(types.String, b.Name), &l.PCName)
			pl, err := newPathLinkage(b, tc, path.Absolute, path.Absolute)
			if err != nil {
				return nil, err
			}
			l.PathLinkage = *pl
			return l, nil
		},
		Rehydrate: func(b Base, r *freezedry.Reader) (Linkage, error) {
			pl, err := rehydratePathLinkage(b, r)
			if err != nil {
				return nil, err
			}
			pl.includeBase, pl.libraryBase = path.Absolute, path.Absolute
			return &SystemLinkage{PathLinkage: *pl, PCName: r.OptString("pcname")}, nil
		},
	})
}

func (l *SystemLinkage) target(md core.Metadata) string {
	if md.Options() != nil && md.Options().Common.TargetPlatform != "" {
		return md.Options().Common.TargetPlatform
	}
	return platform.HostName()
}

// hasPkgConfig reports whether pkg-config knows about the package
func (l *SystemLinkage) hasPkgConfig(ctx context.Context, md core.Metadata) bool {
	_, err := pkgConfig(ctx, md, nil, "--exists", l.PCName)
	return err == nil
}

func (l *SystemLinkage) Version(ctx context.Context, md core.Metadata, pkg core.Package) (string, error) {
	if l.VersionStr != "" {
		return l.VersionStr, nil
	}
	if !l.hasPkgConfig(ctx, md) {
		return "", nil
	}
	version, err := pkgConfig(ctx, md, nil, "--modversion", l.PCName)
	if err != nil {
		return "", nil
	}
	return version, nil
}

// search locates the include and library directories of the package's
// headers and libraries
func (l *SystemLinkage) search(md core.Metadata) usageFields {
	u := l.usageFields
	e := env.New(md.FS(), l.target(md))

	u.IncludePath = slices.Clone(u.IncludePath)
	for _, h := range l.Headers {
		if dir, ok := e.FindHeader(h); ok {
			p := path.Root(path.Absolute).Join(dir)
			if !slices.Contains(u.IncludePath, p) {
				u.IncludePath = append(u.IncludePath, p)
			}
		}
	}

	u.LibraryPath = slices.Clone(u.LibraryPath)
	for _, lib := range l.Libraries {
		if lib.Type == "framework" {
			continue
		}
		if found := e.FindLibrary(platform.LibraryName(l.target(md), lib.Name)); found != nil {
			p := path.Root(path.Absolute).Join(found.Dir)
			if !slices.Contains(u.LibraryPath, p) {
				u.LibraryPath = append(u.LibraryPath, p)
			}
		}
	}
	return u
}

func (l *SystemLinkage) Linkage(ctx context.Context, md core.Metadata, pkg core.Package, submodules []string) (map[string]any, error) {
	if l.hasPkgConfig(ctx, md) {
		pcnames := []any{}
		subs := pkg.Submodules()
		if len(submodules) == 0 || subs == nil || !subs.Required {
			pcnames = append(pcnames, l.PCName)
		}
		for _, sub := range submodules {
			pcnames = append(pcnames, l.PCName+"_"+sub)
		}
		return l.result(submodules, map[string]any{
			"pcnames":         pcnames,
			"pkg_config_path": []any{},
		}), nil
	}
	return l.generate(ctx, md, pkg, submodules, l.search(md))
}

func (l *SystemLinkage) Dehydrate() (map[string]any, error) {
	data, err := l.PathLinkage.Dehydrate()
	if err != nil {
		return nil, err
	}
	data["pcname"] = l.PCName
	return data, nil
}
