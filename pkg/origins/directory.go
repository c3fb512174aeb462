// pkg/origins/directory.go
package origins

import (
	"context"

	"github.com/arc-language/mopack/pkg/core"
	"github.com/arc-language/mopack/pkg/freezedry"
	"github.com/arc-language/mopack/pkg/logging"
	"github.com/arc-language/mopack/pkg/path"
	"github.com/arc-language/mopack/pkg/types"
)

// DirectoryPackage builds sources already present on disk
type DirectoryPackage struct {
	*SDistPackage
	Path path.Path
}

func init() {
	Register("directory", Kind{
		Versioned: sdistVersion,
		New: func(b *BasePackage, tc *types.TypeCheck) (Package, error) {
			p := &DirectoryPackage{}
			p.SDistPackage = newSDist(b, tc, p)
			types.Check(tc, "path", types.AnyPath(path.CfgDir), &p.Path)
			return p, tc.Err()
		},
		Rehydrate: func(b *BasePackage, r *freezedry.Reader) (Package, error) {
			p := &DirectoryPackage{}
			var err error
			if p.SDistPackage, err = rehydrateSDist(b, r, p); err != nil {
				return nil, err
			}
			if p.Path, err = path.Rehydrate(r.Raw("path")); err != nil {
				return nil, err
			}
			return p, nil
		},
	})
}

func (p *DirectoryPackage) sourceDir(core.Metadata) (string, bool) {
	dir, err := p.Path.String(map[string]string{path.CfgDir: p.ConfigDir()})
	return dir, err == nil
}

func (p *DirectoryPackage) Fetch(ctx context.Context, md core.Metadata, parent ParentConfig) (ChildConfig, error) {
	dir, err := p.Path.String(map[string]string{path.CfgDir: p.ConfigDir()})
	if err != nil {
		return nil, err
	}
	logging.Fetch(ctx, p.name, "from "+dir)
	return p.findMopack(parent, dir)
}

func (p *DirectoryPackage) Dehydrate() (map[string]any, error) {
	data, err := p.SDistPackage.dehydrate()
	if err != nil {
		return nil, err
	}
	data["path"] = p.Path.Dehydrate()
	return data, nil
}
