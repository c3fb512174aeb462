// pkg/builders/ninja.go
package builders

import (
	"context"

	"github.com/arc-language/mopack/pkg/core"
	"github.com/arc-language/mopack/pkg/freezedry"
	"github.com/arc-language/mopack/pkg/path"
	"github.com/arc-language/mopack/pkg/shell"
	"github.com/arc-language/mopack/pkg/types"
)

// NinjaBuilder runs an existing build.ninja, by default from the source
// directory
type NinjaBuilder struct {
	Base
	Directory path.Path
	ExtraArgs shell.Arguments
}

func init() {
	Register("ninja", Kind{
		Versioned: freezedry.Versioned{Version: 1},
		New: func(b Base, tc *types.TypeCheck) (Builder, error) {
			n := &NinjaBuilder{Base: b}
			types.Check(tc, "directory", types.Default(types.AnyPath(path.SrcDir), path.Root(path.SrcDir)), &n.Directory)
			types.Check(tc, "extra_args", types.ShellArgs(true), &n.ExtraArgs)
			return n, tc.Err()
		},
		Rehydrate: func(b Base, r *freezedry.Reader) (Builder, error) {
			dir, err := path.Rehydrate(r.Raw("directory"))
			if err != nil {
				return nil, err
			}
			args, err := shell.Rehydrate(r.Raw("extra_args"))
			if err != nil {
				return nil, err
			}
			return &NinjaBuilder{Base: b, Directory: dir, ExtraArgs: args}, nil
		},
	})
}

func (b *NinjaBuilder) PathBases() []string { return nil }

func (b *NinjaBuilder) PathValues(core.Metadata, map[string]string) map[string]string {
	return nil
}

func (b *NinjaBuilder) ninja(ctx context.Context, md core.Metadata, pkg core.Package,
	deploy bool, targets ...string) error {
	s, err := begin(ctx, md, pkg, deploy)
	if err != nil {
		return err
	}
	defer s.Close()

	dir, err := b.Directory.String(s.values)
	if err != nil {
		return err
	}
	ninja, err := s.tool("NINJA", "ninja")
	if err != nil {
		return err
	}
	extra, err := s.fill(b.ExtraArgs)
	if err != nil {
		return err
	}

	args := append(ninja, extra...)
	return s.run(dir, append(args, targets...)...)
}

func (b *NinjaBuilder) Build(ctx context.Context, md core.Metadata, pkg core.Package) error {
	return b.ninja(ctx, md, pkg, false)
}

func (b *NinjaBuilder) Deploy(ctx context.Context, md core.Metadata, pkg core.Package) error {
	return b.ninja(ctx, md, pkg, true, "install")
}

func (b *NinjaBuilder) Clean(context.Context, core.Metadata, core.Package) error {
	return nil
}

func (b *NinjaBuilder) Dehydrate() (map[string]any, error) {
	args, err := b.ExtraArgs.Dehydrate()
	if err != nil {
		return nil, err
	}
	return map[string]any{"directory": b.Directory.Dehydrate(), "extra_args": args}, nil
}
