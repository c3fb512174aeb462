// pkg/builders/b2.go
package builders

import (
	"context"
	"path/filepath"

	"github.com/arc-language/mopack/pkg/core"
	"github.com/arc-language/mopack/pkg/freezedry"
	"github.com/arc-language/mopack/pkg/path"
	"github.com/arc-language/mopack/pkg/shell"
	"github.com/arc-language/mopack/pkg/types"
)

// StageDir is the path base for b2's staged libraries
const StageDir = "stagedir"

// B2Builder builds Boost.Build projects
type B2Builder struct {
	Base
	ExtraArgs shell.Arguments
}

func init() {
	Register("b2", Kind{
		Versioned: freezedry.Versioned{Version: 1},
		PathBases: []string{path.BuildDir, StageDir},
		New: func(b Base, tc *types.TypeCheck) (Builder, error) {
			c := &B2Builder{Base: b}
			types.Check(tc, "extra_args", types.ShellArgs(true), &c.ExtraArgs)
			return c, tc.Err()
		},
		Rehydrate: func(b Base, r *freezedry.Reader) (Builder, error) {
			args, err := shell.Rehydrate(r.Raw("extra_args"))
			if err != nil {
				return nil, err
			}
			return &B2Builder{Base: b, ExtraArgs: args}, nil
		},
	})
}

func (b *B2Builder) PathBases() []string { return []string{path.BuildDir, StageDir} }

func (b *B2Builder) stageDir(md core.Metadata) string {
	return filepath.Join(b.BuildDir(md), "stage")
}

func (b *B2Builder) PathValues(md core.Metadata, _ map[string]string) map[string]string {
	return map[string]string{
		path.BuildDir: b.BuildDir(md),
		StageDir:      b.stageDir(md),
	}
}

func (b *B2Builder) Build(ctx context.Context, md core.Metadata, pkg core.Package) error {
	s, err := begin(ctx, md, pkg, false)
	if err != nil {
		return err
	}
	defer s.Close()

	srcdir, err := requireSrcdir(s.values, b.Name)
	if err != nil {
		return err
	}
	b2, err := s.tool("B2", "b2")
	if err != nil {
		return err
	}
	extra, err := s.fill(b.ExtraArgs)
	if err != nil {
		return err
	}

	args := append(b2, "--build-dir="+b.BuildDir(md), "--stagedir="+b.stageDir(md), "stage")
	return s.run(srcdir, append(args, extra...)...)
}

func (b *B2Builder) Deploy(ctx context.Context, md core.Metadata, pkg core.Package) error {
	s, err := begin(ctx, md, pkg, true)
	if err != nil {
		return err
	}
	defer s.Close()

	srcdir, err := requireSrcdir(s.values, b.Name)
	if err != nil {
		return err
	}
	b2, err := s.tool("B2", "b2")
	if err != nil {
		return err
	}

	args := append(b2, "--build-dir="+b.BuildDir(md))
	for _, kv := range deployDirs(md) {
		switch kv[0] {
		case "prefix", "exec-prefix", "libdir", "includedir":
			args = append(args, "--"+kv[0]+"="+kv[1])
		}
	}
	return s.run(srcdir, append(args, "install")...)
}

func (b *B2Builder) Clean(_ context.Context, md core.Metadata, _ core.Package) error {
	return removeAll(md, b.BuildDir(md))
}

func (b *B2Builder) Dehydrate() (map[string]any, error) {
	args, err := b.ExtraArgs.Dehydrate()
	if err != nil {
		return nil, err
	}
	return map[string]any{"extra_args": args}, nil
}
