// pkg/builders/bfg9000.go
package builders

import (
	"context"

	"github.com/arc-language/mopack/pkg/core"
	"github.com/arc-language/mopack/pkg/freezedry"
	"github.com/arc-language/mopack/pkg/path"
	"github.com/arc-language/mopack/pkg/shell"
	"github.com/arc-language/mopack/pkg/types"
)

var bfgInstallKinds = map[string]bool{
	"prefix": true, "exec-prefix": true, "bindir": true, "libdir": true, "includedir": true,
}

// Bfg9000Builder configures with bfg9000 and builds with Ninja
type Bfg9000Builder struct {
	Base
	ExtraArgs shell.Arguments
}

func init() {
	Register("bfg9000", Kind{
		Versioned: freezedry.Versioned{Version: 1},
		PathBases: []string{path.BuildDir},
		New: func(b Base, tc *types.TypeCheck) (Builder, error) {
			c := &Bfg9000Builder{Base: b}
			types.Check(tc, "extra_args", types.ShellArgs(true), &c.ExtraArgs)
			return c, tc.Err()
		},
		Rehydrate: func(b Base, r *freezedry.Reader) (Builder, error) {
			args, err := shell.Rehydrate(r.Raw("extra_args"))
			if err != nil {
				return nil, err
			}
			return &Bfg9000Builder{Base: b, ExtraArgs: args}, nil
		},
	})
	registerToolchainOptions("bfg9000")
}

func (b *Bfg9000Builder) PathBases() []string { return []string{path.BuildDir} }

func (b *Bfg9000Builder) PathValues(md core.Metadata, _ map[string]string) map[string]string {
	return map[string]string{path.BuildDir: b.BuildDir(md)}
}

func (b *Bfg9000Builder) Build(ctx context.Context, md core.Metadata, pkg core.Package) error {
	s, err := begin(ctx, md, pkg, false)
	if err != nil {
		return err
	}
	defer s.Close()

	srcdir, err := requireSrcdir(s.values, b.Name)
	if err != nil {
		return err
	}
	bfg, err := s.tool("BFG9000", "bfg9000")
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

	builddir := b.BuildDir(md)
	args := append(bfg, "configure", builddir)
	if toolchain := toolchainFor(md, b.Kind); toolchain != "" {
		args = append(args, "--toolchain", toolchain)
	}
	for _, kv := range deployDirs(md) {
		if bfgInstallKinds[kv[0]] {
			args = append(args, "--"+kv[0], kv[1])
		}
	}
	args = append(args, extra...)

	if err := s.run(srcdir, args...); err != nil {
		return err
	}
	return s.run(builddir, ninja...)
}

func (b *Bfg9000Builder) Deploy(ctx context.Context, md core.Metadata, pkg core.Package) error {
	s, err := begin(ctx, md, pkg, true)
	if err != nil {
		return err
	}
	defer s.Close()

	ninja, err := s.tool("NINJA", "ninja")
	if err != nil {
		return err
	}
	return s.run(b.BuildDir(md), append(ninja, "install")...)
}

func (b *Bfg9000Builder) Clean(_ context.Context, md core.Metadata, _ core.Package) error {
	return removeAll(md, b.BuildDir(md))
}

func (b *Bfg9000Builder) Dehydrate() (map[string]any, error) {
	args, err := b.ExtraArgs.Dehydrate()
	if err != nil {
		return nil, err
	}
	return map[string]any{"extra_args": args}, nil
}
