// pkg/builders/cmake.go
package builders

import (
	"context"
	"fmt"

	"github.com/arc-language/mopack/pkg/core"
	"github.com/arc-language/mopack/pkg/freezedry"
	"github.com/arc-language/mopack/pkg/path"
	"github.com/arc-language/mopack/pkg/shell"
	"github.com/arc-language/mopack/pkg/types"
)

// CMake has no notion of exec-prefix
var cmakeInstallKinds = map[string]bool{
	"prefix": true, "bindir": true, "libdir": true, "includedir": true,
}

// CMakeBuilder configures with CMake and builds with Ninja
type CMakeBuilder struct {
	Base
	ExtraArgs shell.Arguments
}

func init() {
	Register("cmake", Kind{
		Versioned: freezedry.Versioned{Version: 1},
		PathBases: []string{path.BuildDir},
		New: func(b Base, tc *types.TypeCheck) (Builder, error) {
			c := &CMakeBuilder{Base: b}
			types.Check(tc, "extra_args", types.ShellArgs(true), &c.ExtraArgs)
			return c, tc.Err()
		},
		Rehydrate: func(b Base, r *freezedry.Reader) (Builder, error) {
			args, err := shell.Rehydrate(r.Raw("extra_args"))
			if err != nil {
				return nil, err
			}
			return &CMakeBuilder{Base: b, ExtraArgs: args}, nil
		},
	})
	registerToolchainOptions("cmake")
}

func (b *CMakeBuilder) PathBases() []string { return []string{path.BuildDir} }

func (b *CMakeBuilder) PathValues(md core.Metadata, _ map[string]string) map[string]string {
	return map[string]string{path.BuildDir: b.BuildDir(md)}
}

func (b *CMakeBuilder) installArgs(md core.Metadata) []string {
	var args []string
	for _, kv := range deployDirs(md) {
		if cmakeInstallKinds[kv[0]] {
			args = append(args, fmt.Sprintf("-DCMAKE_INSTALL_%s:PATH=%s", installVar(kv[0]), kv[1]))
		}
	}
	return args
}

func (b *CMakeBuilder) Build(ctx context.Context, md core.Metadata, pkg core.Package) error {
	builddir := b.BuildDir(md)
	if err := mkdirs(md, builddir); err != nil {
		return err
	}

	s, err := begin(ctx, md, pkg, false)
	if err != nil {
		return err
	}
	defer s.Close()

	srcdir, err := requireSrcdir(s.values, b.Name)
	if err != nil {
		return err
	}
	cmake, err := s.tool("CMAKE", "cmake")
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

	args := append(cmake, srcdir, "-G", "Ninja")
	args = append(args, b.installArgs(md)...)
	if toolchain := toolchainFor(md, b.Kind); toolchain != "" {
		args = append(args, "-DCMAKE_TOOLCHAIN_FILE="+toolchain)
	}
	args = append(args, extra...)

	if err := s.run(builddir, args...); err != nil {
		return err
	}
	return s.run(builddir, ninja...)
}

func (b *CMakeBuilder) Deploy(ctx context.Context, md core.Metadata, pkg core.Package) error {
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

func (b *CMakeBuilder) Clean(_ context.Context, md core.Metadata, _ core.Package) error {
	return removeAll(md, b.BuildDir(md))
}

func (b *CMakeBuilder) Dehydrate() (map[string]any, error) {
	args, err := b.ExtraArgs.Dehydrate()
	if err != nil {
		return nil, err
	}
	return map[string]any{"extra_args": args}, nil
}
