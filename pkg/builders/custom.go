// pkg/builders/custom.go
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

// CustomBuilder runs arbitrary shell commands from the source directory
type CustomBuilder struct {
	Base
	BuildCommands  []shell.Arguments
	DeployCommands []shell.Arguments
}

var commandsChecker = types.Maybe(types.ListOf(types.ShellArgs(false), false), []shell.Arguments{})

func init() {
	Register("custom", Kind{
		Versioned: freezedry.Versioned{Version: 1},
		PathBases: []string{path.BuildDir},
		New: func(b Base, tc *types.TypeCheck) (Builder, error) {
			c := &CustomBuilder{Base: b}
			types.Check(tc, "build_commands", commandsChecker, &c.BuildCommands)
			types.Check(tc, "deploy_commands", commandsChecker, &c.DeployCommands)
			return c, tc.Err()
		},
		Rehydrate: func(b Base, r *freezedry.Reader) (Builder, error) {
			c := &CustomBuilder{Base: b}
			var err error
			if c.BuildCommands, err = rehydrateCommands(r.Raw("build_commands")); err != nil {
				return nil, err
			}
			if c.DeployCommands, err = rehydrateCommands(r.Raw("deploy_commands")); err != nil {
				return nil, err
			}
			return c, nil
		},
	})
}

func (b *CustomBuilder) PathBases() []string { return []string{path.BuildDir} }

func (b *CustomBuilder) PathValues(md core.Metadata, _ map[string]string) map[string]string {
	return map[string]string{path.BuildDir: b.BuildDir(md)}
}

func (b *CustomBuilder) execute(ctx context.Context, md core.Metadata, pkg core.Package,
	commands []shell.Arguments, deploy bool) error {
	s, err := begin(ctx, md, pkg, deploy)
	if err != nil {
		return err
	}
	defer s.Close()

	srcdir, err := requireSrcdir(s.values, b.Name)
	if err != nil {
		return err
	}
	for _, line := range commands {
		args, err := s.fill(line)
		if err != nil {
			return err
		}
		if err := s.run(srcdir, args...); err != nil {
			return err
		}
	}
	return nil
}

func (b *CustomBuilder) Build(ctx context.Context, md core.Metadata, pkg core.Package) error {
	if err := mkdirs(md, b.BuildDir(md)); err != nil {
		return err
	}
	return b.execute(ctx, md, pkg, b.BuildCommands, false)
}

func (b *CustomBuilder) Deploy(ctx context.Context, md core.Metadata, pkg core.Package) error {
	return b.execute(ctx, md, pkg, b.DeployCommands, true)
}

func (b *CustomBuilder) Clean(_ context.Context, md core.Metadata, _ core.Package) error {
	return removeAll(md, b.BuildDir(md))
}

func (b *CustomBuilder) Dehydrate() (map[string]any, error) {
	build, err := dehydrateCommands(b.BuildCommands)
	if err != nil {
		return nil, err
	}
	deploy, err := dehydrateCommands(b.DeployCommands)
	if err != nil {
		return nil, err
	}
	return map[string]any{"build_commands": build, "deploy_commands": deploy}, nil
}

func dehydrateCommands(commands []shell.Arguments) ([]any, error) {
	result := make([]any, 0, len(commands))
	for _, c := range commands {
		d, err := c.Dehydrate()
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, nil
}

func rehydrateCommands(data any) ([]shell.Arguments, error) {
	if data == nil {
		return []shell.Arguments{}, nil
	}
	items, ok := data.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list of commands, got %T", data)
	}
	result := make([]shell.Arguments, 0, len(items))
	for _, item := range items {
		args, err := shell.Rehydrate(item)
		if err != nil {
			return nil, err
		}
		result = append(result, args)
	}
	return result, nil
}
