// pkg/options/common.go
package options

import (
	"maps"

	"github.com/arc-language/mopack/pkg/expr"
	"github.com/arc-language/mopack/pkg/freezedry"
	"github.com/arc-language/mopack/pkg/path"
	"github.com/arc-language/mopack/pkg/placeholder"
	"github.com/arc-language/mopack/pkg/platform"
	"github.com/arc-language/mopack/pkg/types"
)

var commonVersion = freezedry.Versioned{Version: 1}

// CommonOptions apply to every package regardless of origin or builder.
// Every field keeps the first value it is given.
type CommonOptions struct {
	TargetPlatform string
	Strict         bool
	Env            map[string]string
	DeployDirs     map[string]string

	strictSet bool
}

func newCommonOptions() *CommonOptions {
	return &CommonOptions{
		Env:        map[string]string{},
		DeployDirs: map[string]string{},
	}
}

// baseSymbols are visible while the common options themselves are read.
func baseSymbols() *expr.Symbols {
	return expr.NewSymbols(map[string]any{
		"host_platform": platform.HostName(),
		"env":           expr.NewEnv(nil),
	})
}

var deployDirsChecker = types.Maybe(
	types.DictOf(types.AnyPath(path.Absolute)), nil,
)

func (c *CommonOptions) accumulate(tc *types.TypeCheck) {
	var target string
	if types.Check(tc, "target_platform", types.Maybe(types.String, ""), &target) &&
		c.TargetPlatform == "" {
		c.TargetPlatform = target
	}

	if tc.Has("strict") {
		var strict bool
		if types.Check(tc, "strict", types.Boolean, &strict) && !c.strictSet {
			c.Strict = strict
			c.strictSet = true
		}
	}

	var env map[string]string
	if types.Check(tc, "env", types.Maybe(types.DictOf(types.String), nil), &env) {
		for k, v := range env {
			if _, ok := c.Env[k]; !ok {
				c.Env[k] = v
			}
		}
	}

	var dirs map[string]path.Path
	if types.Check(tc, "deploy_dirs", deployDirsChecker, &dirs) {
		for k, v := range dirs {
			if _, ok := c.DeployDirs[k]; !ok {
				c.DeployDirs[k] = v.Path()
			}
		}
	}
}

func (c *CommonOptions) finalize() {
	if c.TargetPlatform == "" {
		c.TargetPlatform = platform.HostName()
	}
	c.strictSet = true
}

// symbols derives the expression symbol table from the finalized options.
func (c *CommonOptions) symbols() *expr.Symbols {
	deployDirs := make(map[string]any, len(c.DeployDirs))
	for kind := range c.DeployDirs {
		deployDirs[kind] = placeholder.Of(path.Root(kind))
	}
	return expr.NewSymbols(map[string]any{
		"host_platform":   platform.HostName(),
		"target_platform": c.TargetPlatform,
		"env":             expr.NewEnv(c.Env),
		"deploy_dirs":     deployDirs,
	})
}

// Environment returns the configured environment layered over the process
// environment.
func (c *CommonOptions) Environment() expr.Env {
	return expr.NewEnv(c.Env)
}

// Dehydrate returns the persisted form of the common options.
func (c *CommonOptions) Dehydrate() (map[string]any, error) {
	env := make(map[string]any, len(c.Env))
	for k, v := range c.Env {
		env[k] = v
	}
	dirs := make(map[string]any, len(c.DeployDirs))
	for k, v := range c.DeployDirs {
		dirs[k] = v
	}
	return commonVersion.Stamp(map[string]any{
		"target_platform": c.TargetPlatform,
		"strict":          c.Strict,
		"env":             env,
		"deploy_dirs":     dirs,
	}), nil
}

func rehydrateCommon(data any) (*CommonOptions, error) {
	m, ok := data.(map[string]any)
	if !ok {
		return newCommonOptions(), nil
	}
	fields, err := commonVersion.Check("common options", m)
	if err != nil {
		return nil, err
	}

	r := freezedry.NewReader(fields)
	c := newCommonOptions()
	c.TargetPlatform = r.OptString("target_platform")
	c.Strict = r.Bool("strict")
	var env, dirs map[string]string
	r.Decode("env", &env)
	r.Decode("deploy_dirs", &dirs)
	if err := r.Err(); err != nil {
		return nil, err
	}
	maps.Copy(c.Env, env)
	maps.Copy(c.DeployDirs, dirs)
	c.finalize()
	return c, nil
}
