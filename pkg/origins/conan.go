// pkg/origins/conan.go
package origins

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/arc-language/mopack/pkg/core"
	"github.com/arc-language/mopack/pkg/expr"
	"github.com/arc-language/mopack/pkg/freezedry"
	"github.com/arc-language/mopack/pkg/logging"
	"github.com/arc-language/mopack/pkg/options"
	"github.com/arc-language/mopack/pkg/path"
	"github.com/arc-language/mopack/pkg/shell"
	"github.com/arc-language/mopack/pkg/types"
)

// ConanOptions apply to every conan package. Build targets accumulate
// without duplicates; extra arguments concatenate.
type ConanOptions struct {
	Build     []string
	ExtraArgs shell.Arguments
}

func (o *ConanOptions) Accumulate(tc *types.TypeCheck, _ string) error {
	var build []string
	if types.Check(tc, "build", types.Maybe(types.ListOf(types.String, true), nil), &build) {
		for _, b := range build {
			if !slices.Contains(o.Build, b) {
				o.Build = append(o.Build, b)
			}
		}
	}
	var extra shell.Arguments
	if types.Check(tc, "extra_args", types.ShellArgs(true), &extra) {
		o.ExtraArgs = append(o.ExtraArgs, extra...)
	}
	return tc.Err()
}

func (o *ConanOptions) Dehydrate() (map[string]any, error) {
	extra, err := o.ExtraArgs.Dehydrate()
	if err != nil {
		return nil, err
	}
	build := make([]any, len(o.Build))
	for i, b := range o.Build {
		build[i] = b
	}
	return map[string]any{"build": build, "extra_args": extra}, nil
}

// ConanPackage is a library installed with conan
type ConanPackage struct {
	*BinaryPackage
	Remote  string
	Build   bool
	Options map[string]any
}

func init() {
	Register("conan", Kind{
		Versioned: freezedry.Versioned{Version: 1},
		New:       newConan,
		Rehydrate: func(b *BasePackage, r *freezedry.Reader) (Package, error) {
			symbols, err := conanSymbols(b)
			if err != nil {
				return nil, err
			}
			bp, err := rehydrateBinary(b, r, symbols)
			if err != nil {
				return nil, err
			}
			return &ConanPackage{
				BinaryPackage: bp,
				Remote:        r.String("remote"),
				Build:         r.Bool("build"),
				Options:       r.Map("options"),
			}, nil
		},
		Batch: conanBatch{},
	})

	options.Register(options.GenusOrigins, "conan", freezedry.Versioned{Version: 1},
		func() options.KindOptions { return &ConanOptions{} },
		func(data map[string]any, _ struct{}) (options.KindOptions, error) {
			r := freezedry.NewReader(data)
			o := &ConanOptions{Build: r.Strings("build")}
			extra, err := shell.Rehydrate(r.Raw("extra_args"))
			if err != nil {
				return nil, err
			}
			o.ExtraArgs = extra
			return o, r.Err()
		},
	)
}

func conanSymbols(b *BasePackage) (*expr.Symbols, error) {
	return b.symbols.AugmentPathBases(path.BuildDir)
}

var optionValue = types.OneOf("a value",
	types.Erase(types.String), types.Erase(types.Boolean))

func newConan(b *BasePackage, tc *types.TypeCheck) (Package, error) {
	p := &ConanPackage{}
	types.Check(tc, "remote", types.String, &p.Remote)
	types.Check(tc, "build", types.Maybe(types.Boolean, false), &p.Build)
	types.Check(tc, "options", types.Maybe(types.DictOf(optionValue), map[string]any{}), &p.Options)
	if tc.Err() != nil {
		return nil, tc.Err()
	}

	symbols, err := conanSymbols(b)
	if err != nil {
		return nil, err
	}
	bp, err := newBinary(b, tc, symbols, map[string]any{"type": "pkg_config", "pkg_config_path": ""})
	if err != nil {
		return nil, err
	}
	p.BinaryPackage = bp
	return p, nil
}

// installDir is where conan generates files for every conan package
func installDir(md core.Metadata) string {
	return filepath.Join(md.PkgDir(), "conan")
}

// RemoteName returns the package name part of the conan reference
func (p *ConanPackage) RemoteName() string {
	name, _, _ := strings.Cut(p.Remote, "/")
	return name
}

func (p *ConanPackage) PathValues(md core.Metadata) (map[string]string, error) {
	result, err := p.BasePackage.PathValues(md)
	if err != nil {
		return nil, err
	}
	result[path.BuildDir] = installDir(md)
	return result, nil
}

func (p *ConanPackage) Resolve(context.Context, core.Metadata) error {
	return fmt.Errorf("conan package %q must be resolved in a batch", p.name)
}

func (p *ConanPackage) Version(ctx context.Context, md core.Metadata) (string, error) {
	env := environment(md)
	cmd, err := shell.Command(env.Lookup, "CONAN", "conan")
	if err != nil {
		return "", err
	}
	return logging.Output(ctx, logging.Call{
		Args: append(cmd, "inspect", "--raw=version", p.Remote),
		Env:  env.Environ(),
	})
}

func (p *ConanPackage) Linkage(ctx context.Context, md core.Metadata, submodules []string) (map[string]any, error) {
	return checkedLinkage(ctx, md, p, p.linkage, submodules)
}

func (p *ConanPackage) CleanPost(ctx context.Context, md core.Metadata, newPkg Package, quiet bool) (bool, error) {
	if newPkg != nil && newPkg.Origin() == p.origin {
		return false, nil
	}
	if !quiet {
		logging.Clean(ctx, p.name, "")
	}
	pc := filepath.Join(installDir(md), p.name+".pc")
	if err := md.FS().Remove(pc); err != nil {
		if exists, _ := afero.Exists(md.FS(), pc); exists {
			return true, err
		}
	}
	return true, nil
}

func (p *ConanPackage) Dehydrate() (map[string]any, error) {
	data, err := p.BinaryPackage.dehydrate()
	if err != nil {
		return nil, err
	}
	data["remote"] = p.Remote
	data["build"] = p.Build
	data["options"] = p.Options
	return data, nil
}

type conanBatch struct{}

func buildArgs(targets []string) []string {
	if len(targets) == 0 {
		return nil
	}
	if slices.Contains(targets, "all") {
		return []string{"--build"}
	}
	result := make([]string, len(targets))
	for i, t := range targets {
		result[i] = "--build=" + t
	}
	return result
}

// conanfile renders the conanfile.txt requiring every package
func conanfile(pkgs []*ConanPackage) string {
	var b strings.Builder
	b.WriteString("[requires]\n")
	for _, p := range pkgs {
		b.WriteString(p.Remote + "\n")
	}
	b.WriteString("\n[options]\n")
	for _, p := range pkgs {
		keys := make([]string, 0, len(p.Options))
		for k := range p.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := p.Options[k]
			if bv, ok := v.(bool); ok {
				v = map[bool]string{true: "True", false: "False"}[bv]
			}
			fmt.Fprintf(&b, "%s*:%s=%v\n", p.RemoteName(), k, v)
		}
	}
	b.WriteString("\n[generators]\nPkgConfigDeps\n")
	return b.String()
}

func (conanBatch) ResolveAll(ctx context.Context, md core.Metadata, pkgs []Package) error {
	conans := make([]*ConanPackage, len(pkgs))
	for i, pkg := range pkgs {
		logging.Resolve(ctx, pkg.Name(), "from conan")
		conans[i] = pkg.(*ConanPackage)
	}

	dir := installDir(md)
	if err := md.FS().MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	if err := afero.WriteFile(md.FS(), filepath.Join(dir, "conanfile.txt"), []byte(conanfile(conans)), 0644); err != nil {
		return fmt.Errorf("writing conanfile: %w", err)
	}

	var targets []string
	var extra []string
	if md.Options() != nil {
		if o, ok := md.Options().Origin("conan").(*ConanOptions); ok {
			targets = append(targets, o.Build...)
			args, err := o.ExtraArgs.Values(nil)
			if err != nil {
				return err
			}
			extra = args
		}
	}
	for _, p := range conans {
		if p.Build && !slices.Contains(targets, p.RemoteName()) {
			targets = append(targets, p.RemoteName())
		}
	}

	env := environment(md)
	cmd, err := shell.Command(env.Lookup, "CONAN", "conan")
	if err != nil {
		return err
	}
	lf, err := logging.OpenLogFile(md.FS(), md.PkgDir(), "conan", false)
	if err != nil {
		return err
	}
	defer lf.Close()

	args := append(cmd, "install")
	args = append(args, buildArgs(targets)...)
	args = append(args, extra...)
	args = append(args, "--", dir)
	if err := lf.CheckCall(ctx, logging.Call{Args: args, Dir: dir, Env: env.Environ()}); err != nil {
		return err
	}

	for _, pkg := range pkgs {
		pkg.SetResolved(true)
	}
	return nil
}

func (conanBatch) DeployAll(ctx context.Context, _ core.Metadata, pkgs []Package) error {
	for _, pkg := range pkgs {
		if pkg.ShouldDeploy() {
			logging.Warn(ctx, "deploying not yet supported for conan packages")
			break
		}
	}
	return nil
}
