// pkg/origins/apt.go
package origins

import (
	"context"
	"fmt"

	"github.com/arc-language/mopack/pkg/core"
	"github.com/arc-language/mopack/pkg/defaults"
	"github.com/arc-language/mopack/pkg/freezedry"
	"github.com/arc-language/mopack/pkg/logging"
	"github.com/arc-language/mopack/pkg/types"
)

// AptPackage is a library installed with apt
type AptPackage struct {
	*BinaryPackage
	Remote     []string
	Repository string
}

func init() {
	Register("apt", Kind{
		Versioned: freezedry.Versioned{Version: 1},
		New:       newApt,
		Rehydrate: func(b *BasePackage, r *freezedry.Reader) (Package, error) {
			bp, err := rehydrateBinary(b, r, b.symbols)
			if err != nil {
				return nil, err
			}
			return &AptPackage{
				BinaryPackage: bp,
				Remote:        r.Strings("remote"),
				Repository:    r.OptString("repository"),
			}, nil
		},
		Batch: aptBatch{},
	})
}

func newApt(b *BasePackage, tc *types.TypeCheck) (Package, error) {
	p := &AptPackage{}
	remote := defaults.Resolve(b.name, "apt", "remote",
		types.Maybe(types.ListOf(types.String, true), []string{fmt.Sprintf("lib%s-dev", b.name)}))
	types.Check(tc, "remote", remote, &p.Remote)
	types.Check(tc, "repository", types.Maybe(types.String, ""), &p.Repository)

	linkage := systemLinkage(tc)
	if tc.Err() != nil {
		return nil, tc.Err()
	}
	bp, err := newBinary(b, tc, b.symbols, linkage)
	if err != nil {
		return nil, err
	}
	p.BinaryPackage = bp
	return p, nil
}

func (p *AptPackage) Resolve(context.Context, core.Metadata) error {
	return fmt.Errorf("apt package %q must be resolved in a batch", p.name)
}

// Version asks dpkg for the installed version when the linkage doesn't know
func (p *AptPackage) Version(ctx context.Context, md core.Metadata) (string, error) {
	if v, err := p.BinaryPackage.Version(ctx, md); err != nil || v != "" {
		return v, err
	}
	if len(p.Remote) == 0 {
		return "", nil
	}
	return logging.Output(ctx, logging.Call{
		Args: []string{"dpkg-query", "-W", "-f${Version}", p.Remote[0]},
		Env:  environment(md).Environ(),
	})
}

func (p *AptPackage) Dehydrate() (map[string]any, error) {
	data, err := p.BinaryPackage.dehydrate()
	if err != nil {
		return nil, err
	}
	remote := make([]any, len(p.Remote))
	for i, r := range p.Remote {
		remote[i] = r
	}
	var repo any
	if p.Repository != "" {
		repo = p.Repository
	}
	data["remote"] = remote
	data["repository"] = repo
	return data, nil
}

type aptBatch struct{}

func (aptBatch) ResolveAll(ctx context.Context, md core.Metadata, pkgs []Package) error {
	var remotes, repos []string
	seen := map[string]bool{}
	for _, pkg := range pkgs {
		logging.Resolve(ctx, pkg.Name(), "from apt")
		p := pkg.(*AptPackage)
		remotes = append(remotes, p.Remote...)
		if p.Repository != "" && !seen[p.Repository] {
			seen[p.Repository] = true
			repos = append(repos, p.Repository)
		}
	}

	lf, err := logging.OpenLogFile(md.FS(), md.PkgDir(), "apt", false)
	if err != nil {
		return err
	}
	defer lf.Close()

	env := environment(md).Environ()
	run := func(args ...string) error {
		return lf.CheckCall(ctx, logging.Call{Args: args, Env: env})
	}
	for _, repo := range repos {
		if err := run("sudo", "add-apt-repository", "-y", repo); err != nil {
			return err
		}
	}
	if len(repos) > 0 {
		if err := run("sudo", "apt-get", "update"); err != nil {
			return err
		}
	}
	if err := run(append([]string{"sudo", "apt-get", "install", "-y"}, remotes...)...); err != nil {
		return err
	}

	for _, pkg := range pkgs {
		pkg.SetResolved(true)
	}
	return nil
}

func (aptBatch) DeployAll(context.Context, core.Metadata, []Package) error { return nil }
