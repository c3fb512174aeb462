// pkg/origins/git.go
package origins

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/spf13/afero"

	"github.com/arc-language/mopack/pkg/core"
	"github.com/arc-language/mopack/pkg/freezedry"
	"github.com/arc-language/mopack/pkg/logging"
	"github.com/arc-language/mopack/pkg/path"
	"github.com/arc-language/mopack/pkg/types"
)

// Rev is the revision of a repository to check out
type Rev struct {
	Kind  string // tag, branch or commit
	Value string
}

// Git performs the repository operations the git origin needs
type Git interface {
	Clone(ctx context.Context, repository, dir string, rev Rev, progress io.Writer) error
	Pull(ctx context.Context, dir string, progress io.Writer) error
}

type gitKey struct{}

// WithGit overrides how repositories are cloned for everything using ctx
func WithGit(ctx context.Context, g Git) context.Context {
	return context.WithValue(ctx, gitKey{}, g)
}

func gitFrom(ctx context.Context) Git {
	if g, ok := ctx.Value(gitKey{}).(Git); ok {
		return g
	}
	return goGit{}
}

type goGit struct{}

func (goGit) Clone(ctx context.Context, repository, dir string, rev Rev, progress io.Writer) error {
	opts := &git.CloneOptions{URL: repository, Progress: progress}
	switch rev.Kind {
	case "branch":
		opts.ReferenceName = plumbing.NewBranchReferenceName(rev.Value)
		opts.SingleBranch = true
	case "tag":
		opts.ReferenceName = plumbing.NewTagReferenceName(rev.Value)
		opts.SingleBranch = true
	}

	repo, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		return fmt.Errorf("git clone failed: %w", err)
	}
	if rev.Kind != "commit" {
		return nil
	}

	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(rev.Value)}); err != nil {
		return fmt.Errorf("git checkout %s failed: %w", rev.Value, err)
	}
	return nil
}

func (goGit) Pull(ctx context.Context, dir string, progress io.Writer) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	err = wt.PullContext(ctx, &git.PullOptions{RemoteName: "origin", Progress: progress})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("git pull failed: %w", err)
	}
	return nil
}

// GitPackage builds sources cloned from a git repository
type GitPackage struct {
	*SDistPackage
	Repository string
	Rev        Rev
	Srcdir     string
}

func init() {
	Register("git", Kind{
		Versioned: sdistVersion,
		New:       newGit,
		Rehydrate: func(b *BasePackage, r *freezedry.Reader) (Package, error) {
			p := &GitPackage{
				Repository: r.String("repository"),
				Srcdir:     r.OptString("srcdir"),
			}
			var rev []string
			r.Decode("rev", &rev)
			if len(rev) == 2 {
				p.Rev = Rev{Kind: rev[0], Value: rev[1]}
			}
			var err error
			if p.SDistPackage, err = rehydrateSDist(b, r, p); err != nil {
				return nil, err
			}
			return p, nil
		},
	})
}

func newGit(b *BasePackage, tc *types.TypeCheck) (Package, error) {
	p := &GitPackage{}
	p.SDistPackage = newSDist(b, tc, p)

	localPath := func(field types.Field, value any) (string, error) {
		pth, err := types.AnyPath(path.CfgDir)(field, value)
		if err != nil {
			return "", err
		}
		return pth.String(map[string]string{path.CfgDir: b.ConfigDir()})
	}
	types.Check(tc, "repository",
		types.OneOf("a repository", types.URL, types.SSHPath, localPath), &p.Repository)
	types.Check(tc, "srcdir", types.Maybe(types.InnerPath, ""), &p.Srcdir)

	var set []Rev
	for _, kind := range []string{"tag", "branch", "commit"} {
		var v string
		if types.Check(tc, kind, types.Maybe(types.String, ""), &v) && v != "" {
			set = append(set, Rev{Kind: kind, Value: v})
		}
	}
	if tc.Err() != nil {
		return nil, tc.Err()
	}
	switch len(set) {
	case 0:
		p.Rev = Rev{Kind: "branch", Value: "master"}
	case 1:
		p.Rev = set[0]
	default:
		return nil, types.NewFieldKeyError("only one of `tag`, `branch`, or `commit` may be specified", set[1].Kind)
	}
	return p, nil
}

func (p *GitPackage) baseSrcdir(md core.Metadata) string {
	return filepath.Join(md.PkgDir(), "src", p.name)
}

func (p *GitPackage) sourceDir(md core.Metadata) (string, bool) {
	return filepath.Join(p.baseSrcdir(md), p.Srcdir), true
}

func (p *GitPackage) CleanPre(ctx context.Context, md core.Metadata, newPkg Package, quiet bool) (bool, error) {
	if !p.needsClean(newPkg) {
		return false, nil
	}
	return true, p.removeSources(ctx, md, p.baseSrcdir(md), quiet)
}

func (p *GitPackage) Fetch(ctx context.Context, md core.Metadata, parent ParentConfig) (ChildConfig, error) {
	base := p.baseSrcdir(md)
	lf, err := logging.OpenLogFile(md.FS(), md.PkgDir(), p.name, false)
	if err != nil {
		return nil, err
	}
	defer lf.Close()

	g := gitFrom(ctx)
	if exists, _ := afero.DirExists(md.FS(), base); exists {
		if p.Rev.Kind == "branch" {
			logging.FromContext(ctx).Debug("updating", "package", p.name, "branch", p.Rev.Value)
			if err := g.Pull(ctx, base, lf.Writer()); err != nil {
				return nil, err
			}
		}
	} else {
		logging.Fetch(ctx, p.name, "from "+p.Repository)
		if err := g.Clone(ctx, p.Repository, base, p.Rev, lf.Writer()); err != nil {
			return nil, fmt.Errorf("%w (see %s)", err, lf.Path())
		}
	}

	dir, _ := p.sourceDir(md)
	return p.findMopack(parent, dir)
}

func (p *GitPackage) Dehydrate() (map[string]any, error) {
	data, err := p.SDistPackage.dehydrate()
	if err != nil {
		return nil, err
	}
	data["repository"] = p.Repository
	data["rev"] = []any{p.Rev.Kind, p.Rev.Value}
	data["srcdir"] = p.Srcdir
	return data, nil
}
