// pkg/origins/tarball.go
package origins

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/spf13/afero"

	"github.com/arc-language/mopack/pkg/archive"
	"github.com/arc-language/mopack/pkg/core"
	"github.com/arc-language/mopack/pkg/freezedry"
	"github.com/arc-language/mopack/pkg/logging"
	"github.com/arc-language/mopack/pkg/path"
	"github.com/arc-language/mopack/pkg/shell"
	"github.com/arc-language/mopack/pkg/types"
)

// TarballPackage builds sources unpacked from an archive, either local or
// downloaded
type TarballPackage struct {
	*SDistPackage
	Path   *path.Path
	URL    string
	Files  []string
	Srcdir string
	Patch  *path.Path

	// GuessedSrcdir is the archive's top-level directory, found while
	// extracting
	GuessedSrcdir string
}

var optionalPath = types.Maybe(
	func(field types.Field, value any) (*path.Path, error) {
		p, err := types.AnyPath(path.CfgDir)(field, value)
		if err != nil {
			return nil, err
		}
		return &p, nil
	}, nil,
)

func init() {
	Register("tarball", Kind{
		Versioned: sdistVersion,
		New:       newTarball,
		Rehydrate: rehydrateTarball,
		Skip:      []string{"guessed_srcdir"},
	})
}

func newTarball(b *BasePackage, tc *types.TypeCheck) (Package, error) {
	p := &TarballPackage{}
	p.SDistPackage = newSDist(b, tc, p)
	types.Check(tc, "path", optionalPath, &p.Path)
	types.Check(tc, "url", types.Maybe(types.URL, ""), &p.URL)
	types.Check(tc, "files", types.Maybe(types.ListOf(types.String, true), []string{}), &p.Files)
	types.Check(tc, "srcdir", types.Maybe(types.InnerPath, ""), &p.Srcdir)
	types.Check(tc, "patch", optionalPath, &p.Patch)
	if tc.Err() != nil {
		return nil, tc.Err()
	}
	if (p.Path == nil) == (p.URL == "") {
		return nil, types.NewFieldKeyError("exactly one of `path` or `url` must be specified")
	}
	if _, err := archive.Matcher(p.Files); err != nil {
		return nil, types.WrapField(err, "files")
	}
	return p, nil
}

func rehydrateTarball(b *BasePackage, r *freezedry.Reader) (Package, error) {
	p := &TarballPackage{
		URL:           r.OptString("url"),
		Files:         r.Strings("files"),
		Srcdir:        r.OptString("srcdir"),
		GuessedSrcdir: r.OptString("guessed_srcdir"),
	}
	var err error
	if p.SDistPackage, err = rehydrateSDist(b, r, p); err != nil {
		return nil, err
	}
	for key, dst := range map[string]**path.Path{"path": &p.Path, "patch": &p.Patch} {
		if raw := r.Raw(key); raw != nil {
			v, err := path.Rehydrate(raw)
			if err != nil {
				return nil, types.WrapField(err, key)
			}
			*dst = &v
		}
	}
	return p, nil
}

func (p *TarballPackage) baseSrcdir(md core.Metadata) string {
	return filepath.Join(md.PkgDir(), "src", p.name)
}

func (p *TarballPackage) sourceDir(md core.Metadata) (string, bool) {
	srcdir := p.Srcdir
	if srcdir == "" {
		srcdir = p.GuessedSrcdir
	}
	if srcdir == "" {
		return "", false
	}
	return filepath.Join(p.baseSrcdir(md), srcdir), true
}

func (p *TarballPackage) cfgValues() map[string]string {
	return map[string]string{path.CfgDir: p.ConfigDir()}
}

func (p *TarballPackage) CleanPre(ctx context.Context, md core.Metadata, newPkg Package, quiet bool) (bool, error) {
	if !p.needsClean(newPkg) {
		// Same archive, so the new package can reuse what was extracted.
		if t, ok := newPkg.(*TarballPackage); ok {
			t.GuessedSrcdir = p.GuessedSrcdir
		}
		return false, nil
	}
	return true, p.removeSources(ctx, md, p.baseSrcdir(md), quiet)
}

func (p *TarballPackage) Fetch(ctx context.Context, md core.Metadata, parent ParentConfig) (ChildConfig, error) {
	base := p.baseSrcdir(md)
	if exists, _ := afero.DirExists(md.FS(), base); exists {
		// Extracted (and patched) by an earlier fetch of the same archive.
		logging.FromContext(ctx).Debug("already fetched", "package", p.name)
	} else if err := p.extract(ctx, md, base); err != nil {
		var cerr *logging.CommandError
		if errors.As(err, &cerr) {
			// Finish defining the package so it can still be cleaned. The
			// patch failure is the error reported.
			if _, ferr := p.findMopack(parent, p.srcdirOrBase(md)); ferr != nil {
				logging.FromContext(ctx).Debug("loading child config after failed patch",
					"package", p.name, "err", ferr)
			}
		}
		return nil, err
	}
	return p.findMopack(parent, p.srcdirOrBase(md))
}

func (p *TarballPackage) srcdirOrBase(md core.Metadata) string {
	if dir, ok := p.sourceDir(md); ok {
		return dir
	}
	return p.baseSrcdir(md)
}

func (p *TarballPackage) extract(ctx context.Context, md core.Metadata, base string) error {
	var (
		data  []byte
		where string
		err   error
	)
	if p.URL != "" {
		where = p.URL
		logging.Fetch(ctx, p.name, "from "+where)
		data, err = download(ctx, p.URL)
	} else {
		if where, err = p.Path.String(p.cfgValues()); err != nil {
			return err
		}
		logging.Fetch(ctx, p.name, "from "+where)
		data, err = afero.ReadFile(md.FS(), where)
	}
	if err != nil {
		return fmt.Errorf("fetching %s: %w", where, err)
	}

	arc, err := archive.Open(data)
	if err != nil {
		return fmt.Errorf("opening %s: %w", where, err)
	}
	names, err := arc.Names()
	if err != nil {
		return fmt.Errorf("reading %s: %w", where, err)
	}
	p.GuessedSrcdir = archive.TopLevel(names)

	var keep func(string) bool
	if len(p.Files) > 0 {
		if keep, err = archive.Matcher(p.Files); err != nil {
			return err
		}
	}
	if err := arc.Extract(md.FS(), base, keep); err != nil {
		return fmt.Errorf("extracting %s: %w", where, err)
	}
	if p.Patch != nil {
		return p.applyPatch(ctx, md)
	}
	return nil
}

func (p *TarballPackage) applyPatch(ctx context.Context, md core.Metadata) error {
	patch, err := p.Patch.String(p.cfgValues())
	if err != nil {
		return err
	}
	env := environment(md)
	cmd, err := shell.Command(env.Lookup, "PATCH", "patch")
	if err != nil {
		return err
	}

	logging.Patch(ctx, p.name, "with "+patch)
	f, err := md.FS().Open(patch)
	if err != nil {
		return fmt.Errorf("opening patch: %w", err)
	}
	defer f.Close()

	lf, err := logging.OpenLogFile(md.FS(), md.PkgDir(), p.name, false)
	if err != nil {
		return err
	}
	defer lf.Close()
	return lf.CheckCall(ctx, logging.Call{
		Args:  append(cmd, "-p1"),
		Dir:   p.srcdirOrBase(md),
		Env:   env.Environ(),
		Stdin: f,
	})
}

func download(ctx context.Context, url string) ([]byte, error) {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 3

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (p *TarballPackage) Dehydrate() (map[string]any, error) {
	data, err := p.SDistPackage.dehydrate()
	if err != nil {
		return nil, err
	}
	var pathData, patchData, guessed, srcdir any
	if p.Path != nil {
		pathData = p.Path.Dehydrate()
	}
	if p.Patch != nil {
		patchData = p.Patch.Dehydrate()
	}
	if p.GuessedSrcdir != "" {
		guessed = p.GuessedSrcdir
	}
	if p.Srcdir != "" {
		srcdir = p.Srcdir
	}
	files := make([]any, len(p.Files))
	for i, f := range p.Files {
		files[i] = f
	}
	var url any
	if p.URL != "" {
		url = p.URL
	}
	data["path"] = pathData
	data["url"] = url
	data["files"] = files
	data["srcdir"] = srcdir
	data["patch"] = patchData
	data["guessed_srcdir"] = guessed
	return data, nil
}
