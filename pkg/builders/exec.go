// pkg/builders/exec.go
package builders

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/arc-language/mopack/pkg/core"
	"github.com/arc-language/mopack/pkg/expr"
	"github.com/arc-language/mopack/pkg/logging"
	"github.com/arc-language/mopack/pkg/shell"
)

// envPackage is implemented by packages with their own build environment
type envPackage interface {
	Env() map[string]string
}

// session runs the commands of one build or deploy step
type session struct {
	ctx    context.Context
	log    *logging.LogFile
	env    expr.Env
	values map[string]string
}

func begin(ctx context.Context, md core.Metadata, pkg core.Package, deploy bool) (*session, error) {
	values, err := pkg.PathValues(md)
	if err != nil {
		return nil, err
	}

	name := pkg.Name()
	if deploy {
		name += "-deploy"
	}
	lf, err := logging.OpenLogFile(md.FS(), md.PkgDir(), name, false)
	if err != nil {
		return nil, err
	}

	env := expr.NewEnv(nil)
	if p, ok := pkg.(envPackage); ok {
		env = expr.NewEnv(p.Env())
	} else if md.Options() != nil {
		env = md.Options().Common.Environment()
	}
	return &session{ctx: ctx, log: lf, env: env, values: values}, nil
}

func (s *session) Close() error { return s.log.Close() }

// tool resolves a command from the environment (e.g. $CMAKE), falling back
// to a default name
func (s *session) tool(variable, fallback string) ([]string, error) {
	return shell.Command(s.env.Lookup, variable, fallback)
}

func (s *session) run(dir string, args ...string) error {
	return s.log.CheckCall(s.ctx, logging.Call{
		Args: args,
		Dir:  dir,
		Env:  s.env.Environ(),
	})
}

func (s *session) fill(args shell.Arguments) ([]string, error) {
	return args.Values(s.values)
}

func mkdirs(md core.Metadata, dir string) error {
	if err := md.FS().MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}

func removeAll(md core.Metadata, dir string) error {
	exists, err := afero.DirExists(md.FS(), dir)
	if err != nil || !exists {
		return err
	}
	return md.FS().RemoveAll(dir)
}

// deployDirs returns the configured deploy directories in sorted order
func deployDirs(md core.Metadata) [][2]string {
	if md.Options() == nil {
		return nil
	}
	dirs := md.Options().Common.DeployDirs
	kinds := make([]string, 0, len(dirs))
	for k := range dirs {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	result := make([][2]string, 0, len(kinds))
	for _, k := range kinds {
		result = append(result, [2]string{k, dirs[k]})
	}
	return result
}

func installVar(kind string) string {
	return strings.ToUpper(strings.ReplaceAll(kind, "-", "_"))
}
