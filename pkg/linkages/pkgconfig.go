// pkg/linkages/pkgconfig.go
package linkages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/arc-language/mopack/pkg/core"
	"github.com/arc-language/mopack/pkg/expr"
	"github.com/arc-language/mopack/pkg/logging"
	"github.com/arc-language/mopack/pkg/shell"
)

// pcFile is a generated pkg-config file
type pcFile struct {
	Name     string
	Version  string
	Requires []string
	Cflags   []string
	Libs     []string
}

// GeneratedDir returns the directory generated .pc files are written to
func GeneratedDir(pkgdir string) string {
	return filepath.Join(pkgdir, "pkgconfig")
}

func quoteAll(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = shell.Quote(a)
	}
	return strings.Join(quoted, " ")
}

func writePC(fs afero.Fs, dir string, pc pcFile) error {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", pc.Name)
	fmt.Fprintf(&b, "Description: mopack-generated package\n")
	version := pc.Version
	if version == "" {
		version = "0"
	}
	fmt.Fprintf(&b, "Version: %s\n", version)
	if len(pc.Requires) > 0 {
		fmt.Fprintf(&b, "Requires: %s\n", strings.Join(pc.Requires, ", "))
	}
	fmt.Fprintf(&b, "Cflags: %s\n", quoteAll(pc.Cflags))
	fmt.Fprintf(&b, "Libs: %s\n", quoteAll(pc.Libs))

	file := filepath.Join(dir, pc.Name+".pc")
	if err := afero.WriteFile(fs, file, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", file, err)
	}
	return nil
}

func environment(md core.Metadata) expr.Env {
	if md.Options() == nil {
		return expr.NewEnv(nil)
	}
	return md.Options().Common.Environment()
}

// pkgConfig runs pkg-config with extra directories on PKG_CONFIG_PATH
func pkgConfig(ctx context.Context, md core.Metadata, paths []string, args ...string) (string, error) {
	env := environment(md)
	cmd, err := shell.Command(env.Lookup, "PKG_CONFIG", "pkg-config")
	if err != nil {
		return "", err
	}

	environ := env.Environ()
	if len(paths) > 0 {
		searchPath := strings.Join(paths, string(os.PathListSeparator))
		if existing, ok := env.Lookup("PKG_CONFIG_PATH"); ok && existing != "" {
			searchPath += string(os.PathListSeparator) + existing
		}
		environ = append(environ, "PKG_CONFIG_PATH="+searchPath)
	}

	return logging.Output(ctx, logging.Call{
		Args: append(cmd, args...),
		Env:  environ,
	})
}
