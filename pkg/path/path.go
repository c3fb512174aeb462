// pkg/path/path.go
package path

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Well-known path bases. Builders and deploy directories may contribute more.
const (
	Absolute = ""
	CfgDir   = "cfgdir"
	SrcDir   = "srcdir"
	BuildDir = "builddir"
)

var (
	// ErrUnknownBase indicates a base with no concrete directory at the point of use
	ErrUnknownBase = errors.New("unknown path base")

	driveRelative = regexp.MustCompile(`^[A-Za-z]:([^\\/]|$)`)
)

// Path is a filesystem path relative to a named base directory. The base is
// resolved to a real directory only when the path is stringified.
type Path struct {
	base string
	path string
}

// New creates a path relative to base. An empty base means p must be
// absolute; any other base means p must be relative.
func New(base, p string) (Path, error) {
	if driveRelative.MatchString(p) {
		return Path{}, fmt.Errorf("drive-relative path %q not supported", p)
	}

	isAbs := filepath.IsAbs(p) || strings.HasPrefix(p, "/")
	if base == Absolute && !isAbs {
		return Path{}, fmt.Errorf("expected an absolute path, got %q", p)
	}
	if base != Absolute && isAbs {
		return Path{}, fmt.Errorf("expected a relative path, got %q", p)
	}

	return Path{base: base, path: normalize(p)}, nil
}

// Root returns the path naming base itself.
func Root(base string) Path {
	return Path{base: base}
}

// Parse builds a path from a user-supplied string, using base for relative
// strings and no base for absolute ones.
func Parse(base, p string) (Path, error) {
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") {
		return New(Absolute, p)
	}
	return New(base, p)
}

func normalize(p string) string {
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if p == "." {
		return ""
	}
	return p
}

// Base returns the name of the base directory.
func (p Path) Base() string { return p.base }

// Path returns the normalized path relative to its base.
func (p Path) Path() string { return p.path }

// IsAbs reports whether the path has no base.
func (p Path) IsAbs() bool { return p.base == Absolute }

// IsInner reports whether a relative path stays inside its base.
func (p Path) IsInner() bool {
	if p.IsAbs() {
		return false
	}
	slashed := filepath.ToSlash(p.path)
	return slashed != ".." && !strings.HasPrefix(slashed, "../")
}

// Join appends path elements.
func (p Path) Join(elem ...string) Path {
	parts := append([]string{p.path}, elem...)
	return Path{base: p.base, path: normalize(filepath.Join(parts...))}
}

// WithBase returns the same relative path under another base.
func (p Path) WithBase(base string) Path {
	return Path{base: base, path: p.path}
}

// String resolves the path against concrete directories for each base.
func (p Path) String(bases map[string]string) (string, error) {
	if p.IsAbs() {
		return p.path, nil
	}
	root, ok := bases[p.base]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownBase, p.base)
	}
	if p.path == "" {
		return root, nil
	}
	return filepath.Join(root, p.path), nil
}

// GoString makes debug output readable.
func (p Path) GoString() string {
	return fmt.Sprintf("Path(%q, %q)", p.base, p.path)
}

// Dehydrate returns the persisted form of the path.
func (p Path) Dehydrate() map[string]any {
	return map[string]any{"base": p.base, "path": p.path}
}

// Rehydrate restores a path from its persisted form.
func Rehydrate(data any) (Path, error) {
	m, ok := data.(map[string]any)
	if !ok {
		return Path{}, fmt.Errorf("expected a path, got %T", data)
	}
	base, _ := m["base"].(string)
	p, _ := m["path"].(string)
	return Path{base: base, path: p}, nil
}

// IsPath reports whether a persisted value looks like a dehydrated Path.
func IsPath(data any) bool {
	m, ok := data.(map[string]any)
	if !ok || len(m) != 2 {
		return false
	}
	_, hasBase := m["base"]
	_, hasPath := m["path"]
	return hasBase && hasPath
}
