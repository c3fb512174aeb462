// pkg/core/interface.go
package core

import (
	"context"

	"github.com/spf13/afero"

	"github.com/arc-language/mopack/pkg/options"
)

// Metadata is the view of the resolution state that packages, builders and
// linkages are given while they work.
type Metadata interface {
	// PkgDir returns the package directory everything is fetched and built in
	PkgDir() string

	// FS returns the filesystem the package directory lives on
	FS() afero.Fs

	// Options returns the finalized options for this resolution
	Options() *options.Options

	// Linkage returns the linkage of an already-resolved package
	Linkage(ctx context.Context, name string, submodules []string) (map[string]any, error)
}

// Package is the part of a package builders and linkages depend on
type Package interface {
	// Name returns the package name
	Name() string

	// Origin returns the origin tag (e.g., "tarball", "system")
	Origin() string

	// Submodules returns the declared submodules, or nil if there are none
	Submodules() *Submodules

	// PathValues returns the concrete directory of every path base the
	// package knows about
	PathValues(md Metadata) (map[string]string, error)
}
