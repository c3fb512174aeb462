// pkg/env/types.go
package env

import "github.com/spf13/afero"

// Layout lists the directories searched for one kind of artifact each
type Layout struct {
	Libraries []string // Library directories
	Includes  []string // Include directories
	PkgConfig []string // pkg-config directories
}

// Library is a library file found by FindLibrary
type Library struct {
	Name     string // Library name (e.g., "ssl")
	Path     string // Absolute path to library file
	Dir      string // Directory containing the library
	Type     string // Extension: ".so", ".a", ".dylib", ".dll", ".lib"
	IsStatic bool   // True for .a files
}

// Environment describes the system a system linkage probes
type Environment struct {
	FS       afero.Fs
	Platform string // Target platform name (linux, darwin, windows)
	Root     string // Prefix prepended to every system directory
	Extra    Layout // Directories searched before the system ones
}
