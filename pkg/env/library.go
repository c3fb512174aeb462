// pkg/env/library.go
package env

import (
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/arc-language/mopack/pkg/platform"
)

// New creates an environment for searching the host's directories
func New(fs afero.Fs, platformName string) *Environment {
	return &Environment{FS: fs, Platform: platformName}
}

func (e *Environment) dirs(extra, system []string) []string {
	result := append([]string(nil), extra...)
	for _, dir := range system {
		result = append(result, filepath.Join(e.Root, dir))
	}
	return result
}

// LibraryPaths returns the directories searched for libraries
func (e *Environment) LibraryPaths() []string {
	return e.dirs(e.Extra.Libraries, SystemLayout(e.Platform).Libraries)
}

// IncludePaths returns the directories searched for headers
func (e *Environment) IncludePaths() []string {
	return e.dirs(e.Extra.Includes, SystemLayout(e.Platform).Includes)
}

// PkgConfigPaths returns the directories searched for .pc files
func (e *Environment) PkgConfigPaths() []string {
	return e.dirs(e.Extra.PkgConfig, SystemLayout(e.Platform).PkgConfig)
}

// FindLibrary searches for a specific library by name
// Returns the first match found in library search paths
func (e *Environment) FindLibrary(name string) *Library {
	filename := name
	if !platform.IsWindows(e.Platform) {
		filename = "lib" + name
	}

	for _, dir := range e.LibraryPaths() {
		for _, ext := range LibraryExtensions(e.Platform) {
			// Try lib{name}{ext} pattern (e.g., libssl.so)
			fullPath := filepath.Join(dir, filename+ext)
			if e.fileExists(fullPath) {
				return newLibrary(name, dir, fullPath, ext)
			}

			// Try versioned: lib{name}{ext}.* (e.g., libssl.so.3)
			matches, _ := afero.Glob(e.FS, filepath.Join(dir, filename+ext+".*"))
			if len(matches) > 0 {
				return newLibrary(name, dir, matches[0], ext)
			}
		}
	}

	return nil
}

func newLibrary(name, dir, path, ext string) *Library {
	return &Library{
		Name:     name,
		Path:     path,
		Dir:      dir,
		Type:     ext,
		IsStatic: ext == ".a" || (ext == ".lib" && !strings.HasSuffix(path, ".dll")),
	}
}

// HasLibrary checks if a library exists in the environment
func (e *Environment) HasLibrary(name string) bool {
	return e.FindLibrary(name) != nil
}

// FindHeader returns the include directory that provides header
func (e *Environment) FindHeader(header string) (string, bool) {
	for _, dir := range e.IncludePaths() {
		if e.fileExists(filepath.Join(dir, filepath.FromSlash(header))) {
			return dir, true
		}
	}
	return "", false
}

// FindPkgConfig returns the path of name's .pc file
func (e *Environment) FindPkgConfig(name string) (string, bool) {
	for _, dir := range e.PkgConfigPaths() {
		pc := filepath.Join(dir, name+".pc")
		if e.fileExists(pc) {
			return pc, true
		}
	}
	return "", false
}

func (e *Environment) fileExists(path string) bool {
	info, err := e.FS.Stat(path)
	return err == nil && !info.IsDir()
}
