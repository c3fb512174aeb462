// pkg/env/constants.go
package env

import (
	"path/filepath"
	"runtime"

	"github.com/arc-language/mopack/pkg/platform"
)

// SystemLayout returns the standard directories of a platform
func SystemLayout(name string) Layout {
	switch {
	case platform.IsWindows(name):
		return getWindowsLayout()
	case platform.IsDarwin(name):
		return getDarwinLayout()
	default:
		return getLinuxLayout()
	}
}

// Linux systems use the FHS hierarchy, with a multiarch directory on Debian
func getLinuxLayout() Layout {
	arch := runtime.GOARCH
	if arch == "amd64" {
		arch = "x86_64"
	}
	if arch == "arm64" {
		arch = "aarch64"
	}

	return Layout{
		Libraries: []string{
			filepath.Join("/usr", "local", "lib"),
			filepath.Join("/usr", "lib", arch+"-linux-gnu"),
			filepath.Join("/usr", "lib64"),
			filepath.Join("/usr", "lib"),
			filepath.Join("/lib", arch+"-linux-gnu"),
			filepath.Join("/lib64"),
			filepath.Join("/lib"),
		},
		Includes: []string{
			filepath.Join("/usr", "local", "include"),
			filepath.Join("/usr", "include"),
		},
		PkgConfig: []string{
			filepath.Join("/usr", "local", "lib", "pkgconfig"),
			filepath.Join("/usr", "lib", arch+"-linux-gnu", "pkgconfig"),
			filepath.Join("/usr", "lib64", "pkgconfig"),
			filepath.Join("/usr", "lib", "pkgconfig"),
			filepath.Join("/usr", "share", "pkgconfig"),
		},
	}
}

// macOS has the system prefix plus Homebrew's
func getDarwinLayout() Layout {
	return Layout{
		Libraries: []string{
			filepath.Join("/opt", "homebrew", "lib"),
			filepath.Join("/usr", "local", "lib"),
			filepath.Join("/usr", "lib"),
		},
		Includes: []string{
			filepath.Join("/opt", "homebrew", "include"),
			filepath.Join("/usr", "local", "include"),
			filepath.Join("/usr", "include"),
		},
		PkgConfig: []string{
			filepath.Join("/opt", "homebrew", "lib", "pkgconfig"),
			filepath.Join("/usr", "local", "lib", "pkgconfig"),
		},
	}
}

// Windows has no standard location; rely on the environment and extra dirs
func getWindowsLayout() Layout {
	return Layout{}
}

// LibraryExtensions returns file extensions to look for on a platform
func LibraryExtensions(name string) []string {
	switch {
	case platform.IsDarwin(name):
		return []string{".dylib", ".a"}
	case platform.IsWindows(name):
		return []string{".lib", ".dll"}
	default: // linux, etc.
		return []string{".so", ".a"}
	}
}
