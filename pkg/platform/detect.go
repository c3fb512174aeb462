// pkg/platform/detect.go
package platform

import (
	"fmt"
	"runtime"
	"strings"
)

// Platform describes the host system
type Platform struct {
	OS   string // linux, darwin, windows
	Arch string // amd64, arm64, 386, arm
}

// Detect detects the current platform
func Detect() *Platform {
	return &Platform{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}
}

// Name returns the platform name used in configuration expressions
func (p *Platform) Name() string {
	return p.OS
}

// String returns a string representation of the platform
func (p *Platform) String() string {
	return fmt.Sprintf("%s/%s", p.OS, p.Arch)
}

// HostName returns the name of the host platform
func HostName() string {
	return Detect().Name()
}

// IsWindows reports whether a platform name refers to Windows
func IsWindows(name string) bool {
	return name == "windows"
}

// IsDarwin reports whether a platform name refers to macOS
func IsDarwin(name string) bool {
	return name == "darwin"
}

// LibraryName returns the name used to link against a library called name
// on the target platform. Windows import libraries keep a "lib" prefix
// only when the package name already carries one.
func LibraryName(target, name string) string {
	if IsWindows(target) {
		return name
	}
	return strings.TrimPrefix(name, "lib")
}
