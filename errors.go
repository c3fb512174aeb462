// errors.go
package mopack

import (
	"errors"
	"fmt"

	"github.com/arc-language/mopack/pkg/metadata"
	"github.com/arc-language/mopack/pkg/types"
)

var (
	// ErrConfiguration matches every error caused by invalid user input
	ErrConfiguration = types.ErrConfiguration

	// ErrPackageNotFound is returned in strict mode for a dependency
	// missing from the resolved metadata
	ErrPackageNotFound = metadata.ErrNotFound

	// ErrUnresolved marks a package whose last resolution failed
	ErrUnresolved = metadata.ErrUnresolved

	// ErrNotResolved is returned by Deploy when no metadata was saved
	ErrNotResolved = errors.New("packages have not been resolved")
)

// Error records which manager operation failed and, when one was being
// processed, the package (or batch) it failed on.
type Error struct {
	Op      string // fetch, resolve, deploy, linkage, clean
	Package string // package name or "<origin> packages" for a batch
	Err     error
}

func (e *Error) Error() string {
	if e.Package != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Package, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err was caused by invalid input
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
