// pkg/origins/child.go
package origins

// ParentConfig is the configuration a package was defined in. Source
// packages use it to read the config shipped with their fetched sources.
type ParentConfig interface {
	// LoadChild reads the config in dir on behalf of pkg. It returns nil
	// when dir has no config.
	LoadChild(dir string, pkg Package) (ChildConfig, error)
}

// ChildConfig is a config found inside a package's sources
type ChildConfig interface {
	// Export returns the build description the child offers its parent, or
	// nil if it has none
	Export() *Export

	// PackageNames returns the packages the child config defines
	PackageNames() []string
}

// Export is the `export` block of a child config. Absent keys hold
// types.Unset.
type Export struct {
	Build      any
	Linkage    any
	Submodules any

	// Wrap attaches the export block's file locations to errors
	Wrap func(error) error
}

func (e *Export) wrap(err error) error {
	if err == nil || e.Wrap == nil {
		return err
	}
	return e.Wrap(err)
}
