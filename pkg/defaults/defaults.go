// pkg/defaults/defaults.go
package defaults

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/arc-language/mopack/pkg/types"
)

//go:embed data/*.toml
var data embed.FS

// Entry holds the default field values for one package, grouped by the
// genus they apply to (origin, linkage or an origin name such as "apt").
type Entry struct {
	Name   string
	Genera map[string]map[string]any
}

var (
	loadOnce sync.Once
	entries  map[string]*Entry
	loadErr  error
)

func load() {
	entries = map[string]*Entry{}
	files, err := fs.Glob(data, "data/*.toml")
	if err != nil {
		loadErr = err
		return
	}
	for _, file := range files {
		raw, err := data.ReadFile(file)
		if err != nil {
			loadErr = err
			return
		}

		var doc map[string]any
		if _, err := toml.Decode(string(raw), &doc); err != nil {
			loadErr = fmt.Errorf("defaults: failed to parse %q: %w", file, err)
			return
		}

		name := strings.TrimSuffix(path.Base(file), ".toml")
		entry := &Entry{Name: name, Genera: map[string]map[string]any{}}
		for genus, fields := range doc {
			if m, ok := fields.(map[string]any); ok {
				entry.Genera[genus] = m
			}
		}
		entries[name] = entry
	}
}

// Lookup returns the defaults for a package.
func Lookup(name string) (*Entry, bool) {
	loadOnce.Do(load)
	if loadErr != nil {
		panic(loadErr)
	}
	e, ok := entries[name]
	return e, ok
}

// Get returns the default value of field for genus, or types.Unset.
func Get(name, genus, field string) any {
	e, ok := Lookup(name)
	if !ok {
		return types.Unset
	}
	v, ok := e.Genera[genus][field]
	if !ok {
		return types.Unset
	}
	return v
}

// Resolve wraps a checker so that an unset value falls back to the package's
// default for genus and field.
func Resolve[T any](name, genus, field string, c types.Checker[T]) types.Checker[T] {
	return func(f types.Field, value any) (T, error) {
		if value == types.Unset {
			value = Get(name, genus, field)
		}
		return c(f, value)
	}
}
