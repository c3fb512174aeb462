// pkg/expr/symbols.go
package expr

import (
	"fmt"
	"maps"
	"os"

	"github.com/arc-language/mopack/pkg/path"
	"github.com/arc-language/mopack/pkg/placeholder"
)

// Indexer is implemented by symbol values that support x["key"] lookups
// beyond plain maps.
type Indexer interface {
	Index(key string) (any, error)
}

// Symbols is an immutable table of names visible to expressions. Path bases
// are exposed as placeholders for the root of each base.
type Symbols struct {
	vars      map[string]any
	pathBases []string
}

// DuplicateSymbolError is returned when a symbol would be defined twice.
type DuplicateSymbolError struct {
	Name string
}

func (e *DuplicateSymbolError) Error() string {
	return fmt.Sprintf("symbol %q already defined", e.Name)
}

// NewSymbols creates a table holding a copy of vars.
func NewSymbols(vars map[string]any) *Symbols {
	return &Symbols{vars: maps.Clone(vars)}
}

// Lookup returns the value bound to name.
func (s *Symbols) Lookup(name string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.vars[name]
	return v, ok
}

// PathBases returns the path bases defined so far, in definition order.
func (s *Symbols) PathBases() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.pathBases...)
}

// HasPathBase reports whether base has been defined.
func (s *Symbols) HasPathBase(base string) bool {
	for _, b := range s.PathBases() {
		if b == base {
			return true
		}
	}
	return false
}

// Augment returns a new table with vars added, replacing existing names.
func (s *Symbols) Augment(vars map[string]any) *Symbols {
	result := s.clone()
	for k, v := range vars {
		result.vars[k] = v
	}
	return result
}

// AugmentPathBases returns a new table with each base bound to a placeholder
// for its root directory.
func (s *Symbols) AugmentPathBases(bases ...string) (*Symbols, error) {
	result := s.clone()
	for _, base := range bases {
		if _, ok := result.vars[base]; ok {
			return nil, &DuplicateSymbolError{Name: base}
		}
		result.vars[base] = placeholder.Of(path.Root(base))
		result.pathBases = append(result.pathBases, base)
	}
	return result, nil
}

func (s *Symbols) clone() *Symbols {
	if s == nil {
		return &Symbols{vars: map[string]any{}}
	}
	vars := maps.Clone(s.vars)
	if vars == nil {
		vars = map[string]any{}
	}
	return &Symbols{
		vars:      vars,
		pathBases: append([]string(nil), s.pathBases...),
	}
}

// Env looks up environment variables, preferring configured values over the
// process environment.
type Env struct {
	vars map[string]string
}

// NewEnv wraps the configured environment.
func NewEnv(vars map[string]string) Env {
	return Env{vars: vars}
}

// Get returns the value of key, or "" if it is unset everywhere.
func (e Env) Get(key string) string {
	v, _ := e.Lookup(key)
	return v
}

// Lookup returns the value of key and whether it was set.
func (e Env) Lookup(key string) (string, bool) {
	if v, ok := e.vars[key]; ok {
		return v, true
	}
	return os.LookupEnv(key)
}

// Index implements Indexer. Unset variables evaluate to null.
func (e Env) Index(key string) (any, error) {
	if v, ok := e.Lookup(key); ok {
		return v, nil
	}
	return nil, nil
}

// Environ returns the process environment overlaid with the configured
// values, in os/exec form.
func (e Env) Environ() []string {
	merged := map[string]string{}
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				merged[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	for k, v := range e.vars {
		merged[k] = v
	}
	result := make([]string, 0, len(merged))
	for k, v := range merged {
		result = append(result, k+"="+v)
	}
	return result
}
