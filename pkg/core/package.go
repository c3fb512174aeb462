// pkg/core/package.go
package core

import (
	"fmt"
	"slices"
	"strings"

	"github.com/arc-language/mopack/pkg/types"
)

// Submodules describes the named sub-components a package offers
type Submodules struct {
	Names    []string // nil with Any set means every name is accepted
	Any      bool
	Required bool
}

// Accepts reports whether a submodule name may be requested
func (s *Submodules) Accepts(name string) bool {
	return s.Any || slices.Contains(s.Names, name)
}

// Check validates the submodules requested from package name against subs
// and returns them in a canonical form.
func Check(name string, subs *Submodules, wanted []string) ([]string, error) {
	if subs == nil {
		if len(wanted) > 0 {
			return nil, fmt.Errorf("package %q has no submodules", name)
		}
		return nil, nil
	}

	if subs.Required && len(wanted) == 0 {
		return nil, fmt.Errorf("package %q requires submodules", name)
	}
	for _, w := range wanted {
		if !subs.Accepts(w) {
			return nil, fmt.Errorf("unrecognized submodule %q for package %q", w, name)
		}
	}
	return wanted, nil
}

var submoduleNames = types.OneOf("a list of submodules",
	func(field types.Field, value any) (submoduleList, error) {
		s, err := types.Constant("*")(field, value)
		return submoduleList{any: s == "*"}, err
	},
	func(field types.Field, value any) (submoduleList, error) {
		names, err := types.ListOf(types.String, true)(field, value)
		return submoduleList{names: names}, err
	},
)

type submoduleList struct {
	names []string
	any   bool
}

var submoduleDict = types.DictShape("a list of submodules", map[string]types.Checker[any]{
	"names":    types.Erase(submoduleNames),
	"required": types.Erase(types.Boolean),
})

// SubmodulesChecker validates a `submodules` field. A bare list or "*" means
// the submodules are required; a dictionary spells out names and required.
// An empty dictionary, like null, means the package has no submodules.
func SubmodulesChecker(field types.Field, value any) (*Submodules, error) {
	if value == nil || value == types.Unset {
		return nil, nil
	}

	m, ok := value.(map[string]any)
	if !ok {
		m = map[string]any{"names": value, "required": true}
	} else if len(m) == 0 {
		return nil, nil
	}
	shape, err := submoduleDict(field, m)
	if err != nil {
		return nil, err
	}

	list := shape["names"].(submoduleList)
	return &Submodules{
		Names:    list.names,
		Any:      list.any,
		Required: shape["required"].(bool),
	}, nil
}

// Dehydrate returns the persisted form of s.
func (s *Submodules) Dehydrate() any {
	if s == nil {
		return nil
	}
	var names any = "*"
	if !s.Any {
		list := make([]any, len(s.Names))
		for i, n := range s.Names {
			list[i] = n
		}
		names = list
	}
	return map[string]any{"names": names, "required": s.Required}
}

// RehydrateSubmodules restores submodules from their persisted form.
func RehydrateSubmodules(data any) (*Submodules, error) {
	return SubmodulesChecker(types.Field{"submodules"}, data)
}

// DependencyString formats a package name with requested submodules, e.g.
// "boost[regex,thread]".
func DependencyString(name string, submodules []string) string {
	if len(submodules) == 0 {
		return name
	}
	return name + "[" + strings.Join(submodules, ",") + "]"
}

// ParseDependency splits a dependency string into a package name and its
// requested submodules.
func ParseDependency(s string) (string, []string, error) {
	open := strings.IndexByte(s, '[')
	if open < 0 {
		if s == "" || strings.ContainsAny(s, "],") {
			return "", nil, fmt.Errorf("invalid dependency %q", s)
		}
		return s, nil, nil
	}
	if open == 0 || !strings.HasSuffix(s, "]") {
		return "", nil, fmt.Errorf("invalid dependency %q", s)
	}

	name := s[:open]
	inner := s[open+1 : len(s)-1]
	if inner == "" {
		return "", nil, fmt.Errorf("invalid dependency %q", s)
	}
	subs := strings.Split(inner, ",")
	for _, sub := range subs {
		if sub == "" || strings.ContainsAny(sub, "[]") {
			return "", nil, fmt.Errorf("invalid dependency %q", s)
		}
	}
	return name, subs, nil
}

// DependencyChecker validates one entry of a `dependencies` list.
func DependencyChecker(field types.Field, value any) (string, error) {
	s, err := types.String(field, value)
	if err != nil {
		return "", err
	}
	if _, _, err := ParseDependency(s); err != nil {
		return "", types.NewFieldValueError(err.Error(), field...)
	}
	return s, nil
}
