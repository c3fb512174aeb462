// pkg/types/checkers.go
package types

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"github.com/arc-language/mopack/pkg/path"
	"github.com/arc-language/mopack/pkg/placeholder"
	"github.com/arc-language/mopack/pkg/shell"
)

type unset struct{}

func (unset) String() string { return "<unset>" }

// Unset is the value checkers receive for a field that was not supplied.
var Unset any = unset{}

// Checker validates a raw value at field and converts it to T.
type Checker[T any] func(field Field, value any) (T, error)

var sshPath = regexp.MustCompile(`^[\w.-]+@[\w.-]+:.*$`)

func missing(field Field) error {
	return &FieldError{Field: field, Msg: "field is required", Key: true, Offset: -1}
}

func mismatch(field Field, desc string) error {
	return &FieldError{Field: field, Msg: "expected " + desc, Offset: -1}
}

// String accepts a string.
func String(field Field, value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case unset:
		return "", missing(field)
	}
	return "", mismatch(field, "a string")
}

// Boolean accepts a bool.
func Boolean(field Field, value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case unset:
		return false, missing(field)
	}
	return false, mismatch(field, "a boolean")
}

// Constant accepts one of a fixed set of strings.
func Constant(values ...string) Checker[string] {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	desc := "one of " + strings.Join(quoted, ", ")

	return func(field Field, value any) (string, error) {
		if _, ok := value.(unset); ok {
			return "", missing(field)
		}
		if s, ok := value.(string); ok {
			for _, v := range values {
				if s == v {
					return s, nil
				}
			}
		}
		return "", mismatch(field, desc)
	}
}

// Maybe returns def when the value is null or unset.
func Maybe[T any](c Checker[T], def T) Checker[T] {
	return func(field Field, value any) (T, error) {
		if value == nil || value == Unset {
			return def, nil
		}
		return c(field, value)
	}
}

// Default returns def when the value is unset. Null is passed through.
func Default[T any](c Checker[T], def T) Checker[T] {
	return func(field Field, value any) (T, error) {
		if value == Unset {
			return def, nil
		}
		return c(field, value)
	}
}

// OneOf returns the result of the first checker that accepts the value.
func OneOf[T any](desc string, checkers ...Checker[T]) Checker[T] {
	return func(field Field, value any) (T, error) {
		for _, c := range checkers {
			if result, err := c(field, value); err == nil {
				return result, nil
			}
		}
		var zero T
		if value == Unset {
			return zero, missing(field)
		}
		return zero, mismatch(field, desc)
	}
}

// Erase adapts a typed checker for use inside DictShape.
func Erase[T any](c Checker[T]) Checker[any] {
	return func(field Field, value any) (any, error) {
		return c(field, value)
	}
}

// ListOf accepts a list whose items satisfy c. With listify, null becomes an
// empty list and a scalar becomes a single-item list.
func ListOf[T any](c Checker[T], listify bool) Checker[[]T] {
	return func(field Field, value any) ([]T, error) {
		items, ok := value.([]any)
		if !ok {
			switch {
			case value == Unset:
				return nil, missing(field)
			case listify && value == nil:
				return []T{}, nil
			case listify:
				items = []any{value}
			default:
				return nil, mismatch(field, "a list")
			}
		}

		result := make([]T, 0, len(items))
		for i, item := range items {
			v, err := c(field.Append(i), item)
			if err != nil {
				return nil, err
			}
			result = append(result, v)
		}
		return result, nil
	}
}

// DictOf accepts a map whose values satisfy c.
func DictOf[T any](c Checker[T]) Checker[map[string]T] {
	return func(field Field, value any) (map[string]T, error) {
		m, ok := value.(map[string]any)
		if !ok {
			if value == Unset {
				return nil, missing(field)
			}
			return nil, mismatch(field, "a dictionary")
		}
		result := make(map[string]T, len(m))
		for _, k := range sortedKeys(m) {
			v, err := c(field.Append(k), m[k])
			if err != nil {
				return nil, err
			}
			result[k] = v
		}
		return result, nil
	}
}

// DictShape accepts a map with exactly the listed keys. Absent keys are
// passed to their checker as Unset.
func DictShape(desc string, shape map[string]Checker[any]) Checker[map[string]any] {
	return func(field Field, value any) (map[string]any, error) {
		m, ok := value.(map[string]any)
		if !ok {
			if value == Unset {
				return nil, missing(field)
			}
			return nil, mismatch(field, desc)
		}
		for _, k := range sortedKeys(m) {
			if _, ok := shape[k]; !ok {
				return nil, &FieldError{
					Field:  field.Append(k),
					Msg:    fmt.Sprintf("unexpected key %q in %s", k, desc),
					Key:    true,
					Offset: -1,
				}
			}
		}

		result := make(map[string]any, len(shape))
		for _, k := range sortedKeys(shape) {
			raw, ok := m[k]
			if !ok {
				raw = Unset
			}
			v, err := shape[k](field.Append(k), raw)
			if err != nil {
				return nil, err
			}
			result[k] = v
		}
		return result, nil
	}
}

// InnerPath accepts a relative path that does not escape its base.
func InnerPath(field Field, value any) (string, error) {
	s, err := String(field, value)
	if err != nil {
		return "", err
	}
	p, err := path.New(path.SrcDir, s)
	if err != nil || !p.IsInner() {
		return "", mismatch(field, "an inner path")
	}
	return p.Path(), nil
}

// AnyPath accepts an absolute path, a path relative to base, or a path
// rooted at a path-base placeholder such as "$srcdir/include".
func AnyPath(base string) Checker[path.Path] {
	return func(field Field, value any) (path.Path, error) {
		return toPath(field, value, base)
	}
}

// AbsOrInnerPath is like AnyPath but rejects relative paths escaping their base.
func AbsOrInnerPath(base string) Checker[path.Path] {
	return func(field Field, value any) (path.Path, error) {
		p, err := toPath(field, value, base)
		if err != nil {
			return path.Path{}, err
		}
		if !p.IsAbs() && !p.IsInner() {
			return path.Path{}, mismatch(field, "an absolute or inner path")
		}
		return p, nil
	}
}

func toPath(field Field, value any, base string) (path.Path, error) {
	switch v := value.(type) {
	case unset:
		return path.Path{}, missing(field)
	case path.Path:
		return v, nil
	case string:
		p, err := path.Parse(base, v)
		if err != nil {
			return path.Path{}, WrapField(err, field...)
		}
		return p, nil
	case placeholder.String:
		bits := v.Bits()
		if len(bits) == 0 {
			break
		}
		head, ok := bits[0].(placeholder.Value)
		if !ok {
			break
		}
		root, ok := head.V.(path.Path)
		if !ok {
			break
		}
		var rest strings.Builder
		for _, bit := range bits[1:] {
			lit, ok := bit.(string)
			if !ok {
				return path.Path{}, mismatch(field, "a path with a single base")
			}
			rest.WriteString(lit)
		}
		tail := strings.TrimLeft(rest.String(), `/\`)
		if tail == "" {
			return root, nil
		}
		return root.Join(filepath.FromSlash(tail)), nil
	}
	return path.Path{}, mismatch(field, "a path")
}

// URL accepts an absolute URL.
func URL(field Field, value any) (string, error) {
	s, err := String(field, value)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || (u.Host == "" && u.Scheme != "file") {
		return "", mismatch(field, "a URL")
	}
	return s, nil
}

// SSHPath accepts a user@host:path repository location.
func SSHPath(field Field, value any) (string, error) {
	s, err := String(field, value)
	if err != nil {
		return "", err
	}
	if !sshPath.MatchString(s) {
		return "", mismatch(field, "an ssh path")
	}
	return s, nil
}

// ShellArgs accepts a shell-syntax string (split into words) or a list of
// strings (one word each). With noneOK, null yields empty arguments.
func ShellArgs(noneOK bool) Checker[shell.Arguments] {
	windows := runtime.GOOS == "windows"
	return func(field Field, value any) (shell.Arguments, error) {
		switch v := value.(type) {
		case nil:
			if noneOK {
				return shell.Arguments{}, nil
			}
		case unset:
			if noneOK {
				return shell.Arguments{}, nil
			}
			return nil, missing(field)
		case string, placeholder.String:
			args, err := shell.Split(v, windows)
			if err != nil {
				return nil, WrapField(err, field...)
			}
			return args, nil
		case []any:
			args := make(shell.Arguments, 0, len(v))
			for i, item := range v {
				switch x := item.(type) {
				case string:
					args = append(args, placeholder.New(x))
				case placeholder.String:
					args = append(args, x)
				default:
					return nil, mismatch(field.Append(i), "a string")
				}
			}
			return args, nil
		}
		return nil, mismatch(field, "shell arguments")
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
