// pkg/freezedry/freezedry.go
package freezedry

import (
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/arc-language/mopack/pkg/types"
)

// VersionKey holds the persisted version of a versioned type.
const VersionKey = "_version"

// Dehydrater is implemented by values that can flatten themselves into
// plain data (strings, numbers, bools, nil, []any and map[string]any).
type Dehydrater interface {
	Dehydrate() (map[string]any, error)
}

// VersionError is returned when persisted data is newer than this code.
type VersionError struct {
	Kind     string
	Saved    int
	Expected int
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("saved %s version %d exceeds expected version %d", e.Kind, e.Saved, e.Expected)
}

// Is matches types.ErrConfiguration.
func (e *VersionError) Is(target error) bool {
	return target == types.ErrConfiguration
}

// Versioned describes the current persisted version of a type and how to
// upgrade older data to it.
type Versioned struct {
	Version int
	Upgrade func(data map[string]any, version int) (map[string]any, error)
}

// Stamp records the current version in data.
func (v Versioned) Stamp(data map[string]any) map[string]any {
	if v.Version > 0 {
		data[VersionKey] = v.Version
	}
	return data
}

// Check strips the version from data, upgrading it first when older than
// the current version. Upgrade is called at most once per call.
func (v Versioned) Check(kind string, data map[string]any) (map[string]any, error) {
	saved, err := SavedVersion(data)
	if err != nil {
		return nil, err
	}
	data = maps.Clone(data)
	delete(data, VersionKey)

	switch {
	case saved > v.Version:
		return nil, &VersionError{Kind: kind, Saved: saved, Expected: v.Version}
	case saved < v.Version && v.Upgrade != nil:
		return v.Upgrade(data, saved)
	}
	return data, nil
}

// SavedVersion returns the persisted version in data, or 0 if absent.
func SavedVersion(data map[string]any) (int, error) {
	switch n := data[VersionKey].(type) {
	case nil:
		return 0, nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	}
	return 0, fmt.Errorf("invalid %s %v", VersionKey, data[VersionKey])
}

// RehydrateFunc builds a value of a concrete subtype from its fields.
type RehydrateFunc[T, C any] func(data map[string]any, ctx C) (T, error)

type registryEntry[T, C any] struct {
	versioned Versioned
	rehydrate RehydrateFunc[T, C]
}

// Registry dispatches rehydration of a polymorphic hierarchy on a tag field.
// C carries whatever context the subtypes need (options, owning package).
type Registry[T, C any] struct {
	kind     string
	tagField string
	entries  map[string]registryEntry[T, C]
}

// NewRegistry creates a registry whose tag is stored under tagField.
func NewRegistry[T, C any](kind, tagField string) *Registry[T, C] {
	return &Registry[T, C]{
		kind:     kind,
		tagField: tagField,
		entries:  map[string]registryEntry[T, C]{},
	}
}

// Register adds a subtype. Registering the same tag twice panics.
func (r *Registry[T, C]) Register(tag string, v Versioned, fn RehydrateFunc[T, C]) {
	if _, ok := r.entries[tag]; ok {
		panic(fmt.Sprintf("freezedry: %s %q registered twice", r.kind, tag))
	}
	r.entries[tag] = registryEntry[T, C]{versioned: v, rehydrate: fn}
}

// Has reports whether tag is registered.
func (r *Registry[T, C]) Has(tag string) bool {
	_, ok := r.entries[tag]
	return ok
}

// Versioned returns the version information for tag.
func (r *Registry[T, C]) Versioned(tag string) Versioned {
	return r.entries[tag].versioned
}

// Tags returns the registered tags in sorted order.
func (r *Registry[T, C]) Tags() []string {
	tags := make([]string, 0, len(r.entries))
	for t := range r.entries {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// TagField returns the name of the field holding the tag.
func (r *Registry[T, C]) TagField() string { return r.tagField }

// UnknownTag returns the error reported for an unregistered tag.
func (r *Registry[T, C]) UnknownTag(tag string, field ...any) error {
	return types.NewFieldValueError(fmt.Sprintf("unknown %s %q", r.kind, tag), field...)
}

// Rehydrate restores a value from data, dispatching on its tag.
func (r *Registry[T, C]) Rehydrate(data any, ctx C) (T, error) {
	var zero T
	m, ok := data.(map[string]any)
	if !ok {
		return zero, fmt.Errorf("rehydrating %s: expected an object, got %T", r.kind, data)
	}
	tag, ok := m[r.tagField].(string)
	if !ok {
		return zero, types.NewFieldKeyError(fmt.Sprintf("missing %s", r.tagField), r.tagField)
	}
	entry, ok := r.entries[tag]
	if !ok {
		return zero, r.UnknownTag(tag, r.tagField)
	}

	fields, err := entry.versioned.Check(r.kind+" "+tag, m)
	if err != nil {
		return zero, err
	}
	delete(fields, r.tagField)
	return entry.rehydrate(fields, ctx)
}

// Dehydrate flattens d and stamps it with tag and version.
func (r *Registry[T, C]) Dehydrate(tag string, d Dehydrater) (map[string]any, error) {
	data, err := d.Dehydrate()
	if err != nil {
		return nil, err
	}
	data[r.tagField] = tag
	return r.entries[tag].versioned.Stamp(data), nil
}

// DictToList flattens an ordered mapping into a list, in keys order.
func DictToList[T any](keys []string, items map[string]T, dehydrate func(T) (map[string]any, error)) ([]any, error) {
	result := make([]any, 0, len(keys))
	for _, k := range keys {
		d, err := dehydrate(items[k])
		if err != nil {
			return nil, fmt.Errorf("dehydrating %s: %w", k, err)
		}
		result = append(result, d)
	}
	return result, nil
}

// ListToDict restores an ordered mapping from a list, keying each item by
// the string stored under keyField.
func ListToDict[T any](data any, keyField string, rehydrate func(map[string]any) (T, error)) ([]string, map[string]T, error) {
	if data == nil {
		return nil, map[string]T{}, nil
	}
	list, ok := data.([]any)
	if !ok {
		return nil, nil, fmt.Errorf("expected a list, got %T", data)
	}

	keys := make([]string, 0, len(list))
	items := make(map[string]T, len(list))
	for i, raw := range list {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, nil, fmt.Errorf("item %d: expected an object, got %T", i, raw)
		}
		key, ok := m[keyField].(string)
		if !ok {
			return nil, nil, fmt.Errorf("item %d: missing %s", i, keyField)
		}
		v, err := rehydrate(m)
		if err != nil {
			return nil, nil, fmt.Errorf("rehydrating %s: %w", key, err)
		}
		if _, dup := items[key]; !dup {
			keys = append(keys, key)
		}
		items[key] = v
	}
	return keys, items, nil
}

type equalConfig struct {
	skip     map[string]bool
	optional map[string]bool
}

// EqualOption adjusts how Equal compares two values.
type EqualOption func(*equalConfig)

// Skip ignores the named fields entirely.
func Skip(fields ...string) EqualOption {
	return func(c *equalConfig) {
		for _, f := range fields {
			c.skip[f] = true
		}
	}
}

// Optional ignores the named fields when either side lacks them or holds null.
func Optional(fields ...string) EqualOption {
	return func(c *equalConfig) {
		for _, f := range fields {
			c.optional[f] = true
		}
	}
}

// Equal compares the dehydrated forms of a and b.
func Equal(a, b Dehydrater, opts ...EqualOption) bool {
	da, err := a.Dehydrate()
	if err != nil {
		return false
	}
	db, err := b.Dehydrate()
	if err != nil {
		return false
	}
	return EqualData(da, db, opts...)
}

// EqualData compares two dehydrated values. Keys starting with an underscore
// are bookkeeping and never compared.
func EqualData(a, b map[string]any, opts ...EqualOption) bool {
	cfg := equalConfig{skip: map[string]bool{}, optional: map[string]bool{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	prune := func(m map[string]any, other map[string]any) map[string]any {
		result := map[string]any{}
		for k, v := range m {
			if cfg.skip[k] || strings.HasPrefix(k, "_") {
				continue
			}
			if cfg.optional[k] && (v == nil || other[k] == nil) {
				continue
			}
			result[k] = v
		}
		return result
	}

	na, errA := Normalize(prune(a, b))
	nb, errB := Normalize(prune(b, a))
	if errA != nil || errB != nil {
		return false
	}
	return cmp.Equal(na, nb)
}

// Normalize round-trips v through JSON so that equivalent plain data
// compares equal regardless of the concrete slice or number types used.
func Normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}
