// pkg/linkages/submodules.go
package linkages

import (
	"fmt"

	"github.com/arc-language/mopack/pkg/expr"
	"github.com/arc-language/mopack/pkg/placeholder"
	"github.com/arc-language/mopack/pkg/types"
)

// SubmoduleMarker stands in for the submodule name while a submodule map
// is validated.
type SubmoduleMarker struct{}

func (SubmoduleMarker) String() string { return "submodule" }

func anyValue(_ types.Field, value any) (any, error) { return value, nil }

// checkSubmoduleMap validates a `submodule_map` field and returns it
// unevaluated. The map is either a template (with $submodule) or a mapping
// of submodule name (or "*") to per-submodule fields.
func checkSubmoduleMap(tc *types.TypeCheck, symbols *expr.Symbols, keys ...string) (any, error) {
	field := tc.Field("submodule_map")
	raw := tc.Raw("submodule_map")
	if raw == nil || raw == types.Unset {
		return nil, nil
	}

	marked := symbols.Augment(map[string]any{"submodule": placeholder.Of(SubmoduleMarker{})})
	value, err := types.Evaluate(marked, field, raw)
	if err != nil {
		return nil, err
	}

	switch value.(type) {
	case string, placeholder.String:
		return raw, nil
	}

	shape := make(map[string]types.Checker[any], len(keys))
	for _, k := range keys {
		shape[k] = anyValue
	}
	if _, err := types.DictOf(types.DictShape("a submodule map", shape))(field, value); err != nil {
		return nil, err
	}
	return raw, nil
}

// submoduleEntry evaluates a submodule map for one submodule. A template
// yields a string; a mapping yields that submodule's fields (or the "*"
// fields). ok is false when the map has nothing for the submodule.
func submoduleEntry(raw any, symbols *expr.Symbols, submodule string) (string, map[string]any, bool, error) {
	if raw == nil {
		return "", nil, false, nil
	}

	field := types.Field{"submodule_map"}
	symbols = symbols.Augment(map[string]any{"submodule": submodule})
	value, err := types.Evaluate(symbols, field, raw)
	if err != nil {
		return "", nil, false, err
	}

	switch v := value.(type) {
	case string:
		return v, nil, true, nil
	case map[string]any:
		entry, ok := v[submodule]
		if !ok {
			entry, ok = v["*"]
		}
		if !ok || entry == nil {
			return "", nil, false, nil
		}
		m, ok := entry.(map[string]any)
		if !ok {
			return "", nil, false, types.NewFieldValueError("expected a dictionary", "submodule_map", submodule)
		}
		return "", m, true, nil
	}
	return "", nil, false, fmt.Errorf("unexpected submodule map value %T", value)
}
