// pkg/types/typecheck.go
package types

import (
	"fmt"

	"github.com/arc-language/mopack/pkg/expr"
)

// TypeCheck validates the fields of a configuration mapping one at a time,
// storing each result in its destination. Checking stops at the first error.
type TypeCheck struct {
	data    map[string]any
	symbols *expr.Symbols
	prefix  Field
	seen    map[string]bool
	err     error
}

// NewTypeCheck prepares to validate data. String values are evaluated as
// expressions against symbols unless symbols is nil. Errors are scoped
// under prefix.
func NewTypeCheck(data map[string]any, symbols *expr.Symbols, prefix ...any) *TypeCheck {
	if data == nil {
		data = map[string]any{}
	}
	return &TypeCheck{
		data:    data,
		symbols: symbols,
		prefix:  prefix,
		seen:    map[string]bool{},
	}
}

// Symbols returns the symbol table used for evaluation.
func (tc *TypeCheck) Symbols() *expr.Symbols { return tc.symbols }

// SetSymbols replaces the symbol table for subsequent checks.
func (tc *TypeCheck) SetSymbols(s *expr.Symbols) { tc.symbols = s }

// Has reports whether name was supplied.
func (tc *TypeCheck) Has(name string) bool {
	_, ok := tc.data[name]
	return ok
}

// Raw returns the unvalidated value of name (or Unset) and marks it used.
func (tc *TypeCheck) Raw(name string) any {
	tc.seen[name] = true
	if v, ok := tc.data[name]; ok {
		return v
	}
	return Unset
}

// Ignore marks names as handled without validating them.
func (tc *TypeCheck) Ignore(names ...string) {
	for _, n := range names {
		tc.seen[n] = true
	}
}

// Fail records err unless an earlier error was recorded.
func (tc *TypeCheck) Fail(err error) {
	if tc.err == nil && err != nil {
		tc.err = err
	}
}

// Field returns the full field path for name.
func (tc *TypeCheck) Field(name string) Field {
	return tc.prefix.Append(name)
}

// Err returns the first error recorded.
func (tc *TypeCheck) Err() error { return tc.err }

// Finish rejects any supplied field that was never checked and returns the
// first error recorded.
func (tc *TypeCheck) Finish() error {
	if tc.err != nil {
		return tc.err
	}
	for _, k := range sortedKeys(tc.data) {
		if !tc.seen[k] {
			return &FieldError{
				Field:  tc.Field(k),
				Msg:    fmt.Sprintf("unexpected field %q", k),
				Key:    true,
				Offset: -1,
			}
		}
	}
	return nil
}

// Check evaluates and validates name, storing the result in dst.
func Check[T any](tc *TypeCheck, name string, c Checker[T], dst *T) bool {
	return check(tc, name, c, dst, true)
}

// CheckRaw validates name without evaluating expressions.
func CheckRaw[T any](tc *TypeCheck, name string, c Checker[T], dst *T) bool {
	return check(tc, name, c, dst, false)
}

func check[T any](tc *TypeCheck, name string, c Checker[T], dst *T, evaluate bool) bool {
	if tc.err != nil {
		return false
	}
	field := tc.Field(name)
	value := tc.Raw(name)

	if evaluate && tc.symbols != nil {
		var err error
		if value, err = Evaluate(tc.symbols, field, value); err != nil {
			tc.err = err
			return false
		}
	}

	result, err := c(field, value)
	if err != nil {
		tc.err = err
		return false
	}
	*dst = result
	return true
}

// Evaluate expands expressions in every string within value.
func Evaluate(symbols *expr.Symbols, field Field, value any) (any, error) {
	switch v := value.(type) {
	case string:
		result, err := expr.Evaluate(symbols, v, false)
		if err != nil {
			return nil, WrapField(err, field...)
		}
		return result, nil
	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			r, err := Evaluate(symbols, field.Append(i), item)
			if err != nil {
				return nil, err
			}
			result[i] = r
		}
		return result, nil
	case map[string]any:
		result := make(map[string]any, len(v))
		for _, k := range sortedKeys(v) {
			r, err := Evaluate(symbols, field.Append(k), v[k])
			if err != nil {
				return nil, err
			}
			result[k] = r
		}
		return result, nil
	}
	return value, nil
}

// Evaluated wraps c so that string values are expanded against symbols first.
func Evaluated[T any](symbols *expr.Symbols, c Checker[T]) Checker[T] {
	return func(field Field, value any) (T, error) {
		v, err := Evaluate(symbols, field, value)
		if err != nil {
			var zero T
			return zero, err
		}
		return c(field, v)
	}
}

// EvaluateIf evaluates an if: condition. Booleans pass through unchanged.
func EvaluateIf(symbols *expr.Symbols, field Field, value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		result, err := expr.Evaluate(symbols, v, true)
		if err != nil {
			return false, WrapField(err, field...)
		}
		return expr.Truthy(result), nil
	case nil:
		return false, nil
	}
	return false, mismatch(field, "a boolean or expression")
}
