// pkg/types/errors.go
package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/arc-language/mopack/pkg/expr"
)

// ErrConfiguration is matched by every error caused by invalid user input.
var ErrConfiguration = errors.New("configuration error")

// Field is the path to a value within nested configuration data. Elements
// are map keys (string) or list indices (int).
type Field []any

// Append returns a new field with elements added to the end.
func (f Field) Append(elem ...any) Field {
	result := make(Field, 0, len(f)+len(elem))
	result = append(result, f...)
	return append(result, elem...)
}

func (f Field) String() string {
	var b strings.Builder
	for i, elem := range f {
		switch e := elem.(type) {
		case int:
			b.WriteString("[" + strconv.Itoa(e) + "]")
		default:
			if i > 0 {
				b.WriteByte('.')
			}
			fmt.Fprint(&b, e)
		}
	}
	return b.String()
}

// FieldError reports an invalid value (or key) at Field. Offset, when
// non-negative, is a byte offset into the string value that caused it.
type FieldError struct {
	Field  Field
	Msg    string
	Key    bool
	Offset int
}

// NewFieldValueError reports a problem with the value at field.
func NewFieldValueError(msg string, field ...any) *FieldError {
	return &FieldError{Field: field, Msg: msg, Offset: -1}
}

// NewFieldKeyError reports a problem with the key at field.
func NewFieldKeyError(msg string, field ...any) *FieldError {
	return &FieldError{Field: field, Msg: msg, Key: true, Offset: -1}
}

func (e *FieldError) Error() string {
	if len(e.Field) == 0 {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// Is matches ErrConfiguration.
func (e *FieldError) Is(target error) bool {
	return target == ErrConfiguration
}

// WrapField scopes err to field. Field errors gain the prefix, expression
// errors keep their offset, and anything else becomes a value error.
func WrapField(err error, field ...any) error {
	if err == nil {
		return nil
	}

	var fe *FieldError
	if errors.As(err, &fe) {
		wrapped := *fe
		wrapped.Field = Field(field).Append(fe.Field...)
		return &wrapped
	}

	var ee *expr.Error
	if errors.As(err, &ee) {
		return &FieldError{Field: field, Msg: ee.Msg, Offset: ee.Offset}
	}

	return &FieldError{Field: field, Msg: err.Error(), Offset: -1}
}

// IsConfigurationError reports whether err was caused by invalid user input.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
