// pkg/freezedry/reader.go
package freezedry

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/arc-language/mopack/pkg/types"
)

// Reader reads fields out of dehydrated data. Each level of a type
// hierarchy reads its own fields from the same Reader. The first failure is
// kept and later reads return zero values.
type Reader struct {
	data map[string]any
	err  error
}

// NewReader wraps dehydrated data.
func NewReader(data map[string]any) *Reader {
	return &Reader{data: data}
}

// Data returns the underlying fields.
func (r *Reader) Data() map[string]any { return r.data }

// Err returns the first failure.
func (r *Reader) Err() error { return r.err }

// Fail records err unless an earlier failure was recorded.
func (r *Reader) Fail(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}

// Has reports whether key is present.
func (r *Reader) Has(key string) bool {
	_, ok := r.data[key]
	return ok
}

// Raw returns the value of key, or nil.
func (r *Reader) Raw(key string) any {
	return r.data[key]
}

func (r *Reader) required(key string) (any, bool) {
	v, ok := r.data[key]
	if !ok {
		r.Fail(types.NewFieldKeyError(fmt.Sprintf("missing field %q", key), key))
	}
	return v, ok
}

func (r *Reader) mismatch(key, desc string, v any) {
	r.Fail(types.NewFieldValueError(fmt.Sprintf("expected %s, got %T", desc, v), key))
}

// String reads a required string.
func (r *Reader) String(key string) string {
	v, ok := r.required(key)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.mismatch(key, "a string", v)
	}
	return s
}

// OptString reads a string that may be absent or null.
func (r *Reader) OptString(key string) string {
	switch v := r.data[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		r.mismatch(key, "a string", v)
		return ""
	}
}

// Bool reads a boolean, treating absent or null as false.
func (r *Reader) Bool(key string) bool {
	switch v := r.data[key].(type) {
	case nil:
		return false
	case bool:
		return v
	default:
		r.mismatch(key, "a boolean", v)
		return false
	}
}

// Strings reads a list of strings; absent or null yields nil.
func (r *Reader) Strings(key string) []string {
	var result []string
	r.Decode(key, &result)
	return result
}

// Map reads an object; absent or null yields nil.
func (r *Reader) Map(key string) map[string]any {
	switch v := r.data[key].(type) {
	case nil:
		return nil
	case map[string]any:
		return v
	default:
		r.mismatch(key, "an object", v)
		return nil
	}
}

// Decode decodes a composite plain value into dst. Absent or null leaves dst
// untouched.
func (r *Reader) Decode(key string, dst any) {
	v := r.data[key]
	if v == nil {
		return
	}
	if err := mapstructure.Decode(v, dst); err != nil {
		r.Fail(types.WrapField(err, key))
	}
}
