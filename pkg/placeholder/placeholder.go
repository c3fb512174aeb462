// pkg/placeholder/placeholder.go
package placeholder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arc-language/mopack/pkg/path"
)

const (
	stashStart = '\x11'
	stashEnd   = '\x13'
)

// Value is a deferred value embedded in a String. V must be comparable.
type Value struct {
	V any
}

// String is a sequence of literal text and unresolved values.
type String struct {
	bits []any
}

// New builds a String from strings, Values and other Strings. Any other
// argument is wrapped in a Value. Adjacent literals are coalesced.
func New(parts ...any) String {
	var s String
	for _, part := range parts {
		switch p := part.(type) {
		case string:
			s.appendLiteral(p)
		case String:
			for _, bit := range p.bits {
				s.appendBit(bit)
			}
		case *String:
			for _, bit := range p.bits {
				s.appendBit(bit)
			}
		case Value:
			s.bits = append(s.bits, p)
		default:
			s.bits = append(s.bits, Value{V: p})
		}
	}
	return s
}

// Of wraps a single value as a placeholder string.
func Of(v any) String {
	return String{bits: []any{Value{V: v}}}
}

func (s *String) appendBit(bit any) {
	if lit, ok := bit.(string); ok {
		s.appendLiteral(lit)
		return
	}
	s.bits = append(s.bits, bit)
}

func (s *String) appendLiteral(lit string) {
	if lit == "" {
		return
	}
	if n := len(s.bits); n > 0 {
		if prev, ok := s.bits[n-1].(string); ok {
			s.bits[n-1] = prev + lit
			return
		}
	}
	s.bits = append(s.bits, lit)
}

// Bits returns the literal strings and Values making up s.
func (s String) Bits() []any {
	return append([]any(nil), s.bits...)
}

// Empty reports whether s has no bits.
func (s String) Empty() bool { return len(s.bits) == 0 }

// HasPlaceholders reports whether s contains any Value.
func (s String) HasPlaceholders() bool {
	for _, bit := range s.bits {
		if _, ok := bit.(Value); ok {
			return true
		}
	}
	return false
}

// Concat appends a string, Value or String.
func (s String) Concat(rhs any) String {
	return New(s, rhs)
}

// Unbox returns the bits with Values unwrapped. With simplify, an empty
// String becomes "", and a single bit is returned on its own.
func (s String) Unbox(simplify bool) any {
	unboxed := make([]any, len(s.bits))
	for i, bit := range s.bits {
		if v, ok := bit.(Value); ok {
			unboxed[i] = v.V
		} else {
			unboxed[i] = bit
		}
	}
	if simplify {
		switch len(unboxed) {
		case 0:
			return ""
		case 1:
			return unboxed[0]
		}
	}
	return unboxed
}

// Simplify returns a plain string when s has no placeholders, otherwise s.
func (s String) Simplify() any {
	if s.HasPlaceholders() {
		return s
	}
	if len(s.bits) == 0 {
		return ""
	}
	return s.bits[0].(string)
}

// Replace substitutes every placeholder whose value equals v.
func (s String) Replace(v any, with any) String {
	parts := make([]any, len(s.bits))
	for i, bit := range s.bits {
		if pv, ok := bit.(Value); ok && pv.V == v {
			parts[i] = with
		} else {
			parts[i] = bit
		}
	}
	return New(parts...)
}

// Fill resolves every placeholder into text.
func (s String) Fill(fill func(v any) (string, error)) (string, error) {
	var b strings.Builder
	for _, bit := range s.bits {
		switch x := bit.(type) {
		case string:
			b.WriteString(x)
		case Value:
			str, err := fill(x.V)
			if err != nil {
				return "", err
			}
			b.WriteString(str)
		}
	}
	return b.String(), nil
}

// FillPaths resolves placeholders holding a path.Path against bases.
func (s String) FillPaths(bases map[string]string) (string, error) {
	return s.Fill(func(v any) (string, error) {
		if p, ok := v.(path.Path); ok {
			return p.String(bases)
		}
		return "", fmt.Errorf("unable to fill placeholder %v", v)
	})
}

// Equal reports whether both strings have the same bits.
func (s String) Equal(o String) bool {
	if len(s.bits) != len(o.bits) {
		return false
	}
	for i := range s.bits {
		if s.bits[i] != o.bits[i] {
			return false
		}
	}
	return true
}

// Stash flattens s into a single string, replacing each placeholder with a
// marker. Unstash with the returned values reverses this.
func (s String) Stash() (string, []Value) {
	var b strings.Builder
	var values []Value
	for _, bit := range s.bits {
		switch x := bit.(type) {
		case string:
			b.WriteString(strings.ReplaceAll(x, string(stashStart), string([]rune{stashStart, stashEnd})))
		case Value:
			b.WriteRune(stashStart)
			b.WriteString(strconv.Itoa(len(values)))
			b.WriteRune(stashEnd)
			values = append(values, x)
		}
	}
	return b.String(), values
}

// Unstash rebuilds a String from a stashed string and its values.
func Unstash(stashed string, values []Value) (String, error) {
	var parts []any
	var lit strings.Builder
	for i := 0; i < len(stashed); i++ {
		c := stashed[i]
		if c != stashStart {
			lit.WriteByte(c)
			continue
		}
		end := strings.IndexByte(stashed[i+1:], stashEnd)
		if end < 0 {
			return String{}, fmt.Errorf("unterminated placeholder marker")
		}
		index := stashed[i+1 : i+1+end]
		i += end + 1
		if index == "" {
			lit.WriteByte(stashStart)
			continue
		}
		n, err := strconv.Atoi(index)
		if err != nil || n < 0 || n >= len(values) {
			return String{}, fmt.Errorf("invalid placeholder marker %q", index)
		}
		parts = append(parts, lit.String(), values[n])
		lit.Reset()
	}
	parts = append(parts, lit.String())
	return New(parts...), nil
}

// Dehydrate returns the persisted form of s. Only path placeholders persist.
func (s String) Dehydrate() ([]any, error) {
	result := make([]any, 0, len(s.bits))
	for _, bit := range s.bits {
		switch x := bit.(type) {
		case string:
			result = append(result, x)
		case Value:
			p, ok := x.V.(path.Path)
			if !ok {
				return nil, fmt.Errorf("unable to persist placeholder %v", x.V)
			}
			result = append(result, map[string]any{"placeholder": p.Dehydrate()})
		}
	}
	return result, nil
}

// Rehydrate restores a String from its persisted form.
func Rehydrate(data any) (String, error) {
	switch d := data.(type) {
	case string:
		return New(d), nil
	case []any:
		parts := make([]any, 0, len(d))
		for _, bit := range d {
			switch x := bit.(type) {
			case string:
				parts = append(parts, x)
			case map[string]any:
				p, err := path.Rehydrate(x["placeholder"])
				if err != nil {
					return String{}, err
				}
				parts = append(parts, Value{V: p})
			default:
				return String{}, fmt.Errorf("unexpected placeholder bit %T", bit)
			}
		}
		return New(parts...), nil
	}
	return String{}, fmt.Errorf("expected a placeholder string, got %T", data)
}

func (s String) String() string {
	var b strings.Builder
	for _, bit := range s.bits {
		switch x := bit.(type) {
		case string:
			b.WriteString(x)
		case Value:
			fmt.Fprintf(&b, "${%v}", x.V)
		}
	}
	return b.String()
}
