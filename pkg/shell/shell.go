// pkg/shell/shell.go
package shell

import (
	"fmt"
	"runtime"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/arc-language/mopack/pkg/placeholder"
)

// SplitPOSIX splits s into words using POSIX shell quoting. Backslash
// escapes are honoured only when escapes is set, so Windows-style paths
// survive unchanged by default.
func SplitPOSIX(s string, escapes bool) ([]string, error) {
	var words []string
	var word strings.Builder
	inWord := false
	var quote byte

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote == '\'':
			if c == '\'' {
				quote = 0
			} else {
				word.WriteByte(c)
			}
		case quote == '"':
			switch {
			case c == '"':
				quote = 0
			case escapes && c == '\\' && i+1 < len(s) && strings.IndexByte("\\\"$`\n", s[i+1]) >= 0:
				i++
				word.WriteByte(s[i])
			default:
				word.WriteByte(c)
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			if inWord {
				words = append(words, word.String())
				word.Reset()
				inWord = false
			}
		case c == '\'' || c == '"':
			quote = c
			inWord = true
		case escapes && c == '\\':
			if i+1 >= len(s) {
				return nil, fmt.Errorf("no escaped character")
			}
			i++
			word.WriteByte(s[i])
			inWord = true
		default:
			word.WriteByte(c)
			inWord = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("no closing quotation")
	}
	if inWord {
		words = append(words, word.String())
	}
	return words, nil
}

// SplitWindows splits s into words using the Microsoft C runtime rules.
func SplitWindows(s string) []string {
	var words []string
	inWord, quoted := false, false
	var word strings.Builder
	backslashes := 0

	flushBackslashes := func(n int) {
		for ; n > 0; n-- {
			word.WriteByte('\\')
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\':
			backslashes++
			continue
		case c == '"':
			flushBackslashes(backslashes / 2)
			if backslashes%2 == 1 {
				word.WriteByte('"')
			} else {
				quoted = !quoted
			}
			inWord = true
		case (c == ' ' || c == '\t') && !quoted:
			if backslashes > 0 {
				flushBackslashes(backslashes)
				inWord = true
			}
			if inWord {
				words = append(words, word.String())
				word.Reset()
				inWord = false
			}
		default:
			flushBackslashes(backslashes)
			word.WriteByte(c)
			inWord = true
		}
		backslashes = 0
	}

	if backslashes > 0 {
		flushBackslashes(backslashes)
		inWord = true
	}
	if inWord {
		words = append(words, word.String())
	}
	return words
}

// SplitNative splits s using the rules of the host platform.
func SplitNative(s string) ([]string, error) {
	if runtime.GOOS == "windows" {
		return SplitWindows(s), nil
	}
	return SplitPOSIX(s, false)
}

// Quote quotes s for display in a POSIX shell.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	quoted, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return quoted
}

// Join quotes and joins args into a single command line for display.
func Join(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = Quote(arg)
	}
	return strings.Join(quoted, " ")
}

// Command returns the command named by an environment variable, split into
// words, or the default if the variable is unset.
func Command(lookup func(string) (string, bool), variable, fallback string) ([]string, error) {
	if v, ok := lookup(variable); ok && v != "" {
		return SplitNative(v)
	}
	return []string{fallback}, nil
}

// Arguments is a list of shell words, each of which may contain placeholders.
type Arguments []placeholder.String

// Literal makes Arguments from plain strings.
func Literal(args ...string) Arguments {
	result := make(Arguments, len(args))
	for i, a := range args {
		result[i] = placeholder.New(a)
	}
	return result
}

// Split splits a string or placeholder.String into Arguments. Placeholders
// are stashed before tokenizing so they never split or swallow quotes.
func Split(value any, windows bool) (Arguments, error) {
	var s placeholder.String
	switch v := value.(type) {
	case string:
		s = placeholder.New(v)
	case placeholder.String:
		s = v
	default:
		return nil, fmt.Errorf("expected a string, got %T", value)
	}

	stashed, values := s.Stash()
	var words []string
	if windows {
		words = SplitWindows(stashed)
	} else {
		var err error
		if words, err = SplitPOSIX(stashed, false); err != nil {
			return nil, err
		}
	}

	result := make(Arguments, 0, len(words))
	for _, w := range words {
		arg, err := placeholder.Unstash(w, values)
		if err != nil {
			return nil, err
		}
		result = append(result, arg)
	}
	return result, nil
}

// Fill resolves every placeholder and returns plain arguments.
func (a Arguments) Fill(fill func(v any) (string, error)) ([]string, error) {
	result := make([]string, 0, len(a))
	for _, arg := range a {
		s, err := arg.Fill(fill)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, nil
}

// Values resolves path placeholders against concrete base directories.
func (a Arguments) Values(bases map[string]string) ([]string, error) {
	result := make([]string, 0, len(a))
	for _, arg := range a {
		s, err := arg.FillPaths(bases)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, nil
}

// Equal reports whether both lists hold the same words.
func (a Arguments) Equal(b Arguments) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Dehydrate returns the persisted form of a.
func (a Arguments) Dehydrate() ([]any, error) {
	result := make([]any, 0, len(a))
	for _, arg := range a {
		d, err := arg.Dehydrate()
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, nil
}

// Rehydrate restores Arguments from their persisted form.
func Rehydrate(data any) (Arguments, error) {
	if data == nil {
		return Arguments{}, nil
	}
	items, ok := data.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list of arguments, got %T", data)
	}
	result := make(Arguments, 0, len(items))
	for _, item := range items {
		arg, err := placeholder.Rehydrate(item)
		if err != nil {
			return nil, err
		}
		result = append(result, arg)
	}
	return result, nil
}
