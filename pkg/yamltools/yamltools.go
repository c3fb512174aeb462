// pkg/yamltools/yamltools.go
package yamltools

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/arc-language/mopack/pkg/types"
)

// Mark is a 1-based position within a YAML file.
type Mark struct {
	Line   int
	Column int
}

// Marks mirrors the shape of loaded data, recording where each key and
// value came from.
type Marks struct {
	Value  Mark
	Quoted bool
	Keys   map[string]Mark
	Fields map[string]*Marks
	Items  []*Marks
}

// Child returns the marks for a map key (string) or list index (int).
func (m *Marks) Child(elem any) *Marks {
	if m == nil {
		return nil
	}
	switch e := elem.(type) {
	case string:
		return m.Fields[e]
	case int:
		if e >= 0 && e < len(m.Items) {
			return m.Items[e]
		}
	}
	return nil
}

// Locate finds the closest recorded position for field. With key set, the
// position of the final key is preferred over its value.
func (m *Marks) Locate(field types.Field, key bool) (Mark, bool) {
	if m == nil {
		return Mark{}, false
	}
	cur := m
	for i, elem := range field {
		if key && i == len(field)-1 {
			if name, ok := elem.(string); ok {
				if mark, ok := cur.Keys[name]; ok {
					return mark, false
				}
			}
		}
		next := cur.Child(elem)
		if next == nil {
			return cur.Value, false
		}
		cur = next
	}
	return cur.Value, cur.Quoted
}

// Document is a parsed YAML file.
type Document struct {
	File  string
	Data  any
	Marks *Marks
	lines []string
}

// Load reads and parses file from fs.
func Load(fs afero.Fs, file string) (*Document, error) {
	src, err := afero.ReadFile(fs, file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}
	return Parse(file, src)
}

// Parse parses YAML source attributed to file.
func Parse(file string, src []byte) (*Document, error) {
	doc := &Document{File: file, lines: strings.Split(string(src), "\n")}

	var root yaml.Node
	if err := yaml.Unmarshal(src, &root); err != nil {
		return nil, &ParseError{File: file, Msg: err.Error(), Err: types.ErrConfiguration}
	}
	if len(root.Content) == 0 {
		doc.Marks = &Marks{}
		return doc, nil
	}

	data, marks, err := convert(file, root.Content[0])
	if err != nil {
		return nil, err
	}
	doc.Data = data
	doc.Marks = marks
	return doc, nil
}

func convert(file string, n *yaml.Node) (any, *Marks, error) {
	marks := &Marks{Value: Mark{Line: n.Line, Column: n.Column}}

	switch n.Kind {
	case yaml.AliasNode:
		return convert(file, n.Alias)

	case yaml.MappingNode:
		result := make(map[string]any, len(n.Content)/2)
		marks.Keys = map[string]Mark{}
		marks.Fields = map[string]*Marks{}
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if _, dup := result[k.Value]; dup {
				return nil, nil, &ParseError{
					File: file, Line: k.Line, Column: k.Column,
					Msg: fmt.Sprintf("duplicate key %q", k.Value),
					Err: types.ErrConfiguration,
				}
			}
			value, valueMarks, err := convert(file, v)
			if err != nil {
				return nil, nil, err
			}
			result[k.Value] = value
			marks.Keys[k.Value] = Mark{Line: k.Line, Column: k.Column}
			marks.Fields[k.Value] = valueMarks
		}
		return result, marks, nil

	case yaml.SequenceNode:
		result := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			value, itemMarks, err := convert(file, item)
			if err != nil {
				return nil, nil, err
			}
			result = append(result, value)
			marks.Items = append(marks.Items, itemMarks)
		}
		return result, marks, nil

	case yaml.ScalarNode:
		var value any
		if err := n.Decode(&value); err != nil {
			return nil, nil, &ParseError{
				File: file, Line: n.Line, Column: n.Column,
				Msg: err.Error(), Err: types.ErrConfiguration,
			}
		}
		marks.Quoted = n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0
		return value, marks, nil
	}

	return nil, marks, nil
}

// Line returns the text of a 1-based line, or "".
func (d *Document) Line(n int) string {
	if d == nil || n < 1 || n > len(d.lines) {
		return ""
	}
	return strings.TrimRight(d.lines[n-1], "\r")
}

// Source is a node within a Document whose errors should point into it.
type Source struct {
	Doc   *Document
	Marks *Marks
}

// Root returns the Source for the whole document.
func (d *Document) Root() Source {
	return Source{Doc: d, Marks: d.Marks}
}

// Child returns the Source for a nested key or index.
func (s Source) Child(elem ...any) Source {
	marks := s.Marks
	for _, e := range elem {
		marks = marks.Child(e)
	}
	return Source{Doc: s.Doc, Marks: marks}
}

// File returns the file the source came from, or "".
func (s Source) File() string {
	if s.Doc == nil {
		return ""
	}
	return s.Doc.File
}

// Wrap attaches file and position information to field errors raised while
// processing this source. Other errors are returned unchanged.
func (s Source) Wrap(err error) error {
	if err == nil || s.Doc == nil {
		return err
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return err
	}
	var fe *types.FieldError
	if !errors.As(err, &fe) {
		return err
	}

	mark, quoted := s.Marks.Locate(fe.Field, fe.Key)
	if mark.Line == 0 && s.Marks != nil {
		mark = s.Marks.Value
	}
	col := mark.Column
	if fe.Offset >= 0 {
		col += fe.Offset
		if quoted {
			col++
		}
	}
	return &ParseError{
		File:    s.Doc.File,
		Line:    mark.Line,
		Column:  col,
		Msg:     fe.Msg,
		Snippet: s.Doc.Line(mark.Line),
		Err:     err,
	}
}

// ParseError is a configuration error located within a file.
type ParseError struct {
	File    string
	Line    int
	Column  int
	Msg     string
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %s", e.File, e.Msg)
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Msg)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error { return e.Err }

// Is matches types.ErrConfiguration.
func (e *ParseError) Is(target error) bool {
	return target == types.ErrConfiguration
}
