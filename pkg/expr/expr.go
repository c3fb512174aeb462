// pkg/expr/expr.go
package expr

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/arc-language/mopack/pkg/placeholder"
)

// Error reports a syntax or evaluation failure. Offset is the byte position
// within the evaluated string.
type Error struct {
	Offset int
	Msg    string
}

func (e *Error) Error() string {
	return e.Msg
}

// Evaluate evaluates s against symbols. Outside of an if context, s is a
// template where "$$" is a literal dollar sign, "$name" substitutes a symbol
// and "${{ expr }}" substitutes an expression. A template consisting of a
// single substitution yields the substituted value unchanged; otherwise the
// pieces are concatenated into a string or placeholder.String. In an if
// context, s may also be a bare expression.
func Evaluate(symbols *Symbols, s string, ifContext bool) (any, error) {
	if ifContext {
		if strings.HasPrefix(strings.TrimSpace(s), "$") {
			return evaluateDollar(symbols, s)
		}
		return evaluateBare(symbols, s)
	}
	return evaluateTemplate(symbols, s)
}

// Truthy reports whether v counts as true in an if context.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case placeholder.String:
		return !x.Empty()
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	return true
}

func evaluateBare(symbols *Symbols, s string) (any, error) {
	p, err := newParser(s, 0)
	if err != nil {
		return nil, err
	}
	n, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.unexpected()
	}
	return n.eval(symbols)
}

// evaluateDollar evaluates a condition written as a single `$ident` or
// `${{ expr }}` with nothing else around it.
func evaluateDollar(symbols *Symbols, s string) (any, error) {
	start := len(s) - len(strings.TrimLeft(s, " \t"))
	var (
		n   node
		end int
	)
	if strings.HasPrefix(s[start:], "${{") {
		p, err := newParser(s, start+3)
		if err != nil {
			return nil, err
		}
		if n, err = p.parseExpr(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokClose {
			return nil, p.expected(tokClose)
		}
		end = p.lex.pos
	} else {
		j := start + 1
		if j >= len(s) || !isIdentStart(s[j]) {
			return nil, &Error{Offset: j, Msg: "expected identifier"}
		}
		for j < len(s) && isIdentChar(s[j]) {
			j++
		}
		n, end = &identNode{name: s[start+1 : j], pos: start + 1}, j
	}

	if strings.TrimRight(s[end:], " \t") != "" {
		return nil, &Error{Offset: end, Msg: "unexpected text after expression"}
	}
	return n.eval(symbols)
}

func evaluateTemplate(symbols *Symbols, s string) (any, error) {
	var pieces []any
	var lit strings.Builder
	substituted := false

	flush := func() {
		if lit.Len() > 0 {
			pieces = append(pieces, lit.String())
			lit.Reset()
		}
	}

	for i := 0; i < len(s); {
		c := s[i]
		if c != '$' {
			lit.WriteByte(c)
			i++
			continue
		}
		if strings.HasPrefix(s[i:], "$$") {
			lit.WriteByte('$')
			i += 2
			continue
		}

		flush()
		substituted = true
		if strings.HasPrefix(s[i:], "${{") {
			p, err := newParser(s, i+3)
			if err != nil {
				return nil, err
			}
			n, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if p.tok.kind != tokClose {
				return nil, p.expected(tokClose)
			}
			v, err := n.eval(symbols)
			if err != nil {
				return nil, err
			}
			pieces = append(pieces, v)
			i = p.lex.pos
			continue
		}

		j := i + 1
		if j >= len(s) || !isIdentStart(s[j]) {
			return nil, &Error{Offset: j, Msg: "expected identifier"}
		}
		for j < len(s) && isIdentChar(s[j]) {
			j++
		}
		v, err := (&identNode{name: s[i+1 : j], pos: i + 1}).eval(symbols)
		if err != nil {
			return nil, err
		}
		pieces = append(pieces, v)
		i = j
	}
	flush()

	if !substituted {
		if len(pieces) == 0 {
			return "", nil
		}
		return pieces[0], nil
	}
	if len(pieces) == 1 {
		return pieces[0], nil
	}

	parts := make([]any, 0, len(pieces))
	for _, piece := range pieces {
		switch piece.(type) {
		case string, placeholder.String:
			parts = append(parts, piece)
		default:
			return nil, &Error{Msg: fmt.Sprintf("unable to embed %s in a string", typeName(piece))}
		}
	}
	return placeholder.New(parts...).Simplify(), nil
}

type parser struct {
	lex *lexer
	tok token
}

func newParser(src string, pos int) (*parser, error) {
	p := &parser{lex: &lexer{src: src, pos: pos}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) unexpected() error {
	return &Error{Offset: p.tok.pos, Msg: fmt.Sprintf("unexpected %s", p.tok.kind)}
}

func (p *parser) expected(kind tokenKind) error {
	return &Error{Offset: p.tok.pos, Msg: fmt.Sprintf("expected %s, got %s", kind, p.tok.kind)}
}

func (p *parser) expect(kind tokenKind) error {
	if p.tok.kind != kind {
		return p.expected(kind)
	}
	return p.advance()
}

func (p *parser) parseExpr() (node, error) {
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokQuestion {
		return cond, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	a, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokColon); err != nil {
		return nil, err
	}
	b, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ternaryNode{cond: cond, a: a, b: b}, nil
}

func (p *parser) parseBinary(next func() (node, error), ops ...tokenKind) (node, error) {
	lhs, err := next()
	if err != nil {
		return nil, err
	}
	for {
		op := p.tok
		matched := false
		for _, k := range ops {
			if op.kind == k {
				matched = true
				break
			}
		}
		if !matched {
			return lhs, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := next()
		if err != nil {
			return nil, err
		}
		lhs = &binaryNode{op: op.kind, lhs: lhs, rhs: rhs, pos: op.pos}
	}
}

func (p *parser) parseOr() (node, error) {
	return p.parseBinary(p.parseAnd, tokOr)
}

func (p *parser) parseAnd() (node, error) {
	return p.parseBinary(p.parseEquality, tokAnd)
}

func (p *parser) parseEquality() (node, error) {
	return p.parseBinary(p.parseAdditive, tokEq, tokNe)
}

func (p *parser) parseAdditive() (node, error) {
	return p.parseBinary(p.parseUnary, tokPlus)
}

func (p *parser) parseUnary() (node, error) {
	if p.tok.kind == tokNot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notNode{x: x}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (node, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokLBracket {
		pos := p.tok.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		key, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRBracket); err != nil {
			return nil, err
		}
		x = &indexNode{x: x, key: key, pos: pos}
	}
	return x, nil
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.tok
	switch tok.kind {
	case tokString:
		return &literalNode{v: tok.value}, p.advance()
	case tokTrue:
		return &literalNode{v: true}, p.advance()
	case tokFalse:
		return &literalNode{v: false}, p.advance()
	case tokNull:
		return &literalNode{v: nil}, p.advance()
	case tokIdent:
		return &identNode{name: tok.value, pos: tok.pos}, p.advance()
	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return x, p.expect(tokRParen)
	case tokLBracket:
		if err := p.advance(); err != nil {
			return nil, err
		}
		arr := &arrayNode{}
		for p.tok.kind != tokRBracket {
			item, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			arr.items = append(arr.items, item)
			if p.tok.kind != tokComma {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		return arr, p.expect(tokRBracket)
	}
	return nil, p.unexpected()
}

type node interface {
	eval(s *Symbols) (any, error)
}

type literalNode struct{ v any }

func (n *literalNode) eval(*Symbols) (any, error) { return n.v, nil }

type identNode struct {
	name string
	pos  int
}

func (n *identNode) eval(s *Symbols) (any, error) {
	v, ok := s.Lookup(n.name)
	if !ok {
		return nil, &Error{Offset: n.pos, Msg: fmt.Sprintf("undefined symbol %q", n.name)}
	}
	return v, nil
}

type notNode struct{ x node }

func (n *notNode) eval(s *Symbols) (any, error) {
	v, err := n.x.eval(s)
	if err != nil {
		return nil, err
	}
	return !Truthy(v), nil
}

type ternaryNode struct{ cond, a, b node }

func (n *ternaryNode) eval(s *Symbols) (any, error) {
	c, err := n.cond.eval(s)
	if err != nil {
		return nil, err
	}
	if Truthy(c) {
		return n.a.eval(s)
	}
	return n.b.eval(s)
}

type arrayNode struct{ items []node }

func (n *arrayNode) eval(s *Symbols) (any, error) {
	result := make([]any, 0, len(n.items))
	for _, item := range n.items {
		v, err := item.eval(s)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

type indexNode struct {
	x, key node
	pos    int
}

func (n *indexNode) eval(s *Symbols) (any, error) {
	x, err := n.x.eval(s)
	if err != nil {
		return nil, err
	}
	k, err := n.key.eval(s)
	if err != nil {
		return nil, err
	}
	key, ok := k.(string)
	if !ok {
		return nil, &Error{Offset: n.pos, Msg: fmt.Sprintf("index must be a string, got %s", typeName(k))}
	}

	switch v := x.(type) {
	case Indexer:
		return v.Index(key)
	case map[string]any:
		result, ok := v[key]
		if !ok {
			return nil, &Error{Offset: n.pos, Msg: fmt.Sprintf("key %q not found", key)}
		}
		return result, nil
	}
	return nil, &Error{Offset: n.pos, Msg: fmt.Sprintf("%s is not indexable", typeName(x))}
}

type binaryNode struct {
	op       tokenKind
	lhs, rhs node
	pos      int
}

func (n *binaryNode) eval(s *Symbols) (any, error) {
	lhs, err := n.lhs.eval(s)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case tokAnd:
		if !Truthy(lhs) {
			return lhs, nil
		}
		return n.rhs.eval(s)
	case tokOr:
		if Truthy(lhs) {
			return lhs, nil
		}
		return n.rhs.eval(s)
	}

	rhs, err := n.rhs.eval(s)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case tokEq:
		return equal(lhs, rhs), nil
	case tokNe:
		return !equal(lhs, rhs), nil
	case tokPlus:
		return n.add(lhs, rhs)
	}
	return nil, &Error{Offset: n.pos, Msg: fmt.Sprintf("unsupported operator %s", n.op)}
}

func (n *binaryNode) add(lhs, rhs any) (any, error) {
	if la, ok := lhs.([]any); ok {
		if ra, ok := rhs.([]any); ok {
			return append(append([]any(nil), la...), ra...), nil
		}
	}
	if isStringish(lhs) && isStringish(rhs) {
		return placeholder.New(lhs, rhs).Simplify(), nil
	}
	return nil, &Error{
		Offset: n.pos,
		Msg:    fmt.Sprintf("unsupported operand types for '+': %s and %s", typeName(lhs), typeName(rhs)),
	}
}

func isStringish(v any) bool {
	switch v.(type) {
	case string, placeholder.String:
		return true
	}
	return false
}

func equal(a, b any) bool {
	if x, ok := a.(placeholder.String); ok {
		y, ok := b.(placeholder.String)
		return ok && x.Equal(y)
	}
	return reflect.DeepEqual(a, b)
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string, placeholder.String:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
