// pkg/expr/lexer.go
package expr

import (
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokString
	tokIdent
	tokTrue
	tokFalse
	tokNull
	tokNot
	tokEq
	tokNe
	tokAnd
	tokOr
	tokPlus
	tokQuestion
	tokColon
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
	tokClose
)

var tokenNames = map[tokenKind]string{
	tokEOF:      "end of expression",
	tokString:   "string",
	tokIdent:    "identifier",
	tokTrue:     "'true'",
	tokFalse:    "'false'",
	tokNull:     "'null'",
	tokNot:      "'!'",
	tokEq:       "'=='",
	tokNe:       "'!='",
	tokAnd:      "'&&'",
	tokOr:       "'||'",
	tokPlus:     "'+'",
	tokQuestion: "'?'",
	tokColon:    "':'",
	tokLParen:   "'('",
	tokRParen:   "')'",
	tokLBracket: "'['",
	tokRBracket: "']'",
	tokComma:    "','",
	tokClose:    "'}}'",
}

func (k tokenKind) String() string { return tokenNames[k] }

type token struct {
	kind  tokenKind
	value string
	pos   int
}

type lexer struct {
	src string
	pos int
}

var punctuation = []struct {
	text string
	kind tokenKind
}{
	{"==", tokEq},
	{"!=", tokNe},
	{"&&", tokAnd},
	{"||", tokOr},
	{"}}", tokClose},
	{"!", tokNot},
	{"+", tokPlus},
	{"?", tokQuestion},
	{":", tokColon},
	{"(", tokLParen},
	{")", tokRParen},
	{"[", tokLBracket},
	{"]", tokRBracket},
	{",", tokComma},
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && strings.IndexByte(" \t\r\n", l.src[l.pos]) >= 0 {
		l.pos++
	}
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: start}, nil
	}

	c := l.src[l.pos]
	switch {
	case c == '"' || c == '\'':
		return l.lexString(c)
	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentChar(l.src[l.pos]) {
			l.pos++
		}
		word := l.src[start:l.pos]
		switch word {
		case "true":
			return token{kind: tokTrue, pos: start}, nil
		case "false":
			return token{kind: tokFalse, pos: start}, nil
		case "null":
			return token{kind: tokNull, pos: start}, nil
		}
		return token{kind: tokIdent, value: word, pos: start}, nil
	}

	for _, p := range punctuation {
		if strings.HasPrefix(l.src[l.pos:], p.text) {
			l.pos += len(p.text)
			return token{kind: p.kind, value: p.text, pos: start}, nil
		}
	}
	return token{}, &Error{Offset: start, Msg: "unexpected character " + quoteRune(c)}
}

func (l *lexer) lexString(quote byte) (token, error) {
	start := l.pos
	l.pos++
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == quote:
			l.pos++
			return token{kind: tokString, value: b.String(), pos: start}, nil
		case c == '\\' && l.pos+1 < len(l.src):
			b.WriteByte(l.src[l.pos+1])
			l.pos += 2
		default:
			b.WriteByte(c)
			l.pos++
		}
	}
	return token{}, &Error{Offset: start, Msg: "unterminated string"}
}

func quoteRune(c byte) string {
	return "'" + string(c) + "'"
}
