package types

import (
	"fmt"
	"unicode"
)

// Parse reads a type expression such as "Set(Tuple(Number, String))".
// The accepted syntax is exactly the one produced by Type.String.
func Parse(s string) (Type, error) {
	p := &parser{src: s}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return t, nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or for constant type expressions.
func MustParse(s string) Type {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("type %q at offset %d: %s", p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *parser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := rune(p.src[p.pos])
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) accept(c byte) bool {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) args() ([]Type, error) {
	if !p.accept('(') {
		return nil, p.errorf("expected '('")
	}
	var ts []Type
	if p.accept(')') {
		return ts, nil
	}
	for {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		ts = append(ts, t)
		if p.accept(')') {
			return ts, nil
		}
		if !p.accept(',') {
			return nil, p.errorf("expected ',' or ')'")
		}
	}
}

func (p *parser) parseType() (Type, error) {
	name := p.ident()
	switch name {
	case "Top":
		return Top, nil
	case "Bottom":
		return Bottom, nil
	case "Bool":
		return Bool, nil
	case "Number":
		return Number, nil
	case "String":
		return String, nil
	case "Tuple", "Set", "List", "Map":
	case "":
		return nil, p.errorf("expected type name")
	default:
		return nil, p.errorf("unknown type constructor %q", name)
	}

	ts, err := p.args()
	if err != nil {
		return nil, err
	}
	switch name {
	case "Tuple":
		return NewTuple(ts...), nil
	case "Map":
		if len(ts) != 2 {
			return nil, p.errorf("Map takes 2 arguments, got %d", len(ts))
		}
		return NewMap(ts[0], ts[1]), nil
	}
	if len(ts) != 1 {
		return nil, p.errorf("%s takes 1 argument, got %d", name, len(ts))
	}
	if name == "Set" {
		return NewSet(ts[0]), nil
	}
	return NewList(ts[0]), nil
}
