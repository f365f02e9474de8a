package schema

import (
	"strings"

	"github.com/samsarahq/go/oops"
)

// ParseFieldSet parses the federation field-set grammar used by
// @key/@requires/@provides/@authorized(fields:), e.g. `id organization { id
// name }`. The grammar is a restricted selection set: field names only, no
// aliases, no arguments, optionally nested braces.
func ParseFieldSet(src string) (FieldSet, error) {
	p := &fieldSetParser{input: src}
	set, err := p.parseSet(true)
	if err != nil {
		return nil, oops.Wrapf(err, "parsing field set %q", src)
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, oops.Errorf("parsing field set %q: unexpected trailing input at %d", src, p.pos)
	}
	return set, nil
}

type fieldSetParser struct {
	input string
	pos   int
}

func (p *fieldSetParser) skipSpace() {
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case ' ', '\t', '\n', '\r', ',':
			p.pos++
		default:
			return
		}
	}
}

// parseSet parses a brace-delimited (or, at top level, implicit) sequence
// of field-set elements.
func (p *fieldSetParser) parseSet(topLevel bool) (FieldSet, error) {
	if !topLevel {
		p.skipSpace()
		if p.pos >= len(p.input) || p.input[p.pos] != '{' {
			return nil, oops.Errorf("expected '{' at %d", p.pos)
		}
		p.pos++
	}

	var elems FieldSet
	for {
		p.skipSpace()
		if p.pos >= len(p.input) {
			if !topLevel {
				return nil, oops.Errorf("unterminated field set, missing '}'")
			}
			break
		}
		if p.input[p.pos] == '}' {
			if topLevel {
				return nil, oops.Errorf("unexpected '}' at %d", p.pos)
			}
			p.pos++
			break
		}

		name, err := p.parseName()
		if err != nil {
			return nil, err
		}

		elem := FieldSetElem{Name: name}

		p.skipSpace()
		if p.pos < len(p.input) && p.input[p.pos] == '{' {
			sub, err := p.parseSet(false)
			if err != nil {
				return nil, err
			}
			elem.Sub = sub
		}

		elems = append(elems, elem)
	}
	return elems, nil
}

func (p *fieldSetParser) parseName() (string, error) {
	start := p.pos
	for p.pos < len(p.input) && isNameByte(p.input[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return "", oops.Errorf("expected field name at %d", p.pos)
	}
	return p.input[start:p.pos], nil
}

func isNameByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

// String renders a FieldSet back into federation field-set syntax, used
// when building synthetic key-fetch selections for subgraph requests.
func (fs FieldSet) String() string {
	var sb strings.Builder
	fs.write(&sb)
	return sb.String()
}

func (fs FieldSet) write(sb *strings.Builder) {
	for i, e := range fs {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(e.Name)
		if len(e.Sub) > 0 {
			sb.WriteString(" { ")
			e.Sub.write(sb)
			sb.WriteString(" }")
		}
	}
}
