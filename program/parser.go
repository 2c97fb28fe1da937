package program

import (
	"fmt"
	"os"
	"strconv"
)

// ParseError reports malformed source at a byte offset.
type ParseError struct {
	Offset int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %v", e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func errorAt(offset int, format string, args ...interface{}) error {
	return &ParseError{Offset: offset, Err: fmt.Errorf(format, args...)}
}

// sexpr is either an atom or a list.
type sexpr struct {
	offset int
	atom   string
	list   []*sexpr
	isList bool
}

// ParseFile reads and parses the file at path.
func ParseFile(path string) (map[string]*Function, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(string(data))
}

// Parse reads a list of function definitions:
//
//	((name arity (init halt ((from to ((sym tape)...) ((sym tape)...) delta)...)))...)
//
// Numbers accept C-style prefixes (0x, leading 0 for octal). A ';' starts
// a comment that runs to the end of the line.
func Parse(src string) (map[string]*Function, error) {
	p := &parser{src: src}
	p.skipSpace()
	top, err := p.parseList()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, errorAt(p.pos, "trailing input")
	}

	funcs := make(map[string]*Function, len(top.list))
	for _, item := range top.list {
		f, err := parseFunction(item)
		if err != nil {
			return nil, err
		}
		if _, dup := funcs[f.Name]; dup {
			return nil, errorAt(item.offset, "%w '%s'", ErrDuplicateName, f.Name)
		}
		if err := f.Validate(); err != nil {
			return nil, &ParseError{Offset: item.offset, Err: err}
		}
		funcs[f.Name] = f
	}
	return funcs, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		case ';':
			for p.pos < len(p.src) && p.src[p.pos] != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

func (p *parser) parseList() (*sexpr, error) {
	if p.pos >= len(p.src) || p.src[p.pos] != '(' {
		return nil, errorAt(p.pos, "expected '('")
	}
	list := &sexpr{offset: p.pos, isList: true}
	p.pos++
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, errorAt(list.offset, "unterminated list")
		}
		switch p.src[p.pos] {
		case ')':
			p.pos++
			return list, nil
		case '(':
			sub, err := p.parseList()
			if err != nil {
				return nil, err
			}
			list.list = append(list.list, sub)
		default:
			start := p.pos
			for p.pos < len(p.src) && !isDelimiter(p.src[p.pos]) {
				p.pos++
			}
			list.list = append(list.list, &sexpr{offset: start, atom: p.src[start:p.pos]})
		}
	}
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '(', ')', ';':
		return true
	}
	return false
}

func expectList(s *sexpr, what string, n int) error {
	if !s.isList {
		return errorAt(s.offset, "%s: expected a list", what)
	}
	if n >= 0 && len(s.list) != n {
		return errorAt(s.offset, "%s: expected %d elements, got %d", what, n, len(s.list))
	}
	return nil
}

func atomInt(s *sexpr, what string) (int, error) {
	if s.isList {
		return 0, errorAt(s.offset, "%s: expected a number", what)
	}
	v, err := strconv.ParseInt(s.atom, 0, 64)
	if err != nil {
		return 0, errorAt(s.offset, "%s: bad number '%s'", what, s.atom)
	}
	return int(v), nil
}

func parseFunction(s *sexpr) (*Function, error) {
	if err := expectList(s, "function", 3); err != nil {
		return nil, err
	}
	if s.list[0].isList {
		return nil, errorAt(s.list[0].offset, "function: expected a name")
	}
	arity, err := atomInt(s.list[1], "arity")
	if err != nil {
		return nil, err
	}
	m, err := parseMachine(s.list[2])
	if err != nil {
		return nil, err
	}
	return &Function{Name: s.list[0].atom, Arity: arity, Machine: m}, nil
}

func parseMachine(s *sexpr) (*Machine, error) {
	if err := expectList(s, "machine", 3); err != nil {
		return nil, err
	}
	init, err := atomInt(s.list[0], "init state")
	if err != nil {
		return nil, err
	}
	halt, err := atomInt(s.list[1], "halt state")
	if err != nil {
		return nil, err
	}
	if err := expectList(s.list[2], "rules", -1); err != nil {
		return nil, err
	}
	m := &Machine{Init: init, Halt: halt, Rules: make([]Rule, 0, len(s.list[2].list))}
	for _, rs := range s.list[2].list {
		r, err := parseRule(rs)
		if err != nil {
			return nil, err
		}
		m.Rules = append(m.Rules, r)
	}
	return m, nil
}

func parseRule(s *sexpr) (Rule, error) {
	var r Rule
	if err := expectList(s, "rule", 5); err != nil {
		return r, err
	}
	var err error
	if r.From, err = atomInt(s.list[0], "from state"); err != nil {
		return r, err
	}
	if r.To, err = atomInt(s.list[1], "to state"); err != nil {
		return r, err
	}
	if r.Condition, err = parsePatterns(s.list[2], "condition"); err != nil {
		return r, err
	}
	if r.Action, err = parsePatterns(s.list[3], "action"); err != nil {
		return r, err
	}
	if r.Delta, err = atomInt(s.list[4], "delta"); err != nil {
		return r, err
	}
	return r, nil
}

func parsePatterns(s *sexpr, what string) ([]Pattern, error) {
	if err := expectList(s, what, -1); err != nil {
		return nil, err
	}
	out := make([]Pattern, 0, len(s.list))
	for _, ps := range s.list {
		if err := expectList(ps, "pattern", 2); err != nil {
			return nil, err
		}
		sym, err := atomInt(ps.list[0], "symbol")
		if err != nil {
			return nil, err
		}
		if !ValidSymbol(sym) {
			return nil, errorAt(ps.offset, "%w %d", ErrInvalidSymbol, sym)
		}
		tape, err := atomInt(ps.list[1], "tape")
		if err != nil {
			return nil, err
		}
		out = append(out, Pattern{Symbol: byte(sym), Tape: tape})
	}
	return out, nil
}
