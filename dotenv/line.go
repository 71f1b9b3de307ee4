package dotenv

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Pair is one resolved key/value assignment.
type Pair struct {
	Key   string
	Value string
}

// ParseLine parses one line of a .env source. Blank lines and comments
// return ok == false with a nil error. On success the pair is also recorded
// in table, so later lines can substitute it. Grammar violations are
// reported as *LineParseError, as is a line that is not valid UTF-8.
//
// A nil table behaves like a fresh table over the process environment.
func ParseLine(line string, table *Table) (pair Pair, ok bool, err error) {
	if table == nil {
		table = NewTable(nil)
	}
	trimmed := strings.TrimRightFunc(line, unicode.IsSpace)
	if i := invalidUTF8Index(trimmed); i >= 0 {
		return Pair{}, false, &LineParseError{Line: trimmed, Index: i}
	}
	p := &lineParser{
		line:  trimmed,
		runes: []rune(trimmed),
		table: table,
	}
	return p.parse()
}

// invalidUTF8Index returns the character index of the first invalid UTF-8
// sequence in s, or -1.
func invalidUTF8Index(s string) int {
	if utf8.ValidString(s) {
		return -1
	}
	n := 0
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError && size == 1 {
			return n
		}
		s = s[size:]
		n++
	}
	return -1
}

type lineParser struct {
	line  string
	runes []rune
	pos   int
	table *Table
}

func (p *lineParser) parse() (Pair, bool, error) {
	p.skipWhitespace()
	if p.atEndOrComment() {
		return Pair{}, false, nil
	}

	key, err := p.parseKey()
	if err != nil {
		return Pair{}, false, err
	}
	p.skipWhitespace()

	// export is either an optional prefix or a key of its own
	if key == "export" {
		if !p.consume('=') {
			key, err = p.parseKey()
			if err != nil {
				return Pair{}, false, err
			}
			p.skipWhitespace()
			if !p.consume('=') {
				return Pair{}, false, p.errorAt(p.pos)
			}
		}
	} else if !p.consume('=') {
		return Pair{}, false, p.errorAt(p.pos)
	}
	p.skipWhitespace()

	if p.atEndOrComment() {
		p.table.Declare(key)
		return Pair{Key: key}, true, nil
	}

	value, err := parseValue(string(p.runes[p.pos:]), p.table)
	if err != nil {
		var verr *valueError
		if errors.As(err, &verr) {
			return Pair{}, false, p.errorAt(p.pos + verr.index)
		}
		return Pair{}, false, err
	}
	p.table.Set(key, value)
	return Pair{Key: key, Value: value}, true, nil
}

func (p *lineParser) parseKey() (string, error) {
	if p.pos >= len(p.runes) || !isKeyStart(p.runes[p.pos]) {
		return "", p.errorAt(p.pos)
	}
	start := p.pos
	for p.pos < len(p.runes) && isKeyChar(p.runes[p.pos]) {
		p.pos++
	}
	return string(p.runes[start:p.pos]), nil
}

func (p *lineParser) consume(r rune) bool {
	if p.pos < len(p.runes) && p.runes[p.pos] == r {
		p.pos++
		return true
	}
	return false
}

func (p *lineParser) skipWhitespace() {
	for p.pos < len(p.runes) && unicode.IsSpace(p.runes[p.pos]) {
		p.pos++
	}
}

func (p *lineParser) atEndOrComment() bool {
	return p.pos >= len(p.runes) || p.runes[p.pos] == '#'
}

func (p *lineParser) errorAt(index int) error {
	return &LineParseError{Line: p.line, Index: index}
}

// ValidKey reports whether s can be written as the key of a line.
func ValidKey(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 && !isKeyStart(r) {
			return false
		}
		if !isKeyChar(r) {
			return false
		}
	}
	return true
}

func isKeyStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isKeyChar(r rune) bool {
	return isKeyStart(r) || r == '.' || (r >= '0' && r <= '9')
}
