package dotenv

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type valueMode int

const (
	unquoted valueMode = iota
	strongQuote
	weakQuote
	escaped
	substitution      // $NAME
	braceSubstitution // ${NAME}
	expectingEnd
)

// valueState is the cursor of the value state machine. Exactly one mode is
// active at a time; weak records whether escaped and the substitution modes
// were entered from inside "..." so they know where to return.
type valueState struct {
	table *Table
	mode  valueMode
	weak  bool
	name  strings.Builder
	out   strings.Builder
}

// parseValue turns the raw remainder of a line after "=" into its final
// value. Errors are *valueError with an index relative to input.
func parseValue(input string, table *Table) (string, error) {
	s := &valueState{table: table}

	index := 0
	for _, c := range input {
		done, err := s.step(c, index)
		if err != nil {
			return "", err
		}
		if done {
			break
		}
		index++
	}

	if s.mode == braceSubstitution || s.mode == strongQuote || s.weak {
		last := utf8.RuneCountInString(input) - 1
		if last < 0 {
			last = 0
		}
		return "", &valueError{index: last}
	}
	// a dangling backslash is dropped
	s.substitute()
	return s.out.String(), nil
}

// step consumes one character. It reports done when a trailing comment
// starts and the rest of the input must be ignored.
func (s *valueState) step(c rune, index int) (bool, error) {
	switch s.mode {
	case expectingEnd:
		switch c {
		case ' ', '\t':
			return false, nil
		case '#':
			return true, nil
		}
		return false, &valueError{index: index}

	case escaped:
		switch c {
		case '\\', '\'', '"', '$', ' ':
			s.out.WriteRune(c)
		case 'n':
			s.out.WriteByte('\n')
		default:
			return false, &valueError{index: index}
		}
		s.mode = s.base()

	case strongQuote:
		if c == '\'' {
			s.mode = unquoted
		} else {
			s.out.WriteRune(c)
		}

	case substitution:
		if isNameChar(c) {
			s.name.WriteRune(c)
			return false, nil
		}
		if c == '{' && s.name.Len() == 0 {
			s.mode = braceSubstitution
			return false, nil
		}
		s.substitute()
		if c == '$' {
			return false, nil
		}
		s.mode = s.base()
		s.out.WriteRune(c)

	case braceSubstitution:
		if c == '}' {
			s.substitute()
			s.mode = s.base()
		} else {
			s.name.WriteRune(c)
		}

	case weakQuote:
		switch c {
		case '"':
			s.weak = false
			s.mode = unquoted
		case '\\':
			s.mode = escaped
		case '$':
			s.mode = substitution
		default:
			s.out.WriteRune(c)
		}

	default:
		switch c {
		case '\'':
			s.mode = strongQuote
		case '"':
			s.weak = true
			s.mode = weakQuote
		case '\\':
			s.mode = escaped
		case ' ', '\t':
			s.mode = expectingEnd
		case '$':
			s.mode = substitution
		default:
			s.out.WriteRune(c)
		}
	}
	return false, nil
}

func (s *valueState) base() valueMode {
	if s.weak {
		return weakQuote
	}
	return unquoted
}

// substitute appends the expansion of the pending name and clears it.
func (s *valueState) substitute() {
	name := s.name.String()
	s.name.Reset()
	s.out.WriteString(s.table.resolve(name))
}

// isNameChar matches the characters of a bare $NAME. Underscore is not one
// of them, so "$KEY_1" expands KEY followed by a literal "_1".
func isNameChar(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsNumber(c) || unicode.Is(unicode.Other_Alphabetic, c)
}
