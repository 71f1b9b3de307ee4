package dotenv

import (
	"fmt"
	"strings"
)

// LineParseError reports a grammar violation in a single line.
// Line is the input with trailing whitespace removed and Index is the
// character (not byte) offset of the offending position within it.
type LineParseError struct {
	Line  string
	Index int
}

func (e *LineParseError) Error() string {
	return fmt.Sprintf("error parsing line: '%s', error at line index: %d", e.Line, e.Index)
}

// Caret renders the line with a marker under the offending character.
func (e *LineParseError) Caret() string {
	var b strings.Builder
	b.WriteString(e.Line)
	b.WriteByte('\n')
	col := 0
	for _, r := range e.Line {
		if col == e.Index {
			break
		}
		// keep tabs so the marker lines up in a terminal
		if r == '\t' {
			b.WriteByte('\t')
		} else {
			b.WriteByte(' ')
		}
		col++
	}
	for ; col < e.Index; col++ {
		b.WriteByte(' ')
	}
	b.WriteByte('^')
	return b.String()
}

// valueError is raised by the value state machine with an index relative to
// the start of the value. ParseLine turns it into a LineParseError.
type valueError struct {
	index int
}

func (e *valueError) Error() string {
	return fmt.Sprintf("invalid value at index %d", e.index)
}
