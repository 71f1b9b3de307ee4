package envfile

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/binsquare/envline/dotenv"
)

// Merge flattens pair lists into one list with a single pair per key. Later
// values replace earlier ones; keys keep the position where they first
// appeared.
func Merge(sets ...[]dotenv.Pair) []dotenv.Pair {
	index := make(map[string]int)
	var out []dotenv.Pair
	for _, pairs := range sets {
		for _, p := range pairs {
			if i, ok := index[p.Key]; ok {
				out[i].Value = p.Value
				continue
			}
			index[p.Key] = len(out)
			out = append(out, p)
		}
	}
	return out
}

// Map returns pairs as a map. When a key repeats the last pair wins.
func Map(pairs []dotenv.Pair) map[string]string {
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		m[p.Key] = p.Value
	}
	return m
}

// Render writes pairs as .env text that parses back to the same pairs.
func Render(pairs []dotenv.Pair) (string, error) {
	var b strings.Builder
	for _, p := range pairs {
		if !dotenv.ValidKey(p.Key) {
			return "", fmt.Errorf("cannot render key %q: not a valid env key", p.Key)
		}
		if !utf8.ValidString(p.Value) {
			return "", fmt.Errorf("cannot render value of %s: not valid UTF-8", p.Key)
		}
		b.WriteString(p.Key)
		b.WriteByte('=')
		b.WriteString(Quote(p.Value))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// Quote returns value in a form the dotenv parser reads back unchanged.
// value must be valid UTF-8; Render checks this before quoting.
// Plain values are left bare, values with newlines use double quotes with
// escapes, and everything else is single quoted.
func Quote(value string) string {
	if value == "" {
		return ""
	}
	if isBare(value) {
		return value
	}
	if strings.Contains(value, "\n") {
		var b strings.Builder
		b.WriteByte('"')
		for _, r := range value {
			switch r {
			case '\n':
				b.WriteString(`\n`)
			case '\\', '"', '$':
				b.WriteByte('\\')
				b.WriteRune(r)
			default:
				b.WriteRune(r)
			}
		}
		b.WriteByte('"')
		return b.String()
	}
	// close, emit the quote in double quotes, reopen: ' -> '"'"'
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}

func isBare(s string) bool {
	for _, r := range s {
		if !(r == '_' || r == '-' || r == '.' || r == '/' || r == ':' || r == '@' || r == '+' || r == ',' || r == '=' ||
			(r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')) {
			return false
		}
	}
	return true
}
