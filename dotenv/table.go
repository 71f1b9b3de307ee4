package dotenv

import (
	"os"
	"sort"
)

// LookupFunc looks up a variable by name and reports whether it was found.
type LookupFunc func(name string) (string, bool)

// OSEnv looks up variables in the process environment.
var OSEnv LookupFunc = os.LookupEnv

// Table holds the keys parsed so far from one source, for use by later
// substitutions. A key maps either to a value or to nothing at all when it
// was declared as "KEY=" with no value.
//
// A Table is not safe for concurrent use. Lines of one source must be parsed
// in order against the same Table; independent sources need their own.
type Table struct {
	values map[string]*string
	env    LookupFunc
}

// NewTable returns an empty table whose substitutions consult env before
// the table itself. A nil env means the process environment.
func NewTable(env LookupFunc) *Table {
	if env == nil {
		env = OSEnv
	}
	return &Table{
		values: make(map[string]*string),
		env:    env,
	}
}

// Set records key with a value.
func (t *Table) Set(key, value string) {
	t.values[key] = &value
}

// Declare records key without a value, replacing any earlier value.
func (t *Table) Declare(key string) {
	t.values[key] = nil
}

// Lookup returns the value recorded for key. It reports false both for
// unknown keys and for keys declared without a value.
func (t *Table) Lookup(key string) (string, bool) {
	v, ok := t.values[key]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// Declared reports whether key was parsed at all, with or without a value.
func (t *Table) Declared(key string) bool {
	_, ok := t.values[key]
	return ok
}

// Len returns the number of keys in the table.
func (t *Table) Len() int {
	return len(t.values)
}

// Keys returns the table's keys in sorted order.
func (t *Table) Keys() []string {
	keys := make([]string, 0, len(t.values))
	for k := range t.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// resolve expands a substitution name. The environment wins over the table,
// and a name found in neither expands to nothing.
func (t *Table) resolve(name string) string {
	if name == "" {
		return ""
	}
	if v, ok := t.env(name); ok {
		return v
	}
	v, _ := t.Lookup(name)
	return v
}
