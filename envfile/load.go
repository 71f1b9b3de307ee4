package envfile

import (
	"fmt"
	"os"

	"github.com/binsquare/envline/dotenv"
)

// Load sets every variable in pairs that was not already present in the
// process environment when Load was called. When a key repeats, the last
// pair wins. It returns the keys it set, in order of first appearance.
func Load(pairs []dotenv.Pair) ([]string, error) {
	present := make(map[string]bool)
	for _, p := range pairs {
		if _, ok := os.LookupEnv(p.Key); ok {
			present[p.Key] = true
		}
	}
	var fresh []dotenv.Pair
	for _, p := range pairs {
		if !present[p.Key] {
			fresh = append(fresh, p)
		}
	}
	return setAll(fresh)
}

// Overload sets every variable in pairs, replacing existing values.
func Overload(pairs []dotenv.Pair) ([]string, error) {
	return setAll(pairs)
}

func setAll(pairs []dotenv.Pair) ([]string, error) {
	merged := Merge(pairs)
	keys := make([]string, 0, len(merged))
	for _, p := range merged {
		if err := os.Setenv(p.Key, p.Value); err != nil {
			return keys, fmt.Errorf("set %s: %w", p.Key, err)
		}
		keys = append(keys, p.Key)
	}
	return keys, nil
}

// Chain returns a lookup that tries each lookup in turn. Nil entries are
// skipped.
func Chain(lookups ...dotenv.LookupFunc) dotenv.LookupFunc {
	return func(name string) (string, bool) {
		for _, lookup := range lookups {
			if lookup == nil {
				continue
			}
			if v, ok := lookup(name); ok {
				return v, true
			}
		}
		return "", false
	}
}

// LookupPairs returns a lookup over pairs. When a key repeats the last pair wins.
func LookupPairs(pairs []dotenv.Pair) dotenv.LookupFunc {
	m := Map(pairs)
	return func(name string) (string, bool) {
		v, ok := m[name]
		return v, ok
	}
}
