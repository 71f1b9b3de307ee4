package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/binsquare/envline/dotenv"
	"github.com/binsquare/envline/envfile"
)

var exportFormats = []string{"plain", "json", "yaml", "toml", "shell"}

// writeExport writes pairs to w in the given format. plain is .env text
// that re-parses to the same pairs; shell is `export K=V` lines for eval.
func writeExport(w io.Writer, pairs []dotenv.Pair, format string) error {
	pairs = envfile.Merge(pairs)
	switch format {
	case "plain", "":
		text, err := envfile.Render(pairs)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, text)
		return err
	case "shell":
		for _, p := range pairs {
			if !dotenv.ValidKey(p.Key) {
				return fmt.Errorf("cannot export key %q to a shell", p.Key)
			}
			if _, err := fmt.Fprintf(w, "export %s=%s\n", p.Key, shellQuote(p.Value)); err != nil {
				return err
			}
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(envfile.Map(pairs))
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(envfile.Map(pairs)); err != nil {
			return err
		}
		return enc.Close()
	case "toml":
		return toml.NewEncoder(w).Encode(envfile.Map(pairs))
	default:
		return fmt.Errorf("unknown format %q (use one of %v)", format, exportFormats)
	}
}
