package main

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/binsquare/envline/dotenv"
	"github.com/binsquare/envline/envfile"
)

// SpawnWithEnv applies pairs to the process environment and runs command
// with it. Existing variables are kept unless override is set.
func SpawnWithEnv(ctx context.Context, command string, args []string, pairs []dotenv.Pair, override bool) error {
	apply := envfile.Load
	if override {
		apply = envfile.Overload
	}
	keys, err := apply(pairs)
	if err != nil {
		return err
	}
	slog.Debug("applied env", "set", len(keys), "kept", len(envfile.Merge(pairs))-len(keys))

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	cmd.Env = os.Environ()
	return cmd.Run()
}

func MaskValue(value string) string {
	if value == "" {
		return "(empty)"
	}
	r := []rune(value)
	if len(r) <= 4 {
		return "****"
	}
	return string(r[:2]) + "****" + string(r[len(r)-2:])
}

// shellQuote applies POSIX single-quote escaping where needed.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	for _, r := range s {
		if !(r == '_' || r == '-' || r == '.' || r == '/' || r == ':' || r == '@' || r == '+' || (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')) {
			return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
		}
	}
	return s
}
