package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/binsquare/envline/dotenv"
	"github.com/binsquare/envline/envfile"
)

var errDrift = errors.New("env file differs from provider")

type pullOptions struct {
	Out    string
	Merge  bool // keep keys that only exist in the current file
	Backup bool
	Check  bool
}

// writePulled renders pairs into opts.Out while holding a lock on it. With
// Check set it only prints a line diff and returns errDrift on changes.
func writePulled(ctx context.Context, w io.Writer, pairs []dotenv.Pair, opts pullOptions) error {
	lock := flock.New(opts.Out + ".lock")
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock %s: %w", opts.Out, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: held by another process", opts.Out)
	}
	defer func() {
		lock.Unlock()
		os.Remove(lock.Path())
	}()

	current, err := os.ReadFile(opts.Out)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read %s: %w", opts.Out, err)
	}
	exists := err == nil

	var rendered string
	count := len(envfile.Merge(pairs))
	if opts.Merge && exists {
		rendered, count, err = mergeLocal(opts.Out, string(current), pairs)
	} else {
		rendered, err = envfile.Render(pairs)
	}
	if err != nil {
		return err
	}

	if opts.Check {
		diff := lineDiff(string(current), rendered)
		if diff == "" {
			fmt.Fprintf(w, "%s is up to date\n", opts.Out)
			return nil
		}
		fmt.Fprint(w, diff)
		return errDrift
	}

	if exists && string(current) == rendered {
		fmt.Fprintf(w, "%s is up to date\n", opts.Out)
		return nil
	}
	if exists && opts.Backup {
		if err := os.WriteFile(opts.Out+".bak", current, 0o600); err != nil {
			return fmt.Errorf("write backup: %w", err)
		}
	}
	if err := writeFileAtomic(opts.Out, []byte(rendered), 0o600); err != nil {
		return err
	}
	fmt.Fprintf(w, "wrote %d keys to %s\n", count, opts.Out)
	return nil
}

// mergeLocal lays pulled over the current file text. Assignments to keys the
// provider also has are replaced in place; every other line, including
// local-only assignments, is kept as written so references in it stay
// unexpanded. Pulled keys the file lacks are appended. It returns the new
// text and the number of keys it assigns.
func mergeLocal(path, current string, pulled []dotenv.Pair) (string, int, error) {
	pulled = envfile.Merge(pulled)
	remote := envfile.Map(pulled)
	// Only the keys matter here, so nothing is looked up.
	table := dotenv.NewTable(func(string) (string, bool) { return "", false })
	keys := make(map[string]bool)
	written := make(map[string]bool)

	var b strings.Builder
	writePair := func(p dotenv.Pair) error {
		line, err := envfile.Render([]dotenv.Pair{p})
		if err != nil {
			return err
		}
		b.WriteString(line)
		written[p.Key] = true
		return nil
	}

	var lines []string
	if current != "" {
		lines = strings.Split(strings.TrimSuffix(current, "\n"), "\n")
	}
	for i, line := range lines {
		pair, ok, err := dotenv.ParseLine(line, table)
		if err != nil {
			return "", 0, &envfile.LineError{Path: path, Num: i + 1, Err: err}
		}
		if ok {
			keys[pair.Key] = true
			if value, isRemote := remote[pair.Key]; isRemote {
				if !written[pair.Key] {
					if err := writePair(dotenv.Pair{Key: pair.Key, Value: value}); err != nil {
						return "", 0, err
					}
				}
				continue
			}
		}
		b.WriteString(line + "\n")
	}
	for _, p := range pulled {
		if written[p.Key] {
			continue
		}
		keys[p.Key] = true
		if err := writePair(p); err != nil {
			return "", 0, err
		}
	}
	return b.String(), len(keys), nil
}

// lineDiff returns a unified-style listing of changed lines between a and
// b, or "" when they are equal. Values on changed lines are masked.
func lineDiff(a, b string) string {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		var mark string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			mark = "+ "
		case diffmatchpatch.DiffDelete:
			mark = "- "
		default:
			continue
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(mark + maskLine(strings.TrimSuffix(line, "\n")) + "\n")
		}
	}
	return out.String()
}

// maskLine masks the value of a KEY=VALUE line.
func maskLine(line string) string {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return line
	}
	return key + "=" + MaskValue(value)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
