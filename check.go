package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

var errCheckFailed = errors.New("env files have errors")

// checkFiles parses every file, reporting all bad lines with a caret
// diagnostic. It returns errCheckFailed when anything was reported.
func checkFiles(w io.Writer, env EnvConfig) error {
	res, err := resolveFiles(resolveOptions{
		Files:   env.GetFiles(),
		Collect: true,
	})
	if err != nil {
		return err
	}
	for _, path := range res.Missing {
		fmt.Fprintf(w, "%s: file not found\n", path)
	}
	for _, p := range res.Problems {
		fmt.Fprintf(w, "%s\n", describeError(p))
	}
	if n := len(res.Missing) + len(res.Problems); n > 0 {
		return fmt.Errorf("%w: %d problem(s)", errCheckFailed, n)
	}
	fmt.Fprintf(w, "ok: %d file(s), %d key(s)\n", len(env.GetFiles()), len(res.Pairs))
	return nil
}

// watchFiles calls fn once and again whenever one of files changes, until
// ctx is done. Parent directories are watched so that editors replacing a
// file by rename are seen.
func watchFiles(ctx context.Context, files []string, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Close()

	watched := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		watched[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	fn()
	// Editors often emit several events per save.
	const settle = 100 * time.Millisecond
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !watched[filepath.Clean(ev.Name)] || ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			slog.Debug("env file changed", "path", ev.Name, "op", ev.Op.String())
			pending = time.After(settle)
		case <-pending:
			pending = nil
			fn()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "err", err)
		}
	}
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}
