package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCheckFilesOK(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	writeTestFile(t, path, "A=1\n# comment\nB=\"two\"\n")

	var buf bytes.Buffer
	if err := checkFiles(&buf, EnvConfig{Files: []string{path}}); err != nil {
		t.Fatalf("checkFiles: %v", err)
	}
	if got := buf.String(); got != "ok: 1 file(s), 2 key(s)\n" {
		t.Errorf("output = %q", got)
	}
}

func TestCheckFilesReportsEverything(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	writeTestFile(t, path, "A=1\nB=x y\nC=3\nD='open\n")
	missing := filepath.Join(dir, ".env.local")

	var buf bytes.Buffer
	err := checkFiles(&buf, EnvConfig{Files: []string{path, missing}})
	if !errors.Is(err, errCheckFailed) {
		t.Fatalf("err = %v, want errCheckFailed", err)
	}
	if !strings.Contains(err.Error(), "3 problem(s)") {
		t.Errorf("err = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		missing + ": file not found",
		path + ":2:",
		path + ":4:",
		"    B=x y\n        ^",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWatchFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	writeTestFile(t, path, "A=1\n")

	ctx, cancel := context.WithCancel(context.Background())
	calls := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- watchFiles(ctx, []string{path}, func() { calls <- struct{}{} })
	}()

	wait := func(what string) {
		t.Helper()
		select {
		case <-calls:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %s", what)
		}
	}
	wait("initial run")

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("A=2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	wait("run after change")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watchFiles: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watchFiles did not stop")
	}
}

func TestIndent(t *testing.T) {
	if got := indent("a\nb", "  "); got != "  a\n  b" {
		t.Errorf("indent = %q", got)
	}
}
