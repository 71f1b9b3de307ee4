package main

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/binsquare/envline/dotenv"
	"github.com/binsquare/envline/envfile"
)

func lookupOf(m map[string]string) dotenv.LookupFunc {
	return func(name string) (string, bool) {
		v, ok := m[name]
		return v, ok
	}
}

func TestResolveFilesChainsEarlierFiles(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, ".env")
	local := filepath.Join(dir, ".env.local")
	writeTestFile(t, base, "HOST=db\nPORT=5432\nURL=postgres://${HOST}:${PORT}\n")
	writeTestFile(t, local, "PORT=6543\nURL=postgres://${HOST}:${PORT}/local\nHOME_URL=$HOME\n")

	res, err := resolveFiles(resolveOptions{
		Files: []string{base, local},
		Env:   lookupOf(map[string]string{"HOME": "/home/me"}),
	})
	if err != nil {
		t.Fatalf("resolveFiles: %v", err)
	}
	want := []dotenv.Pair{
		{Key: "HOST", Value: "db"},
		{Key: "PORT", Value: "6543"},
		{Key: "URL", Value: "postgres://db:6543/local"},
		{Key: "HOME_URL", Value: "/home/me"},
	}
	if !reflect.DeepEqual(res.Pairs, want) {
		t.Errorf("Pairs = %v, want %v", res.Pairs, want)
	}
}

func TestResolveFilesOuterEnvWins(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.env")
	second := filepath.Join(dir, "b.env")
	writeTestFile(t, first, "NAME=file\nOTHER=file\n")
	writeTestFile(t, second, "GREETING=hi ${NAME} from ${OTHER}\n")
	env := lookupOf(map[string]string{"NAME": "process"})

	res, err := resolveFiles(resolveOptions{Files: []string{first, second}, Env: env})
	if err != nil {
		t.Fatal(err)
	}
	if got := envfile.Map(res.Pairs)["GREETING"]; got != "hi process from file" {
		t.Errorf("GREETING = %q", got)
	}
}

func TestResolveFilesFailFast(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	writeTestFile(t, path, "A=1\nB='open\n")

	_, err := resolveFiles(resolveOptions{Files: []string{path}, Env: lookupOf(nil)})
	var parseErr *dotenv.LineParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error = %v, want a LineParseError", err)
	}
	if parseErr.Index != 6 {
		t.Errorf("Index = %d, want 6", parseErr.Index)
	}

	_, err = resolveFiles(resolveOptions{Files: []string{filepath.Join(dir, "missing.env")}})
	if !envfile.IsNotFound(err) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestResolveFilesCollect(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	missing := filepath.Join(dir, "missing.env")
	writeTestFile(t, path, "A=1\nB=two words\nC=3\n")

	res, err := resolveFiles(resolveOptions{Files: []string{path, missing}, Collect: true, Env: lookupOf(nil)})
	if err != nil {
		t.Fatalf("resolveFiles: %v", err)
	}
	if len(res.Pairs) != 2 {
		t.Errorf("Pairs = %v, want A and C", res.Pairs)
	}
	if len(res.Problems) != 1 || res.Problems[0].Num != 2 {
		t.Errorf("Problems = %v", res.Problems)
	}
	if !reflect.DeepEqual(res.Missing, []string{missing}) {
		t.Errorf("Missing = %v", res.Missing)
	}
}

func TestResolveEnvPairsSkip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	writeTestFile(t, path, "ENVLINE_TEST_OK=1\n'bad\n")

	pairs, err := resolveEnvPairs(EnvConfig{Files: []string{path, filepath.Join(dir, "nope")}, OnError: onErrorSkip})
	if err != nil {
		t.Fatalf("resolveEnvPairs: %v", err)
	}
	if !reflect.DeepEqual(pairs, []dotenv.Pair{{Key: "ENVLINE_TEST_OK", Value: "1"}}) {
		t.Errorf("pairs = %v", pairs)
	}

	if _, err := resolveEnvPairs(EnvConfig{Files: []string{path}}); err == nil {
		t.Error("expected error with the default on_error")
	}
}

func TestDescribeError(t *testing.T) {
	err := &envfile.LineError{Path: "app.env", Num: 3, Err: &dotenv.LineParseError{Line: "KEY=a b", Index: 6}}
	got := describeError(err)
	want := "app.env:3: error parsing line: 'KEY=a b', error at line index: 6\n    KEY=a b\n          ^"
	if got != want {
		t.Errorf("describeError() =\n%s\nwant\n%s", got, want)
	}
	if got := describeError(errors.New("plain")); got != "plain" {
		t.Errorf("describeError(plain) = %q", got)
	}
}
