package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/binsquare/envline/dotenv"
	"github.com/binsquare/envline/provider"
)

// chdirForTest mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}

func setProjectConfigPath(t *testing.T, path string) {
	t.Helper()
	old := projectConfigPath
	projectConfigPath = path
	t.Cleanup(func() { projectConfigPath = old })
}

func TestSelectEnvironmentFromProject(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, projectConfigName)
	writeTestFile(t, cfgPath, `project: app
default_env: dev
envs:
  dev:
    files: [.env]
  prod:
    files: [.env.prod]
    override: true
`)
	writeTestFile(t, filepath.Join(dir, ".env"), "MODE=dev\n")
	setProjectConfigPath(t, cfgPath)

	env, err := selectEnvironment(envSelection{})
	if err != nil {
		t.Fatalf("selectEnvironment: %v", err)
	}
	if env.Name != "dev" || env.Config.Override {
		t.Errorf("env = %+v", env)
	}
	pairs, err := env.Pairs()
	if err != nil {
		t.Fatalf("Pairs: %v", err)
	}
	if want := []dotenv.Pair{{Key: "MODE", Value: "dev"}}; !reflect.DeepEqual(pairs, want) {
		t.Errorf("Pairs = %v, want %v", pairs, want)
	}

	env, err = selectEnvironment(envSelection{Name: "prod"})
	if err != nil {
		t.Fatalf("selectEnvironment(prod): %v", err)
	}
	if !env.Config.Override {
		t.Error("prod should override")
	}

	if _, err := selectEnvironment(envSelection{Name: "staging"}); err == nil || !strings.Contains(err.Error(), "dev, prod") {
		t.Errorf("unknown env error = %v", err)
	}
}

func TestSelectEnvironmentFileFlags(t *testing.T) {
	dir := t.TempDir()
	chdirForTest(t, dir)
	setProjectConfigPath(t, "")
	extra := filepath.Join(dir, "extra.env")
	writeTestFile(t, extra, "EXTRA=1\n")

	env, err := selectEnvironment(envSelection{Files: []string{extra}, Override: true})
	if err != nil {
		t.Fatalf("selectEnvironment: %v", err)
	}
	if env.Name != "default" || !env.Config.Override {
		t.Errorf("env = %+v", env)
	}
	if !reflect.DeepEqual(env.Config.Files, []string{extra}) {
		t.Errorf("Files = %v", env.Config.Files)
	}
}

func TestSelectEnvironmentNothingFound(t *testing.T) {
	chdirForTest(t, t.TempDir())
	setProjectConfigPath(t, "")

	_, err := selectEnvironment(envSelection{})
	if !errors.Is(err, errNoProjectConfig) {
		t.Errorf("err = %v, want errNoProjectConfig", err)
	}
}

func TestNewProvider(t *testing.T) {
	t.Setenv("ENVLINE_TEST_KEY", "0123456789abcdef0123456789abcdef")
	dir := t.TempDir()
	globalCfg := GlobalConfig{Providers: map[string]provider.Config{
		"local": {
			Type:       "local-store",
			Path:       filepath.Join(dir, "store.db"),
			Encryption: &provider.EncryptionConfig{KeyEnv: "ENVLINE_TEST_KEY"},
		},
	}}

	if _, err := NewProvider(environment{Name: "dev"}, globalCfg); err == nil {
		t.Error("expected error for env without provider")
	}
	if _, err := NewProvider(environment{Name: "dev", Config: EnvConfig{Provider: "missing"}}, globalCfg); err == nil {
		t.Error("expected error for unknown provider name")
	}

	env := environment{Name: "dev", Config: EnvConfig{Provider: "local", PathPrefix: "/app/dev"}}
	p, err := NewProvider(env, globalCfg)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	ctx := context.Background()
	pairs := []dotenv.Pair{{Key: "B", Value: "2"}, {Key: "A", Value: "1"}}
	if err := p.Push(ctx, env.Config.Namespace(), pairs); err != nil {
		t.Fatalf("Push: %v", err)
	}
	snap, err := provider.PullSnapshot(ctx, p, env.Config.Namespace())
	if err != nil {
		t.Fatalf("PullSnapshot: %v", err)
	}
	want := []dotenv.Pair{{Key: "A", Value: "1"}, {Key: "B", Value: "2"}}
	if !reflect.DeepEqual(snap.Pairs, want) {
		t.Errorf("Pairs = %v, want %v", snap.Pairs, want)
	}
	if snap.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}
}
