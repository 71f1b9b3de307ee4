package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/binsquare/envline/envfile"
	"github.com/binsquare/envline/provider"
)

const (
	projectConfigName = ".envline.yaml"
	appName           = "envline"

	onErrorFail = "fail"
	onErrorSkip = "skip"
)

var errNoProjectConfig = errors.New("no project config found")

type ProjectConfig struct {
	Project    string               `yaml:"project"`
	DefaultEnv string               `yaml:"default_env"`
	Envs       map[string]EnvConfig `yaml:"envs"`
}

// EnvConfig describes one environment: the files that make it up and,
// optionally, the provider it is synced with.
type EnvConfig struct {
	Files      []string `yaml:"files,omitempty"`
	Override   bool     `yaml:"override,omitempty"`
	OnError    string   `yaml:"on_error,omitempty"`
	Provider   string   `yaml:"provider,omitempty"`
	PathPrefix string   `yaml:"path_prefix,omitempty"`
	Prefix     string   `yaml:"prefix,omitempty"`
}

// GetFiles returns the configured files, defaulting to .env.
func (e EnvConfig) GetFiles() []string {
	if len(e.Files) == 0 {
		return []string{envfile.DefaultName}
	}
	return e.Files
}

func (e EnvConfig) Namespace() provider.Namespace {
	return provider.Namespace{PathPrefix: e.PathPrefix, Prefix: e.Prefix}
}

type GlobalConfig struct {
	Providers map[string]provider.Config `yaml:"providers"`
}

// LoadProjectConfig reads and validates a project config. Relative file
// paths in envs are resolved against the config's directory.
func LoadProjectConfig(path string) (ProjectConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ProjectConfig{}, fmt.Errorf("%w at %s. Run: envline init", errNoProjectConfig, path)
		}
		return ProjectConfig{}, fmt.Errorf("read project config: %w", err)
	}
	var cfg ProjectConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return ProjectConfig{}, fmt.Errorf("parse project config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return ProjectConfig{}, fmt.Errorf("%s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for name, env := range cfg.Envs {
		files := env.GetFiles()
		resolved := make([]string, len(files))
		for i, f := range files {
			if !filepath.IsAbs(f) {
				f = filepath.Join(dir, f)
			}
			resolved[i] = f
		}
		env.Files = resolved
		cfg.Envs[name] = env
	}
	return cfg, nil
}

func (c ProjectConfig) Validate() error {
	if c.Project == "" {
		return errors.New("project config missing project name")
	}
	if len(c.Envs) == 0 {
		return errors.New("project config has no envs defined")
	}
	if c.DefaultEnv == "" {
		return errors.New("project config missing default_env")
	}
	if _, ok := c.Envs[c.DefaultEnv]; !ok {
		return fmt.Errorf("default_env %q not found in envs", c.DefaultEnv)
	}
	for name, env := range c.Envs {
		switch env.OnError {
		case "", onErrorFail, onErrorSkip:
		default:
			return fmt.Errorf("env %q: on_error must be %q or %q, got %q", name, onErrorFail, onErrorSkip, env.OnError)
		}
	}
	return nil
}

// FindProjectConfig walks up from start (the working directory when
// empty) looking for .envline.yaml.
func FindProjectConfig(start string) (string, error) {
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		start = wd
	}
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, projectConfigName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w in %s or any parent. Run: envline init", errNoProjectConfig, start)
		}
		dir = parent
	}
}

// implicitProject stands in for a missing project config: a single
// "default" env backed by the nearest .env file.
func implicitProject(envPath string) ProjectConfig {
	return ProjectConfig{
		Project:    filepath.Base(filepath.Dir(envPath)),
		DefaultEnv: "default",
		Envs: map[string]EnvConfig{
			"default": {Files: []string{envPath}},
		},
	}
}

func LoadGlobalConfig(path string) (GlobalConfig, error) {
	if path == "" {
		path = DefaultGlobalConfigPath()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return GlobalConfig{}, fmt.Errorf("no global config found at %s; add a providers section to use remote backends", path)
		}
		return GlobalConfig{}, fmt.Errorf("read global config: %w", err)
	}
	var cfg GlobalConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return GlobalConfig{}, fmt.Errorf("parse global config %s: %w", path, err)
	}
	if len(cfg.Providers) == 0 {
		return GlobalConfig{}, fmt.Errorf("no providers configured in %s", path)
	}
	return cfg, nil
}

func ResolveEnv(cfg ProjectConfig, requested string) (string, error) {
	if requested != "" {
		if _, ok := cfg.Envs[requested]; ok {
			return requested, nil
		}
		return "", fmt.Errorf("unknown env %q; valid envs: %s", requested, joinEnvKeys(cfg))
	}
	return cfg.DefaultEnv, nil
}

// DefaultGlobalConfigPath prefers $XDG_CONFIG_HOME/envline/config.yaml when
// it exists and falls back to ~/.envline/config.yaml.
func DefaultGlobalConfigPath() string {
	xdgPath := filepath.Join(xdg.ConfigHome, appName, "config.yaml")
	if _, err := os.Stat(xdgPath); err == nil {
		return xdgPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return xdgPath
	}
	return filepath.Join(home, "."+appName, "config.yaml")
}

// DefaultKeyPath is where keygen writes the local-store key.
func DefaultKeyPath() string {
	return filepath.Join(xdg.DataHome, appName, "key")
}

func envNames(cfg ProjectConfig) []string {
	keys := make([]string, 0, len(cfg.Envs))
	for k := range cfg.Envs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinEnvKeys(cfg ProjectConfig) string {
	return strings.Join(envNames(cfg), ", ")
}
