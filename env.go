package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/binsquare/envline/dotenv"
	"github.com/binsquare/envline/envfile"
	"github.com/binsquare/envline/provider"
)

// envSelection is what the command line asks for: an env name plus
// optional overrides of its config.
type envSelection struct {
	Name     string
	Files    []string
	Override bool
}

// environment is a resolved env selection.
type environment struct {
	Name    string
	Project ProjectConfig
	Config  EnvConfig
}

// loadProject finds the project config. Without one it falls back to the
// nearest .env file, and without that to the files given on the command
// line.
func loadProject(sel envSelection) (ProjectConfig, error) {
	if projectConfigPath != "" {
		return LoadProjectConfig(projectConfigPath)
	}
	path, err := FindProjectConfig("")
	if err == nil {
		slog.Debug("using project config", "path", path)
		return LoadProjectConfig(path)
	}
	if !errors.Is(err, errNoProjectConfig) {
		return ProjectConfig{}, err
	}

	if len(sel.Files) > 0 {
		return implicitProject(sel.Files[0]), nil
	}
	envPath, findErr := envfile.Find("", envfile.DefaultName)
	if findErr != nil {
		return ProjectConfig{}, fmt.Errorf("%w; %v", err, findErr)
	}
	slog.Debug("no project config, using env file", "path", envPath)
	return implicitProject(envPath), nil
}

func selectEnvironment(sel envSelection) (environment, error) {
	project, err := loadProject(sel)
	if err != nil {
		return environment{}, err
	}
	name, err := ResolveEnv(project, sel.Name)
	if err != nil {
		return environment{}, err
	}
	cfg := project.Envs[name]
	if len(sel.Files) > 0 {
		cfg.Files = sel.Files
	}
	cfg.Override = cfg.Override || sel.Override
	return environment{Name: name, Project: project, Config: cfg}, nil
}

// Pairs resolves the environment's files.
func (e environment) Pairs() ([]dotenv.Pair, error) {
	return resolveEnvPairs(e.Config)
}

func NewProvider(env environment, globalCfg GlobalConfig) (provider.Provider, error) {
	name := env.Config.Provider
	if name == "" {
		return nil, fmt.Errorf("env %q has no provider in %s", env.Name, projectConfigName)
	}
	cfg, ok := globalCfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("no provider named %q configured in %s", name, DefaultGlobalConfigPath())
	}
	p, err := provider.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", name, err)
	}
	return p, nil
}

// openProvider loads the global config and opens the env's provider.
func openProvider(env environment) (provider.Provider, error) {
	globalCfg, err := LoadGlobalConfig("")
	if err != nil {
		return nil, err
	}
	return NewProvider(env, globalCfg)
}

// PushPairs stores pairs in the env's provider.
func PushPairs(ctx context.Context, env environment, pairs []dotenv.Pair) error {
	p, err := openProvider(env)
	if err != nil {
		return err
	}
	ns := env.Config.Namespace()
	if err := p.Push(ctx, ns, pairs); err != nil {
		return err
	}
	slog.Info("pushed pairs", "env", env.Name, "namespace", ns.String(), "count", len(pairs))
	return nil
}

// PullSnapshot fetches the env's pairs from its provider.
func PullSnapshot(ctx context.Context, env environment) (provider.Snapshot, error) {
	p, err := openProvider(env)
	if err != nil {
		return provider.Snapshot{}, err
	}
	return provider.PullSnapshot(ctx, p, env.Config.Namespace())
}
