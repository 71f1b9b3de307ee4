package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/binsquare/envline/envfile"
	"github.com/binsquare/envline/provider"
)

func runInteractiveInit(ctx context.Context) error {
	reader := bufio.NewReader(os.Stdin)

	cwd, _ := os.Getwd()
	project := prompt(reader, "Project name", filepath.Base(cwd))
	if project == "" {
		return fmt.Errorf("project name is required")
	}
	envName := prompt(reader, "Environment name", "dev")
	files := strings.Fields(prompt(reader, "Env files, in load order (space separated)", detectEnvFiles(envName)))
	onError := prompt(reader, "On a bad line: fail or skip", onErrorFail)
	providerName := prompt(reader, "Provider name for import/pull (as defined in the global config, blank for none)", "")

	envCfg := EnvConfig{Files: files, OnError: onError, Provider: providerName}
	if providerName != "" {
		envCfg.PathPrefix = prompt(reader, "Path prefix", fmt.Sprintf("/%s/%s/", project, envName))
	}

	projectCfg := ProjectConfig{
		Project:    project,
		DefaultEnv: envName,
		Envs:       map[string]EnvConfig{envName: envCfg},
	}
	if err := projectCfg.Validate(); err != nil {
		return err
	}

	cfgPath := projectConfigName
	if _, err := os.Stat(cfgPath); err == nil && !confirm(reader, fmt.Sprintf("%s exists. Overwrite?", cfgPath)) {
		return fmt.Errorf("aborted; %s already exists", cfgPath)
	}
	raw, err := yaml.Marshal(projectCfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(cfgPath, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", cfgPath, err)
	}
	fmt.Printf("Wrote %s\n", cfgPath)

	if providerName == "" || len(files) == 0 {
		return nil
	}
	if !confirm(reader, fmt.Sprintf("Push %s to provider %s now?", files[0], providerName)) {
		return nil
	}
	pairs, err := envfile.Read(files[0], envfile.Options{Path: files[0]})
	if err != nil {
		return err
	}
	env := environment{Name: envName, Project: projectCfg, Config: envCfg}
	return PushPairs(ctx, env, pairs)
}

// runInteractiveGlobalSetup writes a global config with an encrypted
// local-store provider, generating its key when needed.
func runInteractiveGlobalSetup(_ context.Context) error {
	reader := bufio.NewReader(os.Stdin)

	cfgPath := prompt(reader, "Global config path", DefaultGlobalConfigPath())
	keyPath := prompt(reader, "Local store key file", DefaultKeyPath())
	storePath := prompt(reader, "Local store path", filepath.Join(filepath.Dir(keyPath), "store.db"))

	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		if err := provider.GenerateKeyFile(keyPath); err != nil {
			return err
		}
		fmt.Printf("Generated encryption key: %s\n", keyPath)
	}

	cfg := GlobalConfig{Providers: map[string]provider.Config{}}
	if existing, err := LoadGlobalConfig(cfgPath); err == nil {
		cfg = existing
	}
	if _, ok := cfg.Providers["local-store"]; ok && !confirm(reader, "Provider local-store exists. Replace?") {
		return fmt.Errorf("aborted; provider local-store already configured")
	}
	cfg.Providers["local-store"] = provider.Config{
		Type:       "local-store",
		Path:       storePath,
		Encryption: &provider.EncryptionConfig{Type: "aes-gcm", KeyFile: keyPath},
	}

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(cfgPath, raw, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", cfgPath, err)
	}
	fmt.Printf("Wrote %s\n", cfgPath)
	return nil
}

// detectEnvFiles suggests existing env files: .env, then .env.<env>, then
// .env.local.
func detectEnvFiles(envName string) string {
	var found []string
	for _, c := range []string{envfile.DefaultName, envfile.DefaultName + "." + envName, envfile.DefaultName + ".local"} {
		if _, err := os.Stat(c); err == nil {
			found = append(found, c)
		}
	}
	if len(found) == 0 {
		return envfile.DefaultName
	}
	return strings.Join(found, " ")
}
