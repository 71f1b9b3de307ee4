package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/binsquare/envline/dotenv"
	"github.com/binsquare/envline/envfile"
	"github.com/binsquare/envline/provider"
)

var (
	// projectConfigPath can be set via --project to point to a specific .envline.yaml.
	projectConfigPath string
	verbose           bool
	quiet             bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.ExitCode())
	}
	fmt.Fprintf(os.Stderr, "error: %s\n", describeError(err))
	os.Exit(1)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "envline",
		Short: "envline parses .env files and runs commands with them",
		Long: `envline reads .env files with shell-like quoting, escapes and $VAR / ${VAR}
substitution, reports bad lines precisely, and injects the result into
processes. Environments can be synced with secret backends.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			slog.SetDefault(newLogger(os.Stderr, verbose, quiet))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.PersistentFlags().StringVar(&projectConfigPath, "project", "", "path to .envline.yaml (auto-detects by walking up from cwd if not set)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug details")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log errors")

	cmd.AddCommand(
		newInitCmd(),
		newRunCmd(),
		newExportCmd(),
		newCheckCmd(),
		newGetCmd(),
		newSetCmd(),
		newImportCmd(),
		newPullCmd(),
		newKeygenCmd(),
		newProvidersCmd(),
		newValidateCmd(),
	)
	return cmd
}

// addEnvFlags registers the flags that select an environment.
func addEnvFlags(c *cobra.Command, sel *envSelection) {
	c.Flags().StringVar(&sel.Name, "env", "", "environment name to use (defaults to project default_env)")
	c.Flags().StringArrayVarP(&sel.Files, "file", "f", nil, "env file to load instead of the env's files (repeatable, in order)")
}

func newInitCmd() *cobra.Command {
	var globalOnly bool
	c := &cobra.Command{
		Use:   "init",
		Short: "Interactively configure envline",
		RunE: func(cmd *cobra.Command, args []string) error {
			if globalOnly {
				return runInteractiveGlobalSetup(cmd.Context())
			}
			return runInteractiveInit(cmd.Context())
		},
	}
	c.Flags().BoolVar(&globalOnly, "global", false, "configure the global config (providers)")
	return c
}

func newRunCmd() *cobra.Command {
	var sel envSelection
	c := &cobra.Command{
		Use:   "run [--env ENV] [-f FILE]... [--override] -- COMMAND [ARGS...]",
		Short: "Run a command with the environment's variables set",
		Long: `Run a command with the variables of the selected environment added to the
inherited environment. Variables already set are kept unless --override is
given or the env sets override: true.

Examples:
  envline run -- node server.js
  envline run --env prod -- ./my-app
  envline run -f .env -f .env.local -- npm start`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := selectEnvironment(sel)
			if err != nil {
				return err
			}
			pairs, err := env.Pairs()
			if err != nil {
				return err
			}
			slog.Info("injecting variables", "env", env.Name, "count", len(envfile.Merge(pairs)))
			return SpawnWithEnv(cmd.Context(), args[0], args[1:], pairs, env.Config.Override)
		},
	}
	addEnvFlags(c, &sel)
	c.Flags().BoolVar(&sel.Override, "override", false, "let file values replace variables already set")
	return c
}

func newExportCmd() *cobra.Command {
	var sel envSelection
	var format string
	c := &cobra.Command{
		Use:   "export",
		Short: "Print the resolved environment",
		Long: `Print the resolved environment to stdout.

Formats:
  plain   .env text that parses back to the same values
  shell   export KEY=VALUE lines for eval
  json    JSON object
  yaml    YAML mapping
  toml    TOML table

Examples:
  eval "$(envline export --format shell)"
  envline export --env dev --format json | jq .`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := selectEnvironment(sel)
			if err != nil {
				return err
			}
			pairs, err := env.Pairs()
			if err != nil {
				return err
			}
			return writeExport(cmd.OutOrStdout(), pairs, format)
		},
	}
	addEnvFlags(c, &sel)
	c.Flags().StringVar(&format, "format", "plain", "output format: "+strings.Join(exportFormats, ", "))
	return c
}

func newCheckCmd() *cobra.Command {
	var sel envSelection
	var watch bool
	c := &cobra.Command{
		Use:   "check",
		Short: "Report every bad line in the environment's files",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := selectEnvironment(sel)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !watch {
				return checkFiles(out, env.Config)
			}
			return watchFiles(cmd.Context(), env.Config.GetFiles(), func() {
				fmt.Fprintf(out, "--- %s\n", time.Now().Format("15:04:05"))
				if err := checkFiles(out, env.Config); err != nil && !errors.Is(err, errCheckFailed) {
					slog.Error("check failed", "err", err)
				}
			})
		},
	}
	addEnvFlags(c, &sel)
	c.Flags().BoolVarP(&watch, "watch", "w", false, "re-check whenever a file changes")
	return c
}

func newGetCmd() *cobra.Command {
	var sel envSelection
	var raw bool
	var all bool
	c := &cobra.Command{
		Use:   "get [--env ENV] KEY",
		Short: "Print a resolved value (masked by default)",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := selectEnvironment(sel)
			if err != nil {
				return err
			}
			pairs, err := env.Pairs()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			show := func(v string) string {
				if raw {
					return v
				}
				return MaskValue(v)
			}
			if all {
				fmt.Fprintf(cmd.ErrOrStderr(), "# env: %s\n", env.Name)
				for _, p := range envfile.Merge(pairs) {
					fmt.Fprintf(out, "%s=%s\n", p.Key, show(p.Value))
				}
				return nil
			}
			if len(args) != 1 {
				return errors.New("provide KEY or use --all")
			}
			value, ok := envfile.Map(pairs)[args[0]]
			if !ok {
				return fmt.Errorf("%s is not set in env %q", args[0], env.Name)
			}
			fmt.Fprintln(out, show(value))
			return nil
		},
	}
	addEnvFlags(c, &sel)
	c.Flags().BoolVar(&raw, "raw", false, "print the raw value (use with care)")
	c.Flags().BoolVar(&all, "all", false, "print every key of the environment")
	return c
}

func newSetCmd() *cobra.Command {
	var sel envSelection
	var fromFile string
	var promptSecret bool
	c := &cobra.Command{
		Use:   "set --env ENV KEY [--file PATH|--prompt]",
		Short: "Push one value to the env's provider without exposing it on the command line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !dotenv.ValidKey(key) {
				return fmt.Errorf("%q is not a valid key", key)
			}
			var value string
			switch {
			case fromFile != "" && promptSecret:
				return errors.New("use only one of --file or --prompt")
			case fromFile != "":
				b, err := os.ReadFile(fromFile)
				if err != nil {
					return fmt.Errorf("read secret file: %w", err)
				}
				value = strings.TrimRight(string(b), "\r\n")
			case promptSecret:
				v, err := readSecretFromPrompt("Value for " + key + ": ")
				if err != nil {
					return err
				}
				value = v
			default:
				return errors.New("provide --file or --prompt to supply the value without shell history leakage")
			}
			env, err := selectEnvironment(sel)
			if err != nil {
				return err
			}
			return PushPairs(cmd.Context(), env, []dotenv.Pair{{Key: key, Value: value}})
		},
	}
	c.Flags().StringVar(&sel.Name, "env", "", "environment name to target")
	c.Flags().StringVar(&fromFile, "file", "", "path to a file holding the value")
	c.Flags().BoolVar(&promptSecret, "prompt", false, "prompt for the value (no echo)")
	return c
}

func newImportCmd() *cobra.Command {
	var sel envSelection
	var deleteAfter bool
	c := &cobra.Command{
		Use:   "import PATH --env ENV",
		Short: "Parse a .env file and push it to the env's provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sel.Name == "" {
				return errors.New("provide --env to select which environment to import into")
			}
			path := args[0]
			pairs, err := envfile.Read(path, envfile.Options{Path: path})
			if err != nil {
				return err
			}
			pairs = envfile.Merge(pairs)
			if len(pairs) == 0 {
				return fmt.Errorf("no entries found in %s", path)
			}
			env, err := selectEnvironment(sel)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Importing %d keys into env %s from %s\n", len(pairs), env.Name, path)
			for _, p := range pairs {
				fmt.Fprintf(cmd.OutOrStdout(), " - %s\n", p.Key)
			}
			if err := PushPairs(cmd.Context(), env, pairs); err != nil {
				return err
			}
			if deleteAfter {
				if err := os.Remove(path); err != nil {
					return fmt.Errorf("import succeeded but failed to delete %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", path)
			}
			return nil
		},
	}
	c.Flags().StringVar(&sel.Name, "env", "", "environment name to import into")
	c.Flags().BoolVar(&deleteAfter, "delete", false, "delete the source file after a successful import")
	return c
}

func newPullCmd() *cobra.Command {
	var sel envSelection
	var opts pullOptions
	c := &cobra.Command{
		Use:   "pull --env ENV",
		Short: "Write the env's provider values to a .env file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sel.Name == "" {
				return errors.New("provide --env to select which environment to pull")
			}
			env, err := selectEnvironment(sel)
			if err != nil {
				return err
			}
			snap, err := PullSnapshot(cmd.Context(), env)
			if err != nil {
				return err
			}
			if !snap.UpdatedAt.IsZero() {
				slog.Info("pulled", "env", env.Name, "count", len(snap.Pairs), "updated", snap.UpdatedAt.Format(time.RFC3339))
			}
			return writePulled(cmd.Context(), cmd.OutOrStdout(), snap.Pairs, opts)
		},
	}
	c.Flags().StringVar(&sel.Name, "env", "", "environment name to pull")
	c.Flags().StringVar(&opts.Out, "out", envfile.DefaultName, "path to the output .env file")
	c.Flags().BoolVar(&opts.Merge, "merge", false, "keep keys that only exist in the current file (provider wins on conflicts)")
	c.Flags().BoolVar(&opts.Backup, "backup", true, "write a .bak file before overwriting")
	c.Flags().BoolVar(&opts.Check, "check", false, "only print the drift; do not write")
	return c
}

func newKeygenCmd() *cobra.Command {
	var output string
	c := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a local-store encryption key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = DefaultKeyPath()
			}
			if err := provider.GenerateKeyFile(output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated encryption key: %s\n", output)
			fmt.Fprintln(cmd.OutOrStdout(), "Keep this file secure and backed up. Do not commit to version control.")
			return nil
		},
	}
	c.Flags().StringVarP(&output, "output", "o", "", "output path (default: $XDG_DATA_HOME/envline/key)")
	return c
}

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the available provider types",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, typ := range provider.ListTypes() {
				info, _ := provider.Get(typ)
				fmt.Fprintf(out, "%-20s %s\n", typ, info.Description)
				if len(info.RequiredFields) > 0 {
					fmt.Fprintf(out, "%-20s   required: %s\n", "", strings.Join(info.RequiredFields, ", "))
				}
				if len(info.OptionalFields) > 0 {
					fmt.Fprintf(out, "%-20s   optional: %s\n", "", strings.Join(info.OptionalFields, ", "))
				}
			}
			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := loadProject(envSelection{})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Project: %s\n", project.Project)
			fmt.Fprintf(out, "Envs: %d (default: %s)\n", len(project.Envs), project.DefaultEnv)

			needsGlobal := false
			for _, env := range project.Envs {
				if env.Provider != "" {
					needsGlobal = true
				}
			}
			if !needsGlobal {
				fmt.Fprintln(out, "Configuration looks good.")
				return nil
			}
			globalCfg, err := LoadGlobalConfig("")
			if err != nil {
				return err
			}
			missing := missingProviders(project, globalCfg)
			if len(missing) > 0 {
				fmt.Fprintf(out, "\nMissing providers in %s:\n", DefaultGlobalConfigPath())
				for _, m := range missing {
					fmt.Fprintf(out, "  %s\n", m)
				}
				return errors.New("missing providers")
			}
			fmt.Fprintln(out, "Configuration looks good.")
			return nil
		},
	}
}

// missingProviders lists "env -> provider" for envs whose provider is not
// defined in the global config or has an unknown type.
func missingProviders(project ProjectConfig, globalCfg GlobalConfig) []string {
	var missing []string
	for _, name := range envNames(project) {
		env := project.Envs[name]
		if env.Provider == "" {
			continue
		}
		cfg, ok := globalCfg.Providers[env.Provider]
		if !ok {
			missing = append(missing, fmt.Sprintf("%s -> %s", name, env.Provider))
			continue
		}
		if _, ok := provider.Get(cfg.Type); !ok {
			missing = append(missing, fmt.Sprintf("%s -> %s (unknown type %q)", name, env.Provider, cfg.Type))
		}
	}
	return missing
}
