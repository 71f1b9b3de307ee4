package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/binsquare/envline/dotenv"
	"github.com/binsquare/envline/envfile"
)

// resolveOptions controls how the files of an environment are combined.
type resolveOptions struct {
	Files []string
	// Collect keeps going past bad lines and missing files, recording them
	// instead of failing.
	Collect bool
	// Env is the outer environment; nil means the process environment.
	Env dotenv.LookupFunc
}

type resolved struct {
	Pairs    []dotenv.Pair
	Problems []*envfile.LineError
	Missing  []string
}

// resolveFiles parses the files in order, each with its own substitution
// table seeded with the pairs of the files before it. Substitutions check
// the outer environment first; override only matters when the pairs are
// applied to a process.
func resolveFiles(opts resolveOptions) (resolved, error) {
	outer := opts.Env
	if outer == nil {
		outer = dotenv.OSEnv
	}

	var out resolved
	var sets [][]dotenv.Pair
	for _, path := range opts.Files {
		fileOpts := envfile.Options{Env: outer, Inherit: envfile.Merge(sets...), Path: path}

		if !opts.Collect {
			pairs, err := envfile.Read(path, fileOpts)
			if err != nil {
				return resolved{}, err
			}
			slog.Debug("loaded env file", "path", path, "pairs", len(pairs))
			sets = append(sets, pairs)
			continue
		}

		pairs, problems, err := envfile.ReadAll(path, fileOpts)
		if err != nil {
			if envfile.IsNotFound(err) {
				out.Missing = append(out.Missing, path)
				continue
			}
			return resolved{}, err
		}
		slog.Debug("loaded env file", "path", path, "pairs", len(pairs), "problems", len(problems))
		out.Problems = append(out.Problems, problems...)
		sets = append(sets, pairs)
	}
	out.Pairs = envfile.Merge(sets...)
	return out, nil
}

// resolveEnvPairs resolves an environment honouring its on_error policy:
// "skip" logs bad lines and missing files as warnings.
func resolveEnvPairs(env EnvConfig) ([]dotenv.Pair, error) {
	res, err := resolveFiles(resolveOptions{
		Files:   env.GetFiles(),
		Collect: env.OnError == onErrorSkip,
	})
	if err != nil {
		return nil, err
	}
	for _, path := range res.Missing {
		slog.Warn("env file not found, skipping", "path", path)
	}
	for _, p := range res.Problems {
		slog.Warn("skipping invalid line", "path", p.Path, "line", p.Num, "err", p.Err)
	}
	return res.Pairs, nil
}

// describeError renders err for the terminal, adding a caret diagnostic
// when it comes from a bad line.
func describeError(err error) string {
	var parseErr *dotenv.LineParseError
	if !errors.As(err, &parseErr) {
		return err.Error()
	}
	return fmt.Sprintf("%v\n%s", err, indent(parseErr.Caret(), "    "))
}
