package envfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/binsquare/envline/dotenv"
)

// DefaultName is the file Find looks for when no name is given.
const DefaultName = ".env"

// ErrNoEnvFile is returned by Find when no directory up to the root has the file.
var ErrNoEnvFile = errors.New("env file not found")

// Read parses the file at path and stops at the first bad line.
func Read(path string, opts Options) ([]dotenv.Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if opts.Path == "" {
		opts.Path = path
	}
	return Parse(f, opts)
}

// ReadAll parses the file at path, collecting bad lines instead of stopping.
func ReadAll(path string, opts Options) ([]dotenv.Pair, []*LineError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if opts.Path == "" {
		opts.Path = path
	}
	return ParseAll(f, opts)
}

// Find looks for name in dir and then in each parent directory, returning
// the first match. An empty dir means the working directory and an empty
// name means DefaultName.
func Find(dir, name string) (string, error) {
	if name == "" {
		name = DefaultName
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}

	start := dir
	for {
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: no %s in %s or any parent", ErrNoEnvFile, name, start)
		}
		dir = parent
	}
}

// IsNotFound reports whether err means the env file does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, ErrNoEnvFile)
}
