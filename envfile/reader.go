// Package envfile reads .env files line by line through package dotenv and
// applies the results: locating files, collecting pairs and installing them
// into the process environment.
package envfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/binsquare/envline/dotenv"
)

// maxLineSize bounds a single line; bufio's default of 64KiB is too small
// for certificates and similar inline values.
const maxLineSize = 1 << 20

// Options controls how a source is parsed.
type Options struct {
	// Env is consulted before the keys of the source itself when resolving
	// substitutions. Nil means the process environment.
	Env dotenv.LookupFunc
	// Inherit seeds the source's table, as if these pairs had been read
	// before its first line. Keys the source defines itself replace them.
	Inherit []dotenv.Pair
	// Path labels errors. Read and ReadAll fill it in.
	Path string
}

// LineError ties a parse failure to its position in a source.
type LineError struct {
	Path string
	Num  int
	Err  error
}

func (e *LineError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("line %d: %v", e.Num, e.Err)
	}
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Num, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Reader yields the pairs of one source in order. It owns the substitution
// table for that source, so it must not be shared between goroutines.
type Reader struct {
	scanner *bufio.Scanner
	table   *dotenv.Table
	path    string
	num     int
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader, opts Options) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	table := dotenv.NewTable(opts.Env)
	for _, p := range opts.Inherit {
		table.Set(p.Key, p.Value)
	}
	return &Reader{
		scanner: scanner,
		table:   table,
		path:    opts.Path,
	}
}

// Next returns the next pair, skipping blank and comment lines. It returns
// io.EOF after the last line. A *LineError reports a bad line; reading may
// continue after it.
func (r *Reader) Next() (dotenv.Pair, error) {
	for r.scanner.Scan() {
		r.num++
		pair, ok, err := dotenv.ParseLine(r.scanner.Text(), r.table)
		if err != nil {
			return dotenv.Pair{}, &LineError{Path: r.path, Num: r.num, Err: err}
		}
		if ok {
			return pair, nil
		}
	}
	if err := r.scanner.Err(); err != nil {
		if r.path != "" {
			return dotenv.Pair{}, fmt.Errorf("read %s: %w", r.path, err)
		}
		return dotenv.Pair{}, fmt.Errorf("read env: %w", err)
	}
	return dotenv.Pair{}, io.EOF
}

// Table exposes the keys parsed so far.
func (r *Reader) Table() *dotenv.Table {
	return r.table
}

// Parse reads every pair from r and stops at the first error.
func Parse(r io.Reader, opts Options) ([]dotenv.Pair, error) {
	reader := NewReader(r, opts)
	var pairs []dotenv.Pair
	for {
		pair, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return pairs, nil
		}
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
}

// ParseAll reads every pair from r, skipping bad lines. The skipped lines
// are returned as lineErrs; err is only set when reading itself fails.
func ParseAll(r io.Reader, opts Options) (pairs []dotenv.Pair, lineErrs []*LineError, err error) {
	reader := NewReader(r, opts)
	for {
		pair, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return pairs, lineErrs, nil
		}
		var lineErr *LineError
		if errors.As(err, &lineErr) {
			lineErrs = append(lineErrs, lineErr)
			continue
		}
		if err != nil {
			return pairs, lineErrs, err
		}
		pairs = append(pairs, pair)
	}
}
