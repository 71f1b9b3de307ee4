package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name           string
		verbose, quiet bool
		debug, info    bool
	}{
		{name: "default", info: true},
		{name: "verbose", verbose: true, debug: true, info: true},
		{name: "quiet", quiet: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := newLogger(&buf, tt.verbose, tt.quiet)
			log.Debug("debug line")
			log.Info("info line", "key", "value")
			log.Error("error line")

			out := buf.String()
			if got := strings.Contains(out, "debug line"); got != tt.debug {
				t.Errorf("debug logged = %v, want %v", got, tt.debug)
			}
			if got := strings.Contains(out, "info line"); got != tt.info {
				t.Errorf("info logged = %v, want %v", got, tt.info)
			}
			if !strings.Contains(out, "error line") {
				t.Error("error line missing")
			}
			if strings.Contains(out, "\x1b[") {
				t.Error("colour written to a non-terminal")
			}
		})
	}
}

func TestNewLoggerTimestamps(t *testing.T) {
	var quiet, verbose bytes.Buffer
	newLogger(&quiet, false, false).Info("hello")
	newLogger(&verbose, true, false).Info("hello")

	if strings.Contains(quiet.String(), ":") {
		t.Errorf("timestamp in non-verbose output: %q", quiet.String())
	}
	if out := verbose.String(); len(out) < 8 || strings.Count(out[:8], ":") != 2 {
		t.Errorf("missing timestamp in verbose output: %q", out)
	}
}
