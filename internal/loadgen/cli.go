package loadgen

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/follicle/pkg/logger"
)

// SetupLogging initializes the global logger to write to stdout and, when
// logFile is set, to that file as well.
func SetupLogging(logFile string, verbose bool) error {
	out := io.Writer(os.Stdout)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermission)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, f)
	}
	if err := logger.Init(logger.WithOutput(out)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// DefaultOutputFile returns a timestamped submissions file name.
func DefaultOutputFile() string {
	return "submissions_" + time.Now().Format("20060102_150405") + ".json"
}

// ShowHelp prints usage information.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `Follicle load generator
=======================

Creates profiles, submits generated assessments concurrently and verifies
every rule-scored report against the local engine.

Usage:
  go run ./cmd/loadgen [options]

Options:
  -url string        Base URL of the service (default "http://localhost:9080")
  -profiles int      Number of profiles to create (default 20)
  -assessments int   Number of assessments to submit (default 1000)
  -workers int       Number of concurrent workers (default CPU cores * 2)
  -dup int           Replay every Nth idempotency key, 0 disables (default 10)
  -timeout duration  HTTP request timeout (default 30s)
  -token string      Bearer token when the service requires auth
  -output string     Write generated submissions to this JSON file
  -log string        Also write logs to this file
  -verbose           Log every failed submission
  -help              Show this help message

Examples:
  go run ./cmd/loadgen -assessments 20000 -workers 32
  go run ./cmd/loadgen -url http://localhost:8080 -dup 0 -output out/subs.json
`)
}
