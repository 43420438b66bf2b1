package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/follicle/internal/loadgen"
)

// Default configuration constants.
const (
	defaultProfiles    = 20
	defaultAssessments = 1000
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultDupEvery    = 10
	defaultTimeout     = 30 * time.Second
	defaultRunTimeout  = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		profiles    = flag.Int("profiles", defaultProfiles, "Number of profiles to create")
		assessments = flag.Int("assessments", defaultAssessments, "Number of assessments to submit")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		dupEvery    = flag.Int("dup", defaultDupEvery, "Replay every Nth idempotency key (0 disables)")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		token       = flag.String("token", "", "Bearer token")
		outputFile  = flag.String("output", "", "Output file for generated submissions")
		logFile     = flag.String("log", "", "Log file for run output")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadgen.ShowHelp(os.Stdout)
		return
	}

	if err := loadgen.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	cfg := &loadgen.Config{
		BaseURL:        *baseURL,
		Profiles:       *profiles,
		Assessments:    *assessments,
		Workers:        *workers,
		DuplicateEvery: *dupEvery,
		Timeout:        *timeout,
		Token:          *token,
		OutputFile:     *outputFile,
		Verbose:        *verbose,
	}

	if _, err := loadgen.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Load run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
