package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/follicle/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run errors.
var (
	ErrUnhealthy      = errors.New("service unhealthy")
	ErrNoProfiles     = errors.New("no profiles created")
	ErrVerification   = errors.New("verification failed")
	ErrInvalidOptions = errors.New("invalid load options")
)

// Run creates profiles, submits generated assessments concurrently and
// verifies the results.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if cfg.Profiles < 1 || cfg.Assessments < 1 {
		return nil, fmt.Errorf("%w: profiles and assessments must be positive", ErrInvalidOptions)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	log := logger.Get().Named("loadgen")
	stats := &Stats{StartTime: time.Now()}
	c := newClient(cfg)

	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("profiles", cfg.Profiles),
		logger.Int("assessments", cfg.Assessments),
		logger.Int("workers", cfg.Workers),
		logger.Int("duplicateEvery", cfg.DuplicateEvery))

	if err := c.health(ctx); err != nil {
		return stats, fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}

	profiles := make([]string, 0, cfg.Profiles)
	for i := 0; i < cfg.Profiles; i++ {
		id, err := c.createProfile(ctx, i)
		if err != nil {
			log.Warn(ctx, "profile creation failed", logger.Int("index", i), logger.Error(err))
			continue
		}
		profiles = append(profiles, id)
	}
	stats.Profiles = len(profiles)
	if len(profiles) == 0 {
		return stats, ErrNoProfiles
	}

	subs := generateSubmissions(cfg.Assessments, cfg.DuplicateEvery, profiles)
	stats.Generated = len(subs)

	results := submitAll(ctx, cfg, c, subs, stats)
	verr := verify(ctx, c, subs, results, stats)

	if cfg.OutputFile != "" {
		if err := saveSubmissions(cfg.OutputFile, subs); err != nil {
			log.Warn(ctx, "failed to save submissions", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logStats(ctx, log, stats)
	return stats, verr
}

// submitAll posts every submission through a fixed set of workers. Results
// are indexed like subs.
func submitAll(ctx context.Context, cfg *Config, c *client, subs []Submission, stats *Stats) []Result {
	log := logger.Get().Named("loadgen")
	results := make([]Result, len(subs))
	var created, duplicate, failed, submitted int64

	ch := make(chan int, cfg.Workers*2)
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range ch {
				r := c.submit(ctx, subs[i])
				results[i] = r
				atomic.AddInt64(&submitted, 1)
				switch {
				case r.Err == nil:
					atomic.AddInt64(&created, 1)
				case r.Status == http.StatusConflict:
					atomic.AddInt64(&duplicate, 1)
				default:
					atomic.AddInt64(&failed, 1)
					if cfg.Verbose {
						log.Warn(ctx, "submission failed", logger.Int("index", i), logger.Error(r.Err))
					}
				}
			}
		}()
	}

feed:
	for i := range subs {
		select {
		case <-ctx.Done():
			break feed
		case ch <- i:
		}
	}
	close(ch)
	wg.Wait()

	stats.Submitted = int(submitted)
	stats.Created = int(created)
	stats.Duplicate = int(duplicate)
	stats.Failed = int(failed)
	return results
}

func saveSubmissions(path string, subs []Submission) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	b, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal submissions: %w", err)
	}
	return os.WriteFile(path, b, filePermission)
}

func logStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("profiles", stats.Profiles),
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("created", stats.Created),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("failed", stats.Failed),
		logger.Int("mismatched", stats.Mismatched),
		logger.Duration("duration", stats.Duration),
		logger.Float64("perSecond", perSecond))
}
