// Package service orchestrates assessments: it owns the store, the rule
// engine, the optional external signal and the asynchronous job path, and
// implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/follicle/internal/adapters/mq/queue"
	"github.com/okian/follicle/internal/adapters/mq/worker"
	"github.com/okian/follicle/internal/adapters/repository"
	"github.com/okian/follicle/internal/adapters/signal"
	"github.com/okian/follicle/internal/domain/dedupe"
	"github.com/okian/follicle/internal/domain/model"
	"github.com/okian/follicle/internal/domain/scoring"
	"github.com/okian/follicle/pkg/logger"
	"github.com/okian/follicle/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultQueueSize  = 10_000
	defaultDedupeSize = 100_000
	defaultMaxHistory = 50
)

// Analyzer is the external signal collaborator.
type Analyzer interface {
	Analyze(ctx context.Context, in signal.Request) (*scoring.Signal, error)
}

var (
	_ Analyzer       = (*signal.Client)(nil)
	_ worker.Handler = (*Service)(nil)
)

// Service implements assessment and record operations.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	engine   scoring.Scorer
	analyzer Analyzer
	deduper  dedupe.Deduper
	queue    queue.Queue
	pool     *worker.Pool
	jobs     *jobTable
	cancel   context.CancelFunc

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	maxHistory  int

	// State
	started bool
	stopped bool

	now    func() time.Time
	tracer trace.Tracer
	logger logger.Logger
}

// Stats is a point-in-time view of the service for monitoring.
type Stats struct {
	Started         bool                    `json:"started"`
	Workers         int                     `json:"workers"`
	QueueLength     int                     `json:"queue_length"`
	QueueCapacity   int                     `json:"queue_capacity"`
	IdempotencyKeys int64                   `json:"idempotency_keys"`
	Jobs            map[model.JobStatus]int `json:"jobs"`
	SignalEnabled   bool                    `json:"signal_enabled"`
	Store           repository.Counts       `json:"store"`
}

// New constructs a Service. Components not injected get in-memory defaults.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
		maxHistory:  defaultMaxHistory,
		now:         time.Now,
		tracer:      otel.Tracer("follicle/service"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.engine == nil {
		s.engine = scoring.NewEngine(scoring.WithClock(s.now))
	}
	if s.deduper == nil {
		s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	}
	if s.queue == nil {
		s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	}
	s.jobs = newJobTable(s.queue.Cap())
	return s
}

// Start launches the worker pool that drains the job queue. Workers outlive
// ctx cancellation and run until Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting assessment service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool = worker.NewPool(s.workerCount, s.queue, s)
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "assessment service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queue.Cap()),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Bool("signal", s.analyzer != nil),
	)
	return nil
}

// Stop stops accepting jobs, waits for queued jobs until ctx expires and
// closes the store. Jobs still pending at the deadline are marked failed
// and their idempotency keys released.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}
	s.logger.Info(ctx, "stopping assessment service...")

	var firstErr error
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			firstErr = fmt.Errorf("stop workers: %w", err)
		}
		s.cancel()
		if n, keys := s.jobs.abandon(ErrStopped.Error(), s.now().UTC()); n > 0 {
			for _, k := range keys {
				s.deduper.Unrecord(ctx, k)
			}
			s.logger.Warn(ctx, "abandoned pending jobs", logger.Int("jobs", n))
		}
	} else if err := s.queue.Close(); err != nil {
		firstErr = fmt.Errorf("close queue: %w", err)
	}
	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close store: %w", err)
	}

	s.started = false
	s.stopped = true
	s.logger.Info(ctx, "assessment service stopped")
	return firstErr
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	started := s.started
	workers := 0
	if s.pool != nil {
		workers = s.pool.Size()
	}
	s.mu.RUnlock()

	counts, err := s.store.Counts(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	queueLen := s.queue.Len(ctx)
	metrics.UpdateQueueSize(queueLen)

	return Stats{
		Started:         started,
		Workers:         workers,
		QueueLength:     queueLen,
		QueueCapacity:   s.queue.Cap(),
		IdempotencyKeys: s.deduper.Size(),
		Jobs:            s.jobs.counts(),
		SignalEnabled:   s.analyzer != nil,
		Store:           counts,
	}, nil
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// historyLimit clamps a requested page size to the configured maximum.
func (s *Service) historyLimit(limit int) int {
	if limit <= 0 || limit > s.maxHistory {
		return s.maxHistory
	}
	return limit
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
