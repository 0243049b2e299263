package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jzx17/roundrobin/internal/logging"
	"github.com/jzx17/roundrobin/pkg/types"
	"github.com/jzx17/roundrobin/pkg/worker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultQuantum is the time slice used when none is configured
const DefaultQuantum = time.Second

// Config defines the startup configuration of a scheduler run
type Config struct {
	// Workers is the total worker count; zero means len(Quanta)
	Workers int

	// QueueCapacity bounds how many workers may be admitted to the run queue at once
	QueueCapacity int

	// Quanta is the quantum budget of each worker, indexed by worker id
	Quanta []int

	// Quantum is the length of one time slice
	Quantum time.Duration

	// BodyFactory builds each worker's task body (optional, defaults to SpinBody)
	BodyFactory worker.BodyFactory

	// ErrorHandler is consulted when a task body fails (optional)
	ErrorHandler types.ErrorHandler

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	Logger  *slog.Logger
	Metrics types.Metrics
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		QueueCapacity: 1,
		Quanta:        []int{1},
		Quantum:       DefaultQuantum,
		BodyFactory:   func(int) types.TaskBody { return worker.SpinBody() },
		Clock:         types.NewRealClock(),
	}
}

// Validate checks the configuration and fills in the worker count
func (c *Config) Validate() error {
	if len(c.Quanta) == 0 {
		return fmt.Errorf("%w: at least one worker is required", types.ErrInvalidConfig)
	}
	if c.Workers == 0 {
		c.Workers = len(c.Quanta)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: worker count must be positive, got %d", types.ErrInvalidConfig, c.Workers)
	}
	if c.Workers != len(c.Quanta) {
		return fmt.Errorf("%w: %d workers but %d quanta", types.ErrInvalidConfig, c.Workers, len(c.Quanta))
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("%w: queue capacity must be positive, got %d", types.ErrInvalidConfig, c.QueueCapacity)
	}
	for i, q := range c.Quanta {
		if q <= 0 {
			return fmt.Errorf("%w: worker %d has non-positive quanta %d", types.ErrInvalidConfig, i, q)
		}
	}
	return nil
}

// Scheduler runs a fixed set of workers round-robin on a single running slot
type Scheduler struct {
	config  *Config
	runID   string
	logger  *slog.Logger
	metrics types.Metrics

	engine  *Engine
	ticks   *TickSource
	slots   *semaphore.Weighted
	pool    *worker.Pool
	records []*Record

	state int32 // 0: created, 1: running, 2: finished
	armed chan struct{}
}

// NewScheduler validates config and creates every worker and its record. Timer and worker
// creation failures are fatal and returned here.
func NewScheduler(config *Config) (*Scheduler, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Clock == nil {
		config.Clock = types.NewRealClock()
	}
	if config.BodyFactory == nil {
		config.BodyFactory = func(int) types.TaskBody { return worker.SpinBody() }
	}
	if config.Logger == nil {
		config.Logger = logging.Discard()
	}
	if config.Metrics == nil {
		config.Metrics = types.NopMetrics{}
	}

	ticks, err := NewTickSource(config.Clock, config.Quantum)
	if err != nil {
		return nil, types.NewSchedulerError("timer", -1, err)
	}

	runID := uuid.NewString()
	logger := config.Logger.With("run_id", runID)
	slots := semaphore.NewWeighted(int64(config.QueueCapacity))

	engine, err := NewEngine(EngineConfig{
		Total:   config.Workers,
		Clock:   config.Clock,
		Slots:   slots,
		Logger:  logger,
		Metrics: config.Metrics,
	})
	if err != nil {
		return nil, err
	}

	pool, err := worker.NewPool(&worker.PoolConfig{
		Size:         config.Workers,
		BodyFactory:  config.BodyFactory,
		Clock:        config.Clock,
		ErrorHandler: config.ErrorHandler,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		config:  config,
		runID:   runID,
		logger:  logger.With("component", "scheduler"),
		metrics: config.Metrics,
		engine:  engine,
		ticks:   ticks,
		slots:   slots,
		pool:    pool,
		records: make([]*Record, config.Workers),
		armed:   make(chan struct{}),
	}

	created := config.Clock.Now()
	for i := range s.records {
		s.records[i] = NewRecord(pool.Worker(i), config.Quanta[i], created)
	}

	return s, nil
}

// Run starts the workers, admits them in index order, drives the quantum ticker until every
// worker has terminated and joins all goroutines before returning the final report.
func (s *Scheduler) Run(ctx context.Context) (types.Report, error) {
	if !atomic.CompareAndSwapInt32(&s.state, 0, 1) {
		return types.Report{}, types.ErrSchedulerRunning
	}
	defer atomic.StoreInt32(&s.state, 2)

	s.logger.Info("starting scheduler",
		"workers", s.config.Workers,
		"queue_capacity", s.config.QueueCapacity,
		"quantum", s.config.Quantum,
		"quanta", s.config.Quanta)

	g, gctx := errgroup.WithContext(ctx)
	if err := s.pool.Go(gctx, g); err != nil {
		return types.Report{}, types.NewSchedulerError("run", -1, err)
	}
	g.Go(func() error {
		return s.admit(gctx)
	})
	g.Go(func() error {
		return s.coordinate(gctx)
	})

	if err := g.Wait(); err != nil {
		s.logger.Error("scheduler aborted", "error", err)
		return types.Report{}, types.NewSchedulerError("run", -1, err)
	}

	report, ok := s.engine.Report()
	if !ok {
		return types.Report{}, types.NewSchedulerError("run", -1, errors.New("workers joined before the engine quit"))
	}
	s.metrics.RecordReport(report)
	s.logger.Info("scheduler finished",
		"total_run", report.TotalRunTime,
		"total_wait", report.TotalWaitTime,
		"average_run", report.AverageRunTime,
		"average_wait", report.AverageWaitTime,
		"ticks", s.ticks.Fired())
	return report, nil
}

// admit moves workers into the run queue in index order, one queue slot each
func (s *Scheduler) admit(ctx context.Context) error {
	for _, rec := range s.records {
		if err := s.slots.Acquire(ctx, 1); err != nil {
			return err
		}
		if err := s.engine.Admit(rec); err != nil {
			s.slots.Release(1)
			return err
		}
	}
	return nil
}

// coordinate arms the ticker once a worker is ready and runs one engine step per tick
func (s *Scheduler) coordinate(ctx context.Context) error {
	if err := s.engine.WaitReady(ctx); err != nil {
		return err
	}
	if err := s.ticks.Start(); err != nil {
		return types.NewSchedulerError("timer", -1, err)
	}
	defer s.ticks.Stop()
	close(s.armed)
	s.logger.Debug("quantum timer armed", "quantum", s.ticks.Quantum())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.ticks.C():
			s.ticks.Observe()
			done, err := s.engine.Step(ctx)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

// Armed is closed once the quantum ticker has been started
func (s *Scheduler) Armed() <-chan struct{} {
	return s.armed
}

// Engine returns the scheduling engine
func (s *Scheduler) Engine() *Engine {
	return s.engine
}

// RunID returns the identifier attached to this run's log lines
func (s *Scheduler) RunID() string {
	return s.runID
}

// Records returns a snapshot of every worker record ordered by worker id
func (s *Scheduler) Records() []RecordSnapshot {
	return s.engine.Records()
}

// WorkerStats returns the statistics of every worker goroutine
func (s *Scheduler) WorkerStats() []worker.WorkerStats {
	return s.pool.GetWorkerStats()
}

// IsRunning checks if Run is in progress
func (s *Scheduler) IsRunning() bool {
	return atomic.LoadInt32(&s.state) == 1
}

// Status is a point-in-time view of a run
type Status struct {
	RunID     string `json:"run_id"`
	State     string `json:"state"`
	Workers   int    `json:"workers"`
	Completed int    `json:"completed"`
	Ready     int    `json:"ready"`
	Current   *int   `json:"current"`
	Ticks     int64  `json:"ticks"`
}

// Status returns the current run state
func (s *Scheduler) Status() Status {
	st := Status{
		RunID:     s.runID,
		Workers:   s.config.Workers,
		Completed: s.engine.Completed(),
		Ready:     s.engine.QueueLen(),
		Ticks:     s.ticks.Fired(),
	}
	switch atomic.LoadInt32(&s.state) {
	case 0:
		st.State = "created"
	case 1:
		st.State = "running"
	default:
		st.State = "finished"
	}
	if id, ok := s.engine.Current(); ok {
		st.Current = &id
	}
	return st
}
