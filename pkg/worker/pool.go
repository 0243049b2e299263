package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jzx17/roundrobin/internal/logging"
	"github.com/jzx17/roundrobin/pkg/types"
	"golang.org/x/sync/errgroup"
)

// PoolConfig defines configuration for a fixed set of workers
type PoolConfig struct {
	// Size is the number of workers
	Size int

	// BodyFactory builds the task body of each worker (optional, defaults to SpinBody)
	BodyFactory BodyFactory

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	// ErrorHandler is the error handler shared by every worker
	ErrorHandler types.ErrorHandler

	Logger *slog.Logger
}

// DefaultPoolConfig returns default configuration
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Size:        1,
		BodyFactory: func(int) types.TaskBody { return SpinBody() },
		Clock:       types.NewRealClock(),
	}
}

// Pool owns a fixed, indexed set of workers. Worker i is built from BodyFactory(i); the
// pool never adds or replaces workers once created.
type Pool struct {
	config  *PoolConfig
	workers []*Worker

	state int32 // 0: created, 1: started, 2: stopped
}

// NewPool creates every worker up front. A nil body from the factory fails with
// ErrWorkerCreate.
func NewPool(config *PoolConfig) (*Pool, error) {
	if config == nil {
		config = DefaultPoolConfig()
	}
	if config.Size <= 0 {
		return nil, fmt.Errorf("%w: pool size must be positive, got %d", types.ErrInvalidConfig, config.Size)
	}
	if config.BodyFactory == nil {
		config.BodyFactory = func(int) types.TaskBody { return SpinBody() }
	}
	if config.Clock == nil {
		config.Clock = types.NewRealClock()
	}
	if config.Logger == nil {
		config.Logger = logging.Discard()
	}

	workers := make([]*Worker, config.Size)
	for i := 0; i < config.Size; i++ {
		w, err := NewWorkerWithClock(i, config.BodyFactory(i), config.Clock)
		if err != nil {
			return nil, err
		}
		w.SetLogger(config.Logger.With("component", "worker"))
		if config.ErrorHandler != nil {
			w.SetErrorHandler(config.ErrorHandler)
		}
		workers[i] = w
	}

	return &Pool{config: config, workers: workers}, nil
}

// Go starts every worker goroutine in g. Workers stay suspended until resumed and exit when
// canceled or when ctx is done. A pool can be started once.
func (p *Pool) Go(ctx context.Context, g *errgroup.Group) error {
	if !atomic.CompareAndSwapInt32(&p.state, 0, 1) {
		return fmt.Errorf("worker pool already started")
	}
	for _, w := range p.workers {
		w := w
		g.Go(func() error {
			return w.Run(ctx)
		})
	}
	return nil
}

// Stop cancels every worker and waits for their goroutines
func (p *Pool) Stop() error {
	if !atomic.CompareAndSwapInt32(&p.state, 1, 2) {
		return fmt.Errorf("worker pool is not running")
	}

	g := new(errgroup.Group)
	for _, w := range p.workers {
		w := w
		g.Go(w.Stop)
	}
	return g.Wait()
}

// Worker returns the worker with the given index
func (p *Pool) Worker(id int) *Worker {
	if id < 0 || id >= len(p.workers) {
		return nil
	}
	return p.workers[id]
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return len(p.workers)
}

// IsStarted checks if the worker goroutines have been started
func (p *Pool) IsStarted() bool {
	return atomic.LoadInt32(&p.state) != 0
}

// PoolStats counts workers per state
type PoolStats struct {
	Size      int
	Running   int
	Suspended int
	Exited    int
}

// Stats gets basic pool statistics
func (p *Pool) Stats() PoolStats {
	stats := PoolStats{Size: len(p.workers)}
	for _, w := range p.workers {
		switch w.State() {
		case WorkerStateRunning:
			stats.Running++
		case WorkerStateExited:
			stats.Exited++
		default:
			stats.Suspended++
		}
	}
	return stats
}

// GetWorkerStats gets statistics of all workers, indexed by worker id
func (p *Pool) GetWorkerStats() []WorkerStats {
	stats := make([]WorkerStats, len(p.workers))
	for i, w := range p.workers {
		stats[i] = w.Stats()
	}
	return stats
}
