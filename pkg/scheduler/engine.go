package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/jzx17/roundrobin/internal/logging"
	"github.com/jzx17/roundrobin/pkg/runqueue"
	"github.com/jzx17/roundrobin/pkg/types"
	"golang.org/x/sync/semaphore"
)

// EngineConfig defines configuration for the scheduling engine
type EngineConfig struct {
	// Total is the number of workers that must terminate before the engine quits
	Total int

	// Clock for time accounting (optional, defaults to real clock)
	Clock types.Clock

	// Slots is released once per terminated worker (optional)
	Slots *semaphore.Weighted

	Logger  *slog.Logger
	Metrics types.Metrics
}

// Engine owns the run queue and the single running slot. Step performs one scheduling
// decision; it is driven by the tick source and must not be called concurrently.
type Engine struct {
	clock   types.Clock
	slots   *semaphore.Weighted
	logger  *slog.Logger
	metrics types.Metrics
	queue   *runqueue.Queue[*Record]
	stats   *Aggregator
	total   int

	mu        sync.Mutex
	current   *Record
	completed int
	quit      bool
	records   []*Record
	done      chan struct{}
}

// NewEngine creates a new engine
func NewEngine(config EngineConfig) (*Engine, error) {
	if config.Total <= 0 {
		return nil, fmt.Errorf("%w: worker count must be positive, got %d", types.ErrInvalidConfig, config.Total)
	}
	if config.Clock == nil {
		config.Clock = types.NewRealClock()
	}
	if config.Logger == nil {
		config.Logger = logging.Discard()
	}
	if config.Metrics == nil {
		config.Metrics = types.NopMetrics{}
	}

	return &Engine{
		clock:   config.Clock,
		slots:   config.Slots,
		logger:  config.Logger.With("component", "engine"),
		metrics: config.Metrics,
		queue:   runqueue.New[*Record](),
		stats:   NewAggregator(),
		total:   config.Total,
		done:    make(chan struct{}),
	}, nil
}

// Admit makes a record READY by appending it to the run queue
func (e *Engine) Admit(rec *Record) error {
	e.mu.Lock()
	if rec.state == RecordTerminated {
		e.mu.Unlock()
		panic(fmt.Sprintf("scheduler: terminated worker %d admitted", rec.ID()))
	}
	rec.state = RecordReady
	e.mu.Unlock()

	if err := e.queue.PushTail(rec); err != nil {
		return types.NewSchedulerError("admit", rec.ID(), err)
	}
	e.mu.Lock()
	e.records = append(e.records, rec)
	e.mu.Unlock()
	e.metrics.RecordQueueDepth(e.queue.Len())
	e.logger.Debug("worker admitted", "worker", rec.ID())
	return nil
}

// WaitReady blocks until at least one worker is READY
func (e *Engine) WaitReady(ctx context.Context) error {
	return e.queue.WaitNonEmpty(ctx)
}

// Step runs one scheduling decision: preempt the current worker, then hand the running
// slot to the head of the run queue. It returns true once every worker has terminated;
// calls after that are no-ops.
func (e *Engine) Step(ctx context.Context) (bool, error) {
	e.mu.Lock()
	if e.quit {
		e.mu.Unlock()
		return true, nil
	}
	cur := e.current
	e.current = nil
	remaining := 0
	if cur != nil {
		remaining = cur.markSuspended(e.clock.Now())
	}
	e.mu.Unlock()

	if cur != nil {
		e.preempt(cur, remaining)
	}
	if e.finishIfComplete() {
		return true, nil
	}
	return e.pickNext(ctx)
}

// preempt requeues a worker that still has quanta, or retires it
func (e *Engine) preempt(rec *Record, remaining int) {
	id := rec.ID()

	if remaining == 0 {
		e.logger.Info("canceling worker", "worker", id)
		// an already exited worker counts as terminated all the same
		_ = rec.handle.Deliver(types.DirectiveCancel)
		e.retire(rec, types.ActionCancel)
		return
	}

	e.logger.Info("suspending worker", "worker", id, "quanta_remaining", remaining)
	if err := rec.handle.Deliver(types.DirectiveSuspend); err != nil {
		e.lose(rec, err)
		return
	}

	e.mu.Lock()
	rec.state = RecordReady
	e.mu.Unlock()
	if err := e.queue.PushTail(rec); err != nil {
		panic(fmt.Sprintf("scheduler: worker %d requeued twice: %v", id, err))
	}
	e.record(rec, types.ActionSuspend, remaining)
	e.metrics.RecordQueueDepth(e.queue.Len())
}

// pickNext blocks until a worker is READY and resumes it
func (e *Engine) pickNext(ctx context.Context) (bool, error) {
	for {
		if e.queue.IsEmpty() {
			e.logger.Debug("waiting for workers")
		}
		if err := e.queue.WaitNonEmpty(ctx); err != nil {
			return false, err
		}
		next, ok := e.queue.PopHead()
		if !ok {
			continue
		}
		e.metrics.RecordQueueDepth(e.queue.Len())

		e.mu.Lock()
		if e.current != nil {
			e.mu.Unlock()
			panic(fmt.Sprintf("scheduler: resuming worker %d while worker %d is running", next.ID(), e.current.ID()))
		}
		if next.state != RecordReady {
			e.mu.Unlock()
			panic(fmt.Sprintf("scheduler: worker %d dequeued in state %s", next.ID(), next.state))
		}
		now := e.clock.Now()
		e.mu.Unlock()

		if err := next.handle.Deliver(types.DirectiveResume); err != nil {
			e.lose(next, err)
			if e.finishIfComplete() {
				return true, nil
			}
			continue
		}

		e.mu.Lock()
		next.markResumed(now)
		e.current = next
		remaining := next.quantaRemaining
		e.mu.Unlock()

		e.logger.Info("resuming worker", "worker", next.ID())
		e.record(next, types.ActionResume, remaining)
		return false, nil
	}
}

// lose retires a worker whose goroutine can no longer take directives
func (e *Engine) lose(rec *Record, err error) {
	e.logger.Warn("worker exited before it could be scheduled", "worker", rec.ID(), "error", err)
	e.retire(rec, types.ActionLost)
}

// retire moves a record to TERMINATED and folds its statistics. Retiring the same record
// again has no effect and returns false.
func (e *Engine) retire(rec *Record, action types.Action) bool {
	e.mu.Lock()
	if rec.state == RecordTerminated {
		e.mu.Unlock()
		return false
	}
	rec.state = RecordTerminated
	e.completed++
	if e.completed > e.total {
		e.mu.Unlock()
		panic(fmt.Sprintf("scheduler: %d workers completed out of %d", e.completed, e.total))
	}
	e.stats.Add(rec.runTime, rec.waitTime)
	remaining := rec.quantaRemaining
	e.mu.Unlock()

	e.queue.Remove(rec)
	if e.slots != nil {
		e.slots.Release(1)
	}
	e.record(rec, action, remaining)
	return true
}

// finishIfComplete sets quit once every worker has terminated
func (e *Engine) finishIfComplete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.completed < e.total {
		return false
	}
	if !e.quit {
		e.quit = true
		rep := e.stats.Finalize(e.total)
		close(e.done)
		e.logger.Info("all workers completed",
			"workers", rep.Workers,
			"total_run", rep.TotalRunTime,
			"total_wait", rep.TotalWaitTime)
	}
	return true
}

func (e *Engine) record(rec *Record, action types.Action, remaining int) {
	e.metrics.RecordTransition(types.Transition{
		WorkerID:        rec.ID(),
		Action:          action,
		At:              e.clock.Now(),
		QuantaRemaining: remaining,
	})
}

// Current returns the id of the running worker
func (e *Engine) Current() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return 0, false
	}
	return e.current.ID(), true
}

// Completed returns the number of terminated workers
func (e *Engine) Completed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.completed
}

// Quit reports whether the engine has shut down
func (e *Engine) Quit() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.quit
}

// Done is closed when the engine quits
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// QueueLen returns the number of READY workers
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Report returns the final statistics once the engine has quit
func (e *Engine) Report() (types.Report, bool) {
	return e.stats.Report()
}

// Records returns a snapshot of every admitted record ordered by worker id
func (e *Engine) Records() []RecordSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]RecordSnapshot, 0, len(e.records))
	for _, rec := range e.records {
		out = append(out, rec.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkerID < out[j].WorkerID })
	return out
}

// Running returns how many records are in the RUNNING state
func (e *Engine) Running() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, rec := range e.records {
		if rec.state == RecordRunning {
			n++
		}
	}
	return n
}
