package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jzx17/roundrobin/internal/logging"
	"github.com/jzx17/roundrobin/pkg/types"
)

// WorkerState defines the state of a Worker as seen by its own goroutine
type WorkerState int32

const (
	// WorkerStateSuspended represents a worker blocked until it is resumed
	WorkerStateSuspended WorkerState = iota
	// WorkerStateRunning represents a worker executing its task body
	WorkerStateRunning
	// WorkerStateExited represents a worker whose goroutine has returned
	WorkerStateExited
)

// String returns the string representation of WorkerState
func (ws WorkerState) String() string {
	switch ws {
	case WorkerStateSuspended:
		return "suspended"
	case WorkerStateRunning:
		return "running"
	case WorkerStateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// Worker is one preemptible execution unit. It runs its task body only between a resume
// directive and the next suspend or cancel directive.
type Worker struct {
	id    int
	state int32 // atomic WorkerState
	body  types.TaskBody
	done  chan struct{}

	// control channel: directive flag plus wake-up
	mu          sync.Mutex
	cond        *sync.Cond
	directive   types.Directive
	cancelSlice context.CancelFunc
	exited      bool
	exitErr     error

	// statistics
	totalSlices   int64
	totalCalls    int64
	totalFailures int64
	lastResume    int64 // Unix nanosecond timestamp

	errorHandler types.ErrorHandler
	logger       *slog.Logger
	clock        types.Clock
}

// NewWorker creates a new Worker with default real clock
func NewWorker(id int, body types.TaskBody) (*Worker, error) {
	return NewWorkerWithClock(id, body, types.NewRealClock())
}

// NewWorkerWithClock creates a new Worker with specified clock
func NewWorkerWithClock(id int, body types.TaskBody, clock types.Clock) (*Worker, error) {
	if body == nil {
		return nil, types.NewSchedulerError("create", id, fmt.Errorf("%w: nil task body", types.ErrWorkerCreate))
	}
	if clock == nil {
		clock = types.NewRealClock()
	}

	w := &Worker{
		id:        id,
		state:     int32(WorkerStateSuspended),
		body:      body,
		done:      make(chan struct{}),
		directive: types.DirectiveSuspend,
		logger:    logging.Discard(),
		clock:     clock,
	}
	w.cond = sync.NewCond(&w.mu)
	return w, nil
}

// ID returns the Worker ID
func (w *Worker) ID() int {
	return w.id
}

// State returns the current Worker state
func (w *Worker) State() WorkerState {
	return WorkerState(atomic.LoadInt32(&w.state))
}

// SetErrorHandler sets the handler consulted when the task body fails
func (w *Worker) SetErrorHandler(handler types.ErrorHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errorHandler = handler
}

// SetLogger sets the logger
func (w *Worker) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.logger = logger.With("worker", w.id)
}

// Done is closed once the worker goroutine has returned
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Err returns the reason the worker exited on its own, if any
func (w *Worker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.exitErr
}

// Deliver sends a directive to the worker. Suspend and cancel interrupt the running slice
// at the body's next checkpoint. Cancel is final: repeating it has no effect, and any other
// directive afterwards, or any directive after the goroutine exited, fails with
// types.ErrWorkerExited.
func (w *Worker) Deliver(d types.Directive) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.directive == types.DirectiveCancel {
		if d == types.DirectiveCancel {
			return nil
		}
		return types.ErrWorkerExited
	}
	if w.exited {
		return types.ErrWorkerExited
	}

	w.directive = d
	if d != types.DirectiveResume && w.cancelSlice != nil {
		w.cancelSlice()
		w.cancelSlice = nil
	}
	w.cond.Broadcast()
	return nil
}

// Run executes the worker loop until it is canceled, its body completes, or ctx is done.
// It blocks and is meant to run on its own goroutine.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.done)
	defer atomic.StoreInt32(&w.state, int32(WorkerStateExited))

	stop := context.AfterFunc(ctx, func() {
		_ = w.Deliver(types.DirectiveCancel)
	})
	defer stop()

	for {
		sliceCtx, cancel, ok := w.awaitResume(ctx)
		if !ok {
			w.logger.Debug("worker canceled")
			return nil
		}

		err := w.runSlice(sliceCtx)
		cancel()
		atomic.StoreInt32(&w.state, int32(WorkerStateSuspended))

		if err != nil {
			w.exit(err)
			if errors.Is(err, types.ErrTaskComplete) {
				w.logger.Info("worker task complete")
			} else {
				w.logger.Warn("worker exiting after task failure", "error", err)
			}
			return nil
		}
	}
}

// awaitResume blocks while the worker is suspended. It returns false once canceled.
func (w *Worker) awaitResume(ctx context.Context) (context.Context, context.CancelFunc, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for w.directive == types.DirectiveSuspend {
		w.cond.Wait()
	}
	if w.directive == types.DirectiveCancel {
		w.exited = true
		return nil, nil, false
	}

	sliceCtx, cancel := context.WithCancel(types.WithClock(ctx, w.clock))
	w.cancelSlice = cancel

	atomic.StoreInt32(&w.state, int32(WorkerStateRunning))
	atomic.AddInt64(&w.totalSlices, 1)
	atomic.StoreInt64(&w.lastResume, w.clock.Now().UnixNano())
	return sliceCtx, cancel, true
}

// runSlice calls the body until the slice context is canceled. A non-nil return means
// the worker must exit.
func (w *Worker) runSlice(ctx context.Context) error {
	for ctx.Err() == nil {
		atomic.AddInt64(&w.totalCalls, 1)

		err := w.executeBody(ctx)
		if err == nil {
			continue
		}
		if errors.Is(err, types.ErrTaskComplete) {
			return err
		}
		// preempted mid-call
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil
		}

		atomic.AddInt64(&w.totalFailures, 1)
		if handledErr := w.handleError(err); handledErr != nil {
			return handledErr
		}
	}
	return nil
}

// executeBody runs one body call with panic recovery
func (w *Worker) executeBody(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)

			var cause error
			switch v := r.(type) {
			case error:
				cause = fmt.Errorf("panic: %w", v)
			default:
				cause = fmt.Errorf("panic: %v", v)
			}
			err = types.NewSchedulerError("body", w.id, cause).
				WithContext("stack_trace", string(buf[:n]))
		}
	}()

	return w.body(ctx)
}

func (w *Worker) handleError(err error) error {
	w.mu.Lock()
	handler := w.errorHandler
	logger := w.logger
	w.mu.Unlock()

	if handler == nil {
		logger.Warn("task body failed", "error", err)
		return nil
	}
	return handler(w.id, err)
}

func (w *Worker) exit(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.exited = true
	w.exitErr = err
	w.cancelSlice = nil
}

// Stop cancels the worker and waits for its goroutine to return
func (w *Worker) Stop() error {
	_ = w.Deliver(types.DirectiveCancel)

	select {
	case <-w.done:
		return nil
	case <-w.clock.After(5 * time.Second):
		return fmt.Errorf("worker %d stop timeout", w.id)
	}
}

// Stats gets Worker statistics
func (w *Worker) Stats() WorkerStats {
	var lastResume time.Time
	if ns := atomic.LoadInt64(&w.lastResume); ns != 0 {
		lastResume = time.Unix(0, ns)
	}
	return WorkerStats{
		ID:            w.id,
		State:         w.State(),
		TotalSlices:   atomic.LoadInt64(&w.totalSlices),
		TotalCalls:    atomic.LoadInt64(&w.totalCalls),
		TotalFailures: atomic.LoadInt64(&w.totalFailures),
		LastResume:    lastResume,
	}
}

// WorkerStats defines Worker statistics
type WorkerStats struct {
	ID            int
	State         WorkerState
	TotalSlices   int64
	TotalCalls    int64
	TotalFailures int64
	LastResume    time.Time
}

// IsRunning checks if the Worker holds the running slot
func (ws WorkerStats) IsRunning() bool {
	return ws.State == WorkerStateRunning
}

// GetFailureRate gets the fraction of body calls that failed
func (ws WorkerStats) GetFailureRate() float64 {
	if ws.TotalCalls == 0 {
		return 0
	}
	return float64(ws.TotalFailures) / float64(ws.TotalCalls)
}
