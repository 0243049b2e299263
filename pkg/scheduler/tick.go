package scheduler

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jzx17/roundrobin/pkg/types"
)

// TickSource produces one scheduling event per quantum
type TickSource struct {
	clock   types.Clock
	quantum time.Duration

	mu      sync.Mutex
	ticker  types.Ticker
	stopped bool

	fired int64
}

// NewTickSource validates the quantum and prepares an unarmed tick source
func NewTickSource(clock types.Clock, quantum time.Duration) (*TickSource, error) {
	if quantum <= 0 {
		return nil, fmt.Errorf("%w: quantum must be positive, got %v", types.ErrTimerCreate, quantum)
	}
	if clock == nil {
		clock = types.NewRealClock()
	}
	return &TickSource{clock: clock, quantum: quantum}, nil
}

// Start arms the periodic ticker
func (t *TickSource) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return fmt.Errorf("%w: tick source already stopped", types.ErrTimerCreate)
	}
	if t.ticker != nil {
		return fmt.Errorf("%w: tick source already started", types.ErrTimerCreate)
	}
	t.ticker = t.clock.NewTicker(t.quantum)
	return nil
}

// C returns the tick channel. It is nil, and therefore never ready, before Start and
// after Stop.
func (t *TickSource) C() <-chan time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ticker == nil || t.stopped {
		return nil
	}
	return t.ticker.C()
}

// Observe counts a consumed tick
func (t *TickSource) Observe() {
	atomic.AddInt64(&t.fired, 1)
}

// Fired returns the number of ticks consumed so far
func (t *TickSource) Fired() int64 {
	return atomic.LoadInt64(&t.fired)
}

// Quantum returns the tick interval
func (t *TickSource) Quantum() time.Duration {
	return t.quantum
}

// Stop disarms the ticker. It is safe to call more than once.
func (t *TickSource) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	if t.ticker != nil {
		t.ticker.Stop()
	}
}
