package retry

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jzx17/roundrobin/internal/logging"
	"github.com/jzx17/roundrobin/pkg/types"
)

// Stats counts the retries performed by a wrapped body
type Stats struct {
	TotalAttempts   int64
	TotalRetries    int64
	TotalExhausted  int64
	TotalRetryDelay time.Duration
}

// Body wraps a task body so failed calls are retried before the worker's error policy
// sees them. The pause between attempts uses the clock carried by the call context and
// ends early when the slice is preempted.
type Body struct {
	body   types.TaskBody
	policy Policy
	logger *slog.Logger

	attempts  int64
	retries   int64
	exhausted int64
	delay     int64
}

// BodyOption configures a Body
type BodyOption func(*Body)

// WithLogger sets the logger for retry events
func WithLogger(logger *slog.Logger) BodyOption {
	return func(b *Body) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBody creates a retrying wrapper around body
func NewBody(body types.TaskBody, policy Policy, opts ...BodyOption) *Body {
	b := &Body{
		body:   body,
		policy: policy,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run calls the body until it succeeds, the policy gives up or ctx is done
func (b *Body) Run(ctx context.Context) error {
	clock := types.ClockFromContext(ctx)

	for attempt := 1; ; attempt++ {
		atomic.AddInt64(&b.attempts, 1)
		if attempt > 1 {
			atomic.AddInt64(&b.retries, 1)
		}

		err := b.body(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}

		if !b.policy.ShouldRetry(err, attempt) {
			if attempt >= b.policy.MaxAttempts() {
				atomic.AddInt64(&b.exhausted, 1)
				b.logger.Debug("retry attempts exhausted", "attempts", attempt, "error", err)
				return fmt.Errorf("after %d attempts: %w", attempt, err)
			}
			return err
		}

		delay := b.policy.NextDelay(attempt)
		atomic.AddInt64(&b.delay, int64(delay))
		b.logger.Debug("retrying task body", "attempt", attempt, "delay", delay, "error", err)

		if delay > 0 {
			timer := clock.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C():
			}
		}
	}
}

// TaskBody returns Run as a types.TaskBody
func (b *Body) TaskBody() types.TaskBody {
	return b.Run
}

// Stats returns a snapshot of the retry counters
func (b *Body) Stats() Stats {
	return Stats{
		TotalAttempts:   atomic.LoadInt64(&b.attempts),
		TotalRetries:    atomic.LoadInt64(&b.retries),
		TotalExhausted:  atomic.LoadInt64(&b.exhausted),
		TotalRetryDelay: time.Duration(atomic.LoadInt64(&b.delay)),
	}
}
