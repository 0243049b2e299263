package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/jzx17/roundrobin/pkg/types"
)

// Policy decides whether and when a failed task body call is retried
type Policy interface {
	// ShouldRetry determines whether to retry after the given attempt failed
	ShouldRetry(err error, attempt int) bool

	// NextDelay returns the pause before the next attempt
	NextDelay(attempt int) time.Duration

	// MaxAttempts returns the maximum number of attempts, the first call included
	MaxAttempts() int
}

// RetryCondition is a function that determines retry conditions
type RetryCondition func(error) bool

// BasePolicy provides the attempt limit, retry condition and jitter shared by all policies
type BasePolicy struct {
	maxAttempts    int
	retryCondition RetryCondition
	jitter         bool
	jitterFactor   float64
	mu             sync.RWMutex
}

// NewBasePolicy creates a base retry policy
func NewBasePolicy(maxAttempts int, opts ...PolicyOption) *BasePolicy {
	policy := &BasePolicy{
		maxAttempts:    maxAttempts,
		retryCondition: DefaultRetryCondition,
		jitterFactor:   0.1,
	}

	for _, opt := range opts {
		opt(policy)
	}

	return policy
}

// ShouldRetry determines whether to retry
func (p *BasePolicy) ShouldRetry(err error, attempt int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if attempt >= p.maxAttempts {
		return false
	}
	return p.retryCondition(err)
}

// MaxAttempts returns the maximum attempts
func (p *BasePolicy) MaxAttempts() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.maxAttempts
}

func (p *BasePolicy) applyJitter(delay time.Duration) time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.jitter {
		return delay
	}

	jitterRange := float64(delay) * p.jitterFactor
	jitterAmount := (rand.Float64() - 0.5) * 2 * jitterRange

	result := delay + time.Duration(jitterAmount)
	if result < 0 {
		result = delay / 2
	}
	return result
}

// FixedDelay waits the same delay before every retry
type FixedDelay struct {
	*BasePolicy
	delay time.Duration
}

// NewFixedDelay creates a fixed delay retry policy
func NewFixedDelay(maxAttempts int, delay time.Duration, opts ...PolicyOption) *FixedDelay {
	return &FixedDelay{
		BasePolicy: NewBasePolicy(maxAttempts, opts...),
		delay:      delay,
	}
}

// NextDelay returns the delay for the next retry
func (p *FixedDelay) NextDelay(attempt int) time.Duration {
	return p.applyJitter(p.delay)
}

// ExponentialBackoff doubles the delay after each failed attempt, up to a cap
type ExponentialBackoff struct {
	*BasePolicy
	initialDelay time.Duration
	multiplier   float64
	maxDelay     time.Duration
}

// NewExponentialBackoff creates an exponential backoff retry policy
func NewExponentialBackoff(maxAttempts int, initialDelay time.Duration, opts ...PolicyOption) *ExponentialBackoff {
	return &ExponentialBackoff{
		BasePolicy:   NewBasePolicy(maxAttempts, opts...),
		initialDelay: initialDelay,
		multiplier:   2.0,
		maxDelay:     30 * time.Second,
	}
}

// WithMultiplier sets the growth factor
func (p *ExponentialBackoff) WithMultiplier(multiplier float64) *ExponentialBackoff {
	if multiplier >= 1 {
		p.multiplier = multiplier
	}
	return p
}

// WithMaxDelay caps the delay
func (p *ExponentialBackoff) WithMaxDelay(maxDelay time.Duration) *ExponentialBackoff {
	if maxDelay > 0 {
		p.maxDelay = maxDelay
	}
	return p
}

// NextDelay returns the delay for the next retry
func (p *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(float64(p.initialDelay) * math.Pow(p.multiplier, float64(attempt-1)))
	if delay > p.maxDelay || delay < 0 {
		delay = p.maxDelay
	}
	return p.applyJitter(delay)
}

// PolicyOption is a configuration option for retry policies
type PolicyOption func(*BasePolicy)

// WithRetryCondition sets the retry condition
func WithRetryCondition(condition RetryCondition) PolicyOption {
	return func(p *BasePolicy) {
		if condition != nil {
			p.retryCondition = condition
		}
	}
}

// WithJitter enables jitter
func WithJitter(enabled bool, factor float64) PolicyOption {
	return func(p *BasePolicy) {
		p.jitter = enabled
		if factor > 0 && factor <= 1.0 {
			p.jitterFactor = factor
		}
	}
}

// DefaultRetryCondition retries every failure except completion, preemption and
// scheduler errors.
func DefaultRetryCondition(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, types.ErrTaskComplete) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var schedErr *types.SchedulerError
	return !errors.As(err, &schedErr)
}
