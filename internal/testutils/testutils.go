// Package testutils provides test helpers shared by the scheduler packages
package testutils

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jzx17/roundrobin/pkg/types"
	"github.com/stretchr/testify/assert"
)

// TestConfig test configuration
type TestConfig struct {
	Timeout time.Duration
}

// TestContext bundles a bounded context with cleanup bookkeeping
type TestContext struct {
	t       *testing.T
	config  *TestConfig
	cleanup []func()
	mu      sync.Mutex
}

// NewTestContext creates new test context
func NewTestContext(t *testing.T, config *TestConfig) *TestContext {
	if config == nil {
		config = &TestConfig{Timeout: 5 * time.Second}
	}

	tc := &TestContext{
		t:      t,
		config: config,
	}
	t.Cleanup(tc.Cleanup)
	return tc
}

// T returns testing.T instance
func (tc *TestContext) T() *testing.T {
	return tc.t
}

// Context returns context with timeout
func (tc *TestContext) Context() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), tc.config.Timeout)
	tc.AddCleanup(cancel)
	return ctx
}

// AddCleanup adds cleanup function
func (tc *TestContext) AddCleanup(fn func()) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.cleanup = append(tc.cleanup, fn)
}

// Cleanup executes cleanup functions in reverse order
func (tc *TestContext) Cleanup() {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	for i := len(tc.cleanup) - 1; i >= 0; i-- {
		tc.cleanup[i]()
	}
	tc.cleanup = nil
}

// AssertEventually waits for condition to be true
func (tc *TestContext) AssertEventually(condition func() bool, msgAndArgs ...interface{}) bool {
	return assert.Eventually(tc.t, condition, tc.config.Timeout, time.Millisecond, msgAndArgs...)
}

// TransitionRecorder is a types.Metrics that keeps every observation for later assertions
type TransitionRecorder struct {
	mu          sync.Mutex
	transitions []types.Transition
	depths      []int
	reports     []types.Report
}

// NewTransitionRecorder creates an empty recorder
func NewTransitionRecorder() *TransitionRecorder {
	return &TransitionRecorder{}
}

func (r *TransitionRecorder) RecordTransition(t types.Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
}

func (r *TransitionRecorder) RecordQueueDepth(depth int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.depths = append(r.depths, depth)
}

func (r *TransitionRecorder) RecordReport(rep types.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
}

// Transitions returns a copy of the recorded transitions
func (r *TransitionRecorder) Transitions() []types.Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Transition(nil), r.transitions...)
}

// Len returns the number of recorded transitions
func (r *TransitionRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.transitions)
}

// Reports returns a copy of the recorded reports
func (r *TransitionRecorder) Reports() []types.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Report(nil), r.reports...)
}

// Depths returns a copy of the recorded queue depths
func (r *TransitionRecorder) Depths() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.depths...)
}

// Sequence returns "<action><worker>" entries filtered to the given actions, e.g. "resume0"
func (r *TransitionRecorder) Sequence(actions ...types.Action) []string {
	keep := make(map[types.Action]bool, len(actions))
	for _, a := range actions {
		keep[a] = true
	}

	var out []string
	for _, t := range r.Transitions() {
		if len(keep) == 0 || keep[t.Action] {
			out = append(out, string(t.Action)+strconv.Itoa(t.WorkerID))
		}
	}
	return out
}
