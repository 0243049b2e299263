// Package types defines core interfaces and types shared by the scheduler packages
package types

import (
	"context"
	"time"
)

// Directive is a control message delivered to one specific worker
type Directive int32

const (
	// DirectiveSuspend asks the worker to pause at its next checkpoint
	DirectiveSuspend Directive = iota
	// DirectiveResume lets the worker continue executing its task body
	DirectiveResume
	// DirectiveCancel asks the worker to exit permanently
	DirectiveCancel
)

// String returns the string representation of Directive
func (d Directive) String() string {
	switch d {
	case DirectiveSuspend:
		return "suspend"
	case DirectiveResume:
		return "resume"
	case DirectiveCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Action names a scheduling transition reported to observers
type Action string

const (
	ActionResume  Action = "resume"
	ActionSuspend Action = "suspend"
	ActionCancel  Action = "cancel"
	// ActionLost marks a worker whose goroutine exited before it could be resumed
	ActionLost Action = "lost"
)

// Transition is a single scheduling event for one worker
type Transition struct {
	WorkerID        int
	Action          Action
	At              time.Time
	QuantaRemaining int
}

// Report holds the aggregate statistics produced once all workers have terminated
type Report struct {
	// Workers is the total worker count the averages are divided by
	Workers int

	TotalRunTime    time.Duration
	TotalWaitTime   time.Duration
	AverageRunTime  time.Duration
	AverageWaitTime time.Duration
}

// TaskBody is the opaque work a worker performs while it holds the running slot.
// The context is canceled when the worker is suspended or canceled; bodies must return
// promptly once it is done. A body may be called many times within one quantum.
type TaskBody func(ctx context.Context) error

// ErrorHandler decides what to do with a task body error. Returning a non-nil error makes
// the worker exit.
type ErrorHandler func(workerID int, err error) error

// Metrics receives scheduling observations
type Metrics interface {
	// RecordTransition is called for every resume, suspend, cancel or lost worker
	RecordTransition(t Transition)

	// RecordQueueDepth is called after the run queue changes size
	RecordQueueDepth(depth int)

	// RecordReport is called once with the final statistics
	RecordReport(r Report)
}

// NopMetrics discards all observations
type NopMetrics struct{}

func (NopMetrics) RecordTransition(Transition) {}
func (NopMetrics) RecordQueueDepth(int)        {}
func (NopMetrics) RecordReport(Report)         {}
