// Package types defines error types
package types

import (
	"errors"
	"fmt"
)

// Predefined errors
var (
	// ErrInvalidConfig indicates the scheduler configuration failed validation
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrTimerCreate indicates the quantum ticker could not be created
	ErrTimerCreate = errors.New("cannot create quantum timer")

	// ErrWorkerCreate indicates a worker execution unit could not be created
	ErrWorkerCreate = errors.New("cannot create worker")

	// ErrWorkerExited indicates a directive was sent to a worker whose goroutine is gone
	ErrWorkerExited = errors.New("worker has exited")

	// ErrTaskComplete is returned by a task body that has no more work to do
	ErrTaskComplete = errors.New("task complete")

	// ErrDuplicateEntry indicates a value is already present in the run queue
	ErrDuplicateEntry = errors.New("entry already queued")

	// ErrSchedulerRunning indicates Run was called more than once
	ErrSchedulerRunning = errors.New("scheduler already started")
)

// SchedulerError records a failure of a scheduler operation on a specific worker
type SchedulerError struct {
	// Operation is the name of the operation where the error occurred
	Operation string

	// WorkerID is the worker index, or -1 when the error is not tied to a worker
	WorkerID int

	// Cause is the underlying error
	Cause error

	// Context contains error context information
	Context map[string]interface{}
}

// Error implements the error interface
func (e *SchedulerError) Error() string {
	if e.WorkerID < 0 {
		return fmt.Sprintf("scheduler error in operation %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("scheduler error in operation %s (worker %d): %v", e.Operation, e.WorkerID, e.Cause)
}

// Unwrap returns the underlying error
func (e *SchedulerError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is a specific error
func (e *SchedulerError) Is(target error) bool {
	return errors.Is(e.Cause, target)
}

// NewSchedulerError creates a new SchedulerError
func NewSchedulerError(operation string, workerID int, cause error) *SchedulerError {
	return &SchedulerError{
		Operation: operation,
		WorkerID:  workerID,
		Cause:     cause,
		Context:   make(map[string]interface{}),
	}
}

// WithContext adds error context
func (e *SchedulerError) WithContext(key string, value interface{}) *SchedulerError {
	e.Context[key] = value
	return e
}
