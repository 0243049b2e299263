package scheduler

import (
	"time"

	"github.com/jzx17/roundrobin/pkg/types"
)

// RecordState is the scheduling state of a worker as tracked by the engine
type RecordState int32

const (
	// RecordReady means the worker sits in the run queue
	RecordReady RecordState = iota
	// RecordRunning means the worker owns the running slot
	RecordRunning
	// RecordTerminated means the worker exhausted its quanta or exited; it never runs again
	RecordTerminated
)

// String returns the string representation of RecordState
func (s RecordState) String() string {
	switch s {
	case RecordReady:
		return "ready"
	case RecordRunning:
		return "running"
	case RecordTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Handle is the engine's view of a worker execution unit
type Handle interface {
	ID() int
	Deliver(d types.Directive) error
}

// Record is the per-worker scheduling metadata. All fields are guarded by the owning
// engine's lock.
type Record struct {
	handle Handle
	state  RecordState

	initialQuanta   int
	quantaRemaining int
	resumes         int

	runTime     time.Duration
	waitTime    time.Duration
	resumeTime  time.Time
	suspendTime time.Time
}

// NewRecord creates a READY record. created seeds the first wait interval.
func NewRecord(handle Handle, quanta int, created time.Time) *Record {
	return &Record{
		handle:          handle,
		state:           RecordReady,
		initialQuanta:   quanta,
		quantaRemaining: quanta,
		resumeTime:      created,
		suspendTime:     created,
	}
}

// ID returns the worker index
func (r *Record) ID() int {
	return r.handle.ID()
}

// markResumed accounts the wait since the last suspension and enters RUNNING
func (r *Record) markResumed(now time.Time) {
	r.waitTime += elapsed(now, r.suspendTime)
	r.resumeTime = now
	r.resumes++
	r.state = RecordRunning
}

// markSuspended accounts the run since the last resume, spends one quantum and returns
// the quanta left
func (r *Record) markSuspended(now time.Time) int {
	r.runTime += elapsed(now, r.resumeTime)
	r.suspendTime = now
	if r.quantaRemaining > 0 {
		r.quantaRemaining--
	}
	return r.quantaRemaining
}

func (r *Record) snapshot() RecordSnapshot {
	return RecordSnapshot{
		WorkerID:        r.ID(),
		State:           r.state,
		InitialQuanta:   r.initialQuanta,
		QuantaRemaining: r.quantaRemaining,
		Resumes:         r.resumes,
		RunTime:         r.runTime,
		WaitTime:        r.waitTime,
	}
}

// elapsed returns now-since at microsecond resolution, never negative
func elapsed(now, since time.Time) time.Duration {
	d := now.Sub(since).Truncate(time.Microsecond)
	if d < 0 {
		return 0
	}
	return d
}

// RecordSnapshot is a read-only copy of a Record
type RecordSnapshot struct {
	WorkerID        int
	State           RecordState
	InitialQuanta   int
	QuantaRemaining int
	Resumes         int
	RunTime         time.Duration
	WaitTime        time.Duration
}
