package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordState_String(t *testing.T) {
	assert.Equal(t, "ready", RecordReady.String())
	assert.Equal(t, "running", RecordRunning.String())
	assert.Equal(t, "terminated", RecordTerminated.String())
	assert.Equal(t, "unknown", RecordState(42).String())
}

func TestRecord_Accounting(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := NewRecord(&fakeHandle{id: 7}, 2, start)

	assert.Equal(t, 7, rec.ID())
	assert.Equal(t, RecordReady, rec.state)

	rec.markResumed(start.Add(3 * time.Millisecond))
	assert.Equal(t, RecordRunning, rec.state)
	assert.Equal(t, 3*time.Millisecond, rec.waitTime)

	assert.Equal(t, 1, rec.markSuspended(start.Add(8*time.Millisecond)))
	assert.Equal(t, 5*time.Millisecond, rec.runTime)

	rec.markResumed(start.Add(10 * time.Millisecond))
	assert.Equal(t, 0, rec.markSuspended(start.Add(11*time.Millisecond)))

	snap := rec.snapshot()
	assert.Equal(t, 7, snap.WorkerID)
	assert.Equal(t, 2, snap.InitialQuanta)
	assert.Equal(t, 0, snap.QuantaRemaining)
	assert.Equal(t, 2, snap.Resumes)
	assert.Equal(t, 6*time.Millisecond, snap.RunTime)
	assert.Equal(t, 5*time.Millisecond, snap.WaitTime)
}

func TestRecord_QuantaNeverNegative(t *testing.T) {
	now := time.Now()
	rec := NewRecord(&fakeHandle{}, 1, now)
	assert.Equal(t, 0, rec.markSuspended(now))
	assert.Equal(t, 0, rec.markSuspended(now))
}

func TestElapsed(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		now      time.Time
		expected time.Duration
	}{
		{name: "truncated to microseconds", now: base.Add(1500 * time.Nanosecond), expected: time.Microsecond},
		{name: "sub-microsecond is zero", now: base.Add(999 * time.Nanosecond), expected: 0},
		{name: "clock went backwards", now: base.Add(-time.Second), expected: 0},
		{name: "exact", now: base.Add(2 * time.Second), expected: 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, elapsed(tt.now, base))
		})
	}
}
