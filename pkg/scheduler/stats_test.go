package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_Finalize(t *testing.T) {
	a := NewAggregator()
	_, ok := a.Report()
	assert.False(t, ok)

	a.Add(3*time.Second, time.Second)
	a.Add(time.Second, 4*time.Second)

	run, wait, folded := a.Totals()
	assert.Equal(t, 4*time.Second, run)
	assert.Equal(t, 5*time.Second, wait)
	assert.Equal(t, 2, folded)

	rep := a.Finalize(2)
	assert.Equal(t, 2, rep.Workers)
	assert.Equal(t, 2*time.Second, rep.AverageRunTime)
	assert.Equal(t, 2500*time.Millisecond, rep.AverageWaitTime)

	got, ok := a.Report()
	require.True(t, ok)
	assert.Equal(t, rep, got)
}

func TestAggregator_FinalizeOnce(t *testing.T) {
	a := NewAggregator()
	a.Add(time.Second, time.Second)
	first := a.Finalize(1)

	a.Add(time.Second, time.Second)
	assert.Equal(t, first, a.Finalize(1))
}

func TestAggregator_ZeroWorkers(t *testing.T) {
	rep := NewAggregator().Finalize(0)
	assert.Equal(t, time.Duration(0), rep.AverageRunTime)
	assert.Equal(t, time.Duration(0), rep.AverageWaitTime)
}

func TestAggregator_Concurrent(t *testing.T) {
	a := NewAggregator()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Add(time.Millisecond, 2*time.Millisecond)
		}()
	}
	wg.Wait()

	run, wait, folded := a.Totals()
	assert.Equal(t, 50*time.Millisecond, run)
	assert.Equal(t, 100*time.Millisecond, wait)
	assert.Equal(t, 50, folded)
}
