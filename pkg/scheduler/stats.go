package scheduler

import (
	"sync"
	"time"

	"github.com/jzx17/roundrobin/pkg/types"
)

// Aggregator accumulates the run and wait time of terminated workers
type Aggregator struct {
	mu        sync.Mutex
	totalRun  time.Duration
	totalWait time.Duration
	folded    int

	report *types.Report
}

// NewAggregator creates an empty aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add folds one terminated worker's totals
func (a *Aggregator) Add(run, wait time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalRun += run
	a.totalWait += wait
	a.folded++
}

// Totals returns the running sums and the number of folded workers
func (a *Aggregator) Totals() (run, wait time.Duration, folded int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalRun, a.totalWait, a.folded
}

// Finalize produces the report for the given worker count. Only the first call computes
// it; later calls return the same report.
func (a *Aggregator) Finalize(workers int) types.Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.report != nil {
		return *a.report
	}

	rep := types.Report{
		Workers:       workers,
		TotalRunTime:  a.totalRun,
		TotalWaitTime: a.totalWait,
	}
	if workers > 0 {
		rep.AverageRunTime = a.totalRun / time.Duration(workers)
		rep.AverageWaitTime = a.totalWait / time.Duration(workers)
	}
	a.report = &rep
	return rep
}

// Report returns the finalized report, if any
func (a *Aggregator) Report() (types.Report, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.report == nil {
		return types.Report{}, false
	}
	return *a.report, true
}
