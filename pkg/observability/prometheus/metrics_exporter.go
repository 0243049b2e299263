// Package prometheus exports scheduler transitions and statistics as Prometheus collectors
package prometheus

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jzx17/roundrobin/pkg/types"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	QuantumBuckets []float64
}

// MetricsExporter adapts types.Metrics to Prometheus collectors.
type MetricsExporter struct {
	transitionsTotal   *prom.CounterVec
	queueDepth         prom.Gauge
	completedWorkers   prom.Gauge
	quantumRunSeconds  prom.Histogram
	totalRunSeconds    prom.Gauge
	totalWaitSeconds   prom.Gauge
	averageRunSeconds  prom.Gauge
	averageWaitSeconds prom.Gauge

	mu      sync.Mutex
	resumed map[int]time.Time
}

var _ types.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers the scheduler collectors.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "rrsched"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.QuantumBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	transitions := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "transitions_total",
		Help:      "Total number of worker state transitions.",
	}, []string{"worker", "action"})
	depth := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Number of workers in the run queue.",
	})
	completed := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "completed_workers",
		Help:      "Number of terminated workers.",
	})
	quantumRun := prom.NewHistogram(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "quantum_run_seconds",
		Help:      "Time a worker held the running slot per resume.",
		Buckets:   buckets,
	})
	totalRun := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "total_run_seconds",
		Help:      "Total run time of all workers, set once the run completes.",
	})
	totalWait := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "total_wait_seconds",
		Help:      "Total wait time of all workers, set once the run completes.",
	})
	averageRun := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "average_run_seconds",
		Help:      "Average run time per worker, set once the run completes.",
	})
	averageWait := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "average_wait_seconds",
		Help:      "Average wait time per worker, set once the run completes.",
	})

	var err error
	if transitions, err = registerCollector(reg, transitions); err != nil {
		return nil, err
	}
	if depth, err = registerCollector(reg, depth); err != nil {
		return nil, err
	}
	if completed, err = registerCollector(reg, completed); err != nil {
		return nil, err
	}
	if quantumRun, err = registerCollector(reg, quantumRun); err != nil {
		return nil, err
	}
	if totalRun, err = registerCollector(reg, totalRun); err != nil {
		return nil, err
	}
	if totalWait, err = registerCollector(reg, totalWait); err != nil {
		return nil, err
	}
	if averageRun, err = registerCollector(reg, averageRun); err != nil {
		return nil, err
	}
	if averageWait, err = registerCollector(reg, averageWait); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		transitionsTotal:   transitions,
		queueDepth:         depth,
		completedWorkers:   completed,
		quantumRunSeconds:  quantumRun,
		totalRunSeconds:    totalRun,
		totalWaitSeconds:   totalWait,
		averageRunSeconds:  averageRun,
		averageWaitSeconds: averageWait,
		resumed:            make(map[int]time.Time),
	}, nil
}

// RecordTransition counts the transition and observes the slice length when a running
// worker is preempted.
func (m *MetricsExporter) RecordTransition(t types.Transition) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(strconv.Itoa(t.WorkerID), actionLabel(t.Action)).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()

	switch t.Action {
	case types.ActionResume:
		m.resumed[t.WorkerID] = t.At
		return
	case types.ActionCancel, types.ActionLost:
		m.completedWorkers.Inc()
	}
	if at, ok := m.resumed[t.WorkerID]; ok {
		delete(m.resumed, t.WorkerID)
		m.quantumRunSeconds.Observe(t.At.Sub(at).Seconds())
	}
}

// RecordQueueDepth records queue depth.
func (m *MetricsExporter) RecordQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// RecordReport publishes the final statistics.
func (m *MetricsExporter) RecordReport(rep types.Report) {
	if m == nil {
		return
	}
	m.totalRunSeconds.Set(rep.TotalRunTime.Seconds())
	m.totalWaitSeconds.Set(rep.TotalWaitTime.Seconds())
	m.averageRunSeconds.Set(rep.AverageRunTime.Seconds())
	m.averageWaitSeconds.Set(rep.AverageWaitTime.Seconds())
}

func actionLabel(a types.Action) string {
	if a == "" {
		return "unknown"
	}
	return string(a)
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
