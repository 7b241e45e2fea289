package pool

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess = "success"
	outcomeError   = "error"
	outcomePanic   = "panic"
)

// Metrics holds the Prometheus collectors a Pool reports to.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	TasksSubmitted prometheus.Counter
	TasksFinished  *prometheus.CounterVec
	TasksDropped   prometheus.Counter
	TasksQueued    prometheus.Gauge
	WorkersBusy    prometheus.Gauge
	TaskDuration   prometheus.Histogram
}

// NewMetrics creates the pool collectors and registers them with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		TasksSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_submitted_total",
			Help:      "Total number of tasks accepted by the pool",
		}),
		TasksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Total number of tasks run to completion, by outcome",
		}, []string{"outcome"}),
		TasksDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_dropped_total",
			Help:      "Total number of tasks discarded before they ran",
		}),
		TasksQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_queued",
			Help:      "Tasks waiting in the shared queue",
		}),
		WorkersBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_busy",
			Help:      "Workers currently running a task",
		}),
		TaskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Histogram of task execution time",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{
		m.TasksSubmitted,
		m.TasksFinished,
		m.TasksDropped,
		m.TasksQueued,
		m.WorkersBusy,
		m.TaskDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// queued moves the queued gauge by n, which is negative when a push is
// rolled back.
func (m *Metrics) queued(n int) {
	if m == nil {
		return
	}
	m.TasksQueued.Add(float64(n))
}

func (m *Metrics) submitted(n int) {
	if m == nil {
		return
	}
	m.TasksSubmitted.Add(float64(n))
}

func (m *Metrics) started() {
	if m == nil {
		return
	}
	m.TasksQueued.Dec()
	m.WorkersBusy.Inc()
}

func (m *Metrics) finished(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.WorkersBusy.Dec()
	m.TasksFinished.WithLabelValues(outcome).Inc()
	m.TaskDuration.Observe(took.Seconds())
}

func (m *Metrics) dropped(n int) {
	if m == nil || n == 0 {
		return
	}
	m.TasksDropped.Add(float64(n))
	m.TasksQueued.Sub(float64(n))
}
