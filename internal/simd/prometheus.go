package simd

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoSim-25-26J-441/egosim/internal/metrics"
	"github.com/GoSim-25-26J-441/egosim/pkg/models"
)

const metricsNamespace = "egosim"

var runStatuses = []models.RunStatus{
	models.RunStatusPending,
	models.RunStatusRunning,
	models.RunStatusCompleted,
	models.RunStatusFailed,
	models.RunStatusCancelled,
}

// DaemonMetrics holds the Prometheus metrics of the daemon
type DaemonMetrics struct {
	registry *prometheus.Registry

	TaskDuration *prometheus.HistogramVec
	Repetitions  *prometheus.CounterVec
	RunsObserved prometheus.Counter
}

// NewDaemonMetrics creates a registry with the run gauges of store, the task
// metrics fed by ObserveRun and the Go runtime collectors
func NewDaemonMetrics(store *RunStore) *DaemonMetrics {
	registry := prometheus.NewRegistry()

	taskDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "task_duration_seconds",
			Help:      "Wall time of one experiment task",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		},
		[]string{"experiment", "model"},
	)

	repetitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "repetitions_total",
			Help:      "Total number of Monte-Carlo repetitions executed",
		},
		[]string{"experiment", "model"},
	)

	runsObserved := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_observed_total",
			Help:      "Total number of finished runs whose task metrics were recorded",
		},
	)

	registry.MustRegister(
		taskDuration,
		repetitions,
		runsObserved,
		newRunStatusCollector(store),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &DaemonMetrics{
		registry:     registry,
		TaskDuration: taskDuration,
		Repetitions:  repetitions,
		RunsObserved: runsObserved,
	}
}

// Registry returns the registry the metrics are registered with
func (m *DaemonMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *DaemonMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun copies the task series of a finished run into the daemon metrics
func (m *DaemonMetrics) ObserveRun(c *metrics.Collector) {
	if c == nil {
		return
	}
	for _, p := range c.Series(metrics.MetricTaskDuration, nil) {
		m.TaskDuration.WithLabelValues(p.Labels["experiment"], p.Labels["model"]).Observe(p.Value / 1000)
	}
	for _, p := range c.Series(metrics.MetricRepetitions, nil) {
		m.Repetitions.WithLabelValues(p.Labels["experiment"], p.Labels["model"]).Add(p.Value)
	}
	m.RunsObserved.Inc()
}

// runStatusCollector reports the number of runs per status at scrape time
type runStatusCollector struct {
	store *RunStore
	desc  *prometheus.Desc
}

func newRunStatusCollector(store *RunStore) *runStatusCollector {
	return &runStatusCollector{
		store: store,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "runs"),
			"Number of runs by status",
			[]string{"status"}, nil,
		),
	}
}

func (c *runStatusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *runStatusCollector) Collect(ch chan<- prometheus.Metric) {
	counts := c.store.CountByStatus()
	for _, status := range runStatuses {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(counts[status]), string(status))
	}
}
