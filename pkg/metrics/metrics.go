package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Plugin execution metrics
	PluginDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ipcrawler_plugin_duration_seconds",
			Help:    "Time taken for a plugin's Run call to return, by plugin name",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"plugin"},
	)

	TasksStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipcrawler_tasks_started_total",
			Help: "Total number of plugin tasks started, by phase and plugin",
		},
		[]string{"phase", "plugin"},
	)

	TasksCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipcrawler_tasks_completed_total",
			Help: "Total number of plugin tasks completed, by phase and plugin",
		},
		[]string{"phase", "plugin"},
	)

	TasksFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipcrawler_tasks_failed_total",
			Help: "Total number of plugin tasks that returned an error, by phase and plugin",
		},
		[]string{"phase", "plugin"},
	)

	// Discovery metrics
	PortsDiscoveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ipcrawler_ports_discovered_total",
			Help: "Total number of (port, name) pairs reported by PortScan plugins across all runs in this process, counted per plugin before RunState deduplication",
		},
	)

	ServicesDiscoveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ipcrawler_services_discovered_total",
			Help: "Total number of services reported by PortScan plugins across all runs in this process, counted per plugin before RunState deduplication",
		},
	)

	// Resource limiter metrics
	GlobalPermitsInUse = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ipcrawler_global_permits_in_use",
			Help: "Number of global concurrency permits currently held",
		},
	)

	PhasePermitsInUse = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ipcrawler_phase_permits_in_use",
			Help: "Number of concurrency permits currently held, by phase",
		},
		[]string{"phase"},
	)

	// Run-level metrics
	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ipcrawler_run_duration_seconds",
			Help:    "Total wall-clock duration of a scan run in seconds",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipcrawler_runs_total",
			Help: "Total number of scan runs, by outcome (completed, aborted)",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(PluginDuration)
	prometheus.MustRegister(TasksStartedTotal)
	prometheus.MustRegister(TasksCompletedTotal)
	prometheus.MustRegister(TasksFailedTotal)
	prometheus.MustRegister(PortsDiscoveredTotal)
	prometheus.MustRegister(ServicesDiscoveredTotal)
	prometheus.MustRegister(GlobalPermitsInUse)
	prometheus.MustRegister(PhasePermitsInUse)
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(RunsTotal)
}

// Handler returns the Prometheus HTTP handler for the registered metrics.
// Neither binary under cmd/ mounts it.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
