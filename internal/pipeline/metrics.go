package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the pipeline subsystem.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	RunDuration        *prometheus.HistogramVec
	EventsIngested     prometheus.Histogram
	SourceFetchesTotal *prometheus.CounterVec
	SourceEventsTotal  *prometheus.CounterVec
	AlertEventsTotal   *prometheus.CounterVec
	ExceededCrossings  prometheus.Histogram
	ConvergenceNodes   prometheus.Histogram
}

// NewMetrics registers and returns pipeline metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tellus_pipeline_runs_total",
			Help: "Total pipeline runs by final status.",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tellus_pipeline_run_duration_seconds",
			Help:    "Duration of pipeline runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s .. ~256s
		}, []string{"status"}),
		EventsIngested: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tellus_pipeline_events_ingested",
			Help:    "Events ingested per completed run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1 .. ~2048
		}),
		SourceFetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tellus_source_fetches_total",
			Help: "Total source fetches by source name and outcome.",
		}, []string{"source", "outcome"}),
		SourceEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tellus_source_events_total",
			Help: "Total events contributed per source.",
		}, []string{"source"}),
		AlertEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tellus_alert_events_total",
			Help: "Total triaged events by alert level.",
		}, []string{"level"}),
		ExceededCrossings: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tellus_exceeded_crossings",
			Help:    "Exceeded threshold crossings per completed run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		ConvergenceNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tellus_convergence_nodes",
			Help:    "Convergence nodes (CI >= 2) per completed run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.EventsIngested,
		m.SourceFetchesTotal,
		m.SourceEventsTotal,
		m.AlertEventsTotal,
		m.ExceededCrossings,
		m.ConvergenceNodes,
	)

	return m
}

// observeFetch records one source fetch outcome. Nil-safe so the pipeline
// can run without metrics in tests.
func (m *Metrics) observeFetch(source string, events int, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.SourceFetchesTotal.WithLabelValues(source, outcome).Inc()
	if err == nil {
		m.SourceEventsTotal.WithLabelValues(source).Add(float64(events))
	}
}

// observeRun records one finished run. result is nil for failed runs.
func (m *Metrics) observeRun(status RunStatus, dur time.Duration, result *Result) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(string(status)).Inc()
	m.RunDuration.WithLabelValues(string(status)).Observe(dur.Seconds())
	if result == nil {
		return
	}
	m.EventsIngested.Observe(float64(len(result.Events)))
	m.ExceededCrossings.Observe(float64(len(result.ThresholdCrossings)))
	m.ConvergenceNodes.Observe(float64(len(result.ConvergenceNodes)))
	for i := range result.Events {
		m.AlertEventsTotal.WithLabelValues(string(result.Events[i].AlertLevel)).Inc()
	}
}
