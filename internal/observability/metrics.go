package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	JobsClaimed        prometheus.Counter
	JobClaimConflicts  prometheus.Counter
	JobsFinished       *prometheus.CounterVec
	JobDuration        prometheus.Histogram
	WorkerLastTick     prometheus.Gauge
	WorkerRunning      prometheus.Gauge
	RetrievalCandidate prometheus.Histogram
	Asks               *prometheus.CounterVec
	AskLatency         prometheus.Histogram
	HTTPRequests       *prometheus.CounterVec

	stages *stageWindow
}

// NewMetrics registers instruments on the default registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegistry(namespace, prometheus.DefaultRegisterer)
}

func NewMetricsWithRegistry(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		JobsClaimed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_claimed_total",
			Help:      "Jobs moved from queued to running by this process.",
		}),
		JobClaimConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_claim_conflicts_total",
			Help:      "Claims lost to another worker.",
		}),
		JobsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Jobs finalized by terminal status.",
		}, []string{"status"}),
		JobDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time from claim to finalize.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}),
		WorkerLastTick: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_last_tick_timestamp_seconds",
			Help:      "Unix time of the last worker poll.",
		}),
		WorkerRunning: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_running",
			Help:      "1 while the extraction worker loop is running.",
		}),
		RetrievalCandidate: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_candidates",
			Help:      "Candidate memory units per question before ranking.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64, 128},
		}),
		Asks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asks_total",
			Help:      "Questions answered by outcome.",
		}, []string{"outcome"}),
		AskLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ask_latency_seconds",
			Help:      "End-to-end latency of a grounded answer.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "status"}),
		stages: newStageWindow(256),
	}
}

func (m *Metrics) ObserveClaim(won bool) {
	if m == nil {
		return
	}
	if won {
		m.JobsClaimed.Inc()
		return
	}
	m.JobClaimConflicts.Inc()
}

func (m *Metrics) ObserveJobFinished(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.JobsFinished.WithLabelValues(status).Inc()
	m.JobDuration.Observe(d.Seconds())
	m.stages.Observe("job_total", float64(d.Milliseconds()))
}

func (m *Metrics) MarkWorkerTick(t time.Time) {
	if m == nil {
		return
	}
	m.WorkerLastTick.Set(float64(t.Unix()))
}

func (m *Metrics) SetWorkerRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.WorkerRunning.Set(1)
		return
	}
	m.WorkerRunning.Set(0)
}

func (m *Metrics) ObserveCandidates(n int) {
	if m == nil {
		return
	}
	m.RetrievalCandidate.Observe(float64(n))
}

func (m *Metrics) ObserveAsk(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Asks.WithLabelValues(outcome).Inc()
	m.AskLatency.Observe(d.Seconds())
	m.stages.Observe("ask_total", float64(d.Milliseconds()))
}

func (m *Metrics) ObserveHTTP(route string, status int) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// ObserveStage records one pipeline stage latency in the rolling window.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stages.Observe(stage, float64(d.Microseconds())/1000)
}

// ObserveIndicator counts a notable pipeline event such as a keyword fallback.
func (m *Metrics) ObserveIndicator(name string) {
	if m == nil {
		return
	}
	m.stages.ObserveIndicator(name)
}

func (m *Metrics) SnapshotStages() StageSnapshot {
	if m == nil {
		return StageSnapshot{GeneratedAt: time.Now().UTC(), Stages: []StageStats{}}
	}
	return m.stages.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves a specific gatherer, used with NewMetricsWithRegistry.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
