package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/bonusfinder-backend/internal/platform/envutil"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

const namespace = "bonusfinder"

// Metrics owns a private registry so repeated construction in tests never
// collides with the default registerer. Every method is nil-safe.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec

	ingestShops *prometheus.CounterVec
	ingestRates *prometheus.CounterVec

	proposals   *prometheus.CounterVec
	evaluations *prometheus.HistogramVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", true)
}

func Current() *Metrics {
	return instance
}

// Init builds the process-wide metrics once. It returns nil when metrics are
// disabled.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("Prometheus metrics initialized")
		}
	})
	return instance
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request latency in seconds by method/route.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"method", "route"}),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "inflight_requests",
			Help:      "In-flight API requests.",
		}),
		jobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Finished job runs by type, queue and final status.",
		}, []string{"job_type", "queue", "status"}),
		jobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "run_duration_seconds",
			Help:      "Job run duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}, []string{"job_type"}),
		ingestShops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "shops_total",
			Help:      "Ingested shop records by source and outcome.",
		}, []string{"source", "outcome"}),
		ingestRates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rates_total",
			Help:      "Reconciled rate entries by source and outcome (changed, unchanged, error).",
		}, []string{"source", "outcome"}),
		proposals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proposals",
			Name:      "transitions_total",
			Help:      "Proposal lifecycle transitions by type and action.",
		}, []string{"proposal_type", "action"}),
		evaluations: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "duration_seconds",
			Help:      "Evaluation latency in seconds by mode.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	m.apiRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveJob(jobType, queue, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(jobType, queue, status).Inc()
	m.jobDuration.WithLabelValues(jobType).Observe(dur.Seconds())
}

func (m *Metrics) IncIngestShop(source, outcome string) {
	if m == nil {
		return
	}
	m.ingestShops.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) AddIngestRates(source, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ingestRates.WithLabelValues(source, outcome).Add(float64(n))
}

func (m *Metrics) IncProposal(proposalType, action string) {
	if m == nil {
		return
	}
	m.proposals.WithLabelValues(proposalType, action).Inc()
}

func (m *Metrics) ObserveEvaluation(mode string, dur time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(mode).Observe(dur.Seconds())
}
