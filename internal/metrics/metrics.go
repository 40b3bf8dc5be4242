// Package metrics holds the engine's Prometheus collectors. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	processed     *prometheus.CounterVec
	tiers         *prometheus.CounterVec
	matchRequests prometheus.Counter
	failures      *prometheus.CounterVec

	httpDuration *prometheus.SummaryVec
	httpRequests *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		processed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "jobintel_postings_processed_total",
			Help: "Postings processed by the pipeline, by decision.",
		}, []string{"decision"}),
		tiers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "jobintel_postings_tier_total",
			Help: "Quality tiers assigned by the pipeline.",
		}, []string{"tier"}),
		matchRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "jobintel_match_requests_total",
			Help: "Ranking requests served.",
		}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "jobintel_item_failures_total",
			Help: "Per-item failures recovered and skipped, by stage.",
		}, []string{"stage"}),
		httpDuration: f.NewSummaryVec(prometheus.SummaryOpts{
			Name: "jobintel_http_request_duration_seconds",
			Help: "HTTP request duration in seconds.",
			Objectives: map[float64]float64{
				0.5:  0.05,
				0.9:  0.01,
				0.99: 0.001,
			},
		}, []string{"method", "path", "status_code"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "jobintel_http_requests_total",
			Help: "HTTP requests served.",
		}, []string{"method", "path", "status_code"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) Processed(decision string) {
	if m != nil {
		m.processed.WithLabelValues(decision).Inc()
	}
}

func (m *Metrics) Tier(tier string) {
	if m != nil {
		m.tiers.WithLabelValues(tier).Inc()
	}
}

func (m *Metrics) MatchRequest() {
	if m != nil {
		m.matchRequests.Inc()
	}
}

// ItemFailed counts one recovered failure in stage (score, persist, match).
func (m *Metrics) ItemFailed(stage string) {
	if m != nil {
		m.failures.WithLabelValues(stage).Inc()
	}
}

// ObserveHTTP records one served request. path should be the route pattern,
// not the raw URL, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, path string, status int, took time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpDuration.WithLabelValues(method, path, code).Observe(took.Seconds())
	m.httpRequests.WithLabelValues(method, path, code).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
