// Package metrics holds the Prometheus collectors for marketdesk.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all marketdesk collectors on a private prometheus registry.
// A nil *Registry is valid and records nothing.
type Registry struct {
	reg *prometheus.Registry

	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec
	CrumbRefreshes   *prometheus.CounterVec
	CrumbLookups     *prometheus.CounterVec
	ThrottleWait     prometheus.Histogram
	ValuationPasses  prometheus.Counter
	QuoteFailures    prometheus.Counter
	AlertsTriggered  *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// NewRegistry creates and registers all collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketdesk_upstream_requests_total",
				Help: "Upstream data provider requests by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		UpstreamLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketdesk_upstream_request_seconds",
				Help:    "Upstream request latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint"},
		),
		CrumbRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketdesk_crumb_refreshes_total",
				Help: "Crumb acquisition attempts by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		CrumbLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketdesk_crumb_lookups_total",
				Help: "Crumb cache lookups by result (hit or miss)",
			},
			[]string{"result"},
		),
		ThrottleWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "marketdesk_throttle_wait_seconds",
				Help:    "Time callers spent blocked in the outbound call throttle",
				Buckets: []float64{0, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60},
			},
		),
		ValuationPasses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "marketdesk_valuation_passes_total",
				Help: "Portfolio valuation passes",
			},
		),
		QuoteFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "marketdesk_valuation_quote_failures_total",
				Help: "Per-symbol quote failures during valuation (stale data retained)",
			},
		),
		AlertsTriggered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketdesk_alerts_triggered_total",
				Help: "Portfolio alerts triggered by alert kind",
			},
			[]string{"kind"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketdesk_http_requests_total",
				Help: "HTTP API requests by method and status",
			},
			[]string{"method", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketdesk_http_request_seconds",
				Help:    "HTTP API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}

	r.reg.MustRegister(
		r.UpstreamRequests,
		r.UpstreamLatency,
		r.CrumbRefreshes,
		r.CrumbLookups,
		r.ThrottleWait,
		r.ValuationPasses,
		r.QuoteFailures,
		r.AlertsTriggered,
		r.HTTPRequests,
		r.HTTPDuration,
	)

	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

// ObserveUpstream records one upstream request.
func (r *Registry) ObserveUpstream(endpoint, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	r.UpstreamLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveCrumbRefresh records one crumb strategy attempt.
func (r *Registry) ObserveCrumbRefresh(strategy string, ok bool) {
	if r == nil {
		return
	}
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	r.CrumbRefreshes.WithLabelValues(strategy, outcome).Inc()
}

// ObserveCrumbLookup records a crumb cache hit or miss.
func (r *Registry) ObserveCrumbLookup(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.CrumbLookups.WithLabelValues(result).Inc()
}

// ObserveThrottleWait records time spent blocked in the throttle.
func (r *Registry) ObserveThrottleWait(d time.Duration) {
	if r == nil {
		return
	}
	r.ThrottleWait.Observe(d.Seconds())
}

// ObserveValuation records a valuation pass and its per-symbol failures.
func (r *Registry) ObserveValuation(quoteFailures int) {
	if r == nil {
		return
	}
	r.ValuationPasses.Inc()
	r.QuoteFailures.Add(float64(quoteFailures))
}

// ObserveAlertTriggered records a triggered alert.
func (r *Registry) ObserveAlertTriggered(kind string) {
	if r == nil {
		return
	}
	r.AlertsTriggered.WithLabelValues(kind).Inc()
}

// ObserveHTTP records one HTTP API request.
func (r *Registry) ObserveHTTP(method string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	r.HTTPDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}
