// Package metrics defines the Prometheus collectors exported by rawrcart.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without metrics in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rawrcart"

// Cart write outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeTimedOut  = "timed_out"
	OutcomeLate      = "late"
)

// Metrics groups all collectors.
type Metrics struct {
	cacheLookups   *prometheus.CounterVec
	cartAdds       *prometheus.CounterVec
	cartProcessing prometheus.Histogram
	remoteFetches  *prometheus.CounterVec
	requests       *prometheus.CounterVec
}

// New registers the collectors on reg. Passing prometheus.DefaultRegisterer
// exposes them through promhttp.Handler.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache-aside lookups by cache name and where the value came from.",
		}, []string{"cache", "source"}),
		cartAdds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_add_total",
			Help:      "Add-item writes by outcome. Late writes timed out for the caller but were applied.",
		}, []string{"outcome"}),
		cartProcessing: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cart_add_processing_seconds",
			Help:      "Processing time of add-item writes, including those that finished late.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 3, 4, 5, 10},
		}),
		remoteFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_fetch_total",
			Help:      "Resilient fetches by result (cache, live, fallback).",
		}, []string{"result"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Handled gRPC requests by method and status code.",
		}, []string{"method", "code"}),
	}
}

// CacheLookup counts a cache-aside lookup.
func (m *Metrics) CacheLookup(cache, source string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(cache, source).Inc()
}

// CartAdd counts an add-item outcome and, when d > 0, observes its
// processing time.
func (m *Metrics) CartAdd(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.cartAdds.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.cartProcessing.Observe(d.Seconds())
	}
}

// RemoteFetch counts a resilient fetch result.
func (m *Metrics) RemoteFetch(result string) {
	if m == nil {
		return
	}
	m.remoteFetches.WithLabelValues(result).Inc()
}

// Request counts a handled gRPC request.
func (m *Metrics) Request(method, code string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, code).Inc()
}
