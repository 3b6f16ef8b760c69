// Package observability holds the portal's Prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus collectors for the portal.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Searches counts orchestrated searches by endpoint and outcome
	// ("ok", "failed", "stale", "cached").
	Searches *prometheus.CounterVec

	// SearchDuration observes backend search latency in seconds, by endpoint.
	SearchDuration *prometheus.HistogramVec

	// BackendRequests counts outbound API calls by route and status class.
	BackendRequests *prometheus.CounterVec

	// OptionFetches counts filter option list fetches by dimension and outcome.
	OptionFetches *prometheus.CounterVec

	// ViewsTracked counts view-tracking calls by phase ("start", "complete").
	ViewsTracked *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg under namespace.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Searches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Searches issued by the search view, by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		SearchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Latency of search calls to the repository API.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		BackendRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Calls made to the repository API, by route and status class.",
		}, []string{"route", "status"}),
		OptionFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filters",
			Name:      "option_fetches_total",
			Help:      "Filter option list fetches, by dimension and outcome.",
		}, []string{"dimension", "outcome"}),
		ViewsTracked: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "projects",
			Name:      "views_tracked_total",
			Help:      "View-duration tracking calls, by phase and outcome.",
		}, []string{"phase", "outcome"}),
	}
}

// ObserveSearch records one orchestrated search
func (m *Metrics) ObserveSearch(endpoint, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Searches.WithLabelValues(endpoint, outcome).Inc()
	if seconds > 0 {
		m.SearchDuration.WithLabelValues(endpoint).Observe(seconds)
	}
}

// ObserveBackend records one outbound API call
func (m *Metrics) ObserveBackend(route string, status int) {
	if m == nil {
		return
	}
	m.BackendRequests.WithLabelValues(route, StatusClass(status)).Inc()
}

// ObserveOptions records one option list fetch
func (m *Metrics) ObserveOptions(dimension, outcome string) {
	if m == nil {
		return
	}
	m.OptionFetches.WithLabelValues(dimension, outcome).Inc()
}

// ObserveView records one view-tracking call
func (m *Metrics) ObserveView(phase, outcome string) {
	if m == nil {
		return
	}
	m.ViewsTracked.WithLabelValues(phase, outcome).Inc()
}

// StatusClass maps an HTTP status to "2xx".."5xx", or "error" when no
// response was received
func StatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "error"
	}
}
