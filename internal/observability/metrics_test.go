package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics("portal", prometheus.NewRegistry())

	m.ObserveSearch("title", "ok", 0.2)
	m.ObserveSearch("title", "failed", 0)
	m.ObserveBackend("/api/search/title", 500)
	m.ObserveOptions("authors", "ok")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues("title", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues("title", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendRequests.WithLabelValues("/api/search/title", "5xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OptionFetches.WithLabelValues("authors", "ok")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSearch("allprojs", "ok", 1)
		m.ObserveBackend("/api/authors", 200)
		m.ObserveOptions("keywords", "failed")
		m.ObserveView("start", "ok")
	})
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", StatusClass(204))
	assert.Equal(t, "4xx", StatusClass(404))
	assert.Equal(t, "5xx", StatusClass(503))
	assert.Equal(t, "error", StatusClass(0))
}
