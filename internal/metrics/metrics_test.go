package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.CheckoutResult("success")
	m.CheckoutResult("success")
	m.CheckoutResult("TotalMismatch")
	m.StatusChanged("shipped", true)
	m.ObserveRequest("/api/orders", "200", 12)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Checkouts.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Checkouts.WithLabelValues("TotalMismatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatusChanges.WithLabelValues("shipped", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/api/orders", "200")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CheckoutResult("success")
		m.StatusChanged("shipped", false)
		m.ObserveRequest("/", "200", 1)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.CheckoutResult("success")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sarvin_orders_checkouts_total{outcome="success"} 1`)
}
