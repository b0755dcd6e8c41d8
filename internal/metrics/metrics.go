package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sarvin"

// Metrics holds the HTTP and order-flow collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Requests      *prometheus.CounterVec
	LatencyMS     *prometheus.HistogramVec
	Checkouts     *prometheus.CounterVec
	StatusChanges *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg *prometheus.Registry) *Metrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "checkouts_total",
		Help:      "Payment verifications by outcome.",
	}, []string{"outcome"})
	statusChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "status_changes_total",
		Help:      "Admin status changes by target status and notification result.",
	}, []string{"status", "notified"})

	reg.MustRegister(requests, latency, checkouts, statusChanges)
	return &Metrics{
		Requests:      requests,
		LatencyMS:     latency,
		Checkouts:     checkouts,
		StatusChanges: statusChanges,
		gatherer:      reg,
	}
}

func (m *Metrics) ObserveRequest(handler, status string, ms float64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(handler, status).Inc()
	m.LatencyMS.WithLabelValues(handler).Observe(ms)
}

func (m *Metrics) CheckoutResult(outcome string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StatusChanged(status string, notified bool) {
	if m == nil {
		return
	}
	label := "false"
	if notified {
		label = "true"
	}
	m.StatusChanges.WithLabelValues(status, label).Inc()
}

// Handler exposes the registry this Metrics was created on.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
