package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes recorded by FacetMetrics.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeInvalid  = "invalid"
)

// FacetMetrics counts facet operations and their latency.
type FacetMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewFacetMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewFacetMetrics(reg prometheus.Registerer) *FacetMetrics {
	m := &FacetMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "facet_requests_total",
			Help: "Facet operations by category and outcome.",
		}, []string{"operation", "category", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "facet_request_duration_seconds",
			Help:    "Facet operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration)
	}
	return m
}

func (m *FacetMetrics) observe(operation, category, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(operation, category, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
