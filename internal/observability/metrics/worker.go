package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ReviewWorkerMetrics struct {
	registry *prometheus.Registry

	reviewTotal    *prometheus.CounterVec
	reviewDuration *prometheus.HistogramVec
	reviewInFlight prometheus.Gauge
	verdictsTotal  *prometheus.CounterVec
}

func NewReviewWorkerMetrics(service string) *ReviewWorkerMetrics {
	registry := prometheus.NewRegistry()

	reviewTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bidcheck",
			Subsystem: "review",
			Name:      "documents_total",
			Help:      "Total reviewed documents by status.",
		},
		[]string{"service", "status"},
	)
	reviewDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bidcheck",
			Subsystem: "review",
			Name:      "document_duration_seconds",
			Help:      "Document review duration in seconds by status.",
			Buckets:   []float64{1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	reviewInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bidcheck",
			Subsystem: "review",
			Name:      "documents_in_flight",
			Help:      "Number of in-flight document reviews.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	verdictsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bidcheck",
			Subsystem: "review",
			Name:      "verdicts_total",
			Help:      "Total checklist verdicts by outcome.",
		},
		[]string{"service", "verdict"},
	)

	registry.MustRegister(reviewTotal, reviewDuration, reviewInFlight, verdictsTotal)

	return &ReviewWorkerMetrics{
		registry:       registry,
		reviewTotal:    reviewTotal,
		reviewDuration: reviewDuration,
		reviewInFlight: reviewInFlight,
		verdictsTotal:  verdictsTotal,
	}
}

func (m *ReviewWorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ReviewWorkerMetrics) StartReview() {
	m.reviewInFlight.Inc()
}

func (m *ReviewWorkerMetrics) FinishReview(service string, duration time.Duration, err error) {
	m.reviewInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.reviewTotal.WithLabelValues(service, status).Inc()
	m.reviewDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *ReviewWorkerMetrics) RecordVerdict(service, verdict string) {
	if verdict == "" {
		verdict = "unknown"
	}
	m.verdictsTotal.WithLabelValues(service, verdict).Inc()
}
