package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hzwangyq/bidcheck/internal/core/domain"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	tasksTotal    *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	tasksInFlight prometheus.Gauge
	pagesTotal    *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bidcheck",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bidcheck",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bidcheck",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	tasksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bidcheck",
			Subsystem: "conversion",
			Name:      "tasks_total",
			Help:      "Total finished conversion tasks by final status.",
		},
		[]string{"service", "status"},
	)
	taskDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bidcheck",
			Subsystem: "conversion",
			Name:      "task_duration_seconds",
			Help:      "Conversion task duration in seconds by final status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	tasksInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bidcheck",
			Subsystem: "conversion",
			Name:      "tasks_in_flight",
			Help:      "Number of conversion tasks currently running.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	pagesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bidcheck",
			Subsystem: "conversion",
			Name:      "pages_processed_total",
			Help:      "Total pages processed by completed conversions.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		tasksTotal,
		taskDuration,
		tasksInFlight,
		pagesTotal,
	)

	return &HTTPServerMetrics{
		registry:        registry,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		tasksTotal:      tasksTotal,
		taskDuration:    taskDuration,
		tasksInFlight:   tasksInFlight,
		pagesTotal:      pagesTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/files/"):
		return "/v1/files/{file_id}"
	case strings.HasPrefix(path, "/v1/convert2md/"):
		rest := strings.TrimPrefix(path, "/v1/convert2md/")
		switch {
		case strings.HasSuffix(rest, "/result"):
			return "/v1/convert2md/{task_id}/result"
		case strings.HasSuffix(rest, "/stop"):
			return "/v1/convert2md/{task_id}/stop"
		default:
			return "/v1/convert2md/{task_id}"
		}
	case strings.HasPrefix(path, "/v1/checklist/"):
		return "/v1/checklist/{item_id}"
	case strings.HasPrefix(path, "/v1/review/"):
		return "/v1/review/{file_id}"
	default:
		return path
	}
}

// ConversionCollector adapts conversion lifecycle notifications onto the
// shared registry.
type ConversionCollector struct {
	service string
	metrics *HTTPServerMetrics
}

func NewConversionCollector(service string, metrics *HTTPServerMetrics) *ConversionCollector {
	return &ConversionCollector{service: service, metrics: metrics}
}

func (c *ConversionCollector) TaskStarted() {
	c.metrics.tasksInFlight.Inc()
}

func (c *ConversionCollector) TaskFinished(status domain.TaskStatus, duration time.Duration, pages int) {
	c.metrics.tasksInFlight.Dec()
	c.metrics.tasksTotal.WithLabelValues(c.service, string(status)).Inc()
	c.metrics.taskDuration.WithLabelValues(c.service, string(status)).Observe(duration.Seconds())
	if pages > 0 {
		c.metrics.pagesTotal.WithLabelValues(c.service).Add(float64(pages))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
