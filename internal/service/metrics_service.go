package service

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the serial link.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	serialLines     *prometheus.CounterVec
	deviceConnected prometheus.Gauge
	enrollments     *prometheus.CounterVec
	activities      *prometheus.CounterVec
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	serialLines := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "serial_lines_total",
		Help: "Lines exchanged with the sensor by direction",
	}, []string{"direction"})

	deviceConnected := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "device_connected",
		Help: "Whether a serial port is currently open",
	})

	enrollments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollments_total",
		Help: "Enrollment handshakes by outcome",
	}, []string{"outcome"})

	activities := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "activities_total",
		Help: "Recorded clock events by type",
	}, []string{"type"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, serialLines, deviceConnected, enrollments, activities, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		serialLines:     serialLines,
		deviceConnected: deviceConnected,
		enrollments:     enrollments,
		activities:      activities,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"method": method, "path": path, "status": http.StatusText(status)}
	m.requestDuration.With(labels).Observe(duration.Seconds())
	m.requestTotal.With(labels).Inc()
}

// ObserveSerialLine counts one line in the given direction, "in" or
// "out".
func (m *MetricsService) ObserveSerialLine(direction string) {
	if m == nil {
		return
	}
	m.serialLines.WithLabelValues(direction).Inc()
}

// SetDeviceConnected reflects the port state.
func (m *MetricsService) SetDeviceConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.deviceConnected.Set(1)
	} else {
		m.deviceConnected.Set(0)
	}
}

// ObserveEnrollment counts one finished handshake by outcome.
func (m *MetricsService) ObserveEnrollment(outcome string) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(outcome).Inc()
}

// ObserveActivity counts one recorded clock event.
func (m *MetricsService) ObserveActivity(activityType string) {
	if m == nil {
		return
	}
	m.activities.WithLabelValues(activityType).Inc()
}
