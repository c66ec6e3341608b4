// Package metrics exposes sync engine and hub metrics to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"trail-go/internal/trail"
)

const defaultNamespace = "trail"

// SyncMetrics implements trail.Metrics.
type SyncMetrics struct {
	uploadsTotal   *prometheus.CounterVec
	uploadDuration *prometheus.HistogramVec
	pending        prometheus.Gauge
}

var _ trail.Metrics = (*SyncMetrics)(nil)

// NewSyncMetrics registers the sync metrics with reg. An empty namespace
// defaults to "trail".
func NewSyncMetrics(reg prometheus.Registerer, namespace string) *SyncMetrics {
	if namespace == "" {
		namespace = defaultNamespace
	}
	f := promauto.With(reg)
	return &SyncMetrics{
		uploadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Session uploads by result and failing step",
		}, []string{"result", "step"}),

		uploadDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Duration of session uploads",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"result"}),

		pending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_sessions",
			Help:      "Saved sessions not yet synced",
		}),
	}
}

func (m *SyncMetrics) UploadFinished(result, step string, d time.Duration) {
	if step == "" {
		step = "none"
	}
	m.uploadsTotal.WithLabelValues(result, step).Inc()
	m.uploadDuration.WithLabelValues(result).Observe(d.Seconds())
}

func (m *SyncMetrics) SetPending(n int) {
	m.pending.Set(float64(n))
}

// HTTPMetrics records requests served by the hub.
type HTTPMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer, namespace string) *HTTPMetrics {
	if namespace == "" {
		namespace = "trailhub"
	}
	f := promauto.With(reg)
	return &HTTPMetrics{
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"route", "status"}),

		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func (m *HTTPMetrics) ObserveRequest(route string, status int, d time.Duration) {
	m.requestsTotal.WithLabelValues(route, statusClass(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return strconv.Itoa(code)
	}
	return strconv.Itoa(code/100) + "xx"
}
