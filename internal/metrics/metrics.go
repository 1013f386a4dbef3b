// Package metrics exposes pipeline counters on a private Prometheus registry.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	framesCaptured    *prometheus.CounterVec
	framesDropped     *prometheus.CounterVec
	sourceReconnects  *prometheus.CounterVec
	detections        *prometheus.CounterVec
	detectionDuration prometheus.Histogram
	notifications     *prometheus.CounterVec
	subscribers       prometheus.Gauge
	statusUpdates     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		framesCaptured: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "firewatch_frames_captured_total",
			Help: "Frames read from camera sources.",
		}, []string{"camera"}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "firewatch_frames_dropped_total",
			Help: "Buffered frames overwritten before detection read them.",
		}, []string{"camera"}),
		sourceReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "firewatch_source_reconnects_total",
			Help: "Camera source reconnect attempts.",
		}, []string{"camera"}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "firewatch_detections_total",
			Help: "Classifier runs grouped by result (fire, clear, error).",
		}, []string{"camera", "result"}),
		detectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "firewatch_detection_duration_seconds",
			Help:    "Time spent in the classifier.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "firewatch_notifications_total",
			Help: "Emergency notifications grouped by result (sent, failed, suppressed, dropped).",
		}, []string{"result"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "firewatch_subscribers",
			Help: "Currently registered status subscribers.",
		}),
		statusUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "firewatch_status_updates_total",
			Help: "Status updates grouped by outcome (applied, stale, broadcast).",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.framesCaptured,
		m.framesDropped,
		m.sourceReconnects,
		m.detections,
		m.detectionDuration,
		m.notifications,
		m.subscribers,
		m.statusUpdates,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{ErrorLog: log.Default()})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) FrameCaptured(camera string) {
	if m != nil {
		m.framesCaptured.WithLabelValues(camera).Inc()
	}
}

func (m *Metrics) FrameDropped(camera string) {
	if m != nil {
		m.framesDropped.WithLabelValues(camera).Inc()
	}
}

func (m *Metrics) SourceReconnect(camera string) {
	if m != nil {
		m.sourceReconnects.WithLabelValues(camera).Inc()
	}
}

func (m *Metrics) Detection(camera, result string, took time.Duration) {
	if m != nil {
		m.detections.WithLabelValues(camera, result).Inc()
		m.detectionDuration.Observe(took.Seconds())
	}
}

func (m *Metrics) Notification(result string) {
	if m != nil {
		m.notifications.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) SubscriberAdded() {
	if m != nil {
		m.subscribers.Inc()
	}
}

func (m *Metrics) SubscriberRemoved() {
	if m != nil {
		m.subscribers.Dec()
	}
}

func (m *Metrics) StatusUpdate(outcome string) {
	if m != nil {
		m.statusUpdates.WithLabelValues(outcome).Inc()
	}
}

// Forget removes the per-camera series of a deregistered camera.
func (m *Metrics) Forget(camera string) {
	if m == nil {
		return
	}
	m.framesCaptured.DeleteLabelValues(camera)
	m.framesDropped.DeleteLabelValues(camera)
	m.sourceReconnects.DeleteLabelValues(camera)
	m.detections.DeletePartialMatch(prometheus.Labels{"camera": camera})
}
