// Package metrics defines the Prometheus instruments shared by the
// supervisor, dispatcher, broadcaster, and capture scheduler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "virtfleet"

// Metrics holds every instrument. A zero registry is not allowed; tests use
// prometheus.NewRegistry().
type Metrics struct {
	HostConnected   *prometheus.GaugeVec
	ConnectAttempts *prometheus.CounterVec

	Events      *prometheus.CounterVec
	EventErrors *prometheus.CounterVec

	BroadcastMessages *prometheus.CounterVec
	BroadcastDropped  prometheus.Counter
	Subscribers       prometheus.Gauge

	CaptureAttempts *prometheus.CounterVec
	CaptureJobs     prometheus.Gauge
	CaptureDuration prometheus.Histogram
}

// New creates all instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HostConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "host_connected",
			Help:      "1 if the hypervisor session is connected and synchronized, else 0",
		}, []string{"host"}),
		ConnectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Connect attempts per hypervisor by result",
		}, []string{"host", "result"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Push events processed per hypervisor by kind",
		}, []string{"host", "kind"}),
		EventErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_errors_total",
			Help:      "Push events dropped because they could not be applied",
		}, []string{"host"}),
		BroadcastMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_messages_total",
			Help:      "Change messages published by type",
		}, []string{"type"}),
		BroadcastDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_dropped_total",
			Help:      "Messages dropped for slow or failed subscribers",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broadcast_subscribers",
			Help:      "Currently connected real-time subscribers",
		}),
		CaptureAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_attempts_total",
			Help:      "Screenshot capture attempts by result",
		}, []string{"result"}),
		CaptureJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capture_jobs_active",
			Help:      "Capture jobs currently armed",
		}),
		CaptureDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capture_duration_seconds",
			Help:      "Time from stream open to image delivered",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.HostConnected,
		m.ConnectAttempts,
		m.Events,
		m.EventErrors,
		m.BroadcastMessages,
		m.BroadcastDropped,
		m.Subscribers,
		m.CaptureAttempts,
		m.CaptureJobs,
		m.CaptureDuration,
	)

	return m
}

// Capture attempt results.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultCanceled = "canceled"
)
