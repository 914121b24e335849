package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storepay"

// Metrics holds the service's Prometheus collectors
type Metrics struct {
	registry *prometheus.Registry

	intents          *prometheus.CounterVec
	callbacks        *prometheus.CounterVec
	conflicts        *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates the collectors on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "payment_intents_total",
			Help: "Checkout intents by provider and result.",
		}, []string{"provider", "result"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "callbacks_total",
			Help: "Provider callbacks by provider and result.",
		}, []string{"provider", "result"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "settlement_conflicts_total",
			Help: "Callbacks reporting a terminal status different from the recorded one.",
		}, []string{"provider"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "paid_notifications_total",
			Help: "Order paid notifications by result.",
		}, []string{"result"}),
		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "provider_request_duration_seconds",
			Help:    "Latency of checkout link creation per provider.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(m.intents, m.callbacks, m.conflicts, m.notifications,
		m.providerDuration, m.httpRequests, m.httpDuration)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// The methods below accept a nil receiver so components can run without metrics.

func (m *Metrics) IntentCreated(provider, result string) {
	if m == nil {
		return
	}
	m.intents.WithLabelValues(provider, result).Inc()
}

func (m *Metrics) CallbackHandled(provider, result string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(provider, result).Inc()
}

func (m *Metrics) SettlementConflict(provider string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(provider).Inc()
}

func (m *Metrics) NotificationSent(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveProvider(provider string, d time.Duration) {
	if m == nil {
		return
	}
	m.providerDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, http.StatusText(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
