package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects relay counters on its own registry. A nil *Metrics is
// valid and records nothing.
//
// Usage:
//
//	m := observability.NewMetrics()
//	m.EventHandled("join-room", "success", time.Since(start))
//	router.GET("/metrics", gin.WrapH(m.Handler()))
type Metrics struct {
	registry *prometheus.Registry

	// EventCounter counts inbound events.
	// Labels: event, status (success|error)
	EventCounter *prometheus.CounterVec

	// EventDuration measures handler latency in seconds.
	// Labels: event
	EventDuration *prometheus.HistogramVec

	// OutboundDropped counts frames that hit a full send buffer.
	// Labels: event
	OutboundDropped *prometheus.CounterVec

	// Connections is the number of live websocket connections.
	Connections prometheus.Gauge

	// ConnectionsRejected counts handshakes refused by the identity gate.
	ConnectionsRejected prometheus.Counter

	// RateLimited counts inbound events refused by the limiter.
	RateLimited prometheus.Counter

	// CallsActive is the number of rooms with a call session.
	CallsActive prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		EventCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_events_total",
				Help: "Total number of inbound events by name and status",
			},
			[]string{"event", "status"},
		),
		EventDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_event_duration_seconds",
				Help:    "Duration of inbound event handling in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"event"},
		),
		OutboundDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_outbound_dropped_total",
				Help: "Outbound frames refused by a full connection buffer",
			},
			[]string{"event"},
		),
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Name: "relay_connections",
			Help: "Live websocket connections",
		}),
		ConnectionsRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "relay_connections_rejected_total",
			Help: "Handshakes rejected by the identity gate",
		}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "relay_rate_limited_total",
			Help: "Inbound events dropped by the rate limiter",
		}),
		CallsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "relay_calls_active",
			Help: "Rooms currently carrying a call session",
		}),
	}
}

func (m *Metrics) EventHandled(event, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.EventCounter.WithLabelValues(event, status).Inc()
	m.EventDuration.WithLabelValues(event).Observe(d.Seconds())
}

func (m *Metrics) Dropped(event string) {
	if m == nil {
		return
	}
	m.OutboundDropped.WithLabelValues(event).Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.Connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.Connections.Dec()
}

func (m *Metrics) Rejected() {
	if m == nil {
		return
	}
	m.ConnectionsRejected.Inc()
}

func (m *Metrics) Limited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

func (m *Metrics) SetCalls(n int) {
	if m == nil {
		return
	}
	m.CallsActive.Set(float64(n))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the exposition format for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
