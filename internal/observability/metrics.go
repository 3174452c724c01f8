package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tictactoe"

// Metrics holds the server's Prometheus collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	connections   prometheus.Gauge
	events        *prometheus.CounterVec
	gamesStarted  prometheus.Counter
	gamesFinished *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Live websocket connections held by this process.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "events_total",
			Help:      "Inbound events by type and result code.",
		}, []string{"type", "result"}),
		gamesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "started_total",
			Help:      "Games started by this process.",
		}),
		gamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "finished_total",
			Help:      "Games settled by this process, by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.connections,
		m.events,
		m.gamesStarted,
		m.gamesFinished,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ConnectionOpened() {
	m.connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	m.connections.Dec()
}

// EventHandled counts one inbound event. result is "ok" or the error code.
func (m *Metrics) EventHandled(eventType, result string) {
	m.events.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) GameStarted() {
	m.gamesStarted.Inc()
}

// GameFinished counts a settled game; outcome is "won" or "drawn"
func (m *Metrics) GameFinished(outcome string) {
	m.gamesFinished.WithLabelValues(outcome).Inc()
}
