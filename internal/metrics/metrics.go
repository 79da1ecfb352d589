// Package metrics provides Prometheus metrics for the proxy.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request modes used as the "mode" label.
const (
	ModeTunnel    = "tunnel"
	ModeKeepAlive = "keep_alive"
	ModeForward   = "forward"
)

// Relay directions used as the "direction" label.
const (
	DirectionClientToUpstream = "client_to_upstream"
	DirectionUpstreamToClient = "upstream_to_client"
)

// Metrics holds all Prometheus metric collectors for the proxy.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	ConnectionsTotal  prometheus.Counter
	ConnectionsActive prometheus.Gauge
	RequestsTotal     *prometheus.CounterVec
	DialFailures      *prometheus.CounterVec
	RelayBytes        *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
}

// New creates a Metrics instance with a custom registry and all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "handflip_connections_total",
			Help: "Total accepted client connections.",
		}),

		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "handflip_connections_active",
			Help: "Client connections currently being handled.",
		}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "handflip_requests_total",
			Help: "Decoded proxy requests by handling mode.",
		}, []string{"mode"}),

		DialFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "handflip_upstream_dial_failures_total",
			Help: "Upstream connection attempts answered with 503, by error kind.",
		}, []string{"kind"}),

		RelayBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "handflip_relay_bytes_total",
			Help: "Bytes moved by the direction that ended each relay first.",
		}, []string{"direction"}),

		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "handflip_connection_errors_total",
			Help: "Connections that ended with an error, by error kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.ConnectionsTotal,
		m.ConnectionsActive,
		m.RequestsTotal,
		m.DialFailures,
		m.RelayBytes,
		m.ErrorsTotal,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ConnOpened records an accepted connection.
func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.ConnectionsTotal.Inc()
	m.ConnectionsActive.Inc()
}

// ConnClosed records the end of a connection's handling.
func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
}

// Request records a decoded request handled in mode.
func (m *Metrics) Request(mode string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(mode).Inc()
}

// DialFailed records an upstream dial failure of the given error kind.
func (m *Metrics) DialFailed(kind string) {
	if m == nil {
		return
	}
	m.DialFailures.WithLabelValues(kind).Inc()
}

// Relayed records n bytes moved in direction.
func (m *Metrics) Relayed(direction string, n int64) {
	if m == nil {
		return
	}
	m.RelayBytes.WithLabelValues(direction).Add(float64(n))
}

// Error records a connection that ended with an error of the given kind.
func (m *Metrics) Error(kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}
