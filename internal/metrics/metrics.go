// Package metrics exposes Prometheus collectors for the room relay.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "yapper"

// Delivery results used as the "result" label.
const (
	ResultDelivered = "delivered"
	ResultFailed    = "failed"
)

// Metrics groups the relay collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	connections   prometheus.Gauge
	members       prometheus.Gauge
	rooms         prometheus.Gauge
	broadcasts    prometheus.Counter
	deliveries    *prometheus.CounterVec
	requestErrors *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open WebSocket connections, joined or not.",
		}),
		members: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "room_members",
			Help:      "Connections that have joined a room.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Rooms with at least one member.",
		}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Chat messages fanned out to a room.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Per-member delivery attempts by result.",
		}, []string{"result"}),
		requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_errors_total",
			Help:      "Inbound frames rejected with an error response, by kind.",
		}, []string{"kind"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.connections,
			m.members,
			m.rooms,
			m.broadcasts,
			m.deliveries,
			m.requestErrors,
		)
	}
	return m
}

// Handler serves the exposition format for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ConnectionOpened counts a socket added to the hub.
func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

// ConnectionClosed undoes ConnectionOpened.
func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

// SetMembership records the registry size after a mutation.
func (m *Metrics) SetMembership(members, rooms int) {
	if m == nil {
		return
	}
	m.members.Set(float64(members))
	m.rooms.Set(float64(rooms))
}

// ObserveBroadcast records one fan-out and its per-member outcome.
func (m *Metrics) ObserveBroadcast(delivered, failed int) {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
	m.deliveries.WithLabelValues(ResultDelivered).Add(float64(delivered))
	m.deliveries.WithLabelValues(ResultFailed).Add(float64(failed))
}

// RequestError counts a rejected inbound frame under kind.
func (m *Metrics) RequestError(kind string) {
	if m != nil {
		m.requestErrors.WithLabelValues(kind).Inc()
	}
}
