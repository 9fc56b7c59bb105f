package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors exported by the hub. Each
// component that wants to record something is handed this struct rather
// than reaching for prometheus.DefaultRegisterer directly, so tests can
// construct an isolated Metrics against a throwaway registry.
type Metrics struct {
	ConnectionsTotal        *prometheus.CounterVec
	OnlineDevices           prometheus.Gauge
	RouterMessagesTotal     *prometheus.CounterVec
	RouterDroppedTotal      *prometheus.CounterVec
	SessionTransitionsTotal *prometheus.CounterVec
	ActiveSessions          prometheus.Gauge
	TunnelProxyDuration     *prometheus.HistogramVec
	TunnelProxyTotal        *prometheus.CounterVec
	PairingCodesTotal       prometheus.Counter
	PairingRedemptionsTotal *prometheus.CounterVec
	TurnCredentialsTotal    prometheus.Counter
}

// NewMetrics constructs and registers the hub's collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalhub_connections_total",
			Help: "Connection Registry attach/detach events by role and event type.",
		}, []string{"role", "event"}),
		OnlineDevices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalhub_online_devices",
			Help: "Number of devices currently attached to the Connection Registry.",
		}),
		RouterMessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalhub_router_messages_total",
			Help: "Signaling messages processed by the router, by message type.",
		}, []string{"type"}),
		RouterDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalhub_router_dropped_total",
			Help: "Signaling messages the router could not deliver, by reason.",
		}, []string{"reason"}),
		SessionTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalhub_session_transitions_total",
			Help: "Watch session state machine transitions, by resulting status.",
		}, []string{"status"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalhub_active_sessions",
			Help: "Watch sessions currently in pending or active state.",
		}),
		TunnelProxyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signalhub_tunnel_proxy_duration_seconds",
			Help:    "End-to-end duration of tunneled HTTP proxy requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		TunnelProxyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalhub_tunnel_proxy_requests_total",
			Help: "Tunneled HTTP proxy requests, by outcome.",
		}, []string{"outcome"}),
		PairingCodesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalhub_pairing_codes_generated_total",
			Help: "Pairing codes generated.",
		}),
		PairingRedemptionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalhub_pairing_redemptions_total",
			Help: "Pairing code redemption attempts, by outcome.",
		}, []string{"outcome"}),
		TurnCredentialsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalhub_turn_credentials_minted_total",
			Help: "Ephemeral TURN credentials minted.",
		}),
	}

	reg.MustRegister(
		m.ConnectionsTotal,
		m.OnlineDevices,
		m.RouterMessagesTotal,
		m.RouterDroppedTotal,
		m.SessionTransitionsTotal,
		m.ActiveSessions,
		m.TunnelProxyDuration,
		m.TunnelProxyTotal,
		m.PairingCodesTotal,
		m.PairingRedemptionsTotal,
		m.TurnCredentialsTotal,
	)

	return m
}

// RecordConnection records a Connection Registry attach/detach.
func (m *Metrics) RecordConnection(role, event string) {
	m.ConnectionsTotal.WithLabelValues(role, event).Inc()
}

// RecordRouterMessage records a successfully dispatched signaling message.
func (m *Metrics) RecordRouterMessage(messageType string) {
	m.RouterMessagesTotal.WithLabelValues(messageType).Inc()
}

// RecordRouterDrop records a signaling message the router could not deliver.
func (m *Metrics) RecordRouterDrop(reason string) {
	m.RouterDroppedTotal.WithLabelValues(reason).Inc()
}

// RecordSessionTransition records a watch session entering a new status.
func (m *Metrics) RecordSessionTransition(status string) {
	m.SessionTransitionsTotal.WithLabelValues(status).Inc()
}

// RecordTunnelProxy records one tunneled HTTP proxy request's outcome and duration.
func (m *Metrics) RecordTunnelProxy(outcome string, durationSeconds float64) {
	m.TunnelProxyTotal.WithLabelValues(outcome).Inc()
	m.TunnelProxyDuration.WithLabelValues(outcome).Observe(durationSeconds)
}

// RecordPairingRedemption records a pairing code redemption attempt's outcome.
func (m *Metrics) RecordPairingRedemption(outcome string) {
	m.PairingRedemptionsTotal.WithLabelValues(outcome).Inc()
}
