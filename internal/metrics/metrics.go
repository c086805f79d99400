// Package metrics exposes the Prometheus collectors a Session Engine and
// Supervisor update as they run. Grounded on the teacher's
// internal/shared/monitoring metrics surface (connection/message/rate-limit
// gauges and counters registered with prometheus/client_golang),
// rescoped from "connections served by this server" to "sessions owned by
// this process".
//
// Unlike the teacher — which only ever runs one server per process and so
// registers against the default, global Prometheus registry — this is a
// library that may be embedded by a caller running several sessions (or
// several libraries) in one process. Collectors are therefore registered
// against an injectable *prometheus.Registry rather than the package-level
// default, so two wsengine sessions (or an embedding application's own
// metrics) never collide on metric names.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles the metrics one Session Engine (and the Supervisor
// that may wrap it) reports.
type Collector struct {
	SessionState           *prometheus.GaugeVec
	RequestsInFlight       *prometheus.GaugeVec
	RequestDuration        *prometheus.HistogramVec
	RateLimitQueueLen      *prometheus.GaugeVec
	ReconnectAttemptsTotal *prometheus.CounterVec
	HeartbeatFailuresTotal *prometheus.CounterVec
}

// New creates a Collector and registers it against reg. Pass
// prometheus.NewRegistry() for an isolated registry, or
// prometheus.DefaultRegisterer to behave like the teacher's single-server
// model.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		SessionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wsengine_session_state",
			Help: "Current connection state of a session (1 = active state, one series per state label).",
		}, []string{"session_id", "state"}),
		RequestsInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wsengine_requests_inflight",
			Help: "Number of requests awaiting a correlated response.",
		}, []string{"session_id"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wsengine_request_duration_seconds",
			Help:    "Time from request admission to response delivery.",
			Buckets: prometheus.DefBuckets,
		}, []string{"session_id", "outcome"}),
		RateLimitQueueLen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wsengine_rate_limit_queue_len",
			Help: "Current depth of the rate limiter's admission queue.",
		}, []string{"session_id"}),
		ReconnectAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wsengine_reconnect_attempts_total",
			Help: "Total reconnection attempts, by owner (engine or supervisor).",
		}, []string{"session_id", "owner"}),
		HeartbeatFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wsengine_heartbeat_failures_total",
			Help: "Total times two consecutive missed pongs caused a connection to be treated as lost.",
		}, []string{"session_id"}),
	}

	reg.MustRegister(
		c.SessionState,
		c.RequestsInFlight,
		c.RequestDuration,
		c.RateLimitQueueLen,
		c.ReconnectAttemptsTotal,
		c.HeartbeatFailuresTotal,
	)

	return c
}

// ObserveRequestDuration is a small helper so call sites don't repeat the
// label plumbing for every admitted/timed-out/errored request.
func (c *Collector) ObserveRequestDuration(sessionID, outcome string, d time.Duration) {
	c.RequestDuration.WithLabelValues(sessionID, outcome).Observe(d.Seconds())
}
