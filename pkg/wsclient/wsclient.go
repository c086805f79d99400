// Package wsclient is the public surface of the resilient trading
// WebSocket client: it wires the Session Registry, Supervisor, and
// Session Engine together behind a single Connect call and a Session
// handle that survives reconnections (spec.md §3's Session Handle).
//
// Internal packages hold the real implementation; this package mostly
// re-exports their types under names a consumer shouldn't have to reach
// into internal/ to spell, and adds the one thing none of them can do
// alone — Connect, which owns the wiring.
package wsclient

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/deribit-ws/wsengine/internal/engine"
	"github.com/deribit-ws/wsengine/internal/metrics"
	"github.com/deribit-ws/wsengine/internal/registry"
	"github.com/deribit-ws/wsengine/internal/session"
	"github.com/deribit-ws/wsengine/internal/supervisor"
)

// Config is the immutable session configuration a caller passes to
// Connect (spec.md §3 Session Configuration). See internal/session for
// field documentation.
type Config = session.SessionConfig

// Header is one name/value pair sent during the WebSocket upgrade.
type Header = session.Header

// HeartbeatConfig pairs a keepalive variant with its interval.
type HeartbeatConfig = session.HeartbeatConfig

// RateLimitConfig configures the token-bucket admission layer.
type RateLimitConfig = session.RateLimitConfig

// CostFunc maps an outbound request to a token cost.
type CostFunc = session.CostFunc

// ConnState is the session lifecycle state (spec.md §4.5).
type ConnState = session.ConnState

// RPCError is a server-returned JSON-RPC error object.
type RPCError = session.RPCError

// Adapter is the platform-specific capability set a caller supplies to
// Connect. See internal/adapter/jsonrpc for a reference implementation
// of the JSON-RPC 2.0 profile.
type Adapter = session.Adapter

// HeartbeatHealth reports the liveness of the configured keepalive
// contract.
type HeartbeatHealth = engine.HeartbeatHealth

// MetricsCollector bundles the Prometheus collectors a Session and its
// Supervisor report. Construct with metrics.New against an injectable
// prometheus.Registerer.
type MetricsCollector = metrics.Collector

const (
	HeartbeatNone                = session.HeartbeatNone
	HeartbeatPingPong            = session.HeartbeatPingPong
	HeartbeatPlatformTestRequest = session.HeartbeatPlatformTestRequest

	StateConnecting     = session.StateConnecting
	StateConnected      = session.StateConnected
	StateAuthenticating = session.StateAuthenticating
	StateReady          = session.StateReady
	StateReconnecting   = session.StateReconnecting
	StateClosing        = session.StateClosing
	StateClosed         = session.StateClosed
)

// Sentinel errors surfaced raw to the caller, per spec.md §7.
var (
	ErrTimeout            = session.ErrTimeout
	ErrRateLimited        = session.ErrRateLimited
	ErrConnectionLost     = session.ErrConnectionLost
	ErrNotConnected       = session.ErrNotConnected
	ErrClosed             = session.ErrClosed
	ErrMaxRetriesExceeded = session.ErrMaxRetriesExceeded
	ErrAuthFailed         = session.ErrAuthFailed
)

// DefaultCostFunc charges a flat cost of 1 token per request.
var DefaultCostFunc = session.DefaultCostFunc

// Session is the caller-facing handle: a stable session_id, a reference
// to the Supervisor that owns recovery, and nothing else — every
// operation dereferences to whichever engine currently serves the
// session via the Session Registry, so the handle stays valid across
// any number of reconnections (spec.md §8 property 4).
type Session struct {
	sup *supervisor.Supervisor
}

// Connect opens a new supervised session: it allocates a session_id,
// performs the initial connect-authenticate-subscribe sequence, and
// starts monitoring for unexpected termination (spec.md §4.6's
// open(config)). mc may be nil to run without metrics.
//
// Each Session owns a private Session Registry — the spec's "many
// readers, one writer" concurrent map applies within one session's
// lifetime; a process embedding several independent sessions gets one
// registry each, which is simpler to reason about than a shared global
// and costs nothing since lookups are never cross-session.
func Connect(ctx context.Context, cfg Config, adapter Adapter, logger zerolog.Logger, mc *MetricsCollector) (*Session, error) {
	reg := registry.New()
	sup, err := supervisor.Open(ctx, cfg, adapter, reg, logger, mc)
	if err != nil {
		return nil, err
	}
	return &Session{sup: sup}, nil
}

// SessionID returns the session's stable identifier, unchanged across
// reconnections.
func (s *Session) SessionID() string { return s.sup.SessionID() }

// State reports the current connection state of whichever engine is
// presently serving this session.
func (s *Session) State() ConnState {
	e, ok := s.sup.Engine()
	if !ok {
		return StateClosed
	}
	return e.State()
}

// HeartbeatHealth reports the last observed heartbeat activity of the
// current engine.
func (s *Session) HeartbeatHealth() HeartbeatHealth {
	e, ok := s.sup.Engine()
	if !ok {
		return HeartbeatHealth{}
	}
	return e.HeartbeatHealth()
}

// SendRequest admits, transmits, and awaits the correlated response for
// one JSON-RPC request, returning whichever of {result, rpc error,
// Timeout, ConnectionLost, NotConnected} resolves first.
func (s *Session) SendRequest(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, *RPCError, error) {
	e, ok := s.sup.Engine()
	if !ok {
		return nil, nil, ErrClosed
	}
	return e.SendRequest(ctx, method, params, timeout)
}

// SendNotification admits and transmits a one-way message; no response
// is tracked.
func (s *Session) SendNotification(method string, params any) error {
	e, ok := s.sup.Engine()
	if !ok {
		return ErrClosed
	}
	return e.SendNotification(method, params)
}

// Subscribe records channel for restoration across reconnects and sends
// a subscribe control message to the current engine.
func (s *Session) Subscribe(channel string) error {
	return s.sup.Subscribe(channel)
}

// Unsubscribe removes channel from the restored set and sends an
// unsubscribe control message to the current engine.
func (s *Session) Unsubscribe(channel string) error {
	return s.sup.Unsubscribe(channel)
}

// Close terminates the session permanently: the current engine is closed
// and no further recovery is attempted. A second Close is a no-op.
func (s *Session) Close() error {
	return s.sup.Close()
}
