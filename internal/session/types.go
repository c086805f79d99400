// Package session holds the data model shared by the engine, the
// supervisor, and the public wsclient package: session configuration,
// connection state, heartbeat variants, and rate-limit configuration.
//
// It has no dependency on engine/supervisor so that both of them — and
// the public package that wires them together — can import it without
// creating an import cycle.
package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// ConnState is the lifecycle state of a Session Engine, per §4.5 of the
// design: Connecting -> Connected -> Authenticating -> Ready ->
// {Closing|Reconnecting} -> Closed.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateConnected
	StateAuthenticating
	StateReady
	StateReconnecting
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateReconnecting:
		return "reconnecting"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// HeartbeatKind selects one of the three keepalive contracts a session can
// run under.
type HeartbeatKind int

const (
	HeartbeatNone HeartbeatKind = iota
	HeartbeatPingPong
	HeartbeatPlatformTestRequest
)

// HeartbeatConfig pairs a keepalive variant with its interval. Interval is
// ignored for HeartbeatNone.
type HeartbeatConfig struct {
	Kind     HeartbeatKind
	Interval time.Duration
}

// CostFunc maps an outbound request to a positive integer cost consumed
// from the rate limiter's token bucket. A nil CostFunc defaults to a flat
// cost of 1 per request (see DefaultCostFunc).
type CostFunc func(method string, params any) int

// DefaultCostFunc charges a flat cost of 1 token per request, matching the
// teacher's single-bucket-per-client default (internal/single/limits.RateLimiter).
func DefaultCostFunc(string, any) int { return 1 }

// RateLimitConfig configures the token-bucket admission layer (§4.2).
type RateLimitConfig struct {
	Capacity       float64
	RefillRate     float64
	RefillInterval time.Duration
	QueueMax       int // 0 defaults to 100
	CostFn         CostFunc
}

// Header is one name/value pair sent during the WebSocket upgrade.
type Header struct {
	Name  string
	Value string
}

// SessionConfig is the immutable configuration a caller passes to
// connect(). There is no runtime mutation: reconfiguration means opening a
// new session (see SPEC_FULL.md, Ambient Configuration).
type SessionConfig struct {
	URL              string
	Headers          []Header
	ConnectTimeout   time.Duration
	RetryCount       int
	RetryDelayBase   time.Duration
	Heartbeat        HeartbeatConfig
	RequestTimeout   time.Duration
	RateLimit        RateLimitConfig
	ReconnectOnError bool
	Credentials      any
	Subscriptions    []string
}

// RPCError is the server-returned JSON-RPC error object, delivered verbatim
// to the caller (§7: application errors are not session-level failures).
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("wsengine: rpc error %d: %s", e.Code, e.Message)
}
