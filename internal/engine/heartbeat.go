package engine

import "time"

// HeartbeatHealth reports the liveness of the configured keepalive
// contract, returned by the engine's heartbeat_health() operation (§4.5).
type HeartbeatHealth struct {
	LastSent time.Time
	LastRecv time.Time
	Failures int
}

// writeDeadline bounds every individual WriteMessage call, including
// heartbeat replies. Grounded on thatcooperguy-nvremote's writeTimeout
// constant (apps/host-agent/internal/heartbeat/websocket.go).
const writeDeadline = 10 * time.Second
