package engine

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/deribit-ws/wsengine/internal/session"
)

// maxBackoff caps the exponential reconnect backoff, per §4.5: "min(base *
// 2^n, 30_000 ms)".
const maxBackoff = 30 * time.Second

// backoffDelay computes the attempt-n backoff delay for internal
// reconnection. Grounded on thatcooperguy-nvremote's calculateBackoff
// (apps/host-agent/internal/heartbeat/websocket.go) — same doubling
// formula, base and cap sourced from SessionConfig instead of package
// constants since retry_delay_base is caller-configured here.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := time.Duration(math.Pow(2, float64(attempt))) * base
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}

// dial performs the WebSocket upgrade against cfg.URL, honoring
// ConnectTimeout and caller-supplied headers.
func dial(ctx context.Context, cfg session.SessionConfig) (Transport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: cfg.ConnectTimeout}

	header := http.Header{}
	for _, h := range cfg.Headers {
		header.Add(h.Name, h.Value)
	}

	dialCtx := ctx
	var cancel context.CancelFunc
	if cfg.ConnectTimeout > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	conn, _, err := dialer.DialContext(dialCtx, cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("wsengine: dial %s: %w", cfg.URL, err)
	}
	return conn, nil
}
