package wsclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/deribit-ws/wsengine/internal/adapter/jsonrpc"
)

// newEchoServer starts a real local WebSocket server that echoes every
// JSON-RPC request's params back as the result — enough to exercise the
// whole stack (dial, admission, tracker correlation) end to end without
// reaching into any internal package's test-only seams.
func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req struct {
				ID     uint64 `json:"id"`
				Method string `json:"method"`
				Params any    `json:"params"`
			}
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			_ = conn.WriteJSON(map[string]any{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"result":  req.Params,
			})
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestConnectSendRequestClose(t *testing.T) {
	srv := newEchoServer(t)
	cfg := Config{
		URL:            wsURL(srv.URL),
		ConnectTimeout: 2 * time.Second,
		RetryCount:     3,
		RetryDelayBase: 50 * time.Millisecond,
		RequestTimeout: 2 * time.Second,
		RateLimit: RateLimitConfig{
			Capacity:       10,
			RefillRate:     10,
			RefillInterval: 100 * time.Millisecond,
			QueueMax:       10,
		},
	}

	sess, err := Connect(context.Background(), cfg, jsonrpc.New(nil), zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if sess.State() != StateReady {
		t.Fatalf("state = %v, want Ready", sess.State())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, rpcErr, err := sess.SendRequest(ctx, "echo", map[string]any{"x": 1}, time.Second)
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if rpcErr != nil {
		t.Fatalf("unexpected rpc error: %v", rpcErr)
	}
	var decoded map[string]int
	if err := json.Unmarshal(result, &decoded); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if decoded["x"] != 1 {
		t.Fatalf("result = %v, want x=1", decoded)
	}

	if err := sess.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if sess.State() != StateClosed {
		t.Fatalf("state = %v, want Closed", sess.State())
	}
	// Idempotent close per spec.md §8.
	if err := sess.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestConnectRejectsBadURL(t *testing.T) {
	cfg := Config{
		URL:            "ws://127.0.0.1:1/does-not-exist",
		ConnectTimeout: 100 * time.Millisecond,
		RetryCount:     0,
		RetryDelayBase: 10 * time.Millisecond,
		RequestTimeout: time.Second,
		RateLimit:      RateLimitConfig{Capacity: 1, RefillRate: 1, RefillInterval: time.Second},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := Connect(ctx, cfg, jsonrpc.New(nil), zerolog.Nop(), nil); err == nil {
		t.Fatal("expected Connect to fail against an unreachable address")
	}
}
