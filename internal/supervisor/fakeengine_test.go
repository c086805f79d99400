package supervisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/deribit-ws/wsengine/internal/engine"
	"github.com/deribit-ws/wsengine/internal/metrics"
	"github.com/deribit-ws/wsengine/internal/session"
)

// fakeTransport is a minimal in-memory Transport, independent of the
// engine package's own test fixture (unexported, unreachable from here) —
// just enough for the Supervisor's rebuild path to have something to
// authenticate and read from.
type fakeTransport struct {
	mu      sync.Mutex
	inbound chan []byte
	closed  bool
	written [][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{inbound: make(chan []byte, 8)}
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	b, ok := <-f.inbound
	if !ok {
		return 0, nil, errors.New("fake transport closed")
	}
	return websocket.TextMessage, b, nil
}

func (f *fakeTransport) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) writesContaining(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, w := range f.written {
		if bytes.Contains(w, []byte(substr)) {
			n++
		}
	}
	return n
}

func (f *fakeTransport) SetReadDeadline(time.Time) error  { return nil }
func (f *fakeTransport) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.inbound)
	return nil
}

func (f *fakeTransport) breakConnection() { f.Close() }

// noopAdapter is the minimal Adapter the Supervisor's tests drive — no
// credentials, so the engine never enters Authenticating, and no
// classification needed since these tests never push inbound traffic.
type noopAdapter struct{}

func (noopAdapter) BuildAuthRequest(any) (string, any, error)               { return "", nil, nil }
func (noopAdapter) OnAuthResponse(json.RawMessage, *session.RPCError) error { return nil }
func (noopAdapter) BuildSubscribe(channel string) (string, any)             { return "subscribe", channel }
func (noopAdapter) BuildUnsubscribe(channel string) (string, any)           { return "unsubscribe", channel }
func (noopAdapter) ClassifyIncoming(raw json.RawMessage) session.Incoming {
	return session.Incoming{Kind: session.IncomingUnknown}
}
func (noopAdapter) OnNotification(string, json.RawMessage) {}

// fakeStarterFactory builds a starter function backed by an unlimited
// series of fakeTransports, one per (re)connect attempt, and records
// every transport it hands out so a test can kill the current one.
type fakeStarterFactory struct {
	mu       sync.Mutex
	built    []*fakeTransport
	dialErrs int // number of leading dial attempts to fail, for recovery tests
}

func (f *fakeStarterFactory) starter(ctx context.Context, cfg session.SessionConfig, sessionID string, adapter session.Adapter, logger zerolog.Logger, mc *metrics.Collector) (*engine.Engine, error) {
	dialFn := func(context.Context, session.SessionConfig) (engine.Transport, error) {
		f.mu.Lock()
		if f.dialErrs > 0 {
			f.dialErrs--
			f.mu.Unlock()
			return nil, errors.New("fake dial failure")
		}
		f.mu.Unlock()

		ft := newFakeTransport()
		f.mu.Lock()
		f.built = append(f.built, ft)
		f.mu.Unlock()
		return ft, nil
	}
	return engine.StartWithDialer(ctx, cfg, sessionID, adapter, logger, mc, dialFn)
}

func (f *fakeStarterFactory) current() *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.built[len(f.built)-1]
}

func (f *fakeStarterFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.built)
}
