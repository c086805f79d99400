package engine

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// fakeTransport is an in-memory stand-in for a live connection, grounded
// on streamspace-dev-streamspace/agents/docker-agent's pattern of driving
// an agent's message handler directly with constructed frames rather than
// a real socket. inbound is fed by the test; outbound records everything
// the engine wrote so assertions can inspect it.
type fakeTransport struct {
	mu      sync.Mutex
	inbound chan fakeMessage
	closed  bool

	outboundMu sync.Mutex
	outbound   []fakeMessage
}

type fakeMessage struct {
	messageType int
	data        []byte
	err         error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{inbound: make(chan fakeMessage, 64)}
}

func (f *fakeTransport) pushText(v any) {
	b, _ := json.Marshal(v)
	f.inbound <- fakeMessage{messageType: websocket.TextMessage, data: b}
}

func (f *fakeTransport) pushClose(code int, reason string) {
	f.inbound <- fakeMessage{messageType: websocket.CloseMessage, data: websocket.FormatCloseMessage(code, reason)}
}

func (f *fakeTransport) pushPong() {
	f.inbound <- fakeMessage{messageType: websocket.PongMessage}
}

func (f *fakeTransport) breakConnection(err error) {
	f.inbound <- fakeMessage{err: err}
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	msg, ok := <-f.inbound
	if !ok {
		return 0, nil, errors.New("fake transport closed")
	}
	if msg.err != nil {
		return 0, nil, msg.err
	}
	return msg.messageType, msg.data, nil
}

func (f *fakeTransport) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return errors.New("write on closed fake transport")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.outboundMu.Lock()
	f.outbound = append(f.outbound, fakeMessage{messageType: messageType, data: cp})
	f.outboundMu.Unlock()
	return nil
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

func (f *fakeTransport) written() []fakeMessage {
	f.outboundMu.Lock()
	defer f.outboundMu.Unlock()
	out := make([]fakeMessage, len(f.outbound))
	copy(out, f.outbound)
	return out
}
