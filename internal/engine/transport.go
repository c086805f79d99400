package engine

import "time"

// Transport is the minimal surface the event loop needs off a live
// connection. Its method set matches *gorilla/websocket.Conn exactly, so
// a real dial just hands the loop a *websocket.Conn; tests hand it an
// in-memory fake (see faketransport_test.go) instead of a live socket —
// the interface exists purely for that substitution, per §9's design note
// preferring the explicit, testable form.
type Transport interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}
