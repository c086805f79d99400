// Package codec classifies and constructs WebSocket frames so that the
// engine never sees transport-library-specific shapes (§4.1). It is pure:
// no I/O, no hidden state.
//
// The teacher's server (internal/shared/pump_read.go, pump_write.go)
// dispatches on gobwas/ws's ws.OpCode values because it accepts inbound
// upgrades with gobwas/ws. This client dials out with gorilla/websocket
// instead (see internal/engine/dial.go, grounded on
// thatcooperguy-nvremote's host-agent, the one repo in the pack that
// dials out as a WS client, which also uses gorilla/websocket), so
// Classify switches on gorilla's message-type constants rather than
// gobwas's op codes. The shape of the dispatch — and the Ping/Pong/Close
// handling it feeds — is the same switch the teacher's pumps perform.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/gorilla/websocket"
)

// Kind is the classified frame type.
type Kind int

const (
	Text Kind = iota
	Binary
	Ping
	Pong
	Close
	Continuation
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Binary:
		return "binary"
	case Ping:
		return "ping"
	case Pong:
		return "pong"
	case Close:
		return "close"
	case Continuation:
		return "continuation"
	default:
		return "unknown"
	}
}

// Frame is the classified, codec-neutral representation of one WebSocket
// frame. Code/Reason are only meaningful for Kind == Close.
type Frame struct {
	Kind    Kind
	Payload []byte
	Code    int
	Reason  string
}

// MalformedFrameError is returned by Classify for a message type the
// codec does not recognize.
type MalformedFrameError struct {
	MessageType int
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("codec: malformed frame, unknown message type %d", e.MessageType)
}

// Classify turns a (messageType, payload) pair — the shape every
// gorilla/websocket Conn.ReadMessage call returns — into a Frame.
// Continuation frames are reassembled by the transport before they reach
// here; Classify never sees partial frames.
func Classify(messageType int, payload []byte) (Frame, error) {
	switch messageType {
	case websocket.TextMessage:
		return Frame{Kind: Text, Payload: payload}, nil
	case websocket.BinaryMessage:
		return Frame{Kind: Binary, Payload: payload}, nil
	case websocket.PingMessage:
		return Frame{Kind: Ping, Payload: payload}, nil
	case websocket.PongMessage:
		return Frame{Kind: Pong, Payload: payload}, nil
	case websocket.CloseMessage:
		code, reason := parseClosePayload(payload)
		return Frame{Kind: Close, Payload: payload, Code: code, Reason: reason}, nil
	default:
		return Frame{}, &MalformedFrameError{MessageType: messageType}
	}
}

func parseClosePayload(payload []byte) (int, string) {
	if len(payload) < 2 {
		return websocket.CloseNoStatusReceived, ""
	}
	return int(binary.BigEndian.Uint16(payload[:2])), string(payload[2:])
}

// TextFrame, BinaryFrame, PingFrame, and PongFrame construct frames ready
// to hand to the transport's WriteMessage.
func TextFrame(payload []byte) Frame   { return Frame{Kind: Text, Payload: payload} }
func BinaryFrame(payload []byte) Frame { return Frame{Kind: Binary, Payload: payload} }
func PingFrame(payload []byte) Frame   { return Frame{Kind: Ping, Payload: payload} }
func PongFrame(payload []byte) Frame   { return Frame{Kind: Pong, Payload: payload} }

// CloseFrame constructs a Close frame carrying the standard two-byte
// status code followed by the UTF-8 reason, per RFC6455 §5.5.1.
func CloseFrame(code int, reason string) Frame {
	return Frame{
		Kind:    Close,
		Code:    code,
		Reason:  reason,
		Payload: websocket.FormatCloseMessage(code, reason),
	}
}

// IsControl reports whether f is a control frame (Ping, Pong, or Close).
func IsControl(f Frame) bool {
	return f.Kind == Ping || f.Kind == Pong || f.Kind == Close
}

// MessageType maps a Frame back to the gorilla/websocket message-type
// constant its Kind corresponds to, for handing to Conn.WriteMessage.
func (f Frame) MessageType() int {
	switch f.Kind {
	case Text:
		return websocket.TextMessage
	case Binary:
		return websocket.BinaryMessage
	case Ping:
		return websocket.PingMessage
	case Pong:
		return websocket.PongMessage
	case Close:
		return websocket.CloseMessage
	default:
		return websocket.TextMessage
	}
}
