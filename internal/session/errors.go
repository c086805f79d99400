package session

import "errors"

// Sentinel errors surfaced raw to the caller per §7 (no re-wrapping once
// they leave the engine).
var (
	// ErrTimeout is returned when a request's response does not arrive
	// within its request_timeout.
	ErrTimeout = errors.New("wsengine: request timed out")

	// ErrRateLimited is returned when the rate limiter's queue is full.
	ErrRateLimited = errors.New("wsengine: rate limit queue full")

	// ErrConnectionLost is returned for any request in flight when the
	// transport dies mid-request.
	ErrConnectionLost = errors.New("wsengine: connection lost")

	// ErrNotConnected is returned for new sends while the session is
	// Reconnecting or otherwise not Ready.
	ErrNotConnected = errors.New("wsengine: session not connected")

	// ErrClosed is returned for any operation on a session past close().
	ErrClosed = errors.New("wsengine: session closed")

	// ErrMaxRetriesExceeded terminates an engine that exhausted retry_count
	// during internal reconnection.
	ErrMaxRetriesExceeded = errors.New("wsengine: max reconnect attempts exceeded")

	// ErrAuthFailed is returned by the engine when the Adapter rejects the
	// auth response.
	ErrAuthFailed = errors.New("wsengine: authentication failed")
)
