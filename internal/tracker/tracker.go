// Package tracker correlates outbound JSON-RPC requests with their
// eventual responses and enforces a per-request timeout independent of
// the transport (§4.3).
//
// Grounded on the teacher's internal/single/messaging.SequenceGenerator
// (atomic counter, Next()/Current()/Reset()) — adapted here from a
// message sequence number into a monotonic request-id generator — and on
// the single-buffered reply channel each shared.Client owns for its send
// path, generalized into one reply channel per pending request instead of
// one per connection.
package tracker

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deribit-ws/wsengine/internal/session"
)

// ErrDuplicateID is returned by Register when the id is already pending.
var ErrDuplicateID = errors.New("tracker: duplicate request id")

// ErrUnknownID is returned by Complete for an id with no pending entry
// (already matched, expired, or never registered). Unknown response ids
// are never fatal — see §4.3.
var ErrUnknownID = errors.New("tracker: unknown request id")

// Outcome is how a pending request was ultimately resolved.
type Outcome int

const (
	OutcomeResult Outcome = iota
	OutcomeRPCError
	OutcomeTimeout
	OutcomeConnectionLost
)

// Response is delivered exactly once to a request's reply channel.
type Response struct {
	Outcome Outcome
	Result  json.RawMessage
	RPCErr  *session.RPCError
}

type entry struct {
	submittedAt time.Time
	timer       *time.Timer
	reply       chan Response
	resolved    int32 // atomic: 0 = pending, 1 = resolved (complete or expire raced at most once)
}

// Tracker owns the pending-request map for one Session Engine. It is not
// safe to share across engines — §5 scopes it to the owning engine, same
// as the transport handle and rate-limiter state.
type Tracker struct {
	mu      sync.Mutex
	pending map[uint64]*entry
	counter uint64
}

// New creates an empty Tracker whose id generator starts at 0 (first
// NextID() call returns 1).
func New() *Tracker {
	return &Tracker{pending: make(map[uint64]*entry)}
}

// NextID returns the next monotonically increasing request id. Wraps are
// not anticipated within a session lifetime (§3).
func (t *Tracker) NextID() uint64 {
	return atomic.AddUint64(&t.counter, 1)
}

// Register creates a pending entry for id with the given response
// timeout and returns its reply channel (buffered, capacity 1 — the
// single-shot delivery slot of §3). The timeout starts immediately.
func (t *Tracker) Register(id uint64, timeout time.Duration) (<-chan Response, error) {
	t.mu.Lock()
	if _, exists := t.pending[id]; exists {
		t.mu.Unlock()
		return nil, ErrDuplicateID
	}
	e := &entry{
		submittedAt: time.Now(),
		reply:       make(chan Response, 1),
	}
	t.pending[id] = e
	t.mu.Unlock()

	e.timer = time.AfterFunc(timeout, func() { t.expire(id) })
	return e.reply, nil
}

// Complete delivers resp to id's reply slot and cancels its timeout. If
// Complete and an in-flight expire race for the same id, exactly one of
// them wins the slot (§4.3's "loser observes AlreadyMatched" — modeled
// here as the loser simply getting ErrUnknownID, since by the time it
// looks the entry is already gone from the map).
func (t *Tracker) Complete(id uint64, resp Response) error {
	t.mu.Lock()
	e, ok := t.pending[id]
	if !ok {
		t.mu.Unlock()
		return ErrUnknownID
	}
	delete(t.pending, id)
	t.mu.Unlock()

	if !atomic.CompareAndSwapInt32(&e.resolved, 0, 1) {
		return ErrUnknownID
	}
	e.timer.Stop()
	e.reply <- resp
	return nil
}

// expire fires resp=Timeout for id if it is still pending. Invoked by the
// id's own time.AfterFunc timer; a no-op if Complete already won the race.
func (t *Tracker) expire(id uint64) {
	t.mu.Lock()
	e, ok := t.pending[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(t.pending, id)
	t.mu.Unlock()

	if !atomic.CompareAndSwapInt32(&e.resolved, 0, 1) {
		return
	}
	e.reply <- Response{Outcome: OutcomeTimeout}
}

// Drain fails every pending slot with the given outcome (typically
// OutcomeConnectionLost) and clears the map. Called on session
// termination (§3: a Pending Request is destroyed on response match,
// timeout, or session termination).
func (t *Tracker) Drain(outcome Outcome) {
	t.mu.Lock()
	entries := make([]*entry, 0, len(t.pending))
	for id, e := range t.pending {
		entries = append(entries, e)
		delete(t.pending, id)
	}
	t.mu.Unlock()

	for _, e := range entries {
		if atomic.CompareAndSwapInt32(&e.resolved, 0, 1) {
			e.timer.Stop()
			e.reply <- Response{Outcome: outcome}
		}
	}
}

// Len reports the number of currently pending requests.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
