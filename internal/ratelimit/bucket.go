// Package ratelimit implements the token-bucket admission control of §4.2:
// a fractional-token bucket with a caller-supplied cost per request and a
// bounded FIFO queue for requests that arrive when the bucket is dry.
//
// Grounded on the teacher's internal/single/limits.TokenBucket
// (fractional tokens, time-based refill, mutex-guarded struct) — that
// bucket only ever admits-or-rejects a flat cost of 1; this generalizes it
// with a variable cost and the bounded queue spec.md requires, since a
// trading platform needs per-method cost (quote updates cheap, order
// placement expensive) and graceful queueing rather than an outright drop.
package ratelimit

import (
	"container/list"
	"sync"
	"time"
)

// Outcome is the verdict TryConsume returns for one admission attempt.
type Outcome int

const (
	Admitted Outcome = iota
	Queued
	Rejected
)

// DefaultQueueMax is used when Config.QueueMax is zero.
const DefaultQueueMax = 100

// Verdict is the result of one TryConsume call.
type Verdict struct {
	Outcome       Outcome
	QueuePosition int // valid when Outcome == Queued
}

// Config configures a Bucket.
type Config struct {
	Capacity       float64
	RefillRate     float64 // tokens added per RefillInterval
	RefillInterval time.Duration
	QueueMax       int
}

type queued struct {
	cost    float64
	payload any
}

// Bucket is a single token bucket with a bounded FIFO queue for requests
// that arrive while it is dry. It is owned by exactly one Session Engine
// (§5's shared-resource policy) — callers are expected to serialize access
// to it from a single goroutine, the same way the engine owns its
// pending-request map and transport handle; Bucket's own mutex exists only
// to make Status() safe to call from a metrics-scrape goroutine.
type Bucket struct {
	mu             sync.Mutex
	tokens         float64
	capacity       float64
	refillRate     float64
	refillInterval time.Duration
	lastRefill     time.Time
	queue          *list.List
	queueMax       int
}

// New creates a Bucket starting with a full bucket (capacity tokens), the
// same starting condition as the teacher's NewTokenBucket.
func New(cfg Config) *Bucket {
	queueMax := cfg.QueueMax
	if queueMax <= 0 {
		queueMax = DefaultQueueMax
	}
	return &Bucket{
		tokens:         cfg.Capacity,
		capacity:       cfg.Capacity,
		refillRate:     cfg.RefillRate,
		refillInterval: cfg.RefillInterval,
		lastRefill:     time.Now(),
		queue:          list.New(),
		queueMax:       queueMax,
	}
}

// refillLocked adds tokens for elapsed wall-clock time, capped at
// capacity. Must be called with mu held.
func (b *Bucket) refillLocked(now time.Time) {
	if b.refillInterval <= 0 {
		b.lastRefill = now
		return
	}
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed.Seconds() / b.refillInterval.Seconds() * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

// TryConsume attempts to admit a request of the given cost. payload is an
// opaque value the caller wants back later (the engine stores its pending
// caller operation here; the request id is assigned only once it is
// dispatched); Bucket never inspects it. If the bucket is dry
// and the queue has room, payload is appended to the FIFO queue and
// released later by OnTick — never reordered by a later, cheaper arrival
// (§4.2 invariant: no cost-based priority).
func (b *Bucket) TryConsume(cost int, payload any) Verdict {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(time.Now())

	c := float64(cost)
	if b.tokens >= c {
		b.tokens -= c
		return Verdict{Outcome: Admitted}
	}

	if b.queue.Len() >= b.queueMax {
		return Verdict{Outcome: Rejected}
	}

	b.queue.PushBack(&queued{cost: c, payload: payload})
	return Verdict{Outcome: Queued, QueuePosition: b.queue.Len()}
}

// OnTick refills the bucket for elapsed time and drains the queue head
// while tokens suffice, returning the payloads admitted this tick in FIFO
// order. Call this from the engine's refill-interval timer.
func (b *Bucket) OnTick() []any {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(time.Now())

	var admitted []any
	for {
		front := b.queue.Front()
		if front == nil {
			break
		}
		q := front.Value.(*queued)
		if b.tokens < q.cost {
			break
		}
		b.tokens -= q.cost
		b.queue.Remove(front)
		admitted = append(admitted, q.payload)
	}
	return admitted
}

// Status reports current tokens and queue depth, for observability only.
func (b *Bucket) Status() (tokens float64, queueLen int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(time.Now())
	return b.tokens, b.queue.Len()
}
