package ratelimit

import (
	"testing"
	"time"
)

func TestTryConsumeAdmitsWithinCapacity(t *testing.T) {
	b := New(Config{Capacity: 2, RefillRate: 1, RefillInterval: time.Second, QueueMax: 3})

	if v := b.TryConsume(1, "a"); v.Outcome != Admitted {
		t.Fatalf("request 1: outcome = %v, want Admitted", v.Outcome)
	}
	if v := b.TryConsume(1, "b"); v.Outcome != Admitted {
		t.Fatalf("request 2: outcome = %v, want Admitted", v.Outcome)
	}
}

// Scenario E: capacity=2, refill=1/s, cost=1, 5 requests in a burst: 1-2
// admit immediately, 3-5 queue in order, 6th is rejected at queue_max=3.
func TestScenarioE_RateLimitQueueing(t *testing.T) {
	b := New(Config{Capacity: 2, RefillRate: 1, RefillInterval: time.Second, QueueMax: 3})

	for i := 1; i <= 2; i++ {
		if v := b.TryConsume(1, i); v.Outcome != Admitted {
			t.Fatalf("request %d: outcome = %v, want Admitted", i, v.Outcome)
		}
	}

	for i, want := range []int{1, 2, 3} {
		v := b.TryConsume(1, 100+i)
		if v.Outcome != Queued {
			t.Fatalf("request %d: outcome = %v, want Queued", i+3, v.Outcome)
		}
		if v.QueuePosition != want {
			t.Fatalf("request %d: queue position = %d, want %d", i+3, v.QueuePosition, want)
		}
	}

	if v := b.TryConsume(1, "sixth"); v.Outcome != Rejected {
		t.Fatalf("6th request: outcome = %v, want Rejected", v.Outcome)
	}
}

func TestOnTickDrainsFIFOOrder(t *testing.T) {
	b := New(Config{Capacity: 1, RefillRate: 1, RefillInterval: 10 * time.Millisecond, QueueMax: 10})

	// The bucket starts full; spend its one token so the next three queue.
	if v := b.TryConsume(1, "warmup"); v.Outcome != Admitted {
		t.Fatalf("TryConsume(warmup) = %v, want Admitted", v.Outcome)
	}

	for _, payload := range []string{"first", "second", "third"} {
		if v := b.TryConsume(1, payload); v.Outcome != Queued {
			t.Fatalf("TryConsume(%s) = %v, want Queued", payload, v.Outcome)
		}
	}

	time.Sleep(15 * time.Millisecond)
	admitted := b.OnTick()
	if len(admitted) == 0 {
		t.Fatal("expected at least one admission after refill")
	}
	if admitted[0] != "first" {
		t.Fatalf("first admitted payload = %v, want %q (FIFO order)", admitted[0], "first")
	}
}

func TestTokensNeverExceedCapacity(t *testing.T) {
	b := New(Config{Capacity: 5, RefillRate: 100, RefillInterval: time.Millisecond, QueueMax: 1})

	time.Sleep(50 * time.Millisecond)
	tokens, _ := b.Status()
	if tokens > 5 {
		t.Fatalf("tokens = %v, want <= capacity (5)", tokens)
	}
}

func TestQueueFullRejectsWithoutStarvingEarlierEntries(t *testing.T) {
	b := New(Config{Capacity: 0, RefillRate: 0, RefillInterval: time.Second, QueueMax: 1})

	if v := b.TryConsume(1, "only-slot"); v.Outcome != Queued {
		t.Fatalf("first queue entry: outcome = %v, want Queued", v.Outcome)
	}
	if v := b.TryConsume(1, "overflow"); v.Outcome != Rejected {
		t.Fatalf("second queue entry: outcome = %v, want Rejected", v.Outcome)
	}
	// The queued entry must still be present (not overtaken/evicted).
	_, queueLen := b.Status()
	if queueLen != 1 {
		t.Fatalf("queue length = %d, want 1 (original entry retained)", queueLen)
	}
}

func TestZeroCapacityQueuesEverything(t *testing.T) {
	b := New(Config{Capacity: 0, RefillRate: 0, RefillInterval: time.Second, QueueMax: 5})

	v := b.TryConsume(1, "x")
	if v.Outcome != Queued {
		t.Fatalf("outcome = %v, want Queued", v.Outcome)
	}
}
