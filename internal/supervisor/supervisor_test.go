package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/deribit-ws/wsengine/internal/registry"
	"github.com/deribit-ws/wsengine/internal/session"
)

func testConfig() session.SessionConfig {
	return session.SessionConfig{
		URL:            "wss://example.test/ws",
		ConnectTimeout: time.Second,
		RetryCount:     3,
		RetryDelayBase: 5 * time.Millisecond,
		RequestTimeout: time.Second,
		RateLimit: session.RateLimitConfig{
			Capacity:       10,
			RefillRate:     10,
			RefillInterval: 50 * time.Millisecond,
			QueueMax:       10,
		},
	}
}

// openWithFactory constructs a Supervisor exactly as Open would, except
// the engine starter is factory's fake instead of engine.Start.
func openWithFactory(t *testing.T, reg *registry.Registry, factory *fakeStarterFactory) *Supervisor {
	t.Helper()
	cfg := testConfig()
	cfg.ReconnectOnError = false

	subs := session.NewSubscriptionSet()
	for _, ch := range cfg.Subscriptions {
		subs.Add(ch)
	}

	s := &Supervisor{
		sessionID: "fixed-test-session",
		cfg:       cfg,
		adapter:   noopAdapter{},
		logger:    zerolog.Nop(),
		reg:       reg,
		subs:      subs,
		starter:   factory.starter,
		closedCh:  make(chan struct{}),
	}

	e, err := s.startEngine(context.Background())
	if err != nil {
		t.Fatalf("startEngine: %v", err)
	}
	reg.Register(s.sessionID, e)
	go s.monitor(e)
	return s
}

func TestOpenRegistersSessionAndIsReady(t *testing.T) {
	reg := registry.New()
	factory := &fakeStarterFactory{}
	s := openWithFactory(t, reg, factory)
	defer s.Close()

	e, ok := s.Engine()
	if !ok {
		t.Fatal("expected a live engine right after open")
	}
	if e.State() != session.StateReady {
		t.Fatalf("state = %v, want Ready", e.State())
	}
	if factory.count() != 1 {
		t.Fatalf("built %d engines, want 1", factory.count())
	}
}

func TestRecoveryRebuildsEngineAndPreservesSessionID(t *testing.T) {
	reg := registry.New()
	factory := &fakeStarterFactory{}
	s := openWithFactory(t, reg, factory)
	defer s.Close()

	sessionID := s.SessionID()
	firstTransport := factory.current()
	firstTransport.breakConnection()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if factory.count() == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if factory.count() != 2 {
		t.Fatalf("built %d engines after transport death, want 2", factory.count())
	}

	e, ok := s.Engine()
	if !ok {
		t.Fatal("expected a replacement engine registered after recovery")
	}
	if s.SessionID() != sessionID {
		t.Fatalf("session_id changed across recovery: %s -> %s", sessionID, s.SessionID())
	}

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && e.State() != session.StateReady {
		time.Sleep(5 * time.Millisecond)
	}
	if e.State() != session.StateReady {
		t.Fatalf("recovered engine state = %v, want Ready", e.State())
	}
}

func TestRecoveryRetriesPastDialFailures(t *testing.T) {
	reg := registry.New()
	factory := &fakeStarterFactory{}
	s := openWithFactory(t, reg, factory)
	defer s.Close()

	factory.dialErrs = 2 // first two recovery attempts fail to dial
	factory.current().breakConnection()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if factory.count() == 2 { // failed attempts leave no transport built
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if factory.count() != 2 {
		t.Fatalf("built %d engines after two failed dials, want 2", factory.count())
	}
	if _, ok := s.Engine(); !ok {
		t.Fatal("expected recovery to eventually succeed despite early dial failures")
	}
}

func TestCloseDeregistersAndStopsRecovery(t *testing.T) {
	reg := registry.New()
	factory := &fakeStarterFactory{}
	s := openWithFactory(t, reg, factory)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := reg.Lookup(s.SessionID()); ok {
		t.Fatal("expected registry entry removed after Close")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestSubscribeTracksChannelAcrossRecovery(t *testing.T) {
	reg := registry.New()
	factory := &fakeStarterFactory{}
	s := openWithFactory(t, reg, factory)
	defer s.Close()

	if err := s.Subscribe("ticker.BTC"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if !s.subs.Has("ticker.BTC") {
		t.Fatal("expected channel tracked in the retained subscription set")
	}

	factory.current().breakConnection()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if factory.count() == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !s.subs.Has("ticker.BTC") {
		t.Fatal("expected subscription retained across recovery")
	}

	e, ok := s.Engine()
	if !ok {
		t.Fatal("expected a replacement engine registered after recovery")
	}
	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && e.State() != session.StateReady {
		time.Sleep(5 * time.Millisecond)
	}
	if e.State() != session.StateReady {
		t.Fatalf("recovered engine state = %v, want Ready", e.State())
	}

	// The recovered engine must resubscribe "ticker.BTC" exactly once —
	// startEngine already hands it the retained set via cfgWithSubs, so
	// recover() must not also resubscribe it directly.
	if n := factory.current().writesContaining("ticker.BTC"); n != 1 {
		t.Fatalf("wrote %d subscribe frames for ticker.BTC after recovery, want 1", n)
	}
}
