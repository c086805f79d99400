// Package supervisor implements the Supervisor & Adapter component
// (spec.md §4.6, SPEC_FULL.md §F): process-level fault tolerance beyond
// what the Session Engine's own internal reconnection can offer. It owns
// everything needed to rebuild a fully usable session after an engine
// dies for any reason other than a caller-initiated close — credentials,
// the subscription set, and the stable session_id — and is the sole
// writer of the Session Registry entry for its session.
//
// Grounded on the teacher's disconnectClient
// (internal/single/core/client_lifecycle.go — structured-log the reason,
// release resources, return the slot to its pool) generalized from
// "client disconnect cleanup" into "engine termination cleanup plus
// rebuild", and on the LoadBalancer's poll/detect-dead-shard/replace loop
// (internal/multi/loadbalancer.go) as the model for the monitor
// goroutine: both watch a liveness signal and swap in a replacement
// without the caller ever noticing which instance is serving them.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/deribit-ws/wsengine/internal/engine"
	"github.com/deribit-ws/wsengine/internal/logging"
	"github.com/deribit-ws/wsengine/internal/metrics"
	"github.com/deribit-ws/wsengine/internal/registry"
	"github.com/deribit-ws/wsengine/internal/session"
)

// maxRecoveryBackoff mirrors the engine's own reconnect cap (§4.5): the
// Supervisor's attempt counter is independent of any engine-internal one,
// but there is no reason for its ceiling to differ.
const maxRecoveryBackoff = 30 * time.Second

// Supervisor owns one session end to end: it opens the first engine,
// monitors it, and rebuilds it on unexpected termination. Every engine it
// starts runs with ReconnectOnError = false — the key invariant of §4.6
// is that exactly one reconnection mechanism is ever active for a given
// failure, and in supervised mode that mechanism is always the Supervisor.
type Supervisor struct {
	sessionID string
	cfg       session.SessionConfig
	adapter   session.Adapter
	logger    zerolog.Logger
	metrics   *metrics.Collector
	reg       *registry.Registry

	subs *session.SubscriptionSet

	// starter builds a new Session Engine. Defaults to engine.Start;
	// overridden in tests so recovery can be exercised against a fake
	// transport instead of a real dial.
	starter func(ctx context.Context, cfg session.SessionConfig, sessionID string, adapter session.Adapter, logger zerolog.Logger, mc *metrics.Collector) (*engine.Engine, error)

	mu       sync.Mutex
	attempt  int
	closed   bool
	closedCh chan struct{}
}

// Open creates a session_id, registers it, starts the first Session
// Engine, and launches the monitor goroutine — the public open(config)
// contract of §4.6. cfg.ReconnectOnError is forced false: a Supervisor
// always owns recovery for the engines it starts.
func Open(ctx context.Context, cfg session.SessionConfig, adapter session.Adapter, reg *registry.Registry, logger zerolog.Logger, mc *metrics.Collector) (*Supervisor, error) {
	cfg.ReconnectOnError = false

	sessionID := uuid.NewString()
	subs := session.NewSubscriptionSet()
	for _, ch := range cfg.Subscriptions {
		subs.Add(ch)
	}

	s := &Supervisor{
		sessionID: sessionID,
		cfg:       cfg,
		adapter:   adapter,
		logger:    logger.With().Str("session_id", sessionID).Str("component", "supervisor").Logger(),
		metrics:   mc,
		reg:       reg,
		subs:      subs,
		starter:   engine.Start,
		closedCh:  make(chan struct{}),
	}

	e, err := s.startEngine(ctx)
	if err != nil {
		return nil, err
	}
	s.reg.Register(sessionID, e)

	go s.monitor(e)
	return s, nil
}

// SessionID returns the stable identifier a Session Handle carries. It
// never changes across reconnections (§4.4: Session Handle stability).
func (s *Supervisor) SessionID() string { return s.sessionID }

func (s *Supervisor) startEngine(ctx context.Context) (*engine.Engine, error) {
	return s.starter(ctx, s.cfgWithSubs(), s.sessionID, s.adapter, s.logger, s.metrics)
}

// cfgWithSubs returns the configuration to hand to a new engine, with
// Subscriptions replaced by the live set so a reconnect after the caller
// has subscribed to additional channels mid-session still restores all
// of them, in the order they were added.
func (s *Supervisor) cfgWithSubs() session.SessionConfig {
	cfg := s.cfg
	cfg.Subscriptions = s.subs.List()
	return cfg
}

// monitor watches the current engine's Done signal and executes recovery
// on any termination that carries a non-nil Err (an explicit
// Supervisor-initiated Close, a direct engine Close, or a server Close
// frame ends monitoring instead) —
// the teacher's health-check/replace loop, collapsed from a polling loop
// into a single blocking select since one engine has exactly one
// termination event rather than a fleet to poll.
func (s *Supervisor) monitor(e *engine.Engine) {
	defer logging.RecoverPanic(s.logger, "supervisor.monitor")
	for {
		select {
		case <-s.closedCh:
			return
		case <-e.Done():
		}

		select {
		case <-s.closedCh:
			return
		default:
		}

		cause := e.Err()
		if cause == nil {
			// A nil Err on Done means the engine exited cleanly without
			// going through Supervisor.Close: either a direct Close on
			// the engine or a Close frame received from the server.
			// Treat it the same as an explicit close: no recovery, no
			// further monitoring.
			s.logger.Info().Msg("engine closed without a termination cause, not recovering")
			return
		}

		s.logger.Warn().Err(cause).Msg("engine terminated, starting recovery")
		newEngine, ok := s.recover()
		if !ok {
			return
		}
		e = newEngine
	}
}

// recover implements the recovery procedure of §4.6: backoff on the
// Supervisor's own counter, dial a fresh engine with the retained
// subscriptions (which resubscribes them in recorded order on its way to
// Ready), update the registry, reset the counter. Returns ok=false if
// Close fired while recovery was in progress.
func (s *Supervisor) recover() (*engine.Engine, bool) {
	for {
		s.mu.Lock()
		attempt := s.attempt
		s.attempt++
		s.mu.Unlock()

		delay := recoveryBackoff(s.cfg.RetryDelayBase, attempt)
		if !s.sleepOrAbort(delay) {
			return nil, false
		}

		if s.metrics != nil {
			s.metrics.ReconnectAttemptsTotal.WithLabelValues(s.sessionID, "supervisor").Inc()
		}

		// startEngine hands the new engine cfgWithSubs(), so it already
		// restores every retained channel itself during startInternal's
		// dial-through-Ready sequence (the same subscribe-on-connect path
		// Open's first engine runs through) — resubscribing again here
		// would put a duplicate subscribe frame on the wire for every
		// channel on every recovery.
		e, err := s.startEngine(context.Background())
		if err != nil {
			s.logger.Warn().Err(err).Int("attempt", attempt).Msg("recovery attempt failed, will retry")
			continue
		}

		s.reg.Update(s.sessionID, e)

		s.mu.Lock()
		s.attempt = 0
		s.mu.Unlock()

		s.logger.Info().Int("attempts_used", attempt+1).Msg("session recovered")
		return e, true
	}
}

// recoveryBackoff uses the same doubling-with-cap shape as the engine's
// internal backoff (internal/engine/dial.go's backoffDelay) — same
// formula, independent counter, per §4.6's "does not interact" note.
func recoveryBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	delay := base
	for i := 0; i < attempt && delay < maxRecoveryBackoff; i++ {
		delay *= 2
	}
	if delay > maxRecoveryBackoff {
		delay = maxRecoveryBackoff
	}
	return delay
}

// sleepOrAbort waits for d, or returns false immediately if Close fires
// first — recovery must not race a caller that has already given up on
// the session.
func (s *Supervisor) sleepOrAbort(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.closedCh:
		return false
	case <-timer.C:
		return true
	}
}

// Engine returns the currently live engine for this session via the
// Session Registry, or ok=false if the registry entry has been removed
// (only happens after Close). Callers proxy every operation through this
// lookup rather than holding an engine reference directly, so a handle
// survives any number of rebuilds (§4.4).
func (s *Supervisor) Engine() (*engine.Engine, bool) {
	h, ok := s.reg.Lookup(s.sessionID)
	if !ok {
		return nil, false
	}
	e, ok := h.(*engine.Engine)
	return e, ok
}

// Subscribe records channel in the retained subscription set (so it
// survives future rebuilds) and forwards the request to the current
// engine.
func (s *Supervisor) Subscribe(channel string) error {
	s.subs.Add(channel)
	e, ok := s.Engine()
	if !ok {
		return session.ErrClosed
	}
	return e.Subscribe(channel)
}

// Unsubscribe removes channel from the retained set and forwards the
// request to the current engine.
func (s *Supervisor) Unsubscribe(channel string) error {
	s.subs.Remove(channel)
	e, ok := s.Engine()
	if !ok {
		return session.ErrClosed
	}
	return e.Unsubscribe(channel)
}

// Close deregisters the session and closes the current engine. Per
// §4.6's public contract, a termination the Supervisor itself initiated
// never triggers recovery.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.closedCh)
	e, ok := s.Engine()
	s.reg.Deregister(s.sessionID)
	if !ok {
		return nil
	}
	return e.Close()
}
