// Package engine implements the Session Engine (spec.md §4.5, SPEC_FULL.md
// §E): the per-connection state machine that owns one transport end to
// end, pumps frames, enforces the heartbeat contract, correlates
// requests with responses, shapes outbound traffic through the rate
// limiter, and — when reconnect_on_error is set — rebuilds the
// connection on its own.
//
// Grounded on the teacher's readPump/writePump goroutine pair
// (internal/shared/pump_read.go, pump_write.go), collapsed into the
// single-goroutine event loop §5 requires (one task per session, not a
// read/write pair, so heartbeat replies never cross a queue boundary).
// The dial-and-backoff shape is grounded on
// thatcooperguy-nvremote's ConnectSignaling/runSignalingSession.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/deribit-ws/wsengine/internal/codec"
	"github.com/deribit-ws/wsengine/internal/logging"
	"github.com/deribit-ws/wsengine/internal/metrics"
	"github.com/deribit-ws/wsengine/internal/ratelimit"
	"github.com/deribit-ws/wsengine/internal/session"
	"github.com/deribit-ws/wsengine/internal/tracker"
)

type opKind int

const (
	opRequest opKind = iota
	opNotification
	opSubscribe
	opUnsubscribe
)

// callerOp is handed from a public method to the event loop over
// callerOpCh. It doubles as the payload stored in the rate limiter's FIFO
// queue when admission is deferred (§4.2) — dispatch() is the single
// place that turns one into wire bytes, whether called immediately
// (Admitted) or later from a drained queue (Queued).
type callerOp struct {
	kind    opKind
	method  string
	params  any
	channel string
	timeout time.Duration
	result  chan opResult
}

// opResult is delivered to a caller exactly once. For opRequest, replyCh
// is the Request Tracker's single-shot slot; the caller awaits it
// separately so the event loop never blocks on request completion.
type opResult struct {
	replyCh <-chan tracker.Response
	err     error
}

type readEvent struct {
	frame codec.Frame
	err   error
}

// Engine is one live Session Engine. Construct with Start; it is not
// meant to be constructed directly.
type Engine struct {
	cfg       session.SessionConfig
	sessionID string
	adapter   session.Adapter
	logger    zerolog.Logger
	metrics   *metrics.Collector

	dialFn func(ctx context.Context, cfg session.SessionConfig) (Transport, error)

	bucket       *ratelimit.Bucket
	tracker      *tracker.Tracker
	dialGovernor *ratelimit.DialGovernor

	conn Transport

	stateMu sync.RWMutex
	state   session.ConnState

	hbMu         sync.Mutex
	hbHealth     HeartbeatHealth
	awaitingPong bool
	hbFailures   int

	readCh     chan readEvent
	callerOpCh chan *callerOp
	closeCh    chan struct{}
	closeOnce  sync.Once
	doneCh     chan struct{}
	termErr    error
}

// Start opens the transport, performs the WebSocket upgrade, authenticates
// if credentials are present, restores the initial subscription set, and
// transitions to Ready — all before returning — then hands the session
// off to its own event-loop goroutine (§4.5 public contract: start(...)).
func Start(ctx context.Context, cfg session.SessionConfig, sessionID string, adapter session.Adapter, logger zerolog.Logger, mc *metrics.Collector) (*Engine, error) {
	return StartWithDialer(ctx, cfg, sessionID, adapter, logger, mc, dial)
}

// StartWithDialer is Start with the transport-dialing step replaced by
// dialFn — the seam the Supervisor's tests use to rebuild engines against
// an in-memory fake transport instead of a real socket, and a caller
// could use it to dial through a custom proxy or test harness.
func StartWithDialer(ctx context.Context, cfg session.SessionConfig, sessionID string, adapter session.Adapter, logger zerolog.Logger, mc *metrics.Collector, dialFn func(context.Context, session.SessionConfig) (Transport, error)) (*Engine, error) {
	e := &Engine{
		cfg:          cfg,
		sessionID:    sessionID,
		adapter:      adapter,
		logger:       logger.With().Str("session_id", sessionID).Logger(),
		metrics:      mc,
		dialFn:       dialFn,
		tracker:      newTracker(),
		bucket:       newBucket(cfg),
		dialGovernor: newDialGovernor(cfg),
		readCh:       make(chan readEvent, 1),
		callerOpCh:   make(chan *callerOp),
		closeCh:      make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	return startInternal(ctx, e)
}

func newTracker() *tracker.Tracker { return tracker.New() }

func newBucket(cfg session.SessionConfig) *ratelimit.Bucket {
	return ratelimit.New(ratelimit.Config{
		Capacity:       cfg.RateLimit.Capacity,
		RefillRate:     cfg.RateLimit.RefillRate,
		RefillInterval: cfg.RateLimit.RefillInterval,
		QueueMax:       cfg.RateLimit.QueueMax,
	})
}

func newDialGovernor(cfg session.SessionConfig) *ratelimit.DialGovernor {
	return ratelimit.NewDialGovernor(3, dialRatePerSecond(cfg.RetryDelayBase))
}

// startInternal runs the dial-through-Ready sequence against an
// already-constructed Engine, separated from Start so tests can inject a
// fake Transport via e.dialFn before running it.
func startInternal(ctx context.Context, e *Engine) (*Engine, error) {
	e.setState(session.StateConnecting)

	conn, err := e.dialFn(ctx, e.cfg)
	if err != nil {
		close(e.doneCh)
		return nil, err
	}
	e.conn = conn
	e.setState(session.StateConnected)

	stop := make(chan struct{})
	go e.readLoop(conn, stop)

	if err := e.authenticate(); err != nil {
		close(stop)
		conn.Close()
		close(e.doneCh)
		return nil, err
	}

	for _, ch := range e.cfg.Subscriptions {
		if err := e.sendSubscribeControl(ch, true); err != nil {
			e.logger.Warn().Str("channel", ch).Err(err).Msg("initial subscribe failed")
		}
	}
	e.startHeartbeatSetup()
	e.setState(session.StateReady)

	go e.loop(stop)
	return e, nil
}

func dialRatePerSecond(base time.Duration) float64 {
	if base <= 0 {
		return 1
	}
	r := 1.0 / base.Seconds()
	if r <= 0 {
		return 1
	}
	return r
}

// authenticate runs before the main event loop starts, reusing handleFrame
// so inbound frames unrelated to auth (a stray Ping, say) are handled the
// same way they would be once the loop is running.
func (e *Engine) authenticate() error {
	if e.cfg.Credentials == nil {
		return nil
	}
	e.setState(session.StateAuthenticating)

	method, params, err := e.adapter.BuildAuthRequest(e.cfg.Credentials)
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrAuthFailed, err)
	}
	id := e.tracker.NextID()
	replyCh, err := e.tracker.Register(id, e.cfg.RequestTimeout)
	if err != nil {
		return err
	}
	if err := e.writeJSON(newRequest(id, method, params)); err != nil {
		return err
	}

	for {
		select {
		case resp := <-replyCh:
			switch resp.Outcome {
			case tracker.OutcomeResult:
				if err := e.adapter.OnAuthResponse(resp.Result, nil); err != nil {
					return fmt.Errorf("%w: %v", session.ErrAuthFailed, err)
				}
				return nil
			case tracker.OutcomeRPCError:
				if err := e.adapter.OnAuthResponse(nil, resp.RPCErr); err != nil {
					return fmt.Errorf("%w: %v", session.ErrAuthFailed, err)
				}
				return nil
			default:
				return session.ErrAuthFailed
			}
		case ev := <-e.readCh:
			if ev.err != nil {
				return ev.err
			}
			if e.handleFrame(ev.frame) {
				return session.ErrConnectionLost
			}
		}
	}
}

// loop is the engine's single-threaded event loop (§5): the sole consumer
// of transport events, caller operations, and timers for this session.
func (e *Engine) loop(initialStop chan struct{}) {
	defer close(e.doneCh)
	defer logging.RecoverPanic(e.logger, "engine.loop")

	var heartbeatC <-chan time.Time
	if e.cfg.Heartbeat.Kind == session.HeartbeatPingPong && e.cfg.Heartbeat.Interval > 0 {
		t := time.NewTicker(e.cfg.Heartbeat.Interval)
		defer t.Stop()
		heartbeatC = t.C
	}
	var rateC <-chan time.Time
	if e.cfg.RateLimit.RefillInterval > 0 {
		t := time.NewTicker(e.cfg.RateLimit.RefillInterval)
		defer t.Stop()
		rateC = t.C
	}

	currentStop := initialStop

	for {
		select {
		case <-e.closeCh:
			e.finishClose(currentStop)
			return

		case ev := <-e.readCh:
			if ev.err != nil {
				newStop, terminated := e.handleTransportFailure(ev.err, currentStop)
				if terminated {
					return
				}
				currentStop = newStop
				continue
			}
			if e.handleFrame(ev.frame) {
				close(currentStop)
				if e.conn != nil {
					e.conn.Close()
				}
				e.setState(session.StateClosed)
				return
			}

		case op := <-e.callerOpCh:
			e.handleCallerOp(op)

		case <-rateC:
			for _, payload := range e.bucket.OnTick() {
				e.dispatch(payload.(*callerOp))
			}
			if e.metrics != nil {
				_, qlen := e.bucket.Status()
				e.metrics.RateLimitQueueLen.WithLabelValues(e.sessionID).Set(float64(qlen))
			}

		case <-heartbeatC:
			e.hbMu.Lock()
			wasAwaiting := e.awaitingPong
			if wasAwaiting {
				e.hbFailures++
			}
			failures := e.hbFailures
			e.hbMu.Unlock()

			if wasAwaiting && failures >= 2 {
				if e.metrics != nil {
					e.metrics.HeartbeatFailuresTotal.WithLabelValues(e.sessionID).Inc()
				}
				e.logger.Warn().Msg("two consecutive missed pongs, treating as connection loss")
				newStop, terminated := e.handleTransportFailure(session.ErrConnectionLost, currentStop)
				if terminated {
					return
				}
				currentStop = newStop
				continue
			}
			if err := e.writeFrame(codec.PingFrame(nil)); err == nil {
				e.hbMu.Lock()
				e.awaitingPong = true
				e.hbHealth.LastSent = time.Now()
				e.hbMu.Unlock()
			}
		}
	}
}

// handleTransportFailure reacts to a dead transport per §4.5: Reconnecting
// (engine-internal backoff loop) when reconnect_on_error is set, otherwise
// Closed — leaving rebuild to the Supervisor. Returns the new read-loop
// stop channel when reconnection succeeds, and whether the engine has
// terminated for good.
func (e *Engine) handleTransportFailure(cause error, oldStop chan struct{}) (newStop chan struct{}, terminated bool) {
	close(oldStop)
	e.tracker.Drain(tracker.OutcomeConnectionLost)
	if e.conn != nil {
		e.conn.Close()
		e.conn = nil
	}

	if !e.cfg.ReconnectOnError {
		e.logger.Warn().Err(cause).Msg("transport lost, supervised mode: terminating for rebuild")
		e.setState(session.StateClosed)
		e.termErr = cause
		return nil, true
	}

	e.logger.Warn().Err(cause).Msg("transport lost, starting internal reconnection")
	e.setState(session.StateReconnecting)

	attempt := 0
	for {
		if attempt >= e.cfg.RetryCount {
			e.logger.Error().Int("attempts", attempt).Msg("exhausted reconnect attempts")
			e.setState(session.StateClosed)
			e.termErr = session.ErrMaxRetriesExceeded
			return nil, true
		}

		if !e.waitOrDrain(backoffDelay(e.cfg.RetryDelayBase, attempt)) {
			e.setState(session.StateClosed)
			e.termErr = session.ErrClosed
			return nil, true
		}

		if err := e.dialGovernor.Wait(context.Background()); err != nil {
			attempt++
			continue
		}

		conn, dialErr := e.dialFn(context.Background(), e.cfg)
		attempt++
		if e.metrics != nil {
			e.metrics.ReconnectAttemptsTotal.WithLabelValues(e.sessionID, "engine").Inc()
		}
		if dialErr != nil {
			e.logger.Warn().Err(dialErr).Int("attempt", attempt).Msg("reconnect attempt failed")
			continue
		}

		e.conn = conn
		e.setState(session.StateConnected)

		stop := make(chan struct{})
		go e.readLoop(conn, stop)

		if authErr := e.authenticate(); authErr != nil {
			e.logger.Warn().Err(authErr).Msg("reconnect: re-authentication failed")
			close(stop)
			conn.Close()
			continue
		}
		for _, ch := range e.cfg.Subscriptions {
			if subErr := e.sendSubscribeControl(ch, true); subErr != nil {
				e.logger.Warn().Str("channel", ch).Err(subErr).Msg("resubscribe failed")
			}
		}
		e.startHeartbeatSetup()
		e.setState(session.StateReady)
		return stop, false
	}
}

// waitOrDrain blocks for d, replying NotConnected to any caller op that
// arrives meanwhile so a send during Reconnecting never hangs (§7: "a
// caller whose session is in Reconnecting observes NotConnected on new
// sends until Ready"). Returns false if closeCh fires first.
func (e *Engine) waitOrDrain(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-e.closeCh:
			return false
		case op := <-e.callerOpCh:
			e.replyErr(op, session.ErrNotConnected)
		case <-timer.C:
			return true
		}
	}
}

func (e *Engine) finishClose(stop chan struct{}) {
	e.setState(session.StateClosing)
	if e.conn != nil {
		_ = e.writeFrame(codec.CloseFrame(1000, ""))
		e.conn.Close()
	}
	close(stop)
	e.tracker.Drain(tracker.OutcomeConnectionLost)
	e.setState(session.StateClosed)
}

func (e *Engine) handleCallerOp(op *callerOp) {
	st := e.State()
	if st == session.StateClosing || st == session.StateClosed {
		e.replyErr(op, session.ErrClosed)
		return
	}
	if st != session.StateReady {
		e.replyErr(op, session.ErrNotConnected)
		return
	}

	costFn := e.cfg.RateLimit.CostFn
	if costFn == nil {
		costFn = session.DefaultCostFunc
	}
	verdict := e.bucket.TryConsume(costFn(op.method, op.params), op)
	switch verdict.Outcome {
	case ratelimit.Rejected:
		e.replyErr(op, session.ErrRateLimited)
	case ratelimit.Admitted:
		e.dispatch(op)
	case ratelimit.Queued:
		// Resolved later from the loop's rate-tick case via OnTick.
	}
}

// dispatch turns an admitted op into wire bytes and delivers its result.
// Called either synchronously (Admitted) or later, once drained from the
// rate limiter's queue (Queued) — the Pending Request for opRequest is
// created here, at actual transmission time, matching §3's "created on
// admitted send."
func (e *Engine) dispatch(op *callerOp) {
	switch op.kind {
	case opRequest:
		id := e.tracker.NextID()
		replyCh, err := e.tracker.Register(id, op.timeout)
		if err != nil {
			e.replyErr(op, err)
			return
		}
		if err := e.writeJSON(newRequest(id, op.method, op.params)); err != nil {
			e.tracker.Complete(id, tracker.Response{Outcome: tracker.OutcomeConnectionLost})
			e.replyErr(op, err)
			return
		}
		select {
		case op.result <- opResult{replyCh: replyCh}:
		default:
		}
	case opNotification:
		e.replyErr(op, e.writeJSON(newNotification(op.method, op.params)))
	case opSubscribe:
		e.replyErr(op, e.sendSubscribeControl(op.channel, true))
	case opUnsubscribe:
		e.replyErr(op, e.sendSubscribeControl(op.channel, false))
	}
}

// replyErr delivers err (nil means Ok) to op.result. err == nil is a valid,
// meaningful delivery, so this always sends rather than special-casing nil.
func (e *Engine) replyErr(op *callerOp, err error) {
	select {
	case op.result <- opResult{err: err}:
	default:
	}
}

func (e *Engine) sendSubscribeControl(channel string, subscribe bool) error {
	var method string
	var params any
	if subscribe {
		method, params = e.adapter.BuildSubscribe(channel)
	} else {
		method, params = e.adapter.BuildUnsubscribe(channel)
	}
	id := e.tracker.NextID()
	return e.writeJSON(newRequest(id, method, params))
}

func (e *Engine) startHeartbeatSetup() {
	if e.cfg.Heartbeat.Kind != session.HeartbeatPlatformTestRequest {
		return
	}
	params := map[string]int{"interval": int(e.cfg.Heartbeat.Interval.Seconds())}
	id := e.tracker.NextID()
	if err := e.writeJSON(newRequest(id, "public/set_heartbeat", params)); err != nil {
		e.logger.Warn().Err(err).Msg("failed to send set_heartbeat")
	}
}

// handleFrame applies inbound routing priority from §4.5: Close > Ping >
// Pong > Text/Binary. Returns true if the frame is terminal (a Close was
// received — treated unconditionally as session termination, unlike a
// transport error, since a server-initiated close is not retried the way
// a dropped connection is).
func (e *Engine) handleFrame(f codec.Frame) (closed bool) {
	switch f.Kind {
	case codec.Close:
		e.logger.Info().Int("code", f.Code).Str("reason", f.Reason).Msg("received close frame")
		e.tracker.Drain(tracker.OutcomeConnectionLost)
		e.setState(session.StateClosing)
		return true
	case codec.Ping:
		_ = e.writeFrame(codec.PongFrame(f.Payload))
		e.hbMu.Lock()
		e.hbHealth.LastRecv = time.Now()
		e.hbMu.Unlock()
	case codec.Pong:
		e.hbMu.Lock()
		e.hbHealth.LastRecv = time.Now()
		e.awaitingPong = false
		e.hbFailures = 0
		e.hbMu.Unlock()
	case codec.Text, codec.Binary:
		e.handleMessage(f.Payload)
	}
	return false
}

func (e *Engine) handleMessage(payload []byte) {
	incoming := e.adapter.ClassifyIncoming(payload)
	switch incoming.Kind {
	case session.IncomingHeartbeatTestRequest:
		e.replyTestRequest()
	case session.IncomingResponse:
		e.deliverResponse(incoming)
	case session.IncomingNotification:
		e.adapter.OnNotification(incoming.Channel, incoming.Data)
	default:
		e.logger.Debug().Msg("dropping unclassified inbound message")
	}
}

// replyTestRequest answers a platform_test_request heartbeat probe
// directly, bypassing the rate limiter entirely: §4.5 requires the reply
// within roughly a second or the server closes the connection (and, for
// trading accounts, cancels open orders), a bound a dry token bucket could
// blow.
func (e *Engine) replyTestRequest() {
	start := time.Now()
	id := e.tracker.NextID()
	if err := e.writeJSON(newRequest(id, "public/test", struct{}{})); err != nil {
		e.logger.Warn().Err(err).Msg("failed to reply to heartbeat test_request")
		return
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		e.logger.Warn().Dur("elapsed", elapsed).Msg("heartbeat test_request reply exceeded target bound")
	}
}

func (e *Engine) deliverResponse(incoming session.Incoming) {
	if !incoming.HasID {
		e.logger.Debug().Msg("response classified without id, dropping")
		return
	}
	var env inboundEnvelope
	if err := json.Unmarshal(incoming.Data, &env); err != nil {
		e.logger.Warn().Err(err).Msg("failed to decode response envelope")
		return
	}
	resp := tracker.Response{}
	if env.Error != nil {
		resp.Outcome = tracker.OutcomeRPCError
		resp.RPCErr = &session.RPCError{Code: env.Error.Code, Message: env.Error.Message, Data: env.Error.Data}
	} else {
		resp.Outcome = tracker.OutcomeResult
		resp.Result = env.Result
	}
	if err := e.tracker.Complete(incoming.ID, resp); err != nil {
		// Unknown response ids are logged and discarded, never fatal (§4.3) —
		// this is also how an unwaited subscribe/unsubscribe ack is dropped.
		e.logger.Debug().Uint64("id", incoming.ID).Err(err).Msg("unmatched response id")
	}
}

func (e *Engine) writeFrame(f codec.Frame) error {
	if e.conn == nil {
		return session.ErrNotConnected
	}
	_ = e.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return e.conn.WriteMessage(f.MessageType(), f.Payload)
}

func (e *Engine) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wsengine: encode: %w", err)
	}
	return e.writeFrame(codec.TextFrame(b))
}

func (e *Engine) readLoop(conn Transport, stop chan struct{}) {
	// A panic here must still surface as a transport failure rather than
	// leave the loop goroutine blocked forever waiting on a readCh that
	// will never arrive.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic_value", r).Msg("recovered panic in engine.readLoop")
			select {
			case e.readCh <- readEvent{err: fmt.Errorf("wsengine: read loop panic: %v", r)}:
			case <-stop:
			}
		}
	}()
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case e.readCh <- readEvent{err: err}:
			case <-stop:
			}
			return
		}
		frame, ferr := codec.Classify(mt, data)
		if ferr != nil {
			e.logger.Warn().Err(ferr).Msg("dropping malformed frame")
			continue
		}
		select {
		case e.readCh <- readEvent{frame: frame}:
		case <-stop:
			return
		}
	}
}

func (e *Engine) setState(s session.ConnState) {
	e.stateMu.Lock()
	old := e.state
	e.state = s
	e.stateMu.Unlock()
	if e.metrics != nil && old != s {
		e.metrics.SessionState.WithLabelValues(e.sessionID, old.String()).Set(0)
		e.metrics.SessionState.WithLabelValues(e.sessionID, s.String()).Set(1)
	}
	e.logger.Debug().Str("from", old.String()).Str("to", s.String()).Msg("state transition")
}

// State reports the engine's current connection state.
func (e *Engine) State() session.ConnState {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.state
}

// Done returns a channel closed once the engine's event loop has exited,
// for any reason — the Supervisor's monitor goroutine selects on this.
func (e *Engine) Done() <-chan struct{} { return e.doneCh }

// Err returns the reason the engine terminated. Only meaningful after
// Done() has fired; nil means a clean close, either caller-initiated or
// triggered by a Close frame received from the server.
func (e *Engine) Err() error { return e.termErr }

// HeartbeatHealth reports the last observed heartbeat activity.
func (e *Engine) HeartbeatHealth() HeartbeatHealth {
	e.hbMu.Lock()
	defer e.hbMu.Unlock()
	h := e.hbHealth
	h.Failures = e.hbFailures
	return h
}

func (e *Engine) submit(op *callerOp) error {
	select {
	case e.callerOpCh <- op:
		return nil
	case <-e.doneCh:
		return session.ErrClosed
	}
}

// SendRequest admits, transmits, and awaits the correlated response,
// returning whichever of {result, rpc error, Timeout, ConnectionLost}
// resolves the Pending Request first (§4.5, §8 property 1). ctx governs
// only the caller's own wait; the Request Tracker's own timeout still
// applies independently.
func (e *Engine) SendRequest(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, *session.RPCError, error) {
	start := time.Now()
	if e.metrics != nil {
		e.metrics.RequestsInFlight.WithLabelValues(e.sessionID).Inc()
		defer e.metrics.RequestsInFlight.WithLabelValues(e.sessionID).Dec()
	}
	observe := func(outcome string) { e.metrics.ObserveRequestDuration(e.sessionID, outcome, time.Since(start)) }

	op := &callerOp{kind: opRequest, method: method, params: params, timeout: timeout, result: make(chan opResult, 1)}
	if err := e.submit(op); err != nil {
		if e.metrics != nil {
			observe("rejected")
		}
		return nil, nil, err
	}
	res := <-op.result
	if res.err != nil {
		if e.metrics != nil {
			observe("rejected")
		}
		return nil, nil, res.err
	}
	select {
	case resp := <-res.replyCh:
		switch resp.Outcome {
		case tracker.OutcomeResult:
			if e.metrics != nil {
				observe("result")
			}
			return resp.Result, nil, nil
		case tracker.OutcomeRPCError:
			if e.metrics != nil {
				observe("rpc_error")
			}
			return nil, resp.RPCErr, nil
		case tracker.OutcomeTimeout:
			if e.metrics != nil {
				observe("timeout")
			}
			return nil, nil, session.ErrTimeout
		default:
			if e.metrics != nil {
				observe("connection_lost")
			}
			return nil, nil, session.ErrConnectionLost
		}
	case <-ctx.Done():
		if e.metrics != nil {
			observe("cancelled")
		}
		return nil, nil, ctx.Err()
	}
}

// SendNotification admits and transmits a one-way message; no response is
// tracked.
func (e *Engine) SendNotification(method string, params any) error {
	op := &callerOp{kind: opNotification, method: method, params: params, result: make(chan opResult, 1)}
	if err := e.submit(op); err != nil {
		return err
	}
	return (<-op.result).err
}

// Subscribe sends a subscribe control message for channel. Per §9's Open
// Question resolution, it does not block on the server's acknowledgement —
// only on admission and transmission.
func (e *Engine) Subscribe(channel string) error {
	op := &callerOp{kind: opSubscribe, channel: channel, result: make(chan opResult, 1)}
	if err := e.submit(op); err != nil {
		return err
	}
	return (<-op.result).err
}

// Unsubscribe sends an unsubscribe control message for channel.
func (e *Engine) Unsubscribe(channel string) error {
	op := &callerOp{kind: opUnsubscribe, channel: channel, result: make(chan opResult, 1)}
	if err := e.submit(op); err != nil {
		return err
	}
	return (<-op.result).err
}

// Close initiates graceful shutdown: sends a Close frame, drains pending
// requests, and terminates. A second call is a no-op (§8 idempotence law).
func (e *Engine) Close() error {
	e.closeOnce.Do(func() { close(e.closeCh) })
	<-e.doneCh
	return nil
}
