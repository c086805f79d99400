// Command example is a thin reference CLI over pkg/wsclient: it loads
// connection defaults from the environment (internal/config), opens one
// supervised session, optionally subscribes to a channel, issues one
// `public/test` request, and shuts down cleanly on SIGINT/SIGTERM.
//
// Mirrors the teacher's ws/main.go: flag.Bool("debug", ...), a blank
// automaxprocs import with a GOMAXPROCS log line, LoadConfig + LogConfig,
// then block on an interrupt signal and shut down.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"

	"github.com/deribit-ws/wsengine/internal/adapter/jsonrpc"
	"github.com/deribit-ws/wsengine/internal/config"
	"github.com/deribit-ws/wsengine/internal/logging"
	"github.com/deribit-ws/wsengine/internal/metrics"
	"github.com/deribit-ws/wsengine/internal/session"
	"github.com/deribit-ws/wsengine/pkg/wsclient"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging, overriding WSENGINE_LOG_LEVEL")
	channel := flag.String("channel", "", "channel to subscribe after connecting (optional)")
	flag.Parse()

	cfg, err := config.Load(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wsengine: load config: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if *debug {
		level = zerolog.DebugLevel
	}
	logger := logging.New(logging.Config{
		Level:     level,
		Format:    logging.Format(cfg.LogFormat),
		Component: "wsengine-example",
	})

	logger.Info().Int("gomaxprocs", runtime.GOMAXPROCS(0)).Msg("runtime tuned by automaxprocs")
	cfg.LogConfig(logger)

	heartbeatKind := session.HeartbeatNone
	switch cfg.HeartbeatKind {
	case "ping_pong":
		heartbeatKind = session.HeartbeatPingPong
	case "platform_test_request":
		heartbeatKind = session.HeartbeatPlatformTestRequest
	}

	sessionCfg := session.SessionConfig{
		URL:            cfg.URL,
		ConnectTimeout: cfg.ConnectTimeout,
		RetryCount:     cfg.RetryCount,
		RetryDelayBase: cfg.RetryDelayBase,
		Heartbeat: session.HeartbeatConfig{
			Kind:     heartbeatKind,
			Interval: cfg.HeartbeatInterval,
		},
		RequestTimeout: cfg.RequestTimeout,
		RateLimit: session.RateLimitConfig{
			Capacity:       cfg.RateCapacity,
			RefillRate:     cfg.RateRefill,
			RefillInterval: cfg.RateRefillInterval,
			QueueMax:       cfg.RateQueueMax,
		},
		ReconnectOnError: cfg.ReconnectOnError,
	}

	// A private registry, not prometheus.DefaultRegisterer: running this
	// example more than once in-process (as a future test harness might)
	// must never collide on metric names.
	mc := metrics.New(prometheus.NewRegistry())

	adapter := jsonrpc.New(func(ch string, data json.RawMessage) {
		logger.Info().Str("channel", ch).RawJSON("data", data).Msg("notification received")
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := wsclient.Connect(ctx, sessionCfg, adapter, logger, mc)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect")
	}
	logger.Info().Str("session_id", sess.SessionID()).Msg("session ready")

	if *channel != "" {
		if err := sess.Subscribe(*channel); err != nil {
			logger.Error().Err(err).Str("channel", *channel).Msg("subscribe failed")
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	result, rpcErr, err := sess.SendRequest(reqCtx, "public/test", nil, 5*time.Second)
	cancel()
	switch {
	case err != nil:
		logger.Error().Err(err).Msg("public/test request failed")
	case rpcErr != nil:
		logger.Error().Int("code", rpcErr.Code).Str("message", rpcErr.Message).Msg("public/test rejected")
	default:
		logger.Info().RawJSON("result", result).Msg("public/test succeeded")
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	if err := sess.Close(); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}
}
