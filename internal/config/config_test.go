package config

import "testing"

func validConfig() *Config {
	return &Config{
		URL:           "wss://example.test/ws",
		RetryCount:    5,
		RateCapacity:  20,
		RateQueueMax:  100,
		HeartbeatKind: "ping_pong",
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

func TestValidateRequiresURL(t *testing.T) {
	c := validConfig()
	c.URL = ""
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for missing URL")
	}
}

func TestValidateRejectsNegativeRetryCount(t *testing.T) {
	c := validConfig()
	c.RetryCount = -1
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for negative retry count")
	}
}

func TestValidateRejectsUnknownHeartbeatKind(t *testing.T) {
	c := validConfig()
	c.HeartbeatKind = "bogus"
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for unknown heartbeat kind")
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	c := validConfig()
	c.LogLevel = "verbose"
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
