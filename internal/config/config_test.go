package config

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load(nil)

	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("expected default poll interval 2s, got %s", cfg.PollInterval)
	}
	if cfg.MaxPollFailures != 3 {
		t.Fatalf("expected default max poll failures 3, got %d", cfg.MaxPollFailures)
	}
	if cfg.InvoiceTTL != 2*time.Minute {
		t.Fatalf("expected default invoice TTL 2m, got %s", cfg.InvoiceTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "5s")
	t.Setenv("MAX_POLL_FAILURES", "5")
	t.Setenv("CHECKOUT_CSRF_TOKEN", "tok-1")

	cfg := Load(nil)

	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("expected 5s, got %s", cfg.PollInterval)
	}
	if cfg.MaxPollFailures != 5 {
		t.Fatalf("expected 5, got %d", cfg.MaxPollFailures)
	}
	if cfg.CSRFToken != "tok-1" {
		t.Fatalf("expected tok-1, got %q", cfg.CSRFToken)
	}
}

func TestLoadInvalidValuesFallBackAndWarn(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "soon")
	t.Setenv("STOCK", "many")

	core, logs := observer.New(zap.WarnLevel)
	cfg := Load(zap.New(core))

	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("expected fallback 2s, got %s", cfg.PollInterval)
	}
	if cfg.Stock != 10 {
		t.Fatalf("expected fallback 10, got %d", cfg.Stock)
	}
	if n := logs.FilterMessage("invalid duration, using default").Len(); n != 1 {
		t.Fatalf("expected 1 duration warning, got %d", n)
	}
	if n := logs.FilterMessage("invalid integer, using default").Len(); n != 1 {
		t.Fatalf("expected 1 integer warning, got %d", n)
	}
}
