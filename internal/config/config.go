// Package config loads checkout configuration from the environment
// with sensible defaults.
package config

import (
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Config holds the tunables for the checkout workflow and the demo
// gateway. Thresholds the workflow depends on (poll failures, settle
// delay) are explicit here rather than inline constants.
type Config struct {
	GatewayAddr string
	BaseURL     string
	CSRFToken   string

	// PollInterval is the fixed verify cadence while awaiting payment.
	PollInterval time.Duration
	// MaxPollFailures is how many consecutive failed verify ticks are
	// absorbed before the UI downgrades to an explicit error state.
	MaxPollFailures int
	// SettleDelay bounds the wait for a redirect target after "paid".
	SettleDelay time.Duration
	// ReloadDelay is the pause before the post-expiry page reload.
	ReloadDelay time.Duration

	// InvoiceTTL is the payment window the gateway grants per invoice.
	InvoiceTTL time.Duration
	// Stock is the number of concurrent inventory holds the gateway
	// reservation pool allows.
	Stock int

	// DemoMode drives one scripted checkout from the console.
	DemoMode bool
}

// Load reads configuration from environment with defaults. Invalid
// values fall back to the default and are reported on log. A nil
// logger falls back to a nop logger.
// Precedence: explicit env var > .env file (if loaded by caller) > default.
func Load(log *zap.Logger) Config {
	if log == nil {
		log = zap.NewNop()
	}
	return Config{
		GatewayAddr:     getEnv("GATEWAY_ADDR", ":8080"),
		BaseURL:         getEnv("CHECKOUT_BASE_URL", "http://localhost:8080"),
		CSRFToken:       getEnv("CHECKOUT_CSRF_TOKEN", ""),
		PollInterval:    getDuration(log, "POLL_INTERVAL", 2*time.Second),
		MaxPollFailures: getInt(log, "MAX_POLL_FAILURES", 3),
		SettleDelay:     getDuration(log, "SETTLE_DELAY", 2*time.Second),
		ReloadDelay:     getDuration(log, "RELOAD_DELAY", 3*time.Second),
		InvoiceTTL:      getDuration(log, "INVOICE_TTL", 2*time.Minute),
		Stock:           getInt(log, "STOCK", 10),
		DemoMode:        getBool(log, "DEMO_MODE", false),
	}
}

func getBool(log *zap.Logger, key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Warn("invalid boolean, using default", zap.String("key", key), zap.String("value", v))
			return def
		}
		return b
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(log *zap.Logger, key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Warn("invalid integer, using default", zap.String("key", key), zap.String("value", v))
			return def
		}
		return n
	}
	return def
}

func getDuration(log *zap.Logger, key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Warn("invalid duration, using default", zap.String("key", key), zap.String("value", v))
			return def
		}
		return d
	}
	return def
}
