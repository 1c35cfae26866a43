// Package config loads and validates client configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all settings of the misp command.
type Config struct {
	// Server settings.
	RootURL string // e.g. "https://misp.example.org"
	AuthKey string // Automation key of the calling user.

	// Transport settings.
	Timeout            time.Duration
	UserAgent          string
	InsecureSkipVerify bool // Accept self-signed certificates.
	RateLimit          float64 // Requests per second; 0 disables pacing.
	RateBurst          int

	// Local indicator store.
	StorePath string
	SyncLimit int // Maximum events per sync; 0 means no limit.

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
// Every malformed variable is reported, not only the first.
func Load() (Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	timeout, err := envDuration("MISP_TIMEOUT", 30*time.Second)
	collect(err)
	insecure, err := envBool("MISP_INSECURE_SKIP_VERIFY", false)
	collect(err)
	otelInsecure, err := envBool("OTEL_EXPORTER_OTLP_INSECURE", false)
	collect(err)
	syncLimit, err := envInt("MISP_SYNC_LIMIT", 0)
	collect(err)
	rateLimit, err := envFloat("MISP_RATE_LIMIT", 0)
	collect(err)
	rateBurst, err := envInt("MISP_RATE_BURST", 5)
	collect(err)

	cfg := Config{
		RootURL:            envStr("MISP_ROOT_URL", ""),
		AuthKey:            envStr("MISP_AUTH_TOKEN", ""),
		Timeout:            timeout,
		UserAgent:          envStr("MISP_USER_AGENT", "misp-go/0.1.0"),
		InsecureSkipVerify: insecure,
		RateLimit:          rateLimit,
		RateBurst:          rateBurst,
		StorePath:          envStr("MISP_STORE_PATH", "misp.db"),
		SyncLimit:          syncLimit,
		OTELEndpoint:       envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:       otelInsecure,
		ServiceName:        envStr("OTEL_SERVICE_NAME", "misp"),
		LogLevel:           envStr("MISP_LOG_LEVEL", "info"),
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.RootURL == "" {
		return fmt.Errorf("config: MISP_ROOT_URL is required")
	}
	u, err := url.Parse(c.RootURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: MISP_ROOT_URL=%q is not an http(s) URL", c.RootURL)
	}
	if c.AuthKey == "" {
		return fmt.Errorf("config: MISP_AUTH_TOKEN is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: MISP_TIMEOUT must be positive")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("config: MISP_RATE_LIMIT must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("config: MISP_RATE_BURST must be at least 1")
	}
	if c.SyncLimit < 0 {
		return fmt.Errorf("config: MISP_SYNC_LIMIT must not be negative")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: MISP_LOG_LEVEL: %w", err)
	}
	return nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("%q is not a valid log level", s)
	}
	return level, nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid number", key, v)
	}
	return f, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
