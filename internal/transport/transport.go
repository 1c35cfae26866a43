// Package transport is the HTTP collaborator of the MISP client: it joins
// endpoint paths onto the server root, authenticates, and returns raw JSON
// response bodies.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashita-ai/misp/internal/ratelimit"
)

// DefaultUserAgent is sent when Config.UserAgent is empty.
const DefaultUserAgent = "misp-go/0.1.0"

var (
	tracer    = otel.Tracer("misp/http")
	httpMeter = otel.GetMeterProvider().Meter("misp/http")

	// Created once on the global provider, which forwards to the SDK
	// provider installed later by telemetry.Init.
	requestCount, _ = httpMeter.Int64Counter("misp.client.request_count",
		otelmetric.WithDescription("MISP API requests by method, path and status"))
	requestDuration, _ = httpMeter.Float64Histogram("misp.client.duration",
		otelmetric.WithUnit("ms"),
		otelmetric.WithDescription("MISP API request latency"))
)

// Config holds the settings needed to construct an HTTP transport.
type Config struct {
	// RootURL is the server root (e.g. "https://misp.example.org").
	RootURL string

	// AuthKey is the user's automation key, sent verbatim in the
	// Authorization header.
	AuthKey string

	// UserAgent defaults to DefaultUserAgent.
	UserAgent string

	// HTTPClient is an optional custom HTTP client. If nil, a client with
	// Timeout and InsecureSkipVerify applied is built.
	HTTPClient *http.Client

	// Timeout applies to individual requests. Defaults to 30 seconds.
	Timeout time.Duration

	// InsecureSkipVerify disables TLS certificate verification, for
	// instances with self-signed certificates.
	InsecureSkipVerify bool

	// RateLimit caps requests per second; zero disables pacing.
	// RateBurst is how many requests may go out back to back.
	RateLimit float64
	RateBurst int

	Logger *slog.Logger
}

// HTTP fetches JSON documents from a MISP server. Safe for concurrent use.
type HTTP struct {
	rootURL   string
	authKey   string
	userAgent string
	client    *http.Client
	limiter   ratelimit.Limiter
	logger    *slog.Logger
}

// New creates an HTTP transport from cfg.
// Returns an error if RootURL or AuthKey is empty.
func New(cfg Config) (*HTTP, error) {
	if cfg.RootURL == "" {
		return nil, fmt.Errorf("transport: RootURL is required")
	}
	if cfg.AuthKey == "" {
		return nil, fmt.Errorf("transport: AuthKey is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
		if cfg.InsecureSkipVerify {
			tr := http.DefaultTransport.(*http.Transport).Clone()
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed instances
			httpClient.Transport = tr
		}
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTP{
		rootURL:   strings.TrimRight(cfg.RootURL, "/"),
		authKey:   cfg.AuthKey,
		userAgent: ua,
		client:    httpClient,
		limiter:   ratelimit.New(cfg.RateLimit, cfg.RateBurst),
		logger:    logger,
	}, nil
}

// Fetch issues method on path (relative to the root URL, no leading slash
// required) with body encoded as JSON when non-nil, and returns the raw
// response body. Status codes >= 400 are reported as *Error.
func (h *HTTP) Fetch(ctx context.Context, method, path string, body any) ([]byte, error) {
	path = strings.TrimLeft(path, "/")

	ctx, span := tracer.Start(ctx, method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	start := time.Now()
	data, status, err := h.do(ctx, method, path, body)
	duration := time.Since(start)

	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
		attribute.Int("http.response.status_code", status),
	}
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	requestCount.Add(ctx, 1, otelmetric.WithAttributes(attrs...))
	requestDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(attrs...))

	h.logger.DebugContext(ctx, "misp request",
		"method", method,
		"path", path,
		"status", status,
		"duration_ms", duration.Milliseconds(),
	)
	return data, err
}

func (h *HTTP) do(ctx context.Context, method, path string, body any) ([]byte, int, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, 0, &Error{Method: method, Path: path, Message: "rate limit", Err: err}
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, 0, &Error{Method: method, Path: path, Message: "marshal request body", Err: err}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.rootURL+"/"+path, reader)
	if err != nil {
		return nil, 0, &Error{Method: method, Path: path, Message: "create request", Err: err}
	}
	req.Header.Set("Authorization", h.authKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", h.userAgent)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, 0, &Error{Method: method, Path: path, Message: "send request", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &Error{Method: method, Path: path, StatusCode: resp.StatusCode, Message: "read response body", Err: err}
	}

	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, parseErrorResponse(method, path, resp.StatusCode, data)
	}
	return data, resp.StatusCode, nil
}

// errorBody is the shape MISP uses for failed requests.
type errorBody struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	URL     string `json:"url"`
}

func parseErrorResponse(method, path string, statusCode int, body []byte) *Error {
	e := &Error{Method: method, Path: path, StatusCode: statusCode}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && (eb.Message != "" || eb.Name != "") {
		e.Message = eb.Message
		if e.Message == "" {
			e.Message = eb.Name
		}
	} else {
		e.Message = http.StatusText(statusCode)
		if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 256 {
			e.Message += ": " + text
		}
	}
	return e
}
