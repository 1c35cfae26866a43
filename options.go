package misp

import (
	"log/slog"
	"net/http"
	"time"
)

// Option configures a Client.
type Option func(*resolvedOptions)

// resolvedOptions holds all settings after applying defaults.
// Unexported, callers use the With* functions.
type resolvedOptions struct {
	logger             *slog.Logger
	fetcher            Fetcher
	httpClient         *http.Client
	userAgent          string
	timeout            time.Duration
	insecureSkipVerify bool
	rateLimit          float64
	rateBurst          int
}

func resolveOptions(opts []Option) resolvedOptions {
	o := resolvedOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// WithLogger sets the structured logger for the Client.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithFetcher replaces the built-in HTTP transport. The HTTP-specific
// options below are ignored when a Fetcher is supplied.
func WithFetcher(f Fetcher) Option {
	return func(o *resolvedOptions) { o.fetcher = f }
}

// WithHTTPClient sets the HTTP client used by the built-in transport.
func WithHTTPClient(c *http.Client) Option {
	return func(o *resolvedOptions) { o.httpClient = c }
}

// WithUserAgent overrides the User-Agent header (default "misp-go/0.1.0").
func WithUserAgent(ua string) Option {
	return func(o *resolvedOptions) { o.userAgent = ua }
}

// WithTimeout sets the per-request timeout of the built-in transport.
// Defaults to 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(o *resolvedOptions) { o.timeout = d }
}

// WithInsecureSkipVerify disables TLS certificate verification. Only for
// instances with self-signed certificates.
func WithInsecureSkipVerify(skip bool) Option {
	return func(o *resolvedOptions) { o.insecureSkipVerify = skip }
}

// WithRateLimit paces the built-in transport to perSecond requests per
// second, allowing burst back-to-back requests. A request waiting for its
// turn gives up when its context ends.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *resolvedOptions) {
		o.rateLimit = perSecond
		o.rateBurst = burst
	}
}
