// Package misp is a typed client for the MISP threat-intelligence sharing
// platform.
//
// Entities are addressed by local id or UUID and fetched lazily: a request
// handle performs no I/O until a value is demanded, fetches the remote
// record at most once, and answers every later query from that fetch.
//
//	client, err := misp.New("https://misp.example.org", key)
//	if err != nil { ... }
//
//	event := client.Events().Get(misp.FromLocalID(misp.EventID(1188)))
//	id, err := event.UUID(ctx) // one fetch
//	full, err := event.Retrieve(ctx) // served from cache
//
//	events, err := client.Events().List().
//	    ContainingInfo("COVID").
//	    After(misp.NewDate(2020, time.March, 1)).
//	    Retrieve(ctx)
//
// All handles and the Client are safe for concurrent use.
package misp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ashita-ai/misp/internal/transport"
)

// Client is bound to one MISP server. It holds no per-request state;
// caching lives in the request handles it creates.
type Client struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// New creates a Client for the server at rootURL authenticating with
// authKey (the user's automation key).
// Returns an error if rootURL or authKey is empty and no Fetcher is supplied.
func New(rootURL, authKey string, opts ...Option) (*Client, error) {
	o := resolveOptions(opts)

	f := o.fetcher
	if f == nil {
		t, err := transport.New(transport.Config{
			RootURL:            rootURL,
			AuthKey:            authKey,
			UserAgent:          o.userAgent,
			HTTPClient:         o.httpClient,
			Timeout:            o.timeout,
			InsecureSkipVerify: o.insecureSkipVerify,
			RateLimit:          o.rateLimit,
			RateBurst:          o.rateBurst,
			Logger:             o.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("misp: %w", err)
		}
		f = t
	}

	return &Client{fetcher: f, logger: o.logger}, nil
}

// NewWithFetcher creates a Client that sends every request through f.
func NewWithFetcher(f Fetcher, opts ...Option) *Client {
	o := resolveOptions(opts)
	return &Client{fetcher: f, logger: o.logger}
}

// ServerInfo fetches the server version and the caller's permissions.
// It is not cached.
func (c *Client) ServerInfo(ctx context.Context) (ServerInfo, error) {
	r := resolver[ServerInfo]{
		method: http.MethodGet,
		path:   "servers/getVersion.json",
		unwrap: unwrapBare[ServerInfo],
	}
	return r.bind(c)(ctx)
}

// Events returns the entry point for event requests.
func (c *Client) Events() EventsAPI {
	return EventsAPI{client: c}
}
