package misp

import "context"

// Fetcher is the one capability the client needs from its transport: issue
// method on an endpoint path relative to the server root, with body encoded
// as JSON when non-nil, and return the raw response body.
//
// The default Fetcher is the HTTP transport built by New. Tests and callers
// with their own HTTP stack supply one via WithFetcher.
type Fetcher interface {
	Fetch(ctx context.Context, method, path string, body any) ([]byte, error)
}
