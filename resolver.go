package misp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ashita-ai/misp/internal/lazy"
)

// resolver describes one fetch: where to send it and how to turn the
// response body into T. Both request handles are built on it.
type resolver[T any] struct {
	method string
	path   string
	body   any
	unwrap func(path string, data []byte) (T, error)
}

// bind returns a fetch function issuing r through c's Fetcher.
func (r resolver[T]) bind(c *Client) lazy.FetchFunc[T] {
	return func(ctx context.Context) (T, error) {
		var zero T
		c.logger.DebugContext(ctx, "misp: fetch", "method", r.method, "path", r.path)

		data, err := c.fetcher.Fetch(ctx, r.method, r.path, r.body)
		if err != nil {
			var te *TransportError
			if errors.As(err, &te) {
				return zero, err
			}
			return zero, &TransportError{Method: r.method, Path: r.path, Message: "fetch", Err: err}
		}

		v, err := r.unwrap(r.path, data)
		if err != nil {
			return zero, err
		}
		return v, nil
	}
}

// parseObject checks that data is a JSON object and splits it by key.
func parseObject(path string, data []byte) (map[string]json.RawMessage, error) {
	if !json.Valid(data) {
		return nil, &UnexpectedResponseError{Path: path, Reason: "response is not JSON"}
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return nil, &UnexpectedResponseError{Path: path, Reason: "response is not a JSON object", Err: err}
	}
	return obj, nil
}

// field returns obj[key], failing when the key is absent or null.
func field(path string, obj map[string]json.RawMessage, key string) (json.RawMessage, error) {
	raw, ok := obj[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, &UnexpectedResponseError{Path: path, Reason: fmt.Sprintf("missing %q envelope", key)}
	}
	return raw, nil
}

// unwrapBare decodes a response that carries the record without an
// envelope.
func unwrapBare[T any](path string, data []byte) (T, error) {
	var v T
	if _, err := parseObject(path, data); err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, err
	}
	return v, nil
}

// unwrapEntity decodes a response of the form {"<key>": {...}}.
func unwrapEntity[T any](key string) func(path string, data []byte) (T, error) {
	return func(path string, data []byte) (T, error) {
		var v T
		obj, err := parseObject(path, data)
		if err != nil {
			return v, err
		}
		raw, err := field(path, obj, key)
		if err != nil {
			return v, err
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return v, err
		}
		return v, nil
	}
}

// unwrapList decodes a response of the form
// {"response": [{"<key>": {...}}, ...]}.
func unwrapList[T any](key string) func(path string, data []byte) ([]T, error) {
	entity := unwrapEntity[T](key)
	return func(path string, data []byte) ([]T, error) {
		obj, err := parseObject(path, data)
		if err != nil {
			return nil, err
		}
		raw, err := field(path, obj, "response")
		if err != nil {
			return nil, err
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, &UnexpectedResponseError{Path: path, Reason: `"response" is not a list`, Err: err}
		}

		out := make([]T, 0, len(items))
		for i, item := range items {
			v, err := entity(path, item)
			if err != nil {
				return nil, fmt.Errorf("misp: %s item %d: %w", path, i, err)
			}
			out = append(out, v)
		}
		return out, nil
	}
}
