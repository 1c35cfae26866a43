package misp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/ashita-ai/misp/internal/lazy"
)

// EventListRequest is a lazy handle on a list of events. Filters may be
// applied until the first Retrieve starts a fetch; from then on the query
// is frozen. Filter calls on a frozen handle are ignored and logged at
// WARN; create a new handle to query again.
//
// A failed retrieval unfreezes the handle, so filters can still be
// adjusted before retrying.
type EventListRequest struct {
	client *Client

	mu    sync.Mutex
	query Query
	value *lazy.Value[[]FullEvent] // set by Retrieve; reset when its fetch fails
}

// errStaleValue is returned by a value that was replaced before its fetch
// started. Retrieve retries with the current one.
var errStaleValue = errors.New("misp: stale event list value")

func newEventListRequest(c *Client, q Query) *EventListRequest {
	return &EventListRequest{client: c, query: q}
}

// Retrieve returns the events, fetching them on first use. Without filters
// it lists events; with any filter it posts the query to
// events/restSearch.
func (l *EventListRequest) Retrieve(ctx context.Context) ([]FullEvent, error) {
	for {
		l.mu.Lock()
		if l.value == nil {
			l.value = l.newValue()
		}
		v := l.value
		l.mu.Unlock()

		events, err := v.Get(ctx)
		if errors.Is(err, errStaleValue) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return append([]FullEvent(nil), events...), nil
	}
}

// newValue binds the current query into a lazy value. The value fetches
// only while it is the handle's current value, and a failed fetch detaches
// it so filters apply again. Called with l.mu held.
func (l *EventListRequest) newValue() *lazy.Value[[]FullEvent] {
	fetch := l.resolver().bind(l.client)
	var v *lazy.Value[[]FullEvent]
	v = lazy.New(func(ctx context.Context) ([]FullEvent, error) {
		l.mu.Lock()
		current := l.value == v
		l.mu.Unlock()
		if !current {
			return nil, errStaleValue
		}

		events, err := fetch(ctx)
		if err != nil {
			l.mu.Lock()
			if l.value == v {
				l.value = nil
			}
			l.mu.Unlock()
		}
		return events, err
	})
	return v
}

func (l *EventListRequest) resolver() resolver[[]FullEvent] {
	unwrap := unwrapList[FullEvent]("Event")
	if l.query.IsEmpty() {
		return resolver[[]FullEvent]{method: http.MethodGet, path: "events", unwrap: unwrap}
	}
	return resolver[[]FullEvent]{
		method: http.MethodPost,
		path:   "events/restSearch",
		body:   l.query.Envelope(),
		unwrap: unwrap,
	}
}

// Frozen reports whether a fetch is running or has succeeded, after which
// filters have no effect.
func (l *EventListRequest) Frozen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value != nil
}

// Query returns a copy of the filters currently applied.
func (l *EventListRequest) Query() *Query {
	l.mu.Lock()
	defer l.mu.Unlock()
	q := l.query.clone()
	return &q
}

// mutate applies fn to the query unless the handle is frozen.
func (l *EventListRequest) mutate(filter string, fn func(q *Query)) *EventListRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.value != nil {
		l.client.logger.Warn("misp: filter ignored on frozen event list",
			slog.String("filter", filter))
		return l
	}
	fn(&l.query)
	return l
}

// FromOrganization keeps events currently owned by org.
func (l *EventListRequest) FromOrganization(org OrganizationIdentifier) *EventListRequest {
	return l.mutate("org", func(q *Query) { q.FromOrganization(org) })
}

// ContainingInfo keeps events whose info contains text.
func (l *EventListRequest) ContainingInfo(text string) *EventListRequest {
	return l.mutate("eventinfo", func(q *Query) { q.ContainingInfo(text) })
}

// WithExactInfo keeps events whose info is exactly text.
func (l *EventListRequest) WithExactInfo(text string) *EventListRequest {
	return l.mutate("eventinfo", func(q *Query) { q.WithExactInfo(text) })
}

// After keeps events dated on or after d.
func (l *EventListRequest) After(d Date) *EventListRequest {
	return l.mutate("from", func(q *Query) { q.After(d) })
}

// Before keeps events dated on or before d.
func (l *EventListRequest) Before(d Date) *EventListRequest {
	return l.mutate("to", func(q *Query) { q.Before(d) })
}

// Limit caps the number of returned events.
func (l *EventListRequest) Limit(n uint64) *EventListRequest {
	return l.mutate("limit", func(q *Query) { q.Limit(n) })
}
