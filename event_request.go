package misp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/ashita-ai/misp/internal/lazy"
)

// EventRequest is a lazy handle on one event. It starts unresolved, holding
// only the identifier, and becomes resolved after the first successful
// fetch; the resolved record is never refetched.
type EventRequest struct {
	id    EventIdentifier
	value *lazy.Value[FullEvent]
}

func newEventRequest(c *Client, id EventIdentifier) *EventRequest {
	r := &EventRequest{id: id}
	if id.IsZero() {
		r.value = lazy.New(func(context.Context) (FullEvent, error) {
			return FullEvent{}, fmt.Errorf("%w: empty event identifier", ErrAddressResolution)
		})
		return r
	}
	res := resolver[FullEvent]{
		method: http.MethodGet,
		path:   "events/view/" + id.WireForm(),
		unwrap: unwrapEntity[FullEvent]("Event"),
	}
	r.value = lazy.New(res.bind(c))
	return r
}

// Identifier returns the identifier the handle was created with.
func (r *EventRequest) Identifier() EventIdentifier { return r.id }

// Resolved reports whether the event has been fetched.
func (r *EventRequest) Resolved() bool { return r.value.IsResolved() }

// Cached returns the fetched event without any I/O, and false if the
// handle is unresolved.
func (r *EventRequest) Cached() (FullEvent, bool) { return r.value.Peek() }

// Retrieve returns the full event, fetching it on first use.
func (r *EventRequest) Retrieve(ctx context.Context) (FullEvent, error) {
	return r.value.Get(ctx)
}

// ID returns the event's local id. A handle created from a local id
// answers without I/O.
func (r *EventRequest) ID(ctx context.Context) (EventID, error) {
	if id, ok := r.id.Local(); ok {
		return id, nil
	}
	e, err := r.Retrieve(ctx)
	if err != nil {
		return 0, err
	}
	return e.ID(), nil
}

// UUID returns the event's UUID. A handle created from a UUID answers
// without I/O.
func (r *EventRequest) UUID(ctx context.Context) (uuid.UUID, error) {
	if u, ok := r.id.Global(); ok {
		return u, nil
	}
	e, err := r.Retrieve(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	return e.UUID(), nil
}
