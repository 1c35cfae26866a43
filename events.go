package misp

// EventsAPI creates event request handles. Obtain one with Client.Events.
type EventsAPI struct {
	client *Client
}

// Get returns an unresolved handle for the event addressed by id. No
// request is made until a value is demanded from the handle.
func (a EventsAPI) Get(id EventIdentifier) *EventRequest {
	return newEventRequest(a.client, id)
}

// List returns an unresolved listing handle. Without filters it lists
// events; with any filter it runs a search.
func (a EventsAPI) List() *EventListRequest {
	return newEventListRequest(a.client, Query{})
}

// Search returns an unresolved listing handle for q. Later changes to q
// do not affect the handle. A nil q behaves like List.
func (a EventsAPI) Search(q *Query) *EventListRequest {
	return newEventListRequest(a.client, q.clone())
}
