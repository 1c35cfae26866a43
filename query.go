package misp

import (
	"github.com/ashita-ai/misp/codec"
	"github.com/ashita-ai/misp/model"
)

// SearchQuery is the filter payload of events/restSearch. Unset filters are
// omitted from the JSON.
type SearchQuery struct {
	ReturnFormat string                       `json:"returnFormat"`
	Org          model.OrganizationIdentifier `json:"org,omitzero"`
	From         codec.Date                   `json:"from,omitzero"`
	To           codec.Date                   `json:"to,omitzero"`
	EventInfo    string                       `json:"eventinfo,omitempty"`
	Limit        *uint64                      `json:"limit,omitempty"`
}

type searchEnvelope struct {
	Request SearchQuery `json:"request"`
}

// Query accumulates search filters. The payload is allocated by the first
// filter; applying a filter again replaces its previous value. The zero
// Query has no filters.
type Query struct {
	req *SearchQuery
}

// NewQuery returns an empty Query.
func NewQuery() *Query { return &Query{} }

func (q *Query) request() *SearchQuery {
	if q.req == nil {
		q.req = &SearchQuery{ReturnFormat: "json"}
	}
	return q.req
}

// FromOrganization keeps events currently owned by org.
func (q *Query) FromOrganization(org OrganizationIdentifier) *Query {
	q.request().Org = org
	return q
}

// ContainingInfo keeps events whose info contains text.
func (q *Query) ContainingInfo(text string) *Query {
	q.request().EventInfo = "%" + text + "%"
	return q
}

// WithExactInfo keeps events whose info is exactly text. It shares the
// info filter with ContainingInfo; the last call wins. An empty text
// clears the info filter.
func (q *Query) WithExactInfo(text string) *Query {
	if text == "" {
		if q.req != nil {
			q.req.EventInfo = ""
			if q.req.unfiltered() {
				q.req = nil
			}
		}
		return q
	}
	q.request().EventInfo = text
	return q
}

// After keeps events dated on or after d.
func (q *Query) After(d Date) *Query {
	q.request().From = d
	return q
}

// Before keeps events dated on or before d.
func (q *Query) Before(d Date) *Query {
	q.request().To = d
	return q
}

// Limit caps the number of returned events.
func (q *Query) Limit(n uint64) *Query {
	q.request().Limit = &n
	return q
}

// IsEmpty reports whether no filter was applied.
func (q *Query) IsEmpty() bool { return q.req == nil }

// Request returns a copy of the filter payload, and false if no filter was
// applied.
func (q *Query) Request() (SearchQuery, bool) {
	if q.req == nil {
		return SearchQuery{}, false
	}
	return q.req.copy(), true
}

// Envelope returns the request body for events/restSearch, or nil when no
// filter was applied.
func (q *Query) Envelope() any {
	if q.req == nil {
		return nil
	}
	return searchEnvelope{Request: q.req.copy()}
}

func (q *Query) clone() Query {
	if q == nil || q.req == nil {
		return Query{}
	}
	r := q.req.copy()
	return Query{req: &r}
}

// unfiltered reports whether no filter field is set.
func (s *SearchQuery) unfiltered() bool {
	return s.Org.IsZero() && s.From.IsZero() && s.To.IsZero() && s.EventInfo == "" && s.Limit == nil
}

func (s *SearchQuery) copy() SearchQuery {
	c := *s
	if s.Limit != nil {
		n := *s.Limit
		c.Limit = &n
	}
	return c
}
