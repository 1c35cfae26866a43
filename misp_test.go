package misp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventUUID = "abcd1234-0000-4000-8000-000000000001"

// call records one Fetch invocation.
type call struct {
	Method string
	Path   string
	Body   any
}

// fakeFetcher answers from canned bodies keyed by "METHOD path" and counts
// every call.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string][]byte
	errs      map[string]error
	calls     []call
	n         atomic.Int32
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{responses: map[string][]byte{}, errs: map[string]error{}}
}

func (f *fakeFetcher) on(method, path, body string) *fakeFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[method+" "+path] = []byte(body)
	delete(f.errs, method+" "+path)
	return f
}

func (f *fakeFetcher) fail(method, path string, err error) *fakeFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[method+" "+path] = err
	return f
}

func (f *fakeFetcher) Fetch(_ context.Context, method, path string, body any) ([]byte, error) {
	f.n.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{Method: method, Path: path, Body: body})
	if err, ok := f.errs[method+" "+path]; ok {
		return nil, err
	}
	data, ok := f.responses[method+" "+path]
	if !ok {
		return nil, &TransportError{Method: method, Path: path, StatusCode: http.StatusNotFound, Message: "Not Found"}
	}
	return data, nil
}

func (f *fakeFetcher) count() int { return int(f.n.Load()) }

func (f *fakeFetcher) last() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func eventBody(id, u, info string) string {
	return `{"Event":` + eventJSON(id, u, info) + `}`
}

func eventJSON(id, u, info string) string {
	return `{"id":"` + id + `","uuid":"` + u + `","info":"` + info + `","date":"2020-03-15",` +
		`"threat_level_id":"2","analysis":"2","distribution":"3","timestamp":"1584288000",` +
		`"Orgc":{"id":"3","name":"CIRCL"},"Attribute":[],"Object":[]}`
}

func newTestClient(f Fetcher) *Client {
	return NewWithFetcher(f, WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
}

// ---------------------------------------------------------------------------
// EventRequest
// ---------------------------------------------------------------------------

func TestEventRequest_LocalIDFetchesOnceForUUID(t *testing.T) {
	f := newFakeFetcher().on(http.MethodGet, "events/view/1188", eventBody("1188", eventUUID, "covid"))
	c := newTestClient(f)

	handle := c.Events().Get(FromLocalID(EventID(1188)))
	assert.False(t, handle.Resolved())

	u, err := handle.UUID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, eventUUID, u.String())

	u, err = handle.UUID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, eventUUID, u.String())
	assert.Equal(t, 1, f.count())

	full, err := handle.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "covid", full.Info())
	assert.Equal(t, 1, f.count())
	assert.True(t, handle.Resolved())

	id, err := handle.ID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EventID(1188), id)
	assert.Equal(t, 1, f.count())
}

func TestEventRequest_GlobalIDAnswersUUIDWithoutFetch(t *testing.T) {
	f := newFakeFetcher()
	c := newTestClient(f)

	u := uuid.MustParse(eventUUID)
	handle := c.Events().Get(FromGlobalID[EventID](u))

	got, err := handle.UUID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, u, got)
	assert.Zero(t, f.count())

	_, ok := handle.Cached()
	assert.False(t, ok)
}

func TestEventRequest_GlobalIDFetchesForLocalID(t *testing.T) {
	f := newFakeFetcher().on(http.MethodGet, "events/view/"+eventUUID, eventBody("1188", eventUUID, "covid"))
	c := newTestClient(f)

	handle := c.Events().Get(FromGlobalID[EventID](uuid.MustParse(eventUUID)))
	id, err := handle.ID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EventID(1188), id)
	assert.Equal(t, 1, f.count())
	assert.Equal(t, "events/view/"+eventUUID, f.last().Path)
	assert.Nil(t, f.last().Body)
}

func TestEventRequest_FailureAllowsRetry(t *testing.T) {
	boom := errors.New("connection reset")
	f := newFakeFetcher().fail(http.MethodGet, "events/view/7", boom)
	c := newTestClient(f)

	handle := c.Events().Get(FromLocalID(EventID(7)))
	_, err := handle.Retrieve(context.Background())
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te), "foreign errors are reported as transport failures")
	assert.ErrorIs(t, err, boom)
	assert.False(t, handle.Resolved())

	f.on(http.MethodGet, "events/view/7", eventBody("7", eventUUID, "retry"))
	e, err := handle.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "retry", e.Info())
	assert.Equal(t, 2, f.count())
}

func TestEventRequest_NotFound(t *testing.T) {
	c := newTestClient(newFakeFetcher())
	_, err := c.Events().Get(FromLocalID(EventID(404))).Retrieve(context.Background())
	assert.True(t, IsNotFound(err))
	assert.False(t, IsForbidden(err))
}

func TestEventRequest_MalformedRecord(t *testing.T) {
	f := newFakeFetcher().on(http.MethodGet, "events/view/5", `{"Event":{"id":"five","uuid":"`+eventUUID+`"}}`)
	c := newTestClient(f)

	handle := c.Events().Get(FromLocalID(EventID(5)))
	_, err := handle.Retrieve(context.Background())
	require.Error(t, err)
	assert.True(t, IsMalformed(err))

	var mv *MalformedValueError
	require.True(t, errors.As(err, &mv))
	assert.False(t, handle.Resolved())
}

func TestEventRequest_UnexpectedEnvelope(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"error object", `{"name":"Not Found","message":"Invalid event","url":"/events/view/5"}`},
		{"null event", `{"Event":null}`},
		{"array", `[]`},
		{"html", `<html>login</html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFetcher().on(http.MethodGet, "events/view/5", tt.body)
			_, err := newTestClient(f).Events().Get(FromLocalID(EventID(5))).Retrieve(context.Background())
			var ue *UnexpectedResponseError
			require.True(t, errors.As(err, &ue), "got %v", err)
			assert.Equal(t, "events/view/5", ue.Path)
		})
	}
}

func TestEventRequest_EmptyIdentifier(t *testing.T) {
	f := newFakeFetcher()
	_, err := newTestClient(f).Events().Get(EventIdentifier{}).Retrieve(context.Background())
	assert.ErrorIs(t, err, ErrAddressResolution)
	assert.Zero(t, f.count())
}

// blockingFetcher holds every call until release is closed.
type blockingFetcher struct {
	release chan struct{}
	n       atomic.Int32
	body    []byte
}

func (b *blockingFetcher) Fetch(ctx context.Context, _, _ string, _ any) ([]byte, error) {
	b.n.Add(1)
	<-b.release
	return b.body, nil
}

func TestEventRequest_ConcurrentCallersShareOneFetch(t *testing.T) {
	f := &blockingFetcher{release: make(chan struct{}), body: []byte(eventBody("1188", eventUUID, "covid"))}
	handle := newTestClient(f).Events().Get(FromLocalID(EventID(1188)))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := handle.UUID(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, eventUUID, u.String())
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(f.release)
	wg.Wait()

	assert.Equal(t, int32(1), f.n.Load())
}

// ---------------------------------------------------------------------------
// EventListRequest
// ---------------------------------------------------------------------------

func listBody(events ...string) string {
	var buf bytes.Buffer
	buf.WriteString(`{"response":[`)
	for i, e := range events {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"Event":` + e + `}`)
	}
	buf.WriteString(`]}`)
	return buf.String()
}

func TestEventList_NoFiltersUsesPlainListing(t *testing.T) {
	f := newFakeFetcher().on(http.MethodGet, "events", listBody(
		eventJSON("1", "abcd1234-0000-4000-8000-0000000000e1", "one"),
		eventJSON("2", "abcd1234-0000-4000-8000-0000000000e2", "two"),
	))
	c := newTestClient(f)

	events, err := c.Events().List().Retrieve(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "two", events[1].Info())

	got := f.last()
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "events", got.Path)
	assert.Nil(t, got.Body)
}

func TestEventList_ContainingInfoUsesSearch(t *testing.T) {
	f := newFakeFetcher().on(http.MethodPost, "events/restSearch", listBody(
		eventJSON("1188", eventUUID, "CSSE COVID-19 daily report"),
	))
	c := newTestClient(f)

	events, err := c.Events().List().ContainingInfo("COVID").Retrieve(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := f.last()
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "events/restSearch", got.Path)
	raw, err := json.Marshal(got.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"request":{"returnFormat":"json","eventinfo":"%COVID%"}}`, string(raw))
}

func TestEventList_CachedAfterFirstRetrieve(t *testing.T) {
	f := newFakeFetcher().on(http.MethodGet, "events", listBody(eventJSON("1", eventUUID, "one")))
	handle := newTestClient(f).Events().List()

	for range 3 {
		_, err := handle.Retrieve(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.count())
}

func TestEventList_FrozenAfterResolution(t *testing.T) {
	f := newFakeFetcher().on(http.MethodGet, "events", listBody(eventJSON("1", eventUUID, "one")))
	var logs bytes.Buffer
	c := NewWithFetcher(f, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	handle := c.Events().List()
	assert.False(t, handle.Frozen())
	_, err := handle.Retrieve(context.Background())
	require.NoError(t, err)
	assert.True(t, handle.Frozen())

	handle.ContainingInfo("COVID").Limit(3)
	assert.True(t, handle.Query().IsEmpty(), "filters on a frozen handle are ignored")
	assert.Contains(t, logs.String(), "filter ignored")
	assert.Contains(t, logs.String(), "level=WARN")

	events, err := handle.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, 1, f.count())
}

func TestEventList_FiltersAfterFailureApply(t *testing.T) {
	f := newFakeFetcher().fail(http.MethodGet, "events", errors.New("timeout"))
	f.on(http.MethodPost, "events/restSearch", listBody(eventJSON("1", eventUUID, "one")))
	handle := newTestClient(f).Events().List()

	_, err := handle.Retrieve(context.Background())
	require.Error(t, err)
	assert.False(t, handle.Frozen())

	events, err := handle.WithExactInfo("one").Retrieve(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, "events/restSearch", f.last().Path)
}

func TestEventList_FilterDuringFetchIgnored(t *testing.T) {
	f := &blockingFetcher{release: make(chan struct{}), body: []byte(listBody(eventJSON("1", eventUUID, "one")))}
	handle := newTestClient(f).Events().List().Limit(3)

	done := make(chan error, 1)
	go func() {
		_, err := handle.Retrieve(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return f.n.Load() == 1 }, time.Second, time.Millisecond)
	assert.True(t, handle.Frozen(), "a running fetch freezes the handle")

	handle.Limit(5)
	close(f.release)
	require.NoError(t, <-done)

	events, err := handle.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, int32(1), f.n.Load())

	req, ok := handle.Query().Request()
	require.True(t, ok)
	assert.Equal(t, uint64(3), *req.Limit)
}

func TestEventList_AbandonedWaitKeepsHandleFrozen(t *testing.T) {
	f := &blockingFetcher{release: make(chan struct{}), body: []byte(listBody(eventJSON("1", eventUUID, "one")))}
	handle := newTestClient(f).Events().List()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := handle.Retrieve(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	handle.ContainingInfo("COVID")
	assert.True(t, handle.Query().IsEmpty())

	close(f.release)
	events, err := handle.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, int32(1), f.n.Load())
}

func TestEventList_ConcurrentCallersShareOneFetch(t *testing.T) {
	f := &blockingFetcher{release: make(chan struct{}), body: []byte(listBody(eventJSON("1", eventUUID, "one")))}
	handle := newTestClient(f).Events().List().ContainingInfo("one")

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			events, err := handle.Retrieve(context.Background())
			assert.NoError(t, err)
			assert.Len(t, events, 1)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(f.release)
	wg.Wait()

	assert.Equal(t, int32(1), f.n.Load())
}

func TestEventList_SearchFromQuery(t *testing.T) {
	f := newFakeFetcher().on(http.MethodPost, "events/restSearch", listBody())
	c := newTestClient(f)

	q := NewQuery().
		FromOrganization(FromName("CIRCL")).
		After(NewDate(2020, time.March, 1)).
		Before(NewDate(2020, time.March, 31)).
		Limit(10)
	handle := c.Events().Search(q)
	q.ContainingInfo("late change")

	events, err := handle.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)

	raw, err := json.Marshal(f.last().Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"request":{"returnFormat":"json","org":"CIRCL","from":"2020-03-01","to":"2020-03-31","limit":10}}`, string(raw))
}

func TestEventList_UnexpectedShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing response", `{"name":"Forbidden","message":"Authentication failed."}`},
		{"response not a list", `{"response":{"Event":{}}}`},
		{"item without envelope", `{"response":[{"id":"1"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFetcher().on(http.MethodGet, "events", tt.body)
			_, err := newTestClient(f).Events().List().Retrieve(context.Background())
			var ue *UnexpectedResponseError
			assert.True(t, errors.As(err, &ue), "got %v", err)
		})
	}
}

func TestEventList_RetrieveReturnsCopy(t *testing.T) {
	f := newFakeFetcher().on(http.MethodGet, "events", listBody(eventJSON("1", eventUUID, "one")))
	handle := newTestClient(f).Events().List()

	first, err := handle.Retrieve(context.Background())
	require.NoError(t, err)
	first[0] = FullEvent{}

	second, err := handle.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "one", second[0].Info())
}

// ---------------------------------------------------------------------------
// Query
// ---------------------------------------------------------------------------

func TestQuery_LazyAllocation(t *testing.T) {
	q := NewQuery()
	assert.True(t, q.IsEmpty())
	assert.Nil(t, q.Envelope())
	_, ok := q.Request()
	assert.False(t, ok)

	q.Limit(5)
	assert.False(t, q.IsEmpty())
	req, ok := q.Request()
	require.True(t, ok)
	assert.Equal(t, "json", req.ReturnFormat)
	require.NotNil(t, req.Limit)
	assert.Equal(t, uint64(5), *req.Limit)
}

func TestQuery_InfoLastWriterWins(t *testing.T) {
	q := NewQuery().ContainingInfo("COVID")
	req, _ := q.Request()
	assert.Equal(t, "%COVID%", req.EventInfo)

	q.WithExactInfo("COVID")
	req, _ = q.Request()
	assert.Equal(t, "COVID", req.EventInfo)

	q.ContainingInfo("flu")
	req, _ = q.Request()
	assert.Equal(t, "%flu%", req.EventInfo)
}

func TestQuery_EmptyExactInfoClearsFilter(t *testing.T) {
	q := NewQuery().ContainingInfo("COVID").Limit(5)
	q.WithExactInfo("")
	req, ok := q.Request()
	require.True(t, ok)
	assert.Empty(t, req.EventInfo)
	assert.Equal(t, uint64(5), *req.Limit)

	q = NewQuery().WithExactInfo("")
	assert.True(t, q.IsEmpty(), "clearing an unset filter does not mark the query filtered")

	q = NewQuery().ContainingInfo("COVID").WithExactInfo("")
	assert.True(t, q.IsEmpty(), "clearing the only filter empties the query")
	assert.Nil(t, q.Envelope())
}

func TestEventList_EmptyExactInfoLists(t *testing.T) {
	f := newFakeFetcher().on(http.MethodGet, "events", listBody(eventJSON("1", eventUUID, "one")))
	events, err := newTestClient(f).Events().List().WithExactInfo("").Retrieve(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, call{Method: http.MethodGet, Path: "events"}, f.last())
}

func TestQuery_OmitsUnsetFilters(t *testing.T) {
	raw, err := json.Marshal(NewQuery().Before(NewDate(2021, time.January, 2)).Envelope())
	require.NoError(t, err)
	assert.JSONEq(t, `{"request":{"returnFormat":"json","to":"2021-01-02"}}`, string(raw))
}

func TestQuery_LimitZeroIsKept(t *testing.T) {
	raw, err := json.Marshal(NewQuery().Limit(0).Envelope())
	require.NoError(t, err)
	assert.JSONEq(t, `{"request":{"returnFormat":"json","limit":0}}`, string(raw))
}

func TestQuery_OrganizationForms(t *testing.T) {
	raw, err := json.Marshal(NewQuery().FromOrganization(FromLocalID(OrganizationID(3))).Envelope())
	require.NoError(t, err)
	assert.JSONEq(t, `{"request":{"returnFormat":"json","org":"3"}}`, string(raw))
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

func TestClient_ServerInfo(t *testing.T) {
	f := newFakeFetcher().on(http.MethodGet, "servers/getVersion.json",
		`{"version":"2.4.128","perm_sync":true,"perm_sighting":true,"perm_galaxy_editor":false}`)
	c := newTestClient(f)

	info, err := c.ServerInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.4.128", info.Version())
	assert.True(t, info.CanSync())

	_, err = c.ServerInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.count(), "server info is not cached")
}

func TestClient_ServerInfoNotJSON(t *testing.T) {
	f := newFakeFetcher().on(http.MethodGet, "servers/getVersion.json", `maintenance`)
	_, err := newTestClient(f).ServerInfo(context.Background())
	var ue *UnexpectedResponseError
	assert.True(t, errors.As(err, &ue))
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New("", "key")
	assert.Error(t, err)
	_, err = New("https://misp.example.org", "")
	assert.Error(t, err)

	c, err := New("", "", WithFetcher(newFakeFetcher()))
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestNew_OverHTTP(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /events/view/1188", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		assert.Equal(t, "tests/1", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(eventBody("1188", eventUUID, "covid")))
	})
	mux.HandleFunc("GET /events/view/2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"name":"Forbidden","message":"You do not have permission","url":"/events/view/2"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := New(srv.URL, "secret", WithUserAgent("tests/1"), WithTimeout(5*time.Second))
	require.NoError(t, err)

	e, err := c.Events().Get(FromLocalID(EventID(1188))).Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "CIRCL", e.Orgc().Name())

	_, err = c.Events().Get(FromLocalID(EventID(2))).Retrieve(context.Background())
	assert.True(t, IsForbidden(err))
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "You do not have permission", te.Message)
}

func TestEventsAPI_SearchNilQueryLists(t *testing.T) {
	f := newFakeFetcher().on(http.MethodGet, "events", listBody(eventJSON("1", eventUUID, "one")))
	c := NewWithFetcher(f)

	events, err := c.Events().Search(nil).Retrieve(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, 1, f.count())
}
