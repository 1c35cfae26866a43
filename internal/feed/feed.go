// Package feed turns MISP events into flat indicator rows and moves them
// into a store.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/misp"
)

// Indicator is one detection-worthy attribute together with the event it
// came from.
type Indicator struct {
	AttributeUUID uuid.UUID
	EventID       misp.EventID
	EventUUID     uuid.UUID
	EventInfo     string
	ThreatLevel   misp.ThreatLevel
	ObjectName    string // empty for attributes directly on the event
	Category      string
	Type          string
	Value         string
	Comment       string
	Timestamp     time.Time
}

// Fetcher produces indicators from one source.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]Indicator, error)
}

// Store persists indicators.
type Store interface {
	SaveIndicators(ctx context.Context, ind []Indicator) error
}

// Flatten collects every to_ids attribute of events, including attributes
// nested in objects. Deleted attributes are skipped.
func Flatten(events []misp.FullEvent) []Indicator {
	var out []Indicator
	for _, e := range events {
		add := func(a misp.FullAttribute, object string) {
			if !a.ToIDs() || a.Deleted() {
				return
			}
			out = append(out, Indicator{
				AttributeUUID: a.UUID(),
				EventID:       e.ID(),
				EventUUID:     e.UUID(),
				EventInfo:     e.Info(),
				ThreatLevel:   e.ThreatLevel(),
				ObjectName:    object,
				Category:      a.Category(),
				Type:          a.Type(),
				Value:         a.Value(),
				Comment:       a.Comment(),
				Timestamp:     a.Timestamp(),
			})
		}
		for _, a := range e.Attributes() {
			add(a, "")
		}
		for _, o := range e.Objects() {
			if o.Deleted() {
				continue
			}
			for _, a := range o.Attributes() {
				add(a, o.Name())
			}
		}
	}
	return out
}

// MISPFetcher searches a MISP server and flattens the matching events.
type MISPFetcher struct {
	name   string
	client *misp.Client
	query  *misp.Query
}

// NewMISPFetcher returns a fetcher running q against client on every
// Fetch. A nil or empty q lists all events.
func NewMISPFetcher(name string, client *misp.Client, q *misp.Query) *MISPFetcher {
	if q == nil {
		q = misp.NewQuery()
	}
	return &MISPFetcher{name: name, client: client, query: q}
}

func (f *MISPFetcher) Name() string { return f.name }

// Fetch runs the search on a fresh handle, so every call sees current data.
func (f *MISPFetcher) Fetch(ctx context.Context) ([]Indicator, error) {
	events, err := f.client.Events().Search(f.query).Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("feed: %s: %w", f.name, err)
	}
	return Flatten(events), nil
}

// Controller runs registered fetchers and saves their output.
type Controller struct {
	fetchers []Fetcher
	store    Store
	logger   *slog.Logger
}

// NewController creates a controller saving into store.
func NewController(store Store, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{store: store, logger: logger}
}

// Register adds a fetcher to the controller.
func (c *Controller) Register(f Fetcher) {
	c.fetchers = append(c.fetchers, f)
}

// Run executes all fetchers concurrently and saves each result. It returns
// the number of indicators saved and the failures of all sources joined.
func (c *Controller) Run(ctx context.Context) (int, error) {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		saved int
		errs  []error
	)
	for _, f := range c.fetchers {
		wg.Add(1)
		go func(fetcher Fetcher) {
			defer wg.Done()
			ind, err := c.syncOne(ctx, fetcher)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			saved += ind
		}(f)
	}
	wg.Wait()
	return saved, errors.Join(errs...)
}

func (c *Controller) syncOne(ctx context.Context, f Fetcher) (int, error) {
	start := time.Now()
	indicators, err := f.Fetch(ctx)
	if err != nil {
		c.logger.Error("fetch failed", "source", f.Name(), "error", err)
		return 0, err
	}
	if err := c.store.SaveIndicators(ctx, indicators); err != nil {
		c.logger.Error("store failed", "source", f.Name(), "error", err)
		return 0, fmt.Errorf("feed: save %s: %w", f.Name(), err)
	}
	c.logger.Info("indicators synced",
		"source", f.Name(),
		"count", len(indicators),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return len(indicators), nil
}
