package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/ashita-ai/misp"
	"github.com/ashita-ai/misp/codec"
	"github.com/ashita-ai/misp/internal/config"
	"github.com/ashita-ai/misp/internal/feed"
	"github.com/ashita-ai/misp/internal/store"
	"github.com/ashita-ai/misp/model"
)

func cmdVersion(ctx context.Context, client *misp.Client, stdout io.Writer) error {
	info, err := client.ServerInfo(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "version\t%s\n", info.Version())
	fmt.Fprintf(tw, "perm_sync\t%t\n", info.CanSync())
	fmt.Fprintf(tw, "perm_sighting\t%t\n", info.CanSight())
	fmt.Fprintf(tw, "perm_galaxy_editor\t%t\n", info.CanEditGalaxies())
	return tw.Flush()
}

func cmdEvent(ctx context.Context, client *misp.Client, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errUsage
	}
	id, err := model.ParseIdentifier[misp.EventID](args[0])
	if err != nil {
		return err
	}
	e, err := client.Events().Get(id).Retrieve(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", e.ID())
	fmt.Fprintf(tw, "uuid\t%s\n", e.UUID())
	fmt.Fprintf(tw, "date\t%s\n", e.Date())
	fmt.Fprintf(tw, "info\t%s\n", e.Info())
	fmt.Fprintf(tw, "creator\t%s\n", e.Orgc().Name())
	fmt.Fprintf(tw, "threat_level\t%s\n", e.ThreatLevel())
	fmt.Fprintf(tw, "analysis\t%s\n", e.Analysis())
	fmt.Fprintf(tw, "distribution\t%s\n", e.Distribution())
	fmt.Fprintf(tw, "published\t%t\n", e.Published())
	fmt.Fprintf(tw, "attributes\t%d\n", len(e.Attributes()))
	fmt.Fprintf(tw, "objects\t%d\n", len(e.Objects()))
	return tw.Flush()
}

// searchFlags binds the filter flags shared by search and sync.
type searchFlags struct {
	org       string
	info      string
	exactInfo string
	after     string
	before    string
	days      int
	limit     int
}

func (s *searchFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&s.org, "org", "", "owning organization (id, uuid or name)")
	fs.StringVar(&s.info, "info", "", "substring of the event info")
	fs.StringVar(&s.exactInfo, "exact-info", "", "exact event info")
	fs.StringVar(&s.after, "after", "", "only events dated on or after YYYY-MM-DD")
	fs.StringVar(&s.before, "before", "", "only events dated on or before YYYY-MM-DD")
	fs.IntVar(&s.days, "days", 0, "only events from the last N days (overrides -after)")
	fs.IntVar(&s.limit, "limit", 0, "maximum number of events")
}

// query builds the search; now anchors -days.
func (s *searchFlags) query(now time.Time) (*misp.Query, error) {
	q := misp.NewQuery()
	if s.org != "" {
		org, err := model.ParseIdentifier[misp.OrganizationID](s.org)
		if err != nil {
			return nil, err
		}
		q.FromOrganization(org)
	}
	switch {
	case s.info != "" && s.exactInfo != "":
		return nil, fmt.Errorf("-info and -exact-info are exclusive")
	case s.info != "":
		q.ContainingInfo(s.info)
	case s.exactInfo != "":
		q.WithExactInfo(s.exactInfo)
	}
	if s.after != "" {
		d, err := codec.ParseDate(s.after)
		if err != nil {
			return nil, fmt.Errorf("-after: %w", err)
		}
		q.After(d)
	}
	if s.days > 0 {
		q.After(codec.DateOf(now.AddDate(0, 0, -s.days)))
	}
	if s.before != "" {
		d, err := codec.ParseDate(s.before)
		if err != nil {
			return nil, fmt.Errorf("-before: %w", err)
		}
		q.Before(d)
	}
	if s.limit < 0 {
		return nil, fmt.Errorf("-limit must not be negative")
	}
	if s.limit > 0 {
		q.Limit(uint64(s.limit))
	}
	return q, nil
}

func cmdSearch(ctx context.Context, client *misp.Client, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	var sf searchFlags
	sf.register(fs)
	asCSV := fs.Bool("csv", false, "write one CSV row per attribute")
	object := fs.String("object", "", "with -csv, only attributes of objects with this name")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	q, err := sf.query(time.Now())
	if err != nil {
		return err
	}
	events, err := client.Events().Search(q).Retrieve(ctx)
	if err != nil {
		return err
	}

	if *asCSV {
		return writeCSV(stdout, events, *object)
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTHREAT\tINFO")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID(), e.Date(), e.ThreatLevel(), e.Info())
	}
	return tw.Flush()
}

var csvHeader = []string{"event_id", "event_uuid", "date", "info", "object", "relation", "category", "type", "value"}

// writeCSV writes one row per attribute. With object set, only attributes
// of objects of that name are written.
func writeCSV(w io.Writer, events []misp.FullEvent, object string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	row := func(e misp.FullEvent, objectName string, a misp.FullAttribute) error {
		relation, _ := a.ObjectRelation()
		return cw.Write([]string{
			strconv.FormatUint(uint64(e.ID()), 10),
			e.UUID().String(),
			e.Date().String(),
			e.Info(),
			objectName,
			relation,
			a.Category(),
			a.Type(),
			a.Value(),
		})
	}
	for _, e := range events {
		if object == "" {
			for _, a := range e.Attributes() {
				if err := row(e, "", a); err != nil {
					return err
				}
			}
		}
		for _, o := range e.Objects() {
			if object != "" && o.Name() != object {
				continue
			}
			for _, a := range o.Attributes() {
				if err := row(e, o.Name(), a); err != nil {
					return err
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func cmdSync(ctx context.Context, client *misp.Client, cfg config.Config, args []string, stdout io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	var sf searchFlags
	sf.register(fs)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if sf.limit == 0 {
		sf.limit = cfg.SyncLimit
	}
	q, err := sf.query(time.Now())
	if err != nil {
		return err
	}

	db, err := store.Open(ctx, cfg.StorePath, logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctrl := feed.NewController(db, logger)
	ctrl.Register(feed.NewMISPFetcher("misp", client, q))
	saved, err := ctrl.Run(ctx)
	if err != nil {
		return err
	}

	total, err := db.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "synced %d indicators (%d stored in %s)\n", saved, total, cfg.StorePath)
	return nil
}
