package store

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/misp/internal/feed"
	"github.com/ashita-ai/misp/model"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "misp.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func indicator(value, typ string, ts int64) feed.Indicator {
	return feed.Indicator{
		AttributeUUID: uuid.New(),
		EventID:       1188,
		EventUUID:     uuid.MustParse("abcd1234-0000-4000-8000-000000000001"),
		EventInfo:     "CSSE COVID-19 daily report",
		ThreatLevel:   model.ThreatLevelMedium,
		Category:      "Network activity",
		Type:          typ,
		Value:         value,
		Timestamp:     time.Unix(ts, 0).UTC(),
	}
}

func TestSQLite_SaveAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := indicator("evil.example", "domain", 1584288000)
	b := indicator("203.0.113.9", "ip-dst", 1584291600)
	b.ObjectName = "ip-port"
	require.NoError(t, s.SaveIndicators(ctx, []feed.Indicator{a, b}))

	got, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, b, got[0], "newest first")
	assert.Equal(t, a, got[1])
}

func TestSQLite_UpsertByAttributeUUID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := indicator("evil.example", "domain", 1584288000)
	require.NoError(t, s.SaveIndicators(ctx, []feed.Indicator{a}))

	a.Value = "evil.example.org"
	a.Comment = "updated"
	require.NoError(t, s.SaveIndicators(ctx, []feed.Indicator{a}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "evil.example.org", got[0].Value)
	assert.Equal(t, "updated", got[0].Comment)
}

func TestSQLite_Filter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveIndicators(ctx, []feed.Indicator{
		indicator("a.example", "domain", 100),
		indicator("b.example", "domain", 200),
		indicator("198.51.100.1", "ip-dst", 300),
	}))

	domains, err := s.List(ctx, Filter{Type: "domain"})
	require.NoError(t, err)
	assert.Len(t, domains, 2)

	recent, err := s.List(ctx, Filter{Since: time.Unix(200, 0)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	one, err := s.List(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "198.51.100.1", one[0].Value)
}

func TestSQLite_SaveEmpty(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveIndicators(context.Background(), nil))
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLite_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "misp.db")
	ctx := context.Background()

	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.SaveIndicators(ctx, []feed.Indicator{indicator("evil.example", "domain", 1)}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

var _ feed.Store = (*SQLite)(nil)

func TestSQLite_MigrationsRecorded(t *testing.T) {
	s := openTestStore(t)
	applied, err := s.loadAppliedMigrations(context.Background())
	require.NoError(t, err)
	assert.True(t, applied["001_indicators.sql"])
	assert.True(t, applied["002_indicator_indexes.sql"])
}

func TestSQLite_MigrationsRunOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	extra := fstest.MapFS{
		"003_note.sql": {Data: []byte(`CREATE TABLE notes (body TEXT NOT NULL);`)},
		"README.md":    {Data: []byte("ignored")},
	}
	require.NoError(t, s.runMigrations(ctx, extra))
	// A second run must skip 003, or CREATE TABLE without IF NOT EXISTS fails.
	require.NoError(t, s.runMigrations(ctx, extra))

	applied, err := s.loadAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.True(t, applied["003_note.sql"])
	assert.False(t, applied["README.md"])
}

func TestSQLite_FailedMigrationNotRecorded(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	bad := fstest.MapFS{"003_bad.sql": {Data: []byte(`CREATE TABLE;`)}}
	err := s.runMigrations(ctx, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "003_bad.sql")

	applied, err := s.loadAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.False(t, applied["003_bad.sql"])
}
