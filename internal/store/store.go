// Package store persists feed indicators in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ashita-ai/misp/internal/feed"
	"github.com/ashita-ai/misp/migrations"
	"github.com/ashita-ai/misp/model"
)

// SQLite stores indicators keyed by attribute UUID; saving an indicator
// that already exists replaces it.
type SQLite struct {
	db     *sql.DB
	mu     sync.Mutex // single writer
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and applies any
// pending migrations. A nil logger uses slog.Default.
func Open(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, logger: logger}
	if err := s.runMigrations(ctx, migrations.FS); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

// SaveIndicators upserts ind in one transaction.
func (s *SQLite) SaveIndicators(ctx context.Context, ind []feed.Indicator) error {
	if len(ind) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO indicators (
			attribute_uuid, event_id, event_uuid, event_info, threat_level,
			object_name, category, type, value, comment, timestamp, synced_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (attribute_uuid) DO UPDATE SET
			event_id = excluded.event_id,
			event_uuid = excluded.event_uuid,
			event_info = excluded.event_info,
			threat_level = excluded.threat_level,
			object_name = excluded.object_name,
			category = excluded.category,
			type = excluded.type,
			value = excluded.value,
			comment = excluded.comment,
			timestamp = excluded.timestamp,
			synced_at = excluded.synced_at`)
	if err != nil {
		return fmt.Errorf("store: prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().Unix()
	for _, i := range ind {
		// SQLite integers are signed; ids and codes above MaxInt64 do not
		// occur in practice and are stored as their two's complement.
		if _, err := stmt.ExecContext(ctx,
			i.AttributeUUID.String(), int64(i.EventID), i.EventUUID.String(), i.EventInfo,
			int64(i.ThreatLevel), i.ObjectName, i.Category, i.Type, i.Value, i.Comment,
			i.Timestamp.Unix(), now,
		); err != nil {
			return fmt.Errorf("store: upsert %s: %w", i.AttributeUUID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Filter narrows List. Zero fields do not filter.
type Filter struct {
	Type  string
	Since time.Time
	Limit int
}

// List returns stored indicators, newest first.
func (s *SQLite) List(ctx context.Context, f Filter) ([]feed.Indicator, error) {
	var (
		where []string
		args  []any
	)
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if !f.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, f.Since.Unix())
	}

	q := `SELECT attribute_uuid, event_id, event_uuid, event_info, threat_level,
		object_name, category, type, value, comment, timestamp FROM indicators`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY timestamp DESC, attribute_uuid"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []feed.Indicator
	for rows.Next() {
		var (
			i                  feed.Indicator
			attrUUID, evUUID   string
			eventID, level, ts int64
		)
		if err := rows.Scan(&attrUUID, &eventID, &evUUID, &i.EventInfo, &level,
			&i.ObjectName, &i.Category, &i.Type, &i.Value, &i.Comment, &ts); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		if i.AttributeUUID, err = uuid.Parse(attrUUID); err != nil {
			return nil, fmt.Errorf("store: attribute uuid %q: %w", attrUUID, err)
		}
		if i.EventUUID, err = uuid.Parse(evUUID); err != nil {
			return nil, fmt.Errorf("store: event uuid %q: %w", evUUID, err)
		}
		i.EventID = model.EventID(eventID)
		i.ThreatLevel = model.ThreatLevel(level)
		i.Timestamp = time.Unix(ts, 0).UTC()
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	return out, nil
}

// Count returns the number of stored indicators.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM indicators`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}
