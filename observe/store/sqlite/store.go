// Package sqlite persists run events for post-hoc inspection.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/oneagenthq/oneagent/observe"
)

// StoredEvent is an event row read back from the store.
type StoredEvent struct {
	ID int64 `json:"id"`
	observe.Event
}

// Store is a sqlite-backed observe.Sink. It is safe for concurrent use; the
// connection pool is pinned to a single connection because sqlite serializes
// writers anyway.
type Store struct {
	db *sql.DB
}

// New opens (and if needed creates) the event store at path.
func New(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("event store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create event store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event store: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.ExecContext(context.Background(), `
CREATE TABLE IF NOT EXISTS run_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  type TEXT NOT NULL,
  run_id TEXT,
  session_id TEXT,
  tool TEXT,
  detail TEXT,
  metadata TEXT,
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_events_run_id ON run_events(run_id);
CREATE INDEX IF NOT EXISTS idx_run_events_created_at ON run_events(created_at DESC);
`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize event store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Emit records one event. Implements observe.Sink.
func (s *Store) Emit(ctx context.Context, event observe.Event) error {
	if s == nil || s.db == nil {
		return nil
	}
	event.Normalize()
	var metadata string
	if len(event.Metadata) > 0 {
		data, err := json.Marshal(event.Metadata)
		if err == nil {
			metadata = string(data)
		}
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO run_events (type, run_id, session_id, tool, detail, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?);`,
		string(event.Type),
		event.RunID,
		event.SessionID,
		event.Tool,
		event.Detail,
		metadata,
		event.Time.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record run event: %w", err)
	}
	return nil
}

// List returns recorded events, newest first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]StoredEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, type, run_id, session_id, tool, detail, metadata, created_at
FROM run_events
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list run events: %w", err)
	}
	defer rows.Close()

	out := make([]StoredEvent, 0, limit)
	for rows.Next() {
		var (
			entry    StoredEvent
			typ      string
			runID    sql.NullString
			session  sql.NullString
			tool     sql.NullString
			detail   sql.NullString
			metadata sql.NullString
			created  string
		)
		if err := rows.Scan(&entry.ID, &typ, &runID, &session, &tool, &detail, &metadata, &created); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		entry.Type = observe.EventType(typ)
		entry.RunID = runID.String
		entry.SessionID = session.String
		entry.Tool = tool.String
		entry.Detail = detail.String
		if metadata.String != "" {
			_ = json.Unmarshal([]byte(metadata.String), &entry.Metadata)
		}
		if t, parseErr := time.Parse(time.RFC3339Nano, created); parseErr == nil {
			entry.Time = t
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run events: %w", err)
	}
	return out, nil
}

// ListByRun returns all events for one run, oldest first.
func (s *Store) ListByRun(ctx context.Context, runID string) ([]StoredEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, type, run_id, session_id, tool, detail, metadata, created_at
FROM run_events
WHERE run_id = ?
ORDER BY id ASC;`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list run events by run: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var (
			entry    StoredEvent
			typ      string
			rid      sql.NullString
			session  sql.NullString
			tool     sql.NullString
			detail   sql.NullString
			metadata sql.NullString
			created  string
		)
		if err := rows.Scan(&entry.ID, &typ, &rid, &session, &tool, &detail, &metadata, &created); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		entry.Type = observe.EventType(typ)
		entry.RunID = rid.String
		entry.SessionID = session.String
		entry.Tool = tool.String
		entry.Detail = detail.String
		if metadata.String != "" {
			_ = json.Unmarshal([]byte(metadata.String), &entry.Metadata)
		}
		if t, parseErr := time.Parse(time.RFC3339Nano, created); parseErr == nil {
			entry.Time = t
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run events: %w", err)
	}
	return out, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
