// Package events persists the append-only record of pipeline outcomes.
// Rows are inserted exactly once and never updated or deleted; the HTTP
// facade and the CLI only ever read them back.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure Go driver, no CGO
)

// Kind values used by the daemon. Callers may append other kinds; the
// store does not restrict them.
const KindPipeline = "pipeline"

// Status values recorded on an event.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Event is one immutable row of the log.
type Event struct {
	ID        int64           `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Kind      string          `json:"kind"`
	Status    string          `json:"status"`
	Payload   json.RawMessage `json:"payload"`
}

// Store provides SQLite persistence for events.
type Store struct {
	db *sql.DB
}

// Open initialises the store at dbPath and runs migrations.
// WAL mode plus busy_timeout keeps concurrent appenders from tripping over
// "database is locked" errors.
func Open(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open events db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping events db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate events db: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL CHECK(status IN ('ok', 'error')),
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
	CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append inserts one event and returns it with its store-assigned id and
// timestamp. The payload is JSON-encoded as given.
func (s *Store) Append(ctx context.Context, kind, status string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode event payload: %w", err)
	}
	createdAt := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events (created_at, kind, status, payload) VALUES (?, ?, ?, ?)`,
		createdAt.Format(time.RFC3339Nano), kind, status, string(raw),
	)
	if err != nil {
		return Event{}, fmt.Errorf("append event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Event{}, fmt.Errorf("event id: %w", err)
	}

	return Event{
		ID:        id,
		CreatedAt: createdAt,
		Kind:      kind,
		Status:    status,
		Payload:   raw,
	}, nil
}

// List returns the most recent events, newest first. An empty kind matches
// every kind. Limit values below 1 fall back to 50.
func (s *Store) List(ctx context.Context, kind string, limit int) ([]Event, error) {
	if limit < 1 {
		limit = 50
	}

	query := `SELECT id, created_at, kind, status, payload FROM events`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Event
	for rows.Next() {
		ev, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Get returns one event by id, or sql.ErrNoRows when it does not exist.
func (s *Store) Get(ctx context.Context, id int64) (Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, kind, status, payload FROM events WHERE id = ?`, id)
	return scanEvent(row.Scan)
}

// Ping reports store health for the /health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func scanEvent(scan func(...any) error) (Event, error) {
	var (
		ev        Event
		createdAt string
		payload   string
	)
	if err := scan(&ev.ID, &createdAt, &ev.Kind, &ev.Status, &payload); err != nil {
		return Event{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Event{}, fmt.Errorf("parse event timestamp: %w", err)
	}
	ev.CreatedAt = t
	ev.Payload = json.RawMessage(payload)
	return ev, nil
}
