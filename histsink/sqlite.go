package histsink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/emilhart/coxswain/agentcore"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS history_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ts         TEXT NOT NULL,
	session_id TEXT NOT NULL,
	type       TEXT NOT NULL,
	turn       INTEGER NOT NULL,
	step       INTEGER NOT NULL,
	role       TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL DEFAULT '',
	meta       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_history_events_session
	ON history_events(session_id, id);
`

// SQLiteSink stores history events in a local SQLite database, one row
// per event.
type SQLiteSink struct {
	db *sql.DB
}

func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Name() string { return "sqlite" }

func (s *SQLiteSink) Append(ctx context.Context, ev agentcore.HistoryEvent) error {
	meta := ""
	if len(ev.Meta) > 0 {
		meta = string(agentcore.MarshalSafe(ev.Meta))
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history_events (ts, session_id, type, turn, step, role, content, meta)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.TS.Format(time.RFC3339Nano), ev.SessionID, string(ev.Type),
		ev.Turn, ev.Step, ev.Role, ev.Content, meta,
	)
	if err != nil {
		return fmt.Errorf("inserting history event: %w", err)
	}
	return nil
}

// Flush is a no-op; every Append commits immediately.
func (s *SQLiteSink) Flush(_ context.Context) error { return nil }

func (s *SQLiteSink) Close() error { return s.db.Close() }
