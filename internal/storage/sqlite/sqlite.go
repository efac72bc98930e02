// Package sqlite stores the event log in a local SQLite file, for
// single-machine installs without Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AaronLay10/SentientNarrative/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS narrative_events (
	event_id   INTEGER PRIMARY KEY AUTOINCREMENT,
	ts         INTEGER NOT NULL,
	level      TEXT NOT NULL,
	event      TEXT NOT NULL,
	msg        TEXT,
	fields     TEXT,
	story_id   TEXT NOT NULL,
	session_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_narrative_events_story_ts ON narrative_events(story_id, ts DESC);
`

// Store is a SQLite-backed event log scoped to one story id.
type Store struct {
	db      *sql.DB
	storyID string
}

// Open opens (creating if needed) the database at path.
func Open(path, storyID string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, storyID: storyID}, nil
}

// Append inserts an event.
func (s *Store) Append(ts time.Time, level, event, msg string, fields map[string]interface{}, sessionID string) error {
	var fieldsJSON sql.NullString
	if fields != nil {
		b, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("marshal fields: %w", err)
		}
		fieldsJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.Exec(`
INSERT INTO narrative_events (ts, level, event, msg, fields, story_id, session_id)
VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		ts.UTC().UnixMicro(),
		level,
		event,
		nullString(msg),
		fieldsJSON,
		s.storyID,
		nullString(sessionID),
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Query returns the last N events of the story, newest first.
func (s *Store) Query(limit int) ([]storage.EventRow, error) {
	if limit <= 0 {
		limit = 200
	}

	rows, err := s.db.Query(`
SELECT event_id, ts, level, event, msg, fields, story_id, session_id
FROM narrative_events
WHERE story_id = ?
ORDER BY ts DESC, event_id DESC
LIMIT ?
`, s.storyID, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []storage.EventRow
	for rows.Next() {
		var (
			e         storage.EventRow
			tsMicros  int64
			msg       sql.NullString
			fields    sql.NullString
			sessionID sql.NullString
		)
		if err := rows.Scan(&e.EventID, &tsMicros, &e.Level, &e.Event, &msg, &fields, &e.StoryID, &sessionID); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Timestamp = time.UnixMicro(tsMicros).UTC()
		if msg.Valid {
			e.Message = &msg.String
		}
		if sessionID.Valid {
			e.SessionID = &sessionID.String
		}
		if fields.Valid && fields.String != "" {
			if err := json.Unmarshal([]byte(fields.String), &e.Fields); err != nil {
				return nil, fmt.Errorf("unmarshal fields: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
