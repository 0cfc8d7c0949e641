// Package history keeps a local log of playback outcomes in SQLite. It is
// best-effort bookkeeping: a recorder that hits a database error disables
// itself and never disturbs playback.
package history

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver
)

// Outcome values stored per event.
const (
	OutcomeFinished = "finished"
	OutcomeError    = "error"
)

// Event is one recorded playback outcome.
type Event struct {
	ID         int64
	Timestamp  time.Time
	Identifier string
	Outcome    string
	Detail     string
}

// Recorder writes playback events to a SQLite database.
type Recorder struct {
	mu       sync.Mutex
	db       *sql.DB
	disabled bool
}

// DefaultPath returns the XDG data path for the history database.
func DefaultPath() (string, error) {
	return xdg.DataFile("chime/history.db")
}

// Open creates or opens the events database at dbPath, applying pragmas and
// schema. ":memory:" is accepted for tests.
func Open(dbPath string) (*Recorder, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma: %w", err)
		}
	}

	schema := `
CREATE TABLE IF NOT EXISTS playback_events (
    id         INTEGER PRIMARY KEY,
    timestamp  INTEGER NOT NULL,
    identifier TEXT    NOT NULL,
    outcome    TEXT    NOT NULL CHECK (outcome IN ('finished','error')),
    detail     TEXT    NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_playback_events_timestamp ON playback_events(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_playback_events_identifier ON playback_events(identifier);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	slog.Debug("history database opened", "path", dbPath)
	return &Recorder{db: db}, nil
}

// RecordFinished logs a successful playback of identifier.
func (r *Recorder) RecordFinished(identifier string) {
	r.record(identifier, OutcomeFinished, "")
}

// RecordError logs a failed playback of identifier with its reason.
func (r *Recorder) RecordError(identifier, reason string) {
	r.record(identifier, OutcomeError, reason)
}

func (r *Recorder) record(identifier, outcome, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disabled {
		return
	}

	_, err := r.db.Exec(
		"INSERT INTO playback_events (timestamp, identifier, outcome, detail) VALUES (?, ?, ?, ?)",
		time.Now().Unix(), identifier, outcome, detail)
	if err != nil {
		// One failure disables the recorder for the session; history must
		// never get in the way of playback.
		slog.Warn("history recording failed, disabling", "error", err)
		r.disabled = true
	}
}

// Recent returns up to limit events, newest first.
func (r *Recorder) Recent(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(
		"SELECT id, timestamp, identifier, outcome, detail FROM playback_events ORDER BY timestamp DESC, id DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var ts int64
		if err := rows.Scan(&ev.ID, &ts, &ev.Identifier, &ev.Outcome, &ev.Detail); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		ev.Timestamp = time.Unix(ts, 0)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close releases the database handle.
func (r *Recorder) Close() error {
	return r.db.Close()
}
