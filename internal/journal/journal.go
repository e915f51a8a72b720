// Package journal is an append-only forensic ledger of every stage
// transition the scheduler makes, backed by the pure-Go
// modernc.org/sqlite driver (SPEC_FULL section 11). It is explicitly
// secondary: the stage files under `.work/stages/` remain the
// authoritative state (spec section 5 "Shared resources"), and the
// daemon must keep running correctly even with the journal deleted or
// unreadable. Its purpose is forensics after a crash — reconstructing
// what the scheduler actually did tick by tick — not decision-making.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Journal wraps a sqlite connection recording scheduler events.
type Journal struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates (or reuses) the database at dbPath and applies pending
// migrations.
func Open(dbPath string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	j := &Journal{db: conn}
	if err := j.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the underlying connection.
func (j *Journal) Close() error { return j.db.Close() }

func (j *Journal) migrate() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS journal_schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return err
	}

	var current int
	row := j.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM journal_schema_version")
	if err := row.Scan(&current); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Events},
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := j.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.Exec("INSERT INTO journal_schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

const migrationV1Events = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	stage_id TEXT NOT NULL,
	session_id TEXT,
	from_status TEXT,
	to_status TEXT NOT NULL,
	detail TEXT,
	occurred_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_stage_id ON events(stage_id);
CREATE INDEX IF NOT EXISTS idx_events_occurred_at ON events(occurred_at);
`

// Event is one recorded transition.
type Event struct {
	StageID    string
	SessionID  string
	FromStatus string
	ToStatus   string
	Detail     string
	OccurredAt time.Time
}

// Record appends an event. Failures are the caller's to decide
// whether to log and ignore (the journal must never block or corrupt
// a scheduler tick).
func (j *Journal) Record(e Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	_, err := j.db.Exec(
		`INSERT INTO events (stage_id, session_id, from_status, to_status, detail, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.StageID, e.SessionID, e.FromStatus, e.ToStatus, e.Detail, e.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// History returns every recorded event for a stage, oldest first, for
// post-crash forensics (spec 8 scenario 6). No skein CLI verb calls it;
// `skein status` shows only the current snapshot.
func (j *Journal) History(stageID string) ([]Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT stage_id, COALESCE(session_id, ''), COALESCE(from_status, ''), to_status, COALESCE(detail, ''), occurred_at
		 FROM events WHERE stage_id = ? ORDER BY id ASC`, stageID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.StageID, &e.SessionID, &e.FromStatus, &e.ToStatus, &e.Detail, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Recent returns the most recently recorded events across all stages,
// newest first, capped at limit.
func (j *Journal) Recent(limit int) ([]Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT stage_id, COALESCE(session_id, ''), COALESCE(from_status, ''), to_status, COALESCE(detail, ''), occurred_at
		 FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.StageID, &e.SessionID, &e.FromStatus, &e.ToStatus, &e.Detail, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
