// Package store provides croco's durable persistence: a small string
// key-value table for session identity and the profile, plus an
// append-only conversation history for inspection. Backed by SQLite
// (modernc driver, no cgo).
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dhruvdaberao/CROCO/internal/logging"
)

// Well-known settings keys. Absence of a key means "unset", which is
// distinct from an empty stored value.
const (
	KeyUserName   = "user_name"
	KeyUserAvatar = "user_avatar"
	KeyProfile    = "profile"
)

// Store wraps the SQLite database. A single writer is assumed per
// process; the mutex keeps the detached synthesis goroutine and the
// foreground turn from interleaving statements.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// HistoryTurn is one persisted conversation turn.
type HistoryTurn struct {
	SessionID  string
	TurnNumber int
	Speaker    string
	Text       string
	HasImage   bool
	CreatedAt  time.Time
}

const schema = `
	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_history (
		session_id  TEXT NOT NULL,
		turn_number INTEGER NOT NULL,
		speaker     TEXT NOT NULL,
		text        TEXT NOT NULL,
		has_image   INTEGER NOT NULL DEFAULT 0,
		created_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (session_id, turn_number)
	);

	CREATE INDEX IF NOT EXISTS idx_history_session
		ON session_history(session_id, turn_number);
`

// New opens (or creates) the database at path and initializes the schema.
// Use ":memory:" for tests.
func New(path string) (*Store, error) {
	logging.Store("Opening store at %s", path)

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.StoreDebug("pragma failed (%s): %v", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db, dbPath: path}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// GetSetting returns the stored value for key and whether it was set.
func (s *Store) GetSetting(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

// PutSetting upserts key to value. An empty value is stored verbatim and
// still counts as "set".
func (s *Store) PutSetting(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Putting setting %s (%d bytes)", key, len(value))
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("put setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes key. Deleting an absent key is not an error.
func (s *Store) DeleteSetting(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM settings WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}

// AppendHistoryTurn records a conversation turn. Duplicate turn numbers
// within a session are silently skipped so replays stay idempotent.
func (s *Store) AppendHistoryTurn(sessionID string, turnNumber int, speaker, text string, hasImage bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	img := 0
	if hasImage {
		img = 1
	}
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO session_history (session_id, turn_number, speaker, text, has_image)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, turnNumber, speaker, text, img,
	)
	if err != nil {
		return fmt.Errorf("append history turn: %w", err)
	}
	return nil
}

// SessionHistory returns up to limit turns of a session in order.
func (s *Store) SessionHistory(sessionID string, limit int) ([]HistoryTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.Query(
		`SELECT session_id, turn_number, speaker, text, has_image, created_at
		 FROM session_history
		 WHERE session_id = ?
		 ORDER BY turn_number ASC
		 LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query session history: %w", err)
	}
	defer rows.Close()

	var turns []HistoryTurn
	for rows.Next() {
		var t HistoryTurn
		var img int
		if err := rows.Scan(&t.SessionID, &t.TurnNumber, &t.Speaker, &t.Text, &img, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history turn: %w", err)
		}
		t.HasImage = img != 0
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Sessions lists known session ids, most recent first.
func (s *Store) Sessions(limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT session_id, MAX(created_at) AS latest
		 FROM session_history
		 GROUP BY session_id
		 ORDER BY latest DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id, latest string
		if err := rows.Scan(&id, &latest); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
