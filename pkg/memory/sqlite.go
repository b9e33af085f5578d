package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/medifox/go-medifox/internal/log"
	"github.com/medifox/go-medifox/pkg/inference"
)

// SQLiteStore implements ConversationStore backed by a single SQLite
// database. Context is stored as one JSON blob per session, keeping the
// same last-write-wins semantics as the file store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dsn.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate
	// databases. Keep a single connection so the schema survives.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS conversations (
		session_id   TEXT PRIMARY KEY,
		last_updated TEXT NOT NULL,
		context      TEXT NOT NULL
	)`)
	return err
}

// Load returns the stored context for a session, or an empty slice.
func (s *SQLiteStore) Load(sessionID string) []inference.Message {
	var raw string
	err := s.db.QueryRow(
		`SELECT context FROM conversations WHERE session_id = ?`, sessionID,
	).Scan(&raw)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Warn("failed to load conversation", "session_id", sessionID, "error", err)
		}
		return []inference.Message{}
	}

	var context []inference.Message
	if err := json.Unmarshal([]byte(raw), &context); err != nil {
		log.Warn("corrupt conversation row, starting fresh", "session_id", sessionID, "error", err)
		return []inference.Message{}
	}
	if context == nil {
		return []inference.Message{}
	}
	return context
}

// Save overwrites the stored context for a session.
func (s *SQLiteStore) Save(sessionID string, context []inference.Message) error {
	raw, err := json.Marshal(context)
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO conversations (session_id, last_updated, context) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET last_updated = excluded.last_updated, context = excluded.context`,
		sessionID, time.Now().Format(time.RFC3339), string(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// Delete removes a session's stored context.
func (s *SQLiteStore) Delete(sessionID string) error {
	if _, err := s.db.Exec(`DELETE FROM conversations WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Verify SQLiteStore implements ConversationStore at compile time.
var _ ConversationStore = (*SQLiteStore)(nil)
