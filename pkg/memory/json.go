package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/medifox/go-medifox/internal/log"
	"github.com/medifox/go-medifox/pkg/inference"
)

// JSONStore implements ConversationStore with one JSON file per
// session, named <session_id>_memory.json.
type JSONStore struct {
	dir string
	mu  sync.RWMutex
}

// memoryEntry is the on-disk record for one session.
type memoryEntry struct {
	SessionID   string              `json:"session_id"`
	LastUpdated string              `json:"last_updated"`
	Context     []inference.Message `json:"context"`
}

// NewJSONStore creates a store rooted at dir, creating it if needed.
func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create memory directory: %w", err)
	}
	return &JSONStore{dir: dir}, nil
}

// Load returns the stored context for a session, or an empty slice.
func (s *JSONStore) Load(sessionID string) []inference.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.sessionPath(sessionID))
	if err != nil {
		return []inference.Message{}
	}

	var entry memoryEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		log.Warn("corrupt memory file, starting fresh", "session_id", sessionID, "error", err)
		return []inference.Message{}
	}
	if entry.Context == nil {
		return []inference.Message{}
	}
	return entry.Context
}

// Save overwrites the stored context for a session.
func (s *JSONStore) Save(sessionID string, context []inference.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{
		SessionID:   sessionID,
		LastUpdated: time.Now().Format(time.RFC3339),
		Context:     context,
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}

	// Write to temp file first, then rename (atomic write)
	path := s.sessionPath(sessionID)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Delete removes a session's memory file. Missing files are not an
// error.
func (s *JSONStore) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.sessionPath(sessionID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete memory file: %w", err)
	}
	return nil
}

// Close is a no-op for the file-backed store.
func (s *JSONStore) Close() error { return nil }

// Dir returns the storage directory.
func (s *JSONStore) Dir() string { return s.dir }

func (s *JSONStore) sessionPath(sessionID string) string {
	return filepath.Join(s.dir, sessionID+"_memory.json")
}

// Verify JSONStore implements ConversationStore at compile time.
var _ ConversationStore = (*JSONStore)(nil)
