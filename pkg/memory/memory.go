// Package memory persists conversation context between turns and
// aggregates locally cached patient data into a summary the agent can
// prepend to a session.
//
// Two ConversationStore backends are provided: a per-session JSON file
// store matching the on-disk layout of the original deployment, and a
// SQLite store for installations that want a single database file.
package memory

import (
	"github.com/medifox/go-medifox/pkg/inference"
)

// ConversationStore owns the ordered message log for each session.
type ConversationStore interface {
	// Load returns the stored context for a session, or an empty slice
	// if none exists. Load never fails; a corrupt or missing record
	// reads as an empty conversation.
	Load(sessionID string) []inference.Message

	// Save overwrites the stored context for a session and records a
	// last-updated timestamp. Last write wins.
	Save(sessionID string, context []inference.Message) error

	// Delete removes a session's stored context.
	Delete(sessionID string) error

	// Close releases backend resources.
	Close() error
}
