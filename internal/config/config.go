// Package config provides configuration helpers for go-medifox commands.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Default server configuration.
const (
	DefaultPort    = "8000"
	DefaultDataDir = "data"
)

// Port returns the HTTP port from PORT env var.
// Falls back to the provided default if not set.
func Port(defaultPort string) string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return defaultPort
}

// DataDir returns the data directory from MEDIFOX_DATA_DIR env var.
// Falls back to ./data if not set.
func DataDir() string {
	if dir := os.Getenv("MEDIFOX_DATA_DIR"); dir != "" {
		return dir
	}
	return DefaultDataDir
}

// MemoryDir returns the conversation memory directory under the data dir.
func MemoryDir() string {
	return filepath.Join(DataDir(), "memory")
}

// OpenAIKey returns the OpenAI API key from OPENAI_API_KEY env var.
// Exits with a usage message if not set.
func OpenAIKey() string {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		fmt.Fprintln(os.Stderr, "Error: OPENAI_API_KEY environment variable is required")
		fmt.Fprintln(os.Stderr, "Usage: OPENAI_API_KEY=sk-... go run ./cmd/medifox")
		os.Exit(1)
	}
	return key
}

// ElevenLabsKey returns the ElevenLabs API key from ELEVENLABS_API_KEY env var.
// Returns empty string if not set (synthesis degrades to empty audio).
func ElevenLabsKey() string {
	return os.Getenv("ELEVENLABS_API_KEY")
}

// DefaultVoiceID is the assistant's ElevenLabs voice.
const DefaultVoiceID = "zgqefOY5FPQ3bB7OZTVR"

// ElevenLabsVoice returns the ElevenLabs voice ID from ELEVENLABS_VOICE_ID.
func ElevenLabsVoice() string {
	if v := os.Getenv("ELEVENLABS_VOICE_ID"); v != "" {
		return v
	}
	return DefaultVoiceID
}

// SQLitePath returns the conversation database path from MEDIFOX_DB.
// Empty means the JSON file store is used instead.
func SQLitePath() string {
	return os.Getenv("MEDIFOX_DB")
}

// RecordsClientID returns the record provider client id, if configured.
func RecordsClientID() string {
	return os.Getenv("EKA_CLIENT_ID")
}

// RecordsClientSecret returns the record provider client secret, if configured.
func RecordsClientSecret() string {
	return os.Getenv("EKA_CLIENT_SECRET")
}

// RecordsUsername returns the optional record provider username.
func RecordsUsername() string {
	return os.Getenv("EKA_USERNAME")
}

// RecordsPassword returns the optional record provider password.
func RecordsPassword() string {
	return os.Getenv("EKA_PASSWORD")
}
