// Package stt transcribes utterance audio for the voice gateway.
//
// The gateway consumes transcription through Transcribe, which never
// fails: unusable audio and provider faults come back as sentinel
// transcript strings the caller filters like any other transcript.
package stt

import (
	"context"
	"log/slog"
)

// Sentinel transcripts returned instead of errors. The voice protocol
// shows these to the client verbatim.
const (
	SentinelTooShort = "[Audio too short to transcribe]"
	SentinelFailed   = "[Could not transcribe audio - check server logs]"
)

// MinAudioBytes is the smallest payload worth sending to the
// transcription service. Anything below this is container framing, not
// speech.
const MinAudioBytes = 100

// Transcriber converts audio bytes to text.
type Transcriber interface {
	// Transcribe returns the transcript for the audio. The hint is a
	// MIME content type for the audio container.
	Transcribe(ctx context.Context, audio []byte, hint string) (string, error)

	// Close releases any resources held by the transcriber.
	Close() error
}

// Transcribe runs the transcriber and converts every failure into a
// sentinel transcript.
func Transcribe(ctx context.Context, t Transcriber, audio []byte, hint string) string {
	if len(audio) < MinAudioBytes {
		return SentinelTooShort
	}
	text, err := t.Transcribe(ctx, audio, hint)
	if err != nil {
		slog.Warn("transcription failed", "component", "stt", "error", err)
		return SentinelFailed
	}
	return text
}
