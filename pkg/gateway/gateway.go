// Package gateway implements the real-time voice connection: it
// buffers microphone audio into utterances, runs them through
// transcription and the conversational agent, and speaks the reply
// back over the same socket.
//
// Wire protocol: text frames are either client control tokens
// (CLIENT_DONE_PLAYING, PAUSE_PROCESSING) or tagged server
// notifications ([Transcript], [AI], [Status], [Warning]); binary
// frames carry audio in both directions.
package gateway

import (
	"strings"
)

// Frame types, matching the websocket opcode values used by both
// gorilla/websocket and gofiber's contrib websocket.
const (
	TextMessage   = 1
	BinaryMessage = 2
)

// Client control tokens.
const (
	TokenClientDonePlaying = "CLIENT_DONE_PLAYING"
	TokenPauseProcessing   = "PAUSE_PROCESSING"
)

// Server notification tags.
const (
	TagTranscript = "[Transcript] "
	TagAI         = "[AI] "
	TagStatus     = "[Status] "
	TagWarning    = "[Warning] "
)

// Status notification bodies.
const (
	StatusClientReady    = "CLIENT_READY"
	StatusSkippingEmpty  = "SKIPPING_EMPTY_INPUT"
	StatusPauseProcessed = "PAUSE_PROCESSED"
	StatusAISpeaking     = "AI_SPEAKING"
	StatusAIDoneSpeaking = "AI_DONE_SPEAKING"
)

// WarningConversionFailed is sent when audio transcoding fails and the
// original bytes are used instead.
const WarningConversionFailed = "Audio conversion failed, using original format."

// State is the connection state.
type State int

const (
	// StateListening waits for the first fragment of an utterance.
	StateListening State = iota

	// StateBuffering accumulates fragments until the inactivity window
	// elapses.
	StateBuffering

	// StateSpeaking delivers synthesized audio; incoming fragments are
	// discarded until the client acknowledges playback.
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateBuffering:
		return "buffering"
	case StateSpeaking:
		return "speaking"
	}
	return "unknown"
}

// transcriptStoplist holds transcripts that short-circuit the turn:
// transcription sentinels and filler sounds the model should not see.
var transcriptStoplist = map[string]bool{
	"[could not transcribe audio]":     true,
	"[audio too short to transcribe]":  true,
	"you":                              true,
	"um":                               true,
	"uh":                               true,
	"hmm":                              true,
}

// skippable reports whether a transcript is noise rather than speech.
// Empty and sub-3-character transcripts are noise, as is anything on
// the stoplist or carrying a transcription sentinel.
func skippable(transcript string) bool {
	trimmed := strings.TrimSpace(transcript)
	if len(trimmed) < 3 {
		return true
	}
	lower := strings.ToLower(trimmed)
	if transcriptStoplist[lower] {
		return true
	}
	// Sentinel transcripts vary in wording but keep the bracket form.
	return strings.HasPrefix(lower, "[audio too short") || strings.HasPrefix(lower, "[could not transcribe")
}
