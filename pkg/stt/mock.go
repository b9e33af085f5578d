package stt

import (
	"context"
	"sync"
)

// Mock implements Transcriber for testing.
type Mock struct {
	// TranscribeFunc is called when Transcribe is invoked. Nil means
	// return Text.
	TranscribeFunc func(ctx context.Context, audio []byte, hint string) (string, error)

	// Text is the canned transcript returned by default.
	Text string

	mu     sync.Mutex
	audios [][]byte
}

// NewMock creates a mock returning the given transcript for every
// utterance.
func NewMock(text string) *Mock {
	return &Mock{Text: text}
}

// Transcribe records the audio and returns the canned transcript.
func (m *Mock) Transcribe(ctx context.Context, audio []byte, hint string) (string, error) {
	m.mu.Lock()
	buf := make([]byte, len(audio))
	copy(buf, audio)
	m.audios = append(m.audios, buf)
	m.mu.Unlock()

	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, audio, hint)
	}
	return m.Text, nil
}

// Close is a no-op.
func (m *Mock) Close() error { return nil }

// Audios returns the audio payloads passed to Transcribe, in order.
func (m *Mock) Audios() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.audios))
	copy(out, m.audios)
	return out
}

// CallCount returns how many utterances were transcribed.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.audios)
}

var _ Transcriber = (*Mock)(nil)
