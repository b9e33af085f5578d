package gateway

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medifox/go-medifox/pkg/memory"
	"github.com/medifox/go-medifox/pkg/stt"
	"github.com/medifox/go-medifox/pkg/tts"
)

// DefaultInactivityWindow is how long the gateway waits for the next
// fragment before treating the buffered audio as a complete utterance.
const DefaultInactivityWindow = 2 * time.Second

// Conn is the frame transport for one voice connection. Both
// gorilla/websocket and gofiber's contrib websocket connections satisfy
// it directly.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
}

// Responder produces the assistant's reply for one transcript.
type Responder interface {
	Respond(ctx context.Context, input, sessionID string) (string, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, input, sessionID string) (string, error)

func (f ResponderFunc) Respond(ctx context.Context, input, sessionID string) (string, error) {
	return f(ctx, input, sessionID)
}

// frame is one received websocket message.
type frame struct {
	kind int
	data []byte
	err  error
}

// Session drives the state machine for one voice connection.
type Session struct {
	id          string
	conn        Conn
	responder   Responder
	transcriber stt.Transcriber
	synth       tts.Provider
	transcoder  stt.Transcoder
	store       memory.ConversationStore
	window      time.Duration
	logger      *slog.Logger

	stateMu      sync.RWMutex
	state        State
	pausePending bool
	frames       chan frame
	done         chan struct{}
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionID overrides the generated session identifier.
func WithSessionID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

// WithTranscoder enables best-effort audio conversion before
// transcription.
func WithTranscoder(t stt.Transcoder) SessionOption {
	return func(s *Session) { s.transcoder = t }
}

// WithStore attaches the conversation store so the session's context is
// discarded on disconnect.
func WithStore(store memory.ConversationStore) SessionOption {
	return func(s *Session) { s.store = store }
}

// WithInactivityWindow overrides the utterance boundary window.
func WithInactivityWindow(d time.Duration) SessionOption {
	return func(s *Session) { s.window = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// NewSession creates a session over an accepted connection.
func NewSession(conn Conn, responder Responder, transcriber stt.Transcriber, synth tts.Provider, opts ...SessionOption) *Session {
	s := &Session{
		id:          uuid.New().String(),
		conn:        conn,
		responder:   responder,
		transcriber: transcriber,
		synth:       synth,
		window:      DefaultInactivityWindow,
		logger:      slog.Default(),
		state:       StateListening,
		frames:      make(chan frame),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "gateway", "session_id", s.id)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current connection state.
func (s *Session) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()
}

// Run processes the connection until it disconnects or the context is
// cancelled. The session's audio buffer and conversation context are
// discarded on exit.
func (s *Session) Run(ctx context.Context) {
	defer s.cleanup()

	// Reads happen on one goroutine so the buffering loop can race a
	// receive against the inactivity timer. The goroutine exits when
	// the caller closes the connection.
	go s.readFrames()

	s.logger.Info("voice session started")

	for {
		select {
		case <-ctx.Done():
			return
		case f := <-s.frames:
			if f.err != nil {
				s.logger.Info("voice session disconnected", "error", f.err)
				return
			}
			if done := s.handleFrame(ctx, f); done {
				return
			}
		}
	}
}

func (s *Session) readFrames() {
	for {
		kind, data, err := s.conn.ReadMessage()
		select {
		case s.frames <- frame{kind: kind, data: data, err: err}:
		case <-s.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// handleFrame processes one frame in the listening or speaking state.
// It reports true when the connection should end.
func (s *Session) handleFrame(ctx context.Context, f frame) bool {
	if f.kind == TextMessage {
		s.handleControl(string(f.data))
		return false
	}
	if f.kind != BinaryMessage {
		return false
	}

	if s.State() == StateSpeaking {
		// Playback is in progress; the client should not be capturing.
		s.logger.Debug("dropping audio fragment while speaking", "bytes", len(f.data))
		return false
	}

	utterance, disconnected := s.bufferUtterance(ctx, f.data)
	if disconnected {
		return true
	}
	if utterance != nil {
		s.handleUtterance(ctx, utterance)
	}
	return false
}

func (s *Session) handleControl(msg string) {
	switch msg {
	case TokenClientDonePlaying:
		// Only meaningful as a playback acknowledgement.
		if s.State() != StateSpeaking {
			s.logger.Debug("ignoring playback ack outside speaking state")
			return
		}
		s.setState(StateListening)
		s.sendStatus(StatusClientReady)
	case TokenPauseProcessing:
		// The next flush is a mid-conversation pause, not end of turn.
		s.pausePending = true
	default:
		s.logger.Debug("ignoring text frame", "message", msg)
	}
}

// bufferUtterance accumulates fragments starting with seed until the
// inactivity window passes with no new audio. A fragment that is
// already queued when the window elapses still joins the utterance; the
// window only closes on a quiet timeout.
func (s *Session) bufferUtterance(ctx context.Context, seed []byte) (utterance []byte, disconnected bool) {
	s.setState(StateBuffering)
	defer func() {
		if s.State() == StateBuffering {
			s.setState(StateListening)
		}
	}()

	chunks := [][]byte{seed}
	timer := time.NewTimer(s.window)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, true
		case f := <-s.frames:
			if f.err != nil {
				return nil, true
			}
			if f.kind == BinaryMessage {
				chunks = append(chunks, f.data)
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(s.window)
				continue
			}
			if f.kind == TextMessage {
				s.handleControl(string(f.data))
			}
		case <-timer.C:
			// Tie-break: prefer a fragment that raced the timeout.
			select {
			case f := <-s.frames:
				if f.err != nil {
					return nil, true
				}
				if f.kind == BinaryMessage {
					chunks = append(chunks, f.data)
					timer.Reset(s.window)
					continue
				}
				if f.kind == TextMessage {
					s.handleControl(string(f.data))
				}
			default:
			}
			s.logger.Debug("utterance boundary", "fragments", len(chunks))
			return bytes.Join(chunks, nil), false
		}
	}
}

// handleUtterance runs one buffered utterance through transcription,
// the agent, and synthesis.
func (s *Session) handleUtterance(ctx context.Context, utterance []byte) {
	isPause := s.pausePending
	s.pausePending = false

	audio, hint, converted := stt.ConvertBestEffort(ctx, s.transcoder, utterance, "audio/webm")
	if !converted {
		s.sendText(TagWarning + WarningConversionFailed)
	}

	transcript := stt.Transcribe(ctx, s.transcriber, audio, hint)
	s.sendText(TagTranscript + transcript)

	if skippable(transcript) {
		if isPause {
			s.sendStatus(StatusPauseProcessed)
		} else {
			s.sendStatus(StatusSkippingEmpty)
		}
		s.setState(StateListening)
		return
	}

	answer, err := s.responder.Respond(ctx, transcript, s.id)
	if err != nil {
		s.logger.Error("agent turn failed", "error", err)
		s.sendText(TagWarning + "Assistant is unavailable, please try again.")
		s.setState(StateListening)
		return
	}
	s.sendText(TagAI + answer)

	s.setState(StateSpeaking)
	s.sendStatus(StatusAISpeaking)

	speech := tts.SynthesizeBestEffort(ctx, s.synth, answer)
	if err := s.conn.WriteMessage(BinaryMessage, speech); err != nil {
		s.logger.Warn("failed to deliver audio", "error", err)
	}

	// Best effort: the socket may already be closed by the client.
	s.sendStatus(StatusAIDoneSpeaking)

	if isPause {
		// The conversation continues without a playback acknowledgement.
		s.sendStatus(StatusPauseProcessed)
		s.setState(StateListening)
	}
}

func (s *Session) sendStatus(status string) {
	s.sendText(TagStatus + status)
}

func (s *Session) sendText(msg string) {
	if err := s.conn.WriteMessage(TextMessage, []byte(msg)); err != nil {
		s.logger.Debug("failed to send notification", "message", msg, "error", err)
	}
}

func (s *Session) cleanup() {
	close(s.done)
	if s.store != nil {
		if err := s.store.Delete(s.id); err != nil {
			s.logger.Warn("failed to discard session context", "error", err)
		}
	}
	s.logger.Info("voice session closed")
}
