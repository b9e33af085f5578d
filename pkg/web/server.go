// Package web exposes the assistant over HTTP: a JSON chat endpoint,
// a health probe, and the real-time voice websocket.
package web

import (
	"errors"
	"log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/medifox/go-medifox/pkg/agent"
	"github.com/medifox/go-medifox/pkg/memory"
	"github.com/medifox/go-medifox/pkg/stt"
	"github.com/medifox/go-medifox/pkg/tts"
)

// Server wires the agent and voice pipeline into a fiber app.
type Server struct {
	app  *fiber.App
	port string

	agent       *agent.Agent
	transcriber stt.Transcriber
	synth       tts.Provider
	transcoder  stt.Transcoder
	store       memory.ConversationStore
	logger      *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithPort sets the listen port. Default is 8000.
func WithPort(port string) ServerOption {
	return func(s *Server) { s.port = port }
}

// WithVoice enables the voice websocket with the given speech services.
func WithVoice(transcriber stt.Transcriber, synth tts.Provider) ServerOption {
	return func(s *Server) {
		s.transcriber = transcriber
		s.synth = synth
	}
}

// WithTranscoder sets the audio transcoder for incoming voice payloads.
func WithTranscoder(t stt.Transcoder) ServerOption {
	return func(s *Server) { s.transcoder = t }
}

// WithStore sets the conversation store shared with voice sessions.
func WithStore(store memory.ConversationStore) ServerOption {
	return func(s *Server) { s.store = store }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer creates the HTTP server around an agent.
func NewServer(a *agent.Agent, opts ...ServerOption) (*Server, error) {
	if a == nil {
		return nil, errors.New("web: agent is required")
	}

	s := &Server{
		agent:  a,
		port:   "8000",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "web")

	app := fiber.New(fiber.Config{
		AppName:               "MediFox",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/health", s.handleHealth)

	api := app.Group("/api")
	api.Post("/chat", s.handleChat)

	// Voice socket. Non-upgrade requests get 426.
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/voice-chat", websocket.New(s.handleVoiceWS))

	s.app = app
	return s, nil
}

// App returns the underlying fiber app, for tests and embedding.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start blocks serving HTTP on the configured port.
func (s *Server) Start() error {
	s.logger.Info("server listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
