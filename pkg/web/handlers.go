package web

import (
	"context"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/medifox/go-medifox/pkg/gateway"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	PatientID string `json:"patient_id"`
}

// ChatResponse is the reply from POST /api/chat.
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

// handleHealth reports service liveness.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "medifox",
	})
}

// handleChat runs one text turn through the agent.
func (s *Server) handleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "message is required",
		})
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	answer, _, err := s.agent.ProcessInput(c.Context(), req.Message, req.SessionID, req.PatientID)
	if err != nil {
		s.logger.Error("chat turn failed", "session_id", req.SessionID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "assistant is unavailable",
		})
	}

	return c.JSON(ChatResponse{Response: answer, SessionID: req.SessionID})
}

// handleVoiceWS runs a voice session over an upgraded connection. The
// handler blocks until the client disconnects.
func (s *Server) handleVoiceWS(c *websocket.Conn) {
	if s.transcriber == nil {
		s.logger.Warn("voice session rejected, transcription not configured")
		c.WriteMessage(gateway.TextMessage, []byte(gateway.TagWarning+"Voice is not configured on this server."))
		c.Close()
		return
	}

	patientID := c.Query("patient_id")
	responder := gateway.ResponderFunc(func(ctx context.Context, input, sessionID string) (string, error) {
		answer, _, err := s.agent.ProcessInput(ctx, input, sessionID, patientID)
		return answer, err
	})

	session := gateway.NewSession(c, responder, s.transcriber, s.synth,
		gateway.WithTranscoder(s.transcoder),
		gateway.WithStore(s.store),
		gateway.WithLogger(s.logger),
	)
	session.Run(context.Background())
}
