// Package api exposes the agent over HTTP.
package api

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cortexre/cortexre/pkg/agent"
)

// Invoker runs one turn of the agent.
type Invoker interface {
	Invoke(ctx context.Context, query, sessionID string) (*agent.Result, error)
}

// ChatRequest is the POST /api/chat body.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// ChatResponse is the POST /api/chat reply.
type ChatResponse struct {
	Answer        string       `json:"answer"`
	SessionID     string       `json:"session_id"`
	Blocked       bool         `json:"blocked"`
	BlockReason   string       `json:"block_reason,omitempty"`
	RevisionCount int          `json:"revision_count"`
	Steps         []agent.Step `json:"steps"`
}

// Server wires the agent into a fiber app.
type Server struct {
	app     *fiber.App
	invoker Invoker
}

// NewServer builds the HTTP server around invoker.
func NewServer(invoker Invoker) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "cortexre",
			DisableStartupMessage: true,
		}),
		invoker: invoker,
	}
	s.app.Use(recover.New())
	s.app.Get("/healthz", s.handleHealth)
	s.app.Post("/api/chat", s.handleChat)
	return s
}

// Listen blocks serving on addr.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "message is required"})
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	result, err := s.invoker.Invoke(c.UserContext(), req.Message, sessionID)
	if err != nil {
		// Internals stay in the logs; clients get a generic failure.
		log.Error().Err(err).Str("session_id", sessionID).Msg("chat request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "the assistant could not process your request, please try again",
		})
	}

	return c.JSON(ChatResponse{
		Answer:        result.FinalAnswer,
		SessionID:     sessionID,
		Blocked:       result.Blocked,
		BlockReason:   result.BlockReason,
		RevisionCount: result.RevisionCount,
		Steps:         result.Steps,
	})
}
