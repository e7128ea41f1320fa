package api

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gregoryshoniwa/voice-agent/store"
)

// Readiness is implemented by the ollama client.
type Readiness interface {
	Ready(ctx context.Context) (int, error)
}

// Prober is implemented by the whisper client.
type Prober interface {
	Probe(ctx context.Context) error
	Available() bool
}

type CheckHandler struct {
	store   store.DBStorer
	ollama  Readiness
	whisper Prober
}

func NewCheckHandler(storer store.DBStorer, ollama Readiness, whisper Prober) *CheckHandler {
	return &CheckHandler{
		store:   storer,
		ollama:  ollama,
		whisper: whisper,
	}
}

func (h *CheckHandler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "voice-agent-api",
		"version": "2.0",
	})
}

// HandleStatus probes every external collaborator and reports each one
// independently; a down backend never fails the request itself.
func (h *CheckHandler) HandleStatus(c *fiber.Ctx) error {
	ctx := c.Context()
	status := fiber.Map{
		"api":      "ok",
		"database": "unknown",
		"ollama":   "unknown",
		"whisper":  "unknown",
	}

	if err := h.store.Ping(ctx); err != nil {
		status["database"] = "error: " + truncateError(err)
	} else {
		status["database"] = "ok"
	}

	if n, err := h.ollama.Ready(ctx); err != nil {
		status["ollama"] = "error: " + truncateError(err)
	} else {
		status["ollama"] = fmt.Sprintf("ok (%d models)", n)
	}

	if !h.whisper.Available() {
		status["whisper"] = "not configured"
	} else if err := h.whisper.Probe(ctx); err != nil {
		status["whisper"] = "not configured"
	} else {
		status["whisper"] = "ok"
	}

	return c.JSON(status)
}

func truncateError(err error) string {
	msg := err.Error()
	if len(msg) > 50 {
		return msg[:50]
	}
	return msg
}
