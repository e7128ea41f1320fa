package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gregoryshoniwa/voice-agent/store"
	"github.com/gregoryshoniwa/voice-agent/types"
)

type ConversationHandler struct {
	logger *slog.Logger
	store  store.DBStorer
}

func NewConversationHandler(storer store.DBStorer) *ConversationHandler {
	return &ConversationHandler{
		logger: slog.Default(),
		store:  storer,
	}
}

func (h *ConversationHandler) HandleList(c *fiber.Ctx) error {
	convs, err := h.store.ListConversations(c.Context())
	if err != nil {
		h.logger.Warn("error listing conversations", "error", err)
		return c.JSON([]types.ConversationSummary{})
	}
	if convs == nil {
		convs = []types.ConversationSummary{}
	}
	return c.JSON(convs)
}

func (h *ConversationHandler) HandleGet(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}

	conv, err := h.store.GetConversation(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound(id, "conversation")
		}
		return err
	}

	messages, err := h.store.ListMessages(c.Context(), id)
	if err != nil {
		return err
	}
	if messages == nil {
		messages = []types.Message{}
	}

	return c.JSON(fiber.Map{
		"id":         conv.ID,
		"title":      conv.Title,
		"created_at": conv.CreatedAt,
		"messages":   messages,
	})
}
