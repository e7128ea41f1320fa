package api

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gregoryshoniwa/voice-agent/model"
	"github.com/gregoryshoniwa/voice-agent/store"
	"github.com/gregoryshoniwa/voice-agent/types"
)

// titleMaxChars bounds conversation titles derived from the first user
// utterance.
const titleMaxChars = 50

type ChatHandler struct {
	logger      *slog.Logger
	store       store.DBStorer
	agent       QueryService
	transcriber model.Transcriber
	synthesizer model.Synthesizer
}

func NewChatHandler(storer store.DBStorer, querySvc QueryService, transcriber model.Transcriber, synthesizer model.Synthesizer) *ChatHandler {
	return &ChatHandler{
		logger:      slog.Default(),
		store:       storer,
		agent:       querySvc,
		transcriber: transcriber,
		synthesizer: synthesizer,
	}
}

type chatResponse struct {
	ConversationID string `json:"conversation_id"`
	UserText       string `json:"user_text"`
	Answer         string `json:"answer"`
	ContextCount   int    `json:"context_count"`
	AudioData      string `json:"audio_data,omitempty"`
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var params types.ChatParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	userText := strings.TrimSpace(params.Message)
	if userText == "" {
		return NewError(fiber.StatusBadRequest, "Message cannot be empty")
	}

	result, err := h.agent.Query(c.Context(), userText, 0)
	if err != nil {
		return err
	}

	conversationID := h.persistTurn(c.Context(), params.ConversationID, userText, result.Answer)

	return c.JSON(chatResponse{
		ConversationID: conversationID,
		UserText:       userText,
		Answer:         result.Answer,
		ContextCount:   result.ContextCount,
	})
}

// HandleVoiceChat chains speech-to-text, the query service and optional
// speech synthesis, then logs the turn.
func (h *ChatHandler) HandleVoiceChat(c *fiber.Ctx) error {
	var params types.VoiceChatParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	audio, err := base64.StdEncoding.DecodeString(params.AudioData)
	if err != nil {
		return NewError(fiber.StatusBadRequest, "invalid base64 audio data")
	}

	userText, err := h.transcriber.Transcribe(c.Context(), audio)
	if err != nil {
		h.logger.Warn("transcription failed", "error", err)
		return c.JSON(fiber.Map{"error": "Speech recognition not available", "user_text": ""})
	}
	if userText == "" {
		return c.JSON(fiber.Map{"error": "No speech detected", "user_text": ""})
	}

	result, err := h.agent.Query(c.Context(), userText, 0)
	if err != nil {
		return err
	}

	var audioData string
	if params.AudioResponse && h.synthesizer.Available() {
		if out, synthErr := h.synthesizer.Synthesize(c.Context(), result.Answer, params.Voice); synthErr == nil {
			audioData = base64.StdEncoding.EncodeToString(out)
		} else {
			h.logger.Warn("synthesis failed", "error", synthErr)
		}
	}

	conversationID := h.persistTurn(c.Context(), params.ConversationID, userText, result.Answer)

	return c.JSON(chatResponse{
		ConversationID: conversationID,
		UserText:       userText,
		Answer:         result.Answer,
		ContextCount:   result.ContextCount,
		AudioData:      audioData,
	})
}

// HandleVoiceProcess is the legacy /voice-agent/process alias: transcribe
// plus query, without conversation persistence.
func (h *ChatHandler) HandleVoiceProcess(c *fiber.Ctx) error {
	var params types.TranscribeParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	audio, err := fetchAudio(c.Context(), params)
	if err != nil {
		return err
	}

	userText, err := h.transcriber.Transcribe(c.Context(), audio)
	if err != nil {
		h.logger.Warn("transcription failed", "error", err)
		return c.JSON(fiber.Map{"error": "Speech recognition not available", "user_text": ""})
	}
	if userText == "" {
		return c.JSON(fiber.Map{"error": "No speech detected", "user_text": ""})
	}

	result, err := h.agent.Query(c.Context(), userText, 0)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"conversation_id": c.Query("conversation_id"),
		"user_text":       userText,
		"answer":          result.Answer,
		"context_docs":    result.ContextDocs,
		"context_count":   result.ContextCount,
	})
}

// persistTurn appends the user and assistant messages, creating the
// conversation first when none is given. Persistence is best effort: a
// store failure is logged and the turn is still answered.
func (h *ChatHandler) persistTurn(ctx context.Context, conversationID, userText, answer string) string {
	var convID uuid.UUID
	if conversationID == "" {
		conv, err := h.store.CreateConversation(ctx, truncateTitle(userText))
		if err != nil {
			h.logger.Warn("error creating conversation", "error", err)
			return ""
		}
		convID = conv.ID
	} else {
		parsed, err := uuid.Parse(conversationID)
		if err != nil {
			h.logger.Warn("invalid conversation id", "id", conversationID)
			return ""
		}
		convID = parsed
	}

	if err := h.store.AppendMessage(ctx, convID, types.RoleUser, userText); err != nil {
		h.logger.Warn("error saving user message", "error", err)
	}
	if err := h.store.AppendMessage(ctx, convID, types.RoleAssistant, answer); err != nil {
		h.logger.Warn("error saving assistant message", "error", err)
	}
	return convID.String()
}

func truncateTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleMaxChars {
		return text
	}
	return string(runes[:titleMaxChars]) + "..."
}
