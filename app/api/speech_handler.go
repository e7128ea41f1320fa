package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gregoryshoniwa/voice-agent/model"
	"github.com/gregoryshoniwa/voice-agent/types"
)

const audioFetchTimeout = 30 * time.Second

type SpeechHandler struct {
	transcriber  model.Transcriber
	synthesizer  model.Synthesizer
	defaultVoice string
}

func NewSpeechHandler(transcriber model.Transcriber, synthesizer model.Synthesizer, defaultVoice string) *SpeechHandler {
	return &SpeechHandler{
		transcriber:  transcriber,
		synthesizer:  synthesizer,
		defaultVoice: defaultVoice,
	}
}

func (h *SpeechHandler) HandleTranscribe(c *fiber.Ctx) error {
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

	text, err := h.transcriber.Transcribe(c.Context(), audio)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"text": text})
}

func (h *SpeechHandler) HandleSynthesize(c *fiber.Ctx) error {
	var params types.SynthesizeParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	if !h.synthesizer.Available() {
		return ErrServiceUnavailable("speech synthesis not available")
	}

	voice := params.Voice
	if voice == "" {
		voice = h.defaultVoice
	}

	audio, err := h.synthesizer.Synthesize(c.Context(), params.Text, voice)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"audio_data": base64.StdEncoding.EncodeToString(audio),
		"voice":      voice,
	})
}

func (h *SpeechHandler) HandleVoices(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"voices":  h.synthesizer.Voices(),
		"default": h.defaultVoice,
	})
}

// fetchAudio resolves the audio bytes from either an URL or the inline
// base64 payload.
func fetchAudio(ctx context.Context, params types.TranscribeParams) ([]byte, error) {
	if params.AudioURL != "" {
		ctx, cancel := context.WithTimeout(ctx, audioFetchTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, params.AudioURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch audio: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, NewError(fiber.StatusBadRequest, fmt.Sprintf("audio fetch failed: status %d", resp.StatusCode))
		}
		return io.ReadAll(resp.Body)
	}

	audio, err := base64.StdEncoding.DecodeString(params.AudioData)
	if err != nil {
		return nil, NewError(fiber.StatusBadRequest, "invalid base64 audio data")
	}
	return audio, nil
}
