package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

type QueryParams struct {
	Query string `json:"query" validate:"required"`
	TopK  int    `json:"top_k"`
}

type ChatParams struct {
	Message        string `json:"message" validate:"required"`
	ConversationID string `json:"conversation_id"`
}

type VoiceChatParams struct {
	AudioData      string `json:"audio_data" validate:"required,base64"`
	ConversationID string `json:"conversation_id"`
	AudioResponse  bool   `json:"audio_response"`
	Voice          string `json:"voice"`
}

// TranscribeParams accepts either a URL to fetch or inline base64 audio.
type TranscribeParams struct {
	AudioURL  string `json:"audio_url" validate:"omitempty,url"`
	AudioData string `json:"audio_data" validate:"omitempty,base64"`
}

type SynthesizeParams struct {
	Text  string `json:"text" validate:"required"`
	Voice string `json:"voice"`
}

func (p *QueryParams) Validate() map[string]string      { return validateStruct(p) }
func (p *ChatParams) Validate() map[string]string       { return validateStruct(p) }
func (p *VoiceChatParams) Validate() map[string]string  { return validateStruct(p) }
func (p *SynthesizeParams) Validate() map[string]string { return validateStruct(p) }

func (p *TranscribeParams) Validate() map[string]string {
	if p.AudioURL == "" && p.AudioData == "" {
		return map[string]string{"audio_data": "either audio_url or audio_data required"}
	}
	return validateStruct(p)
}

func validateStruct(params any) map[string]string {
	validate := validator.New()
	if err := validate.Struct(params); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}
