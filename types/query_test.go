package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryParamsValidate(t *testing.T) {
	params := &QueryParams{Query: "what is this"}
	assert.Nil(t, params.Validate())

	empty := &QueryParams{}
	errs := empty.Validate()
	assert.Contains(t, errs, "Query")
}

func TestVoiceChatParamsValidate(t *testing.T) {
	valid := &VoiceChatParams{AudioData: "aGVsbG8="}
	assert.Nil(t, valid.Validate())

	missing := &VoiceChatParams{}
	assert.Contains(t, missing.Validate(), "AudioData")

	garbage := &VoiceChatParams{AudioData: "not base64!!!"}
	assert.Contains(t, garbage.Validate(), "AudioData")
}

func TestTranscribeParamsValidate(t *testing.T) {
	neither := &TranscribeParams{}
	assert.NotNil(t, neither.Validate())

	byURL := &TranscribeParams{AudioURL: "http://example.com/a.wav"}
	assert.Nil(t, byURL.Validate())

	byData := &TranscribeParams{AudioData: "aGVsbG8="}
	assert.Nil(t, byData.Validate())
}

func TestSynthesizeParamsValidate(t *testing.T) {
	assert.Nil(t, (&SynthesizeParams{Text: "hello"}).Validate())
	assert.Contains(t, (&SynthesizeParams{}).Validate(), "Text")
}
