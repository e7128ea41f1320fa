package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	transcribeTimeout = 60 * time.Second
	probeTimeout      = 3 * time.Second
	synthesizeTimeout = 60 * time.Second
)

var ErrSpeechUnavailable = errors.New("speech recognition not available")

// Transcriber converts audio bytes into text. Implementations are
// capability providers: a remote service first, a local command second.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
	Available() bool
}

// Synthesizer converts text into audio bytes for a given voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
	Voices() []string
	Available() bool
}

// WhisperClient talks to a whisper-asr-webservice compatible endpoint.
type WhisperClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewWhisperClient(baseURL string) *WhisperClient {
	return &WhisperClient{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
	}
}

func (w *WhisperClient) Available() bool { return w.baseURL != "" }

type asrResponse struct {
	Text string `json:"text"`
}

func (w *WhisperClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if err := mw.WriteField("language", "en"); err != nil {
		return "", err
	}
	if err := mw.WriteField("output", "json"); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/asr", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("whisper error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var out asrResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Text), nil
}

// Probe reports whether the whisper service answers at all. A 404 on the
// root path still counts as reachable.
func (w *WhisperClient) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("whisper probe: status %d", resp.StatusCode)
	}
	return nil
}

// CommandTranscriber shells out to a local speech model binary. The
// command receives the audio file path as its only argument and is
// expected to print the transcript on stdout.
type CommandTranscriber struct {
	command string
}

func NewCommandTranscriber(command string) *CommandTranscriber {
	return &CommandTranscriber{command: command}
}

func (t *CommandTranscriber) Available() bool { return t.command != "" }

func (t *CommandTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if !t.Available() {
		return "", ErrSpeechUnavailable
	}

	tmp, err := os.CreateTemp("", "voice-agent-*.wav")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(audio); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, t.command, tmp.Name()).Output()
	if err != nil {
		return "", fmt.Errorf("local transcriber failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// TranscriberChain tries each transcriber in order and returns the first
// result. All providers failing yields ErrSpeechUnavailable.
type TranscriberChain []Transcriber

func (c TranscriberChain) Available() bool {
	for _, t := range c {
		if t.Available() {
			return true
		}
	}
	return false
}

func (c TranscriberChain) Transcribe(ctx context.Context, audio []byte) (string, error) {
	var lastErr error
	for _, t := range c {
		if !t.Available() {
			continue
		}
		text, err := t.Transcribe(ctx, audio)
		if err == nil {
			return text, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return "", fmt.Errorf("%w: %s", ErrSpeechUnavailable, lastErr)
	}
	return "", ErrSpeechUnavailable
}

// CommandSynthesizer shells out to a local TTS binary (piper style). Text
// arrives on stdin, the voice identifier as --voice, audio leaves on
// stdout.
type CommandSynthesizer struct {
	command      string
	defaultVoice string
	voices       []string
}

func NewCommandSynthesizer(command, defaultVoice string, voices []string) *CommandSynthesizer {
	return &CommandSynthesizer{
		command:      command,
		defaultVoice: defaultVoice,
		voices:       voices,
	}
}

func (s *CommandSynthesizer) Available() bool { return s.command != "" }

func (s *CommandSynthesizer) Voices() []string { return s.voices }

func (s *CommandSynthesizer) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if !s.Available() {
		return nil, errors.New("speech synthesis not available")
	}
	if voice == "" {
		voice = s.defaultVoice
	}

	ctx, cancel := context.WithTimeout(ctx, synthesizeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.command, "--voice", voice)
	cmd.Stdin = strings.NewReader(text)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}
	return stdout.Bytes(), nil
}
