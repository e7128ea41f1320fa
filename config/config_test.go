package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvServerAddr, "")
	t.Setenv(EnvDatabaseURL, "")
	t.Setenv(EnvWatchFolder, "")
	t.Setenv(EnvDocumentsDir, "")
	t.Setenv(EnvTTSVoices, "")

	cfg := Load()
	assert.Equal(t, DefaultServerAddr, cfg.ServerAddr)
	assert.Equal(t, DefaultDatabaseURL, cfg.DatabaseURL)
	assert.Equal(t, DefaultDocumentsDir, cfg.DocumentsDir)
	assert.Equal(t, DefaultOllamaBaseURL, cfg.OllamaBaseURL)
	assert.Equal(t, DefaultLLMModel, cfg.LLMModel)
	assert.Equal(t, DefaultEmbeddingModel, cfg.EmbeddingModel)
	assert.Equal(t, DefaultTTSVoice, cfg.TTSVoice)
	assert.Equal(t, []string{DefaultTTSVoice}, cfg.TTSVoices)
}

func TestLoad_WatchFolderFollowsDocumentsDir(t *testing.T) {
	t.Setenv(EnvDocumentsDir, "/data/docs")
	t.Setenv(EnvWatchFolder, "")

	cfg := Load()
	assert.Equal(t, "/data/docs", cfg.WatchFolder)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv(EnvWatchFolder, "/watch")
	t.Setenv(EnvDocumentsDir, "/docs")
	t.Setenv(EnvOllamaBaseURL, "http://ollama:11434")
	t.Setenv(EnvTTSVoices, "voice-a, voice-b, ")

	cfg := Load()
	assert.Equal(t, "/watch", cfg.WatchFolder)
	assert.Equal(t, "/docs", cfg.DocumentsDir)
	assert.Equal(t, "http://ollama:11434", cfg.OllamaBaseURL)
	assert.Equal(t, []string{"voice-a", "voice-b"}, cfg.TTSVoices)
}
