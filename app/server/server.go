package server

import (
	"context"
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gregoryshoniwa/voice-agent/app/agent"
	"github.com/gregoryshoniwa/voice-agent/app/api"
	"github.com/gregoryshoniwa/voice-agent/config"
	"github.com/gregoryshoniwa/voice-agent/model"
	"github.com/gregoryshoniwa/voice-agent/store"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	app    *fiber.App
	store  *store.PostgresStore
}

func New(cfg config.Config) *Server {
	return &Server{
		cfg:    cfg,
		logger: slog.Default(),
	}
}

// Run opens the store, wires the handlers and serves HTTP until Stop is
// called.
func (s *Server) Run() error {
	ctx := context.Background()

	pool, err := store.NewPostgresStore(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	s.store = pool

	if err := pool.Init(ctx); err != nil {
		return err
	}

	if err := os.MkdirAll(s.cfg.DocumentsDir, 0o755); err != nil {
		return err
	}

	ollama := model.NewOllamaClient(s.cfg.OllamaBaseURL, s.cfg.LLMModel, s.cfg.EmbeddingModel)
	whisper := model.NewWhisperClient(s.cfg.WhisperURL)
	transcriber := model.TranscriberChain{
		whisper,
		model.NewCommandTranscriber(s.cfg.TranscribeCommand),
	}
	synthesizer := model.NewCommandSynthesizer(s.cfg.TTSCommand, s.cfg.TTSVoice, s.cfg.TTSVoices)
	querySvc := agent.New(pool, ollama)

	var (
		checkHandler        = api.NewCheckHandler(pool, ollama, whisper)
		queryHandler        = api.NewQueryHandler(querySvc)
		chatHandler         = api.NewChatHandler(pool, querySvc, transcriber, synthesizer)
		speechHandler       = api.NewSpeechHandler(transcriber, synthesizer, s.cfg.TTSVoice)
		documentHandler     = api.NewDocumentHandler(pool, s.cfg.DocumentsDir)
		conversationHandler = api.NewConversationHandler(pool)
	)

	app := fiber.New(fiber.Config{
		ErrorHandler: api.ErrorHandler,
		BodyLimit:    50 * 1024 * 1024,
	})
	s.app = app

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Voice Agent API",
			"health":  "/api/health",
			"status":  "/api/status",
		})
	})

	apiGrp := app.Group("/api")
	apiGrp.Get("/health", checkHandler.HandleHealth)
	apiGrp.Get("/status", checkHandler.HandleStatus)
	apiGrp.Post("/chat", chatHandler.HandleChat)
	apiGrp.Post("/voice-chat", chatHandler.HandleVoiceChat)
	apiGrp.Post("/rag-query", queryHandler.HandleQuery)
	apiGrp.Post("/transcribe", speechHandler.HandleTranscribe)
	apiGrp.Post("/tts", speechHandler.HandleSynthesize)
	apiGrp.Get("/tts/voices", speechHandler.HandleVoices)
	apiGrp.Get("/documents", documentHandler.HandleList)
	apiGrp.Get("/documents/status", documentHandler.HandleStatusSummary)
	apiGrp.Post("/documents/upload", documentHandler.HandleUpload)
	apiGrp.Delete("/documents/:id", documentHandler.HandleDelete)
	apiGrp.Get("/conversations", conversationHandler.HandleList)
	apiGrp.Get("/conversations/:id", conversationHandler.HandleGet)

	// Unauthenticated legacy aliases kept for n8n workflows.
	app.Post("/voice-agent/process", chatHandler.HandleVoiceProcess)
	app.Post("/rag-query", queryHandler.HandleQuery)

	s.logger.Info("server listening", "addr", s.cfg.ServerAddr)
	return app.Listen(s.cfg.ServerAddr)
}

func (s *Server) Stop() {
	if s.app != nil {
		if err := s.app.Shutdown(); err != nil {
			s.logger.Error("error shutting down server", "error", err)
		}
	}
	if s.store != nil {
		s.store.Close()
	}
	s.logger.Info("server stopped")
}
