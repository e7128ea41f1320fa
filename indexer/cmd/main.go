package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gregoryshoniwa/voice-agent/config"
	"github.com/gregoryshoniwa/voice-agent/indexer/service"
	"github.com/gregoryshoniwa/voice-agent/model"
	"github.com/gregoryshoniwa/voice-agent/store"
	"github.com/joho/godotenv"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}
}

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := connectStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("error connecting to Postgres: ", err)
	}
	defer pool.Close()

	if err := pool.Init(ctx); err != nil {
		log.Fatal("error creating tables: ", err)
	}

	ollama := model.NewOllamaClient(cfg.OllamaBaseURL, cfg.LLMModel, cfg.EmbeddingModel)

	svc := service.New(pool, ollama, cfg.WatchFolder)
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("indexer error: ", err)
	}
	log.Println("indexer stopped")
}

// connectStore retries the initial connection so the indexer can start
// before the database does.
func connectStore(ctx context.Context, connStr string) (*store.PostgresStore, error) {
	const retries = 30

	var lastErr error
	for i := 0; i < retries; i++ {
		pool, err := store.NewPostgresStore(ctx, connStr)
		if err == nil {
			return pool, nil
		}
		lastErr = err
		if i%5 == 0 {
			log.Printf("waiting for database (%d/%d): %v", i+1, retries, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil, lastErr
}
