// Package service runs the document indexing pipeline: extract text,
// request an embedding, upsert the indexed row. It reconciles pending
// rows on a fixed interval and reacts to filesystem events.
package service

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gregoryshoniwa/voice-agent/indexer/extract"
	"github.com/gregoryshoniwa/voice-agent/indexer/watch"
	"github.com/gregoryshoniwa/voice-agent/store"
	"github.com/gregoryshoniwa/voice-agent/types"
)

const (
	// MaxEmbedChars bounds the text sent to the embedding backend.
	MaxEmbedChars = 8000

	createDelay       = 2 * time.Second
	modifyDelay       = 1 * time.Second
	reconcileInterval = 10 * time.Second

	dbReadyRetries     = 30
	ollamaReadyRetries = 60
	readyBackoff       = 2 * time.Second
)

// Embedder is the slice of the model client the indexer needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Ready(ctx context.Context) (int, error)
}

// DocumentStore is the slice of the store the indexer needs.
type DocumentStore interface {
	EnsureProcessing(ctx context.Context, filePath, fileName, fileType string, fileSize int64) error
	SetDocumentError(ctx context.Context, filePath, message string) error
	MarkIndexed(ctx context.Context, filePath, content string, embedding []float32) error
	GetDocumentByPath(ctx context.Context, filePath string) (*types.Document, error)
	ListPending(ctx context.Context) ([]types.Document, error)
	Ping(ctx context.Context) error
}

type Service struct {
	logger      *slog.Logger
	store       DocumentStore
	embedder    Embedder
	watchFolder string

	// processed is a best-effort de-duplication cache. It is not
	// durable and correctness never depends on it; the store is the
	// source of truth.
	mu        sync.Mutex
	processed map[string]struct{}
}

func New(storer DocumentStore, embedder Embedder, watchFolder string) *Service {
	return &Service{
		logger:      slog.Default(),
		store:       storer,
		embedder:    embedder,
		watchFolder: watchFolder,
		processed:   make(map[string]struct{}),
	}
}

// Run blocks until the context is cancelled. It waits for the store and
// the embedding backend, reconciles pending rows, sweeps existing files,
// then watches for filesystem events while re-running the reconciliation
// pass every ten seconds.
func (s *Service) Run(ctx context.Context) error {
	s.waitForDatabase(ctx)
	s.waitForOllama(ctx)

	if err := os.MkdirAll(s.watchFolder, 0o755); err != nil {
		return err
	}

	s.logger.Info("checking for pending documents")
	s.processPending(ctx)

	s.logger.Info("checking existing files", "folder", s.watchFolder)
	s.indexExisting(ctx)

	watcher, err := watch.New(s.watchFolder)
	if err != nil {
		return err
	}
	watcher.OnCreate = func(path string) {
		go func() {
			// Let the writer finish before reading.
			time.Sleep(createDelay)
			s.IndexDocument(ctx, path)
		}()
	}
	watcher.OnModify = func(path string) {
		s.evict(path)
		go func() {
			time.Sleep(modifyDelay)
			s.IndexDocument(ctx, path)
		}()
	}
	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("watcher stopped", "error", err)
		}
	}()

	s.logger.Info("indexer ready", "folder", s.watchFolder)

	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.processPending(ctx)
		}
	}
}

// IndexDocument runs the pipeline for a single file path. Failures are
// recorded as document error states, never raised.
func (s *Service) IndexDocument(ctx context.Context, path string) {
	if s.isProcessed(path) {
		s.logger.Debug("already processed", "path", path)
		return
	}
	s.logger.Info("processing", "path", path)

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	fileType := filepath.Ext(path)

	if err := s.store.EnsureProcessing(ctx, path, filepath.Base(path), fileType, size); err != nil {
		s.logger.Warn("error updating status", "path", path, "error", err)
	}

	text := extract.Text(path)
	if text == "" {
		s.setError(ctx, path, "No text could be extracted from file")
		return
	}
	s.logger.Info("extracted text", "path", path, "chars", len(text))

	truncated := Truncate(text, MaxEmbedChars)
	if len(truncated) < len(text) {
		s.logger.Info("truncated before embedding", "path", path, "max_chars", MaxEmbedChars)
	}

	embedding, err := s.embedder.Embed(ctx, truncated)
	if err != nil {
		s.logger.Warn("embedding failed", "path", path, "error", err)
		s.setError(ctx, path, err.Error())
		return
	}
	s.logger.Info("embedding generated", "path", path, "dim", len(embedding))

	if err := s.store.MarkIndexed(ctx, path, truncated, embedding); err != nil {
		s.logger.Warn("error saving indexed document", "path", path, "error", err)
		return
	}

	s.markProcessed(path)
	s.logger.Info("successfully indexed", "file", filepath.Base(path))
}

// Truncate cuts text to at most max characters.
func Truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}

func (s *Service) processPending(ctx context.Context) {
	pending, err := s.store.ListPending(ctx)
	if err != nil {
		s.logger.Warn("error listing pending documents", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}
	s.logger.Info("found pending documents", "count", len(pending))

	for _, doc := range pending {
		if _, err := os.Stat(doc.FilePath); err != nil {
			s.logger.Warn("file not found", "path", doc.FilePath)
			s.setError(ctx, doc.FilePath, "File not found on disk")
			continue
		}
		s.IndexDocument(ctx, doc.FilePath)
	}
}

// indexExisting walks the watch folder and indexes anything not already
// indexed in the store.
func (s *Service) indexExisting(ctx context.Context) {
	err := filepath.WalkDir(s.watchFolder, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !extract.Supported(path) || extract.Hidden(path) {
			return nil
		}

		doc, err := s.store.GetDocumentByPath(ctx, path)
		if err == nil {
			switch doc.Status {
			case types.StatusIndexed:
				s.markProcessed(path)
				return nil
			case types.StatusPending:
				s.IndexDocument(ctx, path)
				return nil
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("error checking file", "path", path, "error", err)
		}

		s.IndexDocument(ctx, path)
		return nil
	})
	if err != nil {
		s.logger.Warn("error walking watch folder", "error", err)
	}
}

func (s *Service) setError(ctx context.Context, path, message string) {
	if err := s.store.SetDocumentError(ctx, path, message); err != nil {
		s.logger.Warn("error updating status", "path", path, "error", err)
	}
}

func (s *Service) waitForDatabase(ctx context.Context) {
	s.logger.Info("waiting for database")
	for i := 0; i < dbReadyRetries; i++ {
		if err := s.store.Ping(ctx); err == nil {
			s.logger.Info("database is ready")
			return
		}
		if i%5 == 0 {
			s.logger.Info("waiting for database", "attempt", i+1, "max", dbReadyRetries)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(readyBackoff):
		}
	}
	s.logger.Warn("database not ready, continuing anyway")
}

func (s *Service) waitForOllama(ctx context.Context) {
	s.logger.Info("waiting for ollama")
	for i := 0; i < ollamaReadyRetries; i++ {
		if n, err := s.embedder.Ready(ctx); err == nil {
			s.logger.Info("ollama is ready", "models", n)
			return
		}
		if i%10 == 0 {
			s.logger.Info("waiting for ollama", "attempt", i+1, "max", ollamaReadyRetries)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(readyBackoff):
		}
	}
	s.logger.Warn("ollama not available, continuing anyway")
}

func (s *Service) isProcessed(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[path]
	return ok
}

func (s *Service) markProcessed(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[path] = struct{}{}
}

func (s *Service) evict(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.processed, path)
}
