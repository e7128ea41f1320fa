package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gregoryshoniwa/voice-agent/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

var ErrNotFound = errors.New("not found")

type DBStorer interface {
	// Document lifecycle
	EnsureProcessing(ctx context.Context, filePath, fileName, fileType string, fileSize int64) error
	SetDocumentError(ctx context.Context, filePath, message string) error
	MarkIndexed(ctx context.Context, filePath, content string, embedding []float32) error
	CreateDocument(ctx context.Context, doc *types.Document) error
	GetDocumentByPath(ctx context.Context, filePath string) (*types.Document, error)
	GetDocumentByID(ctx context.Context, id uuid.UUID) (*types.Document, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) (*types.Document, error)
	ListDocuments(ctx context.Context) ([]types.Document, error)
	ListPending(ctx context.Context) ([]types.Document, error)
	StatusSummary(ctx context.Context) (*types.StatusSummary, error)

	// Retrieval
	SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]types.Document, error)
	ListIndexed(ctx context.Context, limit int) ([]types.Document, error)

	// Conversations
	CreateConversation(ctx context.Context, title string) (*types.Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*types.Conversation, error)
	ListConversations(ctx context.Context) ([]types.ConversationSummary, error)
	AppendMessage(ctx context.Context, conversationID uuid.UUID, role types.MessageRole, content string) error
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]types.Message, error)

	Ping(ctx context.Context) error
}

type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool:   pool,
		logger: slog.Default(),
	}, nil
}

func (p *PostgresStore) Init(ctx context.Context) error {
	query := `
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		file_path TEXT NOT NULL UNIQUE,
		file_name TEXT NOT NULL,
		file_type TEXT,
		file_size BIGINT DEFAULT 0,
		content TEXT,
		embedding vector(768),
		status TEXT NOT NULL DEFAULT 'pending',
		error_message TEXT,
		indexed_at TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);

	CREATE TABLE IF NOT EXISTS conversations (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		title TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS conversation_messages (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		role TEXT NOT NULL CHECK (role IN ('user','assistant')),
		content TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON conversation_messages(conversation_id);
	`
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) Close() {
	p.pool.Close()
	p.logger.Info("postgres connection pool closed")
}

// EnsureProcessing creates the row for a path if it does not exist yet and
// marks it processing. A failed first-time run therefore leaves an error
// row behind instead of nothing.
func (p *PostgresStore) EnsureProcessing(ctx context.Context, filePath, fileName, fileType string, fileSize int64) error {
	query := `
	INSERT INTO documents (file_path, file_name, file_type, file_size, status)
	VALUES ($1, $2, $3, $4, 'processing')
	ON CONFLICT (file_path) DO UPDATE SET
		status = 'processing',
		error_message = NULL,
		updated_at = NOW()
	`
	_, err := p.pool.Exec(ctx, query, filePath, fileName, fileType, fileSize)
	return err
}

func (p *PostgresStore) SetDocumentError(ctx context.Context, filePath, message string) error {
	query := `
	UPDATE documents SET status = 'error', error_message = $2, updated_at = NOW()
	WHERE file_path = $1
	`
	_, err := p.pool.Exec(ctx, query, filePath, message)
	return err
}

// MarkIndexed upserts content and embedding for a path. Re-indexing an
// unchanged path overwrites the previous row; the unique file_path
// constraint guarantees no duplicates.
func (p *PostgresStore) MarkIndexed(ctx context.Context, filePath, content string, embedding []float32) error {
	query := `
	INSERT INTO documents (file_path, file_name, file_type, content, embedding, status, indexed_at)
	VALUES ($1, $2, $3, $4, $5, 'indexed', NOW())
	ON CONFLICT (file_path) DO UPDATE SET
		content = EXCLUDED.content,
		embedding = EXCLUDED.embedding,
		status = 'indexed',
		error_message = NULL,
		indexed_at = NOW(),
		updated_at = NOW()
	`
	_, err := p.pool.Exec(ctx, query,
		filePath, baseName(filePath), extOf(filePath), content, pgvector.NewVector(embedding))
	return err
}

func baseName(filePath string) string { return filepath.Base(filePath) }

func extOf(filePath string) string { return strings.ToLower(filepath.Ext(filePath)) }

func (p *PostgresStore) CreateDocument(ctx context.Context, doc *types.Document) error {
	query := `
	INSERT INTO documents (file_path, file_name, file_type, file_size, status)
	VALUES ($1, $2, $3, $4, 'pending')
	ON CONFLICT (file_path) DO UPDATE SET
		file_size = EXCLUDED.file_size,
		status = 'pending',
		error_message = NULL,
		updated_at = NOW()
	RETURNING id, created_at, updated_at
	`
	row := p.pool.QueryRow(ctx, query, doc.FilePath, doc.FileName, doc.FileType, doc.FileSize)
	if err := row.Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return err
	}
	doc.Status = types.StatusPending
	return nil
}

const docColumns = `id, file_path, file_name, file_type, file_size, status, error_message, indexed_at, created_at, updated_at`

func scanDocument(row pgx.Row) (*types.Document, error) {
	doc := &types.Document{}
	var errMsg *string
	err := row.Scan(
		&doc.ID,
		&doc.FilePath,
		&doc.FileName,
		&doc.FileType,
		&doc.FileSize,
		&doc.Status,
		&errMsg,
		&doc.IndexedAt,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if errMsg != nil {
		doc.ErrorMessage = *errMsg
	}
	return doc, nil
}

func (p *PostgresStore) GetDocumentByPath(ctx context.Context, filePath string) (*types.Document, error) {
	row := p.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM documents WHERE file_path = $1", docColumns), filePath)
	return scanDocument(row)
}

func (p *PostgresStore) GetDocumentByID(ctx context.Context, id uuid.UUID) (*types.Document, error) {
	row := p.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM documents WHERE id = $1", docColumns), id)
	return scanDocument(row)
}

// DeleteDocument removes the row and reports the deleted document so the
// caller can unlink the backing file. Returns ErrNotFound when the id is
// already gone.
func (p *PostgresStore) DeleteDocument(ctx context.Context, id uuid.UUID) (*types.Document, error) {
	doc, err := p.GetDocumentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := p.pool.Exec(ctx, "DELETE FROM documents WHERE id = $1", id); err != nil {
		return nil, err
	}
	return doc, nil
}

func (p *PostgresStore) ListDocuments(ctx context.Context) ([]types.Document, error) {
	rows, err := p.pool.Query(ctx,
		fmt.Sprintf("SELECT %s FROM documents ORDER BY created_at DESC", docColumns))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDocuments(rows)
}

func (p *PostgresStore) ListPending(ctx context.Context) ([]types.Document, error) {
	rows, err := p.pool.Query(ctx,
		fmt.Sprintf("SELECT %s FROM documents WHERE status = 'pending'", docColumns))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDocuments(rows)
}

func collectDocuments(rows pgx.Rows) ([]types.Document, error) {
	var docs []types.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (p *PostgresStore) StatusSummary(ctx context.Context) (*types.StatusSummary, error) {
	query := `
	SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'pending') AS pending,
		COUNT(*) FILTER (WHERE status = 'processing') AS processing,
		COUNT(*) FILTER (WHERE status = 'indexed') AS indexed,
		COUNT(*) FILTER (WHERE status = 'error') AS error
	FROM documents
	`
	s := &types.StatusSummary{}
	err := p.pool.QueryRow(ctx, query).Scan(&s.Total, &s.Pending, &s.Processing, &s.Indexed, &s.Error)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SearchSimilar returns up to limit indexed documents ordered by ascending
// cosine distance to the query embedding.
func (p *PostgresStore) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]types.Document, error) {
	query := `
	SELECT id, file_name, content, 1 - (embedding <=> $1) AS similarity
	FROM documents
	WHERE status = 'indexed'
	  AND embedding IS NOT NULL
	  AND content IS NOT NULL
	ORDER BY embedding <=> $1
	LIMIT $2
	`
	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		var doc types.Document
		if err := rows.Scan(&doc.ID, &doc.FileName, &doc.Content, &doc.Similarity); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ListIndexed is the unranked fallback used when the vector operator is
// unavailable. Order is unspecified.
func (p *PostgresStore) ListIndexed(ctx context.Context, limit int) ([]types.Document, error) {
	query := `
	SELECT id, file_name, content
	FROM documents
	WHERE status = 'indexed' AND content IS NOT NULL
	LIMIT $1
	`
	rows, err := p.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		var doc types.Document
		if err := rows.Scan(&doc.ID, &doc.FileName, &doc.Content); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (p *PostgresStore) CreateConversation(ctx context.Context, title string) (*types.Conversation, error) {
	conv := &types.Conversation{Title: title}
	err := p.pool.QueryRow(ctx,
		"INSERT INTO conversations (title) VALUES ($1) RETURNING id, created_at", title).
		Scan(&conv.ID, &conv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (p *PostgresStore) GetConversation(ctx context.Context, id uuid.UUID) (*types.Conversation, error) {
	conv := &types.Conversation{}
	err := p.pool.QueryRow(ctx,
		"SELECT id, title, created_at FROM conversations WHERE id = $1", id).
		Scan(&conv.ID, &conv.Title, &conv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return conv, nil
}

func (p *PostgresStore) ListConversations(ctx context.Context) ([]types.ConversationSummary, error) {
	query := `
	SELECT c.id, c.title, c.created_at,
	       (SELECT COUNT(*) FROM conversation_messages m WHERE m.conversation_id = c.id) AS message_count
	FROM conversations c
	ORDER BY c.created_at DESC
	`
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []types.ConversationSummary
	for rows.Next() {
		var c types.ConversationSummary
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.MessageCount); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

func (p *PostgresStore) AppendMessage(ctx context.Context, conversationID uuid.UUID, role types.MessageRole, content string) error {
	_, err := p.pool.Exec(ctx,
		"INSERT INTO conversation_messages (conversation_id, role, content) VALUES ($1, $2, $3)",
		conversationID, role, content)
	return err
}

func (p *PostgresStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]types.Message, error) {
	query := `
	SELECT id, conversation_id, role, content, created_at
	FROM conversation_messages
	WHERE conversation_id = $1
	ORDER BY created_at
	`
	rows, err := p.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []types.Message
	for rows.Next() {
		var m types.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
