package types

import (
	"time"

	"github.com/google/uuid"
)

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusIndexed    DocumentStatus = "indexed"
	StatusError      DocumentStatus = "error"
)

// Document is a row in the documents table. Content and Embedding stay
// empty until the indexer has processed the backing file.
type Document struct {
	ID           uuid.UUID      `json:"id"`
	FilePath     string         `json:"file_path"`
	FileName     string         `json:"file_name"`
	FileType     string         `json:"file_type"`
	FileSize     int64          `json:"file_size"`
	Content      string         `json:"content,omitempty"`
	Embedding    []float32      `json:"-"`
	Status       DocumentStatus `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	IndexedAt    *time.Time     `json:"indexed_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`

	// Similarity is populated only by vector search results.
	Similarity float64 `json:"similarity,omitempty"`
}

// StatusSummary counts documents per lifecycle state.
type StatusSummary struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Indexed    int `json:"indexed"`
	Error      int `json:"error"`
}

type Conversation struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationSummary is a conversation plus its message count, used by
// the listing endpoint.
type ConversationSummary struct {
	Conversation
	MessageCount int `json:"message_count"`
}

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type Message struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	CreatedAt      time.Time   `json:"created_at"`
}

// DocRef identifies a retrieved document in a query response without
// carrying its full content.
type DocRef struct {
	ID       uuid.UUID `json:"id"`
	FileName string    `json:"file_name"`
}
