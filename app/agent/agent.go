// Package agent implements the retrieval-augmented query flow: embed the
// question, fetch the nearest indexed documents, build a prompt and ask
// the language model.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gregoryshoniwa/voice-agent/types"
	"github.com/pkoukk/tiktoken-go"
)

const (
	// DefaultTopK is the number of documents retrieved when the caller
	// does not ask for a specific count.
	DefaultTopK = 3

	// contextCharsPerDoc bounds how much of each retrieved document
	// ends up in the prompt.
	contextCharsPerDoc = 2000

	contextDelimiter = "\n\n---\n\n"
)

// ModelClient is the slice of the ollama client the agent needs.
type ModelClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Generate(ctx context.Context, prompt string) (string, error)
}

// SearchStore retrieves indexed documents, ranked when the vector
// operator is available and unranked otherwise.
type SearchStore interface {
	SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]types.Document, error)
	ListIndexed(ctx context.Context, limit int) ([]types.Document, error)
}

type Agent struct {
	logger *slog.Logger
	store  SearchStore
	model  ModelClient
}

func New(store SearchStore, model ModelClient) *Agent {
	return &Agent{
		logger: slog.Default(),
		store:  store,
		model:  model,
	}
}

// QueryResult carries the answer plus references to the documents that
// backed it. Ranked is false when the unordered fallback scan was used,
// so degraded relevance is observable by the caller.
type QueryResult struct {
	Answer       string         `json:"answer"`
	ContextDocs  []types.DocRef `json:"context_docs"`
	ContextCount int            `json:"context_count"`
	Ranked       bool           `json:"ranked"`
}

// Query answers free text against the indexed documents. A failed
// embedding degrades to an answer without context rather than an error;
// only a completion failure is returned to the caller.
func (a *Agent) Query(ctx context.Context, query string, topK int) (*QueryResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	var docs []types.Document
	ranked := false

	embedding, err := a.model.Embed(ctx, query)
	if err != nil {
		a.logger.Warn("query embedding failed, continuing without context", "error", err)
	} else {
		docs, err = a.store.SearchSimilar(ctx, embedding, topK)
		if err != nil {
			a.logger.Warn("vector search failed, falling back to unranked scan", "error", err)
			if docs, err = a.store.ListIndexed(ctx, topK); err != nil {
				a.logger.Warn("fallback scan failed", "error", err)
				docs = nil
			}
		} else {
			ranked = true
		}
	}

	prompt := BuildPrompt(BuildContext(docs), query)
	if n, err := countTokens(prompt); err == nil {
		a.logger.Info("prompt built", "tokens", n, "context_docs", len(docs))
	}

	answer, err := a.model.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	refs := make([]types.DocRef, 0, len(docs))
	for _, doc := range docs {
		refs = append(refs, types.DocRef{ID: doc.ID, FileName: doc.FileName})
	}

	return &QueryResult{
		Answer:       answer,
		ContextDocs:  refs,
		ContextCount: len(docs),
		Ranked:       ranked,
	}, nil
}

// BuildContext concatenates up to the first 2000 characters of each
// retrieved document, skipping empty content.
func BuildContext(docs []types.Document) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc.Content == "" {
			continue
		}
		content := doc.Content
		if runes := []rune(content); len(runes) > contextCharsPerDoc {
			content = string(runes[:contextCharsPerDoc])
		}
		parts = append(parts, content)
	}
	return strings.Join(parts, contextDelimiter)
}

// BuildPrompt frames the question with retrieved context when there is
// any, and asks it directly otherwise.
func BuildPrompt(context, query string) string {
	if context != "" {
		return fmt.Sprintf(`You are a helpful AI assistant. Use the following context from documents to answer the question. If the context doesn't contain relevant information, say so and provide a general answer.

Context from documents:
%s

Question: %s

Answer:`, context, query)
	}
	return fmt.Sprintf(`You are a helpful AI assistant. Answer the following question:

Question: %s

Answer:`, query)
}

func countTokens(text string) (int, error) {
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}
