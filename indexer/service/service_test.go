package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gregoryshoniwa/voice-agent/store"
	"github.com/gregoryshoniwa/voice-agent/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	docs       map[string]*types.Document
	embeddings map[string][]float32
	pingErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:       make(map[string]*types.Document),
		embeddings: make(map[string][]float32),
	}
}

func (f *fakeStore) EnsureProcessing(_ context.Context, filePath, fileName, fileType string, fileSize int64) error {
	doc, ok := f.docs[filePath]
	if !ok {
		doc = &types.Document{FilePath: filePath, FileName: fileName, FileType: fileType, FileSize: fileSize}
		f.docs[filePath] = doc
	}
	doc.Status = types.StatusProcessing
	doc.ErrorMessage = ""
	return nil
}

func (f *fakeStore) SetDocumentError(_ context.Context, filePath, message string) error {
	if doc, ok := f.docs[filePath]; ok {
		doc.Status = types.StatusError
		doc.ErrorMessage = message
	}
	return nil
}

func (f *fakeStore) MarkIndexed(_ context.Context, filePath, content string, embedding []float32) error {
	doc, ok := f.docs[filePath]
	if !ok {
		doc = &types.Document{FilePath: filePath, FileName: filepath.Base(filePath)}
		f.docs[filePath] = doc
	}
	doc.Status = types.StatusIndexed
	doc.Content = content
	f.embeddings[filePath] = embedding
	return nil
}

func (f *fakeStore) GetDocumentByPath(_ context.Context, filePath string) (*types.Document, error) {
	if doc, ok := f.docs[filePath]; ok {
		return doc, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListPending(_ context.Context) ([]types.Document, error) {
	var pending []types.Document
	for _, doc := range f.docs {
		if doc.Status == types.StatusPending {
			pending = append(pending, *doc)
		}
	}
	return pending, nil
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

type fakeEmbedder struct {
	lastPrompt string
	err        error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.lastPrompt = text
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) Ready(context.Context) (int, error) { return 1, nil }

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abcd", 2))
	assert.Len(t, []rune(Truncate(strings.Repeat("é", 10), 4)), 4)
}

func TestIndexDocument_Success(t *testing.T) {
	st := newFakeStore()
	emb := &fakeEmbedder{}
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("apples are red"), 0o644))

	svc := New(st, emb, dir)
	svc.IndexDocument(context.Background(), path)

	doc := st.docs[path]
	require.NotNil(t, doc)
	assert.Equal(t, types.StatusIndexed, doc.Status)
	assert.Equal(t, "apples are red", doc.Content)
	assert.NotEmpty(t, st.embeddings[path])
}

func TestIndexDocument_TruncatesBeforeEmbedding(t *testing.T) {
	st := newFakeStore()
	emb := &fakeEmbedder{}
	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("a", 10000)), 0o644))

	svc := New(st, emb, dir)
	svc.IndexDocument(context.Background(), path)

	assert.Len(t, emb.lastPrompt, MaxEmbedChars)
	assert.Len(t, st.docs[path].Content, MaxEmbedChars)
}

func TestIndexDocument_NoText(t *testing.T) {
	st := newFakeStore()
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("   \n"), 0o644))

	svc := New(st, &fakeEmbedder{}, dir)
	svc.IndexDocument(context.Background(), path)

	doc := st.docs[path]
	require.NotNil(t, doc, "a failed first-time run must still leave a row")
	assert.Equal(t, types.StatusError, doc.Status)
	assert.Equal(t, "No text could be extracted from file", doc.ErrorMessage)
}

func TestIndexDocument_EmbeddingFailure(t *testing.T) {
	st := newFakeStore()
	emb := &fakeEmbedder{err: errors.New("ollama down")}
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("some text"), 0o644))

	svc := New(st, emb, dir)
	svc.IndexDocument(context.Background(), path)

	doc := st.docs[path]
	require.NotNil(t, doc)
	assert.Equal(t, types.StatusError, doc.Status)
	assert.Equal(t, "ollama down", doc.ErrorMessage)
}

func TestIndexDocument_ProcessedCacheSkipsAndEvicts(t *testing.T) {
	st := newFakeStore()
	emb := &fakeEmbedder{}
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("version one"), 0o644))

	svc := New(st, emb, dir)
	svc.IndexDocument(context.Background(), path)
	assert.Equal(t, "version one", st.docs[path].Content)

	// Cached: a second run without eviction changes nothing.
	require.NoError(t, os.WriteFile(path, []byte("version two"), 0o644))
	svc.IndexDocument(context.Background(), path)
	assert.Equal(t, "version one", st.docs[path].Content)

	// A modify event evicts the path, allowing reprocessing.
	svc.evict(path)
	svc.IndexDocument(context.Background(), path)
	assert.Equal(t, "version two", st.docs[path].Content)
}

func TestIndexDocument_Reindex_SingleRow(t *testing.T) {
	st := newFakeStore()
	emb := &fakeEmbedder{}
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	svc := New(st, emb, dir)
	for i := 0; i < 3; i++ {
		svc.evict(path)
		svc.IndexDocument(context.Background(), path)
	}
	assert.Len(t, st.docs, 1)
	assert.Equal(t, types.StatusIndexed, st.docs[path].Status)
}

func TestProcessPending_FileGone(t *testing.T) {
	st := newFakeStore()
	missing := filepath.Join(t.TempDir(), "gone.txt")
	st.docs[missing] = &types.Document{FilePath: missing, Status: types.StatusPending}

	svc := New(st, &fakeEmbedder{}, t.TempDir())
	svc.processPending(context.Background())

	assert.Equal(t, types.StatusError, st.docs[missing].Status)
	assert.Equal(t, "File not found on disk", st.docs[missing].ErrorMessage)
}

func TestProcessPending_IndexesExistingFile(t *testing.T) {
	st := newFakeStore()
	dir := t.TempDir()
	path := filepath.Join(dir, "pending.txt")
	require.NoError(t, os.WriteFile(path, []byte("pending content"), 0o644))
	st.docs[path] = &types.Document{FilePath: path, Status: types.StatusPending}

	svc := New(st, &fakeEmbedder{}, dir)
	svc.processPending(context.Background())

	assert.Equal(t, types.StatusIndexed, st.docs[path].Status)
}

func TestIndexExisting_SkipsIndexedAndHidden(t *testing.T) {
	st := newFakeStore()
	dir := t.TempDir()

	indexed := filepath.Join(dir, "done.txt")
	require.NoError(t, os.WriteFile(indexed, []byte("done"), 0o644))
	st.docs[indexed] = &types.Document{FilePath: indexed, Status: types.StatusIndexed, Content: "done"}

	hidden := filepath.Join(dir, ".secret.txt")
	require.NoError(t, os.WriteFile(hidden, []byte("secret"), 0o644))

	fresh := filepath.Join(dir, "fresh.txt")
	require.NoError(t, os.WriteFile(fresh, []byte("fresh content"), 0o644))

	svc := New(st, &fakeEmbedder{}, dir)
	svc.indexExisting(context.Background())

	assert.Equal(t, "done", st.docs[indexed].Content, "already indexed file must not be reprocessed")
	assert.NotContains(t, st.docs, hidden)
	require.Contains(t, st.docs, fresh)
	assert.Equal(t, types.StatusIndexed, st.docs[fresh].Status)
	assert.True(t, svc.isProcessed(indexed), "indexed file remembered in cache")
}
