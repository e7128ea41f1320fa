package api

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gregoryshoniwa/voice-agent/store"
	"github.com/gregoryshoniwa/voice-agent/types"
)

type DocumentHandler struct {
	logger       *slog.Logger
	store        store.DBStorer
	documentsDir string
}

func NewDocumentHandler(storer store.DBStorer, documentsDir string) *DocumentHandler {
	return &DocumentHandler{
		logger:       slog.Default(),
		store:        storer,
		documentsDir: documentsDir,
	}
}

func (h *DocumentHandler) HandleList(c *fiber.Ctx) error {
	docs, err := h.store.ListDocuments(c.Context())
	if err != nil {
		h.logger.Warn("error listing documents", "error", err)
		return c.JSON([]types.Document{})
	}
	if docs == nil {
		docs = []types.Document{}
	}
	return c.JSON(docs)
}

func (h *DocumentHandler) HandleStatusSummary(c *fiber.Ctx) error {
	summary, err := h.store.StatusSummary(c.Context())
	if err != nil {
		h.logger.Warn("error reading status summary", "error", err)
		return c.JSON(types.StatusSummary{})
	}
	return c.JSON(summary)
}

// HandleUpload saves the file into the documents directory and records a
// pending row. The indexer picks it up from there.
func (h *DocumentHandler) HandleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}

	path := filepath.Join(h.documentsDir, fileHeader.Filename)
	if err := c.SaveFile(fileHeader, path); err != nil {
		return err
	}
	h.logger.Info("file saved", "path", path)

	doc := &types.Document{
		FilePath: path,
		FileName: fileHeader.Filename,
		FileType: filepath.Ext(fileHeader.Filename),
		FileSize: fileHeader.Size,
	}
	if err := h.store.CreateDocument(c.Context(), doc); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"id":        doc.ID,
		"file_name": doc.FileName,
		"file_type": doc.FileType,
		"file_size": doc.FileSize,
		"status":    doc.Status,
		"message":   "File uploaded. Processing will begin shortly.",
	})
}

// HandleDelete removes the record and the backing file. Deleting an id
// that is already gone returns the same acknowledgment; the operation is
// idempotent at the API layer.
func (h *DocumentHandler) HandleDelete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}

	doc, err := h.store.DeleteDocument(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(fiber.Map{"message": "Document deleted"})
		}
		return err
	}

	if doc.FilePath != "" {
		if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
			h.logger.Warn("error removing file", "path", doc.FilePath, "error", err)
		}
	}

	return c.JSON(fiber.Map{"message": "Document deleted"})
}
