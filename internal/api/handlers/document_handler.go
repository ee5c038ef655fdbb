package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/aqualens/backend/internal/ingestion"
	"github.com/aqualens/backend/pkg/logger"
)

// CacheInvalidator drops cached answers after the document corpus changes.
type CacheInvalidator interface {
	InvalidateAnswerCache(ctx context.Context) error
}

type DocumentHandler struct {
	processor *ingestion.Processor
	cache     CacheInvalidator
}

func NewDocumentHandler(processor *ingestion.Processor, cache CacheInvalidator) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
		cache:     cache,
	}
}

func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	var req struct {
		Title   string `json:"title"`
		Source  string `json:"source"`
		Content string `json:"content"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Content is required",
		})
	}

	meta, err := h.processor.ProcessDocument(c.Context(), req.Title, req.Source, req.Content)
	if err != nil {
		logger.Error("Failed to process document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process document",
		})
	}

	if h.cache != nil {
		if err := h.cache.InvalidateAnswerCache(c.Context()); err != nil {
			logger.Warn("Failed to invalidate answer cache", zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{
		"id":          meta.ID,
		"title":       meta.Title,
		"doc_type":    meta.DocType,
		"chunk_count": meta.ChunkCount,
	})
}
