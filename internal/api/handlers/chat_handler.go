package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/aqualens/backend/internal/chat"
	"github.com/aqualens/backend/pkg/logger"
)

type ChatHandler struct {
	service *chat.Service
	history chat.HistoryStore
}

func NewChatHandler(service *chat.Service, history chat.HistoryStore) *ChatHandler {
	return &ChatHandler{
		service: service,
		history: history,
	}
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req chat.Request

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is required",
		})
	}

	response := h.service.Process(c.Context(), req)

	return c.JSON(response)
}

func (h *ChatHandler) GetChatHistory(c *fiber.Ctx) error {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}

	limit := c.QueryInt("limit", 20)

	records, err := h.history.GetChatHistory(sessionID, limit)
	if err != nil {
		logger.Error("Failed to load chat history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load chat history",
		})
	}

	items := make([]fiber.Map, 0, len(records))
	for _, r := range records {
		items = append(items, fiber.Map{
			"id":         r.ID,
			"message":    r.Message,
			"answer":     r.Answer,
			"created_at": r.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"history":    items,
	})
}
