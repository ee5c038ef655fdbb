package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/aqualens/backend/internal/chat"
	"github.com/aqualens/backend/internal/metrics"
	"github.com/aqualens/backend/pkg/logger"
)

type ForecastHandler struct {
	predictor chat.Forecaster
}

func NewForecastHandler(predictor chat.Forecaster) *ForecastHandler {
	return &ForecastHandler{
		predictor: predictor,
	}
}

// HandleForecast runs a prediction directly, bypassing the chat pipeline.
func (h *ForecastHandler) HandleForecast(c *fiber.Ctx) error {
	var req struct {
		Location   string `json:"location"`
		WeeksAhead int    `json:"weeks_ahead"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Location == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Location is required",
		})
	}

	weeks := req.WeeksAhead
	if weeks <= 0 {
		weeks = 1
	}
	targetDate := time.Now().AddDate(0, 0, 7*weeks)

	result := h.predictor.Predict(req.Location, targetDate)
	if result.Success {
		metrics.ForecastTotal.WithLabelValues("success").Inc()
	} else {
		metrics.ForecastTotal.WithLabelValues("failure").Inc()
	}

	return c.JSON(result)
}
