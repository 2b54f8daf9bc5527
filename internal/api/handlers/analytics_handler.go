package handlers

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/social"
)

type AnalyticsHandler struct {
	s service.AccountService
}

func NewAnalyticsHandler(service service.AccountService) *AnalyticsHandler {
	return &AnalyticsHandler{s: service}
}

// GetAnalytics aggregates account analytics across platforms. The period is
// given as RFC 3339 start and end query values and defaults to the last
// 30 days.
func (h *AnalyticsHandler) GetAnalytics(c *fiber.Ctx) error {
	platforms, err := parsePlatforms(c.Query("platforms"))
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	var query social.AnalyticsQuery
	if v := c.Query("start"); v != "" {
		if query.Start, err = time.Parse(time.RFC3339, v); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "Invalid start time")
		}
	}
	if v := c.Query("end"); v != "" {
		if query.End, err = time.Parse(time.RFC3339, v); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "Invalid end time")
		}
	}

	report, err := h.s.Analytics(c.Context(), GetUserID(c), query, platforms...)
	if err != nil {
		slog.Info(err.Error())
		return errorJSON(c, fiber.StatusInternalServerError, "Unable to fetch analytics")
	}
	return c.Status(fiber.StatusOK).JSON(report)
}
