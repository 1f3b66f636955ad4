package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/jmehdipour/mail-gateway/internal/repository"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type deliveryResp struct {
	ID        string     `json:"id"`
	EmailType string     `json:"email_type"`
	Template  string     `json:"email_template"`
	Priority  int        `json:"priority_level"`
	Status    string     `json:"status"`
	StatusID  int        `json:"status_code"`
	SentAt    *time.Time `json:"sent_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func getDeliveryHandler(repo repository.EmailQueueRepository, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		e, err := repo.GetByID(c.Request().Context(), id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
			}
			logger.Error("delivery lookup failed", zap.String("task_id", id), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, deliveryResp{
			ID:        e.ID,
			EmailType: e.EmailType,
			Template:  e.Template,
			Priority:  e.PriorityLevel,
			Status:    e.Status.String(),
			StatusID:  int(e.Status),
			SentAt:    e.SentAt,
			CreatedAt: e.CreatedAt,
		})
	}
}

func listEventsHandler(repo repository.DeliveryEventsRepository, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if repo == nil {
			return c.JSON(http.StatusNotImplemented, map[string]string{"error": "delivery event log disabled"})
		}

		limit := 50
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}

		id := c.Param("id")
		events, err := repo.ListByTask(c.Request().Context(), id, limit)
		if err != nil {
			logger.Error("clickhouse list failed", zap.String("task_id", id), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"count":   len(events),
			"results": events,
		})
	}
}
