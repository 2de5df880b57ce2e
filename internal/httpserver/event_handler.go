package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"outreach/internal/service"
)

type EventHandler struct {
	ingest *service.EventIngest
	logger *zap.Logger
}

func NewEventHandler(ingest *service.EventIngest, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		ingest: ingest,
		logger: logger,
	}
}

// IngestEvent handles POST /webhooks/events
func (h *EventHandler) IngestEvent(c *gin.Context) {
	var req struct {
		MessageID int64      `json:"message_id" binding:"required"`
		Type      string     `json:"type" binding:"required"`
		EventAt   *time.Time `json:"event_at"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	tenantID, exists := c.Get("tenant_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "tenant not authenticated"})
		return
	}

	eventAt := time.Now()
	if req.EventAt != nil {
		eventAt = *req.EventAt
	}

	result, err := h.ingest.RecordEvent(c.Request.Context(), tenantID.(int64), req.MessageID, req.Type, eventAt)
	if err != nil {
		if service.IsTerminal(err) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to ingest event", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "recorded",
		"moved":  result.Moved,
		"to":     result.ToNode,
	})
}
