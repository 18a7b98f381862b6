package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler exposes the audit event mirror to external consumers.
type Handler struct {
	repo   Repository
	logger *zap.Logger
}

func NewHandler(repo Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// RegisterRoutes registers audit routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	events := router.Group("/audit")
	{
		events.GET("/events", h.listEvents)
		events.GET("/events/export", h.exportEvents)
	}
}

func (h *Handler) listEvents(c *gin.Context) {
	eventType, since, limit, ok := h.parseFilters(c)
	if !ok {
		return
	}

	events, err := h.repo.ListEvents(c.Request.Context(), eventType, since, limit)
	if err != nil {
		h.logger.Error("failed to list audit events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *Handler) exportEvents(c *gin.Context) {
	eventType, since, limit, ok := h.parseFilters(c)
	if !ok {
		return
	}

	events, err := h.repo.ListEvents(c.Request.Context(), eventType, since, limit)
	if err != nil {
		h.logger.Error("failed to export audit events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export events"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="audit_events.xlsx"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := WriteXLSX(c.Writer, events); err != nil {
		h.logger.Error("failed to write audit export", zap.Error(err))
	}
}

func (h *Handler) parseFilters(c *gin.Context) (*EventType, *time.Time, int, bool) {
	var eventType *EventType
	if t := c.Query("type"); t != "" {
		et := EventType(t)
		eventType = &et
	}

	var since *time.Time
	if s := c.Query("since"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since timestamp"})
			return nil, nil, 0, false
		}
		since = &parsed
	}

	limit := 500
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 || parsed > 5000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return nil, nil, 0, false
		}
		limit = parsed
	}
	return eventType, since, limit, true
}
