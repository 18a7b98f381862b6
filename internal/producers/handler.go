package producers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"green-hydrogen/credit-platform/credit-platform-backend/internal/auth"
	"green-hydrogen/credit-platform/credit-platform-backend/pkg/apperrors"
)

// Handler handles HTTP requests for producer registry operations
type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers producer registry routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	producers := router.Group("/producers")
	{
		producers.POST("", h.register)
		producers.GET("", h.list)
		producers.GET("/:address", h.get)
		producers.PUT("/:address/verified", h.setVerified)
		producers.POST("/:address/deactivate", h.deactivate)
		producers.POST("/:address/reactivate", h.reactivate)
	}
}

func (h *Handler) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	producer, err := h.service.Register(c.Request.Context(), auth.CallerAddress(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, producer)
}

func (h *Handler) list(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	producers, err := h.service.List(c.Request.Context(), activeOnly)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"producers": producers})
}

func (h *Handler) get(c *gin.Context) {
	producer, err := h.service.Get(c.Request.Context(), c.Param("address"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, producer)
}

func (h *Handler) setVerified(c *gin.Context) {
	var req struct {
		Verified bool `json:"verified"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.SetVerified(c.Request.Context(), auth.CallerAddress(c), c.Param("address"), req.Verified); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) deactivate(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), auth.CallerAddress(c), c.Param("address")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) reactivate(c *gin.Context) {
	if err := h.service.Reactivate(c.Request.Context(), auth.CallerAddress(c), c.Param("address")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("producer registry operation failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
