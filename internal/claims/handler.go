package claims

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"green-hydrogen/credit-platform/credit-platform-backend/internal/auth"
	"green-hydrogen/credit-platform/credit-platform-backend/pkg/apperrors"
)

// Handler handles HTTP requests for the verification gate
type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers verification gate routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	claims := router.Group("/claims")
	{
		claims.POST("", h.submit)
		claims.GET("", h.list)
		claims.GET("/:id", h.get)
		claims.GET("/:id/consumable", h.isConsumable)
		claims.POST("/:id/verify", h.verify)
		claims.POST("/evidence", h.uploadEvidence)
	}

	verifiers := router.Group("/verifiers")
	{
		verifiers.POST("", h.addVerifier)
		verifiers.GET("", h.listVerifiers)
		verifiers.DELETE("/:address", h.removeVerifier)
	}
}

func (h *Handler) submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claim, err := h.service.Submit(c.Request.Context(), auth.CallerAddress(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, claim)
}

func (h *Handler) list(c *gin.Context) {
	var producer *string
	if p := c.Query("producer"); p != "" {
		producer = &p
	}
	var status *ClaimStatus
	if s := c.Query("status"); s != "" {
		cs := ClaimStatus(s)
		status = &cs
	}
	limit := 100
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	claims, err := h.service.List(c.Request.Context(), producer, status, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"claims": claims})
}

func (h *Handler) get(c *gin.Context) {
	claim, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, claim)
}

func (h *Handler) isConsumable(c *gin.Context) {
	consumable, err := h.service.IsConsumable(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"consumable": consumable})
}

func (h *Handler) verify(c *gin.Context) {
	var req struct {
		Approve bool `json:"approve"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.Verify(c.Request.Context(), auth.CallerAddress(c), c.Param("id"), req.Approve); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) uploadEvidence(c *gin.Context) {
	cid, err := h.service.PinEvidence(c.Request.Context(), c.Request.Body)
	if err != nil {
		h.logger.Error("failed to pin evidence", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to pin evidence"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"evidence_ref": cid})
}

func (h *Handler) addVerifier(c *gin.Context) {
	var req struct {
		Address string `json:"address"`
		Name    string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.AddVerifier(c.Request.Context(), auth.CallerAddress(c), req.Address, req.Name); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "ok"})
}

func (h *Handler) listVerifiers(c *gin.Context) {
	verifiers, err := h.service.ListVerifiers(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verifiers": verifiers})
}

func (h *Handler) removeVerifier(c *gin.Context) {
	if err := h.service.RemoveVerifier(c.Request.Context(), auth.CallerAddress(c), c.Param("address")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("verification gate operation failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
