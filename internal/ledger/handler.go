package ledger

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"green-hydrogen/credit-platform/credit-platform-backend/internal/auth"
	"green-hydrogen/credit-platform/credit-platform-backend/pkg/apperrors"
)

// Handler handles HTTP requests for credit ledger operations
type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers credit ledger routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	ledger := router.Group("/ledger")
	{
		ledger.POST("/issue", h.issue)
		ledger.POST("/transfer", h.transfer)
		ledger.POST("/approve", h.approve)
		ledger.POST("/transfer-from", h.transferFrom)
		ledger.POST("/retire", h.retire)

		ledger.POST("/pause", h.pause)
		ledger.POST("/unpause", h.unpause)
		ledger.POST("/gate/rotate", h.rotateGate)

		ledger.GET("/state", h.state)
		ledger.GET("/accounts/:address", h.account)
		ledger.GET("/batches", h.batches)
		ledger.GET("/retirements/:id/certificate", h.certificate)
	}
}

func (h *Handler) issue(c *gin.Context) {
	var req struct {
		ClaimID string `json:"claim_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	batch, err := h.service.IssueFromClaim(c.Request.Context(), auth.CallerAddress(c), req.ClaimID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, batch)
}

func (h *Handler) transfer(c *gin.Context) {
	var req struct {
		To     string `json:"to"`
		Amount int64  `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.Transfer(c.Request.Context(), auth.CallerAddress(c), req.To, req.Amount); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) approve(c *gin.Context) {
	var req struct {
		Spender string `json:"spender"`
		Amount  int64  `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.Approve(c.Request.Context(), auth.CallerAddress(c), req.Spender, req.Amount); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) transferFrom(c *gin.Context) {
	var req struct {
		From   string `json:"from"`
		To     string `json:"to"`
		Amount int64  `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.TransferFrom(c.Request.Context(), auth.CallerAddress(c), req.From, req.To, req.Amount); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) retire(c *gin.Context) {
	var req struct {
		Amount int64  `json:"amount"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	retirement, err := h.service.Retire(c.Request.Context(), auth.CallerAddress(c), req.Amount, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, retirement)
}

func (h *Handler) pause(c *gin.Context) {
	if err := h.service.Pause(c.Request.Context(), auth.CallerAddress(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "paused"})
}

func (h *Handler) unpause(c *gin.Context) {
	if err := h.service.Unpause(c.Request.Context(), auth.CallerAddress(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "active"})
}

func (h *Handler) rotateGate(c *gin.Context) {
	version, err := h.service.UpdateVerificationGate(c.Request.Context(), auth.CallerAddress(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gate_version": version})
}

func (h *Handler) state(c *gin.Context) {
	state, err := h.service.GetState(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *Handler) account(c *gin.Context) {
	account, err := h.service.GetAccount(c.Request.Context(), c.Param("address"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *Handler) batches(c *gin.Context) {
	var producer *string
	if p := c.Query("producer"); p != "" {
		producer = &p
	}
	limit := 100
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	batches, err := h.service.ListBatches(c.Request.Context(), producer, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

func (h *Handler) certificate(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid retirement id"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="retirement_certificate.pdf"`)
	c.Header("Content-Type", "application/pdf")
	if err := h.service.RenderRetirementCertificate(c.Request.Context(), c.Writer, id); err != nil {
		h.respondError(c, err)
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("ledger operation failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
