package marketplace

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"green-hydrogen/credit-platform/credit-platform-backend/internal/auth"
	"green-hydrogen/credit-platform/credit-platform-backend/pkg/apperrors"
)

// Handler handles HTTP requests for marketplace operations
type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers marketplace routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	listings := router.Group("/listings")
	{
		listings.POST("", h.createListing)
		listings.GET("", h.listListings)
		listings.GET("/:id", h.getListing)
		listings.POST("/:id/purchase", h.purchase)
		listings.PUT("/:id/price", h.updatePrice)
		listings.POST("/:id/cancel", h.cancel)
	}
	router.GET("/marketplace/stats", h.stats)
}

func (h *Handler) createListing(c *gin.Context) {
	var req CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	listing, err := h.service.CreateListing(c.Request.Context(), auth.CallerAddress(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, listing)
}

func (h *Handler) listListings(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	limit := 100
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	listings, err := h.service.List(c.Request.Context(), activeOnly, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": listings})
}

func (h *Handler) getListing(c *gin.Context) {
	id, err := parseListingID(c)
	if err != nil {
		return
	}

	listing, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (h *Handler) purchase(c *gin.Context) {
	id, err := parseListingID(c)
	if err != nil {
		return
	}

	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.ListingID = id

	purchase, err := h.service.PurchaseCredits(c.Request.Context(), auth.CallerAddress(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, purchase)
}

func (h *Handler) updatePrice(c *gin.Context) {
	id, err := parseListingID(c)
	if err != nil {
		return
	}

	var req struct {
		PricePerUnit int64 `json:"price_per_unit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.UpdateListingPrice(c.Request.Context(), auth.CallerAddress(c), id, req.PricePerUnit); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) cancel(c *gin.Context) {
	id, err := parseListingID(c)
	if err != nil {
		return
	}

	if err := h.service.CancelListing(c.Request.Context(), auth.CallerAddress(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.service.GetMarketplaceStats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func parseListingID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return 0, err
	}
	return id, nil
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("marketplace operation failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
