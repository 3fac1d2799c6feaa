package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/menuscout/backend/internal/domain"
)

// MenuDiscoverer is the pipeline boundary consumed by the HTTP layer.
type MenuDiscoverer interface {
	DiscoverAndExtractMenu(ctx context.Context, query *domain.RestaurantQuery) (*domain.VerifiedMenu, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	pipeline MenuDiscoverer
}

// NewHandler creates a new HTTP handler
func NewHandler(pipeline MenuDiscoverer) *Handler {
	return &Handler{pipeline: pipeline}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "menuscout-backend",
		"version": "1.0.0",
	})
}

// DiscoverMenu handles menu discovery requests. Rejected and failed runs are
// still 200s with approved=false and reasons; only invalid input and
// infrastructure errors map to error statuses.
func (h *Handler) DiscoverMenu(c *gin.Context) {
	if h.pipeline == nil {
		c.JSON(http.StatusNotImplemented, gin.H{
			"error": "Menu discovery not configured",
		})
		return
	}

	var query domain.RestaurantQuery
	if err := c.ShouldBindJSON(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	menu, err := h.pipeline.DiscoverAndExtractMenu(c.Request.Context(), &query)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, context.DeadlineExceeded):
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "menu discovery timed out"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, menu)
}
