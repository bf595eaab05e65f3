package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultLookupLimit = 20
	maxLookupLimit     = 100
)

// GetRecentLookups godoc
// @Summary      List recent lookups
// @Description  Returns the most recent successful RSI lookups served by the gateway
// @Tags         lookups
// @Produce      json
// @Param        limit  query  int  false  "Number of lookups (default 20, max 100)"  default(20)
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /api/lookups/recent [get]
func (h *Handler) GetRecentLookups(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "lookup history unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-recent-lookups")
	defer span.End()

	limit := defaultLookupLimit
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= maxLookupLimit {
			limit = n
		}
	}
	span.SetAttributes(attribute.Int("limit", limit))

	lookups, err := h.history.RecentLookups(ctx, limit)
	if err != nil {
		respondError(c, span, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"lookups": lookups})
}
