package handler

import (
	"net/http"
	"strings"

	"rsi-lens/internal/apperror"
	"rsi-lens/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetLiveRSI godoc
// @Summary      Get the latest RSI reading
// @Description  Returns the most recent daily 14-period RSI value for a stock symbol
// @Tags         rsi
// @Produce      json
// @Param        symbol  query  string  true  "Stock symbol (e.g., IBM, AAPL)"
// @Success      200  {object}  domain.LiveRSIResult
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      429  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /api/rsi [get]
func (h *Handler) GetLiveRSI(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-live-rsi")
	defer span.End()

	symbol := strings.TrimSpace(c.Query("symbol"))
	if symbol == "" {
		respondError(c, span, apperror.Validation("Stock symbol is required"))
		return
	}
	span.SetAttributes(attribute.String("symbol", symbol))

	result, err := h.rsi.GetLiveRSI(ctx, symbol)
	if err != nil {
		respondError(c, span, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetHistoricalRSI godoc
// @Summary      Get RSI history for a date range
// @Description  Returns daily 14-period RSI values between startDate and endDate (inclusive), newest first
// @Tags         rsi
// @Produce      json
// @Param        symbol     query  string  true  "Stock symbol (e.g., IBM, AAPL)"
// @Param        startDate  query  string  true  "Range start (YYYY-MM-DD)"
// @Param        endDate    query  string  true  "Range end (YYYY-MM-DD)"
// @Success      200  {object}  domain.RSISeries
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      429  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /api/historical-rsi [get]
func (h *Handler) GetHistoricalRSI(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-historical-rsi")
	defer span.End()

	symbol := strings.TrimSpace(c.Query("symbol"))
	startRaw := strings.TrimSpace(c.Query("startDate"))
	endRaw := strings.TrimSpace(c.Query("endDate"))
	if symbol == "" || startRaw == "" || endRaw == "" {
		respondError(c, span, apperror.Validation("Missing required parameters: symbol, startDate, endDate"))
		return
	}
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.String("start_date", startRaw),
		attribute.String("end_date", endRaw),
	)

	start, err := domain.ParseDate(startRaw)
	if err != nil {
		respondError(c, span, apperror.Validation("Invalid startDate: "+err.Error()))
		return
	}
	end, err := domain.ParseDate(endRaw)
	if err != nil {
		respondError(c, span, apperror.Validation("Invalid endDate: "+err.Error()))
		return
	}

	series, err := h.rsi.GetHistoricalRSI(ctx, symbol, domain.QueryRange{Start: start, End: end})
	if err != nil {
		respondError(c, span, err)
		return
	}

	c.JSON(http.StatusOK, series)
}
