package handler

import (
	"context"

	"rsi-lens/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// RSIReader serves live and historical RSI lookups.
type RSIReader interface {
	GetLiveRSI(ctx context.Context, symbol string) (*domain.LiveRSIResult, error)
	GetHistoricalRSI(ctx context.Context, symbol string, rng domain.QueryRange) (*domain.RSISeries, error)
}

type LookupHistory interface {
	RecentLookups(ctx context.Context, limit int) ([]domain.Lookup, error)
}

type Handler struct {
	tracer  trace.Tracer
	rsi     RSIReader
	history LookupHistory
}

func New(tracer trace.Tracer, rsi RSIReader) *Handler {
	return &Handler{
		tracer: tracer,
		rsi:    rsi,
	}
}

// SetLookupHistory enables the recent lookups endpoint.
func (h *Handler) SetLookupHistory(history LookupHistory) {
	h.history = history
}

// RegisterRoutes mounts the gateway. Routes under /api require apiKey when it
// is non-empty.
func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)

	api := r.Group("/api", APIKeyAuth(apiKey))
	api.GET("/rsi", h.GetLiveRSI)
	api.GET("/historical-rsi", h.GetHistoricalRSI)
	api.GET("/lookups/recent", h.GetRecentLookups)
}
