package handler

import (
	"log"

	"rsi-lens/internal/apperror"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorResponse is the body of every failed gateway call.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func respondError(c *gin.Context, span trace.Span, err error) {
	appErr := apperror.From(err, "Failed to fetch RSI data")
	status := appErr.HTTPStatus()
	if status >= 500 {
		log.Printf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, appErr)
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, appErr.Message)

	c.JSON(status, ErrorResponse{Error: appErr.Message, Details: appErr.Details})
}
