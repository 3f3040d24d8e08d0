package apihandlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"curator/internal/models"
)

// APIError defines standard error response
// Example: { "error": { "code": "bad_request", "message": "unknown value toddler" } }
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// JSONError sends a structured error response
func JSONError(ctx *gin.Context, status int, code, msg string) {
	ctx.AbortWithStatusJSON(status, errorResponse{Error: APIError{Code: code, Message: msg}})
}

// Convenience wrappers
func BadRequest(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusBadRequest, "bad_request", msg)
}

func NotFound(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusNotFound, "not_found", msg)
}

func Internal(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusInternalServerError, "internal_error", msg)
}

func Conflict(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusConflict, "conflict", msg)
}

// RespondError maps a domain error to its HTTP status.
func RespondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrValidation):
		BadRequest(ctx, err.Error())
	case errors.Is(err, models.ErrNotFound):
		NotFound(ctx, err.Error())
	case errors.Is(err, models.ErrConflict):
		Conflict(ctx, err.Error())
	case errors.Is(err, models.ErrPipelineExhausted):
		JSONError(ctx, http.StatusServiceUnavailable, "unable_to_classify", err.Error())
	case errors.Is(err, models.ErrCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		JSONError(ctx, http.StatusRequestTimeout, "cancelled", err.Error())
	default:
		log.WithError(err).WithField("path", ctx.FullPath()).Error("request failed")
		Internal(ctx, "internal error")
	}
}
