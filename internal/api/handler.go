package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"locker-terminal-backend/internal/store"
	"locker-terminal-backend/internal/terminal"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	service *terminal.Service
	store   store.Store
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(svc *terminal.Service, s store.Store, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		service: svc,
		store:   s,
		webpush: webpushOptions,
	}
}

// abortServiceError maps control-service errors onto HTTP responses.
// Unknown errors are reported as a storage failure; callers may retry
// those with backoff.
func abortServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, terminal.ErrTerminalNotFound),
		errors.Is(err, terminal.ErrCellNotFound),
		errors.Is(err, terminal.ErrTerminalOffline):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, terminal.ErrCellNotFree),
		errors.Is(err, terminal.ErrCellAlreadyFree),
		errors.Is(err, terminal.ErrRentOwnedByAnotherUser):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
	}
}
