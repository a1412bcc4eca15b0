package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"locker-terminal-backend/internal/mw"
)

// GetMyRents handles GET /api/rents, returning the authenticated user's
// active rents.
func (h *Handler) GetMyRents(c *gin.Context) {
	userID := mw.UserID(c)
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user not found in request"})
		return
	}

	rents, err := h.service.ListUserRents(c.Request.Context(), userID)
	if err != nil {
		abortServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, rents)
}
