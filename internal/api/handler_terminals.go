package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"locker-terminal-backend/internal/mw"
)

// GetOnline handles GET /api/terminals/online.
func (h *Handler) GetOnline(c *gin.Context) {
	online, err := h.service.ListOnline(c.Request.Context())
	if err != nil {
		abortServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, online)
}

// GetState handles GET /api/terminals/:terminalId/state.
func (h *Handler) GetState(c *gin.Context) {
	terminalID := strings.TrimSpace(c.Param("terminalId"))
	if terminalID == "" {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "terminal id is required"})
		return
	}

	state, err := h.service.GetState(c.Request.Context(), terminalID)
	if err != nil {
		abortServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// GetTerminalItems handles GET /api/terminals/:terminalId/items.
func (h *Handler) GetTerminalItems(c *gin.Context) {
	terminalID := strings.TrimSpace(c.Param("terminalId"))
	if terminalID == "" {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "terminal id is required"})
		return
	}

	items, err := h.service.TerminalItems(c.Request.Context(), terminalID)
	if err != nil {
		abortServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// StartRent handles POST /api/terminals/:terminalId/cells/:cellId/start.
func (h *Handler) StartRent(c *gin.Context) {
	terminalID := strings.TrimSpace(c.Param("terminalId"))
	cellID := strings.TrimSpace(c.Param("cellId"))
	if terminalID == "" || cellID == "" {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "terminal and cell ids are required"})
		return
	}

	commandID, err := h.service.StartRent(c.Request.Context(), terminalID, cellID, mw.UserID(c))
	if err != nil {
		abortServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commandId": commandID})
}

// FinishRent handles POST /api/terminals/:terminalId/cells/:cellId/finish.
func (h *Handler) FinishRent(c *gin.Context) {
	terminalID := strings.TrimSpace(c.Param("terminalId"))
	cellID := strings.TrimSpace(c.Param("cellId"))
	if terminalID == "" || cellID == "" {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "terminal and cell ids are required"})
		return
	}

	commandID, err := h.service.FinishRent(c.Request.Context(), terminalID, cellID, mw.UserID(c))
	if err != nil {
		abortServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commandId": commandID})
}
