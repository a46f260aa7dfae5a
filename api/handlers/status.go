package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pixelle-ai/mcp-broker/internal/session"
)

// StatusHandler serves health and observability endpoints.
type StatusHandler struct {
	registry *session.Registry
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(registry *session.Registry) *StatusHandler {
	return &StatusHandler{registry: registry}
}

// Health handles GET /health.
func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status handles GET /status - server status summary.
func (h *StatusHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "running",
		"connected_clients": h.registry.Count(),
		"server_time":       time.Now().Format(time.RFC3339),
	})
}

// Clients handles GET /api/clients - lists connected clients.
func (h *StatusHandler) Clients(c *gin.Context) {
	stats := h.registry.Stats()
	c.JSON(http.StatusOK, gin.H{
		"clients": stats.Sessions,
		"total":   stats.Count,
	})
}

// RegisterRoutes registers the status routes.
func (h *StatusHandler) RegisterRoutes(r *gin.Engine, api *gin.RouterGroup) {
	r.GET("/health", h.Health)
	r.GET("/status", h.Status)
	api.GET("/clients", h.Clients)
}
