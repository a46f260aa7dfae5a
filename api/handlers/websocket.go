package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pixelle-ai/mcp-broker/internal/broker"
	"github.com/pixelle-ai/mcp-broker/internal/relay"
)

// WebSocketHandler mounts the broker's WebSocket endpoint.
type WebSocketHandler struct {
	broker *broker.Broker
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(b *broker.Broker) *WebSocketHandler {
	return &WebSocketHandler{broker: b}
}

// Serve handles GET /ws - upgrades and runs the connection until close.
func (h *WebSocketHandler) Serve(c *gin.Context) {
	// Upgrade failures are already answered by the upgrader.
	_ = h.broker.HandleUpgrade(c.Writer, c.Request)
}

// RegisterRoutes registers the broker WebSocket route.
func (h *WebSocketHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.Serve)
}

// RelayHandler mounts the relay's WebSocket endpoint, normally on its own
// listener so browsers can reach a backend endpoint across origins.
type RelayHandler struct {
	relay *relay.Relay
}

// NewRelayHandler creates a new RelayHandler.
func NewRelayHandler(r *relay.Relay) *RelayHandler {
	return &RelayHandler{relay: r}
}

// Serve handles GET /ws on the relay listener.
func (h *RelayHandler) Serve(c *gin.Context) {
	_ = h.relay.HandleUpgrade(c.Writer, c.Request)
}

// RegisterRoutes registers the relay WebSocket route.
func (h *RelayHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.Serve)
}
