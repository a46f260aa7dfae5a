package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pixelle-ai/mcp-broker/internal/protocol"
	"github.com/pixelle-ai/mcp-broker/internal/session"
)

// MessageHandler lets backend callers deliver envelopes to connected
// WebSocket clients over plain HTTP.
type MessageHandler struct {
	registry *session.Registry
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(registry *session.Registry) *MessageHandler {
	return &MessageHandler{registry: registry}
}

// SendMessageRequest is the body of POST /api/send_message.
type SendMessageRequest struct {
	ClientID string `json:"client_id" binding:"required"`
	Content  string `json:"content" binding:"required"`
}

// ToolCallRequest is the body of POST /api/call_tool.
type ToolCallRequest struct {
	ClientID string         `json:"client_id" binding:"required"`
	ToolName string         `json:"tool_name" binding:"required"`
	Params   map[string]any `json:"params"`
}

// BroadcastRequest is the body of POST /api/broadcast.
type BroadcastRequest struct {
	MessageType string         `json:"message_type" binding:"required"`
	Data        map[string]any `json:"data"`
}

// SendMessage handles POST /api/send_message - delivers a chat_message
// envelope to one connected client.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	sess, ok := h.registry.Lookup(req.ClientID)
	if !ok {
		sendError(c, http.StatusNotFound, "CLIENT_NOT_FOUND", "Client "+req.ClientID+" is not connected")
		return
	}

	env := protocol.New(protocol.MessageTypeChatMessage, map[string]any{
		"content":  req.Content,
		"from_api": true,
	})
	if err := sess.Send(env); err != nil {
		sendError(c, http.StatusInternalServerError, "SEND_FAILED", "Failed to send message: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"message_id": env.MessageID,
	})
}

// CallTool handles POST /api/call_tool - delivers a tool_call envelope to
// one connected client.
func (h *MessageHandler) CallTool(c *gin.Context) {
	var req ToolCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	sess, ok := h.registry.Lookup(req.ClientID)
	if !ok {
		sendError(c, http.StatusNotFound, "CLIENT_NOT_FOUND", "Client "+req.ClientID+" is not connected")
		return
	}

	params := req.Params
	if params == nil {
		params = map[string]any{}
	}
	env := protocol.New(protocol.MessageTypeToolCall, map[string]any{
		"tool_name": req.ToolName,
		"params":    params,
		"from_api":  true,
	})
	if err := sess.Send(env); err != nil {
		sendError(c, http.StatusInternalServerError, "SEND_FAILED", "Failed to send tool call: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"message_id": env.MessageID,
	})
}

// Broadcast handles POST /api/broadcast - fans an envelope out to every
// connected client. Per-client failures do not fail the request.
func (h *MessageHandler) Broadcast(c *gin.Context) {
	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	env := protocol.New(protocol.MessageType(req.MessageType), req.Data)
	delivered := h.registry.Broadcast(env, nil)

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"delivered":  delivered,
		"message_id": env.MessageID,
	})
}

// RegisterRoutes registers the message routes.
func (h *MessageHandler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/send_message", h.SendMessage)
	api.POST("/call_tool", h.CallTool)
	api.POST("/broadcast", h.Broadcast)
}
