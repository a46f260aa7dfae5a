package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pixelle-ai/mcp-broker/internal/genai"
)

// GenerateHandler exposes the generation API collaborator. When the client
// could not be configured (missing API key), every request gets a
// structured 503 naming the problem instead of a silent degradation.
type GenerateHandler struct {
	client    *genai.Client
	configErr error
}

// NewGenerateHandler creates a new GenerateHandler. client may be nil when
// configErr is non-nil.
func NewGenerateHandler(client *genai.Client, configErr error) *GenerateHandler {
	return &GenerateHandler{client: client, configErr: configErr}
}

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Kind   string         `json:"kind" binding:"required"`
	Params map[string]any `json:"params"`
	// Wait makes the handler poll until the task finishes or WaitSeconds
	// elapses (default 300).
	Wait        bool `json:"wait"`
	WaitSeconds int  `json:"wait_seconds"`
}

// CaptionRequest is the body of POST /api/caption.
type CaptionRequest struct {
	ImageURL string `json:"image_url" binding:"required"`
	Prompt   string `json:"prompt"`
}

func (h *GenerateHandler) ready(c *gin.Context) bool {
	if h.configErr != nil {
		sendError(c, http.StatusServiceUnavailable, "NOT_CONFIGURED", h.configErr.Error())
		return false
	}
	return true
}

// Generate handles POST /api/generate - submits a generation task.
func (h *GenerateHandler) Generate(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	submitted, err := h.client.Submit(c.Request.Context(), genai.Kind(req.Kind), req.Params)
	if err != nil {
		sendError(c, http.StatusBadGateway, "GENERATION_FAILED", err.Error())
		return
	}

	if submitted.TaskID == "" || !req.Wait {
		c.JSON(http.StatusOK, submitted)
		return
	}

	maxWait := 300 * time.Second
	if req.WaitSeconds > 0 {
		maxWait = time.Duration(req.WaitSeconds) * time.Second
	}
	result, err := h.client.Wait(c.Request.Context(), submitted.TaskID, 5*time.Second, maxWait)
	if err != nil {
		sendError(c, http.StatusBadGateway, "GENERATION_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task_id":    submitted.TaskID,
		"status":     result.Status,
		"result_url": result.ResultURL,
	})
}

// Caption handles POST /api/caption - describes an image.
func (h *GenerateHandler) Caption(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	var req CaptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	caption, err := h.client.Caption(c.Request.Context(), req.ImageURL, req.Prompt)
	if err != nil {
		sendError(c, http.StatusBadGateway, "CAPTION_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"caption": caption})
}

// RegisterRoutes registers the generation routes.
func (h *GenerateHandler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/generate", h.Generate)
	api.POST("/caption", h.Caption)
}
