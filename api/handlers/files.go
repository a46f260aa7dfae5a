package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pixelle-ai/mcp-broker/internal/model"
	"github.com/pixelle-ai/mcp-broker/internal/storage"
)

// FileHandler exposes the storage backend over HTTP.
type FileHandler struct {
	store storage.Backend
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(store storage.Backend) *FileHandler {
	return &FileHandler{store: store}
}

// Upload handles POST /api/files - multipart file upload.
func (h *FileHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Missing file field: "+err.Error())
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to open upload: "+err.Error())
		return
	}
	defer f.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := h.store.Upload(c.Request.Context(), f, fileHeader.Filename, contentType)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to store file: "+err.Error())
		return
	}

	c.JSON(http.StatusCreated, info)
}

// Download handles GET /api/files/:id - returns the file content.
func (h *FileHandler) Download(c *gin.Context) {
	fileID := c.Param("id")

	info, err := h.store.Info(c.Request.Context(), fileID)
	contentType := "application/octet-stream"
	if err == nil && info.ContentType != "" {
		contentType = info.ContentType
	}

	data, err := h.store.Download(c.Request.Context(), fileID)
	if err != nil {
		if errors.Is(err, model.ErrFileNotFound) {
			sendError(c, http.StatusNotFound, "FILE_NOT_FOUND", "File "+fileID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "DOWNLOAD_FAILED", "Failed to read file: "+err.Error())
		return
	}

	c.Data(http.StatusOK, contentType, data)
}

// Info handles GET /api/files/:id/info - returns file metadata.
func (h *FileHandler) Info(c *gin.Context) {
	fileID := c.Param("id")

	info, err := h.store.Info(c.Request.Context(), fileID)
	if err != nil {
		if errors.Is(err, model.ErrFileNotFound) {
			sendError(c, http.StatusNotFound, "FILE_NOT_FOUND", "File "+fileID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get file info: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, info)
}

// Delete handles DELETE /api/files/:id.
func (h *FileHandler) Delete(c *gin.Context) {
	fileID := c.Param("id")

	removed, err := h.store.Delete(c.Request.Context(), fileID)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete file: "+err.Error())
		return
	}
	if !removed {
		sendError(c, http.StatusNotFound, "FILE_NOT_FOUND", "File "+fileID+" not found")
		return
	}

	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers the file routes.
func (h *FileHandler) RegisterRoutes(api *gin.RouterGroup) {
	files := api.Group("/files")
	{
		files.POST("", h.Upload)
		files.GET("/:id", h.Download)
		files.GET("/:id/info", h.Info)
		files.DELETE("/:id", h.Delete)
	}
}
