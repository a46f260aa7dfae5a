// Package storage provides file storage backends behind a narrow interface.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pixelle-ai/mcp-broker/internal/config"
	"github.com/pixelle-ai/mcp-broker/internal/repository"
)

// FileInfo describes a stored file.
type FileInfo struct {
	FileID      string `json:"file_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
}

// Backend is the storage interface consumed by the rest of the system.
type Backend interface {
	Upload(ctx context.Context, r io.Reader, filename, contentType string) (FileInfo, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
	Delete(ctx context.Context, fileID string) (bool, error)
	Exists(ctx context.Context, fileID string) (bool, error)
	Info(ctx context.Context, fileID string) (FileInfo, error)
}

// NewFileID generates a unique file id, preserving the extension so URLs
// stay recognizable to downstream consumers.
func NewFileID(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return strings.ReplaceAll(uuid.New().String(), "-", "") + ext
}

// New selects a backend from configuration. files may be nil for backends
// that keep their own metadata.
func New(cfg *config.Config, files *repository.FileRepository, log zerolog.Logger) (Backend, error) {
	switch cfg.StorageType {
	case config.StorageTypeLocal:
		return NewLocal(cfg.LocalStoragePath, cfg.BaseURL(), files, log)
	case config.StorageTypeOSS:
		return NewOSS(cfg.OSS, log)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.StorageType)
	}
}
