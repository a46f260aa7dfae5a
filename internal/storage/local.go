package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/pixelle-ai/mcp-broker/internal/model"
	"github.com/pixelle-ai/mcp-broker/internal/repository"
)

// Local stores file content on the filesystem and indexes metadata
// (filename, content type, size) in SQLite.
type Local struct {
	root    string
	baseURL string
	files   *repository.FileRepository
	log     zerolog.Logger
}

// NewLocal creates a local backend rooted at dir.
func NewLocal(dir, baseURL string, files *repository.FileRepository, log zerolog.Logger) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Local{
		root:    dir,
		baseURL: baseURL,
		files:   files,
		log:     log.With().Str("component", "storage").Str("backend", "local").Logger(),
	}, nil
}

func (l *Local) path(fileID string) string {
	return filepath.Join(l.root, fileID)
}

func (l *Local) url(fileID string) string {
	return fmt.Sprintf("%s/api/files/%s", l.baseURL, fileID)
}

// Upload writes the content to disk and records its metadata.
func (l *Local) Upload(ctx context.Context, r io.Reader, filename, contentType string) (FileInfo, error) {
	fileID := NewFileID(filename)

	f, err := os.Create(l.path(fileID))
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to create file: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(l.path(fileID))
		return FileInfo{}, fmt.Errorf("failed to write file: %w", err)
	}

	rec := &model.FileRecord{
		ID:          fileID,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		CreatedAt:   time.Now(),
	}
	if err := l.files.Create(ctx, rec); err != nil {
		os.Remove(l.path(fileID))
		return FileInfo{}, err
	}

	l.log.Debug().Str("file_id", fileID).Int64("size", size).Msg("file stored")
	return FileInfo{
		FileID:      fileID,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		URL:         l.url(fileID),
	}, nil
}

// Download returns the file content, or ErrFileNotFound.
func (l *Local) Download(ctx context.Context, fileID string) ([]byte, error) {
	data, err := os.ReadFile(l.path(fileID))
	if os.IsNotExist(err) {
		return nil, model.ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// Delete removes the file and its metadata. Returns false when the file
// did not exist.
func (l *Local) Delete(ctx context.Context, fileID string) (bool, error) {
	removed, err := l.files.Delete(ctx, fileID)
	if err != nil {
		return false, err
	}
	if err := os.Remove(l.path(fileID)); err != nil && !os.IsNotExist(err) {
		return removed, fmt.Errorf("failed to remove file: %w", err)
	}
	return removed, nil
}

// Exists reports whether the file content is present on disk.
func (l *Local) Exists(ctx context.Context, fileID string) (bool, error) {
	_, err := os.Stat(l.path(fileID))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	return true, nil
}

// Info returns the stored metadata for the file.
func (l *Local) Info(ctx context.Context, fileID string) (FileInfo, error) {
	rec, err := l.files.GetByID(ctx, fileID)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		FileID:      rec.ID,
		Filename:    rec.Filename,
		ContentType: rec.ContentType,
		Size:        rec.Size,
		URL:         l.url(rec.ID),
	}, nil
}
