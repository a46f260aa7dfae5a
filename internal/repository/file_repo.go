// Package repository provides data access for file metadata.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pixelle-ai/mcp-broker/internal/model"
)

// FileRepository provides data access for stored file metadata.
type FileRepository struct {
	db *sql.DB
}

// NewFileRepository creates a new FileRepository.
func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

// Create inserts metadata for a newly stored file.
func (r *FileRepository) Create(ctx context.Context, rec *model.FileRecord) error {
	query := `
		INSERT INTO files (id, filename, content_type, size, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.Filename,
		rec.ContentType,
		rec.Size,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create file record: %w", err)
	}
	return nil
}

// GetByID retrieves file metadata by file id.
func (r *FileRepository) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	query := `
		SELECT id, filename, content_type, size, created_at
		FROM files
		WHERE id = ?
	`

	rec := &model.FileRecord{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID,
		&rec.Filename,
		&rec.ContentType,
		&rec.Size,
		&rec.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, model.ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file record: %w", err)
	}
	return rec, nil
}

// Delete removes file metadata. Returns false when no row matched.
func (r *FileRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete file record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// Exists reports whether metadata exists for the file id.
func (r *FileRepository) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM files WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check file record: %w", err)
	}
	return true, nil
}
