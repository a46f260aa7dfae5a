// Package model holds shared data types and sentinel errors.
package model

import "time"

// FileRecord is the stored metadata for an uploaded file.
type FileRecord struct {
	ID          string
	Filename    string
	ContentType string
	Size        int64
	CreatedAt   time.Time
}
